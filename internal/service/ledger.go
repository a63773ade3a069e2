package service

import (
	"encoding/json"
	"os"

	"github.com/sirupsen/logrus"
)

// Ledger reads the reconciliation file the dispatcher maintains: a JSON
// object with a processed_ids array of message identifiers.
type Ledger struct {
	path   string
	logger *logrus.Logger
}

func NewLedger(path string, logger *logrus.Logger) *Ledger {
	return &Ledger{path: path, logger: logger}
}

// ProcessedIDs returns the set of message guids the dispatcher claims to
// have processed. A missing or malformed ledger degrades to the empty set;
// the dispatch cycle then resolves the whole batch to failed rather than
// leaving jobs invisible in running.
func (l *Ledger) ProcessedIDs() map[string]struct{} {
	ids := make(map[string]struct{})

	data, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.WithError(err).WithField("path", l.path).Warn("Failed to read reconciliation ledger")
		}
		return ids
	}

	var payload struct {
		ProcessedIDs []json.RawMessage `json:"processed_ids"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		l.logger.WithField("path", l.path).Warn("Reconciliation ledger is not valid JSON")
		return ids
	}

	for _, raw := range payload.ProcessedIDs {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			// Non-string identifiers are coerced through their JSON form,
			// matching how numeric ids appear in the file
			id = string(raw)
		}
		if id != "" {
			ids[id] = struct{}{}
		}
	}

	return ids
}
