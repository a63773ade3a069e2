package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerProcessedIDs(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected []string
	}{
		{
			name:     "well formed ledger",
			content:  `{"processed_ids": ["g1", "g2", "g3"]}`,
			expected: []string{"g1", "g2", "g3"},
		},
		{
			name:     "empty processed list",
			content:  `{"processed_ids": []}`,
			expected: nil,
		},
		{
			name:     "missing key degrades to empty set",
			content:  `{"last_run": "2026-08-31T12:00:00Z"}`,
			expected: nil,
		},
		{
			name:     "invalid json degrades to empty set",
			content:  `{"processed_ids": [`,
			expected: nil,
		},
		{
			name:     "numeric ids keep their literal form",
			content:  `{"processed_ids": ["g1", 42]}`,
			expected: []string{"g1", "42"},
		},
		{
			name:     "duplicates collapse",
			content:  `{"processed_ids": ["g1", "g1"]}`,
			expected: []string{"g1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "processed.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			ids := NewLedger(path, testLogger()).ProcessedIDs()
			assert.Len(t, ids, len(tt.expected))
			for _, id := range tt.expected {
				assert.Contains(t, ids, id)
			}
		})
	}
}

func TestLedgerMissingFile(t *testing.T) {
	ledger := NewLedger(filepath.Join(t.TempDir(), "nope.json"), testLogger())
	ids := ledger.ProcessedIDs()
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}
