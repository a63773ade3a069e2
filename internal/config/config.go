package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"inboxd/internal/constants"
	"inboxd/internal/models"
	"inboxd/internal/security"
)

var (
	ErrMissingReaderPath     = models.ConfigError{Message: "missing reader path"}
	ErrMissingDispatcherPath = models.ConfigError{Message: "missing dispatcher path"}
	ErrMissingDBPath         = models.ConfigError{Message: "missing database path"}
	ErrMissingLedgerPath     = models.ConfigError{Message: "missing reconciliation ledger path"}
)

func LoadConfig(path string) (*models.Config, error) {
	// Validate config file path to prevent directory traversal
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Reader.Path == "" {
		return ErrMissingReaderPath
	}
	if c.Dispatcher.Path == "" {
		return ErrMissingDispatcherPath
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.Ledger.Path == "" {
		return ErrMissingLedgerPath
	}
	return nil
}

func applyDefaults(c *models.Config) {
	if c.PollIntervalSec < 1 {
		c.PollIntervalSec = constants.DefaultPollIntervalSec
	}
	if c.BootstrapLookbackMinutes < 1 {
		c.BootstrapLookbackMinutes = constants.DefaultBootstrapLookbackMinutes
	}
	if c.MaxLookbackMinutes < 1 {
		c.MaxLookbackMinutes = constants.DefaultMaxLookbackMinutes
	}
	if c.DispatchBatchSize < 1 {
		c.DispatchBatchSize = constants.DefaultDispatchBatchSize
	}
	// Negative timeout means no bounded wait; zero picks the default
	if c.Reader.TimeoutSec < 0 {
		c.Reader.TimeoutSec = 0
	} else if c.Reader.TimeoutSec == 0 {
		c.Reader.TimeoutSec = constants.DefaultReaderTimeoutSec
	}
	if c.Dispatcher.TimeoutSec < 0 {
		c.Dispatcher.TimeoutSec = 0
	} else if c.Dispatcher.TimeoutSec == 0 {
		c.Dispatcher.TimeoutSec = constants.DefaultDispatcherTimeoutSec
	}
	if c.Lock.Path == "" {
		c.Lock.Path = filepath.Join(filepath.Dir(c.Database.Path), "inboxd.lock")
	}
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "inboxd"
	}
	if c.Tracing.SampleRate <= 0 {
		c.Tracing.SampleRate = 0.1
	}
}

func applyEnvironmentOverrides(c *models.Config) {
	if v := os.Getenv("INBOXD_READER_PATH"); v != "" {
		c.Reader.Path = v
	}
	if v := os.Getenv("INBOXD_DISPATCHER_PATH"); v != "" {
		c.Dispatcher.Path = v
	}
	if v := os.Getenv("INBOXD_LEDGER_PATH"); v != "" {
		c.Ledger.Path = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
}
