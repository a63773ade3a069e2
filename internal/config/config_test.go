package config

import (
	"os"
	"path/filepath"
	"testing"

	"inboxd/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `{
	"reader": {"path": "/usr/local/bin/imessage-reader"},
	"dispatcher": {"path": "/usr/local/bin/signal-dispatcher"},
	"database": {"path": "/var/lib/inboxd/inboxd.db"},
	"ledger": {"path": "/var/lib/inboxd/processed.json"}
}`

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "/usr/local/bin/imessage-reader", cfg.Reader.Path)
	assert.Equal(t, constants.DefaultPollIntervalSec, cfg.PollIntervalSec)
	assert.Equal(t, constants.DefaultBootstrapLookbackMinutes, cfg.BootstrapLookbackMinutes)
	assert.Equal(t, constants.DefaultMaxLookbackMinutes, cfg.MaxLookbackMinutes)
	assert.Equal(t, constants.DefaultDispatchBatchSize, cfg.DispatchBatchSize)
	assert.Equal(t, constants.DefaultReaderTimeoutSec, cfg.Reader.TimeoutSec)
	assert.Equal(t, constants.DefaultDispatcherTimeoutSec, cfg.Dispatcher.TimeoutSec)
	assert.Equal(t, constants.DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, "/var/lib/inboxd/inboxd.lock", cfg.Lock.Path, "lock defaults next to the database")
	assert.Equal(t, "inboxd", cfg.Tracing.ServiceName)
}

func TestLoadConfigExplicitValuesWin(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{
		"reader": {"path": "/bin/reader", "timeoutSec": 30},
		"dispatcher": {"path": "/bin/dispatcher", "timeoutSec": -1},
		"database": {"path": "/tmp/db.sqlite"},
		"ledger": {"path": "/tmp/processed.json"},
		"lock": {"path": "/tmp/custom.lock"},
		"pollIntervalSec": 15,
		"dispatchBatchSize": 50
	}`))
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.PollIntervalSec)
	assert.Equal(t, 50, cfg.DispatchBatchSize)
	assert.Equal(t, 30, cfg.Reader.TimeoutSec)
	assert.Equal(t, 0, cfg.Dispatcher.TimeoutSec, "negative timeout disables the bounded wait")
	assert.Equal(t, "/tmp/custom.lock", cfg.Lock.Path)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected error
	}{
		{
			name: "missing reader path",
			content: `{
				"dispatcher": {"path": "/bin/dispatcher"},
				"database": {"path": "/tmp/db.sqlite"},
				"ledger": {"path": "/tmp/processed.json"}
			}`,
			expected: ErrMissingReaderPath,
		},
		{
			name: "missing dispatcher path",
			content: `{
				"reader": {"path": "/bin/reader"},
				"database": {"path": "/tmp/db.sqlite"},
				"ledger": {"path": "/tmp/processed.json"}
			}`,
			expected: ErrMissingDispatcherPath,
		},
		{
			name: "missing database path",
			content: `{
				"reader": {"path": "/bin/reader"},
				"dispatcher": {"path": "/bin/dispatcher"},
				"ledger": {"path": "/tmp/processed.json"}
			}`,
			expected: ErrMissingDBPath,
		},
		{
			name: "missing ledger path",
			content: `{
				"reader": {"path": "/bin/reader"},
				"dispatcher": {"path": "/bin/dispatcher"},
				"database": {"path": "/tmp/db.sqlite"}
			}`,
			expected: ErrMissingLedgerPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Equal(t, tt.expected, err)
		})
	}
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("INBOXD_READER_PATH", "/opt/override/reader")
	t.Setenv("INBOXD_DISPATCHER_PATH", "/opt/override/dispatcher")
	t.Setenv("INBOXD_LEDGER_PATH", "/opt/override/processed.json")
	t.Setenv("PORT", "9090")

	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "/opt/override/reader", cfg.Reader.Path)
	assert.Equal(t, "/opt/override/dispatcher", cfg.Dispatcher.Path)
	assert.Equal(t, "/opt/override/processed.json", cfg.Ledger.Path)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadConfigBadPortIgnored(t *testing.T) {
	t.Setenv("PORT", "not-a-port")

	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultServerPort, cfg.Server.Port)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `{"reader": `))
	assert.Error(t, err)
}

func TestLoadConfigRejectsTraversalPath(t *testing.T) {
	_, err := LoadConfig("../../etc/passwd")
	assert.Error(t, err)
}
