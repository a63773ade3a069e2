package models

// Config holds the application configuration
type Config struct {
	Reader                   ProcessConfig  `json:"reader"`
	Dispatcher               ProcessConfig  `json:"dispatcher"`
	Database                 DatabaseConfig `json:"database"`
	Ledger                   LedgerConfig   `json:"ledger"`
	Lock                     LockConfig     `json:"lock"`
	Server                   ServerConfig   `json:"server"`
	Tracing                  TracingConfig  `json:"tracing"`
	Retry                    RetryConfig    `json:"retry"`
	PollIntervalSec          int            `json:"pollIntervalSec"`
	BootstrapLookbackMinutes int            `json:"bootstrapLookbackMinutes"`
	MaxLookbackMinutes       int            `json:"maxLookbackMinutes"`
	DispatchBatchSize        int            `json:"dispatchBatchSize"`
	LogLevel                 string         `json:"logLevel"`
}

// ProcessConfig describes one external collaborator binary
type ProcessConfig struct {
	Path       string `json:"path"`
	TimeoutSec int    `json:"timeoutSec"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path string `json:"path"`
}

// LedgerConfig points at the dispatcher's reconciliation file
type LedgerConfig struct {
	Path string `json:"path"`
}

// LockConfig holds the single-instance lock file path
type LockConfig struct {
	Path string `json:"path"`
}

// ServerConfig holds the optional status server configuration
type ServerConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// TracingConfig holds OpenTelemetry related configurations
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"serviceName"`
	ServiceVersion string  `json:"serviceVersion"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlpEndpoint"`
	SampleRate     float64 `json:"sampleRate"`
	UseStdout      bool    `json:"useStdout"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
