package constants

// Default daemon cycle configuration values
const (
	DefaultPollIntervalSec          = 5
	DefaultBootstrapLookbackMinutes = 30
	DefaultMaxLookbackMinutes       = 1440
	DefaultDispatchBatchSize        = 25
	DefaultDispatchLookbackMinutes  = 5
)

// Lookback buffers absorb reader/dispatcher clock skew at the window edge
const (
	IngestionLookbackBufferMinutes = 2
	DispatchLookbackBufferMinutes  = 3
)

// Default subprocess timeouts; zero disables the bounded wait
const (
	DefaultReaderTimeoutSec     = 120
	DefaultDispatcherTimeoutSec = 600
)

// Default retry configuration values
const (
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 60000
	DefaultMaxAttempts           = 5
	DefaultDatabaseRetryAttempts = 3
)

// Default server configuration values
const (
	DefaultServerPort            = 8082
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
	ServerErrorChannelSize       = 1
)

// MaxLastErrorLen bounds the stored last_error column
const MaxLastErrorLen = 1000

// WatermarkKey is the single watermarks row this daemon maintains
const WatermarkKey = "last_message_epoch"

// LocalDateLayout is the reader's date_local format, interpreted in the
// host's local timezone
const LocalDateLayout = "2006-01-02 15:04:05"

// Encryption salts for key derivation
const (
	EncryptionSalt = "inboxd-db-salt-v1"
)
