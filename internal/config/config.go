// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Sound    SoundConfig
	Media    MediaConfig
	Cleanup  CleanupConfig
	Rate     RateLimitConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds PostgreSQL settings for the sonification history
// store. The database is optional: with no URL configured the app runs
// without history.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (optional)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a database URL was configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// UploadConfig holds data upload and job processing settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 10MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"10485760"`

	// MaxConcurrent is the maximum number of parallel sonification jobs (default: 4)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for a job slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for a single sonification job (default: 5m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"5m"`
}

// SoundConfig holds default synthesis parameters. Individual requests can
// override waveform, scaling and mapping.
type SoundConfig struct {
	// SampleRate is the output sample rate in Hz (default: 44100)
	SampleRate int `env:"SOUND_SAMPLE_RATE" default:"44100"`

	// TimeBase is the tone duration per data point (default: 90ms)
	TimeBase time.Duration `env:"SOUND_TIME_BASE" default:"90ms"`

	// MinFreq is the lowest mapped pitch in Hz (default: 500)
	MinFreq float64 `env:"SOUND_MIN_FREQ" default:"500"`

	// FreqSpan is the pitch span above MinFreq in Hz (default: 5000)
	FreqSpan float64 `env:"SOUND_FREQ_SPAN" default:"5000"`

	// FixedFreq is the pitch used by volume mapping (default: 440)
	FixedFreq float64 `env:"SOUND_FIXED_FREQ" default:"440"`

	// Volume is the master volume in [0,1] (default: 0.8)
	Volume float64 `env:"SOUND_VOLUME" default:"0.8"`

	// Waveform is the default tone profile (default: sine)
	Waveform string `env:"SOUND_WAVEFORM" default:"sine"`
}

// MediaConfig holds media storage settings.
type MediaConfig struct {
	// Backend selects the media store: "fs" or "s3" (default: fs)
	Backend string `env:"MEDIA_BACKEND" default:"fs"`

	// Dir is the filesystem store directory (default: ./media)
	Dir string `env:"MEDIA_DIR" default:"./media"`

	// CacheSize is the number of rendered results remembered by the
	// render cache (default: 256)
	CacheSize int `env:"MEDIA_CACHE_SIZE" default:"256"`

	// S3 settings, used only when Backend is "s3".
	S3Endpoint  string `env:"MEDIA_S3_ENDPOINT"`
	S3Region    string `env:"MEDIA_S3_REGION"`
	S3AccessKey string `env:"MEDIA_S3_ACCESS_KEY"`
	S3SecretKey string `env:"MEDIA_S3_SECRET_KEY"`
	S3Bucket    string `env:"MEDIA_S3_BUCKET"`
	S3UseSSL    bool   `env:"MEDIA_S3_USE_SSL" default:"false"`
}

// CleanupConfig holds stale media cleanup settings.
type CleanupConfig struct {
	// Enabled controls whether the background cleaner runs (default: true)
	Enabled bool `env:"CLEANUP_ENABLED" default:"true"`

	// Retention is how long generated media is kept (default: 24h)
	Retention time.Duration `env:"CLEANUP_RETENTION" default:"24h"`

	// Interval is how often the cleaner runs (default: 1h)
	Interval time.Duration `env:"CLEANUP_INTERVAL" default:"1h"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// SonifyLimit is requests per minute for the sonify endpoint (default: 20)
	SonifyLimit int `env:"RATE_LIMIT_SONIFY" default:"20"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + strconv.Itoa(c.Port)
	}
	return c.Host + ":" + strconv.Itoa(c.Port)
}
