// Package config provides centralized configuration management for ledgersync.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Reader   ReaderConfig
	Sync     SyncConfig
	Backup   BackupConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 10m, a sync can be slow)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"10m"`
}

// DatabaseConfig holds store connection settings.
type DatabaseConfig struct {
	// URL is either a PostgreSQL connection string or a SQLite file path.
	// DB_PATH is accepted for compatibility with older deployments.
	URL string `env:"DATABASE_URL" envAlt:"DB_PATH" default:"db/ledgersync.sqlite"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// IsPostgres reports whether URL points at a PostgreSQL server.
func (c *DatabaseConfig) IsPostgres() bool {
	u := strings.ToLower(c.URL)
	return strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://")
}

// ReaderConfig holds workbook reading settings.
type ReaderConfig struct {
	// SourceFiles is a comma-separated list of .xlsx or .csv workbooks
	SourceFiles []string `env:"SOURCE_FILES" envAlt:"EXCEL_FILES"`

	// SkipSheets lists sheet names that are never read
	SkipSheets []string `env:"READER_SKIP_SHEETS" default:"Reporte_Bancos,FE,Tablas,ER Funcion,ER Naturaleza,Partidas_Presupuestos"`

	// HeaderMinCells is how many non-empty cells a row needs to count as the header (default: 3)
	HeaderMinCells int `env:"READER_HEADER_MIN_CELLS" default:"3"`
}

// SyncConfig holds change detection and apply settings.
type SyncConfig struct {
	// SkipTables is the deny-list of table names that are never synced
	SkipTables []string `env:"SYNC_SKIP_TABLES" default:"reporte_bancos,fe"`

	KeyColumns         []string `env:"SYNC_KEY_COLUMNS" default:"date,description,amount,responsible"`
	FallbackKeyColumns []string `env:"SYNC_FALLBACK_KEY_COLUMNS" default:"date,description,amount"`

	// DateMarkers: a column whose name contains any marker is parsed as a date
	DateMarkers []string `env:"SYNC_DATE_MARKERS" default:"date,fecha"`

	// AmountPrefixes: a column whose name starts with any prefix is parsed as an amount
	AmountPrefixes []string `env:"SYNC_AMOUNT_PREFIXES" default:"amount,monto"`

	// Timeout bounds a whole sync run (default: 10m)
	Timeout time.Duration `env:"SYNC_TIMEOUT" default:"10m"`
}

// BackupConfig holds backup and retention settings.
type BackupConfig struct {
	// Path is the directory backups are written to (default: data/backup)
	Path string `env:"BACKUP_PATH" default:"data/backup"`

	// Retention is how many backups are kept per target (default: 5)
	Retention int `env:"BACKUP_RETENTION" default:"5"`

	// Required aborts a table's mutation when its backup fails (default: false)
	Required bool `env:"BACKUP_REQUIRED" default:"false"`

	// StoreSnapshot takes a whole-store copy once per run when the store supports it
	StoreSnapshot bool `env:"BACKUP_STORE_SNAPSHOT" default:"true"`

	S3 S3Config
}

// S3Config configures the optional off-site backup mirror.
// The mirror is disabled when Endpoint or Bucket is empty.
type S3Config struct {
	Endpoint  string `env:"BACKUP_S3_ENDPOINT"`
	Bucket    string `env:"BACKUP_S3_BUCKET"`
	AccessKey string `env:"BACKUP_S3_ACCESS_KEY"`
	SecretKey string `env:"BACKUP_S3_SECRET_KEY"`
	UseSSL    bool   `env:"BACKUP_S3_USE_SSL" default:"true"`

	// Prefix is prepended to every object key (default: ledgersync/)
	Prefix string `env:"BACKUP_S3_PREFIX" default:"ledgersync/"`
}

// Enabled reports whether the mirror has enough settings to connect.
func (c *S3Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey protects /api routes with an X-API-Key header (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies lists CIDRs whose X-Real-IP / X-Forwarded-For headers are
	// believed. Empty means the connection address is always used.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RateLimit is the number of API requests allowed per client per minute (default: 60)
	RateLimit int `env:"RATE_LIMIT_PER_MINUTE" default:"60"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// File, when set, receives a rotated copy of every log line
	File string `env:"LOG_FILE" envAlt:"LOG_PATH"`

	MaxSizeMB  int `env:"LOG_MAX_SIZE_MB" default:"20"`
	MaxBackups int `env:"LOG_MAX_BACKUPS" default:"5"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
