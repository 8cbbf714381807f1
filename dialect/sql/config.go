package sql

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syssam/sqlbridge/dialect"
)

// DefaultAcquireTimeout bounds connection acquisition when Config leaves
// AcquireTimeout unset. Longer waits must be configured explicitly.
const DefaultAcquireTimeout = 5 * time.Second

// Config holds the settings of one Driver.
//
// Example YAML:
//
//	dialect: sqlite
//	dsn: file:app.db
//	mode: pooled
//	acquire_timeout: 10s
//	slow_threshold: 200ms
type Config struct {
	// Dialect is the database product.
	Dialect dialect.Product `yaml:"dialect"`

	// DriverName is the registered database/sql driver. Defaults to the
	// product's driver (sqlserver, postgres, mysql, sqlite, godror, firebirdsql).
	DriverName string `yaml:"driver"`

	// DSN is the driver data source name.
	DSN string `yaml:"dsn"`

	// Mode is the requested connection mode. The effective mode may be
	// stricter when the store requires it.
	Mode dialect.Mode `yaml:"mode"`

	// AcquireTimeout bounds how long an operation waits for a connection
	// handle, write permit included. Defaults to DefaultAcquireTimeout.
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`

	// ReadOnly applies the product's read-only session setup on every
	// connection and starts transactions read-only.
	ReadOnly bool `yaml:"read_only"`

	// MaxOpenConns limits open connections (0 = unlimited). Ignored when the
	// effective mode is SinglePinned.
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns limits idle connections (0 = database/sql default).
	MaxIdleConns int `yaml:"max_idle_conns"`

	// ConnMaxLifetime closes connections older than this (0 = forever).
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	// FoldIdentifiers folds identifiers to the product's native case before
	// quoting them.
	FoldIdentifiers bool `yaml:"fold_identifiers"`

	// SlowThreshold marks statements slower than this as slow (0 = disabled).
	SlowThreshold time.Duration `yaml:"slow_threshold"`

	// Logger receives structured logs. Defaults to a discarding logger.
	Logger *slog.Logger `yaml:"-"`
}

// ParseConfig parses a YAML document into a Config and validates it.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("sql: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("sql: load config: %w", err)
	}
	return ParseConfig(data)
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if !c.Dialect.Valid() {
		errs = append(errs, errors.New("sql: config: dialect is required"))
	}
	if !c.Mode.Valid() {
		errs = append(errs, fmt.Errorf("sql: config: invalid mode %d", int(c.Mode)))
	}
	if c.DSN == "" && c.Dialect.Valid() && c.Dialect != dialect.SQLite {
		errs = append(errs, errors.New("sql: config: dsn is required"))
	}
	if c.AcquireTimeout < 0 {
		errs = append(errs, errors.New("sql: config: acquire_timeout must not be negative"))
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		errs = append(errs, errors.New("sql: config: connection limits must not be negative"))
	}
	if c.ConnMaxLifetime < 0 || c.SlowThreshold < 0 {
		errs = append(errs, errors.New("sql: config: durations must not be negative"))
	}
	return errors.Join(errs...)
}

// withDefaults returns c with unset fields defaulted.
func (c Config) withDefaults() Config {
	if c.AcquireTimeout == 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
	if c.DriverName == "" && c.Dialect.Valid() {
		c.DriverName = dialect.Get(c.Dialect).DefaultDriver()
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}
