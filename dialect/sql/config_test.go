package sql

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlbridge/dialect"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
dialect: postgresql
dsn: postgres://app@localhost/app
mode: single-writer
acquire_timeout: 2s
read_only: true
max_open_conns: 8
fold_identifiers: true
slow_threshold: 150ms
`))
	require.NoError(t, err)
	assert.Equal(t, dialect.PostgreSQL, cfg.Dialect)
	assert.Equal(t, dialect.SingleWriter, cfg.Mode)
	assert.Equal(t, 2*time.Second, cfg.AcquireTimeout)
	assert.True(t, cfg.ReadOnly)
	assert.Equal(t, 8, cfg.MaxOpenConns)
	assert.True(t, cfg.FoldIdentifiers)
	assert.Equal(t, 150*time.Millisecond, cfg.SlowThreshold)

	cfg = cfg.withDefaults()
	assert.Equal(t, "postgres", cfg.DriverName)
	assert.NotNil(t, cfg.Logger)
}

func TestParseConfigErrors(t *testing.T) {
	_, err := ParseConfig([]byte("dialect: db2\n"))
	assert.Error(t, err)

	_, err = ParseConfig([]byte("dialect: sqlite\nmode: exclusive\n"))
	assert.Error(t, err)

	_, err = ParseConfig([]byte("dialect: mysql\n"))
	assert.ErrorContains(t, err, "dsn is required")

	err = Config{Dialect: dialect.SQLServer, DSN: "x", AcquireTimeout: -1, MaxOpenConns: -1}.Validate()
	assert.ErrorContains(t, err, "acquire_timeout")
	assert.ErrorContains(t, err, "connection limits")

	assert.ErrorContains(t, Config{}.Validate(), "dialect is required")
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("dialect: sqlite\n"))
	require.NoError(t, err, "sqlite defaults to a private in-memory database")
	cfg = cfg.withDefaults()
	assert.Equal(t, DefaultAcquireTimeout, cfg.AcquireTimeout)
	assert.Equal(t, "sqlite", cfg.DriverName)
	assert.Equal(t, dialect.Pooled, cfg.Mode)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dialect: oracle\ndsn: app/secret@db:1521/APP\n"), 0o600))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, dialect.Oracle, cfg.Dialect)
	assert.Equal(t, "godror", cfg.withDefaults().DriverName)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
