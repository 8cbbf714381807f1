package dialect

import (
	"fmt"
	"net/url"
	"strings"
)

// Mode is the connection regime the governor enforces. Modes are ordered by
// strictness: Pooled < SingleWriter < SinglePinned.
type Mode int

const (
	// Pooled hands out pooled connections with no extra serialization.
	Pooled Mode = iota
	// SingleWriter lets reads run freely and serializes writes behind one permit.
	SingleWriter
	// SinglePinned routes every operation through one long-lived connection.
	SinglePinned
)

// String returns the mode name used in configuration files.
func (m Mode) String() string {
	switch m {
	case Pooled:
		return "pooled"
	case SingleWriter:
		return "single-writer"
	case SinglePinned:
		return "single-pinned"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m >= Pooled && m <= SinglePinned
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pooled":
		return Pooled, nil
	case "single-writer", "single_writer", "singlewriter":
		return SingleWriter, nil
	case "single-pinned", "single_pinned", "singlepinned":
		return SinglePinned, nil
	}
	return 0, fmt.Errorf("dialect: unknown connection mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("dialect: invalid connection mode %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	v, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Effective returns the mode actually used: the stricter of the requested
// mode and the floor the store imposes.
func Effective(requested, floor Mode) Mode {
	return max(requested, floor)
}

type memoryKind int

const (
	notMemory memoryKind = iota
	privateMemory
	sharedMemory
)

// sqliteMemory classifies a SQLite DSN. A private in-memory database lives
// and dies with its single connection; a shared-cache one is visible to every
// connection of the process as long as at least one stays open.
func sqliteMemory(dsn string) memoryKind {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return privateMemory
	}
	path, rawQuery, _ := strings.Cut(dsn, "?")
	query, _ := url.ParseQuery(rawQuery)
	path = strings.TrimPrefix(path, "file:")
	memory := path == ":memory:" || strings.EqualFold(query.Get("mode"), "memory")
	if !memory {
		return notMemory
	}
	if strings.EqualFold(query.Get("cache"), "shared") {
		return sharedMemory
	}
	return privateMemory
}

// Floor returns the least strict mode that is safe for dsn. Embedded SQLite
// files allow a single writer at a time; a private in-memory database exists
// only on one connection and must be pinned. Server products pool freely.
func (d *Dialect) Floor(dsn string) Mode {
	switch d.product {
	case SQLite:
		switch sqliteMemory(dsn) {
		case privateMemory:
			return SinglePinned
		default:
			return SingleWriter
		}
	case SQLServer, PostgreSQL, MySQL, Oracle, Firebird:
		return Pooled
	}
	panic(unknownProduct(d.product))
}

// NeedsKeepAlive reports whether the store behind dsn disappears when its
// last connection closes while the pool may legitimately drop to zero
// connections. Private in-memory stores are excluded: their pinned
// connection already keeps them alive.
func (d *Dialect) NeedsKeepAlive(dsn string) bool {
	return d.product == SQLite && sqliteMemory(dsn) == sharedMemory
}
