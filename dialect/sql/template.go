package sql

import (
	"strconv"
	"sync"

	"github.com/syssam/sqlbridge/schema"
)

// CacheKey identifies a cached statement template.
type CacheKey struct {
	Dialect   string
	Table     string
	Operation string // e.g. "select", "insert", "upsert"
	Variant   string // free-form discriminator, e.g. the where columns
}

// String returns the string representation of the cache key.
func (k CacheKey) String() string {
	return k.Dialect + ":" + k.Table + ":" + k.Operation + ":" + k.Variant
}

// Templates caches built statements and hands out clones, so a statement
// shape is built once and every caller binds its own copy. It is safe for
// concurrent use.
type Templates struct {
	mu sync.RWMutex
	m  map[CacheKey]*Container
}

// NewTemplates returns an empty template cache.
func NewTemplates() *Templates {
	return &Templates{m: make(map[CacheKey]*Container)}
}

// Get returns a clone of the template stored under key, building and storing
// it first if needed. A failed build is not cached.
func (t *Templates) Get(key CacheKey, build func() (*Container, error)) (*Container, error) {
	t.mu.RLock()
	tmpl, ok := t.m[key]
	if ok {
		clone := tmpl.Clone()
		t.mu.RUnlock()
		return clone, nil
	}
	t.mu.RUnlock()

	built, err := build()
	if err != nil {
		if built != nil {
			_ = built.Close()
		}
		return nil, err
	}
	if err := built.Err(); err != nil {
		_ = built.Close()
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if tmpl, ok := t.m[key]; ok {
		// Lost the race; keep the first template.
		_ = built.Close()
		return tmpl.Clone(), nil
	}
	t.m[key] = built
	return built.Clone(), nil
}

// Len returns the number of cached templates.
func (t *Templates) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.m)
}

// Purge drops every cached template.
func (t *Templates) Purge() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, c := range t.m {
		_ = c.Close()
		delete(t.m, k)
	}
}

// variant joins column names into a CacheKey variant.
func variant(parts ...string) string {
	n := 0
	for _, p := range parts {
		n += len(p) + 1
	}
	b := make([]byte, 0, n+4)
	b = strconv.AppendInt(b, int64(len(parts)), 10)
	for _, p := range parts {
		b = append(b, '|')
		b = append(b, p...)
	}
	return string(b)
}

// tableVariant encodes every column property a statement shape depends on:
// name, kind, key membership and store-generated values. Two tables with the
// same name but different keys never share a template.
func tableVariant(t *schema.Table) string {
	parts := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		b := make([]byte, 0, len(col.Name)+6)
		b = append(b, col.Name...)
		b = append(b, ':')
		b = strconv.AppendInt(b, int64(col.Kind), 10)
		if col.Key {
			b = append(b, ":k"...)
		}
		if col.AutoIncrement {
			b = append(b, ":a"...)
		}
		parts[i] = string(b)
	}
	return variant(parts...)
}
