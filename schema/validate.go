package schema

import (
	"fmt"
	"strings"
	"sync"

	"github.com/syssam/sqlbridge/dialect"
)

// ValidationError represents a table metadata error.
type ValidationError struct {
	Table   string
	Column  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("schema: %s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("schema: %s: %s", e.Table, e.Message)
}

// ValidationResult holds the results of table validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Err returns the first error, or nil.
func (r *ValidationResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			sb.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w.Error())
			sb.WriteString("\n")
		}
	}
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

// ValidateTable validates a single table definition.
func ValidateTable(t *Table) *ValidationResult {
	result := &ValidationResult{}
	if t.Name == "" {
		result.Errors = append(result.Errors, &ValidationError{Message: "table has no name"})
	}
	if len(t.Columns) == 0 {
		result.Errors = append(result.Errors, &ValidationError{Table: t.Name, Message: "table has no columns"})
	}
	if len(t.PrimaryKey()) == 0 {
		result.Warnings = append(result.Warnings, &ValidationError{
			Table:   t.Name,
			Message: "table has no primary key",
		})
	}

	colNames := make(map[string]bool)
	identities := 0
	for _, c := range t.Columns {
		switch {
		case c.Name == "":
			result.Errors = append(result.Errors, &ValidationError{Table: t.Name, Message: "column has no name"})
		case colNames[c.Name]:
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Column:  c.Name,
				Message: "duplicate column name",
			})
		}
		colNames[c.Name] = true
		if c.AutoIncrement {
			identities++
			if c.Kind != dialect.KindInteger {
				result.Errors = append(result.Errors, &ValidationError{
					Table:   t.Name,
					Column:  c.Name,
					Message: fmt.Sprintf("auto-increment column must be an integer, not %s", c.Kind),
				})
			}
		}
		if c.Key && c.Nullable {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Column:  c.Name,
				Message: "primary key column cannot be nullable",
			})
		}
	}
	if identities > 1 {
		result.Errors = append(result.Errors, &ValidationError{
			Table:   t.Name,
			Message: "table has more than one auto-increment column",
		})
	}
	return result
}

// ValidateSchema validates all tables in a schema.
func ValidateSchema(tables []*Table) *ValidationResult {
	result := &ValidationResult{}
	tableNames := make(map[string]bool)
	for _, t := range tables {
		qualified := t.Schema + "." + t.Name
		if tableNames[qualified] {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Message: "duplicate table name",
			})
		}
		tableNames[qualified] = true

		tableResult := ValidateTable(t)
		result.Errors = append(result.Errors, tableResult.Errors...)
		result.Warnings = append(result.Warnings, tableResult.Warnings...)
	}
	return result
}

// Registry maps entity type names to their table metadata.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]*Table)}
}

// Register validates t and records it under entity. Registering the same
// entity twice is an error.
func (r *Registry) Register(entity string, t *Table) error {
	if err := ValidateTable(t).Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tables[entity]; ok {
		return &ValidationError{Table: t.Name, Message: fmt.Sprintf("entity %q already registered", entity)}
	}
	r.tables[entity] = t
	return nil
}

// MustRegister is like Register but panics on error. It is meant for
// package-level registration.
func (r *Registry) MustRegister(entity string, t *Table) *Table {
	if err := r.Register(entity, t); err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the table registered for entity.
func (r *Registry) Lookup(entity string) (*Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[entity]
	return t, ok
}

// Tables returns every registered table.
func (r *Registry) Tables() []*Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tables := make([]*Table, 0, len(r.tables))
	for _, t := range r.tables {
		tables = append(tables, t)
	}
	return tables
}
