package schema

import (
	"github.com/go-openapi/inflect"

	"github.com/syssam/sqlbridge/dialect"
)

// Column describes one table column as the statement builders see it.
type Column struct {
	Name          string
	Kind          dialect.Kind
	Key           bool // part of the primary key
	AutoIncrement bool // value generated by the store on insert
	Nullable      bool
}

// PrimaryKey marks the column as part of the primary key.
func (c *Column) PrimaryKey() *Column {
	c.Key = true
	return c
}

// Increment marks the column as store-generated. Insert statements omit it
// and read it back with the dialect's identity clause.
func (c *Column) Increment() *Column {
	c.AutoIncrement = true
	return c
}

// Optional marks the column as nullable.
func (c *Column) Optional() *Column {
	c.Nullable = true
	return c
}

// Field returns a column of the given kind.
func Field(name string, kind dialect.Kind) *Column {
	return &Column{Name: name, Kind: kind}
}

// Text returns a text column.
func Text(name string) *Column { return Field(name, dialect.KindText) }

// Int returns an integer column.
func Int(name string) *Column { return Field(name, dialect.KindInteger) }

// Decimal returns an exact numeric column.
func Decimal(name string) *Column { return Field(name, dialect.KindDecimal) }

// Bool returns a boolean column.
func Bool(name string) *Column { return Field(name, dialect.KindBoolean) }

// Time returns a timestamp column.
func Time(name string) *Column { return Field(name, dialect.KindDateTime) }

// Bytes returns a binary column.
func Bytes(name string) *Column { return Field(name, dialect.KindBinary) }

// JSON returns a JSON document column.
func JSON(name string) *Column { return Field(name, dialect.KindJSON) }

// Array returns an array column. Only PostgreSQL can bind arrays.
func Array(name string) *Column { return Field(name, dialect.KindArray) }

// Enum returns an enumerated text column.
func Enum(name string) *Column { return Field(name, dialect.KindEnum) }

// UUID returns a UUID column.
func UUID(name string) *Column { return Field(name, dialect.KindUUID) }

// Table is the explicit metadata of one table. Tables are declared once,
// usually in package variables, and are read-only afterwards.
//
//	var Products = schema.New("products",
//	    schema.Int("id").PrimaryKey().Increment(),
//	    schema.Text("name"),
//	    schema.Decimal("price"),
//	)
type Table struct {
	Schema  string // Optional schema or owner qualifier
	Name    string
	Columns []*Column
}

// New returns a table with the given columns.
func New(name string, columns ...*Column) *Table {
	return &Table{Name: name, Columns: columns}
}

// Entity returns a table named after an entity type: the snake-cased
// plural of name, e.g. "OrderLine" becomes "order_lines".
func Entity(name string, columns ...*Column) *Table {
	return New(TableName(name), columns...)
}

// TableName derives a table name from an entity type name.
func TableName(entity string) string {
	return inflect.Pluralize(inflect.Underscore(entity))
}

// InSchema sets the schema qualifier and returns t.
func (t *Table) InSchema(schema string) *Table {
	t.Schema = schema
	return t
}

// Column returns the column named name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// PrimaryKey returns the key columns in declaration order.
func (t *Table) PrimaryKey() []*Column {
	var pk []*Column
	for _, c := range t.Columns {
		if c.Key {
			pk = append(pk, c)
		}
	}
	return pk
}

// Identity returns the store-generated column, if any.
func (t *Table) Identity() (*Column, bool) {
	for _, c := range t.Columns {
		if c.AutoIncrement {
			return c, true
		}
	}
	return nil, false
}

// Insertable returns the columns an insert statement supplies values for.
func (t *Table) Insertable() []*Column {
	cols := make([]*Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !c.AutoIncrement {
			cols = append(cols, c)
		}
	}
	return cols
}

// Updatable returns the non-key, non-generated columns.
func (t *Table) Updatable() []*Column {
	cols := make([]*Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !c.Key && !c.AutoIncrement {
			cols = append(cols, c)
		}
	}
	return cols
}

// ColumnNames returns all column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}
