package dialect

import (
	"fmt"
	"strings"
)

// Product identifies a database product. The set is closed: every policy
// method on Dialect switches over all of them.
type Product int

// Supported database products.
const (
	SQLServer Product = iota + 1
	PostgreSQL
	MySQL
	SQLite
	Oracle
	Firebird
)

// Products returns every supported product in declaration order.
func Products() []Product {
	return []Product{SQLServer, PostgreSQL, MySQL, SQLite, Oracle, Firebird}
}

// String returns the canonical product name.
func (p Product) String() string {
	switch p {
	case SQLServer:
		return "sqlserver"
	case PostgreSQL:
		return "postgres"
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite"
	case Oracle:
		return "oracle"
	case Firebird:
		return "firebird"
	default:
		return fmt.Sprintf("Product(%d)", int(p))
	}
}

// Valid reports whether p is one of the supported products.
func (p Product) Valid() bool {
	return p >= SQLServer && p <= Firebird
}

// MarshalText implements encoding.TextMarshaler.
func (p Product) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("dialect: invalid product %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Product) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

var aliases = map[string]Product{
	"sqlserver":   SQLServer,
	"mssql":       SQLServer,
	"postgres":    PostgreSQL,
	"postgresql":  PostgreSQL,
	"pgx":         PostgreSQL,
	"mysql":       MySQL,
	"mariadb":     MySQL,
	"sqlite":      SQLite,
	"sqlite3":     SQLite,
	"oracle":      Oracle,
	"godror":      Oracle,
	"firebird":    Firebird,
	"firebirdsql": Firebird,
}

// Parse maps a product or driver name to its Product. Matching is case-insensitive.
func Parse(name string) (Product, error) {
	if p, ok := aliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p, nil
	}
	return 0, fmt.Errorf("dialect: unknown product %q", name)
}

// Dialect is the immutable policy descriptor of one product. There is exactly
// one instance per product, obtained with Get or Lookup, and it is safe for
// concurrent use.
type Dialect struct {
	product Product
}

var dialects = func() map[Product]*Dialect {
	m := make(map[Product]*Dialect, 6)
	for _, p := range Products() {
		m[p] = &Dialect{product: p}
	}
	return m
}()

// Get returns the shared descriptor for p. It panics if p is not a supported
// product, since products are a closed set fixed at compile time.
func Get(p Product) *Dialect {
	d, ok := dialects[p]
	if !ok {
		panic(unknownProduct(p))
	}
	return d
}

// Lookup returns the shared descriptor for a product or driver name.
func Lookup(name string) (*Dialect, error) {
	p, err := Parse(name)
	if err != nil {
		return nil, err
	}
	return Get(p), nil
}

// Product returns the product this dialect describes.
func (d *Dialect) Product() Product { return d.product }

// Name returns the canonical product name.
func (d *Dialect) Name() string { return d.product.String() }

// String implements fmt.Stringer.
func (d *Dialect) String() string { return d.product.String() }

// DefaultDriver returns the database/sql driver name registered for the
// product by the native package.
func (d *Dialect) DefaultDriver() string {
	switch d.product {
	case SQLServer:
		return "sqlserver"
	case PostgreSQL:
		return "postgres"
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite"
	case Oracle:
		return "godror"
	case Firebird:
		return "firebirdsql"
	}
	panic(unknownProduct(d.product))
}

func unknownProduct(p Product) string {
	return fmt.Sprintf("dialect: unknown product %d", int(p))
}
