package dialect

import "strconv"

// MarkerStyle is how a product spells parameter placeholders.
type MarkerStyle int

const (
	// Named markers carry the parameter name (@name, :name). Arguments are
	// passed as sql.Named values and a name may be referenced many times.
	Named MarkerStyle = iota + 1
	// Numbered markers carry a 1-based position ($1). Arguments are passed in
	// binding order and a position may be referenced many times.
	Numbered
	// Positional markers are bare (?). Arguments are passed once per reference,
	// in reference order.
	Positional
)

// String returns the style name.
func (s MarkerStyle) String() string {
	switch s {
	case Named:
		return "named"
	case Numbered:
		return "numbered"
	case Positional:
		return "positional"
	default:
		return "MarkerStyle(" + strconv.Itoa(int(s)) + ")"
	}
}

// MarkerStyle returns the placeholder style of the product.
func (d *Dialect) MarkerStyle() MarkerStyle {
	switch d.product {
	case SQLServer, SQLite, Oracle:
		return Named
	case PostgreSQL:
		return Numbered
	case MySQL, Firebird:
		return Positional
	}
	panic(unknownProduct(d.product))
}

// Marker returns the placeholder text for a parameter. pos is the 1-based
// binding position and is only used by numbered dialects; name is only used
// by named dialects.
//
//	SQL Server, SQLite  @name
//	Oracle              :name
//	PostgreSQL          $pos
//	MySQL, Firebird     ?
func (d *Dialect) Marker(pos int, name string) string {
	switch d.product {
	case SQLServer, SQLite:
		return "@" + name
	case Oracle:
		return ":" + name
	case PostgreSQL:
		return "$" + strconv.Itoa(pos)
	case MySQL, Firebird:
		return "?"
	}
	panic(unknownProduct(d.product))
}

// MaxParams returns the largest number of parameters one statement may carry.
func (d *Dialect) MaxParams() int {
	switch d.product {
	case SQLServer:
		return 2100
	case PostgreSQL, MySQL, Oracle:
		return 65535
	case SQLite:
		return 32766
	case Firebird:
		return 1499
	}
	panic(unknownProduct(d.product))
}
