package dialect

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/syssam/sqlbridge"
)

// quoteChars returns the opening and closing delimiters of quoted identifiers.
func (d *Dialect) quoteChars() (byte, byte) {
	switch d.product {
	case SQLServer:
		return '[', ']'
	case MySQL:
		return '`', '`'
	case PostgreSQL, SQLite, Oracle, Firebird:
		return '"', '"'
	}
	panic(unknownProduct(d.product))
}

// MaxIdentifierLength returns the longest identifier the product accepts,
// or 0 when there is no practical limit. PostgreSQL and Oracle count bytes,
// the others count characters.
func (d *Dialect) MaxIdentifierLength() int {
	switch d.product {
	case SQLServer, Oracle:
		return 128
	case PostgreSQL, Firebird:
		return 63
	case MySQL:
		return 64
	case SQLite:
		return 0
	}
	panic(unknownProduct(d.product))
}

func (d *Dialect) identifierLength(id string) int {
	switch d.product {
	case PostgreSQL, Oracle:
		return len(id)
	default:
		return utf8.RuneCountInString(id)
	}
}

func (d *Dialect) checkIdentifier(id string) error {
	switch {
	case id == "":
		return sqlbridge.NewIdentifierQuotingError(d.Name(), id, "empty identifier")
	case strings.IndexByte(id, 0) >= 0:
		return sqlbridge.NewIdentifierQuotingError(d.Name(), id, "identifier contains NUL")
	case !utf8.ValidString(id):
		return sqlbridge.NewIdentifierQuotingError(d.Name(), id, "identifier is not valid UTF-8")
	case d.product == Oracle && strings.IndexByte(id, '"') >= 0:
		// Oracle has no escape for a double quote inside a quoted identifier.
		return sqlbridge.NewIdentifierQuotingError(d.Name(), id, "identifier contains a double quote")
	}
	if limit := d.MaxIdentifierLength(); limit > 0 && d.identifierLength(id) > limit {
		return sqlbridge.NewIdentifierQuotingError(d.Name(), id, "identifier exceeds the length limit")
	}
	return nil
}

// Quote wraps id in the product's identifier delimiters, doubling any
// embedded closing delimiter.
//
//	dialect.Get(dialect.SQLServer).Quote("a]b") // [a]]b]
//	dialect.Get(dialect.MySQL).Quote("order")   // `order`
func (d *Dialect) Quote(id string) (string, error) {
	if err := d.checkIdentifier(id); err != nil {
		return "", err
	}
	open, closing := d.quoteChars()
	var b strings.Builder
	b.Grow(len(id) + 2)
	b.WriteByte(open)
	for i := 0; i < len(id); i++ {
		if id[i] == closing {
			b.WriteByte(closing)
		}
		b.WriteByte(id[i])
	}
	b.WriteByte(closing)
	return b.String(), nil
}

// Unquote reverses Quote. It fails if s is not a single well-formed quoted
// identifier of this dialect.
func (d *Dialect) Unquote(s string) (string, error) {
	open, closing := d.quoteChars()
	if len(s) < 2 || s[0] != open || s[len(s)-1] != closing {
		return "", sqlbridge.NewIdentifierQuotingError(d.Name(), s, "not a quoted identifier")
	}
	inner := s[1 : len(s)-1]
	var b strings.Builder
	b.Grow(len(inner))
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c == closing {
			if i+1 >= len(inner) || inner[i+1] != closing {
				return "", sqlbridge.NewIdentifierQuotingError(d.Name(), s, "unescaped closing delimiter")
			}
			i++
		}
		b.WriteByte(c)
	}
	id := b.String()
	if err := d.checkIdentifier(id); err != nil {
		return "", err
	}
	return id, nil
}

// QuoteQualified quotes every part of a qualified name and joins them with
// dots. Empty parts are skipped, so an unset schema does not produce "".
func (d *Dialect) QuoteQualified(parts ...string) (string, error) {
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		q, err := d.Quote(p)
		if err != nil {
			return "", err
		}
		quoted = append(quoted, q)
	}
	if len(quoted) == 0 {
		return "", sqlbridge.NewIdentifierQuotingError(d.Name(), "", "empty identifier")
	}
	return strings.Join(quoted, "."), nil
}

// Fold converts id to the case the product uses for unquoted identifiers:
// upper for Oracle and Firebird, lower for PostgreSQL. SQL Server, MySQL and
// SQLite resolve unquoted names case-insensitively and keep id as is.
func (d *Dialect) Fold(id string) string {
	switch d.product {
	case Oracle, Firebird:
		// Casers hold state and are not shared between goroutines.
		return cases.Upper(language.Und).String(id)
	case PostgreSQL:
		return cases.Lower(language.Und).String(id)
	case SQLServer, MySQL, SQLite:
		return id
	}
	panic(unknownProduct(d.product))
}
