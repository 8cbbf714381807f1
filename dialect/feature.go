package dialect

import (
	"strconv"
	"strings"

	"github.com/syssam/sqlbridge"
)

// Feature is a statement shape or session capability a product may lack.
type Feature uint32

// Features reported by Supports.
const (
	FeatureMerge Feature = 1 << iota
	FeatureReturning
	FeatureOnConflict
	FeatureOnDuplicateKey
	FeatureUpdateOrInsert
	FeatureOutputClause
	FeatureRecursiveCTE
	FeatureConnectBy
	FeatureArrays
	FeatureJSON
	FeatureSessionVars
	FeatureLastInsertID
)

var featureNames = []struct {
	f    Feature
	name string
}{
	{FeatureMerge, "merge"},
	{FeatureReturning, "returning"},
	{FeatureOnConflict, "on conflict"},
	{FeatureOnDuplicateKey, "on duplicate key"},
	{FeatureUpdateOrInsert, "update or insert"},
	{FeatureOutputClause, "output clause"},
	{FeatureRecursiveCTE, "recursive cte"},
	{FeatureConnectBy, "connect by"},
	{FeatureArrays, "arrays"},
	{FeatureJSON, "json"},
	{FeatureSessionVars, "session variables"},
	{FeatureLastInsertID, "last insert id"},
}

// String returns the feature names joined with "|".
func (f Feature) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for _, fn := range featureNames {
		if f&fn.f != 0 {
			names = append(names, fn.name)
			f &^= fn.f
		}
	}
	if f != 0 {
		names = append(names, "0x"+strconv.FormatUint(uint64(f), 16))
	}
	return strings.Join(names, "|")
}

// Features returns the full feature set of the product.
func (d *Dialect) Features() Feature {
	switch d.product {
	case SQLServer:
		return FeatureMerge | FeatureOutputClause | FeatureRecursiveCTE | FeatureJSON
	case PostgreSQL:
		return FeatureMerge | FeatureReturning | FeatureOnConflict | FeatureRecursiveCTE |
			FeatureArrays | FeatureJSON | FeatureSessionVars
	case MySQL:
		return FeatureOnDuplicateKey | FeatureRecursiveCTE | FeatureJSON | FeatureSessionVars |
			FeatureLastInsertID
	case SQLite:
		return FeatureReturning | FeatureOnConflict | FeatureRecursiveCTE | FeatureJSON |
			FeatureLastInsertID
	case Oracle:
		return FeatureMerge | FeatureRecursiveCTE | FeatureConnectBy | FeatureJSON
	case Firebird:
		return FeatureMerge | FeatureReturning | FeatureUpdateOrInsert | FeatureRecursiveCTE
	}
	panic(unknownProduct(d.product))
}

// Supports reports whether the product supports every feature in f.
func (d *Dialect) Supports(f Feature) bool {
	return d.Features()&f == f
}

// Require returns a DialectCapabilityError naming the first unsupported
// feature in f, or nil.
func (d *Dialect) Require(f Feature) error {
	missing := f &^ d.Features()
	if missing == 0 {
		return nil
	}
	for _, fn := range featureNames {
		if missing&fn.f != 0 {
			return sqlbridge.NewDialectCapabilityError(d.Name(), fn.name)
		}
	}
	return sqlbridge.NewDialectCapabilityError(d.Name(), missing.String())
}

// UpsertStyle is the statement form used for insert-or-update.
type UpsertStyle int

const (
	UpsertMerge UpsertStyle = iota + 1
	UpsertOnConflict
	UpsertOnDuplicateKey
	UpsertUpdateOrInsert
)

// String returns the style name.
func (s UpsertStyle) String() string {
	switch s {
	case UpsertMerge:
		return "merge"
	case UpsertOnConflict:
		return "on conflict"
	case UpsertOnDuplicateKey:
		return "on duplicate key"
	case UpsertUpdateOrInsert:
		return "update or insert"
	default:
		return "UpsertStyle(" + strconv.Itoa(int(s)) + ")"
	}
}

// Feature returns the feature flag the style depends on.
func (s UpsertStyle) Feature() Feature {
	switch s {
	case UpsertMerge:
		return FeatureMerge
	case UpsertOnConflict:
		return FeatureOnConflict
	case UpsertOnDuplicateKey:
		return FeatureOnDuplicateKey
	case UpsertUpdateOrInsert:
		return FeatureUpdateOrInsert
	default:
		return 0
	}
}

// UpsertStyle returns the preferred insert-or-update form of the product.
func (d *Dialect) UpsertStyle() UpsertStyle {
	switch d.product {
	case SQLServer, Oracle:
		return UpsertMerge
	case PostgreSQL, SQLite:
		return UpsertOnConflict
	case MySQL:
		return UpsertOnDuplicateKey
	case Firebird:
		return UpsertUpdateOrInsert
	}
	panic(unknownProduct(d.product))
}

// IdentityStyle is how a generated key is read back after an insert.
type IdentityStyle int

const (
	// IdentityNone means the product has no single-statement read-back; keys
	// come from sequences the caller manages.
	IdentityNone IdentityStyle = iota
	// IdentityReturning appends RETURNING col to the insert.
	IdentityReturning
	// IdentityOutput places OUTPUT INSERTED.col before VALUES.
	IdentityOutput
	// IdentityLastInsertID reads the driver's LastInsertId after executing.
	IdentityLastInsertID
)

// IdentityStyle returns the identity read-back form of the product.
func (d *Dialect) IdentityStyle() IdentityStyle {
	switch d.product {
	case PostgreSQL, SQLite, Firebird:
		return IdentityReturning
	case SQLServer:
		return IdentityOutput
	case MySQL:
		return IdentityLastInsertID
	case Oracle:
		return IdentityNone
	}
	panic(unknownProduct(d.product))
}

// Paginate returns the paging clause for limit and offset. A non-positive
// limit means no limit. Products using OFFSET ... FETCH require an ORDER BY
// in front of the clause (see RequiresOrderForPaging).
func (d *Dialect) Paginate(limit, offset int) string {
	if offset < 0 {
		offset = 0
	}
	switch d.product {
	case PostgreSQL, MySQL, SQLite:
		var b strings.Builder
		switch {
		case limit > 0:
			b.WriteString("LIMIT " + strconv.Itoa(limit))
		case offset > 0 && d.product == MySQL:
			b.WriteString("LIMIT 18446744073709551615")
		case offset > 0 && d.product == SQLite:
			b.WriteString("LIMIT -1")
		}
		if offset > 0 {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString("OFFSET " + strconv.Itoa(offset))
		}
		return b.String()
	case SQLServer, Oracle, Firebird:
		if limit <= 0 && offset == 0 {
			return ""
		}
		s := "OFFSET " + strconv.Itoa(offset) + " ROWS"
		if limit > 0 {
			s += " FETCH NEXT " + strconv.Itoa(limit) + " ROWS ONLY"
		}
		return s
	}
	panic(unknownProduct(d.product))
}

// RequiresOrderForPaging reports whether the paging clause is only valid
// after an ORDER BY.
func (d *Dialect) RequiresOrderForPaging() bool {
	return d.product == SQLServer
}

// RecursiveCTE returns the prefix that opens a recursive common table expression.
func (d *Dialect) RecursiveCTE() string {
	switch d.product {
	case SQLServer, Oracle:
		return "WITH "
	case PostgreSQL, MySQL, SQLite, Firebird:
		return "WITH RECURSIVE "
	}
	panic(unknownProduct(d.product))
}

// SingleRowSource returns the FROM clause needed to select literals, if any.
func (d *Dialect) SingleRowSource() string {
	switch d.product {
	case Oracle:
		return " FROM DUAL"
	case Firebird:
		return " FROM RDB$DATABASE"
	case SQLServer, PostgreSQL, MySQL, SQLite:
		return ""
	}
	panic(unknownProduct(d.product))
}

// TableAlias returns the keyword placed between a table and its alias.
// Oracle rejects AS for table aliases.
func (d *Dialect) TableAlias() string {
	if d.product == Oracle {
		return " "
	}
	return " AS "
}

// CastsUntypedParams reports whether parameters used as bare select-list
// values must be cast to a type before the server can infer one.
func (d *Dialect) CastsUntypedParams() bool {
	switch d.product {
	case PostgreSQL, Firebird:
		return true
	default:
		return false
	}
}
