// Package dialect describes the SQL policy of every supported database product.
//
// A Dialect is an immutable descriptor; there is one per Product and it is
// shared by every container and driver using that product:
//
//	d := dialect.Get(dialect.PostgreSQL)
//	q, _ := d.Quote("order") // "order"
//	d.Marker(1, "w0")        // $1
//
// # Supported Products
//
//   - SQLServer: [bracket] quoting, @name markers, MERGE, OUTPUT INSERTED
//   - PostgreSQL: "double quote" quoting, $n markers, ON CONFLICT, RETURNING, arrays
//   - MySQL: `backtick` quoting, ? markers, ON DUPLICATE KEY UPDATE
//   - SQLite: "double quote" quoting, @name markers, ON CONFLICT, RETURNING
//   - Oracle: "double quote" quoting, :name markers, MERGE, CONNECT BY
//   - Firebird: "double quote" quoting, ? markers, UPDATE OR INSERT, RETURNING
//
// # Features
//
// Statement shapes that only some products can express are guarded by
// feature flags. Builders call Require before emitting them, so an
// unsupported shape fails while the statement is built, not on the server:
//
//	if err := d.Require(dialect.FeatureMerge); err != nil {
//	    return err // *sqlbridge.DialectCapabilityError
//	}
//
// # Value Coercion
//
// Coerce maps a Go value of a logical Kind to what the product's driver
// expects, for example booleans become 0/1 integers on SQLite and Oracle and
// decimals travel as exact strings to server products.
//
// # Connection Modes
//
// Floor reports the least strict connection Mode a data source tolerates.
// SQLite files allow one writer at a time (SingleWriter) and a private
// in-memory SQLite database only exists on one connection (SinglePinned).
// The mode used at runtime is Effective(requested, floor).
package dialect
