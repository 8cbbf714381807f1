// Package sql builds and runs statements against one of the supported
// database products through database/sql.
//
// # Containers
//
// A Container accumulates statement text and parameters for one dialect.
// Identifiers are quoted by the dialect, values are coerced for the kind they
// are bound with, and markers are written in the dialect style (@name, :name,
// $n or ?):
//
//	c := drv.Container()
//	c.Append("SELECT ").IdentList("id", "name").Append(" FROM ").Ident("products").
//	    Append(" WHERE ").Ident("price").Append(" > ").Arg(sql.RoleWhere, dialect.KindDecimal, 10)
//	rows, err := drv.Query(ctx, c)
//
// The CRUD builders (BuildSelect, BuildInsert, BuildUpdate, BuildDelete,
// BuildUpsert and BuildMerge) write whole statements from a schema.Table and
// declare their parameters unbound; bind them with SetColumn or Set.
//
// # Connection modes
//
// Every operation of a Driver acquires a handle from its Governor. In Pooled
// mode handles are pooled connections. In SingleWriter mode writes also wait
// for a single permit, so one write runs at a time. In SinglePinned mode all
// operations share one pinned connection, one at a time. Stores that cannot
// tolerate concurrent connections, such as private in-memory SQLite
// databases, raise the requested mode to the mode they need.
//
// Acquisition is bounded by Config.AcquireTimeout and fails with a
// sqlbridge.AcquisitionTimeoutError when it is exceeded.
//
// # Session variables
//
// WithVar attaches session variables to a context. They are set on the
// connection before the statement and reset before the connection is
// released, on products that support them:
//
//	ctx = sql.WithVar(ctx, "app.tenant", "acme")
//	_, err := drv.Exec(ctx, c)
package sql
