// Package sqlbridge is a cross-database access layer for SQL Server,
// PostgreSQL, MySQL, SQLite, Oracle and Firebird.
//
// The module is split the same way the work is split at runtime:
//
//   - dialect: per-product policy (quoting, parameter markers, feature flags,
//     session setup, value coercion, connection-mode floors)
//   - schema: explicit table metadata consumed by the statement builders
//   - dialect/sql: the statement builder (Container), the connection-mode
//     governor and the execution façade (Driver, Tx, Rows)
//   - dialect/sql/native: registration of the database/sql drivers and
//     per-product connectors
//
// This root package only holds the error taxonomy shared by all of them.
//
// # Errors
//
// Deterministic errors are raised while a statement is being built:
//
//   - DialectCapabilityError: the active dialect cannot express a feature
//   - IdentifierQuotingError: an identifier cannot be quoted safely
//   - ParameterBindingError: a value does not fit the dialect coercion table,
//     or the rendered SQL and its bindings disagree
//
// Runtime errors are raised while a statement is being executed:
//
//   - AcquisitionTimeoutError: no connection handle within the configured
//     window, with the reason (pool exhausted or write-permit contention)
//   - ConnectionRejectedError: the native driver refused to connect
//   - NativeExecutionError: anything the native driver reported, classified
//     (unique, foreign key, check, locked) when the driver exposes codes
//
// Nothing is retried automatically; the helpers below let callers decide:
//
//	if sqlbridge.IsAcquisitionTimeout(err) {
//	    // back off and retry, or shed load
//	}
package sqlbridge
