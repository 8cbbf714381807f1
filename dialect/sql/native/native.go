// Package native registers the database/sql drivers of every supported
// product and builds connectors that parse the DSN once, at open time.
//
//	drv, err := native.Open(ctx, sql.Config{Dialect: dialect.SQLite, DSN: "file:app.db"})
//
// Importing the package also registers error classifiers for driver error
// types that expose their codes as fields rather than methods.
package native

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	_ "github.com/godror/godror"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
	_ "github.com/nakagami/firebirdsql"
	_ "modernc.org/sqlite"

	"github.com/syssam/sqlbridge"
	"github.com/syssam/sqlbridge/dialect"
	"github.com/syssam/sqlbridge/dialect/sql"
)

// Registered driver names.
const (
	DriverSQLServer = "sqlserver"
	DriverPostgres  = "postgres"
	DriverPgx       = "pgx"
	DriverMySQL     = "mysql"
	DriverSQLite    = "sqlite"
	DriverOracle    = "godror"
	DriverFirebird  = "firebirdsql"
)

func init() {
	sql.RegisterClassifier(dialect.MySQL, classifyMySQL)
	sql.RegisterClassifier(dialect.PostgreSQL, classifyPQ)
}

// DriverName returns the default registered driver of p.
func DriverName(p dialect.Product) string {
	if !p.Valid() {
		return ""
	}
	return dialect.Get(p).DefaultDriver()
}

// Connector returns a connector for p. An empty driverName selects the
// product default. Drivers with a native connector constructor parse dsn
// here, so malformed DSNs fail before any connection is attempted.
func Connector(p dialect.Product, driverName, dsn string) (driver.Connector, error) {
	if driverName == "" {
		driverName = DriverName(p)
	}
	switch driverName {
	case DriverPostgres:
		return pq.NewConnector(dsn)
	case DriverPgx, "pgx/v5":
		cfg, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, err
		}
		return stdlib.GetConnector(*cfg), nil
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, err
		}
		return mysql.NewConnector(cfg)
	case DriverSQLServer, "mssql":
		return mssql.NewConnector(dsn)
	case "":
		return nil, fmt.Errorf("native: no driver for product %s", p)
	}
	return sql.DriverConnector(driverName, dsn)
}

// ValidateDSN reports whether dsn parses for the product default driver.
// Products whose driver only parses on connect are accepted as is.
func ValidateDSN(p dialect.Product, dsn string) error {
	var err error
	switch p {
	case dialect.PostgreSQL:
		_, err = pgx.ParseConfig(dsn)
	case dialect.MySQL:
		_, err = mysql.ParseDSN(dsn)
	case dialect.SQLServer:
		_, err = mssql.NewConnector(dsn)
	case dialect.SQLite, dialect.Oracle, dialect.Firebird:
		if dsn == "" && p != dialect.SQLite {
			err = errors.New("empty dsn")
		}
	default:
		return fmt.Errorf("native: invalid product %d", int(p))
	}
	if err != nil {
		return fmt.Errorf("native: %s dsn: %w", p, err)
	}
	return nil
}

// Open opens a Driver through the native connector of cfg.Dialect.
func Open(ctx context.Context, cfg sql.Config, opts ...sql.Option) (*sql.Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	connector, err := Connector(cfg.Dialect, cfg.DriverName, cfg.DSN)
	if err != nil {
		return nil, &sqlbridge.ConnectionRejectedError{Dialect: cfg.Dialect.String(), Err: err}
	}
	return sql.OpenConnector(ctx, cfg, connector, opts...)
}

func classifyMySQL(err error) (sqlbridge.ErrorClass, bool) {
	var e *mysql.MySQLError
	if !errors.As(err, &e) {
		return sqlbridge.ClassOther, false
	}
	return sql.ClassifyMySQL(e.Number)
}

func classifyPQ(err error) (sqlbridge.ErrorClass, bool) {
	var e *pq.Error
	if !errors.As(err, &e) {
		return sqlbridge.ClassOther, false
	}
	return sql.ClassifySQLState(string(e.Code))
}
