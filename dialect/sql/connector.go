package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"time"
)

// DriverConnector returns a connector for a registered database/sql driver.
// Drivers implementing driver.DriverContext parse dsn once; others open
// every connection with dsn.
func DriverConnector(driverName, dsn string) (driver.Connector, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	drv := db.Driver()
	_ = db.Close()
	if dc, ok := drv.(driver.DriverContext); ok {
		return dc.OpenConnector(dsn)
	}
	return dsnConnector{dsn: dsn, driver: drv}, nil
}

type dsnConnector struct {
	dsn    string
	driver driver.Driver
}

func (c dsnConnector) Connect(context.Context) (driver.Conn, error) {
	return c.driver.Open(c.dsn)
}

func (c dsnConnector) Driver() driver.Driver {
	return c.driver
}

// setupConnector runs the dialect session setup on every physical connection
// before database/sql hands it out.
type setupConnector struct {
	base  driver.Connector
	setup []string
	stats *QueryStats
}

func (c *setupConnector) Connect(ctx context.Context) (driver.Conn, error) {
	start := time.Now()
	conn, err := c.base.Connect(ctx)
	if err != nil {
		return nil, err
	}
	for _, stmt := range c.setup {
		if err := execConn(ctx, conn, stmt); err != nil {
			return nil, errors.Join(fmt.Errorf("sql: session setup %q: %w", stmt, err), conn.Close())
		}
	}
	c.stats.observeOpen(time.Since(start))
	return conn, nil
}

func (c *setupConnector) Driver() driver.Driver {
	return c.base.Driver()
}

// Close closes the wrapped connector if it holds resources. sql.DB.Close
// calls it.
func (c *setupConnector) Close() error {
	if cl, ok := c.base.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

// execConn executes a statement without arguments on a raw driver connection.
func execConn(ctx context.Context, conn driver.Conn, query string) error {
	if ex, ok := conn.(driver.ExecerContext); ok {
		_, err := ex.ExecContext(ctx, query, nil)
		if !errors.Is(err, driver.ErrSkip) {
			return err
		}
	}
	var (
		stmt driver.Stmt
		err  error
	)
	if pc, ok := conn.(driver.ConnPrepareContext); ok {
		stmt, err = pc.PrepareContext(ctx, query)
	} else {
		stmt, err = conn.Prepare(query)
	}
	if err != nil {
		return err
	}
	defer stmt.Close()
	if sc, ok := stmt.(driver.StmtExecContext); ok {
		_, err = sc.ExecContext(ctx, nil)
		return err
	}
	_, err = stmt.Exec(nil) //nolint:staticcheck // drivers without StmtExecContext
	return err
}
