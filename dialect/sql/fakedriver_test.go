package sql

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// fakeConnector hands out fakeConns and counts them. Statement executions
// are tracked across all its connections: execs counts them and maxActive is
// the largest number observed running at once.
type fakeConnector struct {
	opened    atomic.Int32
	closed    atomic.Int32
	fail      error
	execDelay time.Duration
	execs     atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
	mu        sync.Mutex
	execLog   []string
}

func (c *fakeConnector) Connect(context.Context) (driver.Conn, error) {
	if c.fail != nil {
		return nil, c.fail
	}
	c.opened.Add(1)
	return &fakeConn{connector: c}, nil
}

func (c *fakeConnector) Driver() driver.Driver { return fakeDriver{c} }

func (c *fakeConnector) statements() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.execLog...)
}

type fakeDriver struct{ c *fakeConnector }

func (d fakeDriver) Open(string) (driver.Conn, error) { return d.c.Connect(context.Background()) }

// fakeConn accepts every statement and returns empty results.
type fakeConn struct {
	connector *fakeConnector
	closed    bool
}

func (c *fakeConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("fake: prepare is not supported")
}

func (c *fakeConn) Close() error {
	if c.closed {
		return errors.New("fake: connection closed twice")
	}
	c.closed = true
	c.connector.closed.Add(1)
	return nil
}

func (c *fakeConn) Begin() (driver.Tx, error) { return fakeTx{}, nil }

func (c *fakeConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	fc := c.connector
	n := fc.active.Add(1)
	defer fc.active.Add(-1)
	for {
		m := fc.maxActive.Load()
		if n <= m || fc.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	fc.execs.Add(1)
	if fc.execDelay > 0 {
		time.Sleep(fc.execDelay)
	}
	fc.mu.Lock()
	fc.execLog = append(fc.execLog, query)
	fc.mu.Unlock()
	return driver.RowsAffected(1), nil
}

func (c *fakeConn) QueryContext(context.Context, string, []driver.NamedValue) (driver.Rows, error) {
	return &fakeRows{}, nil
}

type fakeTx struct{}

func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

type fakeRows struct{}

func (*fakeRows) Columns() []string         { return []string{"n"} }
func (*fakeRows) Close() error              { return nil }
func (*fakeRows) Next([]driver.Value) error { return io.EOF }

var (
	_ driver.Connector      = (*fakeConnector)(nil)
	_ driver.ExecerContext  = (*fakeConn)(nil)
	_ driver.QueryerContext = (*fakeConn)(nil)
)
