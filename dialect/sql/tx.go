package sql

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

// Tx is a transaction pinned to one connection handle. Commit and Rollback
// end the transaction and release the handle exactly once.
type Tx struct {
	drv    *Driver
	handle *Handle
	tx     *sql.Tx
	vars   sync.Map // session variable names already set on this transaction
}

// Container returns an empty container for the driver dialect.
func (t *Tx) Container() *Container { return t.drv.Container() }

// Exec runs a statement in the transaction.
func (t *Tx) Exec(ctx context.Context, c *Container) (Result, error) {
	query, args, err := c.Query()
	if err != nil {
		return nil, err
	}
	if err := t.maySetVars(ctx); err != nil {
		return nil, err
	}
	return t.drv.exec(ctx, t.tx, query, args)
}

// Query runs a query in the transaction. The rows must be closed before the
// transaction ends.
func (t *Tx) Query(ctx context.Context, c *Container) (*Rows, error) {
	query, args, err := c.Query()
	if err != nil {
		return nil, err
	}
	if err := t.maySetVars(ctx); err != nil {
		return nil, err
	}
	rows, err := t.drv.queryOn(ctx, t.tx, query, args)
	if err != nil {
		return nil, err
	}
	return newRows(rows, nil), nil
}

// Scalar runs a single-row query in the transaction and scans it into dest.
func (t *Tx) Scalar(ctx context.Context, c *Container, dest ...any) error {
	query, args, err := c.Query()
	if err != nil {
		return err
	}
	if err := t.maySetVars(ctx); err != nil {
		return err
	}
	return t.drv.scalar(ctx, t.tx, query, args, dest)
}

// InsertID runs an insert in the transaction and returns the generated key.
func (t *Tx) InsertID(ctx context.Context, c *Container) (int64, error) {
	return insertID(ctx, t.drv.dialect, c,
		func(dest *int64) error { return t.Scalar(ctx, c, dest) },
		func() (Result, error) { return t.Exec(ctx, c) },
	)
}

// maySetVars sets context session variables once per transaction. They live
// until the transaction ends and the handle is released.
func (t *Tx) maySetVars(ctx context.Context) error {
	sv, _ := ctx.Value(ctxVarsKey{}).(sessionVars)
	if len(sv.vars) == 0 {
		return nil
	}
	pending := sessionVars{}
	for _, s := range sv.vars {
		if v, ok := t.vars.Load(s.k); ok && v == s.v {
			continue
		}
		pending.vars = append(pending.vars, s)
	}
	if len(pending.vars) == 0 {
		return nil
	}
	if _, err := setVars(context.WithValue(ctx, ctxVarsKey{}, pending), t.drv, t.tx, false); err != nil {
		return err
	}
	for _, s := range pending.vars {
		t.vars.Store(s.k, s.v)
	}
	return nil
}

// Commit commits the transaction and releases its handle.
func (t *Tx) Commit() error {
	err := t.tx.Commit()
	if t.drv.opts.debug {
		t.drv.opts.debugLog(context.Background(), "commit transaction")
	}
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		err = t.drv.nativeError("commit", "", err)
	}
	return errors.Join(err, t.release())
}

// Rollback rolls back the transaction and releases its handle.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if t.drv.opts.debug {
		t.drv.opts.debugLog(context.Background(), "rollback transaction")
	}
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		err = t.drv.nativeError("rollback", "", err)
	}
	return errors.Join(err, t.release())
}

// release resets variables the transaction set on the session and returns
// the handle. Only the first call has an effect.
func (t *Tx) release() error {
	var reset []string
	t.vars.Range(func(k, _ any) bool {
		if stmt, err := t.drv.dialect.ResetVar(k.(string)); err == nil {
			reset = append(reset, stmt)
		}
		return true
	})
	var err error
	if len(reset) > 0 {
		t.vars.Clear()
		err = runReset(t.handle.conn, reset)
	}
	return errors.Join(err, t.handle.Release())
}

var _ Executor = (*Tx)(nil)
