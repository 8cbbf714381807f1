package sql

import (
	"database/sql"
	"errors"
	"sync"
)

// ColumnScanner is the interface that wraps the standard
// sql.Rows methods used for scanning database rows.
type ColumnScanner interface {
	Close() error
	ColumnTypes() ([]*sql.ColumnType, error)
	Columns() ([]string, error)
	Err() error
	Next() bool
	NextResultSet() bool
	Scan(dest ...any) error
}

// Rows is a streaming result. It holds the connection handle of the query
// until Close is called or Next returns false, whichever comes first.
type Rows struct {
	ColumnScanner
	release  func() error
	once     sync.Once
	closeErr error
	done     bool
}

func newRows(rows ColumnScanner, release func() error) *Rows {
	return &Rows{ColumnScanner: rows, release: release}
}

// Next advances to the next row. When the result is exhausted the rows are
// closed and the handle is released; Err still reports iteration errors.
func (r *Rows) Next() bool {
	if r.done {
		return false
	}
	if r.ColumnScanner.Next() {
		return true
	}
	_ = r.Close()
	return false
}

// NextResultSet prepares the next result set. It returns false once the rows
// have been closed.
func (r *Rows) NextResultSet() bool {
	if r.done {
		return false
	}
	return r.ColumnScanner.NextResultSet()
}

// Close closes the rows and releases the handle. It is safe to call more than once.
func (r *Rows) Close() error {
	r.once.Do(func() {
		r.done = true
		err := r.ColumnScanner.Close()
		if r.release != nil {
			err = errors.Join(err, r.release())
		}
		r.closeErr = err
	})
	return r.closeErr
}
