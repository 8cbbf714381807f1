package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/syssam/sqlbridge"
	"github.com/syssam/sqlbridge/dialect"
)

// Intent declares what an operation will do with its connection.
type Intent int

const (
	// Read operations only query.
	Read Intent = iota
	// Write operations may modify data.
	Write
)

// String returns the intent name.
func (i Intent) String() string {
	if i == Write {
		return "write"
	}
	return "read"
}

// permitWaitLogThreshold is the permit wait above which a debug log is emitted.
const permitWaitLogThreshold = 100 * time.Millisecond

// Governor hands out connection handles according to the effective mode:
//
//   - Pooled: every acquisition takes a pooled connection.
//   - SingleWriter: reads take pooled connections freely, writes queue for
//     one permit first, in FIFO order.
//   - SinglePinned: every acquisition queues for the permit and receives the
//     one pinned connection.
//
// The mode is fixed for the lifetime of the governor.
type Governor struct {
	id       string
	dialect  *dialect.Dialect
	mode     dialect.Mode
	db       *sql.DB
	permit   *semaphore.Weighted
	pinned   *sql.Conn
	sentinel driver.Conn
	timeout  time.Duration
	stats    *QueryStats
	logger   *slog.Logger
	closed   atomic.Bool
}

// Handle is a connection granted by the governor. Release returns it; only
// the first call has an effect.
type Handle struct {
	conn     *sql.Conn
	intent   Intent
	acquired time.Time
	release  func() error
	once     sync.Once
	err      error
}

// Conn returns the underlying connection. It must not be closed directly.
func (h *Handle) Conn() *sql.Conn { return h.conn }

// Intent returns the intent the handle was acquired with.
func (h *Handle) Intent() Intent { return h.intent }

// Release returns the handle to the governor. It is safe to call more than once.
func (h *Handle) Release() error {
	h.once.Do(func() {
		h.err = h.release()
	})
	return h.err
}

// Mode returns the effective connection mode.
func (g *Governor) Mode() dialect.Mode { return g.mode }

// needsPermit reports whether an acquisition of intent queues for the permit.
func (g *Governor) needsPermit(intent Intent) bool {
	switch g.mode {
	case dialect.SinglePinned:
		return true
	case dialect.SingleWriter:
		return intent == Write
	default:
		return false
	}
}

// Acquire returns a connection handle for intent. One deadline, the
// configured acquire timeout, covers the permit wait and the connection
// checkout together. A cancelled ctx aborts the wait and returns the context
// error; in that case no permit is held.
func (g *Governor) Acquire(ctx context.Context, intent Intent) (*Handle, error) {
	if g.closed.Load() {
		return nil, sqlbridge.ErrClosed
	}
	start := time.Now()
	actx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	permit := g.needsPermit(intent)
	if permit {
		if err := g.permit.Acquire(actx, 1); err != nil {
			return nil, g.acquireError(ctx, intent, sqlbridge.WritePermitContention, start, err)
		}
		waited := time.Since(start)
		g.stats.observePermitWait(waited)
		if waited > permitWaitLogThreshold {
			g.logger.DebugContext(ctx, "waited for write permit",
				"dialect", g.dialect.Name(), "mode", g.mode.String(), "intent", intent.String(), "waited", waited)
		}
	}
	if g.mode == dialect.SinglePinned {
		return g.newHandle(g.pinned, intent, func() error {
			g.permit.Release(1)
			return nil
		}), nil
	}
	conn, err := g.db.Conn(actx)
	if err != nil {
		if permit {
			g.permit.Release(1)
		}
		return nil, g.acquireError(ctx, intent, sqlbridge.PoolExhausted, start, err)
	}
	return g.newHandle(conn, intent, func() error {
		err := conn.Close()
		if permit {
			g.permit.Release(1)
		}
		return err
	}), nil
}

func (g *Governor) newHandle(conn *sql.Conn, intent Intent, release func() error) *Handle {
	h := &Handle{conn: conn, intent: intent, acquired: time.Now()}
	h.release = func() error {
		g.stats.observeHold(time.Since(h.acquired))
		return release()
	}
	return h
}

// acquireError maps a failed wait to the error the caller sees: the caller's
// own cancellation, a timeout, or a refused connection.
func (g *Governor) acquireError(ctx context.Context, intent Intent, reason sqlbridge.AcquireReason, start time.Time, err error) error {
	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("sql: acquire %s connection: %w", intent, ctx.Err())
	case errors.Is(err, context.DeadlineExceeded):
		g.stats.AcquireTimeouts.Add(1)
		terr := &sqlbridge.AcquisitionTimeoutError{
			Driver:  g.id,
			Mode:    g.mode.String(),
			Intent:  intent.String(),
			Reason:  reason,
			Waited:  time.Since(start),
			Timeout: g.timeout,
		}
		g.logger.WarnContext(ctx, "connection acquisition timed out",
			"dialect", g.dialect.Name(), "mode", terr.Mode, "intent", terr.Intent, "waited", terr.Waited, "reason", reason.String())
		return terr
	case errors.Is(err, sql.ErrConnDone):
		return sqlbridge.ErrClosed
	default:
		return &sqlbridge.ConnectionRejectedError{Dialect: g.dialect.Name(), Err: err}
	}
}

// close releases the pinned connection and the keep-alive sentinel. The
// caller closes the pool afterwards.
func (g *Governor) close() error {
	if !g.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	if g.pinned != nil {
		errs = append(errs, g.pinned.Close())
	}
	if g.sentinel != nil {
		errs = append(errs, g.sentinel.Close())
	}
	return errors.Join(errs...)
}
