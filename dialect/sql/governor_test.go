package sql

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/sqlbridge"
	"github.com/syssam/sqlbridge/dialect"
)

func openFake(t *testing.T, cfg Config, c *fakeConnector) *Driver {
	t.Helper()
	if cfg.Dialect == 0 {
		cfg.Dialect = dialect.PostgreSQL
	}
	if cfg.DSN == "" {
		cfg.DSN = "fake"
	}
	drv, err := OpenConnector(context.Background(), cfg, c)
	require.NoError(t, err)
	t.Cleanup(func() { _ = drv.Close() })
	return drv
}

func TestGovernorPooled(t *testing.T) {
	drv := openFake(t, Config{Mode: dialect.Pooled, AcquireTimeout: time.Second}, &fakeConnector{})
	assert.Equal(t, dialect.Pooled, drv.Mode())

	ctx := context.Background()
	w1, err := drv.Acquire(ctx, Write)
	require.NoError(t, err)
	w2, err := drv.Acquire(ctx, Write)
	require.NoError(t, err, "pooled writes do not wait for each other")
	assert.NotSame(t, w1.Conn(), w2.Conn())
	assert.Equal(t, Write, w1.Intent())
	require.NoError(t, w1.Release())
	require.NoError(t, w2.Release())
}

func TestGovernorPoolExhausted(t *testing.T) {
	drv := openFake(t, Config{Mode: dialect.Pooled, MaxOpenConns: 1, AcquireTimeout: 50 * time.Millisecond}, &fakeConnector{})
	ctx := context.Background()
	h, err := drv.Acquire(ctx, Read)
	require.NoError(t, err)
	defer h.Release()

	_, err = drv.Acquire(ctx, Read)
	var terr *sqlbridge.AcquisitionTimeoutError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, sqlbridge.PoolExhausted, terr.Reason)
	assert.Equal(t, "read", terr.Intent)
	assert.Equal(t, "pooled", terr.Mode)
	assert.Equal(t, drv.ID().String(), terr.Driver)
	assert.NotEqual(t, uuid.Nil, drv.ID())
	assert.GreaterOrEqual(t, terr.Waited, 50*time.Millisecond)
	assert.Less(t, terr.Waited, 300*time.Millisecond, "fails within a bounded margin of the timeout")
	assert.ErrorIs(t, err, sqlbridge.ErrAcquisitionTimeout)
	assert.EqualValues(t, 1, drv.Stats().AcquireTimeouts)
}

func TestGovernorSingleWriter(t *testing.T) {
	drv := openFake(t, Config{Mode: dialect.SingleWriter, AcquireTimeout: 50 * time.Millisecond}, &fakeConnector{})
	ctx := context.Background()

	w, err := drv.Acquire(ctx, Write)
	require.NoError(t, err)

	// Reads are not blocked by the writer.
	r, err := drv.Acquire(ctx, Read)
	require.NoError(t, err)
	require.NoError(t, r.Release())

	_, err = drv.Acquire(ctx, Write)
	var terr *sqlbridge.AcquisitionTimeoutError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, sqlbridge.WritePermitContention, terr.Reason)
	assert.Equal(t, "single-writer", terr.Mode)
	assert.GreaterOrEqual(t, terr.Waited, 50*time.Millisecond)
	assert.Less(t, terr.Waited, 300*time.Millisecond)

	require.NoError(t, w.Release())
	require.NoError(t, w.Release(), "release is idempotent")

	w, err = drv.Acquire(ctx, Write)
	require.NoError(t, err, "permit is available again after release")
	require.NoError(t, w.Release())
}

func TestGovernorSerializesWrites(t *testing.T) {
	drv := openFake(t, Config{Mode: dialect.SingleWriter, AcquireTimeout: 5 * time.Second}, &fakeConnector{})
	var (
		active  atomic.Int32
		maxSeen atomic.Int32
	)
	g, ctx := errgroup.WithContext(context.Background())
	for range 16 {
		g.Go(func() error {
			h, err := drv.Acquire(ctx, Write)
			if err != nil {
				return err
			}
			n := active.Add(1)
			for {
				m := maxSeen.Load()
				if n <= m || maxSeen.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
			return h.Release()
		})
	}
	require.NoError(t, g.Wait())
	assert.EqualValues(t, 1, maxSeen.Load())
}

func TestSingleWriterExecSpans(t *testing.T) {
	const (
		writers = 8
		writes  = 10
	)
	c := &fakeConnector{execDelay: time.Millisecond}
	drv := openFake(t, Config{Mode: dialect.SingleWriter, AcquireTimeout: 10 * time.Second}, c)
	g, ctx := errgroup.WithContext(context.Background())
	for w := range writers {
		g.Go(func() error {
			for i := range writes {
				q := drv.Container().Append("UPDATE counters SET n = n + 1 WHERE id = ").
					Arg(RoleWhere, dialect.KindInteger, w*writes+i)
				if _, err := drv.Exec(ctx, q); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.EqualValues(t, writers*writes, c.execs.Load(), "every write reached the driver")
	assert.EqualValues(t, 1, c.maxActive.Load(), "no two native writes overlapped")
	assert.EqualValues(t, writers*writes, drv.Stats().TotalExecs)
}

func TestGovernorFIFO(t *testing.T) {
	drv := openFake(t, Config{Mode: dialect.SingleWriter, AcquireTimeout: 5 * time.Second}, &fakeConnector{})
	ctx := context.Background()
	h, err := drv.Acquire(ctx, Write)
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := drv.Acquire(ctx, Write)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			assert.NoError(t, w.Release())
		}()
		// Let the waiter queue before starting the next one.
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, h.Release())
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestGovernorCancel(t *testing.T) {
	drv := openFake(t, Config{Mode: dialect.SingleWriter, AcquireTimeout: 5 * time.Second}, &fakeConnector{})
	h, err := drv.Acquire(context.Background(), Write)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := drv.Acquire(ctx, Write)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	err = <-done
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, sqlbridge.IsAcquisitionTimeout(err), "cancellation is not a timeout")

	require.NoError(t, h.Release())
	h, err = drv.Acquire(context.Background(), Write)
	require.NoError(t, err, "a cancelled waiter does not keep the permit")
	require.NoError(t, h.Release())
}

func TestGovernorSinglePinned(t *testing.T) {
	c := &fakeConnector{}
	drv := openFake(t, Config{Mode: dialect.SinglePinned, AcquireTimeout: 50 * time.Millisecond}, c)
	assert.EqualValues(t, 1, c.opened.Load(), "pinned connection is opened eagerly")

	ctx := context.Background()
	r, err := drv.Acquire(ctx, Read)
	require.NoError(t, err)
	pinned := r.Conn()

	_, err = drv.Acquire(ctx, Read)
	var terr *sqlbridge.AcquisitionTimeoutError
	require.ErrorAs(t, err, &terr, "reads wait for the pinned connection too")
	assert.Equal(t, "single-pinned", terr.Mode)
	assert.Less(t, terr.Waited, 300*time.Millisecond)
	require.NoError(t, r.Release())

	w, err := drv.Acquire(ctx, Write)
	require.NoError(t, err)
	assert.Same(t, pinned, w.Conn())
	require.NoError(t, w.Release())
	assert.EqualValues(t, 1, c.opened.Load())
	assert.Zero(t, c.closed.Load(), "releasing does not close the pinned connection")

	require.NoError(t, drv.Close())
	assert.EqualValues(t, 1, c.closed.Load())
}

func TestGovernorFloor(t *testing.T) {
	tests := []struct {
		dsn       string
		requested dialect.Mode
		want      dialect.Mode
	}{
		{dsn: "file:app.db", requested: dialect.Pooled, want: dialect.SingleWriter},
		{dsn: "file:app.db", requested: dialect.SinglePinned, want: dialect.SinglePinned},
		{dsn: ":memory:", requested: dialect.Pooled, want: dialect.SinglePinned},
		{dsn: "file:mem?mode=memory&cache=shared", requested: dialect.Pooled, want: dialect.SingleWriter},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			drv := openFake(t, Config{Dialect: dialect.SQLite, DSN: tt.dsn, Mode: tt.requested}, &fakeConnector{})
			assert.Equal(t, tt.want, drv.Mode())
		})
	}
}

func TestGovernorSharedMemoryKeepAlive(t *testing.T) {
	c := &fakeConnector{}
	drv := openFake(t, Config{Dialect: dialect.SQLite, DSN: "file:mem?mode=memory&cache=shared"}, c)
	assert.EqualValues(t, 1, c.opened.Load(), "keep-alive connection is opened eagerly")
	assert.Contains(t, c.statements(), "PRAGMA foreign_keys = ON", "keep-alive runs the session setup")

	h, err := drv.Acquire(context.Background(), Read)
	require.NoError(t, err)
	require.NoError(t, h.Release())
	assert.EqualValues(t, 2, c.opened.Load(), "the pool does not use the keep-alive")

	require.NoError(t, drv.Close())
	assert.EqualValues(t, 2, c.closed.Load())
}

func TestGovernorConnectionRejected(t *testing.T) {
	c := &fakeConnector{fail: errors.New("login failed")}
	drv := openFake(t, Config{AcquireTimeout: time.Second}, c)
	_, err := drv.Acquire(context.Background(), Read)
	var rerr *sqlbridge.ConnectionRejectedError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "postgres", rerr.Dialect)
	assert.ErrorContains(t, err, "login failed")
	assert.ErrorIs(t, err, sqlbridge.ErrConnectionRejected)

	_, err = OpenConnector(context.Background(), Config{Dialect: dialect.PostgreSQL, DSN: "fake", Mode: dialect.SinglePinned}, c)
	require.ErrorAs(t, err, &rerr, "eager pinned open reports the rejection")
}

func TestGovernorClosed(t *testing.T) {
	drv := openFake(t, Config{}, &fakeConnector{})
	require.NoError(t, drv.Close())
	require.NoError(t, drv.Close(), "close is idempotent")
	_, err := drv.Acquire(context.Background(), Read)
	assert.ErrorIs(t, err, sqlbridge.ErrClosed)
}

func TestGovernorHoldStats(t *testing.T) {
	drv := openFake(t, Config{Mode: dialect.SingleWriter}, &fakeConnector{})
	h, err := drv.Acquire(context.Background(), Write)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, h.Release())
	s := drv.Stats()
	assert.EqualValues(t, 1, s.Hold.Count)
	assert.GreaterOrEqual(t, s.Hold.Max, 5*time.Millisecond)
	assert.EqualValues(t, 1, s.PermitWait.Count)
	assert.EqualValues(t, 1, s.Open.Count)
}
