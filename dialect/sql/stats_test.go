package sql

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservoir(t *testing.T) {
	var r reservoir
	assert.Zero(t, r.snapshot())

	for i := 1; i <= 100; i++ {
		r.observe(time.Duration(i) * time.Millisecond)
	}
	s := r.snapshot()
	assert.EqualValues(t, 100, s.Count)
	assert.Equal(t, 5050*time.Millisecond, s.Total)
	assert.Equal(t, 50500*time.Microsecond, s.Avg)
	assert.Equal(t, 95*time.Millisecond, s.P95)
	assert.Equal(t, 99*time.Millisecond, s.P99)
	assert.Equal(t, 100*time.Millisecond, s.Max)

	r.reset()
	assert.Zero(t, r.snapshot().Count)
}

func TestReservoirWindow(t *testing.T) {
	var r reservoir
	for range reservoirSize {
		r.observe(time.Second)
	}
	for range reservoirSize {
		r.observe(time.Millisecond)
	}
	s := r.snapshot()
	assert.EqualValues(t, 2*reservoirSize, s.Count)
	assert.Equal(t, time.Millisecond, s.P99, "percentiles only cover recent samples")
	assert.Equal(t, time.Second, s.Max)
}

func TestQueryStats(t *testing.T) {
	var s QueryStats
	s.TotalQueries.Add(3)
	s.TotalExecs.Add(2)
	s.command.observe(10 * time.Millisecond)
	s.command.observe(30 * time.Millisecond)
	s.observeHold(time.Millisecond)

	snap := s.Stats()
	assert.EqualValues(t, 3, snap.TotalQueries)
	assert.EqualValues(t, 2, snap.TotalExecs)
	assert.Equal(t, 20*time.Millisecond, snap.AvgQueryDuration())
	assert.Contains(t, snap.String(), "queries=3 execs=2")

	s.Reset()
	snap = s.Stats()
	assert.Zero(t, snap.TotalQueries)
	assert.Zero(t, snap.Hold.Count)
}

func TestDriverRecord(t *testing.T) {
	var (
		hooked []string
		logged []any
	)
	drv := &Driver{stats: &QueryStats{}, opts: &options{
		slowThreshold: time.Millisecond,
		slowHook: func(_ context.Context, query string, _ []any, _ time.Duration) {
			hooked = append(hooked, query)
		},
	}}
	WithDebugLog(func(_ context.Context, v ...any) { logged = append(logged, v...) })(drv.opts)

	drv.record(context.Background(), "SELECT 1", nil, time.Now(), nil, true)
	drv.record(context.Background(), "UPDATE t", nil, time.Now().Add(-time.Second), assert.AnError, false)

	snap := drv.Stats()
	assert.EqualValues(t, 1, snap.TotalQueries)
	assert.EqualValues(t, 1, snap.TotalExecs)
	assert.EqualValues(t, 1, snap.Errors)
	assert.EqualValues(t, 1, snap.SlowQueries)
	require.Equal(t, []string{"UPDATE t"}, hooked)
	assert.Len(t, logged, 2)
}
