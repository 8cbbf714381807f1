package sql

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// reservoirSize is the number of most recent samples percentiles are computed over.
const reservoirSize = 1024

// reservoir keeps running totals and a ring of recent samples.
type reservoir struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	count   int64
	total   time.Duration
	max     time.Duration
}

func (r *reservoir) observe(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.samples) < reservoirSize {
		r.samples = append(r.samples, d)
	} else {
		r.samples[r.next] = d
		r.next = (r.next + 1) % reservoirSize
	}
	r.count++
	r.total += d
	r.max = max(r.max, d)
}

func (r *reservoir) snapshot() DurationStats {
	r.mu.Lock()
	sorted := slices.Clone(r.samples)
	s := DurationStats{Count: r.count, Total: r.total, Max: r.max}
	r.mu.Unlock()
	if s.Count == 0 {
		return s
	}
	slices.Sort(sorted)
	s.Avg = s.Total / time.Duration(s.Count)
	s.P95 = percentile(sorted, 0.95)
	s.P99 = percentile(sorted, 0.99)
	return s
}

func (r *reservoir) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples, r.next, r.count, r.total, r.max = r.samples[:0], 0, 0, 0, 0
}

// percentile returns the nearest-rank percentile of sorted samples.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(p*float64(len(sorted))+0.999999) - 1
	return sorted[min(max(rank, 0), len(sorted)-1)]
}

// DurationStats summarizes one latency series. Percentiles cover the most
// recent samples; Count, Total and Avg cover the whole lifetime.
type DurationStats struct {
	Count int64
	Total time.Duration
	Avg   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
}

// String returns a compact summary.
func (s DurationStats) String() string {
	return fmt.Sprintf("n=%d avg=%s p95=%s p99=%s max=%s", s.Count, s.Avg, s.P95, s.P99, s.Max)
}

// QueryStats holds the driver counters and latency series.
type QueryStats struct {
	// TotalQueries is the number of statements run through Query or Scalar.
	TotalQueries atomic.Int64
	// TotalExecs is the number of statements run through Exec.
	TotalExecs atomic.Int64
	// SlowQueries is the count of statements exceeding the slow threshold.
	SlowQueries atomic.Int64
	// Errors is the count of failed statements.
	Errors atomic.Int64
	// AcquireTimeouts is the count of acquisitions that ran out of time.
	AcquireTimeouts atomic.Int64

	open       reservoir // physical connection open, session setup included
	hold       reservoir // handle acquired to released
	command    reservoir // statement execution
	permitWait reservoir // time spent queued for the write permit
}

func (s *QueryStats) observeOpen(d time.Duration)       { s.open.observe(d) }
func (s *QueryStats) observeHold(d time.Duration)       { s.hold.observe(d) }
func (s *QueryStats) observePermitWait(d time.Duration) { s.permitWait.observe(d) }

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:    s.TotalQueries.Load(),
		TotalExecs:      s.TotalExecs.Load(),
		SlowQueries:     s.SlowQueries.Load(),
		Errors:          s.Errors.Load(),
		AcquireTimeouts: s.AcquireTimeouts.Load(),
		Open:            s.open.snapshot(),
		Hold:            s.hold.snapshot(),
		Command:         s.command.snapshot(),
		PermitWait:      s.permitWait.snapshot(),
	}
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	s.TotalQueries.Store(0)
	s.TotalExecs.Store(0)
	s.SlowQueries.Store(0)
	s.Errors.Store(0)
	s.AcquireTimeouts.Store(0)
	s.open.reset()
	s.hold.reset()
	s.command.reset()
	s.permitWait.reset()
}

// StatsSnapshot is a point-in-time snapshot of driver statistics.
type StatsSnapshot struct {
	TotalQueries    int64
	TotalExecs      int64
	SlowQueries     int64
	Errors          int64
	AcquireTimeouts int64

	Open       DurationStats
	Hold       DurationStats
	Command    DurationStats
	PermitWait DurationStats
}

// AvgQueryDuration returns the average statement duration.
func (s StatsSnapshot) AvgQueryDuration() time.Duration {
	return s.Command.Avg
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d execs=%d slow=%d errors=%d timeouts=%d command=[%s] hold=[%s] open=[%s] wait=[%s]",
		s.TotalQueries, s.TotalExecs, s.SlowQueries, s.Errors, s.AcquireTimeouts,
		s.Command, s.Hold, s.Open, s.PermitWait,
	)
}

// SlowQueryHook is a function called when a slow statement is detected.
type SlowQueryHook func(ctx context.Context, query string, args []any, duration time.Duration)

// record accounts one executed statement.
func (d *Driver) record(ctx context.Context, query string, args []any, start time.Time, err error, isQuery bool) {
	duration := time.Since(start)
	if isQuery {
		d.stats.TotalQueries.Add(1)
	} else {
		d.stats.TotalExecs.Add(1)
	}
	d.stats.command.observe(duration)
	if err != nil {
		d.stats.Errors.Add(1)
	}
	if d.opts.debug {
		d.opts.debugLog(ctx, fmt.Sprintf("query: %s args: %v duration: %s", query, args, duration))
	}
	if threshold := d.opts.slowThreshold; threshold > 0 && duration > threshold {
		d.stats.SlowQueries.Add(1)
		if d.opts.slowHook != nil {
			d.opts.slowHook(ctx, query, args, duration)
		}
	}
}

// Option configures a Driver.
type Option func(*options)

type options struct {
	logger        *slog.Logger
	slowThreshold time.Duration
	slowHook      SlowQueryHook
	debug         bool
	debugLog      func(context.Context, ...any)
}

// WithLogger sets the structured logger. It overrides Config.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithSlowThreshold sets the threshold for slow statement detection.
// Statements taking longer than this duration are counted as slow.
// It overrides Config.SlowThreshold.
func WithSlowThreshold(d time.Duration) Option {
	return func(o *options) {
		o.slowThreshold = d
	}
}

// WithSlowQueryHook sets a callback function for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) Option {
	return func(o *options) {
		o.slowHook = hook
	}
}

// WithSlowQueryLog logs slow statements to the driver logger.
// This is a convenience wrapper around WithSlowQueryHook.
func WithSlowQueryLog() Option {
	return func(o *options) {
		o.slowHook = func(ctx context.Context, query string, args []any, duration time.Duration) {
			o.logger.WarnContext(ctx, "slow query detected", "duration", duration, "query", query, "args", args)
		}
	}
}

// WithDebug logs every statement at debug level on the driver logger.
func WithDebug() Option {
	return func(o *options) {
		o.debug = true
	}
}

// WithDebugLog logs every statement with a custom log function.
func WithDebugLog(logFunc func(context.Context, ...any)) Option {
	return func(o *options) {
		o.debug = true
		o.debugLog = logFunc
	}
}
