package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/syssam/sqlbridge"
	"github.com/syssam/sqlbridge/dialect"
	"github.com/syssam/sqlbridge/schema"
)

// Executor runs containers. It is implemented by Driver and Tx.
type Executor interface {
	Exec(ctx context.Context, c *Container) (Result, error)
	Query(ctx context.Context, c *Container) (*Rows, error)
	InsertID(ctx context.Context, c *Container) (int64, error)
	Container() *Container
}

// ExecQuerier wraps the standard Exec and Query methods. It is implemented
// by *sql.Conn and *sql.Tx.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Driver is the execution façade of one database. Every operation acquires
// a handle from the governor for its intent and releases it on every exit
// path. A Driver is safe for concurrent use.
type Driver struct {
	id        uuid.UUID
	dialect   *dialect.Dialect
	cfg       Config
	db        *sql.DB
	gov       *Governor
	stats     *QueryStats
	opts      *options
	logger    *slog.Logger
	templates *Templates
	closeOnce sync.Once
	closeErr  error
}

// Open opens a Driver for a registered database/sql driver. Importing the
// native package registers the drivers of every supported product.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	connector, err := DriverConnector(cfg.DriverName, cfg.DSN)
	if err != nil {
		return nil, &sqlbridge.ConnectionRejectedError{Dialect: cfg.Dialect.String(), Err: err}
	}
	return OpenConnector(ctx, cfg, connector, opts...)
}

// OpenConnector opens a Driver over an existing connector. cfg.DriverName is
// ignored. Physical connections are opened lazily, except the pinned
// connection of SinglePinned mode and the keep-alive of shared in-memory
// stores, which are opened here.
func OpenConnector(ctx context.Context, cfg Config, connector driver.Connector, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	o := &options{logger: cfg.Logger, slowThreshold: cfg.SlowThreshold}
	for _, opt := range opts {
		opt(o)
	}
	if o.debugLog == nil {
		o.debugLog = func(ctx context.Context, v ...any) {
			o.logger.DebugContext(ctx, fmt.Sprint(v...))
		}
	}
	d := dialect.Get(cfg.Dialect)
	drv := &Driver{
		id:        uuid.New(),
		dialect:   d,
		cfg:       cfg,
		stats:     &QueryStats{},
		opts:      o,
		templates: NewTemplates(),
	}
	drv.logger = o.logger.With("driver", drv.id.String(), "dialect", d.Name())

	floor := d.Floor(cfg.DSN)
	mode := dialect.Effective(cfg.Mode, floor)
	if mode != cfg.Mode {
		drv.logger.Info("connection mode raised to store floor", "requested", cfg.Mode.String(), "mode", mode.String())
	}
	sc := &setupConnector{base: connector, setup: d.SessionSetup(cfg.ReadOnly), stats: drv.stats}
	drv.db = sql.OpenDB(sc)
	if mode == dialect.SinglePinned {
		drv.db.SetMaxOpenConns(1)
		drv.db.SetMaxIdleConns(1)
		drv.db.SetConnMaxLifetime(0)
		drv.db.SetConnMaxIdleTime(0)
	} else {
		drv.db.SetMaxOpenConns(cfg.MaxOpenConns)
		if cfg.MaxIdleConns > 0 {
			drv.db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		drv.db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	drv.gov = &Governor{
		id:      drv.id.String(),
		dialect: d,
		mode:    mode,
		db:      drv.db,
		permit:  semaphore.NewWeighted(1),
		timeout: cfg.AcquireTimeout,
		stats:   drv.stats,
		logger:  drv.logger,
	}

	octx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
	defer cancel()
	if mode == dialect.SinglePinned {
		pinned, err := drv.db.Conn(octx)
		if err != nil {
			return nil, errors.Join(&sqlbridge.ConnectionRejectedError{Dialect: d.Name(), Err: err}, drv.db.Close())
		}
		drv.gov.pinned = pinned
	} else if d.NeedsKeepAlive(cfg.DSN) {
		sentinel, err := sc.Connect(octx)
		if err != nil {
			return nil, errors.Join(&sqlbridge.ConnectionRejectedError{Dialect: d.Name(), Err: err}, drv.db.Close())
		}
		drv.gov.sentinel = sentinel
	}
	drv.logger.Debug("driver opened", "mode", mode.String(), "floor", floor.String())
	return drv, nil
}

// ID returns the instance id of the driver. It tags the driver's log records
// and the AcquisitionTimeoutErrors it returns, telling apart drivers opened on
// the same database.
func (d *Driver) ID() uuid.UUID { return d.id }

// Dialect returns the driver dialect.
func (d *Driver) Dialect() *dialect.Dialect { return d.dialect }

// Mode returns the effective connection mode.
func (d *Driver) Mode() dialect.Mode { return d.gov.mode }

// DB returns the underlying *sql.DB. Statements run on it directly bypass
// the governor.
func (d *Driver) DB() *sql.DB { return d.db }

// Stats returns a snapshot of the driver statistics.
func (d *Driver) Stats() StatsSnapshot { return d.stats.Stats() }

// QueryStats returns the live statistics, e.g. to Reset them.
func (d *Driver) QueryStats() *QueryStats { return d.stats }

// Templates returns the driver's statement template cache.
func (d *Driver) Templates() *Templates { return d.templates }

// Container returns an empty container for the driver dialect.
func (d *Driver) Container() *Container {
	return NewContainer(d.dialect).FoldIdentifiers(d.cfg.FoldIdentifiers)
}

// Acquire returns a connection handle from the governor. Most callers use
// Exec, Query and BeginTx instead.
func (d *Driver) Acquire(ctx context.Context, intent Intent) (*Handle, error) {
	return d.gov.Acquire(ctx, intent)
}

// Exec runs a write statement.
func (d *Driver) Exec(ctx context.Context, c *Container) (res Result, rerr error) {
	query, args, err := c.Query()
	if err != nil {
		return nil, err
	}
	h, err := d.gov.Acquire(ctx, Write)
	if err != nil {
		return nil, err
	}
	defer func() { rerr = errors.Join(rerr, h.Release()) }()
	reset, err := d.maySetVars(ctx, h.conn)
	if err != nil {
		return nil, err
	}
	defer func() { rerr = errors.Join(rerr, reset()) }()
	return d.exec(ctx, h.conn, query, args)
}

// Query runs a read statement. The returned Rows hold the connection handle
// until they are closed or Next returns false.
func (d *Driver) Query(ctx context.Context, c *Container) (*Rows, error) {
	return d.query(ctx, Read, c)
}

// QueryIntent is like Query with an explicit intent, for statements that
// return rows and write, such as INSERT ... RETURNING.
func (d *Driver) QueryIntent(ctx context.Context, intent Intent, c *Container) (*Rows, error) {
	return d.query(ctx, intent, c)
}

func (d *Driver) query(ctx context.Context, intent Intent, c *Container) (*Rows, error) {
	query, args, err := c.Query()
	if err != nil {
		return nil, err
	}
	h, err := d.gov.Acquire(ctx, intent)
	if err != nil {
		return nil, err
	}
	reset, err := d.maySetVars(ctx, h.conn)
	if err != nil {
		return nil, errors.Join(err, h.Release())
	}
	release := func() error { return errors.Join(reset(), h.Release()) }
	rows, err := d.queryOn(ctx, h.conn, query, args)
	if err != nil {
		return nil, errors.Join(err, release())
	}
	return newRows(rows, release), nil
}

// Scalar runs a statement returning at most one row and scans it into dest.
// It returns sql.ErrNoRows, wrapped, when there is no row.
func (d *Driver) Scalar(ctx context.Context, intent Intent, c *Container, dest ...any) (rerr error) {
	query, args, err := c.Query()
	if err != nil {
		return err
	}
	h, err := d.gov.Acquire(ctx, intent)
	if err != nil {
		return err
	}
	defer func() { rerr = errors.Join(rerr, h.Release()) }()
	reset, err := d.maySetVars(ctx, h.conn)
	if err != nil {
		return err
	}
	defer func() { rerr = errors.Join(rerr, reset()) }()
	return d.scalar(ctx, h.conn, query, args, dest)
}

// InsertID runs an insert and returns the generated key, using the statement's
// identity clause when it has one and the driver's LastInsertId otherwise.
func (d *Driver) InsertID(ctx context.Context, c *Container) (int64, error) {
	return insertID(ctx, d.dialect, c,
		func(dest *int64) error { return d.Scalar(ctx, Write, c, dest) },
		func() (Result, error) { return d.Exec(ctx, c) },
	)
}

func insertID(ctx context.Context, d *dialect.Dialect, c *Container, scan func(*int64) error, exec func() (Result, error)) (int64, error) {
	if c.identity {
		var id int64
		if err := scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	if err := d.Require(dialect.FeatureLastInsertID); err != nil {
		return 0, err
	}
	res, err := exec()
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sql: last insert id: %w", err)
	}
	return id, nil
}

// Tx starts a read-write transaction.
func (d *Driver) Tx(ctx context.Context) (*Tx, error) {
	return d.BeginTx(ctx, nil)
}

// BeginTx starts a transaction on one handle, held until Commit or Rollback.
// The handle is acquired with write intent unless opts requests read-only.
func (d *Driver) BeginTx(ctx context.Context, opts *TxOptions) (*Tx, error) {
	intent := Write
	if opts != nil && opts.ReadOnly {
		intent = Read
	}
	if opts == nil && d.cfg.ReadOnly {
		opts = &TxOptions{ReadOnly: true}
		intent = Read
	}
	h, err := d.gov.Acquire(ctx, intent)
	if err != nil {
		return nil, err
	}
	tx, err := h.conn.BeginTx(ctx, opts)
	if err != nil {
		return nil, errors.Join(d.nativeError("begin", "", err), h.Release())
	}
	if d.opts.debug {
		d.opts.debugLog(ctx, "begin transaction")
	}
	return &Tx{drv: d, handle: h, tx: tx}, nil
}

// WithTx runs fn in a transaction, committing if fn returns nil and rolling
// back otherwise.
func (d *Driver) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := d.Tx(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return errors.Join(err, fmt.Errorf("sql: rolling back transaction: %w", rerr))
		}
		return err
	}
	return tx.Commit()
}

// Close closes the pinned connection, the keep-alive and the pool.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		d.templates.Purge()
		d.closeErr = errors.Join(d.gov.close(), d.db.Close())
		d.logger.Debug("driver closed", "stats", d.stats.Stats().String())
	})
	return d.closeErr
}

// Select builds a SELECT over t for the driver dialect.
func (d *Driver) Select(t *schema.Table, opts ...SelectOption) (*Container, error) {
	c := d.Container()
	return c, WriteSelect(c, t, opts...)
}

// Insert returns a clone of the cached INSERT template for t.
func (d *Driver) Insert(t *schema.Table) (*Container, error) {
	return d.template(t, "insert", WriteInsert)
}

// Update returns a clone of the cached UPDATE template for t.
func (d *Driver) Update(t *schema.Table) (*Container, error) {
	return d.template(t, "update", WriteUpdate)
}

// Delete returns a clone of the cached DELETE template for t.
func (d *Driver) Delete(t *schema.Table) (*Container, error) {
	return d.template(t, "delete", WriteDelete)
}

// Upsert returns a clone of the cached upsert template for t.
func (d *Driver) Upsert(t *schema.Table) (*Container, error) {
	return d.template(t, "upsert", WriteUpsert)
}

func (d *Driver) template(t *schema.Table, op string, write func(*Container, *schema.Table) error) (*Container, error) {
	key := CacheKey{
		Dialect:   d.dialect.Name(),
		Table:     t.Schema + "." + t.Name,
		Operation: op,
		Variant:   tableVariant(t),
	}
	return d.templates.Get(key, func() (*Container, error) {
		c := d.Container()
		return c, write(c, t)
	})
}

func (d *Driver) exec(ctx context.Context, ex ExecQuerier, query string, args []any) (Result, error) {
	start := time.Now()
	res, err := ex.ExecContext(ctx, query, args...)
	d.record(ctx, query, args, start, err, false)
	if err != nil {
		return nil, d.nativeError("exec", query, err)
	}
	return res, nil
}

func (d *Driver) queryOn(ctx context.Context, ex ExecQuerier, query string, args []any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := ex.QueryContext(ctx, query, args...)
	d.record(ctx, query, args, start, err, true)
	if err != nil {
		return nil, d.nativeError("query", query, err)
	}
	return rows, nil
}

func (d *Driver) scalar(ctx context.Context, ex ExecQuerier, query string, args, dest []any) error {
	start := time.Now()
	err := ex.QueryRowContext(ctx, query, args...).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		d.record(ctx, query, args, start, nil, true)
		return fmt.Errorf("sql: scalar: %w", err)
	}
	d.record(ctx, query, args, start, err, true)
	if err != nil {
		return d.nativeError("scalar", query, err)
	}
	return nil
}

// nativeError wraps a driver error with its dialect and constraint class.
func (d *Driver) nativeError(op, query string, err error) error {
	return &sqlbridge.NativeExecutionError{
		Dialect: d.dialect.Name(),
		Op:      op,
		Query:   query,
		Class:   Classify(d.dialect.Product(), err),
		Err:     err,
	}
}

// ErrNoRows is returned, wrapped, by Scalar when the statement selects no row.
var ErrNoRows = sql.ErrNoRows

type (
	// Result is an alias to sql.Result.
	Result = sql.Result
	// NullBool is an alias to sql.NullBool.
	NullBool = sql.NullBool
	// NullInt64 is an alias to sql.NullInt64.
	NullInt64 = sql.NullInt64
	// NullString is an alias to sql.NullString.
	NullString = sql.NullString
	// NullFloat64 is an alias to sql.NullFloat64.
	NullFloat64 = sql.NullFloat64
	// NullTime represents a time.Time that may be null.
	NullTime = sql.NullTime
	// TxOptions holds the transaction options to be used in DB.BeginTx.
	TxOptions = sql.TxOptions
)

// NullScanner implements the sql.Scanner interface such that it
// can be used as a scan destination, similar to the types above.
type NullScanner struct {
	S     sql.Scanner
	Valid bool // Valid is true if the Scan value is not NULL.
}

// Scan implements the Scanner interface.
func (n *NullScanner) Scan(value any) error {
	n.Valid = value != nil
	if n.Valid {
		return n.S.Scan(value)
	}
	return nil
}

var (
	_ Executor    = (*Driver)(nil)
	_ ExecQuerier = (*sql.Conn)(nil)
	_ ExecQuerier = (*sql.Tx)(nil)
)
