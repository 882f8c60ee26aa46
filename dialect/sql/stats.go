package sql

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/tableq/dialect"
)

// Label names the table and the operation a statement was built for.
type Label struct {
	Table string
	Op    string
}

// String returns "table op", or the op alone for unlabeled tables.
func (l Label) String() string {
	if l.Table == "" {
		return l.Op
	}
	return l.Table + " " + l.Op
}

type labelKey struct{}

// WithLabel returns a copy of ctx labeling the statements run with it.
func WithLabel(ctx context.Context, table, op string) context.Context {
	return context.WithValue(ctx, labelKey{}, Label{Table: table, Op: op})
}

// LabelFromContext returns the label attached to ctx with WithLabel.
func LabelFromContext(ctx context.Context) (Label, bool) {
	l, ok := ctx.Value(labelKey{}).(Label)
	return l, ok
}

// OpStats counts the statements of one label.
type OpStats struct {
	Queries  int64
	Execs    int64
	Errors   int64
	Slow     int64
	Duration time.Duration
}

func (s *OpStats) add(query bool, d time.Duration, failed, slow bool) {
	if query {
		s.Queries++
	} else {
		s.Execs++
	}
	if failed {
		s.Errors++
	}
	if slow {
		s.Slow++
	}
	s.Duration += d
}

func (s OpStats) String() string {
	return fmt.Sprintf("queries=%d execs=%d errors=%d slow=%d duration=%s",
		s.Queries, s.Execs, s.Errors, s.Slow, s.Duration)
}

// StatsSnapshot is a point-in-time copy of the statistics of a StatsDriver.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
	// Ops holds the statistics of labeled statements, keyed by label.
	Ops map[Label]OpStats
}

// String returns a one line summary of the totals.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf("queries=%d execs=%d errors=%d slow=%d duration=%s",
		s.TotalQueries, s.TotalExecs, s.Errors, s.SlowQueries, s.TotalDuration)
}

// Labels returns the labels of s sorted by table, then op.
func (s StatsSnapshot) Labels() []Label {
	return slices.SortedFunc(maps.Keys(s.Ops), func(a, b Label) int {
		if c := strings.Compare(a.Table, b.Table); c != 0 {
			return c
		}
		return strings.Compare(a.Op, b.Op)
	})
}

// SlowQuery describes a statement slower than the threshold.
type SlowQuery struct {
	Label    Label
	Query    string
	Args     []any
	Duration time.Duration
}

// SlowQueryHook is called for every statement slower than the threshold.
type SlowQueryHook func(ctx context.Context, q SlowQuery)

// StatsDriver wraps a Driver with statement statistics.
type StatsDriver struct {
	dialect.Driver
	threshold time.Duration
	hook      SlowQueryHook

	mu    sync.Mutex
	total OpStats
	ops   map[Label]*OpStats
}

// StatsOption configures the StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the duration above which a statement counts as
// slow. Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.threshold = d
	}
}

// WithSlowQueryHook sets the function called for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) {
		s.hook = hook
	}
}

// WithSlowQueryLog logs slow statements at warn level on the default logger.
func WithSlowQueryLog() StatsOption {
	return WithSlowQueryHook(func(ctx context.Context, q SlowQuery) {
		slog.WarnContext(ctx, "tableq: slow statement",
			slog.String("table", q.Label.Table),
			slog.String("op", q.Label.Op),
			slog.Duration("duration", q.Duration),
			slog.String("query", q.Query),
			slog.Any("args", q.Args),
		)
	})
}

// NewStatsDriver wraps drv with statistics collection.
//
//	drv := sql.NewStatsDriver(base, sql.WithSlowThreshold(200*time.Millisecond), sql.WithSlowQueryLog())
//	users, _ := table.New("users", drv)
//	...
//	for _, l := range drv.Stats().Labels() { ... }
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		Driver:    drv,
		threshold: 100 * time.Millisecond,
		ops:       make(map[Label]*OpStats),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats returns a snapshot of the statistics.
func (d *StatsDriver) Stats() StatsSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	ops := make(map[Label]OpStats, len(d.ops))
	for l, s := range d.ops {
		ops[l] = *s
	}
	return StatsSnapshot{
		TotalQueries:  d.total.Queries,
		TotalExecs:    d.total.Execs,
		TotalDuration: d.total.Duration,
		SlowQueries:   d.total.Slow,
		Errors:        d.total.Errors,
		Ops:           ops,
	}
}

// Query executes a query and records statistics.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Query(ctx, query, args, v)
	d.record(ctx, query, args, start, err, true)
	return err
}

// Exec executes a statement and records statistics.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Exec(ctx, query, args, v)
	d.record(ctx, query, args, start, err, false)
	return err
}

func (d *StatsDriver) record(ctx context.Context, query string, args any, start time.Time, err error, isQuery bool) {
	duration := time.Since(start)
	slow := duration > d.threshold
	label, labeled := LabelFromContext(ctx)

	d.mu.Lock()
	d.total.add(isQuery, duration, err != nil, slow)
	if labeled {
		s, ok := d.ops[label]
		if !ok {
			s = &OpStats{}
			d.ops[label] = s
		}
		s.add(isQuery, duration, err != nil, slow)
	}
	d.mu.Unlock()

	if slow && d.hook != nil {
		argv, _ := args.([]any)
		d.hook(ctx, SlowQuery{Label: label, Query: query, Args: argv, Duration: duration})
	}
}

// Tx starts a transaction that also records statistics.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsTx{Tx: tx, driver: d}, nil
}

// StatsTx wraps a transaction with statistics collection.
type StatsTx struct {
	dialect.Tx
	driver *StatsDriver
}

// Query executes a query within the transaction and records statistics.
func (tx *StatsTx) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Query(ctx, query, args, v)
	tx.driver.record(ctx, query, args, start, err, true)
	return err
}

// Exec executes a statement within the transaction and records statistics.
func (tx *StatsTx) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Exec(ctx, query, args, v)
	tx.driver.record(ctx, query, args, start, err, false)
	return err
}

// StatsOf returns the StatsDriver of drv, looking through a DebugDriver.
func StatsOf(drv dialect.Driver) (*StatsDriver, bool) {
	if d, ok := drv.(*DebugDriver); ok {
		drv = d.Driver
	}
	s, ok := drv.(*StatsDriver)
	return s, ok
}

// DebugDriver wraps a Driver with debug logging.
type DebugDriver struct {
	dialect.Driver
	log func(context.Context, ...any)
}

// DebugOption configures the DebugDriver.
type DebugOption func(*DebugDriver)

// DebugWithLog sets a custom log function.
func DebugWithLog(logFunc func(context.Context, ...any)) DebugOption {
	return func(d *DebugDriver) {
		d.log = logFunc
	}
}

// NewDebugDriver wraps a Driver with debug logging. Lines go to slog.Info
// unless DebugWithLog is given.
func NewDebugDriver(drv dialect.Driver, opts ...DebugOption) *DebugDriver {
	d := &DebugDriver{
		Driver: drv,
		log: func(ctx context.Context, v ...any) {
			slog.InfoContext(ctx, fmt.Sprint(v...))
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// statement formats a log line, naming the label of ctx when present.
func statement(ctx context.Context, method, query string, args any) string {
	if l, ok := LabelFromContext(ctx); ok {
		return fmt.Sprintf("%s(%s): query=%v args=%v", method, l, query, args)
	}
	return fmt.Sprintf("%s: query=%v args=%v", method, query, args)
}

// Query executes a query and logs it.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	d.log(ctx, statement(ctx, "driver.Query", query, args))
	return d.Driver.Query(ctx, query, args, v)
}

// Exec executes a statement and logs it.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	d.log(ctx, statement(ctx, "driver.Exec", query, args))
	return d.Driver.Exec(ctx, query, args, v)
}

// Tx starts a transaction with debug logging. Every statement logged within
// the transaction carries the same random transaction id.
func (d *DebugDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	id := uuid.New().String()
	d.log(ctx, fmt.Sprintf("driver.Tx(%s): started", id))
	return &DebugTx{Tx: tx, id: id, log: d.log, ctx: ctx}, nil
}

// DebugTx wraps a transaction with debug logging.
type DebugTx struct {
	dialect.Tx
	id  string
	log func(context.Context, ...any)
	ctx context.Context
}

// ID returns the transaction id used in log lines.
func (tx *DebugTx) ID() string { return tx.id }

// Query executes a query within the transaction and logs it.
func (tx *DebugTx) Query(ctx context.Context, query string, args, v any) error {
	tx.log(ctx, statement(ctx, "Tx("+tx.id+").Query", query, args))
	return tx.Tx.Query(ctx, query, args, v)
}

// Exec executes a statement within the transaction and logs it.
func (tx *DebugTx) Exec(ctx context.Context, query string, args, v any) error {
	tx.log(ctx, statement(ctx, "Tx("+tx.id+").Exec", query, args))
	return tx.Tx.Exec(ctx, query, args, v)
}

// Commit commits the transaction and logs it.
func (tx *DebugTx) Commit() error {
	tx.log(tx.ctx, fmt.Sprintf("Tx(%s): committed", tx.id))
	return tx.Tx.Commit()
}

// Rollback rolls back the transaction and logs it.
func (tx *DebugTx) Rollback() error {
	tx.log(tx.ctx, fmt.Sprintf("Tx(%s): rolled back", tx.id))
	return tx.Tx.Rollback()
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Tx     = (*StatsTx)(nil)
	_ dialect.Driver = (*DebugDriver)(nil)
	_ dialect.Tx     = (*DebugTx)(nil)
)
