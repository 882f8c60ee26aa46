package table

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/syssam/tableq"
	"github.com/syssam/tableq/dialect"
	"github.com/syssam/tableq/dialect/sql"
)

// Table builds and runs statements against a single database table.
//
// A Table holds no per-statement state: configuration calls return a Query
// and every operation renders its statement from its arguments and that
// Query only. A Table can therefore be shared freely between goroutines.
type Table struct {
	name string
	drv  dialect.ExecQuerier
	keys *KeyCache
	log  *slog.Logger
}

// Option configures a Table.
type Option func(*Table)

// WithKeyCache shares a primary key cache between tables. By default each
// Table has its own.
func WithKeyCache(c *KeyCache) Option {
	return func(t *Table) {
		if c != nil {
			t.keys = c
		}
	}
}

// WithLogger logs every statement at debug level on l.
func WithLogger(l *slog.Logger) Option {
	return func(t *Table) {
		t.log = l
	}
}

// New returns a Table bound to name, running its statements on drv. drv is
// usually a dialect.Driver. A dialect.Tx can be given as well, in which case
// every statement, including multi-row inserts, runs in that transaction.
func New(name string, drv dialect.ExecQuerier, opts ...Option) (*Table, error) {
	if err := sql.CheckBareIdentifier("table", name); err != nil {
		return nil, err
	}
	if drv == nil {
		return nil, fmt.Errorf("tableq: nil driver for table %s", name)
	}
	t := &Table{name: name, drv: drv}
	for _, opt := range opts {
		opt(t)
	}
	if t.keys == nil {
		t.keys = NewKeyCache()
	}
	return t, nil
}

// MustNew is like New but panics on error.
func MustNew(name string, drv dialect.ExecQuerier, opts ...Option) *Table {
	t, err := New(name, drv, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Bind returns a copy of t running its statements on ex, typically a
// transaction. The copy shares the primary key cache of t.
func (t *Table) Bind(ex dialect.ExecQuerier) *Table {
	c := *t
	c.drv = ex
	return &c
}

// Query returns an empty Query on t.
func (t *Table) Query() *Query { return &Query{t: t} }

// Select starts a Query projecting columns.
func (t *Table) Select(columns ...string) *Query { return t.Query().Select(columns...) }

// AppendSpecialCol starts a Query projecting the trusted expression expr.
func (t *Table) AppendSpecialCol(expr string) *Query { return t.Query().AppendSpecialCol(expr) }

// OrderBy starts an ordered Query.
func (t *Table) OrderBy(orders ...Order) *Query { return t.Query().OrderBy(orders...) }

// OrderRows starts a Query ordered by a single column.
func (t *Table) OrderRows(column, direction string) *Query {
	return t.Query().OrderRows(column, direction)
}

// GroupBy starts a grouped Query.
func (t *Table) GroupBy(groups ...Order) *Query { return t.Query().GroupBy(groups...) }

// Limit starts a limited Query.
func (t *Table) Limit(n int) *Query { return t.Query().Limit(n) }

// Join starts a Query with an inner join.
func (t *Table) Join(table string, conds ...JoinCond) *Query {
	return t.Query().Join(table, conds...)
}

// LeftJoin starts a Query with a left join.
func (t *Table) LeftJoin(table string, conds ...JoinCond) *Query {
	return t.Query().LeftJoin(table, conds...)
}

// FilterRows starts a Query with a raw where clause.
func (t *Table) FilterRows(expr string, args ...any) *Query {
	return t.Query().FilterRows(expr, args...)
}

// ArrayFilterRows starts a Query filtered by column/value pairs.
func (t *Table) ArrayFilterRows(filter Pairs) *Query { return t.Query().ArrayFilterRows(filter) }

// query runs a statement returning rows and collects them.
func (t *Table) query(ctx context.Context, op, query string, args []any) (*ResultSet, error) {
	ctx = sql.WithLabel(ctx, t.name, op)
	t.logStatement(ctx, op, query, args)
	rows := &sql.Rows{}
	if err := t.drv.Query(ctx, query, args, rows); err != nil {
		return nil, t.execError(op, err)
	}
	columns, out, err := sql.ScanColumns(rows)
	if err != nil {
		return nil, t.execError(op, err)
	}
	return newResultSet(columns, out), nil
}

// exec runs a statement not returning rows on ex.
func (t *Table) exec(ctx context.Context, ex dialect.ExecQuerier, op, query string, args []any) (sql.Result, error) {
	ctx = sql.WithLabel(ctx, t.name, op)
	t.logStatement(ctx, op, query, args)
	var res sql.Result
	if err := ex.Exec(ctx, query, args, &res); err != nil {
		return nil, t.execError(op, err)
	}
	return res, nil
}

// execError wraps a driver error. Constraint violations are reported as
// tableq.ConstraintError, everything else as tableq.QueryError.
func (t *Table) execError(op string, err error) error {
	if sql.IsConstraintError(err) {
		return tableq.NewConstraintError(err.Error(), err)
	}
	return tableq.NewQueryError(t.name, op, err)
}

func (t *Table) logStatement(ctx context.Context, op, query string, args []any) {
	if t.log == nil {
		return
	}
	t.log.DebugContext(ctx, "tableq: statement",
		slog.String("table", t.name),
		slog.String("op", op),
		slog.String("query", query),
		slog.Any("args", args),
	)
}
