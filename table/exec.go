package table

import (
	"context"
	"fmt"
	"strconv"

	"github.com/syssam/tableq"
	"github.com/syssam/tableq/dialect/sql"
)

// RowFunc handles a row read by an operation. It receives the Table the
// operation ran on, so it can issue follow-up statements.
type RowFunc func(ctx context.Context, t *Table, row Row) error

// TableFunc is called by operations that found nothing, or for existence
// checks, with the Table the operation ran on.
type TableFunc func(ctx context.Context, t *Table) error

// GetAllRows returns every row matching the Query.
func (q *Query) GetAllRows(ctx context.Context) (*ResultSet, error) {
	query, args, err := q.Build()
	if err != nil {
		return nil, err
	}
	return q.t.query(ctx, "select", query, args)
}

// Get returns the first row matching filter, or nil if there is none.
// found is called with the row, nothing when there is no row; both may be nil.
func (q *Query) Get(ctx context.Context, filter Pairs, found RowFunc, nothing TableFunc) (Row, error) {
	query, args, err := q.selectSQL(selectSpec{filter: filter, limit: 1})
	if err != nil {
		return nil, err
	}
	rs, err := q.t.query(ctx, "select", query, args)
	if err != nil {
		return nil, err
	}
	row := rs.First()
	if err := q.t.dispatch(ctx, rs, found, nothing); err != nil {
		return row, err
	}
	return row, nil
}

// With returns the rows matching filter, calling found for each of them in
// order, or nothing if there are none. Iteration stops at the first error
// returned by found.
func (q *Query) With(ctx context.Context, filter Pairs, found RowFunc, nothing TableFunc) (*ResultSet, error) {
	query, args, err := q.selectSQL(selectSpec{filter: filter, limit: q.limit})
	if err != nil {
		return nil, err
	}
	rs, err := q.t.query(ctx, "select", query, args)
	if err != nil {
		return nil, err
	}
	return rs, q.t.dispatch(ctx, rs, found, nothing)
}

// GetItemsByColumn returns the rows matching filter. With unique set, at
// most one row is returned.
func (q *Query) GetItemsByColumn(ctx context.Context, filter Pairs, unique bool) (*ResultSet, error) {
	limit := q.limit
	if unique {
		limit = 1
	}
	query, args, err := q.selectSQL(selectSpec{filter: filter, limit: limit})
	if err != nil {
		return nil, err
	}
	return q.t.query(ctx, "select", query, args)
}

// GetItemsBy returns the rows whose column equals value.
func (q *Query) GetItemsBy(ctx context.Context, column string, value any, unique bool) (*ResultSet, error) {
	return q.GetItemsByColumn(ctx, Pairs{P(column, value)}, unique)
}

// GetItemByID returns the rows whose primary key equals id. The primary key
// column is looked up once per table and cached.
func (q *Query) GetItemByID(ctx context.Context, id any, unique bool) (*ResultSet, error) {
	if q.err != nil {
		return nil, q.err
	}
	pk, ok, err := q.t.PrimaryKey(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, tableq.NewNotFoundErrorWithKey("primary key", q.t.name)
	}
	return q.GetItemsBy(ctx, pk, id, unique)
}

// RowExists reports whether a row satisfies the trusted expression expr.
// An empty expr checks whether the table has any row.
func (q *Query) RowExists(ctx context.Context, expr string, args ...any) (bool, error) {
	return q.FilterRows(expr, args...).exists(ctx, nil)
}

// Has reports whether a row matches filter, calling does or doesNot
// accordingly; both may be nil.
func (q *Query) Has(ctx context.Context, filter Pairs, does, doesNot TableFunc) (bool, error) {
	ok, err := q.exists(ctx, filter)
	if err != nil {
		return false, err
	}
	fn := doesNot
	if ok {
		fn = does
	}
	if fn != nil {
		return ok, fn(ctx, q.t)
	}
	return ok, nil
}

// IfHas calls fn if a row matches filter.
func (q *Query) IfHas(ctx context.Context, filter Pairs, fn TableFunc) (bool, error) {
	return q.Has(ctx, filter, fn, nil)
}

// IfHasNot calls fn if no row matches filter.
func (q *Query) IfHasNot(ctx context.Context, filter Pairs, fn TableFunc) (bool, error) {
	return q.Has(ctx, filter, nil, fn)
}

func (q *Query) exists(ctx context.Context, filter Pairs) (bool, error) {
	query, args, err := q.selectSQL(selectSpec{projection: "1", filter: filter, limit: 1, aggregate: true})
	if err != nil {
		return false, err
	}
	rs, err := q.t.query(ctx, "select", query, args)
	if err != nil {
		return false, err
	}
	return rs.Len() > 0, nil
}

// GetTotal returns the number of rows matching filter.
func (q *Query) GetTotal(ctx context.Context, filter Pairs) (int64, error) {
	query, args, err := q.selectSQL(selectSpec{projection: "count(*)", filter: filter, aggregate: true})
	if err != nil {
		return 0, err
	}
	rs, err := q.t.query(ctx, "select", query, args)
	if err != nil {
		return 0, err
	}
	n, err := toInt64(rs.scalar())
	if err != nil {
		return 0, tableq.NewQueryError(q.t.name, "count", err)
	}
	return n, nil
}

// GetSum returns the sum of column over the rows matching filter, 0 if
// there are none.
func (q *Query) GetSum(ctx context.Context, column string, filter Pairs) (float64, error) {
	if err := sql.CheckIdentifier("column", column); err != nil {
		return 0, err
	}
	query, args, err := q.selectSQL(selectSpec{projection: "sum(" + sql.QuoteIdent(column) + ")", filter: filter, aggregate: true})
	if err != nil {
		return 0, err
	}
	rs, err := q.t.query(ctx, "select", query, args)
	if err != nil {
		return 0, err
	}
	f, err := toFloat64(rs.scalar())
	if err != nil {
		return 0, tableq.NewQueryError(q.t.name, "sum", err)
	}
	return f, nil
}

// WithCall calls the stored routine with params and returns its first
// result set, calling found for each row or nothing if it is empty.
func (q *Query) WithCall(ctx context.Context, routine string, params []any, found RowFunc, nothing TableFunc) (*ResultSet, error) {
	if q.err != nil {
		return nil, q.err
	}
	query, args, err := callSQL(routine, params)
	if err != nil {
		return nil, err
	}
	rs, err := q.t.query(ctx, "call", query, args)
	if err != nil {
		return nil, err
	}
	return rs, q.t.dispatch(ctx, rs, found, nothing)
}

// Update sets the columns of set on the rows matching filter and the where
// clause of the Query, and returns the number of affected rows. An empty
// predicate is rejected with tableq.ErrEmptyFilter.
func (q *Query) Update(ctx context.Context, set, filter Pairs) (int64, error) {
	query, args, err := q.updateSQL(set, filter)
	if err != nil {
		return 0, err
	}
	return q.t.affected(ctx, "update", query, args)
}

// Delete removes the rows matching filter and the where clause of the
// Query, and returns the number of affected rows. An empty predicate is
// rejected with tableq.ErrEmptyFilter.
func (q *Query) Delete(ctx context.Context, filter Pairs) (int64, error) {
	query, args, err := q.deleteSQL(filter)
	if err != nil {
		return 0, err
	}
	return q.t.affected(ctx, "delete", query, args)
}

func (t *Table) affected(ctx context.Context, op, query string, args []any) (int64, error) {
	res, err := t.exec(ctx, t.drv, op, query, args)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, tableq.NewQueryError(t.name, op, err)
	}
	return n, nil
}

// dispatch calls found for each row of rs, or nothing if rs is empty.
func (t *Table) dispatch(ctx context.Context, rs *ResultSet, found RowFunc, nothing TableFunc) error {
	if rs.Len() == 0 {
		if nothing != nil {
			return nothing(ctx, t)
		}
		return nil
	}
	if found == nil {
		return nil
	}
	return rs.Each(func(_ int, row Row) error {
		return found(ctx, t, row)
	})
}

// GetAllRows is the Table form of Query.GetAllRows.
func (t *Table) GetAllRows(ctx context.Context) (*ResultSet, error) {
	return t.Query().GetAllRows(ctx)
}

// Get is the Table form of Query.Get.
func (t *Table) Get(ctx context.Context, filter Pairs, found RowFunc, nothing TableFunc) (Row, error) {
	return t.Query().Get(ctx, filter, found, nothing)
}

// With is the Table form of Query.With.
func (t *Table) With(ctx context.Context, filter Pairs, found RowFunc, nothing TableFunc) (*ResultSet, error) {
	return t.Query().With(ctx, filter, found, nothing)
}

// GetItemsByColumn is the Table form of Query.GetItemsByColumn.
func (t *Table) GetItemsByColumn(ctx context.Context, filter Pairs, unique bool) (*ResultSet, error) {
	return t.Query().GetItemsByColumn(ctx, filter, unique)
}

// GetItemsBy is the Table form of Query.GetItemsBy.
func (t *Table) GetItemsBy(ctx context.Context, column string, value any, unique bool) (*ResultSet, error) {
	return t.Query().GetItemsBy(ctx, column, value, unique)
}

// GetItemByID is the Table form of Query.GetItemByID.
func (t *Table) GetItemByID(ctx context.Context, id any, unique bool) (*ResultSet, error) {
	return t.Query().GetItemByID(ctx, id, unique)
}

// RowExists is the Table form of Query.RowExists.
func (t *Table) RowExists(ctx context.Context, expr string, args ...any) (bool, error) {
	return t.Query().RowExists(ctx, expr, args...)
}

// Has is the Table form of Query.Has.
func (t *Table) Has(ctx context.Context, filter Pairs, does, doesNot TableFunc) (bool, error) {
	return t.Query().Has(ctx, filter, does, doesNot)
}

// IfHas is the Table form of Query.IfHas.
func (t *Table) IfHas(ctx context.Context, filter Pairs, fn TableFunc) (bool, error) {
	return t.Query().IfHas(ctx, filter, fn)
}

// IfHasNot is the Table form of Query.IfHasNot.
func (t *Table) IfHasNot(ctx context.Context, filter Pairs, fn TableFunc) (bool, error) {
	return t.Query().IfHasNot(ctx, filter, fn)
}

// GetTotal is the Table form of Query.GetTotal.
func (t *Table) GetTotal(ctx context.Context, filter Pairs) (int64, error) {
	return t.Query().GetTotal(ctx, filter)
}

// GetSum is the Table form of Query.GetSum.
func (t *Table) GetSum(ctx context.Context, column string, filter Pairs) (float64, error) {
	return t.Query().GetSum(ctx, column, filter)
}

// WithCall is the Table form of Query.WithCall.
func (t *Table) WithCall(ctx context.Context, routine string, params []any, found RowFunc, nothing TableFunc) (*ResultSet, error) {
	return t.Query().WithCall(ctx, routine, params, found, nothing)
}

// Update is the Table form of Query.Update.
func (t *Table) Update(ctx context.Context, set, filter Pairs) (int64, error) {
	return t.Query().Update(ctx, set, filter)
}

// Delete is the Table form of Query.Delete.
func (t *Table) Delete(ctx context.Context, filter Pairs) (int64, error) {
	return t.Query().Delete(ctx, filter)
}

// toInt64 converts a scanned numeric value. MySQL returns aggregates as
// text over the non-prepared protocol.
func toInt64(v any) (int64, error) {
	switch v := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}

// toFloat64 converts a scanned numeric value.
func toFloat64(v any) (float64, error) {
	switch v := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("unexpected sum type %T", v)
	}
}
