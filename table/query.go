package table

import (
	"slices"

	"github.com/syssam/tableq/dialect/sql"
)

// Order is a column paired with a sort direction. Directions other than
// "asc" and "desc" (in any case) render as "asc".
type Order struct {
	Column    string
	Direction string
}

// Asc orders by column ascending.
func Asc(column string) Order { return Order{Column: column, Direction: "asc"} }

// Desc orders by column descending.
func Desc(column string) Order { return Order{Column: column, Direction: "desc"} }

// JoinCond is one condition of a join: either "left = right" or "using(col)".
type JoinCond struct {
	left, right string
	using       bool
}

// On returns the join condition "left = right".
func On(left, right string) JoinCond { return JoinCond{left: left, right: right} }

// Using returns the join condition "using(column)".
func Using(column string) JoinCond { return JoinCond{left: column, using: true} }

type joinKind string

const (
	innerJoin joinKind = "join"
	leftJoin  joinKind = "left join"
)

// join is a joined table and its rendered condition fragments.
type join struct {
	table string
	kind  joinKind
	conds []string
}

// Query is the configuration of one statement against a Table: projected
// columns, joins, ordering, grouping, limit and an optional where clause.
//
// A Query is immutable. Every configuration method returns a new Query and
// leaves the receiver untouched, so a Query can be shared between goroutines
// and executed any number of times with the same result.
//
// Configuration methods validate their input right away. The first
// validation failure is kept on the returned Query and reported by Err and
// by every terminal operation, before any SQL is rendered.
type Query struct {
	t         *Table
	columns   []string
	joins     []join
	order     []Order
	group     []Order
	limit     int
	where     string
	whereArgs []any
	err       error
}

// clone returns a copy of q that can be modified without affecting q.
func (q *Query) clone() *Query {
	c := *q
	c.columns = slices.Clone(q.columns)
	c.joins = slices.Clone(q.joins)
	c.order = slices.Clone(q.order)
	c.group = slices.Clone(q.group)
	c.whereArgs = slices.Clone(q.whereArgs)
	return &c
}

// fail returns a copy of q carrying err, unless q already failed.
func (q *Query) fail(err error) *Query {
	c := q.clone()
	if c.err == nil {
		c.err = err
	}
	return c
}

// Err returns the first validation error raised while configuring q.
func (q *Query) Err() error { return q.err }

// Table returns the table q is bound to.
func (q *Query) Table() *Table { return q.t }

// Select sets the projected columns, replacing previous ones. An empty list
// selects all columns.
func (q *Query) Select(columns ...string) *Query {
	if err := sql.CheckIdentifiers("column", columns...); err != nil {
		return q.fail(err)
	}
	c := q.clone()
	c.columns = sql.QuoteIdents(columns)
	return c
}

// AppendSpecialCol appends expr to the projected columns as is. It is meant
// for trusted expressions that are not plain identifiers, such as
// "count(*) as total". Never pass user input here.
func (q *Query) AppendSpecialCol(expr string) *Query {
	c := q.clone()
	c.columns = append(c.columns, expr)
	return c
}

// OrderBy sets the order by clause, replacing previous ordering.
func (q *Query) OrderBy(orders ...Order) *Query {
	for _, o := range orders {
		if err := sql.CheckIdentifier("order column", o.Column); err != nil {
			return q.fail(err)
		}
	}
	c := q.clone()
	c.order = slices.Clone(orders)
	return c
}

// OrderRows orders by a single column.
func (q *Query) OrderRows(column, direction string) *Query {
	return q.OrderBy(Order{Column: column, Direction: direction})
}

// GroupBy sets the group by clause, replacing previous grouping.
func (q *Query) GroupBy(groups ...Order) *Query {
	for _, g := range groups {
		if err := sql.CheckIdentifier("group column", g.Column); err != nil {
			return q.fail(err)
		}
	}
	c := q.clone()
	c.group = slices.Clone(groups)
	return c
}

// Limit sets the maximum number of returned rows. Zero, or a negative
// value, means no limit.
func (q *Query) Limit(n int) *Query {
	c := q.clone()
	c.limit = max(n, 0)
	return c
}

// Join adds an inner join with table on the given conditions.
func (q *Query) Join(table string, conds ...JoinCond) *Query {
	return q.addJoin(table, innerJoin, conds)
}

// LeftJoin adds a left join with table on the given conditions.
func (q *Query) LeftJoin(table string, conds ...JoinCond) *Query {
	return q.addJoin(table, leftJoin, conds)
}

// addJoin appends a join entry. Joining the same table with the same kind
// again replaces the conditions of the existing entry, keeping its position.
func (q *Query) addJoin(table string, kind joinKind, conds []JoinCond) *Query {
	if err := sql.CheckBareIdentifier("join table", table); err != nil {
		return q.fail(err)
	}
	fragments, err := buildJoinConditions(conds)
	if err != nil {
		return q.fail(err)
	}
	c := q.clone()
	j := join{table: table, kind: kind, conds: fragments}
	if i := slices.IndexFunc(c.joins, func(e join) bool { return e.table == table && e.kind == kind }); i >= 0 {
		c.joins[i] = j
	} else {
		c.joins = append(c.joins, j)
	}
	return c
}

// FilterRows sets a raw where clause used by the select operations, with
// its own bound arguments. The expression is trusted SQL text; user values
// must go through args.
//
//	q.FilterRows("created_at > ? and status in (?, ?)", since, "new", "open")
func (q *Query) FilterRows(expr string, args ...any) *Query {
	c := q.clone()
	c.where, c.whereArgs = expr, slices.Clone(args)
	return c
}

// ArrayFilterRows sets the where clause from column/value pairs, joined with
// "and". NULL values compare with "is null".
func (q *Query) ArrayFilterRows(filter Pairs) *Query {
	where, args, err := buildWhere(filter)
	if err != nil {
		return q.fail(err)
	}
	c := q.clone()
	c.where, c.whereArgs = where, args
	return c
}

// Build renders the statement GetAllRows would run.
func (q *Query) Build() (string, []any, error) {
	return q.selectSQL(selectSpec{limit: q.limit})
}
