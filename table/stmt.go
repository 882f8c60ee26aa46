package table

import (
	"slices"
	"strconv"
	"strings"

	"github.com/syssam/tableq"
	"github.com/syssam/tableq/dialect/sql"
)

const (
	primaryKeyQuery = "select COLUMN_NAME from information_schema.COLUMNS where TABLE_SCHEMA = database() and COLUMN_KEY = 'PRI' and TABLE_NAME = ? limit 1"
	columnsQuery    = "select COLUMN_NAME from information_schema.COLUMNS where TABLE_SCHEMA = database() and TABLE_NAME = ? order by ORDINAL_POSITION"
)

// selectSpec describes a select rendered from a Query.
type selectSpec struct {
	projection string // "" selects the configured columns
	filter     Pairs
	limit      int  // 0 for no limit
	aggregate  bool // skip group by and order by
}

// selectSQL renders
//
//	select <projection> from <table syntax> [where ...] [group by ...] [order by ...] [limit n]
func (q *Query) selectSQL(s selectSpec) (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	pred, args, err := q.predicate(s.filter)
	if err != nil {
		return "", nil, err
	}
	proj := s.projection
	if proj == "" {
		proj = buildColumns(q.columns)
	}
	var b strings.Builder
	b.WriteString("select ")
	b.WriteString(proj)
	b.WriteString(" from ")
	b.WriteString(buildTableSyntax(q.t.name, q.joins))
	if pred != "" {
		b.WriteString(" where ")
		b.WriteString(pred)
	}
	if !s.aggregate {
		if g := buildGroup(q.group); g != "" {
			b.WriteString(" group by ")
			b.WriteString(g)
		}
		if o := buildOrder(q.order); o != "" {
			b.WriteString(" order by ")
			b.WriteString(o)
		}
	}
	if s.limit > 0 {
		b.WriteString(" limit ")
		b.WriteString(strconv.Itoa(s.limit))
	}
	return b.String(), args, nil
}

// predicate combines the where clause configured on q with filter.
func (q *Query) predicate(filter Pairs) (string, []any, error) {
	pred, args, err := buildWhere(filter)
	if err != nil {
		return "", nil, err
	}
	switch {
	case q.where == "":
		return pred, args, nil
	case pred == "":
		return q.where, slices.Clone(q.whereArgs), nil
	default:
		return "(" + q.where + ") and " + pred, append(slices.Clone(q.whereArgs), args...), nil
	}
}

// updateSQL renders
//
//	update <table syntax> set `a` = ?, `b` = ? where <predicate>
func (q *Query) updateSQL(set, filter Pairs) (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	if len(set) == 0 {
		return "", nil, tableq.ErrEmptySet
	}
	setters := make([]string, len(set))
	for i, p := range set {
		if err := sql.CheckIdentifier("column", p.Column); err != nil {
			return "", nil, err
		}
		setters[i] = sql.QuoteIdent(p.Column) + " = ?"
	}
	pred, args, err := q.predicate(filter)
	if err != nil {
		return "", nil, err
	}
	if pred == "" {
		return "", nil, tableq.ErrEmptyFilter
	}
	query := "update " + buildTableSyntax(q.t.name, q.joins) +
		" set " + strings.Join(setters, ", ") +
		" where " + pred
	return query, append(set.Values(), args...), nil
}

// deleteSQL renders "delete from `t` where <predicate>", or the multi-table
// form "delete `t` from <table syntax> where <predicate>" when q has joins.
func (q *Query) deleteSQL(filter Pairs) (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	pred, args, err := q.predicate(filter)
	if err != nil {
		return "", nil, err
	}
	if pred == "" {
		return "", nil, tableq.ErrEmptyFilter
	}
	if len(q.joins) > 0 {
		return "delete " + sql.QuoteIdent(q.t.name) + " from " + buildTableSyntax(q.t.name, q.joins) + " where " + pred, args, nil
	}
	return "delete from " + sql.QuoteIdent(q.t.name) + " where " + pred, args, nil
}

// callSQL renders "call routine(?,?,...)" with one placeholder per param.
func callSQL(routine string, params []any) (string, []any, error) {
	if err := sql.CheckBareIdentifier("routine", routine); err != nil {
		return "", nil, err
	}
	return "call " + routine + "(" + placeholders(len(params)) + ")", slices.Clone(params), nil
}

// placeholders returns n comma-separated placeholders.
func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
