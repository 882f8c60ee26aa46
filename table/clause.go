package table

import (
	"strings"

	"github.com/syssam/tableq/dialect/sql"
)

// buildColumns renders the projection list.
func buildColumns(columns []string) string {
	if len(columns) == 0 {
		return "*"
	}
	return strings.Join(columns, ",")
}

// buildOrder renders the body of an order by clause, or "" for no ordering.
func buildOrder(orders []Order) string {
	return buildDirected(orders)
}

// buildGroup renders the body of a group by clause, or "" for no grouping.
func buildGroup(groups []Order) string {
	return buildDirected(groups)
}

func buildDirected(entries []Order) string {
	if len(entries) == 0 {
		return ""
	}
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = sql.QuoteIdent(e.Column) + " " + direction(e.Direction)
	}
	return strings.Join(parts, ", ")
}

// direction normalizes a sort direction to "asc" or "desc".
func direction(d string) string {
	if strings.EqualFold(d, "desc") {
		return "desc"
	}
	return "asc"
}

// buildTableSyntax renders the base table followed by its joins:
//
//	A join B on x = y left join C using(k)
func buildTableSyntax(table string, joins []join) string {
	var b strings.Builder
	b.WriteString(table)
	for _, j := range joins {
		b.WriteByte(' ')
		b.WriteString(string(j.kind))
		b.WriteByte(' ')
		b.WriteString(j.table)
		for i, c := range j.conds {
			switch {
			case i > 0:
				b.WriteString(" and ")
			case strings.HasPrefix(c, "using("):
				b.WriteByte(' ')
			default:
				b.WriteString(" on ")
			}
			b.WriteString(c)
		}
	}
	return b.String()
}

// buildJoinConditions validates and renders join conditions.
func buildJoinConditions(conds []JoinCond) ([]string, error) {
	fragments := make([]string, 0, len(conds))
	for _, c := range conds {
		if err := sql.CheckBareIdentifier("join column", c.left); err != nil {
			return nil, err
		}
		if c.using {
			fragments = append(fragments, "using("+c.left+")")
			continue
		}
		if err := sql.CheckBareIdentifier("join column", c.right); err != nil {
			return nil, err
		}
		fragments = append(fragments, c.left+" = "+c.right)
	}
	return fragments, nil
}

// buildWhere renders an equality predicate for filter, one comparison per
// pair joined with "and", and returns it with its bound values. NULL values
// are handled by nullAware. An empty filter renders "".
func buildWhere(filter Pairs) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	parts := make([]string, len(filter))
	for i, p := range filter {
		if err := sql.CheckIdentifier("column", p.Column); err != nil {
			return "", nil, err
		}
		parts[i] = sql.QuoteIdent(p.Column) + " = ?"
	}
	where, args := nullAware(strings.Join(parts, " and "), filter.Values())
	return where, args, nil
}

// nullAware rewrites template, holding one "?" per value, so that every
// comparison against a NULL value reads "is null". The placeholder of such
// a value is replaced by the literal and the value is dropped from the
// returned arguments, keeping placeholders and arguments aligned.
func nullAware(template string, values []any) (string, []any) {
	segments := strings.Split(template, "?")
	if len(segments) != len(values)+1 {
		return template, values
	}
	var (
		b    strings.Builder
		args = make([]any, 0, len(values))
	)
	for i, v := range values {
		seg := segments[i]
		if !isNull(v) {
			b.WriteString(seg)
			b.WriteByte('?')
			args = append(args, v)
			continue
		}
		if j := strings.LastIndexByte(seg, '='); j >= 0 {
			seg = seg[:j] + "is" + seg[j+1:]
		}
		b.WriteString(seg)
		b.WriteString("null")
	}
	b.WriteString(segments[len(values)])
	return b.String(), args
}
