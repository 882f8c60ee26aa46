package table

import (
	"context"
	"strings"

	"github.com/syssam/tableq"
	"github.com/syssam/tableq/dialect"
	"github.com/syssam/tableq/dialect/sql"
)

// RawValue is an inserted column whose placeholder is wrapped in SQL
// function calls. Funcs are applied outermost first:
//
//	RawWith("pass", p, "md5")             // md5(?)
//	RawWith("pass", p, "upper", "md5")    // upper(md5(?))
//	Raw("created_at", "now")              // now()
type RawValue struct {
	Column   string
	Value    any
	HasValue bool
	Funcs    []string
}

// Raw returns a RawValue calling funcs without argument.
func Raw(column string, funcs ...string) RawValue {
	return RawValue{Column: column, Funcs: funcs}
}

// RawWith returns a RawValue passing value through funcs.
func RawWith(column string, value any, funcs ...string) RawValue {
	return RawValue{Column: column, Value: value, HasValue: true, Funcs: funcs}
}

// expr renders the value expression of r.
func (r RawValue) expr() (string, error) {
	if len(r.Funcs) == 0 {
		return "?", nil
	}
	inner := ""
	if r.HasValue {
		inner = "?"
	}
	for i := len(r.Funcs) - 1; i >= 0; i-- {
		if err := sql.CheckIdentifier("function", r.Funcs[i]); err != nil {
			return "", err
		}
		inner = r.Funcs[i] + "(" + inner + ")"
	}
	return inner, nil
}

// bound reports whether r contributes a bound value.
func (r RawValue) bound() bool {
	return r.HasValue || len(r.Funcs) == 0
}

// DupEntry is one assignment of an "on duplicate key update" clause.
type DupEntry struct {
	column string
	value  any
	set    bool
}

// Dup assigns column the value it would have been inserted with:
// `col` = values(`col`).
func Dup(column string) DupEntry { return DupEntry{column: column} }

// DupSet assigns column an explicit value: `col` = ?.
func DupSet(column string, value any) DupEntry {
	return DupEntry{column: column, value: value, set: true}
}

// buildDuplicateKey renders the on duplicate key update clause and its
// bound values.
func buildDuplicateKey(dups []DupEntry) (string, []any, error) {
	parts := make([]string, len(dups))
	var args []any
	for i, d := range dups {
		if err := sql.CheckIdentifier("column", d.column); err != nil {
			return "", nil, err
		}
		col := sql.QuoteIdent(d.column)
		if d.set {
			parts[i] = col + " = ?"
			args = append(args, d.value)
		} else {
			parts[i] = col + " = values(" + col + ")"
		}
	}
	return "on duplicate key update " + strings.Join(parts, ", "), args, nil
}

// insertSQL renders a single-row insert. Columns are the data columns
// followed by the raw columns; bound values follow the same order, then
// the values of the duplicate key clause.
func insertSQL(table string, data Pairs, raw []RawValue, ignore bool, dups []DupEntry) (string, []any, error) {
	if len(data)+len(raw) == 0 {
		return "", nil, tableq.ErrEmptyInsert
	}
	var (
		cols = make([]string, 0, len(data)+len(raw))
		vals = make([]string, 0, len(data)+len(raw))
		args = make([]any, 0, len(data)+len(raw))
	)
	for _, p := range data {
		if err := sql.CheckIdentifier("column", p.Column); err != nil {
			return "", nil, err
		}
		cols = append(cols, sql.QuoteIdent(p.Column))
		vals = append(vals, "?")
		args = append(args, p.Value)
	}
	for _, r := range raw {
		if err := sql.CheckIdentifier("column", r.Column); err != nil {
			return "", nil, err
		}
		expr, err := r.expr()
		if err != nil {
			return "", nil, err
		}
		cols = append(cols, sql.QuoteIdent(r.Column))
		vals = append(vals, expr)
		if r.bound() {
			args = append(args, r.Value)
		}
	}
	var b strings.Builder
	b.WriteString("insert ")
	if ignore {
		b.WriteString("ignore ")
	}
	b.WriteString("into ")
	b.WriteString(sql.QuoteIdent(table))
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ","))
	b.WriteString(") values (")
	b.WriteString(strings.Join(vals, ","))
	b.WriteByte(')')
	if len(dups) > 0 {
		clause, dargs, err := buildDuplicateKey(dups)
		if err != nil {
			return "", nil, err
		}
		b.WriteByte(' ')
		b.WriteString(clause)
		args = append(args, dargs...)
	}
	return b.String(), args, nil
}

// InsertOption configures InsertMultiRow.
type InsertOption func(*insertOptions)

type insertOptions struct {
	ignore bool
	after  string
	dups   []DupEntry
}

// Ignore renders "insert ignore".
func Ignore() InsertOption {
	return func(o *insertOptions) { o.ignore = true }
}

// After appends a trusted clause after the values list. It is rendered
// after the OnDuplicateKey clause if both are given.
func After(clause string) InsertOption {
	return func(o *insertOptions) { o.after = clause }
}

// OnDuplicateKey appends an on duplicate key update clause.
func OnDuplicateKey(dups ...DupEntry) InsertOption {
	return func(o *insertOptions) { o.dups = append(o.dups, dups...) }
}

// multiRowSQL renders
//
//	insert [ignore] into T (a,b) values (?,?),(?,?) [after]
//
// with the row values flattened in row-major order.
func multiRowSQL(table string, columns []string, rows [][]any, opts ...InsertOption) (string, []any, error) {
	var o insertOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.ignore && (o.after != "" || len(o.dups) > 0) {
		return "", nil, tableq.ErrConflictingInsertOptions
	}
	if err := sql.CheckBareIdentifiers("column", columns...); err != nil {
		return "", nil, err
	}
	if len(columns) == 0 || len(rows) == 0 {
		return "", nil, tableq.ErrEmptyInsert
	}
	args := make([]any, 0, len(columns)*len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, tableq.NewColumnCountError(i, len(columns), len(row))
		}
		args = append(args, row...)
	}
	group := "(" + placeholders(len(columns)) + ")"
	var b strings.Builder
	b.WriteString("insert ")
	if o.ignore {
		b.WriteString("ignore ")
	}
	b.WriteString("into ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ","))
	b.WriteString(") values ")
	b.WriteString(group)
	b.WriteString(strings.Repeat(","+group, len(rows)-1))
	if len(o.dups) > 0 {
		clause, dargs, err := buildDuplicateKey(o.dups)
		if err != nil {
			return "", nil, err
		}
		b.WriteByte(' ')
		b.WriteString(clause)
		args = append(args, dargs...)
	}
	if o.after != "" {
		b.WriteByte(' ')
		b.WriteString(o.after)
	}
	return b.String(), args, nil
}

// Insert inserts one row built from data and raw, and returns the id
// generated for it.
func (t *Table) Insert(ctx context.Context, data Pairs, raw ...RawValue) (int64, error) {
	return t.insert(ctx, data, raw, false, nil)
}

// InsertIgnore is like Insert, using "insert ignore".
func (t *Table) InsertIgnore(ctx context.Context, data Pairs, raw ...RawValue) (int64, error) {
	return t.insert(ctx, data, raw, true, nil)
}

// InsertDuplicateKey is like Insert, updating the existing row as described
// by dups when the insert hits a unique key.
func (t *Table) InsertDuplicateKey(ctx context.Context, data Pairs, dups []DupEntry, raw ...RawValue) (int64, error) {
	return t.insert(ctx, data, raw, false, dups)
}

func (t *Table) insert(ctx context.Context, data Pairs, raw []RawValue, ignore bool, dups []DupEntry) (int64, error) {
	query, args, err := insertSQL(t.name, data, raw, ignore, dups)
	if err != nil {
		return 0, err
	}
	res, err := t.exec(ctx, t.drv, "insert", query, args)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, tableq.NewQueryError(t.name, "insert", err)
	}
	return id, nil
}

// InsertMultiRow inserts rows, each holding one value per column, with a
// single statement run in a transaction. Nothing is inserted if any row
// has the wrong number of values or the statement fails.
func (t *Table) InsertMultiRow(ctx context.Context, columns []string, rows [][]any, opts ...InsertOption) (sql.Result, error) {
	query, args, err := multiRowSQL(t.name, columns, rows, opts...)
	if err != nil {
		return nil, err
	}
	var res sql.Result
	err = t.inTx(ctx, func(ex dialect.ExecQuerier) error {
		var err error
		res, err = t.exec(ctx, ex, "insert", query, args)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
