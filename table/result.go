package table

// Row is a result row keyed by column name.
type Row map[string]any

// ResultSet holds the rows returned by an operation together with its own
// read cursor. Each operation returns a fresh ResultSet; iterating one never
// affects another.
//
//	rs, err := users.GetAllRows(ctx)
//	for rs.Next() {
//	    fmt.Println(rs.Row()["email"])
//	}
type ResultSet struct {
	columns []string
	rows    []Row
	pos     int
}

func newResultSet(columns []string, rows []map[string]any) *ResultSet {
	rs := &ResultSet{columns: columns, rows: make([]Row, len(rows)), pos: -1}
	for i, r := range rows {
		rs.rows[i] = r
	}
	return rs
}

// Columns returns the column names in the order of the projection.
func (r *ResultSet) Columns() []string { return r.columns }

// Len returns the number of rows.
func (r *ResultSet) Len() int { return len(r.rows) }

// Rows returns all rows.
func (r *ResultSet) Rows() []Row { return r.rows }

// First returns the first row, or nil if there is none.
func (r *ResultSet) First() Row {
	if len(r.rows) == 0 {
		return nil
	}
	return r.rows[0]
}

// Next advances the cursor and reports whether a row is available.
func (r *ResultSet) Next() bool {
	if r.pos+1 >= len(r.rows) {
		r.pos = len(r.rows)
		return false
	}
	r.pos++
	return true
}

// Row returns the row under the cursor, or nil before the first call to
// Next and after the last one.
func (r *ResultSet) Row() Row {
	if r.pos < 0 || r.pos >= len(r.rows) {
		return nil
	}
	return r.rows[r.pos]
}

// Reset rewinds the cursor before the first row.
func (r *ResultSet) Reset() { r.pos = -1 }

// Each calls fn for every row in order and stops at the first error.
// It does not move the cursor.
func (r *ResultSet) Each(fn func(i int, row Row) error) error {
	for i, row := range r.rows {
		if err := fn(i, row); err != nil {
			return err
		}
	}
	return nil
}

// FormatColumn replaces, in every row, the value of each given column by
// fn applied to it. Rows without the column are left alone.
//
//	rs.FormatColumn(func(v any) any { return strings.ToUpper(v.(string)) }, "code")
func (r *ResultSet) FormatColumn(fn func(any) any, columns ...string) *ResultSet {
	for _, row := range r.rows {
		for _, c := range columns {
			if v, ok := row[c]; ok {
				row[c] = fn(v)
			}
		}
	}
	return r
}

// scalar returns the first column of the first row.
func (r *ResultSet) scalar() any {
	if len(r.rows) == 0 || len(r.columns) == 0 {
		return nil
	}
	return r.rows[0][r.columns[0]]
}
