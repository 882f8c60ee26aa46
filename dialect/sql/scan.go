package sql

import (
	"fmt"
)

// ScanRows reads every remaining row of rows into a column-name keyed map.
// Text columns returned as []byte by the driver are copied into strings,
// as the byte slices are only valid until the next call to Next.
// The rows are closed before returning.
func ScanRows(rows ColumnScanner) (_ []map[string]any, rerr error) {
	defer func() {
		if err := rows.Close(); err != nil && rerr == nil {
			rerr = fmt.Errorf("dialect/sql: close rows: %w", err)
		}
	}()
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: columns: %w", err)
	}
	var (
		out  []map[string]any
		vals = make([]any, len(columns))
		ptrs = make([]any, len(columns))
	)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("dialect/sql: scan: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, c := range columns {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = vals[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dialect/sql: rows: %w", err)
	}
	return out, nil
}

// ScanColumns returns the columns names of rows in order, along with every row.
// It is ScanRows for callers that need the projection order, e.g. for printing.
func ScanColumns(rows ColumnScanner) ([]string, []map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, nil, fmt.Errorf("dialect/sql: columns: %w", err)
	}
	out, err := ScanRows(rows)
	if err != nil {
		return nil, nil, err
	}
	return columns, out, nil
}
