package table

import (
	"context"

	"github.com/syssam/tableq/dialect/sql"
)

// ItemsFunc looks up the rows whose column equals value. With unique set,
// at most one row is returned.
type ItemsFunc func(ctx context.Context, value any, unique bool) (*ResultSet, error)

// Accessor returns the lookup function of a single column. The column name
// is validated once, here.
//
//	byEmail, err := users.Accessor("email")
//	rs, err := byEmail(ctx, "a@example.com", true)
func (t *Table) Accessor(column string) (ItemsFunc, error) {
	if err := sql.CheckIdentifier("column", column); err != nil {
		return nil, err
	}
	return func(ctx context.Context, value any, unique bool) (*ResultSet, error) {
		return t.GetItemsBy(ctx, column, value, unique)
	}, nil
}

// Accessors returns the lookup functions of columns keyed by column name.
// Use ColumnNames to build accessors for every column of the table.
func (t *Table) Accessors(columns ...string) (map[string]ItemsFunc, error) {
	m := make(map[string]ItemsFunc, len(columns))
	for _, c := range columns {
		fn, err := t.Accessor(c)
		if err != nil {
			return nil, err
		}
		m[c] = fn
	}
	return m, nil
}
