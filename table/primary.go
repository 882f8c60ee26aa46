package table

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// KeyCache memoizes the primary key column of tables by table name. A table
// without a primary key is remembered as such. Concurrent lookups of the
// same name share a single query.
type KeyCache struct {
	mu    sync.RWMutex
	keys  map[string]keyEntry
	group singleflight.Group
}

type keyEntry struct {
	column string
	found  bool
}

// NewKeyCache returns an empty KeyCache.
func NewKeyCache() *KeyCache {
	return &KeyCache{keys: make(map[string]keyEntry)}
}

// Lookup returns the cached primary key of name, calling load on a miss.
// Errors from load are returned and not cached.
func (c *KeyCache) Lookup(ctx context.Context, name string, load func(context.Context) (string, bool, error)) (string, bool, error) {
	if e, ok := c.get(name); ok {
		return e.column, e.found, nil
	}
	v, err, _ := c.group.Do(name, func() (any, error) {
		if e, ok := c.get(name); ok {
			return e, nil
		}
		column, found, err := load(ctx)
		if err != nil {
			return nil, err
		}
		e := keyEntry{column: column, found: found}
		c.mu.Lock()
		c.keys[name] = e
		c.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return "", false, err
	}
	e := v.(keyEntry)
	return e.column, e.found, nil
}

// Forget drops the cached entry of name.
func (c *KeyCache) Forget(name string) {
	c.mu.Lock()
	delete(c.keys, name)
	c.mu.Unlock()
}

// Len returns the number of cached tables.
func (c *KeyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

func (c *KeyCache) get(name string) (keyEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.keys[name]
	return e, ok
}

// PrimaryKey returns the primary key column of the table and whether it has
// one. It is read from information_schema on first use and cached.
func (t *Table) PrimaryKey(ctx context.Context) (string, bool, error) {
	return t.keys.Lookup(ctx, t.name, t.loadPrimaryKey)
}

func (t *Table) loadPrimaryKey(ctx context.Context) (string, bool, error) {
	rs, err := t.query(ctx, "primary key", primaryKeyQuery, []any{t.name})
	if err != nil {
		return "", false, err
	}
	v := rs.scalar()
	if v == nil {
		return "", false, nil
	}
	return fmt.Sprint(v), true, nil
}

// ColumnNames returns the columns of the table in definition order, as read
// from information_schema.
func (t *Table) ColumnNames(ctx context.Context) ([]string, error) {
	rs, err := t.query(ctx, "columns", columnsQuery, []any{t.name})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, rs.Len())
	for _, row := range rs.Rows() {
		names = append(names, fmt.Sprint(row[rs.Columns()[0]]))
	}
	return names, nil
}
