package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/tableq"
)

func TestQueryBuild(t *testing.T) {
	users, _ := newMockTable(t, "users")
	a, _ := newMockTable(t, "A")
	tests := []struct {
		name  string
		query *Query
		want  string
		args  []any
	}{
		{
			name:  "all",
			query: users.Query(),
			want:  "select * from users",
		},
		{
			name:  "columns",
			query: users.Select("id", "email"),
			want:  "select `id`,`email` from users",
		},
		{
			name:  "special_col",
			query: users.Select("role").AppendSpecialCol("count(*) as total").GroupBy(Asc("role")),
			want:  "select `role`,count(*) as total from users group by `role` asc",
		},
		{
			name:  "group_order_limit",
			query: users.Select("id").GroupBy(Desc("role")).OrderBy(Desc("id"), Asc("email")).Limit(10),
			want:  "select `id` from users group by `role` desc order by `id` desc, `email` asc limit 10",
		},
		{
			name:  "order_rows",
			query: users.OrderRows("id", "DESC"),
			want:  "select * from users order by `id` desc",
		},
		{
			name:  "negative_limit",
			query: users.Limit(-3),
			want:  "select * from users",
		},
		{
			name:  "joins",
			query: a.Join("B", On("x", "y")).LeftJoin("C", Using("k")),
			want:  "select * from A join B on x = y left join C using(k)",
		},
		{
			name:  "join_replaced",
			query: a.Join("B", On("x", "y")).LeftJoin("C", Using("k")).Join("B", On("x", "z")),
			want:  "select * from A join B on x = z left join C using(k)",
		},
		{
			name:  "same_table_both_kinds",
			query: a.Join("B", On("x", "y")).LeftJoin("B", On("u", "v")),
			want:  "select * from A join B on x = y left join B on u = v",
		},
		{
			name:  "raw_where",
			query: users.FilterRows("age > ? and state in (?, ?)", 18, "new", "open"),
			want:  "select * from users where age > ? and state in (?, ?)",
			args:  []any{18, "new", "open"},
		},
		{
			name:  "array_filter",
			query: users.ArrayFilterRows(Pairs{P("a", 1), P("b", nil), P("c", "x")}),
			want:  "select * from users where `a` = ? and `b` is null and `c` = ?",
			args:  []any{1, "x"},
		},
		{
			name:  "filter_replaced",
			query: users.FilterRows("age > ?", 18).ArrayFilterRows(Pairs{P("id", 1)}),
			want:  "select * from users where `id` = ?",
			args:  []any{1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := tt.query.Build()
			require.NoError(t, err)
			assert.Equal(t, tt.want, query)
			if tt.args == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.args, args)
			}
		})
	}
}

func TestQueryIdempotent(t *testing.T) {
	users, _ := newMockTable(t, "users")
	q := users.Select("id").
		Join("orders", On("users.id", "orders.user_id")).
		ArrayFilterRows(Pairs{P("orders.state", "open"), P("users.deleted_at", nil)}).
		OrderRows("id", "desc").
		Limit(5)
	q1, a1, err := q.Build()
	require.NoError(t, err)
	q2, a2, err := q.Build()
	require.NoError(t, err)
	assert.Equal(t, q1, q2)
	assert.Equal(t, a1, a2)

	s1, sa1, err := q.selectSQL(selectSpec{filter: Pairs{P("id", 1)}, limit: 1})
	require.NoError(t, err)
	s2, sa2, err := q.selectSQL(selectSpec{filter: Pairs{P("id", 1)}, limit: 1})
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
	assert.Equal(t, sa1, sa2)
}

func TestQueryImmutable(t *testing.T) {
	users, _ := newMockTable(t, "users")
	base := users.Select("id").FilterRows("age > ?", 18)
	_ = base.OrderRows("id", "desc").Limit(1).Join("orders", Using("id"))
	_ = base.Select("email")
	_ = base.FilterRows("age < ?", 3)

	query, args, err := base.Build()
	require.NoError(t, err)
	assert.Equal(t, "select `id` from users where age > ?", query)
	assert.Equal(t, []any{18}, args)
}

func TestQueryInvalidIdentifier(t *testing.T) {
	users, _ := newMockTable(t, "users")
	tests := []struct {
		name  string
		query *Query
		kind  string
		ident string
	}{
		{"select", users.Select("id", "email; drop table users"), "column", "email; drop table users"},
		{"order", users.OrderRows("id desc", "asc"), "order column", "id desc"},
		{"group", users.GroupBy(Asc("`role`")), "group column", "`role`"},
		{"join_table", users.Join("orders o", Using("id")), "join table", "orders o"},
		{"join_column", users.LeftJoin("orders", On("users.id", "1=1")), "join column", "1=1"},
		{"reserved_join_table", users.Join("order", Using("id")), "join table", "order"},
		{"reserved_join_column", users.Join("orders", On("users.id", "orders.key")), "join column", "orders.key"},
		{"reserved_using_column", users.LeftJoin("orders", Using("group")), "join column", "group"},
		{"array_filter", users.ArrayFilterRows(Pairs{P("a-b", 1)}), "column", "a-b"},
		{"first_error_kept", users.Select("bad name").OrderRows("worse name", "asc").Select("id"), "column", "bad name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ie *tableq.IdentifierError
			require.ErrorAs(t, tt.query.Err(), &ie)
			assert.Equal(t, tt.kind, ie.Kind)
			assert.Equal(t, tt.ident, ie.Name)
			query, args, err := tt.query.Build()
			assert.ErrorIs(t, err, tableq.ErrInvalidIdentifier)
			assert.Empty(t, query)
			assert.Empty(t, args)
		})
	}
}

func TestSelectSpec(t *testing.T) {
	users, _ := newMockTable(t, "users")
	q := users.Select("id").GroupBy(Asc("role")).OrderRows("id", "desc").FilterRows("age > ?", 18)
	tests := []struct {
		name string
		spec selectSpec
		want string
		args []any
	}{
		{
			name: "filter_and_raw_where",
			spec: selectSpec{filter: Pairs{P("state", "open")}, limit: 1},
			want: "select `id` from users where (age > ?) and `state` = ? group by `role` asc order by `id` desc limit 1",
			args: []any{18, "open"},
		},
		{
			name: "count",
			spec: selectSpec{projection: "count(*)", filter: Pairs{P("state", nil)}, aggregate: true},
			want: "select count(*) from users where (age > ?) and `state` is null",
			args: []any{18},
		},
		{
			name: "exists",
			spec: selectSpec{projection: "1", limit: 1, aggregate: true},
			want: "select 1 from users where age > ? limit 1",
			args: []any{18},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := q.selectSQL(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, query)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestUpdateSQL(t *testing.T) {
	users, _ := newMockTable(t, "users")
	tests := []struct {
		name   string
		query  *Query
		set    Pairs
		filter Pairs
		want   string
		args   []any
		err    error
	}{
		{
			name:   "by_filter",
			query:  users.Query(),
			set:    Pairs{P("name", "bob"), P("age", 30)},
			filter: Pairs{P("id", 1)},
			want:   "update users set `name` = ?, `age` = ? where `id` = ?",
			args:   []any{"bob", 30, 1},
		},
		{
			name:   "set_null_is_bound",
			query:  users.Query(),
			set:    Pairs{P("deleted_at", nil)},
			filter: Pairs{P("id", 1)},
			want:   "update users set `deleted_at` = ? where `id` = ?",
			args:   []any{nil, 1},
		},
		{
			name:   "raw_where_and_null_filter",
			query:  users.FilterRows("age > ?", 18),
			set:    Pairs{P("name", "bob")},
			filter: Pairs{P("id", nil)},
			want:   "update users set `name` = ? where (age > ?) and `id` is null",
			args:   []any{"bob", 18},
		},
		{
			name:   "joined",
			query:  users.Join("orders", On("users.id", "orders.user_id")),
			set:    Pairs{P("users.state", "vip")},
			filter: Pairs{P("orders.total", 100)},
			want:   "update users join orders on users.id = orders.user_id set `users`.`state` = ? where `orders`.`total` = ?",
			args:   []any{"vip", 100},
		},
		{
			name:  "empty_filter",
			query: users.Query(),
			set:   Pairs{P("name", "bob")},
			err:   tableq.ErrEmptyFilter,
		},
		{
			name:   "empty_set",
			query:  users.Query(),
			filter: Pairs{P("id", 1)},
			err:    tableq.ErrEmptySet,
		},
		{
			name:   "invalid_set_column",
			query:  users.Query(),
			set:    Pairs{P("name=1,role", "x")},
			filter: Pairs{P("id", 1)},
			err:    tableq.ErrInvalidIdentifier,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := tt.query.updateSQL(tt.set, tt.filter)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Empty(t, query)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, query)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestDeleteSQL(t *testing.T) {
	users, _ := newMockTable(t, "users")
	tests := []struct {
		name   string
		query  *Query
		filter Pairs
		want   string
		args   []any
		err    error
	}{
		{
			name:   "by_filter",
			query:  users.Query(),
			filter: Pairs{P("id", 1)},
			want:   "delete from `users` where `id` = ?",
			args:   []any{1},
		},
		{
			name:   "null",
			query:  users.Query(),
			filter: Pairs{P("deleted_at", nil)},
			want:   "delete from `users` where `deleted_at` is null",
			args:   []any{},
		},
		{
			name:  "raw_where",
			query: users.FilterRows("created_at < ?", "2020-01-01"),
			want:  "delete from `users` where created_at < ?",
			args:  []any{"2020-01-01"},
		},
		{
			name:   "joined",
			query:  users.LeftJoin("orders", On("users.id", "orders.user_id")),
			filter: Pairs{P("orders.id", nil)},
			want:   "delete `users` from users left join orders on users.id = orders.user_id where `orders`.`id` is null",
			args:   []any{},
		},
		{
			name:  "empty_filter",
			query: users.Query(),
			err:   tableq.ErrEmptyFilter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := tt.query.deleteSQL(tt.filter)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, query)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestCallSQL(t *testing.T) {
	query, args, err := callSQL("sp_users", []any{1, "a"})
	require.NoError(t, err)
	assert.Equal(t, "call sp_users(?,?)", query)
	assert.Equal(t, []any{1, "a"}, args)

	query, args, err = callSQL("db.sp_users", nil)
	require.NoError(t, err)
	assert.Equal(t, "call db.sp_users()", query)
	assert.Empty(t, args)

	_, _, err = callSQL("sp_users(); drop table users; --", nil)
	assert.ErrorIs(t, err, tableq.ErrInvalidIdentifier)
	_, _, err = callSQL("select", nil)
	assert.ErrorIs(t, err, tableq.ErrInvalidIdentifier)
}
