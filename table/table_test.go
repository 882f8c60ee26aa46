package table

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/tableq"
	"github.com/syssam/tableq/dialect"
	"github.com/syssam/tableq/dialect/sql"
)

func newMockTable(t *testing.T, name string, opts ...Option) (*Table, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return MustNew(name, sql.OpenDB(dialect.MySQL, db), opts...), mock
}

func TestNew(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := sql.OpenDB(dialect.MySQL, db)

	tbl, err := New("users", drv)
	require.NoError(t, err)
	assert.Equal(t, "users", tbl.Name())

	_, err = New("users; drop table users", drv)
	assert.ErrorIs(t, err, tableq.ErrInvalidIdentifier)
	for _, name := range []string{"group", "Order", "shop.table"} {
		_, err = New(name, drv)
		assert.ErrorIs(t, err, tableq.ErrInvalidIdentifier, name)
	}
	_, err = New("users", nil)
	assert.Error(t, err)
	assert.Panics(t, func() { MustNew("1users", drv) })
}

func TestGetAllRows(t *testing.T) {
	users, mock := newMockTable(t, "users")
	mock.ExpectQuery("select `id`,`email` from users order by `id` desc").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).
			AddRow(int64(2), "b@example.com").
			AddRow(int64(1), []byte("a@example.com")))

	rs, err := users.Select("id", "email").OrderRows("id", "desc").GetAllRows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "email"}, rs.Columns())
	require.Equal(t, 2, rs.Len())
	assert.Equal(t, Row{"id": int64(2), "email": "b@example.com"}, rs.Rows()[0])
	assert.Equal(t, "a@example.com", rs.Rows()[1]["email"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRunsTwiceIdentically(t *testing.T) {
	users, mock := newMockTable(t, "users")
	q := users.Select("id").ArrayFilterRows(Pairs{P("state", "open"), P("deleted_at", nil)})
	for range 2 {
		mock.ExpectQuery("select `id` from users where `state` = ? and `deleted_at` is null").
			WithArgs("open").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	}
	for range 2 {
		rs, err := q.GetAllRows(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, rs.Len())
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	t.Run("found", func(t *testing.T) {
		users, mock := newMockTable(t, "users")
		mock.ExpectQuery("select * from users where `id` = ? limit 1").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "bob"))
		var got Row
		row, err := users.Get(ctx, Pairs{P("id", 1)},
			func(_ context.Context, tbl *Table, r Row) error {
				assert.Same(t, users, tbl)
				got = r
				return nil
			},
			func(context.Context, *Table) error {
				t.Fatal("unexpected call to nothing")
				return nil
			},
		)
		require.NoError(t, err)
		assert.Equal(t, Row{"id": int64(1), "name": "bob"}, row)
		assert.Equal(t, row, got)
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("nothing", func(t *testing.T) {
		users, mock := newMockTable(t, "users")
		mock.ExpectQuery("select * from users where `id` = ? limit 1").
			WithArgs(9).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
		called := false
		row, err := users.Get(ctx, Pairs{P("id", 9)}, nil, func(_ context.Context, tbl *Table) error {
			called = true
			return nil
		})
		require.NoError(t, err)
		assert.Nil(t, row)
		assert.True(t, called)
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("callback_error", func(t *testing.T) {
		users, mock := newMockTable(t, "users")
		mock.ExpectQuery("select * from users where `id` = ? limit 1").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
		errStop := errors.New("stop")
		row, err := users.Get(ctx, Pairs{P("id", 1)}, func(context.Context, *Table, Row) error { return errStop }, nil)
		assert.ErrorIs(t, err, errStop)
		assert.NotNil(t, row)
	})
}

func TestWith(t *testing.T) {
	ctx := context.Background()
	users, mock := newMockTable(t, "users")
	mock.ExpectQuery("select `id` from users where `state` = ? limit 10").
		WithArgs("open").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)).AddRow(int64(3)))

	var ids []any
	rs, err := users.Select("id").Limit(10).With(ctx, Pairs{P("state", "open")},
		func(_ context.Context, _ *Table, r Row) error {
			ids = append(ids, r["id"])
			return nil
		}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, ids)
	assert.Equal(t, 3, rs.Len())

	// Iteration stops at the first error.
	mock.ExpectQuery("select * from users where `state` = ?").
		WithArgs("open").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))
	calls := 0
	errStop := errors.New("stop")
	_, err = users.With(ctx, Pairs{P("state", "open")}, func(context.Context, *Table, Row) error {
		calls++
		return errStop
	}, nil)
	assert.ErrorIs(t, err, errStop)
	assert.Equal(t, 1, calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetItemsBy(t *testing.T) {
	ctx := context.Background()
	users, mock := newMockTable(t, "users")
	mock.ExpectQuery("select * from users where `email` = ? limit 1").
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery("select * from users where `role` = ? and `deleted_at` is null order by `id` asc limit 20").
		WithArgs("admin").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))

	rs, err := users.GetItemsBy(ctx, "email", "a@example.com", true)
	require.NoError(t, err)
	assert.Equal(t, 1, rs.Len())

	rs, err = users.OrderRows("id", "asc").Limit(20).
		GetItemsByColumn(ctx, Pairs{P("role", "admin"), P("deleted_at", nil)}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, rs.Len())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExistence(t *testing.T) {
	ctx := context.Background()
	users, mock := newMockTable(t, "users")

	mock.ExpectQuery("select 1 from users where `email` = ? limit 1").
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(int64(1)))
	var does, doesNot int
	ok, err := users.Has(ctx, Pairs{P("email", "a@example.com")},
		func(context.Context, *Table) error { does++; return nil },
		func(context.Context, *Table) error { doesNot++; return nil },
	)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, does)
	assert.Zero(t, doesNot)

	mock.ExpectQuery("select 1 from users where `email` = ? limit 1").
		WithArgs("b@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	ok, err = users.IfHas(ctx, Pairs{P("email", "b@example.com")}, func(context.Context, *Table) error {
		t.Fatal("unexpected call")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectQuery("select 1 from users where `email` = ? limit 1").
		WithArgs("c@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	errCreate := errors.New("create")
	ok, err = users.IfHasNot(ctx, Pairs{P("email", "c@example.com")}, func(context.Context, *Table) error {
		return errCreate
	})
	assert.ErrorIs(t, err, errCreate)
	assert.False(t, ok)

	mock.ExpectQuery("select 1 from users where age > ? limit 1").
		WithArgs(18).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(int64(1)))
	ok, err = users.RowExists(ctx, "age > ?", 18)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectQuery("select 1 from users limit 1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	ok, err = users.RowExists(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregates(t *testing.T) {
	ctx := context.Background()
	users, mock := newMockTable(t, "users")

	mock.ExpectQuery("select count(*) from users where `state` = ?").
		WithArgs("open").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(int64(42)))
	n, err := users.OrderRows("id", "desc").GetTotal(ctx, Pairs{P("state", "open")})
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	mock.ExpectQuery("select count(*) from users").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow("7"))
	n, err = users.GetTotal(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	mock.ExpectQuery("select sum(`amount`) from users where `id` = ?").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("12.5"))
	sum, err := users.GetSum(ctx, "amount", Pairs{P("id", 1)})
	require.NoError(t, err)
	assert.InDelta(t, 12.5, sum, 1e-9)

	mock.ExpectQuery("select sum(`amount`) from users where `id` = ?").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(nil))
	sum, err = users.GetSum(ctx, "amount", Pairs{P("id", 2)})
	require.NoError(t, err)
	assert.Zero(t, sum)

	_, err = users.GetSum(ctx, "amount)", nil)
	assert.ErrorIs(t, err, tableq.ErrInvalidIdentifier)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithCall(t *testing.T) {
	ctx := context.Background()
	users, mock := newMockTable(t, "users")
	mock.ExpectQuery("call sp_active_users(?,?)").
		WithArgs(5, "eu").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))

	var seen int
	rs, err := users.WithCall(ctx, "sp_active_users", []any{5, "eu"},
		func(context.Context, *Table, Row) error { seen++; return nil }, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, rs.Len())
	assert.Equal(t, 2, seen)

	mock.ExpectQuery("call sp_none()").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	nothing := false
	_, err = users.WithCall(ctx, "sp_none", nil, nil, func(context.Context, *Table) error {
		nothing = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, nothing)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDelete(t *testing.T) {
	ctx := context.Background()
	users, mock := newMockTable(t, "users")

	mock.ExpectExec("update users set `name` = ? where `id` = ?").
		WithArgs("bob", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	n, err := users.Update(ctx, Pairs{P("name", "bob")}, Pairs{P("id", 1)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mock.ExpectExec("delete from `users` where `deleted_at` is null").
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err = users.Delete(ctx, Pairs{P("deleted_at", nil)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = users.Update(ctx, Pairs{P("name", "bob")}, nil)
	assert.ErrorIs(t, err, tableq.ErrEmptyFilter)
	_, err = users.Delete(ctx, nil)
	assert.ErrorIs(t, err, tableq.ErrEmptyFilter)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert(t *testing.T) {
	ctx := context.Background()
	users, mock := newMockTable(t, "users")

	mock.ExpectExec("insert into `users` (`name`,`pass`,`created_at`) values (?,md5(?),now())").
		WithArgs("bob", "secret").
		WillReturnResult(sqlmock.NewResult(11, 1))
	id, err := users.Insert(ctx, Pairs{P("name", "bob")}, RawWith("pass", "secret", "md5"), Raw("created_at", "now"))
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)

	mock.ExpectExec("insert ignore into `users` (`email`) values (?)").
		WithArgs("a@example.com").
		WillReturnResult(sqlmock.NewResult(0, 0))
	id, err = users.InsertIgnore(ctx, Pairs{P("email", "a@example.com")})
	require.NoError(t, err)
	assert.Zero(t, id)

	mock.ExpectExec("insert into `users` (`email`,`hits`) values (?,?) on duplicate key update `hits` = values(`hits`), `seen_at` = ?").
		WithArgs("a@example.com", 1, "2024-01-01").
		WillReturnResult(sqlmock.NewResult(12, 2))
	id, err = users.InsertDuplicateKey(ctx, Pairs{P("email", "a@example.com"), P("hits", 1)},
		[]DupEntry{Dup("hits"), DupSet("seen_at", "2024-01-01")})
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecErrors(t *testing.T) {
	ctx := context.Background()
	users, mock := newMockTable(t, "users")

	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a' for key 'email'"}
	mock.ExpectExec("insert into `users` (`email`) values (?)").
		WithArgs("a").
		WillReturnError(dup)
	_, err := users.Insert(ctx, Pairs{P("email", "a")})
	require.Error(t, err)
	assert.True(t, tableq.IsConstraintError(err))
	assert.True(t, tableq.IsExecutionError(err))
	var me *mysql.MySQLError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, uint16(1062), me.Number)

	boom := errors.New("boom")
	mock.ExpectQuery("select * from users").WillReturnError(boom)
	_, err = users.GetAllRows(ctx)
	assert.ErrorIs(t, err, boom)
	var qe *tableq.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "users", qe.Table)
	assert.Equal(t, "select", qe.Op)
	assert.False(t, tableq.IsConstraintError(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

// Invalid names must be rejected before anything is sent: the mock has no
// expectations and would fail any statement with an execution error.
func TestInvalidIdentifierNeverReachesDriver(t *testing.T) {
	ctx := context.Background()
	users, mock := newMockTable(t, "users")
	bad := "name`; drop table users; --"
	ops := map[string]func() error{
		"select": func() error { _, err := users.Select(bad).GetAllRows(ctx); return err },
		"order": func() error {
			_, err := users.OrderRows(bad, "asc").Get(ctx, nil, nil, nil)
			return err
		},
		"group": func() error { _, err := users.GroupBy(Asc(bad)).With(ctx, nil, nil, nil); return err },
		"join":  func() error { _, err := users.Join(bad).GetTotal(ctx, nil); return err },
		"filter": func() error {
			_, err := users.GetItemsByColumn(ctx, Pairs{P(bad, 1)}, false)
			return err
		},
		"items_by": func() error { _, err := users.GetItemsBy(ctx, bad, 1, true); return err },
		"has":      func() error { _, err := users.Has(ctx, Pairs{P(bad, 1)}, nil, nil); return err },
		"sum":      func() error { _, err := users.GetSum(ctx, bad, nil); return err },
		"call":     func() error { _, err := users.WithCall(ctx, bad, nil, nil, nil); return err },
		"update_set": func() error {
			_, err := users.Update(ctx, Pairs{P(bad, 1)}, Pairs{P("id", 1)})
			return err
		},
		"update_filter": func() error {
			_, err := users.Update(ctx, Pairs{P("id", 1)}, Pairs{P(bad, 1)})
			return err
		},
		"delete": func() error { _, err := users.Delete(ctx, Pairs{P(bad, 1)}); return err },
		"insert": func() error { _, err := users.Insert(ctx, Pairs{P(bad, 1)}); return err },
		"insert_raw_column": func() error {
			_, err := users.Insert(ctx, nil, Raw(bad, "now"))
			return err
		},
		"insert_raw_func": func() error {
			_, err := users.Insert(ctx, nil, RawWith("pass", "x", bad))
			return err
		},
		"insert_dup": func() error {
			_, err := users.InsertDuplicateKey(ctx, Pairs{P("id", 1)}, []DupEntry{Dup(bad)})
			return err
		},
		"insert_multi": func() error {
			_, err := users.InsertMultiRow(ctx, []string{"id", bad}, [][]any{{1, 2}})
			return err
		},
		"accessor": func() error { _, err := users.Accessor(bad); return err },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := op()
			require.Error(t, err)
			assert.ErrorIs(t, err, tableq.ErrInvalidIdentifier)
			assert.False(t, tableq.IsExecutionError(err))
		})
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBind(t *testing.T) {
	ctx := context.Background()
	users, mock := newMockTable(t, "users")
	mock.ExpectBegin()
	mock.ExpectExec("delete from `users` where `id` = ?").WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	drv := users.drv.(dialect.Driver)
	tx, err := drv.Tx(ctx)
	require.NoError(t, err)
	bound := users.Bind(tx)
	assert.Same(t, users.keys, bound.keys)
	_, err = bound.Delete(ctx, Pairs{P("id", 1)})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	users, mock := newMockTable(t, "users", WithLogger(logger))
	mock.ExpectQuery("select * from users where `id` = ? limit 1").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := users.Get(context.Background(), Pairs{P("id", 1)}, nil, nil)
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, `msg="tableq: statement"`)
	assert.Contains(t, out, "table=users")
	assert.Contains(t, out, "op=select")
	assert.Contains(t, out, "select * from users where `id` = ? limit 1")
}

func TestStatementLabels(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	var slow []sql.SlowQuery
	drv := sql.NewStatsDriver(sql.OpenDB(dialect.MySQL, db),
		sql.WithSlowThreshold(-1),
		sql.WithSlowQueryHook(func(_ context.Context, q sql.SlowQuery) { slow = append(slow, q) }),
	)
	users := MustNew("users", drv)

	mock.ExpectExec("delete from `users` where `id` = ?").WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("call sp_active_users()").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = users.Delete(ctx, Pairs{P("id", 1)})
	require.NoError(t, err)
	_, err = users.WithCall(ctx, "sp_active_users", nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, slow, 2)
	assert.Equal(t, sql.Label{Table: "users", Op: "delete"}, slow[0].Label)
	assert.Equal(t, []any{1}, slow[0].Args)
	assert.Equal(t, sql.Label{Table: "users", Op: "call"}, slow[1].Label)

	s := drv.Stats()
	assert.Equal(t, int64(1), s.Ops[sql.Label{Table: "users", Op: "delete"}].Execs)
	assert.Equal(t, int64(1), s.Ops[sql.Label{Table: "users", Op: "call"}].Queries)
}
