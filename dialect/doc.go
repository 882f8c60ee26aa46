// Package dialect defines the executor contract the table builder runs on.
//
// The builder never talks to database/sql directly. It renders a statement
// and its bound values, then hands both to a Driver (or a Tx) from this
// package. The concrete implementation lives in dialect/sql.
//
// # Dialect Constants
//
// Each dialect is identified by a constant string:
//
//	dialect.MySQL  = "mysql"
//	dialect.SQLite = "sqlite"
//
// The statement grammar emitted by package table is MySQL's. SQLite accepts
// the subset used by selects, updates, deletes and multi-row inserts, which
// is what the integration tests run against.
//
// # Driver Interface
//
//	type Driver interface {
//	    ExecQuerier
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// # Transaction Interface
//
//	type Tx interface {
//	    ExecQuerier
//	    driver.Tx
//	}
//
// # ExecQuerier Interface
//
// Exec and Query take the statement arguments as []any. Exec accepts a nil
// or *sql.Result destination, Query a *sql.Rows (from dialect/sql):
//
//	type ExecQuerier interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	}
//
// # Usage
//
//	drv, err := sql.Open(dialect.MySQL, "user:pass@tcp(127.0.0.1:3306)/app")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
//	users, err := table.New("users", drv)
package dialect
