// Package sql implements dialect.Driver on top of database/sql.
//
// It also owns the pieces of SQL text handling that are not specific to a
// table: identifier validation and quoting, row scanning, and recognizing
// constraint violations in driver errors.
//
// # Opening a Driver
//
//	drv, err := sql.Open(dialect.MySQL, "user:pass@tcp(127.0.0.1:3306)/app")
//
//	// or from a structured configuration
//	cfg := mysql.NewConfig()
//	cfg.Addr, cfg.DBName = "127.0.0.1:3306", "app"
//	drv, err := sql.OpenConfig(cfg)
//
// # Identifiers
//
// Names placed into SQL text go through ValidIdentifier first and are
// rendered with QuoteIdent:
//
//	sql.ValidIdentifier("users.id")   // true
//	sql.ValidIdentifier("id`; --")    // false
//	sql.QuoteIdent("users.id")        // `users`.`id`
//
// # Session Variables
//
// WithSessionVar attaches MySQL session variables that are set on the
// connection before the statement runs and restored to their defaults
// before the connection goes back to the pool:
//
//	ctx = sql.WithSessionVar(ctx, "max_execution_time", "500")
//
// # Instrumentation
//
// StatsDriver counts statements and reports slow ones, DebugDriver logs every
// statement through log/slog (or a custom function). Both wrap any
// dialect.Driver and can be stacked. Statements run with a context from
// WithLabel are also counted per table and operation:
//
//	s := drv.Stats()
//	for _, l := range s.Labels() {
//		fmt.Println(l, s.Ops[l])
//	}
package sql
