// Package table builds and runs MySQL-flavored statements against a single
// table.
//
// A Table is bound to one table name and a driver. Configuration calls
// (Select, Join, OrderBy, FilterRows, ...) return an immutable Query; the
// terminal operations render one statement from that Query and their
// arguments, bind every value through placeholders and run it:
//
//	users := table.MustNew("users", drv)
//	rs, err := users.
//	    Select("id", "email").
//	    LeftJoin("profiles", table.Using("id")).
//	    OrderRows("id", "desc").
//	    GetItemsByColumn(ctx, table.Pairs{table.P("deleted_at", nil)}, false)
//
// Table, column, function and routine names are checked against a strict
// identifier pattern before any SQL text is produced. The expressions given
// to FilterRows, RowExists, AppendSpecialCol and the After insert option are
// trusted SQL and are rendered as is.
//
// Filters compare with "=", except NULL values which render "is null" and
// are not bound.
package table
