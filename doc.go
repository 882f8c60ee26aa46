// Package tableq holds the error types shared by the tableq packages.
//
// The statement builder itself lives in package table, the driver layer in
// dialect/sql. Errors returned by either can be inspected with the helpers
// defined here:
//
//	rows, err := users.GetItemsBy(ctx, "email", email, true)
//	switch {
//	case tableq.IsIdentifierError(err):
//	    // rejected before any SQL was sent
//	case tableq.IsExecutionError(err):
//	    // the database reported a failure
//	}
package tableq
