package tableq

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for common operations.
var (
	// ErrInvalidIdentifier is matched by every IdentifierError.
	ErrInvalidIdentifier = errors.New("tableq: invalid identifier")

	// ErrColumnCount is matched by every ColumnCountError.
	ErrColumnCount = errors.New("tableq: column count mismatch")

	// ErrConflictingInsertOptions is returned when a multi-row insert asks for
	// both "insert ignore" and a trailing clause such as on duplicate key update.
	ErrConflictingInsertOptions = errors.New("tableq: ignore and after clause are mutually exclusive")

	// ErrEmptyFilter is returned by update and delete when no filter is given.
	ErrEmptyFilter = errors.New("tableq: empty filter")

	// ErrEmptySet is returned by update when there are no columns to set.
	ErrEmptySet = errors.New("tableq: empty set clause")

	// ErrEmptyInsert is returned when an insert has no columns or no rows.
	ErrEmptyInsert = errors.New("tableq: nothing to insert")

	// ErrNotFound is matched by every NotFoundError.
	ErrNotFound = errors.New("tableq: not found")

	// ErrTxStarted is returned when attempting to start a new transaction
	// within an existing transaction.
	ErrTxStarted = errors.New("tableq: cannot start a transaction within a transaction")
)

// IdentifierError is returned when a table, column or routine name does not
// pass identifier validation. Nothing is sent to the database when it occurs.
type IdentifierError struct {
	Kind string // "table", "column", "routine", ...
	Name string // The rejected name.
}

// Error returns the error string.
func (e *IdentifierError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("tableq: invalid identifier %q", e.Name)
	}
	return fmt.Sprintf("tableq: invalid %s name %q", e.Kind, e.Name)
}

// Is reports whether the target error matches IdentifierError.
// This allows errors.Is(err, ErrInvalidIdentifier) to return true.
func (e *IdentifierError) Is(err error) bool {
	return err == ErrInvalidIdentifier
}

// NewIdentifierError returns a new IdentifierError.
func NewIdentifierError(kind, name string) *IdentifierError {
	return &IdentifierError{Kind: kind, Name: name}
}

// IsIdentifierError returns true if the error is an IdentifierError.
func IsIdentifierError(err error) bool {
	if err == nil {
		return false
	}
	var e *IdentifierError
	return errors.As(err, &e)
}

// ColumnCountError is returned when a row of a multi-row insert does not
// have the same number of values as the column header.
type ColumnCountError struct {
	Row  int // Zero-based index of the offending row.
	Want int // Header length.
	Got  int // Row length.
}

// Error returns the error string.
func (e *ColumnCountError) Error() string {
	return fmt.Sprintf("tableq: row %d has %d values, expected %d", e.Row, e.Got, e.Want)
}

// Is reports whether the target error matches ColumnCountError.
func (e *ColumnCountError) Is(err error) bool {
	return err == ErrColumnCount
}

// NewColumnCountError returns a new ColumnCountError.
func NewColumnCountError(row, want, got int) *ColumnCountError {
	return &ColumnCountError{Row: row, Want: want, Got: got}
}

// IsColumnCountError returns true if the error is a ColumnCountError.
func IsColumnCountError(err error) bool {
	if err == nil {
		return false
	}
	var e *ColumnCountError
	return errors.As(err, &e)
}

// NotFoundError represents an error when a looked-up item does not exist.
type NotFoundError struct {
	label string
	key   any // Optional: the key that was searched for
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.key != nil {
		return fmt.Sprintf("tableq: %s not found (key=%v)", e.label, e.key)
	}
	return fmt.Sprintf("tableq: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the label of the missing item.
func (e *NotFoundError) Label() string {
	return e.label
}

// Key returns the key that was searched for, if available.
func (e *NotFoundError) Key() any {
	return e.key
}

// NewNotFoundError returns a new NotFoundError.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// NewNotFoundErrorWithKey returns a new NotFoundError with the key that was searched for.
func NewNotFoundErrorWithKey(label string, key any) *NotFoundError {
	return &NotFoundError{label: label, key: key}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// ConstraintError represents a database constraint violation error.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("tableq: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("tableq: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

// QueryError wraps an error reported by the driver while running a statement.
type QueryError struct {
	Table string // Table the statement was built for
	Op    string // Operation (e.g., "select", "insert", "call")
	Err   error  // Underlying driver error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	switch {
	case e.Op == "":
		return fmt.Sprintf("tableq: querying %s: %v", e.Table, e.Err)
	case e.Table == "":
		return fmt.Sprintf("tableq: %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("tableq: %s %s: %v", e.Op, e.Table, e.Err)
	}
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError returns a new QueryError.
func NewQueryError(table, op string, err error) *QueryError {
	return &QueryError{Table: table, Op: op, Err: err}
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryError
	return errors.As(err, &e)
}

// IsExecutionError reports whether err came from running a statement, as
// opposed to being rejected before any SQL was sent.
func IsExecutionError(err error) bool {
	if err == nil {
		return false
	}
	var rb *RollbackError
	return IsQueryError(err) || IsConstraintError(err) || errors.As(err, &rb)
}
