package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/tableq/dialect"
)

// resetTimeout bounds the statements restoring session variables on a
// pooled connection.
const resetTimeout = 5 * time.Second

type sessionKey struct{}

type sessionVar struct {
	name, value string
}

// WithSessionVar returns a copy of ctx carrying the MySQL session variable
// name. Every statement run with the returned context first executes
//
//	set @@session.<name> = ?
//
// with value bound. A connection taken from the pool for the statement has
// the variable set back to its default before it is released. Inside a
// transaction the value stays for the rest of the transaction.
//
// Values made of digits only are bound as integers, as MySQL refuses a
// string for numeric system variables.
func WithSessionVar(ctx context.Context, name, value string) context.Context {
	vars, _ := ctx.Value(sessionKey{}).([]sessionVar)
	vars = append(slices.Clip(vars), sessionVar{name: name, value: value})
	return context.WithValue(ctx, sessionKey{}, vars)
}

// SessionVar returns the value of the session variable name carried by
// ctx. When name was set more than once, the last value wins.
func SessionVar(ctx context.Context, name string) (string, bool) {
	vars, _ := ctx.Value(sessionKey{}).([]sessionVar)
	for i := len(vars) - 1; i >= 0; i-- {
		if vars[i].name == name {
			return vars[i].value, true
		}
	}
	return "", false
}

// CheckSessionVar returns a *tableq.IdentifierError if name cannot be set
// as a session variable.
func CheckSessionVar(name string) error {
	if err := CheckIdentifier("session variable", name); err != nil {
		return err
	}
	if strings.Contains(name, ".") {
		return fmt.Errorf("dialect/sql: session variable %q must not be qualified", name)
	}
	return nil
}

// session applies the session variables of ctx. It returns the executor
// the statement must run on and, for a pooled connection, the function
// releasing it.
func (c Conn) session(ctx context.Context) (ExecQuerier, func() error, error) {
	vars, _ := ctx.Value(sessionKey{}).([]sessionVar)
	if len(vars) == 0 {
		return c, nil, nil
	}
	if d := baseDialect(c.dialect); d != dialect.MySQL {
		return nil, nil, fmt.Errorf("session variables are not supported by %s", d)
	}
	for _, v := range vars {
		if err := CheckSessionVar(v.name); err != nil {
			return nil, nil, err
		}
	}
	var (
		ex      ExecQuerier
		release func() error
	)
	switch e := c.ExecQuerier.(type) {
	case *sql.Tx:
		ex = e
	case *sql.DB:
		conn, err := e.Conn(ctx)
		if err != nil {
			return nil, nil, err
		}
		ex, release = conn, conn.Close
	default:
		return nil, nil, fmt.Errorf("session variables need a *sql.DB or *sql.Tx, got %T", c.ExecQuerier)
	}
	names := make([]string, 0, len(vars))
	for _, v := range vars {
		if _, err := ex.ExecContext(ctx, "set @@session."+v.name+" = ?", sessionValue(v.value)); err != nil {
			if release != nil {
				err = errors.Join(err, release())
			}
			return nil, nil, err
		}
		if !slices.Contains(names, v.name) {
			names = append(names, v.name)
		}
	}
	if release == nil {
		return ex, nil, nil
	}
	return ex, func() error {
		// The caller's context may be done by now.
		ctx, cancel := context.WithTimeout(context.Background(), resetTimeout)
		defer cancel()
		for _, name := range names {
			if _, err := ex.ExecContext(ctx, "set @@session."+name+" = default"); err != nil {
				return errors.Join(err, release())
			}
		}
		return release()
	}, nil
}

func sessionValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}
