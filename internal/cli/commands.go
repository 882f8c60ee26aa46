package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syssam/tableq/internal/gen"
	"github.com/syssam/tableq/table"
)

func newPKCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "pk <table>",
		Short: "Print the primary key column of a table",
		Example: `  tableq pk users
  tableq pk users --output yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, closeDB, err := g.table(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeDB()
			pk, ok, err := t.PrimaryKey(cmd.Context())
			if err != nil {
				return err
			}
			return g.print(cmd, map[string]any{
				"table":       t.Name(),
				"primary_key": pk,
				"found":       ok,
			})
		},
	}
}

// getOptions holds the flags of the get command.
type getOptions struct {
	columns []string
	where   []string
	null    []string
	order   []string
	limit   int
}

func newGetCmd(g *globals) *cobra.Command {
	opts := &getOptions{}
	cmd := &cobra.Command{
		Use:   "get <table>",
		Short: "Print the rows of a table matching a filter",
		Example: `  # Rows of active admins, newest first
  tableq get users --where role=admin --null deleted_at --order id:desc --limit 10

  # Selected columns as YAML
  tableq get users --columns id,email --output yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseFilter(opts.where, opts.null)
			if err != nil {
				return err
			}
			orders, err := parseOrders(opts.order)
			if err != nil {
				return err
			}
			t, closeDB, err := g.table(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeDB()
			q := t.Query().OrderBy(orders...).Limit(opts.limit)
			if len(opts.columns) > 0 {
				q = q.Select(opts.columns...)
			}
			rs, err := q.GetItemsByColumn(cmd.Context(), filter, false)
			if err != nil {
				return err
			}
			return g.print(cmd, rows(rs))
		},
	}
	cmd.Flags().StringSliceVar(&opts.columns, "columns", nil, "columns to select (default all)")
	cmd.Flags().StringArrayVar(&opts.where, "where", nil, "equality filter column=value, repeatable")
	cmd.Flags().StringArrayVar(&opts.null, "null", nil, "column that must be NULL, repeatable")
	cmd.Flags().StringArrayVar(&opts.order, "order", nil, "ordering column[:asc|desc], repeatable")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "maximum number of rows (0 = no limit)")
	return cmd
}

func newCallCmd(g *globals) *cobra.Command {
	var on string
	cmd := &cobra.Command{
		Use:   "call <routine> [params...]",
		Short: "Call a stored routine and print its first result set",
		Example: `  tableq call sp_active_users 10 eu --table users
  tableq call sp_purge --table sessions --set max_execution_time=5000`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, closeDB, err := g.table(cmd, on)
			if err != nil {
				return err
			}
			defer closeDB()
			params := make([]any, 0, len(args)-1)
			for _, p := range args[1:] {
				params = append(params, p)
			}
			rs, err := t.WithCall(cmd.Context(), args[0], params, nil, nil)
			if err != nil {
				return err
			}
			return g.print(cmd, rows(rs))
		},
	}
	cmd.Flags().StringVar(&on, "table", "", "table the call is issued for, used in logs and errors")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

// genOptions holds the flags of the gen command.
type genOptions struct {
	columns []string
	pkg     string
	out     string
}

func newGenCmd(g *globals) *cobra.Command {
	opts := &genOptions{}
	cmd := &cobra.Command{
		Use:   "gen <table>",
		Short: "Generate typed column accessors for a table",
		Long: `Generate a Go file declaring one lookup function per column of the table.

Columns are read from information_schema unless --columns is given.`,
		Example: `  tableq gen users --pkg models -o models/users_access.go
  tableq gen users --columns id,email`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, columns := args[0], opts.columns
			if len(columns) == 0 {
				t, closeDB, err := g.table(cmd, name)
				if err != nil {
					return err
				}
				defer closeDB()
				if columns, err = t.ColumnNames(cmd.Context()); err != nil {
					return err
				}
			}
			if opts.out == "" {
				return gen.New(gen.WithPackage(opts.pkg)).Write(cmd.OutOrStdout(), name, columns)
			}
			// A failed render leaves an existing file untouched.
			var buf bytes.Buffer
			if err := gen.New(gen.WithPackage(opts.pkg)).Write(&buf, name, columns); err != nil {
				return err
			}
			return os.WriteFile(opts.out, buf.Bytes(), 0o644)
		},
	}
	cmd.Flags().StringSliceVar(&opts.columns, "columns", nil, "columns to generate accessors for (default all)")
	cmd.Flags().StringVar(&opts.pkg, "pkg", "models", "package name of the generated file")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output file (default stdout)")
	return cmd
}

// parseFilter builds an equality filter from column=value arguments and
// columns that must be NULL.
func parseFilter(where, null []string) (table.Pairs, error) {
	filter := make(table.Pairs, 0, len(where)+len(null))
	for _, w := range where {
		col, val, ok := strings.Cut(w, "=")
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid --where %q, expected column=value", w)
		}
		filter = append(filter, table.P(col, val))
	}
	for _, col := range null {
		filter = append(filter, table.P(col, nil))
	}
	return filter, nil
}

// parseOrders parses column[:direction] arguments.
func parseOrders(specs []string) ([]table.Order, error) {
	orders := make([]table.Order, 0, len(specs))
	for _, s := range specs {
		col, dir, _ := strings.Cut(s, ":")
		switch strings.ToLower(dir) {
		case "", "asc", "desc":
		default:
			return nil, fmt.Errorf("invalid --order %q, expected column[:asc|desc]", s)
		}
		orders = append(orders, table.Order{Column: col, Direction: dir})
	}
	return orders, nil
}
