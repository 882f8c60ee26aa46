// Package cli implements the tableq command: ad-hoc reads, routine calls
// and accessor generation against a single table.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/syssam/tableq/config"
	"github.com/syssam/tableq/dialect"
	"github.com/syssam/tableq/dialect/sql"
	"github.com/syssam/tableq/table"
)

// Version is set at build time.
var Version = "dev"

// globals holds the persistent flags.
type globals struct {
	configFile string
	dsn        string
	dialect    string
	debug      bool
	slow       time.Duration
	set        []string
	output     string
	encode     encodeFunc
}

// NewRootCmd returns the tableq command tree.
func NewRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "tableq",
		Short: "Query a single MySQL table from the command line",
		Long: `tableq builds statements against one table and prints the rows as JSON,
YAML or MessagePack.

Connection settings come from the --config file, the TABLEQ_DSN,
TABLEQ_DIALECT and TABLEQ_DEBUG environment variables, then the flags.

With --slow (or slow_threshold in the config) the statement counts per
table and operation are printed to stderr when the command ends.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			enc, err := encoderFor(g.output)
			if err != nil {
				return err
			}
			g.encode = enc
			if g.debug {
				slog.SetLogLoggerLevel(slog.LevelDebug)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&g.configFile, "config", "", "YAML config file")
	flags.StringVar(&g.dsn, "dsn", "", "data source name, overrides the config")
	flags.StringVar(&g.dialect, "dialect", "", "database dialect (mysql|sqlite)")
	flags.BoolVar(&g.debug, "debug", false, "log every statement")
	flags.DurationVar(&g.slow, "slow", 0, "log statements slower than this duration and print statement stats")
	flags.StringArrayVar(&g.set, "set", nil, "MySQL session variable name=value, repeatable")
	flags.StringVar(&g.output, "output", formatJSON, "output format (json|yaml|msgpack)")
	_ = root.RegisterFlagCompletionFunc("output", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{formatJSON, formatYAML, formatMsgpack}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(
		newPKCmd(g),
		newGetCmd(g),
		newCallCmd(g),
		newGenCmd(g),
	)
	return root
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// open loads the configuration, applies the flags set on cmd and opens the
// database.
func (g *globals) open(cmd *cobra.Command) (dialect.Driver, *config.Config, error) {
	cfg, err := config.Load(g.configFile)
	if err != nil {
		return nil, nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("dsn") {
		cfg.DSN = g.dsn
	}
	if flags.Changed("dialect") {
		cfg.Dialect = g.dialect
	}
	if flags.Changed("debug") {
		cfg.Debug = g.debug
	}
	if flags.Changed("slow") {
		cfg.SlowThreshold = g.slow
	}
	vars, err := parseSet(g.set)
	if err != nil {
		return nil, nil, err
	}
	if len(vars) > 0 && cfg.SessionVars == nil {
		cfg.SessionVars = make(map[string]string, len(vars))
	}
	for name, value := range vars {
		cfg.SessionVars[name] = value
	}
	drv, err := config.Open(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	return drv, cfg, nil
}

// table opens the database and binds name on it. The command context is
// replaced by one carrying the session variables. The returned function
// prints the statement stats, if collected, and closes the database.
func (g *globals) table(cmd *cobra.Command, name string) (*table.Table, func(), error) {
	if err := sql.CheckBareIdentifier("table", name); err != nil {
		return nil, nil, err
	}
	drv, cfg, err := g.open(cmd)
	if err != nil {
		return nil, nil, err
	}
	var opts []table.Option
	if g.debug {
		opts = append(opts, table.WithLogger(slog.Default()))
	}
	t, err := table.New(name, drv, opts...)
	if err != nil {
		_ = drv.Close()
		return nil, nil, err
	}
	cmd.SetContext(cfg.Session(cmd.Context()))
	return t, func() {
		if s, ok := sql.StatsOf(drv); ok {
			printStats(cmd.ErrOrStderr(), s.Stats())
		}
		_ = drv.Close()
	}, nil
}

// parseSet parses name=value session variable arguments.
func parseSet(specs []string) (map[string]string, error) {
	vars := make(map[string]string, len(specs))
	for _, s := range specs {
		name, value, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set %q, expected name=value", s)
		}
		if err := sql.CheckSessionVar(name); err != nil {
			return nil, err
		}
		vars[name] = value
	}
	return vars, nil
}

// printStats writes the totals of s, then one line per table operation.
func printStats(w io.Writer, s sql.StatsSnapshot) {
	fmt.Fprintf(w, "statements: %s\n", s)
	for _, l := range s.Labels() {
		fmt.Fprintf(w, "  %s: %s\n", l, s.Ops[l])
	}
}

// print encodes v to the command output.
func (g *globals) print(cmd *cobra.Command, v any) error {
	return g.encode(cmd.OutOrStdout(), v)
}

// rows returns the rows of rs in a form every encoder accepts.
func rows(rs *table.ResultSet) []map[string]any {
	out := make([]map[string]any, 0, rs.Len())
	for _, r := range rs.Rows() {
		out = append(out, r)
	}
	return out
}
