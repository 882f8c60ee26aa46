// Package config loads the database settings used by the tableq command
// and opens a driver from them.
//
// Settings are read from a YAML file, then overridden by the TABLEQ_DSN,
// TABLEQ_DIALECT and TABLEQ_DEBUG environment variables:
//
//	dialect: mysql
//	mysql:
//	  user: app
//	  password: secret
//	  addr: 127.0.0.1:3306
//	  dbname: shop
//	  params:
//	    charset: utf8mb4
//	    parseTime: "true"
//	session_vars:
//	  sql_mode: TRADITIONAL
//	max_open_conns: 10
//	conn_max_lifetime: 5m
//	slow_threshold: 200ms
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"

	"github.com/syssam/tableq/dialect"
	"github.com/syssam/tableq/dialect/sql"
)

// Environment variables overriding the file settings.
const (
	EnvDSN     = "TABLEQ_DSN"
	EnvDialect = "TABLEQ_DIALECT"
	EnvDebug   = "TABLEQ_DEBUG"
)

// Config holds the connection settings.
type Config struct {
	// Dialect is "mysql" or "sqlite".
	Dialect string `yaml:"dialect"`
	// DSN is the data source name. When set, it wins over MySQL.
	DSN string `yaml:"dsn,omitempty"`
	// MySQL holds structured MySQL settings used when DSN is empty.
	MySQL MySQL `yaml:"mysql,omitempty"`
	// SessionVars are set on the connection around every statement run
	// with the context returned by Session. MySQL only.
	SessionVars map[string]string `yaml:"session_vars,omitempty"`

	MaxOpenConns    int           `yaml:"max_open_conns,omitempty"`
	MaxIdleConns    int           `yaml:"max_idle_conns,omitempty"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime,omitempty"`

	// SlowThreshold enables statement statistics, logging statements
	// slower than the threshold.
	SlowThreshold time.Duration `yaml:"slow_threshold,omitempty"`
	// Debug logs every statement.
	Debug bool `yaml:"debug,omitempty"`
}

// MySQL holds the fields of a MySQL DSN.
type MySQL struct {
	User     string            `yaml:"user,omitempty"`
	Password string            `yaml:"password,omitempty"`
	Net      string            `yaml:"net,omitempty"`
	Addr     string            `yaml:"addr,omitempty"`
	DBName   string            `yaml:"dbname,omitempty"`
	// Params are DSN parameters. Driver options such as charset or
	// parseTime configure the driver; any other key is a system variable
	// the driver sets when it connects.
	Params map[string]string `yaml:"params,omitempty"`
}

// Default returns the configuration of a local MySQL server.
func Default() *Config {
	return &Config{
		Dialect: dialect.MySQL,
		MySQL: MySQL{
			Net:  "tcp",
			Addr: "127.0.0.1:3306",
		},
	}
}

// Load reads the YAML file at path over the defaults, applies the
// environment overrides and validates the result. An empty path skips
// the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML data over the defaults and validates the result.
// The environment is not consulted.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: decode: %w", err)
	}
	return nil
}

// ApplyEnv overrides c with the TABLEQ_* environment variables that are set.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvDSN); ok {
		c.DSN = v
	}
	if v, ok := os.LookupEnv(EnvDialect); ok {
		c.Dialect = v
	}
	if v, ok := os.LookupEnv(EnvDebug); ok {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvDebug, err)
		}
		c.Debug = debug
	}
	return nil
}

// Validate reports every problem found in c.
func (c *Config) Validate() error {
	var errs []error
	switch c.Dialect {
	case dialect.MySQL:
		if c.DSN == "" && c.MySQL.Addr == "" {
			errs = append(errs, errors.New("mysql: dsn or addr is required"))
		}
	case dialect.SQLite:
		if c.DSN == "" {
			errs = append(errs, errors.New("sqlite: dsn is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported dialect %q", c.Dialect))
	}
	if len(c.SessionVars) > 0 && c.Dialect != dialect.MySQL {
		errs = append(errs, fmt.Errorf("session_vars are not supported by %s", c.Dialect))
	}
	for _, name := range slices.Sorted(maps.Keys(c.SessionVars)) {
		if !sql.ValidIdentifier(name) {
			errs = append(errs, fmt.Errorf("invalid session variable %q", name))
		}
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		errs = append(errs, errors.New("connection limits must not be negative"))
	}
	if c.MaxOpenConns > 0 && c.MaxIdleConns > c.MaxOpenConns {
		errs = append(errs, fmt.Errorf("max_idle_conns (%d) exceeds max_open_conns (%d)", c.MaxIdleConns, c.MaxOpenConns))
	}
	if c.ConnMaxLifetime < 0 || c.SlowThreshold < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// MySQLConfig returns the driver configuration of c, parsed from DSN when
// set or built from the MySQL fields.
func (c *Config) MySQLConfig() (*mysql.Config, error) {
	if c.DSN != "" {
		mc, err := mysql.ParseDSN(c.DSN)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		return mc, nil
	}
	mc := mysql.NewConfig()
	mc.User = c.MySQL.User
	mc.Passwd = c.MySQL.Password
	mc.Net = c.MySQL.Net
	mc.Addr = c.MySQL.Addr
	mc.DBName = c.MySQL.DBName
	mc.Params = c.MySQL.Params
	// Round trip through the DSN so that the driver options among Params
	// are applied and only system variables remain in mc.Params.
	parsed, err := mysql.ParseDSN(mc.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("config: mysql params: %w", err)
	}
	return parsed, nil
}

// Session returns ctx carrying the session variables of c, in name order.
func (c *Config) Session(ctx context.Context) context.Context {
	for _, name := range slices.Sorted(maps.Keys(c.SessionVars)) {
		ctx = sql.WithSessionVar(ctx, name, c.SessionVars[name])
	}
	return ctx
}

// FormatDSN returns the data source name of c.
func (c *Config) FormatDSN() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	if c.Dialect != dialect.MySQL {
		return "", fmt.Errorf("config: no dsn for dialect %q", c.Dialect)
	}
	mc, err := c.MySQLConfig()
	if err != nil {
		return "", err
	}
	return mc.FormatDSN(), nil
}

// Open opens the database described by cfg, applies the pool settings and
// checks the connection. The driver is wrapped to collect statistics when
// a slow threshold is set, and to log statements in debug mode.
func Open(ctx context.Context, cfg *Config) (dialect.Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		drv *sql.Driver
		err error
	)
	switch cfg.Dialect {
	case dialect.MySQL:
		mc, merr := cfg.MySQLConfig()
		if merr != nil {
			return nil, merr
		}
		drv, err = sql.OpenConfig(mc)
	default:
		drv, err = sql.Open(cfg.Dialect, cfg.DSN)
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", cfg.Dialect, err)
	}
	db := drv.DB()
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("config: ping %s: %w", cfg.Dialect, err)
	}
	slog.DebugContext(ctx, "tableq: database opened", slog.String("dialect", cfg.Dialect))

	var out dialect.Driver = drv
	if cfg.SlowThreshold > 0 {
		out = sql.NewStatsDriver(out, sql.WithSlowThreshold(cfg.SlowThreshold), sql.WithSlowQueryLog())
	}
	if cfg.Debug {
		out = sql.NewDebugDriver(out)
	}
	return out, nil
}
