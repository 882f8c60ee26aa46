// Package gen generates typed column accessors for a table: one lookup
// function per column and a map of them keyed by column name.
//
// For a table "users" with columns "id" and "email" the generated file
// declares UsersTable, UsersColumns, UsersByID, UsersByEmail and
// UsersAccessors.
package gen

import (
	"fmt"
	"io"
	"strings"

	"github.com/dave/jennifer/jen"
	"github.com/go-openapi/inflect"

	"github.com/syssam/tableq/dialect/sql"
)

const (
	tablePkg      = "github.com/syssam/tableq/table"
	defaultHeader = "Code generated by tableq. DO NOT EDIT."
)

// Generator renders accessor files.
type Generator struct {
	pkg    string
	header string
}

// Option configures a Generator.
type Option func(*Generator)

// WithPackage sets the package name of generated files. Default "models".
func WithPackage(name string) Option {
	return func(g *Generator) {
		if name != "" {
			g.pkg = name
		}
	}
}

// WithHeader replaces the generated-code header comment.
func WithHeader(header string) Option {
	return func(g *Generator) {
		g.header = header
	}
}

// New returns a Generator.
func New(opts ...Option) *Generator {
	g := &Generator{pkg: "models", header: defaultHeader}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the Go name of the accessor of column in table:
// Name("user_roles", "role_id") is "UserRolesByRoleID".
func Name(table, column string) string {
	return pascal(table) + "By" + pascal(column)
}

// acronyms are kept upper case in generated names.
var acronyms = map[string]string{
	"Id":   "ID",
	"Ids":  "IDs",
	"Url":  "URL",
	"Uuid": "UUID",
	"Ip":   "IP",
	"Api":  "API",
	"Json": "JSON",
	"Sku":  "SKU",
}

// pascal converts a snake_case identifier to PascalCase.
func pascal(s string) string {
	words := strings.Split(s, "_")
	for i, w := range words {
		w = inflect.Camelize(strings.ToLower(w))
		if a, ok := acronyms[w]; ok {
			w = a
		}
		words[i] = w
	}
	return strings.Join(words, "")
}

// File returns the accessor file of table.
func (g *Generator) File(table string, columns []string) (*jen.File, error) {
	if err := checkName("table", table); err != nil {
		return nil, err
	}
	// The table name is rendered unquoted by the builder.
	if err := sql.CheckBareIdentifier("table", table); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("gen: table %s has no columns", table)
	}
	names := make(map[string]string, len(columns))
	for _, c := range columns {
		if err := checkName("column", c); err != nil {
			return nil, err
		}
		n := Name(table, c)
		if prev, ok := names[n]; ok {
			return nil, fmt.Errorf("gen: columns %q and %q both map to %s", prev, c, n)
		}
		names[n] = c
	}

	var (
		prefix   = pascal(table)
		accessor = prefix + "Accessor"
	)
	f := jen.NewFile(g.pkg)
	if g.header != "" {
		f.HeaderComment(g.header)
	}

	f.Commentf("%sTable is the name of the %s table.", prefix, table)
	f.Const().Id(prefix + "Table").Op("=").Lit(table)

	f.Commentf("%sColumns lists the columns of the %s table.", prefix, table)
	f.Var().Id(prefix + "Columns").Op("=").Index().String().ValuesFunc(func(vals *jen.Group) {
		for _, c := range columns {
			vals.Lit(c)
		}
	})

	f.Commentf("%s looks up rows of the %s table by the value of one column.", accessor, table)
	f.Type().Id(accessor).Func().Params(
		jen.Id("ctx").Qual("context", "Context"),
		jen.Id("t").Op("*").Qual(tablePkg, "Table"),
		jen.Id("v").Any(),
		jen.Id("unique").Bool(),
	).Params(jen.Op("*").Qual(tablePkg, "ResultSet"), jen.Error())

	for _, c := range columns {
		name := Name(table, c)
		f.Commentf("%s returns the rows of %s whose %s equals v.", name, table, c)
		f.Func().Id(name).Params(
			jen.Id("ctx").Qual("context", "Context"),
			jen.Id("t").Op("*").Qual(tablePkg, "Table"),
			jen.Id("v").Any(),
			jen.Id("unique").Bool(),
		).Params(jen.Op("*").Qual(tablePkg, "ResultSet"), jen.Error()).Block(
			jen.Return(jen.Id("t").Dot("GetItemsBy").Call(jen.Id("ctx"), jen.Lit(c), jen.Id("v"), jen.Id("unique"))),
		)
	}

	f.Commentf("%sAccessors maps each column of the %s table to its accessor.", prefix, table)
	f.Var().Id(prefix + "Accessors").Op("=").Map(jen.String()).Id(accessor).ValuesFunc(func(vals *jen.Group) {
		for _, c := range columns {
			vals.Lit(c).Op(":").Id(Name(table, c))
		}
	})
	return f, nil
}

// Write renders the accessor file of table to w.
func (g *Generator) Write(w io.Writer, table string, columns []string) error {
	f, err := g.File(table, columns)
	if err != nil {
		return err
	}
	if err := f.Render(w); err != nil {
		return fmt.Errorf("gen: render %s: %w", table, err)
	}
	return nil
}

// checkName validates an unqualified identifier.
func checkName(kind, name string) error {
	if err := sql.CheckIdentifier(kind, name); err != nil {
		return err
	}
	if strings.Contains(name, ".") {
		return fmt.Errorf("gen: %s name %q must not be qualified", kind, name)
	}
	return nil
}
