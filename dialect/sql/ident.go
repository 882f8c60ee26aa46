package sql

import (
	"regexp"
	"strings"

	"github.com/syssam/tableq"
)

// maxIdentifierLen bounds an identifier, including an optional qualifier.
const maxIdentifierLen = 128

// validIdentifierRe validates SQL identifiers: a name made of letters, digits
// and underscores, optionally qualified once (table.column).
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

// ValidIdentifier reports whether s may be placed into SQL text as an
// identifier. Anything able to leave a backtick-quoted name (backticks,
// quotes, whitespace, operators, comment markers) is rejected.
func ValidIdentifier(s string) bool {
	return s != "" && len(s) <= maxIdentifierLen && validIdentifierRe.MatchString(s)
}

// CheckIdentifier returns a *tableq.IdentifierError naming kind if s is not
// a valid identifier.
func CheckIdentifier(kind, s string) error {
	if !ValidIdentifier(s) {
		return tableq.NewIdentifierError(kind, s)
	}
	return nil
}

// CheckIdentifiers is like CheckIdentifier for a list of names. It returns
// the error of the first invalid one.
func CheckIdentifiers(kind string, names ...string) error {
	for _, s := range names {
		if err := CheckIdentifier(kind, s); err != nil {
			return err
		}
	}
	return nil
}

// QuoteIdent wraps every dot-separated segment of a validated identifier in
// backticks: "users.id" becomes "`users`.`id`".
func QuoteIdent(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, part := range strings.Split(s, ".") {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteByte('`')
		b.WriteString(part)
		b.WriteByte('`')
	}
	return b.String()
}

// QuoteIdents applies QuoteIdent to each name.
func QuoteIdents(names []string) []string {
	quoted := make([]string, len(names))
	for i, s := range names {
		quoted[i] = QuoteIdent(s)
	}
	return quoted
}

// mysqlReservedWords are the reserved words of MySQL 8.0. Such a name only
// works quoted.
var mysqlReservedWords = func() map[string]struct{} {
	words := strings.Fields(`
		accessible add all alter analyze and as asc asensitive before between
		bigint binary blob both by call cascade case change char character check
		collate column condition constraint continue convert create cross cube
		cume_dist current_date current_time current_timestamp current_user cursor
		database databases day_hour day_microsecond day_minute day_second dec
		decimal declare default delayed delete dense_rank desc describe
		deterministic distinct distinctrow div double drop dual each else elseif
		empty enclosed escaped except exists exit explain false fetch first_value
		float float4 float8 for force foreign from fulltext function generated
		get grant group grouping groups having high_priority hour_microsecond
		hour_minute hour_second if ignore in index infile inner inout insensitive
		insert int int1 int2 int3 int4 int8 integer intersect interval into
		io_after_gtids io_before_gtids is iterate join json_table key keys kill
		lag last_value lateral lead leading leave left like limit linear lines
		load localtime localtimestamp lock long longblob longtext loop
		low_priority master_bind master_ssl_verify_server_cert match maxvalue
		mediumblob mediumint mediumtext middleint minute_microsecond
		minute_second mod modifies natural not no_write_to_binlog nth_value ntile
		null numeric of on optimize optimizer_costs option optionally or order
		out outer outfile over partition percent_rank precision primary
		procedure purge range rank read reads read_write real recursive
		references regexp release rename repeat replace require resignal
		restrict return revoke right rlike row rows row_number schema schemas
		second_microsecond select sensitive separator set show signal smallint
		spatial specific sql sqlexception sqlstate sqlwarning sql_big_result
		sql_calc_found_rows sql_small_result ssl starting stored straight_join
		system table terminated then tinyblob tinyint tinytext to trailing
		trigger true undo union unique unlock unsigned update usage use using
		utc_date utc_time utc_timestamp values varbinary varchar varcharacter
		varying virtual when where while window with write xor year_month
		zerofill`)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// IsReservedWord reports whether s is a MySQL reserved word, in any case.
func IsReservedWord(s string) bool {
	_, ok := mysqlReservedWords[strings.ToLower(s)]
	return ok
}

// ValidBareIdentifier is like ValidIdentifier for names rendered without
// quotes. No dot-separated segment may be a reserved word.
func ValidBareIdentifier(s string) bool {
	if !ValidIdentifier(s) {
		return false
	}
	for part := range strings.SplitSeq(s, ".") {
		if IsReservedWord(part) {
			return false
		}
	}
	return true
}

// CheckBareIdentifier is like CheckIdentifier for names rendered without
// quotes: table names, join conditions, multi-row insert columns and
// routine names.
func CheckBareIdentifier(kind, s string) error {
	if !ValidBareIdentifier(s) {
		return tableq.NewIdentifierError(kind, s)
	}
	return nil
}

// CheckBareIdentifiers is like CheckBareIdentifier for a list of names.
func CheckBareIdentifiers(kind string, names ...string) error {
	for _, s := range names {
		if err := CheckBareIdentifier(kind, s); err != nil {
			return err
		}
	}
	return nil
}
