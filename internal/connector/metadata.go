package connector

import (
	"database/sql"
	"strconv"
	"strings"
)

// ApplyDeclaredSize fills the size columns of r from a declared type such as
// "VARCHAR(100)" or "DECIMAL(10,2)", for catalogs that only report the type
// text. The first argument is used as both length and precision; the builder
// picks whichever applies to the column's logical type.
func ApplyDeclaredSize(r *ColumnRow, declared string) {
	open := strings.IndexByte(declared, '(')
	if open < 0 {
		return
	}
	closing := strings.IndexByte(declared[open:], ')')
	if closing < 0 {
		return
	}
	args := strings.Split(declared[open+1:open+closing], ",")
	if n, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64); err == nil {
		r.Length = sql.NullInt64{Int64: n, Valid: true}
		r.Precision = sql.NullInt64{Int64: n, Valid: true}
	}
	if len(args) > 1 {
		if n, err := strconv.ParseInt(strings.TrimSpace(args[1]), 10, 64); err == nil {
			r.Scale = sql.NullInt64{Int64: n, Valid: true}
		}
	}
}

// UnquoteDefault normalizes a catalog-reported column default into the
// literal the change model carries: casts such as "'x'::character varying"
// are dropped, surrounding single quotes removed and doubled quotes undone.
// A NULL default reports false.
func UnquoteDefault(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "NULL") {
		return "", false
	}
	for len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' && !strings.ContainsAny(s[1:len(s)-1], "()") {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "'") {
		if i := strings.LastIndex(s, "'::"); i > 0 {
			s = s[:i+1]
		}
	} else if i := strings.Index(s, "::"); i > 0 {
		s = s[:i]
	}
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		s = strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s, true
}
