package model

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Difference describes one structural difference between two models.
type Difference struct {
	Category    string // "table_missing", "table_added", "column_changed", "primary_key_changed", ...
	Object      string
	Description string
}

// Diff compares two models by table, column, primary key, foreign key and
// index sets. Catalog and schema qualifiers are ignored so that models taken
// from different schemas can be compared. The result is empty when the
// models are equivalent.
func Diff(want, got *DatabaseModel) []Difference {
	var out []Difference

	gotTables := make(map[string]TableDef, len(got.Tables))
	for _, t := range got.Tables {
		gotTables[t.Name] = t
	}
	wantTables := make(map[string]bool, len(want.Tables))

	for _, wt := range want.Tables {
		wantTables[wt.Name] = true
		gt, ok := gotTables[wt.Name]
		if !ok {
			out = append(out, Difference{
				Category:    "table_missing",
				Object:      wt.Name,
				Description: fmt.Sprintf("Table %q is missing", wt.Name),
			})
			continue
		}
		out = append(out, diffColumns(wt, gt)...)
	}
	for _, gt := range got.Tables {
		if !wantTables[gt.Name] {
			out = append(out, Difference{
				Category:    "table_added",
				Object:      gt.Name,
				Description: fmt.Sprintf("Table %q is unexpected", gt.Name),
			})
		}
	}

	out = append(out, diffSets("primary_key_changed", pkKeys(want), pkKeys(got))...)
	out = append(out, diffSets("foreign_key_changed", fkKeys(want), fkKeys(got))...)
	out = append(out, diffSets("index_changed", indexKeys(want), indexKeys(got))...)
	return out
}

func diffColumns(want, got TableDef) []Difference {
	var out []Difference
	if len(want.Columns) != len(got.Columns) {
		out = append(out, Difference{
			Category:    "column_count_changed",
			Object:      want.Name,
			Description: fmt.Sprintf("Table %q has %d columns, want %d", want.Name, len(got.Columns), len(want.Columns)),
		})
	}
	for i, wc := range want.Columns {
		if i >= len(got.Columns) {
			break
		}
		gc := got.Columns[i]
		if !reflect.DeepEqual(wc, gc) {
			out = append(out, Difference{
				Category:    "column_changed",
				Object:      want.Name + "." + wc.Name,
				Description: fmt.Sprintf("Column %d of %q is %s, want %s", i+1, want.Name, describeColumn(gc), describeColumn(wc)),
			})
		}
	}
	return out
}

func describeColumn(c ColumnDef) string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteString(" ")
	b.WriteString(string(c.Type))
	if c.Length != nil {
		fmt.Fprintf(&b, "(%d)", *c.Length)
	}
	if c.Precision != nil {
		fmt.Fprintf(&b, "(%d", *c.Precision)
		if c.Scale != nil {
			fmt.Fprintf(&b, ",%d", *c.Scale)
		}
		b.WriteString(")")
	}
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if c.AutoIncrement {
		b.WriteString(" AUTO")
	}
	if c.Default != nil {
		b.WriteString(" DEFAULT " + *c.Default)
	}
	return b.String()
}

func diffSets(category string, want, got []string) []Difference {
	var out []Difference
	gotSet := make(map[string]bool, len(got))
	for _, k := range got {
		gotSet[k] = true
	}
	wantSet := make(map[string]bool, len(want))
	for _, k := range want {
		wantSet[k] = true
		if !gotSet[k] {
			out = append(out, Difference{Category: category, Object: k, Description: "missing " + k})
		}
	}
	for _, k := range got {
		if !wantSet[k] {
			out = append(out, Difference{Category: category, Object: k, Description: "unexpected " + k})
		}
	}
	return out
}

func pkKeys(m *DatabaseModel) []string {
	keys := make([]string, 0, len(m.PrimaryKeys))
	for _, pk := range m.PrimaryKeys {
		keys = append(keys, fmt.Sprintf("%s:%s(%s)", pk.Table.Name, pk.Name, strings.Join(pk.Columns, ",")))
	}
	sort.Strings(keys)
	return keys
}

func fkKeys(m *DatabaseModel) []string {
	keys := make([]string, 0, len(m.ForeignKeys))
	for _, fk := range m.ForeignKeys {
		pairs := make([]string, len(fk.Pairs))
		for i, p := range fk.Pairs {
			pairs[i] = p.Column + "->" + p.ReferencedColumn
		}
		keys = append(keys, fmt.Sprintf("%s:%s->%s(%s)", fk.Table.Name, fk.Name, fk.ReferencedTable.Name, strings.Join(pairs, ",")))
	}
	sort.Strings(keys)
	return keys
}

func indexKeys(m *DatabaseModel) []string {
	keys := make([]string, 0, len(m.Indexes))
	for _, idx := range m.Indexes {
		cols := make([]string, len(idx.Columns))
		for i, c := range idx.Columns {
			cols[i] = c.Name
			if c.KeyLength > 0 {
				cols[i] += fmt.Sprintf("(%d)", c.KeyLength)
			}
		}
		keys = append(keys, fmt.Sprintf("%s:%s unique=%t (%s)", idx.Table.Name, idx.Name, idx.Unique, strings.Join(cols, ",")))
	}
	sort.Strings(keys)
	return keys
}
