package model

import (
	"sort"
	"strings"
)

// TableRef identifies a table, optionally qualified by catalog and schema.
type TableRef struct {
	Catalog string `xml:"catalog,attr,omitempty"`
	Schema  string `xml:"schema,attr,omitempty"`
	Name    string `xml:"table,attr"`
}

// String returns the dot-qualified, unquoted name.
func (r TableRef) String() string {
	parts := make([]string, 0, 3)
	if r.Catalog != "" {
		parts = append(parts, r.Catalog)
	}
	if r.Schema != "" {
		parts = append(parts, r.Schema)
	}
	parts = append(parts, r.Name)
	return strings.Join(parts, ".")
}

// ColumnDef describes a single table column. Default is nil when the column
// has no default or is auto-incremented.
type ColumnDef struct {
	Name          string      `xml:"name,attr"`
	Type          LogicalType `xml:"type,attr"`
	Length        *int        `xml:"length,attr,omitempty"`
	Precision     *int        `xml:"precision,attr,omitempty"`
	Scale         *int        `xml:"scale,attr,omitempty"`
	Nullable      bool        `xml:"nullable,attr"`
	AutoIncrement bool        `xml:"autoIncrement,attr,omitempty"`
	Default       *string     `xml:"default,attr,omitempty"`
}

// TableDef describes a table and its ordered columns.
type TableDef struct {
	TableRef
	Columns []ColumnDef
}

// Column returns the named column, or nil.
func (t *TableDef) Column(name string) *ColumnDef {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// PrimaryKeyDef describes a primary key constraint. Name is empty when the
// database reported its synthetic default name.
type PrimaryKeyDef struct {
	Table   TableRef
	Name    string
	Columns []string
}

// ColumnPair maps a referencing column to the referenced column.
type ColumnPair struct {
	Column           string `xml:"column,attr"`
	ReferencedColumn string `xml:"referencedColumn,attr"`
}

// ForeignKeyDef describes a foreign key constraint. Pairs are in key
// sequence order.
type ForeignKeyDef struct {
	Name            string
	Table           TableRef
	ReferencedTable TableRef
	Pairs           []ColumnPair
}

// IndexColumn is one column of an index. KeyLength is non-zero when the
// index covers only a prefix of the column.
type IndexColumn struct {
	Name      string `xml:"name,attr"`
	KeyLength int    `xml:"length,attr,omitempty"`
}

// IndexDef describes a secondary index.
type IndexDef struct {
	Table   TableRef
	Name    string
	Unique  bool
	Columns []IndexColumn
}

// DatabaseModel is the structure of one schema. Tables are sorted by name.
// A model is built in one pass and not modified afterwards.
type DatabaseModel struct {
	Tables      []TableDef
	PrimaryKeys []PrimaryKeyDef
	ForeignKeys []ForeignKeyDef
	Indexes     []IndexDef
}

// Table returns the named table, or nil.
func (m *DatabaseModel) Table(name string) *TableDef {
	i := sort.Search(len(m.Tables), func(i int) bool { return m.Tables[i].Name >= name })
	if i < len(m.Tables) && m.Tables[i].Name == name {
		return &m.Tables[i]
	}
	return nil
}

// TableNames returns table names in model order.
func (m *DatabaseModel) TableNames() []string {
	names := make([]string, len(m.Tables))
	for i, t := range m.Tables {
		names[i] = t.Name
	}
	return names
}

// PrimaryKey returns the primary key of the named table, or nil.
func (m *DatabaseModel) PrimaryKey(table string) *PrimaryKeyDef {
	for i := range m.PrimaryKeys {
		if m.PrimaryKeys[i].Table.Name == table {
			return &m.PrimaryKeys[i]
		}
	}
	return nil
}

// SortTables orders tables by name. Builders call it once before returning.
func (m *DatabaseModel) SortTables() {
	sort.SliceStable(m.Tables, func(i, j int) bool { return m.Tables[i].Name < m.Tables[j].Name })
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// StringPtr returns a pointer to v.
func StringPtr(v string) *string { return &v }
