package changelog

import (
	"fmt"

	"github.com/warpdb/warp/internal/model"
)

// Action is one change inside a change set. The set of implementations is
// closed: every consumer handles them with an exhaustive type switch.
type Action interface {
	// Kind is the document element name of the action.
	Kind() string
	// Target is the table the action operates on, if any.
	Target() model.TableRef
	action()
}

// KeyColumn names one column of a primary key.
type KeyColumn struct {
	Name string `xml:"name,attr"`
}

// CreateTable creates a table with the given ordered columns. PrimaryKey
// and ForeignKeys are optional constraints declared with the table.
type CreateTable struct {
	model.TableRef
	Columns     []model.ColumnDef `xml:"column"`
	PrimaryKey  *PrimaryKey       `xml:"primaryKey"`
	ForeignKeys []ForeignKey      `xml:"foreignKey"`
}

// PrimaryKey is a primary key declared inside a CreateTable.
type PrimaryKey struct {
	Name    string      `xml:"name,attr,omitempty"`
	Columns []KeyColumn `xml:"column"`
}

// ForeignKey is a foreign key declared inside a CreateTable.
type ForeignKey struct {
	Name       string             `xml:"name,attr"`
	References model.TableRef     `xml:"references"`
	Pairs      []model.ColumnPair `xml:"pair"`
}

// DropTable drops a table.
type DropTable struct {
	model.TableRef
}

// AddColumn appends a column to an existing table.
type AddColumn struct {
	model.TableRef
	Column model.ColumnDef `xml:"column"`
}

// DropColumn removes a column.
type DropColumn struct {
	model.TableRef
	Column string `xml:"column,attr"`
}

// RenameTable renames a table.
type RenameTable struct {
	model.TableRef
	NewName string `xml:"newName,attr"`
}

// RenameColumn renames a column.
type RenameColumn struct {
	model.TableRef
	Column  string `xml:"column,attr"`
	NewName string `xml:"newName,attr"`
}

// AddPrimaryKey declares a primary key. Name may be empty.
type AddPrimaryKey struct {
	model.TableRef
	Name    string      `xml:"name,attr,omitempty"`
	Columns []KeyColumn `xml:"column"`
}

// DropPrimaryKey drops the primary key of a table.
type DropPrimaryKey struct {
	model.TableRef
	Name string `xml:"name,attr,omitempty"`
}

// AddForeignKey declares a foreign key constraint.
type AddForeignKey struct {
	model.TableRef
	Name       string             `xml:"name,attr"`
	References model.TableRef     `xml:"references"`
	Pairs      []model.ColumnPair `xml:"pair"`
}

// DropForeignKey drops a foreign key constraint.
type DropForeignKey struct {
	model.TableRef
	Name string `xml:"name,attr"`
}

// CreateIndex creates an index.
type CreateIndex struct {
	model.TableRef
	Name    string              `xml:"name,attr"`
	Unique  bool                `xml:"unique,attr,omitempty"`
	Columns []model.IndexColumn `xml:"column"`
}

// DropIndex drops an index.
type DropIndex struct {
	model.TableRef
	Name string `xml:"name,attr"`
}

// Value is one column value of an Insert, carried as text. Null values
// ignore Text.
type Value struct {
	Column string            `xml:"column,attr"`
	Type   model.LogicalType `xml:"type,attr"`
	Null   bool              `xml:"null,attr,omitempty"`
	Text   string            `xml:",chardata"`
}

// Insert inserts one row. Values bind positionally in order.
type Insert struct {
	model.TableRef
	Values []Value `xml:"value"`
}

// TruncateTable removes every row of a table.
type TruncateTable struct {
	model.TableRef
}

// RunSQL runs raw SQL. When Dialect is set the SQL only runs against
// profiles whose subprotocol contains it.
type RunSQL struct {
	Dialect string `xml:"dbms,attr,omitempty"`
	SQL     string `xml:",chardata"`
}

func (CreateTable) Kind() string    { return "createTable" }
func (DropTable) Kind() string      { return "dropTable" }
func (AddColumn) Kind() string      { return "addColumn" }
func (DropColumn) Kind() string     { return "dropColumn" }
func (RenameTable) Kind() string    { return "renameTable" }
func (RenameColumn) Kind() string   { return "renameColumn" }
func (AddPrimaryKey) Kind() string  { return "addPrimaryKey" }
func (DropPrimaryKey) Kind() string { return "dropPrimaryKey" }
func (AddForeignKey) Kind() string  { return "addForeignKey" }
func (DropForeignKey) Kind() string { return "dropForeignKey" }
func (CreateIndex) Kind() string    { return "createIndex" }
func (DropIndex) Kind() string      { return "dropIndex" }
func (Insert) Kind() string         { return "insert" }
func (TruncateTable) Kind() string  { return "truncateTable" }
func (RunSQL) Kind() string         { return "sql" }

func (a CreateTable) Target() model.TableRef    { return a.TableRef }
func (a DropTable) Target() model.TableRef      { return a.TableRef }
func (a AddColumn) Target() model.TableRef      { return a.TableRef }
func (a DropColumn) Target() model.TableRef     { return a.TableRef }
func (a RenameTable) Target() model.TableRef    { return a.TableRef }
func (a RenameColumn) Target() model.TableRef   { return a.TableRef }
func (a AddPrimaryKey) Target() model.TableRef  { return a.TableRef }
func (a DropPrimaryKey) Target() model.TableRef { return a.TableRef }
func (a AddForeignKey) Target() model.TableRef  { return a.TableRef }
func (a DropForeignKey) Target() model.TableRef { return a.TableRef }
func (a CreateIndex) Target() model.TableRef    { return a.TableRef }
func (a DropIndex) Target() model.TableRef      { return a.TableRef }
func (a Insert) Target() model.TableRef         { return a.TableRef }
func (a TruncateTable) Target() model.TableRef  { return a.TableRef }
func (RunSQL) Target() model.TableRef           { return model.TableRef{} }

func (CreateTable) action()    {}
func (DropTable) action()      {}
func (AddColumn) action()      {}
func (DropColumn) action()     {}
func (RenameTable) action()    {}
func (RenameColumn) action()   {}
func (AddPrimaryKey) action()  {}
func (DropPrimaryKey) action() {}
func (AddForeignKey) action()  {}
func (DropForeignKey) action() {}
func (CreateIndex) action()    {}
func (DropIndex) action()      {}
func (Insert) action()         {}
func (TruncateTable) action()  {}
func (RunSQL) action()         {}

// Describe returns a short human-readable label for logs and errors.
func Describe(a Action) string {
	if t := a.Target(); t.Name != "" {
		return fmt.Sprintf("%s %s", a.Kind(), t)
	}
	return a.Kind()
}

// ColumnNames returns the key column names in order.
func (a AddPrimaryKey) ColumnNames() []string {
	names := make([]string, len(a.Columns))
	for i, c := range a.Columns {
		names[i] = c.Name
	}
	return names
}

// On returns the key as a standalone AddPrimaryKey on t.
func (k PrimaryKey) On(t model.TableRef) AddPrimaryKey {
	return AddPrimaryKey{TableRef: t, Name: k.Name, Columns: k.Columns}
}

// On returns the key as a standalone AddForeignKey on t.
func (k ForeignKey) On(t model.TableRef) AddForeignKey {
	return AddForeignKey{TableRef: t, Name: k.Name, References: k.References, Pairs: k.Pairs}
}

// Inline returns the key in the form declared inside a CreateTable.
func (a AddPrimaryKey) Inline() *PrimaryKey {
	return &PrimaryKey{Name: a.Name, Columns: a.Columns}
}

// Inline returns the key in the form declared inside a CreateTable.
func (a AddForeignKey) Inline() ForeignKey {
	return ForeignKey{Name: a.Name, References: a.References, Pairs: a.Pairs}
}

// ForeignKeyDef converts an AddForeignKey into model form.
func (a AddForeignKey) ForeignKeyDef() model.ForeignKeyDef {
	return model.ForeignKeyDef{
		Name:            a.Name,
		Table:           a.TableRef,
		ReferencedTable: a.References,
		Pairs:           a.Pairs,
	}
}
