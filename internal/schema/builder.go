// Package schema reverse-engineers a live database into a model.DatabaseModel
// using a vendor connector's catalog queries.
package schema

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/warpdb/warp/internal/connector"
	"github.com/warpdb/warp/internal/model"
)

// lobKeyLength is the prefix length attached to indexed BLOB/CLOB columns.
// Catalog index metadata never reports it, and vendors that index LOBs
// require one.
const lobKeyLength = 300

// IntrospectionError reports a failed catalog read. Unmapped native types
// are wrapped as well; use errors.As with *model.MappingError to tell them
// apart from I/O failures.
type IntrospectionError struct {
	Op    string
	Table string
	Err   error
}

func (e *IntrospectionError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("introspect %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("introspect %s of %s: %v", e.Op, e.Table, e.Err)
}

func (e *IntrospectionError) Unwrap() error { return e.Err }

// Builder reads a schema through a connector catalog.
type Builder struct {
	Catalog connector.Catalog
	// Exclude names tables left out of the model, compared with the
	// profile's identifier case rules.
	Exclude []string
}

// Build returns the model of one schema. catalog and schema may be empty to
// mean the connection's current ones.
func Build(ctx context.Context, q connector.Queryer, cat connector.Catalog, catalog, schema string) (*model.DatabaseModel, error) {
	b := &Builder{Catalog: cat}
	return b.Build(ctx, q, catalog, schema)
}

// Build returns the model of one schema. No partial model is returned on
// error.
func (b *Builder) Build(ctx context.Context, q connector.Queryer, catalog, schema string) (*model.DatabaseModel, error) {
	rows, err := b.Catalog.Tables(ctx, q, catalog, schema)
	if err != nil {
		return nil, &IntrospectionError{Op: "tables", Err: err}
	}

	seqs, err := b.sequences(ctx, q, schema)
	if err != nil {
		return nil, err
	}

	m := &model.DatabaseModel{}
	for _, row := range rows {
		if b.Excludes(row.Name) {
			continue
		}
		if err := b.addTable(ctx, q, m, b.tableRef(row), seqs); err != nil {
			return nil, err
		}
	}
	m.SortTables()
	return m, nil
}

// Excludes reports whether the table name is left out of the model.
func (b *Builder) Excludes(name string) bool {
	p := b.Catalog.Profile()
	for _, ex := range b.Exclude {
		if p.SameName(ex, name) || strings.EqualFold(ex, name) {
			return true
		}
	}
	return false
}

// tableRef normalizes a catalog row to a single qualifier: the catalog for
// vendors treating schema and catalog as one thing, the schema otherwise.
func (b *Builder) tableRef(row connector.TableRow) model.TableRef {
	ref := row.Ref()
	if !b.Catalog.Profile().SchemaIsCatalog {
		ref.Catalog = ""
	} else if ref.Catalog == "" {
		ref.Catalog, ref.Schema = ref.Schema, ""
	}
	return ref
}

// sequences returns the upper-cased sequence names of schema for vendors
// whose column metadata does not flag auto-increment, nil otherwise.
func (b *Builder) sequences(ctx context.Context, q connector.Queryer, schema string) (map[string]bool, error) {
	if b.Catalog.Profile().AutoIncrementInMetadata {
		return nil, nil
	}
	sc, ok := b.Catalog.(connector.SequenceCatalog)
	if !ok {
		return nil, nil
	}
	names, err := sc.Sequences(ctx, q, schema)
	if err != nil {
		return nil, &IntrospectionError{Op: "sequences", Err: err}
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToUpper(n)] = true
	}
	return set, nil
}

func (b *Builder) addTable(ctx context.Context, q connector.Queryer, m *model.DatabaseModel, ref model.TableRef, seqs map[string]bool) error {
	cat := b.Catalog

	colRows, err := cat.Columns(ctx, q, ref)
	if err != nil {
		return &IntrospectionError{Op: "columns", Table: ref.String(), Err: err}
	}
	table := model.TableDef{TableRef: ref, Columns: make([]model.ColumnDef, 0, len(colRows))}
	for _, cr := range colRows {
		col, err := columnDef(cr)
		if err != nil {
			var me *model.MappingError
			if errors.As(err, &me) {
				me.Table, me.Column = ref.Name, cr.Name
			}
			return &IntrospectionError{Op: "columns", Table: ref.String(), Err: err}
		}
		if seqs[strings.ToUpper(ref.Name+"_"+col.Name+"_SEQ")] {
			col.AutoIncrement, col.Default = true, nil
		}
		table.Columns = append(table.Columns, col)
	}
	m.Tables = append(m.Tables, table)

	pkRows, err := cat.PrimaryKeys(ctx, q, ref)
	if err != nil {
		return &IntrospectionError{Op: "primary keys", Table: ref.String(), Err: err}
	}
	pk, pkName := b.primaryKey(ref, pkRows)
	if pk != nil {
		m.PrimaryKeys = append(m.PrimaryKeys, *pk)
	}

	fkRows, err := cat.ImportedKeys(ctx, q, ref)
	if err != nil {
		return &IntrospectionError{Op: "foreign keys", Table: ref.String(), Err: err}
	}
	m.ForeignKeys = append(m.ForeignKeys, b.foreignKeys(ref, fkRows)...)

	ixRows, err := cat.IndexInfo(ctx, q, ref)
	if err != nil {
		return &IntrospectionError{Op: "indexes", Table: ref.String(), Err: err}
	}
	m.Indexes = append(m.Indexes, b.indexes(&table, pkName, ixRows)...)
	return nil
}

func columnDef(r connector.ColumnRow) (model.ColumnDef, error) {
	precision, scale := int(r.Precision.Int64), int(r.Scale.Int64)
	lt, err := model.MapNativeType(r.NativeType, precision, scale)
	if err != nil {
		return model.ColumnDef{}, err
	}

	col := model.ColumnDef{
		Name:          r.Name,
		Type:          lt,
		Nullable:      r.Nullable(),
		AutoIncrement: r.AutoIncrement(),
	}
	switch lt {
	case model.Char, model.Varchar:
		if r.Length.Valid && r.Length.Int64 > 0 {
			col.Length = model.IntPtr(int(r.Length.Int64))
		}
	case model.Decimal:
		// Floating types map to DECIMAL too; their precision is binary and
		// would not survive the trip to another vendor.
		if isExactNumeric(r.NativeType) && r.Precision.Valid && precision > 0 {
			col.Precision = model.IntPtr(precision)
			if r.Scale.Valid {
				col.Scale = model.IntPtr(scale)
			}
		}
	}
	if !col.AutoIncrement && r.Default.Valid {
		if def, ok := connector.UnquoteDefault(r.Default.String); ok {
			col.Default = &def
		}
	}
	return col, nil
}

func isExactNumeric(native string) bool {
	n := strings.ToLower(strings.TrimSpace(native))
	for _, prefix := range []string{"decimal", "numeric", "number", "dec"} {
		if n == prefix || strings.HasPrefix(n, prefix+"(") {
			return true
		}
	}
	return false
}

// primaryKey groups key columns by sequence. The returned raw name is the
// constraint name as the catalog reported it, used for index suppression
// even when the model drops it as a vendor default.
func (b *Builder) primaryKey(ref model.TableRef, rows []connector.PrimaryKeyRow) (*model.PrimaryKeyDef, string) {
	if len(rows) == 0 {
		return nil, ""
	}
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b connector.PrimaryKeyRow) int { return a.KeySeq - b.KeySeq })
	cols := make([]string, len(sorted))
	for i, r := range sorted {
		cols[i] = r.ColumnName
	}

	raw := rows[0].Name.String
	pk := &model.PrimaryKeyDef{Table: ref, Columns: cols}
	if !b.Catalog.Profile().IsDefaultPrimaryKeyName(ref.Name, raw) {
		pk.Name = raw
	}
	return pk, raw
}

// foreignKeys turns imported-key rows into definitions. Every row with key
// sequence 1 starts a new definition, even when the name repeats.
func (b *Builder) foreignKeys(ref model.TableRef, rows []connector.ImportedKeyRow) []model.ForeignKeyDef {
	p := b.Catalog.Profile()
	var (
		fks []model.ForeignKeyDef
		cur *model.ForeignKeyDef
	)
	for _, r := range rows {
		if cur == nil || r.KeySeq == 1 {
			referenced := model.TableRef{Name: r.PKTableName}
			if p.SchemaIsCatalog {
				referenced.Catalog = r.PKTableSchema.String
			} else {
				referenced.Schema = r.PKTableSchema.String
			}
			name := r.Name.String
			if name == "" {
				name = fmt.Sprintf("fk_%s_%d", ref.Name, len(fks)+1)
			}
			fks = append(fks, model.ForeignKeyDef{Name: name, Table: ref, ReferencedTable: referenced})
			cur = &fks[len(fks)-1]
		}
		cur.Pairs = append(cur.Pairs, model.ColumnPair{Column: r.FKColumnName, ReferencedColumn: r.PKColumnName})
	}
	return fks
}

// indexes groups index-info rows; a name change or ordinal 1 starts a new
// index. Indexes the database generated for constraints are dropped.
func (b *Builder) indexes(table *model.TableDef, pkName string, rows []connector.IndexRow) []model.IndexDef {
	var groups []model.IndexDef
	for i, r := range rows {
		if i == 0 || r.Ordinal == 1 || r.Name != rows[i-1].Name {
			groups = append(groups, model.IndexDef{Table: table.TableRef, Name: r.Name, Unique: r.NonUnique == 0})
		}
		ic := model.IndexColumn{Name: r.ColumnName}
		if col := table.Column(r.ColumnName); col != nil && col.Type.IsLOB() {
			ic.KeyLength = lobKeyLength
		}
		g := &groups[len(groups)-1]
		g.Columns = append(g.Columns, ic)
	}

	p := b.Catalog.Profile()
	out := groups[:0]
	for _, ix := range groups {
		if p.IsGeneratedIndex(ix.Name) || (pkName != "" && p.SameName(ix.Name, pkName)) {
			continue
		}
		out = append(out, ix)
	}
	return out
}
