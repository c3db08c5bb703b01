package migrate

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warpdb/warp/internal/changelog"
	"github.com/warpdb/warp/internal/connector"
	"github.com/warpdb/warp/internal/history"
	"github.com/warpdb/warp/internal/model"
	"github.com/warpdb/warp/internal/schema"
	"github.com/warpdb/warp/internal/sqlgen"
)

// Change set ids of a dump.
const (
	StructureChangeSet   = "structure"
	DataChangeSet        = "data"
	ForeignKeysChangeSet = "foreign-keys"
)

// Dumper reverse-engineers a schema into a change log. Table references in
// the dump are unqualified, so it replays into any schema. The history
// table is never dumped.
type Dumper struct {
	// Exclude names further tables left out of the dump.
	Exclude []string

	conn     connector.Connector
	registry *sqlgen.Registry
	logger   *slog.Logger
}

// NewDumper returns a Dumper. A nil logger uses slog.Default.
func NewDumper(conn connector.Connector, reg *sqlgen.Registry, logger *slog.Logger) *Dumper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dumper{conn: conn, registry: reg, logger: logger}
}

// DumpStructure returns the tables, keys and indexes of schema. Foreign
// keys come in a change set of their own after the structure.
func (dm *Dumper) DumpStructure(ctx context.Context, schemaName string) (*changelog.ChangeLog, error) {
	m, err := dm.model(ctx, schemaName)
	if err != nil {
		return nil, err
	}
	l := changelog.New()
	l.ChangeSets = append(l.ChangeSets, dm.structure(m))
	if fks := dm.foreignKeys(m); len(fks.Actions) > 0 {
		l.ChangeSets = append(l.ChangeSets, fks)
	}
	return l, nil
}

// DumpData returns one Insert action per row of every table of schema.
func (dm *Dumper) DumpData(ctx context.Context, schemaName string) (*changelog.ChangeLog, error) {
	m, err := dm.model(ctx, schemaName)
	if err != nil {
		return nil, err
	}
	data, err := dm.data(ctx, m)
	if err != nil {
		return nil, err
	}
	l := changelog.New()
	l.ChangeSets = append(l.ChangeSets, data)
	return l, nil
}

// DumpAll returns structure, data and foreign keys of the connection's
// current schema, in an order that replays into an empty database.
func (dm *Dumper) DumpAll(ctx context.Context) (*changelog.ChangeLog, error) {
	schemaName := dm.conn.DefaultSchema()
	m, err := dm.model(ctx, schemaName)
	if err != nil {
		return nil, err
	}
	data, err := dm.data(ctx, m)
	if err != nil {
		return nil, err
	}
	l := changelog.New()
	l.ChangeSets = append(l.ChangeSets, dm.structure(m), data)
	if fks := dm.foreignKeys(m); len(fks.Actions) > 0 {
		l.ChangeSets = append(l.ChangeSets, fks)
	}
	return l, nil
}

func (dm *Dumper) model(ctx context.Context, schemaName string) (*model.DatabaseModel, error) {
	b := &schema.Builder{Catalog: dm.conn, Exclude: append([]string{history.TableName}, dm.Exclude...)}
	m, err := b.Build(ctx, dm.conn.DB(), "", schemaName)
	if err != nil {
		return nil, err
	}
	dm.logger.Debug("schema introspected", "schema", schemaName, "tables", len(m.Tables),
		"foreign_keys", len(m.ForeignKeys), "indexes", len(m.Indexes))
	return m, nil
}

func unqualified(t model.TableRef) model.TableRef { return model.TableRef{Name: t.Name} }

func keyColumns(names []string) []changelog.KeyColumn {
	cols := make([]changelog.KeyColumn, len(names))
	for i, c := range names {
		cols[i] = changelog.KeyColumn{Name: c}
	}
	return cols
}

// structure creates every table with its keys and indexes. Dumps of vendors
// that only declare constraints with the table carry the primary and
// foreign keys inside each CreateTable.
func (dm *Dumper) structure(m *model.DatabaseModel) changelog.ChangeSet {
	inline := dm.conn.Profile().InlineConstraints
	cs := changelog.ChangeSet{ID: StructureChangeSet}
	for _, t := range m.Tables {
		ct := changelog.CreateTable{TableRef: unqualified(t.TableRef), Columns: t.Columns}
		if inline {
			if pk := m.PrimaryKey(t.Name); pk != nil {
				ct.PrimaryKey = &changelog.PrimaryKey{Name: pk.Name, Columns: keyColumns(pk.Columns)}
			}
			for _, fk := range m.ForeignKeys {
				if fk.Table.Name == t.Name {
					ct.ForeignKeys = append(ct.ForeignKeys, changelog.ForeignKey{
						Name: fk.Name, References: unqualified(fk.ReferencedTable), Pairs: fk.Pairs,
					})
				}
			}
		}
		cs.Actions = append(cs.Actions, ct)
	}
	if !inline {
		for _, pk := range m.PrimaryKeys {
			cs.Actions = append(cs.Actions, changelog.AddPrimaryKey{TableRef: unqualified(pk.Table), Name: pk.Name, Columns: keyColumns(pk.Columns)})
		}
	}
	for _, ix := range m.Indexes {
		cs.Actions = append(cs.Actions, changelog.CreateIndex{
			TableRef: unqualified(ix.Table), Name: ix.Name, Unique: ix.Unique, Columns: ix.Columns,
		})
	}
	return cs
}

// foreignKeys is empty when structure already declared the keys.
func (dm *Dumper) foreignKeys(m *model.DatabaseModel) changelog.ChangeSet {
	cs := changelog.ChangeSet{ID: ForeignKeysChangeSet}
	if dm.conn.Profile().InlineConstraints {
		return cs
	}
	for _, fk := range m.ForeignKeys {
		cs.Actions = append(cs.Actions, changelog.AddForeignKey{
			TableRef:   unqualified(fk.Table),
			Name:       fk.Name,
			References: unqualified(fk.ReferencedTable),
			Pairs:      fk.Pairs,
		})
	}
	return cs
}

// loadOrder returns the tables with referenced tables ahead of the tables
// referencing them, so that rows load with foreign keys in force. Tables
// in a reference cycle keep name order.
func loadOrder(m *model.DatabaseModel) []model.TableDef {
	deps := make(map[string][]string)
	for _, fk := range m.ForeignKeys {
		if fk.ReferencedTable.Name != fk.Table.Name {
			deps[fk.Table.Name] = append(deps[fk.Table.Name], fk.ReferencedTable.Name)
		}
	}
	out := make([]model.TableDef, 0, len(m.Tables))
	seen := make(map[string]bool, len(m.Tables))
	var visit func(t *model.TableDef)
	visit = func(t *model.TableDef) {
		if seen[t.Name] {
			return
		}
		seen[t.Name] = true
		for _, dep := range deps[t.Name] {
			if parent := m.Table(dep); parent != nil {
				visit(parent)
			}
		}
		out = append(out, *t)
	}
	for i := range m.Tables {
		visit(&m.Tables[i])
	}
	return out
}

// data reads every row, ordered by primary key where there is one. Tables
// come in load order.
func (dm *Dumper) data(ctx context.Context, m *model.DatabaseModel) (changelog.ChangeSet, error) {
	cs := changelog.ChangeSet{ID: DataChangeSet}
	d, err := sqlgen.NewDispatcher(dm.registry, dm.conn.Profile(), dm.conn.DB(), dm.logger)
	if err != nil {
		return cs, err
	}

	for _, t := range loadOrder(m) {
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = c.Name
		}
		var orderBy []string
		if pk := m.PrimaryKey(t.Name); pk != nil {
			orderBy = pk.Columns
		}
		query, err := d.SelectAll(t.TableRef, cols, orderBy)
		if err != nil {
			return cs, err
		}

		rows, err := dm.conn.DB().QueryxContext(ctx, query)
		if err != nil {
			return cs, fmt.Errorf("read %s: %w", t.TableRef, err)
		}
		n := 0
		for rows.Next() {
			raw, err := rows.SliceScan()
			if err != nil {
				rows.Close()
				return cs, fmt.Errorf("read %s: %w", t.TableRef, err)
			}
			ins := changelog.Insert{TableRef: unqualified(t.TableRef), Values: make([]changelog.Value, len(raw))}
			for i, v := range raw {
				col := t.Columns[i]
				text, null, err := FormatValue(col.Type, v)
				if err != nil {
					rows.Close()
					return cs, fmt.Errorf("read %s.%s: %w", t.Name, col.Name, err)
				}
				ins.Values[i] = changelog.Value{Column: col.Name, Type: col.Type, Text: text, Null: null}
			}
			cs.Actions = append(cs.Actions, ins)
			n++
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return cs, fmt.Errorf("read %s: %w", t.TableRef, err)
		}
		dm.logger.Debug("table dumped", "table", t.Name, "rows", n)
	}
	return cs, nil
}

// FormatValue renders a scanned column value as change-log text for its
// logical type. null is true for SQL NULL.
func FormatValue(t model.LogicalType, v any) (text string, null bool, err error) {
	switch v := v.(type) {
	case nil:
		return "", true, nil
	case []byte:
		if t == model.Blob {
			return base64.StdEncoding.EncodeToString(v), false, nil
		}
		return formatText(t, string(v))
	case string:
		if t == model.Blob {
			return base64.StdEncoding.EncodeToString([]byte(v)), false, nil
		}
		return formatText(t, v)
	case bool:
		if t == model.Boolean {
			return strconv.FormatBool(v), false, nil
		}
		if v {
			return "1", false, nil
		}
		return "0", false, nil
	case int64:
		return formatInt(t, v), false, nil
	case int32:
		return formatInt(t, int64(v)), false, nil
	case int:
		return formatInt(t, int64(v)), false, nil
	case float64:
		return decimal.NewFromFloat(v).String(), false, nil
	case float32:
		return decimal.NewFromFloat32(v).String(), false, nil
	case decimal.Decimal:
		return v.String(), false, nil
	case time.Time:
		switch t {
		case model.Date:
			return v.Format("2006-01-02"), false, nil
		case model.Time:
			return v.Format("15:04:05.999999999"), false, nil
		}
		return v.Format(time.RFC3339Nano), false, nil
	case fmt.Stringer:
		return formatText(t, v.String())
	}
	return "", false, fmt.Errorf("unsupported value %T for %s", v, t)
}

func formatInt(t model.LogicalType, n int64) string {
	if t == model.Boolean {
		return strconv.FormatBool(n != 0)
	}
	return strconv.FormatInt(n, 10)
}

// formatText normalizes values drivers return as text, such as MySQL
// numbers or SQLite booleans.
func formatText(t model.LogicalType, s string) (string, bool, error) {
	switch t {
	case model.Boolean:
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "1", "t", "true", "y", "yes":
			return "true", false, nil
		case "0", "f", "false", "n", "no":
			return "false", false, nil
		}
		return "", false, fmt.Errorf("invalid boolean %q", s)
	case model.Decimal:
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return "", false, err
		}
		return d.String(), false, nil
	case model.Int8, model.Int16, model.Int32, model.Int64:
		return strings.TrimSpace(s), false, nil
	}
	return s, false, nil
}
