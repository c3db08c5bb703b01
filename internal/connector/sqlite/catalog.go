package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/warpdb/warp/internal/connector"
	"github.com/warpdb/warp/internal/model"
)

// Catalog reads SQLite structure through the pragma table-valued
// functions. Only the main database is introspected, and tables are
// reported unqualified.
type Catalog struct{}

// tableInfoRow holds a row from pragma_table_info().
type tableInfoRow struct {
	CID     int     `db:"cid"`
	Name    string  `db:"name"`
	Type    string  `db:"type"`
	NotNull int     `db:"notnull"`
	Default *string `db:"dflt_value"`
	PK      int     `db:"pk"`
}

// foreignKeyRow holds a row from pragma_foreign_key_list().
type foreignKeyRow struct {
	ID    int     `db:"id"`
	Seq   int     `db:"seq"`
	Table string  `db:"table"`
	From  string  `db:"from"`
	To    *string `db:"to"`
}

// indexListRow holds a row from pragma_index_list().
type indexListRow struct {
	Name   string `db:"name"`
	Unique int    `db:"unique"`
	Origin string `db:"origin"`
}

// indexInfoRow holds a row from pragma_index_info().
type indexInfoRow struct {
	SeqNo int     `db:"seqno"`
	Name  *string `db:"name"`
}

func (Catalog) Tables(ctx context.Context, q connector.Queryer, _, _ string) ([]connector.TableRow, error) {
	const query = `SELECT NULL AS table_cat, NULL AS table_schem, name AS table_name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`

	var rows []connector.TableRow
	if err := sqlx.SelectContext(ctx, q, &rows, query); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return rows, nil
}

func tableInfo(ctx context.Context, q connector.Queryer, table string) ([]tableInfoRow, error) {
	const query = `SELECT cid, name, type, "notnull", dflt_value, pk
		FROM pragma_table_info(?) ORDER BY cid`

	var rows []tableInfoRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, table); err != nil {
		return nil, err
	}
	return rows, nil
}

// Columns derives sizes from the declared type text. A single INTEGER
// PRIMARY KEY column aliases the rowid and is reported as auto-increment.
func (Catalog) Columns(ctx context.Context, q connector.Queryer, t model.TableRef) ([]connector.ColumnRow, error) {
	info, err := tableInfo(ctx, q, t.Name)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", t, err)
	}
	auto, err := detectAutoIncrement(ctx, q, t.Name, info)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", t, err)
	}

	out := make([]connector.ColumnRow, 0, len(info))
	for _, col := range info {
		row := connector.ColumnRow{
			Name:            col.Name,
			Ordinal:         col.CID + 1,
			NativeType:      col.Type,
			IsNullable:      "YES",
			IsAutoIncrement: "NO",
		}
		if col.NotNull != 0 || col.PK > 0 {
			row.IsNullable = "NO"
		}
		if col.Name == auto {
			row.IsAutoIncrement = "YES"
		}
		if col.Default != nil {
			row.Default = sql.NullString{String: *col.Default, Valid: true}
		}
		connector.ApplyDeclaredSize(&row, col.Type)
		out = append(out, row)
	}
	return out, nil
}

// detectAutoIncrement returns the rowid-alias column of the table, if any,
// by checking the column declaration and the CREATE TABLE text.
func detectAutoIncrement(ctx context.Context, q connector.Queryer, table string, info []tableInfoRow) (string, error) {
	var pk *tableInfoRow
	for i := range info {
		if info[i].PK > 0 {
			if pk != nil {
				return "", nil
			}
			pk = &info[i]
		}
	}
	if pk == nil || !strings.EqualFold(strings.TrimSpace(pk.Type), "INTEGER") {
		return "", nil
	}

	var createSQL string
	const query = `SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`
	if err := sqlx.GetContext(ctx, q, &createSQL, query, table); err != nil {
		return "", err
	}
	if strings.Contains(strings.ToUpper(createSQL), "INTEGER PRIMARY KEY") {
		return pk.Name, nil
	}
	return "", nil
}

// PrimaryKeys reports unnamed keys; SQLite does not keep constraint names.
func (Catalog) PrimaryKeys(ctx context.Context, q connector.Queryer, t model.TableRef) ([]connector.PrimaryKeyRow, error) {
	info, err := tableInfo(ctx, q, t.Name)
	if err != nil {
		return nil, fmt.Errorf("primary key of %s: %w", t, err)
	}
	var out []connector.PrimaryKeyRow
	for _, col := range info {
		if col.PK > 0 {
			out = append(out, connector.PrimaryKeyRow{ColumnName: col.Name, KeySeq: col.PK})
		}
	}
	slices.SortFunc(out, func(a, b connector.PrimaryKeyRow) int { return a.KeySeq - b.KeySeq })
	return out, nil
}

// ImportedKeys names each key fk_<table>_<n>, n counting the keys in
// declaration order, since SQLite keeps no constraint names. The pragma
// numbers keys from the last declared one. A missing referenced column
// means the referenced table's primary key column at the same position.
func (Catalog) ImportedKeys(ctx context.Context, q connector.Queryer, t model.TableRef) ([]connector.ImportedKeyRow, error) {
	const query = `SELECT id, seq, "table", "from", "to"
		FROM pragma_foreign_key_list(?) ORDER BY id DESC, seq`

	var fks []foreignKeyRow
	if err := sqlx.SelectContext(ctx, q, &fks, query, t.Name); err != nil {
		return nil, fmt.Errorf("foreign keys of %s: %w", t, err)
	}

	out := make([]connector.ImportedKeyRow, 0, len(fks))
	last := 0
	if len(fks) > 0 {
		last = fks[0].ID
	}
	for _, fk := range fks {
		to := ""
		if fk.To != nil {
			to = *fk.To
		} else {
			info, err := tableInfo(ctx, q, fk.Table)
			if err != nil {
				return nil, fmt.Errorf("foreign keys of %s: %w", t, err)
			}
			for _, col := range info {
				if col.PK == fk.Seq+1 {
					to = col.Name
				}
			}
		}
		out = append(out, connector.ImportedKeyRow{
			Name:         sql.NullString{String: fmt.Sprintf("fk_%s_%d", t.Name, last-fk.ID+1), Valid: true},
			PKTableName:  fk.Table,
			PKColumnName: to,
			FKColumnName: fk.From,
			KeySeq:       fk.Seq + 1,
		})
	}
	return out, nil
}

func (Catalog) IndexInfo(ctx context.Context, q connector.Queryer, t model.TableRef) ([]connector.IndexRow, error) {
	const listQuery = `SELECT name, "unique", origin FROM pragma_index_list(?) ORDER BY name`

	var indexes []indexListRow
	if err := sqlx.SelectContext(ctx, q, &indexes, listQuery, t.Name); err != nil {
		return nil, fmt.Errorf("indexes of %s: %w", t, err)
	}

	const infoQuery = `SELECT seqno, name FROM pragma_index_info(?) ORDER BY seqno`

	var out []connector.IndexRow
	for _, idx := range indexes {
		// The rowid-alias primary key has no real index behind it.
		if idx.Origin == "pk" {
			continue
		}
		var cols []indexInfoRow
		if err := sqlx.SelectContext(ctx, q, &cols, infoQuery, idx.Name); err != nil {
			return nil, fmt.Errorf("index %s: %w", idx.Name, err)
		}
		nonUnique := 1
		if idx.Unique == 1 {
			nonUnique = 0
		}
		for _, col := range cols {
			if col.Name == nil {
				continue
			}
			out = append(out, connector.IndexRow{
				Name:       idx.Name,
				NonUnique:  nonUnique,
				Ordinal:    col.SeqNo + 1,
				ColumnName: *col.Name,
			})
		}
	}
	return out, nil
}

func (Catalog) CurrentSchema(_ context.Context, _ connector.Queryer) (string, error) {
	return "main", nil
}

func (Catalog) SchemaExists(ctx context.Context, q connector.Queryer, schema string) (bool, error) {
	return connector.Count(ctx, q, `SELECT COUNT(*) FROM pragma_database_list WHERE name = ?`, schema)
}
