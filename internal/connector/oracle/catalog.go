package oracle

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/warpdb/warp/internal/connector"
	"github.com/warpdb/warp/internal/model"
)

// Catalog reads Oracle structure from the ALL_* dictionary views. A schema
// is an owner; an empty schema means the session's current schema.
type Catalog struct{}

// Oracle binds '' as NULL, so an empty schema falls through to the
// session schema.
const ownerFilter = `COALESCE(:1, SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA'))`

func (Catalog) Tables(ctx context.Context, q connector.Queryer, _, schema string) ([]connector.TableRow, error) {
	query := `SELECT NULL AS "table_cat", owner AS "table_schem", table_name AS "table_name"
		FROM all_tables
		WHERE owner = ` + ownerFilter + ` AND dropped = 'NO' AND nested = 'NO'
		ORDER BY table_name`

	var rows []connector.TableRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, schema); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return rows, nil
}

// Columns reports DATE as TIMESTAMP since an Oracle DATE carries a time of
// day. Auto-increment is emulated with sequences and triggers and never
// visible here; see Sequences.
func (Catalog) Columns(ctx context.Context, q connector.Queryer, t model.TableRef) ([]connector.ColumnRow, error) {
	query := `SELECT
			column_name AS "column_name",
			column_id AS "ordinal_position",
			CASE WHEN data_type = 'DATE' THEN 'TIMESTAMP' ELSE data_type END AS "type_name",
			char_length AS "column_size",
			data_precision AS "numeric_precision",
			data_scale AS "numeric_scale",
			CASE nullable WHEN 'Y' THEN 'YES' ELSE 'NO' END AS "is_nullable",
			data_default AS "column_default",
			'NO' AS "is_autoincrement"
		FROM all_tab_columns
		WHERE owner = ` + ownerFilter + ` AND table_name = :2
		ORDER BY column_id`

	var rows []connector.ColumnRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, t.Schema, t.Name); err != nil {
		return nil, fmt.Errorf("columns of %s: %w", t, err)
	}
	return rows, nil
}

func (Catalog) PrimaryKeys(ctx context.Context, q connector.Queryer, t model.TableRef) ([]connector.PrimaryKeyRow, error) {
	query := `SELECT cc.column_name AS "column_name", cc.position AS "key_seq", c.constraint_name AS "pk_name"
		FROM all_constraints c
		JOIN all_cons_columns cc
			ON cc.owner = c.owner AND cc.constraint_name = c.constraint_name
		WHERE c.constraint_type = 'P'
			AND c.owner = ` + ownerFilter + ` AND c.table_name = :2
		ORDER BY cc.position`

	var rows []connector.PrimaryKeyRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, t.Schema, t.Name); err != nil {
		return nil, fmt.Errorf("primary key of %s: %w", t, err)
	}
	return rows, nil
}

func (Catalog) ImportedKeys(ctx context.Context, q connector.Queryer, t model.TableRef) ([]connector.ImportedKeyRow, error) {
	query := `SELECT
			c.constraint_name AS "fk_name",
			r.owner AS "pktable_schem",
			r.table_name AS "pktable_name",
			rc.column_name AS "pkcolumn_name",
			cc.column_name AS "fkcolumn_name",
			cc.position AS "key_seq"
		FROM all_constraints c
		JOIN all_cons_columns cc
			ON cc.owner = c.owner AND cc.constraint_name = c.constraint_name
		JOIN all_constraints r
			ON r.owner = c.r_owner AND r.constraint_name = c.r_constraint_name
		JOIN all_cons_columns rc
			ON rc.owner = r.owner AND rc.constraint_name = r.constraint_name AND rc.position = cc.position
		WHERE c.constraint_type = 'R'
			AND c.owner = ` + ownerFilter + ` AND c.table_name = :2
		ORDER BY r.owner, r.table_name, c.constraint_name, cc.position`

	var rows []connector.ImportedKeyRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, t.Schema, t.Name); err != nil {
		return nil, fmt.Errorf("foreign keys of %s: %w", t, err)
	}
	return rows, nil
}

func (Catalog) IndexInfo(ctx context.Context, q connector.Queryer, t model.TableRef) ([]connector.IndexRow, error) {
	query := `SELECT
			i.index_name AS "index_name",
			CASE i.uniqueness WHEN 'UNIQUE' THEN 0 ELSE 1 END AS "non_unique",
			ic.column_position AS "ordinal_position",
			ic.column_name AS "column_name"
		FROM all_indexes i
		JOIN all_ind_columns ic
			ON ic.index_owner = i.owner AND ic.index_name = i.index_name
		WHERE i.table_owner = ` + ownerFilter + ` AND i.table_name = :2
		ORDER BY 2, 1, 3`

	var rows []connector.IndexRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, t.Schema, t.Name); err != nil {
		return nil, fmt.Errorf("indexes of %s: %w", t, err)
	}
	return rows, nil
}

// Sequences lists the sequence names of a schema. A column backed by a
// sequence named <TABLE>_<COLUMN>_SEQ is auto-increment.
func (Catalog) Sequences(ctx context.Context, q connector.Queryer, schema string) ([]string, error) {
	query := `SELECT sequence_name FROM all_sequences
		WHERE sequence_owner = ` + ownerFilter + `
		ORDER BY sequence_name`

	var names []string
	if err := sqlx.SelectContext(ctx, q, &names, query, schema); err != nil {
		return nil, fmt.Errorf("list sequences: %w", err)
	}
	return names, nil
}

func (Catalog) CurrentSchema(ctx context.Context, q connector.Queryer) (string, error) {
	var name string
	if err := sqlx.GetContext(ctx, q, &name, `SELECT SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA') FROM dual`); err != nil {
		return "", fmt.Errorf("current schema: %w", err)
	}
	return name, nil
}

func (Catalog) SchemaExists(ctx context.Context, q connector.Queryer, schema string) (bool, error) {
	return connector.Count(ctx, q, `SELECT COUNT(*) FROM all_users WHERE username = :1`, schema)
}
