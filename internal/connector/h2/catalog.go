package h2

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/warpdb/warp/internal/connector"
	"github.com/warpdb/warp/internal/model"
)

// Catalog reads H2 2.x structure. H2 stores unquoted identifiers upper-case,
// so every result column is aliased with a quoted lower-case label.
type Catalog struct{}

const schemaFilter = `COALESCE(NULLIF(CAST($1 AS VARCHAR), ''), CURRENT_SCHEMA)`

func (Catalog) Tables(ctx context.Context, q connector.Queryer, _, schema string) ([]connector.TableRow, error) {
	query := `SELECT TABLE_CATALOG AS "table_cat", TABLE_SCHEMA AS "table_schem", TABLE_NAME AS "table_name"
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ` + schemaFilter + ` AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`

	var rows []connector.TableRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, schema); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return rows, nil
}

func (Catalog) Columns(ctx context.Context, q connector.Queryer, t model.TableRef) ([]connector.ColumnRow, error) {
	query := `SELECT
			COLUMN_NAME AS "column_name",
			ORDINAL_POSITION AS "ordinal_position",
			DATA_TYPE AS "type_name",
			CHARACTER_MAXIMUM_LENGTH AS "column_size",
			NUMERIC_PRECISION AS "numeric_precision",
			NUMERIC_SCALE AS "numeric_scale",
			IS_NULLABLE AS "is_nullable",
			COLUMN_DEFAULT AS "column_default",
			IS_IDENTITY AS "is_autoincrement"
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ` + schemaFilter + ` AND TABLE_NAME = $2
		ORDER BY ORDINAL_POSITION`

	var rows []connector.ColumnRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, t.Schema, t.Name); err != nil {
		return nil, fmt.Errorf("columns of %s: %w", t, err)
	}
	return rows, nil
}

func (Catalog) PrimaryKeys(ctx context.Context, q connector.Queryer, t model.TableRef) ([]connector.PrimaryKeyRow, error) {
	query := `SELECT kcu.COLUMN_NAME AS "column_name", kcu.ORDINAL_POSITION AS "key_seq", tc.CONSTRAINT_NAME AS "pk_name"
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
			ON tc.CONSTRAINT_SCHEMA = kcu.CONSTRAINT_SCHEMA
			AND tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
		WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
			AND tc.TABLE_SCHEMA = ` + schemaFilter + ` AND tc.TABLE_NAME = $2
		ORDER BY kcu.ORDINAL_POSITION`

	var rows []connector.PrimaryKeyRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, t.Schema, t.Name); err != nil {
		return nil, fmt.Errorf("primary key of %s: %w", t, err)
	}
	return rows, nil
}

func (Catalog) ImportedKeys(ctx context.Context, q connector.Queryer, t model.TableRef) ([]connector.ImportedKeyRow, error) {
	query := `SELECT
			kcu.CONSTRAINT_NAME AS "fk_name",
			pk.TABLE_SCHEMA AS "pktable_schem",
			pk.TABLE_NAME AS "pktable_name",
			pk.COLUMN_NAME AS "pkcolumn_name",
			kcu.COLUMN_NAME AS "fkcolumn_name",
			kcu.ORDINAL_POSITION AS "key_seq"
		FROM INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS rc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
			ON kcu.CONSTRAINT_SCHEMA = rc.CONSTRAINT_SCHEMA
			AND kcu.CONSTRAINT_NAME = rc.CONSTRAINT_NAME
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE pk
			ON pk.CONSTRAINT_SCHEMA = rc.UNIQUE_CONSTRAINT_SCHEMA
			AND pk.CONSTRAINT_NAME = rc.UNIQUE_CONSTRAINT_NAME
			AND pk.ORDINAL_POSITION = kcu.POSITION_IN_UNIQUE_CONSTRAINT
		WHERE kcu.TABLE_SCHEMA = ` + schemaFilter + ` AND kcu.TABLE_NAME = $2
		ORDER BY pk.TABLE_SCHEMA, pk.TABLE_NAME, kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`

	var rows []connector.ImportedKeyRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, t.Schema, t.Name); err != nil {
		return nil, fmt.Errorf("foreign keys of %s: %w", t, err)
	}
	return rows, nil
}

func (Catalog) IndexInfo(ctx context.Context, q connector.Queryer, t model.TableRef) ([]connector.IndexRow, error) {
	query := `SELECT
			i.INDEX_NAME AS "index_name",
			CASE WHEN i.INDEX_TYPE_NAME IN ('PRIMARY KEY', 'UNIQUE INDEX') THEN 0 ELSE 1 END AS "non_unique",
			ic.ORDINAL_POSITION AS "ordinal_position",
			ic.COLUMN_NAME AS "column_name"
		FROM INFORMATION_SCHEMA.INDEXES i
		JOIN INFORMATION_SCHEMA.INDEX_COLUMNS ic
			ON ic.INDEX_SCHEMA = i.INDEX_SCHEMA
			AND ic.INDEX_NAME = i.INDEX_NAME
		WHERE i.TABLE_SCHEMA = ` + schemaFilter + ` AND i.TABLE_NAME = $2
		ORDER BY 2, 1, 3`

	var rows []connector.IndexRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, t.Schema, t.Name); err != nil {
		return nil, fmt.Errorf("indexes of %s: %w", t, err)
	}
	return rows, nil
}

func (Catalog) CurrentSchema(ctx context.Context, q connector.Queryer) (string, error) {
	var name string
	if err := sqlx.GetContext(ctx, q, &name, `SELECT CURRENT_SCHEMA`); err != nil {
		return "", fmt.Errorf("current schema: %w", err)
	}
	return name, nil
}

func (Catalog) SchemaExists(ctx context.Context, q connector.Queryer, schema string) (bool, error) {
	return connector.Count(ctx, q,
		`SELECT COUNT(*) FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = $1`, schema)
}
