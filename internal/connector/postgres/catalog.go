package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/warpdb/warp/internal/connector"
	"github.com/warpdb/warp/internal/model"
)

// Catalog reads PostgreSQL structure from information_schema and, for
// indexes, pg_catalog. It is also used by connectors for servers that speak
// the PostgreSQL catalog dialect.
type Catalog struct{}

// Tables lists base tables of schema. An empty schema means the current one.
func (Catalog) Tables(ctx context.Context, q connector.Queryer, _, schema string) ([]connector.TableRow, error) {
	const query = `SELECT table_catalog AS table_cat, table_schema AS table_schem, table_name
		FROM information_schema.tables
		WHERE table_schema = COALESCE(NULLIF($1::text, ''), current_schema())
			AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	var rows []connector.TableRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, schema); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return rows, nil
}

// Columns returns the columns of t in ordinal order. Serial and identity
// columns are reported as auto-increment.
func (Catalog) Columns(ctx context.Context, q connector.Queryer, t model.TableRef) ([]connector.ColumnRow, error) {
	const query = `SELECT
			c.column_name,
			c.ordinal_position,
			c.data_type AS type_name,
			c.character_maximum_length AS column_size,
			c.numeric_precision,
			c.numeric_scale,
			c.is_nullable,
			c.column_default,
			CASE WHEN c.column_default LIKE 'nextval(%' OR c.is_identity = 'YES'
				THEN 'YES' ELSE 'NO' END AS is_autoincrement
		FROM information_schema.columns c
		WHERE c.table_schema = COALESCE(NULLIF($1::text, ''), current_schema())
			AND c.table_name = $2
		ORDER BY c.ordinal_position`

	var rows []connector.ColumnRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, t.Schema, t.Name); err != nil {
		return nil, fmt.Errorf("columns of %s: %w", t, err)
	}
	return rows, nil
}

// PrimaryKeys returns the primary key columns of t in key order.
func (Catalog) PrimaryKeys(ctx context.Context, q connector.Queryer, t model.TableRef) ([]connector.PrimaryKeyRow, error) {
	const query = `SELECT kcu.column_name, kcu.ordinal_position AS key_seq, tc.constraint_name AS pk_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
			AND tc.table_name = kcu.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = COALESCE(NULLIF($1::text, ''), current_schema())
			AND tc.table_name = $2
		ORDER BY kcu.ordinal_position`

	var rows []connector.PrimaryKeyRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, t.Schema, t.Name); err != nil {
		return nil, fmt.Errorf("primary key of %s: %w", t, err)
	}
	return rows, nil
}

// ImportedKeys returns the foreign key column pairs declared on t, ordered
// by referenced table, constraint and key sequence.
func (Catalog) ImportedKeys(ctx context.Context, q connector.Queryer, t model.TableRef) ([]connector.ImportedKeyRow, error) {
	const query = `SELECT
			kcu.constraint_name AS fk_name,
			pk.table_schema AS pktable_schem,
			pk.table_name AS pktable_name,
			pk.column_name AS pkcolumn_name,
			kcu.column_name AS fkcolumn_name,
			kcu.ordinal_position AS key_seq
		FROM information_schema.referential_constraints rc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_schema = rc.constraint_schema
			AND kcu.constraint_name = rc.constraint_name
		JOIN information_schema.key_column_usage pk
			ON pk.constraint_schema = rc.unique_constraint_schema
			AND pk.constraint_name = rc.unique_constraint_name
			AND pk.ordinal_position = kcu.position_in_unique_constraint
		WHERE kcu.table_schema = COALESCE(NULLIF($1::text, ''), current_schema())
			AND kcu.table_name = $2
		ORDER BY pk.table_schema, pk.table_name, kcu.constraint_name, kcu.ordinal_position`

	var rows []connector.ImportedKeyRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, t.Schema, t.Name); err != nil {
		return nil, fmt.Errorf("foreign keys of %s: %w", t, err)
	}
	return rows, nil
}

// IndexInfo returns every index column of t, including constraint-backing
// indexes; the model builder decides which to keep.
func (Catalog) IndexInfo(ctx context.Context, q connector.Queryer, t model.TableRef) ([]connector.IndexRow, error) {
	const query = `SELECT
			i.relname AS index_name,
			CASE WHEN ix.indisunique THEN 0 ELSE 1 END AS non_unique,
			k.n AS ordinal_position,
			a.attname AS column_name
		FROM pg_catalog.pg_index ix
		JOIN pg_catalog.pg_class tbl ON tbl.oid = ix.indrelid
		JOIN pg_catalog.pg_class i ON i.oid = ix.indexrelid
		JOIN pg_catalog.pg_namespace ns ON ns.oid = tbl.relnamespace
		CROSS JOIN LATERAL unnest(ix.indkey::int2[]) WITH ORDINALITY AS k(attnum, n)
		JOIN pg_catalog.pg_attribute a ON a.attrelid = tbl.oid AND a.attnum = k.attnum
		WHERE ns.nspname = COALESCE(NULLIF($1::text, ''), current_schema())
			AND tbl.relname = $2
		ORDER BY non_unique, index_name, ordinal_position`

	var rows []connector.IndexRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, t.Schema, t.Name); err != nil {
		return nil, fmt.Errorf("indexes of %s: %w", t, err)
	}
	return rows, nil
}

// CurrentSchema returns the first schema of the search path.
func (Catalog) CurrentSchema(ctx context.Context, q connector.Queryer) (string, error) {
	var name string
	if err := sqlx.GetContext(ctx, q, &name, `SELECT current_schema()`); err != nil {
		return "", fmt.Errorf("current schema: %w", err)
	}
	return name, nil
}

// SchemaExists reports whether a schema with the exact name exists.
func (Catalog) SchemaExists(ctx context.Context, q connector.Queryer, schema string) (bool, error) {
	return connector.Count(ctx, q,
		`SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = $1`, schema)
}
