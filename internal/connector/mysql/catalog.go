package mysql

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/warpdb/warp/internal/connector"
	"github.com/warpdb/warp/internal/model"
)

// Catalog reads MySQL structure from information_schema. A MySQL schema is
// a catalog, so tables are qualified by catalog and lookups accept either
// qualifier. An empty qualifier means the current database.
type Catalog struct{}

const databaseFilter = `COALESCE(NULLIF(?, ''), DATABASE())`

func database(t model.TableRef) string {
	if t.Catalog != "" {
		return t.Catalog
	}
	return t.Schema
}

func (Catalog) Tables(ctx context.Context, q connector.Queryer, catalog, schema string) ([]connector.TableRow, error) {
	if catalog == "" {
		catalog = schema
	}
	query := `SELECT table_schema AS table_cat, NULL AS table_schem, table_name AS table_name
		FROM information_schema.tables
		WHERE table_schema = ` + databaseFilter + ` AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	var rows []connector.TableRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, catalog); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return rows, nil
}

// Columns reports tinyint(1) as boolean, the way the driver treats it.
func (Catalog) Columns(ctx context.Context, q connector.Queryer, t model.TableRef) ([]connector.ColumnRow, error) {
	query := `SELECT
			column_name AS column_name,
			ordinal_position AS ordinal_position,
			CASE WHEN column_type = 'tinyint(1)' THEN 'boolean' ELSE data_type END AS type_name,
			character_maximum_length AS column_size,
			numeric_precision AS numeric_precision,
			numeric_scale AS numeric_scale,
			is_nullable AS is_nullable,
			column_default AS column_default,
			CASE WHEN extra LIKE '%auto_increment%' THEN 'YES' ELSE 'NO' END AS is_autoincrement
		FROM information_schema.columns
		WHERE table_schema = ` + databaseFilter + ` AND table_name = ?
		ORDER BY ordinal_position`

	var rows []connector.ColumnRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, database(t), t.Name); err != nil {
		return nil, fmt.Errorf("columns of %s: %w", t, err)
	}
	return rows, nil
}

func (Catalog) PrimaryKeys(ctx context.Context, q connector.Queryer, t model.TableRef) ([]connector.PrimaryKeyRow, error) {
	query := `SELECT column_name AS column_name, seq_in_index AS key_seq, index_name AS pk_name
		FROM information_schema.statistics
		WHERE table_schema = ` + databaseFilter + ` AND table_name = ? AND index_name = 'PRIMARY'
		ORDER BY seq_in_index`

	var rows []connector.PrimaryKeyRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, database(t), t.Name); err != nil {
		return nil, fmt.Errorf("primary key of %s: %w", t, err)
	}
	return rows, nil
}

func (Catalog) ImportedKeys(ctx context.Context, q connector.Queryer, t model.TableRef) ([]connector.ImportedKeyRow, error) {
	query := `SELECT
			constraint_name AS fk_name,
			referenced_table_schema AS pktable_schem,
			referenced_table_name AS pktable_name,
			referenced_column_name AS pkcolumn_name,
			column_name AS fkcolumn_name,
			ordinal_position AS key_seq
		FROM information_schema.key_column_usage
		WHERE table_schema = ` + databaseFilter + ` AND table_name = ?
			AND referenced_table_name IS NOT NULL
		ORDER BY referenced_table_schema, referenced_table_name, constraint_name, ordinal_position`

	var rows []connector.ImportedKeyRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, database(t), t.Name); err != nil {
		return nil, fmt.Errorf("foreign keys of %s: %w", t, err)
	}
	return rows, nil
}

func (Catalog) IndexInfo(ctx context.Context, q connector.Queryer, t model.TableRef) ([]connector.IndexRow, error) {
	query := `SELECT
			index_name AS index_name,
			non_unique AS non_unique,
			seq_in_index AS ordinal_position,
			column_name AS column_name
		FROM information_schema.statistics
		WHERE table_schema = ` + databaseFilter + ` AND table_name = ?
		ORDER BY non_unique, index_name, seq_in_index`

	var rows []connector.IndexRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, database(t), t.Name); err != nil {
		return nil, fmt.Errorf("indexes of %s: %w", t, err)
	}
	return rows, nil
}

func (Catalog) CurrentSchema(ctx context.Context, q connector.Queryer) (string, error) {
	var name *string
	if err := sqlx.GetContext(ctx, q, &name, `SELECT DATABASE()`); err != nil {
		return "", fmt.Errorf("current database: %w", err)
	}
	if name == nil {
		return "", nil
	}
	return *name, nil
}

func (Catalog) SchemaExists(ctx context.Context, q connector.Queryer, schema string) (bool, error) {
	return connector.Count(ctx, q,
		`SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = ?`, schema)
}
