package derby

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/warpdb/warp/internal/connector"
	"github.com/warpdb/warp/internal/model"
)

// Catalog reads Derby structure through the SYSIBM metadata procedures,
// which return the same result sets as JDBC DatabaseMetaData. Their
// arguments are LIKE patterns, so rows are filtered by exact table name.
type Catalog struct{}

type metaRow map[string]any

func (r metaRow) str(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func (r metaRow) nullStr(key string) sql.NullString {
	if r[key] == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: r.str(key), Valid: true}
}

func (r metaRow) num(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case nil:
		return 0
	}
	n, _ := strconv.ParseInt(r.str(key), 10, 64)
	return n
}

func (r metaRow) nullNum(key string) sql.NullInt64 {
	if r[key] == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: r.num(key), Valid: true}
}

func call(ctx context.Context, q connector.Queryer, stmt string, args ...any) ([]metaRow, error) {
	rows, err := q.QueryxContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []metaRow
	for rows.Next() {
		m := make(map[string]any)
		if err := rows.MapScan(m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (c Catalog) Tables(ctx context.Context, q connector.Queryer, _, schema string) ([]connector.TableRow, error) {
	if schema == "" {
		current, err := c.CurrentSchema(ctx, q)
		if err != nil {
			return nil, err
		}
		schema = current
	}
	rows, err := call(ctx, q, `CALL SYSIBM.SQLTABLES(NULL, ?, '%', 'TABLE', NULL)`, schema)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	out := make([]connector.TableRow, 0, len(rows))
	for _, r := range rows {
		if r.str("TABLE_SCHEM") != schema {
			continue
		}
		out = append(out, connector.TableRow{
			Schema: r.nullStr("TABLE_SCHEM"),
			Name:   r.str("TABLE_NAME"),
		})
	}
	return out, nil
}

func (Catalog) Columns(ctx context.Context, q connector.Queryer, t model.TableRef) ([]connector.ColumnRow, error) {
	rows, err := call(ctx, q, `CALL SYSIBM.SQLCOLUMNS(NULL, ?, ?, NULL, NULL)`, nullable(t.Schema), t.Name)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", t, err)
	}
	var out []connector.ColumnRow
	for _, r := range rows {
		if r.str("TABLE_NAME") != t.Name {
			continue
		}
		out = append(out, connector.ColumnRow{
			Name:            r.str("COLUMN_NAME"),
			Ordinal:         int(r.num("ORDINAL_POSITION")),
			NativeType:      r.str("TYPE_NAME"),
			Length:          r.nullNum("COLUMN_SIZE"),
			Precision:       r.nullNum("COLUMN_SIZE"),
			Scale:           r.nullNum("DECIMAL_DIGITS"),
			IsNullable:      r.str("IS_NULLABLE"),
			Default:         r.nullStr("COLUMN_DEF"),
			IsAutoIncrement: r.str("IS_AUTOINCREMENT"),
		})
	}
	return out, nil
}

func (Catalog) PrimaryKeys(ctx context.Context, q connector.Queryer, t model.TableRef) ([]connector.PrimaryKeyRow, error) {
	rows, err := call(ctx, q, `CALL SYSIBM.SQLPRIMARYKEYS(NULL, ?, ?, NULL)`, nullable(t.Schema), t.Name)
	if err != nil {
		return nil, fmt.Errorf("primary key of %s: %w", t, err)
	}
	var out []connector.PrimaryKeyRow
	for _, r := range rows {
		out = append(out, connector.PrimaryKeyRow{
			ColumnName: r.str("COLUMN_NAME"),
			KeySeq:     int(r.num("KEY_SEQ")),
			Name:       r.nullStr("PK_NAME"),
		})
	}
	return out, nil
}

func (Catalog) ImportedKeys(ctx context.Context, q connector.Queryer, t model.TableRef) ([]connector.ImportedKeyRow, error) {
	rows, err := call(ctx, q, `CALL SYSIBM.SQLFOREIGNKEYS(NULL, NULL, NULL, NULL, ?, ?, NULL)`, nullable(t.Schema), t.Name)
	if err != nil {
		return nil, fmt.Errorf("foreign keys of %s: %w", t, err)
	}
	var out []connector.ImportedKeyRow
	for _, r := range rows {
		out = append(out, connector.ImportedKeyRow{
			Name:          r.nullStr("FK_NAME"),
			PKTableSchema: r.nullStr("PKTABLE_SCHEM"),
			PKTableName:   r.str("PKTABLE_NAME"),
			PKColumnName:  r.str("PKCOLUMN_NAME"),
			FKColumnName:  r.str("FKCOLUMN_NAME"),
			KeySeq:        int(r.num("KEY_SEQ")),
		})
	}
	return out, nil
}

// IndexInfo skips the table-statistic row, which has no index name.
func (Catalog) IndexInfo(ctx context.Context, q connector.Queryer, t model.TableRef) ([]connector.IndexRow, error) {
	rows, err := call(ctx, q, `CALL SYSIBM.SQLSTATISTICS(NULL, ?, ?, 1, 1, NULL)`, nullable(t.Schema), t.Name)
	if err != nil {
		return nil, fmt.Errorf("indexes of %s: %w", t, err)
	}
	var out []connector.IndexRow
	for _, r := range rows {
		if r.str("INDEX_NAME") == "" {
			continue
		}
		out = append(out, connector.IndexRow{
			Name:       r.str("INDEX_NAME"),
			NonUnique:  int(r.num("NON_UNIQUE")),
			Ordinal:    int(r.num("ORDINAL_POSITION")),
			ColumnName: r.str("COLUMN_NAME"),
		})
	}
	return out, nil
}

func (Catalog) CurrentSchema(ctx context.Context, q connector.Queryer) (string, error) {
	var name string
	if err := sqlx.GetContext(ctx, q, &name, `VALUES CURRENT SCHEMA`); err != nil {
		return "", fmt.Errorf("current schema: %w", err)
	}
	return name, nil
}

func (Catalog) SchemaExists(ctx context.Context, q connector.Queryer, schema string) (bool, error) {
	return connector.Count(ctx, q, `SELECT COUNT(*) FROM SYS.SYSSCHEMAS WHERE SCHEMANAME = ?`, schema)
}
