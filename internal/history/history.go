// Package history keeps the record of applied change sets in the target
// database.
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/warpdb/warp/internal/changelog"
	"github.com/warpdb/warp/internal/connector"
	"github.com/warpdb/warp/internal/model"
	"github.com/warpdb/warp/internal/sqlgen"
)

// TableName is the history table as written; vendors that store unquoted
// identifiers in upper case get it upper-cased.
const TableName = "warp_history"

// Service reads and writes the history table through a dispatcher, so the
// table and its rows are produced by the same templates as any change set.
type Service struct {
	dispatcher *sqlgen.Dispatcher
	catalog    connector.Catalog
	schema     string
}

// New returns a Service. schema names where HasTable looks for the table;
// empty means the connection's current schema.
func New(d *sqlgen.Dispatcher, cat connector.Catalog, schema string) *Service {
	return &Service{dispatcher: d, catalog: cat, schema: schema}
}

func (s *Service) name(n string) string { return s.dispatcher.Profile().StoredName(n) }

// Table returns the unqualified history table reference.
func (s *Service) Table() model.TableRef {
	return model.TableRef{Name: s.name(TableName)}
}

// HasTable reports whether the history table exists. The catalog is
// checked for the name as written and upper-cased.
func (s *Service) HasTable(ctx context.Context, q connector.Queryer) (bool, error) {
	tables, err := s.catalog.Tables(ctx, q, "", s.schema)
	if err != nil {
		return false, fmt.Errorf("list tables: %w", err)
	}
	for _, t := range tables {
		if t.Name == TableName || t.Name == strings.ToUpper(TableName) {
			return true, nil
		}
	}
	return false, nil
}

// EnsureTable creates the history table when it does not exist.
func (s *Service) EnsureTable(ctx context.Context, q connector.Queryer) error {
	ok, err := s.HasTable(ctx, q)
	if err != nil || ok {
		return err
	}
	create := changelog.CreateTable{TableRef: s.Table(), Columns: []model.ColumnDef{
		{Name: s.name("id"), Type: model.Varchar, Length: model.IntPtr(255)},
		{Name: s.name("checksum"), Type: model.Char, Length: model.IntPtr(64)},
		{Name: s.name("executed"), Type: model.Timestamp},
	}}
	if err := s.dispatcher.On(q).Apply(ctx, create); err != nil {
		return fmt.Errorf("create history table: %w", err)
	}
	return nil
}

// Read returns the stored checksum of every recorded change set by id.
func (s *Service) Read(ctx context.Context, q connector.Queryer) (map[string]string, error) {
	p := s.dispatcher.Profile()
	query := fmt.Sprintf("SELECT %s, %s FROM %s",
		p.QuoteIdentifier(s.name("id")), p.QuoteIdentifier(s.name("checksum")), p.QuoteIdentifier(s.Table().Name))
	rows, err := q.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, sum string
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, fmt.Errorf("read history: %w", err)
		}
		out[id] = strings.TrimSpace(sum)
	}
	return out, rows.Err()
}

// Record stores a change set as applied at executed.
func (s *Service) Record(ctx context.Context, q connector.Queryer, id, checksum string, executed time.Time) error {
	ins := changelog.Insert{TableRef: s.Table(), Values: []changelog.Value{
		{Column: s.name("id"), Type: model.Varchar, Text: id},
		{Column: s.name("checksum"), Type: model.Char, Text: checksum},
		{Column: s.name("executed"), Type: model.Timestamp, Text: executed.UTC().Format(time.RFC3339Nano)},
	}}
	if err := s.dispatcher.On(q).Apply(ctx, ins); err != nil {
		return fmt.Errorf("record change set %s: %w", id, err)
	}
	return nil
}

// Delete removes the record of a change set.
func (s *Service) Delete(ctx context.Context, q connector.Queryer, id string) error {
	p := s.dispatcher.Profile()
	query := sqlx.Rebind(p.BindType, fmt.Sprintf("DELETE FROM %s WHERE %s = ?",
		p.QuoteIdentifier(s.Table().Name), p.QuoteIdentifier(s.name("id"))))
	if _, err := q.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete history of %s: %w", id, err)
	}
	return nil
}
