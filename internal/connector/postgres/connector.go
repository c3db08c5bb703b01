package postgres

import (
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/warpdb/warp/internal/connector"
	"github.com/warpdb/warp/internal/dbms"
)

// PostgresConnector implements connector.Connector for PostgreSQL databases.
type PostgresConnector struct {
	connector.Base
	Catalog
}

// New creates a new PostgresConnector.
func New() connector.Connector {
	return &PostgresConnector{Base: connector.NewBase(dbms.MustLookup("postgresql"))}
}

// Connect opens the pgx connection pool. URL-style DSNs have their
// credentials re-encoded first.
func (c *PostgresConnector) Connect(cfg connector.ConnectionConfig) error {
	dsn, err := connector.WithPassword("postgresql", connector.SanitizeDSN("postgresql", cfg.DSN), cfg.Password)
	if err != nil {
		return err
	}
	return c.Open(cfg, dsn)
}
