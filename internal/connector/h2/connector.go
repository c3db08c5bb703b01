// Package h2 connects to H2 databases through the PostgreSQL wire protocol
// (an H2 server started with -pg) and reads structure from H2's own
// INFORMATION_SCHEMA.
package h2

import (
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/warpdb/warp/internal/connector"
	"github.com/warpdb/warp/internal/dbms"
)

// H2Connector implements connector.Connector for H2 databases.
type H2Connector struct {
	connector.Base
	Catalog
}

// New creates a new H2Connector.
func New() connector.Connector {
	return &H2Connector{Base: connector.NewBase(dbms.MustLookup("h2"))}
}

// Connect opens a pgx pool against the H2 PG server.
func (c *H2Connector) Connect(cfg connector.ConnectionConfig) error {
	dsn, err := connector.WithPassword("h2", connector.SanitizeDSN("h2", cfg.DSN), cfg.Password)
	if err != nil {
		return err
	}
	return c.Open(cfg, dsn)
}
