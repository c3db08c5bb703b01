package sqlite

import (
	"strings"

	_ "modernc.org/sqlite"

	"github.com/warpdb/warp/internal/connector"
	"github.com/warpdb/warp/internal/dbms"
)

// SQLiteConnector implements connector.Connector for SQLite databases.
type SQLiteConnector struct {
	connector.Base
	Catalog
}

// New creates a new SQLiteConnector.
func New() connector.Connector {
	return &SQLiteConnector{Base: connector.NewBase(dbms.MustLookup("sqlite"))}
}

// Connect opens the SQLite database file specified in the DSN. The DSN is
// a file path (e.g., "/path/to/db.sqlite") or ":memory:". Query parameters
// like ?_pragma=foreign_keys(1) are passed to the driver.
//
// An in-memory database exists per connection, so the pool is limited to a
// single connection for ":memory:" DSNs.
func (c *SQLiteConnector) Connect(cfg connector.ConnectionConfig) error {
	if isMemory(cfg.DSN) {
		cfg.MaxOpenConns = 1
	}
	return c.Open(cfg, cfg.DSN)
}

func isMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}
