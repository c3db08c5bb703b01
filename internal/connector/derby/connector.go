// Package derby connects to Apache Derby. No pure-Go Derby driver exists,
// so the program embedding warp must register a database/sql driver named
// "derby" (for example a DRDA bridge) before connecting.
package derby

import (
	"database/sql"
	"fmt"
	"slices"

	"github.com/warpdb/warp/internal/connector"
	"github.com/warpdb/warp/internal/dbms"
)

// DerbyConnector implements connector.Connector for Derby databases.
type DerbyConnector struct {
	connector.Base
	Catalog
}

// New creates a new DerbyConnector.
func New() connector.Connector {
	return &DerbyConnector{Base: connector.NewBase(dbms.MustLookup("derby"))}
}

// Connect fails early with a clear message when no driver is registered.
func (c *DerbyConnector) Connect(cfg connector.ConnectionConfig) error {
	if !slices.Contains(sql.Drivers(), c.Profile().DriverName) {
		return fmt.Errorf("derby connect: no database/sql driver registered as %q", c.Profile().DriverName)
	}
	return c.Open(cfg, cfg.DSN)
}
