// Package mysql connects to MySQL and MariaDB. Both share the catalog
// queries; only the profile differs.
package mysql

import (
	_ "github.com/go-sql-driver/mysql"

	"github.com/warpdb/warp/internal/connector"
	"github.com/warpdb/warp/internal/dbms"
)

// MySQLConnector implements connector.Connector for MySQL and MariaDB.
type MySQLConnector struct {
	connector.Base
	Catalog
}

// New creates a connector with the MySQL profile.
func New() connector.Connector {
	return &MySQLConnector{Base: connector.NewBase(dbms.MustLookup("mysql"))}
}

// NewMariaDB creates a connector with the MariaDB profile.
func NewMariaDB() connector.Connector {
	return &MySQLConnector{Base: connector.NewBase(dbms.MustLookup("mariadb"))}
}

// Connect normalizes the DSN to the driver's tcp() form and opens the pool.
func (c *MySQLConnector) Connect(cfg connector.ConnectionConfig) error {
	vendor := c.Profile().Subprotocol
	dsn, err := connector.WithPassword(vendor, connector.SanitizeDSN(vendor, cfg.DSN), cfg.Password)
	if err != nil {
		return err
	}
	return c.Open(cfg, dsn)
}
