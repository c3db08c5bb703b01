package connector

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/warpdb/warp/internal/dbms"
	"github.com/warpdb/warp/internal/model"
)

// ConnectionConfig holds database connection parameters.
type ConnectionConfig struct {
	Vendor          string
	DSN             string
	Password        string // overrides the password embedded in DSN when set
	Schema          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Queryer is the statement surface shared by *sqlx.DB, *sqlx.Conn and
// *sqlx.Tx. Catalog reads and generated statements run against it so the
// same code works inside and outside a transaction.
type Queryer interface {
	sqlx.ExecerContext
	sqlx.QueryerContext
}

// TableRow is one entry of a catalog table listing.
type TableRow struct {
	Catalog sql.NullString `db:"table_cat"`
	Schema  sql.NullString `db:"table_schem"`
	Name    string         `db:"table_name"`
}

// Ref returns the row as a table reference.
func (r TableRow) Ref() model.TableRef {
	return model.TableRef{Catalog: r.Catalog.String, Schema: r.Schema.String, Name: r.Name}
}

// ColumnRow is one column as the catalog reports it. IsNullable and
// IsAutoIncrement hold "YES" or "NO".
type ColumnRow struct {
	Name            string         `db:"column_name"`
	Ordinal         int            `db:"ordinal_position"`
	NativeType      string         `db:"type_name"`
	Length          sql.NullInt64  `db:"column_size"`
	Precision       sql.NullInt64  `db:"numeric_precision"`
	Scale           sql.NullInt64  `db:"numeric_scale"`
	IsNullable      string         `db:"is_nullable"`
	Default         sql.NullString `db:"column_default"`
	IsAutoIncrement string         `db:"is_autoincrement"`
}

func (r ColumnRow) Nullable() bool      { return strings.EqualFold(r.IsNullable, "YES") }
func (r ColumnRow) AutoIncrement() bool { return strings.EqualFold(r.IsAutoIncrement, "YES") }

// PrimaryKeyRow is one primary key column. KeySeq is 1-based.
type PrimaryKeyRow struct {
	ColumnName string         `db:"column_name"`
	KeySeq     int            `db:"key_seq"`
	Name       sql.NullString `db:"pk_name"`
}

// ImportedKeyRow is one column pair of a foreign key declared on a table.
// Rows of one key are contiguous and KeySeq restarts at 1 for each key.
type ImportedKeyRow struct {
	Name          sql.NullString `db:"fk_name"`
	PKTableSchema sql.NullString `db:"pktable_schem"`
	PKTableName   string         `db:"pktable_name"`
	PKColumnName  string         `db:"pkcolumn_name"`
	FKColumnName  string         `db:"fkcolumn_name"`
	KeySeq        int            `db:"key_seq"`
}

// IndexRow is one column of an index. Rows of one index are contiguous and
// Ordinal restarts at 1 for each index.
type IndexRow struct {
	Name       string `db:"index_name"`
	NonUnique  int    `db:"non_unique"`
	Ordinal    int    `db:"ordinal_position"`
	ColumnName string `db:"column_name"`
}

// Catalog exposes the structural metadata of a database, one table at a
// time, the way a vendor's system catalog reports it.
type Catalog interface {
	Profile() *dbms.Profile
	Tables(ctx context.Context, q Queryer, catalog, schema string) ([]TableRow, error)
	Columns(ctx context.Context, q Queryer, t model.TableRef) ([]ColumnRow, error)
	PrimaryKeys(ctx context.Context, q Queryer, t model.TableRef) ([]PrimaryKeyRow, error)
	ImportedKeys(ctx context.Context, q Queryer, t model.TableRef) ([]ImportedKeyRow, error)
	IndexInfo(ctx context.Context, q Queryer, t model.TableRef) ([]IndexRow, error)
	CurrentSchema(ctx context.Context, q Queryer) (string, error)
	SchemaExists(ctx context.Context, q Queryer, schema string) (bool, error)
}

// SequenceCatalog is implemented by catalogs of vendors that emulate
// auto-increment with a sequence per column. Their column metadata never
// marks such a column, so callers match the sequence names instead.
type SequenceCatalog interface {
	Sequences(ctx context.Context, q Queryer, schema string) ([]string, error)
}

// Connector is the interface that all database connectors must implement.
type Connector interface {
	Connect(cfg ConnectionConfig) error
	Disconnect() error
	Ping(ctx context.Context) error
	DB() *sqlx.DB
	// DefaultSchema is the schema named in the connection config, if any.
	DefaultSchema() string

	Catalog
}

// Base carries the connection state every vendor connector shares. Vendor
// connectors embed it and add their catalog queries.
type Base struct {
	db      *sqlx.DB
	profile *dbms.Profile
	schema  string
}

// NewBase returns a Base for the given vendor profile.
func NewBase(p *dbms.Profile) Base {
	return Base{profile: p}
}

// Open connects to dsn with the profile's driver and applies the pool
// settings from cfg.
func (b *Base) Open(cfg ConnectionConfig, dsn string) error {
	db, err := sqlx.Connect(b.profile.DriverName, dsn)
	if err != nil {
		return fmt.Errorf("%s connect: %w", b.profile.Subprotocol, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	b.schema = cfg.Schema
	b.db = db
	return nil
}

// Disconnect closes the database connection pool.
func (b *Base) Disconnect() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (b *Base) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (b *Base) DB() *sqlx.DB { return b.db }

// Profile returns the vendor profile.
func (b *Base) Profile() *dbms.Profile { return b.profile }

// DefaultSchema returns the schema from the connection config.
func (b *Base) DefaultSchema() string { return b.schema }

// Count runs a single-value COUNT query and reports whether it is positive.
func Count(ctx context.Context, q Queryer, query string, args ...any) (bool, error) {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, query, args...); err != nil {
		return false, err
	}
	return n > 0, nil
}

// SanitizeDSN ensures that URL-style DSNs (postgres://, oracle://) have
// their userinfo (especially the password) properly percent-encoded. Raw
// passwords containing @, #, %, or other URL-special characters cause the
// Go URL parser to mis-split the authority component.
//
// MySQL DSNs are normalized to use the tcp() wrapper required by go-sql-driver.
// Other vendors' DSNs are returned unchanged.
func SanitizeDSN(vendor, dsn string) string {
	switch vendor {
	case "postgresql", "h2", "oracle":
		return sanitizeURLDSN(dsn)
	case "mysql", "mariadb":
		return sanitizeMySQLDSN(dsn)
	default:
		return dsn
	}
}

// WithPassword returns dsn with its password replaced. An empty password
// leaves dsn unchanged.
func WithPassword(vendor, dsn, password string) (string, error) {
	if password == "" {
		return dsn, nil
	}
	switch vendor {
	case "mysql", "mariadb":
		cfg, err := mysqldriver.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.Passwd = password
		return cfg.FormatDSN(), nil
	case "postgresql", "h2", "oracle":
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse %s dsn: %w", vendor, err)
		}
		user := ""
		if u.User != nil {
			user = u.User.Username()
		}
		u.User = url.UserPassword(user, password)
		return u.String(), nil
	}
	return dsn, nil
}

// mysqlBareHostPort matches "user:pass@host:port/db" (no tcp() wrapper, no ()
// wrapper). We look for the last "@" followed by what looks like host:port/db.
var mysqlBareHostPort = regexp.MustCompile(`^(.+)@([^(@]+:\d+)(/.*)?$`)

// sanitizeMySQLDSN normalizes a MySQL DSN so that go-sql-driver/mysql can
// parse it correctly. The driver requires the format:
//
//	user:pass@tcp(host:port)/dbname
//
// Accepted variants:
//
//	user:pass@host:port/db          → missing tcp() wrapper
//	user:pass@(host:port)/db        → missing "tcp" before parens
//	user:pass@tcp(host:port)/db     → already correct
func sanitizeMySQLDSN(dsn string) string {
	if cfg, err := mysqldriver.ParseDSN(dsn); err == nil && (cfg.Net == "tcp" || cfg.Net == "unix") {
		return cfg.FormatDSN()
	}

	if idx := strings.LastIndex(dsn, "@("); idx >= 0 {
		fixed := dsn[:idx] + "@tcp" + dsn[idx+1:]
		if cfg, err := mysqldriver.ParseDSN(fixed); err == nil {
			return cfg.FormatDSN()
		}
	}

	if m := mysqlBareHostPort.FindStringSubmatch(dsn); m != nil {
		fixed := m[1] + "@tcp(" + m[2] + ")" + m[3]
		if cfg, err := mysqldriver.ParseDSN(fixed); err == nil {
			return cfg.FormatDSN()
		}
	}

	// Let the connect call report the error.
	return dsn
}

// sanitizeURLDSN re-encodes the userinfo of a scheme-prefixed DSN
// (postgres://user:p@ss#word@host/db) so url.Parse splits it unambiguously.
func sanitizeURLDSN(dsn string) string {
	schemeEnd := strings.Index(dsn, "://")
	if schemeEnd < 0 {
		return dsn
	}

	scheme := dsn[:schemeEnd]
	rest := dsn[schemeEnd+3:]

	query := ""
	if qi := strings.IndexByte(rest, '?'); qi >= 0 {
		query = rest[qi:]
		rest = rest[:qi]
	}

	// Everything before the last '@' is userinfo.
	atIdx := strings.LastIndex(rest, "@")
	if atIdx < 0 {
		return dsn
	}

	userinfo := rest[:atIdx]
	hostpath := rest[atIdx+1:]

	user := userinfo
	pass := ""
	if ci := strings.IndexByte(userinfo, ':'); ci >= 0 {
		user = userinfo[:ci]
		pass = userinfo[ci+1:]
	}

	return scheme + "://" + url.PathEscape(user) + ":" + url.PathEscape(pass) + "@" + hostpath + query
}
