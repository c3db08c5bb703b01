package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/warpdb/warp/internal/config"
	"github.com/warpdb/warp/internal/connector"
	"github.com/warpdb/warp/internal/connector/derby"
	"github.com/warpdb/warp/internal/connector/h2"
	"github.com/warpdb/warp/internal/connector/mysql"
	"github.com/warpdb/warp/internal/connector/oracle"
	"github.com/warpdb/warp/internal/connector/postgres"
	"github.com/warpdb/warp/internal/connector/sqlite"
	"github.com/warpdb/warp/internal/dbms"
	"github.com/warpdb/warp/internal/logging"
	"github.com/warpdb/warp/internal/sqlgen"
)

// newRegistry creates a connector registry with every supported vendor registered.
func newRegistry() *connector.Registry {
	registry := connector.NewRegistry()
	registry.RegisterDriver("postgresql", postgres.New)
	registry.RegisterDriver("mysql", mysql.New)
	registry.RegisterDriver("mariadb", mysql.NewMariaDB)
	registry.RegisterDriver("oracle", oracle.New)
	registry.RegisterDriver("h2", h2.New)
	registry.RegisterDriver("derby", derby.New)
	registry.RegisterDriver("sqlite", sqlite.New)
	return registry
}

// loadConfig reads the config file picked by --config or found by viper,
// and applies the logging flags over it. Without a file the defaults apply.
func loadConfig() (*config.YAMLConfig, error) {
	path := cfgFile
	if path == "" {
		path = viper.ConfigFileUsed()
	}
	cfg := config.DefaultYAMLConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadYAMLConfig(path); err != nil {
			return nil, err
		}
	}
	if lvl := viper.GetString("log.level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if f := viper.GetString("log.format"); f != "" {
		cfg.Logging.Format = f
	}
	return cfg, nil
}

// session is an open connection with everything a command needs around it.
type session struct {
	cfg       *config.YAMLConfig
	logger    *slog.Logger
	conn      connector.Connector
	templates *sqlgen.Registry
	registry  *connector.Registry
}

func (s *session) Close() { s.registry.CloseAll() }

// openSession loads the configuration, builds the logger, and connects to
// the selected connection.
func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	sel, err := selectConnection(cfg)
	if err != nil {
		return nil, err
	}
	cc, err := sel.ConnectionConfig()
	if err != nil {
		return nil, err
	}
	if pw := viper.GetString("password"); pw != "" {
		cc.Password = pw
	}
	if ask, _ := cmd.Flags().GetBool("ask-password"); ask {
		if cc.Password, err = promptPassword(cmd.ErrOrStderr(), sel.Name); err != nil {
			return nil, err
		}
	}

	registry := newRegistry()
	conn, err := registry.Connect(sel.Name, cc)
	if err != nil {
		return nil, err
	}
	logger.Debug("connected", "connection", sel.Name, "vendor", cc.Vendor)
	return &session{cfg: cfg, logger: logger, conn: conn, templates: sqlgen.NewRegistry(), registry: registry}, nil
}

// selectConnection prefers an ad-hoc --vendor/--dsn pair over the config file.
func selectConnection(cfg *config.YAMLConfig) (config.ConnectionYAML, error) {
	if dsn := viper.GetString("dsn"); dsn != "" {
		c := config.ConnectionYAML{Name: "cli", Vendor: viper.GetString("vendor"), DSN: dsn}
		if _, err := dbms.Lookup(c.Vendor); err != nil {
			return c, err
		}
		return c, nil
	}
	c, err := cfg.Connection(viper.GetString("connection"))
	if err != nil {
		return config.ConnectionYAML{}, fmt.Errorf("select connection (use --connection or --vendor/--dsn): %w", err)
	}
	return *c, nil
}

func promptPassword(w io.Writer, name string) (string, error) {
	fmt.Fprintf(w, "Password for %s: ", name)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

// openInput opens a file argument; "-" is stdin.
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// createOutput creates the output file; empty or "-" is stdout.
func createOutput(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{cmd.OutOrStdout()}, nil
	}
	return os.Create(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
