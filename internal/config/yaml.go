package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/warpdb/warp/internal/connector"
	"github.com/warpdb/warp/internal/dbms"
)

// YAMLConfig represents the top-level warp configuration file.
type YAMLConfig struct {
	Connections []ConnectionYAML `yaml:"connections"`
	Migrate     MigrateConfig    `yaml:"migrate"`
	Logging     LoggingConfig    `yaml:"logging"`
}

// ConnectionYAML defines a named database connection.
type ConnectionYAML struct {
	Name     string          `yaml:"name"`
	Vendor   string          `yaml:"vendor"`
	DSN      string          `yaml:"dsn"`
	Password string          `yaml:"password,omitempty"`
	Schema   string          `yaml:"schema,omitempty"`
	Pool     *PoolYAMLConfig `yaml:"pool,omitempty"`
}

// PoolYAMLConfig controls the connection pool of a connection.
type PoolYAMLConfig struct {
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime string `yaml:"conn_max_idle_time"`
}

// MigrateConfig holds defaults for the migrate, import and exec commands.
type MigrateConfig struct {
	TerminateOnError bool     `yaml:"terminate_on_error"`
	ExcludedTables   []string `yaml:"excluded_tables"`
	AlwaysRun        []string `yaml:"always_run"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file over the
// defaults. Environment variables referenced as ${VAR_NAME} in the file are
// expanded before parsing.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables: ${VAR_NAME}
	content := os.ExpandEnv(string(data))

	cfg := DefaultYAMLConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Migrate: MigrateConfig{
			TerminateOnError: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefaultConfig writes the default configuration to a YAML file,
// with one example connection.
func WriteDefaultConfig(path string) error {
	cfg := DefaultYAMLConfig()
	cfg.Connections = []ConnectionYAML{{
		Name:   "local",
		Vendor: "sqlite",
		DSN:    "warp.db",
	}}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks that every connection is named once, uses a known vendor
// and has a DSN.
func (c *YAMLConfig) Validate() error {
	seen := make(map[string]bool, len(c.Connections))
	for i, conn := range c.Connections {
		if conn.Name == "" {
			return fmt.Errorf("connection #%d: missing name", i+1)
		}
		if seen[conn.Name] {
			return fmt.Errorf("connection %q: defined twice", conn.Name)
		}
		seen[conn.Name] = true
		if _, err := dbms.Lookup(conn.Vendor); err != nil {
			return fmt.Errorf("connection %q: %w", conn.Name, err)
		}
		if conn.DSN == "" {
			return fmt.Errorf("connection %q: missing dsn", conn.Name)
		}
	}
	return nil
}

// Connection returns the named connection. An empty name selects the only
// connection of a single-connection file.
func (c *YAMLConfig) Connection(name string) (*ConnectionYAML, error) {
	if name == "" && len(c.Connections) == 1 {
		return &c.Connections[0], nil
	}
	for i := range c.Connections {
		if c.Connections[i].Name == name {
			return &c.Connections[i], nil
		}
	}
	if name == "" {
		return nil, fmt.Errorf("no connection selected among %d: %w", len(c.Connections), ErrNotFound)
	}
	return nil, fmt.Errorf("connection %q: %w", name, ErrNotFound)
}

// ConnectionConfig converts the YAML entry into connector settings.
func (c ConnectionYAML) ConnectionConfig() (connector.ConnectionConfig, error) {
	cfg := connector.ConnectionConfig{
		Vendor:   c.Vendor,
		DSN:      c.DSN,
		Password: c.Password,
		Schema:   c.Schema,
	}
	if c.Pool == nil {
		return cfg, nil
	}
	cfg.MaxOpenConns = c.Pool.MaxOpenConns
	cfg.MaxIdleConns = c.Pool.MaxIdleConns
	var err error
	if cfg.ConnMaxLifetime, err = parseDuration(c.Pool.ConnMaxLifetime); err != nil {
		return cfg, fmt.Errorf("connection %q: conn_max_lifetime: %w", c.Name, err)
	}
	if cfg.ConnMaxIdleTime, err = parseDuration(c.Pool.ConnMaxIdleTime); err != nil {
		return cfg, fmt.Errorf("connection %q: conn_max_idle_time: %w", c.Name, err)
	}
	return cfg, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
