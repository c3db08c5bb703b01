package connector

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/warpdb/warp/internal/dbms"
	"github.com/warpdb/warp/internal/model"
)

// mockConnector implements Connector for testing without a real database.
type mockConnector struct {
	connected    bool
	disconnected bool
	cfg          ConnectionConfig
}

func (m *mockConnector) Connect(cfg ConnectionConfig) error {
	if cfg.DSN == "fail" {
		return fmt.Errorf("mock connect failure")
	}
	m.connected = true
	m.cfg = cfg
	return nil
}
func (m *mockConnector) Disconnect() error {
	m.disconnected = true
	m.connected = false
	return nil
}
func (m *mockConnector) Ping(_ context.Context) error { return nil }
func (m *mockConnector) DB() *sqlx.DB                 { return nil }
func (m *mockConnector) DefaultSchema() string        { return m.cfg.Schema }
func (m *mockConnector) Profile() *dbms.Profile       { return dbms.MustLookup("sqlite") }
func (m *mockConnector) Tables(_ context.Context, _ Queryer, _, _ string) ([]TableRow, error) {
	return nil, nil
}
func (m *mockConnector) Columns(_ context.Context, _ Queryer, _ model.TableRef) ([]ColumnRow, error) {
	return nil, nil
}
func (m *mockConnector) PrimaryKeys(_ context.Context, _ Queryer, _ model.TableRef) ([]PrimaryKeyRow, error) {
	return nil, nil
}
func (m *mockConnector) ImportedKeys(_ context.Context, _ Queryer, _ model.TableRef) ([]ImportedKeyRow, error) {
	return nil, nil
}
func (m *mockConnector) IndexInfo(_ context.Context, _ Queryer, _ model.TableRef) ([]IndexRow, error) {
	return nil, nil
}
func (m *mockConnector) CurrentSchema(_ context.Context, _ Queryer) (string, error) { return "main", nil }
func (m *mockConnector) SchemaExists(_ context.Context, _ Queryer, _ string) (bool, error) {
	return true, nil
}

// ---------------------------------------------------------------------------
// Registry tests
// ---------------------------------------------------------------------------

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if len(r.active) != 0 {
		t.Error("new registry should have no connections")
	}
}

func TestRegisterDriver(t *testing.T) {
	r := NewRegistry()
	r.RegisterDriver("sqlite", func() Connector { return &mockConnector{} })

	if _, ok := r.factories["sqlite"]; !ok {
		t.Error("expected sqlite driver to be registered")
	}
	if v := r.Vendors(); len(v) != 1 || v[0] != "sqlite" {
		t.Errorf("Vendors() = %v", v)
	}
}

func TestConnect(t *testing.T) {
	r := NewRegistry()
	r.RegisterDriver("sqlite", func() Connector { return &mockConnector{} })

	opened, err := r.Connect("target", ConnectionConfig{Vendor: "sqlite", DSN: "test-dsn", Schema: "main"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	conn := r.active["target"]
	if conn != opened {
		t.Fatal("Connect should publish the connector it opened")
	}

	mc := conn.(*mockConnector)
	if !mc.connected {
		t.Error("connector should be connected")
	}
	if mc.cfg.DSN != "test-dsn" {
		t.Errorf("expected DSN test-dsn, got %s", mc.cfg.DSN)
	}
	if conn.DefaultSchema() != "main" {
		t.Errorf("expected schema main, got %s", conn.DefaultSchema())
	}
}

func TestConnectUnknownVendor(t *testing.T) {
	r := NewRegistry()

	_, err := r.Connect("target", ConnectionConfig{Vendor: "sybase"})
	if !errors.Is(err, dbms.ErrUnknownVendor) {
		t.Fatalf("expected ErrUnknownVendor, got %v", err)
	}
}

func TestConnectUnregisteredVendor(t *testing.T) {
	r := NewRegistry()

	_, err := r.Connect("target", ConnectionConfig{Vendor: "oracle"})
	if err == nil {
		t.Fatal("expected error for vendor without a connector")
	}
}

func TestConnectFailure(t *testing.T) {
	r := NewRegistry()
	r.RegisterDriver("sqlite", func() Connector { return &mockConnector{} })

	_, err := r.Connect("target", ConnectionConfig{Vendor: "sqlite", DSN: "fail"})
	if err == nil {
		t.Fatal("expected error for connection failure")
	}
}

func TestConnectReplacesExisting(t *testing.T) {
	r := NewRegistry()
	var first *mockConnector
	r.RegisterDriver("sqlite", func() Connector {
		mc := &mockConnector{}
		if first == nil {
			first = mc
		}
		return mc
	})

	r.Connect("target", ConnectionConfig{Vendor: "sqlite", DSN: "dsn1"})
	r.Connect("target", ConnectionConfig{Vendor: "sqlite", DSN: "dsn2"})

	if !first.disconnected {
		t.Error("first connector should have been disconnected on replacement")
	}

	mc := r.active["target"].(*mockConnector)
	if mc.cfg.DSN != "dsn2" {
		t.Errorf("expected DSN dsn2 after replacement, got %s", mc.cfg.DSN)
	}
}

func TestCloseAll(t *testing.T) {
	r := NewRegistry()
	var opened []*mockConnector
	r.RegisterDriver("sqlite", func() Connector {
		mc := &mockConnector{}
		opened = append(opened, mc)
		return mc
	})

	r.Connect("source", ConnectionConfig{Vendor: "sqlite", DSN: "dsn1"})
	r.Connect("target", ConnectionConfig{Vendor: "sqlite", DSN: "dsn2"})

	r.CloseAll()

	if len(r.active) != 0 {
		t.Error("expected no connections after CloseAll")
	}
	for i, mc := range opened {
		if !mc.disconnected {
			t.Errorf("connection %d left open", i)
		}
	}
}
