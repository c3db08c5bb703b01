package connector

import (
	"fmt"
	"sort"
	"sync"

	"github.com/warpdb/warp/internal/dbms"
)

// Factory is a function that creates a new Connector instance.
type Factory func() Connector

// Registry manages connector factories, keyed by vendor subprotocol, and
// the connections opened through them, keyed by connection name. Opening a
// name again replaces its connection.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	active    map[string]Connector
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		active:    make(map[string]Connector),
	}
}

// RegisterDriver registers a connector factory for a vendor.
func (r *Registry) RegisterDriver(vendor string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[vendor] = factory
}

// Connect creates a connector for cfg.Vendor, connects it, and publishes it
// under name. The vendor is checked against the known profiles before any
// I/O happens.
func (r *Registry) Connect(name string, cfg ConnectionConfig) (Connector, error) {
	if _, err := dbms.Lookup(cfg.Vendor); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	factory, ok := r.factories[cfg.Vendor]
	if !ok {
		return nil, fmt.Errorf("no connector registered for %s (available: %v)", cfg.Vendor, r.availableDrivers())
	}

	conn := factory()
	if err := conn.Connect(cfg); err != nil {
		return nil, fmt.Errorf("failed to connect %q: %w", name, err)
	}

	if existing, ok := r.active[name]; ok {
		existing.Disconnect()
	}

	r.active[name] = conn
	return conn, nil
}

// CloseAll disconnects every open connection.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, conn := range r.active {
		conn.Disconnect()
		delete(r.active, name)
	}
}

// Vendors returns the vendors with a registered factory, sorted.
func (r *Registry) Vendors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.availableDrivers()
}

func (r *Registry) availableDrivers() []string {
	drivers := make([]string, 0, len(r.factories))
	for d := range r.factories {
		drivers = append(drivers, d)
	}
	sort.Strings(drivers)
	return drivers
}
