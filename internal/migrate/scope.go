package migrate

import (
	"context"
	"fmt"

	"github.com/warpdb/warp/internal/connector"
	"github.com/warpdb/warp/internal/sqlgen"
)

// enterSchema makes schema the current schema of the pinned connection for
// the rest of the call, creating it first when it is missing and create is
// set. The returned function restores the previous schema. An empty schema
// leaves the connection untouched.
func enterSchema(ctx context.Context, q connector.Queryer, d *sqlgen.Dispatcher, cat connector.Catalog, schema string, create bool) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if schema == "" {
		return noop, nil
	}
	if !d.SupportsSchemas() {
		return nil, fmt.Errorf("%s does not support schemas (requested %q)", d.Profile(), schema)
	}

	exists, err := cat.SchemaExists(ctx, q, schema)
	if err != nil {
		return nil, fmt.Errorf("check schema %s: %w", schema, err)
	}
	if !exists {
		if !create {
			return nil, fmt.Errorf("schema %s does not exist", schema)
		}
		if err := d.CreateSchema(ctx, schema); err != nil {
			return nil, fmt.Errorf("create schema %s: %w", schema, err)
		}
	}

	previous, err := cat.CurrentSchema(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("current schema: %w", err)
	}
	if err := d.SetSchema(ctx, schema); err != nil {
		return nil, fmt.Errorf("set schema %s: %w", schema, err)
	}
	if previous == "" || previous == schema {
		return noop, nil
	}
	return func(ctx context.Context) error { return d.SetSchema(ctx, previous) }, nil
}
