// Package migrate applies change logs to a database, reloads data into an
// existing schema and dumps a schema back into a change log.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/warpdb/warp/internal/changelog"
	"github.com/warpdb/warp/internal/connector"
	"github.com/warpdb/warp/internal/history"
	"github.com/warpdb/warp/internal/schema"
	"github.com/warpdb/warp/internal/sqlgen"
)

// Outcome is what a migration did with one change set.
type Outcome string

const (
	Applied Outcome = "applied"
	Skipped Outcome = "skipped"
	// Rerun is a change set that was applied before and ran again because
	// the caller selected it with AlwaysRun.
	Rerun Outcome = "rerun"
)

// Options tunes a migration.
type Options struct {
	// Schema is created when missing and made current for the run.
	Schema string
	// AlwaysRun selects recorded change sets that run again on every
	// migration.
	AlwaysRun func(id string) bool
	// DryRun renders the statements pending change sets would execute
	// without changing the database.
	DryRun bool
}

// ChangeSetResult is the outcome of one change set. Statements is only
// filled for dry runs.
type ChangeSetResult struct {
	ID         string
	Checksum   string
	Outcome    Outcome
	Statements []sqlgen.Statement
}

// Result summarizes a migration run.
type Result struct {
	RunID      string
	ChangeSets []ChangeSetResult
}

// Count returns how many change sets had the given outcome.
func (r *Result) Count(o Outcome) int {
	n := 0
	for _, cs := range r.ChangeSets {
		if cs.Outcome == o {
			n++
		}
	}
	return n
}

// Migrator applies change logs to the database behind a connector.
type Migrator struct {
	conn     connector.Connector
	registry *sqlgen.Registry
	logger   *slog.Logger
}

// NewMigrator returns a Migrator. A nil logger uses slog.Default.
func NewMigrator(conn connector.Connector, reg *sqlgen.Registry, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{conn: conn, registry: reg, logger: logger}
}

// Migrate applies every change set of log that has not been applied yet.
// Each change set runs in its own transaction together with its history
// record, so an interrupted run resumes where it stopped. The Result holds
// the change sets handled before any error.
func (m *Migrator) Migrate(ctx context.Context, log *changelog.ChangeLog, opts Options) (res *Result, err error) {
	if err := log.Validate(); err != nil {
		return nil, err
	}
	res = &Result{RunID: uuid.NewString()}
	logger := m.logger.With("run", res.RunID)
	start := time.Now()

	conn, err := m.conn.DB().Connx(ctx)
	if err != nil {
		return res, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	d, err := sqlgen.NewDispatcher(m.registry, m.conn.Profile(), conn, logger)
	if err != nil {
		return res, err
	}

	restore, err := enterSchema(ctx, conn, d, m.conn, opts.Schema, !opts.DryRun)
	if err != nil {
		return res, err
	}
	defer func() {
		if rerr := restore(context.WithoutCancel(ctx)); rerr != nil {
			err = errors.Join(err, fmt.Errorf("restore schema: %w", rerr))
		}
	}()

	if m.conn.Profile().AutoIncrementIsPrimaryKey {
		current, err := schema.Build(ctx, conn, m.conn, "", "")
		if err != nil {
			return res, err
		}
		d.Seed(current)
	}

	hist := history.New(d, m.conn, "")
	recorded, err := m.recorded(ctx, conn, hist, opts.DryRun)
	if err != nil {
		return res, err
	}

	for _, cs := range log.ChangeSets {
		sum, err := changelog.Checksum(cs)
		if err != nil {
			return res, &ChangeSetError{ID: cs.ID, Err: err}
		}
		stored, seen := recorded[cs.ID]
		if seen && stored != sum {
			return res, &ChecksumMismatchError{ID: cs.ID, Stored: stored, Actual: sum}
		}
		outcome := Applied
		if seen {
			if opts.AlwaysRun == nil || !opts.AlwaysRun(cs.ID) {
				logger.Debug("change set already applied", "id", cs.ID)
				res.ChangeSets = append(res.ChangeSets, ChangeSetResult{ID: cs.ID, Checksum: sum, Outcome: Skipped})
				continue
			}
			outcome = Rerun
		}

		r := ChangeSetResult{ID: cs.ID, Checksum: sum, Outcome: outcome}
		if opts.DryRun {
			r.Statements, err = render(d, cs)
		} else {
			err = m.apply(ctx, conn, d, hist, cs, sum, seen)
		}
		if err != nil {
			return res, &ChangeSetError{ID: cs.ID, Err: err}
		}
		logger.Info("change set "+string(outcome), "id", cs.ID, "actions", len(cs.Actions), "dry_run", opts.DryRun)
		res.ChangeSets = append(res.ChangeSets, r)
	}

	logger.Info("migration finished",
		"applied", res.Count(Applied), "rerun", res.Count(Rerun), "skipped", res.Count(Skipped),
		"duration", time.Since(start).Round(time.Millisecond))
	return res, nil
}

// recorded returns the stored checksums, creating the history table first.
// Dry runs never create it.
func (m *Migrator) recorded(ctx context.Context, conn *sqlx.Conn, hist *history.Service, dryRun bool) (map[string]string, error) {
	if dryRun {
		ok, err := hist.HasTable(ctx, conn)
		if err != nil || !ok {
			return map[string]string{}, err
		}
	} else if err := hist.EnsureTable(ctx, conn); err != nil {
		return nil, err
	}
	return hist.Read(ctx, conn)
}

func (m *Migrator) apply(ctx context.Context, conn *sqlx.Conn, d *sqlgen.Dispatcher, hist *history.Service, cs changelog.ChangeSet, sum string, rerun bool) error {
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	dtx := d.On(tx)
	for i, a := range sqlgen.Arrange(d.Profile(), cs.Actions) {
		if err := dtx.Apply(ctx, a); err != nil {
			return fmt.Errorf("action %d (%s): %w", i+1, changelog.Describe(a), err)
		}
	}
	if rerun {
		if err := hist.Delete(ctx, tx, cs.ID); err != nil {
			return err
		}
	}
	if err := hist.Record(ctx, tx, cs.ID, sum, time.Now()); err != nil {
		return err
	}
	return tx.Commit()
}

func render(d *sqlgen.Dispatcher, cs changelog.ChangeSet) ([]sqlgen.Statement, error) {
	var out []sqlgen.Statement
	for i, a := range sqlgen.Arrange(d.Profile(), cs.Actions) {
		stmts, err := d.Render(a)
		if err != nil {
			return nil, fmt.Errorf("action %d (%s): %w", i+1, changelog.Describe(a), err)
		}
		out = append(out, stmts...)
	}
	return out, nil
}
