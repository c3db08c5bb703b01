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
	"github.com/warpdb/warp/internal/model"
	"github.com/warpdb/warp/internal/schema"
	"github.com/warpdb/warp/internal/sqlgen"
)

// ImportOptions tunes an import.
type ImportOptions struct {
	// Schema is made current for the import. It must exist.
	Schema string
	// Exclude names tables that are neither emptied nor loaded. The
	// history table is always excluded.
	Exclude []string
}

// ImportResult summarizes an import.
type ImportResult struct {
	RunID       string
	Tables      int
	Rows        int
	ForeignKeys int
}

// Importer reloads the data of an existing schema from a change log.
type Importer struct {
	conn     connector.Connector
	registry *sqlgen.Registry
	logger   *slog.Logger
}

// NewImporter returns an Importer. A nil logger uses slog.Default.
func NewImporter(conn connector.Connector, reg *sqlgen.Registry, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{conn: conn, registry: reg, logger: logger}
}

// Import empties every table of the schema except the excluded ones and
// replays the Insert actions of log. Foreign keys are dropped before the
// tables are emptied and restored afterwards, also when loading fails;
// restore errors are joined with the load error. Any action other than
// Insert fails the import with an UnsupportedActionError.
func (im *Importer) Import(ctx context.Context, log *changelog.ChangeLog, opts ImportOptions) (res *ImportResult, err error) {
	if err := log.Validate(); err != nil {
		return nil, err
	}
	res = &ImportResult{RunID: uuid.NewString()}
	logger := im.logger.With("run", res.RunID)
	start := time.Now()

	conn, err := im.conn.DB().Connx(ctx)
	if err != nil {
		return res, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	d, err := sqlgen.NewDispatcher(im.registry, im.conn.Profile(), conn, logger)
	if err != nil {
		return res, err
	}
	restore, err := enterSchema(ctx, conn, d, im.conn, opts.Schema, false)
	if err != nil {
		return res, err
	}
	defer func() {
		if rerr := restore(context.WithoutCancel(ctx)); rerr != nil {
			err = errors.Join(err, fmt.Errorf("restore schema: %w", rerr))
		}
	}()

	b := &schema.Builder{Catalog: im.conn, Exclude: append([]string{history.TableName}, opts.Exclude...)}
	m, err := b.Build(ctx, conn, "", "")
	if err != nil {
		return res, err
	}
	d.Seed(m)
	res.Tables, res.ForeignKeys = len(m.Tables), len(m.ForeignKeys)

	st := &staging{d: d, model: m, logger: logger}
	err = st.run(ctx, func() (err error) {
		res.Rows, err = replay(ctx, conn, d, b, log, logger)
		return err
	})
	if err != nil {
		return res, err
	}
	logger.Info("import finished", "tables", res.Tables, "rows", res.Rows, "duration", time.Since(start).Round(time.Millisecond))
	return res, nil
}

// replay loads each change set in its own transaction. Inserts into tables
// the builder excludes are skipped; every other insert runs, so one into a
// missing table fails the import.
func replay(ctx context.Context, conn *sqlx.Conn, d *sqlgen.Dispatcher, b *schema.Builder, log *changelog.ChangeLog, logger *slog.Logger) (int, error) {
	loader := d.Restrict("import", sqlgen.InsertsOnly)
	rows := 0
	for _, cs := range log.ChangeSets {
		n, err := func() (int, error) {
			tx, err := conn.BeginTxx(ctx, nil)
			if err != nil {
				return 0, fmt.Errorf("begin: %w", err)
			}
			defer tx.Rollback()

			ltx := loader.On(tx)
			n := 0
			for i, a := range cs.Actions {
				if ins, ok := a.(changelog.Insert); ok && b.Excludes(ins.Name) {
					logger.Debug("skipping insert into excluded table", "table", ins.Name)
					continue
				}
				if err := ltx.Apply(ctx, a); err != nil {
					return 0, fmt.Errorf("action %d (%s): %w", i+1, changelog.Describe(a), err)
				}
				n++
			}
			return n, tx.Commit()
		}()
		if err != nil {
			return rows, &ChangeSetError{ID: cs.ID, Err: err}
		}
		rows += n
	}
	return rows, nil
}

// staging suspends referential integrity for the duration of a load. On
// vendors that cannot drop constraints, enforcement is switched off on the
// connection instead.
type staging struct {
	d       *sqlgen.Dispatcher
	model   *model.DatabaseModel
	logger  *slog.Logger
	dropped []model.ForeignKeyDef
	checks  bool
}

func (s *staging) inline() bool { return s.d.Profile().InlineConstraints }

// run calls load between prepare and restore. Restore runs whenever prepare
// was entered, even after a failure or a cancelled ctx, and its errors are
// joined with the load error.
func (s *staging) run(ctx context.Context, load func() error) (err error) {
	defer func() {
		if rerr := s.restore(context.WithoutCancel(ctx)); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()
	if err := s.prepare(ctx); err != nil {
		return err
	}
	return load()
}

func (s *staging) prepare(ctx context.Context) error {
	if s.inline() {
		if err := s.d.ForeignKeyChecks(ctx, false); err != nil {
			return fmt.Errorf("disable foreign keys: %w", err)
		}
		s.checks = true
	} else {
		for _, fk := range s.model.ForeignKeys {
			if err := s.d.Apply(ctx, changelog.DropForeignKey{TableRef: fk.Table, Name: fk.Name}); err != nil {
				return fmt.Errorf("drop foreign key %s: %w", fk.Name, err)
			}
			s.dropped = append(s.dropped, fk)
		}
	}
	for _, t := range s.model.Tables {
		if err := s.d.Apply(ctx, changelog.TruncateTable{TableRef: t.TableRef}); err != nil {
			return fmt.Errorf("truncate %s: %w", t.TableRef, err)
		}
	}
	return nil
}

// restore re-creates the dropped foreign keys in their original order and
// aligns auto-increment counters with the loaded rows. It keeps going after
// a failure so that as much as possible is restored.
func (s *staging) restore(ctx context.Context) error {
	var errs []error
	for _, fk := range s.dropped {
		add := changelog.AddForeignKey{TableRef: fk.Table, Name: fk.Name, References: fk.ReferencedTable, Pairs: fk.Pairs}
		if err := s.d.Apply(ctx, add); err != nil {
			errs = append(errs, fmt.Errorf("restore foreign key %s: %w", fk.Name, err))
		}
	}
	if s.checks {
		if err := s.d.ForeignKeyChecks(ctx, true); err != nil {
			errs = append(errs, fmt.Errorf("enable foreign keys: %w", err))
		}
	}
	if s.d.Profile().ResetSequencesAfterImport {
		for _, t := range s.model.Tables {
			for _, c := range t.Columns {
				if !c.AutoIncrement {
					continue
				}
				if err := s.d.ResetSequence(ctx, t.TableRef, c.Name); err != nil {
					errs = append(errs, fmt.Errorf("reset sequence of %s.%s: %w", t.Name, c.Name, err))
				}
			}
		}
	}
	if len(errs) == 0 {
		s.logger.Debug("referential integrity restored", "foreign_keys", len(s.dropped))
	}
	return errors.Join(errs...)
}
