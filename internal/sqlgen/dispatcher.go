package sqlgen

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/jmoiron/sqlx"

	"github.com/warpdb/warp/internal/changelog"
	"github.com/warpdb/warp/internal/connector"
	"github.com/warpdb/warp/internal/dbms"
	"github.com/warpdb/warp/internal/model"
	"github.com/warpdb/warp/internal/script"
)

// Statement is one SQL statement ready to execute. Args is set only for
// statements carrying data values.
type Statement struct {
	SQL  string
	Args []any
}

func (s Statement) String() string {
	if len(s.Args) == 0 {
		return s.SQL
	}
	return fmt.Sprintf("%s -- %v", s.SQL, s.Args)
}

type createTableData struct {
	Table       model.TableRef
	Columns     []Column
	PrimaryKey  *changelog.AddPrimaryKey
	ForeignKeys []changelog.ForeignKey
}

type insertData struct {
	Table   model.TableRef
	Columns []string
}

// Dispatcher renders actions for one vendor and executes them against a
// connection or transaction.
type Dispatcher struct {
	profile *dbms.Profile
	tmpl    *template.Template
	q       connector.Queryer
	logger  *slog.Logger

	operation string
	accept    func(changelog.Action) bool

	// autoInc holds the auto-increment columns seen so far, by table.
	autoInc map[string]map[string]bool
}

// NewDispatcher returns a dispatcher for p executing on q. A nil logger
// uses slog.Default.
func NewDispatcher(reg *Registry, p *dbms.Profile, q connector.Queryer, logger *slog.Logger) (*Dispatcher, error) {
	tmpl, err := reg.Templates(p)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		profile: p,
		tmpl:    tmpl,
		q:       q,
		logger:  logger,
		autoInc: make(map[string]map[string]bool),
	}, nil
}

// Profile returns the vendor profile the dispatcher renders for.
func (d *Dispatcher) Profile() *dbms.Profile { return d.profile }

// On returns a dispatcher executing on q. Auto-increment tracking is
// shared with d.
func (d *Dispatcher) On(q connector.Queryer) *Dispatcher {
	c := *d
	c.q = q
	return &c
}

// Restrict returns a dispatcher that rejects every action accept refuses
// with an UnsupportedActionError naming operation.
func (d *Dispatcher) Restrict(operation string, accept func(changelog.Action) bool) *Dispatcher {
	c := *d
	c.operation = operation
	c.accept = accept
	return &c
}

// InsertsOnly accepts Insert actions.
func InsertsOnly(a changelog.Action) bool {
	_, ok := a.(changelog.Insert)
	return ok
}

// Seed records the auto-increment columns of an existing schema, so that
// primary keys added later are recognized.
func (d *Dispatcher) Seed(m *model.DatabaseModel) {
	for _, t := range m.Tables {
		d.track(t.TableRef, t.Columns...)
	}
}

// Apply renders and executes one action.
func (d *Dispatcher) Apply(ctx context.Context, a changelog.Action) error {
	if d.accept != nil && !d.accept(a) {
		return &UnsupportedActionError{Action: a.Kind(), Operation: d.operation}
	}
	stmts, err := d.Render(a)
	if err != nil {
		return err
	}
	return d.Exec(ctx, stmts)
}

// Exec runs statements in order and stops at the first failure.
func (d *Dispatcher) Exec(ctx context.Context, stmts []Statement) error {
	for _, s := range stmts {
		d.logger.Debug("execute", "sql", s.SQL, "args", len(s.Args))
		if _, err := d.q.ExecContext(ctx, s.SQL, s.Args...); err != nil {
			return &ExecError{Statement: s.SQL, Err: err}
		}
	}
	return nil
}

// Render returns the statements an action executes, without running them.
// An action may render no statement at all, such as a RunSQL for another
// dialect.
func (d *Dispatcher) Render(a changelog.Action) ([]Statement, error) {
	switch a := a.(type) {
	case changelog.CreateTable:
		if !d.profile.InlineConstraints && hasConstraints(a) {
			return d.renderAll(split([]changelog.Action{a}))
		}
		d.track(a.TableRef, a.Columns...)
		data := createTableData{Table: a.TableRef, Columns: columnViews(a.TableRef, a.Columns), ForeignKeys: a.ForeignKeys}
		if a.PrimaryKey != nil {
			if pk := a.PrimaryKey.On(a.TableRef); !d.impliedByAutoIncrement(pk) {
				data.PrimaryKey = &pk
			}
		}
		stmts, err := d.render("createTable", data)
		if err != nil {
			return nil, err
		}
		for _, c := range a.Columns {
			more, err := d.companions(a.TableRef, c)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, more...)
		}
		return stmts, nil
	case changelog.AddColumn:
		d.track(a.TableRef, a.Column)
		stmts, err := d.render("addColumn", Column{ColumnDef: a.Column, Table: a.TableRef})
		if err != nil {
			return nil, err
		}
		more, err := d.companions(a.TableRef, a.Column)
		if err != nil {
			return nil, err
		}
		return append(stmts, more...), nil
	case changelog.DropTable:
		delete(d.autoInc, tableKey(a.TableRef))
		return d.render("dropTable", a)
	case changelog.DropColumn:
		return d.render("dropColumn", a)
	case changelog.RenameTable:
		if cols, ok := d.autoInc[tableKey(a.TableRef)]; ok {
			delete(d.autoInc, tableKey(a.TableRef))
			d.autoInc[tableKey(model.TableRef{Name: a.NewName})] = cols
		}
		return d.render("renameTable", a)
	case changelog.RenameColumn:
		return d.render("renameColumn", a)
	case changelog.AddPrimaryKey:
		if d.impliedByAutoIncrement(a) {
			d.logger.Debug("primary key declared with auto-increment column", "table", a.TableRef.String())
			return nil, nil
		}
		if d.profile.InlineConstraints {
			return nil, d.unsupported(a)
		}
		return d.render("addPrimaryKey", a)
	case changelog.DropPrimaryKey:
		if d.profile.InlineConstraints {
			return nil, d.unsupported(a)
		}
		return d.render("dropPrimaryKey", a)
	case changelog.AddForeignKey:
		if d.profile.InlineConstraints {
			return nil, d.unsupported(a)
		}
		return d.render("addForeignKey", a)
	case changelog.DropForeignKey:
		if d.profile.InlineConstraints {
			return nil, d.unsupported(a)
		}
		return d.render("dropForeignKey", a)
	case changelog.CreateIndex:
		return d.render("createIndex", a)
	case changelog.DropIndex:
		return d.render("dropIndex", a)
	case changelog.TruncateTable:
		return d.render("truncateTable", a)
	case changelog.Insert:
		return d.renderInsert(a)
	case changelog.RunSQL:
		if !d.profile.Matches(a.Dialect) {
			return nil, nil
		}
		var stmts []Statement
		for _, s := range script.Split(a.SQL) {
			stmts = append(stmts, Statement{SQL: s})
		}
		return stmts, nil
	}
	return nil, fmt.Errorf("unknown action %T", a)
}

func (d *Dispatcher) renderAll(actions []changelog.Action) ([]Statement, error) {
	var out []Statement
	for _, a := range actions {
		stmts, err := d.Render(a)
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
	}
	return out, nil
}

func (d *Dispatcher) renderInsert(a changelog.Insert) ([]Statement, error) {
	cols := make([]string, len(a.Values))
	args := make([]any, len(a.Values))
	for i, v := range a.Values {
		arg, err := bindFor(d.profile, v)
		if err != nil {
			return nil, fmt.Errorf("insert into %s: %w", a.TableRef, err)
		}
		cols[i], args[i] = v.Column, arg
	}
	stmts, err := d.render("insert", insertData{Table: a.TableRef, Columns: cols})
	if err != nil || len(stmts) == 0 {
		return stmts, err
	}
	stmts[0].SQL = sqlx.Rebind(d.profile.BindType, stmts[0].SQL)
	stmts[0].Args = args
	return stmts, nil
}

// companions renders the sequence and trigger emulating auto-increment on
// vendors without identity columns.
func (d *Dispatcher) companions(t model.TableRef, c model.ColumnDef) ([]Statement, error) {
	if !c.AutoIncrement {
		return nil, nil
	}
	var stmts []Statement
	seq := sequence{Table: t, Column: c.Name}
	if d.profile.AutoIncrementNeedsSequence {
		s, err := d.render("createSequence", seq)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s...)
	}
	if d.profile.AutoIncrementNeedsTrigger {
		s, err := d.render("createTrigger", seq)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s...)
	}
	return stmts, nil
}

// ResetSequence moves the auto-increment counter of a column past the
// largest stored value. Vendors without a resetSequence template skip it.
func (d *Dispatcher) ResetSequence(ctx context.Context, t model.TableRef, column string) error {
	if d.tmpl.Lookup("resetSequence") == nil {
		return nil
	}
	query, err := d.render("maxValue", sequence{Table: t, Column: column})
	if err != nil {
		return err
	}
	var highest sql.NullInt64
	if err := sqlx.GetContext(ctx, d.q, &highest, query[0].SQL); err != nil {
		return &ExecError{Statement: query[0].SQL, Err: err}
	}
	stmts, err := d.render("resetSequence", sequence{Table: t, Column: column, Next: highest.Int64 + 1})
	if err != nil {
		return err
	}
	return d.Exec(ctx, stmts)
}

// SupportsSchemas reports whether the vendor can create and switch schemas.
func (d *Dispatcher) SupportsSchemas() bool {
	return d.tmpl.Lookup("setSchema") != nil
}

// CreateSchema creates a schema. The caller checks that it is missing.
func (d *Dispatcher) CreateSchema(ctx context.Context, name string) error {
	if d.tmpl.Lookup("createSchema") == nil {
		return fmt.Errorf("%s cannot create schema %q", d.profile, name)
	}
	stmts, err := d.render("createSchema", name)
	if err != nil {
		return err
	}
	return d.Exec(ctx, stmts)
}

// SetSchema makes name the current schema of the connection.
func (d *Dispatcher) SetSchema(ctx context.Context, name string) error {
	stmts, err := d.render("setSchema", name)
	if err != nil {
		return err
	}
	return d.Exec(ctx, stmts)
}

// ForeignKeyChecks turns foreign key enforcement on the connection on or
// off. Vendors that only support dropping constraints do nothing.
func (d *Dispatcher) ForeignKeyChecks(ctx context.Context, on bool) error {
	name := "disableForeignKeys"
	if on {
		name = "enableForeignKeys"
	}
	stmts, err := d.render(name, nil)
	if err != nil {
		return err
	}
	return d.Exec(ctx, stmts)
}

// SelectAll renders a query reading every row of a table.
func (d *Dispatcher) SelectAll(t model.TableRef, columns, orderBy []string) (string, error) {
	stmts, err := d.render("selectAll", struct {
		Table            model.TableRef
		Columns, OrderBy []string
	}{t, columns, orderBy})
	if err != nil {
		return "", err
	}
	return stmts[0].SQL, nil
}

// render executes one named template. Blank output and undefined templates
// yield no statement.
func (d *Dispatcher) render(name string, data any) ([]Statement, error) {
	if d.tmpl.Lookup(name) == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := d.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	s := strings.TrimSpace(buf.String())
	if s == "" {
		return nil, nil
	}
	return []Statement{{SQL: s}}, nil
}

func (d *Dispatcher) unsupported(a changelog.Action) error {
	return &UnsupportedActionError{Action: a.Kind(), Operation: d.profile.Subprotocol}
}

func tableKey(t model.TableRef) string { return strings.ToLower(t.Name) }

func (d *Dispatcher) track(t model.TableRef, cols ...model.ColumnDef) {
	for _, c := range cols {
		if !c.AutoIncrement {
			continue
		}
		key := tableKey(t)
		if d.autoInc[key] == nil {
			d.autoInc[key] = make(map[string]bool)
		}
		d.autoInc[key][strings.ToLower(c.Name)] = true
	}
}

// impliedByAutoIncrement reports whether the key is a single auto-increment
// column on a vendor where such a column already is the primary key.
func (d *Dispatcher) impliedByAutoIncrement(pk changelog.AddPrimaryKey) bool {
	cols := pk.ColumnNames()
	return d.profile.AutoIncrementIsPrimaryKey && len(cols) == 1 && d.isAutoIncrement(pk.TableRef, cols[0])
}

func (d *Dispatcher) isAutoIncrement(t model.TableRef, column string) bool {
	return d.autoInc[tableKey(t)][strings.ToLower(column)]
}
