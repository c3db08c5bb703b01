package migrate

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/warpdb/warp/internal/changelog"
	"github.com/warpdb/warp/internal/connector"
	"github.com/warpdb/warp/internal/connector/sqlite"
	"github.com/warpdb/warp/internal/dbms"
	"github.com/warpdb/warp/internal/history"
	"github.com/warpdb/warp/internal/model"
	"github.com/warpdb/warp/internal/schema"
	"github.com/warpdb/warp/internal/sqlgen"
)

func openSQLite(t *testing.T) connector.Connector {
	t.Helper()
	c := sqlite.New()
	if err := c.Connect(connector.ConnectionConfig{Vendor: "sqlite", DSN: ":memory:"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { c.Disconnect() })
	return c
}

func table(name string) model.TableRef { return model.TableRef{Name: name} }

func customerLog() *changelog.ChangeLog {
	l := changelog.New()
	l.ChangeSets = []changelog.ChangeSet{{
		ID: "1",
		Actions: []changelog.Action{
			changelog.CreateTable{TableRef: table("customer"), Columns: []model.ColumnDef{
				{Name: "id", Type: model.Int64},
				{Name: "name", Type: model.Varchar, Length: model.IntPtr(100), Nullable: true},
			}},
		},
	}}
	return l
}

func historyIDs(t *testing.T, db *sqlx.DB) []string {
	t.Helper()
	var ids []string
	if err := sqlx.Select(db, &ids, "SELECT id FROM "+history.TableName+" ORDER BY id"); err != nil {
		t.Fatalf("read history: %v", err)
	}
	return ids
}

func count(t *testing.T, db *sqlx.DB, query string) int {
	t.Helper()
	var n int
	if err := sqlx.Get(db, &n, query); err != nil {
		t.Fatalf("%s: %v", query, err)
	}
	return n
}

func TestMigrate_Fresh(t *testing.T) {
	c := openSQLite(t)
	ctx := context.Background()

	res, err := NewMigrator(c, sqlgen.NewRegistry(), nil).Migrate(ctx, customerLog(), Options{})
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if res.Count(Applied) != 1 || res.RunID == "" {
		t.Errorf("result = %+v", res)
	}

	m, err := schema.Build(ctx, c.DB(), c, "", "")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	tbl := m.Table("customer")
	if tbl == nil || len(tbl.Columns) != 2 {
		t.Fatalf("customer = %+v", tbl)
	}
	if id := tbl.Columns[0]; id.Name != "id" || id.Type != model.Int64 || id.Nullable {
		t.Errorf("id = %+v", id)
	}
	if name := tbl.Columns[1]; name.Type != model.Varchar || name.Length == nil || *name.Length != 100 || !name.Nullable {
		t.Errorf("name = %+v", name)
	}
	if ids := historyIDs(t, c.DB()); !reflect.DeepEqual(ids, []string{"1"}) {
		t.Errorf("history = %v", ids)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	c := openSQLite(t)
	ctx := context.Background()
	m := NewMigrator(c, sqlgen.NewRegistry(), nil)

	if _, err := m.Migrate(ctx, customerLog(), Options{}); err != nil {
		t.Fatalf("first Migrate: %v", err)
	}
	res, err := m.Migrate(ctx, customerLog(), Options{})
	if err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if res.Count(Skipped) != 1 || res.Count(Applied) != 0 {
		t.Errorf("second run = %+v", res.ChangeSets)
	}
	if ids := historyIDs(t, c.DB()); len(ids) != 1 {
		t.Errorf("history = %v", ids)
	}
}

func TestMigrate_ChecksumMismatch(t *testing.T) {
	c := openSQLite(t)
	ctx := context.Background()
	m := NewMigrator(c, sqlgen.NewRegistry(), nil)

	if _, err := m.Migrate(ctx, customerLog(), Options{}); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	edited := customerLog()
	edited.ChangeSets[0].Actions = append(edited.ChangeSets[0].Actions,
		changelog.AddColumn{TableRef: table("customer"), Column: model.ColumnDef{Name: "email", Type: model.Varchar, Nullable: true}})
	_, err := m.Migrate(ctx, edited, Options{})

	var mismatch *ChecksumMismatchError
	if !errors.As(err, &mismatch) || mismatch.ID != "1" {
		t.Fatalf("err = %v, want checksum mismatch for 1", err)
	}
	if mismatch.Stored == mismatch.Actual {
		t.Error("stored and actual checksums are equal")
	}
}

func TestMigrate_ResumesAfterFailure(t *testing.T) {
	c := openSQLite(t)
	ctx := context.Background()
	m := NewMigrator(c, sqlgen.NewRegistry(), nil)

	l := customerLog()
	l.ChangeSets = append(l.ChangeSets, changelog.ChangeSet{ID: "2", Actions: []changelog.Action{
		changelog.RunSQL{SQL: "INSERT INTO customer (id, name) VALUES (1, 'ann')"},
		changelog.RunSQL{SQL: "INSERT INTO missing VALUES (1)"},
	}})

	res, err := m.Migrate(ctx, l, Options{})
	var csErr *ChangeSetError
	if !errors.As(err, &csErr) || csErr.ID != "2" {
		t.Fatalf("err = %v, want failure in change set 2", err)
	}
	var execErr *sqlgen.ExecError
	if !errors.As(err, &execErr) || !strings.Contains(execErr.Statement, "missing") {
		t.Errorf("err = %v, want the failing statement", err)
	}
	if res.Count(Applied) != 1 {
		t.Errorf("applied before failure = %d", res.Count(Applied))
	}
	if n := count(t, c.DB(), "SELECT COUNT(*) FROM customer"); n != 0 {
		t.Errorf("failed change set left %d rows", n)
	}
	if ids := historyIDs(t, c.DB()); !reflect.DeepEqual(ids, []string{"1"}) {
		t.Errorf("history = %v", ids)
	}

	l.ChangeSets[1].Actions = l.ChangeSets[1].Actions[:1]
	res, err = m.Migrate(ctx, l, Options{})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if res.Count(Skipped) != 1 || res.Count(Applied) != 1 {
		t.Errorf("resume = %+v", res.ChangeSets)
	}
	if n := count(t, c.DB(), "SELECT COUNT(*) FROM customer"); n != 1 {
		t.Errorf("rows = %d", n)
	}
}

func TestMigrate_AlwaysRun(t *testing.T) {
	c := openSQLite(t)
	ctx := context.Background()
	m := NewMigrator(c, sqlgen.NewRegistry(), nil)

	l := customerLog()
	l.ChangeSets = append(l.ChangeSets, changelog.ChangeSet{ID: "touch", Actions: []changelog.Action{
		changelog.RunSQL{SQL: "INSERT INTO customer (id, name) SELECT COUNT(*) + 1, 'x' FROM customer"},
	}})
	opts := Options{AlwaysRun: func(id string) bool { return id == "touch" }}

	for i := 0; i < 2; i++ {
		if _, err := m.Migrate(ctx, l, opts); err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
	}
	res, err := m.Migrate(ctx, l, opts)
	if err != nil {
		t.Fatalf("run 3: %v", err)
	}
	want := []Outcome{Skipped, Rerun}
	for i, cs := range res.ChangeSets {
		if cs.Outcome != want[i] {
			t.Errorf("%s: outcome %s, want %s", cs.ID, cs.Outcome, want[i])
		}
	}
	if n := count(t, c.DB(), "SELECT COUNT(*) FROM customer"); n != 3 {
		t.Errorf("rows = %d, want 3", n)
	}
	if ids := historyIDs(t, c.DB()); !reflect.DeepEqual(ids, []string{"1", "touch"}) {
		t.Errorf("history = %v", ids)
	}
}

func TestMigrate_DryRun(t *testing.T) {
	c := openSQLite(t)
	ctx := context.Background()

	res, err := NewMigrator(c, sqlgen.NewRegistry(), nil).Migrate(ctx, customerLog(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if len(res.ChangeSets) != 1 || len(res.ChangeSets[0].Statements) != 1 {
		t.Fatalf("result = %+v", res.ChangeSets)
	}
	if sql := res.ChangeSets[0].Statements[0].SQL; !strings.HasPrefix(sql, "CREATE TABLE") {
		t.Errorf("statement = %q", sql)
	}

	tables, err := c.Tables(ctx, c.DB(), "", "")
	if err != nil {
		t.Fatalf("Tables: %v", err)
	}
	if len(tables) != 0 {
		t.Errorf("dry run created %v", tables)
	}
}

func TestMigrate_InvalidLog(t *testing.T) {
	c := openSQLite(t)
	l := customerLog()
	l.ChangeSets = append(l.ChangeSets, l.ChangeSets[0])

	_, err := NewMigrator(c, sqlgen.NewRegistry(), nil).Migrate(context.Background(), l, Options{})
	var verr *changelog.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestMigrate_SchemaUnsupported(t *testing.T) {
	c := openSQLite(t)
	_, err := NewMigrator(c, sqlgen.NewRegistry(), nil).Migrate(context.Background(), customerLog(), Options{Schema: "app"})
	if err == nil || !strings.Contains(err.Error(), "does not support schemas") {
		t.Errorf("err = %v", err)
	}
}

// shop migrates a customer/orders schema where orders references customer
// and audit stands apart, then turns on foreign key enforcement.
func shop(t *testing.T) connector.Connector {
	t.Helper()
	c := openSQLite(t)
	l := changelog.New()
	l.ChangeSets = []changelog.ChangeSet{{ID: "schema", Actions: []changelog.Action{
		changelog.CreateTable{TableRef: table("customer"), Columns: []model.ColumnDef{
			{Name: "id", Type: model.Int64, AutoIncrement: true},
			{Name: "name", Type: model.Varchar, Length: model.IntPtr(100), Nullable: true},
		}},
		changelog.AddPrimaryKey{TableRef: table("customer"), Columns: []changelog.KeyColumn{{Name: "id"}}},
		changelog.CreateTable{TableRef: table("orders"), Columns: []model.ColumnDef{
			{Name: "id", Type: model.Int64, AutoIncrement: true},
			{Name: "customer_id", Type: model.Int64},
		}},
		changelog.AddForeignKey{TableRef: table("orders"), Name: "fk_orders_1", References: table("customer"),
			Pairs: []model.ColumnPair{{Column: "customer_id", ReferencedColumn: "id"}}},
		changelog.CreateTable{TableRef: table("audit"), Columns: []model.ColumnDef{
			{Name: "msg", Type: model.Varchar, Length: model.IntPtr(50)},
		}},
	}}}
	if _, err := NewMigrator(c, sqlgen.NewRegistry(), nil).Migrate(context.Background(), l, Options{}); err != nil {
		t.Fatalf("migrate shop: %v", err)
	}
	for _, stmt := range []string{
		"PRAGMA foreign_keys = ON",
		"INSERT INTO customer (id, name) VALUES (99, 'old')",
		"INSERT INTO audit (msg) VALUES ('keep')",
	} {
		if _, err := c.DB().Exec(stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	return c
}

func insert(tbl string, values ...changelog.Value) changelog.Insert {
	return changelog.Insert{TableRef: table(tbl), Values: values}
}

func int64Value(col, text string) changelog.Value {
	return changelog.Value{Column: col, Type: model.Int64, Text: text}
}

func textValue(col, text string) changelog.Value {
	return changelog.Value{Column: col, Type: model.Varchar, Text: text}
}

func assertForeignKeysOn(t *testing.T, db *sqlx.DB) {
	t.Helper()
	if n := count(t, db, "PRAGMA foreign_keys"); n != 1 {
		t.Errorf("foreign key enforcement = %d after import", n)
	}
	if _, err := db.Exec("INSERT INTO orders (id, customer_id) VALUES (500, 4242)"); err == nil {
		t.Error("orphan order accepted after import")
	}
}

func TestImport(t *testing.T) {
	c := shop(t)
	ctx := context.Background()

	data := changelog.New()
	data.ChangeSets = []changelog.ChangeSet{{ID: "data", Actions: []changelog.Action{
		// The order comes before its customer.
		insert("orders", int64Value("id", "1"), int64Value("customer_id", "1")),
		insert("customer", int64Value("id", "1"), textValue("name", "ann")),
		insert("audit", textValue("msg", "skipped")),
	}}}

	res, err := NewImporter(c, sqlgen.NewRegistry(), nil).Import(ctx, data, ImportOptions{Exclude: []string{"audit"}})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Rows != 2 || res.Tables != 2 {
		t.Errorf("result = %+v", res)
	}

	var names []string
	if err := sqlx.Select(c.DB(), &names, "SELECT name FROM customer ORDER BY id"); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{"ann"}) {
		t.Errorf("customers = %v", names)
	}
	var msgs []string
	if err := sqlx.Select(c.DB(), &msgs, "SELECT msg FROM audit"); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(msgs, []string{"keep"}) {
		t.Errorf("excluded table changed: %v", msgs)
	}
	if ids := historyIDs(t, c.DB()); !reflect.DeepEqual(ids, []string{"schema"}) {
		t.Errorf("history = %v", ids)
	}
	assertForeignKeysOn(t, c.DB())
}

func TestImport_RejectsStructuralActions(t *testing.T) {
	c := shop(t)
	ctx := context.Background()

	data := changelog.New()
	data.ChangeSets = []changelog.ChangeSet{{ID: "data", Actions: []changelog.Action{
		insert("customer", int64Value("id", "1"), textValue("name", "ann")),
		changelog.DropTable{TableRef: table("audit")},
	}}}

	_, err := NewImporter(c, sqlgen.NewRegistry(), nil).Import(ctx, data, ImportOptions{})
	var unsupported *sqlgen.UnsupportedActionError
	if !errors.As(err, &unsupported) || unsupported.Action != "dropTable" {
		t.Fatalf("err = %v, want unsupported dropTable", err)
	}
	if n := count(t, c.DB(), "SELECT COUNT(*) FROM customer"); n != 0 {
		t.Errorf("failed change set left %d rows", n)
	}
	if n := count(t, c.DB(), "SELECT COUNT(*) FROM audit"); n != 0 {
		t.Errorf("audit not emptied: %d rows", n)
	}
	assertForeignKeysOn(t, c.DB())
}

func TestDump_RoundTrip(t *testing.T) {
	ctx := context.Background()
	reg := sqlgen.NewRegistry()
	src := openSQLite(t)

	l := changelog.New()
	l.ChangeSets = []changelog.ChangeSet{
		{ID: "1", Actions: []changelog.Action{
			changelog.CreateTable{TableRef: table("customer"), Columns: []model.ColumnDef{
				{Name: "id", Type: model.Int64, AutoIncrement: true},
				{Name: "name", Type: model.Varchar, Length: model.IntPtr(100), Nullable: true},
				{Name: "active", Type: model.Boolean, Nullable: true},
				{Name: "notes", Type: model.Clob, Nullable: true},
			}},
			changelog.CreateIndex{TableRef: table("customer"), Name: "idx_customer_name", Columns: []model.IndexColumn{{Name: "name"}}},
		}},
		{ID: "2", Actions: []changelog.Action{
			insert("customer", int64Value("id", "1"), textValue("name", "ann"),
				changelog.Value{Column: "active", Type: model.Boolean, Text: "true"},
				changelog.Value{Column: "notes", Type: model.Clob, Text: "hello"}),
			insert("customer", int64Value("id", "2"), changelog.Value{Column: "name", Type: model.Varchar, Null: true},
				changelog.Value{Column: "active", Type: model.Boolean, Text: "false"},
				changelog.Value{Column: "notes", Type: model.Clob, Null: true}),
		}},
	}
	if _, err := NewMigrator(src, reg, nil).Migrate(ctx, l, Options{}); err != nil {
		t.Fatalf("migrate source: %v", err)
	}

	dump, err := NewDumper(src, reg, nil).DumpAll(ctx)
	if err != nil {
		t.Fatalf("DumpAll: %v", err)
	}
	var ids []string
	for _, cs := range dump.ChangeSets {
		ids = append(ids, cs.ID)
	}
	if !reflect.DeepEqual(ids, []string{StructureChangeSet, DataChangeSet}) {
		t.Fatalf("change sets = %v", ids)
	}
	rows := dump.ChangeSet(DataChangeSet).Actions
	if len(rows) != 2 {
		t.Fatalf("data rows = %d", len(rows))
	}
	first := rows[0].(changelog.Insert)
	if first.Values[0].Text != "1" || first.Values[1].Text != "ann" || first.Values[2].Text != "true" {
		t.Errorf("first row = %+v", first.Values)
	}
	if second := rows[1].(changelog.Insert); !second.Values[1].Null || second.Values[2].Text != "false" {
		t.Errorf("second row = %+v", second.Values)
	}

	dst := openSQLite(t)
	if _, err := NewMigrator(dst, reg, nil).Migrate(ctx, dump, Options{}); err != nil {
		t.Fatalf("migrate dump: %v", err)
	}

	b := func(c connector.Connector) *model.DatabaseModel {
		m, err := (&schema.Builder{Catalog: c, Exclude: []string{history.TableName}}).Build(ctx, c.DB(), "", "")
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		return m
	}
	if diff := model.Diff(b(src), b(dst)); len(diff) != 0 {
		t.Errorf("round trip differences: %+v", diff)
	}

	again, err := NewDumper(dst, reg, nil).DumpData(ctx, "")
	if err != nil {
		t.Fatalf("DumpData: %v", err)
	}
	if !reflect.DeepEqual(again.ChangeSets[0].Actions, rows) {
		t.Errorf("data after round trip:\n got %+v\nwant %+v", again.ChangeSets[0].Actions, rows)
	}
}

func TestImport_UnknownTable(t *testing.T) {
	c := shop(t)

	data := changelog.New()
	data.ChangeSets = []changelog.ChangeSet{{ID: "data", Actions: []changelog.Action{
		insert("customer", int64Value("id", "1"), textValue("name", "ann")),
		insert("audit", textValue("msg", "skipped")),
		insert("custmer", int64Value("id", "2"), textValue("name", "bob")),
	}}}

	res, err := NewImporter(c, sqlgen.NewRegistry(), nil).Import(context.Background(), data, ImportOptions{Exclude: []string{"audit"}})
	var execErr *sqlgen.ExecError
	if !errors.As(err, &execErr) || !strings.Contains(execErr.Statement, "custmer") {
		t.Fatalf("err = %v, want statement error for custmer", err)
	}
	var csErr *ChangeSetError
	if !errors.As(err, &csErr) || csErr.ID != "data" {
		t.Errorf("err = %v, want change set data", err)
	}
	if res.Rows != 0 {
		t.Errorf("rows = %d", res.Rows)
	}
	if n := count(t, c.DB(), "SELECT COUNT(*) FROM customer"); n != 0 {
		t.Errorf("failed change set left %d customers", n)
	}
	assertForeignKeysOn(t, c.DB())
}

var errRejected = errors.New("rejected")

// recorder runs queries on a SQLite database but only records executed
// statements, failing those that contain reject.
type recorder struct {
	*sqlx.DB
	reject string
	stmts  []string
}

func (r *recorder) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	r.stmts = append(r.stmts, query)
	if r.reject != "" && strings.Contains(query, r.reject) {
		return nil, errRejected
	}
	return driver.RowsAffected(0), nil
}

func TestStaging_DropsAndRestoresForeignKeys(t *testing.T) {
	m := &model.DatabaseModel{
		Tables: []model.TableDef{
			{TableRef: table("customer"), Columns: []model.ColumnDef{{Name: "id", Type: model.Int64, AutoIncrement: true}}},
			{TableRef: table("orders"), Columns: []model.ColumnDef{{Name: "id", Type: model.Int64}, {Name: "customer_id", Type: model.Int64}}},
		},
		ForeignKeys: []model.ForeignKeyDef{{
			Name: "fk_orders_customer", Table: table("orders"), ReferencedTable: table("customer"),
			Pairs: []model.ColumnPair{{Column: "customer_id", ReferencedColumn: "id"}},
		}},
	}
	const (
		drop     = `ALTER TABLE "orders" DROP CONSTRAINT "fk_orders_customer"`
		truncC   = `TRUNCATE TABLE "customer"`
		truncO   = `TRUNCATE TABLE "orders"`
		load     = `INSERT INTO "orders"`
		add      = `ALTER TABLE "orders" ADD CONSTRAINT "fk_orders_customer" FOREIGN KEY ("customer_id") REFERENCES "customer" ("id")`
		sequence = `SELECT setval(`
	)
	tests := []struct {
		name   string
		reject string
		want   []string
	}{
		{"load succeeds", "", []string{drop, truncC, truncO, load, add, sequence}},
		{"load fails", "INSERT", []string{drop, truncC, truncO, load, add, sequence}},
		{"drop fails", "DROP CONSTRAINT", []string{drop, sequence}},
		{"restore fails", "ADD CONSTRAINT", []string{drop, truncC, truncO, load, add, sequence}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openSQLite(t).DB()
			for _, stmt := range []string{"CREATE TABLE customer (id INTEGER)", "INSERT INTO customer VALUES (41)"} {
				if _, err := db.Exec(stmt); err != nil {
					t.Fatal(err)
				}
			}
			rec := &recorder{DB: db, reject: tt.reject}
			d, err := sqlgen.NewDispatcher(sqlgen.NewRegistry(), dbms.MustLookup("postgresql"), rec, nil)
			if err != nil {
				t.Fatal(err)
			}
			st := &staging{d: d, model: m, logger: slog.Default()}

			err = st.run(context.Background(), func() error {
				return d.Apply(context.Background(), insert("orders", int64Value("id", "1"), int64Value("customer_id", "41")))
			})
			if tt.reject == "" && err != nil {
				t.Fatalf("run: %v", err)
			}
			if tt.reject != "" && !errors.Is(err, errRejected) {
				t.Fatalf("err = %v, want rejected statement", err)
			}

			if len(rec.stmts) != len(tt.want) {
				t.Fatalf("statements:\n%s", strings.Join(rec.stmts, "\n"))
			}
			for i, prefix := range tt.want {
				if !strings.HasPrefix(rec.stmts[i], prefix) {
					t.Errorf("statement %d = %q, want prefix %q", i+1, rec.stmts[i], prefix)
				}
			}
			if last := rec.stmts[len(rec.stmts)-1]; !strings.Contains(last, "42") {
				t.Errorf("sequence not moved past the highest id: %q", last)
			}
		})
	}
}

func TestDump_RoundTripForeignKeys(t *testing.T) {
	ctx := context.Background()
	reg := sqlgen.NewRegistry()
	src := shop(t)
	if _, err := src.DB().Exec("INSERT INTO orders (id, customer_id) VALUES (7, 99)"); err != nil {
		t.Fatal(err)
	}

	dump, err := NewDumper(src, reg, nil).DumpAll(ctx)
	if err != nil {
		t.Fatalf("DumpAll: %v", err)
	}
	var ids []string
	for _, cs := range dump.ChangeSets {
		ids = append(ids, cs.ID)
	}
	if !reflect.DeepEqual(ids, []string{StructureChangeSet, DataChangeSet}) {
		t.Fatalf("change sets = %v", ids)
	}
	var tables []string
	for _, a := range dump.ChangeSet(DataChangeSet).Actions {
		tables = append(tables, a.Target().Name)
	}
	if !reflect.DeepEqual(tables, []string{"audit", "customer", "orders"}) {
		t.Errorf("rows dumped in order %v, want parents first", tables)
	}

	dst := openSQLite(t)
	if _, err := NewMigrator(dst, reg, nil).Migrate(ctx, dump, Options{}); err != nil {
		t.Fatalf("migrate dump: %v", err)
	}

	b := func(c connector.Connector) *model.DatabaseModel {
		m, err := (&schema.Builder{Catalog: c, Exclude: []string{history.TableName}}).Build(ctx, c.DB(), "", "")
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		return m
	}
	if diff := model.Diff(b(src), b(dst)); len(diff) != 0 {
		t.Errorf("round trip differences: %+v", diff)
	}
	if fks := b(dst).ForeignKeys; len(fks) != 1 || fks[0].Name != "fk_orders_1" {
		t.Errorf("foreign keys after round trip = %+v", fks)
	}

	if _, err := dst.DB().Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatal(err)
	}
	assertForeignKeysOn(t, dst.DB())

	srcData, err := NewDumper(src, reg, nil).DumpData(ctx, "")
	if err != nil {
		t.Fatalf("DumpData: %v", err)
	}
	dstData, err := NewDumper(dst, reg, nil).DumpData(ctx, "")
	if err != nil {
		t.Fatalf("DumpData: %v", err)
	}
	if !reflect.DeepEqual(dstData.ChangeSets[0].Actions, srcData.ChangeSets[0].Actions) {
		t.Errorf("data after round trip:\n got %+v\nwant %+v", dstData.ChangeSets[0].Actions, srcData.ChangeSets[0].Actions)
	}
}

func TestDump_Exclude(t *testing.T) {
	c := shop(t)
	dm := NewDumper(c, sqlgen.NewRegistry(), nil)
	dm.Exclude = []string{"AUDIT"}

	l, err := dm.DumpStructure(context.Background(), "")
	if err != nil {
		t.Fatalf("DumpStructure: %v", err)
	}
	for _, a := range l.ChangeSets[0].Actions {
		if name := a.Target().Name; name == "audit" || name == history.TableName {
			t.Errorf("dumped %s of excluded table %s", a.Kind(), name)
		}
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name     string
		typ      model.LogicalType
		in       any
		want     string
		wantNull bool
	}{
		{"null", model.Varchar, nil, "", true},
		{"int", model.Int32, int64(42), "42", false},
		{"int as boolean", model.Boolean, int64(1), "true", false},
		{"bool", model.Boolean, false, "false", false},
		{"text boolean", model.Boolean, "t", "true", false},
		{"float", model.Decimal, 12.5, "12.5", false},
		{"text decimal", model.Decimal, []byte("12.50"), "12.5", false},
		{"blob", model.Blob, []byte{0xde, 0xad}, "3q0=", false},
		{"text bytes", model.Varchar, []byte("abc"), "abc", false},
		{"padded char", model.Char, "ab  ", "ab  ", false},
		{"date", model.Date, mustTime(t, "2024-03-01T00:00:00Z"), "2024-03-01", false},
		{"time", model.Time, mustTime(t, "0000-01-01T13:45:30.5Z"), "13:45:30.5", false},
		{"timestamp", model.Timestamp, mustTime(t, "2024-03-01T13:45:30Z"), "2024-03-01T13:45:30Z", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, null, err := FormatValue(tt.typ, tt.in)
			if err != nil {
				t.Fatalf("FormatValue: %v", err)
			}
			if got != tt.want || null != tt.wantNull {
				t.Errorf("FormatValue(%s, %v) = %q, %v; want %q, %v", tt.typ, tt.in, got, null, tt.want, tt.wantNull)
			}
		})
	}

	if _, _, err := FormatValue(model.Boolean, "maybe"); err == nil {
		t.Error("expected error for invalid boolean text")
	}
	if _, _, err := FormatValue(model.Varchar, struct{}{}); err == nil {
		t.Error("expected error for unsupported value")
	}
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}
