package history

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/warpdb/warp/internal/connector/sqlite"
	"github.com/warpdb/warp/internal/sqlgen"
)

func newService(t *testing.T) (*Service, *sqlx.DB) {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	cat := sqlite.New()
	d, err := sqlgen.NewDispatcher(sqlgen.NewRegistry(), cat.Profile(), db, nil)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return New(d, cat, ""), db
}

func TestEnsureTable(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()

	ok, err := s.HasTable(ctx, db)
	if err != nil || ok {
		t.Fatalf("HasTable on empty database = %v, %v", ok, err)
	}
	for i := 0; i < 2; i++ {
		if err := s.EnsureTable(ctx, db); err != nil {
			t.Fatalf("EnsureTable #%d: %v", i+1, err)
		}
	}
	if ok, _ := s.HasTable(ctx, db); !ok {
		t.Error("history table missing after EnsureTable")
	}
}

func TestRecordReadDelete(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()
	if err := s.EnsureTable(ctx, db); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}

	sum := "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
	if err := s.Record(ctx, db, "1", sum, time.Now()); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record(ctx, db, "2", sum, time.Now()); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := s.Read(ctx, db)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 2 || got["1"] != sum {
		t.Errorf("Read = %v", got)
	}

	if err := s.Delete(ctx, db, "1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, _ = s.Read(ctx, db)
	if _, ok := got["1"]; ok || len(got) != 1 {
		t.Errorf("after Delete: %v", got)
	}
}

func TestRecordInTransaction(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()
	if err := s.EnsureTable(ctx, db); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := s.Record(ctx, tx, "1", "abc", time.Now()); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	got, err := s.Read(ctx, db)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("rolled back record is visible: %v", got)
	}
}
