package model

import (
	"errors"
	"testing"
)

func TestMapNativeType(t *testing.T) {
	tests := []struct {
		native    string
		precision int
		scale     int
		want      LogicalType
	}{
		{"INTEGER", 0, 0, Int32},
		{"int4", 0, 0, Int32},
		{"bigint", 0, 0, Int64},
		{"BIGINT NOT NULL", 0, 0, Int64},
		{"tinyint", 0, 0, Int8},
		{"smallint unsigned", 0, 0, Int16},
		{"character varying", 0, 0, Varchar},
		{"VARCHAR(100)", 0, 0, Varchar},
		{"VARCHAR2", 0, 0, Varchar},
		{"CHARACTER", 0, 0, Char},
		{"text", 0, 0, Clob},
		{"TEXT", 0, 0, Clob},
		{"CHARACTER LARGE OBJECT", 0, 0, Clob},
		{"bytea", 0, 0, Blob},
		{"LONG VARCHAR FOR BIT DATA", 0, 0, Blob},
		{"VARCHAR (32) FOR BIT DATA", 0, 0, Blob},
		{"numeric", 10, 2, Decimal},
		{"double precision", 0, 0, Decimal},
		{"boolean", 0, 0, Boolean},
		{"date", 0, 0, Date},
		{"time without time zone", 0, 0, Time},
		{"timestamp without time zone", 0, 0, Timestamp},
		{"TIMESTAMP(6)", 0, 0, Timestamp},
		{"TIMESTAMP(6) WITH TIME ZONE", 0, 0, Timestamp},
		{"datetime", 0, 0, Timestamp},
		{"NUMBER", 1, 0, Boolean},
		{"NUMBER", 3, 0, Int8},
		{"NUMBER", 5, 0, Int16},
		{"NUMBER", 10, 0, Int32},
		{"NUMBER", 19, 0, Int64},
		{"NUMBER", 38, 0, Decimal},
		{"NUMBER", 12, 4, Decimal},
		{"NUMBER", 0, 0, Decimal},
	}

	for _, tt := range tests {
		got, err := MapNativeType(tt.native, tt.precision, tt.scale)
		if err != nil {
			t.Errorf("MapNativeType(%q, %d, %d) error: %v", tt.native, tt.precision, tt.scale, err)
			continue
		}
		if got != tt.want {
			t.Errorf("MapNativeType(%q, %d, %d) = %s, want %s", tt.native, tt.precision, tt.scale, got, tt.want)
		}
	}
}

func TestMapNativeType_Unmapped(t *testing.T) {
	for _, native := range []string{"jsonb", "uuid", "geometry", ""} {
		_, err := MapNativeType(native, 0, 0)
		var me *MappingError
		if !errors.As(err, &me) {
			t.Errorf("MapNativeType(%q): expected *MappingError, got %v", native, err)
			continue
		}
		if me.NativeType != native {
			t.Errorf("MappingError.NativeType = %q, want %q", me.NativeType, native)
		}
	}
}

func TestParseLogicalType(t *testing.T) {
	for _, lt := range LogicalTypes {
		got, err := ParseLogicalType(string(lt))
		if err != nil || got != lt {
			t.Errorf("ParseLogicalType(%q) = %q, %v", lt, got, err)
		}
	}
	if got, err := ParseLogicalType(" varchar "); err != nil || got != Varchar {
		t.Errorf("ParseLogicalType lower-case = %q, %v", got, err)
	}
	if _, err := ParseLogicalType("FLOAT"); err == nil {
		t.Error("expected error for unknown logical type")
	}
}

func TestLogicalTypePredicates(t *testing.T) {
	if !Int16.IsInteger() || Decimal.IsInteger() {
		t.Error("IsInteger mismatch")
	}
	if !Clob.IsText() || Blob.IsText() {
		t.Error("IsText mismatch")
	}
	if !Blob.IsLOB() || !Clob.IsLOB() || Varchar.IsLOB() {
		t.Error("IsLOB mismatch")
	}
	if Int32.BitSize() != 32 || Varchar.BitSize() != 0 {
		t.Error("BitSize mismatch")
	}
}

func TestDatabaseModelLookup(t *testing.T) {
	m := &DatabaseModel{
		Tables: []TableDef{
			{TableRef: TableRef{Name: "orders"}},
			{TableRef: TableRef{Name: "customer"}, Columns: []ColumnDef{{Name: "id", Type: Int64}}},
		},
		PrimaryKeys: []PrimaryKeyDef{{Table: TableRef{Name: "customer"}, Columns: []string{"id"}}},
	}
	m.SortTables()

	if names := m.TableNames(); names[0] != "customer" || names[1] != "orders" {
		t.Fatalf("tables not sorted: %v", names)
	}
	tbl := m.Table("customer")
	if tbl == nil {
		t.Fatal("expected customer table")
	}
	if tbl.Column("id") == nil || tbl.Column("missing") != nil {
		t.Error("Column lookup mismatch")
	}
	if m.Table("missing") != nil {
		t.Error("expected nil for missing table")
	}
	if pk := m.PrimaryKey("customer"); pk == nil || pk.Columns[0] != "id" {
		t.Errorf("PrimaryKey lookup = %+v", pk)
	}
}

func TestTableRefString(t *testing.T) {
	if got := (TableRef{Schema: "app", Name: "customer"}).String(); got != "app.customer" {
		t.Errorf("got %q", got)
	}
	if got := (TableRef{Name: "customer"}).String(); got != "customer" {
		t.Errorf("got %q", got)
	}
}
