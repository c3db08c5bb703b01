package sqlgen

import (
	"bytes"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warpdb/warp/internal/changelog"
	"github.com/warpdb/warp/internal/dbms"
	"github.com/warpdb/warp/internal/model"
)

func TestBindValue(t *testing.T) {
	tests := []struct {
		typ  model.LogicalType
		text string
		want any
	}{
		{model.Int8, "-128", int64(-128)},
		{model.Int16, " 300 ", int64(300)},
		{model.Int32, "2147483647", int64(2147483647)},
		{model.Int64, "9223372036854775807", int64(9223372036854775807)},
		{model.Boolean, "true", true},
		{model.Boolean, "FALSE", false},
		{model.Boolean, "1", true},
		{model.Varchar, "  kept  ", "  kept  "},
		{model.Clob, "", ""},
		{model.Time, "13:45:10.5", "13:45:10.5"},
		{model.Time, "08:00", "08:00:00"},
	}
	for _, tt := range tests {
		got, err := BindValue(changelog.Value{Column: "c", Type: tt.typ, Text: tt.text})
		if err != nil {
			t.Errorf("BindValue(%s %q): %v", tt.typ, tt.text, err)
			continue
		}
		if got != tt.want {
			t.Errorf("BindValue(%s %q) = %#v, want %#v", tt.typ, tt.text, got, tt.want)
		}
	}
}

func TestBindValue_Structured(t *testing.T) {
	d, err := BindValue(changelog.Value{Type: model.Decimal, Text: "12345678901234567890.123456789"})
	if err != nil {
		t.Fatalf("decimal: %v", err)
	}
	if d.(decimal.Decimal).String() != "12345678901234567890.123456789" {
		t.Errorf("decimal lost precision: %v", d)
	}

	ts, err := BindValue(changelog.Value{Type: model.Timestamp, Text: "2024-02-29T23:59:58.123Z"})
	if err != nil {
		t.Fatalf("timestamp: %v", err)
	}
	want := time.Date(2024, 2, 29, 23, 59, 58, 123000000, time.UTC)
	if !ts.(time.Time).Equal(want) {
		t.Errorf("timestamp = %v", ts)
	}
	if _, err := BindValue(changelog.Value{Type: model.Timestamp, Text: "2024-02-29 23:59:58"}); err != nil {
		t.Errorf("space separated timestamp: %v", err)
	}

	date, err := BindValue(changelog.Value{Type: model.Date, Text: "1999-12-31"})
	if err != nil || date.(time.Time).Year() != 1999 {
		t.Errorf("date = %v, %v", date, err)
	}

	blob, err := BindValue(changelog.Value{Type: model.Blob, Text: "AAEC/w=="})
	if err != nil || !bytes.Equal(blob.([]byte), []byte{0, 1, 2, 255}) {
		t.Errorf("blob = %v, %v", blob, err)
	}
}

func TestBindValue_Null(t *testing.T) {
	tests := []struct {
		typ  model.LogicalType
		want any
	}{
		{model.Int32, sql.NullInt64{}},
		{model.Boolean, sql.NullBool{}},
		{model.Varchar, sql.NullString{}},
		{model.Timestamp, sql.NullTime{}},
		{model.Decimal, decimal.NullDecimal{}},
	}
	for _, tt := range tests {
		// The text is ignored for explicit nulls.
		got, err := BindValue(changelog.Value{Type: tt.typ, Null: true, Text: "garbage"})
		if err != nil {
			t.Errorf("%s: %v", tt.typ, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s null = %#v, want %#v", tt.typ, got, tt.want)
		}
	}
	if b, _ := BindValue(changelog.Value{Type: model.Blob, Null: true}); b.([]byte) != nil {
		t.Errorf("blob null = %#v", b)
	}
}

func TestBindValue_Errors(t *testing.T) {
	tests := []struct {
		typ  model.LogicalType
		text string
	}{
		{model.Int8, "128"},
		{model.Int32, "1.5"},
		{model.Boolean, "maybe"},
		{model.Decimal, "12,5"},
		{model.Date, "31/12/1999"},
		{model.Timestamp, "yesterday"},
		{model.Blob, "not base64!"},
		{"FLOAT", "1"},
	}
	for _, tt := range tests {
		if _, err := BindValue(changelog.Value{Column: "c", Type: tt.typ, Text: tt.text}); err == nil {
			t.Errorf("BindValue(%s %q) succeeded", tt.typ, tt.text)
		}
	}
}

func TestBindFor(t *testing.T) {
	oracle, postgres := dbms.MustLookup("oracle"), dbms.MustLookup("postgresql")
	tests := []struct {
		name    string
		profile *dbms.Profile
		value   changelog.Value
		want    any
	}{
		{"time as timestamp", oracle, changelog.Value{Type: model.Time, Text: "13:45:10.5"},
			time.Date(1970, 1, 1, 13, 45, 10, 500000000, time.UTC)},
		{"short time as timestamp", oracle, changelog.Value{Type: model.Time, Text: "08:00"},
			time.Date(1970, 1, 1, 8, 0, 0, 0, time.UTC)},
		{"null time as timestamp", oracle, changelog.Value{Type: model.Time, Null: true}, sql.NullTime{}},
		{"time as text", postgres, changelog.Value{Type: model.Time, Text: "08:00"}, "08:00:00"},
		{"empty string as null", oracle, changelog.Value{Type: model.Varchar, Text: ""}, sql.NullString{}},
		{"empty clob as null", oracle, changelog.Value{Type: model.Clob, Text: ""}, sql.NullString{}},
		{"blank string kept", oracle, changelog.Value{Type: model.Char, Text: " "}, " "},
		{"empty string kept", postgres, changelog.Value{Type: model.Varchar, Text: ""}, ""},
		{"other types unchanged", oracle, changelog.Value{Type: model.Int32, Text: "7"}, int64(7)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bindFor(tt.profile, tt.value)
			if err != nil {
				t.Fatalf("bindFor: %v", err)
			}
			if tm, ok := got.(time.Time); ok {
				if !tm.Equal(tt.want.(time.Time)) {
					t.Errorf("got %v, want %v", tm, tt.want)
				}
				return
			}
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}

	if _, err := bindFor(oracle, changelog.Value{Column: "c", Type: model.Time, Text: "noon"}); err == nil {
		t.Error("invalid time accepted")
	}
}
