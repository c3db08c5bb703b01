package sqlgen

import (
	"database/sql"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warpdb/warp/internal/changelog"
	"github.com/warpdb/warp/internal/dbms"
	"github.com/warpdb/warp/internal/model"
)

// Layouts accepted for temporal insert values.
var (
	dateLayouts = []string{"2006-01-02"}
	timeLayouts = []string{"15:04:05.999999999", "15:04"}
	tsLayouts   = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02",
	}
)

// BindValue converts an insert value to the argument bound for its column.
// An explicit null binds a typed SQL NULL without looking at the text.
func BindValue(v changelog.Value) (any, error) {
	if v.Null {
		return nullFor(v.Type), nil
	}
	text := v.Text

	switch v.Type {
	case model.Int8, model.Int16, model.Int32, model.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, v.Type.BitSize())
		if err != nil {
			return nil, valueError(v, err)
		}
		return n, nil
	case model.Boolean:
		b, err := parseBool(text)
		if err != nil {
			return nil, valueError(v, err)
		}
		return b, nil
	case model.Char, model.Varchar, model.Clob:
		return text, nil
	case model.Decimal:
		d, err := decimal.NewFromString(strings.TrimSpace(text))
		if err != nil {
			return nil, valueError(v, err)
		}
		return d, nil
	case model.Date:
		return parseTime(v, dateLayouts)
	case model.Time:
		// Bound as text; drivers disagree on how a time.Time maps to TIME.
		t, err := parseTime(v, timeLayouts)
		if err != nil {
			return nil, err
		}
		return t.Format("15:04:05.999999999"), nil
	case model.Timestamp:
		return parseTime(v, tsLayouts)
	case model.Blob:
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
		if err != nil {
			return nil, valueError(v, err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("column %s: unknown type %q", v.Column, v.Type)
}

// timeEpoch is the date a time of day is bound on where TIME columns are
// timestamps. Year 0 is out of range on such vendors.
var timeEpoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// bindFor converts an insert value the way p stores it. Empty text binds as
// NULL where the vendor cannot tell the two apart, and a time of day binds
// as a timestamp on timeEpoch where TIME is a TIMESTAMP.
func bindFor(p *dbms.Profile, v changelog.Value) (any, error) {
	switch v.Type {
	case model.Char, model.Varchar, model.Clob:
		if p.EmptyStringIsNull && !v.Null && v.Text == "" {
			return sql.NullString{}, nil
		}
	case model.Time:
		if !p.TimeIsTimestamp {
			break
		}
		if v.Null {
			return sql.NullTime{}, nil
		}
		t, err := parseTime(v, timeLayouts)
		if err != nil {
			return nil, err
		}
		return timeEpoch.Add(time.Duration(t.Hour())*time.Hour +
			time.Duration(t.Minute())*time.Minute +
			time.Duration(t.Second())*time.Second +
			time.Duration(t.Nanosecond())), nil
	}
	return BindValue(v)
}

func nullFor(t model.LogicalType) any {
	switch t {
	case model.Int8, model.Int16, model.Int32, model.Int64:
		return sql.NullInt64{}
	case model.Boolean:
		return sql.NullBool{}
	case model.Decimal:
		return decimal.NullDecimal{}
	case model.Date, model.Timestamp:
		return sql.NullTime{}
	case model.Blob:
		return []byte(nil)
	}
	return sql.NullString{}
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

func parseTime(v changelog.Value, layouts []string) (time.Time, error) {
	s := strings.TrimSpace(v.Text)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, valueError(v, fmt.Errorf("%q is not an ISO %s", s, strings.ToLower(string(v.Type))))
}

func valueError(v changelog.Value, err error) error {
	return fmt.Errorf("column %s (%s): %w", v.Column, v.Type, err)
}
