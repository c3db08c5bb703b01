package sqlgen

import (
	"strings"

	"github.com/warpdb/warp/internal/model"
)

// Column is the template view of a column definition.
type Column struct {
	model.ColumnDef
	Table model.TableRef
}

func columnViews(t model.TableRef, defs []model.ColumnDef) []Column {
	out := make([]Column, len(defs))
	for i, d := range defs {
		out[i] = Column{ColumnDef: d, Table: t}
	}
	return out
}

// Len returns the declared length, or def when there is none.
func (c Column) Len(def int) int {
	if c.Length == nil || *c.Length <= 0 {
		return def
	}
	return *c.Length
}

func (c Column) HasPrecision() bool { return c.Precision != nil && *c.Precision > 0 }

func (c Column) Prec() int {
	if c.Precision == nil {
		return 0
	}
	return *c.Precision
}

func (c Column) Scl() int {
	if c.Scale == nil {
		return 0
	}
	return *c.Scale
}

// HasDefault reports whether a DEFAULT clause is rendered. Auto-increment
// columns never get one.
func (c Column) HasDefault() bool { return c.Default != nil && !c.AutoIncrement }

// DefaultText is the default value with boolean spellings normalized to
// "1" and "0".
func (c Column) DefaultText() string {
	if c.Default == nil {
		return ""
	}
	if c.Type == model.Boolean {
		switch strings.ToLower(strings.TrimSpace(*c.Default)) {
		case "true", "1", "t", "y", "yes", "b'1'":
			return "1"
		case "false", "0", "f", "n", "no", "b'0'":
			return "0"
		}
	}
	return *c.Default
}

func (c Column) IsBoolean() bool { return c.Type == model.Boolean }

func (c Column) IsNumeric() bool { return c.Type.IsInteger() || c.Type == model.Decimal }

// IsExpression reports whether a temporal default is a function such as
// CURRENT_TIMESTAMP rather than a literal.
func (c Column) IsExpression() bool {
	switch c.Type {
	case model.Date, model.Time, model.Timestamp:
	default:
		return false
	}
	d := strings.ToUpper(strings.TrimSpace(c.DefaultText()))
	return strings.HasPrefix(d, "CURRENT") || strings.HasPrefix(d, "SYSDATE") ||
		strings.HasPrefix(d, "LOCALTIMESTAMP") || strings.HasSuffix(d, ")")
}

// sequence is the template data for auto-increment companion statements.
type sequence struct {
	Table  model.TableRef
	Column string
	Next   int64
}
