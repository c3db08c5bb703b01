package changelog

import (
	"fmt"
	"strings"

	"github.com/warpdb/warp/internal/model"
)

// ValidationError reports a change-log document that is malformed or
// structurally invalid. Index is the position of the offending action
// within its change set, or -1 when the problem is not action-specific.
type ValidationError struct {
	ChangeSet string
	Index     int
	Msg       string
	Err       error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid change log")
	if e.ChangeSet != "" {
		fmt.Fprintf(&b, ": change set %q", e.ChangeSet)
		if e.Index >= 0 {
			fmt.Fprintf(&b, " action %d", e.Index)
		}
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate checks the change log against the document rules: a version,
// unique non-empty change-set ids, and well-formed actions.
func (l *ChangeLog) Validate() error {
	if strings.TrimSpace(l.Version) == "" {
		return &ValidationError{Index: -1, Msg: "missing version attribute"}
	}
	seen := make(map[string]bool, len(l.ChangeSets))
	for _, cs := range l.ChangeSets {
		if cs.ID == "" {
			return &ValidationError{Index: -1, Msg: "change set without id"}
		}
		if seen[cs.ID] {
			return &ValidationError{ChangeSet: cs.ID, Index: -1, Msg: "duplicate change set id"}
		}
		seen[cs.ID] = true
		for i, a := range cs.Actions {
			if msg := checkAction(a); msg != "" {
				return &ValidationError{ChangeSet: cs.ID, Index: i, Msg: a.Kind() + ": " + msg}
			}
		}
	}
	return nil
}

func checkAction(a Action) string {
	if _, ok := a.(RunSQL); !ok && a.Target().Name == "" {
		return "missing table"
	}
	switch a := a.(type) {
	case CreateTable:
		if len(a.Columns) == 0 {
			return "no columns"
		}
		for _, c := range a.Columns {
			if msg := checkColumn(c); msg != "" {
				return msg
			}
		}
		if a.PrimaryKey != nil {
			if msg := checkKey(a.PrimaryKey.Columns); msg != "" {
				return "primary key: " + msg
			}
		}
		for _, fk := range a.ForeignKeys {
			if msg := checkForeignKey(fk.Name, fk.References, fk.Pairs); msg != "" {
				return "foreign key: " + msg
			}
		}
	case AddColumn:
		return checkColumn(a.Column)
	case DropTable, TruncateTable, DropPrimaryKey:
	case DropColumn:
		if a.Column == "" {
			return "missing column"
		}
	case RenameTable:
		if a.NewName == "" {
			return "missing newName"
		}
	case RenameColumn:
		if a.Column == "" || a.NewName == "" {
			return "missing column or newName"
		}
	case AddPrimaryKey:
		return checkKey(a.Columns)
	case AddForeignKey:
		return checkForeignKey(a.Name, a.References, a.Pairs)
	case DropForeignKey:
		if a.Name == "" {
			return "missing name"
		}
	case CreateIndex:
		if a.Name == "" {
			return "missing name"
		}
		if len(a.Columns) == 0 {
			return "no index columns"
		}
		for _, c := range a.Columns {
			if c.Name == "" {
				return "index column without name"
			}
		}
	case DropIndex:
		if a.Name == "" {
			return "missing name"
		}
	case Insert:
		if len(a.Values) == 0 {
			return "no values"
		}
		for _, v := range a.Values {
			if v.Column == "" {
				return "value without column"
			}
			if !v.Type.Valid() {
				return fmt.Sprintf("column %s: unknown type %q", v.Column, v.Type)
			}
		}
	case RunSQL:
		if strings.TrimSpace(a.SQL) == "" {
			return "empty sql"
		}
	default:
		return fmt.Sprintf("unknown action type %T", a)
	}
	return ""
}

func checkKey(cols []KeyColumn) string {
	if len(cols) == 0 {
		return "no key columns"
	}
	for _, c := range cols {
		if c.Name == "" {
			return "key column without name"
		}
	}
	return ""
}

func checkForeignKey(name string, ref model.TableRef, pairs []model.ColumnPair) string {
	if name == "" {
		return "missing name"
	}
	if ref.Name == "" {
		return "missing referenced table"
	}
	if len(pairs) == 0 {
		return "no column pairs"
	}
	for _, p := range pairs {
		if p.Column == "" || p.ReferencedColumn == "" {
			return "incomplete column pair"
		}
	}
	return ""
}

func checkColumn(c model.ColumnDef) string {
	if c.Name == "" {
		return "column without name"
	}
	if !c.Type.Valid() {
		return fmt.Sprintf("column %s: unknown type %q", c.Name, c.Type)
	}
	return ""
}
