package sqlgen

import (
	"slices"

	"github.com/warpdb/warp/internal/changelog"
	"github.com/warpdb/warp/internal/dbms"
)

// Arrange adapts the actions of one change set to the way p declares
// constraints.
//
// Where constraints only exist as part of a table definition, a primary or
// foreign key added to a table created earlier in the same change set is
// folded into that CreateTable. Everywhere else, constraints declared inside
// a CreateTable are split out: the primary key follows its table, and the
// foreign keys move to the end of the change set so that every table they
// reference exists by then.
func Arrange(p *dbms.Profile, actions []changelog.Action) []changelog.Action {
	if p.InlineConstraints {
		return fold(actions)
	}
	return split(actions)
}

func fold(actions []changelog.Action) []changelog.Action {
	out := make([]changelog.Action, 0, len(actions))
	// created maps a table to the position of its CreateTable in out.
	created := make(map[string]int)
	for _, a := range actions {
		switch a := a.(type) {
		case changelog.CreateTable:
			created[tableKey(a.TableRef)] = len(out)
		case changelog.AddPrimaryKey:
			if i, ok := created[tableKey(a.TableRef)]; ok {
				ct := out[i].(changelog.CreateTable)
				if ct.PrimaryKey == nil {
					ct.PrimaryKey = a.Inline()
					out[i] = ct
					continue
				}
			}
		case changelog.AddForeignKey:
			if i, ok := created[tableKey(a.TableRef)]; ok {
				ct := out[i].(changelog.CreateTable)
				ct.ForeignKeys = append(slices.Clip(ct.ForeignKeys), a.Inline())
				out[i] = ct
				continue
			}
		case changelog.DropTable, changelog.RenameTable, changelog.RenameColumn, changelog.DropColumn:
			delete(created, tableKey(a.Target()))
		}
		out = append(out, a)
	}
	return out
}

func split(actions []changelog.Action) []changelog.Action {
	out := make([]changelog.Action, 0, len(actions))
	var deferred []changelog.Action
	for _, a := range actions {
		ct, ok := a.(changelog.CreateTable)
		if !ok || !hasConstraints(ct) {
			out = append(out, a)
			continue
		}
		pk, fks := ct.PrimaryKey, ct.ForeignKeys
		ct.PrimaryKey, ct.ForeignKeys = nil, nil
		out = append(out, ct)
		if pk != nil {
			out = append(out, pk.On(ct.TableRef))
		}
		for _, fk := range fks {
			deferred = append(deferred, fk.On(ct.TableRef))
		}
	}
	return append(out, deferred...)
}

func hasConstraints(ct changelog.CreateTable) bool {
	return ct.PrimaryKey != nil || len(ct.ForeignKeys) > 0
}
