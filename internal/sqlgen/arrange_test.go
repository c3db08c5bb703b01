package sqlgen

import (
	"reflect"
	"testing"

	"github.com/warpdb/warp/internal/changelog"
	"github.com/warpdb/warp/internal/dbms"
	"github.com/warpdb/warp/internal/model"
)

func TestArrange(t *testing.T) {
	orders := model.TableRef{Name: "orders"}
	cols := []model.ColumnDef{{Name: "id", Type: model.Int64}, {Name: "customer_id", Type: model.Int64}}
	pk := changelog.AddPrimaryKey{TableRef: orders, Name: "pk_orders", Columns: []changelog.KeyColumn{{Name: "id"}}}
	fk := changelog.AddForeignKey{TableRef: orders, Name: "fk_orders_customer", References: customer,
		Pairs: []model.ColumnPair{{Column: "customer_id", ReferencedColumn: "id"}}}
	index := changelog.CreateIndex{TableRef: orders, Name: "idx_orders", Columns: []model.IndexColumn{{Name: "customer_id"}}}
	inline := changelog.CreateTable{TableRef: orders, Columns: cols, PrimaryKey: pk.Inline(), ForeignKeys: []changelog.ForeignKey{fk.Inline()}}
	bare := changelog.CreateTable{TableRef: orders, Columns: cols}
	parent := changelog.CreateTable{TableRef: customer, Columns: cols[:1]}

	tests := []struct {
		name   string
		vendor string
		in     []changelog.Action
		want   []changelog.Action
	}{
		{"fold into created table", "sqlite",
			[]changelog.Action{bare, index, pk, fk},
			[]changelog.Action{inline, index}},
		{"keep keys of existing tables", "sqlite",
			[]changelog.Action{pk, fk},
			[]changelog.Action{pk, fk}},
		{"keep keys after rename", "sqlite",
			[]changelog.Action{bare, changelog.RenameColumn{TableRef: orders, Column: "id", NewName: "key"}, pk},
			[]changelog.Action{bare, changelog.RenameColumn{TableRef: orders, Column: "id", NewName: "key"}, pk}},
		{"second primary key stays", "sqlite",
			[]changelog.Action{inline, pk},
			[]changelog.Action{inline, pk}},
		{"split after created table", "postgresql",
			[]changelog.Action{inline, parent, index},
			[]changelog.Action{bare, pk, parent, index, fk}},
		{"no constraints untouched", "postgresql",
			[]changelog.Action{bare, pk, fk},
			[]changelog.Action{bare, pk, fk}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Arrange(dbms.MustLookup(tt.vendor), tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Arrange:\n got %+v\nwant %+v", got, tt.want)
			}
		})
	}
}

func TestArrange_DoesNotShareInput(t *testing.T) {
	orders := model.TableRef{Name: "orders"}
	ct := changelog.CreateTable{TableRef: orders, Columns: []model.ColumnDef{{Name: "customer_id", Type: model.Int64}},
		ForeignKeys: make([]changelog.ForeignKey, 0, 4)}
	fk := changelog.AddForeignKey{TableRef: orders, Name: "fk", References: customer,
		Pairs: []model.ColumnPair{{Column: "customer_id", ReferencedColumn: "id"}}}
	in := []changelog.Action{ct, fk}

	Arrange(dbms.MustLookup("sqlite"), in)
	// Spare capacity of the input must not receive the folded key.
	if spare := in[0].(changelog.CreateTable).ForeignKeys[:1]; spare[0].Name != "" {
		t.Errorf("input table changed: %+v", spare)
	}
}
