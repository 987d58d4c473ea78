package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/internal/core/types"
	"pharmastock/internal/domain/registers/stock"
)

func costSettings() Settings {
	s := plainSettings()
	s.LotWithCost = true
	return s
}

func manualLot(code string) LotInput {
	return LotInput{Code: code, PreparationDate: prepDate, DueDate: dueDate}
}

func TestAssignLot_NewCode(t *testing.T) {
	h := newHarness(t, plainSettings())
	ec := h.open("INV-LOT-1")
	h.add(ec, "prod-w")
	row := h.rowOf(ec, "prod-w")

	require.NoError(t, h.svc.AssignLot(h.ctx, ec, row.Handle, manualLot(" NEW-1 "), nil))
	assert.True(t, row.NewLot)
	assert.Equal(t, "NEW-1", row.LotCode())

	v := Project(row)
	assert.Equal(t, "N", v.NewLot)
	assert.Equal(t, "NEW-1", v.LotCode)
	require.NotNil(t, v.DueDate)
	assert.Equal(t, dueDate, *v.DueDate)

	_, err := h.svc.Save(h.ctx, ec)
	require.NoError(t, err)
	stored, ok := h.w.lots["NEW-1"]
	require.True(t, ok)
	assert.Equal(t, h.products["prod-w"].ID, stored.ProductID)
	assert.False(t, stored.Cost.Valid)
}

func TestAssignLot_Conflicts(t *testing.T) {
	t.Run("held by another row", func(t *testing.T) {
		h := newHarness(t, plainSettings())
		ec := h.open("INV-LOT-2")
		h.add(ec, "prod-w")
		h.add(ec, "prod-y")
		row := h.rowOf(ec, "prod-w")

		err := h.svc.AssignLot(h.ctx, ec, row.Handle, manualLot("L2"), nil)
		require.True(t, IsDuplicateLotCode(err))
		ae, _ := apperror.AsAppError(err)
		assert.Equal(t, SourceSession, ae.Detail("source"))
		assert.Equal(t, h.rowOf(ec, "prod-y").Handle.String(), ae.Detail("rowId"))
		assert.False(t, row.HasLot())
	})

	t.Run("stock lot of another product", func(t *testing.T) {
		h := newHarness(t, plainSettings())
		ec := h.open("INV-LOT-3")
		h.add(ec, "prod-w")
		row := h.rowOf(ec, "prod-w")

		err := h.svc.AssignLot(h.ctx, ec, row.Handle, manualLot("L3"), nil)
		require.True(t, IsDuplicateLotCode(err))
		ae, _ := apperror.AsAppError(err)
		assert.Equal(t, SourceStock, ae.Detail("source"))
		assert.False(t, row.HasLot())
	})

	t.Run("row with a lot compares its own product only", func(t *testing.T) {
		h := newHarness(t, plainSettings())
		ec := h.open("INV-LOT-3B")
		h.add(ec, "prod-w")
		h.add(ec, "prod-y")
		row := h.rowOf(ec, "prod-w")
		require.NoError(t, h.svc.AssignLot(h.ctx, ec, row.Handle, manualLot("W-1"), nil))

		// prod-y's row is out of scope; the stored lot still belongs to prod-y.
		err := h.svc.AssignLot(h.ctx, ec, row.Handle, manualLot("L2"), nil)
		require.True(t, IsDuplicateLotCode(err))
		ae, _ := apperror.AsAppError(err)
		assert.Equal(t, SourceStock, ae.Detail("source"))
		assert.Equal(t, "W-1", row.LotCode())
	})

	t.Run("due date before preparation", func(t *testing.T) {
		h := newHarness(t, plainSettings())
		ec := h.open("INV-LOT-4")
		h.add(ec, "prod-w")
		row := h.rowOf(ec, "prod-w")

		err := h.svc.AssignLot(h.ctx, ec, row.Handle,
			LotInput{Code: "NEW-1", PreparationDate: dueDate, DueDate: prepDate}, nil)
		require.Error(t, err)
		ae, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, "dueDate", ae.Detail("field"))
	})
}

func TestAssignLot_ExistingStockLotOfSameProduct(t *testing.T) {
	h := newHarness(t, plainSettings())
	w := h.products["prod-w"]
	h.w.lots["W-OLD"] = stock.Lot{
		Code: "W-OLD", ProductID: w.ID, PreparationDate: prepDate, DueDate: dueDate, Cost: nullCost("3.00"),
	}

	ec := h.open("INV-LOT-5")
	h.add(ec, "prod-w")
	row := h.rowOf(ec, "prod-w")

	later := dueDate.AddDate(1, 0, 0)
	require.NoError(t, h.svc.AssignLot(h.ctx, ec, row.Handle, LotInput{Code: "W-OLD", DueDate: later}, nil))
	assert.False(t, row.NewLot)
	assert.Equal(t, dueDate, row.Lot.DueDate)
	assert.True(t, row.UnitCost().Equal(types.MustMoney("3")))
	assert.Empty(t, Project(row).NewLot)

	_, err := h.svc.Save(h.ctx, ec)
	require.NoError(t, err)
	assert.Equal(t, dueDate, h.w.lots["W-OLD"].DueDate)
}

func TestAssignLot_RecostStockLot(t *testing.T) {
	h := newHarness(t, costSettings())
	ec := h.open("INV-LOT-6")
	h.add(ec, "prod-x")
	row := h.rowOf(ec, "prod-x")

	require.NoError(t, h.svc.AssignLot(h.ctx, ec, row.Handle, manualLot("IGNORED"), costs("4.20")))
	assert.Equal(t, "L1", row.LotCode())
	assert.False(t, row.NewLot)
	assert.True(t, row.UnitCost().Equal(types.MustMoney("4.20")))

	_, err := h.svc.Save(h.ctx, ec)
	require.NoError(t, err)
	l1 := h.w.lots["L1"]
	assert.True(t, l1.Cost.Decimal.Equal(types.MustMoney("4.20")))
	assert.Equal(t, types.NewQuantity(10), l1.MainStoreQty)
}

func TestAssignLot_Cost(t *testing.T) {
	tests := []struct {
		name    string
		counted int64
		prompt  *ScriptedPrompter
		want    string
	}{
		{
			name:    "unit cost",
			counted: 7,
			prompt:  costs("1.75"),
			want:    "1.75",
		},
		{
			name:    "total cost fallback",
			counted: 7,
			prompt:  &ScriptedPrompter{UnitCosts: []string{"0"}, TotalCosts: []string{"14"}},
			want:    "2",
		},
		{
			name:    "invalid entries are asked again",
			counted: 7,
			prompt:  &ScriptedPrompter{UnitCosts: []string{"abc", "-1", "", "3.10"}},
			want:    "3.10",
		},
		{
			name:    "zero count returns to the unit prompt",
			counted: 0,
			prompt:  &ScriptedPrompter{UnitCosts: []string{"0", "1.5"}, TotalCosts: []string{"10"}},
			want:    "1.5",
		},
		{
			name:    "invalid total is asked again",
			counted: 4,
			prompt:  &ScriptedPrompter{UnitCosts: []string{"0"}, TotalCosts: []string{"x", "10"}},
			want:    "2.5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, costSettings())
			ec := h.open("INV-COST")
			h.add(ec, "prod-w")
			row := h.rowOf(ec, "prod-w")
			require.NoError(t, h.svc.SetCountedQuantity(h.ctx, ec, row.Handle, types.NewQuantity(tt.counted)))

			require.NoError(t, h.svc.AssignLot(h.ctx, ec, row.Handle, manualLot("NEW-1"), tt.prompt))
			assert.True(t, row.UnitCost().Equal(types.MustMoney(tt.want)), "got %s", row.UnitCost())
		})
	}
}

func TestAssignLot_CostAborted(t *testing.T) {
	t.Run("cancel", func(t *testing.T) {
		h := newHarness(t, costSettings())
		ec := h.open("INV-ABORT-1")
		h.add(ec, "prod-w")
		row := h.rowOf(ec, "prod-w")

		err := h.svc.AssignLot(h.ctx, ec, row.Handle, manualLot("NEW-1"), &ScriptedPrompter{Cancel: true})
		assert.True(t, IsLotEntryAborted(err))
		assert.False(t, row.HasLot())
	})

	t.Run("too many invalid answers", func(t *testing.T) {
		h := newHarness(t, costSettings())
		ec := h.open("INV-ABORT-2")
		h.add(ec, "prod-w")
		row := h.rowOf(ec, "prod-w")

		prompt := costs("a", "b", "c", "d", "e", "1")
		err := h.svc.AssignLot(h.ctx, ec, row.Handle, manualLot("NEW-1"), prompt)
		assert.True(t, IsLotEntryAborted(err))
		assert.False(t, row.HasLot())
	})

	t.Run("unanswered", func(t *testing.T) {
		h := newHarness(t, costSettings())
		ec := h.open("INV-ABORT-3")
		h.add(ec, "prod-w")
		row := h.rowOf(ec, "prod-w")

		err := h.svc.AssignLot(h.ctx, ec, row.Handle, manualLot("NEW-1"), &ScriptedPrompter{})
		require.True(t, IsConfirmationRequired(err))
		ae, _ := apperror.AsAppError(err)
		q := ae.Detail("question").(Question)
		assert.Equal(t, QuestionUnitCost, q.Kind)
		assert.Equal(t, row.Handle.String(), q.Subject)
	})
}

func TestAssignLot_Supersede(t *testing.T) {
	h := newHarness(t, plainSettings())
	ec := h.open("INV-SUP-1")
	h.add(ec, "prod-w")
	row := h.rowOf(ec, "prod-w")
	require.NoError(t, h.svc.AssignLot(h.ctx, ec, row.Handle, manualLot("NEW-1"), nil))
	_, err := h.svc.Save(h.ctx, ec)
	require.NoError(t, err)
	require.Contains(t, h.w.lots, "NEW-1")

	row = h.rowOf(ec, "prod-w")
	require.NoError(t, h.svc.AssignLot(h.ctx, ec, row.Handle, manualLot("NEW-2"), nil))
	assert.True(t, ec.HasUnsavedChanges())

	_, err = h.svc.Save(h.ctx, ec)
	require.NoError(t, err)
	assert.NotContains(t, h.w.lots, "NEW-1")
	assert.Contains(t, h.w.lots, "NEW-2")
	assert.Equal(t, "NEW-2", h.w.rows[row.ID].LotCode())
}

func TestAssignLot_RebindRestoresSupersededLot(t *testing.T) {
	h := newHarness(t, plainSettings())
	ec := h.open("INV-SUP-2")
	h.add(ec, "prod-w")
	row := h.rowOf(ec, "prod-w")
	require.NoError(t, h.svc.AssignLot(h.ctx, ec, row.Handle, manualLot("NEW-1"), nil))
	_, err := h.svc.Save(h.ctx, ec)
	require.NoError(t, err)

	row = h.rowOf(ec, "prod-w")
	require.NoError(t, h.svc.AssignLot(h.ctx, ec, row.Handle, manualLot("NEW-2"), nil))
	require.NoError(t, h.svc.AssignLot(h.ctx, ec, row.Handle, manualLot("NEW-1"), nil))
	assert.True(t, row.NewLot)
	assert.Empty(t, ec.Set.superseded)

	_, err = h.svc.Save(h.ctx, ec)
	require.NoError(t, err)
	assert.Contains(t, h.w.lots, "NEW-1")
	assert.NotContains(t, h.w.lots, "NEW-2")
}

func TestAssignLot_RemovedRowDropsItsNewLot(t *testing.T) {
	h := newHarness(t, plainSettings())
	ec := h.open("INV-ORPHAN")
	h.add(ec, "prod-w")
	h.add(ec, "prod-x")
	row := h.rowOf(ec, "prod-w")
	require.NoError(t, h.svc.AssignLot(h.ctx, ec, row.Handle, manualLot("NEW-1"), nil))
	_, err := h.svc.Save(h.ctx, ec)
	require.NoError(t, err)

	row = h.rowOf(ec, "prod-w")
	_, err = h.svc.DeleteRows(h.ctx, ec, []id.ID{row.Handle})
	require.NoError(t, err)
	_, err = h.svc.Save(h.ctx, ec)
	require.NoError(t, err)

	assert.NotContains(t, h.w.lots, "NEW-1")
	assert.NotContains(t, h.w.rows, row.ID)
	assert.Contains(t, h.w.lots, "L1")
}

func TestAssignLot_AutoNumbering(t *testing.T) {
	s := plainSettings()
	s.AutoLot = true
	h := newHarness(t, s)
	ec := h.open("INV-AUTO")
	h.add(ec, "prod-w")
	row := h.rowOf(ec, "prod-w")

	require.NoError(t, h.svc.AssignLot(h.ctx, ec, row.Handle, LotInput{Code: "typed", DueDate: dueDate}, nil))
	v := Project(row)
	assert.Equal(t, "AUTO", v.LotCode)
	assert.Equal(t, "N", v.NewLot)

	_, err := h.svc.Save(h.ctx, ec)
	require.NoError(t, err)
	code := h.rowOf(ec, "prod-w").LotCode()
	assert.Regexp(t, `^LOT-\d{4}-00001$`, code)
	assert.Contains(t, h.w.lots, code)

	// Editing keeps the assigned code.
	row = h.rowOf(ec, "prod-w")
	later := dueDate.AddDate(0, 6, 0)
	require.NoError(t, h.svc.AssignLot(h.ctx, ec, row.Handle, LotInput{DueDate: later}, nil))
	assert.Equal(t, code, row.LotCode())
	_, err = h.svc.Save(h.ctx, ec)
	require.NoError(t, err)
	assert.Equal(t, later, h.w.lots[code].DueDate)
}
