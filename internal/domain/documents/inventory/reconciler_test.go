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

func assertUniqueKeys(t *testing.T, ws *WorkingSet) {
	t.Helper()
	seen := make(map[RowKey]bool)
	for _, r := range ws.Rows() {
		k := r.Key()
		assert.False(t, seen[k], "duplicate row %+v", k)
		seen[k] = true
	}
}

func productCodes(ws *WorkingSet) []string {
	var out []string
	for _, r := range ws.Rows() {
		out = append(out, r.Product.Code+"/"+r.LotCode())
	}
	return out
}

func TestLoadAllProducts(t *testing.T) {
	h := newHarness(t, plainSettings())
	ws := NewWorkingSet(nil)
	rc := h.svc.reconciler

	res, err := rc.LoadAllProducts(h.ctx, ws, &ScriptedPrompter{})
	require.NoError(t, err)
	assert.Equal(t, AddStatusAdded, res.Status)
	assert.Len(t, res.Added, 4)
	assert.Equal(t, []string{"prod-w/", "prod-x/L1", "prod-y/L2", "prod-z/L3"}, productCodes(ws))

	w := ws.ProductRows("prod-w")[0]
	assert.False(t, w.HasLot())
	assert.Equal(t, types.NewQuantity(7), w.TheoreticalQty)
	assert.Equal(t, w.TheoreticalQty, w.CountedQty)

	x := ws.ProductRows("prod-x")[0]
	assert.Equal(t, types.NewQuantity(10), x.TheoreticalQty)
	assert.False(t, x.NewLot)

	res, err = rc.LoadAllProducts(h.ctx, ws, &ScriptedPrompter{})
	require.NoError(t, err)
	assert.Equal(t, AddStatusAlreadyCovered, res.Status)
	assert.Equal(t, 4, ws.Len())
	assertUniqueKeys(t, ws)
}

func TestLoadAllProducts_ScopeSwitch(t *testing.T) {
	h := newHarness(t, plainSettings())
	rc := h.svc.reconciler
	ws := NewWorkingSet(nil)
	_, err := rc.AddProduct(h.ctx, ws, "prod-x", &ScriptedPrompter{})
	require.NoError(t, err)

	_, err = rc.LoadAllProducts(h.ctx, ws, &ScriptedPrompter{})
	require.True(t, IsConfirmationRequired(err))
	ae, _ := apperror.AsAppError(err)
	q := ae.Detail("question").(Question)
	assert.Equal(t, QuestionScopeSwitch, q.Kind)

	res, err := rc.LoadAllProducts(h.ctx, ws, &ScriptedPrompter{
		Confirmations: map[QuestionKind]bool{QuestionScopeSwitch: false},
	})
	require.NoError(t, err)
	assert.Equal(t, AddStatusDeclined, res.Status)
	assert.Equal(t, 1, ws.Len())

	res, err = rc.LoadAllProducts(h.ctx, ws, &ScriptedPrompter{
		Confirmations: map[QuestionKind]bool{QuestionScopeSwitch: true},
	})
	require.NoError(t, err)
	assert.Equal(t, AddStatusAdded, res.Status)
	assert.Len(t, res.Added, 3)
	assert.Equal(t, 4, ws.Len())
	assertUniqueKeys(t, ws)

	covered, err := rc.CoversAllProducts(h.ctx, ws)
	require.NoError(t, err)
	assert.True(t, covered)
}

func TestAddProduct(t *testing.T) {
	t.Run("already present", func(t *testing.T) {
		h := newHarness(t, plainSettings())
		ws := NewWorkingSet(nil)
		rc := h.svc.reconciler
		_, err := rc.AddProduct(h.ctx, ws, "prod-y", &ScriptedPrompter{})
		require.NoError(t, err)

		res, err := rc.AddProduct(h.ctx, ws, "  PROD-Y ", &ScriptedPrompter{})
		require.NoError(t, err)
		assert.Equal(t, AddStatusAlreadyPresent, res.Status)
		assert.Equal(t, 1, ws.Len())
	})

	t.Run("empty code", func(t *testing.T) {
		h := newHarness(t, plainSettings())
		_, err := h.svc.reconciler.AddProduct(h.ctx, NewWorkingSet(nil), "   ", &ScriptedPrompter{})
		require.Error(t, err)
		ae, _ := apperror.AsAppError(err)
		assert.Equal(t, "productCode", ae.Detail("field"))
	})

	t.Run("description pick", func(t *testing.T) {
		h := newHarness(t, plainSettings())
		rc := h.svc.reconciler
		ws := NewWorkingSet(nil)

		_, err := rc.AddProduct(h.ctx, ws, "IBUPROFENE", &ScriptedPrompter{})
		require.True(t, IsConfirmationRequired(err))
		ae, _ := apperror.AsAppError(err)
		q := ae.Detail("question").(Question)
		require.Len(t, q.Candidates, 1)
		assert.Equal(t, "prod-z", q.Candidates[0].Code)

		res, err := rc.AddProduct(h.ctx, ws, "IBUPROFENE", &ScriptedPrompter{PickNone: true})
		require.NoError(t, err)
		assert.Equal(t, AddStatusNotFound, res.Status)
		assert.Zero(t, ws.Len())

		pick := q.Candidates[0].ID
		res, err = rc.AddProduct(h.ctx, ws, "IBUPROFENE", &ScriptedPrompter{ProductID: &pick})
		require.NoError(t, err)
		assert.Equal(t, AddStatusAdded, res.Status)
		assert.Equal(t, []string{"prod-z/L3"}, productCodes(ws))
	})

	t.Run("no match at all", func(t *testing.T) {
		h := newHarness(t, plainSettings())
		res, err := h.svc.reconciler.AddProduct(h.ctx, NewWorkingSet(nil), "morphine", &ScriptedPrompter{})
		require.NoError(t, err)
		assert.Equal(t, AddStatusNotFound, res.Status)
	})

	t.Run("new lot rows stay grouped", func(t *testing.T) {
		h := newHarness(t, plainSettings())
		rc := h.svc.reconciler
		ws := NewWorkingSet(nil)
		_, err := rc.AddProduct(h.ctx, ws, "prod-x", &ScriptedPrompter{})
		require.NoError(t, err)
		_, err = rc.AddProduct(h.ctx, ws, "prod-z", &ScriptedPrompter{})
		require.NoError(t, err)

		x := h.products["prod-x"]
		h.w.lots["L1B"] = stock.Lot{Code: "L1B", ProductID: x.ID, DueDate: dueDate, MainStoreQty: types.NewQuantity(3)}

		res, err := rc.AddProduct(h.ctx, ws, "prod-x", &ScriptedPrompter{})
		require.NoError(t, err)
		assert.Len(t, res.Added, 1)
		assert.Equal(t, []string{"prod-x/L1", "prod-x/L1B", "prod-z/L3"}, productCodes(ws))
	})

	t.Run("lot rows for a product listed without lot", func(t *testing.T) {
		h := newHarness(t, plainSettings())
		rc := h.svc.reconciler
		ws := NewWorkingSet(nil)
		_, err := rc.AddProduct(h.ctx, ws, "prod-w", &ScriptedPrompter{})
		require.NoError(t, err)

		w := h.products["prod-w"]
		h.w.lots["W1"] = stock.Lot{Code: "W1", ProductID: w.ID, DueDate: dueDate, MainStoreQty: types.NewQuantity(7)}

		res, err := rc.AddProduct(h.ctx, ws, "prod-w", &ScriptedPrompter{
			Confirmations: map[QuestionKind]bool{QuestionExtraLots: false},
		})
		require.NoError(t, err)
		assert.Equal(t, AddStatusDeclined, res.Status)
		assert.Equal(t, 1, ws.Len())

		res, err = rc.AddProduct(h.ctx, ws, "prod-w", &ScriptedPrompter{
			Confirmations: map[QuestionKind]bool{QuestionExtraLots: true},
		})
		require.NoError(t, err)
		assert.Equal(t, AddStatusAdded, res.Status)
		assert.Equal(t, []string{"prod-w/", "prod-w/W1"}, productCodes(ws))
		assertUniqueKeys(t, ws)
	})
}

func TestDeleteRows(t *testing.T) {
	h := newHarness(t, plainSettings())
	rc := h.svc.reconciler
	ws := NewWorkingSet(nil)
	_, err := rc.LoadAllProducts(h.ctx, ws, &ScriptedPrompter{})
	require.NoError(t, err)

	_, err = rc.DeleteRows(ws, []id.ID{id.New()})
	assert.True(t, apperror.IsNotFound(err))
	assert.Equal(t, 4, ws.Len())

	n, err := rc.DeleteRows(ws, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = rc.DeleteRows(ws, []id.ID{ws.ProductRows("prod-y")[0].Handle})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"prod-w/", "prod-x/L1", "prod-z/L3"}, productCodes(ws))
	assert.False(t, ws.reset)
	// Never persisted, so nothing to delete in storage.
	assert.Empty(t, ws.pendingDeletes)

	var all []id.ID
	for _, r := range ws.Rows() {
		all = append(all, r.Handle)
	}
	n, err = rc.DeleteRows(ws, all)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Zero(t, ws.Len())
	assert.True(t, ws.reset)
}

func TestSetCountedQuantity(t *testing.T) {
	h := newHarness(t, plainSettings())
	rc := h.svc.reconciler
	ws := NewWorkingSet(nil)
	_, err := rc.AddProduct(h.ctx, ws, "prod-x", &ScriptedPrompter{})
	require.NoError(t, err)
	row := ws.Rows()[0]

	err = rc.SetCountedQuantity(ws, row.Handle, types.NewQuantity(-1))
	require.True(t, IsInvalidQuantity(err))
	ae, _ := apperror.AsAppError(err)
	assert.Equal(t, row.Handle.String(), ae.Detail("rowId"))
	assert.Equal(t, types.NewQuantity(10), row.CountedQty)

	require.NoError(t, rc.SetCountedQuantity(ws, row.Handle, types.NewQuantity(4)))
	assert.Equal(t, types.NewQuantity(4), row.CountedQty)
	assert.Equal(t, types.NewQuantity(-6), row.Delta())
	assert.True(t, row.Total().Equal(types.MustMoney("10")), row.Total().String())
}
