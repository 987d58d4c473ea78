package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/documents/inventory"
)

func TestHeaderRequest_ToHeader(t *testing.T) {
	supplier := id.New().String()
	date := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	req := HeaderRequest{
		Reference:     "INV-7",
		InventoryDate: &date,
		Type:          "ward",
		WardCode:      "W2",
		ChargeType:    "INV+",
		DischargeType: "INV-",
		SupplierID:    &supplier,
		Destination:   "W2",
	}

	h, err := req.ToHeader()
	require.NoError(t, err)
	assert.Equal(t, inventory.TypeWard, h.Type)
	assert.Equal(t, date, h.InventoryDate)
	require.NotNil(t, h.SupplierID)
	assert.Equal(t, supplier, h.SupplierID.String())
	assert.Empty(t, h.FirstMissing())

	bad := "nope"
	req.SupplierID = &bad
	_, err = req.ToHeader()
	ae, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "supplierId", ae.Detail("field"))
}

func TestAnswers_Prompter(t *testing.T) {
	pid := id.New().String()
	a := Answers{
		Confirm:   map[string]bool{"scope_switch": true},
		ProductID: &pid,
		UnitCosts: []string{"2.50"},
	}
	p, err := a.Prompter()
	require.NoError(t, err)
	assert.True(t, p.Confirmations[inventory.QuestionScopeSwitch])
	assert.Equal(t, pid, p.ProductID.String())

	p.UnitCosts[0] = "changed"
	assert.Equal(t, "2.50", a.UnitCosts[0])

	empty, err := (&Answers{}).Prompter()
	require.NoError(t, err)
	assert.Nil(t, empty.ProductID)
}

func TestDeleteRowsRequest_ParseHandles(t *testing.T) {
	h := id.New()
	got, err := (&DeleteRowsRequest{Handles: []string{h.String()}}).ParseHandles()
	require.NoError(t, err)
	assert.Equal(t, []id.ID{h}, got)

	_, err = (&DeleteRowsRequest{Handles: []string{"x"}}).ParseHandles()
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
