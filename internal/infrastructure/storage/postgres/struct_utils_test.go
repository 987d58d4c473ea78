package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/documents/inventory"
)

func TestExtractDBColumns_Session(t *testing.T) {
	cols := ExtractDBColumns[inventory.Session]()

	for _, want := range []string{
		"id", "deletion_mark", "version", "created_at", "updated_by",
		"reference", "inventory_date", "inventory_type", "charge_type", "supplier_id",
		"status", "user_name", "validated_at", "confirmed_at",
	} {
		assert.Contains(t, cols, want)
	}
	assert.NotContains(t, cols, "")
}

func TestStructToMap_Session(t *testing.T) {
	sup := id.New()
	date := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	s := inventory.NewSession(inventory.Header{
		Reference:     "INV-2026-00001",
		InventoryDate: date,
		Type:          inventory.TypeMain,
		Params:        inventory.Params{ChargeType: "CHG", SupplierID: &sup},
	}, "pharmacist")

	m := StructToMap(s)

	assert.Equal(t, s.ID, m["id"])
	assert.Equal(t, 1, m["version"])
	assert.Equal(t, "INV-2026-00001", m["reference"])
	assert.Equal(t, date, m["inventory_date"])
	assert.Equal(t, inventory.TypeMain, m["inventory_type"])
	assert.Equal(t, "CHG", m["charge_type"])
	assert.Equal(t, &sup, m["supplier_id"])
	assert.Equal(t, inventory.StatusDraft, m["status"])
	assert.Equal(t, "pharmacist", m["user_name"])
}

func TestPick(t *testing.T) {
	data := map[string]any{"id": 1, "reference": "A", "version": 2, "extra": true}
	got := Pick(data, []string{"id", "reference", "version", "missing"}, "id", "version")
	assert.Equal(t, map[string]any{"reference": "A"}, got)
}
