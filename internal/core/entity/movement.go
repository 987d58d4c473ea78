package entity

import (
	"time"

	"pharmastock/internal/core/id"
	"pharmastock/internal/core/types"
)

// RecordType defines movement direction in the stock register.
type RecordType string

const (
	// RecordTypeReceipt increases the lot balance (charge).
	RecordTypeReceipt RecordType = "receipt"
	// RecordTypeExpense decreases the lot balance (discharge).
	RecordTypeExpense RecordType = "expense"
)

// MovementBase contains the recorder bookkeeping shared by register movements.
// Movements are immutable once written.
type MovementBase struct {
	// LineID is unique identifier for this movement line (UUIDv7)
	LineID id.ID `db:"line_id" json:"lineId"`

	// RecorderID is the inventory session that produced this movement
	RecorderID id.ID `db:"recorder_id" json:"recorderId"`

	// RecorderType names the producing document kind (e.g. "Inventory")
	RecorderType string `db:"recorder_type" json:"recorderType"`

	// Reference is the human-readable reference stamped on the movement
	Reference string `db:"reference" json:"reference"`

	// Period is the business date of the movement
	Period time.Time `db:"period" json:"period"`

	RecordType RecordType `db:"record_type" json:"recordType"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewMovementBase creates a new movement base with generated LineID.
func NewMovementBase(recorderID id.ID, recorderType, reference string, period time.Time, recordType RecordType) MovementBase {
	return MovementBase{
		LineID:       id.New(),
		RecorderID:   recorderID,
		RecorderType: recorderType,
		Reference:    reference,
		Period:       period,
		RecordType:   recordType,
		CreatedAt:    time.Now().UTC(),
	}
}

// StockMovement is one charge or discharge in the lot-level stock register.
type StockMovement struct {
	MovementBase

	// MovementTypeCode is the catalog movement type (charge or discharge kind)
	MovementTypeCode string `db:"movement_type" json:"movementType"`

	ProductID id.ID  `db:"product_id" json:"productId"`
	LotCode   string `db:"lot_code" json:"lotCode"`

	// Quantity is always positive; direction comes from RecordType.
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// SupplierID is set on charges, WardCode on discharges.
	SupplierID *id.ID `db:"supplier_id" json:"supplierId,omitempty"`
	WardCode   string `db:"ward_code" json:"wardCode,omitempty"`

	UnitCost types.Money `db:"unit_cost" json:"unitCost"`
}

// SignedQuantity returns quantity with sign based on record type.
// Receipt = positive, Expense = negative.
func (m *StockMovement) SignedQuantity() types.Quantity {
	if m.RecordType == RecordTypeExpense {
		return m.Quantity.Neg()
	}
	return m.Quantity
}
