package stock

import (
	"time"

	"github.com/shopspring/decimal"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/internal/core/types"
)

// Lot is an identified physical batch of a product.
// An empty Code means the code is assigned by the system when the lot is stored.
type Lot struct {
	Code            string              `db:"code" json:"code"`
	ProductID       id.ID               `db:"product_id" json:"productId"`
	PreparationDate time.Time           `db:"preparation_date" json:"preparationDate"`
	DueDate         time.Time           `db:"due_date" json:"dueDate"`
	Cost            decimal.NullDecimal `db:"unit_cost" json:"cost"`

	// MainStoreQty is the current balance of the lot in the main store.
	MainStoreQty types.Quantity `db:"main_store_qty" json:"mainStoreQty"`
}

// IsAuto reports whether the lot waits for a system-assigned code.
func (l *Lot) IsAuto() bool {
	return l.Code == ""
}

// UnitCost returns the lot cost or zero when none was recorded.
func (l *Lot) UnitCost() types.Money {
	if l == nil || !l.Cost.Valid {
		return types.Zero()
	}
	return l.Cost.Decimal
}

// SetCost records a unit cost.
func (l *Lot) SetCost(c types.Money) {
	l.Cost = decimal.NullDecimal{Decimal: c, Valid: true}
}

// Validate checks the date invariant.
func (l *Lot) Validate() error {
	if l.DueDate.IsZero() {
		return apperror.NewValidation("lot due date is required").
			WithDetail("field", "dueDate")
	}
	if !l.PreparationDate.IsZero() && l.DueDate.Before(l.PreparationDate) {
		return apperror.NewValidation("lot due date precedes its preparation date").
			WithDetail("field", "dueDate").
			WithDetail("preparationDate", l.PreparationDate.Format(time.DateOnly)).
			WithDetail("dueDate", l.DueDate.Format(time.DateOnly))
	}
	return nil
}

// Clone returns an independent copy.
func (l *Lot) Clone() *Lot {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}
