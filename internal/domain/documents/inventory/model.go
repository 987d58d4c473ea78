// Package inventory implements the stock inventory reconciliation workflow:
// sessions, their row working sets, lot resolution, and the synthesis of
// corrective stock movements on confirmation.
package inventory

import (
	"time"

	"pharmastock/internal/core/entity"
	"pharmastock/internal/core/id"
	"pharmastock/internal/core/types"
	"pharmastock/internal/domain/registers/stock"
)

// RecorderType is stamped on movements produced by inventory sessions.
const RecorderType = "Inventory"

// SessionType is the scope of a session.
type SessionType string

const (
	TypeMain SessionType = "main"
	TypeWard SessionType = "ward"
)

// Valid reports whether t is a known type.
func (t SessionType) Valid() bool {
	return t == TypeMain || t == TypeWard
}

// Parameter field names, in the order they are checked.
const (
	FieldChargeType    = "chargeType"
	FieldDischargeType = "dischargeType"
	FieldSupplier      = "supplier"
	FieldDestination   = "destination"
)

// Params are the workflow parameters required before confirmation.
type Params struct {
	ChargeType    string `db:"charge_type" json:"chargeType"`
	DischargeType string `db:"discharge_type" json:"dischargeType"`
	SupplierID    *id.ID `db:"supplier_id" json:"supplierId,omitempty"`
	Destination   string `db:"destination" json:"destination"`
}

// FirstMissing returns the first unset field in the order charge, discharge,
// supplier, destination, or "" when all are set.
func (p Params) FirstMissing() string {
	switch {
	case p.ChargeType == "":
		return FieldChargeType
	case p.DischargeType == "":
		return FieldDischargeType
	case p.SupplierID == nil || id.IsNil(*p.SupplierID):
		return FieldSupplier
	case p.Destination == "":
		return FieldDestination
	}
	return ""
}

// Equal compares parameter values.
func (p Params) Equal(o Params) bool {
	if p.ChargeType != o.ChargeType || p.DischargeType != o.DischargeType || p.Destination != o.Destination {
		return false
	}
	switch {
	case p.SupplierID == nil && o.SupplierID == nil:
		return true
	case p.SupplierID == nil || o.SupplierID == nil:
		return false
	}
	return *p.SupplierID == *o.SupplierID
}

// Header holds the operator-editable attributes of a session.
type Header struct {
	Reference     string      `db:"reference" json:"reference"`
	InventoryDate time.Time   `db:"inventory_date" json:"inventoryDate"`
	Type          SessionType `db:"inventory_type" json:"type"`
	WardCode      string      `db:"ward_code" json:"wardCode,omitempty"`
	Comment       string      `db:"comment" json:"comment,omitempty"`
	Params
}

// Equal compares header values. Dates compare by calendar day.
func (h Header) Equal(o Header) bool {
	return h.Reference == o.Reference &&
		sameDay(h.InventoryDate, o.InventoryDate) &&
		h.Type == o.Type &&
		h.WardCode == o.WardCode &&
		h.Comment == o.Comment &&
		h.Params.Equal(o.Params)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Session is one inventory reconciliation exercise.
type Session struct {
	entity.BaseDocument
	Header

	Status Status `db:"status" json:"status"`

	// User is the operator who last edited the session.
	User string `db:"user_name" json:"user"`

	ValidatedAt *time.Time `db:"validated_at" json:"validatedAt,omitempty"`
	ConfirmedAt *time.Time `db:"confirmed_at" json:"confirmedAt,omitempty"`
}

// NewSession creates a draft session.
func NewSession(h Header, user string) *Session {
	s := &Session{
		BaseDocument: entity.NewBaseDocument(),
		Header:       h,
		Status:       StatusDraft,
		User:         user,
	}
	s.CreatedBy = user
	s.UpdatedBy = user
	return s
}

// Clone returns an independent copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.SupplierID != nil {
		v := *s.SupplierID
		c.SupplierID = &v
	}
	return &c
}

// ProductRef is the row's snapshot of the product it counts.
type ProductRef struct {
	ID          id.ID  `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Row pairs one product with at most one lot inside a session.
type Row struct {
	// ID is id.Nil until the row is persisted.
	ID id.ID
	// Handle addresses the row inside a working set. It equals ID once persisted.
	Handle    id.ID
	SessionID id.ID

	Product ProductRef
	Lot     *stock.Lot

	TheoreticalQty types.Quantity
	CountedQty     types.Quantity

	// NewLot marks a lot created by this session rather than found in stock.
	NewLot bool

	// Lock is the optimistic-concurrency token checked on update.
	Lock int
}

// Persisted reports whether the row exists in storage.
func (r *Row) Persisted() bool {
	return !id.IsNil(r.ID)
}

// HasLot reports whether a lot is bound.
func (r *Row) HasLot() bool {
	return r.Lot != nil
}

// LotCode returns the bound lot code or "".
func (r *Row) LotCode() string {
	if r.Lot == nil {
		return ""
	}
	return r.Lot.Code
}

// UnitCost is derived from the lot.
func (r *Row) UnitCost() types.Money {
	return r.Lot.UnitCost()
}

// Total is counted quantity times unit cost.
func (r *Row) Total() types.Money {
	return types.LineTotal(r.CountedQty, r.UnitCost())
}

// Delta is counted minus theoretical.
func (r *Row) Delta() types.Quantity {
	return r.CountedQty.Sub(r.TheoreticalQty)
}

// RowKey identifies a row's (product, lot) pairing. A lot still waiting for
// a system-assigned code is its own identity, keyed by the row handle.
type RowKey struct {
	ProductCode string
	LotCode     string
	HasLot      bool
	Pending     id.ID
}

// Key returns the row's identity for deduplication.
func (r *Row) Key() RowKey {
	k := RowKey{ProductCode: r.Product.Code}
	if r.Lot != nil {
		k.HasLot = true
		k.LotCode = r.Lot.Code
		if r.Lot.IsAuto() {
			k.Pending = r.Handle
		}
	}
	return k
}

// Clone deep-copies the row including its lot.
func (r *Row) Clone() *Row {
	c := *r
	c.Lot = r.Lot.Clone()
	return &c
}

// Snapshot is what lifecycle hooks see.
type Snapshot struct {
	Session *Session
	Rows    []*Row
}
