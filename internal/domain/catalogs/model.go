// Package catalogs holds the read-only master data the inventory workflow consults:
// medical products, movement types, suppliers and wards.
package catalogs

import (
	"pharmastock/internal/core/id"
	"pharmastock/internal/core/types"
)

// Product is a medical product kept in the main store.
type Product struct {
	ID          id.ID  `db:"id" json:"id"`
	Code        string `db:"code" json:"code"`
	Description string `db:"description" json:"description"`

	// Running totals over the product's whole history.
	ReceivedQty types.Quantity `db:"received_qty" json:"receivedQty"`
	IssuedQty   types.Quantity `db:"issued_qty" json:"issuedQty"`
}

// OnHand returns received minus issued.
func (p Product) OnHand() types.Quantity {
	return p.ReceivedQty.Sub(p.IssuedQty)
}

// Direction of a movement type.
type Direction string

const (
	DirectionIncoming Direction = "+"
	DirectionOutgoing Direction = "-"
)

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == DirectionIncoming || d == DirectionOutgoing
}

// MovementType is a catalog entry such as "inventory charge".
type MovementType struct {
	Code        string    `db:"code" json:"code"`
	Description string    `db:"description" json:"description"`
	Direction   Direction `db:"direction" json:"direction"`
}

// Supplier is the counterparty recorded on charge movements.
type Supplier struct {
	ID   id.ID  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Ward is the destination recorded on discharge movements.
type Ward struct {
	Code        string `db:"code" json:"code"`
	Description string `db:"description" json:"description"`
}
