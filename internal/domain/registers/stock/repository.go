// Package stock provides the lot-level stock register: lots and their balances,
// plus the movement ledger that changes them.
package stock

import (
	"context"

	"pharmastock/internal/core/entity"
	"pharmastock/internal/core/id"
)

// LotRepository stores lots. Codes are unique across the store.
type LotRepository interface {
	// ListInStock returns the product's lots with a positive main-store balance.
	ListInStock(ctx context.Context, productID id.ID) ([]Lot, error)

	// GetByCode returns apperror NotFound when no lot carries code.
	GetByCode(ctx context.Context, code string) (*Lot, error)

	Create(ctx context.Context, lot *Lot) error
	Update(ctx context.Context, lot *Lot) error
	Delete(ctx context.Context, code string) error
}

// MovementRepository is the movement ledger.
type MovementRepository interface {
	// CreateMovements inserts movements and applies them to lot balances and
	// product running totals. Must run inside the caller's transaction.
	CreateMovements(ctx context.Context, movements []entity.StockMovement) error

	// ReferenceExists reports whether any raw movement carries reference.
	ReferenceExists(ctx context.Context, reference string) (bool, error)

	GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error)
}
