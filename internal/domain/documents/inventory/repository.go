package inventory

import (
	"context"
	"time"

	"pharmastock/internal/core/entity"
	"pharmastock/internal/core/id"
	"pharmastock/internal/domain"
	"pharmastock/internal/domain/registers/stock"
)

// ListFilter narrows the session browser.
type ListFilter struct {
	domain.ListFilter

	Statuses []Status
	Type     SessionType
	DateFrom *time.Time
	DateTo   *time.Time
}

// SessionRepository persists sessions.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error

	// Update checks and bumps the version. A mismatch is a concurrent-modification error.
	Update(ctx context.Context, s *Session) error

	GetByID(ctx context.Context, sessionID id.ID) (*Session, error)

	// GetByReference finds a non-deleted session other than exclude carrying
	// reference. Returns apperror NotFound when there is none.
	GetByReference(ctx context.Context, reference string, exclude id.ID) (*Session, error)

	// FindOpen returns a draft or validated session of typ other than exclude,
	// or nil when there is none.
	FindOpen(ctx context.Context, typ SessionType, exclude id.ID) (*Session, error)

	List(ctx context.Context, filter ListFilter) (domain.ListResult[Session], error)
	CountByType(ctx context.Context, typ SessionType) (int64, error)

	// Delete sets the deletion mark.
	Delete(ctx context.Context, sessionID id.ID) error
}

// RowRepository persists rows.
type RowRepository interface {
	ListBySession(ctx context.Context, sessionID id.ID) ([]*Row, error)
	Create(ctx context.Context, r *Row) error

	// Update checks the row lock and bumps it. A mismatch is a StaleRow error.
	Update(ctx context.Context, r *Row) error

	DeleteMany(ctx context.Context, rowIDs []id.ID) error
	DeleteBySession(ctx context.Context, sessionID id.ID) error
}

// StockRegister is the part of the stock register the workflow uses.
// *stock.Service implements it.
type StockRegister interface {
	LotsInStock(ctx context.Context, productID id.ID) ([]stock.Lot, error)
	FindLot(ctx context.Context, code string) (*stock.Lot, error)
	StoreLot(ctx context.Context, lot *stock.Lot) error
	UpdateLot(ctx context.Context, lot *stock.Lot) error
	DeleteLot(ctx context.Context, code string) error
	ReferenceUsed(ctx context.Context, reference string) (bool, error)
	RecordMovements(ctx context.Context, movements []entity.StockMovement) error
}

var _ StockRegister = (*stock.Service)(nil)
