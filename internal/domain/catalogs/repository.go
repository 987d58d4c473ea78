package catalogs

import (
	"context"

	"pharmastock/internal/core/id"
)

// ProductCatalog is the read side of the medical product master data.
type ProductCatalog interface {
	// GetByCode returns apperror NotFound when code is unknown.
	GetByCode(ctx context.Context, code string) (*Product, error)
	GetByID(ctx context.Context, productID id.ID) (*Product, error)

	// SearchByDescription returns products whose normalized description
	// contains the normalized query, sorted by description.
	SearchByDescription(ctx context.Context, query string) ([]Product, error)

	List(ctx context.Context) ([]Product, error)
	Count(ctx context.Context) (int, error)
}

// MovementTypeCatalog lists movement types.
type MovementTypeCatalog interface {
	ListByDirection(ctx context.Context, dir Direction) ([]MovementType, error)
	GetByCode(ctx context.Context, code string) (*MovementType, error)
}

// SupplierCatalog lists suppliers.
type SupplierCatalog interface {
	List(ctx context.Context) ([]Supplier, error)
	GetByID(ctx context.Context, supplierID id.ID) (*Supplier, error)
}

// WardCatalog lists wards.
type WardCatalog interface {
	List(ctx context.Context) ([]Ward, error)
	GetByCode(ctx context.Context, code string) (*Ward, error)
}
