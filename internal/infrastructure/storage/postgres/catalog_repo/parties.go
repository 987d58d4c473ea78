package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/catalogs"
	"pharmastock/internal/infrastructure/storage/postgres"
)

// SupplierRepo implements catalogs.SupplierCatalog.
type SupplierRepo struct {
	baseRepo[catalogs.Supplier]
}

var _ catalogs.SupplierCatalog = (*SupplierRepo)(nil)

// NewSupplierRepo creates a supplier repository.
func NewSupplierRepo(txm *postgres.TxManager) *SupplierRepo {
	return &SupplierRepo{baseRepo: newBaseRepo[catalogs.Supplier](txm, "cat_suppliers", "supplier", "name")}
}

func (r *SupplierRepo) List(ctx context.Context) ([]catalogs.Supplier, error) {
	return r.list(ctx, nil)
}

func (r *SupplierRepo) GetByID(ctx context.Context, supplierID id.ID) (*catalogs.Supplier, error) {
	return r.getOne(ctx, squirrel.Eq{"id": supplierID}, supplierID.String())
}

// Upsert writes a supplier keyed by id.
func (r *SupplierRepo) Upsert(ctx context.Context, s catalogs.Supplier) error {
	return r.upsert(ctx, postgres.StructToMap(s), "id")
}

// WardRepo implements catalogs.WardCatalog.
type WardRepo struct {
	baseRepo[catalogs.Ward]
}

var _ catalogs.WardCatalog = (*WardRepo)(nil)

// NewWardRepo creates a ward repository.
func NewWardRepo(txm *postgres.TxManager) *WardRepo {
	return &WardRepo{baseRepo: newBaseRepo[catalogs.Ward](txm, "cat_wards", "ward", "code")}
}

func (r *WardRepo) List(ctx context.Context) ([]catalogs.Ward, error) {
	return r.list(ctx, nil)
}

func (r *WardRepo) GetByCode(ctx context.Context, code string) (*catalogs.Ward, error) {
	return r.getOne(ctx, squirrel.Eq{"code": code}, code)
}

// Upsert writes a ward keyed by code.
func (r *WardRepo) Upsert(ctx context.Context, w catalogs.Ward) error {
	return r.upsert(ctx, postgres.StructToMap(w), "code")
}
