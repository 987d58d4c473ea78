package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"pharmastock/internal/domain/catalogs"
	"pharmastock/internal/infrastructure/storage/postgres"
)

// MovementTypeRepo implements catalogs.MovementTypeCatalog.
type MovementTypeRepo struct {
	baseRepo[catalogs.MovementType]
}

var _ catalogs.MovementTypeCatalog = (*MovementTypeRepo)(nil)

// NewMovementTypeRepo creates a movement type repository.
func NewMovementTypeRepo(txm *postgres.TxManager) *MovementTypeRepo {
	return &MovementTypeRepo{baseRepo: newBaseRepo[catalogs.MovementType](txm, "cat_movement_types", "movement type", "code")}
}

// ListByDirection returns the types moving stock in dir.
func (r *MovementTypeRepo) ListByDirection(ctx context.Context, dir catalogs.Direction) ([]catalogs.MovementType, error) {
	return r.list(ctx, squirrel.Eq{"direction": dir})
}

// GetByCode finds a type by code.
func (r *MovementTypeRepo) GetByCode(ctx context.Context, code string) (*catalogs.MovementType, error) {
	return r.getOne(ctx, squirrel.Eq{"code": code}, code)
}

// Upsert writes a type keyed by code.
func (r *MovementTypeRepo) Upsert(ctx context.Context, mt catalogs.MovementType) error {
	return r.upsert(ctx, postgres.StructToMap(mt), "code")
}
