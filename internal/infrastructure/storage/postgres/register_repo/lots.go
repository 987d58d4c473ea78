// Package register_repo provides PostgreSQL implementations of the stock
// register: lots and the movement ledger.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/registers/stock"
	"pharmastock/internal/infrastructure/storage/postgres"
)

const lotsTable = "stk_lots"

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// LotRepo implements stock.LotRepository.
type LotRepo struct {
	txm     *postgres.TxManager
	columns []string
}

var _ stock.LotRepository = (*LotRepo)(nil)

// NewLotRepo creates a lot repository.
func NewLotRepo(txm *postgres.TxManager) *LotRepo {
	return &LotRepo{
		txm:     txm,
		columns: postgres.ExtractDBColumns[stock.Lot](),
	}
}

// ListInStock returns lots of productID with a positive balance, earliest due first.
func (r *LotRepo) ListInStock(ctx context.Context, productID id.ID) ([]stock.Lot, error) {
	sql, args, err := builder().Select(r.columns...).From(lotsTable).
		Where(squirrel.Eq{"product_id": productID}).
		Where(squirrel.Gt{"main_store_qty": 0}).
		OrderBy("due_date", "code").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	var lots []stock.Lot
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &lots, sql, args...); err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	return lots, nil
}

// GetByCode returns the lot carrying code.
func (r *LotRepo) GetByCode(ctx context.Context, code string) (*stock.Lot, error) {
	sql, args, err := builder().Select(r.columns...).From(lotsTable).
		Where(squirrel.Eq{"code": code}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	var lot stock.Lot
	err = pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &lot, sql, args...)
	if pgxscan.NotFound(err) {
		return nil, apperror.NewNotFound("lot", code)
	}
	if err != nil {
		return nil, fmt.Errorf("get lot: %w", err)
	}
	return &lot, nil
}

// Create inserts a lot with a zero balance.
func (r *LotRepo) Create(ctx context.Context, lot *stock.Lot) error {
	data := postgres.Pick(postgres.StructToMap(lot), r.columns)
	data["main_store_qty"] = 0

	sql, args, err := builder().Insert(lotsTable).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if _, ok := postgres.UniqueViolation(err); ok {
			return apperror.NewDuplicate("lot", "code", lot.Code)
		}
		if postgres.IsForeignKeyViolation(err) {
			return apperror.NewValidation("lot refers to an unknown product").
				WithDetail("productId", lot.ProductID.String())
		}
		return fmt.Errorf("insert lot: %w", err)
	}
	lot.MainStoreQty = 0
	return nil
}

// Update rewrites dates and cost. Balances only move through movements.
func (r *LotRepo) Update(ctx context.Context, lot *stock.Lot) error {
	sql, args, err := builder().Update(lotsTable).
		Set("preparation_date", lot.PreparationDate).
		Set("due_date", lot.DueDate).
		Set("unit_cost", lot.Cost).
		Where(squirrel.Eq{"code": lot.Code}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update lot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("lot", lot.Code)
	}
	return nil
}

// Delete removes a lot that no movement references.
func (r *LotRepo) Delete(ctx context.Context, code string) error {
	sql, args, err := builder().Delete(lotsTable).Where(squirrel.Eq{"code": code}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return apperror.NewConflict("lot is referenced by stock movements").
				WithDetail("lotCode", code)
		}
		return fmt.Errorf("delete lot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("lot", code)
	}
	return nil
}
