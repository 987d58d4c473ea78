package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"pharmastock/internal/core/id"
	"pharmastock/internal/core/types"
	"pharmastock/internal/domain/documents/inventory"
	"pharmastock/internal/domain/registers/stock"
	"pharmastock/internal/infrastructure/storage/postgres"
)

const rowsTable = "inv_rows"

// rowRecord is one inv_rows line joined with its product and lot.
type rowRecord struct {
	ID             id.ID          `db:"id"`
	SessionID      id.ID          `db:"session_id"`
	Seq            int64          `db:"seq"`
	ProductID      id.ID          `db:"product_id"`
	ProductCode    string         `db:"product_code"`
	Description    string         `db:"product_description"`
	LotCode        *string        `db:"lot_code"`
	TheoreticalQty types.Quantity `db:"theoretical_qty"`
	CountedQty     types.Quantity `db:"counted_qty"`
	NewLot         bool           `db:"new_lot"`
	LockVersion    int            `db:"lock_version"`

	LotPreparation *time.Time          `db:"lot_preparation_date"`
	LotDue         *time.Time          `db:"lot_due_date"`
	LotCost        decimal.NullDecimal `db:"lot_unit_cost"`
	LotQty         *types.Quantity     `db:"lot_main_store_qty"`
}

func (rec *rowRecord) toRow() *inventory.Row {
	r := &inventory.Row{
		ID:        rec.ID,
		Handle:    rec.ID,
		SessionID: rec.SessionID,
		Product: inventory.ProductRef{
			ID:          rec.ProductID,
			Code:        rec.ProductCode,
			Description: rec.Description,
		},
		TheoreticalQty: rec.TheoreticalQty,
		CountedQty:     rec.CountedQty,
		NewLot:         rec.NewLot,
		Lock:           rec.LockVersion,
	}
	if rec.LotCode != nil {
		lot := &stock.Lot{Code: *rec.LotCode, ProductID: rec.ProductID, Cost: rec.LotCost}
		if rec.LotPreparation != nil {
			lot.PreparationDate = *rec.LotPreparation
		}
		if rec.LotDue != nil {
			lot.DueDate = *rec.LotDue
		}
		if rec.LotQty != nil {
			lot.MainStoreQty = *rec.LotQty
		}
		r.Lot = lot
	}
	return r
}

// RowRepo implements inventory.RowRepository.
type RowRepo struct {
	txm *postgres.TxManager
}

var _ inventory.RowRepository = (*RowRepo)(nil)

// NewRowRepo creates a row repository.
func NewRowRepo(txm *postgres.TxManager) *RowRepo {
	return &RowRepo{txm: txm}
}

// listQuery keeps rows of one product together, ordered by the product's
// first appearance and then by insertion.
func listQuery(sessionID id.ID) squirrel.SelectBuilder {
	return builder().
		Select(
			"r.id", "r.session_id", "r.seq", "r.product_id",
			"p.code AS product_code", "p.description AS product_description",
			"r.lot_code", "r.theoretical_qty", "r.counted_qty", "r.new_lot", "r.lock_version",
			"l.preparation_date AS lot_preparation_date",
			"l.due_date AS lot_due_date",
			"l.unit_cost AS lot_unit_cost",
			"l.main_store_qty AS lot_main_store_qty",
		).
		From(rowsTable + " r").
		Join("cat_products p ON p.id = r.product_id").
		LeftJoin("stk_lots l ON l.code = r.lot_code").
		Where(squirrel.Eq{"r.session_id": sessionID}).
		OrderBy("MIN(r.seq) OVER (PARTITION BY r.product_id)", "r.seq")
}

// ListBySession loads the rows of a session.
func (r *RowRepo) ListBySession(ctx context.Context, sessionID id.ID) ([]*inventory.Row, error) {
	sql, args, err := listQuery(sessionID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	var records []rowRecord
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &records, sql, args...); err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	rows := make([]*inventory.Row, len(records))
	for i := range records {
		rows[i] = records[i].toRow()
	}
	return rows, nil
}

func lotCodeOf(row *inventory.Row) *string {
	if !row.HasLot() {
		return nil
	}
	code := row.Lot.Code
	return &code
}

// Create inserts a row and assigns its lock. seq comes from the table's identity.
func (r *RowRepo) Create(ctx context.Context, row *inventory.Row) error {
	sql, args, err := builder().Insert(rowsTable).
		SetMap(map[string]any{
			"id":              row.ID,
			"session_id":      row.SessionID,
			"product_id":      row.Product.ID,
			"lot_code":        lotCodeOf(row),
			"theoretical_qty": row.TheoreticalQty,
			"counted_qty":     row.CountedQty,
			"new_lot":         row.NewLot,
			"lock_version":    1,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert row: %w", err)
	}
	row.Lock = 1
	return nil
}

// Update rewrites row when its lock still matches.
func (r *RowRepo) Update(ctx context.Context, row *inventory.Row) error {
	sql, args, err := builder().Update(rowsTable).
		Set("product_id", row.Product.ID).
		Set("lot_code", lotCodeOf(row)).
		Set("theoretical_qty", row.TheoreticalQty).
		Set("counted_qty", row.CountedQty).
		Set("new_lot", row.NewLot).
		Set("lock_version", squirrel.Expr("lock_version + 1")).
		Where(squirrel.Eq{"id": row.ID, "lock_version": row.Lock}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return inventory.NewStaleRow(row.ID)
	}
	row.Lock++
	return nil
}

// DeleteMany removes rows by id.
func (r *RowRepo) DeleteMany(ctx context.Context, rowIDs []id.ID) error {
	if len(rowIDs) == 0 {
		return nil
	}
	sql, args, err := builder().Delete(rowsTable).Where(squirrel.Eq{"id": rowIDs}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete rows: %w", err)
	}
	return nil
}

// DeleteBySession removes every row of a session.
func (r *RowRepo) DeleteBySession(ctx context.Context, sessionID id.ID) error {
	sql, args, err := builder().Delete(rowsTable).Where(squirrel.Eq{"session_id": sessionID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete session rows: %w", err)
	}
	return nil
}
