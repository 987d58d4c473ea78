package register_repo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"pharmastock/internal/core/entity"
	"pharmastock/internal/core/id"
	"pharmastock/internal/core/types"
	"pharmastock/internal/domain/registers/stock"
	"pharmastock/internal/infrastructure/storage/postgres"
)

const movementsTable = "stk_movements"

var movementColumns = []string{
	"line_id", "recorder_id", "recorder_type", "reference", "period", "record_type",
	"movement_type", "product_id", "lot_code", "quantity",
	"supplier_id", "ward_code", "unit_cost", "created_at",
}

// ErrNoTransaction is returned when the ledger is written outside a transaction.
var ErrNoTransaction = errors.New("stock movements must be written inside a transaction")

// MovementRepo implements stock.MovementRepository.
type MovementRepo struct {
	txm *postgres.TxManager
}

var _ stock.MovementRepository = (*MovementRepo)(nil)

// NewMovementRepo creates a movement ledger repository.
func NewMovementRepo(txm *postgres.TxManager) *MovementRepo {
	return &MovementRepo{txm: txm}
}

// CreateMovements copies movements into the ledger and applies them to lot
// balances and product totals in one batch.
func (r *MovementRepo) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	tx := r.txm.GetTx(ctx)
	if tx == nil {
		return ErrNoTransaction
	}

	rows := make([][]any, len(movements))
	for i, m := range movements {
		rows[i] = []any{
			m.LineID, m.RecorderID, m.RecorderType, m.Reference, m.Period, string(m.RecordType),
			m.MovementTypeCode, m.ProductID, m.LotCode, m.Quantity.Int64Scaled(),
			m.SupplierID, m.WardCode, m.UnitCost, m.CreatedAt,
		}
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{movementsTable}, movementColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy movements: %w", err)
	}
	if int(n) != len(movements) {
		return fmt.Errorf("copy movements: wrote %d of %d", n, len(movements))
	}

	batch := balanceBatch(movements)
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("apply balances: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("apply balances: %w", err)
	}
	return nil
}

type productDelta struct {
	received types.Quantity
	issued   types.Quantity
}

// balanceBatch folds movements into one update per lot and per product,
// issued in key order so concurrent confirmations lock rows consistently.
func balanceBatch(movements []entity.StockMovement) *pgx.Batch {
	lots := make(map[string]types.Quantity)
	products := make(map[id.ID]*productDelta)
	for i := range movements {
		m := &movements[i]
		lots[m.LotCode] = lots[m.LotCode].Add(m.SignedQuantity())

		d, ok := products[m.ProductID]
		if !ok {
			d = &productDelta{}
			products[m.ProductID] = d
		}
		if m.RecordType == entity.RecordTypeReceipt {
			d.received = d.received.Add(m.Quantity)
		} else {
			d.issued = d.issued.Add(m.Quantity)
		}
	}

	lotCodes := make([]string, 0, len(lots))
	for code := range lots {
		lotCodes = append(lotCodes, code)
	}
	sort.Strings(lotCodes)

	productIDs := make([]id.ID, 0, len(products))
	for pid := range products {
		productIDs = append(productIDs, pid)
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i].String() < productIDs[j].String() })

	batch := &pgx.Batch{}
	for _, code := range lotCodes {
		batch.Queue(
			"UPDATE "+lotsTable+" SET main_store_qty = main_store_qty + $1 WHERE code = $2",
			lots[code].Int64Scaled(), code,
		)
	}
	for _, pid := range productIDs {
		d := products[pid]
		batch.Queue(
			"UPDATE cat_products SET received_qty = received_qty + $1, issued_qty = issued_qty + $2 WHERE id = $3",
			d.received.Int64Scaled(), d.issued.Int64Scaled(), pid,
		)
	}
	return batch
}

// ReferenceExists reports whether any movement carries reference.
func (r *MovementRepo) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	sub, args, err := builder().Select("1").From(movementsTable).
		Where(squirrel.Eq{"reference": reference}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists: %w", err)
	}
	var exists bool
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, "SELECT EXISTS ("+sub+")", args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check reference: %w", err)
	}
	return exists, nil
}

// GetMovementsByRecorder lists the movements written by one recorder.
func (r *MovementRepo) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	sql, args, err := builder().Select(movementColumns...).From(movementsTable).
		Where(squirrel.Eq{"recorder_id": recorderID}).
		OrderBy("line_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	var out []entity.StockMovement
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return out, nil
}
