package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pharmastock/internal/core/id"
	"pharmastock/internal/core/types"
	"pharmastock/internal/domain/registers/stock"
)

// LotInput is what the operator enters for a lot. Code and PreparationDate
// are ignored under automatic lot numbering.
type LotInput struct {
	Code            string    `json:"code"`
	PreparationDate time.Time `json:"preparationDate"`
	DueDate         time.Time `json:"dueDate"`
}

// LotResolver assigns lots to rows and resolves code collisions.
type LotResolver struct {
	stock    StockRegister
	settings Settings
	clock    func() time.Time
}

// NewLotResolver creates a resolver.
func NewLotResolver(register StockRegister, settings Settings) *LotResolver {
	return &LotResolver{stock: register, settings: settings, clock: time.Now}
}

// Assign binds a lot to the row addressed by handle.
func (lr *LotResolver) Assign(ctx context.Context, ws *WorkingSet, handle id.ID, in LotInput, prompt Prompter) error {
	row, err := ws.Row(handle)
	if err != nil {
		return err
	}

	// A lot found in stock keeps its identity; only the cost may change.
	if row.HasLot() && !row.NewLot {
		return lr.recost(ctx, ws, row, prompt)
	}

	lot := lr.draft(row, in)
	if err := lot.Validate(); err != nil {
		return err
	}

	if !lot.IsAuto() && row.LotCode() == lot.Code {
		return lr.updateInPlace(ctx, ws, row, lot, prompt)
	}

	existing, err := lr.checkConflicts(ctx, ws, row, lot.Code)
	if err != nil {
		return err
	}

	if lr.settings.LotWithCost {
		cost, err := lr.resolveCost(ctx, row, prompt)
		if err != nil {
			return err
		}
		lot.SetCost(cost)
	}

	lr.bind(ws, row, lot, existing)
	return nil
}

// draft builds the candidate lot from operator input.
func (lr *LotResolver) draft(row *Row, in LotInput) *stock.Lot {
	lot := &stock.Lot{
		Code:            strings.TrimSpace(in.Code),
		ProductID:       row.Product.ID,
		PreparationDate: in.PreparationDate,
		DueDate:         in.DueDate,
	}
	if lr.settings.AutoLot {
		lot.Code = ""
		lot.PreparationDate = lr.clock().Truncate(time.Minute)
		// Editing a session-owned lot that already has its code keeps it.
		if row.HasLot() && row.NewLot && !row.Lot.IsAuto() {
			lot.Code = row.Lot.Code
			lot.PreparationDate = row.Lot.PreparationDate
		}
	}
	if lot.PreparationDate.IsZero() {
		lot.PreparationDate = lr.clock().Truncate(time.Minute)
	}
	return lot
}

func (lr *LotResolver) recost(ctx context.Context, ws *WorkingSet, row *Row, prompt Prompter) error {
	if !lr.settings.LotWithCost {
		return nil
	}
	cost, err := lr.resolveCost(ctx, row, prompt)
	if err != nil {
		return err
	}
	if row.Lot.Cost.Valid && row.Lot.Cost.Decimal.Equal(cost) {
		return nil
	}
	lot := row.Lot.Clone()
	lot.SetCost(cost)
	row.Lot = lot
	ws.setLotOp(row, lotUpdate)
	ws.markDirty(row)
	return nil
}

func (lr *LotResolver) updateInPlace(ctx context.Context, ws *WorkingSet, row *Row, lot *stock.Lot, prompt Prompter) error {
	lot.Cost = row.Lot.Cost
	lot.MainStoreQty = row.Lot.MainStoreQty
	if lr.settings.LotWithCost {
		cost, err := lr.resolveCost(ctx, row, prompt)
		if err != nil {
			return err
		}
		lot.SetCost(cost)
	}
	row.Lot = lot
	ws.setLotOp(row, lotUpdate)
	ws.markDirty(row)
	return nil
}

// checkConflicts rejects a code another row or another product already
// holds. A row without a lot is compared against the whole session, a row
// that had one only against rows of its own product. It returns the stock lot
// of the same product carrying the code, if any.
func (lr *LotResolver) checkConflicts(ctx context.Context, ws *WorkingSet, row *Row, code string) (*stock.Lot, error) {
	if code == "" {
		return nil, nil
	}

	sameProductOnly := row.HasLot()
	for _, other := range ws.Rows() {
		if other == row || other.LotCode() != code {
			continue
		}
		if sameProductOnly && other.Product.ID != row.Product.ID {
			continue
		}
		return nil, NewDuplicateLotCode(code, other, SourceSession)
	}

	existing, err := lr.stock.FindLot(ctx, code)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ProductID != row.Product.ID {
		return nil, NewDuplicateLotCode(code, nil, SourceStock)
	}
	return existing, nil
}

// bind replaces the row's lot. existing is the stock lot the code resolved to.
func (lr *LotResolver) bind(ws *WorkingSet, row *Row, lot *stock.Lot, existing *stock.Lot) {
	old := row.Lot
	oldStored := old != nil && row.NewLot && !old.IsAuto() && ws.lotOps[row.Handle] != lotCreate

	switch {
	case existing != nil && ws.restoreSuperseded(row, lot.Code):
		// Bound back to the lot this row had at the last save.
		lot.MainStoreQty = existing.MainStoreQty
		row.NewLot = true
		ws.lotOps[row.Handle] = lotUpdate
	case existing != nil:
		// A stock lot keeps its stored attributes; only a new cost is written.
		bound := existing.Clone()
		delete(ws.lotOps, row.Handle)
		if lot.Cost.Valid && !lot.Cost.Decimal.Equal(bound.UnitCost()) {
			bound.Cost = lot.Cost
			ws.lotOps[row.Handle] = lotUpdate
		}
		lot = bound
		row.NewLot = false
	default:
		row.NewLot = true
		ws.lotOps[row.Handle] = lotCreate
	}

	if oldStored && row.Persisted() && old.Code != lot.Code {
		ws.supersede(row, old)
	}

	row.Lot = lot
	ws.markDirty(row)
}

// resolveCost runs the unit-cost prompt with its total-cost fallback.
func (lr *LotResolver) resolveCost(ctx context.Context, row *Row, prompt Prompter) (types.Money, error) {
	subject := row.Handle.String()
	for attempt := 0; attempt < maxCostAttempts; attempt++ {
		answer, ok, err := prompt.Ask(ctx, Question{
			Kind:    QuestionUnitCost,
			Message: fmt.Sprintf("unit cost for product %s", row.Product.Code),
			Subject: subject,
		})
		if err != nil {
			return types.Zero(), err
		}
		if !ok {
			return types.Zero(), NewLotEntryAborted(row.Handle)
		}
		unit, err := types.ParseCost(answer)
		if err != nil {
			continue
		}
		if !unit.IsZero() {
			return unit, nil
		}

		unit, retry, err := lr.totalCost(ctx, row, prompt)
		if err != nil {
			return types.Zero(), err
		}
		if !retry {
			return unit, nil
		}
	}
	return types.Zero(), NewLotEntryAborted(row.Handle)
}

// totalCost derives a unit cost from a total. retry asks the caller to go
// back to the unit prompt.
func (lr *LotResolver) totalCost(ctx context.Context, row *Row, prompt Prompter) (types.Money, bool, error) {
	for attempt := 0; attempt < maxCostAttempts; attempt++ {
		answer, ok, err := prompt.Ask(ctx, Question{
			Kind:    QuestionTotalCost,
			Message: fmt.Sprintf("total cost for product %s", row.Product.Code),
			Subject: row.Handle.String(),
		})
		if err != nil {
			return types.Zero(), false, err
		}
		if !ok {
			return types.Zero(), false, NewLotEntryAborted(row.Handle)
		}
		total, err := types.ParseCost(answer)
		if err != nil {
			continue
		}
		if row.CountedQty.IsZero() {
			return types.Zero(), true, nil
		}
		return total.DivRound(row.CountedQty.Decimal(), 4), false, nil
	}
	return types.Zero(), false, NewLotEntryAborted(row.Handle)
}
