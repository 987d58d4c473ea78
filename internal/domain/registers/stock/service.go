package stock

import (
	"context"
	"fmt"
	"time"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/entity"
	"pharmastock/internal/core/id"
	"pharmastock/internal/core/numerator"
	"pharmastock/pkg/logger"
)

// LotNumberPrefix is used for system-assigned lot codes.
const LotNumberPrefix = "LOT"

// lotCodeRange is how many automatic lot codes a process reserves at once.
// Lot codes only need to be unique, so gaps left by a restart are fine.
const lotCodeRange = 100

// Service provides business operations for the stock register.
// Transactions are managed by the caller.
type Service struct {
	lots      LotRepository
	movements MovementRepository
	numerator numerator.Generator
	clock     func() time.Time
}

// NewService creates a new stock register service.
func NewService(lots LotRepository, movements MovementRepository, gen numerator.Generator) *Service {
	return &Service{
		lots:      lots,
		movements: movements,
		numerator: gen,
		clock:     time.Now,
	}
}

// LotsInStock lists lots with a positive balance for the product.
func (s *Service) LotsInStock(ctx context.Context, productID id.ID) ([]Lot, error) {
	lots, err := s.lots.ListInStock(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	return lots, nil
}

// FindLot returns the stored lot with code, or nil when there is none.
// An empty code never matches.
func (s *Service) FindLot(ctx context.Context, code string) (*Lot, error) {
	if code == "" {
		return nil, nil
	}
	lot, err := s.lots.GetByCode(ctx, code)
	if apperror.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lot %s: %w", code, err)
	}
	return lot, nil
}

// StoreLot creates lot, assigning a code first when it is automatic.
func (s *Service) StoreLot(ctx context.Context, lot *Lot) error {
	if err := lot.Validate(); err != nil {
		return err
	}
	if lot.IsAuto() {
		opts := &numerator.Options{Strategy: numerator.StrategyCached, RangeSize: lotCodeRange}
		code, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(LotNumberPrefix), opts, s.clock())
		if err != nil {
			return fmt.Errorf("generate lot code: %w", err)
		}
		lot.Code = code
	}
	if err := s.lots.Create(ctx, lot); err != nil {
		return fmt.Errorf("create lot %s: %w", lot.Code, err)
	}
	return nil
}

// UpdateLot rewrites the stored attributes of lot.
func (s *Service) UpdateLot(ctx context.Context, lot *Lot) error {
	if err := lot.Validate(); err != nil {
		return err
	}
	if err := s.lots.Update(ctx, lot); err != nil {
		return fmt.Errorf("update lot %s: %w", lot.Code, err)
	}
	return nil
}

// DeleteLot removes a lot. Missing lots are ignored.
func (s *Service) DeleteLot(ctx context.Context, code string) error {
	if code == "" {
		return nil
	}
	if err := s.lots.Delete(ctx, code); err != nil && !apperror.IsNotFound(err) {
		return fmt.Errorf("delete lot %s: %w", code, err)
	}
	return nil
}

// ReferenceUsed reports whether a raw movement already carries reference.
func (s *Service) ReferenceUsed(ctx context.Context, reference string) (bool, error) {
	used, err := s.movements.ReferenceExists(ctx, reference)
	if err != nil {
		return false, fmt.Errorf("check movement reference: %w", err)
	}
	return used, nil
}

// RecordMovements validates and writes movements.
// Called inside the transaction that finalizes the recorder.
func (s *Service) RecordMovements(ctx context.Context, movements []entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}

	for i, m := range movements {
		if !m.Quantity.IsPositive() {
			return apperror.NewValidation(fmt.Sprintf("movement %d: quantity must be positive", i))
		}
		if id.IsNil(m.RecorderID) {
			return apperror.NewValidation(fmt.Sprintf("movement %d: recorder_id is required", i))
		}
		if m.LotCode == "" {
			return apperror.NewValidation(fmt.Sprintf("movement %d: lot is required", i))
		}
	}

	if err := s.movements.CreateMovements(ctx, movements); err != nil {
		return fmt.Errorf("create movements: %w", err)
	}

	logger.Info(ctx, "recorded stock movements",
		"count", len(movements),
		"recorder_id", movements[0].RecorderID,
	)
	return nil
}

// MovementsOf returns the movements produced by a recorder.
func (s *Service) MovementsOf(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	return s.movements.GetMovementsByRecorder(ctx, recorderID)
}
