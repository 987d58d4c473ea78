package inventory

import (
	"context"
	"time"

	"pharmastock/internal/core/entity"
	"pharmastock/internal/core/tx"
	"pharmastock/internal/core/types"
	"pharmastock/pkg/logger"
)

// Synthesizer turns a validated session into corrective stock movements and
// commits them together with the session's move to done.
type Synthesizer struct {
	txm      tx.Manager
	sessions SessionRepository
	stock    StockRegister
	recorder EventRecorder
	clock    func() time.Time
}

// NewSynthesizer creates a synthesizer. recorder may be nil.
func NewSynthesizer(txm tx.Manager, sessions SessionRepository, register StockRegister, recorder EventRecorder) *Synthesizer {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Synthesizer{
		txm:      txm,
		sessions: sessions,
		stock:    register,
		recorder: recorder,
		clock:    time.Now,
	}
}

// Plan checks the confirmation preconditions and computes the movements.
// It writes nothing.
func (s *Synthesizer) Plan(sess *Session, rows []*Row) ([]entity.StockMovement, error) {
	if sess.Status != StatusValidated {
		return nil, NewInvalidState(sess.Status, OpConfirm)
	}
	for _, r := range rows {
		if !r.HasLot() {
			return nil, NewIncompleteLot(r)
		}
	}
	if field := sess.FirstMissing(); field != "" {
		return nil, NewMissingParameter(field)
	}

	var movements []entity.StockMovement
	for _, r := range rows {
		delta := r.Delta()
		switch {
		case delta.IsPositive():
			m := s.movement(sess, r, entity.RecordTypeReceipt, delta)
			m.MovementTypeCode = sess.ChargeType
			supplier := *sess.SupplierID
			m.SupplierID = &supplier
			movements = append(movements, m)
		case delta.IsNegative():
			m := s.movement(sess, r, entity.RecordTypeExpense, delta.Abs())
			m.MovementTypeCode = sess.DischargeType
			m.WardCode = sess.Destination
			movements = append(movements, m)
		}
	}
	return movements, nil
}

func (s *Synthesizer) movement(sess *Session, r *Row, rt entity.RecordType, qty types.Quantity) entity.StockMovement {
	return entity.StockMovement{
		MovementBase: entity.NewMovementBase(sess.ID, RecorderType, sess.Reference, sess.InventoryDate, rt),
		ProductID:    r.Product.ID,
		LotCode:      r.Lot.Code,
		Quantity:     qty,
		UnitCost:     r.UnitCost(),
	}
}

// Commit writes movements and moves the session to done in one transaction.
// On failure the transaction rolls back and sess keeps its validated state.
func (s *Synthesizer) Commit(ctx context.Context, sess *Session, movements []entity.StockMovement, user string) (*Session, error) {
	next := sess.Clone()
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.stock.RecordMovements(ctx, movements); err != nil {
			return err
		}
		if err := next.Confirm(s.clock().UTC()); err != nil {
			return err
		}
		next.Stamp(user)
		next.User = user
		if err := s.sessions.Update(ctx, next); err != nil {
			return err
		}
		return s.recorder.Record(ctx, newEvent(SessionUpdated, next, s.clock().UTC()))
	})
	if err != nil {
		logger.Warn(ctx, "inventory confirmation rolled back",
			"session_id", sess.ID, "reference", sess.Reference, "error", err)
		return nil, NewSynthesisFailure(err)
	}

	logger.Info(ctx, "inventory confirmed",
		"session_id", next.ID, "reference", next.Reference, "movements", len(movements))
	return next, nil
}
