package inventory

import (
	"context"
	"fmt"
	"strings"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
)

// ReferenceGuard keeps session references unique across sessions and the
// raw movement ledger.
type ReferenceGuard struct {
	sessions SessionRepository
	stock    StockRegister
}

// NewReferenceGuard creates a guard.
func NewReferenceGuard(sessions SessionRepository, register StockRegister) *ReferenceGuard {
	return &ReferenceGuard{sessions: sessions, stock: register}
}

// Check fails with DuplicateReferenceError when reference is carried by a
// session other than self or by any raw movement.
func (g *ReferenceGuard) Check(ctx context.Context, reference string, self id.ID) error {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return apperror.NewValidation("reference is required").WithDetail("field", "reference")
	}

	_, err := g.sessions.GetByReference(ctx, reference, self)
	switch {
	case err == nil:
		return NewDuplicateReference(reference, SourceSession)
	case !apperror.IsNotFound(err):
		return fmt.Errorf("check session reference: %w", err)
	}

	used, err := g.stock.ReferenceUsed(ctx, reference)
	if err != nil {
		return err
	}
	if used {
		return NewDuplicateReference(reference, SourceMovement)
	}
	return nil
}
