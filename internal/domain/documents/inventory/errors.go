package inventory

import (
	"fmt"
	"net/http"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/internal/core/types"
)

// Error codes raised by the inventory workflow.
const (
	CodeIncompleteLot     = "INCOMPLETE_LOT"
	CodeMissingParameter  = "MISSING_PARAMETER"
	CodeDuplicateRef      = "DUPLICATE_REFERENCE"
	CodeDuplicateLotCode  = "DUPLICATE_LOT_CODE"
	CodeInvalidQuantity   = "INVALID_QUANTITY"
	CodeInvalidState      = "INVALID_STATE"
	CodeStaleRow          = "STALE_ROW"
	CodeSynthesisFailure  = "SYNTHESIS_FAILURE"
	CodeNoRows            = "NO_ROWS"
	CodeOpenSessionExists = "OPEN_SESSION_EXISTS"
	CodeStockDrift        = "STOCK_DRIFT"
	CodeUnsavedChanges    = "UNSAVED_CHANGES"
	CodeRowRuleViolation  = "ROW_RULE_VIOLATION"
	CodeLotEntryAborted   = "LOT_ENTRY_ABORTED"
)

// RecoveryActualize is the recovery hint attached to synthesis and drift errors.
const RecoveryActualize = "actualize"

// Reference collision sources.
const (
	SourceSession  = "session"
	SourceMovement = "movement"
	SourceStock    = "stock"
)

func rowDetails(e *apperror.AppError, r *Row) *apperror.AppError {
	if r == nil {
		return e
	}
	e.WithDetail("rowId", r.Handle.String()).
		WithDetail("productCode", r.Product.Code)
	return e
}

// NewIncompleteLot reports a row without a lot at validate or confirm.
func NewIncompleteLot(r *Row) *apperror.AppError {
	e := apperror.New(CodeIncompleteLot, http.StatusUnprocessableEntity,
		fmt.Sprintf("product %s has no lot assigned", r.Product.Code))
	return rowDetails(e, r)
}

// NewMissingParameter names the first unset workflow parameter.
func NewMissingParameter(field string) *apperror.AppError {
	return apperror.New(CodeMissingParameter, http.StatusUnprocessableEntity,
		fmt.Sprintf("workflow parameter %s is not set", field)).
		WithDetail("field", field)
}

// NewDuplicateReference reports a reference already used by a session or a movement.
func NewDuplicateReference(reference, source string) *apperror.AppError {
	return apperror.New(CodeDuplicateRef, http.StatusConflict,
		fmt.Sprintf("reference %s is already used", reference)).
		WithDetail("field", "reference").
		WithDetail("reference", reference).
		WithDetail("source", source)
}

// NewDuplicateLotCode reports a lot code already bound elsewhere.
// conflicting is nil when the collision is with a stock lot of another product.
func NewDuplicateLotCode(code string, conflicting *Row, source string) *apperror.AppError {
	e := apperror.New(CodeDuplicateLotCode, http.StatusConflict,
		fmt.Sprintf("lot code %s is already in use", code)).
		WithDetail("field", "lotCode").
		WithDetail("lotCode", code).
		WithDetail("source", source)
	return rowDetails(e, conflicting)
}

// NewInvalidQuantity reports a negative counted quantity.
func NewInvalidQuantity(handle id.ID, qty types.Quantity) *apperror.AppError {
	return apperror.New(CodeInvalidQuantity, http.StatusBadRequest,
		"counted quantity must not be negative").
		WithDetail("rowId", handle.String()).
		WithDetail("quantity", qty.String())
}

// NewInvalidState reports an operation that the current status forbids.
func NewInvalidState(status Status, op Operation) *apperror.AppError {
	label := string(status)
	if label == "" {
		label = "unsaved"
	}
	return apperror.New(CodeInvalidState, http.StatusConflict,
		fmt.Sprintf("cannot %s an inventory in status %s", op, label)).
		WithDetail("status", label).
		WithDetail("operation", string(op))
}

// NewStaleRow reports an optimistic-token mismatch on a row update.
func NewStaleRow(rowID id.ID) *apperror.AppError {
	return apperror.New(CodeStaleRow, http.StatusConflict,
		"row was modified since it was read").
		WithDetail("rowId", rowID.String())
}

// NewSynthesisFailure wraps a failed movement commit. The session stays validated.
func NewSynthesisFailure(cause error) *apperror.AppError {
	return apperror.New(CodeSynthesisFailure, http.StatusUnprocessableEntity,
		"stock movements could not be committed; validate again or actualize").
		WithDetail("recovery", RecoveryActualize).
		WithCause(cause)
}

// NewNoRows reports a save attempted with an empty row list.
func NewNoRows() *apperror.AppError {
	return apperror.New(CodeNoRows, http.StatusUnprocessableEntity,
		"cannot save an inventory without products")
}

// NewOpenSessionExists reports another draft or validated session of the same type.
func NewOpenSessionExists(existing *Session) *apperror.AppError {
	return apperror.New(CodeOpenSessionExists, http.StatusConflict,
		"another inventory of this type is still open").
		WithDetail("sessionId", existing.ID.String()).
		WithDetail("reference", existing.Reference).
		WithDetail("status", string(existing.Status))
}

// Drift describes one row whose baseline no longer matches stock.
type Drift struct {
	RowID       string         `json:"rowId"`
	ProductCode string         `json:"productCode"`
	LotCode     string         `json:"lotCode"`
	Theoretical types.Quantity `json:"theoretical"`
	Current     types.Quantity `json:"current"`
}

// NewStockDrift reports rows whose theoretical quantity differs from stock.
func NewStockDrift(drifts []Drift) *apperror.AppError {
	return apperror.New(CodeStockDrift, http.StatusUnprocessableEntity,
		"stock changed since the rows were created; actualize to re-baseline").
		WithDetail("recovery", RecoveryActualize).
		WithDetail("rows", drifts)
}

// NewUnsavedChanges reports pending edits at confirmation.
func NewUnsavedChanges() *apperror.AppError {
	return apperror.New(CodeUnsavedChanges, http.StatusConflict,
		"inventory has unsaved changes; save and validate again")
}

// NewRowRuleViolation reports a row rejected by the configured row rule.
func NewRowRuleViolation(r *Row, rule string) *apperror.AppError {
	e := apperror.New(CodeRowRuleViolation, http.StatusUnprocessableEntity,
		fmt.Sprintf("row for product %s breaks rule %q", r.Product.Code, rule)).
		WithDetail("rule", rule)
	return rowDetails(e, r)
}

// NewLotEntryAborted reports that the operator canceled lot or cost entry.
func NewLotEntryAborted(handle id.ID) *apperror.AppError {
	return apperror.New(CodeLotEntryAborted, http.StatusUnprocessableEntity,
		"lot assignment was canceled").
		WithDetail("rowId", handle.String())
}

func IsIncompleteLot(err error) bool    { return apperror.HasCode(err, CodeIncompleteLot) }
func IsMissingParameter(err error) bool { return apperror.HasCode(err, CodeMissingParameter) }
func IsDuplicateReference(err error) bool {
	return apperror.HasCode(err, CodeDuplicateRef)
}
func IsDuplicateLotCode(err error) bool  { return apperror.HasCode(err, CodeDuplicateLotCode) }
func IsInvalidQuantity(err error) bool   { return apperror.HasCode(err, CodeInvalidQuantity) }
func IsInvalidState(err error) bool      { return apperror.HasCode(err, CodeInvalidState) }
func IsStaleRow(err error) bool          { return apperror.HasCode(err, CodeStaleRow) }
func IsSynthesisFailure(err error) bool  { return apperror.HasCode(err, CodeSynthesisFailure) }
func IsStockDrift(err error) bool        { return apperror.HasCode(err, CodeStockDrift) }
func IsLotEntryAborted(err error) bool   { return apperror.HasCode(err, CodeLotEntryAborted) }
func IsOpenSessionExists(err error) bool { return apperror.HasCode(err, CodeOpenSessionExists) }
