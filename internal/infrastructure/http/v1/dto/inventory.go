package dto

import (
	"time"

	"pharmastock/internal/core/id"
	"pharmastock/internal/core/types"
	"pharmastock/internal/domain/documents/inventory"
)

// --- Request DTOs ---

// OpenEditRequest opens an existing session, or a new one of Type when
// SessionID is empty.
type OpenEditRequest struct {
	SessionID *string `json:"sessionId,omitempty"`
	Type      string  `json:"type" binding:"omitempty,oneof=main ward"`
}

// HeaderRequest replaces the pending header of an edit.
type HeaderRequest struct {
	Reference     string     `json:"reference" binding:"max=64"`
	InventoryDate *time.Time `json:"inventoryDate,omitempty"`
	Type          string     `json:"type" binding:"omitempty,oneof=main ward"`
	WardCode      string     `json:"wardCode"`
	Comment       string     `json:"comment" binding:"max=1000"`
	ChargeType    string     `json:"chargeType"`
	DischargeType string     `json:"dischargeType"`
	SupplierID    *string    `json:"supplierId,omitempty"`
	Destination   string     `json:"destination"`
}

// ToHeader maps the request onto a domain header.
func (r *HeaderRequest) ToHeader() (inventory.Header, error) {
	supplierID, err := ParseOptionalID(r.SupplierID, "supplierId")
	if err != nil {
		return inventory.Header{}, err
	}
	h := inventory.Header{
		Reference: r.Reference,
		Type:      inventory.SessionType(r.Type),
		WardCode:  r.WardCode,
		Comment:   r.Comment,
		Params: inventory.Params{
			ChargeType:    r.ChargeType,
			DischargeType: r.DischargeType,
			SupplierID:    supplierID,
			Destination:   r.Destination,
		},
	}
	if r.InventoryDate != nil {
		h.InventoryDate = *r.InventoryDate
	}
	return h, nil
}

// Answers carries operator answers to prompts raised by a previous attempt
// of the same request.
type Answers struct {
	// Confirm maps a question kind (scope_switch, extra_lots) to yes or no.
	Confirm    map[string]bool `json:"confirm,omitempty"`
	ProductID  *string         `json:"productId,omitempty"`
	PickNone   bool            `json:"pickNone,omitempty"`
	UnitCosts  []string        `json:"unitCosts,omitempty"`
	TotalCosts []string        `json:"totalCosts,omitempty"`
	Cancel     bool            `json:"cancel,omitempty"`
}

// Prompter turns the answers into a scripted prompter.
func (a *Answers) Prompter() (*inventory.ScriptedPrompter, error) {
	p := &inventory.ScriptedPrompter{
		Confirmations: make(map[inventory.QuestionKind]bool, len(a.Confirm)),
		PickNone:      a.PickNone,
		UnitCosts:     append([]string(nil), a.UnitCosts...),
		TotalCosts:    append([]string(nil), a.TotalCosts...),
		Cancel:        a.Cancel,
	}
	for kind, v := range a.Confirm {
		p.Confirmations[inventory.QuestionKind(kind)] = v
	}
	productID, err := ParseOptionalID(a.ProductID, "productId")
	if err != nil {
		return nil, err
	}
	p.ProductID = productID
	return p, nil
}

// LoadAllRequest adds every catalog product.
type LoadAllRequest struct {
	Answers Answers `json:"answers"`
}

// AddProductRequest adds one product by code or description.
type AddProductRequest struct {
	Code    string  `json:"code" binding:"required"`
	Answers Answers `json:"answers"`
}

// CountedRequest sets a counted quantity.
type CountedRequest struct {
	Quantity *types.Quantity `json:"quantity" binding:"required"`
}

// LotRequest assigns a lot to a row.
type LotRequest struct {
	Code            string    `json:"code" binding:"max=64"`
	PreparationDate time.Time `json:"preparationDate"`
	DueDate         time.Time `json:"dueDate" binding:"required"`
	Answers         Answers   `json:"answers"`
}

// ToInput maps the request onto a lot input.
func (r *LotRequest) ToInput() inventory.LotInput {
	return inventory.LotInput{
		Code:            r.Code,
		PreparationDate: r.PreparationDate,
		DueDate:         r.DueDate,
	}
}

// DeleteRowsRequest names the rows to delete.
type DeleteRowsRequest struct {
	Handles []string `json:"handles" binding:"required,min=1,dive,uuid"`
}

// ParseHandles parses every handle.
func (r *DeleteRowsRequest) ParseHandles() ([]id.ID, error) {
	out := make([]id.ID, 0, len(r.Handles))
	for _, raw := range r.Handles {
		h, err := ParseID(raw, "handles")
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// --- Response DTOs ---

// EditResponse is the state of an open edit.
type EditResponse struct {
	EditID    string              `json:"editId"`
	SessionID *string             `json:"sessionId,omitempty"`
	Status    string              `json:"status,omitempty"`
	Version   int                 `json:"version,omitempty"`
	Header    inventory.Header    `json:"header"`
	Rows      []inventory.RowView `json:"rows"`
	Unsaved   bool                `json:"unsaved"`
}

// FromEdit renders ec. The caller holds the edit lock.
func FromEdit(ec *inventory.EditContext) *EditResponse {
	resp := &EditResponse{
		EditID:  ec.ID.String(),
		Status:  string(ec.Status()),
		Header:  ec.Header,
		Rows:    inventory.ProjectSet(ec.Set),
		Unsaved: ec.HasUnsavedChanges(),
	}
	if ec.Session != nil {
		sid := ec.Session.ID.String()
		resp.SessionID = &sid
		resp.Version = ec.Session.Version
	}
	return resp
}

// AddResponse reports an add action and the edit after it.
type AddResponse struct {
	Result inventory.AddResult `json:"result"`
	Edit   *EditResponse       `json:"edit"`
}

// RowsChangedResponse reports how many rows an action touched.
type RowsChangedResponse struct {
	Affected int           `json:"affected"`
	Edit     *EditResponse `json:"edit"`
}

// SaveResponse reports a save or an actualize.
type SaveResponse struct {
	Result  inventory.SaveResult `json:"result"`
	Demoted bool                 `json:"demoted"`
	Edit    *EditResponse        `json:"edit"`
}

// ConfirmResponse reports a confirmation.
type ConfirmResponse struct {
	Movements int                `json:"movements"`
	Session   *inventory.Session `json:"session"`
}

// SessionRowsResponse lists the stored rows of a session.
type SessionRowsResponse struct {
	SessionID string              `json:"sessionId"`
	Rows      []inventory.RowView `json:"rows"`
}
