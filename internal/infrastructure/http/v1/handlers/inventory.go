package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/internal/domain"
	"pharmastock/internal/domain/documents/inventory"
	"pharmastock/internal/infrastructure/http/v1/dto"
)

// InventoryHandler serves inventory edits and the session browser.
type InventoryHandler struct {
	*BaseHandler
	service *inventory.Service
	edits   *inventory.EditorRegistry
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(base *BaseHandler, service *inventory.Service, edits *inventory.EditorRegistry) *InventoryHandler {
	return &InventoryHandler{
		BaseHandler: base,
		service:     service,
		edits:       edits,
	}
}

// editFunc runs against a locked edit and returns the response body.
type editFunc func(ctx context.Context, ec *inventory.EditContext) (any, error)

func (h *InventoryHandler) withEdit(c *gin.Context, fn editFunc) {
	editID, ok := h.PathID(c, "editId")
	if !ok {
		return
	}

	var resp any
	err := h.edits.With(editID, func(ec *inventory.EditContext) error {
		var err error
		resp, err = fn(c.Request.Context(), ec)
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, resp)
}

// --- Edits ---

// OpenEdit handles POST /inventory-edits
func (h *InventoryHandler) OpenEdit(c *gin.Context) {
	var req dto.OpenEditRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	sessionID, err := dto.ParseOptionalID(req.SessionID, "sessionId")
	if err != nil {
		h.Error(c, err)
		return
	}

	target := id.Nil
	if sessionID != nil {
		target = *sessionID
		if editID, open := h.edits.EditOf(target); open {
			h.Error(c, apperror.NewConflict("inventory session is already open for editing").
				WithDetail("editId", editID.String()))
			return
		}
	}
	typ := inventory.SessionType(req.Type)
	if typ == "" {
		typ = inventory.TypeMain
	}

	ec, err := h.service.Open(c.Request.Context(), target, typ)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.edits.Add(ec)
	h.Created(c, dto.FromEdit(ec))
}

// GetEdit handles GET /inventory-edits/:editId
func (h *InventoryHandler) GetEdit(c *gin.Context) {
	h.withEdit(c, func(_ context.Context, ec *inventory.EditContext) (any, error) {
		return dto.FromEdit(ec), nil
	})
}

// CloseEdit handles DELETE /inventory-edits/:editId. Unsaved changes are dropped.
func (h *InventoryHandler) CloseEdit(c *gin.Context) {
	editID, ok := h.PathID(c, "editId")
	if !ok {
		return
	}
	if !h.edits.Remove(editID) {
		h.Error(c, apperror.NewNotFound("inventory edit", editID.String()))
		return
	}
	h.NoContent(c)
}

// SetHeader handles PUT /inventory-edits/:editId/header
func (h *InventoryHandler) SetHeader(c *gin.Context) {
	var req dto.HeaderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	hdr, err := req.ToHeader()
	if err != nil {
		h.Error(c, err)
		return
	}
	h.withEdit(c, func(ctx context.Context, ec *inventory.EditContext) (any, error) {
		if err := h.service.SetHeader(ctx, ec, hdr); err != nil {
			return nil, err
		}
		return dto.FromEdit(ec), nil
	})
}

// --- Rows ---

// LoadAll handles POST /inventory-edits/:editId/rows/all
func (h *InventoryHandler) LoadAll(c *gin.Context) {
	var req dto.LoadAllRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	prompt, err := req.Answers.Prompter()
	if err != nil {
		h.Error(c, err)
		return
	}
	h.withEdit(c, func(ctx context.Context, ec *inventory.EditContext) (any, error) {
		res, err := h.service.LoadAllProducts(ctx, ec, prompt)
		if err != nil {
			return nil, err
		}
		return dto.AddResponse{Result: res, Edit: dto.FromEdit(ec)}, nil
	})
}

// AddProduct handles POST /inventory-edits/:editId/rows/product
func (h *InventoryHandler) AddProduct(c *gin.Context) {
	var req dto.AddProductRequest
	if !h.BindJSON(c, &req) {
		return
	}
	prompt, err := req.Answers.Prompter()
	if err != nil {
		h.Error(c, err)
		return
	}
	h.withEdit(c, func(ctx context.Context, ec *inventory.EditContext) (any, error) {
		res, err := h.service.AddProduct(ctx, ec, req.Code, prompt)
		if err != nil {
			return nil, err
		}
		return dto.AddResponse{Result: res, Edit: dto.FromEdit(ec)}, nil
	})
}

// SetCounted handles PUT /inventory-edits/:editId/rows/:handle/counted
func (h *InventoryHandler) SetCounted(c *gin.Context) {
	handle, ok := h.PathID(c, "handle")
	if !ok {
		return
	}
	var req dto.CountedRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.withEdit(c, func(ctx context.Context, ec *inventory.EditContext) (any, error) {
		if err := h.service.SetCountedQuantity(ctx, ec, handle, *req.Quantity); err != nil {
			return nil, err
		}
		return dto.FromEdit(ec), nil
	})
}

// AssignLot handles PUT /inventory-edits/:editId/rows/:handle/lot
func (h *InventoryHandler) AssignLot(c *gin.Context) {
	handle, ok := h.PathID(c, "handle")
	if !ok {
		return
	}
	var req dto.LotRequest
	if !h.BindJSON(c, &req) {
		return
	}
	prompt, err := req.Answers.Prompter()
	if err != nil {
		h.Error(c, err)
		return
	}
	h.withEdit(c, func(ctx context.Context, ec *inventory.EditContext) (any, error) {
		if err := h.service.AssignLot(ctx, ec, handle, req.ToInput(), prompt); err != nil {
			return nil, err
		}
		return dto.FromEdit(ec), nil
	})
}

// DeleteRows handles DELETE /inventory-edits/:editId/rows
func (h *InventoryHandler) DeleteRows(c *gin.Context) {
	var req dto.DeleteRowsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	handles, err := req.ParseHandles()
	if err != nil {
		h.Error(c, err)
		return
	}
	h.withEdit(c, func(ctx context.Context, ec *inventory.EditContext) (any, error) {
		n, err := h.service.DeleteRows(ctx, ec, handles)
		if err != nil {
			return nil, err
		}
		return dto.RowsChangedResponse{Affected: n, Edit: dto.FromEdit(ec)}, nil
	})
}

// ResetRows handles POST /inventory-edits/:editId/rows/reset
func (h *InventoryHandler) ResetRows(c *gin.Context) {
	h.withEdit(c, func(ctx context.Context, ec *inventory.EditContext) (any, error) {
		n, err := h.service.ResetRows(ctx, ec)
		if err != nil {
			return nil, err
		}
		return dto.RowsChangedResponse{Affected: n, Edit: dto.FromEdit(ec)}, nil
	})
}

// --- Workflow ---

// Save handles POST /inventory-edits/:editId/save
func (h *InventoryHandler) Save(c *gin.Context) {
	h.withEdit(c, func(ctx context.Context, ec *inventory.EditContext) (any, error) {
		out, err := h.service.Save(ctx, ec)
		if err != nil {
			return nil, err
		}
		return dto.SaveResponse{Result: out.Result, Demoted: out.Demoted, Edit: dto.FromEdit(ec)}, nil
	})
}

// Validate handles POST /inventory-edits/:editId/validate
func (h *InventoryHandler) Validate(c *gin.Context) {
	h.withEdit(c, func(ctx context.Context, ec *inventory.EditContext) (any, error) {
		if _, err := h.service.Validate(ctx, ec); err != nil {
			return nil, err
		}
		return dto.FromEdit(ec), nil
	})
}

// Confirm handles POST /inventory-edits/:editId/confirm
func (h *InventoryHandler) Confirm(c *gin.Context) {
	h.withEdit(c, func(ctx context.Context, ec *inventory.EditContext) (any, error) {
		out, err := h.service.Confirm(ctx, ec)
		if err != nil {
			return nil, err
		}
		return dto.ConfirmResponse{Movements: out.Movements, Session: out.Session}, nil
	})
}

// Actualize handles POST /inventory-edits/:editId/actualize
func (h *InventoryHandler) Actualize(c *gin.Context) {
	h.withEdit(c, func(ctx context.Context, ec *inventory.EditContext) (any, error) {
		out, err := h.service.Actualize(ctx, ec)
		if err != nil {
			return nil, err
		}
		return dto.SaveResponse{Result: out.Result, Demoted: out.Demoted, Edit: dto.FromEdit(ec)}, nil
	})
}

// --- Sessions ---

// List handles GET /inventories
func (h *InventoryHandler) List(c *gin.Context) {
	filter := inventory.ListFilter{ListFilter: domain.DefaultListFilter()}
	filter.Limit = h.ParseIntQuery(c, "limit", filter.Limit)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.DefaultQuery("orderBy", filter.OrderBy)
	filter.IncludeDeleted = c.Query("includeDeleted") == "true"
	filter.Type = inventory.SessionType(c.Query("type"))

	for _, raw := range c.QueryArray("status") {
		for _, st := range strings.Split(raw, ",") {
			if st = strings.TrimSpace(st); st != "" {
				filter.Statuses = append(filter.Statuses, inventory.Status(st))
			}
		}
	}

	var err error
	if filter.DateFrom, err = parseDateQuery(c, "dateFrom"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.DateTo, err = parseDateQuery(c, "dateTo"); err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse[inventory.Session]{
		Items:      nonNil(result.Items),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Count handles GET /inventories/count?type=
func (h *InventoryHandler) Count(c *gin.Context) {
	n, err := h.service.CountByType(c.Request.Context(), inventory.SessionType(c.DefaultQuery("type", string(inventory.TypeMain))))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.CountResponse{Count: n})
}

// Statuses handles GET /inventories/statuses
func (h *InventoryHandler) Statuses(c *gin.Context) {
	h.OK(c, dto.NewItemsResponse(inventory.Statuses()))
}

// Get handles GET /inventories/:id
func (h *InventoryHandler) Get(c *gin.Context) {
	sessionID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	sess, err := h.service.Get(c.Request.Context(), sessionID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, sess)
}

// Rows handles GET /inventories/:id/rows
func (h *InventoryHandler) Rows(c *gin.Context) {
	sessionID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	rows, err := h.service.Rows(c.Request.Context(), sessionID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.SessionRowsResponse{SessionID: sessionID.String(), Rows: rows})
}

// Cancel handles POST /inventories/:id/cancel
func (h *InventoryHandler) Cancel(c *gin.Context) {
	sessionID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	sess, err := h.service.Cancel(c.Request.Context(), sessionID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.edits.RemoveSession(sessionID)
	h.OK(c, sess)
}

// Delete handles DELETE /inventories/:id
func (h *InventoryHandler) Delete(c *gin.Context) {
	sessionID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), sessionID); err != nil {
		h.Error(c, err)
		return
	}
	h.edits.RemoveSession(sessionID)
	h.NoContent(c)
}

// parseDateQuery accepts 2006-01-02 or RFC 3339.
func parseDateQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, apperror.NewValidation("invalid date").
		WithDetail("field", key).
		WithDetail("value", raw)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
