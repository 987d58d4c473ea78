package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/domain/catalogs"
	"pharmastock/internal/infrastructure/http/v1/dto"
)

// CatalogHandler serves the read-only master data the edit screens pick from.
type CatalogHandler struct {
	*BaseHandler
	products      catalogs.ProductCatalog
	movementTypes catalogs.MovementTypeCatalog
	suppliers     catalogs.SupplierCatalog
	wards         catalogs.WardCatalog
}

// CatalogHandlerConfig configures the catalog handler.
type CatalogHandlerConfig struct {
	Products      catalogs.ProductCatalog
	MovementTypes catalogs.MovementTypeCatalog
	Suppliers     catalogs.SupplierCatalog
	Wards         catalogs.WardCatalog
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(base *BaseHandler, cfg CatalogHandlerConfig) *CatalogHandler {
	return &CatalogHandler{
		BaseHandler:   base,
		products:      cfg.Products,
		movementTypes: cfg.MovementTypes,
		suppliers:     cfg.Suppliers,
		wards:         cfg.Wards,
	}
}

// Products handles GET /catalog/products?search=&code=
func (h *CatalogHandler) Products(c *gin.Context) {
	ctx := c.Request.Context()

	if code := c.Query("code"); code != "" {
		p, err := h.products.GetByCode(ctx, code)
		if err != nil {
			h.Error(c, err)
			return
		}
		h.OK(c, dto.NewItemsResponse([]catalogs.Product{*p}))
		return
	}

	var (
		items []catalogs.Product
		err   error
	)
	if q := c.Query("search"); q != "" {
		items, err = h.products.SearchByDescription(ctx, q)
	} else {
		items, err = h.products.List(ctx)
	}
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewItemsResponse(items))
}

// ProductCount handles GET /catalog/products/count
func (h *CatalogHandler) ProductCount(c *gin.Context) {
	n, err := h.products.Count(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.CountResponse{Count: int64(n)})
}

// MovementTypes handles GET /catalog/movement-types?direction=in|out
func (h *CatalogHandler) MovementTypes(c *gin.Context) {
	dir, ok := parseDirection(c.Query("direction"))
	if !ok {
		h.Error(c, apperror.NewValidation("direction must be in or out").WithDetail("field", "direction"))
		return
	}
	items, err := h.movementTypes.ListByDirection(c.Request.Context(), dir)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewItemsResponse(items))
}

// Suppliers handles GET /catalog/suppliers
func (h *CatalogHandler) Suppliers(c *gin.Context) {
	items, err := h.suppliers.List(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewItemsResponse(items))
}

// Wards handles GET /catalog/wards
func (h *CatalogHandler) Wards(c *gin.Context) {
	items, err := h.wards.List(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewItemsResponse(items))
}

// parseDirection accepts in/out as well as an escaped + or -. A bare +
// arrives as a space after query decoding.
func parseDirection(raw string) (catalogs.Direction, bool) {
	switch strings.ToLower(raw) {
	case "in", "incoming", "+", " ":
		return catalogs.DirectionIncoming, true
	case "out", "outgoing", "-":
		return catalogs.DirectionOutgoing, true
	}
	return "", false
}
