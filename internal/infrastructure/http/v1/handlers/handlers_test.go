package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/catalogs"
	"pharmastock/internal/domain/documents/inventory"
	"pharmastock/internal/infrastructure/http/v1/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubCatalogs struct {
	products []catalogs.Product
	types    stubMovementTypes
}

type stubMovementTypes []catalogs.MovementType

func (s *stubCatalogs) GetByCode(_ context.Context, code string) (*catalogs.Product, error) {
	for i := range s.products {
		if s.products[i].Code == code {
			return &s.products[i], nil
		}
	}
	return nil, apperror.NewNotFound("product", code)
}

func (s *stubCatalogs) GetByID(_ context.Context, productID id.ID) (*catalogs.Product, error) {
	return nil, apperror.NewNotFound("product", productID)
}

func (s *stubCatalogs) SearchByDescription(_ context.Context, query string) ([]catalogs.Product, error) {
	return catalogs.FilterByDescription(s.products, query), nil
}

func (s *stubCatalogs) List(context.Context) ([]catalogs.Product, error) { return s.products, nil }

func (s *stubCatalogs) Count(context.Context) (int, error) { return len(s.products), nil }

func (s stubMovementTypes) ListByDirection(_ context.Context, dir catalogs.Direction) ([]catalogs.MovementType, error) {
	var out []catalogs.MovementType
	for _, mt := range s {
		if mt.Direction == dir {
			out = append(out, mt)
		}
	}
	return out, nil
}

func (s stubMovementTypes) GetByCode(_ context.Context, code string) (*catalogs.MovementType, error) {
	for i := range s {
		if s[i].Code == code {
			return &s[i], nil
		}
	}
	return nil, apperror.NewNotFound("movement type", code)
}

func newCatalogEngine(s *stubCatalogs) *gin.Engine {
	h := NewCatalogHandler(NewBaseHandler(), CatalogHandlerConfig{Products: s, MovementTypes: s.types})
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.GET("/products", h.Products)
	r.GET("/products/count", h.ProductCount)
	r.GET("/movement-types", h.MovementTypes)
	return r
}

func get(r http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestCatalogHandler_Products(t *testing.T) {
	s := &stubCatalogs{products: []catalogs.Product{
		{ID: id.New(), Code: "amox-500", Description: "Amoxicilline 500 mg"},
		{ID: id.New(), Code: "para-1g", Description: "Paracétamol 1 g"},
	}}
	r := newCatalogEngine(s)

	var body struct {
		Items []catalogs.Product `json:"items"`
	}

	w := get(r, "/products?search=paracetamol")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, "para-1g", body.Items[0].Code)

	w = get(r, "/products?code=missing")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = get(r, "/products/count")
	assert.JSONEq(t, `{"count":2}`, w.Body.String())
}

func TestCatalogHandler_MovementTypes(t *testing.T) {
	s := &stubCatalogs{types: stubMovementTypes{
		{Code: "INV+", Direction: catalogs.DirectionIncoming},
		{Code: "INV-", Direction: catalogs.DirectionOutgoing},
	}}
	r := newCatalogEngine(s)

	tests := []struct {
		query  string
		status int
		code   string
	}{
		{"in", http.StatusOK, "INV+"},
		{"%2B", http.StatusOK, "INV+"},
		{"out", http.StatusOK, "INV-"},
		{"sideways", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := get(r, "/movement-types?direction="+tt.query)
			require.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Contains(t, w.Body.String(), tt.code)
			}
		})
	}
}

func TestInventoryHandler_EditLifecycle(t *testing.T) {
	edits := inventory.NewEditorRegistry(0)
	h := NewInventoryHandler(NewBaseHandler(), nil, edits)
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.GET("/edits/:editId", h.GetEdit)
	r.DELETE("/edits/:editId", h.CloseEdit)

	ec := &inventory.EditContext{
		ID:     id.New(),
		Header: inventory.Header{Type: inventory.TypeMain},
		Set:    inventory.NewWorkingSet(nil),
	}
	edits.Add(ec)

	w := get(r, "/edits/"+ec.ID.String())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"unsaved":true`)
	assert.Contains(t, w.Body.String(), `"rows":[]`)

	w = get(r, "/edits/not-an-id")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	del := httptest.NewRecorder()
	r.ServeHTTP(del, httptest.NewRequest(http.MethodDelete, "/edits/"+ec.ID.String(), nil))
	assert.Equal(t, http.StatusNoContent, del.Code)

	w = get(r, "/edits/"+ec.ID.String())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInventoryHandler_Statuses(t *testing.T) {
	h := NewInventoryHandler(NewBaseHandler(), nil, nil)
	r := gin.New()
	r.GET("/statuses", h.Statuses)

	w := get(r, "/statuses")
	assert.JSONEq(t, `{"items":["draft","validated","done","canceled"]}`, w.Body.String())
}

func TestParseDateQuery(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"", "", false},
		{"2026-03-01", "2026-03-01", false},
		{"2026-03-01T10:00:00Z", "2026-03-01", false},
		{"01/03/2026", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/?dateFrom="+tt.raw, nil)
			got, err := parseDateQuery(c, "dateFrom")
			if tt.wantErr {
				assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
				return
			}
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
		})
	}
}
