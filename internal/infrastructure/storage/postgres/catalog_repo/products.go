package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/catalogs"
	"pharmastock/internal/infrastructure/storage/postgres"
)

const productsTable = "cat_products"

// ProductRepo implements catalogs.ProductCatalog. Descriptions are matched
// against search_text, which holds catalogs.Normalize of the description.
type ProductRepo struct {
	baseRepo[catalogs.Product]
}

var _ catalogs.ProductCatalog = (*ProductRepo)(nil)

// NewProductRepo creates a product catalog repository.
func NewProductRepo(txm *postgres.TxManager) *ProductRepo {
	return &ProductRepo{baseRepo: newBaseRepo[catalogs.Product](txm, productsTable, "product", "description")}
}

// codeMatches compares codes the way operators type them.
func codeMatches(code string) squirrel.Sqlizer {
	return squirrel.Expr("lower(code) = ?", catalogs.NormalizeCode(code))
}

// GetByCode finds a product by code, ignoring case and surrounding spaces.
func (r *ProductRepo) GetByCode(ctx context.Context, code string) (*catalogs.Product, error) {
	return r.getOne(ctx, codeMatches(code), code)
}

// GetByID finds a product by id.
func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*catalogs.Product, error) {
	return r.getOne(ctx, squirrel.Eq{"id": productID}, productID.String())
}

func searchPredicate(query string) (squirrel.Sqlizer, bool) {
	q := catalogs.Normalize(query)
	if q == "" {
		return nil, false
	}
	return squirrel.Expr("search_text LIKE ?", "%"+escapeLike(q)+"%"), true
}

// escapeLike escapes LIKE wildcards. Normalized text carries no backslash.
func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}

// SearchByDescription returns products whose normalized description contains
// the normalized query. An empty query matches nothing.
func (r *ProductRepo) SearchByDescription(ctx context.Context, query string) ([]catalogs.Product, error) {
	pred, ok := searchPredicate(query)
	if !ok {
		return nil, nil
	}
	items, err := r.list(ctx, pred)
	if err != nil {
		return nil, err
	}
	// The database collation may order differently from the in-memory filter.
	return catalogs.FilterByDescription(items, query), nil
}

// List returns every product ordered by description.
func (r *ProductRepo) List(ctx context.Context) ([]catalogs.Product, error) {
	return r.list(ctx, nil)
}

// Count returns the number of products.
func (r *ProductRepo) Count(ctx context.Context) (int, error) {
	return r.count(ctx)
}

// Upsert writes a product keyed by code. Running totals are left untouched on update.
func (r *ProductRepo) Upsert(ctx context.Context, p *catalogs.Product) error {
	if id.IsNil(p.ID) {
		p.ID = id.New()
	}
	if err := r.upsert(ctx, map[string]any{
		"id":          p.ID,
		"code":        p.Code,
		"description": p.Description,
		"search_text": catalogs.Normalize(p.Description),
	}, "code"); err != nil {
		return fmt.Errorf("product %s: %w", p.Code, err)
	}
	return nil
}
