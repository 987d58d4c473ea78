package inventory

import (
	"context"
	"fmt"
	"strings"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/internal/core/types"
	"pharmastock/internal/domain/catalogs"
)

// AddStatus summarizes what an add action did.
type AddStatus string

const (
	AddStatusAdded          AddStatus = "added"
	AddStatusAlreadyPresent AddStatus = "already_present"
	AddStatusAlreadyCovered AddStatus = "already_covered"
	AddStatusDeclined       AddStatus = "declined"
	AddStatusNotFound       AddStatus = "not_found"
)

// AddResult reports the rows an add action appended.
type AddResult struct {
	Status AddStatus `json:"status"`
	Added  []id.ID   `json:"added"`
}

// Reconciler builds and edits the working row set.
type Reconciler struct {
	products catalogs.ProductCatalog
	stock    StockRegister
}

// NewReconciler creates a reconciler.
func NewReconciler(products catalogs.ProductCatalog, register StockRegister) *Reconciler {
	return &Reconciler{products: products, stock: register}
}

// candidates emits one row per lot in stock, or one lot-less row carrying
// the product's running total when it has none.
func (rc *Reconciler) candidates(ctx context.Context, p *catalogs.Product) ([]*Row, error) {
	ref := ProductRef{ID: p.ID, Code: p.Code, Description: p.Description}

	lots, err := rc.stock.LotsInStock(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if len(lots) == 0 {
		qty := p.OnHand()
		return []*Row{{Product: ref, TheoreticalQty: qty, CountedQty: qty}}, nil
	}

	rows := make([]*Row, 0, len(lots))
	for i := range lots {
		lot := lots[i]
		rows = append(rows, &Row{
			Product:        ref,
			Lot:            &lot,
			TheoreticalQty: lot.MainStoreQty,
			CountedQty:     lot.MainStoreQty,
		})
	}
	return rows, nil
}

// addProduct appends the product's candidates that are not present yet.
// It reports false when the operator declined the extra lot rows.
func (rc *Reconciler) addProduct(ctx context.Context, ws *WorkingSet, p *catalogs.Product, prompt Prompter) ([]id.ID, bool, error) {
	cands, err := rc.candidates(ctx, p)
	if err != nil {
		return nil, false, err
	}

	var fresh []*Row
	freshLots := false
	for _, c := range cands {
		if ws.Contains(c.Key()) {
			continue
		}
		fresh = append(fresh, c)
		freshLots = freshLots || c.HasLot()
	}
	if len(fresh) == 0 {
		return nil, true, nil
	}

	if present := ws.ProductRows(p.Code); len(present) > 0 && freshLots && allLotless(present) {
		ok, err := prompt.Confirm(ctx, Question{
			Kind:    QuestionExtraLots,
			Message: fmt.Sprintf("product %s is already listed without a lot; add its %d lot rows from stock?", p.Code, len(fresh)),
			Subject: p.Code,
		})
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
	}

	added := make([]id.ID, 0, len(fresh))
	for _, r := range fresh {
		ws.insertGrouped(r)
		added = append(added, r.Handle)
	}
	return added, true, nil
}

func allLotless(rows []*Row) bool {
	for _, r := range rows {
		if r.HasLot() {
			return false
		}
	}
	return true
}

// CoversAllProducts reports whether every catalog product has a row.
func (rc *Reconciler) CoversAllProducts(ctx context.Context, ws *WorkingSet) (bool, error) {
	total, err := rc.products.Count(ctx)
	if err != nil {
		return false, err
	}
	return ws.ProductCount() >= total, nil
}

// LoadAllProducts adds candidates for every product. A non-empty set that
// does not cover the catalog needs operator confirmation first.
func (rc *Reconciler) LoadAllProducts(ctx context.Context, ws *WorkingSet, prompt Prompter) (AddResult, error) {
	if ws.Len() > 0 {
		covered, err := rc.CoversAllProducts(ctx, ws)
		if err != nil {
			return AddResult{}, err
		}
		if covered {
			return AddResult{Status: AddStatusAlreadyCovered}, nil
		}
		ok, err := prompt.Confirm(ctx, Question{
			Kind:    QuestionScopeSwitch,
			Message: "the list does not cover every product; add all remaining products?",
		})
		if err != nil {
			return AddResult{}, err
		}
		if !ok {
			return AddResult{Status: AddStatusDeclined}, nil
		}
	}

	products, err := rc.products.List(ctx)
	if err != nil {
		return AddResult{}, err
	}

	res := AddResult{Status: AddStatusAlreadyPresent}
	for i := range products {
		added, _, err := rc.addProduct(ctx, ws, &products[i], prompt)
		if err != nil {
			return AddResult{}, err
		}
		res.Added = append(res.Added, added...)
	}
	if len(res.Added) > 0 {
		res.Status = AddStatusAdded
	}
	return res, nil
}

// AddProduct adds candidates for one product. A code that does not resolve
// is matched against descriptions and the operator picks the product.
func (rc *Reconciler) AddProduct(ctx context.Context, ws *WorkingSet, code string, prompt Prompter) (AddResult, error) {
	raw := strings.TrimSpace(code)
	if raw == "" {
		return AddResult{}, apperror.NewValidation("product code is required").
			WithDetail("field", "productCode")
	}

	product, err := rc.products.GetByCode(ctx, catalogs.NormalizeCode(raw))
	switch {
	case apperror.IsNotFound(err):
		product, err = rc.pick(ctx, raw, prompt)
		if err != nil {
			return AddResult{}, err
		}
		if product == nil {
			return AddResult{Status: AddStatusNotFound}, nil
		}
	case err != nil:
		return AddResult{}, err
	}

	added, accepted, err := rc.addProduct(ctx, ws, product, prompt)
	if err != nil {
		return AddResult{}, err
	}
	switch {
	case !accepted:
		return AddResult{Status: AddStatusDeclined}, nil
	case len(added) == 0:
		return AddResult{Status: AddStatusAlreadyPresent}, nil
	}
	return AddResult{Status: AddStatusAdded, Added: added}, nil
}

func (rc *Reconciler) pick(ctx context.Context, query string, prompt Prompter) (*catalogs.Product, error) {
	matches, err := rc.products.SearchByDescription(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return prompt.Pick(ctx, Question{
		Kind:       QuestionPickProduct,
		Message:    fmt.Sprintf("no product with code %q; pick one by description", query),
		Subject:    query,
		Candidates: matches,
	})
}

// ResetRows clears the working set. Persisted rows are deleted on the next save.
func (rc *Reconciler) ResetRows(ws *WorkingSet) int {
	n := ws.Len()
	ws.clear()
	return n
}

// DeleteRows drops the addressed rows. Deleting every row is a reset.
func (rc *Reconciler) DeleteRows(ws *WorkingSet, handles []id.ID) (int, error) {
	set := make(map[id.ID]bool, len(handles))
	for _, h := range handles {
		if _, err := ws.Row(h); err != nil {
			return 0, err
		}
		set[h] = true
	}
	if len(set) == 0 {
		return 0, nil
	}
	if len(set) == ws.Len() {
		return rc.ResetRows(ws), nil
	}
	return ws.drop(set), nil
}

// SetCountedQuantity records the physically counted quantity of a row.
func (rc *Reconciler) SetCountedQuantity(ws *WorkingSet, handle id.ID, qty types.Quantity) error {
	r, err := ws.Row(handle)
	if err != nil {
		return err
	}
	if qty.IsNegative() {
		return NewInvalidQuantity(handle, qty)
	}
	if r.CountedQty == qty {
		return nil
	}
	r.CountedQty = qty
	ws.markDirty(r)
	return nil
}
