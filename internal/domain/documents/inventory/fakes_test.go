package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pharmastock/internal/core/apperror"
	appctx "pharmastock/internal/core/context"
	"pharmastock/internal/core/entity"
	"pharmastock/internal/core/id"
	"pharmastock/internal/core/numerator"
	"pharmastock/internal/core/types"
	"pharmastock/internal/domain"
	"pharmastock/internal/domain/catalogs"
	"pharmastock/internal/domain/registers/stock"
)

// world is an in-memory database shared by the fakes. The fake transaction
// manager snapshots it and restores it when the unit of work fails.
type world struct {
	sessions  map[id.ID]*Session
	rows      map[id.ID]*Row
	rowSeq    map[id.ID]int
	seq       int
	lots      map[string]stock.Lot
	movements []entity.StockMovement
	products  map[id.ID]catalogs.Product

	failMovements     error
	failSessionUpdate error
}

func newWorld() *world {
	return &world{
		sessions: make(map[id.ID]*Session),
		rows:     make(map[id.ID]*Row),
		rowSeq:   make(map[id.ID]int),
		lots:     make(map[string]stock.Lot),
		products: make(map[id.ID]catalogs.Product),
	}
}

func (w *world) clone() *world {
	c := newWorld()
	for k, v := range w.sessions {
		c.sessions[k] = v.Clone()
	}
	for k, v := range w.rows {
		c.rows[k] = v.Clone()
	}
	for k, v := range w.rowSeq {
		c.rowSeq[k] = v
	}
	c.seq = w.seq
	for k, v := range w.lots {
		c.lots[k] = v
	}
	c.movements = append([]entity.StockMovement(nil), w.movements...)
	for k, v := range w.products {
		c.products[k] = v
	}
	return c
}

func (w *world) restore(c *world) {
	w.sessions = c.sessions
	w.rows = c.rows
	w.rowSeq = c.rowSeq
	w.seq = c.seq
	w.lots = c.lots
	w.movements = c.movements
	w.products = c.products
}

type txKey struct{}

type fakeTx struct{ w *world }

func (f fakeTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	snap := f.w.clone()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		f.w.restore(snap)
		return err
	}
	return nil
}

// --- sessions ---

type memSessions struct{ w *world }

func (m memSessions) Create(_ context.Context, s *Session) error {
	m.w.sessions[s.ID] = s.Clone()
	return nil
}

func (m memSessions) Update(_ context.Context, s *Session) error {
	if m.w.failSessionUpdate != nil {
		return m.w.failSessionUpdate
	}
	cur, ok := m.w.sessions[s.ID]
	if !ok || cur.DeletionMark {
		return apperror.NewNotFound("inventory", s.ID)
	}
	if cur.Version != s.Version {
		return apperror.NewConcurrentModification("inventory", s.ID)
	}
	s.Version++
	m.w.sessions[s.ID] = s.Clone()
	return nil
}

func (m memSessions) GetByID(_ context.Context, sessionID id.ID) (*Session, error) {
	s, ok := m.w.sessions[sessionID]
	if !ok || s.DeletionMark {
		return nil, apperror.NewNotFound("inventory", sessionID)
	}
	return s.Clone(), nil
}

func (m memSessions) GetByReference(_ context.Context, reference string, exclude id.ID) (*Session, error) {
	for _, s := range m.w.sessions {
		if s.Reference == reference && s.ID != exclude && !s.DeletionMark {
			return s.Clone(), nil
		}
	}
	return nil, apperror.NewNotFound("inventory", reference)
}

func (m memSessions) FindOpen(_ context.Context, typ SessionType, exclude id.ID) (*Session, error) {
	for _, s := range m.w.sessions {
		if s.Type == typ && s.ID != exclude && !s.DeletionMark && s.Status.Editable() {
			return s.Clone(), nil
		}
	}
	return nil, nil
}

func (m memSessions) List(_ context.Context, f ListFilter) (domain.ListResult[Session], error) {
	var out []Session
	for _, s := range m.w.sessions {
		if s.DeletionMark {
			continue
		}
		if f.Type != "" && s.Type != f.Type {
			continue
		}
		out = append(out, *s.Clone())
	}
	return domain.ListResult[Session]{Items: out, TotalCount: int64(len(out)), Limit: f.Limit}, nil
}

func (m memSessions) CountByType(_ context.Context, typ SessionType) (int64, error) {
	var n int64
	for _, s := range m.w.sessions {
		if s.Type == typ && !s.DeletionMark {
			n++
		}
	}
	return n, nil
}

func (m memSessions) Delete(_ context.Context, sessionID id.ID) error {
	s, ok := m.w.sessions[sessionID]
	if !ok {
		return apperror.NewNotFound("inventory", sessionID)
	}
	s.DeletionMark = true
	return nil
}

// --- rows ---

type memRows struct{ w *world }

func (m memRows) ListBySession(_ context.Context, sessionID id.ID) ([]*Row, error) {
	var out []*Row
	for _, r := range m.w.rows {
		if r.SessionID != sessionID {
			continue
		}
		c := r.Clone()
		if c.Lot != nil {
			if l, ok := m.w.lots[c.Lot.Code]; ok {
				c.Lot = &l
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return m.w.rowSeq[out[i].ID] < m.w.rowSeq[out[j].ID] })
	return out, nil
}

func (m memRows) Create(_ context.Context, r *Row) error {
	if r.Lot != nil {
		if _, ok := m.w.lots[r.Lot.Code]; !ok {
			return fmt.Errorf("row references unknown lot %q", r.Lot.Code)
		}
	}
	r.Lock = 1
	m.w.seq++
	m.w.rowSeq[r.ID] = m.w.seq
	m.w.rows[r.ID] = r.Clone()
	return nil
}

func (m memRows) Update(_ context.Context, r *Row) error {
	cur, ok := m.w.rows[r.ID]
	if !ok || cur.Lock != r.Lock {
		return NewStaleRow(r.ID)
	}
	r.Lock++
	m.w.rows[r.ID] = r.Clone()
	return nil
}

func (m memRows) DeleteMany(_ context.Context, rowIDs []id.ID) error {
	for _, rid := range rowIDs {
		delete(m.w.rows, rid)
	}
	return nil
}

func (m memRows) DeleteBySession(_ context.Context, sessionID id.ID) error {
	for k, r := range m.w.rows {
		if r.SessionID == sessionID {
			delete(m.w.rows, k)
		}
	}
	return nil
}

// --- stock register storage ---

type memLots struct{ w *world }

func (m memLots) ListInStock(_ context.Context, productID id.ID) ([]stock.Lot, error) {
	var out []stock.Lot
	for _, l := range m.w.lots {
		if l.ProductID == productID && l.MainStoreQty.IsPositive() {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m memLots) GetByCode(_ context.Context, code string) (*stock.Lot, error) {
	l, ok := m.w.lots[code]
	if !ok {
		return nil, apperror.NewNotFound("lot", code)
	}
	return &l, nil
}

func (m memLots) Create(_ context.Context, lot *stock.Lot) error {
	if _, ok := m.w.lots[lot.Code]; ok {
		return apperror.NewDuplicate("lot", "code", lot.Code)
	}
	m.w.lots[lot.Code] = *lot
	return nil
}

func (m memLots) Update(_ context.Context, lot *stock.Lot) error {
	cur, ok := m.w.lots[lot.Code]
	if !ok {
		return apperror.NewNotFound("lot", lot.Code)
	}
	l := *lot
	l.MainStoreQty = cur.MainStoreQty
	m.w.lots[lot.Code] = l
	return nil
}

func (m memLots) Delete(_ context.Context, code string) error {
	if _, ok := m.w.lots[code]; !ok {
		return apperror.NewNotFound("lot", code)
	}
	delete(m.w.lots, code)
	return nil
}

type memMovements struct{ w *world }

func (m memMovements) CreateMovements(_ context.Context, movements []entity.StockMovement) error {
	for _, mv := range movements {
		lot := m.w.lots[mv.LotCode]
		lot.MainStoreQty = lot.MainStoreQty.Add(mv.SignedQuantity())
		m.w.lots[mv.LotCode] = lot

		p := m.w.products[mv.ProductID]
		if mv.RecordType == entity.RecordTypeReceipt {
			p.ReceivedQty = p.ReceivedQty.Add(mv.Quantity)
		} else {
			p.IssuedQty = p.IssuedQty.Add(mv.Quantity)
		}
		m.w.products[mv.ProductID] = p
		m.w.movements = append(m.w.movements, mv)
	}
	// Fail after writing so rollback is what keeps the ledger clean.
	return m.w.failMovements
}

func (m memMovements) ReferenceExists(_ context.Context, reference string) (bool, error) {
	for _, mv := range m.w.movements {
		if mv.Reference == reference {
			return true, nil
		}
	}
	return false, nil
}

func (m memMovements) GetMovementsByRecorder(_ context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	var out []entity.StockMovement
	for _, mv := range m.w.movements {
		if mv.RecorderID == recorderID {
			out = append(out, mv)
		}
	}
	return out, nil
}

// --- catalogs ---

type memProducts struct{ w *world }

func (m memProducts) sorted() []catalogs.Product {
	out := make([]catalogs.Product, 0, len(m.w.products))
	for _, p := range m.w.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (m memProducts) GetByCode(_ context.Context, code string) (*catalogs.Product, error) {
	for _, p := range m.w.products {
		if strings.EqualFold(p.Code, code) {
			return &p, nil
		}
	}
	return nil, apperror.NewNotFound("product", code)
}

func (m memProducts) GetByID(_ context.Context, productID id.ID) (*catalogs.Product, error) {
	p, ok := m.w.products[productID]
	if !ok {
		return nil, apperror.NewNotFound("product", productID)
	}
	return &p, nil
}

func (m memProducts) SearchByDescription(_ context.Context, query string) ([]catalogs.Product, error) {
	return catalogs.FilterByDescription(m.sorted(), query), nil
}

func (m memProducts) List(_ context.Context) ([]catalogs.Product, error) {
	return m.sorted(), nil
}

func (m memProducts) Count(_ context.Context) (int, error) {
	return len(m.w.products), nil
}

type memMovementTypes []catalogs.MovementType

func (m memMovementTypes) ListByDirection(_ context.Context, dir catalogs.Direction) ([]catalogs.MovementType, error) {
	var out []catalogs.MovementType
	for _, mt := range m {
		if mt.Direction == dir {
			out = append(out, mt)
		}
	}
	return out, nil
}

func (m memMovementTypes) GetByCode(_ context.Context, code string) (*catalogs.MovementType, error) {
	for _, mt := range m {
		if mt.Code == code {
			return &mt, nil
		}
	}
	return nil, apperror.NewNotFound("movement type", code)
}

type memSuppliers []catalogs.Supplier

func (m memSuppliers) List(context.Context) ([]catalogs.Supplier, error) { return m, nil }

func (m memSuppliers) GetByID(_ context.Context, supplierID id.ID) (*catalogs.Supplier, error) {
	for _, s := range m {
		if s.ID == supplierID {
			return &s, nil
		}
	}
	return nil, apperror.NewNotFound("supplier", supplierID)
}

type memWards []catalogs.Ward

func (m memWards) List(context.Context) ([]catalogs.Ward, error) { return m, nil }

func (m memWards) GetByCode(_ context.Context, code string) (*catalogs.Ward, error) {
	for _, w := range m {
		if w.Code == code {
			return &w, nil
		}
	}
	return nil, apperror.NewNotFound("ward", code)
}

type seqGen struct{ n map[string]int }

func (g *seqGen) GetNextNumber(_ context.Context, cfg numerator.Config, _ *numerator.Options, period time.Time) (string, error) {
	if g.n == nil {
		g.n = make(map[string]int)
	}
	g.n[cfg.Prefix]++
	return fmt.Sprintf("%s-%d-%05d", cfg.Prefix, period.Year(), g.n[cfg.Prefix]), nil
}

// --- harness ---

var (
	supplierID = id.MustParse("0190a4a6-2a4e-7000-8000-000000000001")
	dueDate    = time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC)
	prepDate   = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
)

type harness struct {
	t        *testing.T
	w        *world
	svc      *Service
	ctx      context.Context
	products map[string]catalogs.Product
}

func newHarness(t *testing.T, settings Settings) *harness {
	t.Helper()
	w := newWorld()
	h := &harness{
		t:        t,
		w:        w,
		ctx:      appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u-1", Name: "pharmacist"}),
		products: make(map[string]catalogs.Product),
	}

	h.addProduct("prod-x", "Paracetamol 500 mg", "L1", 10)
	h.addProduct("prod-y", "Amoxicilline 1 g", "L2", 5)
	h.addProduct("prod-z", "Ibuprofène 400 mg", "L3", 20)
	h.addProduct("prod-w", "Sérum physiologique", "", 7)

	register := stock.NewService(memLots{w}, memMovements{w}, &seqGen{})
	svc, err := NewService(ServiceConfig{
		TxManager: fakeTx{w},
		Sessions:  memSessions{w},
		Rows:      memRows{w},
		Stock:     register,
		Products:  memProducts{w},
		MovementTypes: memMovementTypes{
			{Code: "CHG", Description: "Inventory surplus", Direction: catalogs.DirectionIncoming},
			{Code: "DIS", Description: "Inventory shortage", Direction: catalogs.DirectionOutgoing},
		},
		Suppliers: memSuppliers{{ID: supplierID, Name: "Central pharmacy"}},
		Wards:     memWards{{Code: "W01", Description: "Cardiology"}},
		Numerator: &seqGen{},
		Settings:  settings,
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

// addProduct seeds a product. With a lot code the quantity sits on that lot,
// otherwise it is the product's running total only.
func (h *harness) addProduct(code, description, lotCode string, qty int64) catalogs.Product {
	p := catalogs.Product{
		ID:          id.New(),
		Code:        code,
		Description: description,
		ReceivedQty: types.NewQuantity(qty),
	}
	h.w.products[p.ID] = p
	h.products[code] = p
	if lotCode != "" {
		h.w.lots[lotCode] = stock.Lot{
			Code:            lotCode,
			ProductID:       p.ID,
			PreparationDate: prepDate,
			DueDate:         dueDate,
			Cost:            nullCost("2.50"),
			MainStoreQty:    types.NewQuantity(qty),
		}
	}
	return p
}

func nullCost(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: types.MustMoney(s), Valid: true}
}

func fullParams() Params {
	sup := supplierID
	return Params{ChargeType: "CHG", DischargeType: "DIS", SupplierID: &sup, Destination: "W01"}
}

// open starts a new main session with the given reference and full parameters.
func (h *harness) open(reference string) *EditContext {
	h.t.Helper()
	ec, err := h.svc.Open(h.ctx, id.Nil, TypeMain)
	require.NoError(h.t, err)
	hdr := ec.Header
	hdr.Reference = reference
	hdr.Params = fullParams()
	require.NoError(h.t, h.svc.SetHeader(h.ctx, ec, hdr))
	return ec
}

func (h *harness) add(ec *EditContext, code string) AddResult {
	h.t.Helper()
	res, err := h.svc.AddProduct(h.ctx, ec, code, &ScriptedPrompter{})
	require.NoError(h.t, err)
	return res
}

func (h *harness) rowOf(ec *EditContext, productCode string) *Row {
	h.t.Helper()
	rows := ec.Set.ProductRows(productCode)
	require.NotEmpty(h.t, rows, "no row for %s", productCode)
	return rows[0]
}

func (h *harness) stored(sessionID id.ID) *Session {
	h.t.Helper()
	s, ok := h.w.sessions[sessionID]
	require.True(h.t, ok)
	return s
}

func costs(unit ...string) *ScriptedPrompter {
	return &ScriptedPrompter{UnitCosts: unit}
}
