package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pharmastock/internal/core/apperror"
	appctx "pharmastock/internal/core/context"
	"pharmastock/internal/core/id"
	"pharmastock/internal/core/numerator"
	"pharmastock/internal/core/tx"
	"pharmastock/internal/core/types"
	"pharmastock/internal/domain"
	"pharmastock/internal/domain/catalogs"
	"pharmastock/pkg/logger"
)

// SaveResult distinguishes a real save from a no-op.
type SaveResult string

const (
	SaveCreated  SaveResult = "created"
	SaveSaved    SaveResult = "saved"
	SaveNoChange SaveResult = "no_change"
)

// SaveOutcome reports what a save did.
type SaveOutcome struct {
	Result  SaveResult `json:"result"`
	Session *Session   `json:"session"`
	// Demoted is set when a validated session went back to draft.
	Demoted bool `json:"demoted"`
}

// ConfirmOutcome reports a successful confirmation.
type ConfirmOutcome struct {
	Session   *Session `json:"session"`
	Movements int      `json:"movements"`
}

// ServiceConfig wires the service collaborators.
type ServiceConfig struct {
	TxManager     tx.Manager
	Sessions      SessionRepository
	Rows          RowRepository
	Stock         StockRegister
	Products      catalogs.ProductCatalog
	MovementTypes catalogs.MovementTypeCatalog
	Suppliers     catalogs.SupplierCatalog
	Wards         catalogs.WardCatalog
	Numerator     numerator.Generator
	Bus           *EventBus
	Recorder      EventRecorder
	Settings      Settings
}

// Service runs the inventory workflow over edit contexts.
type Service struct {
	txm           tx.Manager
	sessions      SessionRepository
	rows          RowRepository
	stock         StockRegister
	products      catalogs.ProductCatalog
	movementTypes catalogs.MovementTypeCatalog
	suppliers     catalogs.SupplierCatalog
	wards         catalogs.WardCatalog
	numerator     numerator.Generator
	bus           *EventBus
	recorder      EventRecorder
	settings      Settings

	reconciler  *Reconciler
	lots        *LotResolver
	guard       *ReferenceGuard
	synthesizer *Synthesizer
	hooks       *domain.HookRegistry[*Snapshot]
	clock       func() time.Time
}

// NewService creates the workflow service. A configured row rule is
// compiled and registered as a BeforeValidate hook.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Bus == nil {
		cfg.Bus = NewEventBus()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.Settings.ReferencePrefix == "" {
		cfg.Settings.ReferencePrefix = DefaultSettings().ReferencePrefix
	}

	s := &Service{
		txm:           cfg.TxManager,
		sessions:      cfg.Sessions,
		rows:          cfg.Rows,
		stock:         cfg.Stock,
		products:      cfg.Products,
		movementTypes: cfg.MovementTypes,
		suppliers:     cfg.Suppliers,
		wards:         cfg.Wards,
		numerator:     cfg.Numerator,
		bus:           cfg.Bus,
		recorder:      cfg.Recorder,
		settings:      cfg.Settings,
		reconciler:    NewReconciler(cfg.Products, cfg.Stock),
		lots:          NewLotResolver(cfg.Stock, cfg.Settings),
		guard:         NewReferenceGuard(cfg.Sessions, cfg.Stock),
		synthesizer:   NewSynthesizer(cfg.TxManager, cfg.Sessions, cfg.Stock, cfg.Recorder),
		hooks:         domain.NewHookRegistry[*Snapshot](),
		clock:         time.Now,
	}

	if expr := strings.TrimSpace(cfg.Settings.RowRule); expr != "" {
		rule, err := CompileRowRule(expr)
		if err != nil {
			return nil, err
		}
		s.hooks.On(domain.BeforeValidate, rule.Hook())
	}
	return s, nil
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Snapshot] {
	return s.hooks
}

// Bus returns the event bus.
func (s *Service) Bus() *EventBus {
	return s.bus
}

// Settings returns the workflow settings.
func (s *Service) Settings() Settings {
	return s.settings
}

func currentUser(ctx context.Context) string {
	return appctx.GetUser(ctx).DisplayName()
}

// --- Edit contexts ---

// Open starts editing an existing session, or a new one of typ when
// sessionID is id.Nil.
func (s *Service) Open(ctx context.Context, sessionID id.ID, typ SessionType) (*EditContext, error) {
	ec := &EditContext{ID: id.New(), User: currentUser(ctx)}

	if id.IsNil(sessionID) {
		if !typ.Valid() {
			return nil, apperror.NewValidation("unknown inventory type").WithDetail("field", "type")
		}
		open, err := s.sessions.FindOpen(ctx, typ, id.Nil)
		if err != nil {
			return nil, fmt.Errorf("find open session: %w", err)
		}
		if open != nil {
			return nil, NewOpenSessionExists(open)
		}
		ec.Header = Header{
			InventoryDate: s.today(),
			Type:          typ,
		}
		ec.Set = NewWorkingSet(nil)
		return ec, nil
	}

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	rows, err := s.rows.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load rows: %w", err)
	}
	ec.Session = sess
	ec.Header = sess.Header
	ec.Set = NewWorkingSet(rows)
	return ec, nil
}

func (s *Service) today() time.Time {
	y, m, d := s.clock().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (ec *EditContext) requireEditable(op Operation) error {
	if ec.Session == nil {
		return nil
	}
	return ec.Session.Require(op)
}

// SetHeader replaces the pending header after checking its references
// against the catalogs. Unset parameters are allowed until validate.
func (s *Service) SetHeader(ctx context.Context, ec *EditContext, h Header) error {
	if err := ec.requireEditable(OpEdit); err != nil {
		return err
	}

	h.Reference = strings.TrimSpace(h.Reference)
	if h.Type == "" {
		h.Type = ec.Header.Type
	}
	if !h.Type.Valid() {
		return apperror.NewValidation("unknown inventory type").WithDetail("field", "type")
	}
	if ec.Session != nil && h.Type != ec.Session.Type {
		return apperror.NewValidation("inventory type cannot change after the first save").
			WithDetail("field", "type")
	}
	if ec.Session != nil && h.Reference == "" {
		return apperror.NewValidation("reference is required").WithDetail("field", "reference")
	}
	if h.InventoryDate.IsZero() {
		h.InventoryDate = ec.Header.InventoryDate
	}

	if err := s.checkMovementType(ctx, h.ChargeType, catalogs.DirectionIncoming, FieldChargeType); err != nil {
		return err
	}
	if err := s.checkMovementType(ctx, h.DischargeType, catalogs.DirectionOutgoing, FieldDischargeType); err != nil {
		return err
	}
	if h.SupplierID != nil && !id.IsNil(*h.SupplierID) {
		if _, err := s.suppliers.GetByID(ctx, *h.SupplierID); err != nil {
			return withField(err, FieldSupplier)
		}
	}
	if h.Destination != "" {
		if _, err := s.wards.GetByCode(ctx, h.Destination); err != nil {
			return withField(err, FieldDestination)
		}
	}
	if h.Type == TypeWard && h.WardCode != "" {
		if _, err := s.wards.GetByCode(ctx, h.WardCode); err != nil {
			return withField(err, "wardCode")
		}
	}

	ec.Header = h
	return nil
}

func (s *Service) checkMovementType(ctx context.Context, code string, dir catalogs.Direction, field string) error {
	if code == "" {
		return nil
	}
	mt, err := s.movementTypes.GetByCode(ctx, code)
	if err != nil {
		return withField(err, field)
	}
	if mt.Direction != dir {
		return apperror.NewValidation(fmt.Sprintf("movement type %s has direction %s, want %s", code, mt.Direction, dir)).
			WithDetail("field", field)
	}
	return nil
}

func withField(err error, field string) error {
	if ae, ok := apperror.AsAppError(err); ok {
		return ae.WithDetail("field", field)
	}
	return err
}

// --- Row operations ---

// LoadAllProducts adds rows for the whole catalog.
func (s *Service) LoadAllProducts(ctx context.Context, ec *EditContext, prompt Prompter) (AddResult, error) {
	if err := ec.requireEditable(OpEdit); err != nil {
		return AddResult{}, err
	}
	return s.reconciler.LoadAllProducts(ctx, ec.Set, prompt)
}

// AddProduct adds rows for one product.
func (s *Service) AddProduct(ctx context.Context, ec *EditContext, code string, prompt Prompter) (AddResult, error) {
	if err := ec.requireEditable(OpEdit); err != nil {
		return AddResult{}, err
	}
	return s.reconciler.AddProduct(ctx, ec.Set, code, prompt)
}

// ResetRows clears every row.
func (s *Service) ResetRows(_ context.Context, ec *EditContext) (int, error) {
	if err := ec.requireEditable(OpEdit); err != nil {
		return 0, err
	}
	return s.reconciler.ResetRows(ec.Set), nil
}

// DeleteRows removes the addressed rows.
func (s *Service) DeleteRows(_ context.Context, ec *EditContext, handles []id.ID) (int, error) {
	if err := ec.requireEditable(OpEdit); err != nil {
		return 0, err
	}
	return s.reconciler.DeleteRows(ec.Set, handles)
}

// SetCountedQuantity records a counted quantity.
func (s *Service) SetCountedQuantity(_ context.Context, ec *EditContext, handle id.ID, qty types.Quantity) error {
	if err := ec.requireEditable(OpEdit); err != nil {
		return err
	}
	return s.reconciler.SetCountedQuantity(ec.Set, handle, qty)
}

// AssignLot binds a lot to a row.
func (s *Service) AssignLot(ctx context.Context, ec *EditContext, handle id.ID, in LotInput, prompt Prompter) error {
	if err := ec.requireEditable(OpEdit); err != nil {
		return err
	}
	return s.lots.Assign(ctx, ec.Set, handle, in, prompt)
}

// --- Workflow ---

// Save persists the header and the working set.
func (s *Service) Save(ctx context.Context, ec *EditContext) (SaveOutcome, error) {
	return s.save(ctx, ec, false)
}

// save writes everything in one transaction. forceDemote sends a validated
// session back to draft even without row changes.
func (s *Service) save(ctx context.Context, ec *EditContext, forceDemote bool) (SaveOutcome, error) {
	if err := ec.requireEditable(OpSave); err != nil {
		return SaveOutcome{}, err
	}
	if ec.Set.Len() == 0 {
		return SaveOutcome{}, NewNoRows()
	}
	if ec.Session != nil && !forceDemote && !ec.HasUnsavedChanges() {
		return SaveOutcome{Result: SaveNoChange, Session: ec.Session}, nil
	}

	user := currentUser(ctx)
	if user == "" {
		user = ec.User
	}
	rows := ec.Set.cloneRows()
	created := ec.Session == nil
	rowsChanged := ec.Set.HasRowChanges() || forceDemote

	var (
		next    *Session
		demoted bool
	)
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if created {
			next, err = s.createSession(ctx, ec.Header, user)
		} else {
			next = ec.Session.Clone()
			next.Header = ec.Header
			if rowsChanged {
				demoted = next.demote()
			}
			next.Stamp(user)
			next.User = user
			err = s.guard.Check(ctx, next.Reference, next.ID)
		}
		if err != nil {
			return err
		}

		if err := s.hooks.Run(ctx, domain.BeforeSave, &Snapshot{Session: next, Rows: rows}); err != nil {
			return err
		}

		if created {
			if err := s.sessions.Create(ctx, next); err != nil {
				return fmt.Errorf("create session: %w", err)
			}
		} else if err := s.sessions.Update(ctx, next); err != nil {
			return err
		}

		if err := s.syncRows(ctx, next.ID, ec.Set, rows); err != nil {
			return err
		}

		kind := SessionUpdated
		if created {
			kind = SessionCreated
		}
		return s.recorder.Record(ctx, newEvent(kind, next, s.clock().UTC()))
	})
	if err != nil {
		return SaveOutcome{}, err
	}

	ec.Set.commit(rows)
	ec.Session = next
	ec.Header = next.Header

	out := SaveOutcome{Result: SaveSaved, Session: next, Demoted: demoted}
	kind := SessionUpdated
	if created {
		out.Result = SaveCreated
		kind = SessionCreated
	}
	s.bus.Publish(ctx, newEvent(kind, next, s.clock().UTC()))

	if err := s.hooks.Run(ctx, domain.AfterSave, &Snapshot{Session: next, Rows: rows}); err != nil {
		logger.Warn(ctx, "after-save hook failed", "error", err)
	}

	logger.Info(ctx, "inventory saved",
		"session_id", next.ID,
		"reference", next.Reference,
		"result", out.Result,
		"rows", len(rows),
		"demoted", demoted)
	return out, nil
}

func (s *Service) createSession(ctx context.Context, h Header, user string) (*Session, error) {
	// A reference clash is reported ahead of the open-session rule.
	if h.Reference != "" {
		if err := s.guard.Check(ctx, h.Reference, id.Nil); err != nil {
			return nil, err
		}
	}

	open, err := s.sessions.FindOpen(ctx, h.Type, id.Nil)
	if err != nil {
		return nil, fmt.Errorf("find open session: %w", err)
	}
	if open != nil {
		return nil, NewOpenSessionExists(open)
	}

	if h.Reference == "" {
		cfg := numerator.DefaultConfig(s.settings.ReferencePrefix)
		ref, err := s.numerator.GetNextNumber(ctx, cfg, nil, h.InventoryDate)
		if err != nil {
			return nil, fmt.Errorf("generate reference: %w", err)
		}
		h.Reference = ref
		if err := s.guard.Check(ctx, h.Reference, id.Nil); err != nil {
			return nil, err
		}
	}
	return NewSession(h, user), nil
}

// syncRows writes the working set: deletions first, then lots and rows,
// then the lots nothing references anymore.
func (s *Service) syncRows(ctx context.Context, sessionID id.ID, ws *WorkingSet, rows []*Row) error {
	if ws.reset {
		if err := s.rows.DeleteBySession(ctx, sessionID); err != nil {
			return fmt.Errorf("reset rows: %w", err)
		}
	} else if len(ws.pendingDeletes) > 0 {
		if err := s.rows.DeleteMany(ctx, ws.pendingDeletes); err != nil {
			return fmt.Errorf("delete rows: %w", err)
		}
	}

	for _, r := range rows {
		switch ws.lotOps[r.Handle] {
		case lotCreate:
			if err := s.stock.StoreLot(ctx, r.Lot); err != nil {
				return err
			}
		case lotUpdate:
			if err := s.stock.UpdateLot(ctx, r.Lot); err != nil {
				return err
			}
		}

		r.SessionID = sessionID
		switch {
		case !r.Persisted():
			r.ID = r.Handle
			if err := s.rows.Create(ctx, r); err != nil {
				return fmt.Errorf("create row: %w", err)
			}
		case ws.dirty[r.Handle]:
			if err := s.rows.Update(ctx, r); err != nil {
				return err
			}
		}
	}

	for _, code := range ws.lotsToDelete(rows) {
		if err := s.stock.DeleteLot(ctx, code); err != nil {
			return err
		}
	}
	return nil
}

// Validate moves the session to validated. Unsaved edits are saved first.
func (s *Service) Validate(ctx context.Context, ec *EditContext) (*Session, error) {
	if err := ec.requireEditable(OpValidate); err != nil {
		return nil, err
	}
	for _, r := range ec.Set.Rows() {
		if !r.HasLot() {
			return nil, NewIncompleteLot(r)
		}
	}

	if ec.HasUnsavedChanges() {
		if _, err := s.save(ctx, ec, false); err != nil {
			return nil, err
		}
	}

	sess := ec.Session
	if field := sess.FirstMissing(); field != "" {
		return nil, NewMissingParameter(field)
	}
	if err := s.hooks.Run(ctx, domain.BeforeValidate, &Snapshot{Session: sess, Rows: ec.Set.Rows()}); err != nil {
		return nil, err
	}
	if err := s.checkDrift(ctx, ec.Set.Rows()); err != nil {
		return nil, err
	}

	next := sess.Clone()
	now := s.clock().UTC()
	if err := next.Validate(now); err != nil {
		return nil, err
	}
	user := currentUser(ctx)
	if user == "" {
		user = next.User
	}
	next.Stamp(user)
	next.User = user

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.sessions.Update(ctx, next); err != nil {
			return err
		}
		return s.recorder.Record(ctx, newEvent(SessionUpdated, next, now))
	})
	if err != nil {
		return nil, err
	}

	ec.Session = next
	ec.Header = next.Header
	s.bus.Publish(ctx, newEvent(SessionUpdated, next, now))

	logger.Info(ctx, "inventory validated",
		"session_id", next.ID,
		"reference", next.Reference,
		"rows", ec.Set.Len())
	return next, nil
}

// checkDrift compares rows bound to stock lots with the lots' current
// balance.
func (s *Service) checkDrift(ctx context.Context, rows []*Row) error {
	var drifts []Drift
	for _, r := range rows {
		if !r.HasLot() || r.NewLot {
			continue
		}
		current, err := s.currentLotQty(ctx, r.Lot.Code)
		if err != nil {
			return err
		}
		if current != r.TheoreticalQty {
			drifts = append(drifts, Drift{
				RowID:       r.Handle.String(),
				ProductCode: r.Product.Code,
				LotCode:     r.Lot.Code,
				Theoretical: r.TheoreticalQty,
				Current:     current,
			})
		}
	}
	if len(drifts) > 0 {
		return NewStockDrift(drifts)
	}
	return nil
}

func (s *Service) currentLotQty(ctx context.Context, code string) (types.Quantity, error) {
	lot, err := s.stock.FindLot(ctx, code)
	if err != nil {
		return 0, err
	}
	if lot == nil {
		return 0, nil
	}
	return lot.MainStoreQty, nil
}

// Confirm synthesizes the corrective movements and moves the session to done.
func (s *Service) Confirm(ctx context.Context, ec *EditContext) (ConfirmOutcome, error) {
	if ec.Session == nil {
		return ConfirmOutcome{}, NewInvalidState("", OpConfirm)
	}

	movements, err := s.synthesizer.Plan(ec.Session, ec.Set.Rows())
	if err != nil {
		return ConfirmOutcome{}, err
	}
	if ec.HasUnsavedChanges() {
		return ConfirmOutcome{}, NewUnsavedChanges()
	}

	user := currentUser(ctx)
	if user == "" {
		user = ec.Session.User
	}
	next, err := s.synthesizer.Commit(ctx, ec.Session, movements, user)
	if err != nil {
		return ConfirmOutcome{}, err
	}

	ec.Session = next
	ec.Header = next.Header
	s.bus.Publish(ctx, newEvent(SessionUpdated, next, s.clock().UTC()))

	if err := s.hooks.Run(ctx, domain.AfterConfirm, &Snapshot{Session: next, Rows: ec.Set.Rows()}); err != nil {
		logger.Warn(ctx, "after-confirm hook failed", "error", err)
	}
	return ConfirmOutcome{Session: next, Movements: len(movements)}, nil
}

// Actualize re-baselines theoretical quantities from current stock and
// saves. The session returns to draft and must be validated again.
func (s *Service) Actualize(ctx context.Context, ec *EditContext) (SaveOutcome, error) {
	if err := ec.requireEditable(OpActualize); err != nil {
		return SaveOutcome{}, err
	}

	changed := 0
	for _, r := range ec.Set.Rows() {
		var (
			baseline types.Quantity
			err      error
		)
		switch {
		case r.HasLot() && r.NewLot:
			continue
		case r.HasLot():
			baseline, err = s.currentLotQty(ctx, r.Lot.Code)
		default:
			var p *catalogs.Product
			p, err = s.products.GetByID(ctx, r.Product.ID)
			if err == nil {
				baseline = p.OnHand()
			}
		}
		if err != nil {
			return SaveOutcome{}, err
		}
		if baseline != r.TheoreticalQty {
			r.TheoreticalQty = baseline
			ec.Set.markDirty(r)
			changed++
		}
	}

	logger.Info(ctx, "inventory actualized",
		"session_id", ec.SessionID(),
		"rows_rebaselined", changed)
	return s.save(ctx, ec, true)
}

// --- Session operations ---

// Cancel moves a draft or validated session to canceled.
func (s *Service) Cancel(ctx context.Context, sessionID id.ID) (*Session, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	next := sess.Clone()
	now := s.clock().UTC()
	if err := next.Cancel(now); err != nil {
		return nil, err
	}
	user := currentUser(ctx)
	next.Stamp(user)
	if user != "" {
		next.User = user
	}

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.sessions.Update(ctx, next); err != nil {
			return err
		}
		return s.recorder.Record(ctx, newEvent(SessionCanceled, next, now))
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, newEvent(SessionCanceled, next, now))
	if err := s.hooks.Run(ctx, domain.AfterCancel, &Snapshot{Session: next}); err != nil {
		logger.Warn(ctx, "after-cancel hook failed", "error", err)
	}
	logger.Info(ctx, "inventory canceled", "session_id", next.ID, "reference", next.Reference)
	return next, nil
}

// Delete soft-deletes a draft or validated session and removes its rows
// together with the lots it created.
func (s *Service) Delete(ctx context.Context, sessionID id.ID) error {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := sess.Require(OpDelete); err != nil {
		return err
	}

	now := s.clock().UTC()
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		rows, err := s.rows.ListBySession(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("load rows: %w", err)
		}
		if err := s.rows.DeleteBySession(ctx, sessionID); err != nil {
			return fmt.Errorf("delete rows: %w", err)
		}
		for _, r := range rows {
			if r.NewLot && r.HasLot() {
				if err := s.stock.DeleteLot(ctx, r.Lot.Code); err != nil {
					return err
				}
			}
		}
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			return err
		}
		return s.recorder.Record(ctx, newEvent(SessionDeleted, sess, now))
	})
	if err != nil {
		return err
	}

	s.bus.Publish(ctx, newEvent(SessionDeleted, sess, now))
	logger.Info(ctx, "inventory deleted", "session_id", sess.ID, "reference", sess.Reference)
	return nil
}

// Get returns a session.
func (s *Service) Get(ctx context.Context, sessionID id.ID) (*Session, error) {
	return s.sessions.GetByID(ctx, sessionID)
}

// Rows returns the stored rows of a session as views.
func (s *Service) Rows(ctx context.Context, sessionID id.ID) ([]RowView, error) {
	if _, err := s.sessions.GetByID(ctx, sessionID); err != nil {
		return nil, err
	}
	rows, err := s.rows.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load rows: %w", err)
	}
	return ProjectRows(rows), nil
}

// List pages through sessions.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[Session], error) {
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return domain.ListResult[Session]{}, apperror.NewValidation("unknown status").
				WithDetail("field", "status").
				WithDetail("value", string(st))
		}
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return domain.ListResult[Session]{}, apperror.NewValidation("unknown inventory type").
			WithDetail("field", "type")
	}
	return s.sessions.List(ctx, filter)
}

// CountByType counts non-deleted sessions of typ.
func (s *Service) CountByType(ctx context.Context, typ SessionType) (int64, error) {
	if !typ.Valid() {
		return 0, apperror.NewValidation("unknown inventory type").WithDetail("field", "type")
	}
	return s.sessions.CountByType(ctx, typ)
}
