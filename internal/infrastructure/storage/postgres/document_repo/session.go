package document_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/internal/domain"
	"pharmastock/internal/domain/documents/inventory"
	"pharmastock/internal/infrastructure/storage/postgres"
)

const (
	sessionsTable = "inv_sessions"

	// Partial unique index over non-deleted references.
	referenceConstraint = "inv_sessions_reference_key"
)

var sessionOrderColumns = map[string]bool{
	"inventory_date": true,
	"reference":      true,
	"status":         true,
	"created_at":     true,
	"updated_at":     true,
}

// SessionRepo implements inventory.SessionRepository.
type SessionRepo struct {
	txm     *postgres.TxManager
	columns []string
}

var _ inventory.SessionRepository = (*SessionRepo)(nil)

// NewSessionRepo creates a session repository.
func NewSessionRepo(txm *postgres.TxManager) *SessionRepo {
	return &SessionRepo{
		txm:     txm,
		columns: postgres.ExtractDBColumns[inventory.Session](),
	}
}

func (r *SessionRepo) baseSelect() squirrel.SelectBuilder {
	return builder().Select(r.columns...).From(sessionsTable)
}

// Create inserts a new session.
func (r *SessionRepo) Create(ctx context.Context, s *inventory.Session) error {
	data := postgres.Pick(postgres.StructToMap(s), r.columns)

	sql, args, err := builder().Insert(sessionsTable).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if c, ok := postgres.UniqueViolation(err); ok && c == referenceConstraint {
			return inventory.NewDuplicateReference(s.Reference, inventory.SourceSession)
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Update writes s when its version still matches and bumps the version.
func (r *SessionRepo) Update(ctx context.Context, s *inventory.Session) error {
	data := postgres.Pick(postgres.StructToMap(s), r.columns, "id", "version", "created_at", "created_by")
	data["version"] = squirrel.Expr("version + 1")

	sql, args, err := builder().Update(sessionsTable).
		SetMap(data).
		Where(squirrel.Eq{"id": s.ID, "version": s.Version}).
		Suffix("RETURNING version").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	var version int
	err = r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&version)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return apperror.NewConcurrentModification("inventory session", s.ID).
			WithDetail("version", s.Version)
	case err != nil:
		if c, ok := postgres.UniqueViolation(err); ok && c == referenceConstraint {
			return inventory.NewDuplicateReference(s.Reference, inventory.SourceSession)
		}
		return fmt.Errorf("update session: %w", err)
	}
	s.SetVersion(version)
	return nil
}

func (r *SessionRepo) getOne(ctx context.Context, q squirrel.SelectBuilder) (*inventory.Session, error) {
	sql, args, err := q.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	var s inventory.Session
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &s, sql, args...); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByID returns a non-deleted session.
func (r *SessionRepo) GetByID(ctx context.Context, sessionID id.ID) (*inventory.Session, error) {
	s, err := r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": sessionID, "deletion_mark": false}))
	if pgxscan.NotFound(err) {
		return nil, apperror.NewNotFound("inventory session", sessionID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// GetByReference finds another non-deleted session carrying reference.
func (r *SessionRepo) GetByReference(ctx context.Context, reference string, exclude id.ID) (*inventory.Session, error) {
	q := r.baseSelect().Where(squirrel.Eq{"reference": reference, "deletion_mark": false})
	if !id.IsNil(exclude) {
		q = q.Where(squirrel.NotEq{"id": exclude})
	}
	s, err := r.getOne(ctx, q)
	if pgxscan.NotFound(err) {
		return nil, apperror.NewNotFound("inventory session", reference)
	}
	if err != nil {
		return nil, fmt.Errorf("get session by reference: %w", err)
	}
	return s, nil
}

// FindOpen returns the oldest draft or validated session of typ, or nil.
func (r *SessionRepo) FindOpen(ctx context.Context, typ inventory.SessionType, exclude id.ID) (*inventory.Session, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{
			"inventory_type": typ,
			"deletion_mark":  false,
			"status":         []inventory.Status{inventory.StatusDraft, inventory.StatusValidated},
		}).
		OrderBy("created_at")
	if !id.IsNil(exclude) {
		q = q.Where(squirrel.NotEq{"id": exclude})
	}
	s, err := r.getOne(ctx, q)
	if pgxscan.NotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open session: %w", err)
	}
	return s, nil
}

func applyListFilter(q squirrel.SelectBuilder, f inventory.ListFilter) squirrel.SelectBuilder {
	if !f.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}
	if len(f.Statuses) > 0 {
		q = q.Where(squirrel.Eq{"status": f.Statuses})
	}
	if f.Type != "" {
		q = q.Where(squirrel.Eq{"inventory_type": f.Type})
	}
	if f.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"inventory_date": dayStart(*f.DateFrom)})
	}
	if f.DateTo != nil {
		q = q.Where(squirrel.Lt{"inventory_date": dayStart(*f.DateTo).AddDate(0, 0, 1)})
	}
	return q
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// List returns one page of sessions and the total match count.
func (r *SessionRepo) List(ctx context.Context, filter inventory.ListFilter) (domain.ListResult[inventory.Session], error) {
	var res domain.ListResult[inventory.Session]

	order, err := parseOrderBy(filter.OrderBy, "inventory_date DESC", sessionOrderColumns)
	if err != nil {
		return res, err
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = domain.DefaultListFilter().Limit
	}

	countSQL, countArgs, err := applyListFilter(builder().Select("COUNT(*)").From(sessionsTable), filter).ToSql()
	if err != nil {
		return res, fmt.Errorf("build count: %w", err)
	}
	q := r.txm.GetQuerier(ctx)
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&res.TotalCount); err != nil {
		return res, fmt.Errorf("count sessions: %w", err)
	}

	sql, args, err := applyListFilter(r.baseSelect(), filter).
		OrderBy(order, "id").
		Limit(uint64(limit)).
		Offset(uint64(max(filter.Offset, 0))).
		ToSql()
	if err != nil {
		return res, fmt.Errorf("build select: %w", err)
	}
	if err := pgxscan.Select(ctx, q, &res.Items, sql, args...); err != nil {
		return res, fmt.Errorf("list sessions: %w", err)
	}
	if res.Items == nil {
		res.Items = []inventory.Session{}
	}
	res.Limit = limit
	res.Offset = filter.Offset
	return res, nil
}

// CountByType counts non-deleted sessions of typ.
func (r *SessionRepo) CountByType(ctx context.Context, typ inventory.SessionType) (int64, error) {
	sql, args, err := builder().Select("COUNT(*)").From(sessionsTable).
		Where(squirrel.Eq{"inventory_type": typ, "deletion_mark": false}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int64
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

// Delete sets the deletion mark.
func (r *SessionRepo) Delete(ctx context.Context, sessionID id.ID) error {
	sql, args, err := builder().Update(sessionsTable).
		Set("deletion_mark", true).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": sessionID, "deletion_mark": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("inventory session", sessionID.String())
	}
	return nil
}
