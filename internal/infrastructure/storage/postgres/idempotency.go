package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"

	"pharmastock/internal/core/apperror"
)

// Idempotency error codes.
const (
	CodeIdempotencyInFlight = "IDEMPOTENCY_IN_FLIGHT"
	CodeIdempotencyMismatch = "IDEMPOTENCY_KEY_REUSED"
)

// IdempotencyStatus is the state of a keyed request.
type IdempotencyStatus string

const (
	IdempotencyStatusPending IdempotencyStatus = "pending"
	IdempotencyStatusSuccess IdempotencyStatus = "success"
	IdempotencyStatusFailed  IdempotencyStatus = "failed"
)

// staleAfter is how long a pending key may stay claimed before another
// request can take it over.
const staleAfter = time.Minute

// IdempotencyRecord is one sys_idempotency row.
type IdempotencyRecord struct {
	Key         string            `db:"idempotency_key"`
	UserID      string            `db:"user_id"`
	Operation   string            `db:"operation"`
	Status      IdempotencyStatus `db:"status"`
	RequestHash string            `db:"request_hash"`
	Response    []byte            `db:"response"`
	StatusCode  int               `db:"response_status"`
	ContentType string            `db:"response_content_type"`
	UpdatedAt   time.Time         `db:"updated_at"`
	ExpiresAt   time.Time         `db:"expires_at"`
}

// IdempotencyReplay is a stored response to send again.
type IdempotencyReplay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IdempotencyStore remembers the outcome of keyed workflow requests such as
// confirm, so a retried request replays the first answer instead of running again.
type IdempotencyStore struct {
	txm   *TxManager
	ttl   time.Duration
	clock func() time.Time
}

// NewIdempotencyStore creates a store keeping records for ttl.
func NewIdempotencyStore(txm *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{txm: txm, ttl: ttl, clock: time.Now}
}

// Acquire claims key for the request. It returns (nil, nil) when the caller
// owns the key and should run the operation, or the stored replay when the
// operation already finished.
func (s *IdempotencyStore) Acquire(ctx context.Context, key, userID, operation, requestHash string) (*IdempotencyReplay, error) {
	now := s.clock().UTC()
	q := s.txm.GetQuerier(ctx)

	tag, err := q.Exec(ctx, `
		INSERT INTO sys_idempotency (idempotency_key, user_id, operation, status, request_hash, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		key, userID, operation, IdempotencyStatusPending, requestHash, now, now.Add(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("claim idempotency key: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil, nil
	}

	var rec IdempotencyRecord
	err = q.QueryRow(ctx, `
		SELECT user_id, operation, status, request_hash, response, response_status, response_content_type, updated_at
		FROM sys_idempotency WHERE idempotency_key = $1`, key).
		Scan(&rec.UserID, &rec.Operation, &rec.Status, &rec.RequestHash,
			&rec.Response, &rec.StatusCode, &rec.ContentType, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Expired and purged between the two statements.
		return s.Acquire(ctx, key, userID, operation, requestHash)
	}
	if err != nil {
		return nil, fmt.Errorf("read idempotency key: %w", err)
	}
	rec.Key = key
	return s.decide(ctx, &rec, userID, operation, requestHash, now)
}

func (s *IdempotencyStore) decide(ctx context.Context, rec *IdempotencyRecord, userID, operation, requestHash string, now time.Time) (*IdempotencyReplay, error) {
	if rec.UserID != userID || rec.Operation != operation || rec.RequestHash != requestHash {
		return nil, apperror.New(CodeIdempotencyMismatch, http.StatusUnprocessableEntity,
			"idempotency key was already used for a different request").
			WithDetail("key", rec.Key).
			WithDetail("operation", rec.Operation)
	}

	switch rec.Status {
	case IdempotencyStatusSuccess, IdempotencyStatusFailed:
		return replayOf(rec), nil
	}

	if now.Sub(rec.UpdatedAt) <= staleAfter {
		return nil, apperror.New(CodeIdempotencyInFlight, http.StatusConflict,
			"a request with this idempotency key is still running").
			WithDetail("key", rec.Key)
	}
	tag, err := s.txm.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency SET updated_at = $1
		WHERE idempotency_key = $2 AND status = $3 AND updated_at = $4`,
		now, rec.Key, IdempotencyStatusPending, rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("reclaim idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperror.New(CodeIdempotencyInFlight, http.StatusConflict,
			"a request with this idempotency key is still running").
			WithDetail("key", rec.Key)
	}
	return nil, nil
}

func replayOf(rec *IdempotencyRecord) *IdempotencyReplay {
	r := &IdempotencyReplay{StatusCode: rec.StatusCode, ContentType: rec.ContentType, Body: rec.Response}
	if r.StatusCode == 0 {
		r.StatusCode = http.StatusOK
	}
	if r.ContentType == "" {
		r.ContentType = "application/json; charset=utf-8"
	}
	return r
}

// Complete stores the response for key. Statuses below 500 are final and
// replayed; server errors release the key so the request can be retried.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	q := s.txm.GetQuerier(ctx)
	if statusCode >= http.StatusInternalServerError {
		if _, err := q.Exec(ctx, `DELETE FROM sys_idempotency WHERE idempotency_key = $1`, key); err != nil {
			return fmt.Errorf("release idempotency key: %w", err)
		}
		return nil
	}

	status := IdempotencyStatusSuccess
	if statusCode >= http.StatusBadRequest {
		status = IdempotencyStatusFailed
	}
	_, err := q.Exec(ctx, `
		UPDATE sys_idempotency
		SET status = $1, response = $2, response_status = $3, response_content_type = $4, updated_at = $5
		WHERE idempotency_key = $6`,
		status, body, statusCode, contentType, s.clock().UTC(), key)
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// CleanupExpired removes expired records.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.txm.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_idempotency WHERE expires_at < $1`, s.clock().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
