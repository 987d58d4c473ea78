package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/documents/inventory"
	"pharmastock/pkg/logger"
)

// OutboxStatus is the delivery state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// Payload encodings.
const (
	EncodingJSON = "json"
	EncodingZstd = "zstd"
)

// DefaultCompressThreshold is the payload size above which payloads are compressed.
const DefaultCompressThreshold = 4 * 1024

// ErrOutsideTransaction is returned when an event is recorded without a transaction.
var ErrOutsideTransaction = errors.New("outbox: record must run inside a transaction")

// OutboxMessage is one sys_outbox row.
type OutboxMessage struct {
	ID          id.ID        `db:"id"`
	AggregateID id.ID        `db:"aggregate_id"`
	EventType   string       `db:"event_type"`
	Payload     []byte       `db:"payload"`
	Encoding    string       `db:"encoding"`
	Status      OutboxStatus `db:"status"`
	RetryCount  int          `db:"retry_count"`
	LastError   *string      `db:"last_error"`
	NextRetryAt *time.Time   `db:"next_retry_at"`
	CreatedAt   time.Time    `db:"created_at"`
	PublishedAt *time.Time   `db:"published_at"`
}

var outboxColumns = ExtractDBColumns[OutboxMessage]()

// OutboxCodec compresses large payloads with zstd.
type OutboxCodec struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

// NewOutboxCodec creates a codec. A non-positive threshold uses the default.
func NewOutboxCodec(threshold int) (*OutboxCodec, error) {
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &OutboxCodec{encoder: encoder, decoder: decoder, threshold: threshold}, nil
}

// Encode returns the stored form of raw and its encoding.
func (c *OutboxCodec) Encode(raw []byte) ([]byte, string) {
	if len(raw) <= c.threshold {
		return raw, EncodingJSON
	}
	return c.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), EncodingZstd
}

// Decode reverses Encode.
func (c *OutboxCodec) Decode(payload []byte, encoding string) ([]byte, error) {
	switch encoding {
	case EncodingJSON, "":
		return payload, nil
	case EncodingZstd:
		out, err := c.decoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress payload: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown payload encoding %q", encoding)
}

// OutboxRecorder writes session events to sys_outbox in the caller's transaction.
type OutboxRecorder struct {
	txm   *TxManager
	codec *OutboxCodec
}

var _ inventory.EventRecorder = (*OutboxRecorder)(nil)

// NewOutboxRecorder creates a recorder.
func NewOutboxRecorder(txm *TxManager, codec *OutboxCodec) *OutboxRecorder {
	return &OutboxRecorder{txm: txm, codec: codec}
}

// Record implements inventory.EventRecorder.
func (r *OutboxRecorder) Record(ctx context.Context, e inventory.Event) error {
	tx := r.txm.GetTx(ctx)
	if tx == nil {
		return ErrOutsideTransaction
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	payload, encoding := r.codec.Encode(raw)

	_, err = tx.Exec(ctx, `
		INSERT INTO sys_outbox (id, aggregate_id, event_type, payload, encoding, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id.New(), e.SessionID, string(e.Kind), payload, encoding, OutboxStatusPending, e.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// OutboxHandler delivers one decoded event.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage, event inventory.Event) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage, event inventory.Event) error

func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage, event inventory.Event) error {
	return f(ctx, msg, event)
}

// RelayConfig tunes the relay.
type RelayConfig struct {
	BatchSize  int
	MaxRetries int
	// Backoff is multiplied by the attempt number.
	Backoff time.Duration
}

// DefaultRelayConfig returns the relay defaults.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{BatchSize: 100, MaxRetries: 5, Backoff: time.Minute}
}

// OutboxRelay claims pending messages and hands them to a handler.
// Several relays may run at once; claims use FOR UPDATE SKIP LOCKED.
type OutboxRelay struct {
	txm     *TxManager
	codec   *OutboxCodec
	handler OutboxHandler
	cfg     RelayConfig
	clock   func() time.Time
}

// NewOutboxRelay creates a relay.
func NewOutboxRelay(txm *TxManager, codec *OutboxCodec, handler OutboxHandler, cfg RelayConfig) *OutboxRelay {
	def := DefaultRelayConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}
	return &OutboxRelay{txm: txm, codec: codec, handler: handler, cfg: cfg, clock: time.Now}
}

// ProcessBatch delivers up to BatchSize messages in one transaction and
// returns how many were published.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	published := 0
	err := r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.txm.GetQuerier(ctx)

		var messages []*OutboxMessage
		err := pgxscan.Select(ctx, q, &messages, `
			SELECT `+strings.Join(outboxColumns, ", ")+`
			FROM sys_outbox
			WHERE status = $1 AND (next_retry_at IS NULL OR next_retry_at <= $2)
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED`,
			OutboxStatusPending, r.clock().UTC(), r.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("claim outbox messages: %w", err)
		}

		for _, msg := range messages {
			if err := r.deliver(ctx, msg); err != nil {
				if err := r.markRetry(ctx, msg, err); err != nil {
					return err
				}
				continue
			}
			if _, err := q.Exec(ctx,
				`UPDATE sys_outbox SET status = $1, published_at = $2 WHERE id = $3`,
				OutboxStatusPublished, r.clock().UTC(), msg.ID); err != nil {
				return fmt.Errorf("mark published: %w", err)
			}
			published++
		}
		return nil
	})
	return published, err
}

func (r *OutboxRelay) deliver(ctx context.Context, msg *OutboxMessage) error {
	raw, err := r.codec.Decode(msg.Payload, msg.Encoding)
	if err != nil {
		return err
	}
	var event inventory.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}
	return r.handler.Handle(ctx, msg, event)
}

// nextAttempt returns the retry state after a failed delivery.
func (r *OutboxRelay) nextAttempt(msg *OutboxMessage) (OutboxStatus, time.Time) {
	attempt := msg.RetryCount + 1
	status := OutboxStatusPending
	if attempt >= r.cfg.MaxRetries {
		status = OutboxStatusFailed
	}
	return status, r.clock().UTC().Add(time.Duration(attempt) * r.cfg.Backoff)
}

func (r *OutboxRelay) markRetry(ctx context.Context, msg *OutboxMessage, cause error) error {
	status, next := r.nextAttempt(msg)
	logger.Warn(ctx, "outbox delivery failed",
		"message_id", msg.ID,
		"event_type", msg.EventType,
		"attempt", msg.RetryCount+1,
		"status", status,
		"error", cause,
	)
	_, err := r.txm.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_outbox
		SET retry_count = retry_count + 1, last_error = $1, next_retry_at = $2, status = $3
		WHERE id = $4`,
		cause.Error(), next, status, msg.ID)
	if err != nil {
		return fmt.Errorf("mark retry: %w", err)
	}
	return nil
}

// Purge deletes published messages older than age.
func (r *OutboxRelay) Purge(ctx context.Context, age time.Duration) (int64, error) {
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_outbox WHERE status = $1 AND published_at < $2`,
		OutboxStatusPublished, r.clock().UTC().Add(-age))
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Run processes batches every interval until ctx is done.
func (r *OutboxRelay) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		n, err := r.ProcessBatch(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Error(ctx, "outbox batch failed", "error", err)
		}
		// Drain without waiting while full batches keep coming.
		if err == nil && n == r.cfg.BatchSize {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
