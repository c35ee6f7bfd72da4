package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"lotledger/internal/core/id"
	"lotledger/pkg/logger"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// DefaultMaxRetries is how often a message is retried before it is parked as failed.
const DefaultMaxRetries = 5

// OutboxMessage represents a message in the transactional outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"` // e.g. "lot"
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"` // e.g. "LabelRequested"
	Payload       []byte       `db:"payload"`    // JSON payload
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

// DomainEvent represents an event to be published via outbox.
type DomainEvent struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// OutboxPublisher writes events to the outbox table.
type OutboxPublisher struct {
	txManager *TxManager
}

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{txManager: txManager}
}

const insertOutboxSQL = `
	INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// Publish writes an event to the outbox within the current transaction.
// MUST be called inside a transaction context.
func (p *OutboxPublisher) Publish(ctx context.Context, event DomainEvent) error {
	tx := p.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}

	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = tx.Exec(ctx, insertOutboxSQL,
		id.New(), event.AggregateType, event.AggregateID, event.EventType, payloadBytes, OutboxStatusPending, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}

	return nil
}

// OutboxHandler processes outbox messages.
type OutboxHandler interface {
	// Handle processes a message and returns error if failed
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

// Handle implements OutboxHandler.
func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error { return f(ctx, msg) }

// OutboxRelay reads and processes messages from the outbox.
// Used by the background worker to publish events to the message broker.
type OutboxRelay struct {
	txManager  *TxManager
	batchSize  int
	maxRetries int
	handler    OutboxHandler
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(txManager *TxManager, batchSize, maxRetries int, handler OutboxHandler) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &OutboxRelay{
		txManager:  txManager,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		handler:    handler,
	}
}

// ProcessBatch fetches and processes pending messages.
// Rows stay locked (SKIP LOCKED) until the batch transaction commits, so
// several relays can run side by side. Returns number of published messages.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	processed := 0
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var messages []*OutboxMessage
		err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &messages, `
			SELECT id, aggregate_type, aggregate_id, event_type, payload, status,
			       retry_count, last_error, next_retry_at, created_at, published_at
			FROM sys_outbox
			WHERE status = $1
			  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		`, OutboxStatusPending, r.batchSize)
		if err != nil {
			return fmt.Errorf("fetch outbox messages: %w", err)
		}

		for _, msg := range messages {
			ok, err := r.processMessage(ctx, msg)
			if err != nil {
				return err
			}
			if ok {
				processed++
			}
		}
		return nil
	})
	return processed, err
}

// processMessage handles a single outbox message. A handler failure is
// recorded on the row; only bookkeeping errors are returned.
func (r *OutboxRelay) processMessage(ctx context.Context, msg *OutboxMessage) (bool, error) {
	q := r.txManager.GetQuerier(ctx)

	if handleErr := r.handler.Handle(ctx, msg); handleErr != nil {
		status := OutboxStatusPending
		if msg.RetryCount+1 >= r.maxRetries {
			status = OutboxStatusFailed
		}
		logger.Warn(ctx, "outbox message failed",
			"message_id", msg.ID,
			"event_type", msg.EventType,
			"retry_count", msg.RetryCount+1,
			"status", status,
			"error", handleErr)

		_, err := q.Exec(ctx, `
			UPDATE sys_outbox
			SET retry_count = retry_count + 1,
			    last_error = $1,
			    next_retry_at = $2,
			    status = $3
			WHERE id = $4
		`, handleErr.Error(), NextRetryAt(time.Now().UTC(), msg.RetryCount), status, msg.ID)
		if err != nil {
			return false, fmt.Errorf("update failed message: %w", err)
		}
		return false, nil
	}

	_, err := q.Exec(ctx, `
		UPDATE sys_outbox
		SET status = $1, published_at = $2
		WHERE id = $3
	`, OutboxStatusPublished, time.Now().UTC(), msg.ID)
	if err != nil {
		return false, fmt.Errorf("mark message published: %w", err)
	}
	return true, nil
}

// NextRetryAt is the linear backoff: one more minute per failed attempt.
func NextRetryAt(now time.Time, retryCount int) time.Time {
	return now.Add(time.Duration(retryCount+1) * time.Minute)
}

// PurgePublished deletes published messages older than retention.
func (r *OutboxRelay) PurgePublished(ctx context.Context, retention time.Duration) (int64, error) {
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_outbox
		WHERE status = $1 AND published_at < $2
	`, OutboxStatusPublished, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return result.RowsAffected(), nil
}
