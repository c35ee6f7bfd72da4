// Package labels moves label requests from the ledger to the printing
// pipeline: the sink stores them in the transactional outbox and the relay
// handler forwards them to the broker.
package labels

import (
	"context"
	"encoding/json"
	"fmt"

	"lotledger/internal/core/tx"
	"lotledger/internal/domain/catalog"
	"lotledger/internal/infrastructure/messaging"
	"lotledger/internal/infrastructure/storage/postgres"
)

const (
	aggregateType = "lot"

	// EventLabelRequested is the outbox event type of a label request.
	EventLabelRequested = "LabelRequested"

	// RoutingKey is the broker routing key of label requests.
	RoutingKey = "lot.label.requested"
)

// Outbox stores events for asynchronous delivery.
type Outbox interface {
	Publish(ctx context.Context, event postgres.DomainEvent) error
}

// OutboxSink implements catalog.LabelSink on top of the outbox.
type OutboxSink struct {
	txManager tx.Manager
	outbox    Outbox
}

var _ catalog.LabelSink = (*OutboxSink)(nil)

// NewOutboxSink creates a label sink.
func NewOutboxSink(txManager tx.Manager, outbox Outbox) *OutboxSink {
	return &OutboxSink{txManager: txManager, outbox: outbox}
}

// RequestLabel enqueues req, joining the caller's transaction when present.
func (s *OutboxSink) RequestLabel(ctx context.Context, req catalog.LabelRequest) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.outbox.Publish(ctx, postgres.DomainEvent{
			AggregateType: aggregateType,
			AggregateID:   req.LotID,
			EventType:     EventLabelRequested,
			Payload:       req,
		})
	})
}

// Publisher delivers broker messages.
type Publisher interface {
	Publish(ctx context.Context, msg messaging.Message) error
}

// RelayHandler forwards label requests from the outbox to the broker.
type RelayHandler struct {
	publisher Publisher
}

var _ postgres.OutboxHandler = (*RelayHandler)(nil)

// NewRelayHandler creates a relay handler.
func NewRelayHandler(publisher Publisher) *RelayHandler {
	return &RelayHandler{publisher: publisher}
}

// Handle implements postgres.OutboxHandler. Unknown event types fail, so they
// are parked as failed rather than silently dropped.
func (h *RelayHandler) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	if msg.EventType != EventLabelRequested {
		return fmt.Errorf("unsupported outbox event %q", msg.EventType)
	}

	var req catalog.LabelRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return fmt.Errorf("decode label request: %w", err)
	}
	if req.Identity == "" {
		return fmt.Errorf("label request for lot %s has no identity", req.LotID)
	}

	return h.publisher.Publish(ctx, messaging.Message{
		ID:            msg.ID.String(),
		RoutingKey:    RoutingKey,
		CorrelationID: msg.AggregateID.String(),
		Body:          msg.Payload,
	})
}
