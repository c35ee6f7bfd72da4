package labels

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/internal/domain/catalog"
	"lotledger/internal/infrastructure/messaging"
	"lotledger/internal/infrastructure/storage/memory"
	"lotledger/internal/infrastructure/storage/postgres"
)

type recordingOutbox struct {
	events []postgres.DomainEvent
	err    error
}

func (o *recordingOutbox) Publish(_ context.Context, e postgres.DomainEvent) error {
	if o.err != nil {
		return o.err
	}
	o.events = append(o.events, e)
	return nil
}

type recordingPublisher struct {
	messages []messaging.Message
}

func (p *recordingPublisher) Publish(_ context.Context, m messaging.Message) error {
	p.messages = append(p.messages, m)
	return nil
}

func labelRequest() catalog.LabelRequest {
	return catalog.LabelRequest{
		LotID:          id.New(),
		Identity:       "17000000000008",
		ItemName:       "Milk",
		Quantity:       types.NewQuantity(12),
		Unit:           "l",
		ExpirationDate: time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC),
		LocationID:     id.New(),
	}
}

func TestOutboxSink_EnqueuesEvent(t *testing.T) {
	outbox := &recordingOutbox{}
	sink := NewOutboxSink(memory.NewTxManager(memory.NewStore()), outbox)
	req := labelRequest()

	require.NoError(t, sink.RequestLabel(context.Background(), req))

	require.Len(t, outbox.events, 1)
	e := outbox.events[0]
	assert.Equal(t, EventLabelRequested, e.EventType)
	assert.Equal(t, "lot", e.AggregateType)
	assert.Equal(t, req.LotID, e.AggregateID)
	assert.Equal(t, req, e.Payload)
}

func TestOutboxSink_PropagatesFailure(t *testing.T) {
	sink := NewOutboxSink(memory.NewTxManager(memory.NewStore()), &recordingOutbox{err: errors.New("db down")})
	assert.Error(t, sink.RequestLabel(context.Background(), labelRequest()))
}

func TestRelayHandler_ForwardsLabelRequest(t *testing.T) {
	pub := &recordingPublisher{}
	h := NewRelayHandler(pub)
	req := labelRequest()
	payload, err := json.Marshal(req)
	require.NoError(t, err)

	msg := &postgres.OutboxMessage{ID: id.New(), AggregateID: req.LotID, EventType: EventLabelRequested, Payload: payload}
	require.NoError(t, h.Handle(context.Background(), msg))

	require.Len(t, pub.messages, 1)
	assert.Equal(t, RoutingKey, pub.messages[0].RoutingKey)
	assert.Equal(t, msg.ID.String(), pub.messages[0].ID)
	assert.Equal(t, req.LotID.String(), pub.messages[0].CorrelationID)
	assert.JSONEq(t, string(payload), string(pub.messages[0].Body))
}

func TestRelayHandler_Rejects(t *testing.T) {
	h := NewRelayHandler(&recordingPublisher{})

	tests := []struct {
		name string
		msg  *postgres.OutboxMessage
	}{
		{"unknown event", &postgres.OutboxMessage{EventType: "LotDeleted", Payload: []byte(`{}`)}},
		{"bad payload", &postgres.OutboxMessage{EventType: EventLabelRequested, Payload: []byte(`{`)}},
		{"missing identity", &postgres.OutboxMessage{EventType: EventLabelRequested, Payload: []byte(`{"itemName":"Milk"}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, h.Handle(context.Background(), tt.msg))
		})
	}
}
