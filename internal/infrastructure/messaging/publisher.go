package messaging

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"lotledger/pkg/logger"
)

// Message is one outgoing broker message.
type Message struct {
	ID            string
	RoutingKey    string
	CorrelationID string
	Body          []byte
}

// Publisher publishes JSON messages to one topic exchange.
type Publisher struct {
	rmq      *RabbitMQ
	exchange string
}

// NewPublisher declares exchange and returns a publisher bound to it.
func NewPublisher(rmq *RabbitMQ, exchange string) (*Publisher, error) {
	if err := rmq.DeclareExchange(exchange); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Publisher{rmq: rmq, exchange: exchange}, nil
}

// Publish sends msg as a persistent message. A closed connection is
// re-established once before giving up.
func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	if p.rmq.IsClosed() {
		if err := p.rmq.Reconnect(ctx); err != nil {
			return err
		}
	}

	err := p.rmq.Channel().PublishWithContext(ctx,
		p.exchange,     // exchange
		msg.RoutingKey, // routing key
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			MessageId:     msg.ID,
			CorrelationId: msg.CorrelationID,
			Body:          msg.Body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.RoutingKey, err)
	}

	logger.Debug(ctx, "message published",
		"exchange", p.exchange,
		"routing_key", msg.RoutingKey,
		"message_id", msg.ID)
	return nil
}
