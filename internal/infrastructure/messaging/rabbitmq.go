// Package messaging connects the outbox relay to RabbitMQ.
package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"lotledger/pkg/config"
	"lotledger/pkg/logger"
)

// RabbitMQ manages the connection to RabbitMQ.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  config.RabbitMQConfig
	mu      sync.RWMutex
	closed  bool
}

// New creates a new RabbitMQ connection.
func New(ctx context.Context, cfg config.RabbitMQConfig) (*RabbitMQ, error) {
	rmq := &RabbitMQ{config: cfg}
	if err := rmq.connect(ctx); err != nil {
		return nil, err
	}
	return rmq, nil
}

func (r *RabbitMQ) connect(ctx context.Context) error {
	conn, err := amqp.Dial(r.config.URL)
	if err != nil {
		return fmt.Errorf("connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if r.config.PrefetchCount > 0 {
		if err := ch.Qos(r.config.PrefetchCount, 0, false); err != nil {
			_ = conn.Close()
			return fmt.Errorf("set QoS: %w", err)
		}
	}

	r.conn, r.channel = conn, ch
	logger.Info(ctx, "connected to RabbitMQ")
	return nil
}

// Channel returns the current channel.
func (r *RabbitMQ) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel
}

// IsClosed reports whether the connection is gone.
func (r *RabbitMQ) IsClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conn == nil || r.conn.IsClosed()
}

// Close closes the RabbitMQ connection.
func (r *RabbitMQ) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			logger.Warn(ctx, "failed to close channel", "error", err)
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("close connection: %w", err)
		}
	}

	logger.Info(ctx, "RabbitMQ connection closed")
	return nil
}

// DeclareExchange declares a durable topic exchange.
func (r *RabbitMQ) DeclareExchange(name string) error {
	return r.Channel().ExchangeDeclare(
		name,    // name
		"topic", // type
		true,    // durable
		false,   // auto-deleted
		false,   // internal
		false,   // no-wait
		nil,     // arguments
	)
}

// Reconnect attempts to reconnect to RabbitMQ.
func (r *RabbitMQ) Reconnect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("connection is permanently closed")
	}

	attempts := r.config.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		logger.Info(ctx, "attempting to reconnect to RabbitMQ", "attempt", i+1)

		if err := r.connect(ctx); err != nil {
			logger.Warn(ctx, "reconnection attempt failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.config.ReconnectDelay):
			}
			continue
		}
		return nil
	}

	return fmt.Errorf("failed to reconnect after %d attempts", attempts)
}
