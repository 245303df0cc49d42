package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// AMQPConfig describes the exchange events are published to.
type AMQPConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
	// ConfirmTimeout bounds the wait for a broker ack.
	ConfirmTimeout time.Duration
}

// AMQPPublisher publishes persistent JSON messages with publisher confirms.
type AMQPPublisher struct {
	cfg     AMQPConfig
	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// NewAMQPPublisher dials the broker, declares a durable topic exchange and
// puts the channel in confirm mode.
func NewAMQPPublisher(cfg AMQPConfig) (*AMQPPublisher, error) {
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 10 * time.Second
	}

	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if cfg.Exchange != "" {
		if err := channel.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to declare exchange: %w", err)
		}
	}

	if err := channel.Confirm(false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable confirm mode: %w", err)
	}

	return &AMQPPublisher{cfg: cfg, conn: conn, channel: channel}, nil
}

// Publish sends the event and waits for the broker ack.
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil || p.channel.IsClosed() {
		return errors.New("rabbitmq channel is not open")
	}

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		MessageId:    event.ID,
		Type:         event.Type,
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    event.OccurredAt,
	}

	confirm, err := p.channel.PublishWithDeferredConfirmWithContext(ctx, p.cfg.Exchange, p.routingKey(event), false, false, msg)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.cfg.ConfirmTimeout)
	defer cancel()

	acked, err := confirm.WaitContext(waitCtx)
	if err != nil {
		return fmt.Errorf("failed waiting for confirmation: %w", err)
	}
	if !acked {
		return errors.New("message rejected by broker")
	}

	return nil
}

// routingKey is "<configured key>.<event type>", or the event type alone.
func (p *AMQPPublisher) routingKey(event Event) string {
	if p.cfg.RoutingKey == "" {
		return event.Type
	}

	return p.cfg.RoutingKey + "." + event.Type
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}

	return errors.Join(errs...)
}
