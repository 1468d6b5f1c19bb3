// Package events publishes qualification outcomes to RabbitMQ so CRM
// consumers (notifications, analytics) can react without polling the API.
// The producer is optional; the service runs without a broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/avasquez/leadqual/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "ex.leads"
	QueueName    = "q.lead-qualified"
	RoutingKey   = "k.qualified"
)

// RabbitMQ holds the broker connection and channel.
type RabbitMQ struct {
	Conn *amqp.Connection
	Ch   *amqp.Channel
}

// Dial connects to the broker and declares the exchange/queue topology.
func Dial(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, "direct", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.QueueBind(QueueName, RoutingKey, ExchangeName, false, nil); err != nil {
		conn.Close()
		return nil, err
	}

	return &RabbitMQ{Conn: conn, Ch: ch}, nil
}

// Close tears down channel and connection.
func (r *RabbitMQ) Close() {
	if r.Ch != nil {
		r.Ch.Close()
	}
	if r.Conn != nil {
		r.Conn.Close()
	}
}

// Producer publishes qualification events.
type Producer struct {
	ch *amqp.Channel
}

// NewProducer creates a producer over an open channel.
func NewProducer(ch *amqp.Channel) *Producer {
	return &Producer{ch: ch}
}

// PublishQualified emits one qualification event. Messages are persistent
// so a broker restart does not drop them.
func (p *Producer) PublishQualified(ctx context.Context, ev domain.QualificationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.ch.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("publish qualification event: %w", err)
	}
	return nil
}
