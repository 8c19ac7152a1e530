package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"relationship-service/internal/events"
	"relationship-service/internal/observability"
)

type publisher struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	exchangeName string
	appID        string
	mu           sync.Mutex
}

// NewPublisher dials RabbitMQ and declares exchangeName as a durable topic
// exchange. appID is stamped on every message.
func NewPublisher(amqpURL, exchangeName, appID string) (events.Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(
		exchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &publisher{conn: conn, channel: ch, exchangeName: exchangeName, appID: appID}, nil
}

func (p *publisher) Publish(ctx context.Context, routingKey string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil {
		observability.IncEventPublishError("amqp")
		return amqp.ErrClosed
	}

	msg, err := newPublishing(p.appID, routingKey, event, time.Now())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(ctx,
		p.exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		msg,
	)
	if err != nil {
		observability.IncEventPublishError("amqp")
	}
	return err
}

// newPublishing wraps event as a persistent JSON message typed by its routing key.
func newPublishing(appID, routingKey string, event any, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode %s event: %w", routingKey, err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    uuid.NewString(),
		Type:         routingKey,
		AppId:        appID,
		Body:         body,
		Timestamp:    now,
		DeliveryMode: amqp.Persistent,
	}, nil
}

func (p *publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	return nil
}
