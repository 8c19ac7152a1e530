package redispub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"relationship-service/internal/events"
	"relationship-service/internal/observability"
)

// client is the subset of *redis.Client the publisher uses.
type client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

type publisher struct {
	rdb    client
	prefix string
}

// NewPublisher connects to addr and publishes each event on "<prefix>.<routingKey>".
func NewPublisher(ctx context.Context, addr, prefix string) (events.Publisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return newPublisher(rdb, prefix), nil
}

func newPublisher(rdb client, prefix string) *publisher {
	return &publisher{rdb: rdb, prefix: prefix}
}

func (p *publisher) channel(routingKey string) string {
	if p.prefix == "" {
		return routingKey
	}
	return p.prefix + "." + routingKey
}

func (p *publisher) Publish(ctx context.Context, routingKey string, event any) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, p.channel(routingKey), raw).Err(); err != nil {
		observability.IncEventPublishError("redis")
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (p *publisher) Close() error {
	return p.rdb.Close()
}
