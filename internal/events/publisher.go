package events

import (
	"context"

	"go.uber.org/zap"
)

// Publisher delivers JSON-encodable events under a routing key. The routing
// key doubles as the channel suffix for transports without topic routing.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

type noopPublisher struct {
	logger *zap.Logger
}

// NewNoopPublisher returns a publisher that drops events and logs at debug level.
func NewNoopPublisher(logger *zap.Logger) Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &noopPublisher{logger: logger}
}

func (n *noopPublisher) Publish(_ context.Context, routingKey string, _ any) error {
	n.logger.Debug("event transport not configured; dropping event", zap.String("routing_key", routingKey))
	return nil
}

func (n *noopPublisher) Close() error { return nil }
