package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"relationship-service/internal/events"
	"relationship-service/internal/models"
	"relationship-service/internal/observability"
)

const (
	RoutingKeyRequestReceived = "relationship.request.received"
	RoutingKeyAccepted        = "relationship.accepted"
)

// Event is addressed to a single recipient. Consumers turn it into an
// in-app or email notification.
type Event struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	OccurredAt     string    `json:"occurred_at"`
	Service        string    `json:"service"`
	RecipientID    int64     `json:"recipient_id"`
	ActorID        int64     `json:"actor_id"`
	RelationshipID uuid.UUID `json:"relationship_id"`
}

type EventNotifier struct {
	publisher events.Publisher
	service   string
	now       func() time.Time
}

func NewEventNotifier(publisher events.Publisher, service string) *EventNotifier {
	return &EventNotifier{
		publisher: publisher,
		service:   service,
		now:       time.Now,
	}
}

// NotifyRequestReceived tells requesteeID that requesterID sent a request.
func (n *EventNotifier) NotifyRequestReceived(ctx context.Context, requesterID, requesteeID int64, relationshipID uuid.UUID) error {
	return n.publish(ctx, RoutingKeyRequestReceived, requesteeID, requesterID, relationshipID)
}

// NotifyAccepted tells both parties that they are now friends.
func (n *EventNotifier) NotifyAccepted(ctx context.Context, rel models.Relationship) error {
	return errors.Join(
		n.publish(ctx, RoutingKeyAccepted, rel.RequesterID, rel.RequesteeID, rel.ID),
		n.publish(ctx, RoutingKeyAccepted, rel.RequesteeID, rel.RequesterID, rel.ID),
	)
}

func (n *EventNotifier) publish(ctx context.Context, routingKey string, recipientID, actorID int64, relationshipID uuid.UUID) error {
	event := Event{
		EventID:        uuid.NewString(),
		EventType:      routingKey,
		OccurredAt:     n.now().UTC().Format(time.RFC3339Nano),
		Service:        n.service,
		RecipientID:    recipientID,
		ActorID:        actorID,
		RelationshipID: relationshipID,
	}
	if err := n.publisher.Publish(ctx, routingKey, event); err != nil {
		return fmt.Errorf("publish %s to user %d: %w", routingKey, recipientID, err)
	}
	observability.IncNotificationPublished(routingKey)
	return nil
}
