package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"relationship-service/internal/mocks"
	"relationship-service/internal/models"
)

func fixedNotifier(pub *mocks.MockPublisher) *EventNotifier {
	n := NewEventNotifier(pub, "relationship-service")
	n.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return n
}

func TestNotifyRequestReceivedAddressesRequestee(t *testing.T) {
	pub := new(mocks.MockPublisher)
	relID := uuid.New()

	pub.On("Publish", mock.Anything, RoutingKeyRequestReceived, mock.MatchedBy(func(e Event) bool {
		return e.RecipientID == 2 && e.ActorID == 1 && e.RelationshipID == relID &&
			e.EventType == RoutingKeyRequestReceived && e.Service == "relationship-service" &&
			e.OccurredAt == "2026-01-02T03:04:05Z" && e.EventID != ""
	})).Return(nil).Once()

	require.NoError(t, fixedNotifier(pub).NotifyRequestReceived(context.Background(), 1, 2, relID))
	pub.AssertExpectations(t)
}

func TestNotifyAcceptedFansOutToBothParties(t *testing.T) {
	pub := new(mocks.MockPublisher)
	rel := models.Relationship{ID: uuid.New(), RequesterID: 1, RequesteeID: 2, Status: models.StatusFriends}

	var recipients []int64
	pub.On("Publish", mock.Anything, RoutingKeyAccepted, mock.AnythingOfType("notifications.Event")).
		Run(func(args mock.Arguments) {
			recipients = append(recipients, args.Get(2).(Event).RecipientID)
		}).Return(nil).Twice()

	require.NoError(t, fixedNotifier(pub).NotifyAccepted(context.Background(), rel))
	assert.ElementsMatch(t, []int64{1, 2}, recipients)
	pub.AssertExpectations(t)
}

func TestNotifyAcceptedJoinsFailures(t *testing.T) {
	pub := new(mocks.MockPublisher)
	rel := models.Relationship{ID: uuid.New(), RequesterID: 1, RequesteeID: 2, Status: models.StatusFriends}
	boom := errors.New("broker down")

	pub.On("Publish", mock.Anything, RoutingKeyAccepted, mock.MatchedBy(func(e Event) bool { return e.RecipientID == 1 })).Return(boom).Once()
	pub.On("Publish", mock.Anything, RoutingKeyAccepted, mock.MatchedBy(func(e Event) bool { return e.RecipientID == 2 })).Return(nil).Once()

	err := fixedNotifier(pub).NotifyAccepted(context.Background(), rel)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "to user 1")
	pub.AssertExpectations(t)
}
