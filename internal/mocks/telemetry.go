package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"relationship-service/internal/events"
	"relationship-service/internal/models"
)

// MockPublisher mocks the event transport used by notifications and audit.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ events.Publisher = (*MockPublisher)(nil)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyRequestReceived(ctx context.Context, requesterID, requesteeID int64, relationshipID uuid.UUID) error {
	args := m.Called(ctx, requesterID, requesteeID, relationshipID)
	return args.Error(0)
}

func (m *MockNotifier) NotifyAccepted(ctx context.Context, rel models.Relationship) error {
	args := m.Called(ctx, rel)
	return args.Error(0)
}

var _ interface {
	NotifyRequestReceived(context.Context, int64, int64, uuid.UUID) error
	NotifyAccepted(context.Context, models.Relationship) error
} = (*MockNotifier)(nil)
