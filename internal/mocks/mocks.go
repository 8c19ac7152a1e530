package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"relationship-service/internal/models"
	"relationship-service/internal/services"
)

// MockRelationshipService mocks the service behind the relationship handlers.
type MockRelationshipService struct {
	mock.Mock
}

func (m *MockRelationshipService) ManageRelationship(ctx context.Context, cmd services.Command) (*services.Outcome, error) {
	args := m.Called(ctx, cmd)
	var out *services.Outcome
	if val := args.Get(0); val != nil {
		out = val.(*services.Outcome)
	}
	return out, args.Error(1)
}

func (m *MockRelationshipService) BlockUser(ctx context.Context, actorID, targetID int64) (*services.Outcome, error) {
	args := m.Called(ctx, actorID, targetID)
	var out *services.Outcome
	if val := args.Get(0); val != nil {
		out = val.(*services.Outcome)
	}
	return out, args.Error(1)
}

func (m *MockRelationshipService) related(args mock.Arguments) ([]models.RelatedUser, error) {
	var users []models.RelatedUser
	if val := args.Get(0); val != nil {
		users = val.([]models.RelatedUser)
	}
	return users, args.Error(1)
}

func (m *MockRelationshipService) SentRequests(ctx context.Context, userID int64) ([]models.RelatedUser, error) {
	return m.related(m.Called(ctx, userID))
}

func (m *MockRelationshipService) ReceivedRequests(ctx context.Context, userID int64) ([]models.RelatedUser, error) {
	return m.related(m.Called(ctx, userID))
}

func (m *MockRelationshipService) Friends(ctx context.Context, userID int64) ([]models.RelatedUser, error) {
	return m.related(m.Called(ctx, userID))
}

func (m *MockRelationshipService) BlockedByMe(ctx context.Context, userID int64) ([]models.RelatedUser, error) {
	return m.related(m.Called(ctx, userID))
}

func (m *MockRelationshipService) BlockingMe(ctx context.Context, userID int64) ([]models.RelatedUser, error) {
	return m.related(m.Called(ctx, userID))
}

func (m *MockRelationshipService) Blocked(ctx context.Context, userID int64) ([]models.RelatedUser, error) {
	return m.related(m.Called(ctx, userID))
}

func (m *MockRelationshipService) SearchFriends(ctx context.Context, userID int64, fragment string) ([]models.RelatedUser, error) {
	return m.related(m.Called(ctx, userID, fragment))
}

func (m *MockRelationshipService) SearchCandidates(ctx context.Context, userID int64, fragment string) ([]models.UserSummary, error) {
	args := m.Called(ctx, userID, fragment)
	var users []models.UserSummary
	if val := args.Get(0); val != nil {
		users = val.([]models.UserSummary)
	}
	return users, args.Error(1)
}

func (m *MockRelationshipService) RelationshipInfo(ctx context.Context, viewerID, otherID int64) (*models.RelationshipInfo, error) {
	args := m.Called(ctx, viewerID, otherID)
	var info *models.RelationshipInfo
	if val := args.Get(0); val != nil {
		info = val.(*models.RelationshipInfo)
	}
	return info, args.Error(1)
}

// MockUserRepository mocks profile and settings storage.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetProfile(ctx context.Context, id int64) (*models.UserProfile, error) {
	args := m.Called(ctx, id)
	var profile *models.UserProfile
	if val := args.Get(0); val != nil {
		profile = val.(*models.UserProfile)
	}
	return profile, args.Error(1)
}

func (m *MockUserRepository) GetProfiles(ctx context.Context, ids []int64) (map[int64]models.UserProfile, error) {
	args := m.Called(ctx, ids)
	var profiles map[int64]models.UserProfile
	if val := args.Get(0); val != nil {
		profiles = val.(map[int64]models.UserProfile)
	}
	return profiles, args.Error(1)
}

func (m *MockUserRepository) UpsertProfile(ctx context.Context, profile models.UserProfile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *MockUserRepository) SyncProfile(ctx context.Context, id int64, username, avatarURL string) (*models.UserProfile, error) {
	args := m.Called(ctx, id, username, avatarURL)
	var profile *models.UserProfile
	if val := args.Get(0); val != nil {
		profile = val.(*models.UserProfile)
	}
	return profile, args.Error(1)
}

func (m *MockUserRepository) UpdateSettings(ctx context.Context, id int64, settings models.PrivacySettings) (*models.UserProfile, error) {
	args := m.Called(ctx, id, settings)
	var profile *models.UserProfile
	if val := args.Get(0); val != nil {
		profile = val.(*models.UserProfile)
	}
	return profile, args.Error(1)
}

// Compile-time assertions
var _ interface {
	ManageRelationship(context.Context, services.Command) (*services.Outcome, error)
	BlockUser(context.Context, int64, int64) (*services.Outcome, error)
	SearchCandidates(context.Context, int64, string) ([]models.UserSummary, error)
	RelationshipInfo(context.Context, int64, int64) (*models.RelationshipInfo, error)
} = (*MockRelationshipService)(nil)

var _ services.ProfileDirectory = (*MockUserRepository)(nil)
