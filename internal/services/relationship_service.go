package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"relationship-service/internal/models"
	"relationship-service/internal/repositories"
)

// ProfileDirectory resolves the user attributes the service needs.
type ProfileDirectory interface {
	GetProfile(ctx context.Context, id int64) (*models.UserProfile, error)
	GetProfiles(ctx context.Context, ids []int64) (map[int64]models.UserProfile, error)
}

// Notifier delivers best-effort notifications after a transition commits.
type Notifier interface {
	NotifyRequestReceived(ctx context.Context, requesterID, requesteeID int64, relationshipID uuid.UUID) error
	NotifyAccepted(ctx context.Context, rel models.Relationship) error
}

type SearchOptions struct {
	MinLength int
	MaxLength int
	Limit     int
}

// Command asks the service to apply Action on behalf of ActorID. REQUEST
// targets CounterpartyID; every other action targets RelationshipID.
type Command struct {
	ActorID        int64
	RelationshipID uuid.UUID
	CounterpartyID int64
	Action         models.Action
}

// Outcome is the record after the action. When Deleted is set, Relationship
// is the state it had just before removal.
type Outcome struct {
	Relationship models.Relationship
	Deleted      bool
}

type RelationshipService struct {
	repo     repositories.RelationshipRepository
	profiles ProfileDirectory
	notifier Notifier
	logger   *zap.Logger
	search   SearchOptions
}

func NewRelationshipService(repo repositories.RelationshipRepository, profiles ProfileDirectory, notifier Notifier, logger *zap.Logger, search SearchOptions) *RelationshipService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelationshipService{
		repo:     repo,
		profiles: profiles,
		notifier: notifier,
		logger:   logger,
		search:   search,
	}
}

func (s *RelationshipService) ManageRelationship(ctx context.Context, cmd Command) (*Outcome, error) {
	action, err := models.ParseAction(string(cmd.Action))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAction, cmd.Action)
	}
	if action == models.ActionRequest {
		return s.request(ctx, cmd.ActorID, cmd.CounterpartyID)
	}

	var out *Outcome
	err = s.repo.WithinTx(ctx, func(tx repositories.RelationshipTx) error {
		rel, err := tx.FindByID(ctx, cmd.RelationshipID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrRelationshipNotFound
			}
			return fmt.Errorf("load relationship: %w", err)
		}

		out, err = s.apply(ctx, tx, rel, cmd.ActorID, action)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("relationship action applied",
		zap.String("action", string(action)),
		zap.Int64("actor_id", cmd.ActorID),
		zap.String("relationship_id", out.Relationship.ID.String()),
		zap.Bool("deleted", out.Deleted),
	)

	if action == models.ActionAccept && s.notifier != nil {
		if err := s.notifier.NotifyAccepted(ctx, out.Relationship); err != nil {
			s.logNotifyFailure("accepted", out.Relationship.ID, err)
		}
	}
	return out, nil
}

// BlockUser blocks targetID whether or not a record exists for the pair. A
// missing record is created with the actor as requester.
func (s *RelationshipService) BlockUser(ctx context.Context, actorID, targetID int64) (*Outcome, error) {
	if actorID == targetID {
		return nil, ErrSelfRelationship
	}
	if err := s.ensureUser(ctx, targetID); err != nil {
		return nil, err
	}

	var out *Outcome
	err := s.repo.WithinTx(ctx, func(tx repositories.RelationshipTx) error {
		rel, err := tx.FindByPair(ctx, actorID, targetID)
		switch {
		case err == nil:
			out, err = s.apply(ctx, tx, rel, actorID, models.ActionBlock)
			return err
		case !errors.Is(err, repositories.ErrNotFound):
			return fmt.Errorf("load relationship: %w", err)
		}

		rel = models.NewRelationship(actorID, targetID)
		rel.Status = models.StatusRequesterBlockedRequestee
		if err := tx.Save(ctx, rel); err != nil {
			return fmt.Errorf("create blocked relationship: %w", err)
		}
		out = &Outcome{Relationship: *rel}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user blocked",
		zap.Int64("actor_id", actorID),
		zap.Int64("target_id", targetID),
		zap.String("relationship_id", out.Relationship.ID.String()),
	)
	return out, nil
}

func (s *RelationshipService) request(ctx context.Context, actorID, targetID int64) (*Outcome, error) {
	if actorID == targetID {
		return nil, ErrSelfRelationship
	}
	target, err := s.profiles.GetProfile(ctx, targetID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}

	var created *models.Relationship
	err = s.repo.WithinTx(ctx, func(tx repositories.RelationshipTx) error {
		if _, err := tx.FindByPair(ctx, actorID, targetID); err == nil {
			return ErrRelationshipAlreadyExists
		} else if !errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("load relationship: %w", err)
		}
		if !target.AcceptsRequests {
			return ErrRequestsNotAccepted
		}

		rel := models.NewRelationship(actorID, targetID)
		if err := tx.Save(ctx, rel); err != nil {
			if errors.Is(err, repositories.ErrConflict) {
				return ErrRelationshipAlreadyExists
			}
			return fmt.Errorf("create relationship: %w", err)
		}
		created = rel
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("relationship requested",
		zap.Int64("requester_id", actorID),
		zap.Int64("requestee_id", targetID),
		zap.String("relationship_id", created.ID.String()),
	)

	if s.notifier != nil {
		if err := s.notifier.NotifyRequestReceived(ctx, actorID, targetID, created.ID); err != nil {
			s.logNotifyFailure("request received", created.ID, err)
		}
	}
	return &Outcome{Relationship: *created}, nil
}

// apply runs the state machine on a record loaded inside tx and persists the result.
func (s *RelationshipService) apply(ctx context.Context, tx repositories.RelationshipTx, rel *models.Relationship, actorID int64, action models.Action) (*Outcome, error) {
	t, err := applyTransition(rel, actorID, action)
	if err != nil {
		return nil, err
	}

	if t.deleted {
		snapshot := *rel
		if err := tx.Delete(ctx, rel); err != nil {
			return nil, fmt.Errorf("delete relationship: %w", err)
		}
		return &Outcome{Relationship: snapshot, Deleted: true}, nil
	}

	rel.Status = t.next
	if err := tx.Save(ctx, rel); err != nil {
		return nil, fmt.Errorf("save relationship: %w", err)
	}
	return &Outcome{Relationship: *rel}, nil
}

func (s *RelationshipService) ensureUser(ctx context.Context, id int64) error {
	if _, err := s.profiles.GetProfile(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load profile: %w", err)
	}
	return nil
}

func (s *RelationshipService) logNotifyFailure(kind string, relationshipID uuid.UUID, err error) {
	s.logger.Warn("failed to send relationship notification",
		zap.String("notification", kind),
		zap.String("relationship_id", relationshipID.String()),
		zap.Error(err),
	)
}
