package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"relationship-service/internal/models"
	"relationship-service/internal/repositories"
)

func (s *RelationshipService) SentRequests(ctx context.Context, userID int64) ([]models.RelatedUser, error) {
	return s.project(ctx, userID, models.FilterSentPending)
}

func (s *RelationshipService) ReceivedRequests(ctx context.Context, userID int64) ([]models.RelatedUser, error) {
	return s.project(ctx, userID, models.FilterReceivedPending)
}

func (s *RelationshipService) Friends(ctx context.Context, userID int64) ([]models.RelatedUser, error) {
	return s.project(ctx, userID, models.FilterFriends)
}

// BlockedByMe lists users that userID has blocked.
func (s *RelationshipService) BlockedByMe(ctx context.Context, userID int64) ([]models.RelatedUser, error) {
	return s.project(ctx, userID, models.FilterBlockedByUser)
}

// BlockingMe lists users that have blocked userID.
func (s *RelationshipService) BlockingMe(ctx context.Context, userID int64) ([]models.RelatedUser, error) {
	return s.project(ctx, userID, models.FilterBlockingUser)
}

// Blocked returns both block directions. Entries are labelled BLOCKED_BY_ME or BLOCKED_ME.
func (s *RelationshipService) Blocked(ctx context.Context, userID int64) ([]models.RelatedUser, error) {
	byMe, err := s.BlockedByMe(ctx, userID)
	if err != nil {
		return nil, err
	}
	me, err := s.BlockingMe(ctx, userID)
	if err != nil {
		return nil, err
	}
	return append(byMe, me...), nil
}

// SearchCandidates finds users that userID could send a request to.
func (s *RelationshipService) SearchCandidates(ctx context.Context, userID int64, fragment string) ([]models.UserSummary, error) {
	fragment, err := s.validateFragment(fragment)
	if err != nil {
		return nil, err
	}

	profiles, err := s.repo.SearchCandidates(ctx, userID, fragment, s.search.Limit)
	if err != nil {
		return nil, fmt.Errorf("search candidates: %w", err)
	}

	out := make([]models.UserSummary, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, models.UserSummary{ID: p.ID, Username: p.Username, AvatarURL: p.PublicAvatar()})
	}
	return out, nil
}

func (s *RelationshipService) SearchFriends(ctx context.Context, userID int64, fragment string) ([]models.RelatedUser, error) {
	fragment, err := s.validateFragment(fragment)
	if err != nil {
		return nil, err
	}

	friends, err := s.Friends(ctx, userID)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(fragment)
	out := make([]models.RelatedUser, 0)
	for _, f := range friends {
		if !strings.Contains(strings.ToLower(f.Username), needle) {
			continue
		}
		out = append(out, f)
		if s.search.Limit > 0 && len(out) == s.search.Limit {
			break
		}
	}
	return out, nil
}

// RelationshipInfo describes the pair from viewerID's side. A block placed by
// otherID is reported as STRANGER with requests closed and the profile hidden.
func (s *RelationshipService) RelationshipInfo(ctx context.Context, viewerID, otherID int64) (*models.RelationshipInfo, error) {
	if viewerID == otherID {
		return nil, ErrSelfRelationship
	}
	profile, err := s.profiles.GetProfile(ctx, otherID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}

	info := &models.RelationshipInfo{Status: models.ViewerStranger, ProfileVisible: !profile.Hidden}

	rel, err := s.repo.FindByPair(ctx, viewerID, otherID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			accepts := profile.AcceptsRequests
			info.AcceptsRequests = &accepts
			return info, nil
		}
		return nil, fmt.Errorf("load relationship: %w", err)
	}

	status := rel.ViewerStatus(viewerID)
	if status == models.ViewerBlockedMe {
		closed := false
		info.AcceptsRequests = &closed
		info.ProfileVisible = false
		return info, nil
	}

	id := rel.ID
	info.Status = status
	info.RelationshipID = &id
	if status == models.ViewerFriends {
		info.ProfileVisible = true
	}
	return info, nil
}

func (s *RelationshipService) project(ctx context.Context, userID int64, filter models.ListFilter) ([]models.RelatedUser, error) {
	rels, err := s.repo.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", filter, err)
	}

	ids := make([]int64, 0, len(rels))
	for i := range rels {
		ids = append(ids, rels[i].Counterparty(userID))
	}
	profiles, err := s.profiles.GetProfiles(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	out := make([]models.RelatedUser, 0, len(rels))
	for i := range rels {
		rel := &rels[i]
		other := rel.Counterparty(userID)
		profile := profiles[other]
		out = append(out, models.RelatedUser{
			UserID:         other,
			Username:       profile.Username,
			AvatarURL:      profile.PublicAvatar(),
			RelationshipID: rel.ID,
			Status:         rel.ViewerStatus(userID),
		})
	}
	return out, nil
}

func (s *RelationshipService) validateFragment(fragment string) (string, error) {
	fragment = strings.TrimSpace(fragment)
	n := utf8.RuneCountInString(fragment)
	if n < s.search.MinLength || (s.search.MaxLength > 0 && n > s.search.MaxLength) {
		return "", fmt.Errorf("%w: length must be between %d and %d", ErrInvalidSearch, s.search.MinLength, s.search.MaxLength)
	}
	return fragment, nil
}
