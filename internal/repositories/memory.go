package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"relationship-service/internal/models"
)

var (
	errSelfPair      = errors.New("requester and requestee must differ")
	errInvalidStatus = errors.New("invalid relationship status")
)

type pairKey struct {
	low, high int64
}

func keyOf(a, b int64) pairKey {
	low, high := models.CanonicalPair(a, b)
	return pairKey{low: low, high: high}
}

// MemoryStore keeps relationships and user profiles in process memory. It
// satisfies both RelationshipRepository and UserRepository and backs the
// "memory" store driver and the service tests.
type MemoryStore struct {
	txMu sync.Mutex

	mu    sync.RWMutex
	rels  map[pairKey]models.Relationship
	users map[int64]models.UserProfile
	now   func() time.Time
}

var (
	_ RelationshipRepository = (*MemoryStore)(nil)
	_ UserRepository         = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rels:  make(map[pairKey]models.Relationship),
		users: make(map[int64]models.UserProfile),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithinTx serialises transactions. Writes are staged and become visible only
// when fn returns nil.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx RelationshipTx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{store: s, staged: make(map[pairKey]*models.Relationship)}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, rel := range tx.staged {
		if rel == nil {
			delete(s.rels, key)
			continue
		}
		s.rels[key] = *rel
	}
	return nil
}

func (s *MemoryStore) FindByPair(_ context.Context, a, b int64) (*models.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rel, ok := s.rels[keyOf(a, b)]
	if !ok {
		return nil, ErrNotFound
	}
	return &rel, nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID int64, filter models.ListFilter) ([]models.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Relationship
	for _, rel := range s.rels {
		if filter.Matches(&rel, userID) {
			out = append(out, rel)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *MemoryStore) SearchCandidates(_ context.Context, userID int64, fragment string, limit int) ([]models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(fragment)
	var out []models.UserProfile
	for id, profile := range s.users {
		if id == userID || !strings.Contains(strings.ToLower(profile.Username), needle) {
			continue
		}
		if _, related := s.rels[keyOf(userID, id)]; related {
			continue
		}
		out = append(out, profile)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) GetProfile(_ context.Context, id int64) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &profile, nil
}

func (s *MemoryStore) GetProfiles(_ context.Context, ids []int64) (map[int64]models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64]models.UserProfile, len(ids))
	for _, id := range ids {
		if profile, ok := s.users[id]; ok {
			out[id] = profile
		}
	}
	return out, nil
}

func (s *MemoryStore) UpsertProfile(_ context.Context, profile models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[profile.ID] = profile
	return nil
}

func (s *MemoryStore) SyncProfile(_ context.Context, id int64, username, avatarURL string) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for otherID, other := range s.users {
		if otherID != id && other.Username == username {
			return nil, ErrConflict
		}
	}
	profile, ok := s.users[id]
	if !ok {
		profile = models.UserProfile{ID: id, AcceptsRequests: true}
	}
	profile.Username = username
	profile.AvatarURL = avatarURL
	s.users[id] = profile
	return &profile, nil
}

func (s *MemoryStore) UpdateSettings(_ context.Context, id int64, settings models.PrivacySettings) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if settings.AcceptsRequests != nil {
		profile.AcceptsRequests = *settings.AcceptsRequests
	}
	if settings.ProfileHidden != nil {
		profile.Hidden = *settings.ProfileHidden
	}
	s.users[id] = profile
	return &profile, nil
}

type memoryTx struct {
	store *MemoryStore
	// nil value marks a staged delete
	staged map[pairKey]*models.Relationship
}

func (t *memoryTx) lookup(key pairKey) (*models.Relationship, bool) {
	if rel, ok := t.staged[key]; ok {
		if rel == nil {
			return nil, false
		}
		copied := *rel
		return &copied, true
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	rel, ok := t.store.rels[key]
	if !ok {
		return nil, false
	}
	return &rel, true
}

func (t *memoryTx) FindByPair(_ context.Context, a, b int64) (*models.Relationship, error) {
	rel, ok := t.lookup(keyOf(a, b))
	if !ok {
		return nil, ErrNotFound
	}
	return rel, nil
}

func (t *memoryTx) FindByID(_ context.Context, id uuid.UUID) (*models.Relationship, error) {
	for _, rel := range t.staged {
		if rel != nil && rel.ID == id {
			copied := *rel
			return &copied, nil
		}
	}

	t.store.mu.RLock()
	var found *models.Relationship
	for key, rel := range t.store.rels {
		if rel.ID != id {
			continue
		}
		if _, overridden := t.staged[key]; overridden {
			continue
		}
		copied := rel
		found = &copied
		break
	}
	t.store.mu.RUnlock()

	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (t *memoryTx) Save(_ context.Context, rel *models.Relationship) error {
	if rel.RequesterID == rel.RequesteeID {
		return errSelfPair
	}
	if !rel.Status.Valid() {
		return fmt.Errorf("%w: %q", errInvalidStatus, rel.Status)
	}
	key := keyOf(rel.RequesterID, rel.RequesteeID)
	current, exists := t.lookup(key)
	now := t.store.now()

	if rel.Version == 0 {
		if exists {
			return ErrConflict
		}
		rel.Version = 1
		rel.CreatedAt = now
		rel.UpdatedAt = now
	} else {
		if !exists || current.ID != rel.ID || current.Version != rel.Version {
			return ErrConflict
		}
		rel.Version++
		rel.UpdatedAt = now
	}

	staged := *rel
	t.staged[key] = &staged
	return nil
}

func (t *memoryTx) Delete(_ context.Context, rel *models.Relationship) error {
	key := keyOf(rel.RequesterID, rel.RequesteeID)
	current, exists := t.lookup(key)
	if !exists || current.ID != rel.ID || current.Version != rel.Version {
		return ErrConflict
	}
	t.staged[key] = nil
	return nil
}
