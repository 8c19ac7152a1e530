package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relationship-service/internal/models"
)

func seedUsers(t *testing.T, store *MemoryStore, profiles ...models.UserProfile) {
	t.Helper()
	for _, p := range profiles {
		require.NoError(t, store.UpsertProfile(context.Background(), p))
	}
}

func insertRelationship(t *testing.T, store *MemoryStore, requester, requestee int64, status models.Status) models.Relationship {
	t.Helper()
	rel := models.NewRelationship(requester, requestee)
	rel.Status = status
	require.NoError(t, store.WithinTx(context.Background(), func(tx RelationshipTx) error {
		return tx.Save(context.Background(), rel)
	}))
	return *rel
}

func TestMemoryStoreFindByPairIsSymmetric(t *testing.T) {
	store := NewMemoryStore()
	rel := insertRelationship(t, store, 1, 2, models.StatusPending)

	forward, err := store.FindByPair(context.Background(), 1, 2)
	require.NoError(t, err)
	backward, err := store.FindByPair(context.Background(), 2, 1)
	require.NoError(t, err)

	assert.Equal(t, rel.ID, forward.ID)
	assert.Equal(t, forward, backward)
	assert.Equal(t, int64(1), forward.Version)
}

func TestMemoryStoreRejectsSecondRecordForPair(t *testing.T) {
	store := NewMemoryStore()
	insertRelationship(t, store, 1, 2, models.StatusPending)

	err := store.WithinTx(context.Background(), func(tx RelationshipTx) error {
		return tx.Save(context.Background(), models.NewRelationship(2, 1))
	})
	require.ErrorIs(t, err, ErrConflict)
}

func TestMemoryStoreRollsBackOnError(t *testing.T) {
	store := NewMemoryStore()
	boom := errors.New("boom")

	err := store.WithinTx(context.Background(), func(tx RelationshipTx) error {
		if err := tx.Save(context.Background(), models.NewRelationship(1, 2)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.FindByPair(context.Background(), 1, 2)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreStagedWritesVisibleInsideTx(t *testing.T) {
	store := NewMemoryStore()
	rel := insertRelationship(t, store, 1, 2, models.StatusPending)

	err := store.WithinTx(context.Background(), func(tx RelationshipTx) error {
		loaded, err := tx.FindByID(context.Background(), rel.ID)
		require.NoError(t, err)
		loaded.Status = models.StatusFriends
		require.NoError(t, tx.Save(context.Background(), loaded))

		again, err := tx.FindByPair(context.Background(), 2, 1)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFriends, again.Status)

		outside, err := store.FindByPair(context.Background(), 1, 2)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, outside.Status)

		require.NoError(t, tx.Delete(context.Background(), again))
		_, err = tx.FindByID(context.Background(), rel.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	})
	require.NoError(t, err)

	_, err = store.FindByPair(context.Background(), 1, 2)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreStaleVersionConflicts(t *testing.T) {
	store := NewMemoryStore()
	rel := insertRelationship(t, store, 1, 2, models.StatusPending)

	stale := rel
	require.NoError(t, store.WithinTx(context.Background(), func(tx RelationshipTx) error {
		fresh := rel
		fresh.Status = models.StatusFriends
		return tx.Save(context.Background(), &fresh)
	}))

	err := store.WithinTx(context.Background(), func(tx RelationshipTx) error {
		stale.Status = models.StatusRequesterBlockedRequestee
		return tx.Save(context.Background(), &stale)
	})
	require.ErrorIs(t, err, ErrConflict)

	err = store.WithinTx(context.Background(), func(tx RelationshipTx) error {
		return tx.Delete(context.Background(), &rel)
	})
	require.ErrorIs(t, err, ErrConflict)
}

func TestMemoryStoreListByUserFilters(t *testing.T) {
	store := NewMemoryStore()
	sent := insertRelationship(t, store, 1, 2, models.StatusPending)
	received := insertRelationship(t, store, 3, 1, models.StatusPending)
	friend := insertRelationship(t, store, 1, 4, models.StatusFriends)
	blockedByMe := insertRelationship(t, store, 5, 1, models.StatusRequesteeBlockedRequester)
	blockingMe := insertRelationship(t, store, 6, 1, models.StatusRequesterBlockedRequestee)

	cases := map[models.ListFilter]models.Relationship{
		models.FilterSentPending:     sent,
		models.FilterReceivedPending: received,
		models.FilterFriends:         friend,
		models.FilterBlockedByUser:   blockedByMe,
		models.FilterBlockingUser:    blockingMe,
	}
	for filter, want := range cases {
		t.Run(filter.String(), func(t *testing.T) {
			got, err := store.ListByUser(context.Background(), 1, filter)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, want.ID, got[0].ID)
		})
	}
}

func TestMemoryStoreSearchCandidatesExcludesRelated(t *testing.T) {
	store := NewMemoryStore()
	seedUsers(t, store,
		models.UserProfile{ID: 1, Username: "alice"},
		models.UserProfile{ID: 2, Username: "alina"},
		models.UserProfile{ID: 3, Username: "Alfred"},
		models.UserProfile{ID: 4, Username: "bob"},
	)
	insertRelationship(t, store, 2, 1, models.StatusRequesterBlockedRequestee)

	got, err := store.SearchCandidates(context.Background(), 1, "AL", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].ID)
}

func TestMemoryStoreUpdateSettings(t *testing.T) {
	store := NewMemoryStore()
	seedUsers(t, store, models.UserProfile{ID: 1, Username: "alice", AcceptsRequests: true})

	hidden := true
	profile, err := store.UpdateSettings(context.Background(), 1, models.PrivacySettings{ProfileHidden: &hidden})
	require.NoError(t, err)
	assert.True(t, profile.Hidden)
	assert.True(t, profile.AcceptsRequests)

	_, err = store.UpdateSettings(context.Background(), 99, models.PrivacySettings{ProfileHidden: &hidden})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreSyncProfileKeepsSettings(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	created, err := store.SyncProfile(ctx, 1, "alice", "/a.png")
	require.NoError(t, err)
	assert.True(t, created.AcceptsRequests)
	assert.False(t, created.Hidden)

	hidden := true
	_, err = store.UpdateSettings(ctx, 1, models.PrivacySettings{ProfileHidden: &hidden})
	require.NoError(t, err)

	updated, err := store.SyncProfile(ctx, 1, "alice2", "")
	require.NoError(t, err)
	assert.Equal(t, "alice2", updated.Username)
	assert.Empty(t, updated.AvatarURL)
	assert.True(t, updated.Hidden)

	_, err = store.SyncProfile(ctx, 2, "alice2", "")
	require.True(t, errors.Is(err, ErrConflict))
}
