package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"relationship-service/internal/models"
)

type UserRepository interface {
	GetProfile(ctx context.Context, id int64) (*models.UserProfile, error)
	GetProfiles(ctx context.Context, ids []int64) (map[int64]models.UserProfile, error)
	UpsertProfile(ctx context.Context, profile models.UserProfile) error
	SyncProfile(ctx context.Context, id int64, username, avatarURL string) (*models.UserProfile, error)
	UpdateSettings(ctx context.Context, id int64, settings models.PrivacySettings) (*models.UserProfile, error)
}

const profileColumns = `id, username, COALESCE(avatar_url, '') AS avatar_url, profile_hidden, accepts_requests`

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetProfile(ctx context.Context, id int64) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := r.db.GetContext(ctx, &profile, "SELECT "+profileColumns+" FROM users WHERE id=$1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &profile, nil
}

// GetProfiles silently skips ids that have no row.
func (r *userRepository) GetProfiles(ctx context.Context, ids []int64) (map[int64]models.UserProfile, error) {
	out := make(map[int64]models.UserProfile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var profiles []models.UserProfile
	err := r.db.SelectContext(ctx, &profiles, "SELECT "+profileColumns+" FROM users WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}

func (r *userRepository) UpsertProfile(ctx context.Context, profile models.UserProfile) error {
	_, err := r.db.NamedExecContext(ctx, `
INSERT INTO users (id, username, avatar_url, profile_hidden, accepts_requests)
VALUES (:id, :username, NULLIF(:avatar_url, ''), :profile_hidden, :accepts_requests)
ON CONFLICT (id) DO UPDATE
SET username=EXCLUDED.username,
    avatar_url=EXCLUDED.avatar_url,
    profile_hidden=EXCLUDED.profile_hidden,
    accepts_requests=EXCLUDED.accepts_requests
`, profile)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// SyncProfile creates the profile with default privacy flags, or refreshes the
// username and avatar of an existing one without touching its settings.
func (r *userRepository) SyncProfile(ctx context.Context, id int64, username, avatarURL string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := r.db.GetContext(ctx, &profile, `
INSERT INTO users (id, username, avatar_url)
VALUES ($1, $2, NULLIF($3, ''))
ON CONFLICT (id) DO UPDATE
SET username=EXCLUDED.username,
    avatar_url=EXCLUDED.avatar_url
RETURNING `+profileColumns, id, username, avatarURL)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("sync user: %w", err)
	}
	return &profile, nil
}

func (r *userRepository) UpdateSettings(ctx context.Context, id int64, settings models.PrivacySettings) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := r.db.GetContext(ctx, &profile, `
UPDATE users
SET accepts_requests=COALESCE($2::boolean, accepts_requests),
    profile_hidden=COALESCE($3::boolean, profile_hidden)
WHERE id=$1
RETURNING `+profileColumns, id, settings.AcceptsRequests, settings.ProfileHidden)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update user settings: %w", err)
	}
	return &profile, nil
}
