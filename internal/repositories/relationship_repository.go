package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"relationship-service/internal/models"
)

// RelationshipRepository stores one relationship record per unordered pair of users.
type RelationshipRepository interface {
	// WithinTx runs fn in a single storage transaction. Returning an error rolls it back.
	WithinTx(ctx context.Context, fn func(tx RelationshipTx) error) error
	FindByPair(ctx context.Context, a, b int64) (*models.Relationship, error)
	ListByUser(ctx context.Context, userID int64, filter models.ListFilter) ([]models.Relationship, error)
	// SearchCandidates returns users whose username contains fragment, excluding
	// userID itself and every user that already has a record with userID.
	SearchCandidates(ctx context.Context, userID int64, fragment string, limit int) ([]models.UserProfile, error)
}

// RelationshipTx is the transactional view used by state transitions.
// Reads lock the returned row until the transaction ends.
type RelationshipTx interface {
	FindByPair(ctx context.Context, a, b int64) (*models.Relationship, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Relationship, error)
	// Save inserts rel when Version is zero and updates it otherwise.
	Save(ctx context.Context, rel *models.Relationship) error
	Delete(ctx context.Context, rel *models.Relationship) error
}

const relationshipColumns = `id, requester_id, requestee_id, status, version, created_at, updated_at`

type relationshipRepository struct {
	db *sqlx.DB
}

func NewRelationshipRepository(db *sqlx.DB) RelationshipRepository {
	return &relationshipRepository{db: db}
}

// maxTxAttempts bounds retries of serialization failures and deadlocks.
const maxTxAttempts = 5

// WithinTx retries the whole transaction on SQLSTATE 40001/40P01, including
// when the failure is reported at COMMIT.
func (r *relationshipRepository) WithinTx(ctx context.Context, fn func(tx RelationshipTx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = r.runTx(ctx, fn)
		if err == nil || !retryable(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
		}
	}
	return fmt.Errorf("transaction aborted after %d attempts: %w", maxTxAttempts, err)
}

func (r *relationshipRepository) runTx(ctx context.Context, fn func(tx RelationshipTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&relationshipTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func retryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

func (r *relationshipRepository) FindByPair(ctx context.Context, a, b int64) (*models.Relationship, error) {
	return findByPair(ctx, r.db, a, b, false)
}

func (r *relationshipRepository) ListByUser(ctx context.Context, userID int64, filter models.ListFilter) ([]models.Relationship, error) {
	where, err := filterClause(filter)
	if err != nil {
		return nil, err
	}

	var rels []models.Relationship
	err = r.db.SelectContext(ctx, &rels, `
SELECT `+relationshipColumns+`
FROM relationships
WHERE `+where+`
ORDER BY updated_at DESC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list relationships (%s): %w", filter, err)
	}
	return rels, nil
}

func (r *relationshipRepository) SearchCandidates(ctx context.Context, userID int64, fragment string, limit int) ([]models.UserProfile, error) {
	var users []models.UserProfile
	err := r.db.SelectContext(ctx, &users, `
SELECT u.id, u.username, COALESCE(u.avatar_url, '') AS avatar_url, u.profile_hidden, u.accepts_requests
FROM users u
WHERE u.username ILIKE '%' || $2 || '%'
AND u.id <> $1
AND NOT EXISTS (
SELECT 1 FROM relationships r
WHERE (r.requester_id=$1 AND r.requestee_id=u.id) OR (r.requestee_id=$1 AND r.requester_id=u.id)
)
ORDER BY u.username
LIMIT NULLIF($3, 0)
`, userID, escapeLike(fragment), limit)
	if err != nil {
		return nil, fmt.Errorf("search candidates: %w", err)
	}
	return users, nil
}

type relationshipTx struct {
	tx *sqlx.Tx
}

func (t *relationshipTx) FindByPair(ctx context.Context, a, b int64) (*models.Relationship, error) {
	return findByPair(ctx, t.tx, a, b, true)
}

func (t *relationshipTx) FindByID(ctx context.Context, id uuid.UUID) (*models.Relationship, error) {
	var rel models.Relationship
	err := t.tx.GetContext(ctx, &rel, `SELECT `+relationshipColumns+` FROM relationships WHERE id=$1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select relationship by id: %w", err)
	}
	return &rel, nil
}

func (t *relationshipTx) Save(ctx context.Context, rel *models.Relationship) error {
	if !rel.Status.Valid() {
		return fmt.Errorf("%w: %q", errInvalidStatus, rel.Status)
	}
	if rel.Version == 0 {
		return t.insert(ctx, rel)
	}

	err := t.tx.QueryRowxContext(ctx, `
UPDATE relationships
SET status=$2, version=version+1, updated_at=NOW()
WHERE id=$1 AND version=$3
RETURNING version, updated_at
`, rel.ID, rel.Status, rel.Version).Scan(&rel.Version, &rel.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrConflict
		}
		return fmt.Errorf("update relationship: %w", err)
	}
	return nil
}

func (t *relationshipTx) insert(ctx context.Context, rel *models.Relationship) error {
	err := t.tx.QueryRowxContext(ctx, `
INSERT INTO relationships (id, requester_id, requestee_id, status, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, 1, NOW(), NOW())
RETURNING version, created_at, updated_at
`, rel.ID, rel.RequesterID, rel.RequesteeID, rel.Status).Scan(&rel.Version, &rel.CreatedAt, &rel.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert relationship: %w", err)
	}
	return nil
}

func (t *relationshipTx) Delete(ctx context.Context, rel *models.Relationship) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM relationships WHERE id=$1 AND version=$2`, rel.ID, rel.Version)
	if err != nil {
		return fmt.Errorf("delete relationship: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrConflict
	}
	return nil
}

func findByPair(ctx context.Context, q sqlx.QueryerContext, a, b int64, forUpdate bool) (*models.Relationship, error) {
	low, high := models.CanonicalPair(a, b)
	query := `
SELECT ` + relationshipColumns + `
FROM relationships
WHERE LEAST(requester_id, requestee_id)=$1 AND GREATEST(requester_id, requestee_id)=$2
`
	if forUpdate {
		query += "FOR UPDATE"
	}

	var rel models.Relationship
	if err := sqlx.GetContext(ctx, q, &rel, query, low, high); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select relationship by pair: %w", err)
	}
	return &rel, nil
}

func filterClause(filter models.ListFilter) (string, error) {
	switch filter {
	case models.FilterSentPending:
		return `requester_id=$1 AND status='PENDING'`, nil
	case models.FilterReceivedPending:
		return `requestee_id=$1 AND status='PENDING'`, nil
	case models.FilterFriends:
		return `(requester_id=$1 OR requestee_id=$1) AND status='FRIENDS'`, nil
	case models.FilterBlockedByUser:
		return `(requester_id=$1 AND status='REQUESTER_BLOCKED_REQUESTEE') OR (requestee_id=$1 AND status='REQUESTEE_BLOCKED_REQUESTER')`, nil
	case models.FilterBlockingUser:
		return `(requester_id=$1 AND status='REQUESTEE_BLOCKED_REQUESTER') OR (requestee_id=$1 AND status='REQUESTER_BLOCKED_REQUESTEE')`, nil
	}
	return "", fmt.Errorf("unsupported relationship filter %s", filter)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(fragment string) string {
	return likeEscaper.Replace(fragment)
}
