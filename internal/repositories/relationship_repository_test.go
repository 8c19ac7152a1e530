package repositories

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relationship-service/internal/models"
)

// scriptedConnector hands out connections whose transactions fail COMMIT with
// the queued errors, in order. An empty queue commits cleanly.
type scriptedConnector struct {
	mu         sync.Mutex
	commitErrs []error
	commits    int
	rollbacks  int
}

func (c *scriptedConnector) Connect(context.Context) (driver.Conn, error) { return &scriptedConn{c: c}, nil }

func (c *scriptedConnector) Driver() driver.Driver { return scriptedDriver{c: c} }

type scriptedDriver struct{ c *scriptedConnector }

func (d scriptedDriver) Open(string) (driver.Conn, error) { return &scriptedConn{c: d.c}, nil }

type scriptedConn struct{ c *scriptedConnector }

func (c *scriptedConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("statements are not supported")
}

func (c *scriptedConn) Close() error { return nil }

func (c *scriptedConn) Begin() (driver.Tx, error) { return &scriptedTx{c: c.c}, nil }

type scriptedTx struct{ c *scriptedConnector }

func (t *scriptedTx) Commit() error {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	t.c.commits++
	if len(t.c.commitErrs) == 0 {
		return nil
	}
	err := t.c.commitErrs[0]
	t.c.commitErrs = t.c.commitErrs[1:]
	return err
}

func (t *scriptedTx) Rollback() error {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	t.c.rollbacks++
	return nil
}

func newScriptedRepository(t *testing.T, commitErrs ...error) (RelationshipRepository, *scriptedConnector) {
	t.Helper()
	connector := &scriptedConnector{commitErrs: commitErrs}
	db := sqlx.NewDb(sql.OpenDB(connector), "postgres")
	t.Cleanup(func() { db.Close() })
	return NewRelationshipRepository(db), connector
}

func TestWithinTxSurfacesCommitFailure(t *testing.T) {
	repo, connector := newScriptedRepository(t, errors.New("commit failed: connection reset"))

	err := repo.WithinTx(context.Background(), func(RelationshipTx) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, 1, connector.commits)
}

func TestWithinTxRollsBackOnCallbackError(t *testing.T) {
	repo, connector := newScriptedRepository(t)
	boom := errors.New("boom")

	err := repo.WithinTx(context.Background(), func(RelationshipTx) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, connector.commits)
	assert.Equal(t, 1, connector.rollbacks)
}

func TestWithinTxRetriesSerializationFailures(t *testing.T) {
	repo, connector := newScriptedRepository(t)

	calls := 0
	err := repo.WithinTx(context.Background(), func(RelationshipTx) error {
		calls++
		if calls == 1 {
			return &pq.Error{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, connector.commits)
}

func TestWithinTxRetriesFailedCommit(t *testing.T) {
	repo, connector := newScriptedRepository(t, &pq.Error{Code: "40001"})

	calls := 0
	err := repo.WithinTx(context.Background(), func(RelationshipTx) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, connector.commits)
}

func TestWithinTxGivesUpOnPersistentDeadlock(t *testing.T) {
	repo, _ := newScriptedRepository(t)

	calls := 0
	err := repo.WithinTx(context.Background(), func(RelationshipTx) error {
		calls++
		return &pq.Error{Code: "40P01"}
	})
	require.Error(t, err)
	var pqErr *pq.Error
	require.True(t, errors.As(err, &pqErr))
	assert.Equal(t, pq.ErrorCode("40P01"), pqErr.Code)
	assert.Equal(t, maxTxAttempts, calls)
}

func TestSaveRejectsUnknownStatus(t *testing.T) {
	store := NewMemoryStore()
	rel := models.NewRelationship(1, 2)
	rel.Status = models.Status("MUTED")

	err := store.WithinTx(context.Background(), func(tx RelationshipTx) error {
		return tx.Save(context.Background(), rel)
	})
	require.ErrorIs(t, err, errInvalidStatus)

	_, err = store.FindByPair(context.Background(), 1, 2)
	require.ErrorIs(t, err, ErrNotFound)
}
