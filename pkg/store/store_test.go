package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/stepwise/pkg/tutor"
)

func newTestSession(t *testing.T, question string) *tutor.Session {
	t.Helper()
	session := tutor.NewSession(question, tutor.SubjectPhysics, "")
	session.Steps = []tutor.Step{
		{Title: "Step 1", Content: "first"},
		{Title: "Step 2", Content: "second"},
		{Title: "Step 3", Content: "third"},
	}
	session.Phase = tutor.PhasePresenting
	return session
}

// exerciseService runs the CRUD contract against any Service implementation.
func exerciseService(t *testing.T, svc Service) {
	ctx := context.Background()

	_, err := svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	session := newTestSession(t, "What is torque?")
	require.NoError(t, svc.Save(ctx, session))

	loaded, err := svc.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, loaded.ID)
	assert.Equal(t, "What is torque?", loaded.Question)
	assert.Equal(t, tutor.SubjectPhysics, loaded.Subject)
	require.Len(t, loaded.Steps, 3)
	assert.Equal(t, "second", loaded.Steps[1].Content)

	// Save is an upsert.
	session.Cursor = 2
	session.Phase = tutor.PhaseAwaitingFeedback
	session.UpdatedAt = time.Now().UTC()
	require.NoError(t, svc.Save(ctx, session))

	loaded, err = svc.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Cursor)
	assert.Equal(t, tutor.PhaseAwaitingFeedback, loaded.Phase)

	other := newTestSession(t, "Balance this equation")
	other.UpdatedAt = session.UpdatedAt.Add(time.Second)
	require.NoError(t, svc.Save(ctx, other))

	sessions, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, other.ID, sessions[0].ID)

	require.NoError(t, svc.Delete(ctx, session.ID))
	_, err = svc.Get(ctx, session.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, session.ID), ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	svc := NewMemoryStore()
	defer svc.Close()
	exerciseService(t, svc)
}

func TestMemoryStoreIsolation(t *testing.T) {
	svc := NewMemoryStore()
	ctx := context.Background()

	session := newTestSession(t, "q")
	require.NoError(t, svc.Save(ctx, session))

	// Mutating the caller's copy must not affect the stored snapshot.
	session.Steps[0].Content = "mutated"
	session.Cursor = 99

	loaded, err := svc.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", loaded.Steps[0].Content)
	assert.Equal(t, 0, loaded.Cursor)
}

func TestSQLStore(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	svc, err := NewSQLStore(db, "sqlite")
	require.NoError(t, err)
	defer svc.Close()

	exerciseService(t, svc)
}

func TestNewSQLStoreRejectsUnknownDialect(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQLStore(db, "oracle")
	assert.Error(t, err)

	_, err = NewSQLStore(nil, "sqlite")
	assert.Error(t, err)
}
