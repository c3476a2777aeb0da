package cache_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-hosted/cache"
	"github.com/goliatone/go-hosted/projects"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *cache.Store {
	t.Helper()

	db, err := cache.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := cache.New(db, "https://project-ref.example.com")
	require.NoError(t, store.Init(context.Background()))
	return store
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	userID := uuid.New()

	list := []projects.Project{
		{
			ID:          uuid.New(),
			Name:        "alpha",
			Description: "first",
			Plan:        projects.PlanPersonal,
			SocialLinks: map[string]string{"twitter": "https://twitter.com/pepe"},
			UserID:      userID,
		},
		{
			ID:     uuid.New(),
			Name:   "beta",
			Plan:   projects.PlanCreator,
			UserID: userID,
		},
	}

	require.NoError(t, store.Save(ctx, userID, list))

	got, err := store.Load(ctx, userID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, list[0].ID, got[0].ID)
	assert.Equal(t, "alpha", got[0].Name)
	assert.Equal(t, map[string]string{"twitter": "https://twitter.com/pepe"}, got[0].SocialLinks)
	assert.Equal(t, projects.PlanCreator, got[1].Plan)
}

func TestSnapshotMissingIsNotAnError(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Load(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSnapshotResaveReplaces(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	userID := uuid.New()

	first := []projects.Project{{ID: uuid.New(), Name: "old", Plan: projects.PlanPersonal, UserID: userID}}
	second := []projects.Project{
		{ID: uuid.New(), Name: "new-a", Plan: projects.PlanPersonal, UserID: userID},
		{ID: uuid.New(), Name: "new-b", Plan: projects.PlanBusiness, UserID: userID},
	}

	require.NoError(t, store.Save(ctx, userID, first))
	require.NoError(t, store.Save(ctx, userID, second))

	got, err := store.Load(ctx, userID)
	require.NoError(t, err)
	require.Len(t, got, 2, "a re-save replaces the snapshot, it does not append")
	assert.Equal(t, "new-a", got[0].Name)
}

func TestSnapshotsScopedPerUser(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	alice := uuid.New()
	bob := uuid.New()

	require.NoError(t, store.Save(ctx, alice, []projects.Project{
		{ID: uuid.New(), Name: "alice-project", Plan: projects.PlanPersonal, UserID: alice},
	}))

	got, err := store.Load(ctx, bob)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.Load(ctx, alice)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "alice-project", got[0].Name)
}

func TestSnapshotsScopedPerService(t *testing.T) {
	ctx := context.Background()

	db, err := cache.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	prod := cache.New(db, "https://prod.example.com")
	staging := cache.New(db, "https://staging.example.com")
	require.NoError(t, prod.Init(ctx))

	userID := uuid.New()
	require.NoError(t, prod.Save(ctx, userID, []projects.Project{
		{ID: uuid.New(), Name: "prod-project", Plan: projects.PlanPersonal, UserID: userID},
	}))

	got, err := staging.Load(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, got, "snapshots from different services never collide")
}
