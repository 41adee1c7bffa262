package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/creatia-api/pkg/errors"
)

func newCacheRepo(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	repo := NewCacheRepository(client, zap.NewNop())
	t.Cleanup(func() { _ = repo.Close() })
	return repo, server
}

func TestCacheRepositoryRoundTrip(t *testing.T) {
	repo, server := newCacheRepo(t)
	ctx := context.Background()

	type payload struct {
		Names []string `json:"names"`
	}
	require.NoError(t, repo.Set(ctx, "project_tree:all", payload{Names: []string{"Alpha", "Beta"}}, time.Minute))

	var got payload
	require.NoError(t, repo.Get(ctx, "project_tree:all", &got))
	assert.Equal(t, []string{"Alpha", "Beta"}, got.Names)

	server.FastForward(2 * time.Minute)
	err := repo.Get(ctx, "project_tree:all", &got)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	repo, server := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "project_tree:all", []int{1}, time.Minute))
	require.NoError(t, repo.Set(ctx, "project_tree:v2", []int{2}, time.Minute))
	require.NoError(t, repo.Set(ctx, "other", []int{3}, time.Minute))

	require.NoError(t, repo.DeleteByPattern(ctx, "project_tree:*"))
	assert.False(t, server.Exists("creatia:project_tree:all"))
	assert.False(t, server.Exists("creatia:project_tree:v2"))
	assert.True(t, server.Exists("creatia:other"))
}

func TestCacheRepositoryEvictsCorruptEntries(t *testing.T) {
	repo, server := newCacheRepo(t)
	require.NoError(t, server.Set("creatia:project_tree:list", "{not json"))

	var dest []int
	err := repo.Get(context.Background(), "project_tree:list", &dest)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
	assert.False(t, server.Exists("creatia:project_tree:list"))
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, zap.NewNop())
	ctx := context.Background()

	var dest []int
	assert.ErrorIs(t, repo.Get(ctx, "k", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "k", 1, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "*"))
	assert.NoError(t, repo.Close())
}
