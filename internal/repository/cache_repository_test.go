package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/projecthub-api/pkg/cache"
	appErrors "github.com/noah-isme/projecthub-api/pkg/errors"
)

func TestLRUCacheRepositoryRoundTrip(t *testing.T) {
	repo := NewLRUCacheRepository(cache.NewLRU(8, time.Minute))
	ctx := context.Background()

	var miss []string
	assert.ErrorIs(t, repo.Get(ctx, "files:list:a", &miss), appErrors.ErrCacheMiss)

	require.NoError(t, repo.Set(ctx, "files:list:a", []string{"x", "y"}, 0))
	require.NoError(t, repo.Set(ctx, "projects:1", []string{"z"}, 0))

	var got []string
	require.NoError(t, repo.Get(ctx, "files:list:a", &got))
	assert.Equal(t, []string{"x", "y"}, got)

	require.NoError(t, repo.DeleteByPattern(ctx, "files:list:*"))
	assert.ErrorIs(t, repo.Get(ctx, "files:list:a", &got), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Get(ctx, "projects:1", &got))
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest map[string]string
	assert.ErrorIs(t, repo.Get(ctx, "k", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "k", "v", time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "*"))
	assert.NoError(t, repo.Close())
}
