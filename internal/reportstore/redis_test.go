package reportstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assessment-results-server/internal/domain"
)

func TestNewRedisStore_InvalidURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), domain.RedisConfig{URL: "not-a-redis-url"}, time.Hour)
	assert.Error(t, err)
}

func TestRedisStore_KeyLayout(t *testing.T) {
	store := NewRedisStoreWithClient(nil, "", time.Hour)
	assert.Equal(t, "results:s1:report:biological-age", store.key("s1", domain.ReportKey("biological-age")))

	custom := NewRedisStoreWithClient(nil, "tenant-a:", time.Hour)
	assert.Equal(t, "tenant-a:s1:view:biological-age", custom.key("s1", domain.ViewKey("biological-age")))
}

// Live round trip; skipped unless TEST_REDIS_URL is set.
func TestRedisStore_Live(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set, skipping Redis tests")
	}

	ctx := context.Background()
	store, err := NewRedisStore(ctx, domain.RedisConfig{URL: url, KeyPrefix: "results-test:"}, time.Minute)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get(ctx, "s1", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.Set(ctx, "s1", "k", []byte("v")))
	got, err := store.Get(ctx, "s1", "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	require.NoError(t, store.Clear(ctx, "s1", "k"))
	_, err = store.Get(ctx, "s1", "k")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
