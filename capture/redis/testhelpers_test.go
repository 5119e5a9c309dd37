//go:build integration

package redis_test

import (
	"context"
	"strings"
	"testing"

	"github.com/marcelsud/webhook-inspector/capture/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	testcontainersredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

/* Test Helpers for Redis Integration Tests
 * Following the pattern from: https://eltonminetto.dev/post/2024-02-15-using-test-helpers/
 */

// SetupRedisContainer starts a Redis testcontainer and returns its address
func SetupRedisContainer(t *testing.T, ctx context.Context) string {
	t.Helper()

	redisContainer, err := testcontainersredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "failed to start Redis container")
	t.Cleanup(func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
	})

	addr, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err, "failed to get Redis connection string")

	return strings.TrimPrefix(addr, "redis://")
}

// CreateTestRepository connects a repository to addr after flushing the database
func CreateTestRepository(t *testing.T, ctx context.Context, addr string) *redis.Repository {
	t.Helper()

	client := createRedisClient(addr)
	defer client.Close()
	require.NoError(t, client.FlushDB(ctx).Err())

	repo, err := redis.NewRepository(addr, "", 0)
	require.NoError(t, err, "failed to create Redis repository")
	t.Cleanup(func() {
		_ = repo.Close(ctx)
	})

	return repo
}

// KeyExists checks if a Redis key exists
func KeyExists(t *testing.T, addr string, key string) bool {
	t.Helper()

	client := createRedisClient(addr)
	defer client.Close()

	exists, err := client.Exists(context.Background(), key).Result()
	require.NoError(t, err)

	return exists > 0
}

// HashField reads one field of a hash, reporting whether it exists
func HashField(t *testing.T, addr, key, field string) (string, bool) {
	t.Helper()

	client := createRedisClient(addr)
	defer client.Close()

	v, err := client.HGet(context.Background(), key, field).Result()
	if err == goredis.Nil {
		return "", false
	}
	require.NoError(t, err)
	return v, true
}

// createRedisClient creates a direct Redis client for testing helpers
func createRedisClient(addr string) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: "",
		DB:       0,
	})
}
