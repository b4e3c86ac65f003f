package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/go-content-platform/internal/models"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testTimeout = 10 * time.Second

// TestMain поднимает Redis в контейнере, если задан GO_TEST_INTEGRATION.
func TestMain(m *testing.M) {
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		os.Exit(m.Run())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start redis testcontainer: %v\n", err)
		os.Exit(1)
	}

	host, err := redisC.Host(ctx)
	if err != nil {
		_ = redisC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		os.Exit(1)
	}

	port, err := redisC.MappedPort(ctx, "6379/tcp")
	if err != nil {
		_ = redisC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get mapped port: %v\n", err)
		os.Exit(1)
	}

	_ = os.Setenv("REDIS_URL", fmt.Sprintf("redis://%s:%s/0", host, port.Port()))

	code := m.Run()

	_ = redisC.Terminate(context.Background())
	os.Exit(code)
}

// mustNewCache — кэш с уникальным префиксом на тест.
func mustNewCache(t *testing.T) *RedisCache {
	t.Helper()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL is not set; run with GO_TEST_INTEGRATION=1")
	}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	c, err := NewRedisCache(ctx, url, "test:"+uuid.NewString()+":", time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func TestNewRedisCache_BadInput(t *testing.T) {
	t.Parallel()

	_, err := NewRedisCache(context.Background(), "://bad", "", time.Minute)
	require.Error(t, err)

	_, err = NewRedisCache(context.Background(), "redis://localhost:6379/0", "", 0)
	require.Error(t, err)
}

func TestKeyPrefix(t *testing.T) {
	t.Parallel()

	c := newWithClient(nil, DefaultPrefix, time.Minute)
	require.Equal(t, "content:category:abc", c.key("abc"))
}

func TestRedisCache_SetGetInvalidate(t *testing.T) {
	c := mustNewCache(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	_, ok, err := c.Get(ctx, "cat1")
	require.NoError(t, err)
	require.False(t, ok)

	cat := &models.Category{ID: "cat1", Name: "Tech", Slug: "tech", PostCount: 3}
	require.NoError(t, c.Set(ctx, cat))

	got, ok, err := c.Get(ctx, "cat1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, cat, got)

	require.NoError(t, c.Invalidate(ctx, "cat1"))
	_, ok, err = c.Get(ctx, "cat1")
	require.NoError(t, err)
	require.False(t, ok)

	require.Equal(t, Stats{Hits: 1, Misses: 2}, c.Stats())
}

func TestRedisCache_TTLApplied(t *testing.T) {
	c := mustNewCache(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	require.NoError(t, c.Set(ctx, &models.Category{ID: "cat2", Name: "Go"}))

	ttl, err := c.rdb.TTL(ctx, c.key("cat2")).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
	require.LessOrEqual(t, ttl, time.Minute)
}

func TestRedisCache_CorruptEntryIsMiss(t *testing.T) {
	c := mustNewCache(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	require.NoError(t, c.rdb.Set(ctx, c.key("bad"), "{not json", time.Minute).Err())

	_, ok, err := c.Get(ctx, "bad")
	require.NoError(t, err)
	require.False(t, ok)

	n, err := c.rdb.Exists(ctx, c.key("bad")).Result()
	require.NoError(t, err)
	require.Zero(t, n)
}
