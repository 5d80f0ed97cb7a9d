package redis

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) (*RedisClient, func()) {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	testcontainers.Logger = stdlog.New(io.Discard, "", 0)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(time.Minute),
		},
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client := Wrap(redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())}))
	require.NoError(t, client.Ping(ctx))

	return client, func() {
		_ = client.Close()
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminating redis: %v", err)
		}
	}
}

func TestRedisClient(t *testing.T) {
	client, teardown := setupRedis(t)
	defer teardown()
	ctx := context.Background()

	t.Run("get missing key", func(t *testing.T) {
		_, err := client.Get(ctx, "missing")
		assert.ErrorIs(t, err, Nil)
	})

	t.Run("set and delete", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "k", "v", time.Minute))
		v, err := client.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v", v)

		require.NoError(t, client.Delete(ctx, "k"))
		_, err = client.Get(ctx, "k")
		assert.ErrorIs(t, err, Nil)
	})

	t.Run("setnx only once", func(t *testing.T) {
		ok, err := client.SetNX(ctx, "lock", "a", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = client.SetNX(ctx, "lock", "b", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("compare and delete respects the owner", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "owned", "me", time.Minute))

		deleted, err := client.CompareAndDelete(ctx, "owned", "someone-else")
		require.NoError(t, err)
		assert.False(t, deleted)

		deleted, err = client.CompareAndDelete(ctx, "owned", "me")
		require.NoError(t, err)
		assert.True(t, deleted)

		_, err = client.Get(ctx, "owned")
		assert.ErrorIs(t, err, Nil)
	})
}
