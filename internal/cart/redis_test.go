package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisBackend(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBackend(client, time.Hour), mr
}

func TestRedisBackendSaveLoad(t *testing.T) {
	ctx := context.Background()
	backend, mr := setupRedisBackend(t)
	require.NoError(t, backend.Ping(ctx))

	store := backend.Open(nil, nil, "01HSESSION")
	require.NoError(t, store.Save(ctx, FromMap(map[int]int{1: 2, 3: 1})))

	stored, err := mr.Get("mercadito:cart:01HSESSION")
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":2,"3":1}`, stored)
	assert.Equal(t, time.Hour, mr.TTL("mercadito:cart:01HSESSION"))

	loaded, err := backend.Open(nil, nil, "01HSESSION").Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.TotalQuantity())
}

func TestRedisBackendMissIsEmpty(t *testing.T) {
	backend, _ := setupRedisBackend(t)
	c, err := backend.Open(nil, nil, "nobody").Load(context.Background())
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestRedisBackendMalformedIsEmpty(t *testing.T) {
	backend, mr := setupRedisBackend(t)
	require.NoError(t, mr.Set("mercadito:cart:s", "not-json"))

	c, err := backend.Open(nil, nil, "s").Load(context.Background())
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestRedisBackendCheckoutDeletesKey(t *testing.T) {
	ctx := context.Background()
	backend, mr := setupRedisBackend(t)
	store := backend.Open(nil, nil, "s")
	require.NoError(t, store.Save(ctx, FromMap(map[int]int{1: 1})))
	require.True(t, mr.Exists("mercadito:cart:s"))

	_, err := Checkout(ctx, store)
	require.NoError(t, err)
	assert.False(t, mr.Exists("mercadito:cart:s"))
}

func TestRedisBackendSurfacesConnectionErrors(t *testing.T) {
	backend, mr := setupRedisBackend(t)
	mr.Close()

	_, err := backend.Open(nil, nil, "s").Load(context.Background())
	assert.Error(t, err)
}
