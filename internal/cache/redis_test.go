package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MuhammadAbdiel/aora-app/internal/auth"
	"github.com/MuhammadAbdiel/aora-app/internal/models"
)

func newStore(t *testing.T) (*miniredis.Miniredis, *RedisSessionStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedisSessionStore(rdb)
}

func TestRedisSessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, store := newStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	session := models.Session{
		ID:        "s1",
		AccountID: "a1",
		Secret:    "secret",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, store.Save(ctx, session))
	assert.True(t, mr.Exists(sessionKeyPrefix+"secret"))
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL(sessionKeyPrefix+"secret").Seconds(), 5)

	loaded, err := store.Find(ctx, "secret")
	require.NoError(t, err)
	assert.Equal(t, "s1", loaded.ID)
	assert.Equal(t, "a1", loaded.AccountID)
	assert.Equal(t, "secret", loaded.Secret)
	assert.True(t, loaded.ExpiresAt.Equal(session.ExpiresAt))

	require.NoError(t, store.Delete(ctx, "secret"))
	_, err = store.Find(ctx, "secret")
	require.ErrorIs(t, err, auth.ErrSessionNotFound)
	require.ErrorIs(t, store.Delete(ctx, "secret"), auth.ErrSessionNotFound)
}

func TestRedisSessionStoreExpiry(t *testing.T) {
	ctx := context.Background()
	mr, store := newStore(t)

	now := time.Now()
	require.NoError(t, store.Save(ctx, models.Session{ID: "s1", AccountID: "a1", Secret: "short", ExpiresAt: now.Add(time.Minute)}))

	mr.FastForward(2 * time.Minute)
	_, err := store.Find(ctx, "short")
	require.ErrorIs(t, err, auth.ErrSessionNotFound)

	err = store.Save(ctx, models.Session{ID: "s2", AccountID: "a1", Secret: "stale", ExpiresAt: now.Add(-time.Minute)})
	require.ErrorIs(t, err, auth.ErrSessionExpired)
}

func TestRedisSessionStoreWithManager(t *testing.T) {
	ctx := context.Background()
	_, store := newStore(t)
	manager := auth.NewManager(time.Hour, store)

	session, err := manager.Create(ctx, "account-1")
	require.NoError(t, err)

	resolved, err := manager.Resolve(ctx, session.Secret)
	require.NoError(t, err)
	assert.Equal(t, session.ID, resolved.ID)

	require.NoError(t, manager.Revoke(ctx, session.Secret))
	_, err = manager.Resolve(ctx, session.Secret)
	require.ErrorIs(t, err, auth.ErrSessionNotFound)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	require.NoError(t, client.Close())

	client, err = Connect(context.Background(), mr.Addr())
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = Connect(context.Background(), "redis://%zz")
	require.Error(t, err)
}
