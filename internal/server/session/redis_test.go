package session

import (
	"context"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ scs.CtxStore = (*RedisStore)(nil)
var _ scs.CtxStore = (*PostgresStore)(nil)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := NewRedisStore(mr.Addr(), "")
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)
	require.NoError(t, store.Ping(ctx))

	_, found, err := store.FindCtx(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.CommitCtx(ctx, "tok", []byte("data"), time.Now().Add(time.Hour)))
	b, found, err := store.Find("tok")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("data"), b)

	ttl := mr.TTL(redisKeyPrefix + "tok")
	assert.Greater(t, ttl, 59*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)

	mr.FastForward(2 * time.Hour)
	_, found, err = store.Find("tok")
	require.NoError(t, err)
	assert.False(t, found, "expired sessions are gone")

	require.NoError(t, store.Commit("tok2", []byte("x"), time.Now().Add(time.Hour)))
	require.NoError(t, store.Delete("tok2"))
	_, found, err = store.Find("tok2")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Commit("tok3", []byte("x"), time.Now().Add(time.Hour)))
	require.NoError(t, store.Commit("tok3", []byte("x"), time.Now().Add(-time.Second)))
	assert.False(t, mr.Exists(redisKeyPrefix+"tok3"), "committing a past expiry deletes")
}

func TestRedisStoreWithManager(t *testing.T) {
	store, _ := newRedisStore(t)
	sm := NewManager(store, Options{Lifetime: time.Hour})

	ctx, err := sm.Load(context.Background(), "")
	require.NoError(t, err)
	sm.Put(ctx, "uid", int64(42))
	token, _, err := sm.Commit(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	ctx, err = sm.Load(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), sm.GetInt64(ctx, "uid"))
}
