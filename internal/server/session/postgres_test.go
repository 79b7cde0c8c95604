package session

import (
	"context"
	"os"
	"testing"
	"time"

	"metarticles/internal/server/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	db, err := database.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.RunMigrations(ctx))

	store := NewPostgresStore(db.Pool)
	token := "test-" + time.Now().Format("150405.000000000")

	require.NoError(t, store.Commit(token, []byte("one"), time.Now().Add(time.Hour)))
	require.NoError(t, store.Commit(token, []byte("two"), time.Now().Add(time.Hour)))
	b, found, err := store.Find(token)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("two"), b)

	require.NoError(t, store.Commit(token, []byte("old"), time.Now().Add(-time.Minute)))
	_, found, err = store.Find(token)
	require.NoError(t, err)
	assert.False(t, found)

	n, err := store.Purge(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	require.NoError(t, store.Delete(token))
}
