package main

import (
	"bytes"
	"context"
	"testing"

	"metarticles/internal/server/database"
	"metarticles/internal/server/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func(int) ([]byte, error) {
		next := answers[0]
		answers = answers[1:]
		return []byte(next), nil
	}
}

func newIdentity(t *testing.T) *service.IdentityService {
	t.Helper()
	identity := service.NewIdentityService(database.NewMemoryStore())
	identity.HashCost = bcrypt.MinCost
	_, err := identity.Register(context.Background(), service.RegisterInput{
		Username: "alice", Email: "alice@example.com",
		Password: "secret1", ConfirmPassword: "secret1",
	})
	require.NoError(t, err)
	return identity
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("updates password", func(t *testing.T) {
		identity := newIdentity(t)
		stubPasswords(t, "newsecret", "newsecret")
		var out bytes.Buffer
		require.NoError(t, run(ctx, identity, "alice", &out))
		assert.Contains(t, out.String(), "Password updated for alice")

		_, err := identity.Authenticate(ctx, "alice", "newsecret")
		assert.NoError(t, err)
	})

	t.Run("mismatch", func(t *testing.T) {
		identity := newIdentity(t)
		stubPasswords(t, "newsecret", "different")
		assert.EqualError(t, run(ctx, identity, "alice", &bytes.Buffer{}), "passwords do not match")
	})

	t.Run("unknown user", func(t *testing.T) {
		identity := newIdentity(t)
		stubPasswords(t, "newsecret", "newsecret")
		assert.EqualError(t, run(ctx, identity, "bob", &bytes.Buffer{}), `user "bob" not found`)
	})

	t.Run("too short", func(t *testing.T) {
		identity := newIdentity(t)
		stubPasswords(t, "abc", "abc")
		assert.Error(t, run(ctx, identity, "alice", &bytes.Buffer{}))
	})
}
