package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenyhq/ragserve/internal/core"
)

func newUserService(t *testing.T) *UserService {
	t.Helper()
	s, err := NewUserService(filepath.Join(t.TempDir(), "users.json"), zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	s := newUserService(t)

	user, err := s.Register(ctx, "ops@acme.test", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "ops@acme.test", user.Email)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)

	authed, err := s.Authenticate(ctx, "ops@acme.test", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := newUserService(t)

	_, err := s.Register(ctx, "ops@acme.test", "pw-one")
	require.NoError(t, err)

	_, err = s.Register(ctx, "ops@acme.test", "pw-two")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	ctx := context.Background()
	s := newUserService(t)

	_, err := s.Register(ctx, "ops@acme.test", "correct")
	require.NoError(t, err)

	_, err = s.Authenticate(ctx, "ops@acme.test", "wrong")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = s.Authenticate(ctx, "nobody@acme.test", "whatever")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRegisterValidatesInput(t *testing.T) {
	s := newUserService(t)

	_, err := s.Register(context.Background(), "", "pw")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = s.Register(context.Background(), "a@b.c", "")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestUsersPersistAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.json")

	first, err := NewUserService(path, zap.NewNop())
	require.NoError(t, err)
	_, err = first.Register(ctx, "ops@acme.test", "pw")
	require.NoError(t, err)

	second, err := NewUserService(path, zap.NewNop())
	require.NoError(t, err)
	_, err = second.Authenticate(ctx, "ops@acme.test", "pw")
	assert.NoError(t, err)
}
