package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateAndValidateSession(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()
	r, err := svc.CreateSession(ctx, "sub-1", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, r)

	sess, err := svc.ValidateRefresh(ctx, r)
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Equal(t, "sub-1", sess.Sub)
	require.NotEmpty(t, sess.ID)

	require.NoError(t, svc.DeleteRefresh(ctx, r))
	sess2, err := svc.ValidateRefresh(ctx, r)
	require.NoError(t, err)
	require.Nil(t, sess2)
}

func TestValidateRefresh_Expired(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &Session{RefreshToken: "old", Sub: "s", ExpiresAt: time.Now().UTC().Add(-time.Minute)}))

	sess, err := svc.ValidateRefresh(ctx, "old")
	require.NoError(t, err)
	require.Nil(t, sess)
	// expired sessions are removed on sight
	left, _ := repo.GetByRefresh(ctx, "old")
	require.Nil(t, left)
}

func TestRotate(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()
	r, err := svc.CreateSession(ctx, "sub-1", time.Hour)
	require.NoError(t, err)

	sess, next, err := svc.Rotate(ctx, r, time.Hour)
	require.NoError(t, err)
	require.Equal(t, "sub-1", sess.Sub)
	require.NotEqual(t, r, next)

	// the old token is spent
	_, _, err = svc.Rotate(ctx, r, time.Hour)
	require.ErrorIs(t, err, ErrInvalidRefresh)

	got, err := svc.ValidateRefresh(ctx, next)
	require.NoError(t, err)
	require.Equal(t, "sub-1", got.Sub)
}
