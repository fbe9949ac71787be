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

	sess, err := svc.CreateSession(ctx, "jti-1", "user-1", time.Hour)
	require.NoError(t, err)
	require.Equal(t, "user-1", sess.UserID)

	ok, err := svc.IsActive(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, svc.DeleteSession(ctx, "jti-1"))
	ok, err = svc.IsActive(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestExpiredSessionIsInactive(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	ctx := context.Background()

	_, err := svc.CreateSession(ctx, "jti-2", "user-1", time.Minute)
	require.NoError(t, err)

	svc.now = func() time.Time { return base.Add(2 * time.Minute) }
	ok, err := svc.IsActive(ctx, "jti-2")
	require.NoError(t, err)
	require.False(t, ok)

	got, err := repo.Get(ctx, "jti-2")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestUnknownSessionIsInactive(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ok, err := svc.IsActive(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, ok)
}
