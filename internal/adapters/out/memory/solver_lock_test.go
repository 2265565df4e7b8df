package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolverLock_SecondLockIsRefused(t *testing.T) {
	ctx := t.Context()
	l := NewSolverLock()

	ok, err := l.TryLock(ctx, "optimisation:1:solver", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.TryLock(ctx, "optimisation:1:solver", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.TryLock(ctx, "optimisation:2:solver", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSolverLock_UnlockReleases(t *testing.T) {
	ctx := t.Context()
	l := NewSolverLock()

	_, _ = l.TryLock(ctx, "k", time.Minute)
	require.NoError(t, l.Unlock(ctx, "k"))

	ok, err := l.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSolverLock_ExpiredLockCanBeTaken(t *testing.T) {
	ctx := t.Context()
	now := time.Date(2030, time.March, 4, 9, 0, 0, 0, time.UTC)
	l := NewSolverLock()
	l.clock = func() time.Time { return now }

	_, _ = l.TryLock(ctx, "k", time.Minute)
	now = now.Add(2 * time.Minute)

	ok, err := l.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
