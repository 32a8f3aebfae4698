package genstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSnapshotManyIncludesAllAndZeroForMissing(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	_, err := s.Bump(ctx, "b")
	require.NoError(t, err)
	g, err := s.Bump(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), g)

	got, err := s.SnapshotMany(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]uint64{"a": 0, "b": 2, "c": 0}, got)
}

func TestLocalCleanupPrunesOld(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	_, err := s.Bump(ctx, "old")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = s.Bump(ctx, "fresh")
	require.NoError(t, err)

	s.Cleanup(10 * time.Millisecond)

	g, _ := s.Snapshot(ctx, "old")
	assert.Zero(t, g)
	g, _ = s.Snapshot(ctx, "fresh")
	assert.Equal(t, uint64(1), g)
}

func TestLocalCloseIsIdempotent(t *testing.T) {
	s := NewLocal(time.Millisecond, time.Hour)
	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, s.Close(context.Background()))
}
