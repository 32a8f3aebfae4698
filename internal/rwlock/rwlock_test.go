package rwlock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadersShare(t *testing.T) {
	m := NewRWMutex()
	ctx := context.Background()

	u1, err := m.RLock(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	u2, err := m.RLock(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	u1()
	u2()
}

func TestWriterExcludesReaders(t *testing.T) {
	m := NewRWMutex()
	ctx := context.Background()

	unlock, err := m.Lock(ctx, time.Second)
	require.NoError(t, err)

	_, err = m.RLock(ctx, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)

	unlock()
	r, err := m.RLock(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	r()
}

func TestReaderExcludesWriter(t *testing.T) {
	m := NewRWMutex()
	ctx := context.Background()

	r, err := m.RLock(ctx, time.Second)
	require.NoError(t, err)
	_, err = m.Lock(ctx, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	r()

	w, err := m.Lock(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	w()
}

func TestParentCancellationIsNotTimeout(t *testing.T) {
	m := NewMutex()
	unlock, err := m.Lock(context.Background(), time.Second)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err = m.Lock(ctx, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestUnlockIsIdempotent(t *testing.T) {
	m := NewMutex()
	unlock, err := m.Lock(context.Background(), time.Second)
	require.NoError(t, err)
	unlock()
	unlock() // second call must not over-release

	u1, ok := m.TryLock()
	require.True(t, ok)
	_, ok = m.TryLock()
	assert.False(t, ok)
	u1()
}

func TestMutexSerializes(t *testing.T) {
	m := NewMutex()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(context.Background(), 5*time.Second)
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}
