package asynchook

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unkn0wn-root/datacache"
)

type blockingHooks struct {
	datacache.NopHooks
	gate chan struct{}
	mu   sync.Mutex
	keys []string
}

func (b *blockingHooks) StoreRejected(k string) {
	<-b.gate
	b.mu.Lock()
	b.keys = append(b.keys, k)
	b.mu.Unlock()
}

func TestDeliversAndDropsWhenFull(t *testing.T) {
	inner := &blockingHooks{gate: make(chan struct{})}
	h := New(inner, 1, 2)

	// one event is taken by the worker and blocks; two fill the queue
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		h.StoreRejected(k)
	}
	close(inner.gate)
	h.Close()

	inner.mu.Lock()
	delivered := len(inner.keys)
	inner.mu.Unlock()
	assert.GreaterOrEqual(t, delivered, 2)
	assert.Equal(t, uint64(5), uint64(delivered)+h.Dropped())

	// after Close everything is dropped, nothing panics
	h.LockTimeout("k", "key")
	assert.Equal(t, uint64(6), uint64(delivered)+h.Dropped())
}
