package sloghooks

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/datacache"
)

func newHooks(opts Options) (*Hooks, *bytes.Buffer) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(l, opts), &buf
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, ln := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if ln == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(ln), &m))
		out = append(out, m)
	}
	return out
}

func TestKeysAreRedacted(t *testing.T) {
	h, buf := newHooks(Options{})
	h.StoreRejected("dc:user:42")
	h.RegenerationFailed("user:42", errors.New("db down"))

	got := lines(t, buf)
	require.Len(t, got, 2)
	assert.Equal(t, "datacache.store_rejected", got[0]["msg"])
	assert.NotContains(t, buf.String(), "user:42")
	assert.Equal(t, h.redact("dc:user:42"), got[0]["key"])
	assert.Equal(t, "db down", got[1]["err"])
}

func TestCustomRedactor(t *testing.T) {
	h, buf := newHooks(Options{Redact: func(string) string { return "x" }})
	h.LockTimeout("user:1", "key")

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "x", got[0]["key"])
	assert.Equal(t, "key", got[0]["lock"])
}

func TestSampling(t *testing.T) {
	h, buf := newHooks(Options{SelfHealEvery: 3, ItemRemovedEvery: 2})
	for i := 0; i < 6; i++ {
		h.SelfHeal("k", "corrupt")
		h.ItemRemoved("k", datacache.Expired)
	}

	var heals, removed int
	for _, m := range lines(t, buf) {
		switch m["msg"] {
		case "datacache.self_heal":
			heals++
		case "datacache.item_removed":
			removed++
			assert.Equal(t, "expired", m["reason"])
		}
	}
	assert.Equal(t, 2, heals)
	assert.Equal(t, 3, removed)
}

func TestNilLoggerIsQuiet(t *testing.T) {
	h := New(nil, Options{})
	assert.NotPanics(t, func() {
		h.StoreRejected("k")
		h.SelfHeal("k", "corrupt")
		h.ItemRemoved("k", datacache.Removed)
	})
}
