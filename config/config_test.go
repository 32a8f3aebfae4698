package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/datacache"
	"github.com/unkn0wn-root/datacache/store"
)

func TestDefaults(t *testing.T) {
	c := Default()
	assert.Equal(t, DefaultNamespace, c.Namespace)
	assert.Equal(t, datacache.DefaultLockTimeout, c.LockTimeout.D())
	assert.Equal(t, BackendMemory, c.Store.Backend)
	assert.Equal(t, int64(DefaultRistrettoMaxCost), c.Store.Ristretto.MaxCost)
	assert.Equal(t, DefaultBigCacheLifeWindow, c.Store.BigCache.LifeWindow.D())
	assert.Equal(t, DefaultRedisAddr, c.Store.Redis.Addr)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, "json", c.Log.Format)
}

func TestParse(t *testing.T) {
	c, err := Parse(strings.NewReader(`
namespace: user
lock_timeout: 250ms
store:
  backend: BigCache
  sweep_interval: -1s
  bigcache:
    life_window: 1d
    shards: 16
log:
  level: DEBUG
  format: console
`))
	require.NoError(t, err)
	assert.Equal(t, "user", c.Namespace)
	assert.Equal(t, 250*time.Millisecond, c.LockTimeout.D())
	assert.Equal(t, BackendBigCache, c.Store.Backend)
	assert.Equal(t, -time.Second, c.Store.SweepInterval.D())
	assert.Equal(t, 24*time.Hour, c.Store.BigCache.LifeWindow.D())
	assert.Equal(t, 16, c.Store.BigCache.Shards)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "console", c.Log.Format)
}

func TestParseEmptyIsDefault(t *testing.T) {
	c, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestParseRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown field":   "nope: 1",
		"bad duration":    "lock_timeout: soon",
		"negative lock":   "lock_timeout: -1s",
		"unknown backend": "store: {backend: etcd}",
		"shards":          "store: {bigcache: {shards: 3}}",
		"max entries":     "store: {memory: {max_entries: -1}}",
		"log format":      "log: {format: xml}",
		"namespace":       "namespace: a b",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "%v", err)
		})
	}
}

func TestDurationMarshal(t *testing.T) {
	out, err := yaml.Marshal(struct {
		D Duration `yaml:"d"`
	}{Duration(36 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, "d: 1d12h\n", string(out))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datacache.yaml")
	require.NoError(t, os.WriteFile(path, []byte("namespace: orders\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "orders", c.Namespace)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestOpenStoreBackends(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []string{BackendMemory, BackendRistretto, BackendBigCache} {
		t.Run(backend, func(t *testing.T) {
			c := Default()
			c.Store.Backend = backend
			c.Store.SweepInterval = Duration(-1)
			require.NoError(t, c.Validate())

			st, err := OpenStore(ctx, c.Store)
			require.NoError(t, err)
			defer st.Close(ctx)

			ok, err := st.Set(ctx, "dc:test:k", []byte("v"), store.Item{SlidingExpiration: time.Minute})
			require.NoError(t, err)
			require.True(t, ok)

			got, found, err := st.Get(ctx, "dc:test:k")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, []byte("v"), got)
		})
	}
}

func TestOpenStoreUnknown(t *testing.T) {
	_, err := OpenStore(context.Background(), Store{Backend: "etcd"})
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger(Log{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	_, err = NewLogger(Log{Level: "loud"})
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}
