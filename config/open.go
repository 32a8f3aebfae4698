package config

import (
	"context"

	"github.com/cockroachdb/errors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/datacache/provider"
	bcp "github.com/unkn0wn-root/datacache/provider/bigcache"
	rdp "github.com/unkn0wn-root/datacache/provider/redis"
	rsp "github.com/unkn0wn-root/datacache/provider/ristretto"
	"github.com/unkn0wn-root/datacache/store"
)

// OpenStore builds the primary store for s. ctx bounds background work the
// backend starts (bigcache cleanup). The caller owns the returned store.
func OpenStore(ctx context.Context, s Store) (store.Store, error) {
	if s.Backend == BackendMemory || s.Backend == "" {
		return store.NewMemory(store.MemoryOptions{
			MaxEntries:    s.Memory.MaxEntries,
			SweepInterval: s.SweepInterval.D(),
		}), nil
	}

	var (
		p   provider.Provider
		err error
	)
	switch s.Backend {
	case BackendRistretto:
		p, err = rsp.New(rsp.Config{
			NumCounters: s.Ristretto.NumCounters,
			MaxCost:     s.Ristretto.MaxCost,
			BufferItems: s.Ristretto.BufferItems,
			Metrics:     s.Ristretto.Metrics,
		})
	case BackendBigCache:
		p, err = bcp.New(ctx, bcp.Config{
			LifeWindow:         s.BigCache.LifeWindow.D(),
			CleanWindow:        s.BigCache.CleanWindow.D(),
			MaxEntriesInWindow: s.BigCache.MaxEntriesInWindow,
			MaxEntrySize:       s.BigCache.MaxEntrySize,
			HardMaxCacheSizeMB: s.BigCache.HardMaxCacheSizeMB,
			Shards:             s.BigCache.Shards,
		})
	case BackendRedis:
		p, err = rdp.New(rdp.Config{
			Client: goredis.NewClient(&goredis.Options{
				Addr:     s.Redis.Addr,
				Username: s.Redis.Username,
				Password: s.Redis.Password,
				DB:       s.Redis.DB,
			}),
			CloseClient: true,
		})
	default:
		return nil, errors.Mark(errors.Newf("unknown store backend %q", s.Backend), ErrInvalidConfig)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s provider", s.Backend)
	}

	a, err := store.NewAdapter(p, store.AdapterOptions{SweepInterval: s.SweepInterval.D()})
	if err != nil {
		_ = p.Close(ctx)
		return nil, err
	}
	return a, nil
}

// NewLogger builds a zap logger for l. Wrap it in log/zap to hand it to the
// cache.
func NewLogger(l Log) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "log level %q", l.Level), ErrInvalidConfig)
	}
	zc := zap.NewProductionConfig()
	if l.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
