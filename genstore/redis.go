package genstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares generations between processes and survives restarts.
// With a TTL, idle counters expire; readers then observe 0 and treat the
// dependency as changed.
type Redis struct {
	rdb redis.UniversalClient
	ns  string
	ttl time.Duration
}

var _ GenStore = (*Redis)(nil)

// NewRedis creates a Redis-backed store. ttl <= 0 disables expiry.
func NewRedis(client redis.UniversalClient, namespace string, ttl time.Duration) *Redis {
	return &Redis{rdb: client, ns: namespace, ttl: ttl}
}

func (s *Redis) key(name string) string { return "dcgen:" + s.ns + ":" + name }

func (s *Redis) Snapshot(ctx context.Context, name string) (uint64, error) {
	res, err := s.rdb.Get(ctx, s.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return parseGen(name, res)
}

func (s *Redis) SnapshotMany(ctx context.Context, names []string) (map[string]uint64, error) {
	if len(names) == 0 {
		return map[string]uint64{}, nil
	}
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = s.key(n)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]uint64, len(names))
	for i, v := range vals {
		switch vv := v.(type) {
		case nil:
			out[names[i]] = 0
		case string:
			g, err := parseGen(names[i], vv)
			if err != nil {
				return nil, err
			}
			out[names[i]] = g
		default:
			g, err := parseGen(names[i], fmt.Sprint(vv))
			if err != nil {
				return nil, err
			}
			out[names[i]] = g
		}
	}
	return out, nil
}

// Bump increments the generation; with a TTL, INCR and EXPIRE share one round-trip.
func (s *Redis) Bump(ctx context.Context, name string) (uint64, error) {
	k := s.key(name)
	if s.ttl <= 0 {
		v, err := s.rdb.Incr(ctx, k).Result()
		if err != nil {
			return 0, err
		}
		return uint64(v), nil
	}

	var incr *redis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uint64(incr.Val()), nil
}

// Cleanup is a no-op; Redis expires counters itself when a TTL is set.
func (s *Redis) Cleanup(time.Duration) {}

// Close does not close the client; the caller owns it.
func (s *Redis) Close(context.Context) error { return nil }

func parseGen(name, raw string) (uint64, error) {
	u, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis gen parse at %s: %w", name, err)
	}
	return u, nil
}
