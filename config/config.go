// Package config loads datacache settings from YAML and builds the pieces
// the facade needs: the primary store and a logger.
//
//	namespace: user
//	lock_timeout: 5s
//	store:
//	  backend: ristretto
//	  sweep_interval: 1m
//	  ristretto:
//	    max_cost: 67108864
//	log:
//	  level: info
//	  format: json
package config

import (
	"bytes"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/datacache"
)

const (
	BackendMemory    = "memory"
	BackendRistretto = "ristretto"
	BackendBigCache  = "bigcache"
	BackendRedis     = "redis"
)

const (
	DefaultNamespace          = "default"
	DefaultRistrettoCounters  = 1e5
	DefaultRistrettoMaxCost   = 64 << 20
	DefaultRistrettoBuffer    = 64
	DefaultBigCacheLifeWindow = 10 * time.Minute
	DefaultRedisAddr          = "127.0.0.1:6379"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
)

var ErrInvalidConfig = errors.New("datacache config: invalid")

// Duration accepts Go durations plus days and weeks ("1d12h", "2w").
type Duration time.Duration

func (d Duration) D() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := str2duration.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return errors.Wrapf(err, "line %d: duration %q", n.Line, s)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return str2duration.String(time.Duration(d)), nil
}

type Config struct {
	Namespace   string   `yaml:"namespace"`
	LockTimeout Duration `yaml:"lock_timeout"`
	Store       Store    `yaml:"store"`
	Log         Log      `yaml:"log"`
}

type Store struct {
	Backend string `yaml:"backend"`
	// SweepInterval for the store's background scan; negative disables it.
	SweepInterval Duration  `yaml:"sweep_interval"`
	Memory        Memory    `yaml:"memory"`
	Ristretto     Ristretto `yaml:"ristretto"`
	BigCache      BigCache  `yaml:"bigcache"`
	Redis         Redis     `yaml:"redis"`
}

type Memory struct {
	MaxEntries int `yaml:"max_entries"`
}

type Ristretto struct {
	NumCounters int64 `yaml:"num_counters"`
	MaxCost     int64 `yaml:"max_cost"`
	BufferItems int64 `yaml:"buffer_items"`
	Metrics     bool  `yaml:"metrics"`
}

type BigCache struct {
	LifeWindow         Duration `yaml:"life_window"`
	CleanWindow        Duration `yaml:"clean_window"`
	MaxEntriesInWindow int      `yaml:"max_entries_in_window"`
	MaxEntrySize       int      `yaml:"max_entry_size"`
	HardMaxCacheSizeMB int      `yaml:"hard_max_cache_size_mb"`
	Shards             int      `yaml:"shards"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// Default returns a configuration with an in-process memory store.
func Default() Config {
	c := Config{}
	_ = c.Validate()
	return c
}

// Validate fills zero fields with defaults and rejects values that cannot
// be defaulted.
func (c *Config) Validate() error {
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if strings.ContainsAny(c.Namespace, " \t\n") {
		return errors.Mark(errors.Newf("namespace %q contains whitespace", c.Namespace), ErrInvalidConfig)
	}
	if c.LockTimeout < 0 {
		return errors.Mark(errors.Newf("lock_timeout %s is negative", c.LockTimeout.D()), ErrInvalidConfig)
	}
	if c.LockTimeout == 0 {
		c.LockTimeout = Duration(datacache.DefaultLockTimeout)
	}

	s := &c.Store
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	switch s.Backend {
	case "":
		s.Backend = BackendMemory
	case BackendMemory, BackendRistretto, BackendBigCache, BackendRedis:
	default:
		return errors.Mark(errors.Newf("unknown store backend %q", s.Backend), ErrInvalidConfig)
	}
	if s.Memory.MaxEntries < 0 {
		return errors.Mark(errors.Newf("memory.max_entries %d is negative", s.Memory.MaxEntries), ErrInvalidConfig)
	}

	if s.Ristretto.NumCounters <= 0 {
		s.Ristretto.NumCounters = DefaultRistrettoCounters
	}
	if s.Ristretto.MaxCost <= 0 {
		s.Ristretto.MaxCost = DefaultRistrettoMaxCost
	}
	if s.Ristretto.BufferItems <= 0 {
		s.Ristretto.BufferItems = DefaultRistrettoBuffer
	}

	if s.BigCache.LifeWindow <= 0 {
		s.BigCache.LifeWindow = Duration(DefaultBigCacheLifeWindow)
	}
	if s.BigCache.Shards > 0 && s.BigCache.Shards&(s.BigCache.Shards-1) != 0 {
		return errors.Mark(errors.Newf("bigcache.shards %d is not a power of two", s.BigCache.Shards), ErrInvalidConfig)
	}

	if s.Redis.Addr == "" {
		s.Redis.Addr = DefaultRedisAddr
	}

	c.Log.Level = strings.ToLower(c.Log.Level)
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	switch c.Log.Format = strings.ToLower(c.Log.Format); c.Log.Format {
	case "":
		c.Log.Format = DefaultLogFormat
	case "json", "console":
	default:
		return errors.Mark(errors.Newf("unknown log format %q", c.Log.Format), ErrInvalidConfig)
	}
	return nil
}

// Parse decodes YAML and validates the result. Unknown fields are errors.
func Parse(r io.Reader) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Mark(errors.Wrap(err, "decode"), ErrInvalidConfig)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	c, err := Parse(bytes.NewReader(b))
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return c, nil
}
