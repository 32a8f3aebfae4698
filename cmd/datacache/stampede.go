package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/datacache"
	"github.com/unkn0wn-root/datacache/codec"
	"github.com/unkn0wn-root/datacache/config"
	zaplog "github.com/unkn0wn-root/datacache/log/zap"
)

type stampedeOptions struct {
	Callers int
	Key     string
	Delay   time.Duration
	TTL     time.Duration
}

type stampedeResult struct {
	RunID         string
	Served        int64
	Regenerations int64
	Elapsed       time.Duration
	Stats         datacache.Stats
}

func newStampedeCmd() *cobra.Command {
	var o stampedeOptions
	cmd := &cobra.Command{
		Use:   "stampede",
		Short: "Fire concurrent GetOrCreate calls at one key and count regenerations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			zl, err := config.NewLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = zl.Sync() }()

			ctx := cmd.Context()
			st, err := config.OpenStore(ctx, cfg.Store)
			if err != nil {
				return err
			}
			c, err := datacache.New(datacache.Options[string]{
				Namespace:   cfg.Namespace,
				Store:       st,
				Codec:       codec.String{},
				Logger:      zaplog.Logger{L: zl},
				LockTimeout: cfg.LockTimeout.D(),
			})
			if err != nil {
				_ = st.Close(ctx)
				return err
			}
			defer func() { _ = c.Close(context.WithoutCancel(ctx)) }()

			res, err := runStampede(ctx, c, o)
			if err != nil {
				return err
			}
			zl.Info("stampede finished",
				zap.String("run_id", res.RunID),
				zap.String("backend", cfg.Store.Backend),
				zap.Int64("served", res.Served),
				zap.Int64("regenerations", res.Regenerations),
				zap.Duration("elapsed", res.Elapsed))
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d callers, %d regenerations, %d coalesced, %s\n",
				res.RunID, res.Served, res.Regenerations, res.Stats.CoalescedWaits, res.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVarP(&o.Callers, "callers", "n", 100, "concurrent GetOrCreate calls")
	f.StringVarP(&o.Key, "key", "k", "stampede", "logical key every caller asks for")
	f.DurationVar(&o.Delay, "delay", 50*time.Millisecond, "how long one regeneration takes")
	f.DurationVar(&o.TTL, "ttl", time.Minute, "absolute TTL of the produced value")
	return cmd
}

// runStampede releases all callers at once and returns after every one of
// them has a value.
func runStampede(ctx context.Context, c datacache.Cache[string], o stampedeOptions) (stampedeResult, error) {
	if o.Callers <= 0 {
		return stampedeResult{}, errors.Newf("callers must be positive, got %d", o.Callers)
	}
	res := stampedeResult{RunID: uuid.NewString()}

	var regens, served atomic.Int64
	regen := func(ctx context.Context, req *datacache.Request) (string, bool, error) {
		n := regens.Add(1)
		select {
		case <-time.After(o.Delay):
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
		return fmt.Sprintf("%s#%d", res.RunID, n), true, nil
	}

	start := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < o.Callers; i++ {
		g.Go(func() error {
			<-start
			_, found, err := c.GetOrCreate(gctx, datacache.Request{Key: o.Key, TTL: o.TTL}, regen)
			if err != nil {
				return err
			}
			if !found {
				return errors.Newf("caller got no value for %q", o.Key)
			}
			served.Add(1)
			return nil
		})
	}
	began := time.Now()
	close(start)
	if err := g.Wait(); err != nil {
		return stampedeResult{}, errors.Wrap(err, "stampede")
	}

	res.Elapsed = time.Since(began)
	res.Served = served.Load()
	res.Regenerations = regens.Load()
	res.Stats = c.Stats()
	return res, nil
}
