// Package otelhooks records datacache.Hooks events as OpenTelemetry counters.
//
// Keys are never recorded as attributes; only the bounded lock and reason
// labels are.
//
//	reader := sdkmetric.NewManualReader() // or a prometheus exporter
//	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
//	hooks, _ := otelhooks.New(mp)
package otelhooks

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/unkn0wn-root/datacache"
)

const DefaultMeterName = "github.com/unkn0wn-root/datacache"

type Hooks struct {
	regenFailures metric.Int64Counter
	rejections    metric.Int64Counter
	lockTimeouts  metric.Int64Counter
	removed       metric.Int64Counter
	selfHeals     metric.Int64Counter
}

var _ datacache.Hooks = (*Hooks)(nil)

type Option func(*options)

type options struct {
	meterName string
}

// WithMeterName overrides DefaultMeterName.
func WithMeterName(name string) Option {
	return func(o *options) { o.meterName = name }
}

func New(mp metric.MeterProvider, opts ...Option) (*Hooks, error) {
	if mp == nil {
		return nil, errors.New("otelhooks: nil meter provider")
	}
	o := options{meterName: DefaultMeterName}
	for _, opt := range opts {
		opt(&o)
	}
	m := mp.Meter(o.meterName)

	h := &Hooks{}
	var err error
	if h.regenFailures, err = m.Int64Counter("datacache_regeneration_failures_total",
		metric.WithDescription("Regenerator calls that returned an error or panicked")); err != nil {
		return nil, errors.Wrap(err, "otelhooks: regeneration failures counter")
	}
	if h.rejections, err = m.Int64Counter("datacache_store_rejections_total",
		metric.WithDescription("Writes the primary store declined")); err != nil {
		return nil, errors.Wrap(err, "otelhooks: store rejections counter")
	}
	if h.lockTimeouts, err = m.Int64Counter("datacache_lock_timeouts_total",
		metric.WithDescription("Bounded lock waits that expired, by lock")); err != nil {
		return nil, errors.Wrap(err, "otelhooks: lock timeouts counter")
	}
	if h.removed, err = m.Int64Counter("datacache_items_removed_total",
		metric.WithDescription("Entries that left the primary tier, by reason")); err != nil {
		return nil, errors.Wrap(err, "otelhooks: items removed counter")
	}
	if h.selfHeals, err = m.Int64Counter("datacache_self_heals_total",
		metric.WithDescription("Entries deleted on read because they could not be decoded")); err != nil {
		return nil, errors.Wrap(err, "otelhooks: self heals counter")
	}
	return h, nil
}

func (h *Hooks) RegenerationFailed(string, error) {
	h.regenFailures.Add(context.Background(), 1)
}

func (h *Hooks) StoreRejected(string) {
	h.rejections.Add(context.Background(), 1)
}

func (h *Hooks) LockTimeout(_, lock string) {
	h.lockTimeouts.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("lock", lock)))
}

func (h *Hooks) ItemRemoved(_ string, reason datacache.RemovedReason) {
	h.removed.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("reason", reason.String())))
}

func (h *Hooks) SelfHeal(_, reason string) {
	h.selfHeals.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("reason", reason)))
}
