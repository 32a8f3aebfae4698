// Package promhooks exports datacache.Hooks events as Prometheus counters.
package promhooks

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/datacache"
)

type Hooks struct {
	RegenerationFailures prometheus.Counter
	StoreRejections      prometheus.Counter
	LockTimeouts         *prometheus.CounterVec
	ItemsRemoved         *prometheus.CounterVec
	SelfHeals            *prometheus.CounterVec
}

var _ datacache.Hooks = (*Hooks)(nil)

// New builds the counters under namespace and registers them with reg. A
// nil reg leaves them unregistered.
func New(namespace string, reg prometheus.Registerer) (*Hooks, error) {
	h := &Hooks{
		RegenerationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "datacache",
			Name:      "regeneration_failures_total",
			Help:      "Regenerator calls that returned an error or panicked",
		}),
		StoreRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "datacache",
			Name:      "store_rejections_total",
			Help:      "Writes the primary store declined",
		}),
		LockTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "datacache",
			Name:      "lock_timeouts_total",
			Help:      "Bounded lock waits that expired",
		}, []string{"lock"}),
		ItemsRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "datacache",
			Name:      "items_removed_total",
			Help:      "Entries that left the primary tier",
		}, []string{"reason"}),
		SelfHeals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "datacache",
			Name:      "self_heals_total",
			Help:      "Entries deleted on read because they could not be decoded",
		}, []string{"reason"}),
	}
	if reg == nil {
		return h, nil
	}
	for _, c := range []prometheus.Collector{
		h.RegenerationFailures, h.StoreRejections, h.LockTimeouts, h.ItemsRemoved, h.SelfHeals,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) RegenerationFailed(string, error) { h.RegenerationFailures.Inc() }
func (h *Hooks) StoreRejected(string)             { h.StoreRejections.Inc() }
func (h *Hooks) LockTimeout(_, lock string)       { h.LockTimeouts.WithLabelValues(lock).Inc() }
func (h *Hooks) SelfHeal(_, reason string)        { h.SelfHeals.WithLabelValues(reason).Inc() }

func (h *Hooks) ItemRemoved(_ string, reason datacache.RemovedReason) {
	h.ItemsRemoved.WithLabelValues(reason.String()).Inc()
}
