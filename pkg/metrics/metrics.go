// Package metrics provides Prometheus instrumentation for goasync components.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for goasync components.
//
// Every recording helper is safe on a nil *Registry, which is how components
// run with metrics disabled.
type Registry struct {
	// Scheduler Port Metrics
	ActionsScheduled  *prometheus.CounterVec
	ActionsCanceled   *prometheus.CounterVec
	ActionsFired      *prometheus.CounterVec
	ActionsPending    *prometheus.GaugeVec
	CancelMisuse      *prometheus.CounterVec
	DeliveriesDropped *prometheus.CounterVec
	CallbackDuration  *prometheus.HistogramVec

	// Dispatch Metrics
	Dispatches         *prometheus.CounterVec
	ProvidersDestroyed *prometheus.CounterVec
	ArmFailures        *prometheus.CounterVec
	TimerFirings       *prometheus.CounterVec
	FetchResults       *prometheus.CounterVec
	FetchDuration      *prometheus.HistogramVec

	// Worker Pool Metrics
	WorkerPoolSize   *prometheus.GaugeVec
	WorkerPoolActive *prometheus.GaugeVec
	WorkerPoolQueued *prometheus.GaugeVec
}

// DefaultRegistry is the default metrics registry used by goasync components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{Registry: reg, Namespace: "goasync"})
}

// NewRegistryWithConfig creates a registry honoring the namespace and constant
// labels in cfg.
func NewRegistryWithConfig(cfg Config) *Registry {
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if len(cfg.Labels) > 0 {
		reg = prometheus.WrapRegistererWith(cfg.Labels, reg)
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "goasync"
	}
	factory := promauto.With(reg)

	return &Registry{
		// Scheduler Port Metrics
		ActionsScheduled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "hostsched",
				Name:      "actions_scheduled_total",
				Help:      "Total number of scheduler actions armed",
			},
			[]string{"scheduler_name", "kind"},
		),

		ActionsCanceled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "hostsched",
				Name:      "actions_canceled_total",
				Help:      "Total number of pending scheduler actions canceled",
			},
			[]string{"scheduler_name", "kind"},
		),

		ActionsFired: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "hostsched",
				Name:      "actions_fired_total",
				Help:      "Total number of scheduler action firings",
			},
			[]string{"scheduler_name", "kind"},
		),

		ActionsPending: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "hostsched",
				Name:      "actions_pending",
				Help:      "Number of armed scheduler actions",
			},
			[]string{"scheduler_name"},
		),

		CancelMisuse: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "hostsched",
				Name:      "cancel_misuse_total",
				Help:      "Cancels of actions that already fired or were already canceled",
			},
			[]string{"scheduler_name"},
		),

		DeliveriesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "hostsched",
				Name:      "deliveries_dropped_total",
				Help:      "Firings that could not be handed to the delivery pool",
			},
			[]string{"scheduler_name"},
		),

		CallbackDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "hostsched",
				Name:      "callback_duration_seconds",
				Help:      "Time spent inside continuation callbacks",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"scheduler_name"},
		),

		// Dispatch Metrics
		Dispatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "async",
				Name:      "dispatches_total",
				Help:      "Dispatch attempts by outcome (delivered, gone, panic)",
			},
			[]string{"controller_name", "outcome"},
		),

		ProvidersDestroyed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "async",
				Name:      "providers_destroyed_total",
				Help:      "Async providers destroyed, by provider kind and reason",
			},
			[]string{"provider", "reason"},
		),

		ArmFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "async",
				Name:      "arm_failures_total",
				Help:      "Re-arms rejected by the scheduler from inside a firing",
			},
			[]string{"provider", "provider_name"},
		),

		TimerFirings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "timer",
				Name:      "firings_total",
				Help:      "Timer task firings by mode",
			},
			[]string{"timer_name", "mode"},
		),

		FetchResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "fetch",
				Name:      "results_total",
				Help:      "HTTP fetch completions by result",
			},
			[]string{"fetch_name", "result"},
		),

		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "fetch",
				Name:      "duration_seconds",
				Help:      "Time from Run to completion of HTTP fetches",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"fetch_name"},
		),

		// Worker Pool Metrics
		WorkerPoolSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "size",
				Help:      "Current worker pool size",
			},
			[]string{"pool_name"},
		),

		WorkerPoolActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "active_workers",
				Help:      "Number of active workers",
			},
			[]string{"pool_name"},
		),

		WorkerPoolQueued: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "queued_tasks",
				Help:      "Number of queued tasks",
			},
			[]string{"pool_name"},
		),
	}
}

func (r *Registry) ActionScheduled(scheduler, kind string) {
	if r == nil {
		return
	}
	r.ActionsScheduled.WithLabelValues(scheduler, kind).Inc()
	r.ActionsPending.WithLabelValues(scheduler).Inc()
}

func (r *Registry) ActionCanceled(scheduler, kind string) {
	if r == nil {
		return
	}
	r.ActionsCanceled.WithLabelValues(scheduler, kind).Inc()
	r.ActionsPending.WithLabelValues(scheduler).Dec()
}

// ActionFired records a firing; a one-shot action stops being pending.
func (r *Registry) ActionFired(scheduler, kind string, oneShot bool) {
	if r == nil {
		return
	}
	r.ActionsFired.WithLabelValues(scheduler, kind).Inc()
	if oneShot {
		r.ActionsPending.WithLabelValues(scheduler).Dec()
	}
}

func (r *Registry) ActionsDropped(scheduler string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.ActionsPending.WithLabelValues(scheduler).Sub(float64(n))
}

func (r *Registry) CancelMisused(scheduler string) {
	if r == nil {
		return
	}
	r.CancelMisuse.WithLabelValues(scheduler).Inc()
}

func (r *Registry) DeliveryDropped(scheduler string) {
	if r == nil {
		return
	}
	r.DeliveriesDropped.WithLabelValues(scheduler).Inc()
}

func (r *Registry) CallbackObserved(scheduler string, d time.Duration) {
	if r == nil {
		return
	}
	r.CallbackDuration.WithLabelValues(scheduler).Observe(d.Seconds())
}

func (r *Registry) DispatchObserved(controller, outcome string) {
	if r == nil {
		return
	}
	r.Dispatches.WithLabelValues(controller, outcome).Inc()
}

func (r *Registry) ProviderDestroyed(provider, reason string) {
	if r == nil {
		return
	}
	r.ProvidersDestroyed.WithLabelValues(provider, reason).Inc()
}

// ProviderArmFailed records a provider that could not arm its next firing and
// will not fire again.
func (r *Registry) ProviderArmFailed(provider, name string) {
	if r == nil {
		return
	}
	r.ArmFailures.WithLabelValues(provider, name).Inc()
}

func (r *Registry) TimerFired(name, mode string) {
	if r == nil {
		return
	}
	r.TimerFirings.WithLabelValues(name, mode).Inc()
}

func (r *Registry) FetchCompleted(name, result string, d time.Duration) {
	if r == nil {
		return
	}
	r.FetchResults.WithLabelValues(name, result).Inc()
	r.FetchDuration.WithLabelValues(name).Observe(d.Seconds())
}

func (r *Registry) PoolStats(pool string, size, active, queued int) {
	if r == nil {
		return
	}
	r.WorkerPoolSize.WithLabelValues(pool).Set(float64(size))
	r.WorkerPoolActive.WithLabelValues(pool).Set(float64(active))
	r.WorkerPoolQueued.WithLabelValues(pool).Set(float64(queued))
}
