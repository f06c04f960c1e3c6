package async

import (
	"sync"

	"github.com/vnykmshr/goasync/pkg/logx"
	"github.com/vnykmshr/goasync/pkg/metrics"
)

// Option configures a Controller.
type Option func(*options)

type options struct {
	mu      sync.Locker
	log     logx.Logger
	metrics *metrics.Registry
	name    string
}

func defaultOptions() options {
	return options{
		log:  logx.Nop(),
		name: "default",
	}
}

// WithMutex serializes dispatches with other code holding mu. Receivers that
// share state with other goroutines pass the lock guarding that state.
func WithMutex(mu sync.Locker) Option {
	return func(o *options) { o.mu = mu }
}

// WithLogger sets the logger for dispatch failures. A zero Logger is ignored.
func WithLogger(l logx.Logger) Option {
	return func(o *options) {
		if !l.IsZero() {
			o.log = l
		}
	}
}

// WithMetrics records dispatch outcomes in reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(o *options) { o.metrics = reg }
}

// WithName labels the controller in logs and metrics.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}
