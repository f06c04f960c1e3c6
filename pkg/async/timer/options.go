package timer

import (
	"github.com/vnykmshr/goasync/pkg/logx"
	"github.com/vnykmshr/goasync/pkg/metrics"
)

// Option configures a Timer.
type Option func(*options)

type options struct {
	log     logx.Logger
	metrics *metrics.Registry
	name    string
}

// WithLogger sets the logger for arming and firing events. A zero Logger is ignored.
func WithLogger(l logx.Logger) Option {
	return func(o *options) {
		if !l.IsZero() {
			o.log = l
		}
	}
}

// WithMetrics counts firings and destruction reasons in reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(o *options) { o.metrics = reg }
}

// WithName labels the timer in logs and metrics.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}
