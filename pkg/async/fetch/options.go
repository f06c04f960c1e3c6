package fetch

import (
	"net/http"
	"time"

	"github.com/vnykmshr/goasync/pkg/logx"
	"github.com/vnykmshr/goasync/pkg/metrics"
	"github.com/vnykmshr/goasync/pkg/scheduling/workerpool"
)

// DefaultMaxBodyBytes bounds how much of a response body is kept.
const DefaultMaxBodyBytes = 10 << 20

// Option configures a Fetch.
type Option func(*Fetch)

// WithMethod sets the HTTP method (default: GET).
func WithMethod(method string) Option {
	return func(f *Fetch) {
		if method != "" {
			f.method = method
		}
	}
}

// WithHeader adds a request header.
func WithHeader(key, value string) Option {
	return func(f *Fetch) { f.reqHeader.Add(key, value) }
}

// WithBody sets the request body.
func WithBody(body []byte) Option {
	return func(f *Fetch) { f.reqBody = body }
}

// WithTimeout bounds the whole exchange. Zero means no timeout beyond the
// client's own.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetch) { f.timeout = d }
}

// WithClient sets the HTTP client (default: http.DefaultClient).
func WithClient(c *http.Client) Option {
	return func(f *Fetch) {
		if c != nil {
			f.client = c
		}
	}
}

// WithPool runs the request on pool instead of a dedicated goroutine.
func WithPool(pool workerpool.Pool) Option {
	return func(f *Fetch) { f.pool = pool }
}

// WithMaxBodyBytes truncates response bodies longer than n.
func WithMaxBodyBytes(n int64) Option {
	return func(f *Fetch) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// WithLogger sets the fetch logger. A zero Logger is ignored.
func WithLogger(l logx.Logger) Option {
	return func(f *Fetch) {
		if !l.IsZero() {
			f.log = l
		}
	}
}

// WithMetrics records results and latency in reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(f *Fetch) { f.metrics = reg }
}

// WithName labels the fetch in logs and metrics.
func WithName(name string) Option {
	return func(f *Fetch) {
		if name != "" {
			f.name = name
		}
	}
}
