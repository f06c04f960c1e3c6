package redisrecv

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/goasync/pkg/async"
	gfcontext "github.com/vnykmshr/goasync/pkg/common/context"
	"github.com/vnykmshr/goasync/pkg/common/validation"
	"github.com/vnykmshr/goasync/pkg/logx"
)

// Encoder renders a provider's result as a message payload.
type Encoder[P async.Provider] func(provider P) ([]byte, error)

// Option configures a Receiver.
type Option func(*config)

type config struct {
	timeout     time.Duration
	keepUnheard bool
	log         logx.Logger
}

// WithPublishTimeout bounds each PUBLISH (default: 1s).
func WithPublishTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithKeepUnheard keeps publishing when nobody is subscribed instead of
// treating the consumer as gone.
func WithKeepUnheard() Option {
	return func(c *config) { c.keepUnheard = true }
}

// WithLogger sets the logger for publish failures.
func WithLogger(l logx.Logger) Option {
	return func(c *config) {
		if !l.IsZero() {
			c.log = l
		}
	}
}

// Receiver is an async.Receiver that forwards completions of P to Redis.
type Receiver[P async.Provider] struct {
	async.Tracker

	client  redis.UniversalClient
	channel string
	encode  Encoder[P]
	cfg     config
	log     logx.Logger
	warn    *logx.Limited

	published atomic.Uint64
	failed    atomic.Uint64
}

var _ async.Receiver[async.Provider] = (*Receiver[async.Provider])(nil)

// New creates a receiver publishing to channel through client.
func New[P async.Provider](client redis.UniversalClient, channel string, encode Encoder[P], opts ...Option) (*Receiver[P], error) {
	if client == nil {
		return nil, validation.ValidateNotNil("redisrecv", "client", nil)
	}
	if err := validation.ValidateNotEmpty("redisrecv", "channel", channel); err != nil {
		return nil, err
	}
	if encode == nil {
		return nil, validation.ValidateNotNil("redisrecv", "encode", nil)
	}

	cfg := config{timeout: time.Second, log: logx.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := validation.ValidateNonNegativeDuration("redisrecv", "publish_timeout", cfg.timeout); err != nil {
		return nil, err
	}

	r := &Receiver[P]{
		client:  client,
		channel: channel,
		encode:  encode,
		cfg:     cfg,
		log:     cfg.log.With(logx.String("component", "redisrecv"), logx.String("channel", channel)),
	}
	r.warn = logx.NewLimited(r.log, 1, 5)
	return r, nil
}

// HandleAsyncComplete publishes provider's result. Called by the controller.
func (r *Receiver[P]) HandleAsyncComplete(provider P) {
	payload, err := r.encode(provider)
	if err != nil {
		r.failed.Add(1)
		r.warn.Error("encode failed", logx.Err(err))
		return
	}

	ctx, cancel := gfcontext.WithOptionalTimeout(context.Background(), r.cfg.timeout)
	defer cancel()

	n, err := r.client.Publish(ctx, r.channel, payload).Result()
	if err != nil {
		r.failed.Add(1)
		r.warn.Warn("publish failed", logx.Err(err))
		return
	}
	r.published.Add(1)

	if n == 0 && !r.cfg.keepUnheard {
		r.log.Info("no subscribers left, closing promises", logx.Int("promises", r.Len()))
		r.Close()
	}
}

// Channel returns the channel name.
func (r *Receiver[P]) Channel() string { return r.channel }

// Published returns how many messages Redis accepted.
func (r *Receiver[P]) Published() uint64 { return r.published.Load() }

// Failed returns how many completions could not be published.
func (r *Receiver[P]) Failed() uint64 { return r.failed.Load() }
