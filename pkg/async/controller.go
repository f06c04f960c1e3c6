package async

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	gferrors "github.com/vnykmshr/goasync/pkg/common/errors"
	"github.com/vnykmshr/goasync/pkg/common/validation"
	"github.com/vnykmshr/goasync/pkg/logx"
)

const (
	outcomeDelivered = "delivered"
	outcomeGone      = "gone"
	outcomePanic     = "panic"
)

// Controller binds one provider to one receiver. It is created by Execute
// holding two references, one for the Promise and one for the provider.
type Controller[P Provider] struct {
	receiver Receiver[P]
	provider P
	opts     options
	log      logx.Logger

	disabled atomic.Bool
	refs     atomic.Int32
}

var _ DispatchController = (*Controller[Provider])(nil)

func newController[P Provider](receiver Receiver[P], provider P, opts options) *Controller[P] {
	c := &Controller[P]{
		receiver: receiver,
		provider: provider,
		opts:     opts,
		log:      opts.log.With(logx.String("component", "async"), logx.String("controller", opts.name)),
	}
	c.refs.Store(2)
	return c
}

// Dispatch delivers the provider to the receiver. It returns false if the
// consumer disabled the controller, if every reference was released, or if
// the receiver panicked; a panicking receiver is treated as gone.
func (c *Controller[P]) Dispatch() (delivered bool) {
	if !c.live() {
		c.opts.metrics.DispatchObserved(c.opts.name, outcomeGone)
		return false
	}

	if c.opts.mu != nil {
		c.opts.mu.Lock()
		defer c.opts.mu.Unlock()
		// The consumer may have closed while we waited for the lock.
		if !c.live() {
			c.opts.metrics.DispatchObserved(c.opts.name, outcomeGone)
			return false
		}
	}

	defer func() {
		if r := recover(); r != nil {
			c.disabled.Store(true)
			c.opts.metrics.DispatchObserved(c.opts.name, outcomePanic)
			c.log.Error("receiver panicked; treating consumer as gone",
				logx.Any("panic", r),
				logx.Stack(string(debug.Stack())),
			)
			delivered = false
		}
	}()

	c.receiver.HandleAsyncComplete(c.provider)
	c.opts.metrics.DispatchObserved(c.opts.name, outcomeDelivered)
	return true
}

// Release drops one reference. Once none remain the controller is disabled.
func (c *Controller[P]) Release() {
	n := c.refs.Add(-1)
	switch {
	case n == 0:
		c.disabled.Store(true)
		c.log.Debug("controller released")
	case n < 0:
		c.refs.Add(1)
		c.log.Warn("controller released more times than referenced")
	}
}

// Alive reports whether a dispatch would reach the receiver.
func (c *Controller[P]) Alive() bool { return c.live() }

// Refs returns the number of outstanding references.
func (c *Controller[P]) Refs() int { return int(c.refs.Load()) }

func (c *Controller[P]) live() bool {
	return !c.disabled.Load() && c.refs.Load() > 0
}

func (c *Controller[P]) disable() { c.disabled.Store(true) }

// Execute creates a controller between receiver and provider and runs the
// provider. If Run fails both references are released and the error is
// returned.
func Execute[P Provider](receiver Receiver[P], provider P, opts ...Option) (*Promise, error) {
	if receiver == nil {
		return nil, validation.ValidateNotNil("async", "receiver", nil)
	}
	if any(provider) == nil {
		return nil, validation.ValidateNotNil("async", "provider", nil)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := newController(receiver, provider, o)
	p := &Promise{ctrl: c}

	if err := provider.Run(c); err != nil {
		p.Close()
		c.Release()
		return nil, gferrors.NewOperationError("async", "execute", err).
			WithContext(fmt.Sprintf("controller=%s", o.name))
	}
	return p, nil
}

// Promise is the consumer's handle on a controller.
type Promise struct {
	ctrl interface {
		disable()
		Release()
		Alive() bool
	}
	once sync.Once
}

// Close disables the controller and releases the consumer's reference.
// Dispatches that start afterwards return false. Close is idempotent and may
// be called from inside the receiver.
func (p *Promise) Close() {
	p.once.Do(func() {
		p.ctrl.disable()
		p.ctrl.Release()
	})
}

// Alive reports whether the provider can still reach the consumer.
func (p *Promise) Alive() bool { return p.ctrl.Alive() }

// Tracker collects the promises a consumer holds so they can be closed
// together on teardown. The zero value is ready to use.
type Tracker struct {
	mu       sync.Mutex
	promises []*Promise
	closed   bool
}

// Track adds p. Tracking on a closed tracker closes p immediately.
func (t *Tracker) Track(p *Promise) {
	if p == nil {
		return
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		p.Close()
		return
	}
	t.promises = append(t.promises, p)
	t.mu.Unlock()
}

// Close closes every tracked promise.
func (t *Tracker) Close() {
	t.mu.Lock()
	ps := t.promises
	t.promises = nil
	t.closed = true
	t.mu.Unlock()

	for _, p := range ps {
		p.Close()
	}
}

// Closed reports whether Close was called.
func (t *Tracker) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Len returns the number of tracked promises.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.promises)
}
