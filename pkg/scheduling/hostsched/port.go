package hostsched

import (
	"sync"
	"sync/atomic"
	"time"
)

// MinPeriod is the smallest interval a repeating action is armed with.
const MinPeriod = time.Millisecond

// Event tells a handler which kind of action fired. Handlers are not
// required to look at it.
type Event int

const (
	// EventTimeout is delivered when a one-shot action fires.
	EventTimeout Event = iota + 1
	// EventInterval is delivered on every firing of a repeating action.
	EventInterval
)

func (e Event) String() string {
	switch e {
	case EventTimeout:
		return "timeout"
	case EventInterval:
		return "interval"
	default:
		return "unknown"
	}
}

// Kind distinguishes one-shot from repeating actions.
type Kind int

const (
	KindOnce Kind = iota
	KindEvery
)

func (k Kind) String() string {
	if k == KindEvery {
		return "every"
	}
	return "once"
}

func (k Kind) event() Event {
	if k == KindEvery {
		return EventInterval
	}
	return EventTimeout
}

// Handler is the callback a Continuation runs for each firing.
type Handler func(ev Event)

// Port is the capability a host scheduler exposes to async providers.
//
// Deliveries to one continuation never overlap; deliveries to different
// continuations may run concurrently. A continuation must have every pending
// action canceled before it is destroyed, and an action may be canceled only
// while it is pending.
type Port interface {
	// Now returns the scheduler's notion of the current time.
	Now() time.Time

	// NewContinuation registers h and returns the handle actions are armed on.
	NewContinuation(h Handler) (*Continuation, error)

	// ScheduleOnce arms a single firing of c after delay.
	ScheduleOnce(c *Continuation, delay time.Duration) (*Action, error)

	// ScheduleEvery arms a repeating firing of c every period, first after one period.
	ScheduleEvery(c *Continuation, period time.Duration) (*Action, error)

	// Cancel disarms a pending action. Canceling an action that already
	// fired or was already canceled returns errors.ErrActionNotPending.
	Cancel(a *Action) error

	// DestroyContinuation releases c; it is never invoked again.
	DestroyContinuation(c *Continuation)
}

// Continuation is a registered callback handle.
type Continuation struct {
	id      uint64
	handler Handler

	// mu serializes deliveries; it is held for the duration of the handler.
	mu        sync.Mutex
	destroyed atomic.Bool
}

func newContinuation(id uint64, h Handler) *Continuation {
	return &Continuation{id: id, handler: h}
}

// ID identifies the continuation in logs.
func (c *Continuation) ID() uint64 { return c.id }

// Destroyed reports whether the continuation was released.
func (c *Continuation) Destroyed() bool { return c.destroyed.Load() }

// deliver runs the handler unless the continuation was destroyed, possibly
// while this delivery was queued. The handler may destroy its own
// continuation; that only flips the flag and never takes mu.
func (c *Continuation) deliver(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed.Load() {
		return false
	}
	c.handler(ev)
	return true
}

type actionState int

const (
	actionPending actionState = iota
	actionFired
	actionCanceled
)

// Action is an opaque token for one armed registration.
type Action struct {
	id     uint64
	cont   *Continuation
	kind   Kind
	period time.Duration
	due    time.Time
	index  int
	state  actionState // guarded by the owning port
}

// ID identifies the action in logs.
func (a *Action) ID() uint64 { return a.id }

// Kind reports whether the action is one-shot or repeating.
func (a *Action) Kind() Kind { return a.kind }
