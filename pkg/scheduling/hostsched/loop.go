package hostsched

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	gferrors "github.com/vnykmshr/goasync/pkg/common/errors"
	"github.com/vnykmshr/goasync/pkg/common/validation"
	"github.com/vnykmshr/goasync/pkg/logx"
	"github.com/vnykmshr/goasync/pkg/scheduling/workerpool"
)

// Loop is a real-time Port. A single goroutine keeps the timer heap and
// hands due firings to a worker pool, so callbacks of different
// continuations may run in parallel while each continuation sees its
// firings one at a time.
type Loop struct {
	cfg     Config
	log     logx.Logger
	warn    *logx.Limited
	pool    workerpool.Pool
	ownPool bool

	mu     sync.Mutex
	q      timerQueue
	closed bool

	nextCont  atomic.Uint64
	wake      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

var _ Port = (*Loop)(nil)

// NewLoop starts a loop. Close must be called to release it.
func NewLoop(cfg Config) (*Loop, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	l := &Loop{
		cfg:  cfg,
		log:  cfg.Logger.With(logx.String("component", "hostsched"), logx.String("scheduler", cfg.Name)),
		pool: cfg.Pool,
		q:    timerQueue{skipMissed: true},
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	l.warn = logx.NewLimited(l.log, 1, 5)
	if l.pool == nil {
		l.pool = workerpool.NewWithConfig(workerpool.Config{
			Name:        cfg.Name,
			WorkerCount: cfg.Workers,
			QueueSize:   cfg.QueueSize,
			Metrics:     cfg.Metrics,
			PanicHandler: func(_ workerpool.Task, r interface{}) {
				l.warn.Error("continuation callback panicked", logx.Any("panic", r))
			},
		})
		l.ownPool = true
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())

	go l.run()
	l.log.Debug("scheduler loop started", logx.Int("workers", cfg.Workers))
	return l, nil
}

// Now returns wall-clock time.
func (l *Loop) Now() time.Time { return time.Now() }

func (l *Loop) NewContinuation(h Handler) (*Continuation, error) {
	if h == nil {
		return nil, validation.ValidateNotNil("hostsched", "handler", nil)
	}
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("hostsched: new continuation: %w", gferrors.ErrClosed)
	}
	return newContinuation(l.nextCont.Add(1), h), nil
}

func (l *Loop) ScheduleOnce(c *Continuation, delay time.Duration) (*Action, error) {
	if delay < 0 {
		delay = 0
	}
	return l.schedule(c, KindOnce, delay)
}

func (l *Loop) ScheduleEvery(c *Continuation, period time.Duration) (*Action, error) {
	return l.schedule(c, KindEvery, clampPeriod(period, l.cfg.MinPeriod))
}

func (l *Loop) schedule(c *Continuation, kind Kind, d time.Duration) (*Action, error) {
	if c == nil {
		return nil, validation.ValidateNotNil("hostsched", "continuation", nil)
	}
	if c.Destroyed() {
		return nil, fmt.Errorf("hostsched: schedule on destroyed continuation %d: %w", c.id, gferrors.ErrClosed)
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, fmt.Errorf("hostsched: schedule %s: %w", kind, gferrors.ErrClosed)
	}
	a := l.q.arm(c, kind, d, time.Now())
	head := a.index == 0
	l.mu.Unlock()

	l.cfg.Metrics.ActionScheduled(l.cfg.Name, kind.String())
	if head {
		l.poke()
	}
	return a, nil
}

// Cancel disarms a. After Close every action is already gone, so canceling
// is a no-op.
func (l *Loop) Cancel(a *Action) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	err := l.q.cancel(a)
	l.mu.Unlock()

	if err != nil {
		l.cfg.Metrics.CancelMisused(l.cfg.Name)
		l.warn.Error("cancel of an action that is not pending", logx.Err(err))
		return err
	}
	l.cfg.Metrics.ActionCanceled(l.cfg.Name, a.kind.String())
	return nil
}

func (l *Loop) DestroyContinuation(c *Continuation) {
	if c == nil {
		return
	}
	c.destroyed.Store(true)
}

// Pending returns the number of armed actions.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.q.len()
}

// Close stops the loop, drops every armed action and waits for in-flight
// callbacks. It must not be called from inside a callback.
func (l *Loop) Close() error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		dropped := l.q.dropAll()
		l.mu.Unlock()
		l.cfg.Metrics.ActionsDropped(l.cfg.Name, dropped)

		l.cancel()
		<-l.done
		if l.ownPool {
			<-l.pool.Shutdown()
		}
		l.log.Debug("scheduler loop stopped", logx.Int("dropped_actions", dropped))
	})
	return nil
}

func (l *Loop) poke() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) run() {
	defer close(l.done)

	var batch []firing
	for {
		l.mu.Lock()
		now := time.Now()
		batch = batch[:0]
		for {
			f, ok := l.q.popDue(now)
			if !ok {
				break
			}
			batch = append(batch, f)
		}
		next, armed := l.q.peek()
		l.mu.Unlock()

		for _, f := range batch {
			l.cfg.Metrics.ActionFired(l.cfg.Name, f.kind.String(), f.kind == KindOnce)
			l.deliver(f)
		}

		wait := l.cfg.MaxSleep
		if armed {
			if d := time.Until(next); d < wait {
				wait = d
			}
		}
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-l.ctx.Done():
			timer.Stop()
			return
		case <-l.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (l *Loop) deliver(f firing) {
	cont, ev := f.cont, f.kind.event()
	err := l.pool.SubmitWithContext(l.ctx, workerpool.TaskFunc(func(context.Context) error {
		start := time.Now()
		if cont.deliver(ev) {
			l.cfg.Metrics.CallbackObserved(l.cfg.Name, time.Since(start))
		}
		return nil
	}))
	if err != nil {
		l.cfg.Metrics.DeliveryDropped(l.cfg.Name)
		l.warn.Warn("firing not delivered",
			logx.Uint64("continuation", cont.id),
			logx.Uint64("action", f.action.id),
			logx.Err(err),
		)
	}
}
