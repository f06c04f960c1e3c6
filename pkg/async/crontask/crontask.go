package crontask

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vnykmshr/goasync/pkg/async"
	gferrors "github.com/vnykmshr/goasync/pkg/common/errors"
	"github.com/vnykmshr/goasync/pkg/common/validation"
	"github.com/vnykmshr/goasync/pkg/logx"
	"github.com/vnykmshr/goasync/pkg/metrics"
	"github.com/vnykmshr/goasync/pkg/scheduling/hostsched"
)

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Parse validates a cron expression.
func Parse(expr string) (cron.Schedule, error) {
	if err := validation.ValidateNotEmpty("crontask", "expr", expr); err != nil {
		return nil, err
	}
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, gferrors.NewValidationError("crontask", "expr", expr, err.Error()).
			WithHint("use 5 or 6 fields, or a descriptor like @every 1m")
	}
	return sched, nil
}

// Option configures a Task.
type Option func(*Task)

// WithLocation evaluates the schedule in loc (default: UTC).
func WithLocation(loc *time.Location) Option {
	return func(t *Task) {
		if loc != nil {
			t.loc = loc
		}
	}
}

// WithLogger sets the task logger. A zero Logger is ignored.
func WithLogger(l logx.Logger) Option {
	return func(t *Task) {
		if !l.IsZero() {
			t.log = l
		}
	}
}

// WithMetrics counts firings, arm failures and destruction reasons in reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(t *Task) { t.metrics = reg }
}

// WithName labels the task in logs and metrics.
func WithName(name string) Option {
	return func(t *Task) {
		if name != "" {
			t.name = name
		}
	}
}

// Task is an async.Provider firing on a cron schedule until its consumer
// goes away or its owner destroys it.
type Task struct {
	port    hostsched.Port
	expr    string
	sched   cron.Schedule
	loc     *time.Location
	name    string
	log     logx.Logger
	metrics *metrics.Registry

	st atomic.Pointer[state]
}

type state struct {
	cont *hostsched.Continuation

	mu      sync.Mutex
	ran     bool
	ctrl    async.DispatchController
	pending *hostsched.Action
	next    time.Time
}

var _ async.Provider = (*Task)(nil)

// New creates an unarmed task for expr.
func New(port hostsched.Port, expr string, opts ...Option) (*Task, error) {
	if port == nil {
		return nil, validation.ValidateNotNil("crontask", "port", nil)
	}
	sched, err := Parse(expr)
	if err != nil {
		return nil, err
	}

	t := &Task{
		port:  port,
		expr:  expr,
		sched: sched,
		loc:   time.UTC,
		name:  "cron",
		log:   logx.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.With(
		logx.String("component", "crontask"),
		logx.String("task", t.name),
		logx.String("expr", expr),
	)

	s := &state{}
	cont, err := port.NewContinuation(func(hostsched.Event) { t.handle(s) })
	if err != nil {
		return nil, gferrors.NewOperationError("crontask", "new", err)
	}
	s.cont = cont
	t.st.Store(s)
	return t, nil
}

// Run arms the first firing and retains ctrl.
func (t *Task) Run(ctrl async.DispatchController) error {
	if ctrl == nil {
		return validation.ValidateNotNil("crontask", "dispatch_controller", nil)
	}
	s := t.st.Load()
	if s == nil {
		return fmt.Errorf("crontask %s: run: %w", t.name, gferrors.ErrClosed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ran {
		return fmt.Errorf("crontask %s: run: %w", t.name, gferrors.ErrAlreadyRunning)
	}
	s.ran = true
	s.ctrl = ctrl

	if err := t.arm(s); err != nil {
		s.ctrl = nil
		return gferrors.NewOperationError("crontask", "run", err).WithContext(t.name)
	}
	return nil
}

// arm schedules the next matching time. Callers hold s.mu.
func (t *Task) arm(s *state) error {
	now := t.port.Now().In(t.loc)
	next := t.sched.Next(now)
	if next.IsZero() {
		s.next = time.Time{}
		t.log.Warn("schedule has no future activation")
		return nil
	}
	a, err := t.port.ScheduleOnce(s.cont, next.Sub(now))
	if err != nil {
		return err
	}
	s.pending, s.next = a, next
	t.log.Debug("scheduled next activation", logx.Time("next", next))
	return nil
}

func (t *Task) handle(s *state) {
	if t.st.Load() != s {
		return
	}

	s.mu.Lock()
	s.pending, s.next = nil, time.Time{}
	if err := t.arm(s); err != nil {
		t.log.Error("failed to arm next activation", logx.Err(err))
		t.metrics.ProviderArmFailed("crontask", t.name)
	}
	ctrl := s.ctrl
	s.mu.Unlock()

	if ctrl == nil {
		return
	}
	t.metrics.TimerFired(t.name, "cron")

	if ctrl.Dispatch() {
		return
	}
	t.log.Debug("receiver has died, destroying cron task")
	t.destroy(s, "consumer_gone")
}

// Destroy cancels the pending activation and releases the controller. It
// is a no-op after the task destroyed itself.
func (t *Task) Destroy() {
	if s := t.st.Load(); s != nil {
		t.destroy(s, "owner")
	}
}

func (t *Task) destroy(s *state, reason string) {
	if !t.st.CompareAndSwap(s, nil) {
		return
	}

	s.mu.Lock()
	pending, ctrl := s.pending, s.ctrl
	s.pending, s.ctrl, s.next = nil, nil, time.Time{}
	s.mu.Unlock()

	if pending != nil {
		if err := t.port.Cancel(pending); err != nil {
			t.log.Warn("cancel failed", logx.Err(err))
		}
	}
	t.port.DestroyContinuation(s.cont)
	if ctrl != nil {
		ctrl.Release()
	}
	t.metrics.ProviderDestroyed("crontask", reason)
}

// Next returns the next activation, or the zero time when nothing is armed.
func (t *Task) Next() time.Time {
	s := t.st.Load()
	if s == nil {
		return time.Time{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Expr returns the expression the task was created with.
func (t *Task) Expr() string { return t.expr }

// Destroyed reports whether the task was destroyed.
func (t *Task) Destroyed() bool { return t.st.Load() == nil }
