package timer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vnykmshr/goasync/pkg/async"
	gferrors "github.com/vnykmshr/goasync/pkg/common/errors"
	"github.com/vnykmshr/goasync/pkg/common/validation"
	"github.com/vnykmshr/goasync/pkg/logx"
	"github.com/vnykmshr/goasync/pkg/scheduling/hostsched"
)

// Mode selects between a single firing and repeated firings.
type Mode int

const (
	OneOff Mode = iota
	Periodic
)

func (m Mode) String() string {
	switch m {
	case OneOff:
		return "one_off"
	case Periodic:
		return "periodic"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Destruction reasons, as recorded in metrics.
const (
	reasonOwner        = "owner"
	reasonConsumerGone = "consumer_gone"
)

// Timer is an async.Provider that fires once or periodically on a
// hostsched.Port.
type Timer struct {
	port          hostsched.Port
	mode          Mode
	period        time.Duration
	initialPeriod time.Duration
	opts          options
	log           logx.Logger

	// st is the owning handle. It is swapped to nil exactly once, by
	// whichever of Destroy or the consumer-gone path gets there first.
	st atomic.Pointer[state]
}

// state is the scheduling record the timer exclusively owns.
type state struct {
	cont *hostsched.Continuation

	// mu guards the fields below. Firings are serialized by the port, but
	// Destroy may run concurrently with a firing from the owner's goroutine.
	mu       sync.Mutex
	ran      bool
	ctrl     async.DispatchController
	initial  *hostsched.Action
	periodic *hostsched.Action
}

var _ async.Provider = (*Timer)(nil)

// New creates an unarmed timer. For OneOff, period is the delay before the
// single firing and initialPeriod is ignored. For Periodic, a non-zero
// initialPeriod is the delay before the first firing and period separates
// every firing after it. Zero periods are valid.
func New(port hostsched.Port, mode Mode, period, initialPeriod time.Duration, opts ...Option) (*Timer, error) {
	if port == nil {
		return nil, validation.ValidateNotNil("timer", "port", nil)
	}
	if mode != OneOff && mode != Periodic {
		return nil, gferrors.NewValidationError("timer", "mode", mode, "must be OneOff or Periodic")
	}
	if err := validation.ValidateNonNegativeDuration("timer", "period", period); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegativeDuration("timer", "initial_period", initialPeriod); err != nil {
		return nil, err
	}

	o := options{log: logx.Nop(), name: "timer"}
	for _, opt := range opts {
		opt(&o)
	}

	t := &Timer{
		port:          port,
		mode:          mode,
		period:        period,
		initialPeriod: initialPeriod,
		opts:          o,
		log: o.log.With(
			logx.String("component", "timer"),
			logx.String("timer", o.name),
			logx.String("mode", mode.String()),
		),
	}

	s := &state{}
	cont, err := port.NewContinuation(func(hostsched.Event) { t.handle(s) })
	if err != nil {
		return nil, gferrors.NewOperationError("timer", "new", err)
	}
	s.cont = cont
	t.st.Store(s)
	return t, nil
}

// Run arms the timer and retains ctrl. A one-off timer arms a single firing
// at its period. A periodic timer arms a single firing at its initial period
// when that is non-zero, and the repeating firing at its period otherwise.
//
// Run returns ErrAlreadyRunning on a second call and ErrClosed after the
// timer was destroyed. If the port cannot arm, ctrl is not retained.
func (t *Timer) Run(ctrl async.DispatchController) error {
	if ctrl == nil {
		return validation.ValidateNotNil("timer", "dispatch_controller", nil)
	}
	s := t.st.Load()
	if s == nil {
		return fmt.Errorf("timer %s: run: %w", t.opts.name, gferrors.ErrClosed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ran {
		return fmt.Errorf("timer %s: run: %w", t.opts.name, gferrors.ErrAlreadyRunning)
	}
	s.ran = true
	// Set before arming: a zero delay may fire as soon as the port has it,
	// and the firing blocks on mu until Run returns.
	s.ctrl = ctrl

	var err error
	if t.mode == OneOff || t.initialPeriod > 0 {
		delay := t.period
		if t.mode == Periodic {
			delay = t.initialPeriod
		}
		t.log.Debug("scheduling initial/one-off event", logx.Duration("delay", delay))
		s.initial, err = t.port.ScheduleOnce(s.cont, delay)
	} else {
		t.log.Debug("scheduling regular timer events", logx.Duration("period", t.period))
		s.periodic, err = t.port.ScheduleEvery(s.cont, t.period)
	}
	if err != nil {
		s.ctrl = nil
		return gferrors.NewOperationError("timer", "run", err).WithContext(t.opts.name)
	}
	return nil
}

// handle runs on every firing. After a false dispatch it destroys the timer
// and returns without touching s again.
func (t *Timer) handle(s *state) {
	if t.st.Load() != s {
		return
	}

	s.mu.Lock()
	if s.initial != nil {
		t.log.Debug("received initial timer event")
		// The one-shot has fired; Destroy must not cancel it.
		s.initial = nil
		if t.mode == Periodic {
			t.log.Debug("scheduling periodic event now", logx.Duration("period", t.period))
			a, err := t.port.ScheduleEvery(s.cont, t.period)
			if err != nil {
				t.log.Error("failed to arm periodic event", logx.Err(err))
				t.opts.metrics.ProviderArmFailed("timer", t.opts.name)
			} else {
				s.periodic = a
			}
		}
	}
	ctrl := s.ctrl
	s.mu.Unlock()

	if ctrl == nil {
		return
	}
	t.opts.metrics.TimerFired(t.opts.name, t.mode.String())

	if ctrl.Dispatch() {
		return
	}
	t.log.Debug("receiver has died, destroying timer")
	t.destroy(s, reasonConsumerGone)
}

// Destroy cancels whatever is still armed, releases the scheduler
// registration and drops the controller. It is a no-op if the timer already
// destroyed itself. It may be called from the timer's own receiver.
func (t *Timer) Destroy() {
	if s := t.st.Load(); s != nil {
		t.destroy(s, reasonOwner)
	}
}

func (t *Timer) destroy(s *state, reason string) {
	if !t.st.CompareAndSwap(s, nil) {
		return
	}

	s.mu.Lock()
	initial, periodic, ctrl := s.initial, s.periodic, s.ctrl
	s.initial, s.periodic, s.ctrl = nil, nil, nil
	s.mu.Unlock()

	if initial != nil {
		t.log.Debug("canceling initial timer action")
		t.cancel(initial)
	}
	if periodic != nil {
		t.log.Debug("canceling periodic timer action")
		t.cancel(periodic)
	}
	t.log.Debug("destroying continuation", logx.String("reason", reason))
	t.port.DestroyContinuation(s.cont)

	if ctrl != nil {
		ctrl.Release()
	}
	t.opts.metrics.ProviderDestroyed("timer", reason)
}

func (t *Timer) cancel(a *hostsched.Action) {
	if err := t.port.Cancel(a); err != nil {
		t.log.Warn("cancel failed", logx.Uint64("action", a.ID()), logx.Err(err))
	}
}

// Mode returns the timer's mode.
func (t *Timer) Mode() Mode { return t.mode }

// Period returns the delay between firings, or before the only firing of a
// one-off timer.
func (t *Timer) Period() time.Duration { return t.period }

// InitialPeriod returns the delay before the first periodic firing.
func (t *Timer) InitialPeriod() time.Duration { return t.initialPeriod }

// Destroyed reports whether the timer was destroyed by either path.
func (t *Timer) Destroyed() bool { return t.st.Load() == nil }

// Armed reports which scheduler actions the timer currently owns.
func (t *Timer) Armed() (initial, periodic bool) {
	s := t.st.Load()
	if s == nil {
		return false, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initial != nil, s.periodic != nil
}
