package hostsched

import (
	"fmt"
	"sync"
	"time"

	gferrors "github.com/vnykmshr/goasync/pkg/common/errors"
	"github.com/vnykmshr/goasync/pkg/common/validation"
)

// ManualStats counts what a Manual port has been asked to do.
type ManualStats struct {
	ScheduledOnce  int
	ScheduledEvery int
	Canceled       int
	Fired          int
	CancelMisuse   int
	Continuations  int
	Destroyed      int
}

// Manual is a Port driven by a simulated clock. Nothing fires until the
// owner calls Advance or AdvanceTo, and firings are delivered on the calling
// goroutine in due-time order with the clock set to each due time.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	q     timerQueue
	stats ManualStats
	conts uint64

	// advancing guards against re-entrant Advance from a handler.
	advancing bool
}

var _ Port = (*Manual)(nil)

// NewManual returns a Manual port whose clock starts at start, or at the Unix
// epoch when start is zero.
func NewManual(start time.Time) *Manual {
	if start.IsZero() {
		start = time.Unix(0, 0).UTC()
	}
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Elapsed returns simulated time since start.
func (m *Manual) Elapsed(start time.Time) time.Duration {
	return m.Now().Sub(start)
}

func (m *Manual) NewContinuation(h Handler) (*Continuation, error) {
	if h == nil {
		return nil, validation.ValidateNotNil("hostsched", "handler", nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conts++
	m.stats.Continuations++
	return newContinuation(m.conts, h), nil
}

func (m *Manual) ScheduleOnce(c *Continuation, delay time.Duration) (*Action, error) {
	if delay < 0 {
		delay = 0
	}
	return m.schedule(c, KindOnce, delay)
}

func (m *Manual) ScheduleEvery(c *Continuation, period time.Duration) (*Action, error) {
	return m.schedule(c, KindEvery, clampPeriod(period, MinPeriod))
}

func (m *Manual) schedule(c *Continuation, kind Kind, d time.Duration) (*Action, error) {
	if c == nil {
		return nil, validation.ValidateNotNil("hostsched", "continuation", nil)
	}
	if c.Destroyed() {
		return nil, fmt.Errorf("hostsched: schedule on destroyed continuation %d: %w", c.id, gferrors.ErrClosed)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if kind == KindOnce {
		m.stats.ScheduledOnce++
	} else {
		m.stats.ScheduledEvery++
	}
	return m.q.arm(c, kind, d, m.now), nil
}

func (m *Manual) Cancel(a *Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.q.cancel(a); err != nil {
		m.stats.CancelMisuse++
		return err
	}
	m.stats.Canceled++
	return nil
}

func (m *Manual) DestroyContinuation(c *Continuation) {
	if c == nil || c.destroyed.Swap(true) {
		return
	}
	m.mu.Lock()
	m.stats.Destroyed++
	m.mu.Unlock()
}

// Advance moves the clock forward by d, delivering every firing that falls
// due on the way.
func (m *Manual) Advance(d time.Duration) int {
	return m.AdvanceTo(m.Now().Add(d))
}

// AdvanceTo moves the clock to target and returns how many callbacks ran.
// Actions armed by a callback fire within the same call if they fall due
// before target. Calling it from inside a callback panics.
func (m *Manual) AdvanceTo(target time.Time) int {
	m.mu.Lock()
	if m.advancing {
		m.mu.Unlock()
		panic("hostsched: Manual.AdvanceTo called from a callback")
	}
	m.advancing = true
	m.mu.Unlock()

	delivered := 0
	for {
		m.mu.Lock()
		f, ok := m.q.popDue(target)
		if !ok {
			if target.After(m.now) {
				m.now = target
			}
			m.advancing = false
			m.mu.Unlock()
			return delivered
		}
		if f.due.After(m.now) {
			m.now = f.due
		}
		m.stats.Fired++
		m.mu.Unlock()

		if f.cont.deliver(f.kind.event()) {
			delivered++
		}
	}
}

// Pending returns the number of armed actions.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.q.len()
}

// NextDue returns when the earliest armed action fires.
func (m *Manual) NextDue() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.q.peek()
}

// Stats returns a snapshot of the counters.
func (m *Manual) Stats() ManualStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
