package hostsched

import (
	"container/heap"
	"time"

	gferrors "github.com/vnykmshr/goasync/pkg/common/errors"
)

// firing is one due action handed out of the queue for delivery.
type firing struct {
	action *Action
	cont   *Continuation
	kind   Kind
	due    time.Time
}

// timerQueue is the arming state shared by Loop and Manual. It is not
// synchronized; owners guard it with their own mutex.
type timerQueue struct {
	h      actionHeap
	nextID uint64

	// skipMissed resumes a repeating action from now+period when the owner
	// fell more than a period behind, instead of firing the backlog.
	skipMissed bool
}

func (q *timerQueue) id() uint64 {
	q.nextID++
	return q.nextID
}

func (q *timerQueue) arm(c *Continuation, kind Kind, d time.Duration, now time.Time) *Action {
	a := &Action{
		id:    q.id(),
		cont:  c,
		kind:  kind,
		due:   now.Add(d),
		state: actionPending,
	}
	if kind == KindEvery {
		a.period = d
	}
	heap.Push(&q.h, a)
	return a
}

func (q *timerQueue) cancel(a *Action) error {
	if a == nil || a.state != actionPending || a.index < 0 {
		return gferrors.ErrActionNotPending
	}
	heap.Remove(&q.h, a.index)
	a.state = actionCanceled
	return nil
}

func (q *timerQueue) peek() (time.Time, bool) {
	if len(q.h) == 0 {
		return time.Time{}, false
	}
	return q.h[0].due, true
}

// popDue removes the earliest action due at or before limit. A one-shot
// action is marked fired; a repeating one is re-armed one period later.
func (q *timerQueue) popDue(limit time.Time) (firing, bool) {
	if len(q.h) == 0 || q.h[0].due.After(limit) {
		return firing{}, false
	}
	a := q.h[0]
	f := firing{action: a, cont: a.cont, kind: a.kind, due: a.due}

	if a.kind == KindOnce {
		heap.Pop(&q.h)
		a.state = actionFired
		return f, true
	}

	next := a.due.Add(a.period)
	if q.skipMissed && !next.After(limit) {
		next = limit.Add(a.period)
	}
	a.due = next
	heap.Fix(&q.h, a.index)
	return f, true
}

// dropAll disarms everything and returns how many actions were pending.
func (q *timerQueue) dropAll() int {
	n := len(q.h)
	for _, a := range q.h {
		a.state = actionCanceled
		a.index = -1
	}
	q.h = nil
	return n
}

func (q *timerQueue) len() int { return len(q.h) }

func clampPeriod(period, floor time.Duration) time.Duration {
	if period < floor {
		return floor
	}
	return period
}
