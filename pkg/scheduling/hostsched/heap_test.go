package hostsched

import (
	"container/heap"
	"testing"
	"time"
)

func TestActionHeapOrdering(t *testing.T) {
	base := time.Unix(0, 0)
	h := &actionHeap{}

	heap.Push(h, &Action{id: 1, due: base.Add(3 * time.Second)})
	heap.Push(h, &Action{id: 2, due: base.Add(1 * time.Second)})
	heap.Push(h, &Action{id: 3, due: base.Add(2 * time.Second)})

	want := []uint64{2, 3, 1}
	for i, id := range want {
		a := heap.Pop(h).(*Action)
		if a.id != id {
			t.Errorf("pop %d: got action %d, want %d", i, a.id, id)
		}
		if a.index != -1 {
			t.Errorf("popped action should have index -1, got %d", a.index)
		}
	}
}

func TestActionHeapEqualDueIsFIFO(t *testing.T) {
	same := time.Unix(100, 0)
	h := &actionHeap{}

	for _, id := range []uint64{5, 3, 4} {
		heap.Push(h, &Action{id: id, due: same})
	}

	for _, want := range []uint64{3, 4, 5} {
		if got := heap.Pop(h).(*Action).id; got != want {
			t.Errorf("got %d, want %d", got, want)
		}
	}
}

func TestTimerQueueSkipMissed(t *testing.T) {
	base := time.Unix(0, 0)
	q := timerQueue{skipMissed: true}
	c := newContinuation(1, func(Event) {})
	q.arm(c, KindEvery, 10*time.Millisecond, base)

	// The owner wakes up 35ms late: one firing, then resume from now.
	late := base.Add(45 * time.Millisecond)
	if _, ok := q.popDue(late); !ok {
		t.Fatal("expected a due firing")
	}
	if _, ok := q.popDue(late); ok {
		t.Fatal("backlog should be skipped")
	}
	next, _ := q.peek()
	if want := late.Add(10 * time.Millisecond); !next.Equal(want) {
		t.Errorf("next due = %v, want %v", next.Sub(base), want.Sub(base))
	}
}
