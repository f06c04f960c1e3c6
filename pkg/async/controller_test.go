package async

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	prom "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/goasync/internal/testutil"
	gferrors "github.com/vnykmshr/goasync/pkg/common/errors"
	"github.com/vnykmshr/goasync/pkg/metrics"
)

// stubProvider retains the controller so tests can dispatch by hand.
type stubProvider struct {
	ctrl   DispatchController
	runErr error
	runs   int
}

func (s *stubProvider) Run(ctrl DispatchController) error {
	s.runs++
	if s.runErr != nil {
		return s.runErr
	}
	s.ctrl = ctrl
	return nil
}

func counting(n *int32) ReceiverFunc[*stubProvider] {
	return func(*stubProvider) { atomic.AddInt32(n, 1) }
}

func TestExecute_DispatchReachesReceiver(t *testing.T) {
	var got int32
	sp := &stubProvider{}
	var seen *stubProvider
	p, err := Execute[*stubProvider](ReceiverFunc[*stubProvider](func(s *stubProvider) {
		seen = s
		got++
	}), sp)
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, sp.runs, 1)
	testutil.AssertEqual(t, sp.ctrl.Dispatch(), true)
	testutil.AssertEqual(t, sp.ctrl.Dispatch(), true)
	testutil.AssertEqual(t, got, int32(2))
	if seen != sp {
		t.Error("receiver should be handed the provider")
	}
	testutil.AssertEqual(t, p.Alive(), true)
}

func TestPromiseClose_DispatchReturnsFalse(t *testing.T) {
	var got int32
	sp := &stubProvider{}
	p, err := Execute[*stubProvider](counting(&got), sp)
	testutil.AssertNoError(t, err)

	p.Close()
	p.Close()

	testutil.AssertEqual(t, p.Alive(), false)
	testutil.AssertEqual(t, sp.ctrl.Dispatch(), false)
	testutil.AssertEqual(t, sp.ctrl.Dispatch(), false)
	testutil.AssertEqual(t, got, int32(0))

	c := sp.ctrl.(*Controller[*stubProvider])
	testutil.AssertEqual(t, c.Refs(), 1)
	sp.ctrl.Release()
	testutil.AssertEqual(t, c.Refs(), 0)
}

func TestRelease_ProviderSideKeepsConsumerDisabled(t *testing.T) {
	var got int32
	sp := &stubProvider{}
	p, _ := Execute[*stubProvider](counting(&got), sp)

	c := sp.ctrl.(*Controller[*stubProvider])
	sp.ctrl.Release()
	testutil.AssertEqual(t, c.Refs(), 1)
	// The consumer still holds its reference, so the controller is alive.
	testutil.AssertEqual(t, p.Alive(), true)

	p.Close()
	testutil.AssertEqual(t, c.Refs(), 0)

	// Extra releases are ignored.
	c.Release()
	testutil.AssertEqual(t, c.Refs(), 0)
}

func TestDispatch_PanickingReceiverIsGone(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	sp := &stubProvider{}
	p, err := Execute[*stubProvider](ReceiverFunc[*stubProvider](func(*stubProvider) {
		panic("receiver blew up")
	}), sp, WithMetrics(reg), WithName("panicky"))
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, sp.ctrl.Dispatch(), false)
	testutil.AssertEqual(t, p.Alive(), false)
	testutil.AssertEqual(t, sp.ctrl.Dispatch(), false)

	testutil.AssertEqual(t, prom.ToFloat64(reg.Dispatches.WithLabelValues("panicky", "panic")), float64(1))
	testutil.AssertEqual(t, prom.ToFloat64(reg.Dispatches.WithLabelValues("panicky", "gone")), float64(1))
}

func TestDispatch_CloseFromInsideReceiver(t *testing.T) {
	var got int32
	sp := &stubProvider{}
	var p *Promise
	var err error
	p, err = Execute[*stubProvider](ReceiverFunc[*stubProvider](func(*stubProvider) {
		got++
		p.Close()
	}), sp, WithMutex(&sync.Mutex{}))
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, sp.ctrl.Dispatch(), true)
	testutil.AssertEqual(t, sp.ctrl.Dispatch(), false)
	testutil.AssertEqual(t, got, int32(1))
}

func TestDispatch_SharedMutexSerializes(t *testing.T) {
	var mu sync.Mutex
	shared := 0
	sp := &stubProvider{}
	_, err := Execute[*stubProvider](ReceiverFunc[*stubProvider](func(*stubProvider) {
		shared++
	}), sp, WithMutex(&mu))
	testutil.AssertNoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sp.ctrl.Dispatch()
			}
		}()
	}
	for j := 0; j < 100; j++ {
		mu.Lock()
		shared++
		mu.Unlock()
	}
	wg.Wait()

	testutil.AssertEqual(t, shared, 900)
}

func TestExecute_RunFailureReleasesBoth(t *testing.T) {
	boom := errors.New("cannot arm")
	sp := &stubProvider{runErr: boom}
	var got int32

	p, err := Execute[*stubProvider](counting(&got), sp, WithName("failing"))
	if p != nil {
		t.Fatal("expected no promise on failure")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped run error, got %v", err)
	}
	var opErr *gferrors.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	testutil.AssertEqual(t, opErr.Module, "async")
}

func TestExecute_Validation(t *testing.T) {
	if _, err := Execute[*stubProvider](nil, &stubProvider{}); !gferrors.IsValidationError(err) {
		t.Errorf("nil receiver: got %v", err)
	}
	var none Provider
	if _, err := Execute[Provider](ReceiverFunc[Provider](func(Provider) {}), none); !gferrors.IsValidationError(err) {
		t.Errorf("nil provider: got %v", err)
	}
}

func TestTracker(t *testing.T) {
	var tr Tracker
	var got int32

	providers := make([]*stubProvider, 3)
	for i := range providers {
		providers[i] = &stubProvider{}
		p, err := Execute[*stubProvider](counting(&got), providers[i])
		testutil.AssertNoError(t, err)
		tr.Track(p)
	}
	tr.Track(nil)
	testutil.AssertEqual(t, tr.Len(), 3)

	testutil.AssertEqual(t, providers[0].ctrl.Dispatch(), true)
	tr.Close()
	testutil.AssertEqual(t, tr.Len(), 0)
	testutil.AssertEqual(t, tr.Closed(), true)

	for _, sp := range providers {
		testutil.AssertEqual(t, sp.ctrl.Dispatch(), false)
	}
	testutil.AssertEqual(t, got, int32(1))

	late := &stubProvider{}
	p, _ := Execute[*stubProvider](counting(&got), late)
	tr.Track(p)
	testutil.AssertEqual(t, p.Alive(), false)
}
