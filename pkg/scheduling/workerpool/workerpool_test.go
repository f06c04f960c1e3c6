package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	prom "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/goasync/internal/testutil"
	gferrors "github.com/vnykmshr/goasync/pkg/common/errors"
	"github.com/vnykmshr/goasync/pkg/metrics"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		workerCount int
		queueSize   int
		expectPanic bool
	}{
		{"valid params", 2, 10, false},
		{"single worker", 1, 5, false},
		{"direct handoff", 3, 0, false},
		{"zero workers", 0, 10, true},
		{"negative workers", -1, 10, true},
		{"invalid queue size", 2, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.expectPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Error("expected panic")
					}
				}()
			}

			pool := New(tt.workerCount, tt.queueSize)
			if !tt.expectPanic {
				testutil.AssertEqual(t, pool.Size(), tt.workerCount)
				<-pool.Shutdown()
			}
		})
	}
}

func TestBasicTaskExecution(t *testing.T) {
	pool := New(2, 10)
	defer func() { <-pool.Shutdown() }()

	var executed int32
	for i := 0; i < 5; i++ {
		err := pool.Submit(TaskFunc(func(_ context.Context) error {
			atomic.AddInt32(&executed, 1)
			return nil
		}))
		testutil.AssertNoError(t, err)
	}

	testutil.WaitForInt32(t, &executed, 5, time.Second)
	testutil.AssertEqual(t, pool.TotalSubmitted(), int64(5))
}

func TestShutdownRunsAcceptedTasks(t *testing.T) {
	pool := New(1, 100)

	var executed int32
	for i := 0; i < 50; i++ {
		testutil.AssertNoError(t, pool.Submit(TaskFunc(func(_ context.Context) error {
			atomic.AddInt32(&executed, 1)
			return nil
		})))
	}

	<-pool.Shutdown()

	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(50))
	testutil.AssertEqual(t, pool.TotalCompleted(), int64(50))
}

func TestSubmitAfterShutdown(t *testing.T) {
	pool := New(1, 1)
	<-pool.Shutdown()

	err := pool.Submit(TaskFunc(func(_ context.Context) error { return nil }))
	if !errors.Is(err, gferrors.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

// fillPool occupies the single worker and the single queue slot of a
// New(1, 1) pool. Closing the returned channel lets both tasks finish.
func fillPool(t *testing.T, pool Pool) chan struct{} {
	t.Helper()
	release := make(chan struct{})
	block := TaskFunc(func(_ context.Context) error {
		<-release
		return nil
	})
	testutil.AssertNoError(t, pool.Submit(block))
	testutil.Eventually(t, func() bool { return pool.ActiveWorkers() == 1 }, time.Second, time.Millisecond)
	testutil.AssertNoError(t, pool.TrySubmit(block))
	return release
}

func TestTrySubmit(t *testing.T) {
	pool := New(1, 1)
	release := fillPool(t, pool)

	err := pool.TrySubmit(TaskFunc(func(_ context.Context) error { return nil }))
	if !errors.Is(err, gferrors.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if !gferrors.IsTemporary(err) {
		t.Error("a full queue should be temporary")
	}
	testutil.AssertEqual(t, pool.TotalSubmitted(), int64(2))

	close(release)
	<-pool.Shutdown()
	testutil.AssertEqual(t, pool.TotalCompleted(), int64(2))

	err = pool.TrySubmit(TaskFunc(func(_ context.Context) error { return nil }))
	if !errors.Is(err, gferrors.ErrClosed) {
		t.Fatalf("expected ErrClosed after shutdown, got %v", err)
	}
	testutil.AssertError(t, pool.TrySubmit(nil))
}

func TestSubmitNilTask(t *testing.T) {
	pool := New(1, 1)
	defer func() { <-pool.Shutdown() }()

	testutil.AssertError(t, pool.Submit(nil))
}

func TestSubmitWithCanceledContext(t *testing.T) {
	pool := New(1, 1)
	defer func() { <-pool.Shutdown() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pool.SubmitWithContext(ctx, TaskFunc(func(_ context.Context) error { return nil }))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPanicRecovery(t *testing.T) {
	var (
		mu        sync.Mutex
		results   []Result
		recovered interface{}
	)
	pool := NewWithConfig(Config{
		WorkerCount: 1,
		QueueSize:   2,
		PanicHandler: func(_ Task, r interface{}) {
			mu.Lock()
			recovered = r
			mu.Unlock()
		},
		OnTaskComplete: func(_ int, res Result) {
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		},
	})

	testutil.AssertNoError(t, pool.Submit(TaskFunc(func(_ context.Context) error {
		panic("boom")
	})))
	testutil.AssertNoError(t, pool.Submit(TaskFunc(func(_ context.Context) error {
		return nil
	})))
	<-pool.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	if recovered != "boom" {
		t.Errorf("recovered = %v, want boom", recovered)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Error == nil {
		t.Error("panicking task should report an error")
	}
	if results[1].Error != nil {
		t.Errorf("second task should succeed after a panic, got %v", results[1].Error)
	}
}

func TestTaskTimeout(t *testing.T) {
	errCh := make(chan error, 1)
	pool := NewWithConfig(Config{
		WorkerCount: 1,
		TaskTimeout: 10 * time.Millisecond,
		OnTaskComplete: func(_ int, res Result) {
			errCh <- res.Error
		},
	})
	defer func() { <-pool.Shutdown() }()

	testutil.AssertNoError(t, pool.Submit(TaskFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})))

	select {
	case err := <-errCh:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
	case <-time.After(testutil.TestTimeout):
		t.Fatal("task never completed")
	}
}

func TestMetricsGauges(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	pool := NewWithConfig(Config{Name: "delivery", WorkerCount: 3, Metrics: reg})

	if got := prom.ToFloat64(reg.WorkerPoolSize.WithLabelValues("delivery")); got != 3 {
		t.Errorf("size gauge = %v, want 3", got)
	}

	testutil.AssertNoError(t, pool.Submit(TaskFunc(func(_ context.Context) error { return nil })))
	<-pool.Shutdown()

	if got := prom.ToFloat64(reg.WorkerPoolActive.WithLabelValues("delivery")); got != 0 {
		t.Errorf("active gauge = %v, want 0 after shutdown", got)
	}
}
