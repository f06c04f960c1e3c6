package crontask

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	prom "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/goasync/internal/testutil"
	"github.com/vnykmshr/goasync/pkg/async"
	gferrors "github.com/vnykmshr/goasync/pkg/common/errors"
	"github.com/vnykmshr/goasync/pkg/metrics"
	"github.com/vnykmshr/goasync/pkg/scheduling/hostsched"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type recorder struct {
	port *hostsched.Manual
	at   []time.Duration
}

func (r *recorder) receiver() async.ReceiverFunc[*Task] {
	return func(*Task) { r.at = append(r.at, r.port.Elapsed(epoch)) }
}

func run(t *testing.T, expr string, opts ...Option) (*hostsched.Manual, *Task, *recorder, *async.Promise) {
	t.Helper()
	port := hostsched.NewManual(epoch)
	task, err := New(port, expr, opts...)
	testutil.AssertNoError(t, err)
	rec := &recorder{port: port}
	p, err := async.Execute[*Task](rec.receiver(), task)
	testutil.AssertNoError(t, err)
	return port, task, rec, p
}

func assertAt(t *testing.T, got []time.Duration, want ...time.Duration) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("fired at %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("fired at %v, want %v", got, want)
		}
	}
}

func TestEveryDescriptor(t *testing.T) {
	port, task, rec, p := run(t, "@every 5m")
	defer p.Close()

	testutil.AssertEqual(t, task.Next().Equal(epoch.Add(5*time.Minute)), true)
	port.Advance(16 * time.Minute)
	assertAt(t, rec.at, 5*time.Minute, 10*time.Minute, 15*time.Minute)
	testutil.AssertEqual(t, task.Next().Equal(epoch.Add(20*time.Minute)), true)

	task.Destroy()
	testutil.AssertEqual(t, port.Pending(), 0)
	testutil.AssertEqual(t, task.Next().IsZero(), true)
}

func TestSecondsField(t *testing.T) {
	port, task, rec, p := run(t, "*/30 * * * * *")
	defer task.Destroy()
	defer p.Close()

	port.Advance(2 * time.Minute)
	assertAt(t, rec.at, 30*time.Second, time.Minute, 90*time.Second, 2*time.Minute)
}

func TestStandardFiveFields(t *testing.T) {
	port, task, rec, p := run(t, "0 * * * *")
	defer task.Destroy()
	defer p.Close()

	port.Advance(3*time.Hour + time.Minute)
	assertAt(t, rec.at, time.Hour, 2*time.Hour, 3*time.Hour)
}

func TestWithLocation(t *testing.T) {
	plus2 := time.FixedZone("UTC+2", 2*60*60)
	port, task, rec, p := run(t, "0 9 * * *", WithLocation(plus2))
	defer task.Destroy()
	defer p.Close()

	// 09:00 at UTC+2 is 07:00 UTC.
	if want := time.Date(2026, 1, 1, 9, 0, 0, 0, plus2); !task.Next().Equal(want) {
		t.Fatalf("next = %v, want %v", task.Next(), want)
	}
	port.Advance(24 * time.Hour)
	assertAt(t, rec.at, 7*time.Hour)
}

func TestConsumerGoneSelfDestructs(t *testing.T) {
	port, task, rec, p := run(t, "@every 1m")

	port.Advance(2 * time.Minute)
	p.Close()
	port.Advance(10 * time.Minute)

	assertAt(t, rec.at, time.Minute, 2*time.Minute)
	testutil.AssertEqual(t, task.Destroyed(), true)
	testutil.AssertEqual(t, port.Pending(), 0)

	stats := port.Stats()
	testutil.AssertEqual(t, stats.Canceled, 1)
	testutil.AssertEqual(t, stats.CancelMisuse, 0)
	testutil.AssertEqual(t, stats.Destroyed, 1)

	task.Destroy()
	testutil.AssertEqual(t, port.Stats().Destroyed, 1)
}

func TestRunMisuse(t *testing.T) {
	port := hostsched.NewManual(epoch)
	task, err := New(port, "@hourly")
	testutil.AssertNoError(t, err)

	rec := &recorder{port: port}
	p, err := async.Execute[*Task](rec.receiver(), task)
	testutil.AssertNoError(t, err)
	defer p.Close()

	if _, err := async.Execute[*Task](rec.receiver(), task); !errors.Is(err, gferrors.ErrAlreadyRunning) {
		t.Fatalf("second run: got %v", err)
	}

	task.Destroy()
	if _, err := async.Execute[*Task](rec.receiver(), task); !errors.Is(err, gferrors.ErrClosed) {
		t.Fatalf("run after destroy: got %v", err)
	}
}

func TestParse(t *testing.T) {
	valid := []string{"@daily", "@every 90s", "*/5 * * * *", "0 30 9 * * MON-FRI"}
	for _, expr := range valid {
		if _, err := Parse(expr); err != nil {
			t.Errorf("Parse(%q): %v", expr, err)
		}
	}

	invalid := []string{"", "not a cron", "* * *", "61 * * * *"}
	for _, expr := range invalid {
		if _, err := Parse(expr); !gferrors.IsValidationError(err) {
			t.Errorf("Parse(%q): expected validation error, got %v", expr, err)
		}
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, "@hourly"); !gferrors.IsValidationError(err) {
		t.Errorf("nil port: got %v", err)
	}
	if _, err := New(hostsched.NewManual(epoch), "bogus"); !gferrors.IsValidationError(err) {
		t.Errorf("bad expr: got %v", err)
	}
}

// onceLimit accepts the first n one-shot schedules and rejects the rest.
type onceLimit struct {
	*hostsched.Manual
	n int
}

func (p *onceLimit) ScheduleOnce(c *hostsched.Continuation, d time.Duration) (*hostsched.Action, error) {
	if p.n == 0 {
		return nil, gferrors.ErrClosed
	}
	p.n--
	return p.Manual.ScheduleOnce(c, d)
}

func TestRearmFailureStopsTask(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	manual := hostsched.NewManual(epoch)
	task, err := New(&onceLimit{Manual: manual, n: 1}, "@every 1m", WithName("limited"), WithMetrics(reg))
	testutil.AssertNoError(t, err)

	fired := testutil.NewCallbackTracker()
	p, err := async.Execute[*Task](async.ReceiverFunc[*Task](func(*Task) { fired.Record() }), task)
	testutil.AssertNoError(t, err)
	defer p.Close()

	manual.Advance(5 * time.Minute)
	fired.AssertCallCount(t, 1)
	testutil.AssertEqual(t, task.Next().IsZero(), true)
	testutil.AssertEqual(t, prom.ToFloat64(reg.ArmFailures.WithLabelValues("crontask", "limited")), float64(1))

	task.Destroy()
	testutil.AssertEqual(t, manual.Stats().Canceled, 0)
	testutil.AssertEqual(t, manual.Stats().CancelMisuse, 0)
}
