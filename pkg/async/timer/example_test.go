package timer_test

import (
	"fmt"
	"time"

	"github.com/vnykmshr/goasync/pkg/async"
	"github.com/vnykmshr/goasync/pkg/async/timer"
	"github.com/vnykmshr/goasync/pkg/scheduling/hostsched"
)

func ExampleNew_periodic() {
	port := hostsched.NewManual(time.Time{})
	start := port.Now()

	t, err := timer.New(port, timer.Periodic, 100*time.Millisecond, 10*time.Millisecond)
	if err != nil {
		panic(err)
	}
	promise, err := async.Execute[*timer.Timer](async.ReceiverFunc[*timer.Timer](func(*timer.Timer) {
		fmt.Println("tick at", port.Elapsed(start))
	}), t)
	if err != nil {
		panic(err)
	}

	port.Advance(250 * time.Millisecond)
	promise.Close()
	t.Destroy()

	// Output:
	// tick at 10ms
	// tick at 110ms
	// tick at 210ms
}

func ExampleNew_oneOff() {
	port := hostsched.NewManual(time.Time{})

	t, _ := timer.New(port, timer.OneOff, 50*time.Millisecond, 0)
	promise, _ := async.Execute[*timer.Timer](async.ReceiverFunc[*timer.Timer](func(t *timer.Timer) {
		fmt.Println("fired", t.Mode())
	}), t)

	port.Advance(time.Second)
	fmt.Println("destroyed:", t.Destroyed())

	// A one-off timer is the owner's to destroy.
	t.Destroy()
	promise.Close()
	fmt.Println("destroyed:", t.Destroyed())

	// Output:
	// fired one_off
	// destroyed: false
	// destroyed: true
}
