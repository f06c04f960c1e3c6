/*
Package goasync provides an asynchronous task dispatch layer: timers, cron
schedules and HTTP fetches that report back to consumers through
reference-counted dispatch controllers, on top of a host scheduler port.

Async core (pkg/async):
  - Provider / DispatchController / Receiver contracts
  - Execute, Promise and Tracker for the consumer side
  - timer: one-off and periodic timers that self-destruct when their
    consumer is gone
  - crontask: cron-expression schedules
  - fetch: HTTP requests as providers
  - redisrecv: a receiver that publishes completions to Redis

Scheduling (pkg/scheduling):
  - hostsched: scheduler port with a real-time Loop and a simulated Manual
  - workerpool: callback delivery pool

Support:
  - config: YAML/JSON configuration
  - logx: structured logging on zerolog
  - metrics: Prometheus instrumentation

Example usage:

	import (
		"github.com/vnykmshr/goasync/pkg/async"
		"github.com/vnykmshr/goasync/pkg/async/timer"
		"github.com/vnykmshr/goasync/pkg/scheduling/hostsched"
	)

	loop, _ := hostsched.NewLoop(hostsched.Config{})
	defer loop.Close()

	t, _ := timer.New(loop, timer.Periodic, time.Second, 0)
	promise, _ := async.Execute[*timer.Timer](async.ReceiverFunc[*timer.Timer](func(*timer.Timer) {
		fmt.Println("tick")
	}), t)

	// When the consumer goes away the timer destroys itself on its next firing.
	defer promise.Close()

See the examples directory for complete programs.
*/
package goasync
