/*
Package workerpool provides the goroutine pool that scheduler ports deliver
continuation callbacks on.

It plays the role of a host thread pool: callbacks for different
continuations run concurrently on different workers, while the pool itself
knows nothing about timers or dispatch.

Basic Usage:

	pool := workerpool.New(4, 64)
	defer func() { <-pool.Shutdown() }()

	_ = pool.Submit(workerpool.TaskFunc(func(ctx context.Context) error {
		fmt.Println("running on a worker")
		return nil
	}))

Shutdown semantics:

Shutdown stops accepting tasks immediately. Every task whose Submit returned
nil is still executed before the returned channel closes, so callers can
rely on "accepted means run".

Hooks:

Config.OnTaskComplete observes every task result (error, duration, worker),
and Config.PanicHandler observes recovered panics. Config.Metrics publishes
pool size, active workers and queue depth gauges.
*/
package workerpool
