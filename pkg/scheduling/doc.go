/*
Package scheduling groups the execution primitives goasync providers run on.

  - hostsched: the scheduler port (continuations, one-shot and repeating
    actions, cancel) with a real-time Loop and a simulated-clock Manual
  - workerpool: fixed worker pool the Loop delivers callbacks on

Scheduler Loop:

	loop, err := hostsched.NewLoop(hostsched.Config{Workers: 4})
	if err != nil {
		return err
	}
	defer loop.Close()

	c, _ := loop.NewContinuation(func(ev hostsched.Event) {
		fmt.Println("fired:", ev)
	})
	a, _ := loop.ScheduleEvery(c, time.Second)

	// Cancel while still pending, then release the continuation.
	_ = loop.Cancel(a)
	loop.DestroyContinuation(c)

Worker Pool:

	pool := workerpool.New(4, 100) // 4 workers, queue size 100
	defer func() { <-pool.Shutdown() }()

	_ = pool.Submit(workerpool.TaskFunc(func(ctx context.Context) error {
		return nil
	}))

Both are safe for concurrent use.
*/
package scheduling
