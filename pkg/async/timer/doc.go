/*
Package timer provides the one-off and periodic timer provider.

A Timer is constructed unarmed with a mode and its timings, then started
through async.Execute (or Run with any async.DispatchController):

	t, err := timer.New(port, timer.Periodic, 100*time.Millisecond, 10*time.Millisecond)
	if err != nil {
		return err
	}
	promise, err := async.Execute[*timer.Timer](async.ReceiverFunc[*timer.Timer](onTick), t)

The periodic timer above fires at 10ms, 110ms, 210ms and so on. With a zero
initial period the first firing is at 100ms.

Ownership:

A timer is destroyed in exactly one of two ways. If a dispatch returns
false, because the consumer closed its promise, the timer destroys itself
inside that firing. Otherwise the owner calls Destroy. Both paths race for
the same owning handle, so whichever comes first releases the scheduler
registration and the controller; the other is a no-op.

A one-off timer that dispatched successfully is never destroyed for you.
*/
package timer
