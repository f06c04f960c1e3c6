/*
Package hostsched defines the scheduler port that async providers arm their
timers with, and ships two implementations of it.

The port speaks in continuations and actions. A Continuation is a
registered callback; an Action is an opaque token for one armed firing,
either one-shot (ScheduleOnce) or repeating (ScheduleEvery). Providers keep
the tokens they still own and cancel them before destroying their
continuation; a token that already fired is dropped, never canceled.

Loop:

Loop is the production port. One goroutine owns a min-heap of actions keyed
by due time and hands due firings to a workerpool.Pool:

	loop, err := hostsched.NewLoop(hostsched.Config{Name: "main", Workers: 4})
	if err != nil {
		return err
	}
	defer loop.Close()

Deliveries to the same continuation are serialized, deliveries to different
continuations are not. Repeating actions are fixed-rate; a loop that fell
more than one period behind resumes from now instead of bursting.

Manual:

Manual is a deterministic port for tests and simulations. Its clock only
moves when told to:

	port := hostsched.NewManual(time.Time{})
	// arm things...
	port.Advance(100 * time.Millisecond) // runs everything due, in order

Misuse:

Canceling an action that already fired or was already canceled returns
errors.ErrActionNotPending and is counted (metrics for Loop, Stats for
Manual). It signals a bug in the provider, not a runtime condition.
*/
package hostsched
