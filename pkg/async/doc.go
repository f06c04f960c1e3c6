/*
Package async connects asynchronous providers to the consumers waiting on
them.

A Provider is any unit of asynchronous work: a timer, a cron schedule, an
HTTP fetch. It is started with Run and handed a DispatchController. Every
time the provider has something to report it calls Dispatch; a false return
means the consumer is gone and the provider must destroy itself. When a
provider is destroyed it calls Release exactly once.

The consumer side is a Receiver. Execute wires the two together and returns
a Promise, the consumer's handle on the controller:

	promise, err := async.Execute[*timer.Timer](async.ReceiverFunc[*timer.Timer](func(t *timer.Timer) {
		fmt.Println("tick")
	}), t)
	if err != nil {
		return err
	}
	// Later, when the consumer goes away:
	promise.Close()

The controller is reference counted between the promise and the provider,
so neither side dictates the other's teardown order. Dispatch after the
promise is closed returns false instead of reaching the receiver.

Consumers holding several promises embed a Tracker and close it on
teardown.
*/
package async
