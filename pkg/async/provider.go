package async

// DispatchController is the provider's view of a consumer.
type DispatchController interface {
	// Dispatch hands the provider's current result to the consumer. It
	// returns false once the consumer is gone; the provider must then
	// destroy itself. Dispatch never panics.
	Dispatch() bool

	// Release drops the provider's reference. A provider calls it exactly
	// once, when it is destroyed.
	Release()
}

// Provider is a unit of asynchronous work.
//
// Run begins the work and retains ctrl. Completion, however the provider
// detects it, results in one terminal Dispatch. If Run returns an error the
// provider did not retain ctrl and never dispatches.
type Provider interface {
	Run(ctrl DispatchController) error
}

// Receiver is notified each time provider P dispatches.
type Receiver[P Provider] interface {
	HandleAsyncComplete(provider P)
}

// ReceiverFunc adapts a function to a Receiver.
type ReceiverFunc[P Provider] func(provider P)

func (f ReceiverFunc[P]) HandleAsyncComplete(provider P) { f(provider) }
