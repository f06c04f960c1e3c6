/*
Package fetch provides an HTTP fetch as an async provider.

A Fetch is built with a URL and options, then started through async.Execute.
The request runs on its own goroutine, or on a workerpool.Pool when one is
supplied. When it completes the fetch dispatches exactly once, and the
receiver reads the outcome from the provider it is handed:

	f, _ := fetch.New("https://example.com/health", fetch.WithTimeout(2*time.Second))
	promise, err := async.Execute[*fetch.Fetch](async.ReceiverFunc[*fetch.Fetch](func(f *fetch.Fetch) {
		switch f.Result() {
		case fetch.Success:
			log.Printf("status %d, %d bytes", f.StatusCode(), len(f.Body()))
		case fetch.Timeout:
			log.Printf("timed out")
		default:
			log.Printf("failed: %v", f.Err())
		}
	}), f)

Any response, whatever its status code, is a Success; Failure means no
response was received. After the terminal dispatch the fetch releases its
controller whether or not the consumer was still there.
*/
package fetch
