/*
Package redisrecv provides an async receiver that publishes every completion
to a Redis channel.

The consumer is whoever subscribes to the channel. PUBLISH reports how many
subscribers got the message; when that drops to zero the receiver treats its
consumer as gone and closes the promises it tracks, so the next dispatch of
each provider returns false and the provider destroys itself:

	recv, _ := redisrecv.New[*timer.Timer](rdb, "ticks", func(t *timer.Timer) ([]byte, error) {
		return []byte(time.Now().Format(time.RFC3339)), nil
	})
	promise, _ := async.Execute[*timer.Timer](recv, t)
	recv.Track(promise)

Publish errors are logged and counted but do not end the subscription;
Redis being briefly unreachable is not the same as nobody listening.
*/
package redisrecv
