// Package transport provides the live delivery channel for raw executor
// progress messages. The engine does not care how messages arrive; it
// only needs them in delivery order, plus a connectivity signal so the
// console knows when to fall back to polling.
package transport

import "context"

// ProgressTopic is the bus topic raw progress envelopes travel on.
const ProgressTopic = "pulseline.progress"

// Transport streams raw message payloads from the executor.
type Transport interface {
	// Messages returns the ordered payload stream. The channel closes
	// when the transport shuts down.
	Messages(ctx context.Context) (<-chan []byte, error)

	// Connected reports whether delivery is currently confirmed. A false
	// answer is not an error; it tells the console to reconcile by
	// polling.
	Connected() bool

	// Reconnected signals each re-establishment of the channel after a
	// drop. Consumers use it to kick off reconciliation.
	Reconnected() <-chan struct{}

	Close() error
}
