package rtspviewer

import "context"

// Viewer is the contract a presentation layer depends on.
//
// Implementations must guarantee:
//   - Start() returns once PLAYING is requested, not once it is reached
//   - at most one processing graph is owned at any time
//   - Stop() is idempotent and blocks until the graph released its resources
//   - State(), Stats() and Subscribe() are safe from any goroutine
type Viewer interface {
	// Start builds a graph and requests PLAYING.
	//
	// Returns a *BuildError when no tier could build a graph, a
	// *TransitionError when the engine rejected PLAYING, or ErrAlreadyStarted.
	// In every error case the viewer is Idle again and Start may be retried.
	//
	// Cancelling ctx later stops the graph.
	Start(ctx context.Context) error

	// Stop drives the graph to NULL and releases it. A no-op when Idle.
	Stop() error

	// State returns the current lifecycle state.
	State() LifecycleState

	// Surface returns the frame surface. Its frame is valid only while the
	// state is not Idle.
	Surface() *Surface

	// Subscribe registers ch for notifications. Delivery never blocks.
	Subscribe(id string, ch chan<- Notification) error

	// Unsubscribe removes a subscriber.
	Unsubscribe(id string) error

	// Stats returns a snapshot of activity counters.
	Stats() Stats
}

var _ Viewer = (*Player)(nil)
