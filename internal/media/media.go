// Package media defines the engine-neutral primitives the viewer builds its
// processing graph from: elements, pads, pipelines and the bus events they emit.
//
// The GStreamer binding lives in the gstreamer subpackage; mediatest provides an
// in-memory engine for tests.
package media

// State is the processing state of a pipeline or element.
type State int

const (
	StateVoidPending State = iota
	StateNull
	StateReady
	StatePaused
	StatePlaying
)

// String returns the engine-style name of the state
func (s State) String() string {
	switch s {
	case StateVoidPending:
		return "VOID_PENDING"
	case StateNull:
		return "NULL"
	case StateReady:
		return "READY"
	case StatePaused:
		return "PAUSED"
	case StatePlaying:
		return "PLAYING"
	default:
		return "UNKNOWN"
	}
}

// Engine constructs pipelines and elements by factory name.
type Engine interface {
	NewPipeline(name string) (Pipeline, error)
	NewElement(factory, name string) (Element, error)
}

// Element is a single node of a processing graph.
type Element interface {
	Name() string
	Factory() string
	SetProperty(name string, value any) error
	// Link statically links this element's output to dst's input.
	Link(dst Element) error
	// InputLinked reports whether the element's "sink" pad has a peer.
	InputLinked() bool
	// Release returns the element to NULL and drops engine resources.
	Release()
}

// DynamicSource is implemented by elements that expose pads only after
// negotiating with a remote peer.
//
// fn runs on an engine thread and must not block.
type DynamicSource interface {
	OnPadAdded(fn func(Pad)) error
}

// FrameTap copies buffers arriving at an element's input.
// Deliver is only called while Active reports true.
type FrameTap struct {
	Active  func() bool
	Deliver func(Frame)
}

// FrameSource is implemented by elements whose input can be tapped for the
// frame surface.
type FrameSource interface {
	TapFrames(tap FrameTap) error
}

// Pad is a connection point discovered on a dynamic source.
type Pad interface {
	Name() string
	// MediaType is the negotiated media type, e.g. "video/x-h264".
	// Empty when the pad has no caps yet.
	MediaType() string
	// LinkTo links the pad to dst's "sink" pad.
	LinkTo(dst Element) error
}

// Pipeline is the container owning every element of a graph.
type Pipeline interface {
	Name() string
	Add(elems ...Element) error
	// SetState requests a state change. An error means the engine rejected the
	// request synchronously; transitions to NULL complete before returning.
	SetState(state State) error
	// Watch starts delivering bus events to handler on an engine-owned goroutine.
	Watch(handler func(Event)) error
	// Close stops bus delivery and waits for the delivery goroutine to exit.
	// It must not be called from the handler passed to Watch.
	Close()
}
