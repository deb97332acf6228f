package media

import "time"

// Frame is a copy of one buffer taken from the sink input.
type Frame struct {
	// Seq is the monotonic sequence number within one graph
	Seq uint64
	// Timestamp is when the buffer reached the sink
	Timestamp time.Time
	// Width in pixels (0 when the caps do not say)
	Width int
	// Height in pixels (0 when the caps do not say)
	Height int
	// Format is the raw video format, e.g. "NV12" or "RGB"
	Format string
	// Data is the buffer payload
	Data []byte
}
