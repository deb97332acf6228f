// Package graph builds the RTSP processing graph and links it once the source
// announces its streams.
//
// Graph structure:
//
//	source(rtspsrc) ~> depay(rtph264depay) → parse(h264parse) → dec → conv → sink
//
// The "~>" edge is dynamic: rtspsrc exposes its output pads only after the
// RTSP session negotiates, so the Negotiator links it later. Every other edge
// is linked when the graph is built.
package graph

// Role identifies an element's position in the graph.
type Role int

const (
	RoleSource Role = iota
	RoleDepayloader
	RoleParser
	RoleDecoder
	RoleConverter
	RoleSink

	// RolePipeline is the container itself, used in BuildError.
	RolePipeline Role = -1
)

// roleCount is the number of element roles in a graph
const roleCount = 6

// Roles lists the element roles in construction order.
var Roles = [roleCount]Role{RoleSource, RoleDepayloader, RoleParser, RoleDecoder, RoleConverter, RoleSink}

func (r Role) String() string {
	switch r {
	case RoleSource:
		return "source"
	case RoleDepayloader:
		return "depayloader"
	case RoleParser:
		return "parser"
	case RoleDecoder:
		return "decoder"
	case RoleConverter:
		return "converter"
	case RoleSink:
		return "sink"
	case RolePipeline:
		return "pipeline"
	default:
		return "unknown"
	}
}

// elementName is the name the element gets inside its pipeline
func (r Role) elementName() string {
	switch r {
	case RoleSource:
		return "source"
	case RoleDepayloader:
		return "depay"
	case RoleParser:
		return "parse"
	case RoleDecoder:
		return "dec"
	case RoleConverter:
		return "conv"
	case RoleSink:
		return "sink"
	default:
		return "unknown"
	}
}

// Tier is a decoding strategy.
type Tier int

const (
	// TierHardware decodes on the GPU and keeps frames GPU-resident.
	TierHardware Tier = iota + 1
	// TierSoftware decodes on the CPU and renders to the first sink that exists.
	TierSoftware
)

func (t Tier) String() string {
	switch t {
	case TierHardware:
		return "hardware"
	case TierSoftware:
		return "software"
	default:
		return "none"
	}
}
