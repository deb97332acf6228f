package graph

import "time"

// Property is one element property assignment.
type Property struct {
	Name  string
	Value any
}

// Plan names the factory for every role and the tuning applied to them.
type Plan struct {
	Tier      Tier
	Factories [roleCount]string
	Tuning    map[Role][]Property
	// Hardware plans hold a decoder context lease for the graph's lifetime.
	Hardware bool
}

// Factory returns the factory used for role.
func (p Plan) Factory(r Role) string {
	if r < 0 || int(r) >= roleCount {
		return ""
	}
	return p.Factories[r]
}

// sinkTuning keeps sinks from blocking on the clock or retaining the last frame.
var sinkTuning = []Property{
	{Name: "sync", Value: false},
	{Name: "enable-last-sample", Value: false},
}

// parserTuning disables periodic SPS/PPS reinjection.
var parserTuning = []Property{
	{Name: "config-interval", Value: 0},
}

// HardwarePlan is the Tier 1 graph:
//
//	rtspsrc → rtph264depay → h264parse → vaapih264dec → vaapipostproc → vaapisink
//
// vaapipostproc keeps decoded surfaces in GPU memory up to the sink.
func HardwarePlan() Plan {
	return Plan{
		Tier:     TierHardware,
		Hardware: true,
		Factories: [roleCount]string{
			"rtspsrc",
			"rtph264depay",
			"h264parse",
			"vaapih264dec",
			"vaapipostproc",
			"vaapisink",
		},
		Tuning: map[Role][]Property{
			RoleParser: parserTuning,
			// Safe for H.264 streams without B-frames
			RoleDecoder: {{Name: "low-latency", Value: true}},
			RoleSink:    sinkTuning,
		},
	}
}

// SoftwarePlan is the Tier 2 graph ending in sink:
//
//	rtspsrc → rtph264depay → h264parse → avdec_h264 → videoconvert → sink
func SoftwarePlan(sink string) Plan {
	return Plan{
		Tier: TierSoftware,
		Factories: [roleCount]string{
			"rtspsrc",
			"rtph264depay",
			"h264parse",
			"avdec_h264",
			"videoconvert",
			sink,
		},
		Tuning: map[Role][]Property{
			RoleParser: parserTuning,
			RoleDecoder: {
				{Name: "max-threads", Value: 0}, // 0 = auto-detect cores
				{Name: "output-corrupt", Value: false},
			},
			RoleSink: sinkTuning,
		},
	}
}

// DefaultSinks is the Tier 2 sink priority list.
var DefaultSinks = []string{
	"waylandsink",
	"glimagesink",
	"xvimagesink",
	"ximagesink",
	"autovideosink",
}

// Settings are the source parameters applied to rtspsrc.
type Settings struct {
	URL       string
	LatencyMS uint
	// Protocols is the RTSP lower-transport bitmask (UDP=0x1, UDP_MCAST=0x2, TCP=0x4).
	Protocols     uint
	Retry         uint
	Timeout       time.Duration
	UDPBufferSize int
	PortRange     string
}

func (s Settings) properties() []Property {
	return []Property{
		{Name: "location", Value: s.URL},
		{Name: "latency", Value: s.LatencyMS},
		{Name: "protocols", Value: s.Protocols},
		{Name: "retry", Value: s.Retry},
		// rtspsrc takes microseconds
		{Name: "timeout", Value: uint64(s.Timeout / time.Microsecond)},
		{Name: "udp-buffer-size", Value: s.UDPBufferSize},
		{Name: "port-range", Value: s.PortRange},
	}
}
