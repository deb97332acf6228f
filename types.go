package rtspviewer

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pfischer54/rtsp-viewer/internal/fault"
	"github.com/pfischer54/rtsp-viewer/internal/graph"
	"github.com/pfischer54/rtsp-viewer/internal/surface"
)

// TransportMode is the RTSP lower-transport bitmask.
type TransportMode uint

const (
	TransportUDP          TransportMode = 0x1
	TransportUDPMulticast TransportMode = 0x2
	TransportTCP          TransportMode = 0x4
	// TransportBoth lets the source try UDP first and fall back to TCP interleaving.
	TransportBoth = TransportUDP | TransportTCP
)

// ParseTransport parses "udp", "tcp", "udp-mcast", "udp+tcp" or "both".
func ParseTransport(s string) (TransportMode, error) {
	var mode TransportMode
	for _, part := range strings.Split(strings.ToLower(strings.TrimSpace(s)), "+") {
		switch strings.TrimSpace(part) {
		case "udp":
			mode |= TransportUDP
		case "udp-mcast", "multicast":
			mode |= TransportUDPMulticast
		case "tcp":
			mode |= TransportTCP
		case "both":
			mode |= TransportBoth
		default:
			return 0, fmt.Errorf("invalid transport %q (want udp, tcp, udp-mcast or udp+tcp)", s)
		}
	}
	return mode, nil
}

func (t TransportMode) String() string {
	var parts []string
	if t&TransportUDP != 0 {
		parts = append(parts, "udp")
	}
	if t&TransportUDPMulticast != 0 {
		parts = append(parts, "udp-mcast")
	}
	if t&TransportTCP != 0 {
		parts = append(parts, "tcp")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// Set implements pflag.Value.
func (t *TransportMode) Set(s string) error {
	mode, err := ParseTransport(s)
	if err != nil {
		return err
	}
	*t = mode
	return nil
}

// Type implements pflag.Value.
func (t *TransportMode) Type() string { return "transport" }

func (t *TransportMode) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return t.Set(s)
}

func (t TransportMode) MarshalYAML() (any, error) {
	return t.String(), nil
}

// DecoderPreference selects the decoding fallback policy.
type DecoderPreference int

const (
	// DecoderHardware tries GPU decoding first and falls back to software.
	DecoderHardware DecoderPreference = iota
	// DecoderHardwareOnly requires GPU decoding.
	DecoderHardwareOnly
	// DecoderAuto decodes in software into the first available sink.
	DecoderAuto
)

// ParseDecoderPreference parses "hardware", "hardware-only" or "auto".
func ParseDecoderPreference(s string) (DecoderPreference, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hardware", "hw", "vaapi":
		return DecoderHardware, nil
	case "hardware-only", "hw-only":
		return DecoderHardwareOnly, nil
	case "auto", "software", "sw":
		return DecoderAuto, nil
	default:
		return 0, fmt.Errorf("invalid decoder preference %q (want hardware, hardware-only or auto)", s)
	}
}

func (d DecoderPreference) String() string {
	switch d {
	case DecoderHardware:
		return "hardware"
	case DecoderHardwareOnly:
		return "hardware-only"
	case DecoderAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// Set implements pflag.Value.
func (d *DecoderPreference) Set(s string) error {
	pref, err := ParseDecoderPreference(s)
	if err != nil {
		return err
	}
	*d = pref
	return nil
}

// Type implements pflag.Value.
func (d *DecoderPreference) Type() string { return "decoder" }

func (d *DecoderPreference) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.Set(s)
}

func (d DecoderPreference) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d DecoderPreference) policy() graph.Policy {
	switch d {
	case DecoderHardwareOnly:
		return graph.PolicyHardwareOnly
	case DecoderAuto:
		return graph.PolicyAutomatic
	default:
		return graph.PolicyHardwareFirst
	}
}

// LifecycleState is the Player state.
type LifecycleState int32

const (
	StateIdle LifecycleState = iota
	StateBuilding
	StatePlaying
	StateStopping
)

func (s LifecycleState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuilding:
		return "building"
	case StatePlaying:
		return "playing"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

type (
	// BuildError is returned by Start when no graph could be built.
	BuildError = graph.BuildError
	// RuntimeFault is an engine error or end of stream that stopped the graph.
	RuntimeFault = fault.Fault
	// FaultCategory classifies engine errors.
	FaultCategory = fault.Category
	// Surface is the frame surface of a Player.
	Surface = surface.Surface
)

// BuildError kinds, matchable with errors.Is.
var (
	ErrElementUnavailable = graph.ErrElementUnavailable
	ErrLinkFailure        = graph.ErrLinkFailure
	ErrNoSinkAvailable    = graph.ErrNoSinkAvailable
)

// TransitionError reports a state change the engine rejected synchronously.
// The graph has already been torn down when it is returned.
type TransitionError struct {
	Target string
	Err    error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("rtsp-viewer: transition to %s rejected: %v", e.Target, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// NotificationKind tells which fields of a Notification are set.
type NotificationKind int

const (
	// NotifyStateTransition sets From and To.
	NotifyStateTransition NotificationKind = iota
	// NotifyPipelineState sets PipelineFrom and PipelineTo.
	NotifyPipelineState
	// NotifyFault sets Fault.
	NotifyFault
	// NotifyWarning sets Message and Detail.
	NotifyWarning
	// NotifyBuildFailed sets Err.
	NotifyBuildFailed
)

func (k NotificationKind) String() string {
	switch k {
	case NotifyStateTransition:
		return "state_transition"
	case NotifyPipelineState:
		return "pipeline_state"
	case NotifyFault:
		return "fault"
	case NotifyWarning:
		return "warning"
	case NotifyBuildFailed:
		return "build_failed"
	default:
		return "unknown"
	}
}

// Notification is delivered to subscribers.
type Notification struct {
	Kind    NotificationKind
	Time    time.Time
	GraphID string

	From LifecycleState
	To   LifecycleState

	// Engine state names, e.g. "PAUSED" and "PLAYING"
	PipelineFrom string
	PipelineTo   string

	Fault *RuntimeFault

	Message string
	Detail  string

	Err error
}

// Stats is a snapshot of Player activity.
type Stats struct {
	State LifecycleState
	// GraphID, Tier and Sink describe the active graph; empty when Idle
	GraphID string
	Tier    string
	Sink    string

	Builds        uint64
	BuildFailures uint64
	PadLinks      uint64
	SurfaceFrames uint64
	Faults        map[string]uint64
	LastFault     *RuntimeFault
	PlayingSince  time.Time
}
