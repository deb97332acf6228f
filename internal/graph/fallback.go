package graph

import (
	"errors"
	"log/slog"

	"github.com/pfischer54/rtsp-viewer/internal/media"
	"github.com/pfischer54/rtsp-viewer/internal/metrics"
)

// Policy selects which tiers are attempted.
type Policy int

const (
	// PolicyHardwareFirst tries Tier 1 and falls back to Tier 2.
	PolicyHardwareFirst Policy = iota
	// PolicyHardwareOnly tries Tier 1 only.
	PolicyHardwareOnly
	// PolicyAutomatic skips Tier 1.
	PolicyAutomatic
)

func (p Policy) String() string {
	switch p {
	case PolicyHardwareFirst:
		return "hardware"
	case PolicyHardwareOnly:
		return "hardware-only"
	case PolicyAutomatic:
		return "auto"
	default:
		return "unknown"
	}
}

// Attempt records one tier attempt.
type Attempt struct {
	Tier Tier
	Sink string
	Err  error
}

// Selection is the outcome of Strategy.Select. Graph is nil when every tier
// failed; Attempts always lists what was tried.
type Selection struct {
	Graph    *Graph
	Attempts []Attempt
}

// Strategy tries the decoding tiers in priority order.
type Strategy struct {
	builder *Builder
	engine  media.Engine
	sinks   []string
}

// NewStrategy returns a strategy probing sinks, in order, for Tier 2. An empty
// list means DefaultSinks.
func NewStrategy(builder *Builder, engine media.Engine, sinks []string) *Strategy {
	if len(sinks) == 0 {
		sinks = DefaultSinks
	}
	return &Strategy{
		builder: builder,
		engine:  engine,
		sinks:   append([]string(nil), sinks...),
	}
}

// Select returns the first graph that builds. Each tier is attempted exactly
// once. A missing hardware decoder alone never fails the selection when the
// policy allows Tier 2 and one of the sinks exists.
//
// The returned Selection is never nil. On failure the error is the last tier's
// *BuildError.
func (s *Strategy) Select(settings Settings, policy Policy) (*Selection, error) {
	sel := &Selection{}

	if policy != PolicyAutomatic {
		plan := HardwarePlan()
		g, err := s.builder.Build(settings, plan)
		metrics.RecordBuild(TierHardware.String(), err)
		sel.Attempts = append(sel.Attempts, Attempt{Tier: TierHardware, Sink: plan.Factory(RoleSink), Err: err})
		if err == nil {
			sel.Graph = g
			slog.Info("graph: hardware decoding selected",
				"graph_id", g.ID,
				"decoder", plan.Factory(RoleDecoder),
				"sink", g.SinkFactory(),
			)
			return sel, nil
		}

		if policy == PolicyHardwareOnly {
			slog.Error("graph: hardware decoding unavailable, fallback disabled", "error", err)
			return sel, err
		}
		slog.Warn("graph: hardware decoding unavailable, using software decoder", "error", err)
	}

	sink, err := s.probeSink()
	if err != nil {
		metrics.RecordBuild(TierSoftware.String(), err)
		sel.Attempts = append(sel.Attempts, Attempt{Tier: TierSoftware, Err: err})
		slog.Error("graph: no video sink available", "candidates", s.sinks)
		return sel, err
	}

	g, err := s.builder.Build(settings, SoftwarePlan(sink))
	metrics.RecordBuild(TierSoftware.String(), err)
	sel.Attempts = append(sel.Attempts, Attempt{Tier: TierSoftware, Sink: sink, Err: err})
	if err != nil {
		return sel, err
	}

	sel.Graph = g
	slog.Info("graph: software decoding selected", "graph_id", g.ID, "sink", sink)
	return sel, nil
}

// probeSink returns the first sink factory that constructs. Probe instances are
// released immediately.
func (s *Strategy) probeSink() (string, error) {
	var errs []error
	for _, factory := range s.sinks {
		el, err := s.engine.NewElement(factory, "sink-probe")
		if err != nil {
			slog.Debug("graph: sink candidate unavailable", "factory", factory, "error", err)
			errs = append(errs, err)
			continue
		}
		el.Release()
		return factory, nil
	}
	return "", &BuildError{
		Kind: ErrNoSinkAvailable,
		Role: RoleSink,
		Tier: TierSoftware,
		Err:  errors.Join(errs...),
	}
}
