package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/pfischer54/rtsp-viewer/internal/hwctx"
	"github.com/pfischer54/rtsp-viewer/internal/media"
)

// Builder constructs graphs from plans.
type Builder struct {
	engine media.Engine
	pool   *hwctx.Pool
}

// NewBuilder returns a builder creating elements through engine. pool guards the
// decoder context of hardware plans; nil means hardware plans need no lease.
func NewBuilder(engine media.Engine, pool *hwctx.Pool) *Builder {
	return &Builder{engine: engine, pool: pool}
}

// Build constructs every element of plan, applies settings to the source and
// the plan tuning to the other roles, and links depay → parse → dec → conv → sink.
//
// The source → depay edge is left for the Negotiator. On any failure everything
// already constructed is released and a *BuildError is returned; a partial
// graph is never returned.
func (b *Builder) Build(s Settings, plan Plan) (*Graph, error) {
	id := uuid.New().String()
	name := "pipeline-" + id[:8]

	var lease *hwctx.Lease
	if plan.Hardware && b.pool != nil {
		var err error
		lease, err = b.pool.Acquire()
		if err != nil {
			return nil, elementUnavailable(plan.Tier, RoleDecoder, plan.Factory(RoleDecoder), err)
		}
	}

	pipeline, err := b.engine.NewPipeline(name)
	if err != nil {
		lease.Release()
		return nil, elementUnavailable(plan.Tier, RolePipeline, "pipeline", err)
	}

	var elements [roleCount]media.Element
	release := func() {
		for _, el := range elements {
			if el != nil {
				el.Release()
			}
		}
		pipeline.Close()
		lease.Release()
	}

	for _, role := range Roles {
		factory := plan.Factory(role)
		el, err := b.engine.NewElement(factory, role.elementName())
		if err != nil {
			release()
			slog.Warn("graph: element unavailable",
				"tier", plan.Tier.String(),
				"role", role.String(),
				"factory", factory,
				"error", err,
			)
			return nil, elementUnavailable(plan.Tier, role, factory, err)
		}
		elements[role] = el
	}

	applyProperties(elements[RoleSource], s.properties())
	for role, props := range plan.Tuning {
		applyProperties(elements[role], props)
	}

	if err := pipeline.Add(elements[:]...); err != nil {
		release()
		return nil, linkFailure(plan.Tier, RolePipeline, "pipeline", err)
	}

	// source is linked dynamically
	for role := RoleDepayloader; role < RoleSink; role++ {
		if err := elements[role].Link(elements[role+1]); err != nil {
			release()
			slog.Warn("graph: static link failed",
				"tier", plan.Tier.String(),
				"from", elements[role].Factory(),
				"to", elements[role+1].Factory(),
				"error", err,
			)
			return nil, linkFailure(plan.Tier, role, plan.Factory(role), err)
		}
	}

	slog.Debug("graph: built",
		"graph_id", id,
		"pipeline", name,
		"tier", plan.Tier.String(),
		"decoder", plan.Factory(RoleDecoder),
		"sink", plan.Factory(RoleSink),
	)

	return &Graph{
		ID:       id,
		Tier:     plan.Tier,
		pipeline: pipeline,
		elements: elements,
		lease:    lease,
	}, nil
}

// applyProperties sets props on el. A property the element does not support is
// logged and skipped.
func applyProperties(el media.Element, props []Property) {
	for _, p := range props {
		if err := el.SetProperty(p.Name, p.Value); err != nil {
			slog.Warn("graph: failed to set property",
				"element", el.Name(),
				"property", p.Name,
				"error", err,
			)
		}
	}
}

// Graph is a built processing graph. It owns its elements, its pipeline and,
// for the hardware tier, the decoder context lease.
type Graph struct {
	// ID is unique per build
	ID   string
	Tier Tier

	pipeline media.Pipeline
	elements [roleCount]media.Element
	lease    *hwctx.Lease

	shutdownOnce sync.Once
}

// Name returns the pipeline name. Bus events posted by the pipeline itself
// carry it as their source.
func (g *Graph) Name() string { return g.pipeline.Name() }

// Element returns the element playing role.
func (g *Graph) Element(r Role) media.Element {
	if r < 0 || int(r) >= roleCount {
		return nil
	}
	return g.elements[r]
}

// Pipeline returns the container.
func (g *Graph) Pipeline() media.Pipeline { return g.pipeline }

// SinkFactory returns the factory name of the sink element.
func (g *Graph) SinkFactory() string { return g.elements[RoleSink].Factory() }

// Play requests PLAYING. The graph reaches it asynchronously.
func (g *Graph) Play() error {
	if err := g.pipeline.SetState(media.StatePlaying); err != nil {
		return fmt.Errorf("graph: failed to start %s: %w", g.Name(), err)
	}
	return nil
}

// Shutdown drives the graph to NULL, stops bus delivery, releases every
// element and returns the decoder context. It blocks until the engine has
// released the elements' resources. Only the first call has an effect.
//
// Shutdown must not be called from a bus event handler.
func (g *Graph) Shutdown() error {
	var err error
	g.shutdownOnce.Do(func() {
		if serr := g.pipeline.SetState(media.StateNull); serr != nil {
			err = fmt.Errorf("graph: failed to set %s to NULL: %w", g.Name(), serr)
		}
		g.pipeline.Close()
		for _, el := range g.elements {
			el.Release()
		}
		g.lease.Release()
		slog.Debug("graph: shut down", "graph_id", g.ID, "pipeline", g.Name())
	})
	return err
}

// IsBuildError reports whether err carries a *BuildError.
func IsBuildError(err error) bool {
	var be *BuildError
	return errors.As(err, &be)
}
