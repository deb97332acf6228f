package rtspviewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pfischer54/rtsp-viewer/internal/fault"
	"github.com/pfischer54/rtsp-viewer/internal/graph"
	"github.com/pfischer54/rtsp-viewer/internal/hwctx"
	"github.com/pfischer54/rtsp-viewer/internal/media"
	"github.com/pfischer54/rtsp-viewer/internal/media/gstreamer"
	"github.com/pfischer54/rtsp-viewer/internal/metrics"
	"github.com/pfischer54/rtsp-viewer/internal/notify"
	"github.com/pfischer54/rtsp-viewer/internal/surface"
)

// ErrAlreadyStarted is returned by Start when the player is not Idle.
var ErrAlreadyStarted = errors.New("rtsp-viewer: already started")

// Option configures a Player.
type Option func(*Player)

// WithEngine replaces the GStreamer engine.
func WithEngine(engine media.Engine) Option {
	return func(p *Player) { p.engine = engine }
}

// WithHardwarePool replaces the process-wide decoder context pool of the
// configured device.
func WithHardwarePool(pool *hwctx.Pool) Option {
	return func(p *Player) { p.pool = pool }
}

// Player implements Viewer. It owns at most one graph at a time.
type Player struct {
	cfg      StreamConfig
	engine   media.Engine
	pool     *hwctx.Pool
	strategy *graph.Strategy

	surface *surface.Surface
	notes   *notify.Hub[Notification]

	// mu serializes Start, Stop and fault-triggered stops
	mu           sync.Mutex
	graph        *graph.Graph
	unbindCtx    func() bool
	playingSince time.Time
	lastFault    *RuntimeFault

	state atomic.Int32

	builds        atomic.Uint64
	buildFailures atomic.Uint64
	padLinks      atomic.Uint64

	faultsMu sync.Mutex
	faults   map[string]uint64
}

// NewPlayer validates cfg and prepares a player. Nothing is built until Start.
//
// Returns an error if the config is invalid or GStreamer is not available.
func NewPlayer(cfg StreamConfig, opts ...Option) (*Player, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rtsp-viewer: invalid configuration: %w", err)
	}

	p := &Player{
		cfg:     cfg,
		surface: surface.New(),
		notes:   notify.NewHub[Notification](),
		faults:  make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.engine == nil {
		engine, err := gstreamer.New()
		if err != nil {
			return nil, fmt.Errorf("rtsp-viewer: %w", err)
		}
		p.engine = engine
	}
	if p.pool == nil {
		p.pool = hwctx.ForDevice(cfg.HardwareDevice)
	}

	p.strategy = graph.NewStrategy(graph.NewBuilder(p.engine, p.pool), p.engine, cfg.Sinks)
	metrics.LifecycleState.Set(float64(StateIdle))

	slog.Info("rtsp-viewer: player created",
		"url", cfg.URL,
		"latency_ms", cfg.LatencyMS,
		"transport", cfg.Transport.String(),
		"decoder", cfg.Decoder.String(),
	)

	return p, nil
}

// Start builds a graph through the fallback tiers, wires pad negotiation, the
// frame surface and the fault dispatcher to it, and requests PLAYING.
//
// The pipeline reaches PLAYING asynchronously; subscribers see a
// NotifyPipelineState notification when it does.
func (p *Player) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if st := p.State(); st != StateIdle {
		return fmt.Errorf("%w (state %s)", ErrAlreadyStarted, st)
	}

	p.setState(StateBuilding, "")
	slog.Info("rtsp-viewer: starting",
		"url", p.cfg.URL,
		"decoder", p.cfg.Decoder.String(),
	)

	p.builds.Add(1)
	sel, err := p.strategy.Select(p.cfg.settings(), p.cfg.Decoder.policy())
	if err != nil {
		p.buildFailures.Add(1)
		p.setState(StateIdle, "")
		p.publish(Notification{Kind: NotifyBuildFailed, Err: err})
		slog.Error("rtsp-viewer: failed to build graph",
			"error", err,
			"attempts", len(sel.Attempts),
		)
		return err
	}
	g := sel.Graph

	if err := p.wire(g); err != nil {
		p.abort(g)
		return fmt.Errorf("rtsp-viewer: failed to wire graph: %w", err)
	}

	if err := g.Play(); err != nil {
		// a half-started graph may hold the decoder context
		p.abort(g)
		terr := &TransitionError{Target: media.StatePlaying.String(), Err: err}
		slog.Error("rtsp-viewer: failed to start pipeline", "error", err)
		return terr
	}

	p.graph = g
	p.playingSince = time.Now()
	p.setState(StatePlaying, g.ID)

	if ctx != nil {
		id := g.ID
		p.unbindCtx = context.AfterFunc(ctx, func() {
			p.stopGraph(id, "context cancelled")
		})
	}

	slog.Info("rtsp-viewer: started",
		"graph_id", g.ID,
		"tier", g.Tier.String(),
		"sink", g.SinkFactory(),
		"note", "pipeline reaches PLAYING asynchronously",
	)
	return nil
}

// wire connects the callbacks of g. Bus delivery starts last so that no event
// is handled before the graph is fully wired.
func (p *Player) wire(g *graph.Graph) error {
	id := g.ID

	neg := graph.NewNegotiator(g, func(w media.WarningEvent) {
		p.publish(Notification{Kind: NotifyWarning, GraphID: id, Message: w.Message, Detail: w.Debug})
	})
	err := neg.Attach(func(_ media.Pad, outcome graph.Outcome) {
		if outcome == graph.OutcomeLinked {
			p.padLinks.Add(1)
		}
	})
	if err != nil {
		return err
	}

	if src, ok := g.Element(graph.RoleSink).(media.FrameSource); ok {
		err := src.TapFrames(media.FrameTap{
			Active:  p.surface.Active,
			Deliver: p.surface.Publish,
		})
		if err != nil {
			slog.Warn("rtsp-viewer: frame surface unavailable, continuing without it", "error", err)
		}
	}

	dispatcher := fault.NewDispatcher(g.Name(), fault.Hooks{
		Halt: func(f fault.Fault) {
			p.recordFault(f)
			p.publish(Notification{Kind: NotifyFault, GraphID: id, Fault: &f})
			// Stop waits for this goroutine's bus loop to exit
			go p.halt(id, f)
		},
		PipelineState: func(ev media.StateChangedEvent) {
			p.publish(Notification{
				Kind:         NotifyPipelineState,
				GraphID:      id,
				PipelineFrom: ev.Old.String(),
				PipelineTo:   ev.New.String(),
			})
		},
		Warning: func(ev media.WarningEvent) {
			p.publish(Notification{Kind: NotifyWarning, GraphID: id, Message: ev.Message, Detail: ev.Debug})
		},
	})

	return g.Pipeline().Watch(dispatcher.OnEvent)
}

// abort tears down a graph that never became the active one.
func (p *Player) abort(g *graph.Graph) {
	if err := g.Shutdown(); err != nil {
		slog.Error("rtsp-viewer: teardown after failed start", "error", err)
	}
	p.setState(StateIdle, "")
}

// Stop drives the active graph to NULL, waits for the engine to release it and
// returns to Idle. Calling Stop when Idle does nothing.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked("requested")
}

func (p *Player) stopLocked(reason string) error {
	if p.graph == nil {
		return nil
	}

	started := time.Now()
	g := p.graph
	p.setState(StateStopping, g.ID)

	if p.unbindCtx != nil {
		p.unbindCtx()
		p.unbindCtx = nil
	}

	err := g.Shutdown()
	p.graph = nil
	p.playingSince = time.Time{}
	p.surface.Reset()
	p.setState(StateIdle, g.ID)

	metrics.StopDuration.Observe(time.Since(started).Seconds())
	slog.Info("rtsp-viewer: stopped",
		"graph_id", g.ID,
		"reason", reason,
		"duration", time.Since(started),
	)

	if err != nil {
		return fmt.Errorf("rtsp-viewer: %w", err)
	}
	return nil
}

// halt stops graph id after a runtime fault. A fault from a graph that is no
// longer active is ignored.
func (p *Player) halt(id string, f fault.Fault) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.graph == nil || p.graph.ID != id {
		slog.Debug("rtsp-viewer: ignoring fault from inactive graph", "graph_id", id, "fault", f.Error())
		return
	}

	p.lastFault = &f
	if err := p.stopLocked(f.Kind.String()); err != nil {
		slog.Error("rtsp-viewer: stop after fault failed", "error", err)
	}
}

func (p *Player) stopGraph(id, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.graph == nil || p.graph.ID != id {
		return
	}
	if err := p.stopLocked(reason); err != nil {
		slog.Error("rtsp-viewer: stop failed", "reason", reason, "error", err)
	}
}

// State returns the current lifecycle state.
func (p *Player) State() LifecycleState {
	return LifecycleState(p.state.Load())
}

func (p *Player) setState(to LifecycleState, graphID string) {
	from := LifecycleState(p.state.Swap(int32(to)))
	if from == to {
		return
	}
	metrics.LifecycleState.Set(float64(to))
	slog.Debug("rtsp-viewer: state transition", "from", from.String(), "to", to.String())
	p.publish(Notification{Kind: NotifyStateTransition, GraphID: graphID, From: from, To: to})
}

// Surface returns the frame surface.
func (p *Player) Surface() *Surface { return p.surface }

// Subscribe registers ch for notifications under id.
func (p *Player) Subscribe(id string, ch chan<- Notification) error {
	return p.notes.Subscribe(id, ch)
}

// Unsubscribe removes the subscriber id.
func (p *Player) Unsubscribe(id string) error {
	return p.notes.Unsubscribe(id)
}

func (p *Player) publish(n Notification) {
	if n.Time.IsZero() {
		n.Time = time.Now()
	}
	p.notes.Publish(n)
}

func (p *Player) recordFault(f fault.Fault) {
	key := f.Category.String()
	if f.Kind == fault.KindEndOfStream {
		key = "eos"
	}
	p.faultsMu.Lock()
	p.faults[key]++
	p.faultsMu.Unlock()
}

// Stats returns a snapshot of activity counters.
func (p *Player) Stats() Stats {
	p.faultsMu.Lock()
	faults := make(map[string]uint64, len(p.faults))
	for k, v := range p.faults {
		faults[k] = v
	}
	p.faultsMu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{
		State:         p.State(),
		Builds:        p.builds.Load(),
		BuildFailures: p.buildFailures.Load(),
		PadLinks:      p.padLinks.Load(),
		SurfaceFrames: p.surface.Frames(),
		Faults:        faults,
		PlayingSince:  p.playingSince,
	}
	if p.lastFault != nil {
		f := *p.lastFault
		s.LastFault = &f
	}
	if p.graph != nil {
		s.GraphID = p.graph.ID
		s.Tier = p.graph.Tier.String()
		s.Sink = p.graph.SinkFactory()
	}
	return s
}
