package graph

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pfischer54/rtsp-viewer/internal/media"
	"github.com/pfischer54/rtsp-viewer/internal/metrics"
)

// Outcome is the result of handling one discovered pad.
type Outcome int

const (
	OutcomeLinked Outcome = iota
	OutcomeIgnored
	OutcomeAlreadyLinked
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLinked:
		return "linked"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeAlreadyLinked:
		return "already_linked"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Negotiator links source pads to the depayloader as the source discovers them.
//
// rtspsrc announces one pad per stream in the session description (video,
// audio, metadata). Only the first video pad is linked; the rest are ignored.
// Discovery callbacks run on engine threads, possibly concurrently, so the
// check-and-link is serialized.
type Negotiator struct {
	graph *Graph
	warn  func(media.WarningEvent)

	mu sync.Mutex
}

// NewNegotiator returns a negotiator for g. warn, if set, receives a warning
// when a video pad fails to link; the graph keeps running without video.
func NewNegotiator(g *Graph, warn func(media.WarningEvent)) *Negotiator {
	return &Negotiator{graph: g, warn: warn}
}

// Attach registers the negotiator with the graph's source. observe, if set,
// is told the outcome of every discovery.
func (n *Negotiator) Attach(observe func(media.Pad, Outcome)) error {
	src, ok := n.graph.Element(RoleSource).(media.DynamicSource)
	if !ok {
		return fmt.Errorf("graph: source %s has no dynamic pads", n.graph.Element(RoleSource).Name())
	}
	return src.OnPadAdded(func(p media.Pad) {
		outcome := n.OnPadDiscovered(p)
		if observe != nil {
			observe(p, outcome)
		}
	})
}

// OnPadDiscovered handles one newly announced pad. It never blocks on I/O and
// never panics.
func (n *Negotiator) OnPadDiscovered(p media.Pad) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("graph: panic in pad negotiation", "pad", p.Name(), "panic", r)
			outcome = OutcomeFailed
		}
		metrics.RecordNegotiation(outcome.String())
	}()

	mediaType := p.MediaType()
	if !strings.HasPrefix(mediaType, "video") {
		slog.Debug("graph: ignoring non-video pad", "pad", p.Name(), "media_type", mediaType)
		return OutcomeIgnored
	}

	depay := n.graph.Element(RoleDepayloader)

	n.mu.Lock()
	defer n.mu.Unlock()

	if depay.InputLinked() {
		slog.Debug("graph: depayloader already linked, ignoring pad", "pad", p.Name())
		return OutcomeAlreadyLinked
	}

	if err := p.LinkTo(depay); err != nil {
		slog.Error("graph: failed to link pads",
			"src_pad", p.Name(),
			"sink", depay.Name(),
			"media_type", mediaType,
			"error", err,
		)
		if n.warn != nil {
			n.warn(media.WarningEvent{
				Origin:  n.graph.Element(RoleSource).Name(),
				Message: fmt.Sprintf("failed to link %s pad %s", mediaType, p.Name()),
				Debug:   err.Error(),
			})
		}
		return OutcomeFailed
	}

	slog.Info("graph: pads linked successfully",
		"src_pad", p.Name(),
		"sink", depay.Name(),
		"media_type", mediaType,
	)
	return OutcomeLinked
}
