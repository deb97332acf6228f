// Package fault turns bus events into lifecycle actions. Errors and end of
// stream halt the graph; state changes and warnings are logged and forwarded.
package fault

import (
	"fmt"
	"log/slog"

	"github.com/pfischer54/rtsp-viewer/internal/media"
	"github.com/pfischer54/rtsp-viewer/internal/metrics"
)

// Kind distinguishes the terminal bus events.
type Kind int

const (
	KindEngineError Kind = iota
	KindEndOfStream
)

func (k Kind) String() string {
	switch k {
	case KindEngineError:
		return "engine_error"
	case KindEndOfStream:
		return "end_of_stream"
	default:
		return "unknown"
	}
}

// Fault is a pipeline-fatal runtime event.
type Fault struct {
	Kind     Kind
	Category Category
	Source   string
	Domain   string
	Code     int
	Message  string
	Debug    string
}

func (f Fault) Error() string {
	if f.Kind == KindEndOfStream {
		return fmt.Sprintf("end of stream from %s", f.Source)
	}
	return fmt.Sprintf("engine error [%s] from %s (%s/%d): %s", f.Category, f.Source, f.Domain, f.Code, f.Message)
}

// Hooks receive dispatched events. They run on the bus delivery goroutine and
// must not block.
type Hooks struct {
	// Halt is called for every Error and EOS event.
	Halt func(Fault)
	// PipelineState is called for state changes of the pipeline itself.
	PipelineState func(media.StateChangedEvent)
	// Warning is called for every Warning event.
	Warning func(media.WarningEvent)
}

// Dispatcher maps bus events of one graph to hooks.
type Dispatcher struct {
	graphName string
	hooks     Hooks
}

// NewDispatcher returns a dispatcher for the graph whose pipeline is named
// graphName.
func NewDispatcher(graphName string, hooks Hooks) *Dispatcher {
	return &Dispatcher{graphName: graphName, hooks: hooks}
}

// OnEvent handles one bus event. A panic in a hook is recovered and logged.
func (d *Dispatcher) OnEvent(ev media.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("fault: panic in bus event handler",
				"pipeline", d.graphName,
				"event", fmt.Sprintf("%T", ev),
				"panic", r,
			)
		}
	}()

	switch e := ev.(type) {
	case media.ErrorEvent:
		category := Classify(e)
		metrics.RecordFault(category.String())
		slog.Error("fault: pipeline error",
			"pipeline", d.graphName,
			"source", e.Origin,
			"domain", e.Domain,
			"code", e.Code,
			"error", e.Message,
			"debug", e.Debug,
			"category", category.String(),
		)
		d.halt(Fault{
			Kind:     KindEngineError,
			Category: category,
			Source:   e.Origin,
			Domain:   e.Domain,
			Code:     e.Code,
			Message:  e.Message,
			Debug:    e.Debug,
		})

	case media.EOSEvent:
		slog.Info("fault: end of stream received", "pipeline", d.graphName, "source", e.Origin)
		d.halt(Fault{Kind: KindEndOfStream, Category: CategoryUnknown, Source: e.Origin})

	case media.StateChangedEvent:
		// children echo every transition
		if e.Origin != d.graphName {
			return
		}
		slog.Debug("fault: pipeline state changed",
			"pipeline", d.graphName,
			"from", e.Old.String(),
			"to", e.New.String(),
			"pending", e.Pending.String(),
		)
		if d.hooks.PipelineState != nil {
			d.hooks.PipelineState(e)
		}

	case media.WarningEvent:
		slog.Warn("fault: pipeline warning",
			"pipeline", d.graphName,
			"source", e.Origin,
			"warning", e.Message,
			"debug", e.Debug,
		)
		if d.hooks.Warning != nil {
			d.hooks.Warning(e)
		}
	}
}

func (d *Dispatcher) halt(f Fault) {
	if d.hooks.Halt != nil {
		d.hooks.Halt(f)
	}
}
