package gstreamer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/pfischer54/rtsp-viewer/internal/media"
)

// pollInterval bounds how long Close waits for the bus goroutine to notice cancellation.
const pollInterval = 50 * time.Millisecond

// go-gst does not expose the GError domain or code
const errorDomain = "gstreamer"

type pipeline struct {
	p *gst.Pipeline

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (p *pipeline) Name() string { return p.p.GetName() }

func (p *pipeline) Add(elems ...media.Element) error {
	raw := make([]*gst.Element, 0, len(elems))
	for _, e := range elems {
		el, ok := e.(*element)
		if !ok {
			return fmt.Errorf("gst: cannot add foreign element %T to %s", e, p.Name())
		}
		raw = append(raw, el.el)
	}
	if err := p.p.AddMany(raw...); err != nil {
		return fmt.Errorf("gst: failed to add elements to %s: %w", p.Name(), err)
	}
	return nil
}

func (p *pipeline) SetState(state media.State) error {
	if err := p.p.SetState(toGstState(state)); err != nil {
		return fmt.Errorf("gst: failed to set %s to %s: %w", p.Name(), state, err)
	}
	return nil
}

// Watch polls the pipeline bus on a dedicated goroutine until Close.
func (p *pipeline) Watch(handler func(media.Event)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return errors.New("gst: bus already watched")
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	bus := p.p.GetPipelineBus()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		for {
			select {
			case <-ctx.Done():
				slog.Debug("gst: bus watch stopped", "pipeline", p.Name())
				return
			default:
			}

			// Short timeout keeps Close responsive
			msg := bus.TimedPop(pollInterval)
			if msg == nil {
				continue
			}

			if ev := translate(msg); ev != nil {
				handler(ev)
			}
		}
	}()

	return nil
}

func (p *pipeline) Close() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

// translate converts the bus messages the viewer reacts to. Everything else
// (latency, qos, stream-status...) returns nil.
func translate(msg *gst.Message) media.Event {
	switch msg.Type() {
	case gst.MessageError:
		gerr := msg.ParseError()
		return media.ErrorEvent{
			Origin:  msg.Source(),
			Domain:  errorDomain,
			Message: gerr.Error(),
			Debug:   gerr.DebugString(),
		}

	case gst.MessageEOS:
		return media.EOSEvent{Origin: msg.Source()}

	case gst.MessageStateChanged:
		old, next := msg.ParseStateChanged()
		return media.StateChangedEvent{
			Origin:  msg.Source(),
			Old:     fromGstState(old),
			New:     fromGstState(next),
			Pending: media.StateVoidPending,
		}

	case gst.MessageWarning:
		gerr := msg.ParseWarning()
		return media.WarningEvent{
			Origin:  msg.Source(),
			Message: gerr.Error(),
			Debug:   gerr.DebugString(),
		}
	}
	return nil
}
