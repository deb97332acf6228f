package mediatest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pfischer54/rtsp-viewer/internal/media"
)

// Pipeline is an in-memory media.Pipeline. Bus events posted with Post are
// delivered in order on one goroutine once Watch is called.
type Pipeline struct {
	name   string
	engine *Engine

	mu       sync.Mutex
	elements []*Element
	states   []media.State
	current  media.State
	watching bool
	closed   bool

	events    chan media.Event
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func (p *Pipeline) Name() string { return p.name }

func (p *Pipeline) Add(elems ...media.Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range elems {
		el, ok := e.(*Element)
		if !ok {
			return fmt.Errorf("mediatest: cannot add %T", e)
		}
		p.elements = append(p.elements, el)
	}
	return nil
}

func (p *Pipeline) SetState(state media.State) error {
	if p.engine.stateFails(state) {
		return fmt.Errorf("mediatest: state change to %s failed", state)
	}

	p.mu.Lock()
	p.states = append(p.states, state)
	p.current = state
	var source string
	if len(p.elements) > 0 {
		source = p.elements[0].name
	}
	p.mu.Unlock()

	if state == media.StatePlaying && p.engine.autoPlays() {
		if source != "" {
			p.Post(media.StateChangedEvent{Origin: source, Old: media.StateNull, New: media.StateReady})
		}
		p.Post(media.StateChangedEvent{Origin: p.name, Old: media.StateNull, New: media.StateReady})
		p.Post(media.StateChangedEvent{Origin: p.name, Old: media.StateReady, New: media.StatePaused})
		p.Post(media.StateChangedEvent{Origin: p.name, Old: media.StatePaused, New: media.StatePlaying})
	}
	return nil
}

func (p *Pipeline) Watch(handler func(media.Event)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.New("mediatest: pipeline closed")
	}
	if p.watching {
		return errors.New("mediatest: bus already watched")
	}
	p.watching = true

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-p.done:
				return
			case ev := <-p.events:
				handler(ev)
			}
		}
	}()
	return nil
}

// Post queues ev on the bus. Events posted after Close are dropped.
func (p *Pipeline) Post(ev media.Event) {
	select {
	case <-p.done:
	case p.events <- ev:
	}
}

func (p *Pipeline) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.done)
	})
	p.wg.Wait()
}

// States returns every requested state, in order.
func (p *Pipeline) States() []media.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]media.State(nil), p.states...)
}

// Current returns the last requested state.
func (p *Pipeline) Current() media.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Closed reports whether Close was called.
func (p *Pipeline) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Elements returns the elements added to the pipeline.
func (p *Pipeline) Elements() []*Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Element(nil), p.elements...)
}

// Element returns the added element with the given name, or nil.
func (p *Pipeline) Element(name string) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, el := range p.elements {
		if el.name == name {
			return el
		}
	}
	return nil
}
