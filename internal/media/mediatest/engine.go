// Package mediatest provides an in-memory media engine for tests. Element
// construction, static links, pad links and state changes can be scripted to
// fail, and tests drive pad discovery, frames and bus events by hand.
package mediatest

import (
	"fmt"
	"sync"

	"github.com/pfischer54/rtsp-viewer/internal/media"
)

// Engine is a scriptable media.Engine.
type Engine struct {
	mu          sync.Mutex
	unavailable map[string]bool
	failLinks   map[[2]string]bool
	failStates  map[media.State]bool
	rejectPads  bool
	autoPlay    bool

	pipelines []*Pipeline
	elements  []*Element
}

// NewEngine returns an engine where every factory exists and every operation
// succeeds. SetState(PLAYING) posts the usual NULL→READY→PAUSED→PLAYING
// sequence on the bus.
func NewEngine() *Engine {
	return &Engine{
		unavailable: make(map[string]bool),
		failLinks:   make(map[[2]string]bool),
		failStates:  make(map[media.State]bool),
		autoPlay:    true,
	}
}

// Unavailable makes the named factories fail to construct.
func (e *Engine) Unavailable(factories ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, f := range factories {
		e.unavailable[f] = true
	}
}

// Available undoes Unavailable.
func (e *Engine) Available(factories ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, f := range factories {
		delete(e.unavailable, f)
	}
}

// FailLink makes static links between the two factories fail.
func (e *Engine) FailLink(from, to string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failLinks[[2]string{from, to}] = true
}

// FailStateChange makes requests for state fail synchronously.
func (e *Engine) FailStateChange(state media.State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failStates[state] = true
}

// RejectPadLinks makes every Pad.LinkTo fail.
func (e *Engine) RejectPadLinks(reject bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rejectPads = reject
}

// AutoPlay controls whether SetState(PLAYING) posts state change events.
func (e *Engine) AutoPlay(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoPlay = enabled
}

func (e *Engine) NewPipeline(name string) (media.Pipeline, error) {
	p := &Pipeline{
		name:   name,
		engine: e,
		events: make(chan media.Event, 64),
		done:   make(chan struct{}),
	}

	e.mu.Lock()
	e.pipelines = append(e.pipelines, p)
	e.mu.Unlock()
	return p, nil
}

func (e *Engine) NewElement(factory, name string) (media.Element, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.unavailable[factory] {
		return nil, fmt.Errorf("mediatest: no such element factory %q", factory)
	}

	el := &Element{
		name:    name,
		factory: factory,
		engine:  e,
		props:   make(map[string]any),
	}
	e.elements = append(e.elements, el)
	return el, nil
}

// Pipelines returns every pipeline created so far, oldest first.
func (e *Engine) Pipelines() []*Pipeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Pipeline(nil), e.pipelines...)
}

// LastPipeline returns the most recently created pipeline, or nil.
func (e *Engine) LastPipeline() *Pipeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pipelines) == 0 {
		return nil
	}
	return e.pipelines[len(e.pipelines)-1]
}

// Elements returns every element created so far, oldest first.
func (e *Engine) Elements() []*Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Element(nil), e.elements...)
}

// LastElement returns the most recently created element of factory, or nil.
func (e *Engine) LastElement(factory string) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.elements) - 1; i >= 0; i-- {
		if e.elements[i].factory == factory {
			return e.elements[i]
		}
	}
	return nil
}

// Unreleased returns the elements that were constructed but never released.
func (e *Engine) Unreleased() []*Element {
	var out []*Element
	for _, el := range e.Elements() {
		if !el.Released() {
			out = append(out, el)
		}
	}
	return out
}

func (e *Engine) linkFails(from, to string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failLinks[[2]string{from, to}]
}

func (e *Engine) stateFails(s media.State) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failStates[s]
}

func (e *Engine) padsRejected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rejectPads
}

func (e *Engine) autoPlays() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.autoPlay
}
