package mediatest

import (
	"fmt"
	"slices"
	"sync"

	"github.com/pfischer54/rtsp-viewer/internal/media"
)

// Element is an in-memory media.Element. Every element can act as a dynamic
// source and as a frame source.
type Element struct {
	name    string
	factory string
	engine  *Engine

	mu          sync.Mutex
	props       map[string]any
	downstream  *Element
	inputLinked bool
	released    int
	padHandlers []func(media.Pad)
	tap         *media.FrameTap
}

func (e *Element) Name() string    { return e.name }
func (e *Element) Factory() string { return e.factory }

func (e *Element) SetProperty(name string, value any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.props[name] = value
	return nil
}

// Property returns a value set with SetProperty.
func (e *Element) Property(name string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.props[name]
	return v, ok
}

func (e *Element) Link(dst media.Element) error {
	d, ok := dst.(*Element)
	if !ok {
		return fmt.Errorf("mediatest: cannot link to %T", dst)
	}
	if e.engine.linkFails(e.factory, d.factory) {
		return fmt.Errorf("mediatest: link %s -> %s refused", e.factory, d.factory)
	}

	e.mu.Lock()
	e.downstream = d
	e.mu.Unlock()

	d.mu.Lock()
	d.inputLinked = true
	d.mu.Unlock()
	return nil
}

// Downstream returns the element this one is statically linked to.
func (e *Element) Downstream() *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.downstream
}

func (e *Element) InputLinked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inputLinked
}

func (e *Element) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.released++
}

// Released reports whether Release was called at least once.
func (e *Element) Released() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.released > 0
}

func (e *Element) OnPadAdded(fn func(media.Pad)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.padHandlers = append(e.padHandlers, fn)
	return nil
}

// EmitPad announces a new pad with the given media type to every pad-added
// handler, on the calling goroutine.
func (e *Element) EmitPad(name, mediaType string) *Pad {
	p := NewPad(e.engine, name, mediaType)

	e.mu.Lock()
	handlers := slices.Clone(e.padHandlers)
	e.mu.Unlock()

	for _, fn := range handlers {
		fn(p)
	}
	return p
}

func (e *Element) TapFrames(tap media.FrameTap) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tap = &tap
	return nil
}

// PushFrame hands f to the installed tap. It reports whether the frame was
// delivered.
func (e *Element) PushFrame(f media.Frame) bool {
	e.mu.Lock()
	tap := e.tap
	e.mu.Unlock()

	if tap == nil || !tap.Active() {
		return false
	}
	tap.Deliver(f)
	return true
}

// NewPad returns a pad that is not attached to any element. It links through
// engine like pads announced with Element.EmitPad.
func NewPad(engine *Engine, name, mediaType string) *Pad {
	return &Pad{name: name, mediaType: mediaType, engine: engine}
}

// Pad is a pad announced by Element.EmitPad.
type Pad struct {
	name      string
	mediaType string
	engine    *Engine

	mu     sync.Mutex
	linked *Element
}

func (p *Pad) Name() string      { return p.name }
func (p *Pad) MediaType() string { return p.mediaType }

func (p *Pad) LinkTo(dst media.Element) error {
	d, ok := dst.(*Element)
	if !ok {
		return fmt.Errorf("mediatest: cannot link pad to %T", dst)
	}
	if p.engine.padsRejected() {
		return fmt.Errorf("mediatest: pad %s link refused (noformat)", p.name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inputLinked {
		return fmt.Errorf("mediatest: %s sink pad was already linked", d.name)
	}
	d.inputLinked = true

	p.mu.Lock()
	p.linked = d
	p.mu.Unlock()
	return nil
}

// Peer returns the element the pad was linked to, or nil.
func (p *Pad) Peer() *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.linked
}
