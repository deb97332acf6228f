package gstreamer

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/pfischer54/rtsp-viewer/internal/media"
)

type element struct {
	el      *gst.Element
	factory string
}

func (e *element) Name() string    { return e.el.GetName() }
func (e *element) Factory() string { return e.factory }

func (e *element) SetProperty(name string, value any) error {
	return e.el.SetProperty(name, value)
}

func (e *element) Link(dst media.Element) error {
	d, ok := dst.(*element)
	if !ok {
		return fmt.Errorf("gst: cannot link %s to foreign element %T", e.Name(), dst)
	}
	if err := e.el.Link(d.el); err != nil {
		return fmt.Errorf("gst: failed to link %s -> %s: %w", e.Name(), d.Name(), err)
	}
	return nil
}

func (e *element) InputLinked() bool {
	pad := e.el.GetStaticPad("sink")
	return pad != nil && pad.IsLinked()
}

func (e *element) Release() {
	e.el.SetState(gst.StateNull)
}

// OnPadAdded connects fn to the "pad-added" signal. rtspsrc emits it from its
// own streaming thread once per stream announced in the session description.
func (e *element) OnPadAdded(fn func(media.Pad)) error {
	_, err := e.el.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
		slog.Debug("gst: pad-added signal received",
			"element", self.GetName(),
			"pad", srcPad.GetName(),
		)
		fn(&pad{p: srcPad})
	})
	if err != nil {
		return fmt.Errorf("gst: failed to connect pad-added on %s: %w", e.Name(), err)
	}
	return nil
}

// TapFrames installs a buffer probe on the element's sink pad. The buffer is
// mapped and copied only while tap.Active reports true.
func (e *element) TapFrames(tap media.FrameTap) error {
	sinkPad := e.el.GetStaticPad("sink")
	if sinkPad == nil {
		return fmt.Errorf("gst: %s has no sink pad to tap", e.Name())
	}

	var seq uint64
	sinkPad.AddProbe(gst.PadProbeTypeBuffer, func(p *gst.Pad, info *gst.PadProbeInfo) gst.PadProbeReturn {
		if !tap.Active() {
			return gst.PadProbeOK
		}

		buffer := info.GetBuffer()
		if buffer == nil {
			return gst.PadProbeOK
		}

		mapInfo := buffer.Map(gst.MapRead)
		if mapInfo == nil {
			// GPU-resident memory cannot be mapped for reading
			return gst.PadProbeOK
		}
		data := mapInfo.Bytes()
		if len(data) == 0 {
			buffer.Unmap()
			return gst.PadProbeOK
		}

		// GStreamer reuses the buffer
		frameData := make([]byte, len(data))
		copy(frameData, data)
		buffer.Unmap()

		seq++
		width, height, format := describeCaps(p.GetCurrentCaps())
		tap.Deliver(media.Frame{
			Seq:       seq,
			Timestamp: time.Now(),
			Width:     width,
			Height:    height,
			Format:    format,
			Data:      frameData,
		})
		return gst.PadProbeOK
	})

	slog.Debug("gst: surface probe installed", "element", e.Name())
	return nil
}

type pad struct {
	p *gst.Pad
}

func (p *pad) Name() string { return p.p.GetName() }

func (p *pad) MediaType() string {
	return mediaTypeOf(p.p.GetCurrentCaps())
}

func (p *pad) LinkTo(dst media.Element) error {
	d, ok := dst.(*element)
	if !ok {
		return fmt.Errorf("gst: cannot link pad %s to foreign element %T", p.Name(), dst)
	}

	sinkPad := d.el.GetStaticPad("sink")
	if sinkPad == nil {
		return fmt.Errorf("gst: %s has no sink pad", d.Name())
	}

	if ret := p.p.Link(sinkPad); ret != gst.PadLinkOK {
		return fmt.Errorf("gst: failed to link pads %s -> %s:%s: %v",
			p.Name(), d.Name(), sinkPad.GetName(), ret)
	}
	return nil
}
