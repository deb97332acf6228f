// Package gstreamer implements the media engine on top of GStreamer through
// go-gst. It requires the gstreamer1.0 runtime and, for the hardware tier, the
// VAAPI plugins.
package gstreamer

import (
	"fmt"
	"log/slog"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/pfischer54/rtsp-viewer/internal/media"
)

// Engine creates go-gst backed pipelines and elements.
type Engine struct{}

// New initializes GStreamer and verifies that elements can be created.
func New() (*Engine, error) {
	// Safe to call multiple times
	gst.Init(nil)

	probe, err := gst.NewElement("fakesrc")
	if err != nil {
		return nil, fmt.Errorf("gst: GStreamer not available or not properly installed: %w", err)
	}
	probe.SetState(gst.StateNull)

	slog.Debug("gst: engine initialized")
	return &Engine{}, nil
}

// NewPipeline creates an empty pipeline.
func (e *Engine) NewPipeline(name string) (media.Pipeline, error) {
	p, err := gst.NewPipeline(name)
	if err != nil {
		return nil, fmt.Errorf("gst: failed to create pipeline %q: %w", name, err)
	}
	return &pipeline{p: p}, nil
}

// NewElement creates an element from factory. The error is returned as-is when
// the plugin providing factory is not installed.
func (e *Engine) NewElement(factory, name string) (media.Element, error) {
	el, err := gst.NewElementWithName(factory, name)
	if err != nil {
		return nil, fmt.Errorf("gst: failed to create %s: %w", factory, err)
	}
	return &element{el: el, factory: factory}, nil
}

func toGstState(s media.State) gst.State {
	switch s {
	case media.StateNull:
		return gst.StateNull
	case media.StateReady:
		return gst.StateReady
	case media.StatePaused:
		return gst.StatePaused
	case media.StatePlaying:
		return gst.StatePlaying
	default:
		return gst.VoidPending
	}
}

func fromGstState(s gst.State) media.State {
	switch s {
	case gst.StateNull:
		return media.StateNull
	case gst.StateReady:
		return media.StateReady
	case gst.StatePaused:
		return media.StatePaused
	case gst.StatePlaying:
		return media.StatePlaying
	default:
		return media.StateVoidPending
	}
}
