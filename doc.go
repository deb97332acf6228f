// Package rtspviewer plays a live RTSP/RTP H.264 stream through GStreamer and
// exposes start/stop control plus a frame surface to a presentation layer.
//
// # Quick Start
//
//	cfg := rtspviewer.DefaultConfig()
//	cfg.URL = "rtsp://192.168.1.100:8554/stream"
//
//	player, err := rtspviewer.NewPlayer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer player.Stop()
//
//	if err := player.Start(ctx); err != nil {
//	    // *BuildError: no decoder or sink could be constructed
//	    log.Fatal(err)
//	}
//
// # Lifecycle
//
// A Player owns at most one processing graph. Its state moves through
//
//	Idle → Building → Playing → Stopping → Idle
//
// Start returns as soon as PLAYING has been requested; the pipeline reaches it
// asynchronously and the arrival is reported as a PipelineState notification.
// Stop blocks until every element released its resources, including the
// hardware decoder context, and is a no-op when already Idle. An engine error
// or end of stream stops the graph on its own; there is no automatic
// reconnection, a supervisor may call Start again with the same config.
//
// # Decoding tiers
//
// StreamConfig.Decoder selects the fallback policy:
//
//   - DecoderHardware (default): VAAPI decode, falls back to software
//   - DecoderHardwareOnly: VAAPI decode, fails when unavailable
//   - DecoderAuto: software decode into the first sink that exists
//
// The software tier probes StreamConfig.Sinks in order (waylandsink,
// glimagesink, xvimagesink, ximagesink, autovideosink by default).
//
// # Notifications and surface
//
// Subscribe registers a channel for lifecycle transitions, pipeline state
// changes, faults, warnings and build failures. Delivery never blocks the
// stream; a full channel misses notifications.
//
// Surface returns the frame surface. Frames are copied from the sink input only
// while someone watches the surface, and the surface is reset on Stop.
package rtspviewer
