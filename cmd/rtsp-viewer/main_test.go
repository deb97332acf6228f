package main

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rtspviewer "github.com/pfischer54/rtsp-viewer"
	"github.com/pfischer54/rtsp-viewer/internal/hwctx"
	"github.com/pfischer54/rtsp-viewer/internal/media"
	"github.com/pfischer54/rtsp-viewer/internal/media/mediatest"
)

func parse(t *testing.T, argv ...string) (options, *flag.FlagSet) {
	t.Helper()
	opts := options{transport: rtspviewer.TransportBoth, decoder: rtspviewer.DecoderHardware}
	fs := flag.NewFlagSet("rtsp-viewer", flag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "")
	fs.StringVarP(&opts.url, "url", "u", "", "")
	fs.UintVarP(&opts.latency, "latency", "l", 10, "")
	fs.VarP(&opts.transport, "transport", "t", "")
	fs.VarP(&opts.decoder, "decoder", "d", "")
	fs.StringSliceVar(&opts.sinks, "sink", nil, "")
	fs.StringVar(&opts.device, "device", "", "")
	require.NoError(t, fs.Parse(argv))
	return opts, fs
}

func TestBuildConfig_Positional(t *testing.T) {
	opts, fs := parse(t, "rtsp://cam.local:8554/live", "50", "hw")

	cfg, err := buildConfig(opts, fs, fs.Args())
	require.NoError(t, err)
	assert.Equal(t, "rtsp://cam.local:8554/live", cfg.URL)
	assert.Equal(t, uint(50), cfg.LatencyMS)
	assert.Equal(t, rtspviewer.DecoderHardwareOnly, cfg.Decoder)
}

func TestBuildConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.yaml")
	require.NoError(t, os.WriteFile(path, []byte("url: rtsp://file.local/stream\nlatency_ms: 200\ndecoder: auto\n"), 0o644))

	opts, fs := parse(t, "--config", path, "--latency", "20", "--transport", "tcp", "--sink", "xvimagesink")

	cfg, err := buildConfig(opts, fs, fs.Args())
	require.NoError(t, err)
	assert.Equal(t, "rtsp://file.local/stream", cfg.URL)
	assert.Equal(t, uint(20), cfg.LatencyMS)
	assert.Equal(t, rtspviewer.TransportTCP, cfg.Transport)
	assert.Equal(t, rtspviewer.DecoderAuto, cfg.Decoder)
	assert.Equal(t, []string{"xvimagesink"}, cfg.Sinks)
}

func TestBuildConfig_URLFromCommandLineCompletesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.yaml")
	require.NoError(t, os.WriteFile(path, []byte("latency_ms: 30\n"), 0o644))

	opts, fs := parse(t, "-c", path, "rtsp://cam.local/live")

	cfg, err := buildConfig(opts, fs, fs.Args())
	require.NoError(t, err)
	assert.Equal(t, uint(30), cfg.LatencyMS)
	assert.Equal(t, "rtsp://cam.local/live", cfg.URL)
}

func TestBuildConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		argv []string
	}{
		{"missing url", nil},
		{"bad latency", []string{"rtsp://cam.local/live", "soon"}},
		{"bad flag word", []string{"rtsp://cam.local/live", "10", "gpu"}},
		{"too many", []string{"rtsp://cam.local/live", "10", "hw", "extra"}},
		{"bad scheme", []string{"http://cam.local/live"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, fs := parse(t, tt.argv...)
			_, err := buildConfig(opts, fs, fs.Args())
			assert.Error(t, err)
		})
	}
}

// countingViewer counts Stop calls made by the session.
type countingViewer struct {
	*rtspviewer.Player
	stops atomic.Int32
}

func (v *countingViewer) Stop() error {
	v.stops.Add(1)
	return v.Player.Stop()
}

func newViewer(t *testing.T, eng *mediatest.Engine) *countingViewer {
	t.Helper()
	cfg := rtspviewer.DefaultConfig()
	cfg.URL = "rtsp://cam.local:8554/live"
	p, err := rtspviewer.NewPlayer(cfg, rtspviewer.WithEngine(eng), rtspviewer.WithHardwarePool(hwctx.NewPool("", 1)))
	require.NoError(t, err)
	return &countingViewer{Player: p}
}

// runSession starts a session in the background and returns its exit code
// channel once the viewer is playing.
func runSession(t *testing.T, ctx context.Context, v *countingViewer) <-chan int {
	t.Helper()
	done := make(chan int, 1)
	go func() { done <- session(ctx, v, options{}) }()
	require.Eventually(t, func() bool { return v.State() == rtspviewer.StatePlaying }, 2*time.Second, 5*time.Millisecond)
	return done
}

func waitExit(t *testing.T, done <-chan int) int {
	t.Helper()
	select {
	case code := <-done:
		return code
	case <-time.After(2 * time.Second):
		t.Fatal("session did not return")
		return -1
	}
}

func TestSession_EngineErrorExitsWithFailure(t *testing.T) {
	eng := mediatest.NewEngine()
	v := newViewer(t, eng)

	done := runSession(t, context.Background(), v)
	eng.LastPipeline().Post(media.ErrorEvent{Origin: "source", Message: "Could not open resource for reading"})

	assert.Equal(t, 1, waitExit(t, done))
	assert.Equal(t, int32(1), v.stops.Load())
	assert.Equal(t, rtspviewer.StateIdle, v.State())
}

func TestSession_EndOfStreamExitsCleanly(t *testing.T) {
	eng := mediatest.NewEngine()
	v := newViewer(t, eng)

	done := runSession(t, context.Background(), v)
	eng.LastPipeline().Post(media.EOSEvent{Origin: eng.LastPipeline().Name()})

	assert.Equal(t, 0, waitExit(t, done))
	assert.Equal(t, int32(1), v.stops.Load())
}

func TestSession_SignalStopsOnce(t *testing.T) {
	eng := mediatest.NewEngine()
	v := newViewer(t, eng)

	ctx, cancel := context.WithCancel(context.Background())
	done := runSession(t, ctx, v)
	cancel()

	assert.Equal(t, 0, waitExit(t, done))
	assert.Equal(t, int32(1), v.stops.Load())
	assert.Equal(t, rtspviewer.StateIdle, v.State())
	assert.Empty(t, eng.Unreleased())
}

func TestSession_BuildFailureStillStops(t *testing.T) {
	eng := mediatest.NewEngine()
	eng.Unavailable("vaapih264dec", "waylandsink", "glimagesink", "xvimagesink", "ximagesink", "autovideosink")
	v := newViewer(t, eng)

	assert.Equal(t, 1, session(context.Background(), v, options{}))
	assert.Equal(t, int32(1), v.stops.Load())
	assert.Equal(t, rtspviewer.StateIdle, v.State())
}
