package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	rtspviewer "github.com/pfischer54/rtsp-viewer"
	"github.com/pfischer54/rtsp-viewer/internal/control"
	"github.com/pfischer54/rtsp-viewer/internal/fault"
)

const version = "v0.1.0"

type options struct {
	configPath  string
	url         string
	latency     uint
	transport   rtspviewer.TransportMode
	decoder     rtspviewer.DecoderPreference
	sinks       []string
	device      string
	debug       bool
	metricsAddr string
	mqttBroker  string
	mqttPrefix  string
	mqttFormat  string
	showVersion bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := options{
		transport: rtspviewer.TransportBoth,
		decoder:   rtspviewer.DecoderHardware,
	}
	flag.StringVarP(&opts.configPath, "config", "c", "", "YAML stream configuration file")
	flag.StringVarP(&opts.url, "url", "u", "", "RTSP stream URL")
	flag.UintVarP(&opts.latency, "latency", "l", 10, "Jitter buffer latency in milliseconds")
	flag.VarP(&opts.transport, "transport", "t", "Lower transports: udp, tcp, udp+tcp")
	flag.VarP(&opts.decoder, "decoder", "d", "Decoder preference: hardware, hardware-only, auto")
	flag.StringSliceVar(&opts.sinks, "sink", nil, "Software tier sink priority (repeatable)")
	flag.StringVar(&opts.device, "device", "", "VAAPI render node")
	flag.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	flag.StringVar(&opts.mqttBroker, "mqtt-broker", "", "MQTT broker for the control plane, e.g. localhost:1883")
	flag.StringVar(&opts.mqttPrefix, "mqtt-prefix", "rtsp-viewer", "MQTT topic prefix")
	flag.StringVar(&opts.mqttFormat, "mqtt-format", "json", "Status payload format: json, msgpack")
	flag.BoolVarP(&opts.showVersion, "version", "v", false, "Show version and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: rtsp-viewer [flags] [url] [latency] [hw]\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  rtsp-viewer rtsp://192.168.1.100:8554/stream 10 hw\n")
		fmt.Fprintf(os.Stderr, "  rtsp-viewer --config stream.yaml --metrics-addr :9090\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if opts.showVersion {
		fmt.Printf("rtsp-viewer %s\n", version)
		return 0
	}

	logLevel := slog.LevelInfo
	if opts.debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := buildConfig(opts, flag.CommandLine, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		flag.Usage()
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.metricsAddr != "" {
		srv := serveMetrics(opts.metricsAddr)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	player, err := rtspviewer.NewPlayer(cfg)
	if err != nil {
		slog.Error("failed to create player", "error", err)
		return 1
	}

	slog.Info("rtsp-viewer starting",
		"version", version,
		"url", cfg.URL,
		"latency_ms", cfg.LatencyMS,
		"transport", cfg.Transport.String(),
		"decoder", cfg.Decoder.String(),
	)

	return session(ctx, player, opts)
}

// session plays viewer until ctx is cancelled or, without a control plane,
// until its first graph returns to Idle. Every return path stops viewer
// exactly once.
//
// Returns 1 when the build failed or the graph ended with an engine error.
func session(ctx context.Context, viewer rtspviewer.Viewer, opts options) (exitCode int) {
	defer func() {
		if err := viewer.Stop(); err != nil {
			slog.Error("stop failed", "error", err)
			exitCode = 1
		}
		logStats(viewer.Stats())
	}()

	notes := make(chan rtspviewer.Notification, 64)
	if err := viewer.Subscribe("cli", notes); err != nil {
		slog.Error("failed to subscribe to notifications", "error", err)
		return 1
	}
	defer viewer.Unsubscribe("cli")

	keepAlive := opts.mqttBroker != ""
	if keepAlive {
		stopControl, err := startControl(ctx, opts, viewer)
		if err != nil {
			slog.Error("failed to start control plane", "error", err)
			return 1
		}
		defer stopControl()
	}

	if err := viewer.Start(ctx); err != nil {
		slog.Error("failed to start playback", "error", err)
		var be *rtspviewer.BuildError
		if errors.As(err, &be) {
			slog.Error("build failure detail", "kind", be.Kind, "role", be.Role.String(), "factory", be.Factory)
		}
		if !keepAlive {
			return 1
		}
	}

	frames, stopWatch := viewer.Surface().Watch()
	defer stopWatch()

	for {
		select {
		case <-ctx.Done():
			slog.Info("shutdown requested")
			return exitCode

		case <-frames:
			if f, ok := viewer.Surface().Current(); ok && f.Seq%100 == 1 {
				slog.Debug("surface updated", "seq", f.Seq, "width", f.Width, "height", f.Height, "format", f.Format)
			}

		case n := <-notes:
			logNotification(n)
			if n.Kind == rtspviewer.NotifyFault && n.Fault.Kind == fault.KindEngineError {
				exitCode = 1
			}
			if !keepAlive && n.Kind == rtspviewer.NotifyStateTransition && n.To == rtspviewer.StateIdle {
				return exitCode
			}
		}
	}
}

// buildConfig layers defaults, the config file, changed flags and the
// positional arguments, in that order.
func buildConfig(opts options, fs *flag.FlagSet, args []string) (rtspviewer.StreamConfig, error) {
	cfg := rtspviewer.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := rtspviewer.ReadConfig(opts.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if fs.Changed("url") {
		cfg.URL = opts.url
	}
	if fs.Changed("latency") {
		cfg.LatencyMS = opts.latency
	}
	if fs.Changed("transport") {
		cfg.Transport = opts.transport
	}
	if fs.Changed("decoder") {
		cfg.Decoder = opts.decoder
	}
	if fs.Changed("sink") {
		cfg.Sinks = opts.sinks
	}
	if fs.Changed("device") {
		cfg.HardwareDevice = opts.device
	}

	if len(args) > 3 {
		return cfg, fmt.Errorf("too many arguments")
	}
	if len(args) > 0 {
		cfg.URL = args[0]
	}
	if len(args) > 1 {
		latency, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return cfg, fmt.Errorf("invalid latency %q: %w", args[1], err)
		}
		cfg.LatencyMS = uint(latency)
	}
	if len(args) > 2 {
		if args[2] != "hw" && args[2] != "--hw" {
			return cfg, fmt.Errorf("unknown argument %q (want hw)", args[2])
		}
		cfg.Decoder = rtspviewer.DecoderHardwareOnly
	}

	return cfg, cfg.Validate()
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

func startControl(ctx context.Context, opts options, viewer rtspviewer.Viewer) (stop func(), err error) {
	format, err := control.ParseFormat(opts.mqttFormat)
	if err != nil {
		return nil, err
	}
	hostname, _ := os.Hostname()
	client, err := control.Connect(opts.mqttBroker, fmt.Sprintf("rtsp-viewer-%s-%d", hostname, os.Getpid()))
	if err != nil {
		return nil, err
	}

	handler := control.NewHandler(control.Config{Prefix: opts.mqttPrefix, QoS: 1, Format: format}, client, viewer)
	if err := handler.Start(ctx); err != nil {
		client.Disconnect(250)
		return nil, err
	}
	return func() {
		handler.Stop()
		client.Disconnect(250)
	}, nil
}

func logNotification(n rtspviewer.Notification) {
	switch n.Kind {
	case rtspviewer.NotifyStateTransition:
		slog.Info("viewer state", "from", n.From.String(), "to", n.To.String(), "graph_id", n.GraphID)
	case rtspviewer.NotifyPipelineState:
		slog.Debug("pipeline state", "from", n.PipelineFrom, "to", n.PipelineTo, "graph_id", n.GraphID)
	case rtspviewer.NotifyFault:
		slog.Error("runtime fault",
			"kind", n.Fault.Kind.String(),
			"category", n.Fault.Category.String(),
			"source", n.Fault.Source,
			"message", n.Fault.Message,
			"debug", n.Fault.Debug,
		)
	case rtspviewer.NotifyWarning:
		slog.Warn("engine warning", "message", n.Message, "detail", n.Detail)
	case rtspviewer.NotifyBuildFailed:
		slog.Error("build failed", "error", n.Err)
	}
}

func logStats(s rtspviewer.Stats) {
	slog.Info("session stats",
		"builds", s.Builds,
		"build_failures", s.BuildFailures,
		"pad_links", s.PadLinks,
		"surface_frames", s.SurfaceFrames,
		"faults", s.Faults,
	)
}
