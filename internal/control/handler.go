package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	rtspviewer "github.com/pfischer54/rtsp-viewer"
)

// Command is a control plane request.
type Command struct {
	Command string `json:"command"`

	// malformed marks a payload that was not valid JSON
	malformed bool
}

// Response answers one Command.
type Response struct {
	CommandAck string         `json:"command_ack"`
	Status     string         `json:"status"`
	Data       map[string]any `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

// Config names the topics and encoding.
type Config struct {
	// Prefix is prepended to control, response and status
	Prefix string
	QoS    byte
	Format Format
}

func (c Config) topic(name string) string { return c.Prefix + "/" + name }

// subscriberID is the notification subscription used for status publishing.
const subscriberID = "control-status"

// Handler executes commands against a viewer and publishes its notifications.
type Handler struct {
	cfg    Config
	client Client
	viewer rtspviewer.Viewer

	commands chan Command
	notes    chan rtspviewer.Notification

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewHandler returns a handler. Nothing is subscribed until Start.
func NewHandler(cfg Config, client Client, viewer rtspviewer.Viewer) *Handler {
	if cfg.Format == "" {
		cfg.Format = FormatJSON
	}
	return &Handler{
		cfg:      cfg,
		client:   client,
		viewer:   viewer,
		commands: make(chan Command, 10),
		notes:    make(chan rtspviewer.Notification, 64),
	}
}

// Start subscribes to the control topic and the viewer's notifications.
// Commands run on one goroutine, in arrival order. ctx bounds the lifetime
// of graphs started through the "start" command.
func (h *Handler) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return errors.New("control: handler already started")
	}

	topic := h.cfg.topic("control")
	slog.Info("control: subscribing to control plane", "topic", topic, "qos", h.cfg.QoS)

	token := h.client.Subscribe(topic, h.cfg.QoS, h.messageHandler)
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("control: subscription to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("control: subscription to %s failed: %w", topic, err)
	}

	if err := h.viewer.Subscribe(subscriberID, h.notes); err != nil {
		h.client.Unsubscribe(topic)
		return fmt.Errorf("control: %w", err)
	}

	h.ctx, h.cancel = context.WithCancel(ctx)
	h.running = true

	h.wg.Add(2)
	go h.processCommands()
	go h.publishStatus()

	slog.Info("control: handler started", "prefix", h.cfg.Prefix, "format", string(h.cfg.Format))
	return nil
}

// Stop unsubscribes and waits for the handler goroutines. A graph started
// through the "start" command is stopped as well, since its lifetime is bound
// to the handler.
func (h *Handler) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	cancel := h.cancel
	h.mu.Unlock()

	if h.client.IsConnected() {
		h.client.Unsubscribe(h.cfg.topic("control")).WaitTimeout(publishTimeout)
	}
	_ = h.viewer.Unsubscribe(subscriberID)

	cancel()
	h.wg.Wait()
	slog.Info("control: handler stopped")
}

// messageHandler runs on the MQTT client's goroutine and never publishes;
// every response, including parse errors, is sent by processCommands.
func (h *Handler) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	var cmd Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		slog.Error("control: failed to parse command", "error", err)
		cmd = Command{malformed: true}
	} else {
		slog.Info("control: command received", "command", cmd.Command)
	}

	select {
	case h.commands <- cmd:
	default:
		slog.Warn("control: command queue full, dropping command", "command", cmd.Command)
	}
}

func (h *Handler) processCommands() {
	defer h.wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			return
		case cmd := <-h.commands:
			h.sendResponse(h.handleCommand(cmd))
		}
	}
}

func (h *Handler) handleCommand(cmd Command) Response {
	if cmd.malformed {
		return Response{CommandAck: "unknown", Status: "error", Error: "invalid JSON"}
	}

	resp := Response{CommandAck: cmd.Command}

	switch cmd.Command {
	case "start":
		if err := h.viewer.Start(h.ctx); err != nil {
			resp.Status = "error"
			resp.Error = err.Error()
			break
		}
		resp.Status = "started"
		resp.Data = statusData(h.viewer.Stats())

	case "stop":
		if err := h.viewer.Stop(); err != nil {
			resp.Status = "error"
			resp.Error = err.Error()
			break
		}
		resp.Status = "stopped"

	case "get_status":
		resp.Status = "success"
		resp.Data = statusData(h.viewer.Stats())

	default:
		resp.Status = "error"
		resp.Error = fmt.Sprintf("unknown command: %s", cmd.Command)
	}

	return resp
}

func statusData(s rtspviewer.Stats) map[string]any {
	data := map[string]any{
		"state":          s.State.String(),
		"builds":         s.Builds,
		"build_failures": s.BuildFailures,
		"pad_links":      s.PadLinks,
		"surface_frames": s.SurfaceFrames,
		"faults":         s.Faults,
	}
	if s.GraphID != "" {
		data["graph_id"] = s.GraphID
		data["tier"] = s.Tier
		data["sink"] = s.Sink
		data["playing_since"] = s.PlayingSince.UTC().Format(time.RFC3339)
	}
	if s.LastFault != nil {
		data["last_fault"] = s.LastFault.Error()
	}
	return data
}

func (h *Handler) sendResponse(resp Response) {
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)

	payload, err := json.Marshal(resp)
	if err != nil {
		slog.Error("control: failed to marshal response", "error", err)
		return
	}

	if err := publish(h.client, h.cfg.topic("response"), h.cfg.QoS, payload); err != nil {
		slog.Error("control: failed to publish response", "error", err)
		return
	}
	slog.Debug("control: response sent", "command_ack", resp.CommandAck, "status", resp.Status)
}

func (h *Handler) publishStatus() {
	defer h.wg.Done()
	topic := h.cfg.topic("status")

	for {
		select {
		case <-h.ctx.Done():
			return
		case n := <-h.notes:
			payload, err := h.cfg.Format.Encode(NewStatusMessage(n))
			if err != nil {
				slog.Error("control: failed to encode status", "error", err)
				continue
			}
			if err := publish(h.client, topic, h.cfg.QoS, payload); err != nil {
				slog.Warn("control: failed to publish status", "kind", n.Kind.String(), "error", err)
			}
		}
	}
}
