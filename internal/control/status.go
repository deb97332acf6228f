package control

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	rtspviewer "github.com/pfischer54/rtsp-viewer"
)

// Format is the status payload encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat accepts "json" and "msgpack".
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatMsgpack:
		return Format(s), nil
	default:
		return "", fmt.Errorf("invalid status format %q (want json or msgpack)", s)
	}
}

// StatusMessage is the wire form of a player notification.
type StatusMessage struct {
	Kind         string        `json:"kind" msgpack:"kind"`
	Timestamp    string        `json:"timestamp" msgpack:"timestamp"`
	GraphID      string        `json:"graph_id,omitempty" msgpack:"graph_id,omitempty"`
	From         string        `json:"from,omitempty" msgpack:"from,omitempty"`
	To           string        `json:"to,omitempty" msgpack:"to,omitempty"`
	PipelineFrom string        `json:"pipeline_from,omitempty" msgpack:"pipeline_from,omitempty"`
	PipelineTo   string        `json:"pipeline_to,omitempty" msgpack:"pipeline_to,omitempty"`
	Fault        *FaultMessage `json:"fault,omitempty" msgpack:"fault,omitempty"`
	Message      string        `json:"message,omitempty" msgpack:"message,omitempty"`
	Detail       string        `json:"detail,omitempty" msgpack:"detail,omitempty"`
	Error        string        `json:"error,omitempty" msgpack:"error,omitempty"`
}

// FaultMessage is the wire form of a runtime fault.
type FaultMessage struct {
	Kind     string `json:"kind" msgpack:"kind"`
	Category string `json:"category" msgpack:"category"`
	Source   string `json:"source" msgpack:"source"`
	Message  string `json:"message,omitempty" msgpack:"message,omitempty"`
	Debug    string `json:"debug,omitempty" msgpack:"debug,omitempty"`
}

func newFaultMessage(f *rtspviewer.RuntimeFault) *FaultMessage {
	if f == nil {
		return nil
	}
	return &FaultMessage{
		Kind:     f.Kind.String(),
		Category: f.Category.String(),
		Source:   f.Source,
		Message:  f.Message,
		Debug:    f.Debug,
	}
}

// NewStatusMessage converts a notification.
func NewStatusMessage(n rtspviewer.Notification) StatusMessage {
	msg := StatusMessage{
		Kind:      n.Kind.String(),
		Timestamp: n.Time.UTC().Format(time.RFC3339Nano),
		GraphID:   n.GraphID,
		Fault:     newFaultMessage(n.Fault),
		Message:   n.Message,
		Detail:    n.Detail,
	}

	switch n.Kind {
	case rtspviewer.NotifyStateTransition:
		msg.From = n.From.String()
		msg.To = n.To.String()
	case rtspviewer.NotifyPipelineState:
		msg.PipelineFrom = n.PipelineFrom
		msg.PipelineTo = n.PipelineTo
	}
	if n.Err != nil {
		msg.Error = n.Err.Error()
	}
	return msg
}

// Encode marshals v in format f.
func (f Format) Encode(v any) ([]byte, error) {
	switch f {
	case FormatMsgpack:
		return msgpack.Marshal(v)
	default:
		return json.Marshal(v)
	}
}
