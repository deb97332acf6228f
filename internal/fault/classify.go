package fault

import (
	"strings"

	"github.com/pfischer54/rtsp-viewer/internal/media"
)

// Category classifies engine errors for logs, metrics and notifications.
type Category int

const (
	// CategoryNetwork covers connection, timeout and DNS failures.
	CategoryNetwork Category = iota
	// CategoryCodec covers decode and negotiation failures.
	CategoryCodec
	// CategoryAuth covers authentication and authorization failures.
	CategoryAuth
	// CategoryUnknown is everything else.
	CategoryUnknown
)

func (c Category) String() string {
	switch c {
	case CategoryNetwork:
		return "network"
	case CategoryCodec:
		return "codec"
	case CategoryAuth:
		return "auth"
	default:
		return "unknown"
	}
}

var (
	authKeywords = []string{
		"unauthorized",
		"401",
		"403",
		"forbidden",
		"authentication",
		"credentials",
		"password",
		"username",
	}

	codecKeywords = []string{
		"codec",
		"decode",
		"format",
		"negotiation",
		"caps",
		"h264",
		"h265",
		"not negotiated",
		"not-negotiated",
		"no decoder",
		"missing plugin",
		"vaapi",
	}

	networkKeywords = []string{
		"connection",
		"timeout",
		"timed out",
		"unreachable",
		"network",
		"dns",
		"resolve",
		"socket",
		"tcp",
		"udp",
		"rtsp",
		"not found",
		"could not connect",
		"failed to connect",
		"could not read",
	}
)

// Classify categorizes an engine error from its message and debug string.
// The engine binding does not expose error domains, so classification is
// keyword based. Auth is checked first, then codec, then network.
func Classify(ev media.ErrorEvent) Category {
	combined := strings.ToLower(ev.Message + " " + ev.Debug)

	switch {
	case containsAny(combined, authKeywords):
		return CategoryAuth
	case containsAny(combined, codecKeywords):
		return CategoryCodec
	case containsAny(combined, networkKeywords):
		return CategoryNetwork
	default:
		return CategoryUnknown
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
