package gstreamer

import (
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

const rtpCapsName = "application/x-rtp"

// mediaTypeOf returns the media type of the first caps structure. RTP caps are
// reported by their payload instead of the transport framing, so an H.264 video
// stream from rtspsrc reads "video/x-h264".
func mediaTypeOf(caps *gst.Caps) string {
	if caps == nil || caps.GetSize() == 0 {
		return ""
	}

	structure := caps.GetStructureAt(0)
	name := structure.Name()
	if name != rtpCapsName {
		return name
	}

	return rtpMediaType(stringField(structure, "media"), stringField(structure, "encoding-name"))
}

// rtpMediaType maps the "media" and "encoding-name" fields of RTP caps to a
// media type string.
func rtpMediaType(mediaField, encoding string) string {
	if mediaField == "" {
		return rtpCapsName
	}
	if encoding == "" {
		return mediaField
	}
	return mediaField + "/x-" + strings.ToLower(encoding)
}

// describeCaps extracts frame geometry and format for surface frames.
func describeCaps(caps *gst.Caps) (width, height int, format string) {
	if caps == nil || caps.GetSize() == 0 {
		return 0, 0, ""
	}

	structure := caps.GetStructureAt(0)
	if val, err := structure.GetValue("width"); err == nil {
		if w, ok := val.(int); ok {
			width = w
		}
	}
	if val, err := structure.GetValue("height"); err == nil {
		if h, ok := val.(int); ok {
			height = h
		}
	}
	format = stringField(structure, "format")
	return width, height, format
}

func stringField(structure *gst.Structure, field string) string {
	val, err := structure.GetValue(field)
	if err != nil {
		return ""
	}
	s, _ := val.(string)
	return s
}
