package gstreamer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfischer54/rtsp-viewer/internal/media"
)

func TestRTPMediaType(t *testing.T) {
	tests := []struct {
		name     string
		media    string
		encoding string
		want     string
	}{
		{"h264 video", "video", "H264", "video/x-h264"},
		{"opus audio", "audio", "OPUS", "audio/x-opus"},
		{"no encoding", "video", "", "video"},
		{"no media field", "", "H264", "application/x-rtp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rtpMediaType(tt.media, tt.encoding))
		})
	}
}

func TestStateConversion_RoundTrip(t *testing.T) {
	for _, s := range []media.State{media.StateNull, media.StateReady, media.StatePaused, media.StatePlaying} {
		assert.Equal(t, s, fromGstState(toGstState(s)), "state %s", s)
	}
}

// TestEngine_MissingFactory requires the GStreamer runtime
func TestEngine_MissingFactory(t *testing.T) {
	eng, err := New()
	if err != nil {
		t.Skipf("Skipping test: GStreamer not available: %v", err)
	}

	_, err = eng.NewElement("definitely-not-a-factory", "x")
	require.Error(t, err)

	el, err := eng.NewElement("fakesink", "sink")
	require.NoError(t, err)
	assert.Equal(t, "fakesink", el.Factory())
	assert.False(t, el.InputLinked())
	el.Release()
}
