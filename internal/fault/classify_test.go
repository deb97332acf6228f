package fault

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pfischer54/rtsp-viewer/internal/media"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		message string
		debug   string
		want    Category
	}{
		{
			name:    "auth from debug string",
			message: "Unauthorized",
			debug:   "gstrtspsrc.c: 401 Unauthorized",
			want:    CategoryAuth,
		},
		{
			name:    "auth wins over network",
			message: "Could not connect to server",
			debug:   "authentication failed",
			want:    CategoryAuth,
		},
		{
			name:    "codec",
			message: "Internal data stream error.",
			debug:   "streaming stopped, reason not-negotiated (-4)",
			want:    CategoryCodec,
		},
		{
			name:    "network",
			message: "Could not open resource for reading and writing.",
			debug:   "Failed to connect. (Timeout while waiting for server response)",
			want:    CategoryNetwork,
		},
		{
			name:    "unknown",
			message: "something odd",
			want:    CategoryUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(media.ErrorEvent{Message: tt.message, Debug: tt.debug})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategory_String(t *testing.T) {
	assert.Equal(t, "network", CategoryNetwork.String())
	assert.Equal(t, "codec", CategoryCodec.String())
	assert.Equal(t, "auth", CategoryAuth.String())
	assert.Equal(t, "unknown", CategoryUnknown.String())
	assert.Equal(t, "unknown", Category(42).String())
}
