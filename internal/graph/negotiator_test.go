package graph

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfischer54/rtsp-viewer/internal/media"
	"github.com/pfischer54/rtsp-viewer/internal/media/mediatest"
)

func buildGraph(t *testing.T, eng *mediatest.Engine) *Graph {
	t.Helper()
	g, err := NewBuilder(eng, nil).Build(testSettings(), SoftwarePlan("waylandsink"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Shutdown() })
	return g
}

type warnings struct {
	mu  sync.Mutex
	got []media.WarningEvent
}

func (w *warnings) add(ev media.WarningEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.got = append(w.got, ev)
}

func (w *warnings) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.got)
}

func TestNegotiator_LinksOnlyVideo(t *testing.T) {
	eng := mediatest.NewEngine()
	g := buildGraph(t, eng)
	var warn warnings
	n := NewNegotiator(g, warn.add)
	require.NoError(t, n.Attach(nil))

	src := g.Element(RoleSource).(*mediatest.Element)
	video := src.EmitPad("recv_rtp_src_0_1_96", "video/x-h264")
	audio := src.EmitPad("recv_rtp_src_1_2_97", "audio/x-opus")

	assert.Same(t, g.Element(RoleDepayloader), video.Peer())
	assert.Nil(t, audio.Peer())
	assert.True(t, g.Element(RoleDepayloader).InputLinked())
	assert.Zero(t, warn.count())
}

func TestNegotiator_Outcomes(t *testing.T) {
	eng := mediatest.NewEngine()
	g := buildGraph(t, eng)
	n := NewNegotiator(g, nil)

	tests := []struct {
		name      string
		mediaType string
		want      Outcome
	}{
		{"audio first is ignored", "audio/x-opus", OutcomeIgnored},
		{"no caps yet is ignored", "", OutcomeIgnored},
		{"first video links", "video/x-h264", OutcomeLinked},
		{"second video is a no-op", "video/x-h264", OutcomeAlreadyLinked},
		{"metadata is ignored", "application/x-onvif-metadata", OutcomeIgnored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pad := mediatest.NewPad(eng, tt.name, tt.mediaType)
			assert.Equal(t, tt.want, n.OnPadDiscovered(pad))
		})
	}
}

func TestNegotiator_DuplicateVideoPads(t *testing.T) {
	eng := mediatest.NewEngine()
	g := buildGraph(t, eng)
	var warn warnings
	require.NoError(t, NewNegotiator(g, warn.add).Attach(nil))

	src := g.Element(RoleSource).(*mediatest.Element)
	first := src.EmitPad("recv_rtp_src_0", "video/x-h264")
	second := src.EmitPad("recv_rtp_src_0", "video/x-h264")

	assert.NotNil(t, first.Peer())
	assert.Nil(t, second.Peer())
	assert.Zero(t, warn.count(), "duplicate discovery must not warn")
}

func TestNegotiator_ConcurrentDiscovery(t *testing.T) {
	eng := mediatest.NewEngine()
	g := buildGraph(t, eng)
	n := NewNegotiator(g, nil)
	require.NoError(t, n.Attach(nil))
	src := g.Element(RoleSource).(*mediatest.Element)

	const pads = 8
	var wg sync.WaitGroup
	results := make([]*mediatest.Pad, pads)
	for i := 0; i < pads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = src.EmitPad("video", "video/x-h264")
		}(i)
	}
	wg.Wait()

	linked := 0
	for _, p := range results {
		if p.Peer() != nil {
			linked++
		}
	}
	assert.Equal(t, 1, linked)
}

func TestNegotiator_LinkFailureWarns(t *testing.T) {
	eng := mediatest.NewEngine()
	g := buildGraph(t, eng)
	var warn warnings
	n := NewNegotiator(g, warn.add)

	eng.RejectPadLinks(true)
	assert.Equal(t, OutcomeFailed, n.OnPadDiscovered(mediatest.NewPad(eng, "p0", "video/x-h265")))
	assert.Equal(t, 1, warn.count())
	assert.False(t, g.Element(RoleDepayloader).InputLinked())

	// a compatible pad arriving later still links
	eng.RejectPadLinks(false)
	src := g.Element(RoleSource).(*mediatest.Element)
	require.NoError(t, n.Attach(nil))
	p := src.EmitPad("p1", "video/x-h264")
	assert.NotNil(t, p.Peer())
}

func TestNegotiator_RecoversPanic(t *testing.T) {
	eng := mediatest.NewEngine()
	g := buildGraph(t, eng)
	n := NewNegotiator(g, nil)

	pad := &padStub{name: "boom", mediaType: "video/x-h264", link: func(media.Element) error {
		panic("engine exploded")
	}}
	assert.NotPanics(t, func() {
		assert.Equal(t, OutcomeFailed, n.OnPadDiscovered(pad))
	})
}

type padStub struct {
	name      string
	mediaType string
	link      func(media.Element) error
}

func (p *padStub) Name() string                   { return p.name }
func (p *padStub) MediaType() string              { return p.mediaType }
func (p *padStub) LinkTo(dst media.Element) error { return p.link(dst) }
