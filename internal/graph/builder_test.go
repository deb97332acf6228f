package graph

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfischer54/rtsp-viewer/internal/hwctx"
	"github.com/pfischer54/rtsp-viewer/internal/media"
	"github.com/pfischer54/rtsp-viewer/internal/media/mediatest"
)

func testSettings() Settings {
	return Settings{
		URL:           "rtsp://camera.local:8554/stream",
		LatencyMS:     10,
		Protocols:     0x1 | 0x4,
		Retry:         3,
		Timeout:       5 * time.Second,
		UDPBufferSize: 2 * 1024 * 1024,
		PortRange:     "5000-5010",
	}
}

func TestBuild_SoftwarePlan(t *testing.T) {
	eng := mediatest.NewEngine()
	b := NewBuilder(eng, nil)

	g, err := b.Build(testSettings(), SoftwarePlan("waylandsink"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Shutdown() })

	assert.Equal(t, TierSoftware, g.Tier)
	assert.Equal(t, "waylandsink", g.SinkFactory())
	assert.NotEmpty(t, g.ID)
	assert.Contains(t, g.Name(), g.ID[:8])

	p := eng.LastPipeline()
	require.Len(t, p.Elements(), roleCount)

	for role := RoleDepayloader; role < RoleSink; role++ {
		from := g.Element(role).(*mediatest.Element)
		assert.Same(t, g.Element(role+1), from.Downstream(), "%s must be linked downstream", role)
	}

	// source edge left for the negotiator
	assert.Nil(t, g.Element(RoleSource).(*mediatest.Element).Downstream())
	assert.False(t, g.Element(RoleDepayloader).InputLinked())
}

func TestBuild_AppliesSourceSettings(t *testing.T) {
	eng := mediatest.NewEngine()
	g, err := NewBuilder(eng, nil).Build(testSettings(), SoftwarePlan("waylandsink"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Shutdown() })

	src := g.Element(RoleSource).(*mediatest.Element)
	want := map[string]any{
		"location":        "rtsp://camera.local:8554/stream",
		"latency":         uint(10),
		"protocols":       uint(5),
		"retry":           uint(3),
		"timeout":         uint64(5000000),
		"udp-buffer-size": 2097152,
		"port-range":      "5000-5010",
	}
	for name, v := range want {
		got, ok := src.Property(name)
		require.True(t, ok, "property %s not set", name)
		assert.Equal(t, v, got, "property %s", name)
	}

	parse := g.Element(RoleParser).(*mediatest.Element)
	v, _ := parse.Property("config-interval")
	assert.Equal(t, 0, v)

	sink := g.Element(RoleSink).(*mediatest.Element)
	v, _ = sink.Property("sync")
	assert.Equal(t, false, v)
	v, _ = sink.Property("enable-last-sample")
	assert.Equal(t, false, v)
}

func TestBuild_ElementUnavailableReleasesEverything(t *testing.T) {
	for _, role := range Roles {
		t.Run(role.String(), func(t *testing.T) {
			eng := mediatest.NewEngine()
			plan := SoftwarePlan("waylandsink")
			eng.Unavailable(plan.Factory(role))

			g, err := NewBuilder(eng, nil).Build(testSettings(), plan)
			require.Error(t, err)
			assert.Nil(t, g)
			assert.ErrorIs(t, err, ErrElementUnavailable)

			var be *BuildError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, role, be.Role)
			assert.Equal(t, TierSoftware, be.Tier)

			assert.Empty(t, eng.Unreleased(), "constructed elements must be released")
			assert.True(t, eng.LastPipeline().Closed())
		})
	}
}

func TestBuild_LinkFailureReleasesGraph(t *testing.T) {
	eng := mediatest.NewEngine()
	eng.FailLink("avdec_h264", "videoconvert")

	g, err := NewBuilder(eng, nil).Build(testSettings(), SoftwarePlan("waylandsink"))
	require.Error(t, err)
	assert.Nil(t, g)
	assert.ErrorIs(t, err, ErrLinkFailure)

	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, RoleDecoder, be.Role)

	assert.Len(t, eng.Elements(), roleCount)
	assert.Empty(t, eng.Unreleased())
}

func TestBuild_HardwareLease(t *testing.T) {
	eng := mediatest.NewEngine()
	pool := hwctx.NewPool("", 1)
	b := NewBuilder(eng, pool)

	g, err := b.Build(testSettings(), HardwarePlan())
	require.NoError(t, err)
	assert.Equal(t, int64(1), pool.InUse())

	// a second hardware graph cannot get the context
	_, err = b.Build(testSettings(), HardwarePlan())
	require.ErrorIs(t, err, ErrElementUnavailable)
	require.ErrorIs(t, err, hwctx.ErrBusy)

	require.NoError(t, g.Shutdown())
	assert.Equal(t, int64(0), pool.InUse())

	g2, err := b.Build(testSettings(), HardwarePlan())
	require.NoError(t, err, "context must be reusable after shutdown")
	require.NoError(t, g2.Shutdown())
}

func TestBuild_HardwareLeaseReturnedOnFailure(t *testing.T) {
	eng := mediatest.NewEngine()
	eng.Unavailable("vaapisink")
	pool := hwctx.NewPool("", 1)

	_, err := NewBuilder(eng, pool).Build(testSettings(), HardwarePlan())
	require.ErrorIs(t, err, ErrElementUnavailable)
	assert.Equal(t, int64(0), pool.InUse())
}

func TestGraph_ShutdownOnce(t *testing.T) {
	eng := mediatest.NewEngine()
	g, err := NewBuilder(eng, nil).Build(testSettings(), SoftwarePlan("waylandsink"))
	require.NoError(t, err)

	require.NoError(t, g.Play())
	require.NoError(t, g.Shutdown())
	require.NoError(t, g.Shutdown())

	p := eng.LastPipeline()
	assert.Equal(t, []media.State{media.StatePlaying, media.StateNull}, p.States())
	assert.True(t, p.Closed())
	assert.Empty(t, eng.Unreleased())
}

func TestGraph_PlayRejected(t *testing.T) {
	eng := mediatest.NewEngine()
	eng.FailStateChange(media.StatePlaying)

	g, err := NewBuilder(eng, nil).Build(testSettings(), SoftwarePlan("waylandsink"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Shutdown() })

	assert.Error(t, g.Play())
}

func TestBuildError_Message(t *testing.T) {
	err := elementUnavailable(TierHardware, RoleDecoder, "vaapih264dec", errors.New("no such element"))
	assert.Equal(t, "graph: hardware tier: element unavailable (decoder vaapih264dec): no such element", err.Error())
	assert.True(t, IsBuildError(err))
	assert.False(t, IsBuildError(errors.New("other")))
}
