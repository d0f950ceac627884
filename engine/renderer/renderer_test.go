package renderer

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/math"
	"github.com/spaghettifunk/array/engine/renderer/headless"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
	"github.com/spaghettifunk/array/engine/tracking"
)

type source struct {
	frame atomic.Pointer[tracking.Frame]
}

func (s *source) CurrentFrame() *tracking.Frame {
	return s.frame.Load()
}

func testFrame() *tracking.Frame {
	return &tracking.Frame{
		Camera: tracking.Camera{
			Transform:       math.NewMat4Translation(math.NewVec3(0, 0, 1)),
			ImageResolution: math.NewVec2(64, 48),
			FieldOfView:     math.DegToRad(60),
		},
		Anchors: []tracking.Anchor{
			{ID: uuid.New(), Transform: math.NewMat4Translation(math.NewVec3(0, 0, -1))},
			{ID: uuid.New(), Transform: math.NewMat4Translation(math.NewVec3(0.5, 0, -1))},
		},
		LightEstimate: &tracking.LightEstimate{AmbientIntensity: 1000, AmbientColorTemperature: 6500},
		CapturedImage: image.NewYCbCr(image.Rect(0, 0, 64, 48), image.YCbCrSubsampleRatio420),
	}
}

type harness struct {
	device *headless.Device
	dest   *headless.Destination
	source *source
	r      *Renderer
}

func newHarness(t *testing.T, completion headless.CompletionMode, mode DisplayMode) *harness {
	t.Helper()
	size := math.NewVec2(640, 480)
	dev := headless.NewDevice(headless.Options{Completion: completion, DrawableSize: size})
	dest := headless.NewDestination(size)
	src := &source{}
	src.frame.Store(testFrame())

	r, err := New(dev, dest, src, Options{MaxBuffersInFlight: 3, DisplayMode: mode})
	require.NoError(t, err)
	t.Cleanup(func() {
		if completion == headless.CompletionManual {
			dev.Queue().CompleteAll()
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, r.Close(ctx))
		dev.Release()
	})
	return &harness{device: dev, dest: dest, source: src, r: r}
}

func drawGroups(cb *headless.CommandBuffer) []string {
	var out []string
	for _, c := range cb.Draws() {
		out = append(out, c.Group)
	}
	return out
}

func TestDrawOrderFollowsDisplayMode(t *testing.T) {
	tests := []struct {
		mode DisplayMode
		want []string
	}{
		{DisplayCubes, []string{"DrawCapturedImage", "DrawAnchors", "DrawSDF"}},
		{DisplayPoints, []string{"DrawCapturedImage", "DrawPoints", "DrawSDF"}},
		{DisplayBoth, []string{"DrawCapturedImage", "DrawAnchors", "DrawPoints", "DrawSDF"}},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			h := newHarness(t, headless.CompletionAuto, tt.mode)
			h.r.AddPoint(math.NewVec3(0, 0, -0.5), math.NewVec4(1, 0, 0, 1))

			require.NoError(t, h.r.Draw())
			last := h.device.Queue().Last()
			require.NotNil(t, last)
			assert.Equal(t, tt.want, drawGroups(last))
			assert.NotNil(t, last.Presented())
		})
	}
}

func TestSetDisplayModeAppliesToNextFrame(t *testing.T) {
	h := newHarness(t, headless.CompletionAuto, DisplayCubes)
	h.r.AddPoint(math.NewVec3(0, 0, -0.5), math.NewVec4(1, 0, 0, 1))

	require.NoError(t, h.r.Draw())
	assert.NotContains(t, drawGroups(h.device.Queue().Last()), "DrawPoints")

	h.r.SetDisplayMode(DisplayPoints)
	require.NoError(t, h.r.Draw())
	groups := drawGroups(h.device.Queue().Last())
	assert.Contains(t, groups, "DrawPoints")
	assert.NotContains(t, groups, "DrawAnchors")

	h.r.SetDisplayMode(DisplayMode(42))
	assert.Equal(t, DisplayPoints, h.r.DisplayMode())
}

func TestSkippedFramesStillReleaseTheGate(t *testing.T) {
	h := newHarness(t, headless.CompletionManual, DisplayCubes)

	h.source.frame.Store(nil)
	err := h.r.Draw()
	assert.ErrorIs(t, err, core.ErrNoCurrentFrame)
	assert.True(t, IsSkipped(err))
	assert.Equal(t, 1, h.r.Outstanding())
	assert.Equal(t, 1, h.device.Queue().Committed())
	assert.Empty(t, h.device.Queue().Last().Commands())

	require.True(t, h.device.Queue().CompleteNext())
	assert.Equal(t, 0, h.r.Outstanding())

	h.source.frame.Store(testFrame())
	h.dest.SetDrawableAvailable(false)
	err = h.r.Draw()
	assert.ErrorIs(t, err, core.ErrNoRenderPass)
	assert.Nil(t, h.device.Queue().Last().Presented())
	require.True(t, h.device.Queue().CompleteNext())
	assert.Equal(t, 0, h.r.Outstanding())
}

func TestMissingDrawableSkipsPresent(t *testing.T) {
	h := newHarness(t, headless.CompletionManual, DisplayBoth)

	h.dest.SetDrawableWithheld(true)
	err := h.r.Draw()
	assert.ErrorIs(t, err, core.ErrNoDrawable)
	assert.True(t, IsSkipped(err))

	queue := h.device.Queue()
	assert.Equal(t, 1, queue.Committed())
	assert.Nil(t, queue.Last().Presented())
	assert.Empty(t, queue.Last().Draws())
	assert.Equal(t, 1, h.r.Outstanding())

	require.True(t, queue.CompleteNext())
	assert.Equal(t, 0, h.r.Outstanding())

	h.dest.SetDrawableWithheld(false)
	require.NoError(t, h.r.Draw())
	assert.NotNil(t, queue.Last().Presented())
}

func TestGateBlocksOneFrameBeyondCapacity(t *testing.T) {
	h := newHarness(t, headless.CompletionManual, DisplayCubes)

	for i := 0; i < 3; i++ {
		require.NoError(t, h.r.Draw())
	}
	assert.Equal(t, 3, h.r.Outstanding())

	done := make(chan error, 1)
	go func() { done <- h.r.Draw() }()

	select {
	case <-done:
		t.Fatal("fourth frame admitted with three in flight")
	case <-time.After(50 * time.Millisecond):
	}

	require.True(t, h.device.Queue().CompleteNext())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("completion did not admit the waiting frame")
	}
}

func TestCompletedFramesNeverBlock(t *testing.T) {
	h := newHarness(t, headless.CompletionManual, DisplayCubes)

	for cycle := 0; cycle < 5; cycle++ {
		for i := 0; i < 3; i++ {
			require.NoError(t, h.r.Draw())
		}
		assert.Equal(t, 3, h.device.Queue().CompleteAll())
		assert.Equal(t, 0, h.r.Outstanding())
	}

	done := make(chan error, 1)
	go func() { done <- h.r.Draw() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("draw blocked with nothing in flight")
	}
}

func TestSharedUniformSlotsCycle(t *testing.T) {
	h := newHarness(t, headless.CompletionAuto, DisplayCubes)

	var offsets []int
	for i := 0; i < 4; i++ {
		require.NoError(t, h.r.Draw())
		for _, c := range h.device.Queue().Last().Commands() {
			if c.Kind == headless.CommandSetUniformBuffer && c.Binding == uint32(metadata.BindingSharedUniforms) && c.Group == "DrawSDF" {
				offsets = append(offsets, c.Offset)
			}
		}
	}
	assert.Equal(t, []int{0, 256, 512, 0}, offsets)
}

func TestSharedUniformsCarryObjectPosition(t *testing.T) {
	h := newHarness(t, headless.CompletionAuto, DisplayCubes)
	h.r.SetObjectPosition(math.NewVec3(1, 2, 3))
	require.NoError(t, h.r.Draw())
	assert.Equal(t, math.NewVec3(1, 2, 3), h.r.ObjectPosition())

	buf := h.r.shared.Buffer().(*headless.Buffer)
	raw := buf.Bytes(192, 12)
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f}, raw[:4])
}

func TestResizeUpdatesDrawableSize(t *testing.T) {
	h := newHarness(t, headless.CompletionAuto, DisplayCubes)
	h.r.Resize(math.NewVec2(1024, 768))
	assert.Equal(t, math.NewVec2(1024, 768), h.r.DrawableSize())

	h.r.Resize(math.NewVec2(0, 768))
	assert.Equal(t, math.NewVec2(1024, 768), h.r.DrawableSize())
	require.NoError(t, h.r.Draw())
}

func TestCloseWaitsForFramesInFlight(t *testing.T) {
	dev := headless.NewDevice(headless.Options{Completion: headless.CompletionAuto, Latency: 5 * time.Millisecond})
	defer dev.Release()
	dest := headless.NewDestination(math.NewVec2(640, 480))
	src := &source{}
	src.frame.Store(testFrame())

	r, err := New(dev, dest, src, Options{})
	require.NoError(t, err)
	assert.Equal(t, MaxBuffersInFlight, r.MaxBuffersInFlight())

	for i := 0; i < 6; i++ {
		require.NoError(t, r.Draw())
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Close(ctx))
	require.NoError(t, dev.WaitIdle())
	assert.Equal(t, 6, dev.Queue().Completed())
	assert.True(t, errors.Is(r.Draw(), core.ErrClosed))
}

func TestNewRejectsBadOptions(t *testing.T) {
	dev := headless.NewDevice(headless.Options{})
	defer dev.Release()
	dest := headless.NewDestination(math.NewVec2(640, 480))

	_, err := New(dev, dest, &source{}, Options{MaxBuffersInFlight: -1})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
	_, err = New(dev, dest, &source{}, Options{DisplayMode: DisplayMode(9)})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestParseDisplayMode(t *testing.T) {
	m, err := ParseDisplayMode("Points")
	require.NoError(t, err)
	assert.Equal(t, DisplayPoints, m)

	_, err = ParseDisplayMode("wireframe")
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	b, err := ParseBackendType("headless")
	require.NoError(t, err)
	assert.Equal(t, Headless, b)
}
