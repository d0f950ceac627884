package components

import (
	"encoding/binary"
	"errors"
	"image"
	gomath "math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/array/engine/math"
	"github.com/spaghettifunk/array/engine/renderer/frame"
	"github.com/spaghettifunk/array/engine/renderer/headless"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
	"github.com/spaghettifunk/array/engine/renderer/uniforms"
	"github.com/spaghettifunk/array/engine/tracking"
)

const inFlight = 3

type fixture struct {
	device *headless.Device
	dest   *headless.Destination
	setup  Setup
	shared *frame.Ring[uniforms.SharedFrameUniforms]
	index  uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	size := math.NewVec2(800, 600)
	dev := headless.NewDevice(headless.Options{Completion: headless.CompletionManual, DrawableSize: size})
	t.Cleanup(dev.Release)
	dest := headless.NewDestination(size)
	shared, err := frame.NewRing[uniforms.SharedFrameUniforms](dev, "SharedUniforms", inFlight, metadata.BufferUsageUniform)
	require.NoError(t, err)
	return &fixture{
		device: dev,
		dest:   dest,
		setup:  Setup{Device: dev, Destination: dest, InFlight: inFlight},
		shared: shared,
	}
}

func (f *fixture) context(fr *tracking.Frame) FrameContext {
	f.index++
	return FrameContext{
		Index:        f.index,
		Frame:        fr,
		DrawableSize: f.dest.DrawableSize(),
		SharedSlot:   f.shared.Next(),
		Resources:    frame.NewBundle(),
	}
}

// encode runs draw on a fresh command buffer and returns what was recorded.
func (f *fixture) encode(t *testing.T, c Component, ctx FrameContext) *headless.CommandBuffer {
	t.Helper()
	cmd, err := f.device.CommandQueue().CommandBuffer("test")
	require.NoError(t, err)
	enc, err := cmd.RenderCommandEncoder(f.dest.CurrentRenderPass())
	require.NoError(t, err)
	c.Draw(enc, ctx)
	enc.EndEncoding()
	return cmd.(*headless.CommandBuffer)
}

func testCamera() tracking.Camera {
	return tracking.Camera{
		Transform:       math.NewMat4Translation(math.NewVec3(0, 0, 1)),
		ImageResolution: math.NewVec2(1920, 1440),
		FieldOfView:     math.DegToRad(60),
		TrackingState:   tracking.TrackingStateNormal,
	}
}

func anchorsAt(n int) []tracking.Anchor {
	out := make([]tracking.Anchor, n)
	for i := range out {
		out[i] = tracking.Anchor{
			ID:        uuid.New(),
			Transform: math.NewMat4Translation(math.NewVec3(float32(i), 0, 0)),
		}
	}
	return out
}

func readMat4(b []byte) math.Mat4 {
	var m math.Mat4
	for i := range m.Data {
		m.Data[i] = gomath.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return m
}

func TestSelectAnchorsWindow(t *testing.T) {
	assert.Empty(t, SelectAnchors(nil, 64))

	few := anchorsAt(10)
	assert.Equal(t, few, SelectAnchors(few, 64))

	many := anchorsAt(100)
	window := SelectAnchors(many, 64)
	require.Len(t, window, 64)
	assert.Equal(t, many[36].ID, window[0].ID)
	assert.Equal(t, many[99].ID, window[63].ID)

	assert.Empty(t, SelectAnchors(many, 0))
}

func TestAnchorsWriteNewestWindow(t *testing.T) {
	f := newFixture(t)
	a, err := NewAnchors(f.setup)
	require.NoError(t, err)
	defer a.Release()

	anchors := anchorsAt(100)
	ctx := f.context(&tracking.Frame{Camera: testCamera(), Anchors: anchors})
	require.NoError(t, a.Update(ctx))
	assert.Equal(t, 64, a.Count())

	buf := a.slot.Buffer().(*headless.Buffer)
	first := readMat4(buf.Bytes(a.slot.Offset, 64))
	want := anchors[36].Transform.Mul(flipZ)
	assert.True(t, first.Compare(want, 1e-6))
	assert.Equal(t, float32(-1), first.Data[10], "z axis flipped")

	cmd := f.encode(t, a, ctx)
	draws := cmd.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, headless.CommandDrawIndexed, draws[0].Kind)
	assert.Equal(t, 64, draws[0].InstanceCount)
	assert.Equal(t, 60, draws[0].IndexCount)
	assert.Equal(t, "DrawAnchors", draws[0].Group)
}

func TestAnchorsDrawNothingWithoutAnchors(t *testing.T) {
	f := newFixture(t)
	a, err := NewAnchors(f.setup)
	require.NoError(t, err)
	defer a.Release()

	ctx := f.context(&tracking.Frame{Camera: testCamera()})
	require.NoError(t, a.Update(ctx))
	assert.Empty(t, f.encode(t, a, ctx).Draws())
}

func TestAnchorsCycleInstanceSlots(t *testing.T) {
	f := newFixture(t)
	a, err := NewAnchors(f.setup)
	require.NoError(t, err)
	defer a.Release()

	var offsets []int
	for i := 0; i < inFlight+1; i++ {
		require.NoError(t, a.Update(f.context(&tracking.Frame{Camera: testCamera(), Anchors: anchorsAt(1)})))
		offsets = append(offsets, a.slot.Offset)
	}
	assert.Equal(t, offsets[0], offsets[inFlight])
	assert.NotEqual(t, offsets[0], offsets[1])
}

func TestAnchorPipelineState(t *testing.T) {
	f := newFixture(t)
	a, err := NewAnchors(f.setup)
	require.NoError(t, err)
	defer a.Release()

	desc := a.pipeline.(*headless.Pipeline).Descriptor()
	assert.Equal(t, metadata.CompareFunctionLess, desc.DepthCompare)
	assert.True(t, desc.DepthWriteEnabled)
	assert.Equal(t, metadata.FaceCullModeBack, desc.CullMode)
	assert.Equal(t, uint32(24), desc.VertexLayout.Stride)
}

func TestSortPointsByDepth(t *testing.T) {
	red := math.NewVec4(1, 0, 0, 1)
	blue := math.NewVec4(0, 0, 1, 1)
	points := []PointVertex{
		{Position: math.NewVec3(0, 0, -1), Color: red},
		{Position: math.NewVec3(0, 0, -3), Color: red},
		{Position: math.NewVec3(1, 0, 0), Color: red},
		{Position: math.NewVec3(-1, 0, 0), Color: blue},
		{Position: math.NewVec3(0, 0, -2), Color: red},
	}
	SortPointsByDepth(points, math.NewVec3Zero())

	assert.Equal(t, math.NewVec3(0, 0, -3), points[0].Position)
	assert.Equal(t, math.NewVec3(0, 0, -2), points[1].Position)
	// Three points at distance 1 keep their relative order.
	assert.Equal(t, math.NewVec3(0, 0, -1), points[2].Position)
	assert.Equal(t, math.NewVec3(1, 0, 0), points[3].Position)
	assert.Equal(t, math.NewVec3(-1, 0, 0), points[4].Position)

	again := append([]PointVertex(nil), points...)
	SortPointsByDepth(again, math.NewVec3Zero())
	assert.Equal(t, points, again)
}

func TestPointsDrawSortedVertices(t *testing.T) {
	f := newFixture(t)
	p, err := NewPoints(f.setup)
	require.NoError(t, err)
	defer p.Release()

	ctx := f.context(&tracking.Frame{Camera: testCamera()})
	require.NoError(t, p.Update(ctx))
	assert.Empty(t, f.encode(t, p, ctx).Draws())

	p.Add(math.NewVec3(0, 0, 0.5), math.NewVec4(1, 0, 0, 1))
	p.Add(math.NewVec3(0, 0, -2), math.NewVec4(1, 0, 0, 1))
	assert.Equal(t, 2, p.Len())

	ctx = f.context(&tracking.Frame{Camera: testCamera()})
	require.NoError(t, p.Update(ctx))
	snapshot := p.Snapshot()
	assert.Equal(t, math.NewVec3(0, 0, -2), snapshot[0].Position, "farthest from the camera first")

	buf := p.current.(*headless.Buffer)
	assert.Equal(t, 2*pointVertexSize, buf.Size())
	z := gomath.Float32frombits(binary.LittleEndian.Uint32(buf.Bytes(8, 4)))
	assert.Equal(t, float32(-2), z)

	draws := f.encode(t, p, ctx).Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, 2, draws[0].VertexCount)
	assert.Equal(t, "DrawPoints", draws[0].Group)
}

func TestPointsReallocateOnAddAndRetainOldBuffer(t *testing.T) {
	f := newFixture(t)
	p, err := NewPoints(f.setup)
	require.NoError(t, err)
	defer p.Release()

	p.Add(math.NewVec3(0, 0, -1), math.NewVec4(1, 0, 0, 1))
	for i := 0; i < inFlight; i++ {
		require.NoError(t, p.Update(f.context(&tracking.Frame{Camera: testCamera()})))
	}
	old := p.buffers[0].(*headless.Buffer)

	p.Add(math.NewVec3(0, 0, -2), math.NewVec4(1, 0, 0, 1))
	ctx := f.context(&tracking.Frame{Camera: testCamera()})
	require.NoError(t, p.Update(ctx))

	assert.NotSame(t, old, p.buffers[0])
	assert.Equal(t, 2*pointVertexSize, p.buffers[0].Size())
	assert.False(t, old.Released(), "kept until the frame completes")
	assert.Equal(t, 1, ctx.Resources.Len())
	ctx.Resources.Release()
	assert.True(t, old.Released())
}

func TestPointPipelineBlends(t *testing.T) {
	f := newFixture(t)
	p, err := NewPoints(f.setup)
	require.NoError(t, err)
	defer p.Release()

	desc := p.pipeline.(*headless.Pipeline).Descriptor()
	assert.Equal(t, metadata.PrimitiveTypePoint, desc.Topology)
	assert.Equal(t, metadata.AlphaBlending, desc.Blending)
	assert.Equal(t, metadata.CompareFunctionLessEqual, desc.DepthCompare)
	assert.True(t, desc.DepthWriteEnabled)
}

func TestRayPlaneVertices(t *testing.T) {
	cam := testCamera()
	viewport := math.NewVec2(800, 600)

	verts, ok := RayPlaneVertices(cam, viewport)
	require.True(t, ok)

	for i, v := range verts {
		assert.Equal(t, rayPlaneCorners[i], v.Position)
		assert.InDelta(t, 1, v.RayNormal.Length(), 1e-5)
		assert.Less(t, v.RayNormal.Z, float32(0), "corner %d looks forward", i)
	}
	// Screen (0,h) is the bottom left corner.
	assert.Less(t, verts[0].RayNormal.X, float32(0))
	assert.Less(t, verts[0].RayNormal.Y, float32(0))
	assert.Greater(t, verts[3].RayNormal.X, float32(0))
	assert.Greater(t, verts[3].RayNormal.Y, float32(0))
	assert.InDelta(t, verts[0].RayNormal.X, -verts[1].RayNormal.X, 1e-5)
	assert.InDelta(t, verts[0].RayNormal.Y, -verts[2].RayNormal.Y, 1e-5)

	again, ok := RayPlaneVertices(cam, viewport)
	require.True(t, ok)
	assert.Equal(t, verts, again)
}

func TestRayPlaneFailsForDegenerateCamera(t *testing.T) {
	cam := testCamera()
	cam.Transform = math.Mat4{}
	_, ok := RayPlaneVertices(cam, math.NewVec2(800, 600))
	assert.False(t, ok)

	_, ok = RayPlaneVertices(testCamera(), math.NewVec2(0, 0))
	assert.False(t, ok)
}

func TestSDFKeepsPreviousVerticesWhenUnprojectionFails(t *testing.T) {
	f := newFixture(t)
	s, err := NewSDF(f.setup)
	require.NoError(t, err)
	defer s.Release()

	ctx := f.context(&tracking.Frame{Camera: testCamera()})
	require.NoError(t, s.Update(ctx))
	good, ok := s.Vertices()
	require.True(t, ok)

	broken := testCamera()
	broken.Transform = math.Mat4{}
	ctx = f.context(&tracking.Frame{Camera: broken})
	require.NoError(t, s.Update(ctx))
	kept, ok := s.Vertices()
	require.True(t, ok)
	assert.Equal(t, good, kept)

	buf := s.slot.Buffer().(*headless.Buffer)
	encoded := make([]byte, good.Size())
	good.Encode(encoded)
	assert.Equal(t, encoded, buf.Bytes(s.slot.Offset, good.Size()))

	draws := f.encode(t, s, ctx).Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, 4, draws[0].VertexCount)
}

func TestSDFDrawsNothingBeforeFirstValidPlane(t *testing.T) {
	f := newFixture(t)
	s, err := NewSDF(f.setup)
	require.NoError(t, err)
	defer s.Release()

	broken := testCamera()
	broken.Transform = math.Mat4{}
	ctx := f.context(&tracking.Frame{Camera: broken})
	require.NoError(t, s.Update(ctx))
	assert.Empty(t, f.encode(t, s, ctx).Draws())
}

func testImage(w, h int, ratio image.YCbCrSubsampleRatio) *image.YCbCr {
	img := image.NewYCbCr(image.Rect(0, 0, w, h), ratio)
	for i := range img.Y {
		img.Y[i] = byte(i)
	}
	for i := range img.Cb {
		img.Cb[i] = 10
		img.Cr[i] = 20
	}
	return img
}

func TestCapturedImageUploadsPlanes(t *testing.T) {
	f := newFixture(t)
	c, err := NewCapturedImage(f.setup)
	require.NoError(t, err)
	defer c.Release()

	ctx := f.context(&tracking.Frame{Camera: testCamera()})
	require.NoError(t, c.Update(ctx))
	assert.Empty(t, f.encode(t, c, ctx).Draws(), "no image yet")

	img := testImage(64, 48, image.YCbCrSubsampleRatio420)
	ctx = f.context(&tracking.Frame{Camera: testCamera(), CapturedImage: img})
	require.NoError(t, c.Update(ctx))

	y := c.current.y.(*headless.Texture)
	cbcr := c.current.cbcr.(*headless.Texture)
	assert.Equal(t, metadata.PixelFormatR8Unorm, y.Format())
	assert.Equal(t, metadata.PixelFormatRG8Unorm, cbcr.Format())
	assert.Equal(t, 32, cbcr.Width())
	assert.Equal(t, 24, cbcr.Height())
	assert.Equal(t, img.Y, y.Pixels())
	assert.Equal(t, []byte{10, 20, 10, 20}, cbcr.Pixels()[:4])

	cmd := f.encode(t, c, ctx)
	draws := cmd.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, 4, draws[0].VertexCount)

	var bound []uint32
	for _, cm := range cmd.Commands() {
		if cm.Kind == headless.CommandSetFragmentTexture {
			bound = append(bound, cm.Binding)
		}
	}
	assert.Equal(t, []uint32{uint32(metadata.BindingTextureY), uint32(metadata.BindingTextureCbCr)}, bound)
}

func TestCapturedImageSlotsStayBusyUntilCompletion(t *testing.T) {
	f := newFixture(t)
	c, err := NewCapturedImage(f.setup)
	require.NoError(t, err)
	defer c.Release()

	img := testImage(16, 16, image.YCbCrSubsampleRatio420)
	var contexts []FrameContext
	seen := map[*imageSlot]bool{}
	for i := 0; i < inFlight; i++ {
		ctx := f.context(&tracking.Frame{Camera: testCamera(), CapturedImage: img})
		require.NoError(t, c.Update(ctx))
		require.NotNil(t, c.current)
		seen[c.current] = true
		contexts = append(contexts, ctx)
	}
	assert.Len(t, seen, inFlight)

	ctx := f.context(&tracking.Frame{Camera: testCamera(), CapturedImage: img})
	require.NoError(t, c.Update(ctx))
	assert.Nil(t, c.current, "every slot is still read by the GPU")

	contexts[0].Resources.Release()
	ctx = f.context(&tracking.Frame{Camera: testCamera(), CapturedImage: img})
	require.NoError(t, c.Update(ctx))
	assert.NotNil(t, c.current)
}

func TestCapturedImageResizeRetiresTexturesAfterCompletion(t *testing.T) {
	f := newFixture(t)
	c, err := NewCapturedImage(f.setup)
	require.NoError(t, err)
	defer c.Release()

	ctx := f.context(&tracking.Frame{Camera: testCamera(), CapturedImage: testImage(16, 16, image.YCbCrSubsampleRatio420)})
	require.NoError(t, c.Update(ctx))
	old := c.current.y.(*headless.Texture)

	next := f.context(&tracking.Frame{Camera: testCamera(), CapturedImage: testImage(32, 16, image.YCbCrSubsampleRatio422)})
	require.NoError(t, c.Update(next))
	assert.Equal(t, 32, c.current.y.Width())
	assert.Equal(t, 16, c.current.cbcr.Width())
	assert.Equal(t, 16, c.current.cbcr.Height())

	assert.False(t, old.Released())
	ctx.Resources.Release()
	assert.True(t, old.Released())
}

func TestAspectFillTexcoords(t *testing.T) {
	// 4:3 image on a 16:9 viewport is cropped vertically.
	out := AspectFillTexcoords(imagePlaneVertices, math.NewVec2(1440, 1080), math.NewVec2(1920, 1080))
	assert.InDelta(t, 0, out[2], 1e-6)
	assert.InDelta(t, 1, out[6], 1e-6)
	scale := float32(4.0/3.0) / float32(16.0/9.0)
	assert.InDelta(t, 0.5+0.5*scale, out[3], 1e-6)
	assert.InDelta(t, 0.5-0.5*scale, out[11], 1e-6)

	// Matching aspect leaves the quad untouched.
	assert.Equal(t, imagePlaneVertices, AspectFillTexcoords(imagePlaneVertices, math.NewVec2(800, 600), math.NewVec2(400, 300)))
}

func TestCapturedImageResizeRebuildsVertices(t *testing.T) {
	f := newFixture(t)
	c, err := NewCapturedImage(f.setup)
	require.NoError(t, err)
	defer c.Release()

	ctx := f.context(&tracking.Frame{Camera: testCamera(), CapturedImage: testImage(16, 12, image.YCbCrSubsampleRatio420)})
	require.NoError(t, c.Update(ctx))
	before := c.vertices.(*headless.Buffer)

	c.Resize(math.NewVec2(1600, 600))
	ctx = f.context(&tracking.Frame{Camera: testCamera(), CapturedImage: testImage(16, 12, image.YCbCrSubsampleRatio420)})
	require.NoError(t, c.Update(ctx))
	assert.NotSame(t, before, c.vertices)
	assert.False(t, before.Released())
	ctx.Resources.Release()
	assert.True(t, before.Released())
}

// textureBudget fails texture creation once limit textures were made.
type textureBudget struct {
	*headless.Device
	limit   int
	created []*headless.Texture
}

func (d *textureBudget) NewTexture(desc metadata.TextureDescriptor) (metadata.Texture, error) {
	if len(d.created) >= d.limit {
		return nil, errors.New("out of device memory")
	}
	tex, err := d.Device.NewTexture(desc)
	if err != nil {
		return nil, err
	}
	d.created = append(d.created, tex.(*headless.Texture))
	return tex, nil
}

func TestCapturedImageReleasesTexturesWhenAllocationFails(t *testing.T) {
	f := newFixture(t)
	// the second slot's chroma plane fails
	dev := &textureBudget{Device: f.device, limit: 3}
	setup := f.setup
	setup.Device = dev
	c, err := NewCapturedImage(setup)
	require.NoError(t, err)
	defer c.Release()

	ctx := f.context(&tracking.Frame{Camera: testCamera(), CapturedImage: testImage(16, 16, image.YCbCrSubsampleRatio420)})
	assert.Error(t, c.Update(ctx))
	assert.Empty(t, c.slots)
	require.Len(t, dev.created, 3)
	for _, tex := range dev.created {
		assert.True(t, tex.Released(), tex.Label())
	}
}
