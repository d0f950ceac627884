package headless

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/math"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
)

type shaders map[string][]byte

func (s shaders) Shader(name string) ([]byte, error) {
	if b, ok := s[name]; ok {
		return b, nil
	}
	return nil, core.ErrShaderNotFound
}

func testPipeline() *metadata.PipelineDescriptor {
	return &metadata.PipelineDescriptor{
		Label:            "Test",
		VertexFunction:   "test.vert",
		FragmentFunction: "test.frag",
		VertexLayout:     metadata.NewPackedVertexLayout(metadata.VertexFormatFloat2),
		ColorFormat:      metadata.PixelFormatBGRA8Unorm,
		SampleCount:      1,
	}
}

func TestManualQueueCompletesInCommitOrder(t *testing.T) {
	dev := NewDevice(Options{Completion: CompletionManual})
	defer dev.Release()

	var order []string
	for _, label := range []string{"a", "b", "c"} {
		cb, err := dev.CommandQueue().CommandBuffer(label)
		require.NoError(t, err)
		cb.AddCompletedHandler(func(cb metadata.CommandBuffer) { order = append(order, cb.Label()) })
		require.NoError(t, cb.Commit())
	}
	assert.Equal(t, 3, dev.Queue().Pending())
	assert.Empty(t, order)

	require.True(t, dev.Queue().CompleteNext())
	assert.Equal(t, []string{"a"}, order)
	assert.Equal(t, 2, dev.Queue().CompleteAll())
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.False(t, dev.Queue().CompleteNext())
	assert.Equal(t, 3, dev.Queue().Completed())
}

func TestAutoQueueCompletesWithLatency(t *testing.T) {
	dev := NewDevice(Options{Latency: time.Millisecond})
	defer dev.Release()

	done := make(chan struct{})
	cb, err := dev.CommandQueue().CommandBuffer("frame")
	require.NoError(t, err)
	cb.AddCompletedHandler(func(metadata.CommandBuffer) { close(done) })
	require.NoError(t, cb.Commit())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("command buffer never completed")
	}
	require.NoError(t, dev.WaitIdle())
	assert.True(t, cb.(*CommandBuffer).Completed())
}

func TestCommitTwiceFails(t *testing.T) {
	dev := NewDevice(Options{Completion: CompletionManual})
	defer dev.Release()

	cb, err := dev.CommandQueue().CommandBuffer("frame")
	require.NoError(t, err)
	require.NoError(t, cb.Commit())
	assert.True(t, errors.Is(cb.Commit(), ErrAlreadyCommitted))
}

func TestEncoderRecordsDebugGroups(t *testing.T) {
	dev := NewDevice(Options{Completion: CompletionManual})
	defer dev.Release()
	dest := NewDestination(math.NewVec2(320, 240))

	p, err := dev.NewRenderPipeline(testPipeline())
	require.NoError(t, err)
	buf, err := dev.NewBuffer("verts", 64, metadata.BufferUsageVertex)
	require.NoError(t, err)

	cb, err := dev.CommandQueue().CommandBuffer("frame")
	require.NoError(t, err)
	enc, err := cb.RenderCommandEncoder(dest.CurrentRenderPass())
	require.NoError(t, err)
	enc.PushDebugGroup("Outer")
	enc.SetRenderPipeline(p)
	enc.SetVertexBuffer(buf, 16, 0)
	enc.Draw(0, 4, 1)
	enc.PopDebugGroup()
	enc.Draw(0, 3, 1)
	enc.EndEncoding()
	enc.Draw(0, 1, 1)

	draws := cb.(*CommandBuffer).Draws()
	require.Len(t, draws, 2)
	assert.Equal(t, "Outer", draws[0].Group)
	assert.Equal(t, "Test", draws[0].Pipeline)
	assert.Equal(t, "", draws[1].Group)
	assert.Equal(t, CommandBeginPass, cb.(*CommandBuffer).Commands()[0].Kind)
}

func TestRenderCommandEncoderNeedsPass(t *testing.T) {
	dev := NewDevice(Options{Completion: CompletionManual})
	defer dev.Release()

	cb, err := dev.CommandQueue().CommandBuffer("frame")
	require.NoError(t, err)
	_, err = cb.RenderCommandEncoder(nil)
	assert.ErrorIs(t, err, core.ErrNoRenderPass)
}

func TestDestinationHandsOutFreshDrawableAfterPresent(t *testing.T) {
	dev := NewDevice(Options{Completion: CompletionManual})
	defer dev.Release()
	dest := NewDestination(math.NewVec2(320, 240))

	pass := dest.CurrentRenderPass()
	require.NotNil(t, pass)
	first := dest.CurrentDrawable()
	assert.Same(t, pass.Drawable, first)

	cb, err := dev.CommandQueue().CommandBuffer("frame")
	require.NoError(t, err)
	cb.Present(first)
	assert.NotSame(t, first, dest.CurrentDrawable())

	dest.SetDrawableAvailable(false)
	assert.Nil(t, dest.CurrentRenderPass())
	assert.Nil(t, dest.CurrentDrawable())

	dest.SetDrawableAvailable(true)
	dest.SetDrawableSize(math.NewVec2(640, 480))
	assert.Equal(t, math.NewVec2(640, 480), dest.CurrentDrawable().Size())
}

func TestWithheldDrawableKeepsRenderPass(t *testing.T) {
	dest := NewDestination(math.NewVec2(320, 240))

	dest.SetDrawableWithheld(true)
	assert.NotNil(t, dest.CurrentRenderPass())
	assert.Nil(t, dest.CurrentDrawable())

	dest.SetDrawableWithheld(false)
	assert.NotNil(t, dest.CurrentDrawable())
}

func TestBufferWriteBounds(t *testing.T) {
	dev := NewDevice(Options{})
	defer dev.Release()

	buf, err := dev.NewBuffer("uniforms", 8, metadata.BufferUsageUniform)
	require.NoError(t, err)
	require.NoError(t, buf.Write(4, []byte{1, 2, 3, 4}))
	assert.ErrorIs(t, buf.Write(6, []byte{1, 2, 3}), core.ErrOutOfBounds)
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 4}, buf.(*Buffer).Bytes(0, 8))
	assert.Equal(t, 1, buf.(*Buffer).Writes())

	_, err = dev.NewBuffer("empty", 0, metadata.BufferUsageVertex)
	assert.ErrorIs(t, err, core.ErrOutOfBounds)
}

func TestTextureReplaceHonoursRowStride(t *testing.T) {
	dev := NewDevice(Options{})
	defer dev.Release()

	tex, err := dev.NewTexture(metadata.TextureDescriptor{Label: "cbcr", Format: metadata.PixelFormatRG8Unorm, Width: 2, Height: 2})
	require.NoError(t, err)
	// 4 bytes of pixels per row plus 2 bytes of padding.
	data := []byte{1, 2, 3, 4, 0, 0, 5, 6, 7, 8}
	require.NoError(t, tex.Replace(data, 6))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, tex.(*Texture).Pixels())
	assert.ErrorIs(t, tex.Replace(data[:6], 6), core.ErrOutOfBounds)
}

func TestPipelineResolvesShaders(t *testing.T) {
	dev := NewDevice(Options{Shaders: shaders{"test.vert": {1}}})
	defer dev.Release()

	_, err := dev.NewRenderPipeline(testPipeline())
	assert.ErrorIs(t, err, core.ErrPipelineCreation)
	assert.ErrorIs(t, err, core.ErrShaderNotFound)

	desc := testPipeline()
	desc.VertexFunction = ""
	_, err = dev.NewRenderPipeline(desc)
	assert.ErrorIs(t, err, metadata.ErrInvalidPipelineDescriptor)
}
