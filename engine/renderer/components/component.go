// Package components holds the visual parts of a frame. Each one owns its
// pipeline and buffers, refreshes them in Update and encodes its draw calls in
// Draw.
package components

import (
	"encoding/binary"
	gomath "math"

	"github.com/spaghettifunk/array/engine/math"
	"github.com/spaghettifunk/array/engine/renderer/frame"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
	"github.com/spaghettifunk/array/engine/renderer/uniforms"
	"github.com/spaghettifunk/array/engine/tracking"
)

// FrameContext is what the renderer hands to every component for one draw
// cycle. It is built once per frame and never changed afterwards.
type FrameContext struct {
	Index        uint64
	Frame        *tracking.Frame
	DrawableSize math.Vec2
	Shared       uniforms.SharedFrameUniforms
	SharedSlot   frame.Slot[uniforms.SharedFrameUniforms]
	// Resources is released when the GPU completes this frame.
	Resources *frame.Bundle
}

// BindShared binds this frame's shared uniform slot.
func (ctx FrameContext) BindShared(enc metadata.RenderCommandEncoder) {
	enc.SetUniformBuffer(ctx.SharedSlot.Buffer(), ctx.SharedSlot.Offset, metadata.BindingSharedUniforms)
}

type Component interface {
	Name() string
	Update(ctx FrameContext) error
	Draw(enc metadata.RenderCommandEncoder, ctx FrameContext)
	Release()
}

// Resizer is implemented by components with viewport dependent geometry.
type Resizer interface {
	Resize(size math.Vec2)
}

// Setup is what every component needs at construction time.
type Setup struct {
	Device      metadata.Device
	Destination metadata.RenderDestination
	// InFlight is the number of frames the GPU may be working on at once.
	InFlight int
}

func (s Setup) pipeline(label, vertex, fragment string, layout metadata.VertexLayout) *metadata.PipelineDescriptor {
	return &metadata.PipelineDescriptor{
		Label:              label,
		VertexFunction:     vertex,
		FragmentFunction:   fragment,
		VertexLayout:       layout,
		ColorFormat:        s.Destination.ColorPixelFormat(),
		DepthStencilFormat: s.Destination.DepthStencilPixelFormat(),
		SampleCount:        s.Destination.SampleCount(),
	}
}

// packFloats writes vals little endian, back to back.
func packFloats(dst []byte, vals ...float32) []byte {
	for _, v := range vals {
		dst = binary.LittleEndian.AppendUint32(dst, gomath.Float32bits(v))
	}
	return dst
}
