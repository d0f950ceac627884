package metadata

import "github.com/spaghettifunk/array/engine/math"

// ShaderLibrary resolves a shader stage name such as "sdf.frag" to its bytecode.
type ShaderLibrary interface {
	Shader(name string) ([]byte, error)
}

// Device creates every GPU resource. Resources are owned by the caller and must
// be released once no submitted frame references them.
type Device interface {
	Name() string
	NewBuffer(label string, size int, usage BufferUsage) (Buffer, error)
	NewBufferWithBytes(label string, data []byte, usage BufferUsage) (Buffer, error)
	NewTexture(desc TextureDescriptor) (Texture, error)
	NewRenderPipeline(desc *PipelineDescriptor) (Pipeline, error)
	CommandQueue() CommandQueue
	// MinUniformBufferOffsetAlignment is the smallest legal offset between two
	// uniform bindings in the same buffer.
	MinUniformBufferOffsetAlignment() int
	WaitIdle() error
	Release()
}

// Buffer is CPU writable GPU memory.
type Buffer interface {
	Label() string
	Size() int
	// Write copies data at offset. Writes past Size fail without side effects.
	Write(offset int, data []byte) error
	Release()
}

type TextureDescriptor struct {
	Label  string
	Format PixelFormat
	Width  int
	Height int
}

type Texture interface {
	Label() string
	Width() int
	Height() int
	Format() PixelFormat
	// Replace uploads the whole image, tightly packed rows of bytesPerRow.
	Replace(data []byte, bytesPerRow int) error
	Release()
}

type Pipeline interface {
	Label() string
	Release()
}

type CommandQueue interface {
	// CommandBuffer returns a fresh buffer. Buffers are committed at most once.
	CommandBuffer(label string) (CommandBuffer, error)
}

// CompletedHandler runs once the GPU finished executing a committed buffer.
// It may run on any goroutine.
type CompletedHandler func(cb CommandBuffer)

type CommandBuffer interface {
	Label() string
	// AddCompletedHandler must be called before Commit. Handlers run in
	// registration order, and buffers complete in commit order.
	AddCompletedHandler(h CompletedHandler)
	RenderCommandEncoder(pass *RenderPassDescriptor) (RenderCommandEncoder, error)
	Present(d Drawable)
	Commit() error
}

type RenderCommandEncoder interface {
	PushDebugGroup(name string)
	PopDebugGroup()
	SetRenderPipeline(p Pipeline)
	SetVertexBuffer(buf Buffer, offset int, index int)
	SetUniformBuffer(buf Buffer, offset int, binding UniformBinding)
	SetFragmentTexture(tex Texture, binding TextureBinding)
	Draw(vertexStart, vertexCount, instanceCount int)
	DrawIndexed(indexCount int, indexType IndexType, indexBuffer Buffer, indexOffset int, instanceCount int)
	EndEncoding()
}

// Drawable is a presentable image of the surface.
type Drawable interface {
	Size() math.Vec2
}

type RenderPassDescriptor struct {
	Drawable     Drawable
	ClearColour  math.Vec4
	ClearDepth   float32
	ClearStencil uint32
}

// RenderDestination is the surface the renderer draws into.
type RenderDestination interface {
	ColorPixelFormat() PixelFormat
	DepthStencilPixelFormat() PixelFormat
	SampleCount() int
	DrawableSize() math.Vec2
	// CurrentRenderPass returns nil when no drawable could be obtained.
	CurrentRenderPass() *RenderPassDescriptor
	// CurrentDrawable returns the drawable targeted by CurrentRenderPass, or nil.
	CurrentDrawable() Drawable
}
