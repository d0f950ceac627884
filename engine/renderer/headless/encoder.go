package headless

import (
	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
)

type CommandKind int

const (
	CommandBeginPass CommandKind = iota
	CommandPushDebugGroup
	CommandPopDebugGroup
	CommandSetPipeline
	CommandSetVertexBuffer
	CommandSetUniformBuffer
	CommandSetFragmentTexture
	CommandDraw
	CommandDrawIndexed
	CommandEndEncoding
)

// Command is one recorded encoder call. Group is the innermost debug group
// active when the command was recorded.
type Command struct {
	Kind          CommandKind
	Group         string
	Pipeline      string
	Buffer        string
	Texture       string
	Offset        int
	Binding       uint32
	VertexStart   int
	VertexCount   int
	IndexCount    int
	InstanceCount int
}

type RenderCommandEncoder struct {
	cb       *CommandBuffer
	groups   []string
	pipeline string
	ended    bool
}

func (e *RenderCommandEncoder) group() string {
	if len(e.groups) == 0 {
		return ""
	}
	return e.groups[len(e.groups)-1]
}

func (e *RenderCommandEncoder) record(c Command) {
	if e.ended {
		core.LogWarn("command recorded after EndEncoding on %s", e.cb.label)
		return
	}
	c.Group = e.group()
	e.cb.record(c)
}

func (e *RenderCommandEncoder) PushDebugGroup(name string) {
	e.groups = append(e.groups, name)
	e.record(Command{Kind: CommandPushDebugGroup})
}

func (e *RenderCommandEncoder) PopDebugGroup() {
	e.record(Command{Kind: CommandPopDebugGroup})
	if len(e.groups) > 0 {
		e.groups = e.groups[:len(e.groups)-1]
	}
}

func (e *RenderCommandEncoder) SetRenderPipeline(p metadata.Pipeline) {
	e.pipeline = p.Label()
	e.record(Command{Kind: CommandSetPipeline, Pipeline: e.pipeline})
}

func (e *RenderCommandEncoder) SetVertexBuffer(buf metadata.Buffer, offset int, index int) {
	e.record(Command{Kind: CommandSetVertexBuffer, Buffer: buf.Label(), Offset: offset, Binding: uint32(index)})
}

func (e *RenderCommandEncoder) SetUniformBuffer(buf metadata.Buffer, offset int, binding metadata.UniformBinding) {
	e.record(Command{Kind: CommandSetUniformBuffer, Buffer: buf.Label(), Offset: offset, Binding: uint32(binding)})
}

func (e *RenderCommandEncoder) SetFragmentTexture(tex metadata.Texture, binding metadata.TextureBinding) {
	e.record(Command{Kind: CommandSetFragmentTexture, Texture: tex.Label(), Binding: uint32(binding)})
}

func (e *RenderCommandEncoder) Draw(vertexStart, vertexCount, instanceCount int) {
	e.record(Command{
		Kind:          CommandDraw,
		Pipeline:      e.pipeline,
		VertexStart:   vertexStart,
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
	})
}

func (e *RenderCommandEncoder) DrawIndexed(indexCount int, indexType metadata.IndexType, indexBuffer metadata.Buffer, indexOffset int, instanceCount int) {
	e.record(Command{
		Kind:          CommandDrawIndexed,
		Pipeline:      e.pipeline,
		Buffer:        indexBuffer.Label(),
		Offset:        indexOffset,
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
	})
}

func (e *RenderCommandEncoder) EndEncoding() {
	e.record(Command{Kind: CommandEndEncoding})
	e.ended = true
}
