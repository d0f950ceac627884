package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
)

// RenderCommandEncoder records into the command buffer's render pass.
// Resource bindings are collected and written into a fresh descriptor set
// before the first draw after they change.
type RenderCommandEncoder struct {
	cb  *CommandBuffer
	cmd *VulkanCommandBuffer

	pipeline *Pipeline
	bindings map[uint32]descriptorBinding
	dirty    bool

	groups []string
	ended  bool
}

func newRenderCommandEncoder(cb *CommandBuffer) *RenderCommandEncoder {
	return &RenderCommandEncoder{
		cb:       cb,
		cmd:      cb.sub.cmd,
		bindings: make(map[uint32]descriptorBinding, 4),
	}
}

func (e *RenderCommandEncoder) PushDebugGroup(name string) {
	e.groups = append(e.groups, name)
}

func (e *RenderCommandEncoder) PopDebugGroup() {
	if len(e.groups) == 0 {
		core.LogWarn("PopDebugGroup without a group on %s", e.cb.label)
		return
	}
	e.groups = e.groups[:len(e.groups)-1]
}

func (e *RenderCommandEncoder) group() string {
	if len(e.groups) == 0 {
		return e.cb.label
	}
	return e.groups[len(e.groups)-1]
}

func (e *RenderCommandEncoder) SetRenderPipeline(p metadata.Pipeline) {
	pipeline, ok := p.(*Pipeline)
	if !ok || e.ended {
		core.LogWarn("%s: cannot bind pipeline %T", e.group(), p)
		return
	}
	vk.CmdBindPipeline(e.cmd.Handle, vk.PipelineBindPointGraphics, pipeline.Handle)
	e.pipeline = pipeline
	e.dirty = true
}

func (e *RenderCommandEncoder) SetVertexBuffer(buf metadata.Buffer, offset int, index int) {
	buffer, ok := buf.(*Buffer)
	if !ok || e.ended {
		core.LogWarn("%s: cannot bind vertex buffer %T", e.group(), buf)
		return
	}
	vk.CmdBindVertexBuffers(e.cmd.Handle, uint32(index), 1, []vk.Buffer{buffer.Handle}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

func (e *RenderCommandEncoder) SetUniformBuffer(buf metadata.Buffer, offset int, binding metadata.UniformBinding) {
	buffer, ok := buf.(*Buffer)
	if !ok {
		core.LogWarn("%s: cannot bind uniform buffer %T", e.group(), buf)
		return
	}
	e.bindings[uint32(binding)] = descriptorBinding{buffer: buffer, offset: offset}
	e.dirty = true
}

func (e *RenderCommandEncoder) SetFragmentTexture(tex metadata.Texture, binding metadata.TextureBinding) {
	texture, ok := tex.(*Texture)
	if !ok {
		core.LogWarn("%s: cannot bind texture %T", e.group(), tex)
		return
	}
	e.bindings[uint32(binding)] = descriptorBinding{tex: texture}
	e.dirty = true
}

// prepareDraw binds a descriptor set reflecting the current bindings. It
// returns false when the draw has to be dropped.
func (e *RenderCommandEncoder) prepareDraw() bool {
	if e.ended {
		core.LogWarn("%s: draw after EndEncoding", e.group())
		return false
	}
	if e.pipeline == nil {
		core.LogWarn("%s: draw without a pipeline", e.group())
		return false
	}
	if !e.dirty {
		return true
	}
	device := e.cb.queue.device
	set, err := device.descriptors.AllocateSet(device.context, e.cb.sub.descriptorPool, e.bindings)
	if err != nil {
		core.LogError("%s: %s", e.group(), err)
		return false
	}
	vk.CmdBindDescriptorSets(e.cmd.Handle, vk.PipelineBindPointGraphics, e.pipeline.Layout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
	e.dirty = false
	return true
}

func (e *RenderCommandEncoder) Draw(vertexStart, vertexCount, instanceCount int) {
	if vertexCount == 0 || instanceCount == 0 || !e.prepareDraw() {
		return
	}
	vk.CmdDraw(e.cmd.Handle, uint32(vertexCount), uint32(instanceCount), uint32(vertexStart), 0)
}

func (e *RenderCommandEncoder) DrawIndexed(indexCount int, indexType metadata.IndexType, indexBuffer metadata.Buffer, indexOffset int, instanceCount int) {
	buffer, ok := indexBuffer.(*Buffer)
	if !ok {
		core.LogWarn("%s: cannot bind index buffer %T", e.group(), indexBuffer)
		return
	}
	if indexCount == 0 || instanceCount == 0 || !e.prepareDraw() {
		return
	}
	vkType := vk.IndexTypeUint16
	if indexType == metadata.IndexTypeUInt32 {
		vkType = vk.IndexTypeUint32
	}
	vk.CmdBindIndexBuffer(e.cmd.Handle, buffer.Handle, vk.DeviceSize(indexOffset), vkType)
	vk.CmdDrawIndexed(e.cmd.Handle, uint32(indexCount), uint32(instanceCount), 0, 0, 0)
}

func (e *RenderCommandEncoder) EndEncoding() {
	if e.ended {
		return
	}
	if len(e.groups) > 0 {
		core.LogWarn("%s: %d debug groups left open", e.cb.label, len(e.groups))
		e.groups = nil
	}
	e.cb.queue.device.context.MainRenderpass.RenderpassEnd(e.cmd)
	e.ended = true
}
