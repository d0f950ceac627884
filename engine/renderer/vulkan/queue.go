package vulkan

import (
	"errors"
	"fmt"
	stdmath "math"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
)

var ErrAlreadyCommitted = errors.New("command buffer already committed")

// submission owns everything one committed command buffer needs until its
// fence signals. Submissions are recycled once complete.
type submission struct {
	cmd            *VulkanCommandBuffer
	fence          *VulkanFence
	descriptorPool vk.DescriptorPool
	renderComplete vk.Semaphore

	cb *CommandBuffer
}

func submissionCreate(context *VulkanContext) (*submission, error) {
	s := &submission{}
	var err error
	if s.cmd, err = NewVulkanCommandBuffer(context, context.Device.GraphicsCommandPool, true); err != nil {
		return nil, err
	}
	if s.fence, err = NewFence(context, false); err != nil {
		s.destroy(context)
		return nil, err
	}
	if s.descriptorPool, err = DescriptorPoolCreate(context); err != nil {
		s.destroy(context)
		return nil, err
	}
	if err = checkResult("vkCreateSemaphore", vk.CreateSemaphore(context.Device.LogicalDevice, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, context.Allocator, &s.renderComplete)); err != nil {
		s.destroy(context)
		return nil, err
	}
	return s, nil
}

// recycle readies a completed submission for the next command buffer.
func (s *submission) recycle(context *VulkanContext) error {
	s.cb = nil
	if err := s.fence.FenceReset(context); err != nil {
		return err
	}
	if err := DescriptorPoolReset(context, s.descriptorPool); err != nil {
		return err
	}
	return s.cmd.Reset()
}

func (s *submission) destroy(context *VulkanContext) {
	if s.renderComplete != vk.NullSemaphore {
		vk.DestroySemaphore(context.Device.LogicalDevice, s.renderComplete, context.Allocator)
		s.renderComplete = vk.NullSemaphore
	}
	DescriptorPoolDestroy(context, s.descriptorPool)
	s.descriptorPool = nil
	if s.fence != nil {
		s.fence.FenceDestroy(context)
	}
	if s.cmd != nil {
		s.cmd.Free(context, context.Device.GraphicsCommandPool)
	}
}

// CommandQueue submits to the graphics queue. A worker goroutine waits for
// the fences in submission order and runs completed handlers.
type CommandQueue struct {
	device *Device

	mu       sync.Mutex
	cond     *sync.Cond
	free     []*submission
	all      []*submission
	inflight []*submission
	closed   bool
	done     chan struct{}
}

func newCommandQueue(device *Device) *CommandQueue {
	q := &CommandQueue{device: device, done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.worker()
	return q
}

func (q *CommandQueue) CommandBuffer(label string) (metadata.CommandBuffer, error) {
	context := q.device.context

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, fmt.Errorf("command buffer %s: %w", label, core.ErrClosed)
	}
	var sub *submission
	if n := len(q.free); n > 0 {
		sub = q.free[n-1]
		q.free = q.free[:n-1]
	}
	q.mu.Unlock()

	if sub == nil {
		var err error
		if sub, err = submissionCreate(context); err != nil {
			return nil, fmt.Errorf("command buffer %s: %w", label, err)
		}
		q.mu.Lock()
		q.all = append(q.all, sub)
		q.mu.Unlock()
	}

	if err := sub.cmd.Begin(true, false, false); err != nil {
		q.release(sub)
		return nil, fmt.Errorf("command buffer %s: %w", label, err)
	}
	cb := &CommandBuffer{queue: q, sub: sub, label: label}
	sub.cb = cb
	return cb, nil
}

func (q *CommandQueue) release(sub *submission) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.free = append(q.free, sub)
}

func (q *CommandQueue) push(sub *submission) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.inflight = append(q.inflight, sub)
	q.cond.Broadcast()
}

func (q *CommandQueue) worker() {
	defer close(q.done)
	context := q.device.context
	for {
		q.mu.Lock()
		for len(q.inflight) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.inflight) == 0 {
			q.mu.Unlock()
			return
		}
		sub := q.inflight[0]
		q.mu.Unlock()

		if _, err := sub.fence.FenceWait(context, stdmath.MaxUint64); err != nil {
			// Handlers still run, anything waiting on them would block forever.
			core.LogError("command buffer %s: %s", sub.cb.label, err)
		}
		sub.cb.complete()

		if err := sub.recycle(context); err != nil {
			core.LogError("recycling submission: %s", err)
		}
		q.mu.Lock()
		q.inflight = q.inflight[1:]
		q.free = append(q.free, sub)
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

func (q *CommandQueue) waitIdle() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.inflight) > 0 {
		q.cond.Wait()
	}
}

// close drains the worker and destroys every submission. The device must be
// idle.
func (q *CommandQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.done

	for _, sub := range q.all {
		sub.destroy(q.device.context)
	}
	q.all = nil
	q.free = nil
}

type CommandBuffer struct {
	queue *CommandQueue
	sub   *submission
	label string

	mu        sync.Mutex
	handlers  []metadata.CompletedHandler
	target    *Drawable
	presented *Drawable
	inPass    bool
	committed bool
}

func (cb *CommandBuffer) Label() string {
	return cb.label
}

func (cb *CommandBuffer) AddCompletedHandler(h metadata.CompletedHandler) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.committed {
		core.LogWarn("completed handler added to committed command buffer %s", cb.label)
		return
	}
	cb.handlers = append(cb.handlers, h)
}

func (cb *CommandBuffer) RenderCommandEncoder(pass *metadata.RenderPassDescriptor) (metadata.RenderCommandEncoder, error) {
	if pass == nil || pass.Drawable == nil {
		return nil, fmt.Errorf("command buffer %s: %w", cb.label, core.ErrNoRenderPass)
	}
	drawable, ok := pass.Drawable.(*Drawable)
	if !ok {
		return nil, fmt.Errorf("command buffer %s: drawable %T: %w", cb.label, pass.Drawable, core.ErrNoRenderPass)
	}
	context := cb.queue.device.context
	swapchain := context.Swapchain
	if swapchain == nil || int(drawable.index) >= len(swapchain.Framebuffers) {
		return nil, fmt.Errorf("command buffer %s: stale drawable: %w", cb.label, core.ErrNoRenderPass)
	}

	cb.mu.Lock()
	cb.target = drawable
	cb.inPass = true
	cb.mu.Unlock()

	cmd := cb.sub.cmd
	if n := cb.queue.device.uploads.record(cmd.Handle); n > 0 {
		core.LogDebug("command buffer %s: %d texture uploads", cb.label, n)
	}

	framebuffer := swapchain.Framebuffers[drawable.index]
	context.MainRenderpass.RenderpassBegin(cmd, framebuffer, pass.ClearColour, pass.ClearDepth, pass.ClearStencil)

	// Flip Y so clip space matches the rest of the renderer.
	width, height := float32(framebuffer.Width), float32(framebuffer.Height)
	vk.CmdSetViewport(cmd.Handle, 0, 1, []vk.Viewport{{
		X:        0,
		Y:        height,
		Width:    width,
		Height:   -height,
		MinDepth: 0,
		MaxDepth: 1,
	}})
	vk.CmdSetScissor(cmd.Handle, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: framebuffer.Width, Height: framebuffer.Height},
	}})

	return newRenderCommandEncoder(cb), nil
}

func (cb *CommandBuffer) Present(d metadata.Drawable) {
	drawable, ok := d.(*Drawable)
	if !ok || drawable == nil {
		core.LogWarn("command buffer %s: cannot present %T", cb.label, d)
		return
	}
	cb.mu.Lock()
	cb.presented = drawable
	if cb.target == nil {
		cb.target = drawable
	}
	cb.mu.Unlock()
	drawable.dest.retire(drawable)
}

func (cb *CommandBuffer) Commit() error {
	cb.mu.Lock()
	if cb.committed {
		cb.mu.Unlock()
		return fmt.Errorf("%s: %w", cb.label, ErrAlreadyCommitted)
	}
	cb.committed = true
	target, presented, inPass := cb.target, cb.presented, cb.inPass
	cb.mu.Unlock()

	device := cb.queue.device
	context := device.context
	sub := cb.sub

	if !inPass {
		device.uploads.record(sub.cmd.Handle)
	}
	if err := sub.cmd.End(); err != nil {
		cb.fail(err)
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{sub.cmd.Handle},
	}
	if target != nil {
		// Colour writes wait for the swapchain image.
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{target.acquired}
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
	}
	if presented != nil {
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{sub.renderComplete}
	}

	err := context.locks.SafeCall(QueueManagement, func() error {
		return checkResult("vkQueueSubmit", vk.QueueSubmit(context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, sub.fence.Handle))
	})
	if err != nil {
		cb.fail(err)
		return err
	}
	sub.cmd.UpdateSubmitted()

	if presented != nil {
		ok, err := context.Swapchain.SwapchainPresent(context, context.Device.PresentQueue, sub.renderComplete, presented.index)
		if err != nil {
			core.LogError("command buffer %s: %s", cb.label, err)
		} else if !ok {
			presented.dest.markOutdated()
		}
	}

	cb.queue.push(sub)
	return nil
}

// fail runs the handlers of a buffer that never reached the GPU and returns
// its submission to the pool.
func (cb *CommandBuffer) fail(err error) {
	core.LogError("command buffer %s: %s", cb.label, err)
	cb.complete()
	context := cb.queue.device.context
	if err := cb.sub.cmd.Reset(); err != nil {
		core.LogError("command buffer %s: %s", cb.label, err)
	}
	if err := DescriptorPoolReset(context, cb.sub.descriptorPool); err != nil {
		core.LogError("command buffer %s: %s", cb.label, err)
	}
	cb.sub.cb = nil
	cb.queue.release(cb.sub)
}

func (cb *CommandBuffer) complete() {
	cb.mu.Lock()
	handlers := cb.handlers
	target := cb.target
	cb.handlers = nil
	cb.mu.Unlock()

	if target != nil {
		target.dest.releaseSemaphore(target)
	}
	for _, h := range handlers {
		h(cb)
	}
}
