package vulkan

import (
	"errors"
	stdmath "math"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/math"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
)

// Drawable is an acquired swapchain image. Its semaphore signals once the
// presentation engine released the image.
type Drawable struct {
	dest     *Destination
	index    uint32
	size     math.Vec2
	acquired vk.Semaphore
	returned bool
}

func (d *Drawable) Size() math.Vec2 {
	return d.size
}

var swapchainFormats = map[vk.Format]metadata.PixelFormat{
	vk.FormatB8g8r8a8Unorm: metadata.PixelFormatBGRA8Unorm,
	vk.FormatB8g8r8a8Srgb:  metadata.PixelFormatBGRA8UnormSRGB,
	vk.FormatR8g8b8a8Unorm: metadata.PixelFormatRGBA8Unorm,
}

var depthFormats = map[vk.Format]metadata.PixelFormat{
	vk.FormatD32SfloatS8Uint: metadata.PixelFormatDepth32FloatStencil8,
	vk.FormatD32Sfloat:       metadata.PixelFormatDepth32Float,
	vk.FormatD24UnormS8Uint:  metadata.PixelFormatDepth24UnormStencil8,
}

// Destination is the window swapchain. The swapchain is recreated lazily, on
// the first drawable request after a resize or after presentation reported
// it out of date.
type Destination struct {
	context *VulkanContext
	vsync   bool

	mu         sync.Mutex
	current    *Drawable
	semaphores []vk.Semaphore
	all        []vk.Semaphore
	outdated   bool
}

func newDestination(context *VulkanContext, vsync bool) *Destination {
	return &Destination{context: context, vsync: vsync}
}

func (d *Destination) ColorPixelFormat() metadata.PixelFormat {
	if d.context.Swapchain == nil {
		return metadata.PixelFormatInvalid
	}
	return swapchainFormats[d.context.Swapchain.ImageFormat.Format]
}

func (d *Destination) DepthStencilPixelFormat() metadata.PixelFormat {
	return depthFormats[d.context.Device.DepthFormat]
}

func (d *Destination) SampleCount() int {
	return 1
}

func (d *Destination) DrawableSize() math.Vec2 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return math.NewVec2(float32(d.context.FramebufferWidth), float32(d.context.FramebufferHeight))
}

// Resize records the new framebuffer size. A zero size withholds drawables
// until the window is restored.
func (d *Destination) Resize(width, height uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.context.FramebufferWidth = width
	d.context.FramebufferHeight = height
	d.context.FramebufferSizeGeneration++
	core.LogInfo("Vulkan destination resized: w/h/gen: %d/%d/%d", width, height, d.context.FramebufferSizeGeneration)
}

func (d *Destination) CurrentRenderPass() *metadata.RenderPassDescriptor {
	drawable := d.acquire()
	if drawable == nil {
		return nil
	}
	return &metadata.RenderPassDescriptor{
		Drawable:    drawable,
		ClearColour: math.NewVec4(0, 0, 0, 1),
		ClearDepth:  1,
	}
}

func (d *Destination) CurrentDrawable() metadata.Drawable {
	drawable := d.acquire()
	if drawable == nil {
		return nil
	}
	return drawable
}

func (d *Destination) acquire() *Drawable {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current != nil {
		return d.current
	}
	context := d.context
	if context.FramebufferWidth == 0 || context.FramebufferHeight == 0 {
		return nil
	}
	if d.outdated || context.Swapchain == nil || context.Swapchain.Generation != context.FramebufferSizeGeneration {
		if err := d.recreate(); err != nil {
			if !errors.Is(err, core.ErrSwapchainBooting) {
				core.LogError("recreating swapchain: %s", err)
			}
			return nil
		}
	}

	semaphore, err := d.takeSemaphore()
	if err != nil {
		core.LogError("acquire semaphore: %s", err)
		return nil
	}
	index, ok, err := context.Swapchain.SwapchainAcquireNextImageIndex(context, stdmath.MaxUint64, semaphore, vk.NullFence)
	if err != nil || !ok {
		// Nothing was signalled, the semaphore can be reused as is.
		d.semaphores = append(d.semaphores, semaphore)
		if err != nil {
			core.LogError("acquire swapchain image: %s", err)
		} else {
			d.outdated = true
		}
		return nil
	}

	d.current = &Drawable{
		dest:     d,
		index:    index,
		size:     math.NewVec2(float32(context.Swapchain.Extent.Width), float32(context.Swapchain.Extent.Height)),
		acquired: semaphore,
	}
	return d.current
}

// recreate builds a swapchain for the current framebuffer size. The device
// is drained first since in flight frames reference the old framebuffers.
func (d *Destination) recreate() error {
	context := d.context
	if err := context.locks.SafeCall(QueueManagement, func() error {
		return checkResult("vkDeviceWaitIdle", vk.DeviceWaitIdle(context.Device.LogicalDevice))
	}); err != nil {
		return err
	}

	var (
		swapchain *VulkanSwapchain
		err       error
	)
	if context.Swapchain == nil {
		swapchain, err = SwapchainCreate(context, context.FramebufferWidth, context.FramebufferHeight, d.vsync)
	} else {
		swapchain, err = context.Swapchain.SwapchainRecreate(context, context.FramebufferWidth, context.FramebufferHeight, d.vsync)
	}
	context.Swapchain = swapchain
	if err != nil {
		return err
	}
	if err := swapchain.RegenerateFramebuffers(context, context.MainRenderpass); err != nil {
		return err
	}
	d.outdated = false
	core.LogInfo("Swapchain recreated for generation %d.", swapchain.Generation)
	return nil
}

func (d *Destination) takeSemaphore() (vk.Semaphore, error) {
	if n := len(d.semaphores); n > 0 {
		s := d.semaphores[n-1]
		d.semaphores = d.semaphores[:n-1]
		return s, nil
	}
	var s vk.Semaphore
	if err := checkResult("vkCreateSemaphore", vk.CreateSemaphore(d.context.Device.LogicalDevice, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, d.context.Allocator, &s)); err != nil {
		return vk.NullSemaphore, err
	}
	d.all = append(d.all, s)
	return s, nil
}

// retire drops the current drawable once presented.
func (d *Destination) retire(drawable *Drawable) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if drawable == d.current {
		d.current = nil
	}
}

// releaseSemaphore returns the drawable's semaphore after the submission
// waiting on it completed.
func (d *Destination) releaseSemaphore(drawable *Drawable) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if drawable.returned {
		return
	}
	drawable.returned = true
	if drawable == d.current {
		d.current = nil
	}
	d.semaphores = append(d.semaphores, drawable.acquired)
}

func (d *Destination) markOutdated() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outdated = true
}

func (d *Destination) destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.all {
		vk.DestroySemaphore(d.context.Device.LogicalDevice, s, d.context.Allocator)
	}
	d.all = nil
	d.semaphores = nil
	d.current = nil
}
