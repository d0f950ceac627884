package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/array/engine/core"
)

// VulkanContext holds the objects shared by every part of the backend.
type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice

	Swapchain      *VulkanSwapchain
	MainRenderpass *VulkanRenderpass

	// Framebuffer size as last reported by the window. A different generation
	// than the swapchain's means it must be recreated.
	FramebufferWidth          uint32
	FramebufferHeight         uint32
	FramebufferSizeGeneration uint64

	locks *VulkanLockPool
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that has
// every property in propertyFlags.
func (vc *VulkanContext) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	memory := vc.Device.Memory
	for i := uint32(0); i < memory.MemoryTypeCount; i++ {
		memory.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 && memory.MemoryTypes[i].PropertyFlags&propertyFlags == propertyFlags {
			return i, nil
		}
	}
	core.LogWarn("no memory type matches filter %b with properties %b", typeFilter, propertyFlags)
	return 0, fmt.Errorf("no suitable memory type: %w", core.ErrOutOfBounds)
}

// allocateMemory allocates memory satisfying reqs and the given properties.
func (vc *VulkanContext) allocateMemory(reqs vk.MemoryRequirements, props vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	index, err := vc.FindMemoryIndex(reqs.MemoryTypeBits, props)
	if err != nil {
		return vk.NullDeviceMemory, err
	}
	var memory vk.DeviceMemory
	err = vc.locks.SafeCall(MemoryManagement, func() error {
		return checkResult("vkAllocateMemory", vk.AllocateMemory(vc.Device.LogicalDevice, &vk.MemoryAllocateInfo{
			SType:           vk.StructureTypeMemoryAllocateInfo,
			AllocationSize:  reqs.Size,
			MemoryTypeIndex: index,
		}, vc.Allocator, &memory))
	})
	return memory, err
}
