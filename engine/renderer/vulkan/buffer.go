package vulkan

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
)

// Buffer is host visible coherent memory, mapped for its whole lifetime.
type Buffer struct {
	context *VulkanContext
	label   string
	size    int
	usage   metadata.BufferUsage

	Handle vk.Buffer
	memory vk.DeviceMemory
	mapped []byte

	mu       sync.Mutex
	released bool
}

func bufferUsageFlags(usage metadata.BufferUsage) vk.BufferUsageFlags {
	switch usage {
	case metadata.BufferUsageVertex:
		return vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	case metadata.BufferUsageIndex:
		return vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
	case metadata.BufferUsageUniform:
		return vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	default:
		return vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit)
	}
}

func BufferCreate(context *VulkanContext, label string, size int, usage metadata.BufferUsage) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("buffer %s: size %d: %w", label, size, core.ErrOutOfBounds)
	}
	return bufferCreate(context, label, size, usage, bufferUsageFlags(usage))
}

func bufferCreate(context *VulkanContext, label string, size int, usage metadata.BufferUsage, flags vk.BufferUsageFlags) (*Buffer, error) {
	b := &Buffer{context: context, label: label, size: size, usage: usage}
	device := context.Device.LogicalDevice

	var handle vk.Buffer
	if err := checkResult("vkCreateBuffer", vk.CreateBuffer(device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       flags,
		SharingMode: vk.SharingModeExclusive,
	}, context.Allocator, &handle)); err != nil {
		return nil, fmt.Errorf("buffer %s: %w", label, err)
	}
	b.Handle = handle

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, handle, &reqs)
	reqs.Deref()
	memory, err := context.allocateMemory(reqs, vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)|vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		b.destroy()
		return nil, fmt.Errorf("buffer %s: %w", label, err)
	}
	b.memory = memory
	if err := checkResult("vkBindBufferMemory", vk.BindBufferMemory(device, handle, memory, 0)); err != nil {
		b.destroy()
		return nil, fmt.Errorf("buffer %s: %w", label, err)
	}

	var ptr unsafe.Pointer
	if err := checkResult("vkMapMemory", vk.MapMemory(device, memory, 0, vk.DeviceSize(size), 0, &ptr)); err != nil {
		b.destroy()
		return nil, fmt.Errorf("buffer %s: %w", label, err)
	}
	b.mapped = unsafe.Slice((*byte)(ptr), size)
	return b, nil
}

func (b *Buffer) Label() string { return b.label }
func (b *Buffer) Size() int     { return b.size }

func (b *Buffer) Write(offset int, data []byte) error {
	if offset < 0 || offset+len(data) > b.size {
		return fmt.Errorf("buffer %s: [%d, %d) of %d: %w", b.label, offset, offset+len(data), b.size, core.ErrOutOfBounds)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return fmt.Errorf("buffer %s: %w", b.label, core.ErrClosed)
	}
	copy(b.mapped[offset:], data)
	return nil
}

func (b *Buffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return
	}
	b.released = true
	b.destroy()
}

func (b *Buffer) destroy() {
	device := b.context.Device.LogicalDevice
	if b.mapped != nil {
		vk.UnmapMemory(device, b.memory)
		b.mapped = nil
	}
	if b.memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, b.memory, b.context.Allocator)
		b.memory = vk.NullDeviceMemory
	}
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(device, b.Handle, b.context.Allocator)
		b.Handle = vk.NullBuffer
	}
}
