package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
)

// Descriptor sets a single submission may allocate. Every draw takes one.
const maxDescriptorSetsPerSubmission = 256

// VulkanDescriptors holds the one set layout every pipeline shares: two uniform
// buffers followed by two sampled textures.
type VulkanDescriptors struct {
	SetLayout      vk.DescriptorSetLayout
	PipelineLayout vk.PipelineLayout
	Sampler        vk.Sampler
}

var descriptorBindings = []vk.DescriptorSetLayoutBinding{
	{
		Binding:         uint32(metadata.BindingSharedUniforms),
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit) | vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	},
	{
		Binding:         uint32(metadata.BindingInstanceUniforms),
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit) | vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	},
	{
		Binding:         uint32(metadata.BindingTextureY),
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	},
	{
		Binding:         uint32(metadata.BindingTextureCbCr),
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	},
}

func DescriptorsCreate(context *VulkanContext) (*VulkanDescriptors, error) {
	d := &VulkanDescriptors{}
	device := context.Device.LogicalDevice

	err := context.locks.SafeCall(DescriptorManagement, func() error {
		return checkResult("vkCreateDescriptorSetLayout", vk.CreateDescriptorSetLayout(device, &vk.DescriptorSetLayoutCreateInfo{
			SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
			BindingCount: uint32(len(descriptorBindings)),
			PBindings:    descriptorBindings,
		}, context.Allocator, &d.SetLayout))
	})
	if err != nil {
		return nil, err
	}

	err = context.locks.SafeCall(PipelineManagement, func() error {
		return checkResult("vkCreatePipelineLayout", vk.CreatePipelineLayout(device, &vk.PipelineLayoutCreateInfo{
			SType:          vk.StructureTypePipelineLayoutCreateInfo,
			SetLayoutCount: 1,
			PSetLayouts:    []vk.DescriptorSetLayout{d.SetLayout},
		}, context.Allocator, &d.PipelineLayout))
	})
	if err != nil {
		d.Destroy(context)
		return nil, err
	}

	err = checkResult("vkCreateSampler", vk.CreateSampler(device, &vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            vk.SamplerAddressModeClampToEdge,
		AddressModeV:            vk.SamplerAddressModeClampToEdge,
		AddressModeW:            vk.SamplerAddressModeClampToEdge,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
	}, context.Allocator, &d.Sampler))
	if err != nil {
		d.Destroy(context)
		return nil, err
	}
	return d, nil
}

func (d *VulkanDescriptors) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if d.Sampler != nil {
		vk.DestroySampler(device, d.Sampler, context.Allocator)
		d.Sampler = nil
	}
	if d.PipelineLayout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(device, d.PipelineLayout, context.Allocator)
		d.PipelineLayout = vk.NullPipelineLayout
	}
	if d.SetLayout != nil {
		vk.DestroyDescriptorSetLayout(device, d.SetLayout, context.Allocator)
		d.SetLayout = nil
	}
}

// DescriptorPoolCreate creates a pool sized for one submission's draws.
func DescriptorPoolCreate(context *VulkanContext) (vk.DescriptorPool, error) {
	sizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: 2 * maxDescriptorSetsPerSubmission},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: 2 * maxDescriptorSetsPerSubmission},
	}
	var pool vk.DescriptorPool
	err := context.locks.SafeCall(DescriptorManagement, func() error {
		return checkResult("vkCreateDescriptorPool", vk.CreateDescriptorPool(context.Device.LogicalDevice, &vk.DescriptorPoolCreateInfo{
			SType:         vk.StructureTypeDescriptorPoolCreateInfo,
			MaxSets:       maxDescriptorSetsPerSubmission,
			PoolSizeCount: uint32(len(sizes)),
			PPoolSizes:    sizes,
		}, context.Allocator, &pool))
	})
	return pool, err
}

func DescriptorPoolReset(context *VulkanContext, pool vk.DescriptorPool) error {
	return context.locks.SafeCall(DescriptorManagement, func() error {
		return checkResult("vkResetDescriptorPool", vk.ResetDescriptorPool(context.Device.LogicalDevice, pool, 0))
	})
}

func DescriptorPoolDestroy(context *VulkanContext, pool vk.DescriptorPool) {
	if pool == nil {
		return
	}
	_ = context.locks.SafeCall(DescriptorManagement, func() error {
		vk.DestroyDescriptorPool(context.Device.LogicalDevice, pool, context.Allocator)
		return nil
	})
}

// descriptorBinding is what an encoder has bound to one slot.
type descriptorBinding struct {
	buffer *Buffer
	offset int
	tex    *Texture
}

// AllocateSet takes a set from pool and writes the bound slots into it.
// Unbound slots are left unwritten and must not be read by the pipeline.
func (d *VulkanDescriptors) AllocateSet(context *VulkanContext, pool vk.DescriptorPool, bindings map[uint32]descriptorBinding) (vk.DescriptorSet, error) {
	var set vk.DescriptorSet
	err := context.locks.SafeCall(DescriptorManagement, func() error {
		return checkResult("vkAllocateDescriptorSets", vk.AllocateDescriptorSets(context.Device.LogicalDevice, &vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     pool,
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{d.SetLayout},
		}, &set))
	})
	if err != nil {
		return nil, err
	}

	writes := make([]vk.WriteDescriptorSet, 0, len(bindings))
	for slot, b := range bindings {
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      slot,
			DescriptorCount: 1,
		}
		switch {
		case b.buffer != nil:
			write.DescriptorType = vk.DescriptorTypeUniformBuffer
			write.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: b.buffer.Handle,
				Offset: vk.DeviceSize(b.offset),
				Range:  vk.DeviceSize(b.buffer.Size() - b.offset),
			}}
		case b.tex != nil:
			write.DescriptorType = vk.DescriptorTypeCombinedImageSampler
			write.PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     d.Sampler,
				ImageView:   b.tex.image.View,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}}
		default:
			continue
		}
		writes = append(writes, write)
	}
	if len(writes) > 0 {
		vk.UpdateDescriptorSets(context.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
	}
	return set, nil
}
