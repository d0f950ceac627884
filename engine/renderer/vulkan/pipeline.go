package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
)

// Pipeline is a graphics pipeline built against the main render pass and the
// shared pipeline layout.
type Pipeline struct {
	context *VulkanContext
	label   string
	Handle  vk.Pipeline
	Layout  vk.PipelineLayout
}

var (
	topologies = map[metadata.PrimitiveType]vk.PrimitiveTopology{
		metadata.PrimitiveTypePoint:         vk.PrimitiveTopologyPointList,
		metadata.PrimitiveTypeLine:          vk.PrimitiveTopologyLineList,
		metadata.PrimitiveTypeTriangle:      vk.PrimitiveTopologyTriangleList,
		metadata.PrimitiveTypeTriangleStrip: vk.PrimitiveTopologyTriangleStrip,
	}
	compareOps = map[metadata.CompareFunction]vk.CompareOp{
		metadata.CompareFunctionNever:        vk.CompareOpNever,
		metadata.CompareFunctionLess:         vk.CompareOpLess,
		metadata.CompareFunctionEqual:        vk.CompareOpEqual,
		metadata.CompareFunctionLessEqual:    vk.CompareOpLessOrEqual,
		metadata.CompareFunctionGreater:      vk.CompareOpGreater,
		metadata.CompareFunctionNotEqual:     vk.CompareOpNotEqual,
		metadata.CompareFunctionGreaterEqual: vk.CompareOpGreaterOrEqual,
		metadata.CompareFunctionAlways:       vk.CompareOpAlways,
	}
	blendFactors = map[metadata.BlendFactor]vk.BlendFactor{
		metadata.BlendFactorZero:                vk.BlendFactorZero,
		metadata.BlendFactorOne:                 vk.BlendFactorOne,
		metadata.BlendFactorSourceAlpha:         vk.BlendFactorSrcAlpha,
		metadata.BlendFactorOneMinusSourceAlpha: vk.BlendFactorOneMinusSrcAlpha,
	}
	vertexFormats = map[metadata.VertexFormat]vk.Format{
		metadata.VertexFormatFloat2: vk.FormatR32g32Sfloat,
		metadata.VertexFormatFloat3: vk.FormatR32g32b32Sfloat,
		metadata.VertexFormatFloat4: vk.FormatR32g32b32a32Sfloat,
	}
)

func cullModeFlags(mode metadata.FaceCullMode) vk.CullModeFlags {
	switch mode {
	case metadata.FaceCullModeNone:
		return vk.CullModeFlags(vk.CullModeNone)
	case metadata.FaceCullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case metadata.FaceCullModeFrontAndBack:
		return vk.CullModeFlags(vk.CullModeFrontAndBack)
	default:
		return vk.CullModeFlags(vk.CullModeBackBit)
	}
}

type shaderModule struct {
	handle vk.ShaderModule
	stage  vk.ShaderStageFlagBits
}

func shaderModuleCreate(context *VulkanContext, shaders metadata.ShaderLibrary, name string, stage vk.ShaderStageFlagBits) (*shaderModule, error) {
	code, err := shaders.Shader(name)
	if err != nil {
		return nil, err
	}
	words, err := spirvWords(code)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", name, err)
	}
	var handle vk.ShaderModule
	if err := checkResult("vkCreateShaderModule", vk.CreateShaderModule(context.Device.LogicalDevice, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    words,
	}, context.Allocator, &handle)); err != nil {
		return nil, fmt.Errorf("shader %s: %w", name, err)
	}
	return &shaderModule{handle: handle, stage: stage}, nil
}

func (m *shaderModule) stageInfo() vk.PipelineShaderStageCreateInfo {
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  m.stage,
		Module: m.handle,
		PName:  "main\x00",
	}
}

func (m *shaderModule) destroy(context *VulkanContext) {
	if m.handle != vk.NullShaderModule {
		vk.DestroyShaderModule(context.Device.LogicalDevice, m.handle, context.Allocator)
		m.handle = vk.NullShaderModule
	}
}

// PipelineCreate compiles desc. The modules are only needed during creation.
func PipelineCreate(context *VulkanContext, descriptors *VulkanDescriptors, shaders metadata.ShaderLibrary, desc *metadata.PipelineDescriptor) (*Pipeline, error) {
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrPipelineCreation, err)
	}
	topology, ok := topologies[desc.Topology]
	if !ok {
		return nil, fmt.Errorf("%w: %s: topology %d", core.ErrPipelineCreation, desc.Label, desc.Topology)
	}

	vertex, err := shaderModuleCreate(context, shaders, desc.VertexFunction, vk.ShaderStageVertexBit)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrPipelineCreation, desc.Label, err)
	}
	defer vertex.destroy(context)
	fragment, err := shaderModuleCreate(context, shaders, desc.FragmentFunction, vk.ShaderStageFragmentBit)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrPipelineCreation, desc.Label, err)
	}
	defer fragment.destroy(context)
	stages := []vk.PipelineShaderStageCreateInfo{vertex.stageInfo(), fragment.stageInfo()}

	// Viewport and scissor are set per pass.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                cullModeFlags(desc.CullMode),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:  vk.False,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vk.True,
		DepthWriteEnable:      vk.False,
		DepthCompareOp:        compareOps[desc.DepthCompare],
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
	}
	if desc.DepthWriteEnabled {
		depthStencil.DepthWriteEnable = vk.True
	}
	if desc.DepthCompare == metadata.CompareFunctionAlways && !desc.DepthWriteEnabled {
		depthStencil.DepthTestEnable = vk.False
	}

	colorBlendAttachment := vk.PipelineColorBlendAttachmentState{
		BlendEnable:    vk.False,
		ColorBlendOp:   vk.BlendOpAdd,
		AlphaBlendOp:   vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}
	if b := desc.Blending; b != nil {
		colorBlendAttachment.BlendEnable = vk.True
		colorBlendAttachment.SrcColorBlendFactor = blendFactors[b.SourceRGBBlendFactor]
		colorBlendAttachment.DstColorBlendFactor = blendFactors[b.DestinationRGBBlendFactor]
		colorBlendAttachment.SrcAlphaBlendFactor = blendFactors[b.SourceAlphaBlendFactor]
		colorBlendAttachment.DstAlphaBlendFactor = blendFactors[b.DestinationAlphaBlendFactor]
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachment},
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	attributes := make([]vk.VertexInputAttributeDescription, 0, len(desc.VertexLayout.Attributes))
	for _, a := range desc.VertexLayout.Attributes {
		attributes = append(attributes, vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   vertexFormats[a.Format],
			Offset:   a.Offset,
		})
	}
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                         vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount: 1,
		PVertexBindingDescriptions: []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    desc.VertexLayout.Stride,
			InputRate: vk.VertexInputRateVertex,
		}},
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               topology,
		PrimitiveRestartEnable: vk.False,
	}

	createInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              descriptors.PipelineLayout,
		RenderPass:          context.MainRenderpass.Handle,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	err = context.locks.SafeCall(PipelineManagement, func() error {
		return checkResult("vkCreateGraphicsPipelines", vk.CreateGraphicsPipelines(
			context.Device.LogicalDevice,
			vk.NullPipelineCache,
			1,
			[]vk.GraphicsPipelineCreateInfo{createInfo},
			context.Allocator,
			pipelines))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrPipelineCreation, desc.Label, err)
	}

	core.LogDebug("graphics pipeline %s created", desc.Label)
	return &Pipeline{
		context: context,
		label:   desc.Label,
		Handle:  pipelines[0],
		Layout:  descriptors.PipelineLayout,
	}, nil
}

func (p *Pipeline) Label() string { return p.label }

// Release destroys the pipeline. The layout is shared and outlives it.
func (p *Pipeline) Release() {
	if p.Handle == vk.NullPipeline {
		return
	}
	_ = p.context.locks.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipeline(p.context.Device.LogicalDevice, p.Handle, p.context.Allocator)
		return nil
	})
	p.Handle = vk.NullPipeline
}
