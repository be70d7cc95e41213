package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vulkan-go/vulkan"
)

// pipelineDesc is what differs between the scene and HUD pipelines.
type pipelineDesc struct {
	vertShader string
	fragShader string
	stride     uint32
	attributes []vulkan.VertexInputAttributeDescription
	setLayouts []vulkan.DescriptorSetLayout
	push       []vulkan.PushConstantRange
	cull       vulkan.CullModeFlagBits
	depthTest  bool
}

// createPipeline reads the SPIR-V pair from shaderDir and builds a pipeline
// with dynamic viewport and scissor at the context's sample count. The
// layout is destroyed on failure.
func (c *vulkanContext) createPipeline(shaderDir string, pass vulkan.RenderPass, desc pipelineDesc) (vulkan.PipelineLayout, vulkan.Pipeline, error) {
	nullLayout, nullPipeline := vulkan.PipelineLayout(vulkan.NullHandle), vulkan.Pipeline(vulkan.NullHandle)

	vertCode, err := os.ReadFile(filepath.Join(shaderDir, desc.vertShader))
	if err != nil {
		return nullLayout, nullPipeline, fmt.Errorf("read vertex shader: %w", err)
	}
	fragCode, err := os.ReadFile(filepath.Join(shaderDir, desc.fragShader))
	if err != nil {
		return nullLayout, nullPipeline, fmt.Errorf("read fragment shader: %w", err)
	}

	vertModule, err := c.createShaderModule(vertCode)
	if err != nil {
		return nullLayout, nullPipeline, fmt.Errorf("%s: %w", desc.vertShader, err)
	}
	defer vulkan.DestroyShaderModule(c.device, vertModule, nil)
	fragModule, err := c.createShaderModule(fragCode)
	if err != nil {
		return nullLayout, nullPipeline, fmt.Errorf("%s: %w", desc.fragShader, err)
	}
	defer vulkan.DestroyShaderModule(c.device, fragModule, nil)

	mainName := "main\x00"
	shaderStages := []vulkan.PipelineShaderStageCreateInfo{
		{
			SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vulkan.ShaderStageVertexBit,
			Module: vertModule,
			PName:  mainName,
		},
		{
			SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vulkan.ShaderStageFragmentBit,
			Module: fragModule,
			PName:  mainName,
		},
	}

	vertexInput := vulkan.PipelineVertexInputStateCreateInfo{
		SType:                         vulkan.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount: 1,
		PVertexBindingDescriptions: []vulkan.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    desc.stride,
			InputRate: vulkan.VertexInputRateVertex,
		}},
		VertexAttributeDescriptionCount: uint32(len(desc.attributes)),
		PVertexAttributeDescriptions:    desc.attributes,
	}

	inputAssembly := vulkan.PipelineInputAssemblyStateCreateInfo{
		SType:    vulkan.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vulkan.PrimitiveTopologyTriangleList,
	}

	viewportState := vulkan.PipelineViewportStateCreateInfo{
		SType:         vulkan.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	dynamicStates := []vulkan.DynamicState{vulkan.DynamicStateViewport, vulkan.DynamicStateScissor}
	dynamicState := vulkan.PipelineDynamicStateCreateInfo{
		SType:             vulkan.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	rasterizer := vulkan.PipelineRasterizationStateCreateInfo{
		SType:       vulkan.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vulkan.PolygonModeFill,
		LineWidth:   1.0,
		CullMode:    vulkan.CullModeFlags(desc.cull),
		FrontFace:   vulkan.FrontFaceCounterClockwise,
	}

	multisampling := vulkan.PipelineMultisampleStateCreateInfo{
		SType:                vulkan.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: max(c.samples, vulkan.SampleCount1Bit),
	}

	depthStencil := vulkan.PipelineDepthStencilStateCreateInfo{
		SType:          vulkan.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthCompareOp: vulkan.CompareOpLess,
	}
	if desc.depthTest {
		depthStencil.DepthTestEnable = vulkan.True
		depthStencil.DepthWriteEnable = vulkan.True
	}

	colorBlending := vulkan.PipelineColorBlendStateCreateInfo{
		SType:           vulkan.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: 1,
		PAttachments: []vulkan.PipelineColorBlendAttachmentState{{
			ColorWriteMask: vulkan.ColorComponentFlags(vulkan.ColorComponentRBit | vulkan.ColorComponentGBit | vulkan.ColorComponentBBit | vulkan.ColorComponentABit),
			BlendEnable:    vulkan.False,
		}},
	}

	layoutInfo := vulkan.PipelineLayoutCreateInfo{
		SType:                  vulkan.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(desc.setLayouts)),
		PSetLayouts:            desc.setLayouts,
		PushConstantRangeCount: uint32(len(desc.push)),
		PPushConstantRanges:    desc.push,
	}
	var layout vulkan.PipelineLayout
	if res := vulkan.CreatePipelineLayout(c.device, &layoutInfo, nil, &layout); res != vulkan.Success {
		return nullLayout, nullPipeline, fmt.Errorf("create pipeline layout: %w", vulkan.Error(res))
	}

	pipelineInfo := vulkan.GraphicsPipelineCreateInfo{
		SType:               vulkan.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(shaderStages)),
		PStages:             shaderStages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlending,
		PDynamicState:       &dynamicState,
		Layout:              layout,
		RenderPass:          pass,
	}
	pipelines := make([]vulkan.Pipeline, 1)
	if res := vulkan.CreateGraphicsPipelines(c.device, vulkan.PipelineCache(vulkan.NullHandle), 1, []vulkan.GraphicsPipelineCreateInfo{pipelineInfo}, nil, pipelines); res != vulkan.Success {
		vulkan.DestroyPipelineLayout(c.device, layout, nil)
		return nullLayout, nullPipeline, fmt.Errorf("create graphics pipeline: %w", vulkan.Error(res))
	}
	return layout, pipelines[0], nil
}

func (c *vulkanContext) destroyPipeline(layout *vulkan.PipelineLayout, pipeline *vulkan.Pipeline) {
	if *pipeline != vulkan.Pipeline(vulkan.NullHandle) {
		vulkan.DestroyPipeline(c.device, *pipeline, nil)
		*pipeline = vulkan.Pipeline(vulkan.NullHandle)
	}
	if *layout != vulkan.PipelineLayout(vulkan.NullHandle) {
		vulkan.DestroyPipelineLayout(c.device, *layout, nil)
		*layout = vulkan.PipelineLayout(vulkan.NullHandle)
	}
}
