// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/cogentgpu/forge/vkutil"
)

// CreateGraphics builds a graphics pipeline: dynamic rendering
// (no VkRenderPass), fixed topology/cull/front-face, dynamic
// viewport+scissor, one color-blend attachment per color format, and a
// push-constant range visible to both vertex and fragment stages.
func (c *Compiler) CreateGraphics(cfg GraphicsPipelineConfig) (*Pipeline, error) {
	vertModule, err := c.shaderModule(cfg.VertexShaderPath)
	if err != nil {
		return nil, err
	}
	fragModule, err := c.shaderModule(cfg.FragmentShaderPath)
	if err != nil {
		return nil, err
	}

	handle, layout, err := c.buildGraphicsPipeline(cfg, vertModule, fragModule)
	if err != nil {
		return nil, vkutil.Wrap(vkutil.PipelineCreationFailed, "create graphics pipeline "+cfg.Name, err)
	}

	gp := &GraphicsPipeline{handle: handle, layout: layout, config: cfg.clone()}
	p := &Pipeline{name: cfg.Name, kind: KindGraphics, graphics: gp}

	c.register(p)
	c.addMonitor(cfg.VertexShaderPath, cfg.Name)
	c.addMonitor(cfg.FragmentShaderPath, cfg.Name)
	return p, nil
}

func (c *Compiler) buildGraphicsPipeline(cfg GraphicsPipelineConfig, vertModule, fragModule vk.ShaderModule) (vk.Pipeline, vk.PipelineLayout, error) {
	stages := vk.ShaderStageFlags(vk.ShaderStageVertexBit) | vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
	layout, err := c.buildLayout(cfg.DescriptorSetLayouts, cfg.PushConstantSize, stages)
	if err != nil {
		return vk.NullPipeline, vk.NullPipelineLayout, err
	}

	shaderStages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vertModule,
			PName:  entryPoint,
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: fragModule,
			PName:  entryPoint,
		},
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleList,
	}
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	rasterization := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeBackBit),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1.0,
	}
	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
	}
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vk.True,
		DepthWriteEnable: vk.True,
		DepthCompareOp:   vk.CompareOpLessOrEqual,
		MinDepthBounds:   0,
		MaxDepthBounds:   1,
	}

	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, len(cfg.ColorFormats))
	for i := range blendAttachments {
		enable := i < len(cfg.ColorBlend) && cfg.ColorBlend[i].Enable
		blendAttachments[i] = colorBlendAttachment(enable)
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	renderingInfo := vk.PipelineRenderingCreateInfo{
		SType:                   vk.StructureTypePipelineRenderingCreateInfo,
		ColorAttachmentCount:    uint32(len(cfg.ColorFormats)),
		PColorAttachmentFormats: cfg.ColorFormats,
		DepthAttachmentFormat:   cfg.DepthFormat,
		StencilAttachmentFormat: cfg.StencilFormat,
	}

	createInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		PNext:               unsafe.Pointer(&renderingInfo),
		StageCount:          uint32(len(shaderStages)),
		PStages:             shaderStages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterization,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              layout,
		RenderPass:          vk.NullRenderPass,
		Subpass:             0,
	}

	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateGraphicsPipelines(c.dev, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{createInfo}, nil, pipelines)
	if err := vkutil.NewError(ret); err != nil {
		vk.DestroyPipelineLayout(c.dev, layout, nil)
		return vk.NullPipeline, vk.NullPipelineLayout, err
	}
	return pipelines[0], layout, nil
}

// colorBlendAttachment returns the default RGBA-write blend attachment
// state: no blending, or (if enable) standard alpha-over.
func colorBlendAttachment(enable bool) vk.PipelineColorBlendAttachmentState {
	mask := vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit)
	a := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: mask,
	}
	if !enable {
		return a
	}
	a.BlendEnable = vk.True
	a.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
	a.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
	a.ColorBlendOp = vk.BlendOpAdd
	a.SrcAlphaBlendFactor = vk.BlendFactorOne
	a.DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
	a.AlphaBlendOp = vk.BlendOpAdd
	return a
}
