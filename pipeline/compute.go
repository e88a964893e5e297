// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/cogentgpu/forge/vkutil"
)

// CreateCompute builds a compute pipeline: compile (or reuse)
// the shader module, wire the optional specialization constants, build a
// layout from the descriptor set layouts plus an optional push-constant
// range, create the pipeline with entry point "main", and register it for
// hot-reload monitoring under cfg.Name.
func (c *Compiler) CreateCompute(cfg ComputePipelineConfig) (*Pipeline, error) {
	module, err := c.shaderModule(cfg.ShaderPath)
	if err != nil {
		return nil, err
	}

	handle, layout, err := c.buildComputePipeline(cfg, module)
	if err != nil {
		return nil, vkutil.Wrap(vkutil.PipelineCreationFailed, "create compute pipeline "+cfg.Name, err)
	}

	cp := &ComputePipeline{handle: handle, layout: layout, config: cfg.clone()}
	p := &Pipeline{name: cfg.Name, kind: KindCompute, compute: cp}

	c.register(p)
	c.addMonitor(cfg.ShaderPath, cfg.Name)
	return p, nil
}

func (c *Compiler) buildComputePipeline(cfg ComputePipelineConfig, module vk.ShaderModule) (vk.Pipeline, vk.PipelineLayout, error) {
	layout, err := c.buildLayout(cfg.DescriptorSetLayouts, cfg.PushConstantSize, vk.ShaderStageFlags(vk.ShaderStageComputeBit))
	if err != nil {
		return vk.NullPipeline, vk.NullPipelineLayout, err
	}

	stage := vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageComputeBit,
		Module: module,
		PName:  entryPoint,
	}
	if data, entries := specializationData(cfg.Specialization); len(entries) > 0 {
		stage.PSpecializationInfo = &vk.SpecializationInfo{
			MapEntryCount: uint32(len(entries)),
			PMapEntries:   entries,
			DataSize:      uint(len(data)),
			PData:         unsafe.Pointer(&data[0]),
		}
	}

	info := vk.ComputePipelineCreateInfo{
		SType:  vk.StructureTypeComputePipelineCreateInfo,
		Stage:  stage,
		Layout: layout,
	}
	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateComputePipelines(c.dev, vk.NullPipelineCache, 1, []vk.ComputePipelineCreateInfo{info}, nil, pipelines)
	if err := vkutil.NewError(ret); err != nil {
		vk.DestroyPipelineLayout(c.dev, layout, nil)
		return vk.NullPipeline, vk.NullPipelineLayout, err
	}
	return pipelines[0], layout, nil
}

// buildLayout creates a pipeline layout over setLayouts, adding a single
// push-constant range visible to stages iff pushConstantSize > 0.
func (c *Compiler) buildLayout(setLayouts []vk.DescriptorSetLayout, pushConstantSize uint32, stages vk.ShaderStageFlags) (vk.PipelineLayout, error) {
	info := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
	}
	if len(setLayouts) > 0 {
		info.PSetLayouts = setLayouts
	}
	if pushConstantSize > 0 {
		info.PushConstantRangeCount = 1
		info.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: stages,
			Offset:     0,
			Size:       pushConstantSize,
		}}
	}
	var layout vk.PipelineLayout
	ret := vk.CreatePipelineLayout(c.dev, &info, nil, &layout)
	if err := vkutil.NewError(ret); err != nil {
		return vk.NullPipelineLayout, err
	}
	return layout, nil
}
