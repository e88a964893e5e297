// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline builds and caches compute/graphics pipelines and
// hot-reloads them on shader file changes.
package pipeline

import (
	"github.com/jinzhu/copier"

	vk "github.com/goki/vulkan"
)

// Kind distinguishes the two pipeline shapes a Pipeline can hold.
type Kind int

const (
	// KindCompute marks a Pipeline holding a ComputePipeline.
	KindCompute Kind = iota
	// KindGraphics marks a Pipeline holding a GraphicsPipeline.
	KindGraphics
)

func (k Kind) String() string {
	if k == KindGraphics {
		return "graphics"
	}
	return "compute"
}

// entryPoint is fixed for every pipeline this compiler creates:
// renaming a shader's entry point has no effect.
const entryPoint = "main\x00"

// Pipeline is a tagged union over ComputePipeline and GraphicsPipeline,
// replacing the base-record-plus-downcast hierarchy of the source with a
// single variant type keyed by name in the Compiler's registry. Reload
// swaps the handles inside the variant that is already live; callers that
// hold a *Pipeline never need to re-look it up.
type Pipeline struct {
	name     string
	kind     Kind
	compute  *ComputePipeline
	graphics *GraphicsPipeline
}

// Name returns the key this Pipeline is registered under.
func (p *Pipeline) Name() string { return p.name }

// Kind reports which variant this Pipeline holds.
func (p *Pipeline) Kind() Kind { return p.kind }

// Compute returns the compute pipeline and true if p holds one.
func (p *Pipeline) Compute() (*ComputePipeline, bool) {
	if p.kind != KindCompute {
		return nil, false
	}
	return p.compute, true
}

// Graphics returns the graphics pipeline and true if p holds one.
func (p *Pipeline) Graphics() (*GraphicsPipeline, bool) {
	if p.kind != KindGraphics {
		return nil, false
	}
	return p.graphics, true
}

// Specialization configures the two supported specialization constants:
// a required 4-byte phase at constant id 0, and an optional
// 12-byte (u32,u32,u32) local_size at constant id 1, offset 4.
type Specialization struct {
	Phase     uint32
	LocalSize *[3]uint32
}

// clone deep-copies s, since a stored pipeline config must not alias any
// slice or pointer the caller could later mutate.
func (s *Specialization) clone() *Specialization {
	if s == nil {
		return nil
	}
	out := &Specialization{Phase: s.Phase}
	if s.LocalSize != nil {
		ls := *s.LocalSize
		out.LocalSize = &ls
	}
	return out
}

// ComputePipelineConfig is the caller-supplied input to CreateCompute.
type ComputePipelineConfig struct {
	Name                 string
	ShaderPath           string
	PushConstantSize     uint32
	DescriptorSetLayouts []vk.DescriptorSetLayout
	Specialization       *Specialization
}

// clone deep-copies c into storage this package owns: path strings and
// descriptor-layout slices must not alias the caller's own, since hot
// reload rebuilds from this stored copy later.
func (c ComputePipelineConfig) clone() ComputePipelineConfig {
	var out ComputePipelineConfig
	copier.Copy(&out, &c)
	out.Specialization = c.Specialization.clone()
	return out
}

// ComputePipeline is a created compute pipeline plus the configuration it
// was built from, preserved so hot reload can rebuild it exactly.
type ComputePipeline struct {
	handle vk.Pipeline
	layout vk.PipelineLayout
	config ComputePipelineConfig
}

// Handle returns the live vk.Pipeline. It changes across a hot reload;
// callers should fetch it fresh each frame rather than caching it.
func (cp *ComputePipeline) Handle() vk.Pipeline { return cp.handle }

// Layout returns the live vk.PipelineLayout.
func (cp *ComputePipeline) Layout() vk.PipelineLayout { return cp.layout }

// PushConstantSize returns the push-constant range size this pipeline's
// layout was built with.
func (cp *ComputePipeline) PushConstantSize() uint32 { return cp.config.PushConstantSize }

// DescriptorSetLayouts returns the descriptor set layouts this pipeline's
// layout was built with.
func (cp *ComputePipeline) DescriptorSetLayouts() []vk.DescriptorSetLayout {
	return cp.config.DescriptorSetLayouts
}

// ShaderPath returns the SPIR-V source path this pipeline compiles from.
func (cp *ComputePipeline) ShaderPath() string { return cp.config.ShaderPath }

// ColorBlend describes the blend state for one color attachment of a
// graphics pipeline. The zero value is "no blending" (RGBA write, no
// blend op); Enable turns on the default alpha-over blend.
type ColorBlend struct {
	Enable bool
}

// GraphicsPipelineConfig is the caller-supplied input to CreateGraphics.
type GraphicsPipelineConfig struct {
	Name                 string
	VertexShaderPath     string
	FragmentShaderPath   string
	PushConstantSize     uint32
	DescriptorSetLayouts []vk.DescriptorSetLayout
	ColorFormats         []vk.Format
	ColorBlend           []ColorBlend // parallel to ColorFormats; shorter means "no blend" for the rest
	DepthFormat          vk.Format
	StencilFormat        vk.Format
}

// clone deep-copies c for the same reason ComputePipelineConfig.clone does.
func (c GraphicsPipelineConfig) clone() GraphicsPipelineConfig {
	var out GraphicsPipelineConfig
	copier.Copy(&out, &c)
	return out
}

// GraphicsPipeline is a created graphics pipeline plus its configuration,
// preserved for hot reload exactly as ComputePipeline preserves its own.
type GraphicsPipeline struct {
	handle vk.Pipeline
	layout vk.PipelineLayout
	config GraphicsPipelineConfig
}

// Handle returns the live vk.Pipeline.
func (gp *GraphicsPipeline) Handle() vk.Pipeline { return gp.handle }

// Layout returns the live vk.PipelineLayout.
func (gp *GraphicsPipeline) Layout() vk.PipelineLayout { return gp.layout }

// ColorFormats returns the dynamic-rendering color-attachment formats this
// pipeline was built against.
func (gp *GraphicsPipeline) ColorFormats() []vk.Format { return gp.config.ColorFormats }
