// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	shaderWrite = uint64(vk.AccessShaderWriteBit)
	shaderRead  = uint64(vk.AccessShaderReadBit)
	computeBit  = uint64(vk.PipelineStageComputeShaderBit)
	vertexBit   = uint64(vk.PipelineStageVertexShaderBit)
)

// zero-value handles for tests that only need a distinct buffer/image
// identity, not a real view.
var (
	noBufView vk.BufferView
	noImgView vk.ImageView
)

// A compute pass writes a buffer region that a later graphics pass
// reads: no barrier on the fresh write, one compute-to-vertex buffer
// barrier before the read.
func TestComputeWriteThenVertexRead(t *testing.T) {
	g := New(false)
	a := NewBufferResource("A")
	a.BindBuffer(vk.Buffer(1), noBufView)
	g.AddResource(a)

	region := &Region{Offset: 2048, Size: 1024}
	p1 := &Pass{
		Name: "compute",
		Kind: CommandPass,
		Outputs: []ResourceUsage{{
			Resource: a,
			Required: RequiredState{AccessMask: shaderWrite, StageMask: computeBit},
			IsWrite:  true,
			Region:   region,
		}},
	}

	readRegion := &Region{Offset: 2048, Size: 256}
	p2 := &Pass{
		Name: "draw",
		Kind: CommandPass,
		Inputs: []ResourceUsage{{
			Resource: a,
			Required: RequiredState{AccessMask: shaderRead, StageMask: vertexBit},
			Region:   readRegion,
		}},
	}

	markFirstUseInFrame(g, []*Pass{p1, p2})

	plan1, err := g.planSync1(p1.usages())
	require.NoError(t, err)
	assert.True(t, plan1.empty(), "first write to a fresh handle needs no barrier")

	plan2, err := g.planSync1(p2.usages())
	require.NoError(t, err)
	require.Len(t, plan2.bufBarriers, 1)
	b := plan2.bufBarriers[0]
	assert.Equal(t, vk.AccessFlags(shaderWrite), b.SrcAccessMask)
	assert.Equal(t, vk.AccessFlags(shaderRead), b.DstAccessMask)
	assert.Equal(t, vk.PipelineStageFlagBits(computeBit), plan2.srcStage)
	assert.Equal(t, vk.PipelineStageFlagBits(vertexBit), plan2.dstStage)
}

// Two consecutive reads of regions disjoint from the written set elide
// the barrier between them.
func TestDisjointRegionReadsElideBarrier(t *testing.T) {
	g := New(false)
	b := NewBufferResource("B")
	b.BindBuffer(vk.Buffer(2), noBufView)
	g.AddResource(b)

	writeRegion := &Region{Offset: 0, Size: 256}
	writePass := &Pass{
		Name: "init",
		Kind: CommandPass,
		Outputs: []ResourceUsage{{
			Resource: b,
			Required: RequiredState{AccessMask: shaderWrite, StageMask: computeBit},
			IsWrite:  true,
			Region:   writeRegion,
		}},
	}

	r1 := &Pass{
		Name: "read1",
		Kind: CommandPass,
		Inputs: []ResourceUsage{{
			Resource: b,
			Required: RequiredState{AccessMask: shaderRead, StageMask: computeBit},
			Region:   &Region{Offset: 512, Size: 128},
		}},
	}
	r2 := &Pass{
		Name: "read2",
		Kind: CommandPass,
		Inputs: []ResourceUsage{{
			Resource: b,
			Required: RequiredState{AccessMask: shaderRead, StageMask: computeBit},
			Region:   &Region{Offset: 1024, Size: 128},
		}},
	}

	markFirstUseInFrame(g, []*Pass{writePass, r1, r2})

	_, err := g.planSync1(writePass.usages())
	require.NoError(t, err)

	plan1, err := g.planSync1(r1.usages())
	require.NoError(t, err)
	require.Len(t, plan1.bufBarriers, 1, "state changed from write to read, so r1 needs a barrier")

	plan2, err := g.planSync1(r2.usages())
	require.NoError(t, err)
	assert.True(t, plan2.empty(), "r2's region never intersects the written set, and state already matches r1's read")
}

// The swapchain image transitions Undefined to ColorAttachment before
// the draw and ColorAttachment to PresentSrc before the present usage.
func TestSwapchainImageLayoutTransitions(t *testing.T) {
	g := New(false)
	swapImg := NewImageResource("swapchain")
	swapImg.BindImage(vk.Image(7), noImgView)
	g.AddResource(swapImg)

	triangle := &Pass{
		Name: "triangle",
		Kind: CommandPass,
		Outputs: []ResourceUsage{{
			Resource: swapImg,
			Required: RequiredState{
				AccessMask: uint64(vk.AccessColorAttachmentWriteBit),
				StageMask:  uint64(vk.PipelineStageColorAttachmentOutputBit),
				Layout:     vk.ImageLayoutColorAttachmentOptimal,
			},
			IsWrite: true,
		}},
	}
	present := NewPresentPass("present", nil, swapImg)

	markFirstUseInFrame(g, []*Pass{triangle, present})

	plan1, err := g.planSync1(triangle.usages())
	require.NoError(t, err)
	require.Len(t, plan1.imgBarriers, 1)
	assert.Equal(t, vk.ImageLayoutUndefined, plan1.imgBarriers[0].OldLayout)
	assert.Equal(t, vk.ImageLayoutColorAttachmentOptimal, plan1.imgBarriers[0].NewLayout)

	plan2, err := g.planSync1(present.usages())
	require.NoError(t, err)
	require.Len(t, plan2.imgBarriers, 1)
	assert.Equal(t, vk.ImageLayoutColorAttachmentOptimal, plan2.imgBarriers[0].OldLayout)
	assert.Equal(t, vk.ImageLayoutPresentSrc, plan2.imgBarriers[0].NewLayout)
}

// Submit runs before present when inserted first, and reversing the
// insertion order reverses execution order.
func TestNonCommandPassOrdering(t *testing.T) {
	submit := &Pass{Name: "submit", Kind: NonCommandPass}
	present := &Pass{Name: "present", Kind: NonCommandPass}
	terrain := &Pass{Name: "terrain", Kind: CommandPass}
	triangle := &Pass{Name: "triangle", Kind: CommandPass}

	ordered := orderedNonCommandPasses([]*Pass{terrain, triangle, submit, present})
	require.Len(t, ordered, 2)
	assert.Equal(t, "submit", ordered[0].Name)
	assert.Equal(t, "present", ordered[1].Name)

	reversed := orderedNonCommandPasses([]*Pass{terrain, triangle, present, submit})
	require.Len(t, reversed, 2)
	assert.Equal(t, "present", reversed[0].Name)
	assert.Equal(t, "submit", reversed[1].Name)
}

// An image resource on its first use in a pass always gets exactly one
// barrier, even when the required state already matches.
func TestInvariantImageFirstUseAlwaysBarriers(t *testing.T) {
	g := New(false)
	img := NewImageResource("img")
	img.BindImage(vk.Image(42), noImgView)
	g.AddResource(img)

	// Required state deliberately mirrors the handle's fresh default
	// state (Undefined layout, zero access/stage, ignored queue family).
	p := &Pass{
		Name: "noop",
		Kind: CommandPass,
		Outputs: []ResourceUsage{{
			Resource: img,
			Required: RequiredState{Layout: vk.ImageLayoutUndefined, QueueFamilyIndex: vk.QueueFamilyIgnored},
			IsWrite:  true,
		}},
	}
	markFirstUseInFrame(g, []*Pass{p})

	plan, err := g.planSync1(p.usages())
	require.NoError(t, err)
	assert.Len(t, plan.imgBarriers, 1)
}

// Under Sync1 the combined stage masks never land on zero.
func TestInvariantSync1StageFallback(t *testing.T) {
	g := New(false)
	img := NewImageResource("img")
	img.BindImage(vk.Image(99), noImgView)
	g.AddResource(img)

	p := &Pass{
		Name: "transition",
		Kind: CommandPass,
		Outputs: []ResourceUsage{{
			Resource: img,
			Required: RequiredState{Layout: vk.ImageLayoutTransferDstOptimal},
			IsWrite:  true,
		}},
	}
	markFirstUseInFrame(g, []*Pass{p})

	plan, err := g.planSync1(p.usages())
	require.NoError(t, err)
	require.False(t, plan.empty())
	assert.Equal(t, vk.PipelineStageFlagBits(vk.PipelineStageTopOfPipeBit), plan.srcStage)
	assert.Equal(t, vk.PipelineStageFlagBits(vk.PipelineStageBottomOfPipeBit), plan.dstStage)
}

// After barrier synthesis the handle's authoritative state equals the
// last declared usage's required state, barrier or not — and
// the Resource's advisory CurrentState mirrors it.
func TestInvariantStateAdvancesToRequired(t *testing.T) {
	g := New(false)
	b := NewBufferResource("B")
	b.BindBuffer(vk.Buffer(3), noBufView)

	write := &Pass{
		Name: "write",
		Kind: CommandPass,
		Outputs: []ResourceUsage{{
			Resource: b,
			Required: RequiredState{AccessMask: shaderWrite, StageMask: computeBit},
			IsWrite:  true,
		}},
	}
	read := &Pass{
		Name: "read",
		Kind: CommandPass,
		Inputs: []ResourceUsage{{
			Resource: b,
			Required: RequiredState{AccessMask: shaderRead, StageMask: vertexBit},
		}},
	}
	markFirstUseInFrame(g, []*Pass{write, read})

	_, err := g.planSync1(write.usages())
	require.NoError(t, err)
	_, err = g.planSync1(read.usages())
	require.NoError(t, err)

	st := g.bufStates[vk.Buffer(3)]
	require.NotNil(t, st)
	assert.Equal(t, shaderRead, st.AccessMask)
	assert.Equal(t, vertexBit, st.StageMask)
	assert.Equal(t, st.AccessMask, b.CurrentState.AccessMask)
	assert.Equal(t, st.StageMask, b.CurrentState.StageMask)
}

// Sync2 emits buffer barriers with the same structure as its image
// barriers, minus the layout fields: per-barrier 64-bit stage and access
// masks on both sides.
func TestSync2BufferBarrierSymmetry(t *testing.T) {
	g := New(true)
	b := NewBufferResource("B")
	b.BindBuffer(vk.Buffer(5), noBufView)

	write := &Pass{
		Name: "write",
		Kind: CommandPass,
		Outputs: []ResourceUsage{{
			Resource: b,
			Required: RequiredState{AccessMask: shaderWrite, StageMask: computeBit},
			IsWrite:  true,
			Region:   &Region{Offset: 0, Size: 512},
		}},
	}
	read := &Pass{
		Name: "read",
		Kind: CommandPass,
		Inputs: []ResourceUsage{{
			Resource: b,
			Required: RequiredState{AccessMask: shaderRead, StageMask: vertexBit},
			Region:   &Region{Offset: 0, Size: 256},
		}},
	}
	markFirstUseInFrame(g, []*Pass{write, read})

	_, err := g.planSync2(write.usages())
	require.NoError(t, err)
	plan, err := g.planSync2(read.usages())
	require.NoError(t, err)

	require.Len(t, plan.bufBarriers, 1)
	bar := plan.bufBarriers[0]
	assert.Equal(t, vk.PipelineStageFlags2(computeBit), bar.SrcStageMask)
	assert.Equal(t, vk.AccessFlags2(shaderWrite), bar.SrcAccessMask)
	assert.Equal(t, vk.PipelineStageFlags2(vertexBit), bar.DstStageMask)
	assert.Equal(t, vk.AccessFlags2(shaderRead), bar.DstAccessMask)
	assert.Equal(t, vk.DeviceSize(0), bar.Offset)
	assert.Equal(t, vk.DeviceSize(256), bar.Size)
}

// markFirstUseInFrame mirrors the bookkeeping pass at the top of
// Graph.Execute, exposed here so scenario tests can drive planSync1/
// planSync2 directly without going through begin/end command buffer.
func markFirstUseInFrame(g *Graph, passes []*Pass) {
	for _, p := range passes {
		for _, u := range p.usages() {
			if !u.Resource.HasHandle() {
				continue
			}
			st, _, err := g.stateFor(u.Resource)
			if err != nil {
				continue
			}
			st.FirstUseInFrame = true
		}
	}
	for _, p := range passes {
		for _, u := range p.usages() {
			if !u.Resource.HasHandle() {
				continue
			}
			if st, _, err := g.stateFor(u.Resource); err == nil {
				st.FirstUseInPass = true
			}
		}
	}
}
