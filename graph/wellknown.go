// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/cogentgpu/forge/vkutil"
)

// NewSubmitPass returns the NonCommand pass that submits the frame's
// command buffer to queue, waiting on ImageAvailable at the color
// attachment output stage and signaling RenderFinished, fenced by
// InFlightFence. It must be added to the graph after every
// CommandPass whose work it is meant to submit.
//
// Grounded on RenderFrame.SubmitRender (vgpu/renderframe.go), generalized
// from a single hardcoded command buffer to whatever vk.CommandBuffer the
// PassContext carries for the frame, and from an unconditional fence wait
// to signaling semaphores for presentation to consume.
func NewSubmitPass(name string) *Pass {
	return &Pass{
		Name: name,
		Kind: NonCommandPass,
		Execute: func(pc *PassContext) error {
			waitStage := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
			ret := vk.QueueSubmit(pc.Queue, 1, []vk.SubmitInfo{{
				SType:                vk.StructureTypeSubmitInfo,
				WaitSemaphoreCount:   1,
				PWaitSemaphores:      []vk.Semaphore{pc.ImageAvailable},
				PWaitDstStageMask:    []vk.PipelineStageFlags{waitStage},
				CommandBufferCount:   1,
				PCommandBuffers:      []vk.CommandBuffer{pc.Cmd},
				SignalSemaphoreCount: 1,
				PSignalSemaphores:    []vk.Semaphore{pc.RenderFinished},
			}}, pc.InFlightFence)
			if err := vkutil.NewError(ret); err != nil {
				return fmt.Errorf("submit pass %q: %w", name, err)
			}
			return nil
		},
	}
}

// NewPresentPass returns the NonCommand pass that presents pc.ImageIndex on
// ctx's swapchain, waiting on RenderFinished. It declares the swapchain
// image as an input in PresentSrc layout at the color-attachment-output
// stage with MemoryRead access, so the frame's final layout transition is
// synthesized before the command buffer ends even though the present
// itself runs after it. OutOfDate and SubOptimal are reported through the
// returned error (via vkutil.Kind), leaving the decision to recreate the
// swapchain to the caller of the frame loop.
func NewPresentPass(name string, ctx vkutil.Context, swapchainImage *Resource) *Pass {
	return &Pass{
		Name: name,
		Kind: NonCommandPass,
		Inputs: []ResourceUsage{{
			Resource: swapchainImage,
			Required: RequiredState{
				AccessMask: uint64(vk.AccessMemoryReadBit),
				StageMask:  uint64(vk.PipelineStageColorAttachmentOutputBit),
				Layout:     vk.ImageLayoutPresentSrc,
			},
		}},
		Execute: func(pc *PassContext) error {
			return ctx.Present(pc.FrameIndex, pc.ImageIndex)
		},
	}
}
