// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package frame drives the per-frame external loop: acquire
// the next swapchain image, bind it into the graph's swapchain Resource,
// build the frame's PassContext, execute the graph, and advance the frame
// index/count. Swapchain recreation and acquire-contention fence waits are
// handled here too, against the vkutil.Context seam the embedding
// application provides.
package frame

import (
	"log/slog"

	vk "github.com/goki/vulkan"

	"github.com/cogentgpu/forge/graph"
	"github.com/cogentgpu/forge/vkutil"
)

const waitForever = ^uint64(0)

// Loop owns the frame-slot cursor (index into [0, vkutil.MaxFramesInFlight))
// and the monotonic frame counter, and drives one Graph against one Context.
type Loop struct {
	ctx       vkutil.Context
	g         *graph.Graph
	swapchain *graph.Resource

	index int
	count uint64
}

// New returns a Loop starting at frame slot 0, frame count 0. swapchain is
// the Resource that every pass touching the presented image declares usages
// against; Advance rebinds its handle to the newly acquired image each frame.
func New(ctx vkutil.Context, g *graph.Graph, swapchain *graph.Resource) *Loop {
	return &Loop{ctx: ctx, g: g, swapchain: swapchain}
}

// Index returns the current frame slot, 0 <= Index() < vkutil.MaxFramesInFlight.
func (l *Loop) Index() int { return l.index }

// Count returns the number of frames successfully advanced so far.
func (l *Loop) Count() uint64 { return l.count }

// Advance runs one iteration of the frame loop. It blocks on the frame
// slot's own in-flight fence (bounding how far this slot can run ahead),
// acquires the next swapchain image, blocks again if that image is still
// claimed by a different in-flight frame,
// binds the image into the swapchain Resource, executes the graph, and
// advances the frame cursor. An OutOfDate or SubOptimal result from either
// acquire or the graph's present pass triggers RecreateSwapchain and yields
// the frame rather than treating it as an error.
func (l *Loop) Advance() error {
	dev := l.ctx.Device()
	sync := l.ctx.FrameSync(l.index)

	if sync.InFlightFence != vk.NullFence {
		if err := vkutil.NewError(vk.WaitForFences(dev, 1, []vk.Fence{sync.InFlightFence}, vk.True, waitForever)); err != nil {
			return err
		}
	}

	imageIndex, err := l.ctx.AcquireNextImage(l.index)
	if err != nil {
		if vkutil.Is(err, vkutil.OutOfDate) {
			return l.recreateAndAdvance()
		}
		if vkutil.Is(err, vkutil.NotReady) {
			return nil
		}
		return err
	}

	if claimed := l.ctx.ImageInFlight(imageIndex); claimed != vk.NullFence {
		if err := vkutil.NewError(vk.WaitForFences(dev, 1, []vk.Fence{claimed}, vk.True, waitForever)); err != nil {
			return err
		}
	}
	l.ctx.SetImageInFlight(imageIndex, sync.InFlightFence)

	if sync.InFlightFence != vk.NullFence {
		if err := vkutil.NewError(vk.ResetFences(dev, 1, []vk.Fence{sync.InFlightFence})); err != nil {
			return err
		}
	}

	images := l.ctx.SwapchainImages()
	if int(imageIndex) >= len(images) {
		return vkutil.New(vkutil.InvalidResourceHandle, "acquired image index out of range")
	}
	l.swapchain.BindImage(images[imageIndex], vk.NullImageView)

	pc := &graph.PassContext{
		Cmd:            sync.CommandBuffer,
		Queue:          l.ctx.Queue(),
		FrameIndex:     l.index,
		FrameCount:     l.count,
		ImageIndex:     imageIndex,
		ImageAvailable: sync.ImageAvailable,
		RenderFinished: sync.RenderFinished,
		InFlightFence:  sync.InFlightFence,
	}

	if err := l.g.Execute(sync.CommandBuffer, pc); err != nil {
		if vkutil.Is(err, vkutil.OutOfDate) || vkutil.Is(err, vkutil.SubOptimal) {
			return l.recreateAndAdvance()
		}
		return err
	}

	l.advanceCursor()
	return nil
}

func (l *Loop) recreateAndAdvance() error {
	if err := l.ctx.RecreateSwapchain(); err != nil {
		return err
	}
	slog.Warn("frame: swapchain recreated", "frame", l.count)
	l.advanceCursor()
	return nil
}

// advanceCursor moves the frame slot and counter forward. Split out from
// Advance so loop_test.go can exercise the wraparound arithmetic without a
// live device.
func (l *Loop) advanceCursor() {
	l.index = (l.index + 1) % vkutil.MaxFramesInFlight
	l.count++
}
