// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkutil

import vk "github.com/goki/vulkan"

// MaxFramesInFlight bounds how many frames may be in flight simultaneously;
// the per-frame sync arrays below are sized to this.
const MaxFramesInFlight = 3

// FrameSync holds the command buffer and synchronization objects for one
// in-flight frame slot.
type FrameSync struct {
	CommandBuffer  vk.CommandBuffer
	ImageAvailable vk.Semaphore
	RenderFinished vk.Semaphore
	InFlightFence  vk.Fence
}

// Context is the external collaborator this module consumes: Vulkan
// instance/device/swapchain bring-up, surface creation, and platform
// windowing are all out of scope here and are provided by whatever
// application embeds this module. Context is the seam between that
// bring-up code and the render graph / frame loop defined here.
type Context interface {
	Device() vk.Device
	PhysicalDevice() vk.PhysicalDevice
	Queue() vk.Queue
	QueueFamilyIndex() uint32
	MemoryProperties() vk.PhysicalDeviceMemoryProperties

	Swapchain() vk.Swapchain
	SwapchainImages() []vk.Image
	SwapchainFormat() vk.Format

	// FrameSync returns the per-frame command buffer and sync objects for
	// slot i, 0 <= i < MaxFramesInFlight.
	FrameSync(i int) *FrameSync

	// ImageInFlight returns the fence currently claiming swapchain image
	// imageIndex, or nil if that image is not claimed by any in-flight
	// frame. SetImageInFlight records the claim.
	ImageInFlight(imageIndex uint32) vk.Fence
	SetImageInFlight(imageIndex uint32, fence vk.Fence)

	// AcquireNextImage acquires the next swapchain image for the given
	// frame slot, signaling that frame's ImageAvailable semaphore.
	// Returns an OutOfDate or NotReady tagged error (see vkutil.Kind) on
	// the corresponding Vulkan result.
	AcquireNextImage(frameIndex int) (imageIndex uint32, err error)

	// Present presents imageIndex, waiting on the frame's RenderFinished
	// semaphore. Returns an OutOfDate/SubOptimal tagged error as appropriate.
	Present(frameIndex int, imageIndex uint32) error

	// RecreateSwapchain rebuilds the swapchain (and resizes ImageInFlight
	// bookkeeping) after an OutOfDate result.
	RecreateSwapchain() error
}
