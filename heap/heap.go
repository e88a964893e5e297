// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package heap implements the bindless GPU heap: one large device-local
// buffer addressed by its own device pointer (a buffer-device-address),
// sub-allocated by simple bump allocation.
package heap

import (
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/cogentgpu/forge/vkutil"
)

// MinAlign is the minimum sub-allocation alignment, matching the
// PhysicalStorageBuffer64 requirement for buffer-device-address access.
const MinAlign = 16

// bump is the pure bump-allocation arithmetic, factored out so it can be
// unit tested without a live Vulkan device.
type bump struct {
	mu       sync.Mutex
	capacity int
	cursor   int
}

// allocate advances the cursor by size bytes at the given alignment
// (raised to MinAlign if smaller), returning the offset of the allocation.
func (b *bump) allocate(size, align int) (int, error) {
	if align < MinAlign {
		align = MinAlign
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	offset := vkutil.AlignUp(b.cursor, align)
	if offset+size > b.capacity {
		return 0, vkutil.New(vkutil.OutOfHeap, "heap sub-allocation exceeds capacity")
	}
	b.cursor = offset + size
	return offset, nil
}

func (b *bump) used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor
}

// Heap is a single device-local vk.Buffer treated as a flat address space.
// Shader code dereferences offsets from it via buffer_reference in GLSL;
// there is no free — lifetime ends with Destroy.
type Heap struct {
	dev     vk.Device
	buf     vk.Buffer
	mem     vk.DeviceMemory
	address uint64

	bump bump
}

// Create allocates one buffer+memory pair of the given size, with
// usage additionally forced to include StorageBuffer, TransferDst, and
// ShaderDeviceAddress (every heap must support all three: bindless
// storage access, staged uploads, and device-address queries).
func Create(gp vkutil.GPUProperties, dev vk.Device, size int, usage vk.BufferUsageFlagBits) (*Heap, error) {
	usage |= vk.BufferUsageStorageBufferBit | vk.BufferUsageTransferDstBit | vk.BufferUsageShaderDeviceAddressBit

	buf := vkutil.NewBuffer(dev, size, usage)
	mem, err := vkutil.AllocBuffMem(gp, dev, buf, vk.MemoryPropertyDeviceLocalBit, true)
	if err != nil {
		vkutil.DestroyBuffer(dev, &buf)
		return nil, err
	}

	h := &Heap{dev: dev, buf: buf, mem: mem, bump: bump{capacity: size}}
	h.address = vkutil.BufferDeviceAddress(dev, buf)
	return h, nil
}

// NewBumpOnly builds a Heap around a bare bump allocator of the given
// capacity, with no backing device buffer, memory, or cached address.
// SubAlloc/Used/Capacity work correctly against it, which makes allocator
// logic built on top of Heap (see package alloc) unit-testable without a
// live Vulkan device.
func NewBumpOnly(capacity int) *Heap {
	return &Heap{bump: bump{capacity: capacity}}
}

// Buffer returns the underlying vk.Buffer, for building descriptor/barrier
// usages that reference the heap as a whole (e.g. the staging pass's
// TransferWrite destination).
func (h *Heap) Buffer() vk.Buffer { return h.buf }

// DeviceAddress returns the cached GPU virtual address of byte 0 of the
// heap. All GPU-side accesses are computed as base + offset.
func (h *Heap) DeviceAddress() uint64 { return h.address }

// Capacity returns the heap's total size in bytes.
func (h *Heap) Capacity() int { return h.bump.capacity }

// Used returns the number of bytes bump-allocated so far.
func (h *Heap) Used() int { return h.bump.used() }

// SubAlloc bump-allocates size bytes at the given alignment (raised to
// MinAlign if smaller) and returns the byte offset from the heap's base.
// Returns an OutOfHeap error if the bump cursor would exceed capacity.
// There is no corresponding free: this heap never reclaims sub-allocations
// within its lifetime.
func (h *Heap) SubAlloc(size, align int) (int, error) {
	return h.bump.allocate(size, align)
}

// Destroy frees the device buffer and memory. The Heap must not be used
// afterward.
func (h *Heap) Destroy() {
	vkutil.DestroyBuffer(h.dev, &h.buf)
	vkutil.FreeBuffMem(h.dev, &h.mem)
	h.address = 0
	h.bump.capacity = 0
}
