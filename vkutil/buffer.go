// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkutil

import (
	"unsafe"

	vk "github.com/goki/vulkan"
)

// NewBuffer makes a vk.Buffer of given size and usage flags.
func NewBuffer(dev vk.Device, size int, usage vk.BufferUsageFlagBits) vk.Buffer {
	if size == 0 {
		return vk.NullBuffer
	}
	var buffer vk.Buffer
	ret := vk.CreateBuffer(dev, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Usage:       vk.BufferUsageFlags(usage),
		Size:        vk.DeviceSize(size),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buffer)
	IfPanic(NewError(ret))
	return buffer
}

// AllocBuffMem allocates memory satisfying buffer's requirements plus the
// given property flags, and binds it to buffer. If deviceAddress is true,
// the allocation is made with VkMemoryAllocateFlagsInfo{DeviceAddressBit},
// required for buffers created with BufferUsageShaderDeviceAddressBit.
func AllocBuffMem(gp GPUProperties, dev vk.Device, buffer vk.Buffer, properties vk.MemoryPropertyFlagBits, deviceAddress bool) (vk.DeviceMemory, error) {
	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dev, buffer, &memReqs)
	memReqs.Deref()

	memType, ok := FindRequiredMemoryType(gp.MemoryProperties(), vk.MemoryPropertyFlagBits(memReqs.MemoryTypeBits), properties)
	if !ok {
		return vk.NullDeviceMemory, New(OutOfHostMemory, "failed to find required memory type")
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memType,
	}
	var flagsInfo vk.MemoryAllocateFlagsInfo
	if deviceAddress {
		flagsInfo = vk.MemoryAllocateFlagsInfo{
			SType: vk.StructureTypeMemoryAllocateFlagsInfo,
			Flags: vk.MemoryAllocateFlags(vk.MemoryAllocateDeviceAddressBit),
		}
		allocInfo.PNext = unsafe.Pointer(&flagsInfo)
	}

	var memory vk.DeviceMemory
	ret := vk.AllocateMemory(dev, &allocInfo, nil, &memory)
	if err := NewError(ret); err != nil {
		return vk.NullDeviceMemory, err
	}
	vk.BindBufferMemory(dev, buffer, memory, 0)
	return memory, nil
}

// MapMemory maps size bytes of device memory starting at offset 0,
// returning the host pointer. Returns nil on failure.
func MapMemory(dev vk.Device, mem vk.DeviceMemory, size int) unsafe.Pointer {
	var buffPtr unsafe.Pointer
	ret := vk.MapMemory(dev, mem, 0, vk.DeviceSize(size), 0, &buffPtr)
	if IsError(ret) {
		return nil
	}
	return buffPtr
}

// FreeBuffMem frees the given device memory and nils the handle.
func FreeBuffMem(dev vk.Device, memory *vk.DeviceMemory) {
	if *memory == vk.NullDeviceMemory {
		return
	}
	vk.FreeMemory(dev, *memory, nil)
	*memory = vk.NullDeviceMemory
}

// DestroyBuffer destroys buff and nils the handle.
func DestroyBuffer(dev vk.Device, buff *vk.Buffer) {
	if *buff == vk.NullBuffer {
		return
	}
	vk.DestroyBuffer(dev, *buff, nil)
	*buff = vk.NullBuffer
}

// BufferDeviceAddress returns the GPU virtual address of buf. The buffer
// must have been created with BufferUsageShaderDeviceAddressBit and bound
// to memory allocated with AllocBuffMem(..., deviceAddress=true).
func BufferDeviceAddress(dev vk.Device, buf vk.Buffer) uint64 {
	return vk.GetBufferDeviceAddress(dev, &vk.BufferDeviceAddressInfo{
		SType:  vk.StructureTypeBufferDeviceAddressInfo,
		Buffer: buf,
	})
}

// GPUProperties is the minimal surface Heap/Stage need from the physical
// device to pick memory types; GPU bring-up (out of scope for this module)
// supplies the concrete implementation.
type GPUProperties interface {
	MemoryProperties() vk.PhysicalDeviceMemoryProperties
}

// FindRequiredMemoryType finds a memory type index satisfying typeBits
// (a bitmask of acceptable memory-type indices) and the required property
// flags.
func FindRequiredMemoryType(properties vk.PhysicalDeviceMemoryProperties, typeBits vk.MemoryPropertyFlagBits, required vk.MemoryPropertyFlagBits) (uint32, bool) {
	for i := uint32(0); i < vk.MaxMemoryTypes; i++ {
		if typeBits&(vk.MemoryPropertyFlagBits(1)<<i) != 0 {
			properties.MemoryTypes[i].Deref()
			flags := properties.MemoryTypes[i].PropertyFlags
			if flags&vk.MemoryPropertyFlags(required) != 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// AlignUp rounds size up to the next multiple of align.
// e.g. AlignUp(12, 16) == 16.
func AlignUp(size, align int) int {
	if align <= 0 || size%align == 0 {
		return size
	}
	return (size/align + 1) * align
}
