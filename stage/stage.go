// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stage implements the host-visible upload ring buffer that feeds
// the bindless heap (or images) via copy passes recorded into the render
// graph.
package stage

import (
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/cogentgpu/forge/graph"
	"github.com/cogentgpu/forge/vkutil"
)

// AlignBytes is the per-upload alignment enforced on the ring cursor,
// matching the module-wide minimum sub-allocation alignment.
const AlignBytes = 16

// pendingUpload records one queued copy, consumed by the staging pass.
type pendingUpload struct {
	stageOffset    int
	size           int
	destHeapOffset int
}

// ring is the pure cursor/epoch arithmetic behind Stage, factored out so it
// can be unit tested without a mapped buffer behind it.
type ring struct {
	mu       sync.Mutex
	capacity int
	cursor   int
	epoch    uint64
	pending  []pendingUpload
}

// reserve aligns the cursor up to AlignBytes, wraps to 0 (bumping epoch) if
// the upload would overflow, and returns the offset it reserved. Fails with
// NotEnoughSpace if size alone exceeds the ring's total capacity.
func (r *ring) reserve(size int) (offset int, epoch uint64, err error) {
	if size > r.capacity {
		return 0, 0, vkutil.New(vkutil.NotEnoughSpace, "upload exceeds stage ring capacity")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	aligned := vkutil.AlignUp(r.cursor, AlignBytes)
	if aligned+size > r.capacity {
		r.cursor = 0
		r.epoch++
		aligned = 0
	}
	r.cursor = aligned + size
	return aligned, r.epoch, nil
}

func (r *ring) currentEpoch() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epoch
}

func (r *ring) pendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// drainReset hands back the pending list and recycles the ring: pending
// cleared, cursor back to 0, epoch bumped. Outstanding stage offsets are
// invalid from here on; Allocation detects that through the epoch. An
// untouched ring (no cursor movement, nothing pending) is left alone so
// idle frames don't stale every allocation.
func (r *ring) drainReset() []pendingUpload {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) == 0 && r.cursor == 0 {
		return nil
	}
	pending := r.pending
	r.pending = nil
	r.cursor = 0
	r.epoch++
	return pending
}

func (r *ring) record(p pendingUpload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, p)
}

// Stage is a persistently-mapped, host-visible ring buffer that feeds the
// bindless heap through one-shot copy passes recorded into the graph.
type Stage struct {
	dev vk.Device
	buf vk.Buffer
	mem vk.DeviceMemory
	ptr unsafe.Pointer

	mapOnce sync.Once
	ring    ring
	res     *graph.Resource
}

// Create allocates the host-visible ring buffer. The persistent mapping is
// created lazily on the first upload, under sync.Once.
func Create(gp vkutil.GPUProperties, dev vk.Device, capacity int) (*Stage, error) {
	usage := vk.BufferUsageTransferSrcBit
	buf := vkutil.NewBuffer(dev, capacity, usage)
	mem, err := vkutil.AllocBuffMem(gp, dev, buf,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit, false)
	if err != nil {
		vkutil.DestroyBuffer(dev, &buf)
		return nil, err
	}
	return &Stage{dev: dev, buf: buf, mem: mem, ring: ring{capacity: capacity}}, nil
}

// NewRingOnly builds a Stage around a bare ring of the given capacity,
// with no backing device buffer or mapping. QueueUpload still works
// correctly (it simply skips the host-memory copy when unmapped), which
// makes the epoch/wrap bookkeeping and the Allocator built on top of it
// unit-testable without a live Vulkan device.
func NewRingOnly(capacity int) *Stage {
	return &Stage{ring: ring{capacity: capacity}}
}

// Buffer returns the underlying host-visible vk.Buffer.
func (s *Stage) Buffer() vk.Buffer { return s.buf }

// Epoch returns the ring's current generation, incremented every time the
// cursor wraps back to 0 (overflow on reserve, or a staging pass recycling
// the ring).
func (s *Stage) Epoch() uint64 { return s.ring.currentEpoch() }

// PendingCount returns the number of uploads queued but not yet drained by
// a staging pass.
func (s *Stage) PendingCount() int { return s.ring.pendingCount() }

// mapped returns the persistent host mapping, creating it on first use.
// Nil when there is no backing memory (NewRingOnly).
func (s *Stage) mapped() unsafe.Pointer {
	s.mapOnce.Do(func() {
		if s.mem != vk.NullDeviceMemory {
			s.ptr = vkutil.MapMemory(s.dev, s.mem, s.ring.capacity)
		}
	})
	return s.ptr
}

// copyIn writes bytes into the mapped ring at offset, a no-op when the
// ring has no backing memory.
func (s *Stage) copyIn(offset int, bytes []byte) {
	ptr := s.mapped()
	if ptr == nil || len(bytes) == 0 {
		return
	}
	dst := unsafe.Slice((*byte)(unsafe.Add(ptr, offset)), len(bytes))
	copy(dst, bytes)
}

// QueueUpload copies bytes into the mapped ring at the aligned current
// cursor (wrapping, and bumping the epoch, if the ring would overflow),
// and records the pending copy for the next staging pass. Returns the
// stage offset the bytes were written to and the epoch at the time of
// the write, so callers (Allocation) can detect staleness later.
func (s *Stage) QueueUpload(bytes []byte, destHeapOffset int) (stageOffset int, epoch uint64, err error) {
	offset, epoch, err := s.ring.reserve(len(bytes))
	if err != nil {
		return 0, 0, err
	}
	s.copyIn(offset, bytes)
	s.ring.record(pendingUpload{stageOffset: offset, size: len(bytes), destHeapOffset: destHeapOffset})
	return offset, epoch, nil
}

// WriteAt overwrites previously staged bytes in place at stageOffset. Only
// valid while the epoch the offset was reserved under is still current: the
// already-queued pending copy then picks up the new bytes with no second
// upload. Allocation.Write uses this for its in-epoch fast path.
func (s *Stage) WriteAt(stageOffset int, bytes []byte) {
	s.copyIn(stageOffset, bytes)
}

// StageBytes reserves ring space for bytes and copies them in without
// recording a heap copy, for callers building image uploads: the returned
// stage offset goes into a vk.BufferImageCopy consumed by an image copy
// pass rather than the buffer staging pass.
func (s *Stage) StageBytes(bytes []byte) (stageOffset int, epoch uint64, err error) {
	offset, epoch, err := s.ring.reserve(len(bytes))
	if err != nil {
		return 0, 0, err
	}
	s.copyIn(offset, bytes)
	return offset, epoch, nil
}

// CreateStagingPass returns a render-graph CommandPass that copies every
// pending upload from the stage buffer to dstHeap, then recycles the ring
// (pending cleared, cursor reset, epoch bumped — stage offsets handed out
// before this pass ran are stale afterward). Declares the stage buffer as
// a TransferRead input and dstHeap as a TransferWrite output so barrier
// synthesis orders it correctly against heap consumers.
func CreateStagingPass(name string, s *Stage, dstHeap *graph.Resource) *graph.Pass {
	transferStage := uint64(vk.PipelineStageTransferBit)
	return &graph.Pass{
		Name: name,
		Kind: graph.CommandPass,
		Inputs: []graph.ResourceUsage{{
			Resource: s.Resource(),
			Required: graph.RequiredState{AccessMask: uint64(vk.AccessTransferReadBit), StageMask: transferStage},
		}},
		Outputs: []graph.ResourceUsage{{
			Resource: dstHeap,
			Required: graph.RequiredState{AccessMask: uint64(vk.AccessTransferWriteBit), StageMask: transferStage},
			IsWrite:  true,
		}},
		Execute: func(ctx *graph.PassContext) error {
			pending := s.ring.drainReset()
			if len(pending) == 0 {
				return nil
			}
			regions := make([]vk.BufferCopy, len(pending))
			for i, p := range pending {
				regions[i] = vk.BufferCopy{
					SrcOffset: vk.DeviceSize(p.stageOffset),
					DstOffset: vk.DeviceSize(p.destHeapOffset),
					Size:      vk.DeviceSize(p.size),
				}
			}
			vk.CmdCopyBuffer(ctx.Cmd, s.buf, dstHeap.Buffer, uint32(len(regions)), regions)
			return nil
		},
	}
}

// CreateImageCopyPass is the image analog of CreateStagingPass: it copies
// the given regions (whose BufferOffsets come from StageBytes) into
// dstImage at dstLayout via cmd_copy_buffer_to_image. It does not touch
// the pending buffer-upload list; the ring space the regions occupy is
// reclaimed when the buffer staging pass next recycles the ring.
func CreateImageCopyPass(name string, s *Stage, dstImage *graph.Resource, regions []vk.BufferImageCopy, dstLayout vk.ImageLayout) *graph.Pass {
	transferStage := uint64(vk.PipelineStageTransferBit)
	return &graph.Pass{
		Name: name,
		Kind: graph.CommandPass,
		Inputs: []graph.ResourceUsage{{
			Resource: s.Resource(),
			Required: graph.RequiredState{AccessMask: uint64(vk.AccessTransferReadBit), StageMask: transferStage},
		}},
		Outputs: []graph.ResourceUsage{{
			Resource: dstImage,
			Required: graph.RequiredState{
				AccessMask: uint64(vk.AccessTransferWriteBit),
				StageMask:  transferStage,
				Layout:     dstLayout,
			},
			IsWrite: true,
		}},
		Execute: func(ctx *graph.PassContext) error {
			if len(regions) == 0 {
				return nil
			}
			vk.CmdCopyBufferToImage(ctx.Cmd, s.buf, dstImage.Image, dstLayout, uint32(len(regions)), regions)
			return nil
		},
	}
}

// Flush is the host-side flush required for non-coherent memory; the
// ring buffer is always allocated HostCoherent, so this is a documented
// no-op kept as the hook a future
// non-coherent allocation strategy would use.
func (s *Stage) Flush() {}

// Destroy unmaps and frees the ring buffer. Stage must not be used
// afterward.
func (s *Stage) Destroy() {
	if s.ptr != nil {
		vk.UnmapMemory(s.dev, s.mem)
		s.ptr = nil
	}
	vkutil.FreeBuffMem(s.dev, &s.mem)
	vkutil.DestroyBuffer(s.dev, &s.buf)
}

// Resource returns the graph.Resource wrapping s's buffer, created on
// first use. Stage owns exactly one handle for its whole lifetime, so one
// wrapper per Stage suffices; it is not registered with any particular
// Graph, since CreateStagingPass/CreateImageCopyPass reference it directly
// in their usages.
func (s *Stage) Resource() *graph.Resource {
	if s.res == nil {
		s.res = graph.NewBufferResource("stage-ring")
		var noView vk.BufferView
		s.res.BindBuffer(s.buf, noView)
	}
	return s.res
}
