// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package alloc binds the Heap, Stage, and render graph together and
// issues Allocations: heap-backed memory with a host-side shadow copy
// that survives staging-ring wraps.
package alloc

import (
	"sync"

	"github.com/cogentgpu/forge/graph"
	"github.com/cogentgpu/forge/heap"
	"github.com/cogentgpu/forge/stage"
)

// Allocation is one heap-backed piece of memory with a host-side shadow
// that lets writes survive a staging-ring wrap between the write and the
// frame that consumes it.
type Allocation struct {
	mu sync.Mutex

	heapOffset int
	size       int

	shadow []byte

	stageOffset int
	epoch       uint64

	a *Allocator
}

// Write copies min(len(bytes), size) into the shadow. If the allocation's
// recorded epoch still matches the stage's current epoch, the upload queued
// under that epoch is still pending, so Write also writes through the cached
// stage offset in place and no second upload is needed. If the epoch has
// advanced (the ring wrapped or was recycled by a staging pass), the old
// stage offset is stale: Write re-stages the whole shadow and records the
// new offset/epoch.
func (al *Allocation) Write(bytes []byte) (int, error) {
	al.mu.Lock()
	defer al.mu.Unlock()

	n := len(bytes)
	if n > al.size {
		n = al.size
	}
	copy(al.shadow, bytes[:n])

	if al.a.stage.Epoch() == al.epoch {
		al.a.stage.WriteAt(al.stageOffset, al.shadow)
		return n, nil
	}
	return n, al.requeueLocked()
}

// Flush ensures the current shadow contents are queued for upload this
// frame. Idempotent within a frame: while the allocation's epoch matches
// the stage's, an upload of the shadow is already pending (queued by
// Alloc, a Write that re-staged, or a prior Flush) and Flush does nothing.
func (al *Allocation) Flush() error {
	al.mu.Lock()
	defer al.mu.Unlock()
	if al.a.stage.Epoch() == al.epoch {
		return nil
	}
	return al.requeueLocked()
}

func (al *Allocation) requeueLocked() error {
	offset, epoch, err := al.a.stage.QueueUpload(al.shadow, al.heapOffset)
	if err != nil {
		return err
	}
	al.stageOffset = offset
	al.epoch = epoch
	return nil
}

// DeviceAddress returns the GPU virtual address of this allocation's
// first byte: heap.DeviceAddress() + heap_offset.
func (al *Allocation) DeviceAddress() uint64 {
	return al.a.heap.DeviceAddress() + uint64(al.heapOffset)
}

// HeapOffset returns the byte offset this allocation occupies in the heap.
func (al *Allocation) HeapOffset() int { return al.heapOffset }

// Size returns the allocation's size in bytes.
func (al *Allocation) Size() int { return al.size }

// Allocator binds a Heap, a Stage, and the render graph's staging pass
// together, handing out Allocations that round-trip through the ring
// regardless of wraps.
type Allocator struct {
	heap  *heap.Heap
	stage *stage.Stage

	mu          sync.Mutex
	allocations []*Allocation
}

// New returns an Allocator over h and s.
func New(h *heap.Heap, s *stage.Stage) *Allocator {
	return &Allocator{heap: h, stage: s}
}

// Alloc reserves size bytes in the heap, allocates a zeroed host-side
// shadow of the same size, and queues an initial zero-upload so the heap
// region is defined before any caller writes to it.
func (a *Allocator) Alloc(size, align int) (*Allocation, error) {
	heapOffset, err := a.heap.SubAlloc(size, align)
	if err != nil {
		return nil, err
	}

	shadow := make([]byte, size)
	offset, epoch, err := a.stage.QueueUpload(shadow, heapOffset)
	if err != nil {
		return nil, err
	}

	al := &Allocation{
		heapOffset:  heapOffset,
		size:        size,
		shadow:      shadow,
		stageOffset: offset,
		epoch:       epoch,
		a:           a,
	}
	a.mu.Lock()
	a.allocations = append(a.allocations, al)
	a.mu.Unlock()
	return al, nil
}

// Flush asks the stage to flush its host-side write barrier (a no-op for
// the coherent memory this module always uses, kept for API symmetry with
// Stage.Flush). The actual GPU-side upload happens via the graph's staging
// pass, built once with StagingPass and added to the graph by the caller.
func (a *Allocator) Flush() {
	a.stage.Flush()
}

// StagingPass returns the render-graph pass that drains every allocation's
// (and any other caller's) queued uploads into heapResource. It should be
// added to the graph once, upstream of anything that reads heap contents.
func (a *Allocator) StagingPass(name string, heapResource *graph.Resource) *graph.Pass {
	return stage.CreateStagingPass(name, a.stage, heapResource)
}
