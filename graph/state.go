// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import vk "github.com/goki/vulkan"

// handleState is the authoritative per-GPU-handle synchronization state
// used for barrier computation. Every Resource wrapping the same vk.Buffer or
// vk.Image shares one handleState, found by map lookup on the handle
// itself. The written-region list for read-elision is kept here too
// (rather than per-Resource) so that elision correctly accounts for
// writes made through any Resource wrapper of the same handle.
type handleState struct {
	AccessMask       uint64
	StageMask        uint64
	Layout           vk.ImageLayout
	QueueFamilyIndex uint32
	FirstUseInPass   bool
	FirstUseInFrame  bool
	WrittenRegions   []Region
}

func newBufferHandleState() *handleState {
	return &handleState{QueueFamilyIndex: vk.QueueFamilyIgnored}
}

func newImageHandleState() *handleState {
	return &handleState{Layout: vk.ImageLayoutUndefined, QueueFamilyIndex: vk.QueueFamilyIgnored}
}

// writtenRegionsIntersect reports whether region overlaps any region in
// the handle's recorded write history.
func writtenRegionsIntersect(written []Region, region Region) bool {
	for _, w := range written {
		if w.Intersects(region) {
			return true
		}
	}
	return false
}

// needsBarrier decides whether a usage requires a synthesized barrier.
// The three conditions are independent and combined
// with OR: any one of them forces a barrier.
func needsBarrier(st *handleState, req RequiredState, isImage bool, u ResourceUsage) bool {
	if isImage && st.FirstUseInPass {
		// Forced for images on their first use in a pass, even if the
		// required state already matches the current state: layout
		// semantics are strict.
		return true
	}
	if !u.IsWrite && u.Region != nil && writtenRegionsIntersect(st.WrittenRegions, *u.Region) {
		return true
	}
	if st.AccessMask != req.AccessMask || st.StageMask != req.StageMask || st.QueueFamilyIndex != req.QueueFamilyIndex {
		// A write to a handle no prior work has touched has nothing to
		// synchronize against: the mask change alone is not a hazard, so
		// the first write to a fresh handle stays barrier-free. Images are
		// unaffected (the first-use rule above already forced them).
		if !(u.IsWrite && st.StageMask == 0 && st.AccessMask == 0) {
			return true
		}
	}
	if isImage && st.Layout != req.Layout {
		return true
	}
	return false
}

// sourceStageAccess returns the src stage/access to record in a barrier,
// falling back to TOP_OF_PIPE/0 on first use (in the frame, or when the
// handle has never carried a nonzero stage mask).
func sourceStageAccess(st *handleState) (stage, access uint64) {
	if st.FirstUseInFrame || st.StageMask == 0 {
		return uint64(vk.PipelineStageTopOfPipeBit), 0
	}
	return st.StageMask, st.AccessMask
}

// sourceLayout returns the layout to transition from: Undefined only when
// the handle is literally still Undefined, otherwise the recorded current
// layout, which preserves image contents across the transition.
func sourceLayout(st *handleState) vk.ImageLayout {
	if st.Layout == vk.ImageLayoutUndefined {
		return vk.ImageLayoutUndefined
	}
	return st.Layout
}

// mirrorState copies the authoritative handle state back into the
// Resource's advisory CurrentState after a usage is processed, so code
// holding only the Resource can inspect where barrier synthesis left it.
func mirrorState(r *Resource, st *handleState) {
	r.CurrentState = ResourceState{
		AccessMask:       st.AccessMask,
		StageMask:        st.StageMask,
		Layout:           st.Layout,
		QueueFamilyIndex: st.QueueFamilyIndex,
		FirstUseInPass:   st.FirstUseInPass,
		FirstUseInFrame:  st.FirstUseInFrame,
	}
}

// barrierQueueFamilies maps a recorded/required queue-family pair onto the
// indices a barrier should carry. A pair that is not a genuine ownership
// transfer (equal, or either side ignored/never-owned) collapses to
// Ignored/Ignored, the form Vulkan requires for same-queue barriers.
func barrierQueueFamilies(src, dst uint32) (uint32, uint32) {
	if src == dst || src == vk.QueueFamilyIgnored || dst == vk.QueueFamilyIgnored {
		return vk.QueueFamilyIgnored, vk.QueueFamilyIgnored
	}
	return src, dst
}

// advance folds a processed usage's required state into st as the new
// current state, and records the written region for future read-elision.
// This always happens, whether or not a barrier was emitted.
func advance(st *handleState, req RequiredState, isImage bool, u ResourceUsage) {
	st.AccessMask = req.AccessMask
	st.StageMask = req.StageMask
	st.QueueFamilyIndex = req.QueueFamilyIndex
	if isImage {
		st.Layout = req.Layout
	}
	if u.IsWrite {
		region := Region{Offset: 0, Size: ^uint64(0)}
		if u.Region != nil {
			region = *u.Region
		}
		st.WrittenRegions = append(st.WrittenRegions, region)
	}
	st.FirstUseInPass = false
	st.FirstUseInFrame = false
}
