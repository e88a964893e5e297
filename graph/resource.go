// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package graph implements the render-graph task scheduler: pass
// registration, execution order, and automatic barrier synthesis across
// the two Vulkan synchronization dialects.
package graph

import vk "github.com/goki/vulkan"

// Kind distinguishes the two resource shapes a Resource can wrap. The
// handle tag must match Kind; mismatches are reported as TypeMismatch
// during barrier synthesis rather than trusted silently.
type Kind int

const (
	BufferKind Kind = iota
	ImageKind
)

func (k Kind) String() string {
	if k == ImageKind {
		return "Image"
	}
	return "Buffer"
}

// Region is a byte range within a resource. A nil *Region in a
// ResourceUsage means "the whole resource".
type Region struct {
	Offset uint64
	Size   uint64
}

// Intersects reports whether r and o overlap.
func (r Region) Intersects(o Region) bool {
	return r.Offset < o.Offset+o.Size && o.Offset < r.Offset+r.Size
}

// ResourceState is the advisory, per-Resource mirror of a handle's last
// known synchronization state. It is informational only: the
// authoritative state used for barrier computation lives in the Graph's
// per-handle state maps, shared by every Resource wrapping the same
// handle.
type ResourceState struct {
	AccessMask       uint64
	StageMask        uint64
	Layout           vk.ImageLayout
	QueueFamilyIndex uint32
	FirstUseInPass   bool
	FirstUseInFrame  bool
}

// Resource is a named handle wrapping either a buffer or an image. A
// Resource may be pre-declared with no bound handle yet (e.g. the
// swapchain image Resource before the frame's image is acquired);
// barrier synthesis simply skips usages of such a Resource.
type Resource struct {
	Name string
	Kind Kind

	Buffer     vk.Buffer
	BufferView vk.BufferView

	Image     vk.Image
	ImageView vk.ImageView

	// CurrentState mirrors the authoritative Graph handle-state after the
	// most recent barrier synthesis touching this Resource's handle.
	CurrentState ResourceState
}

// NewBufferResource returns an unbound buffer Resource.
func NewBufferResource(name string) *Resource {
	return &Resource{Name: name, Kind: BufferKind}
}

// NewImageResource returns an unbound image Resource, current layout
// Undefined.
func NewImageResource(name string) *Resource {
	r := &Resource{Name: name, Kind: ImageKind}
	r.CurrentState.Layout = vk.ImageLayoutUndefined
	return r
}

// BindBuffer binds (or rebinds) the GPU handle of a BufferKind resource.
func (r *Resource) BindBuffer(buf vk.Buffer, view vk.BufferView) {
	r.Buffer = buf
	r.BufferView = view
}

// BindImage binds (or rebinds) the GPU handle of an ImageKind resource.
// Rebinding (e.g. a new swapchain image after acquire) does not reset the
// handle's tracked synchronization state here — that state lives in the
// Graph, keyed by the vk.Image handle value itself, so a genuinely new
// image handle naturally starts from Undefined while a recurring handle
// (the same swapchain image index reacquired) correctly resumes its prior
// state.
func (r *Resource) BindImage(img vk.Image, view vk.ImageView) {
	r.Image = img
	r.ImageView = view
}

// Unbind clears the resource's GPU handle, e.g. between frames for a
// Resource that is rebound on each acquire.
func (r *Resource) Unbind() {
	var noBufView vk.BufferView
	var noImgView vk.ImageView
	r.Buffer = vk.NullBuffer
	r.BufferView = noBufView
	r.Image = vk.NullImage
	r.ImageView = noImgView
}

// HasHandle reports whether this Resource currently has a bound GPU
// handle matching its Kind.
func (r *Resource) HasHandle() bool {
	if r.Kind == ImageKind {
		return r.Image != vk.NullImage
	}
	return r.Buffer != vk.NullBuffer
}

// RequiredState is the synchronization state a pass's usage of a resource
// requires: the access/stage masks, and for images, the layout and queue
// family it must be transitioned into before the pass runs.
//
// AccessMask and StageMask are carried as uint64 so the same type serves
// both dialects: Sync1's 32-bit vk.AccessFlags/vk.PipelineStageFlags and
// Sync2's 64-bit vk.AccessFlags2/vk.PipelineStageFlags2.
type RequiredState struct {
	AccessMask       uint64
	StageMask        uint64
	Layout           vk.ImageLayout // ignored for BufferKind resources
	QueueFamilyIndex uint32
}

// ResourceUsage declares how a pass touches one resource.
type ResourceUsage struct {
	Resource *Resource
	Required RequiredState
	IsWrite  bool
	// Region is the byte range touched, or nil for "the whole resource".
	Region *Region
}
