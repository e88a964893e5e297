// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import (
	"fmt"
	"log/slog"

	vk "github.com/goki/vulkan"

	"github.com/cogentgpu/forge/vkutil"
)

// Graph owns the list of passes (execution order = insertion order) and
// the two per-handle state maps that make barrier synthesis correct
// regardless of how many Resource wrappers alias the same handle.
type Graph struct {
	useSync2 bool

	resources []*Resource
	passes    []*Pass

	bufStates map[vk.Buffer]*handleState
	imgStates map[vk.Image]*handleState
}

// New returns a Graph configured for one of the two synchronization
// dialects. useSync2 selects VK_KHR_synchronization2-style
// per-barrier stage masks and a single vkCmdPipelineBarrier2 call;
// false selects classical vkCmdPipelineBarrier with combined stage masks.
func New(useSync2 bool) *Graph {
	return &Graph{
		useSync2:  useSync2,
		bufStates: make(map[vk.Buffer]*handleState),
		imgStates: make(map[vk.Image]*handleState),
	}
}

// AddResource registers a resource with the graph. Registration only
// affects introspection (GetResource); barrier state is keyed by the
// resource's bound handle, not by this registry, so two distinct
// Resources wrapping the same handle correctly share state whether or
// not both were ever added here.
func (g *Graph) AddResource(r *Resource) {
	g.resources = append(g.resources, r)
}

// GetResource looks up a previously added resource by name.
func (g *Graph) GetResource(name string) *Resource {
	for _, r := range g.resources {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// AddPass appends pass to the execution order. Registration is
// append-only: execution order equals insertion order. A future
// dependency-based scheduler may reorder passes, but only in ways that
// preserve the relative order of a write followed by a read of the same
// region, and keep submit/present last among non-command passes.
func (g *Graph) AddPass(p *Pass) {
	g.passes = append(g.passes, p)
}

func (g *Graph) bufferState(h vk.Buffer) *handleState {
	st, ok := g.bufStates[h]
	if !ok {
		st = newBufferHandleState()
		g.bufStates[h] = st
	}
	return st
}

func (g *Graph) imageState(h vk.Image) *handleState {
	st, ok := g.imgStates[h]
	if !ok {
		st = newImageHandleState()
		g.imgStates[h] = st
	}
	return st
}

// stateFor returns the authoritative handleState for usage's resource,
// or nil if the resource is BufferKind but was bound with an image handle
// or vice versa (a TypeMismatch, detected defensively here in addition to
// the Resource API that prevents it under normal use).
func (g *Graph) stateFor(r *Resource) (st *handleState, isImage bool, err error) {
	switch r.Kind {
	case BufferKind:
		if r.Image != vk.NullImage {
			return nil, false, vkutil.New(vkutil.TypeMismatch, fmt.Sprintf("resource %q declared BufferKind but bound an image handle", r.Name))
		}
		return g.bufferState(r.Buffer), false, nil
	case ImageKind:
		if r.Buffer != vk.NullBuffer {
			return nil, true, vkutil.New(vkutil.TypeMismatch, fmt.Sprintf("resource %q declared ImageKind but bound a buffer handle", r.Name))
		}
		return g.imageState(r.Image), true, nil
	}
	return nil, false, vkutil.New(vkutil.TypeMismatch, fmt.Sprintf("resource %q has unknown kind", r.Name))
}

// Execute drives one full frame through the graph: it marks first-frame-use
// on every touched handle, begins the command buffer, synthesizes barriers
// and records (or defers) each pass in order, ends the command buffer, and
// finally drains deferred (non-command) passes in ascending insertion-index
// order.
func (g *Graph) Execute(cmd vk.CommandBuffer, pc *PassContext) error {
	for _, p := range g.passes {
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

	ret := vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if err := vkutil.NewError(ret); err != nil {
		return err
	}

	for _, p := range g.passes {
		usages := p.usages()
		for _, u := range usages {
			if !u.Resource.HasHandle() {
				continue
			}
			if st, _, err := g.stateFor(u.Resource); err == nil {
				st.FirstUseInPass = true
			}
		}

		if err := g.insertBarriers(cmd, p, usages); err != nil {
			slog.Error("graph: aborting pass", "pass", p.Name, "error", err)
			continue
		}

		// A failing command pass is contained: log it, leave the command
		// buffer recording, and move on. Only the deferred submit/present
		// drain below may fail the frame.
		if p.Kind == CommandPass {
			if err := p.Execute(pc); err != nil {
				slog.Error("graph: pass execute failed", "pass", p.Name, "error", err)
			}
		}
	}

	if err := vkutil.NewError(vk.EndCommandBuffer(cmd)); err != nil {
		return err
	}

	for _, d := range orderedNonCommandPasses(g.passes) {
		if err := d.Execute(pc); err != nil {
			return fmt.Errorf("pass %q: %w", d.Name, err)
		}
	}
	return nil
}

// orderedNonCommandPasses returns the subset of passes that are
// NonCommandPass, in ascending insertion-index order. Execute relies on
// this being a simple stable filter: because passes are only ever
// appended (AddPass), iterating them in order and collecting the
// NonCommandPass ones already yields ascending insertion-index order, so
// no separate sort is needed. Exposed standalone so submit/present
// ordering is testable without touching the command buffer.
func orderedNonCommandPasses(passes []*Pass) []*Pass {
	var out []*Pass
	for _, p := range passes {
		if p.Kind == NonCommandPass {
			out = append(out, p)
		}
	}
	return out
}
