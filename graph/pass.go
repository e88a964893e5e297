// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import vk "github.com/goki/vulkan"

// PassKind distinguishes passes that record into the shared command
// buffer from those that run after it has ended.
type PassKind int

const (
	// CommandPass records work into the shared command buffer, in
	// registration order, interleaved with its synthesized barriers.
	CommandPass PassKind = iota
	// NonCommandPass runs after end_command_buffer, in ascending
	// insertion-index order (submit, present).
	NonCommandPass
)

// PassContext is handed to every Pass's Execute function. It closes over
// everything a pass needs to record work or submit/present: the shared
// command buffer, the frame's sync objects, and the acquired swapchain
// image index.
type PassContext struct {
	Cmd            vk.CommandBuffer
	Queue          vk.Queue
	FrameIndex     int
	FrameCount     uint64
	ImageIndex     uint32
	ImageAvailable vk.Semaphore
	RenderFinished vk.Semaphore
	InFlightFence  vk.Fence

	// UserData is set by the pass's constructor via a closure in idiomatic
	// use (see Design Notes: passes close over typed state instead of
	// carrying a void user-data pointer); it is left here only as a
	// last-resort escape hatch for passes built by generic helpers that
	// need to recover caller-specific state without a bespoke closure.
	UserData any
}

// ExecuteFunc is a pass's recorded (or submitted/presented) work.
// Returning an error aborts only this pass's remaining effect for the
// frame; it never tears down the Graph.
type ExecuteFunc func(ctx *PassContext) error

// Pass is one unit of graph-scheduled work: its declared resource usages
// drive barrier synthesis, and its Execute function performs the actual
// recording (Command) or submission/presentation (NonCommand).
type Pass struct {
	Name    string
	Inputs  []ResourceUsage
	Outputs []ResourceUsage
	Kind    PassKind
	Execute ExecuteFunc
}

// usages returns every usage this pass declares, inputs before outputs;
// barrier synthesis relies on inputs being processed first.
func (p *Pass) usages() []ResourceUsage {
	if len(p.Inputs) == 0 {
		return p.Outputs
	}
	if len(p.Outputs) == 0 {
		return p.Inputs
	}
	all := make([]ResourceUsage, 0, len(p.Inputs)+len(p.Outputs))
	all = append(all, p.Inputs...)
	all = append(all, p.Outputs...)
	return all
}
