// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cogentgpu/forge/graph"
	"github.com/cogentgpu/forge/vkutil"
)

func TestRingReserveAlignsAndAccumulates(t *testing.T) {
	r := &ring{capacity: 4096}

	off, epoch, err := r.reserve(12)
	require.NoError(t, err)
	assert.Equal(t, 0, off)
	assert.Equal(t, uint64(0), epoch)

	off, epoch, err = r.reserve(4)
	require.NoError(t, err)
	assert.Equal(t, 16, off) // aligned up from 12 to AlignBytes (16)
	assert.Equal(t, uint64(0), epoch)
}

func TestRingWrapBumpsEpochOnce(t *testing.T) {
	r := &ring{capacity: 4096}

	// Three 2048-byte uploads in a 4096-capacity ring: the first two fit
	// (0, 2048), the third (at cursor 4096) cannot, forcing exactly one
	// wrap and one epoch bump.
	_, e0, err := r.reserve(2048)
	require.NoError(t, err)
	_, e1, err := r.reserve(2048)
	require.NoError(t, err)
	off, e2, err := r.reserve(2048)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), e0)
	assert.Equal(t, uint64(0), e1)
	assert.Equal(t, uint64(1), e2, "third upload should observe exactly one epoch bump")
	assert.Equal(t, 0, off, "wrapped upload restarts at offset 0")
}

func TestRingReserveTooLargeFails(t *testing.T) {
	r := &ring{capacity: 128}
	_, _, err := r.reserve(256)
	require.Error(t, err)
	assert.True(t, vkutil.Is(err, vkutil.NotEnoughSpace))
}

func TestRingDrainResetRecycles(t *testing.T) {
	r := &ring{capacity: 4096}
	_, _, err := r.reserve(64)
	require.NoError(t, err)
	r.record(pendingUpload{stageOffset: 0, size: 64, destHeapOffset: 128})
	_, _, err = r.reserve(32)
	require.NoError(t, err)
	r.record(pendingUpload{stageOffset: 64, size: 32, destHeapOffset: 256})

	pending := r.drainReset()
	require.Len(t, pending, 2)
	assert.Equal(t, 0, r.cursor, "cursor resets with the ring")
	assert.Equal(t, uint64(1), r.epoch, "recycling bumps the epoch")

	assert.Empty(t, r.drainReset(), "an untouched ring is left alone")
	assert.Equal(t, uint64(1), r.epoch, "no epoch bump without cursor movement")

	off, epoch, err := r.reserve(16)
	require.NoError(t, err)
	assert.Equal(t, 0, off, "the recycled ring hands out offset 0 again")
	assert.Equal(t, uint64(1), epoch)
}

// TestStagingPassShape checks the pass CreateStagingPass builds: a
// CommandPass reading the ring at the transfer stage and writing the heap
// resource, whose execute is a no-op while nothing is pending (notably it
// must not recycle an idle ring).
func TestStagingPassShape(t *testing.T) {
	s := NewRingOnly(4096)
	heapRes := graph.NewBufferResource("heap")
	p := CreateStagingPass("staging", s, heapRes)

	assert.Equal(t, graph.CommandPass, p.Kind)
	require.Len(t, p.Inputs, 1)
	require.Len(t, p.Outputs, 1)
	assert.False(t, p.Inputs[0].IsWrite)
	assert.True(t, p.Outputs[0].IsWrite)
	assert.Same(t, heapRes, p.Outputs[0].Resource)

	require.NoError(t, p.Execute(&graph.PassContext{}))
	assert.Equal(t, uint64(0), s.Epoch())
}

func TestStageBytesRecordsNoPendingCopy(t *testing.T) {
	s := NewRingOnly(4096)

	_, _, err := s.QueueUpload(make([]byte, 64), 0)
	require.NoError(t, err)
	require.Equal(t, 1, s.PendingCount())

	off, _, err := s.StageBytes(make([]byte, 128))
	require.NoError(t, err)
	assert.Equal(t, 64, off, "image bytes still consume ring space")
	assert.Equal(t, 1, s.PendingCount(), "image bytes must not queue a heap copy")
}
