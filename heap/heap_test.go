// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cogentgpu/forge/vkutil"
)

func TestBumpAllocate(t *testing.T) {
	b := &bump{capacity: 1024}

	off, err := b.allocate(64, 16)
	require.NoError(t, err)
	assert.Equal(t, 0, off)

	off, err = b.allocate(10, 16)
	require.NoError(t, err)
	assert.Equal(t, 64, off)
	assert.Equal(t, 80, b.used())
}

func TestBumpAllocateAlignsUp(t *testing.T) {
	b := &bump{capacity: 1024}
	_, err := b.allocate(12, 16)
	require.NoError(t, err)
	off, err := b.allocate(4, 16)
	require.NoError(t, err)
	assert.Equal(t, 16, off)
}

func TestBumpAllocateMinAlign(t *testing.T) {
	b := &bump{capacity: 1024}
	_, err := b.allocate(1, 4)
	require.NoError(t, err)
	off, err := b.allocate(1, 4)
	require.NoError(t, err)
	// even though caller asked for align=4, MinAlign=16 governs.
	assert.Equal(t, 16, off)
}

func TestBumpAllocateOutOfHeap(t *testing.T) {
	b := &bump{capacity: 128}
	_, err := b.allocate(100, 16)
	require.NoError(t, err)
	_, err = b.allocate(64, 16)
	require.Error(t, err)
	assert.True(t, vkutil.Is(err, vkutil.OutOfHeap))
}

func TestBumpAllocateExactFit(t *testing.T) {
	b := &bump{capacity: 32}
	off, err := b.allocate(32, 16)
	require.NoError(t, err)
	assert.Equal(t, 0, off)
	_, err = b.allocate(1, 16)
	require.Error(t, err)
}
