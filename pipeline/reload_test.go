// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeStat(mtimes map[string]int64) func(string) (int64, error) {
	return func(path string) (int64, error) {
		return mtimes[path], nil
	}
}

// TestScanMonitorsNoChange mirrors a quiet frame: nothing advanced, so
// CheckForChanges must find nothing to reload.
func TestScanMonitorsNoChange(t *testing.T) {
	monitors := []*monitor{
		{path: "a.spv", lastMtime: 100, owningPipeline: "x"},
		{path: "b.spv", lastMtime: 100, owningPipeline: "y"},
	}
	_, changed := scanMonitors(monitors, fakeStat(map[string]int64{"a.spv": 100, "b.spv": 100}))
	assert.False(t, changed)
}

// TestScanMonitorsFirstChangedWins: touching one shader's mtime
// identifies its owning pipeline, and every monitor's recorded mtime is
// updated even though only one pipeline gets reloaded.
func TestScanMonitorsFirstChangedWins(t *testing.T) {
	monitors := []*monitor{
		{path: "a.spv", lastMtime: 100, owningPipeline: "x"},
		{path: "b.spv", lastMtime: 100, owningPipeline: "y"},
	}
	changedPipeline, changed := scanMonitors(monitors, fakeStat(map[string]int64{"a.spv": 100, "b.spv": 200}))
	require.True(t, changed)
	assert.Equal(t, "y", changedPipeline)
	assert.EqualValues(t, 200, monitors[1].lastMtime, "mtime must update even for the one pipeline actually reloaded")
}

// TestScanMonitorsUpdatesAllMtimesEvenWhenDeferring: if two files change in
// the same call, only the first owning pipeline is returned, but both
// monitors' mtimes still advance.
func TestScanMonitorsUpdatesAllMtimesEvenWhenDeferring(t *testing.T) {
	monitors := []*monitor{
		{path: "a.spv", lastMtime: 100, owningPipeline: "x"},
		{path: "b.spv", lastMtime: 100, owningPipeline: "y"},
	}
	changedPipeline, changed := scanMonitors(monitors, fakeStat(map[string]int64{"a.spv": 150, "b.spv": 200}))
	require.True(t, changed)
	assert.Equal(t, "x", changedPipeline)
	assert.EqualValues(t, 150, monitors[0].lastMtime)
	assert.EqualValues(t, 200, monitors[1].lastMtime, "deferred pipeline's monitor still updates its mtime")
}

// TestCheckForChangesGuardsReentry: while isReloading is set, a concurrent
// CheckForChanges call must return immediately without scanning.
func TestCheckForChangesGuardsReentry(t *testing.T) {
	var dev vk.Device
	c := New(dev)
	c.isReloading = true
	require.NoError(t, c.CheckForChanges())
}

// TestCheckForChangesUnchangedIsNoOp: with no mtime advanced, the pipeline
// record, its handles, and its stored config all stay untouched.
func TestCheckForChangesUnchangedIsNoOp(t *testing.T) {
	var dev vk.Device
	c := New(dev)

	cp := &ComputePipeline{
		handle: vk.Pipeline(3),
		layout: vk.PipelineLayout(4),
		config: ComputePipelineConfig{Name: "x", ShaderPath: "a.spv"},
	}
	p := &Pipeline{name: "x", kind: KindCompute, compute: cp}
	c.register(p)
	c.monitors = append(c.monitors, &monitor{path: "a.spv", lastMtime: 1 << 60, owningPipeline: "x"})

	require.NoError(t, c.CheckForChanges())
	got := c.Get("x")
	assert.Same(t, p, got)
	gotCP, ok := got.Compute()
	require.True(t, ok)
	assert.Equal(t, vk.Pipeline(3), gotCP.Handle())
	assert.Equal(t, vk.PipelineLayout(4), gotCP.Layout())
	assert.Equal(t, "a.spv", gotCP.ShaderPath())
}

// TestConfigCloneDoesNotAliasSlices ensures a stored pipeline config
// never aliases the caller's own slices.
func TestConfigCloneDoesNotAliasSlices(t *testing.T) {
	cfg := ComputePipelineConfig{
		Name:                 "x",
		ShaderPath:           "shader.spv",
		DescriptorSetLayouts: []vk.DescriptorSetLayout{1, 2},
	}
	cloned := cfg.clone()
	require.Len(t, cloned.DescriptorSetLayouts, 2)
	cfg.DescriptorSetLayouts[0] = 999
	assert.NotEqual(t, cfg.DescriptorSetLayouts[0], cloned.DescriptorSetLayouts[0],
		"mutating the caller's slice after clone must not affect the stored config")
}
