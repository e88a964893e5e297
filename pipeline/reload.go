// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"log/slog"
	"os"

	vk "github.com/goki/vulkan"
)

// statMtime returns path's modification time as an integer nanosecond
// timestamp, monotonic on any one host.
func statMtime(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.ModTime().UnixNano(), nil
}

// monitorsToCheck returns the monitors CheckForChanges should stat this
// call. Without an fsnotify watcher it is every monitor. With one, it
// narrows to paths fsnotify has flagged
// dirty since the last call, draining that flag set.
func (c *Compiler) monitorsToCheck() []*monitor {
	c.mu.Lock()
	all := c.monitors
	watching := c.watcher != nil
	c.mu.Unlock()

	if !watching {
		return all
	}

	c.dirtyMu.Lock()
	defer c.dirtyMu.Unlock()
	if len(c.dirty) == 0 {
		return nil
	}
	var out []*monitor
	for _, m := range all {
		if c.dirty[m.path] {
			out = append(out, m)
		}
	}
	c.dirty = make(map[string]bool)
	return out
}

// scanMonitors is the pure half of change detection: stat every
// monitor via the given function, unconditionally updating its recorded
// mtime, and remember the first whose mtime advanced. Factored out of
// CheckForChanges so the reload-selection logic is unit-testable without
// a live Vulkan device.
func scanMonitors(monitors []*monitor, stat func(string) (int64, error)) (changedPipeline string, changed bool) {
	for _, m := range monitors {
		mtime, err := stat(m.path)
		if err != nil {
			continue
		}
		if mtime > m.lastMtime {
			if !changed {
				changedPipeline = m.owningPipeline
			}
			changed = true
			m.lastMtime = mtime
		}
	}
	return changedPipeline, changed
}

// CheckForChanges drives hot reload: guard against re-entry, stat every
// candidate monitor (updating its recorded mtime unconditionally), and if
// any advanced, reload the first such monitor's owning pipeline. At most
// one reload happens per call; the next call catches further changes.
func (c *Compiler) CheckForChanges() error {
	c.mu.Lock()
	if c.isReloading {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	changedPipeline, changed := scanMonitors(c.monitorsToCheck(), statMtime)
	if !changed {
		return nil
	}

	c.mu.Lock()
	c.isReloading = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.isReloading = false
		c.mu.Unlock()
	}()

	return c.reloadPipeline(changedPipeline)
}

// reloadPipeline evicts and recompiles the shaders this pipeline depends
// on, rebuilds its layout and handle from the originally stored
// configuration, destroys the old handles, and swaps the new ones into
// the existing *Pipeline record in place. A failure here is logged and
// leaves the old, still-working pipeline live; hot-reload failures
// never replace a working pipeline.
func (c *Compiler) reloadPipeline(name string) error {
	c.mu.Lock()
	p, ok := c.pipelines[name]
	c.mu.Unlock()
	if !ok {
		return nil
	}

	switch p.kind {
	case KindCompute:
		return c.reloadCompute(p)
	case KindGraphics:
		return c.reloadGraphics(p)
	}
	return nil
}

func (c *Compiler) reloadCompute(p *Pipeline) error {
	cfg := p.compute.config
	c.evictShaderModule(cfg.ShaderPath)

	module, err := c.shaderModule(cfg.ShaderPath)
	if err != nil {
		slog.Error("pipeline: reload failed, keeping old pipeline", "name", p.name, "error", err)
		return err
	}
	handle, layout, err := c.buildComputePipeline(cfg, module)
	if err != nil {
		slog.Error("pipeline: reload failed, keeping old pipeline", "name", p.name, "error", err)
		return err
	}

	oldHandle, oldLayout := p.compute.handle, p.compute.layout
	p.compute.handle = handle
	p.compute.layout = layout
	vk.DestroyPipeline(c.dev, oldHandle, nil)
	vk.DestroyPipelineLayout(c.dev, oldLayout, nil)
	return nil
}

func (c *Compiler) reloadGraphics(p *Pipeline) error {
	cfg := p.graphics.config
	c.evictShaderModule(cfg.VertexShaderPath)
	c.evictShaderModule(cfg.FragmentShaderPath)

	vertModule, err := c.shaderModule(cfg.VertexShaderPath)
	if err != nil {
		slog.Error("pipeline: reload failed, keeping old pipeline", "name", p.name, "error", err)
		return err
	}
	fragModule, err := c.shaderModule(cfg.FragmentShaderPath)
	if err != nil {
		slog.Error("pipeline: reload failed, keeping old pipeline", "name", p.name, "error", err)
		return err
	}
	handle, layout, err := c.buildGraphicsPipeline(cfg, vertModule, fragModule)
	if err != nil {
		slog.Error("pipeline: reload failed, keeping old pipeline", "name", p.name, "error", err)
		return err
	}

	oldHandle, oldLayout := p.graphics.handle, p.graphics.layout
	p.graphics.handle = handle
	p.graphics.layout = layout
	vk.DestroyPipeline(c.dev, oldHandle, nil)
	vk.DestroyPipelineLayout(c.dev, oldLayout, nil)
	return nil
}
