// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	vk "github.com/goki/vulkan"
)

// monitor tracks one shader file's last-known modification time and which
// pipeline owns it.
type monitor struct {
	path           string
	lastMtime      int64
	owningPipeline string
}

// Compiler builds, caches, and hot-reloads pipelines against a single
// device. It owns the shader-module cache, the pipeline registry, and the
// monitor list check_for_changes walks each frame.
type Compiler struct {
	dev vk.Device

	mu          sync.Mutex
	modules     map[string]vk.ShaderModule
	pipelines   map[string]*Pipeline
	monitors    []*monitor
	isReloading bool

	watcher *fsnotify.Watcher
	dirtyMu sync.Mutex
	dirty   map[string]bool
}

// New returns a Compiler that creates pipelines against dev. Pipelines and
// shader modules it creates are destroyed by Close.
func New(dev vk.Device) *Compiler {
	return &Compiler{
		dev:       dev,
		modules:   make(map[string]vk.ShaderModule),
		pipelines: make(map[string]*Pipeline),
	}
}

// EnableFSNotify starts an fsnotify watcher that narrows CheckForChanges
// to only re-stat paths it has seen a write/create event for, instead of
// every monitored path. It is optional: without it, CheckForChanges falls
// back to statting every monitor on every call.
func (c *Compiler) EnableFSNotify() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.watcher = w
	c.mu.Unlock()
	c.dirtyMu.Lock()
	c.dirty = make(map[string]bool)
	c.dirtyMu.Unlock()
	go c.watchLoop(w)
	return nil
}

func (c *Compiler) watchLoop(w *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				c.dirtyMu.Lock()
				c.dirty[ev.Name] = true
				c.dirtyMu.Unlock()
			}
		case _, ok := <-w.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close destroys every cached shader module and pipeline, and stops the
// fsnotify watcher if one is running.
func (c *Compiler) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pipelines {
		c.destroyPipelineLocked(p)
	}
	c.pipelines = make(map[string]*Pipeline)
	for path, m := range c.modules {
		vk.DestroyShaderModule(c.dev, m, nil)
		delete(c.modules, path)
	}
	if c.watcher != nil {
		c.watcher.Close()
		c.watcher = nil
	}
}

func (c *Compiler) destroyPipelineLocked(p *Pipeline) {
	switch p.kind {
	case KindCompute:
		vk.DestroyPipeline(c.dev, p.compute.handle, nil)
		vk.DestroyPipelineLayout(c.dev, p.compute.layout, nil)
	case KindGraphics:
		vk.DestroyPipeline(c.dev, p.graphics.handle, nil)
		vk.DestroyPipelineLayout(c.dev, p.graphics.layout, nil)
	}
}

// register adds p to the pipeline registry under its name.
func (c *Compiler) register(p *Pipeline) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pipelines[p.name] = p
}

// Get returns the pipeline registered under name, or nil.
func (c *Compiler) Get(name string) *Pipeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pipelines[name]
}

// addMonitor registers path for hot-reload tracking under owningPipeline,
// recording its current mtime so the first CheckForChanges call doesn't
// spuriously fire on a file that was never touched post-creation. A
// missing file (can't stat) is recorded with mtime 0 and will be picked
// up once it exists and its mtime advances past 0.
func (c *Compiler) addMonitor(path, owningPipeline string) {
	mtime, _ := statMtime(path)
	c.mu.Lock()
	c.monitors = append(c.monitors, &monitor{path: path, lastMtime: mtime, owningPipeline: owningPipeline})
	c.mu.Unlock()
	if c.watcher != nil {
		c.watcher.Add(path)
	}
}
