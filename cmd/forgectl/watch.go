// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// shaderMtime stats path the normal way, falling back to a raw unix.Stat
// call when os.Stat fails in a way that suggests the usual fs layer is
// unavailable (e.g. an exotic mount under a container runtime where
// os.Stat's syscall wrapper trips on a field Go's os package doesn't
// expect). This mirrors pipeline.statMtime's contract (an integer
// nanosecond timestamp, monotonic on one host) without depending on the
// pipeline package's unexported monitor bookkeeping, so this binary can
// smoke-test a shader directory with no live Vulkan device at all.
func shaderMtime(path string) (int64, error) {
	info, err := os.Stat(path)
	if err == nil {
		return info.ModTime().UnixNano(), nil
	}

	var st unix.Stat_t
	if sErr := unix.Stat(path, &st); sErr == nil {
		return st.Mtim.Sec*int64(time.Second) + st.Mtim.Nsec, nil
	}
	return 0, err
}

// watchShaders polls every *.glsl/*.comp/*.vert/*.frag/*.spv file under dir
// once per interval, logging each file whose mtime advances since the
// previous poll. It implements the same "stat everything, remember the
// last mtime, report what advanced" shape as pipeline.scanMonitors,
// standalone, so an operator can validate a shader directory's
// change-detection behavior before pointing a real renderer at it.
func watchShaders(dir string, interval time.Duration, stop <-chan struct{}) error {
	shaderExts := map[string]bool{
		".glsl": true, ".comp": true, ".vert": true, ".frag": true, ".spv": true,
	}

	known := make(map[string]int64)
	poll := func() error {
		return filepath.Walk(dir, func(path string, fi os.FileInfo, err error) error {
			if err != nil || fi.IsDir() || !shaderExts[filepath.Ext(path)] {
				return nil
			}
			mtime, statErr := shaderMtime(path)
			if statErr != nil {
				return nil
			}
			if prev, ok := known[path]; ok && mtime > prev {
				slog.Info("forgectl: shader changed", "path", path)
			}
			known[path] = mtime
			return nil
		})
	}

	if err := poll(); err != nil {
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
			if err := poll(); err != nil {
				return err
			}
		}
	}
}
