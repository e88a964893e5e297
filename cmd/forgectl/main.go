// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"
)

func usage() {
	fmt.Fprintln(os.Stderr, `forgectl — render-graph core operator CLI

Usage:
  forgectl check [-config path] -driver-version X.Y.Z
      Load a renderer config and verify the driver's Vulkan API version
      satisfies its min_vulkan_api constraint.

  forgectl watch [-config path] [-dir path] [-interval 500ms]
      Poll a shader directory and log files as their mtimes advance,
      using the same detection shape the pipeline compiler's hot reload
      uses, without needing a live device.`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "check":
		runCheck(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func runCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "path to forge.toml (defaults to ./forge.toml or ~/.config/forge/forge.toml)")
	driverVersion := fs.String("driver-version", "", "Vulkan API version reported by the driver, e.g. 1.3.275")
	fs.Parse(args)

	if *driverVersion == "" {
		fmt.Fprintln(os.Stderr, "forgectl check: -driver-version is required")
		os.Exit(2)
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		slog.Error("forgectl: config load failed", "error", err)
		os.Exit(1)
	}

	if cfg.MinVulkanAPI != "" {
		if err := checkAPIVersion(cfg.MinVulkanAPI, *driverVersion); err != nil {
			slog.Error("forgectl: version check failed", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("forgectl: config valid",
		"heap_size_bytes", cfg.HeapSizeBytes,
		"stage_ring_bytes", cfg.StageRingBytes,
		"use_sync2", cfg.UseSync2,
		"shader_dir", cfg.ShaderDir,
	)
}

func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "", "path to forge.toml (defaults to ./forge.toml or ~/.config/forge/forge.toml)")
	dir := fs.String("dir", "", "shader directory to poll (overrides the config's shader_dir)")
	interval := fs.Duration("interval", 500*time.Millisecond, "poll interval")
	fs.Parse(args)

	shaderDir := *dir
	if shaderDir == "" {
		cfg, err := LoadConfig(*configPath)
		if err != nil {
			slog.Error("forgectl: config load failed", "error", err)
			os.Exit(1)
		}
		shaderDir = cfg.ShaderDir
	}
	if shaderDir == "" {
		fmt.Fprintln(os.Stderr, "forgectl watch: no shader directory (-dir or config shader_dir)")
		os.Exit(2)
	}

	slog.Info("forgectl: watching", "dir", shaderDir, "interval", *interval)
	if err := watchShaders(shaderDir, *interval, nil); err != nil {
		slog.Error("forgectl: watch failed", "error", err)
		os.Exit(1)
	}
}
