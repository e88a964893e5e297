// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command forgectl is a small operator CLI around the render-graph core:
// it validates a renderer's TOML configuration (including a minimum Vulkan
// API version constraint) and can run a standalone shader-directory watch
// loop that mirrors the pipeline compiler's hot-reload detection algorithm
// without requiring a live device, for smoke-testing shader directories
// before wiring them into a real renderer.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
)

// Config is the on-disk shape of a renderer's TOML configuration: the
// heap and staging-ring construction knobs, plus the
// minimum Vulkan API version the embedding application requires.
type Config struct {
	MinVulkanAPI   string `toml:"min_vulkan_api"`
	HeapSizeBytes  uint64 `toml:"heap_size_bytes"`
	StageRingBytes uint64 `toml:"stage_ring_bytes"`
	ShaderDir      string `toml:"shader_dir"`
	UseSync2       bool   `toml:"use_sync2"`
}

// defaultConfigPaths returns the ordered list of locations LoadConfig tries
// when given no explicit path: the current directory, then
// ~/.config/forge/forge.toml.
func defaultConfigPaths() ([]string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return []string{"forge.toml"}, nil
	}
	home, err = homedir.Expand(home)
	if err != nil {
		return []string{"forge.toml"}, nil
	}
	return []string{
		"forge.toml",
		filepath.Join(home, ".config", "forge", "forge.toml"),
	}, nil
}

// LoadConfig reads a Config from path, or, if path is empty, from the first
// existing entry in defaultConfigPaths.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		candidates, err := defaultConfigPaths()
		if err != nil {
			return nil, err
		}
		for _, c := range candidates {
			if _, statErr := os.Stat(c); statErr == nil {
				path = c
				break
			}
		}
		if path == "" {
			return nil, fmt.Errorf("forgectl: no config found in %v", candidates)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("forgectl: reading %s: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("forgectl: parsing %s: %w", path, err)
	}
	return &cfg, nil
}
