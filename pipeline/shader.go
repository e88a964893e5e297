// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"encoding/binary"
	"os"

	vk "github.com/goki/vulkan"

	"github.com/cogentgpu/forge/vkutil"
)

// readSPIRV loads path as a sequence of little-endian uint32 words, the
// form vkCreateShaderModule requires for PCode. GLSL/HLSL-to-SPIR-V
// compilation is handled by an external toolchain: paths must already name compiled
// SPIR-V binaries.
func readSPIRV(path string) ([]uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, vkutil.Wrap(vkutil.ShaderCompilationFailed, "read SPIR-V "+path, err)
	}
	if len(data)%4 != 0 {
		return nil, vkutil.New(vkutil.ShaderCompilationFailed, "SPIR-V "+path+" is not a multiple of 4 bytes")
	}
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return words, nil
}

// compileModule creates a vk.ShaderModule from the SPIR-V at path.
func compileModule(dev vk.Device, path string) (vk.ShaderModule, error) {
	code, err := readSPIRV(path)
	if err != nil {
		return vk.NullShaderModule, err
	}
	var module vk.ShaderModule
	ret := vk.CreateShaderModule(dev, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code) * 4),
		PCode:    code,
	}, nil, &module)
	if err := vkutil.NewError(ret); err != nil {
		return vk.NullShaderModule, vkutil.Wrap(vkutil.ShaderCompilationFailed, "vkCreateShaderModule "+path, err)
	}
	return module, nil
}

// shaderModule returns the cached module for path, compiling and caching
// it on first use.
func (c *Compiler) shaderModule(path string) (vk.ShaderModule, error) {
	c.mu.Lock()
	if m, ok := c.modules[path]; ok {
		c.mu.Unlock()
		return m, nil
	}
	c.mu.Unlock()

	m, err := compileModule(c.dev, path)
	if err != nil {
		return vk.NullShaderModule, err
	}
	c.mu.Lock()
	c.modules[path] = m
	c.mu.Unlock()
	return m, nil
}

// evictShaderModule destroys and forgets the cached module for path, if
// any. Hot reload uses it to force recompilation.
func (c *Compiler) evictShaderModule(path string) {
	c.mu.Lock()
	m, ok := c.modules[path]
	delete(c.modules, path)
	c.mu.Unlock()
	if ok {
		vk.DestroyShaderModule(c.dev, m, nil)
	}
}
