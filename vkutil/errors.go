// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vkutil holds small helpers shared by every subsystem that talks
// directly to Vulkan: result-to-error translation, buffer/memory allocation
// primitives, and the error taxonomy the rest of the module reports through.
package vkutil

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"
)

// Kind identifies which error taxonomy bucket an error belongs to, per the
// propagation policy: most kinds recover locally (skip a barrier, log a
// pass failure); Fatal kinds abort the frame loop entirely.
type Kind int

const (
	// OutOfHeap indicates a Heap.SubAlloc request exceeded remaining capacity.
	OutOfHeap Kind = iota
	// NotEnoughSpace indicates a Stage.QueueUpload request exceeded ring capacity.
	NotEnoughSpace
	// InvalidResourceHandle indicates a pass declared a usage on a Resource
	// with no bound GPU handle.
	InvalidResourceHandle
	// TypeMismatch indicates a usage's resource kind disagrees with the
	// handle kind the barrier emitter was asked to synthesize.
	TypeMismatch
	// PipelineCreationFailed indicates vkCreateComputePipelines or
	// vkCreateGraphicsPipelines returned an error.
	PipelineCreationFailed
	// ShaderCompilationFailed indicates the external shader compiler
	// collaborator returned an error from compile().
	ShaderCompilationFailed
	// OutOfDate indicates the swapchain needs to be rebuilt.
	OutOfDate
	// SubOptimal indicates presentation succeeded but the swapchain should
	// be rebuilt at the next convenient point.
	SubOptimal
	// NotReady indicates a transient GPU condition; the frame should be
	// yielded without treating it as an error.
	NotReady
	// DeviceLost is fatal: the process should abort.
	DeviceLost
	// OutOfHostMemory is fatal: surfaced during submission, aborts the process.
	OutOfHostMemory
)

func (k Kind) String() string {
	switch k {
	case OutOfHeap:
		return "OutOfHeap"
	case NotEnoughSpace:
		return "NotEnoughSpace"
	case InvalidResourceHandle:
		return "InvalidResourceHandle"
	case TypeMismatch:
		return "TypeMismatch"
	case PipelineCreationFailed:
		return "PipelineCreationFailed"
	case ShaderCompilationFailed:
		return "ShaderCompilationFailed"
	case OutOfDate:
		return "OutOfDate"
	case SubOptimal:
		return "SubOptimal"
	case NotReady:
		return "NotReady"
	case DeviceLost:
		return "DeviceLost"
	case OutOfHostMemory:
		return "OutOfHostMemory"
	}
	return "Unknown"
}

// Error is a taxonomy-tagged error. Use errors.As to recover the Kind.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a taxonomy error.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds a taxonomy error around an underlying cause.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsFatal reports whether err is one of the kinds that the frame loop must
// treat as unrecoverable (device-lost, out-of-host-memory during submit).
func IsFatal(err error) bool {
	return Is(err, DeviceLost) || Is(err, OutOfHostMemory)
}

// NewError converts a vk.Result into a Go error, or nil on vk.Success.
func NewError(ret vk.Result) error {
	if ret >= 0 {
		return nil
	}
	switch ret {
	case vk.ErrorDeviceLost:
		return New(DeviceLost, "vulkan device lost")
	case vk.ErrorOutOfHostMemory, vk.ErrorOutOfDeviceMemory:
		return New(OutOfHostMemory, "vulkan out of memory")
	default:
		return fmt.Errorf("vulkan error: %d", int32(ret))
	}
}

// IsError reports whether ret represents a vk.Result failure code.
func IsError(ret vk.Result) bool {
	return ret < 0
}

// IfPanic panics if err is non-nil. Reserved for truly unrecoverable
// initialization failures (device/instance bring-up), never for per-pass
// or per-frame errors, which must propagate instead.
func IfPanic(err error) {
	if err != nil {
		panic(err)
	}
}
