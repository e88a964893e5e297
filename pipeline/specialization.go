// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"encoding/binary"

	vk "github.com/goki/vulkan"
)

// specializationData packs a Specialization into its constant-id/offset/
// size map entries and backing byte buffer, factored out of pipeline
// creation so the layout (constant id 0 = phase at offset 0, constant id
// 1 = local_size at offset 4) can be unit tested without a device.
func specializationData(s *Specialization) (data []byte, entries []vk.SpecializationMapEntry) {
	if s == nil {
		return nil, nil
	}
	size := 4
	if s.LocalSize != nil {
		size += 12
	}
	data = make([]byte, size)
	binary.LittleEndian.PutUint32(data[0:4], s.Phase)
	entries = append(entries, vk.SpecializationMapEntry{
		ConstantID: 0,
		Offset:     0,
		Size:       4,
	})
	if s.LocalSize != nil {
		binary.LittleEndian.PutUint32(data[4:8], s.LocalSize[0])
		binary.LittleEndian.PutUint32(data[8:12], s.LocalSize[1])
		binary.LittleEndian.PutUint32(data[12:16], s.LocalSize[2])
		entries = append(entries, vk.SpecializationMapEntry{
			ConstantID: 1,
			Offset:     4,
			Size:       12,
		})
	}
	return data, entries
}
