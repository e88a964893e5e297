// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// checkAPIVersion parses cfg's min_vulkan_api as a semver constraint and
// verifies it against the driver's reported Vulkan API version (already
// decoded to a dotted string by the caller, e.g. "1.3.275" from
// vk.VERSION_MAJOR/MINOR/PATCH of vkEnumerateInstanceVersion). Returns an
// error naming the mismatch if the driver is too old.
func checkAPIVersion(constraint, driverVersion string) error {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("forgectl: invalid min_vulkan_api constraint %q: %w", constraint, err)
	}
	v, err := semver.NewVersion(driverVersion)
	if err != nil {
		return fmt.Errorf("forgectl: invalid driver version %q: %w", driverVersion, err)
	}
	if !c.Check(v) {
		return fmt.Errorf("forgectl: driver Vulkan version %s does not satisfy %s", v, constraint)
	}
	return nil
}
