// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package flip

import (
	"fmt"
	"strconv"
	"strings"
)

// Device limits for workgroup sizing (WebGPU defaults).
const (
	MaxInvocationsPerWorkgroup = 256
	MaxWorkgroupSizeXY         = 256
)

// WorkgroupSize is the local size of a compute workgroup.
type WorkgroupSize struct {
	X, Y, Z uint32
}

// DefaultWorkgroupSize is 8x8x1.
var DefaultWorkgroupSize = WorkgroupSize{X: 8, Y: 8, Z: 1}

// Validate reports whether the size can be dispatched: every dimension at
// least 1, Z equal to 1 (the image is 2D), X and Y at most
// MaxWorkgroupSizeXY and X*Y*Z at most MaxInvocationsPerWorkgroup.
func (s WorkgroupSize) Validate() error {
	switch {
	case s.X == 0 || s.Y == 0 || s.Z == 0:
		return fmt.Errorf("%w: %s has a zero dimension", ErrInvalidWorkgroupSize, s)
	case s.Z != 1:
		return fmt.Errorf("%w: %s, z must be 1", ErrInvalidWorkgroupSize, s)
	case s.X > MaxWorkgroupSizeXY || s.Y > MaxWorkgroupSizeXY:
		return fmt.Errorf("%w: %s exceeds %d per dimension", ErrInvalidWorkgroupSize, s, MaxWorkgroupSizeXY)
	case uint64(s.X)*uint64(s.Y)*uint64(s.Z) > MaxInvocationsPerWorkgroup:
		return fmt.Errorf("%w: %s exceeds %d invocations", ErrInvalidWorkgroupSize, s, MaxInvocationsPerWorkgroup)
	}
	return nil
}

// Invocations returns X*Y*Z.
func (s WorkgroupSize) Invocations() uint32 {
	return s.X * s.Y * s.Z
}

// GroupCount returns the number of workgroups needed to cover a
// width x height image: ceil(width/X), ceil(height/Y), 1.
func (s WorkgroupSize) GroupCount(width, height uint32) [3]uint32 {
	return [3]uint32{ceilDiv(width, s.X), ceilDiv(height, s.Y), 1}
}

func ceilDiv(n, d uint32) uint32 {
	if d == 0 {
		return 0
	}
	return n/d + min(n%d, 1)
}

// String formats the size as "XxYxZ".
func (s WorkgroupSize) String() string {
	return fmt.Sprintf("%dx%dx%d", s.X, s.Y, s.Z)
}

// ParseWorkgroupSize parses "X", "XxY" or "XxYxZ". Missing dimensions are 1.
// The result is validated.
func ParseWorkgroupSize(s string) (WorkgroupSize, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(parts) > 3 {
		return WorkgroupSize{}, fmt.Errorf("%w: %q", ErrInvalidWorkgroupSize, s)
	}

	dims := [3]uint32{1, 1, 1}
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return WorkgroupSize{}, fmt.Errorf("%w: %q: %w", ErrInvalidWorkgroupSize, s, err)
		}
		dims[i] = uint32(v)
	}

	size := WorkgroupSize{X: dims[0], Y: dims[1], Z: dims[2]}
	if err := size.Validate(); err != nil {
		return WorkgroupSize{}, err
	}
	return size, nil
}
