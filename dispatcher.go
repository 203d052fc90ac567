// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package flip

import (
	"context"
	"fmt"
	"strings"
)

// Dispatcher runs the flip kernel over an input/output image pair.
//
// Implementations validate the pair with Bind before running, so a
// dispatch never starts on mismatched or aliased images.
type Dispatcher interface {
	// Dispatch covers the input with workgroups and runs one invocation
	// per global id.
	Dispatch(ctx context.Context, in, out *Image) (*Report, error)

	// Name identifies the dispatcher in logs and reports.
	Name() string

	// Close releases resources held by the dispatcher.
	Close() error
}

// BoundsPolicy decides what happens to a store outside the output image.
type BoundsPolicy uint8

const (
	// BoundsDiscard drops the store and records it. This is the default.
	BoundsDiscard BoundsPolicy = iota

	// BoundsClamp redirects the store to the nearest edge texel and
	// records it.
	BoundsClamp

	// BoundsStrict drops the store, records it and fails the dispatch
	// with ErrOutOfBounds.
	BoundsStrict
)

// String returns the policy name as accepted by ParseBoundsPolicy.
func (p BoundsPolicy) String() string {
	switch p {
	case BoundsDiscard:
		return "discard"
	case BoundsClamp:
		return "clamp"
	case BoundsStrict:
		return "strict"
	default:
		return fmt.Sprintf("BoundsPolicy(%d)", uint8(p))
	}
}

// ParseBoundsPolicy parses "discard", "clamp" or "strict".
func ParseBoundsPolicy(s string) (BoundsPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "discard", "":
		return BoundsDiscard, nil
	case "clamp":
		return BoundsClamp, nil
	case "strict":
		return BoundsStrict, nil
	default:
		return BoundsDiscard, fmt.Errorf("flip: unknown bounds policy %q", s)
	}
}

// Violation records a store outside the output image.
type Violation struct {
	GlobalID [3]uint32
	Dest     [2]uint32
}

// Report summarizes a dispatch.
type Report struct {
	// Dispatcher is the name of the dispatcher that produced the report.
	Dispatcher string

	// Size is the image size.
	Size [2]uint32

	// Workgroup is the local workgroup size used.
	Workgroup WorkgroupSize

	// Groups is the dispatched workgroup count.
	Groups [3]uint32

	// Invocations is the number of invocations executed.
	Invocations uint64

	// Writes is the number of texels stored inside the output.
	Writes uint64

	// OutOfBoundsLoads counts invocations whose load missed the input.
	OutOfBoundsLoads uint64

	// OutOfBoundsStores counts invocations whose store missed the output.
	OutOfBoundsStores uint64

	// Violations lists out-of-bounds stores ordered by global id, at most
	// the configured maximum.
	Violations []Violation

	// BoundsChecked is false when the dispatcher cannot observe
	// out-of-bounds accesses (GPU backends). The counters above are then
	// derived from the dispatch geometry rather than observed.
	BoundsChecked bool
}

// String returns a one-line summary.
func (r *Report) String() string {
	return fmt.Sprintf("%s: %dx%d, %d groups of %s, %d invocations, %d writes, %d oob loads, %d oob stores",
		r.Dispatcher, r.Size[0], r.Size[1], r.Groups[0]*r.Groups[1]*r.Groups[2], r.Workgroup,
		r.Invocations, r.Writes, r.OutOfBoundsLoads, r.OutOfBoundsStores)
}

// GeometryReport derives a Report from the dispatch geometry alone, for
// dispatchers that cannot observe individual accesses. Counts are computed
// with the same destination arithmetic the kernel uses; Violations is left
// empty and BoundsChecked is false.
func GeometryReport(name string, cfg Config, size [2]uint32) *Report {
	wg := cfg.Workgroup
	groups := wg.GroupCount(size[0], size[1])
	r := &Report{
		Dispatcher: name,
		Size:       size,
		Workgroup:  wg,
		Groups:     groups,
	}

	// Each axis is independent, so in-bounds counts factor into products of
	// per-axis counts over the covered extent.
	ext := [2]uint32{groups[0] * wg.X, groups[1] * wg.Y}
	var loadIn, storeIn [2]uint64
	for axis := range 2 {
		for g := range ext[axis] {
			if g < size[axis] {
				loadIn[axis]++
			}
			var gid [3]uint32
			gid[axis] = g
			if cfg.Kernel.Destination(size, gid)[axis] < size[axis] {
				storeIn[axis]++
			}
		}
	}

	r.Invocations = uint64(ext[0]) * uint64(ext[1]) * uint64(groups[2]*wg.Z)
	r.Writes = storeIn[0] * storeIn[1] * uint64(groups[2]*wg.Z)
	r.OutOfBoundsLoads = r.Invocations - loadIn[0]*loadIn[1]*uint64(groups[2]*wg.Z)
	r.OutOfBoundsStores = r.Invocations - r.Writes
	return r
}

// StrictBoundsError returns ErrOutOfBounds when policy is BoundsStrict and
// r counts out-of-bounds stores. Dispatchers reporting from the geometry
// call it before running, so a strict dispatch that would store outside
// the output fails without touching it.
func StrictBoundsError(policy BoundsPolicy, r *Report) error {
	if policy != BoundsStrict || r.OutOfBoundsStores == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %d stores", ErrOutOfBounds, r.OutOfBoundsStores, r.Invocations)
}
