// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package flip

import (
	"fmt"
	"strings"
)

// Variant selects the destination arithmetic of the kernel.
type Variant uint8

const (
	// VariantEdge computes dest = size - gid. Invocation 0 of each flipped
	// axis lands one past the last texel and the last texel is never
	// written. This is the default.
	VariantEdge Variant = iota

	// VariantMirror computes dest = size - 1 - gid, a true mirror.
	VariantMirror
)

// String returns the variant name.
func (v Variant) String() string {
	switch v {
	case VariantEdge:
		return "edge"
	case VariantMirror:
		return "mirror"
	default:
		return fmt.Sprintf("Variant(%d)", uint8(v))
	}
}

// Axes selects which image axes are flipped.
type Axes uint8

const (
	// AxesBoth flips both x and y (a 180 degree rotation). This is the default.
	AxesBoth Axes = iota

	// AxesVertical flips y only (upside down).
	AxesVertical

	// AxesHorizontal flips x only (left to right).
	AxesHorizontal
)

// String returns the axes name as accepted by ParseAxes.
func (a Axes) String() string {
	switch a {
	case AxesBoth:
		return "both"
	case AxesVertical:
		return "vertical"
	case AxesHorizontal:
		return "horizontal"
	default:
		return fmt.Sprintf("Axes(%d)", uint8(a))
	}
}

// ParseAxes parses "both", "vertical" or "horizontal".
func ParseAxes(s string) (Axes, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "both", "":
		return AxesBoth, nil
	case "vertical", "v", "y":
		return AxesVertical, nil
	case "horizontal", "h", "x":
		return AxesHorizontal, nil
	default:
		return AxesBoth, fmt.Errorf("flip: unknown axes %q", s)
	}
}

func (a Axes) flipsX() bool { return a != AxesVertical }
func (a Axes) flipsY() bool { return a != AxesHorizontal }

// Kernel is the per-invocation transform.
// The zero value is the default kernel: VariantEdge on both axes.
type Kernel struct {
	Variant Variant
	Axes    Axes
}

// Destination returns the output coordinate written by invocation gid for an
// input of the given size. The arithmetic is unsigned 32-bit and wraps; the
// result is not bounds checked. gid[2] does not participate.
func (k Kernel) Destination(size [2]uint32, gid [3]uint32) [2]uint32 {
	dest := [2]uint32{gid[0], gid[1]}
	if k.Axes.flipsX() {
		dest[0] = k.reflect(size[0], gid[0])
	}
	if k.Axes.flipsY() {
		dest[1] = k.reflect(size[1], gid[1])
	}
	return dest
}

func (k Kernel) reflect(n, g uint32) uint32 {
	if k.Variant == VariantMirror {
		return n - 1 - g
	}
	return n - g
}

// Invocation describes what a single kernel invocation did.
type Invocation struct {
	// GlobalID is the invocation's global_invocation_id.
	GlobalID [3]uint32

	// Dest is the computed store coordinate.
	Dest [2]uint32

	// Value is the stored texel, alpha forced to 1.
	Value Texel

	// Loaded is false when the load coordinate was outside the input and
	// Value came from transparent black.
	Loaded bool

	// Stored is false when Dest was outside the output and nothing was written.
	Stored bool
}

// Evaluate performs the load and destination arithmetic of invocation gid
// without storing. Loads outside in return transparent black.
func (k Kernel) Evaluate(in *Image, gid [3]uint32) Invocation {
	load, ok := in.Load(gid[0], gid[1])
	return Invocation{
		GlobalID: gid,
		Dest:     k.Destination(in.Dimensions(), gid),
		Value:    Texel{load.R(), load.G(), load.B(), 1},
		Loaded:   ok,
	}
}

// Invoke runs invocation gid against in and out. Stores outside out are
// dropped and reported through Invocation.Stored.
func (k Kernel) Invoke(in, out *Image, gid [3]uint32) Invocation {
	inv := k.Evaluate(in, gid)
	inv.Stored = out.Store(inv.Dest[0], inv.Dest[1], inv.Value)
	return inv
}
