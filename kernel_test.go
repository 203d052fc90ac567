// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package flip

import (
	"math"
	"testing"
)

func TestKernel_Destination(t *testing.T) {
	const w, h = 4, 3
	size := [2]uint32{w, h}

	tests := []struct {
		name   string
		kernel Kernel
		gid    [3]uint32
		want   [2]uint32
	}{
		{"edge origin", Kernel{}, [3]uint32{0, 0, 0}, [2]uint32{w, h}},
		{"edge interior", Kernel{}, [3]uint32{1, 1, 0}, [2]uint32{3, 2}},
		{"edge far corner", Kernel{}, [3]uint32{3, 2, 0}, [2]uint32{1, 1}},
		{"edge past end wraps to zero", Kernel{}, [3]uint32{4, 3, 0}, [2]uint32{0, 0}},
		{"edge overrun wraps", Kernel{}, [3]uint32{5, 0, 0}, [2]uint32{math.MaxUint32, h}},
		{"z ignored", Kernel{}, [3]uint32{1, 1, 7}, [2]uint32{3, 2}},
		{"mirror origin", Kernel{Variant: VariantMirror}, [3]uint32{0, 0, 0}, [2]uint32{3, 2}},
		{"mirror far corner", Kernel{Variant: VariantMirror}, [3]uint32{3, 2, 0}, [2]uint32{0, 0}},
		{"mirror overrun wraps", Kernel{Variant: VariantMirror}, [3]uint32{4, 0, 0}, [2]uint32{math.MaxUint32, 2}},
		{"vertical keeps x", Kernel{Axes: AxesVertical}, [3]uint32{1, 1, 0}, [2]uint32{1, 2}},
		{"horizontal keeps y", Kernel{Axes: AxesHorizontal}, [3]uint32{1, 1, 0}, [2]uint32{3, 1}},
		{"vertical mirror", Kernel{Variant: VariantMirror, Axes: AxesVertical}, [3]uint32{2, 0, 0}, [2]uint32{2, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.kernel.Destination(size, tt.gid); got != tt.want {
				t.Errorf("Destination(%v, %v) = %v, want %v", size, tt.gid, got, tt.want)
			}
		})
	}
}

// Every in-bounds load whose destination is in bounds carries its colour
// to (width-x, height-y) with alpha forced to one.
func TestKernel_ColourAndAlpha(t *testing.T) {
	const w, h = 5, 4
	in := patternImage(t, w, h)
	out, _ := NewImage(w, h)

	var k Kernel
	for y := uint32(1); y < h; y++ {
		for x := uint32(1); x < w; x++ {
			inv := k.Invoke(in, out, [3]uint32{x, y, 0})
			if !inv.Loaded || !inv.Stored {
				t.Fatalf("gid (%d,%d): loaded=%v stored=%v", x, y, inv.Loaded, inv.Stored)
			}
			if inv.Value.A() != 1 {
				t.Errorf("gid (%d,%d): alpha %v, want 1", x, y, inv.Value.A())
			}

			src, _ := in.BGRAAt(x, y)
			dst, _ := out.BGRAAt(w-x, h-y)
			if dst[0] != src[0] || dst[1] != src[1] || dst[2] != src[2] {
				t.Errorf("out(%d,%d) = %v, want rgb of in(%d,%d) = %v", w-x, h-y, dst, x, y, src)
			}
			if dst[3] != 255 {
				t.Errorf("out(%d,%d) alpha = %d, want 255", w-x, h-y, dst[3])
			}
		}
	}
}

func TestKernel_OriginOutOfBounds(t *testing.T) {
	in := patternImage(t, 4, 4)
	out, _ := NewImage(4, 4)

	inv := Kernel{}.Invoke(in, out, [3]uint32{0, 0, 0})
	if inv.Dest != [2]uint32{4, 4} {
		t.Errorf("Dest = %v, want [4 4]", inv.Dest)
	}
	if !inv.Loaded {
		t.Error("origin load should be in bounds")
	}
	if inv.Stored {
		t.Error("origin store should be out of bounds")
	}
	for i, b := range out.Pix() {
		if b != 0 {
			t.Fatalf("output byte %d = %d, want untouched", i, b)
		}
	}
}

func TestKernel_OutOfBoundsLoad(t *testing.T) {
	in := patternImage(t, 4, 4)
	out, _ := NewImage(4, 4)

	// gid.x == width loads past the input and lands on column 0.
	inv := Kernel{}.Invoke(in, out, [3]uint32{4, 2, 0})
	if inv.Loaded {
		t.Error("Loaded = true for x == width")
	}
	if !inv.Stored || inv.Dest != [2]uint32{0, 2} {
		t.Fatalf("Stored=%v Dest=%v, want true [0 2]", inv.Stored, inv.Dest)
	}
	if px, _ := out.BGRAAt(0, 2); px != [4]uint8{0, 0, 0, 255} {
		t.Errorf("out(0,2) = %v, want opaque black", px)
	}
}

// Distinct invocations never target the same in-bounds texel.
func TestKernel_DistinctDestinations(t *testing.T) {
	sizes := [][2]uint32{{1, 1}, {4, 4}, {5, 3}, {16, 9}}
	kernels := []Kernel{
		{},
		{Variant: VariantMirror},
		{Axes: AxesVertical},
		{Variant: VariantMirror, Axes: AxesHorizontal},
	}

	for _, size := range sizes {
		for _, k := range kernels {
			seen := make(map[[2]uint32][3]uint32)
			for y := range size[1] + 2 {
				for x := range size[0] + 2 {
					gid := [3]uint32{x, y, 0}
					d := k.Destination(size, gid)
					if d[0] >= size[0] || d[1] >= size[1] {
						continue
					}
					if prev, dup := seen[d]; dup {
						t.Fatalf("size %v kernel %+v: gid %v and %v both write %v", size, k, prev, gid, d)
					}
					seen[d] = gid
				}
			}
		}
	}
}

func TestParseAxes(t *testing.T) {
	tests := []struct {
		in      string
		want    Axes
		wantErr bool
	}{
		{"both", AxesBoth, false},
		{"", AxesBoth, false},
		{"Vertical", AxesVertical, false},
		{"h", AxesHorizontal, false},
		{"diagonal", AxesBoth, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAxes(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAxes(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseAxes(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestEnumStrings(t *testing.T) {
	if VariantEdge.String() != "edge" || VariantMirror.String() != "mirror" {
		t.Error("unexpected Variant strings")
	}
	if AxesBoth.String() != "both" || AxesHorizontal.String() != "horizontal" {
		t.Error("unexpected Axes strings")
	}
	if Variant(9).String() != "Variant(9)" {
		t.Errorf("Variant(9).String() = %q", Variant(9).String())
	}
}

// patternImage fills an image with distinct, position-derived texels.
func patternImage(t testing.TB, w, h uint32) *Image {
	t.Helper()
	img, err := NewImage(w, h)
	if err != nil {
		t.Fatal(err)
	}
	for y := range h {
		for x := range w {
			img.SetBGRA(x, y, [4]uint8{uint8(x*16 + 1), uint8(y*16 + 2), uint8(x + y*w), uint8(100 + x)})
		}
	}
	return img
}
