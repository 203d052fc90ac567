// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package flip

import "fmt"

// Access is the access mode of a storage texture binding.
type Access uint8

const (
	AccessRead Access = 1 << iota
	AccessWrite

	AccessReadWrite = AccessRead | AccessWrite
)

// String returns the WGSL spelling of the access mode.
func (a Access) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessReadWrite:
		return "read_write"
	default:
		return fmt.Sprintf("Access(%d)", uint8(a))
	}
}

// BindingSlot describes one storage texture the kernel binds.
type BindingSlot struct {
	Name    string
	Group   uint32
	Binding uint32
	Format  string // WGSL texel format
	Access  Access
}

// BindingContract is the resource interface of the flip kernel.
var BindingContract = [2]BindingSlot{
	{Name: "input_image", Group: 0, Binding: 0, Format: "bgra8unorm", Access: AccessRead},
	{Name: "output_image", Group: 0, Binding: 1, Format: "bgra8unorm", Access: AccessWrite},
}

// EntryPoint is the name of the kernel's compute entry point.
const EntryPoint = "main"

// Bindings is a validated input/output pair ready for dispatch.
type Bindings struct {
	Input  *Image
	Output *Image
}

// Bind validates an input/output pair on the host: both present, equal
// dimensions and no shared pixel memory. The kernel itself never checks.
func Bind(in, out *Image) (*Bindings, error) {
	if in == nil || out == nil {
		return nil, ErrNilImage
	}
	inSize, outSize := in.Dimensions(), out.Dimensions()
	if inSize != outSize {
		return nil, fmt.Errorf("%w: input %dx%d, output %dx%d",
			ErrDimensionMismatch, inSize[0], inSize[1], outSize[0], outSize[1])
	}
	if in.aliases(out) {
		return nil, ErrAliasedImages
	}
	return &Bindings{Input: in, Output: out}, nil
}

// Size returns the bound image dimensions.
func (b *Bindings) Size() [2]uint32 {
	return b.Input.Dimensions()
}
