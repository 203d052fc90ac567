// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package image

import (
	"errors"
	"unsafe"
)

// Common errors for buffer operations.
var (
	// ErrInvalidDimensions is returned when width or height is non-positive.
	ErrInvalidDimensions = errors.New("image: invalid dimensions")

	// ErrInvalidFormat is returned when the format is not recognized.
	ErrInvalidFormat = errors.New("image: invalid format")

	// ErrInvalidStride is returned when stride is less than minimum required.
	ErrInvalidStride = errors.New("image: stride too small for width")

	// ErrDataTooSmall is returned when provided data is smaller than required.
	ErrDataTooSmall = errors.New("image: data buffer too small")

	// ErrOutOfBounds is returned when pixel coordinates are outside image bounds.
	ErrOutOfBounds = errors.New("image: coordinates out of bounds")
)

// Buf is a 2D pixel buffer stored row by row in a contiguous byte slice.
//
// Thread safety: concurrent reads are safe. Concurrent writes to distinct
// pixels are safe; writes to the same pixel need external synchronization.
type Buf struct {
	data   []byte
	width  int
	height int
	stride int
	format Format

	// owned is false for buffers wrapping caller memory (FromRaw).
	owned bool
}

// NewBuf creates a zeroed buffer with the given dimensions and format.
func NewBuf(width, height int, format Format) (*Buf, error) {
	if !format.IsValid() {
		return nil, ErrInvalidFormat
	}
	return NewBufWithStride(width, height, format, format.RowBytes(width))
}

// NewBufWithStride creates a zeroed buffer with a custom row stride.
// Stride must be at least format.RowBytes(width).
func NewBufWithStride(width, height int, format Format, stride int) (*Buf, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	if !format.IsValid() {
		return nil, ErrInvalidFormat
	}
	if stride < format.RowBytes(width) {
		return nil, ErrInvalidStride
	}

	return &Buf{
		data:   make([]byte, stride*height),
		width:  width,
		height: height,
		stride: stride,
		format: format,
		owned:  true,
	}, nil
}

// FromRaw wraps existing data without copying.
// The caller must keep data valid for the lifetime of the Buf.
func FromRaw(data []byte, width, height int, format Format, stride int) (*Buf, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	if !format.IsValid() {
		return nil, ErrInvalidFormat
	}
	if stride < format.RowBytes(width) {
		return nil, ErrInvalidStride
	}

	required := stride*(height-1) + format.RowBytes(width)
	if len(data) < required {
		return nil, ErrDataTooSmall
	}

	return &Buf{
		data:   data[:required],
		width:  width,
		height: height,
		stride: stride,
		format: format,
	}, nil
}

// Clone creates a deep copy of the buffer.
func (b *Buf) Clone() *Buf {
	data := make([]byte, len(b.data))
	copy(data, b.data)
	return &Buf{
		data:   data,
		width:  b.width,
		height: b.height,
		stride: b.stride,
		format: b.format,
		owned:  true,
	}
}

// Convert returns a copy of the buffer in the given format.
// Converting to Gray8 drops alpha and keeps BT.601 luminance.
func (b *Buf) Convert(format Format) (*Buf, error) {
	dst, err := NewBuf(b.width, b.height, format)
	if err != nil {
		return nil, err
	}
	for y := range b.height {
		for x := range b.width {
			r, g, bl, a := b.GetRGBA(x, y)
			_ = dst.SetRGBA(x, y, r, g, bl, a)
		}
	}
	return dst, nil
}

// Width returns the width in pixels.
func (b *Buf) Width() int { return b.width }

// Height returns the height in pixels.
func (b *Buf) Height() int { return b.height }

// Stride returns the number of bytes per row, including padding.
func (b *Buf) Stride() int { return b.stride }

// Format returns the pixel format.
func (b *Buf) Format() Format { return b.format }

// Data returns the raw pixel data.
func (b *Buf) Data() []byte { return b.data }

// RowBytes returns the pixel bytes of row y, excluding padding.
// Returns nil if y is out of bounds.
func (b *Buf) RowBytes(y int) []byte {
	if y < 0 || y >= b.height {
		return nil
	}
	start := y * b.stride
	return b.data[start : start+b.format.RowBytes(b.width)]
}

// PixelOffset returns the byte offset of pixel (x, y).
// Returns -1 if coordinates are out of bounds.
func (b *Buf) PixelOffset(x, y int) int {
	if x < 0 || x >= b.width || y < 0 || y >= b.height {
		return -1
	}
	return y*b.stride + x*b.format.BytesPerPixel()
}

// PixelBytes returns the raw bytes of pixel (x, y), or nil when out of bounds.
func (b *Buf) PixelBytes(x, y int) []byte {
	offset := b.PixelOffset(x, y)
	if offset < 0 {
		return nil
	}
	return b.data[offset : offset+b.format.BytesPerPixel()]
}

// GetRGBA returns the colour at (x, y) in 0-255 range.
// Gray8 reports r=g=b=gray, a=255. Out of bounds reads return zero.
func (b *Buf) GetRGBA(x, y int) (r, g, bl, a uint8) {
	pixel := b.PixelBytes(x, y)
	if pixel == nil {
		return 0, 0, 0, 0
	}

	switch b.format {
	case FormatBGRA8:
		return pixel[2], pixel[1], pixel[0], pixel[3]
	case FormatRGBA8:
		return pixel[0], pixel[1], pixel[2], pixel[3]
	case FormatGray8:
		return pixel[0], pixel[0], pixel[0], 255
	default:
		return 0, 0, 0, 0
	}
}

// SetRGBA sets the colour at (x, y) from 0-255 channel values.
// Gray8 stores BT.601 luminance.
func (b *Buf) SetRGBA(x, y int, r, g, bl, a uint8) error {
	offset := b.PixelOffset(x, y)
	if offset < 0 {
		return ErrOutOfBounds
	}

	switch b.format {
	case FormatBGRA8:
		b.data[offset] = bl
		b.data[offset+1] = g
		b.data[offset+2] = r
		b.data[offset+3] = a
	case FormatRGBA8:
		b.data[offset] = r
		b.data[offset+1] = g
		b.data[offset+2] = bl
		b.data[offset+3] = a
	case FormatGray8:
		b.data[offset] = byte((int(r)*299 + int(g)*587 + int(bl)*114) / 1000)
	}
	return nil
}

// Clear zeroes all pixels.
func (b *Buf) Clear() {
	clear(b.data)
}

// Fill sets every pixel to the given colour.
func (b *Buf) Fill(r, g, bl, a uint8) {
	for y := range b.height {
		for x := range b.width {
			_ = b.SetRGBA(x, y, r, g, bl, a)
		}
	}
}

// SharesMemory reports whether b and other overlap in memory.
func (b *Buf) SharesMemory(other *Buf) bool {
	if b == nil || other == nil || len(b.data) == 0 || len(other.data) == 0 {
		return false
	}
	a0 := uintptr(unsafe.Pointer(unsafe.SliceData(b.data)))
	b0 := uintptr(unsafe.Pointer(unsafe.SliceData(other.data)))
	a1 := a0 + uintptr(len(b.data))
	b1 := b0 + uintptr(len(other.data))
	return a0 < b1 && b0 < a1
}
