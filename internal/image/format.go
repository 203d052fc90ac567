// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package image provides the pixel buffers that back flip's storage images.
//
// Buffers are tightly packed rows with an optional stride. The storage
// format used by the flip kernel is BGRA8; RGBA8 and Gray8 exist for
// conversion to and from files (colour images and depth maps).
package image

// Format represents a pixel storage format.
type Format uint8

const (
	// FormatBGRA8 is 32-bit BGRA, 8-bit unsigned normalized per channel.
	// This is the storage format of the flip kernel's images.
	FormatBGRA8 Format = iota

	// FormatRGBA8 is 32-bit RGBA, 8-bit unsigned normalized per channel.
	FormatRGBA8

	// FormatGray8 is 8-bit single channel, used for depth maps.
	FormatGray8

	formatCount
)

// FormatInfo contains metadata about a pixel format.
type FormatInfo struct {
	// BytesPerPixel is the number of bytes per pixel.
	BytesPerPixel int

	// Channels is the number of channels.
	Channels int

	// HasAlpha indicates if the format has an alpha channel.
	HasAlpha bool

	// SwapRB indicates that red and blue are stored in reverse order.
	SwapRB bool
}

var formatInfoTable = [formatCount]FormatInfo{
	FormatBGRA8: {BytesPerPixel: 4, Channels: 4, HasAlpha: true, SwapRB: true},
	FormatRGBA8: {BytesPerPixel: 4, Channels: 4, HasAlpha: true},
	FormatGray8: {BytesPerPixel: 1, Channels: 1},
}

// Info returns the FormatInfo for this format.
func (f Format) Info() FormatInfo {
	if f >= formatCount {
		return FormatInfo{}
	}
	return formatInfoTable[f]
}

// BytesPerPixel returns the number of bytes per pixel for this format.
func (f Format) BytesPerPixel() int {
	return f.Info().BytesPerPixel
}

// String returns a string representation of the format.
func (f Format) String() string {
	switch f {
	case FormatBGRA8:
		return "BGRA8"
	case FormatRGBA8:
		return "RGBA8"
	case FormatGray8:
		return "Gray8"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the format is a valid known format.
func (f Format) IsValid() bool {
	return f < formatCount
}

// RowBytes calculates the number of bytes needed for a row of the given width.
func (f Format) RowBytes(width int) int {
	return width * f.BytesPerPixel()
}
