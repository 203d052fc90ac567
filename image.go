// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package flip

import (
	"errors"
	"fmt"
	"image"

	intImage "github.com/gogpu/flip/internal/image"
)

// MaxImageDimension is the largest width or height accepted for a storage
// image. It matches the WebGPU default maxTextureDimension2D. Encoded
// images larger than this are rejected from their header.
const MaxImageDimension = intImage.MaxDimension

// Texel is a normalized colour as returned by textureLoad: red, green, blue
// and alpha in [0, 1].
type Texel [4]float32

// R returns the red channel.
func (t Texel) R() float32 { return t[0] }

// G returns the green channel.
func (t Texel) G() float32 { return t[1] }

// B returns the blue channel.
func (t Texel) B() float32 { return t[2] }

// A returns the alpha channel.
func (t Texel) A() float32 { return t[3] }

// Image is a 2D storage image with BGRA 8-bit unorm texels.
//
// Storage order in memory is blue, green, red, alpha. Texel values crossing
// the Load/Store boundary are always in red, green, blue, alpha order.
//
// Thread safety: concurrent Load calls are safe, and so are concurrent Store
// calls to distinct coordinates.
type Image struct {
	buf *intImage.Buf
}

// NewImage creates a zeroed (transparent black) image.
func NewImage(width, height uint32) (*Image, error) {
	if err := checkDimensions(width, height); err != nil {
		return nil, err
	}
	buf, err := intImage.NewBuf(int(width), int(height), intImage.FormatBGRA8)
	if err != nil {
		return nil, fmt.Errorf("flip: new image: %w", err)
	}
	return &Image{buf: buf}, nil
}

// ImageFromBGRA wraps existing BGRA8 pixel data without copying.
// stride is the number of bytes between rows; 0 means tightly packed.
func ImageFromBGRA(pix []byte, width, height uint32, stride int) (*Image, error) {
	if err := checkDimensions(width, height); err != nil {
		return nil, err
	}
	if stride == 0 {
		stride = int(width) * 4
	}
	buf, err := intImage.FromRaw(pix, int(width), int(height), intImage.FormatBGRA8, stride)
	if err != nil {
		return nil, fmt.Errorf("flip: wrap pixels: %w", err)
	}
	return &Image{buf: buf}, nil
}

// ImageFromRGBA copies RGBA8 pixel data, such as a framebuffer read back
// in red, green, blue, alpha order, into a new storage image.
// stride is the number of bytes between rows; 0 means tightly packed.
func ImageFromRGBA(pix []byte, width, height uint32, stride int) (*Image, error) {
	if err := checkDimensions(width, height); err != nil {
		return nil, err
	}
	if stride == 0 {
		stride = int(width) * 4
	}
	src, err := intImage.FromRaw(pix, int(width), int(height), intImage.FormatRGBA8, stride)
	if err != nil {
		return nil, fmt.Errorf("flip: wrap pixels: %w", err)
	}
	buf, err := src.Convert(intImage.FormatBGRA8)
	if err != nil {
		return nil, fmt.Errorf("flip: convert pixels: %w", err)
	}
	return &Image{buf: buf}, nil
}

// ImageFromStd converts a standard library image into a BGRA8 storage image.
func ImageFromStd(img image.Image) (*Image, error) {
	b := img.Bounds()
	if err := checkDimensions(uint32(max(b.Dx(), 0)), uint32(max(b.Dy(), 0))); err != nil {
		return nil, err
	}
	buf, err := intImage.FromStd(img, intImage.FormatBGRA8)
	if err != nil {
		return nil, fmt.Errorf("flip: convert image: %w", err)
	}
	return &Image{buf: buf}, nil
}

// LoadImage decodes an image file (PNG, JPEG, BMP, TIFF or WebP).
func LoadImage(path string) (*Image, error) {
	buf, err := intImage.Load(path, intImage.FormatBGRA8)
	if err != nil {
		return nil, fmt.Errorf("flip: load %s: %w", path, decodeError(err))
	}
	if err := checkDimensions(uint32(buf.Width()), uint32(buf.Height())); err != nil {
		return nil, fmt.Errorf("flip: load %s: %w", path, err)
	}
	return &Image{buf: buf}, nil
}

// DecodeImage decodes an encoded image held in memory.
func DecodeImage(data []byte) (*Image, error) {
	buf, err := intImage.LoadBytes(data, intImage.FormatBGRA8)
	if err != nil {
		return nil, fmt.Errorf("flip: decode: %w", decodeError(err))
	}
	if err := checkDimensions(uint32(buf.Width()), uint32(buf.Height())); err != nil {
		return nil, fmt.Errorf("flip: decode: %w", err)
	}
	return &Image{buf: buf}, nil
}

// decodeError reports oversized inputs as ErrInvalidDimensions.
func decodeError(err error) error {
	if errors.Is(err, intImage.ErrTooLarge) {
		return fmt.Errorf("%w: %w", ErrInvalidDimensions, err)
	}
	return err
}

// Save encodes the image to path; the extension selects PNG, JPEG, BMP or TIFF.
func (m *Image) Save(path string) error {
	if err := m.buf.Save(path); err != nil {
		return fmt.Errorf("flip: save %s: %w", path, err)
	}
	return nil
}

// SaveGray encodes the luminance of the image to path as an 8-bit
// grayscale file. Depth maps are written this way.
func (m *Image) SaveGray(path string) error {
	gray, err := m.buf.Convert(intImage.FormatGray8)
	if err != nil {
		return fmt.Errorf("flip: save %s: %w", path, err)
	}
	if err := gray.Save(path); err != nil {
		return fmt.Errorf("flip: save %s: %w", path, err)
	}
	return nil
}

// ToStd converts the image to a non-premultiplied *image.NRGBA.
func (m *Image) ToStd() image.Image {
	return m.buf.ToStd()
}

func checkDimensions(width, height uint32) error {
	if width == 0 || height == 0 || width > MaxImageDimension || height > MaxImageDimension {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	return nil
}

// Fill sets every texel to the BGRA value px.
func (m *Image) Fill(px [4]uint8) {
	m.buf.Fill(px[2], px[1], px[0], px[3])
}

// Dimensions returns (width, height), the value of textureDimensions.
func (m *Image) Dimensions() [2]uint32 {
	return [2]uint32{uint32(m.buf.Width()), uint32(m.buf.Height())}
}

// Width returns the width in texels.
func (m *Image) Width() uint32 { return uint32(m.buf.Width()) }

// Height returns the height in texels.
func (m *Image) Height() uint32 { return uint32(m.buf.Height()) }

// Pix returns the raw BGRA8 pixel data.
func (m *Image) Pix() []byte { return m.buf.Data() }

// Stride returns the number of bytes between rows.
func (m *Image) Stride() int { return m.buf.Stride() }

// Clone returns a deep copy of the image.
func (m *Image) Clone() *Image { return &Image{buf: m.buf.Clone()} }

// Load returns the texel at (x, y) normalized to [0, 1].
// It reports false and returns transparent black when (x, y) is outside
// the image.
func (m *Image) Load(x, y uint32) (Texel, bool) {
	px, ok := m.BGRAAt(x, y)
	if !ok {
		return Texel{}, false
	}
	return Texel{unorm8ToFloat(px[2]), unorm8ToFloat(px[1]), unorm8ToFloat(px[0]), unorm8ToFloat(px[3])}, true
}

// Store writes t at (x, y), converting each channel to unorm8 with
// clamping and round-to-nearest. It reports false and writes nothing when
// (x, y) is outside the image.
func (m *Image) Store(x, y uint32, t Texel) bool {
	return m.SetBGRA(x, y, [4]uint8{floatToUnorm8(t[2]), floatToUnorm8(t[1]), floatToUnorm8(t[0]), floatToUnorm8(t[3])})
}

// BGRAAt returns the raw bytes at (x, y) in storage order (B, G, R, A).
func (m *Image) BGRAAt(x, y uint32) ([4]uint8, bool) {
	if !m.Contains(x, y) {
		return [4]uint8{}, false
	}
	px := m.buf.PixelBytes(int(x), int(y))
	return [4]uint8{px[0], px[1], px[2], px[3]}, true
}

// SetBGRA writes raw bytes in storage order (B, G, R, A) at (x, y).
func (m *Image) SetBGRA(x, y uint32, px [4]uint8) bool {
	if !m.Contains(x, y) {
		return false
	}
	copy(m.buf.PixelBytes(int(x), int(y)), px[:])
	return true
}

// Contains reports whether (x, y) addresses a texel of the image.
func (m *Image) Contains(x, y uint32) bool {
	return x < uint32(m.buf.Width()) && y < uint32(m.buf.Height())
}

// aliases reports whether m and other share pixel memory.
func (m *Image) aliases(other *Image) bool {
	return m.buf.SharesMemory(other.buf)
}

func unorm8ToFloat(v uint8) float32 {
	return float32(v) / 255
}

func floatToUnorm8(v float32) uint8 {
	switch {
	case !(v > 0): // also catches NaN
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}
