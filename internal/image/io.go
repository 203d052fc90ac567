// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	// Register the WebP decoder with image.Decode.
	_ "golang.org/x/image/webp"
)

// I/O errors.
var (
	// ErrUnsupportedFormat is returned when a file extension has no encoder.
	ErrUnsupportedFormat = errors.New("image: unsupported format")

	// ErrEmptyData is returned when image data is empty.
	ErrEmptyData = errors.New("image: empty data")

	// ErrTooLarge is returned when an encoded image exceeds MaxDimension.
	ErrTooLarge = errors.New("image: dimensions too large")
)

// MaxDimension is the largest width or height Decode accepts. It is
// checked against the encoded header before any pixels are decoded.
const MaxDimension = 8192

// Load decodes the image file at path into a buffer of the given format.
// PNG, JPEG, BMP, TIFF and WebP inputs are recognised by content.
func Load(path string, format Format) (*Buf, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("image: open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Decode(f, format)
}

// LoadBytes decodes an encoded image held in memory.
func LoadBytes(data []byte, format Format) (*Buf, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("image: decode: %w", err)
	}
	if cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("image: decode: %w", err)
	}
	return FromStd(img, format)
}

// Decode decodes an image from r, auto-detecting the encoding.
// The header is checked against MaxDimension before decoding pixels.
func Decode(r io.Reader, format Format) (*Buf, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("image: read: %w", err)
	}
	return LoadBytes(data, format)
}

// Save encodes the buffer to path. The encoding is chosen by extension:
// .png, .jpg/.jpeg, .bmp, .tif/.tiff.
func (b *Buf) Save(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff":
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("image: create file: %w", err)
	}
	if err := b.Encode(f, ext); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Encode writes the buffer to w using the encoding named by ext.
func (b *Buf) Encode(w io.Writer, ext string) error {
	img := b.ToStd()
	var err error
	switch strings.ToLower(ext) {
	case ".png", "png":
		err = png.Encode(w, img)
	case ".jpg", ".jpeg", "jpg", "jpeg":
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	case ".bmp", "bmp":
		err = bmp.Encode(w, img)
	case ".tif", ".tiff", "tif", "tiff":
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return fmt.Errorf("image: encode %s: %w", ext, err)
	}
	return nil
}

// FromStd converts a standard library image into a buffer of the given format.
func FromStd(img image.Image, format Format) (*Buf, error) {
	bounds := img.Bounds()
	buf, err := NewBuf(bounds.Dx(), bounds.Dy(), format)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatGray8:
		gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Copy(gray, image.Point{}, img, bounds, draw.Src, nil)
		for y := range buf.height {
			copy(buf.RowBytes(y), gray.Pix[y*gray.Stride:])
		}
		return buf, nil
	default:
		nrgba, ok := img.(*image.NRGBA)
		if !ok || nrgba.Rect.Min != (image.Point{}) {
			nrgba = image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
			draw.Copy(nrgba, image.Point{}, img, bounds, draw.Src, nil)
		}
		for y := range buf.height {
			row := buf.RowBytes(y)
			src := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+len(row)]
			if format == FormatRGBA8 {
				copy(row, src)
				continue
			}
			for i := 0; i < len(row); i += 4 {
				row[i] = src[i+2]
				row[i+1] = src[i+1]
				row[i+2] = src[i]
				row[i+3] = src[i+3]
			}
		}
		return buf, nil
	}
}

// ToStd converts the buffer to a standard library image.
// Colour formats produce *image.NRGBA, Gray8 produces *image.Gray.
func (b *Buf) ToStd() image.Image {
	rect := image.Rect(0, 0, b.width, b.height)

	if b.format == FormatGray8 {
		gray := image.NewGray(rect)
		for y := range b.height {
			copy(gray.Pix[y*gray.Stride:], b.RowBytes(y))
		}
		return gray
	}

	nrgba := image.NewNRGBA(rect)
	for y := range b.height {
		row := b.RowBytes(y)
		dst := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+len(row)]
		if b.format == FormatRGBA8 {
			copy(dst, row)
			continue
		}
		for i := 0; i < len(row); i += 4 {
			dst[i] = row[i+2]
			dst[i+1] = row[i+1]
			dst[i+2] = row[i]
			dst[i+3] = row[i+3]
		}
	}
	return nrgba
}
