// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package image

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"
)

func TestFromStd_BGRA8(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 4, 4))
	rgba.Set(1, 2, color.RGBA{R: 30, G: 20, B: 10, A: 255})

	buf, err := FromStd(rgba, FormatBGRA8)
	if err != nil {
		t.Fatalf("FromStd() error = %v", err)
	}
	px := buf.PixelBytes(1, 2)
	if px[0] != 10 || px[1] != 20 || px[2] != 30 || px[3] != 255 {
		t.Errorf("BGRA bytes = % x, want 0a 14 1e ff", px)
	}
}

func TestFromStd_OffsetBounds(t *testing.T) {
	nrgba := image.NewNRGBA(image.Rect(10, 10, 13, 12))
	nrgba.SetNRGBA(10, 10, color.NRGBA{R: 200, A: 100})

	buf, err := FromStd(nrgba, FormatRGBA8)
	if err != nil {
		t.Fatalf("FromStd() error = %v", err)
	}
	if buf.Width() != 3 || buf.Height() != 2 {
		t.Fatalf("size = %dx%d, want 3x2", buf.Width(), buf.Height())
	}
	if r, _, _, a := buf.GetRGBA(0, 0); r != 200 || a != 100 {
		t.Errorf("pixel (0,0) r=%d a=%d, want 200, 100", r, a)
	}
}

func TestFromStd_Gray(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 2, 2))
	src.SetGray(1, 1, color.Gray{Y: 77})

	buf, err := FromStd(src, FormatGray8)
	if err != nil {
		t.Fatalf("FromStd() error = %v", err)
	}
	if got := buf.PixelBytes(1, 1)[0]; got != 77 {
		t.Errorf("gray = %d, want 77", got)
	}

	back, ok := buf.ToStd().(*image.Gray)
	if !ok {
		t.Fatalf("ToStd() returned %T, want *image.Gray", buf.ToStd())
	}
	if back.GrayAt(1, 1).Y != 77 {
		t.Errorf("ToStd gray = %d, want 77", back.GrayAt(1, 1).Y)
	}
}

func TestEncodeDecode(t *testing.T) {
	// Lossless encodings only.
	for _, ext := range []string{".png", ".bmp", ".tiff"} {
		t.Run(ext, func(t *testing.T) {
			buf, _ := NewBuf(3, 2, FormatBGRA8)
			_ = buf.SetRGBA(2, 1, 30, 20, 10, 255)

			var w bytes.Buffer
			if err := buf.Encode(&w, ext); err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			got, err := LoadBytes(w.Bytes(), FormatBGRA8)
			if err != nil {
				t.Fatalf("LoadBytes() error = %v", err)
			}
			if r, g, b, a := got.GetRGBA(2, 1); r != 30 || g != 20 || b != 10 || a != 255 {
				t.Errorf("pixel = (%d, %d, %d, %d), want (30, 20, 10, 255)", r, g, b, a)
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")

	buf, _ := NewBuf(4, 4, FormatBGRA8)
	buf.Fill(1, 2, 3, 255)
	if err := buf.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := Load(path, FormatBGRA8)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if r, g, b, a := got.GetRGBA(3, 3); r != 1 || g != 2 || b != 3 || a != 255 {
		t.Errorf("pixel = (%d, %d, %d, %d), want (1, 2, 3, 255)", r, g, b, a)
	}
}

func TestIOErrors(t *testing.T) {
	buf, _ := NewBuf(1, 1, FormatBGRA8)

	if err := buf.Save(filepath.Join(t.TempDir(), "x.gif")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Save(.gif) error = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := LoadBytes(nil, FormatBGRA8); !errors.Is(err, ErrEmptyData) {
		t.Errorf("LoadBytes(nil) error = %v, want ErrEmptyData", err)
	}
	if _, err := LoadBytes([]byte("not an image"), FormatBGRA8); err == nil {
		t.Error("LoadBytes(garbage) succeeded")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.png"), FormatBGRA8); err == nil {
		t.Error("Load(missing) succeeded")
	}
}

// pngWithHeaderSize encodes a 1x1 PNG and rewrites its IHDR chunk to claim
// width x height.
func pngWithHeaderSize(t *testing.T, width, height uint32) []byte {
	t.Helper()
	var w bytes.Buffer
	if err := png.Encode(&w, image.NewGray(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatal(err)
	}
	data := w.Bytes()
	// Signature (8), chunk length (4), "IHDR" (4), then width and height.
	binary.BigEndian.PutUint32(data[16:], width)
	binary.BigEndian.PutUint32(data[20:], height)
	binary.BigEndian.PutUint32(data[29:], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestLoadBytes_TooLarge(t *testing.T) {
	tests := []struct {
		name          string
		width, height uint32
		wantErr       error
	}{
		{"wide", MaxDimension + 1, 1, ErrTooLarge},
		{"tall", 1, MaxDimension + 1, ErrTooLarge},
		{"both", 10000, 10000, ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := pngWithHeaderSize(t, tt.width, tt.height)
			if _, err := LoadBytes(data, FormatBGRA8); !errors.Is(err, tt.wantErr) {
				t.Errorf("LoadBytes() error = %v, want %v", err, tt.wantErr)
			}
			if _, err := Decode(bytes.NewReader(data), FormatBGRA8); !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	data := pngWithHeaderSize(t, 1, 1)
	if _, err := LoadBytes(data, FormatBGRA8); err != nil {
		t.Errorf("LoadBytes(1x1) error = %v", err)
	}
}
