// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package flip

import (
	"fmt"

	intImage "github.com/gogpu/flip/internal/image"
)

// ImagePool reuses output images across dispatches of equally sized inputs.
//
// Thread safety: all methods are safe for concurrent use.
type ImagePool struct {
	pool *intImage.Pool
}

// NewImagePool creates a pool keeping at most maxPerSize images per
// dimensions. Zero means unlimited.
func NewImagePool(maxPerSize int) *ImagePool {
	return &ImagePool{pool: intImage.NewPool(maxPerSize)}
}

// Get returns a zeroed image of the given size.
func (p *ImagePool) Get(width, height uint32) (*Image, error) {
	if err := checkDimensions(width, height); err != nil {
		return nil, err
	}
	buf, err := p.pool.Get(int(width), int(height), intImage.FormatBGRA8)
	if err != nil {
		return nil, fmt.Errorf("flip: pooled image: %w", err)
	}
	return &Image{buf: buf}, nil
}

// Put returns img to the pool. img must not be used afterwards. Images
// wrapping caller memory (ImageFromBGRA) are not retained.
func (p *ImagePool) Put(img *Image) {
	if img == nil {
		return
	}
	p.pool.Put(img.buf)
}

// Len returns the number of pooled images.
func (p *ImagePool) Len() int { return p.pool.Len() }
