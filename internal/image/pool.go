// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package image

import "sync"

// Pool reuses buffers of identical dimensions and format.
//
// Output images of a batch of same-sized inputs are the common case, so
// buffers are grouped by (width, height, format).
//
// Thread safety: all methods are safe for concurrent use.
type Pool struct {
	mu      sync.Mutex
	buckets map[poolKey][]*Buf
	maxSize int
}

type poolKey struct {
	width  int
	height int
	format Format
}

// NewPool creates a pool retaining at most maxPerBucket buffers per shape.
// Zero means unlimited.
func NewPool(maxPerBucket int) *Pool {
	return &Pool{
		buckets: make(map[poolKey][]*Buf),
		maxSize: maxPerBucket,
	}
}

// Get returns a zeroed buffer with the requested shape, reusing one if possible.
func (p *Pool) Get(width, height int, format Format) (*Buf, error) {
	key := poolKey{width: width, height: height, format: format}

	p.mu.Lock()
	bucket := p.buckets[key]
	if n := len(bucket); n > 0 {
		buf := bucket[n-1]
		p.buckets[key] = bucket[:n-1]
		p.mu.Unlock()

		buf.Clear()
		return buf, nil
	}
	p.mu.Unlock()

	return NewBuf(width, height, format)
}

// Put returns a buffer to the pool. Buffers wrapping caller memory,
// buffers with a custom stride and buffers beyond the bucket capacity are
// dropped.
func (p *Pool) Put(buf *Buf) {
	if buf == nil || !buf.owned || buf.stride != buf.format.RowBytes(buf.width) {
		return
	}

	key := poolKey{width: buf.width, height: buf.height, format: buf.format}

	p.mu.Lock()
	defer p.mu.Unlock()

	bucket := p.buckets[key]
	if p.maxSize > 0 && len(bucket) >= p.maxSize {
		return
	}
	p.buckets[key] = append(bucket, buf)
}

// Len returns the number of pooled buffers.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, bucket := range p.buckets {
		n += len(bucket)
	}
	return n
}
