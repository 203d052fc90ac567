// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package gpu

import (
	"context"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/flip"
)

// copyRowAlignment is the required BytesPerRow alignment of texture to
// buffer copies.
const copyRowAlignment = 256

// alignedBytesPerRow returns the padded row size of a BGRA8 readback.
func alignedBytesPerRow(width uint32) uint32 {
	row := width * 4
	return (row + copyRowAlignment - 1) &^ (copyRowAlignment - 1)
}

// unpadRows copies rows of rowBytes from src (row pitch srcStride) into dst
// (row pitch dstStride).
func unpadRows(dst []byte, dstStride int, src []byte, srcStride, rowBytes, rows int) {
	if dstStride == srcStride && dstStride == rowBytes {
		copy(dst[:rowBytes*rows], src)
		return
	}
	for row := range rows {
		copy(dst[row*dstStride:row*dstStride+rowBytes], src[row*srcStride:row*srcStride+rowBytes])
	}
}

// waitTimeout derives the fence timeout from the ctx deadline.
func waitTimeout(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return DefaultTimeout
	}
	return max(time.Until(deadline), 0)
}

func storageAccess(a flip.Access) gputypes.StorageTextureAccess {
	switch a {
	case flip.AccessRead:
		return gputypes.StorageTextureAccessReadOnly
	case flip.AccessWrite:
		return gputypes.StorageTextureAccessWriteOnly
	default:
		return gputypes.StorageTextureAccessReadWrite
	}
}
