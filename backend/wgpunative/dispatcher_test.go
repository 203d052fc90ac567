// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build wgpunative

package wgpunative

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gogpu/flip"
)

func newOrSkip(t *testing.T, opts ...flip.Option) *Dispatcher {
	t.Helper()
	d, err := New(opts...)
	if err != nil {
		t.Skipf("wgpu-native unavailable: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestRegistered(t *testing.T) {
	if !slices.Contains(flip.Available(), Name) {
		t.Errorf("Available() = %v, missing %q", flip.Available(), Name)
	}
}

func TestStorageAccess(t *testing.T) {
	if storageAccess(flip.AccessRead) != wgpu.StorageTextureAccessReadOnly {
		t.Error("read is not read-only")
	}
	if storageAccess(flip.AccessWrite) != wgpu.StorageTextureAccessWriteOnly {
		t.Error("write is not write-only")
	}
}

func TestDispatch_MatchesCPU(t *testing.T) {
	tests := []struct {
		name string
		w, h uint32
		opts []flip.Option
	}{
		{"4x4", 4, 4, nil},
		{"65x3 mirror", 65, 3, []flip.Option{flip.WithVariant(flip.VariantMirror)}},
		{"9x9 vertical", 9, 9, []flip.Option{flip.WithAxes(flip.AxesVertical)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newOrSkip(t, tt.opts...)

			in, _ := flip.NewImage(tt.w, tt.h)
			for y := range tt.h {
				for x := range tt.w {
					in.SetBGRA(x, y, [4]uint8{uint8(x), uint8(y), uint8(x ^ y), 9})
				}
			}
			gpuOut, _ := flip.NewImage(tt.w, tt.h)
			cpuOut, _ := flip.NewImage(tt.w, tt.h)

			report, err := d.Dispatch(context.Background(), in, gpuOut)
			if err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}
			if report.BoundsChecked {
				t.Error("GPU report claims BoundsChecked")
			}

			cpu := flip.NewCPUDispatcher(tt.opts...)
			defer cpu.Close()
			if _, err := cpu.Dispatch(context.Background(), in, cpuOut); err != nil {
				t.Fatal(err)
			}

			// Texels written from out-of-bounds loads are device-defined.
			k := cpu.Config().Kernel
			size := [2]uint32{tt.w, tt.h}
			for y := range tt.h {
				for x := range tt.w {
					dest := k.Destination(size, [3]uint32{x, y, 0})
					if dest[0] >= tt.w || dest[1] >= tt.h {
						continue
					}
					want, _ := cpuOut.BGRAAt(dest[0], dest[1])
					got, _ := gpuOut.BGRAAt(dest[0], dest[1])
					if got != want {
						t.Fatalf("out(%d,%d) = %v, want %v", dest[0], dest[1], got, want)
					}
				}
			}
		})
	}
}

func TestPollUntil(t *testing.T) {
	calls := 0
	err := pollUntil(context.Background(), func() bool {
		calls++
		return calls == 3
	})
	if err != nil || calls != 3 {
		t.Errorf("pollUntil() = %v after %d polls, want nil after 3", err, calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pollUntil(ctx, func() bool { return false }); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled pollUntil() error = %v, want context.Canceled", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if err := pollUntil(ctx, func() bool { return false }); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expired pollUntil() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestDispatch_Strict(t *testing.T) {
	d := newOrSkip(t, flip.WithBoundsPolicy(flip.BoundsStrict))

	in, _ := flip.NewImage(4, 4)
	out, _ := flip.NewImage(4, 4)
	out.Fill([4]uint8{1, 2, 3, 4})
	if _, err := d.Dispatch(context.Background(), in, out); !errors.Is(err, flip.ErrOutOfBounds) {
		t.Fatalf("Dispatch() error = %v, want ErrOutOfBounds", err)
	}
	if px, _ := out.BGRAAt(2, 2); px != [4]uint8{1, 2, 3, 4} {
		t.Errorf("out(2,2) = %v, strict dispatch touched the output", px)
	}
}
