// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package flip

import (
	"context"
	"errors"
	"slices"
	"testing"
)

type stubDispatcher struct {
	cfg Config
}

func (s *stubDispatcher) Dispatch(context.Context, *Image, *Image) (*Report, error) {
	return &Report{Dispatcher: s.Name()}, nil
}
func (s *stubDispatcher) Name() string { return "stub" }
func (s *stubDispatcher) Close() error { return nil }

func TestRegistry(t *testing.T) {
	if !slices.Contains(Available(), DispatcherCPU) {
		t.Fatalf("Available() = %v, missing %q", Available(), DispatcherCPU)
	}

	Register("stub", func(opts ...Option) (Dispatcher, error) {
		return &stubDispatcher{cfg: NewConfig(opts...)}, nil
	})
	t.Cleanup(func() { Unregister("stub") })

	d, err := NewDispatcher("stub", WithVariant(VariantMirror))
	if err != nil {
		t.Fatalf("NewDispatcher(stub) error = %v", err)
	}
	if s := d.(*stubDispatcher); s.cfg.Kernel.Variant != VariantMirror {
		t.Error("options not passed to factory")
	}

	cpu, err := NewDispatcher(DispatcherCPU, WithWorkers(2))
	if err != nil {
		t.Fatalf("NewDispatcher(cpu) error = %v", err)
	}
	defer cpu.Close()
	if cpu.Name() != DispatcherCPU {
		t.Errorf("Name() = %q", cpu.Name())
	}

	if _, err := NewDispatcher("quantum"); !errors.Is(err, ErrUnknownDispatcher) {
		t.Errorf("NewDispatcher(quantum) error = %v, want ErrUnknownDispatcher", err)
	}

	Unregister("stub")
	if slices.Contains(Available(), "stub") {
		t.Error("Unregister did not remove stub")
	}
}

func TestReportString(t *testing.T) {
	r := &Report{
		Dispatcher:        "cpu",
		Size:              [2]uint32{4, 4},
		Workgroup:         DefaultWorkgroupSize,
		Groups:            [3]uint32{1, 1, 1},
		Invocations:       64,
		Writes:            16,
		OutOfBoundsLoads:  48,
		OutOfBoundsStores: 48,
	}
	want := "cpu: 4x4, 1 groups of 8x8x1, 64 invocations, 16 writes, 48 oob loads, 48 oob stores"
	if got := r.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
