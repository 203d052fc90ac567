// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package flip

import (
	"context"
	"errors"
	"testing"
)

func TestGeometryReport_MatchesCPU(t *testing.T) {
	tests := []struct {
		name string
		w, h uint32
		opts []Option
	}{
		{"4x4 default", 4, 4, nil},
		{"4x4 groups of 4", 4, 4, []Option{WithWorkgroupSize(WorkgroupSize{4, 4, 1})}},
		{"9x5 mirror", 9, 5, []Option{WithVariant(VariantMirror)}},
		{"17x3 vertical", 17, 3, []Option{WithAxes(AxesVertical), WithWorkgroupSize(WorkgroupSize{16, 2, 1})}},
		{"7x7 horizontal mirror", 7, 7, []Option{WithAxes(AxesHorizontal), WithVariant(VariantMirror)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := patternImage(t, tt.w, tt.h)
			out, _ := NewImage(tt.w, tt.h)

			d := NewCPUDispatcher(tt.opts...)
			defer d.Close()
			observed, err := d.Dispatch(context.Background(), in, out)
			if err != nil {
				t.Fatal(err)
			}

			derived := GeometryReport("gpu", d.Config(), [2]uint32{tt.w, tt.h})
			if derived.BoundsChecked {
				t.Error("derived report claims BoundsChecked")
			}
			if derived.Groups != observed.Groups ||
				derived.Invocations != observed.Invocations ||
				derived.Writes != observed.Writes ||
				derived.OutOfBoundsLoads != observed.OutOfBoundsLoads ||
				derived.OutOfBoundsStores != observed.OutOfBoundsStores {
				t.Errorf("derived  %s\nobserved %s", derived, observed)
			}
		})
	}
}

func TestGeometryReport_FourByFour(t *testing.T) {
	r := GeometryReport("gpu", DefaultConfig(), [2]uint32{4, 4})
	if r.Invocations != 64 || r.Writes != 16 || r.OutOfBoundsStores != 48 || r.OutOfBoundsLoads != 48 {
		t.Errorf("report = %s", r)
	}
}

func TestStrictBoundsError(t *testing.T) {
	tests := []struct {
		name    string
		policy  BoundsPolicy
		opts    []Option
		wantErr bool
	}{
		{"strict edge", BoundsStrict, nil, true},
		{"strict mirror", BoundsStrict, []Option{WithVariant(VariantMirror)}, false},
		{"discard edge", BoundsDiscard, nil, false},
		{"clamp edge", BoundsClamp, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := GeometryReport("gpu", NewConfig(tt.opts...), [2]uint32{8, 8})
			err := StrictBoundsError(tt.policy, r)
			if got := errors.Is(err, ErrOutOfBounds); got != tt.wantErr {
				t.Errorf("StrictBoundsError() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
