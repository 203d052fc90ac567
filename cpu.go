// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package flip

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/flip/internal/parallel"
)

// CPUDispatcher runs the kernel on goroutines, one task per workgroup.
//
// Workgroups are independent and execute in unspecified order. Loads outside
// the input read transparent black; stores outside the output follow the
// configured BoundsPolicy and are reported.
//
// Thread safety: Dispatch may be called concurrently with distinct image
// pairs. Close waits for in-flight dispatches.
type CPUDispatcher struct {
	cfg Config

	// mu is held for reading for the whole of a dispatch and for writing
	// by Close.
	mu     sync.RWMutex
	closed bool

	once  sync.Once
	sched *parallel.Scheduler
}

var _ Dispatcher = (*CPUDispatcher)(nil)

// NewCPUDispatcher creates a CPU dispatcher. Worker goroutines start on the
// first dispatch.
func NewCPUDispatcher(opts ...Option) *CPUDispatcher {
	return &CPUDispatcher{cfg: NewConfig(opts...)}
}

// Name returns "cpu".
func (d *CPUDispatcher) Name() string { return DispatcherCPU }

// Config returns the dispatcher configuration.
func (d *CPUDispatcher) Config() Config { return d.cfg }

// Close waits for running dispatches and stops the worker goroutines.
// Close is idempotent.
func (d *CPUDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.sched != nil {
		d.sched.Close()
	}
	return nil
}

func (d *CPUDispatcher) scheduler() *parallel.Scheduler {
	d.once.Do(func() {
		d.sched = parallel.NewScheduler(d.cfg.Workers)
		Logger().Debug("flip: cpu scheduler started",
			"workers", d.sched.Workers(),
			"features", CPUFeatures())
	})
	return d.sched
}

// strayStore is an out-of-bounds store and the value it carried.
type strayStore struct {
	Violation
	px [4]uint8
}

// groupResult accumulates the counters of one or more workgroups.
type groupResult struct {
	writes    uint64
	oobLoads  uint64
	oobStores uint64
	strays    []strayStore
}

// Dispatch validates the pair, covers the input with GroupCount workgroups
// and runs every invocation. A cancelled ctx stops dispatch between
// workgroups and returns ctx.Err() with output partially written.
func (d *CPUDispatcher) Dispatch(ctx context.Context, in, out *Image) (*Report, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, fmt.Errorf("flip: cpu dispatch: %w", parallel.ErrClosed)
	}
	b, err := Bind(in, out)
	if err != nil {
		return nil, err
	}
	wg := d.cfg.Workgroup
	if err := wg.Validate(); err != nil {
		return nil, err
	}

	size := b.Size()
	groups := wg.GroupCount(size[0], size[1])
	total := int(groups[0]) * int(groups[1]) * int(groups[2])

	log := Logger()
	log.Debug("flip: cpu dispatch",
		"size", fmt.Sprintf("%dx%d", size[0], size[1]),
		"workgroup", wg.String(),
		"groups", total,
		"variant", d.cfg.Kernel.Variant.String(),
		"axes", d.cfg.Kernel.Axes.String(),
		"bounds", d.cfg.Bounds.String())

	var (
		mu  sync.Mutex
		sum groupResult
	)
	run := func(i int) {
		gx := uint32(i) % groups[0]
		gy := uint32(i) / groups[0]
		r := d.runGroup(b, size, [3]uint32{gx, gy, 0})

		mu.Lock()
		sum.writes += r.writes
		sum.oobLoads += r.oobLoads
		sum.oobStores += r.oobStores
		sum.strays = append(sum.strays, r.strays...)
		mu.Unlock()
	}

	if err := d.scheduler().Run(ctx, total, run); err != nil {
		return nil, fmt.Errorf("flip: cpu dispatch: %w", err)
	}

	slices.SortFunc(sum.strays, func(a, b strayStore) int {
		return compareGlobalID(a.GlobalID, b.GlobalID)
	})

	if d.cfg.Bounds == BoundsClamp {
		// Clamped stores can collide with each other and with in-bounds
		// stores, so they are applied after all groups in global id order.
		for _, s := range sum.strays {
			x := min(s.Dest[0], size[0]-1)
			y := min(s.Dest[1], size[1]-1)
			b.Output.SetBGRA(x, y, s.px)
			sum.writes++
		}
	}

	report := &Report{
		Dispatcher:        d.Name(),
		Size:              size,
		Workgroup:         wg,
		Groups:            groups,
		Invocations:       uint64(total) * uint64(wg.Invocations()),
		Writes:            sum.writes,
		OutOfBoundsLoads:  sum.oobLoads,
		OutOfBoundsStores: sum.oobStores,
		Violations:        violations(sum.strays, d.cfg.MaxViolations),
		BoundsChecked:     true,
	}

	if report.OutOfBoundsStores > 0 {
		log.Debug("flip: out-of-bounds stores",
			"count", report.OutOfBoundsStores,
			"first", report.Violations)
		if d.cfg.Bounds == BoundsStrict {
			first := sum.strays[0]
			return report, fmt.Errorf("%w: %d stores, first gid=(%d,%d,%d) dest=(%d,%d)",
				ErrOutOfBounds, report.OutOfBoundsStores,
				first.GlobalID[0], first.GlobalID[1], first.GlobalID[2], first.Dest[0], first.Dest[1])
		}
	}
	return report, nil
}

// runGroup executes all invocations of one workgroup.
//
// Loaded texels are moved as raw bytes with alpha set to 255. This is
// identical to storing vec4(load.rgb, 1.0) because unorm8 values survive the
// float round trip exactly.
func (d *CPUDispatcher) runGroup(b *Bindings, size [2]uint32, group [3]uint32) groupResult {
	var r groupResult
	wg := d.cfg.Workgroup
	k := d.cfg.Kernel

	for lz := range wg.Z {
		for ly := range wg.Y {
			for lx := range wg.X {
				gid := [3]uint32{group[0]*wg.X + lx, group[1]*wg.Y + ly, group[2]*wg.Z + lz}

				px, ok := b.Input.BGRAAt(gid[0], gid[1])
				if !ok {
					r.oobLoads++
				}
				px[3] = 0xFF

				dest := k.Destination(size, gid)
				if b.Output.SetBGRA(dest[0], dest[1], px) {
					r.writes++
					continue
				}
				r.oobStores++
				r.strays = append(r.strays, strayStore{
					Violation: Violation{GlobalID: gid, Dest: dest},
					px:        px,
				})
			}
		}
	}
	return r
}

func violations(strays []strayStore, limit int) []Violation {
	n := len(strays)
	if limit >= 0 {
		n = min(n, limit)
	}
	if n == 0 {
		return nil
	}
	out := make([]Violation, n)
	for i := range out {
		out[i] = strays[i].Violation
	}
	return out
}

// compareGlobalID orders global ids row-major: z, then y, then x.
func compareGlobalID(a, b [3]uint32) int {
	if c := cmp.Compare(a[2], b[2]); c != 0 {
		return c
	}
	if c := cmp.Compare(a[1], b[1]); c != 0 {
		return c
	}
	return cmp.Compare(a[0], b[0])
}
