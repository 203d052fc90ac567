// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build wgpunative

// Package wgpunative registers a flip dispatcher backed by wgpu-native
// through cogentcore/webgpu. It requires cgo and the wgpu-native library,
// so it is only built with the wgpunative tag:
//
//	go build -tags wgpunative ./...
//
// Usage:
//
//	import _ "github.com/gogpu/flip/backend/wgpunative" // registers "wgpunative"
package wgpunative

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gogpu/flip"
)

// Name is the registered dispatcher name.
const Name = "wgpunative"

// DefaultTimeout bounds the readback when ctx has no deadline.
const DefaultTimeout = 5 * time.Second

// copyRowAlignment is the required BytesPerRow alignment of texture to
// buffer copies.
const copyRowAlignment = 256

// pollInterval is the pause between device polls while a readback is
// pending.
const pollInterval = 100 * time.Microsecond

var (
	// ErrClosed is returned by Dispatch after Close.
	ErrClosed = errors.New("flip/wgpunative: dispatcher closed")

	// ErrMapFailed is returned when the readback buffer cannot be mapped.
	ErrMapFailed = errors.New("flip/wgpunative: map readback buffer")
)

func init() {
	flip.Register(Name, func(opts ...flip.Option) (flip.Dispatcher, error) {
		d, err := New(opts...)
		if err != nil {
			return nil, err
		}
		return d, nil
	})
}

// Dispatcher runs the flip kernel on a wgpu-native device.
//
// Like the HAL dispatcher it cannot observe out-of-bounds stores, so
// reports are derived from the dispatch geometry and BoundsStrict fails
// before any device work when that geometry stores out of bounds.
type Dispatcher struct {
	mu sync.Mutex

	cfg flip.Config

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	module     *wgpu.ShaderModule
	bindLayout *wgpu.BindGroupLayout
	pipeLayout *wgpu.PipelineLayout
	pipeline   *wgpu.ComputePipeline

	closed bool
}

var _ flip.Dispatcher = (*Dispatcher)(nil)

// New requests an adapter and device and builds the compute pipeline.
// Unlike the HAL dispatcher there is no CPU fallback: a missing adapter is
// an error.
func New(opts ...flip.Option) (*Dispatcher, error) {
	cfg := flip.NewConfig(opts...)
	source, err := flip.ShaderSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("flip/wgpunative: %w", err)
	}

	d := &Dispatcher{cfg: cfg}
	if err := d.init(source); err != nil {
		d.release()
		return nil, fmt.Errorf("flip/wgpunative: %w", err)
	}
	return d, nil
}

func (d *Dispatcher) init(source string) error {
	d.instance = wgpu.CreateInstance(nil)

	adapter, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("request adapter: %w", err)
	}
	d.adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: "flip device"})
	if err != nil {
		return fmt.Errorf("request device: %w", err)
	}
	d.device = device
	d.queue = device.GetQueue()

	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "flip",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: source,
		},
	})
	if err != nil {
		return fmt.Errorf("compile flip shader: %w", err)
	}
	d.module = module

	entries := make([]wgpu.BindGroupLayoutEntry, len(flip.BindingContract))
	for i, slot := range flip.BindingContract {
		entries[i] = wgpu.BindGroupLayoutEntry{
			Binding:    slot.Binding,
			Visibility: wgpu.ShaderStageCompute,
			StorageTexture: wgpu.StorageTextureBindingLayout{
				Access:        storageAccess(slot.Access),
				Format:        wgpu.TextureFormatBGRA8Unorm,
				ViewDimension: wgpu.TextureViewDimension2D,
			},
		}
	}
	bindLayout, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "flip bind layout",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	d.bindLayout = bindLayout

	pipeLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "flip pipeline layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	d.pipeLayout = pipeLayout

	pipeline, err := device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  "flip Compute Pipeline",
		Layout: pipeLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: flip.EntryPoint,
		},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline: %w", err)
	}
	d.pipeline = pipeline

	flip.Logger().Info("flip/wgpunative: dispatcher initialized")
	return nil
}

// Name returns "wgpunative".
func (d *Dispatcher) Name() string { return Name }

// Close releases all device objects. Close is idempotent.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.release()
	return nil
}

func (d *Dispatcher) release() {
	if d.pipeline != nil {
		d.pipeline.Release()
		d.pipeline = nil
	}
	if d.pipeLayout != nil {
		d.pipeLayout.Release()
		d.pipeLayout = nil
	}
	if d.bindLayout != nil {
		d.bindLayout.Release()
		d.bindLayout = nil
	}
	if d.module != nil {
		d.module.Release()
		d.module = nil
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

// Dispatch uploads in and the current contents of out, runs the kernel and
// reads the output texture back into out.
func (d *Dispatcher) Dispatch(ctx context.Context, in, out *flip.Image) (*flip.Report, error) {
	b, err := flip.Bind(in, out)
	if err != nil {
		return nil, err
	}

	// wgpu-native callbacks fire on the polling thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := b.Size()
	groups := d.cfg.Workgroup.GroupCount(size[0], size[1])
	flip.Logger().Debug("flip/wgpunative: dispatch",
		"size", fmt.Sprintf("%dx%d", size[0], size[1]),
		"workgroup", d.cfg.Workgroup.String(),
		"groups", fmt.Sprintf("%dx%d", groups[0], groups[1]))

	report := flip.GeometryReport(d.Name(), d.cfg, size)
	if err := flip.StrictBoundsError(d.cfg.Bounds, report); err != nil {
		return report, fmt.Errorf("flip/wgpunative: dispatch: %w", err)
	}
	if err := d.run(ctx, b, groups); err != nil {
		return nil, fmt.Errorf("flip/wgpunative: dispatch: %w", err)
	}
	return report, nil
}

func (d *Dispatcher) run(ctx context.Context, b *flip.Bindings, groups [3]uint32) error {
	size := b.Size()
	w, h := size[0], size[1]
	extent := wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1}

	inTex, inView, err := d.createStorageTexture("flip input", extent, wgpu.TextureUsageCopyDst)
	if err != nil {
		return err
	}
	defer releaseTexture(inTex, inView)

	outTex, outView, err := d.createStorageTexture("flip output", extent,
		wgpu.TextureUsageCopyDst|wgpu.TextureUsageCopySrc)
	if err != nil {
		return err
	}
	defer releaseTexture(outTex, outView)

	d.upload(inTex, b.Input, extent)
	d.upload(outTex, b.Output, extent)

	bindGroup, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "flip Bind Group",
		Layout: d.bindLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: flip.BindingContract[0].Binding, TextureView: inView},
			{Binding: flip.BindingContract[1].Binding, TextureView: outView},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	defer bindGroup.Release()

	paddedRow := (w*4 + copyRowAlignment - 1) &^ (copyRowAlignment - 1)
	stagingSize := uint64(paddedRow) * uint64(h)
	staging, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "flip staging",
		Size:  stagingSize,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}
	defer staging.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	defer encoder.Release()

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(d.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(groups[0], groups[1], groups[2])
	pass.End()
	pass.Release()

	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{Texture: outTex, MipLevel: 0, Aspect: wgpu.TextureAspectAll},
		&wgpu.ImageCopyBuffer{
			Buffer: staging,
			Layout: wgpu.TextureDataLayout{Offset: 0, BytesPerRow: paddedRow, RowsPerImage: h},
		},
		&extent,
	)

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("finish encoding: %w", err)
	}
	defer commandBuffer.Release()
	d.queue.Submit(commandBuffer)

	var (
		status wgpu.BufferMapAsyncStatus
		mapped bool
	)
	if err := staging.MapAsync(wgpu.MapModeRead, 0, stagingSize, func(s wgpu.BufferMapAsyncStatus) {
		status = s
		mapped = true
	}); err != nil {
		return fmt.Errorf("%w: %w", ErrMapFailed, err)
	}
	poll := func() bool {
		d.device.Poll(false, nil)
		return mapped
	}
	if err := pollUntil(ctx, poll); err != nil {
		return err
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return fmt.Errorf("%w: status %v", ErrMapFailed, status)
	}
	defer staging.Unmap()

	readback := staging.GetMappedRange(0, uint(stagingSize))
	pix, stride := b.Output.Pix(), b.Output.Stride()
	rowBytes := int(w) * 4
	for row := range int(h) {
		copy(pix[row*stride:row*stride+rowBytes], readback[row*int(paddedRow):])
	}
	return nil
}

// pollUntil calls poll until it reports completion, ctx is done or
// DefaultTimeout passes when ctx has no deadline.
func pollUntil(ctx context.Context, poll func() bool) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}
	for !poll() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for readback: %w", ctx.Err())
		case <-time.After(pollInterval):
		}
	}
	return nil
}

func (d *Dispatcher) createStorageTexture(label string, extent wgpu.Extent3D, usage wgpu.TextureUsage) (*wgpu.Texture, *wgpu.TextureView, error) {
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Usage:         usage | wgpu.TextureUsageStorageBinding,
		Dimension:     wgpu.TextureDimension2D,
		Size:          extent,
		Format:        wgpu.TextureFormatBGRA8Unorm,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create %s texture: %w", label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, nil, fmt.Errorf("create %s view: %w", label, err)
	}
	return tex, view, nil
}

func releaseTexture(tex *wgpu.Texture, view *wgpu.TextureView) {
	if view != nil {
		view.Release()
	}
	if tex != nil {
		tex.Release()
	}
}

func (d *Dispatcher) upload(tex *wgpu.Texture, img *flip.Image, extent wgpu.Extent3D) {
	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		img.Pix(),
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(img.Stride()), //nolint:gosec // stride bounded by MaxImageDimension
			RowsPerImage: extent.Height,
		},
		&extent,
	)
}

func storageAccess(a flip.Access) wgpu.StorageTextureAccess {
	switch a {
	case flip.AccessRead:
		return wgpu.StorageTextureAccessReadOnly
	case flip.AccessWrite:
		return wgpu.StorageTextureAccessWriteOnly
	default:
		return wgpu.StorageTextureAccessReadWrite
	}
}
