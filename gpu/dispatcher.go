// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

// Package gpu registers a flip dispatcher that runs the kernel as a
// compute shader on gogpu/wgpu.
//
// The dispatcher compiles the WGSL produced by flip.ShaderSource, binds the
// input and output as bgra8unorm storage textures at @group(0) @binding(0)
// and @binding(1), and dispatches GroupCount workgroups. When no Vulkan
// adapter is available the dispatcher falls back to the CPU dispatcher.
//
// Usage:
//
//	import _ "github.com/gogpu/flip/gpu" // registers "gpu"
//
//	d, err := flip.NewDispatcher("gpu")
package gpu

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/flip"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Name is the registered dispatcher name.
const Name = "gpu"

// DefaultTimeout bounds the fence wait when ctx has no deadline.
const DefaultTimeout = 5 * time.Second

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("flip/gpu: dispatcher closed")

func init() {
	flip.Register(Name, func(opts ...flip.Option) (flip.Dispatcher, error) {
		d, err := New(opts...)
		if err != nil {
			return nil, err
		}
		return d, nil
	})
}

// Dispatcher runs the flip kernel on a gogpu/wgpu HAL device.
//
// Dispatches are serialized on the device queue. Out-of-bounds stores are
// discarded by the device and cannot be observed, so reports are derived
// from the dispatch geometry (Report.BoundsChecked is false). BoundsStrict
// fails before any device work when the geometry stores out of bounds;
// BoundsClamp is only honoured by the CPU fallback.
type Dispatcher struct {
	mu sync.Mutex

	cfg    flip.Config
	source string

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	adapter  string

	module     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline

	cpuFallback    *flip.CPUDispatcher
	gpuReady       bool
	externalDevice bool // true when using shared device (don't destroy on Close)
	closed         bool
}

var _ flip.Dispatcher = (*Dispatcher)(nil)

// New creates a GPU dispatcher. The kernel source is generated and checked
// against the binding contract before any device work; a GPU that fails to
// initialize is logged and the CPU fallback is used instead.
func New(opts ...flip.Option) (*Dispatcher, error) {
	d, err := newDispatcher(opts...)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.initGPU(); err != nil {
		flip.Logger().Warn("flip/gpu: GPU init failed, using CPU fallback", "err", err)
	}
	return d, nil
}

// NewWithProvider creates a GPU dispatcher on a device shared by provider.
// See SetDeviceProvider for the provider requirements.
func NewWithProvider(provider gpucontext.DeviceProvider, opts ...flip.Option) (*Dispatcher, error) {
	if provider == nil {
		return nil, errors.New("flip/gpu: nil DeviceProvider")
	}
	d, err := newDispatcher(opts...)
	if err != nil {
		return nil, err
	}
	if err := d.SetDeviceProvider(provider); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func newDispatcher(opts ...flip.Option) (*Dispatcher, error) {
	cfg := flip.NewConfig(opts...)
	source, err := flip.ShaderSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("flip/gpu: %w", err)
	}
	info, err := flip.Reflect(source)
	if err != nil {
		return nil, fmt.Errorf("flip/gpu: %w", err)
	}
	if err := flip.CheckContract(info); err != nil {
		return nil, fmt.Errorf("flip/gpu: %w", err)
	}
	return &Dispatcher{
		cfg:         cfg,
		source:      source,
		cpuFallback: flip.NewCPUDispatcher(opts...),
	}, nil
}

// Name returns "gpu".
func (d *Dispatcher) Name() string { return Name }

// Ready reports whether dispatches run on the GPU.
func (d *Dispatcher) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gpuReady
}

// Adapter returns the name of the adapter in use, or "" when the dispatcher
// runs on the CPU fallback or a shared device.
func (d *Dispatcher) Adapter() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.adapter
}

// Close releases pipelines and, unless the device is shared, the device and
// instance. Close is idempotent.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.releaseDevice()
	return d.cpuFallback.Close()
}

func (d *Dispatcher) releaseDevice() {
	d.destroyPipelines()
	if !d.externalDevice {
		if d.device != nil {
			d.device.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device = nil
	d.instance = nil
	d.queue = nil
	d.adapter = ""
	d.gpuReady = false
	d.externalDevice = false
}

// SetDeviceProvider switches the dispatcher to a shared GPU device from an
// external provider (e.g., gogpu). The provider must implement
// HalDevice() any and HalQueue() any returning hal.Device and hal.Queue.
func (d *Dispatcher) SetDeviceProvider(provider any) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("flip/gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("flip/gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("flip/gpu: provider HalQueue is not hal.Queue")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	d.releaseDevice()
	d.device = device
	d.queue = queue
	d.externalDevice = true

	if err := d.createPipelines(); err != nil {
		d.gpuReady = false
		return fmt.Errorf("flip/gpu: create pipelines with shared device: %w", err)
	}
	d.gpuReady = true
	flip.Logger().Info("flip/gpu: switched to shared GPU device")
	return nil
}

// Dispatch uploads in, runs the kernel and reads the result back into out.
// Texels of out that no invocation writes keep their previous value.
func (d *Dispatcher) Dispatch(ctx context.Context, in, out *flip.Image) (*flip.Report, error) {
	b, err := flip.Bind(in, out)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if !d.gpuReady {
		return d.cpuFallback.Dispatch(ctx, in, out)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := b.Size()
	groups := d.cfg.Workgroup.GroupCount(size[0], size[1])
	flip.Logger().Debug("flip/gpu: dispatch",
		"size", fmt.Sprintf("%dx%d", size[0], size[1]),
		"workgroup", d.cfg.Workgroup.String(),
		"groups", fmt.Sprintf("%dx%d", groups[0], groups[1]))

	report := flip.GeometryReport(d.Name(), d.cfg, size)
	if err := flip.StrictBoundsError(d.cfg.Bounds, report); err != nil {
		return report, fmt.Errorf("flip/gpu: dispatch: %w", err)
	}
	if err := d.run(ctx, b, groups); err != nil {
		return nil, fmt.Errorf("flip/gpu: dispatch: %w", err)
	}
	return report, nil
}

// run creates per-dispatch textures, encodes the compute pass and the
// readback copy, and waits for completion.
func (d *Dispatcher) run(ctx context.Context, b *flip.Bindings, groups [3]uint32) error {
	size := b.Size()
	w, h := size[0], size[1]
	extent := hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1}

	inTex, inView, err := d.createStorageTexture("flip_input", extent, gputypes.TextureUsageCopyDst)
	if err != nil {
		return err
	}
	defer d.destroyTexture(inTex, inView)

	outTex, outView, err := d.createStorageTexture("flip_output", extent,
		gputypes.TextureUsageCopyDst|gputypes.TextureUsageCopySrc)
	if err != nil {
		return err
	}
	defer d.destroyTexture(outTex, outView)

	// The output is seeded with its current contents so texels the kernel
	// does not store keep their values, as on the CPU.
	d.upload(inTex, b.Input, extent)
	d.upload(outTex, b.Output, extent)

	bindGroup, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "flip_bind", Layout: d.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: inView.NativeHandle()}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: outView.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	defer d.device.DestroyBindGroup(bindGroup)

	paddedRow := alignedBytesPerRow(w)
	stagingSize := uint64(paddedRow) * uint64(h)
	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "flip_staging", Size: stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "flip_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("flip"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "flip_pass"})
	pass.SetPipeline(d.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Dispatch(groups[0], groups[1], groups[2])
	pass.End()

	encoder.CopyTextureToBuffer(outTex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: paddedRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: outTex, MipLevel: 0},
		Size:         extent,
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := d.device.Wait(fence, 1, waitTimeout(ctx))
	if err != nil || !fenceOK {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("wait for GPU: ok=%v err=%w", fenceOK, err)
	}

	readback := make([]byte, stagingSize)
	if err := d.queue.ReadBuffer(staging, 0, readback); err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	unpadRows(b.Output.Pix(), b.Output.Stride(), readback, int(paddedRow), int(w)*4, int(h))
	return nil
}

func (d *Dispatcher) createStorageTexture(label string, extent hal.Extent3D, usage gputypes.TextureUsage) (hal.Texture, hal.TextureView, error) {
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          extent,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Usage:         usage | gputypes.TextureUsageStorageBinding,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create %s texture: %w", label, err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: label + "_view",
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, nil, fmt.Errorf("create %s view: %w", label, err)
	}
	return tex, view, nil
}

func (d *Dispatcher) destroyTexture(tex hal.Texture, view hal.TextureView) {
	if view != nil {
		d.device.DestroyTextureView(view)
	}
	if tex != nil {
		d.device.DestroyTexture(tex)
	}
}

func (d *Dispatcher) upload(tex hal.Texture, img *flip.Image, extent hal.Extent3D) {
	d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex, MipLevel: 0, Origin: hal.Origin3D{}, Aspect: gputypes.TextureAspectAll},
		img.Pix(),
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: uint32(img.Stride()), RowsPerImage: extent.Height}, //nolint:gosec // stride bounded by MaxImageDimension
		&extent,
	)
}

func (d *Dispatcher) initGPU() error {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	d.instance = instance
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	d.device = openDev.Device
	d.queue = openDev.Queue
	if err := d.createPipelines(); err != nil {
		d.device.Destroy()
		d.device = nil
		d.queue = nil
		return fmt.Errorf("create pipelines: %w", err)
	}
	d.adapter = selected.Info.Name
	d.gpuReady = true
	flip.Logger().Info("flip/gpu: GPU dispatcher initialized", "adapter", selected.Info.Name)
	return nil
}

func (d *Dispatcher) createPipelines() error {
	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "flip",
		Source: hal.ShaderSource{WGSL: d.source},
	})
	if err != nil {
		return fmt.Errorf("compile flip shader: %w", err)
	}
	d.module = module

	entries := make([]gputypes.BindGroupLayoutEntry, len(flip.BindingContract))
	for i, slot := range flip.BindingContract {
		entries[i] = gputypes.BindGroupLayoutEntry{
			Binding:    slot.Binding,
			Visibility: gputypes.ShaderStageCompute,
			StorageTexture: &gputypes.StorageTextureBindingLayout{
				Access:        storageAccess(slot.Access),
				Format:        gputypes.TextureFormatBGRA8Unorm,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		}
	}
	bindLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "flip_bind_layout",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	d.bindLayout = bindLayout

	pipeLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "flip_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{d.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	d.pipeLayout = pipeLayout

	pipeline, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "flip_pipeline", Layout: d.pipeLayout,
		Compute: hal.ComputeState{Module: d.module, EntryPoint: flip.EntryPoint},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline: %w", err)
	}
	d.pipeline = pipeline
	return nil
}

func (d *Dispatcher) destroyPipelines() {
	if d.device == nil {
		return
	}
	if d.pipeline != nil {
		d.device.DestroyComputePipeline(d.pipeline)
		d.pipeline = nil
	}
	if d.pipeLayout != nil {
		d.device.DestroyPipelineLayout(d.pipeLayout)
		d.pipeLayout = nil
	}
	if d.bindLayout != nil {
		d.device.DestroyBindGroupLayout(d.bindLayout)
		d.bindLayout = nil
	}
	if d.module != nil {
		d.device.DestroyShaderModule(d.module)
		d.module = nil
	}
}
