// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package flip implements an image flip compute kernel for BGRA8 storage
// images.
//
// # Overview
//
// The kernel reads an input storage image and writes every texel to the
// opposite corner of an output image of identical size, forcing alpha to
// fully opaque. Each invocation handles one texel:
//
//	size := textureDimensions(input)
//	load := textureLoad(input, gid.xy)
//	dest := size - gid.xy
//	textureStore(output, dest, vec4(load.rgb, 1.0))
//
// The destination arithmetic is unsigned and wraps modulo 2^32. Invocation
// (0, 0) therefore targets (width, height), one past the last texel in both
// dimensions; the last column and row of the output are never written by
// the default kernel. [VariantMirror] selects the corrected mapping
// size - 1 - gid and must be requested explicitly.
//
// # Quick Start
//
//	in, _ := flip.NewImage(640, 480)
//	out, _ := flip.NewImage(640, 480)
//
//	d := flip.NewCPUDispatcher()
//	defer d.Close()
//
//	report, err := d.Dispatch(ctx, in, out)
//
// # Dispatchers
//
// [CPUDispatcher] emulates the compute dispatch on goroutines and reports
// out-of-bounds accesses. GPU dispatchers live in sub-packages and register
// themselves on import:
//
//	import _ "github.com/gogpu/flip/gpu"                // Pure Go, wgpu HAL
//	import _ "github.com/gogpu/flip/backend/wgpunative" // wgpu-native, build tag wgpunative
//
// [NewDispatcher] creates a registered dispatcher by name.
//
// # Shaders
//
// The WGSL source of the kernel is generated for the configured workgroup
// size, variant and axes by [ShaderSource]. [Reflect] parses it with naga and
// [CheckContract] verifies its bindings; [Compile] translates it to SPIR-V,
// MSL, GLSL or HLSL.
//
// # Logging
//
// flip is silent by default. Call [SetLogger] to enable structured logging.
package flip
