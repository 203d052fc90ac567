// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package flip

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/hlsl"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/msl"
)

//go:embed shaders/flip.wgsl.tmpl
var flipShaderTemplate string

var shaderTemplate = template.Must(template.New("flip.wgsl").Parse(flipShaderTemplate))

// ShaderSource returns the WGSL source of the kernel for the workgroup size
// and kernel selected by cfg.
func ShaderSource(cfg Config) (string, error) {
	if err := cfg.Workgroup.Validate(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err := shaderTemplate.Execute(&buf, struct {
		Workgroup  WorkgroupSize
		EntryPoint string
		Variant    Variant
		Axes       Axes
		Dest       string
	}{
		Workgroup:  cfg.Workgroup,
		EntryPoint: EntryPoint,
		Variant:    cfg.Kernel.Variant,
		Axes:       cfg.Kernel.Axes,
		Dest:       destExpression(cfg.Kernel),
	})
	if err != nil {
		return "", fmt.Errorf("flip: render shader: %w", err)
	}
	return buf.String(), nil
}

// destExpression returns the WGSL expression for the store coordinate.
func destExpression(k Kernel) string {
	if k.Axes == AxesBoth {
		if k.Variant == VariantMirror {
			return "size.xy - vec2<u32>(1u, 1u) - global_id.xy"
		}
		return "size.xy - global_id.xy"
	}

	offset := ""
	if k.Variant == VariantMirror {
		offset = " - 1u"
	}
	x, y := "global_id.x", "global_id.y"
	if k.Axes.flipsX() {
		x = "size.x" + offset + " - global_id.x"
	}
	if k.Axes.flipsY() {
		y = "size.y" + offset + " - global_id.y"
	}
	return "vec2<u32>(" + x + ", " + y + ")"
}

// TextureBinding is a texture resource found by Reflect.
type TextureBinding struct {
	Name    string
	Group   uint32
	Binding uint32
	Storage bool
	Dim2D   bool
	Format  string // WGSL texel format of storage textures
	Access  Access
}

// ShaderInfo is the reflected interface of a compute shader.
type ShaderInfo struct {
	EntryPoint string
	Compute    bool
	Workgroup  WorkgroupSize
	Textures   []TextureBinding

	// EntryPoints is the number of entry points in the module.
	EntryPoints int
}

// Reflect parses and validates WGSL source with naga and extracts the first
// entry point and all texture bindings.
func Reflect(source string) (*ShaderInfo, error) {
	module, err := lower(source)
	if err != nil {
		return nil, err
	}
	if len(module.EntryPoints) == 0 {
		return nil, fmt.Errorf("%w: no entry point", ErrContractViolation)
	}

	ep := module.EntryPoints[0]
	info := &ShaderInfo{
		EntryPoint:  ep.Name,
		Compute:     ep.Stage == ir.StageCompute,
		Workgroup:   WorkgroupSize{X: ep.Workgroup[0], Y: ep.Workgroup[1], Z: ep.Workgroup[2]},
		EntryPoints: len(module.EntryPoints),
	}

	for _, gv := range module.GlobalVariables {
		if gv.Binding == nil || int(gv.Type) >= len(module.Types) {
			continue
		}
		img, ok := module.Types[gv.Type].Inner.(ir.ImageType)
		if !ok {
			continue
		}
		tb := TextureBinding{
			Name:    gv.Name,
			Group:   gv.Binding.Group,
			Binding: gv.Binding.Binding,
			Storage: img.Class == ir.ImageClassStorage,
			Dim2D:   img.Dim == ir.Dim2D && !img.Arrayed && !img.Multisampled,
		}
		if tb.Storage {
			tb.Format = storageFormatName(img.StorageFormat)
			tb.Access = storageAccess(img.StorageAccess)
		}
		info.Textures = append(info.Textures, tb)
	}
	return info, nil
}

func storageFormatName(f ir.StorageFormat) string {
	switch f {
	case ir.StorageFormatBgra8Unorm:
		return "bgra8unorm"
	case ir.StorageFormatRgba8Unorm:
		return "rgba8unorm"
	default:
		return fmt.Sprintf("format(%d)", f)
	}
}

func storageAccess(a ir.StorageAccess) Access {
	switch a {
	case ir.StorageAccessRead:
		return AccessRead
	case ir.StorageAccessWrite:
		return AccessWrite
	case ir.StorageAccessReadWrite:
		return AccessReadWrite
	default:
		return 0
	}
}

// CheckContract verifies that a reflected shader can be bound as the flip
// kernel: a single compute entry point named EntryPoint with a valid 2D
// workgroup size, and exactly the storage textures of BindingContract.
func CheckContract(info *ShaderInfo) error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if info.EntryPoints != 1 {
		addf("%d entry points, want 1", info.EntryPoints)
	}
	if info.EntryPoint != EntryPoint {
		addf("entry point %q, want %q", info.EntryPoint, EntryPoint)
	}
	if !info.Compute {
		addf("entry point is not a compute shader")
	}
	if err := info.Workgroup.Validate(); err != nil {
		addf("%v", err)
	}

	if len(info.Textures) != len(BindingContract) {
		addf("%d texture bindings, want %d", len(info.Textures), len(BindingContract))
	}
	for _, want := range BindingContract {
		got, ok := findTexture(info.Textures, want.Group, want.Binding)
		switch {
		case !ok:
			addf("missing @group(%d) @binding(%d)", want.Group, want.Binding)
		case !got.Storage || !got.Dim2D:
			addf("@group(%d) @binding(%d) is not texture_storage_2d", want.Group, want.Binding)
		case got.Format != want.Format:
			addf("@group(%d) @binding(%d) format %s, want %s", want.Group, want.Binding, got.Format, want.Format)
		case got.Access != want.Access:
			addf("@group(%d) @binding(%d) access %s, want %s", want.Group, want.Binding, got.Access, want.Access)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrContractViolation, strings.Join(problems, "; "))
	}
	return nil
}

func findTexture(textures []TextureBinding, group, binding uint32) (TextureBinding, bool) {
	for _, t := range textures {
		if t.Group == group && t.Binding == binding {
			return t, true
		}
	}
	return TextureBinding{}, false
}

// Target is a shader output language.
type Target uint8

const (
	TargetWGSL Target = iota
	TargetSPIRV
	TargetMSL
	TargetGLSL
	TargetHLSL
)

// String returns the target name as accepted by ParseTarget.
func (t Target) String() string {
	switch t {
	case TargetWGSL:
		return "wgsl"
	case TargetSPIRV:
		return "spirv"
	case TargetMSL:
		return "msl"
	case TargetGLSL:
		return "glsl"
	case TargetHLSL:
		return "hlsl"
	default:
		return fmt.Sprintf("Target(%d)", uint8(t))
	}
}

// Ext returns the conventional file extension for the target.
func (t Target) Ext() string {
	switch t {
	case TargetSPIRV:
		return ".spv"
	case TargetMSL:
		return ".metal"
	case TargetGLSL:
		return ".comp"
	case TargetHLSL:
		return ".hlsl"
	default:
		return ".wgsl"
	}
}

// ParseTarget parses "wgsl", "spirv", "msl", "glsl" or "hlsl".
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wgsl":
		return TargetWGSL, nil
	case "spirv", "spv":
		return TargetSPIRV, nil
	case "msl", "metal":
		return TargetMSL, nil
	case "glsl":
		return TargetGLSL, nil
	case "hlsl":
		return TargetHLSL, nil
	default:
		return TargetWGSL, fmt.Errorf("flip: unknown shader target %q", s)
	}
}

// Compile translates WGSL source to target with naga. SPIR-V output is a
// binary module; the text targets return source code. TargetWGSL returns
// source unchanged.
func Compile(source string, target Target) ([]byte, error) {
	switch target {
	case TargetWGSL:
		return []byte(source), nil
	case TargetSPIRV:
		spv, err := naga.CompileWithOptions(source, naga.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("flip: compile spirv: %w", err)
		}
		return spv, nil
	}

	module, err := lower(source)
	if err != nil {
		return nil, err
	}

	var code string
	switch target {
	case TargetMSL:
		code, _, err = msl.Compile(module, msl.DefaultOptions())
	case TargetGLSL:
		opts := glsl.DefaultOptions()
		opts.LangVersion = glsl.Version430
		opts.EntryPoint = EntryPoint
		code, _, err = glsl.Compile(module, opts)
	case TargetHLSL:
		opts := hlsl.DefaultOptions()
		opts.EntryPoint = EntryPoint
		code, _, err = hlsl.Compile(module, opts)
	default:
		return nil, fmt.Errorf("flip: unknown shader target %s", target)
	}
	if err != nil {
		return nil, fmt.Errorf("flip: compile %s: %w", target, err)
	}
	return []byte(code), nil
}

// lower parses, lowers and validates WGSL source.
func lower(source string) (*ir.Module, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("flip: parse shader: %w", err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, fmt.Errorf("flip: lower shader: %w", err)
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return nil, fmt.Errorf("flip: validate shader: %w", err)
	}
	if len(verrs) > 0 {
		return nil, fmt.Errorf("flip: validate shader: %w", &verrs[0])
	}
	return module, nil
}
