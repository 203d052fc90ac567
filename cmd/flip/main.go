// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Command flip rotates images by 180 degrees with the flip compute kernel.
//
// Usage:
//
//	flip [flags] input...
//
// Each input is written next to itself as <name>.flipped<ext>, to -o when
// there is a single input, or into -outdir. An input of "-" reads standard
// input and requires -o. With -emit the compiled kernel
// is printed (or written to -o) and no images are processed.
//
// Examples:
//
//	flip photo.png
//	flip -backend gpu -workgroup 16x16 -mirror -outdir out/ *.png
//	flip -axes vertical -gray depth.png
//	flip -emit spirv -o flip.spv
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/flip"
)

// stdinInput names standard input on the command line.
const stdinInput = "-"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// config is the parsed command line.
type config struct {
	backend   string
	workgroup flip.WorkgroupSize
	workers   int
	bounds    flip.BoundsPolicy
	mirror    bool
	axes      flip.Axes
	emit      string
	verbose   bool
	gray      bool
	jobs      int
	output    string
	outdir    string
	inputs    []string
}

func parseFlags(args []string, stderr io.Writer) (*config, error) {
	fs := flag.NewFlagSet("flip", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		backend   = fs.String("backend", flip.DispatcherCPU, "dispatcher: "+strings.Join(flip.Available(), "|"))
		workgroup = fs.String("workgroup", flip.DefaultWorkgroupSize.String(), "workgroup size, XxY or XxYx1")
		workers   = fs.Int("workers", 0, "CPU dispatcher workers (0 = GOMAXPROCS)")
		bounds    = fs.String("bounds", flip.BoundsDiscard.String(), "out-of-bounds stores: discard|clamp|strict")
		mirror    = fs.Bool("mirror", false, "use size-1-gid instead of size-gid")
		axes      = fs.String("axes", flip.AxesBoth.String(), "flipped axes: both|vertical|horizontal")
		emit      = fs.String("emit", "", "print the kernel for wgsl|spirv|msl|glsl|hlsl and exit")
		verbose   = fs.Bool("v", false, "debug logging")
		gray      = fs.Bool("gray", false, "write 8-bit grayscale output (depth maps)")
		jobs      = fs.Int("jobs", 0, "files processed concurrently (0 = one per input, at most 8)")
		output    = fs.String("o", "", "output file (single input or -emit)")
		outdir    = fs.String("outdir", "", "output directory")
	)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: flip [flags] input...\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &config{
		backend: *backend,
		workers: *workers,
		mirror:  *mirror,
		emit:    *emit,
		verbose: *verbose,
		gray:    *gray,
		jobs:    *jobs,
		output:  *output,
		outdir:  *outdir,
		inputs:  fs.Args(),
	}

	var err error
	if cfg.workgroup, err = flip.ParseWorkgroupSize(*workgroup); err != nil {
		return nil, err
	}
	if cfg.bounds, err = flip.ParseBoundsPolicy(*bounds); err != nil {
		return nil, err
	}
	if cfg.axes, err = flip.ParseAxes(*axes); err != nil {
		return nil, err
	}

	if cfg.emit == "" {
		switch {
		case len(cfg.inputs) == 0:
			return nil, errors.New("no input files")
		case cfg.output != "" && len(cfg.inputs) > 1:
			return nil, errors.New("-o requires a single input; use -outdir")
		case cfg.output != "" && cfg.outdir != "":
			return nil, errors.New("-o and -outdir are mutually exclusive")
		case slices.Contains(cfg.inputs, stdinInput) && cfg.output == "":
			return nil, errors.New("reading standard input requires -o")
		}
	}
	return cfg, nil
}

func (c *config) options() []flip.Option {
	variant := flip.VariantEdge
	if c.mirror {
		variant = flip.VariantMirror
	}
	return []flip.Option{
		flip.WithWorkgroupSize(c.workgroup),
		flip.WithWorkers(c.workers),
		flip.WithBoundsPolicy(c.bounds),
		flip.WithVariant(variant),
		flip.WithAxes(c.axes),
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "flip: %v\n", err)
		return 2
	}

	level := slog.LevelWarn
	if cfg.verbose {
		level = slog.LevelDebug
	}
	flip.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))
	defer flip.SetLogger(nil)
	flip.Logger().Debug("flip: start",
		"backend", cfg.backend,
		"available", flip.Available(),
		"cpu_features", flip.CPUFeatures())

	if cfg.emit != "" {
		if err := emit(cfg, stdout); err != nil {
			fmt.Fprintf(stderr, "flip: %v\n", err)
			return 1
		}
		return 0
	}

	d, err := flip.NewDispatcher(cfg.backend, cfg.options()...)
	if err != nil {
		fmt.Fprintf(stderr, "flip: %v\n", err)
		return 1
	}
	defer d.Close()

	results := processAll(ctx, d, cfg)

	p := message.NewPrinter(userLanguage())
	var (
		failed   int
		writes   uint64
		oob      uint64
		duration time.Duration
	)
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(stderr, "flip: %s: %v\n", r.input, r.err)
			continue
		}
		writes += r.report.Writes
		oob += r.report.OutOfBoundsStores
		duration += r.elapsed
		p.Fprintf(stdout, "%s -> %s: %d×%d, %d texels written (%s)\n",
			r.input, r.output, r.report.Size[0], r.report.Size[1], r.report.Writes, r.elapsed.Round(time.Microsecond))
	}
	if len(results) > 1 {
		p.Fprintf(stdout, "%d of %d images flipped on %s: %d texels written, %d out-of-bounds stores, %s\n",
			len(results)-failed, len(results), d.Name(), writes, oob, duration.Round(time.Microsecond))
	}
	if failed > 0 {
		return 1
	}
	return 0
}

// result is the outcome of flipping one input.
type result struct {
	input   string
	output  string
	report  *flip.Report
	elapsed time.Duration
	err     error
}

// processAll flips every input on a worker pool and returns results in
// input order.
func processAll(ctx context.Context, d flip.Dispatcher, cfg *config) []result {
	results := make([]result, len(cfg.inputs))
	images := flip.NewImagePool(0)
	if len(cfg.inputs) == 1 {
		results[0] = processFile(ctx, d, images, cfg, cfg.inputs[0])
		return results
	}

	jobs := cfg.jobs
	if jobs <= 0 {
		jobs = min(len(cfg.inputs), 8)
	}
	pool := worker.NewDynamicWorkerPool(jobs, 256, 1*time.Second)

	var wg sync.WaitGroup
	for i, input := range cfg.inputs {
		wg.Add(1)
		pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				results[i] = processFile(ctx, d, images, cfg, input)
				return nil, results[i].err
			},
		})
	}
	wg.Wait()
	return results
}

func processFile(ctx context.Context, d flip.Dispatcher, images *flip.ImagePool, cfg *config, input string) result {
	r := result{input: input, output: outputPath(cfg, input)}

	in, err := loadInput(input)
	if err != nil {
		r.err = err
		return r
	}
	size := in.Dimensions()
	out, err := images.Get(size[0], size[1])
	if err != nil {
		r.err = err
		return r
	}
	defer images.Put(out)

	start := time.Now()
	r.report, r.err = d.Dispatch(ctx, in, out)
	r.elapsed = time.Since(start)
	if r.err != nil {
		return r
	}
	flip.Logger().Debug("flip: dispatched", "input", input, "report", r.report.String())

	if dir := filepath.Dir(r.output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			r.err = err
			return r
		}
	}
	if cfg.gray {
		r.err = out.SaveGray(r.output)
	} else {
		r.err = out.Save(r.output)
	}
	return r
}

func loadInput(input string) (*flip.Image, error) {
	if input != stdinInput {
		return flip.LoadImage(input)
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, err
	}
	return flip.DecodeImage(data)
}

// outputPath derives the output file for input.
func outputPath(cfg *config, input string) string {
	if cfg.output != "" {
		return cfg.output
	}
	ext := filepath.Ext(input)
	name := strings.TrimSuffix(filepath.Base(input), ext) + ".flipped"
	switch strings.ToLower(ext) {
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff":
		name += ext
	default:
		// Decode-only formats such as WebP are written as PNG.
		name += ".png"
	}
	if cfg.outdir != "" {
		return filepath.Join(cfg.outdir, name)
	}
	return filepath.Join(filepath.Dir(input), name)
}

func emit(cfg *config, stdout io.Writer) error {
	target, err := flip.ParseTarget(cfg.emit)
	if err != nil {
		return err
	}
	source, err := flip.ShaderSource(flip.NewConfig(cfg.options()...))
	if err != nil {
		return err
	}
	code, err := flip.Compile(source, target)
	if err != nil {
		return err
	}
	if cfg.output != "" {
		return os.WriteFile(cfg.output, code, 0o644)
	}
	_, err = stdout.Write(code)
	return err
}

// userLanguage returns the language of the LANG environment variable,
// defaulting to English.
func userLanguage() language.Tag {
	lang, _, _ := strings.Cut(os.Getenv("LANG"), ".")
	if lang == "" || lang == "C" || lang == "POSIX" {
		return language.English
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return language.English
	}
	return tag
}
