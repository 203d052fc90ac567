// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package flip

import "errors"

// Errors returned by binding validation and dispatch.
var (
	// ErrNilImage is returned when an input or output image is nil.
	ErrNilImage = errors.New("flip: nil image")

	// ErrInvalidDimensions is returned when an image has a zero dimension.
	ErrInvalidDimensions = errors.New("flip: invalid image dimensions")

	// ErrDimensionMismatch is returned when input and output sizes differ.
	ErrDimensionMismatch = errors.New("flip: input and output dimensions differ")

	// ErrAliasedImages is returned when input and output share pixel memory.
	ErrAliasedImages = errors.New("flip: input and output images alias")

	// ErrOutOfBounds is returned by a strict dispatch that stored outside
	// the output image.
	ErrOutOfBounds = errors.New("flip: store out of bounds")

	// ErrInvalidWorkgroupSize is returned for a workgroup size the device
	// model cannot run.
	ErrInvalidWorkgroupSize = errors.New("flip: invalid workgroup size")

	// ErrUnknownDispatcher is returned by NewDispatcher for an unregistered name.
	ErrUnknownDispatcher = errors.New("flip: unknown dispatcher")

	// ErrContractViolation is returned when a shader does not match the
	// binding contract.
	ErrContractViolation = errors.New("flip: shader violates binding contract")
)
