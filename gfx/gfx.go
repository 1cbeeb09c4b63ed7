// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfx defines rendering related features that renderers must implement.
// The presentation core only talks to a GPU through the interfaces declared here,
// concrete drivers live in subpackages.
package gfx

import (
	"errors"
	"math"
)

// Releasable defines any memory-occupying item that can be freed.
type Releasable interface {

	// Release releases memory occupied by the implementing structure.
	Release()
}

// driver errors
var (
	// ErrDeviceLost means that the device can no longer be used.
	ErrDeviceLost = errors.New("gfx: device lost")

	// ErrSurfaceLost means that the surface handed to the driver is gone.
	ErrSurfaceLost = errors.New("gfx: surface lost")

	// ErrUnsupported means that the driver cannot provide what was asked for.
	ErrUnsupported = errors.New("gfx: unsupported by driver")

	// ErrEmptyBuffer is returned when creating a buffer without data.
	ErrEmptyBuffer = errors.New("gfx: empty buffer")
)

// Result is the non-fatal outcome of acquiring or presenting an image.
type Result int

// Results returned by Device.AcquireNextImage and Device.Present.
const (
	// Success means the operation completed and the swapchain matches the surface.
	Success Result = iota

	// Suboptimal means the operation completed, but the swapchain no longer
	// matches the surface exactly and should be rebuilt.
	Suboptimal

	// OutOfDate means the swapchain cannot be used with the surface anymore.
	OutOfDate
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Suboptimal:
		return "suboptimal"
	case OutOfDate:
		return "out of date"
	}
	return "unknown"
}

// UndefinedExtent is reported as the current surface extent
// when the surface size is decided by the swapchain.
const UndefinedExtent = math.MaxUint32

// Extent2D is a size in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// Degenerate reports whether either dimension is zero,
// as is the case for a minimized window.
func (e Extent2D) Degenerate() bool {
	return e.Width == 0 || e.Height == 0
}

// Fixed reports whether a surface reported this extent as authoritative.
func (e Extent2D) Fixed() bool {
	return e.Width != UndefinedExtent
}

// Clamp returns e clamped into [min, max] per dimension.
func (e Extent2D) Clamp(min, max Extent2D) Extent2D {
	return Extent2D{
		Width:  clamp(e.Width, min.Width, max.Width),
		Height: clamp(e.Height, min.Height, max.Height),
	}
}

func clamp(v, lo, hi uint32) uint32 {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

// Viewport describes the viewport transform.
type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

// ViewportFor returns a viewport covering the whole extent.
func ViewportFor(e Extent2D) Viewport {
	return Viewport{
		Width:    float32(e.Width),
		Height:   float32(e.Height),
		MaxDepth: 1,
	}
}

// ClearValues are the values attachments are cleared with
// at the start of a render pass.
type ClearValues struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// DefaultClearValues clears to near-black and the far plane.
var DefaultClearValues = ClearValues{
	Color: [4]float32{0.01, 0.01, 0.01, 1},
	Depth: 1,
}
