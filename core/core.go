// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package core implements presentation and frame pacing on top of a gfx.Device:
// the swapchain and everything sized from it, the ring of frames in flight,
// and the engine loop that acquires, records, submits and presents frames.
package core

import (
	"errors"

	"github.com/devblok/koru/gfx"
)

// Swapchain construction errors. They are fatal to the construction attempt.
var (
	ErrSurfaceUnavailable = errors.New("surface capabilities unavailable")
	ErrNoImageAvailable   = errors.New("no presentable image available")
	ErrAttachmentCreation = errors.New("attachment creation failed")

	// ErrDegenerateExtent means the surface currently has a zero sized
	// extent, the window is most likely minimized.
	ErrDegenerateExtent = errors.New("degenerate surface extent")
)

// Window is the windowing collaborator the engine presents to.
type Window interface {

	// Extent returns the current drawable size.
	Extent() gfx.Extent2D

	// Surface returns the driver surface of the window.
	Surface() gfx.Surface

	// WaitEvents blocks until the window received further events.
	WaitEvents()

	// ResizeSignaled reports whether the window was resized since the
	// last call, and clears the flag.
	ResizeSignaled() bool
}

// PipelineFactory builds the executable pipeline drawn with. It is asked for
// a new pipeline after every swapchain rebuild, since the render pass it has
// to be compatible with may have changed.
type PipelineFactory interface {
	NewPipeline(rp gfx.RenderPass, extent gfx.Extent2D) (gfx.Pipeline, error)
}

// PipelineFactoryFunc adapts a function to PipelineFactory.
type PipelineFactoryFunc func(rp gfx.RenderPass, extent gfx.Extent2D) (gfx.Pipeline, error)

// NewPipeline implements PipelineFactory.
func (f PipelineFactoryFunc) NewPipeline(rp gfx.RenderPass, extent gfx.Extent2D) (gfx.Pipeline, error) {
	return f(rp, extent)
}

// DrawFunc records the scene into cb, inside an already begun render pass
// with p bound. It must not keep cb after returning.
type DrawFunc func(cb gfx.CmdBuffer, p gfx.Pipeline, extent gfx.Extent2D)

// State is the engine's position within a frame.
type State int

// Engine states.
const (
	StateIdle State = iota
	StateAcquiring
	StateRecording
	StateSubmitting
	StatePresenting
	StateRebuilding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateRecording:
		return "recording"
	case StateSubmitting:
		return "submitting"
	case StatePresenting:
		return "presenting"
	case StateRebuilding:
		return "rebuilding"
	}
	return "unknown"
}

// releaser releases everything pushed to it in reverse order.
type releaser []gfx.Releasable

func (r *releaser) push(items ...gfx.Releasable) {
	*r = append(*r, items...)
}

func (r *releaser) release() {
	for i := len(*r) - 1; i >= 0; i-- {
		(*r)[i].Release()
	}
	*r = nil
}
