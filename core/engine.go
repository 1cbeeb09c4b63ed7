// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devblok/koru/gfx"
	log "github.com/sirupsen/logrus"
)

// ErrEngineDestroyed is returned when drawing with a destroyed engine.
var ErrEngineDestroyed = errors.New("engine destroyed")

// Stats counts what the engine did since it was created.
type Stats struct {
	Submitted  uint64
	Presented  uint64
	Rebuilds   uint64
	OutOfDate  uint64
	Suboptimal uint64
}

// Engine drives frames from acquisition to presentation and rebuilds the
// swapchain whenever the surface changes. It is single threaded, all
// methods must be called from the goroutine that owns the window.
type Engine struct {
	device    gfx.Device
	window    Window
	pipelines PipelineFactory
	draw      DrawFunc
	cfg       RendererConfiguration
	logger    log.FieldLogger
	recorder  Recorder

	swapchain  *Swapchain
	sync       *FrameSync
	cmdBuffers []gfx.CmdBuffer
	pipeline   gfx.Pipeline

	state State
	stats Stats

	// resizePending is set by a window resize signal, settled counts the
	// frames drawn since the last one.
	resizePending bool
	settled       int
}

// NewEngine builds the swapchain, the frame slots, one command buffer per
// presentable image and the first pipeline. If the window is minimized it
// blocks until it has a drawable extent or ctx is done.
func NewEngine(ctx context.Context, device gfx.Device, window Window, pipelines PipelineFactory, draw DrawFunc, cfg RendererConfiguration, logger log.FieldLogger) (e *Engine, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.StandardLogger()
	}

	clearValues := gfx.DefaultClearValues
	clearValues.Color = cfg.ClearColor

	built := &Engine{
		device:    device,
		window:    window,
		pipelines: pipelines,
		draw:      draw,
		cfg:       cfg,
		logger:    logger.WithField("component", "engine"),
		recorder:  Recorder{Clear: clearValues},
	}
	defer func() {
		if err != nil {
			built.release()
			e = nil
		}
	}()
	e = built

	if e.swapchain, err = e.buildSwapchain(ctx, nil); err != nil {
		return nil, err
	}
	if e.sync, err = NewFrameSync(device, cfg.FramesInFlight, e.swapchain.ImageCount()); err != nil {
		return nil, err
	}
	if err = e.allocateCmdBuffers(e.swapchain.ImageCount()); err != nil {
		return nil, err
	}
	if err = e.buildPipeline(); err != nil {
		return nil, err
	}

	e.logger.WithFields(log.Fields{
		"framesInFlight": cfg.FramesInFlight,
		"images":         e.swapchain.ImageCount(),
	}).Info("engine ready")

	return e, nil
}

// DrawFrame draws and presents one frame. When the swapchain turns out to be
// out of date at acquisition nothing is drawn and the swapchain is rebuilt.
// Any returned error is fatal to the engine.
func (e *Engine) DrawFrame(ctx context.Context) error {
	if e.swapchain == nil {
		return ErrEngineDestroyed
	}

	slot := e.sync.Current()

	e.state = StateAcquiring
	index, result, err := e.swapchain.AcquireNextImage(slot)
	if err != nil {
		return e.fail(err)
	}
	rebuild := false
	switch result {
	case gfx.OutOfDate:
		e.stats.OutOfDate++
		e.logger.Debug("swapchain out of date at acquire")
		return e.rebuild(ctx)
	case gfx.Suboptimal:
		e.stats.Suboptimal++
		rebuild = true
	}

	e.state = StateRecording
	// the command buffer of this image may still be executing
	if err := e.sync.WaitImage(index); err != nil {
		return e.fail(err)
	}
	cb := e.cmdBuffers[index]
	if err := e.recorder.Record(cb, e.swapchain, index, e.pipeline, e.draw); err != nil {
		return e.fail(err)
	}

	e.state = StateSubmitting
	if err := e.swapchain.Submit(cb, e.sync, index); err != nil {
		return e.fail(err)
	}
	e.stats.Submitted++

	e.state = StatePresenting
	result, err = e.swapchain.Present(index, slot)
	if err != nil {
		return e.fail(err)
	}
	e.stats.Presented++
	switch result {
	case gfx.OutOfDate:
		e.stats.OutOfDate++
		rebuild = true
	case gfx.Suboptimal:
		e.stats.Suboptimal++
		rebuild = true
	}

	if e.window.ResizeSignaled() {
		e.resizePending = true
		e.settled = 0
	} else if e.resizePending {
		e.settled++
	}
	if e.resizePending && e.settled >= e.cfg.ResizeSettleFrames {
		rebuild = true
	}

	if rebuild {
		return e.rebuild(ctx)
	}
	e.state = StateIdle
	return nil
}

// Run draws frames until ctx is done or drawing fails. When tick is not nil
// every frame waits for it first. before, if not nil, runs ahead of every
// frame on the calling goroutine. An error from it stops Run, as does
// cancelling ctx from within it.
func (e *Engine) Run(ctx context.Context, tick <-chan time.Time, before func() error) error {
	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		}
		if before != nil {
			if err := before(); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := e.DrawFrame(ctx); err != nil {
			return err
		}
	}
}

func (e *Engine) rebuild(ctx context.Context) error {
	e.state = StateRebuilding
	e.resizePending = false
	e.settled = 0

	swapchain, err := e.buildSwapchain(ctx, e.swapchain)
	if err != nil {
		return e.fail(err)
	}
	// the new swapchain already has the latest extent
	e.window.ResizeSignaled()
	oldCount := e.swapchain.ImageCount()
	e.swapchain.Release()
	e.swapchain = swapchain

	e.sync.ResetImages(swapchain.ImageCount())
	if swapchain.ImageCount() != oldCount {
		e.device.FreeCmdBuffers(e.cmdBuffers)
		e.cmdBuffers = nil
		if err := e.allocateCmdBuffers(swapchain.ImageCount()); err != nil {
			return e.fail(err)
		}
	}
	if err := e.buildPipeline(); err != nil {
		return e.fail(err)
	}

	e.stats.Rebuilds++
	e.logger.WithFields(log.Fields{
		"rebuild": e.stats.Rebuilds,
		"width":   swapchain.Width(),
		"height":  swapchain.Height(),
	}).Debug("swapchain rebuilt")

	e.state = StateIdle
	return nil
}

// buildSwapchain waits for the window to have a drawable extent and
// constructs a swapchain for it. With previous set the device is drained
// first, previous is handed over but not released.
func (e *Engine) buildSwapchain(ctx context.Context, previous *Swapchain) (*Swapchain, error) {
	for {
		extent, err := e.waitForExtent(ctx)
		if err != nil {
			return nil, err
		}

		if previous != nil {
			if err := e.device.WaitIdle(); err != nil {
				return nil, fmt.Errorf("waiting for device idle: %w", err)
			}
		}

		swapchain, err := NewSwapchain(e.device, e.window.Surface(), extent, previous, e.logger)
		if errors.Is(err, ErrDegenerateExtent) {
			// the surface disagrees with the window, wait for it to catch up
			e.window.WaitEvents()
			continue
		}
		return swapchain, err
	}
}

func (e *Engine) waitForExtent(ctx context.Context) (gfx.Extent2D, error) {
	for {
		extent := e.window.Extent()
		if !extent.Degenerate() {
			return extent, nil
		}
		if err := ctx.Err(); err != nil {
			return gfx.Extent2D{}, err
		}
		e.window.WaitEvents()
	}
}

func (e *Engine) allocateCmdBuffers(count int) error {
	cbs, err := e.device.AllocateCmdBuffers(count)
	if err != nil {
		return fmt.Errorf("allocating %d command buffers: %w", count, err)
	}
	e.cmdBuffers = cbs
	return nil
}

func (e *Engine) buildPipeline() error {
	if e.pipeline != nil {
		e.pipeline.Release()
		e.pipeline = nil
	}
	pipeline, err := e.pipelines.NewPipeline(e.swapchain.RenderPass(), e.swapchain.Extent())
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}
	e.pipeline = pipeline
	return nil
}

func (e *Engine) fail(err error) error {
	e.logger.WithError(err).WithField("state", e.state).Error("frame failed")
	return err
}

// State returns where the engine is within the current frame.
func (e *Engine) State() State {
	return e.state
}

// Stats returns counters of the engine's work so far.
func (e *Engine) Stats() Stats {
	return e.stats
}

// Swapchain returns the current swapchain. It is replaced on every rebuild.
func (e *Engine) Swapchain() *Swapchain {
	return e.swapchain
}

// FrameSync returns the frames in flight ring.
func (e *Engine) FrameSync() *FrameSync {
	return e.sync
}

// Pipeline returns the pipeline built for the current swapchain.
func (e *Engine) Pipeline() gfx.Pipeline {
	return e.pipeline
}

// Destroy waits for the device to finish and releases everything the engine owns.
func (e *Engine) Destroy() error {
	if e.swapchain == nil {
		return nil
	}
	err := e.device.WaitIdle()
	e.release()
	e.logger.WithField("stats", fmt.Sprintf("%+v", e.stats)).Info("engine destroyed")
	if err != nil {
		return fmt.Errorf("waiting for device idle: %w", err)
	}
	return nil
}

// release tears down in reverse creation order.
func (e *Engine) release() {
	if e.pipeline != nil {
		e.pipeline.Release()
		e.pipeline = nil
	}
	if e.cmdBuffers != nil {
		e.device.FreeCmdBuffers(e.cmdBuffers)
		e.cmdBuffers = nil
	}
	e.sync.Release()
	e.sync = nil
	e.swapchain.Release()
	e.swapchain = nil
	e.state = StateIdle
}
