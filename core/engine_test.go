// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/koru/gfx"
	"github.com/devblok/koru/gfx/simgpu"
	"github.com/devblok/koru/model"
)

var errBoom = errors.New("boom")

func testLogger() log.FieldLogger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig() RendererConfiguration {
	return DefaultConfiguration().Renderer
}

func drawQuad(cb gfx.CmdBuffer, p gfx.Pipeline, extent gfx.Extent2D) {
	cb.PushConstants(p, 0, make([]byte, 32))
	cb.Draw(4, 1, 0, 0)
}

func newTestEngine(c *qt.C, dev *simgpu.Device, win *testWindow, cfg RendererConfiguration) *Engine {
	e, err := NewEngine(context.Background(), dev, win, PipelineFactoryFunc(dev.NewPipeline), drawQuad, cfg, testLogger())
	c.Assert(err, qt.IsNil)
	return e
}

func drawFrames(c *qt.C, e *Engine, n int) {
	for i := 0; i < n; i++ {
		c.Assert(e.DrawFrame(context.Background()), qt.IsNil, qt.Commentf("frame %d", i+1))
	}
}

func TestEngineSteadyState(t *testing.T) {
	c := qt.New(t)
	dev := simgpu.New()
	e := newTestEngine(c, dev, newTestWindow(), testConfig())

	drawFrames(c, e, 100)

	c.Assert(e.FrameSync().Submitted(), qt.Equals, uint64(100))
	c.Assert(e.FrameSync().Cursor(), qt.Equals, 100%DefaultFramesInFlight)
	c.Assert(dev.MaxDrained <= 1, qt.IsTrue, qt.Commentf("a wait completed %d frames", dev.MaxDrained))
	c.Assert(dev.MaxUnsignaled <= DefaultFramesInFlight, qt.IsTrue)
	c.Assert(dev.Violations, qt.HasLen, 0)
	c.Assert(dev.Presented, qt.HasLen, 100)
	c.Assert(e.Stats(), qt.DeepEquals, Stats{Submitted: 100, Presented: 100})
	c.Assert(e.State(), qt.Equals, StateIdle)
}

func TestEngineBoundedConcurrency(t *testing.T) {
	c := qt.New(t)
	for slots := 1; slots <= 4; slots++ {
		for minImages := uint32(1); minImages <= 3; minImages++ {
			rnd := rand.New(rand.NewSource(int64(slots)*10 + int64(minImages)))

			dev := simgpu.New()
			dev.Support.Capabilities.MinImageCount = minImages
			dev.NextImage = func(n, count int) uint32 {
				return uint32(rnd.Intn(count))
			}

			cfg := testConfig()
			cfg.FramesInFlight = slots
			e := newTestEngine(c, dev, newTestWindow(), cfg)
			drawFrames(c, e, 200)

			comment := qt.Commentf("%d slots, %d images", slots, minImages+1)
			c.Assert(dev.MaxUnsignaled <= slots, qt.IsTrue, comment)
			c.Assert(dev.Violations, qt.HasLen, 0, comment)
			c.Assert(e.Destroy(), qt.IsNil)
		}
	}
}

func TestEnginePerImageExclusion(t *testing.T) {
	c := qt.New(t)
	dev := simgpu.New()
	dev.Support.Capabilities.MinImageCount = 1
	// acquisition order unrelated to slot rotation
	dev.NextImage = func(n, count int) uint32 {
		return 0
	}

	cfg := testConfig()
	cfg.FramesInFlight = 3
	e := newTestEngine(c, dev, newTestWindow(), cfg)
	drawFrames(c, e, 10)

	c.Assert(dev.Violations, qt.HasLen, 0)
	c.Assert(dev.Waits > 0, qt.IsTrue)
	c.Assert(e.FrameSync().ImageFence(0), qt.Not(qt.IsNil))
	c.Assert(e.FrameSync().ImageFence(1), qt.IsNil)
}

func TestEngineResizeStorm(t *testing.T) {
	c := qt.New(t)
	dev := simgpu.New()
	win := newTestWindow()
	e := newTestEngine(c, dev, win, testConfig())

	for frame := 1; frame <= 12; frame++ {
		if frame >= 5 && frame <= 7 {
			win.resize(gfx.Extent2D{Width: 800 + uint32(frame)*10, Height: 600})
		}
		c.Assert(e.DrawFrame(context.Background()), qt.IsNil)
	}

	c.Assert(e.Stats().Rebuilds, qt.Equals, uint64(1))
	c.Assert(dev.Swapchains, qt.HasLen, 2)
	c.Assert(dev.Swapchains[1].Extent, qt.Equals, gfx.Extent2D{Width: 870, Height: 600})
	c.Assert(dev.Swapchains[1].Old, qt.Not(qt.IsNil))
	c.Assert(e.Swapchain().Extent(), qt.Equals, gfx.Extent2D{Width: 870, Height: 600})

	c.Assert(dev.Presented, qt.HasLen, 12)
	c.Assert(dev.Presented[:4], qt.DeepEquals, []uint32{0, 1, 2, 0})
	c.Assert(dev.Violations, qt.HasLen, 0)
}

func TestEngineResizeWithoutSettling(t *testing.T) {
	c := qt.New(t)
	dev := simgpu.New()
	win := newTestWindow()
	cfg := testConfig()
	cfg.ResizeSettleFrames = 0
	e := newTestEngine(c, dev, win, cfg)

	drawFrames(c, e, 1)
	for i := 0; i < 2; i++ {
		win.resize(gfx.Extent2D{Width: 1024, Height: 768})
		drawFrames(c, e, 1)
	}
	drawFrames(c, e, 1)

	c.Assert(e.Stats().Rebuilds, qt.Equals, uint64(2))
	c.Assert(e.Swapchain().Extent(), qt.Equals, gfx.Extent2D{Width: 1024, Height: 768})
}

func TestEngineMinimizeRestore(t *testing.T) {
	c := qt.New(t)
	dev := simgpu.New()
	win := newTestWindow()
	cfg := testConfig()
	cfg.ResizeSettleFrames = 0
	e := newTestEngine(c, dev, win, cfg)
	c.Assert(dev.Calls("NewSwapchain"), qt.Equals, 1)

	drawFrames(c, e, 2)

	restored := gfx.Extent2D{Width: 800, Height: 600}
	win.extents = []gfx.Extent2D{{}, {}, {}, restored}
	win.resized = true
	start := win.polls
	var created []int
	win.onPoll = func(polls int) {
		created = append(created, dev.Calls("NewSwapchain"))
	}

	drawFrames(c, e, 1)

	c.Assert(win.polls-start, qt.Equals, 4)
	c.Assert(win.waits, qt.Equals, 3)
	c.Assert(created, qt.DeepEquals, []int{1, 1, 1, 1})
	c.Assert(dev.Calls("NewSwapchain"), qt.Equals, 2)
	c.Assert(dev.Swapchains[1].Extent, qt.Equals, restored)
	c.Assert(e.State(), qt.Equals, StateIdle)
	c.Assert(dev.Violations, qt.HasLen, 0)
}

func TestEngineMinimizedAtStart(t *testing.T) {
	c := qt.New(t)
	dev := simgpu.New()
	win := newTestWindow(gfx.Extent2D{Width: 0, Height: 600}, gfx.Extent2D{Width: 640, Height: 0}, gfx.Extent2D{Width: 640, Height: 480})
	e := newTestEngine(c, dev, win, testConfig())

	c.Assert(win.waits, qt.Equals, 2)
	c.Assert(e.Swapchain().Extent(), qt.Equals, gfx.Extent2D{Width: 640, Height: 480})
}

func TestEngineMinimizedUntilCancelled(t *testing.T) {
	c := qt.New(t)
	dev := simgpu.New()
	win := newTestWindow(gfx.Extent2D{})

	ctx, cancel := context.WithCancel(context.Background())
	win.onPoll = func(polls int) {
		if polls == 5 {
			cancel()
		}
	}
	_, err := NewEngine(ctx, dev, win, PipelineFactoryFunc(dev.NewPipeline), drawQuad, testConfig(), testLogger())
	c.Assert(err, qt.ErrorIs, context.Canceled)
	c.Assert(dev.Calls("NewSwapchain"), qt.Equals, 0)
	c.Assert(dev.LiveTotal(), qt.Equals, 0)
}

func TestEngineSurfaceFixedToZero(t *testing.T) {
	c := qt.New(t)
	dev := simgpu.New()
	win := newTestWindow()
	e := newTestEngine(c, dev, win, testConfig())

	dev.Support.Capabilities.CurrentExtent = gfx.Extent2D{}
	dev.QueuePresentResults(gfx.OutOfDate)
	win.onPoll = func(polls int) {
		if win.waits == 2 {
			dev.Support.Capabilities.CurrentExtent = gfx.Extent2D{Width: 300, Height: 200}
		}
	}
	drawFrames(c, e, 1)

	c.Assert(win.waits, qt.Equals, 2)
	c.Assert(dev.Calls("NewSwapchain"), qt.Equals, 2)
	c.Assert(e.Swapchain().Extent(), qt.Equals, gfx.Extent2D{Width: 300, Height: 200})
}

func TestEngineDrawsSceneModels(t *testing.T) {
	c := qt.New(t)
	dev := simgpu.New()
	scene, err := model.DefaultScene(dev, 1)
	c.Assert(err, qt.IsNil)
	e, err := NewEngine(context.Background(), dev, newTestWindow(), PipelineFactoryFunc(dev.NewPipeline), scene.Draw, testConfig(), testLogger())
	c.Assert(err, qt.IsNil)

	for i := 0; i < 4; i++ {
		scene.Update()
		drawFrames(c, e, 1)
	}
	c.Assert(simgpu.Commands(e.cmdBuffers[0]), qt.Contains, "BindVertexBuffers")
	c.Assert(dev.Violations, qt.HasLen, 0)

	// the device is idle once the engine is destroyed
	c.Assert(e.Destroy(), qt.IsNil)
	scene.Release()
	c.Assert(dev.LiveTotal(), qt.Equals, 0)
	c.Assert(dev.Violations, qt.HasLen, 0)
}

func TestEngineClearColor(t *testing.T) {
	c := qt.New(t)
	dev := simgpu.New()
	cfg := testConfig()
	cfg.ClearColor = [4]float32{}
	e := newTestEngine(c, dev, newTestWindow(), cfg)

	drawFrames(c, e, 1)
	clear := simgpu.ClearValues(e.cmdBuffers[0])
	c.Assert(clear.Color, qt.Equals, [4]float32{})
	c.Assert(clear.Depth, qt.Equals, float32(1))
}

func TestEngineOutOfDateAcquireSkipsFrame(t *testing.T) {
	c := qt.New(t)
	dev := simgpu.New()
	e := newTestEngine(c, dev, newTestWindow(), testConfig())

	dev.QueueAcquireResults(gfx.Success, gfx.OutOfDate)
	drawFrames(c, e, 2)

	c.Assert(e.Stats(), qt.DeepEquals, Stats{Submitted: 1, Presented: 1, Rebuilds: 1, OutOfDate: 1})
	c.Assert(dev.Presented, qt.HasLen, 1)
	c.Assert(e.FrameSync().Cursor(), qt.Equals, 1)

	drawFrames(c, e, 1)
	c.Assert(dev.Presented, qt.HasLen, 2)
	c.Assert(dev.Violations, qt.HasLen, 0)
}

func TestEngineOutOfDateAcquireConsumesResize(t *testing.T) {
	c := qt.New(t)
	dev := simgpu.New()
	win := newTestWindow()
	e := newTestEngine(c, dev, win, testConfig())
	drawFrames(c, e, 2)

	// the resize that made the swapchain out of date is still signaled
	win.resize(gfx.Extent2D{Width: 1024, Height: 768})
	dev.QueueAcquireResults(gfx.OutOfDate)
	drawFrames(c, e, 6)

	c.Assert(e.Stats().Rebuilds, qt.Equals, uint64(1))
	c.Assert(dev.Calls("NewSwapchain"), qt.Equals, 2)
	c.Assert(dev.WaitIdles, qt.Equals, 1)
	c.Assert(e.Swapchain().Extent(), qt.Equals, gfx.Extent2D{Width: 1024, Height: 768})
	c.Assert(win.resized, qt.IsFalse)
	c.Assert(dev.Violations, qt.HasLen, 0)
}

func TestEngineRebuildsAfterPresent(t *testing.T) {
	c := qt.New(t)
	tests := []struct {
		about   string
		acquire gfx.Result
		present gfx.Result
		want    Stats
	}{{
		about:   "present out of date",
		acquire: gfx.Success,
		present: gfx.OutOfDate,
		want:    Stats{Submitted: 1, Presented: 1, Rebuilds: 1, OutOfDate: 1},
	}, {
		about:   "present suboptimal",
		acquire: gfx.Success,
		present: gfx.Suboptimal,
		want:    Stats{Submitted: 1, Presented: 1, Rebuilds: 1, Suboptimal: 1},
	}, {
		about:   "acquire suboptimal",
		acquire: gfx.Suboptimal,
		present: gfx.Success,
		want:    Stats{Submitted: 1, Presented: 1, Rebuilds: 1, Suboptimal: 1},
	}}
	for _, test := range tests {
		c.Run(test.about, func(c *qt.C) {
			dev := simgpu.New()
			e := newTestEngine(c, dev, newTestWindow(), testConfig())
			dev.QueueAcquireResults(test.acquire)
			dev.QueuePresentResults(test.present)

			drawFrames(c, e, 1)

			c.Assert(e.Stats(), qt.DeepEquals, test.want)
			c.Assert(dev.Presented, qt.HasLen, 1)
			c.Assert(dev.WaitIdles, qt.Equals, 1)
			c.Assert(dev.Violations, qt.HasLen, 0)
		})
	}
}

func TestEngineRebuildResets(t *testing.T) {
	c := qt.New(t)
	dev := simgpu.New()
	e := newTestEngine(c, dev, newTestWindow(), testConfig())
	drawFrames(c, e, 5)

	// same image count keeps the command buffers
	dev.QueuePresentResults(gfx.OutOfDate)
	drawFrames(c, e, 1)
	c.Assert(dev.Calls("AllocateCmdBuffers"), qt.Equals, 1)
	c.Assert(dev.Calls("NewPipeline"), qt.Equals, 2)
	for i := 0; i < e.Swapchain().ImageCount(); i++ {
		c.Assert(e.FrameSync().ImageFence(uint32(i)), qt.IsNil)
	}

	// a new image count reallocates them
	dev.Support.Capabilities.MinImageCount = 3
	dev.QueuePresentResults(gfx.OutOfDate)
	drawFrames(c, e, 1)
	c.Assert(dev.Calls("AllocateCmdBuffers"), qt.Equals, 2)
	c.Assert(dev.Live("cmdbuffer"), qt.Equals, 4)
	c.Assert(e.Swapchain().ImageCount(), qt.Equals, 4)
	c.Assert(e.FrameSync().ImageCount(), qt.Equals, 4)

	pipeline := e.Pipeline().(*simgpu.Pipeline)
	c.Assert(pipeline.RenderPass, qt.Equals, e.Swapchain().RenderPass())
	c.Assert(dev.Live("pipeline"), qt.Equals, 1)

	drawFrames(c, e, 10)
	c.Assert(dev.Violations, qt.HasLen, 0)
}

func TestEngineDestroyReleasesEverything(t *testing.T) {
	c := qt.New(t)
	dev := simgpu.New()
	win := newTestWindow()
	e := newTestEngine(c, dev, win, testConfig())

	drawFrames(c, e, 3)
	dev.QueuePresentResults(gfx.OutOfDate, gfx.Success, gfx.Suboptimal)
	drawFrames(c, e, 3)
	dev.Support.Capabilities.MinImageCount = 4
	win.resize(gfx.Extent2D{Width: 320, Height: 240})
	drawFrames(c, e, 5)
	c.Assert(e.Stats().Rebuilds, qt.Equals, uint64(3))

	c.Assert(e.Destroy(), qt.IsNil)
	c.Assert(dev.LiveTotal(), qt.Equals, 0)
	c.Assert(dev.Pending(), qt.Equals, 0)
	c.Assert(dev.Violations, qt.HasLen, 0)

	c.Assert(e.DrawFrame(context.Background()), qt.ErrorIs, ErrEngineDestroyed)
	c.Assert(e.Destroy(), qt.IsNil)
}

func TestEngineFatalErrors(t *testing.T) {
	c := qt.New(t)
	tests := []struct {
		about string
		op    string
		after int
	}{{
		about: "acquire",
		op:    "AcquireNextImage",
		after: 2,
	}, {
		about: "submit",
		op:    "Submit",
		after: 2,
	}, {
		about: "present",
		op:    "Present",
		after: 2,
	}, {
		about: "rebuild",
		op:    "NewSwapchain",
		after: 1,
	}, {
		about: "pipeline",
		op:    "NewPipeline",
		after: 1,
	}}
	for _, test := range tests {
		c.Run(test.about, func(c *qt.C) {
			dev := simgpu.New()
			e := newTestEngine(c, dev, newTestWindow(), testConfig())
			dev.FailAfter(test.op, test.after, errBoom)
			dev.QueuePresentResults(gfx.Success, gfx.OutOfDate)

			var err error
			for i := 0; i < 5 && err == nil; i++ {
				err = e.DrawFrame(context.Background())
			}
			c.Assert(err, qt.ErrorIs, errBoom)
			c.Assert(e.Destroy(), qt.IsNil)
			c.Assert(dev.LiveTotal(), qt.Equals, 0)
		})
	}
}

func TestNewEngineInvalidConfiguration(t *testing.T) {
	c := qt.New(t)
	dev := simgpu.New()
	cfg := testConfig()
	cfg.FramesInFlight = 0
	_, err := NewEngine(context.Background(), dev, newTestWindow(), PipelineFactoryFunc(dev.NewPipeline), drawQuad, cfg, testLogger())
	c.Assert(err, qt.ErrorIs, ErrInvalidConfiguration)
	c.Assert(dev.LiveTotal(), qt.Equals, 0)
}

func TestNewEngineFailureReleases(t *testing.T) {
	c := qt.New(t)
	dev := simgpu.New()
	dev.FailAfter("NewPipeline", 0, errBoom)
	_, err := NewEngine(context.Background(), dev, newTestWindow(), PipelineFactoryFunc(dev.NewPipeline), drawQuad, testConfig(), testLogger())
	c.Assert(err, qt.ErrorIs, errBoom)
	c.Assert(dev.LiveTotal(), qt.Equals, 0)
}

func TestEngineRun(t *testing.T) {
	c := qt.New(t)
	dev := simgpu.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames := 0
	draw := func(cb gfx.CmdBuffer, p gfx.Pipeline, extent gfx.Extent2D) {
		frames++
		if frames == 5 {
			cancel()
		}
		drawQuad(cb, p, extent)
	}
	e, err := NewEngine(ctx, dev, newTestWindow(), PipelineFactoryFunc(dev.NewPipeline), draw, testConfig(), testLogger())
	c.Assert(err, qt.IsNil)

	err = e.Run(ctx, nil, nil)
	c.Assert(err, qt.ErrorIs, context.Canceled)
	c.Assert(dev.Presented, qt.HasLen, 5)
	c.Assert(e.Destroy(), qt.IsNil)
}

func TestEngineRunBefore(t *testing.T) {
	c := qt.New(t)
	dev := simgpu.New()
	e := newTestEngine(c, dev, newTestWindow(), testConfig())
	defer e.Destroy()

	tick := make(chan time.Time, 3)
	for i := 0; i < 3; i++ {
		tick <- time.Time{}
	}
	calls := 0
	err := e.Run(context.Background(), tick, func() error {
		calls++
		if calls == 3 {
			return errBoom
		}
		return nil
	})
	c.Assert(err, qt.ErrorIs, errBoom)
	c.Assert(calls, qt.Equals, 3)
	c.Assert(dev.Presented, qt.HasLen, 2)

	// cancelling from before skips the frame
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tick <- time.Time{}
	err = e.Run(ctx, tick, func() error {
		cancel()
		return nil
	})
	c.Assert(err, qt.ErrorIs, context.Canceled)
	c.Assert(dev.Presented, qt.HasLen, 2)
}
