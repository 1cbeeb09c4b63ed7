// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/koru/gfx"
	"github.com/devblok/koru/gfx/simgpu"
)

var testSurface = &simgpu.Surface{Name: "test"}

func TestChooseSurfaceFormat(t *testing.T) {
	c := qt.New(t)
	unorm := gfx.SurfaceFormat{Format: gfx.FormatR8G8B8A8Unorm, ColorSpace: gfx.ColorSpaceSrgbNonlinear}
	other := gfx.SurfaceFormat{Format: gfx.FormatB8G8R8A8Srgb, ColorSpace: gfx.ColorSpaceOther}

	c.Assert(chooseSurfaceFormat([]gfx.SurfaceFormat{unorm, preferredSurfaceFormat}), qt.Equals, preferredSurfaceFormat)
	c.Assert(chooseSurfaceFormat([]gfx.SurfaceFormat{other, unorm}), qt.Equals, other)
	c.Assert(chooseSurfaceFormat([]gfx.SurfaceFormat{unorm}), qt.Equals, unorm)
}

func TestChoosePresentMode(t *testing.T) {
	c := qt.New(t)
	c.Assert(choosePresentMode([]gfx.PresentMode{gfx.PresentModeFifo, gfx.PresentModeMailbox}), qt.Equals, gfx.PresentModeMailbox)
	c.Assert(choosePresentMode([]gfx.PresentMode{gfx.PresentModeImmediate, gfx.PresentModeFifoRelaxed}), qt.Equals, gfx.PresentModeFifo)
}

func TestChooseExtent(t *testing.T) {
	c := qt.New(t)
	caps := simgpu.DefaultSupport().Capabilities
	caps.MinImageExtent = gfx.Extent2D{Width: 100, Height: 100}
	caps.MaxImageExtent = gfx.Extent2D{Width: 1920, Height: 1080}

	c.Assert(chooseExtent(caps, gfx.Extent2D{Width: 800, Height: 600}), qt.Equals, gfx.Extent2D{Width: 800, Height: 600})
	c.Assert(chooseExtent(caps, gfx.Extent2D{Width: 4000, Height: 50}), qt.Equals, gfx.Extent2D{Width: 1920, Height: 100})

	caps.CurrentExtent = gfx.Extent2D{Width: 1280, Height: 720}
	c.Assert(chooseExtent(caps, gfx.Extent2D{Width: 800, Height: 600}), qt.Equals, gfx.Extent2D{Width: 1280, Height: 720})
}

func TestChooseImageCount(t *testing.T) {
	c := qt.New(t)
	tests := []struct {
		min, max uint32
		want     uint32
	}{
		{min: 2, max: 8, want: 3},
		{min: 3, max: 3, want: 3},
		{min: 1, max: 0, want: 2},
		{min: 0, max: 0, want: 1},
	}
	for _, test := range tests {
		caps := gfx.SurfaceCapabilities{MinImageCount: test.min, MaxImageCount: test.max}
		c.Assert(chooseImageCount(caps), qt.Equals, test.want, qt.Commentf("min %d max %d", test.min, test.max))
	}
}

func TestNewSwapchain(t *testing.T) {
	c := qt.New(t)
	dev := simgpu.New()

	sc, err := NewSwapchain(dev, testSurface, gfx.Extent2D{Width: 800, Height: 600}, nil, testLogger())
	c.Assert(err, qt.IsNil)

	c.Assert(sc.ImageCount(), qt.Equals, 3)
	c.Assert(sc.Format(), qt.Equals, preferredSurfaceFormat)
	c.Assert(sc.PresentMode(), qt.Equals, gfx.PresentModeMailbox)
	c.Assert(sc.DepthFormat(), qt.Equals, gfx.FormatD32Sfloat)
	c.Assert(sc.Width(), qt.Equals, uint32(800))
	c.Assert(sc.Height(), qt.Equals, uint32(600))
	c.Assert(sc.AspectRatio(), qt.Equals, float32(800)/float32(600))
	c.Assert(sc.RenderPass().Desc(), qt.DeepEquals, gfx.PresentRenderPass(gfx.FormatB8G8R8A8Srgb, gfx.FormatD32Sfloat))
	c.Assert(dev.Swapchains[0].MinImageCount, qt.Equals, uint32(3))
	c.Assert(dev.Swapchains[0].Old, qt.IsNil)
	c.Assert(dev.Violations, qt.HasLen, 0)

	sc.Release()
	c.Assert(dev.LiveTotal(), qt.Equals, 0)
}

func TestSwapchainResourceParity(t *testing.T) {
	c := qt.New(t)
	tests := []struct {
		min, max uint32
	}{
		{min: 1, max: 0},
		{min: 2, max: 8},
		{min: 3, max: 3},
		{min: 5, max: 16},
	}
	for _, test := range tests {
		dev := simgpu.New()
		dev.Support.Capabilities.MinImageCount = test.min
		dev.Support.Capabilities.MaxImageCount = test.max

		sc, err := NewSwapchain(dev, testSurface, gfx.Extent2D{Width: 640, Height: 480}, nil, testLogger())
		c.Assert(err, qt.IsNil)

		want := int(chooseImageCount(dev.Support.Capabilities))
		c.Assert(sc.ImageCount(), qt.Equals, want)
		c.Assert(sc.FramebufferCount(), qt.Equals, want)
		c.Assert(sc.DepthResourceCount(), qt.Equals, want)
		c.Assert(dev.Violations, qt.HasLen, 0)

		rebuilt, err := NewSwapchain(dev, testSurface, gfx.Extent2D{Width: 320, Height: 200}, sc, testLogger())
		c.Assert(err, qt.IsNil)
		sc.Release()
		c.Assert(rebuilt.ImageCount(), qt.Equals, rebuilt.FramebufferCount())
		c.Assert(rebuilt.ImageCount(), qt.Equals, rebuilt.DepthResourceCount())
		rebuilt.Release()
		c.Assert(dev.LiveTotal(), qt.Equals, 0)
	}
}

func TestSwapchainHandover(t *testing.T) {
	c := qt.New(t)
	dev := simgpu.New()

	first, err := NewSwapchain(dev, testSurface, gfx.Extent2D{Width: 800, Height: 600}, nil, testLogger())
	c.Assert(err, qt.IsNil)
	second, err := NewSwapchain(dev, testSurface, gfx.Extent2D{Width: 1024, Height: 768}, first, testLogger())
	c.Assert(err, qt.IsNil)

	c.Assert(dev.Swapchains[1].Old, qt.Equals, first.Handle())
	// the previous swapchain is left intact
	c.Assert(first.ImageCount(), qt.Equals, 3)
	c.Assert(first.Extent(), qt.Equals, gfx.Extent2D{Width: 800, Height: 600})

	first.Release()
	second.Release()
	c.Assert(dev.LiveTotal(), qt.Equals, 0)
	c.Assert(dev.Violations, qt.HasLen, 0)
}

func TestSwapchainDegenerateExtent(t *testing.T) {
	c := qt.New(t)
	tests := []struct {
		about     string
		requested gfx.Extent2D
		current   gfx.Extent2D
	}{{
		about:     "minimized",
		requested: gfx.Extent2D{},
		current:   gfx.Extent2D{Width: gfx.UndefinedExtent, Height: gfx.UndefinedExtent},
	}, {
		about:     "zero width",
		requested: gfx.Extent2D{Width: 0, Height: 600},
		current:   gfx.Extent2D{Width: gfx.UndefinedExtent, Height: gfx.UndefinedExtent},
	}, {
		about:     "zero height",
		requested: gfx.Extent2D{Width: 800, Height: 0},
		current:   gfx.Extent2D{Width: gfx.UndefinedExtent, Height: gfx.UndefinedExtent},
	}, {
		about:     "fixed by surface",
		requested: gfx.Extent2D{Width: 800, Height: 600},
		current:   gfx.Extent2D{},
	}}
	for _, test := range tests {
		c.Run(test.about, func(c *qt.C) {
			dev := simgpu.New()
			dev.Support.Capabilities.MinImageExtent = gfx.Extent2D{}
			dev.Support.Capabilities.CurrentExtent = test.current

			sc, err := NewSwapchain(dev, testSurface, test.requested, nil, testLogger())
			c.Assert(err, qt.ErrorIs, ErrDegenerateExtent)
			c.Assert(sc, qt.IsNil)
			c.Assert(dev.Calls("NewSwapchain"), qt.Equals, 0)
			c.Assert(dev.LiveTotal(), qt.Equals, 0)
		})
	}
}

func TestSwapchainConstructionFailures(t *testing.T) {
	c := qt.New(t)
	tests := []struct {
		about string
		op    string
		after int
		want  error
	}{{
		about: "capabilities",
		op:    "SurfaceSupport",
		want:  ErrSurfaceUnavailable,
	}, {
		about: "swapchain",
		op:    "NewSwapchain",
		want:  ErrAttachmentCreation,
	}, {
		about: "second image view",
		op:    "NewImageView",
		after: 1,
		want:  ErrAttachmentCreation,
	}, {
		about: "render pass",
		op:    "NewRenderPass",
		want:  ErrAttachmentCreation,
	}, {
		about: "depth memory",
		op:    "AllocateImageMemory",
		after: 2,
		want:  ErrAttachmentCreation,
	}, {
		about: "last framebuffer",
		op:    "NewFramebuffer",
		after: 2,
		want:  ErrAttachmentCreation,
	}}
	for _, test := range tests {
		c.Run(test.about, func(c *qt.C) {
			dev := simgpu.New()
			dev.FailAfter(test.op, test.after, errBoom)

			sc, err := NewSwapchain(dev, testSurface, gfx.Extent2D{Width: 800, Height: 600}, nil, testLogger())
			c.Assert(sc, qt.IsNil)
			c.Assert(err, qt.ErrorIs, test.want)
			c.Assert(err, qt.ErrorIs, errBoom)
			c.Assert(dev.LiveTotal(), qt.Equals, 0)
			c.Assert(dev.Violations, qt.HasLen, 0)
		})
	}
}

func TestSwapchainUnsupportedSurface(t *testing.T) {
	c := qt.New(t)

	dev := simgpu.New()
	_, err := NewSwapchain(dev, nil, gfx.Extent2D{Width: 800, Height: 600}, nil, testLogger())
	c.Assert(err, qt.ErrorIs, ErrSurfaceUnavailable)
	c.Assert(err, qt.ErrorIs, gfx.ErrSurfaceLost)

	dev.Support.PresentModes = nil
	_, err = NewSwapchain(dev, testSurface, gfx.Extent2D{Width: 800, Height: 600}, nil, testLogger())
	c.Assert(err, qt.ErrorIs, ErrSurfaceUnavailable)

	dev = simgpu.New()
	dev.DepthFormats = []gfx.Format{gfx.FormatD16Unorm}
	_, err = NewSwapchain(dev, testSurface, gfx.Extent2D{Width: 800, Height: 600}, nil, testLogger())
	c.Assert(err, qt.ErrorIs, ErrAttachmentCreation)
	c.Assert(err, qt.ErrorIs, gfx.ErrUnsupported)
	c.Assert(dev.LiveTotal(), qt.Equals, 0)
}

func TestSwapchainDepthFormatFallback(t *testing.T) {
	c := qt.New(t)
	dev := simgpu.New()
	dev.DepthFormats = []gfx.Format{gfx.FormatD24UnormS8Uint, gfx.FormatD16Unorm}

	sc, err := NewSwapchain(dev, testSurface, gfx.Extent2D{Width: 800, Height: 600}, nil, testLogger())
	c.Assert(err, qt.IsNil)
	c.Assert(sc.DepthFormat(), qt.Equals, gfx.FormatD24UnormS8Uint)
	sc.Release()
}
