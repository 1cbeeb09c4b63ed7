// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package window is the SDL2 window koru presents to.
package window

import (
	"errors"

	"github.com/devblok/koru/gfx"
	"github.com/devblok/koru/gfx/vkr"
	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
)

// Window is a resizable SDL2 window with a Vulkan surface.
// All methods must be called from the thread SDL was initialised on.
type Window struct {
	window  *sdl.Window
	surface vk.Surface
	logger  log.FieldLogger

	resized bool
	closed  bool
}

// Init initialises SDL video and loads the Vulkan library through it.
// The returned function undoes both.
func Init() (func(), error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, err
	}
	if err := sdl.VulkanLoadLibrary(""); err != nil {
		sdl.Quit()
		return nil, err
	}
	return func() {
		sdl.VulkanUnloadLibrary()
		sdl.Quit()
	}, nil
}

// New creates a window with a drawable area of width by height.
func New(title string, width, height uint32, logger log.FieldLogger) (*Window, error) {
	window, err := sdl.CreateWindow(title,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(width),
		int32(height),
		sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return nil, err
	}
	return &Window{
		window:  window,
		surface: vk.NullSurface,
		logger:  logger.WithField("component", "window"),
	}, nil
}

// InstanceExtensions returns the instance extensions SDL needs to present.
func (w *Window) InstanceExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

// CreateSurface creates the Vulkan surface of the window.
func (w *Window) CreateSurface(instance *vkr.Instance) (vk.Surface, error) {
	ptr, err := w.window.VulkanCreateSurface(instance.Handle())
	if err != nil {
		return vk.NullSurface, err
	}
	if ptr == nil {
		return vk.NullSurface, errors.New("sdl.VulkanCreateSurface(): no surface")
	}
	w.surface = vkr.SurfaceFromPointer(ptr)
	return w.surface, nil
}

// Extent implements core.Window. A minimized window has a zero extent.
func (w *Window) Extent() gfx.Extent2D {
	if w.window.GetFlags()&sdl.WINDOW_MINIMIZED != 0 {
		return gfx.Extent2D{}
	}
	width, height := w.window.VulkanGetDrawableSize()
	return extentOf(width, height)
}

func extentOf(width, height int32) gfx.Extent2D {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return gfx.Extent2D{Width: uint32(width), Height: uint32(height)}
}

// Surface implements core.Window.
func (w *Window) Surface() gfx.Surface {
	return w.surface
}

// WaitEvents implements core.Window.
func (w *Window) WaitEvents() {
	w.handleEvent(sdl.WaitEvent())
	w.PollEvents()
}

// PollEvents handles all pending events without blocking.
func (w *Window) PollEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		w.handleEvent(event)
	}
}

// ResizeSignaled implements core.Window.
func (w *Window) ResizeSignaled() bool {
	resized := w.resized
	w.resized = false
	return resized
}

// ShouldClose reports whether the window was asked to close.
func (w *Window) ShouldClose() bool {
	return w.closed
}

func (w *Window) handleEvent(event sdl.Event) {
	switch et := event.(type) {
	case *sdl.QuitEvent:
		w.closed = true
	case *sdl.KeyboardEvent:
		if et.Keysym.Sym == sdl.K_ESCAPE {
			w.closed = true
		}
	case *sdl.WindowEvent:
		switch et.Event {
		case sdl.WINDOWEVENT_SIZE_CHANGED,
			sdl.WINDOWEVENT_RESIZED,
			sdl.WINDOWEVENT_MINIMIZED,
			sdl.WINDOWEVENT_RESTORED,
			sdl.WINDOWEVENT_MAXIMIZED:
			if w.logger != nil {
				w.logger.WithField("event", et.Event).Debug("window resized")
			}
			w.resized = true
		case sdl.WINDOWEVENT_CLOSE:
			w.closed = true
		}
	}
}

// Destroy destroys the surface and the window.
func (w *Window) Destroy(instance *vkr.Instance) {
	if w.surface != vk.NullSurface {
		instance.DestroySurface(w.surface)
		w.surface = vk.NullSurface
	}
	w.window.Destroy()
}
