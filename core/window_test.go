// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/devblok/koru/gfx"
	"github.com/devblok/koru/gfx/simgpu"
)

// testWindow is a scripted Window. Extents are returned in order, the last
// one repeating. A resize stays signaled until it is read, like the
// flag a real window latches from its event queue.
type testWindow struct {
	surface gfx.Surface
	extents []gfx.Extent2D
	resized bool

	polls  int
	waits  int
	onPoll func(polls int)
}

func newTestWindow(extents ...gfx.Extent2D) *testWindow {
	if len(extents) == 0 {
		extents = []gfx.Extent2D{{Width: 800, Height: 600}}
	}
	return &testWindow{
		surface: &simgpu.Surface{Name: "test"},
		extents: extents,
	}
}

func (w *testWindow) Extent() gfx.Extent2D {
	w.polls++
	if w.onPoll != nil {
		w.onPoll(w.polls)
	}
	e := w.extents[0]
	if len(w.extents) > 1 {
		w.extents = w.extents[1:]
	}
	return e
}

func (w *testWindow) Surface() gfx.Surface {
	return w.surface
}

func (w *testWindow) WaitEvents() {
	w.waits++
}

func (w *testWindow) ResizeSignaled() bool {
	resized := w.resized
	w.resized = false
	return resized
}

// resize changes the extent and signals it until the next read.
func (w *testWindow) resize(extent gfx.Extent2D) {
	w.extents = []gfx.Extent2D{extent}
	w.resized = true
}
