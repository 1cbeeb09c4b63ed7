// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"

	"github.com/devblok/koru/gfx"
)

// Recorder fills one command buffer per frame.
type Recorder struct {
	Clear gfx.ClearValues
}

// Record records a full frame for image index of sc into cb: it begins the
// render pass on the image's framebuffer, sets viewport and scissor to the
// swapchain extent, binds p and hands over to draw.
func (r Recorder) Record(cb gfx.CmdBuffer, sc *Swapchain, index uint32, p gfx.Pipeline, draw DrawFunc) error {
	if int(index) >= sc.FramebufferCount() {
		return fmt.Errorf("recording image %d of %d", index, sc.FramebufferCount())
	}

	if err := cb.Begin(); err != nil {
		return fmt.Errorf("beginning command buffer %d: %w", index, err)
	}

	extent := sc.Extent()
	cb.BeginRenderPass(sc.RenderPass(), sc.Framebuffer(int(index)), extent, r.Clear)
	cb.SetViewport(gfx.ViewportFor(extent))
	cb.SetScissor(extent)
	cb.BindPipeline(p)
	if draw != nil {
		draw(cb, p, extent)
	}
	cb.EndRenderPass()

	if err := cb.End(); err != nil {
		return fmt.Errorf("ending command buffer %d: %w", index, err)
	}
	return nil
}
