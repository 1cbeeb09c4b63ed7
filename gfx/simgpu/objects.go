// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package simgpu

import (
	"fmt"

	"github.com/devblok/koru/gfx"
)

// object tracks the lifetime of a simulated resource.
type object struct {
	device   *Device
	kind     string
	id       int
	released bool
}

func (d *Device) newObject(kind string) object {
	d.live[kind]++
	return object{
		device: d,
		kind:   kind,
		id:     d.id(),
	}
}

func (o *object) Release() {
	if o.released {
		o.device.violation("%s %d released twice", o.kind, o.id)
		return
	}
	o.released = true
	o.device.live[o.kind]--
}

type swapchain struct {
	object
	info     gfx.SwapchainInfo
	images   []*image
	acquired int
	retired  bool
}

func (s *swapchain) Images() []gfx.Image {
	images := make([]gfx.Image, len(s.images))
	for i, img := range s.images {
		images[i] = img
	}
	return images
}

// image is either owned by a swapchain, in which case Release does nothing,
// or created by the application.
type image struct {
	object
	swapchain *swapchain
	index     int
	extent    gfx.Extent2D
	bound     bool
}

func (i *image) Release() {
	if i.swapchain != nil {
		return
	}
	i.object.Release()
}

type imageView struct {
	object
	image  *image
	format gfx.Format
	aspect gfx.Aspect
}

type renderPass struct {
	object
	desc gfx.RenderPassDesc
}

func (r *renderPass) Desc() gfx.RenderPassDesc {
	return r.desc
}

type framebuffer struct {
	object
	renderPass *renderPass
	image      *image
	extent     gfx.Extent2D
}

type fence struct {
	object
	signaled bool
}

func (f *fence) Release() {
	if f.device.isPending(f) {
		f.device.violation("fence %d released while in flight", f.id)
	}
	delete(f.device.fences, f)
	f.object.Release()
}

type semaphore struct {
	object
	signaled bool
}

// Pipeline is a simulated pipeline.
type Pipeline struct {
	object
	RenderPass gfx.RenderPass
	Extent     gfx.Extent2D
}

type buffer struct {
	object
	usage gfx.BufferUsage
	data  []byte
}

func (b *buffer) Release() {
	if b.device.bufferPending(b) {
		b.device.violation("buffer %d released while in flight", b.id)
	}
	b.object.Release()
}

// BufferData returns a copy of what b was created with. It panics if b was
// not created by a simgpu Device.
func BufferData(b gfx.Buffer) []byte {
	return append([]byte(nil), b.(*buffer).data...)
}

// cmdBuffer keeps the commands recorded since Begin.
type cmdBuffer struct {
	id        int
	device    *Device
	recording bool
	inPass    bool
	freed     bool
	image     *image
	clear     gfx.ClearValues
	buffers   []*buffer
	commands  []string
}

// Commands returns the names of the commands recorded into cb since its
// last Begin. It panics if cb was not allocated by a simgpu Device.
func Commands(cb gfx.CmdBuffer) []string {
	return cb.(*cmdBuffer).commands
}

// ClearValues returns what the last render pass recorded into cb clears with.
func ClearValues(cb gfx.CmdBuffer) gfx.ClearValues {
	return cb.(*cmdBuffer).clear
}

func (c *cmdBuffer) record(cmd string) {
	if !c.recording {
		c.device.violation("%s recorded outside of Begin/End on command buffer %d", cmd, c.id)
	}
	c.commands = append(c.commands, cmd)
}

func (c *cmdBuffer) Begin() error {
	if c.freed {
		return fmt.Errorf("simgpu: begin of freed command buffer %d", c.id)
	}
	if c.device.cmdPending(c) {
		c.device.violation("command buffer %d reset while in flight", c.id)
	}
	c.recording = true
	c.inPass = false
	c.image = nil
	c.buffers = nil
	c.commands = c.commands[:0]
	return nil
}

func (c *cmdBuffer) BeginRenderPass(rp gfx.RenderPass, fb gfx.Framebuffer, area gfx.Extent2D, clear gfx.ClearValues) {
	c.record("BeginRenderPass")
	f := fb.(*framebuffer)
	if f.released {
		c.device.violation("render pass on released framebuffer %d", f.id)
	}
	if f.renderPass != rp.(*renderPass) {
		c.device.violation("framebuffer %d used with a render pass it was not created for", f.id)
	}
	if area != f.extent {
		c.device.violation("render area %v differs from framebuffer extent %v", area, f.extent)
	}
	if c.device.imagePending(f.image) {
		c.device.violation("image %d recorded while a frame rendering to it is in flight", f.image.index)
	}
	c.inPass = true
	c.image = f.image
	c.clear = clear
}

func (c *cmdBuffer) SetViewport(vp gfx.Viewport) {
	c.record("SetViewport")
}

func (c *cmdBuffer) SetScissor(area gfx.Extent2D) {
	c.record("SetScissor")
}

func (c *cmdBuffer) BindPipeline(p gfx.Pipeline) {
	c.record("BindPipeline")
	if pl, ok := p.(*Pipeline); ok && pl.released {
		c.device.violation("bind of released pipeline %d", pl.id)
	}
}

func (c *cmdBuffer) PushConstants(p gfx.Pipeline, offset uint32, data []byte) {
	c.record("PushConstants")
}

func (c *cmdBuffer) BindVertexBuffers(first uint32, buffers ...gfx.Buffer) {
	c.record("BindVertexBuffers")
	for _, b := range buffers {
		buf := b.(*buffer)
		if buf.released {
			c.device.violation("bind of released buffer %d", buf.id)
		}
		if buf.usage != gfx.BufferUsageVertex {
			c.device.violation("buffer %d bound as vertex buffer with usage %d", buf.id, buf.usage)
		}
		c.buffers = append(c.buffers, buf)
	}
}

func (c *cmdBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	c.record("Draw")
	if !c.inPass {
		c.device.violation("draw outside of render pass on command buffer %d", c.id)
	}
}

func (c *cmdBuffer) EndRenderPass() {
	c.record("EndRenderPass")
	c.inPass = false
}

func (c *cmdBuffer) End() error {
	if !c.recording {
		return fmt.Errorf("simgpu: end of command buffer %d not recording", c.id)
	}
	if c.inPass {
		return fmt.Errorf("simgpu: end of command buffer %d inside render pass", c.id)
	}
	c.recording = false
	return nil
}
