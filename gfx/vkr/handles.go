// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/devblok/koru/gfx"
	vk "github.com/devblok/vulkan"
)

type swapchain struct {
	device vk.Device
	handle vk.Swapchain
	images []gfx.Image
}

func (s *swapchain) Images() []gfx.Image {
	return s.images
}

func (s *swapchain) Release() {
	vk.DestroySwapchain(s.device, s.handle, nil)
}

// image is either owned by the application or by a swapchain,
// only owned images are destroyed on Release.
type image struct {
	device vk.Device
	handle vk.Image
	owned  bool
}

func (i *image) Release() {
	if i.owned {
		vk.DestroyImage(i.device, i.handle, nil)
	}
}

type imageView struct {
	device vk.Device
	handle vk.ImageView
}

func (v *imageView) Release() {
	vk.DestroyImageView(v.device, v.handle, nil)
}

type renderPass struct {
	device vk.Device
	handle vk.RenderPass
	desc   gfx.RenderPassDesc
}

func (r *renderPass) Desc() gfx.RenderPassDesc {
	return r.desc
}

func (r *renderPass) Release() {
	vk.DestroyRenderPass(r.device, r.handle, nil)
}

type framebuffer struct {
	device vk.Device
	handle vk.Framebuffer
}

func (f *framebuffer) Release() {
	vk.DestroyFramebuffer(f.device, f.handle, nil)
}

// buffer owns the memory bound to it.
type buffer struct {
	device vk.Device
	handle vk.Buffer
	memory *Memory
}

func (b *buffer) Release() {
	vk.DestroyBuffer(b.device, b.handle, nil)
	b.memory.Release()
}

type fence struct {
	device vk.Device
	handle vk.Fence
}

func (f *fence) Release() {
	vk.DestroyFence(f.device, f.handle, nil)
}

type semaphore struct {
	device vk.Device
	handle vk.Semaphore
}

func (s *semaphore) Release() {
	vk.DestroySemaphore(s.device, s.handle, nil)
}

// Pipeline is a graphics pipeline together with its layout.
type Pipeline struct {
	device   vk.Device
	handle   vk.Pipeline
	layout   vk.PipelineLayout
	pcStages vk.ShaderStageFlags
}

// Handle returns the internal vk.Pipeline.
func (p *Pipeline) Handle() vk.Pipeline {
	return p.handle
}

// Release destroys the pipeline and its layout.
func (p *Pipeline) Release() {
	vk.DestroyPipeline(p.device, p.handle, nil)
	vk.DestroyPipelineLayout(p.device, p.layout, nil)
}

func fenceHandles(fences []gfx.Fence) []vk.Fence {
	handles := make([]vk.Fence, 0, len(fences))
	for _, f := range fences {
		handles = append(handles, f.(*fence).handle)
	}
	return handles
}

func semaphoreHandle(s gfx.Semaphore) vk.Semaphore {
	if s == nil {
		return vk.NullSemaphore
	}
	return s.(*semaphore).handle
}
