// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

// Surface is an opaque handle to a window surface, owned by the windowing layer.
type Surface interface{}

// Image is a GPU image. Images owned by a swapchain release nothing.
type Image interface {
	Releasable
}

// ImageView is a view into an Image.
type ImageView interface {
	Releasable
}

// Memory is a device memory allocation.
type Memory interface {
	Releasable
}

// Buffer is a GPU buffer together with its memory.
type Buffer interface {
	Releasable
}

// BufferUsage is what a Buffer is bound as.
type BufferUsage int

// Buffer usages.
const (
	BufferUsageVertex BufferUsage = iota + 1
)

// RenderPass is a compiled render target description.
type RenderPass interface {
	Releasable

	// Desc returns the description the render pass was created from.
	Desc() RenderPassDesc
}

// Framebuffer binds image views to a RenderPass.
type Framebuffer interface {
	Releasable
}

// Fence is a GPU to CPU signal. The CPU can wait for it.
type Fence interface {
	Releasable
}

// Semaphore is a GPU to GPU signal. The CPU never waits for it.
type Semaphore interface {
	Releasable
}

// Pipeline is an executable graphics pipeline, built by the shading collaborator.
type Pipeline interface {
	Releasable
}

// Swapchain is the driver-level set of presentable images.
type Swapchain interface {
	Releasable

	// Images returns the presentable images, in driver index order.
	Images() []Image
}

// SwapchainInfo is what a driver needs to create a Swapchain.
type SwapchainInfo struct {
	Surface       Surface
	MinImageCount uint32
	Format        SurfaceFormat
	Extent        Extent2D
	PresentMode   PresentMode

	// Old is handed over to the new swapchain when not nil.
	// It stays valid and still has to be released by its owner.
	Old Swapchain
}

// ImageInfo describes a 2D image owned by the application.
type ImageInfo struct {
	Format Format
	Extent Extent2D
	Depth  bool
}

// CmdBuffer is a command buffer. Commands are recorded between Begin and End.
// Render pass commands must be enclosed in BeginRenderPass and EndRenderPass.
type CmdBuffer interface {

	// Begin resets the command buffer and starts recording.
	Begin() error

	// BeginRenderPass starts rp on fb, clearing attachments with clear.
	BeginRenderPass(rp RenderPass, fb Framebuffer, area Extent2D, clear ClearValues)

	// SetViewport sets the dynamic viewport.
	SetViewport(vp Viewport)

	// SetScissor sets the dynamic scissor rectangle.
	SetScissor(area Extent2D)

	// BindPipeline binds a graphics pipeline.
	BindPipeline(p Pipeline)

	// BindVertexBuffers binds buffers to consecutive vertex input
	// bindings starting at first, each from its start.
	BindVertexBuffers(first uint32, buffers ...Buffer)

	// PushConstants updates push constants of the bound pipeline.
	PushConstants(p Pipeline, offset uint32, data []byte)

	// Draw records a non-indexed draw.
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)

	// EndRenderPass ends the current render pass.
	EndRenderPass()

	// End finishes recording.
	End() error
}

// Device is the driver abstraction the presentation core runs on.
// A Device is assumed to be fully initialized, with graphics and present
// queues resolved. It is not safe for concurrent use.
type Device interface {

	// SurfaceSupport queries capabilities, formats and present modes of s.
	SurfaceSupport(s Surface) (SurfaceSupport, error)

	// NewSwapchain creates a swapchain.
	NewSwapchain(info SwapchainInfo) (Swapchain, error)

	// NewImage creates an image without backing memory.
	NewImage(info ImageInfo) (Image, error)

	// AllocateImageMemory allocates device local memory for img and binds it.
	AllocateImageMemory(img Image) (Memory, error)

	// NewImageView creates a 2D view of img.
	NewImageView(img Image, format Format, aspect Aspect) (ImageView, error)

	// DepthFormat returns the first of candidates usable as an optimal
	// tiling depth attachment.
	DepthFormat(candidates []Format) (Format, error)

	// NewRenderPass creates a render pass.
	NewRenderPass(desc RenderPassDesc) (RenderPass, error)

	// NewFramebuffer creates a framebuffer for rp with the given attachments.
	NewFramebuffer(rp RenderPass, attachments []ImageView, extent Extent2D) (Framebuffer, error)

	// NewBuffer creates a host visible, coherent buffer holding a copy of data.
	NewBuffer(usage BufferUsage, data []byte) (Buffer, error)

	// NewFence creates a fence, optionally already signaled.
	NewFence(signaled bool) (Fence, error)

	// NewSemaphore creates a semaphore.
	NewSemaphore() (Semaphore, error)

	// WaitForFences blocks until all fences are signaled.
	WaitForFences(fences ...Fence) error

	// ResetFences sets fences back to unsignaled.
	ResetFences(fences ...Fence) error

	// AcquireNextImage acquires the next presentable image of sc,
	// signaling signal once the image can be written to.
	AcquireNextImage(sc Swapchain, signal Semaphore) (uint32, Result, error)

	// Submit submits cb to the graphics queue. Execution waits for wait,
	// and signals both signal and fence on completion.
	Submit(cb CmdBuffer, wait, signal Semaphore, fence Fence) error

	// Present queues image index of sc for presentation once wait is signaled.
	Present(sc Swapchain, index uint32, wait Semaphore) (Result, error)

	// AllocateCmdBuffers allocates primary command buffers from the device pool.
	AllocateCmdBuffers(count int) ([]CmdBuffer, error)

	// FreeCmdBuffers returns command buffers to the pool.
	FreeCmdBuffers(cbs []CmdBuffer)

	// WaitIdle blocks until the device finished all submitted work.
	WaitIdle() error
}
