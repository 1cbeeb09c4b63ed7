// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"

	"github.com/devblok/koru/gfx"
	log "github.com/sirupsen/logrus"
)

// preferredSurfaceFormat is picked when the surface offers it.
var preferredSurfaceFormat = gfx.SurfaceFormat{
	Format:     gfx.FormatB8G8R8A8Srgb,
	ColorSpace: gfx.ColorSpaceSrgbNonlinear,
}

// depthResource is the depth attachment paired with one presentable image.
type depthResource struct {
	image  gfx.Image
	memory gfx.Memory
	view   gfx.ImageView
}

// Swapchain is the set of presentable images of a surface together with
// everything sized from them: image views, the render pass, one depth
// resource and one framebuffer per image. It is never modified after
// construction, a resized surface gets a new Swapchain.
type Swapchain struct {
	device gfx.Device
	logger log.FieldLogger

	swapchain    gfx.Swapchain
	images       []gfx.Image
	imageViews   []gfx.ImageView
	renderPass   gfx.RenderPass
	depth        []depthResource
	framebuffers []gfx.Framebuffer

	format      gfx.SurfaceFormat
	depthFormat gfx.Format
	presentMode gfx.PresentMode
	extent      gfx.Extent2D

	resources releaser
}

// NewSwapchain negotiates a swapchain for surface and creates all attachments.
// The requested extent is only used when the surface does not dictate one.
// When previous is not nil its driver swapchain is handed over to the new one,
// previous is left intact and still has to be released by the caller.
// Everything created before a failure is released before returning.
func NewSwapchain(device gfx.Device, surface gfx.Surface, requested gfx.Extent2D, previous *Swapchain, logger log.FieldLogger) (sc *Swapchain, err error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	built := &Swapchain{
		device: device,
		logger: logger.WithField("component", "swapchain"),
	}
	defer func() {
		if err != nil {
			built.resources.release()
			sc = nil
		}
	}()
	sc = built

	support, err := device.SurfaceSupport(surface)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSurfaceUnavailable, err)
	}
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		return nil, fmt.Errorf("%w: surface reports %d formats and %d present modes",
			ErrSurfaceUnavailable, len(support.Formats), len(support.PresentModes))
	}

	sc.format = chooseSurfaceFormat(support.Formats)
	sc.presentMode = choosePresentMode(support.PresentModes)
	sc.extent = chooseExtent(support.Capabilities, requested)
	if sc.extent.Degenerate() {
		return nil, fmt.Errorf("%w: %dx%d", ErrDegenerateExtent, sc.extent.Width, sc.extent.Height)
	}

	imageCount := chooseImageCount(support.Capabilities)
	if imageCount == 0 {
		return nil, ErrNoImageAvailable
	}

	info := gfx.SwapchainInfo{
		Surface:       surface,
		MinImageCount: imageCount,
		Format:        sc.format,
		Extent:        sc.extent,
		PresentMode:   sc.presentMode,
	}
	if previous != nil {
		info.Old = previous.swapchain
	}

	if err := sc.createSwapchain(info); err != nil {
		return nil, err
	}
	if err := sc.createImageViews(); err != nil {
		return nil, err
	}
	if err := sc.createRenderPass(); err != nil {
		return nil, err
	}
	if err := sc.createDepthResources(); err != nil {
		return nil, err
	}
	if err := sc.createFramebuffers(); err != nil {
		return nil, err
	}

	sc.logger.WithFields(log.Fields{
		"images":  len(sc.images),
		"extent":  fmt.Sprintf("%dx%d", sc.extent.Width, sc.extent.Height),
		"format":  sc.format.Format,
		"depth":   sc.depthFormat,
		"present": sc.presentMode,
	}).Info("swapchain created")

	return sc, nil
}

func chooseSurfaceFormat(formats []gfx.SurfaceFormat) gfx.SurfaceFormat {
	for _, f := range formats {
		if f == preferredSurfaceFormat {
			return f
		}
	}
	return formats[0]
}

func choosePresentMode(modes []gfx.PresentMode) gfx.PresentMode {
	for _, m := range modes {
		if m == gfx.PresentModeMailbox {
			return m
		}
	}
	// FIFO support is mandatory for every driver
	return gfx.PresentModeFifo
}

func chooseExtent(caps gfx.SurfaceCapabilities, requested gfx.Extent2D) gfx.Extent2D {
	if caps.CurrentExtent.Fixed() {
		return caps.CurrentExtent
	}
	return requested.Clamp(caps.MinImageExtent, caps.MaxImageExtent)
}

func chooseImageCount(caps gfx.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func (sc *Swapchain) createSwapchain(info gfx.SwapchainInfo) error {
	swapchain, err := sc.device.NewSwapchain(info)
	if err != nil {
		return fmt.Errorf("%w: swapchain: %w", ErrAttachmentCreation, err)
	}
	sc.resources.push(swapchain)
	sc.swapchain = swapchain

	sc.images = swapchain.Images()
	if len(sc.images) == 0 {
		return ErrNoImageAvailable
	}
	return nil
}

func (sc *Swapchain) createImageViews() error {
	sc.imageViews = make([]gfx.ImageView, 0, len(sc.images))
	for idx, image := range sc.images {
		view, err := sc.device.NewImageView(image, sc.format.Format, gfx.AspectColor)
		if err != nil {
			return fmt.Errorf("%w: image view %d: %w", ErrAttachmentCreation, idx, err)
		}
		sc.resources.push(view)
		sc.imageViews = append(sc.imageViews, view)
	}
	return nil
}

func (sc *Swapchain) createRenderPass() error {
	depthFormat, err := sc.device.DepthFormat(gfx.DepthFormatCandidates)
	if err != nil {
		return fmt.Errorf("%w: depth format: %w", ErrAttachmentCreation, err)
	}
	sc.depthFormat = depthFormat

	renderPass, err := sc.device.NewRenderPass(gfx.PresentRenderPass(sc.format.Format, depthFormat))
	if err != nil {
		return fmt.Errorf("%w: render pass: %w", ErrAttachmentCreation, err)
	}
	sc.resources.push(renderPass)
	sc.renderPass = renderPass
	return nil
}

func (sc *Swapchain) createDepthResources() error {
	sc.depth = make([]depthResource, 0, len(sc.images))
	for idx := range sc.images {
		image, err := sc.device.NewImage(gfx.ImageInfo{
			Format: sc.depthFormat,
			Extent: sc.extent,
			Depth:  true,
		})
		if err != nil {
			return fmt.Errorf("%w: depth image %d: %w", ErrAttachmentCreation, idx, err)
		}
		sc.resources.push(image)

		memory, err := sc.device.AllocateImageMemory(image)
		if err != nil {
			return fmt.Errorf("%w: depth memory %d: %w", ErrAttachmentCreation, idx, err)
		}
		sc.resources.push(memory)

		view, err := sc.device.NewImageView(image, sc.depthFormat, gfx.AspectDepth)
		if err != nil {
			return fmt.Errorf("%w: depth view %d: %w", ErrAttachmentCreation, idx, err)
		}
		sc.resources.push(view)

		sc.depth = append(sc.depth, depthResource{
			image:  image,
			memory: memory,
			view:   view,
		})
	}
	return nil
}

func (sc *Swapchain) createFramebuffers() error {
	sc.framebuffers = make([]gfx.Framebuffer, 0, len(sc.images))
	for idx, view := range sc.imageViews {
		attachments := []gfx.ImageView{
			view,
			sc.depth[idx].view,
		}
		framebuffer, err := sc.device.NewFramebuffer(sc.renderPass, attachments, sc.extent)
		if err != nil {
			return fmt.Errorf("%w: framebuffer %d: %w", ErrAttachmentCreation, idx, err)
		}
		sc.resources.push(framebuffer)
		sc.framebuffers = append(sc.framebuffers, framebuffer)
	}
	return nil
}

// AcquireNextImage waits until slot is no longer in flight, then acquires the
// next presentable image, signaling the slot's image acquired semaphore.
// On gfx.OutOfDate the returned index is not usable.
func (sc *Swapchain) AcquireNextImage(slot *FrameSlot) (uint32, gfx.Result, error) {
	if err := sc.device.WaitForFences(slot.inFlight); err != nil {
		return 0, gfx.OutOfDate, fmt.Errorf("waiting for frame slot %d: %w", slot.index, err)
	}

	index, result, err := sc.device.AcquireNextImage(sc.swapchain, slot.imageAvailable)
	if err != nil {
		return 0, gfx.OutOfDate, fmt.Errorf("acquiring next image: %w", err)
	}
	if result != gfx.OutOfDate && int(index) >= len(sc.images) {
		return 0, gfx.OutOfDate, fmt.Errorf("acquired image %d out of %d", index, len(sc.images))
	}
	return index, result, nil
}

// Submit submits cb, recorded against image index, using the current slot of
// fs. It first waits for any frame still rendering to the same image. Only a
// successful submission hands the image to the slot and advances fs.
func (sc *Swapchain) Submit(cb gfx.CmdBuffer, fs *FrameSync, index uint32) error {
	slot := fs.Current()
	if err := fs.WaitImage(index); err != nil {
		return err
	}
	if err := sc.device.ResetFences(slot.inFlight); err != nil {
		return fmt.Errorf("resetting frame slot %d: %w", slot.index, err)
	}
	if err := sc.device.Submit(cb, slot.imageAvailable, slot.renderFinished, slot.inFlight); err != nil {
		return fmt.Errorf("submitting image %d: %w", index, err)
	}
	fs.Claim(index, slot)
	fs.Advance()
	return nil
}

// Present queues image index for presentation once slot finished rendering.
func (sc *Swapchain) Present(index uint32, slot *FrameSlot) (gfx.Result, error) {
	result, err := sc.device.Present(sc.swapchain, index, slot.renderFinished)
	if err != nil {
		return result, fmt.Errorf("presenting image %d: %w", index, err)
	}
	return result, nil
}

// ImageCount returns the number of presentable images.
func (sc *Swapchain) ImageCount() int {
	return len(sc.images)
}

// FramebufferCount returns the number of framebuffers.
func (sc *Swapchain) FramebufferCount() int {
	return len(sc.framebuffers)
}

// DepthResourceCount returns the number of depth resources.
func (sc *Swapchain) DepthResourceCount() int {
	return len(sc.depth)
}

// Framebuffer returns the framebuffer of image index.
func (sc *Swapchain) Framebuffer(index int) gfx.Framebuffer {
	return sc.framebuffers[index]
}

// ImageView returns the color view of image index.
func (sc *Swapchain) ImageView(index int) gfx.ImageView {
	return sc.imageViews[index]
}

// RenderPass returns the render pass all framebuffers are compatible with.
func (sc *Swapchain) RenderPass() gfx.RenderPass {
	return sc.renderPass
}

// Extent returns the negotiated image extent.
func (sc *Swapchain) Extent() gfx.Extent2D {
	return sc.extent
}

// Width returns the image width.
func (sc *Swapchain) Width() uint32 {
	return sc.extent.Width
}

// Height returns the image height.
func (sc *Swapchain) Height() uint32 {
	return sc.extent.Height
}

// AspectRatio returns width over height.
func (sc *Swapchain) AspectRatio() float32 {
	return float32(sc.extent.Width) / float32(sc.extent.Height)
}

// Format returns the negotiated surface format.
func (sc *Swapchain) Format() gfx.SurfaceFormat {
	return sc.format
}

// DepthFormat returns the format of the depth attachments.
func (sc *Swapchain) DepthFormat() gfx.Format {
	return sc.depthFormat
}

// PresentMode returns the negotiated present mode.
func (sc *Swapchain) PresentMode() gfx.PresentMode {
	return sc.presentMode
}

// Handle returns the driver swapchain.
func (sc *Swapchain) Handle() gfx.Swapchain {
	return sc.swapchain
}

// Release destroys every resource of the swapchain in reverse creation order.
// The caller has to make sure the device no longer uses any of them.
func (sc *Swapchain) Release() {
	if sc == nil {
		return
	}
	sc.resources.release()
	sc.images = nil
	sc.imageViews = nil
	sc.depth = nil
	sc.framebuffers = nil
	sc.renderPass = nil
	sc.swapchain = nil
}
