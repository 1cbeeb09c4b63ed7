// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"errors"
	"fmt"
	"math"

	"github.com/devblok/koru/gfx"
	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"
)

// Device is a Vulkan logical device with a graphics and a present queue.
// It implements gfx.Device.
type Device struct {
	instance *Instance
	logger   log.FieldLogger

	physical vk.PhysicalDevice
	logical  vk.Device

	graphicsQueueIndex uint32
	presentQueueIndex  uint32
	graphicsQueue      vk.Queue
	presentQueue       vk.Queue

	commandPool   vk.CommandPool
	pipelineCache vk.PipelineCache
	allocator     *MemoryAllocator

	// formats reported by the last SurfaceSupport query
	formats surfaceFormats
}

var _ gfx.Device = (*Device)(nil)

// NewDevice picks the first physical device that can render and present to
// surface, then creates a logical device with the given extensions enabled.
func NewDevice(instance *Instance, surface vk.Surface, extensions []string, logger log.FieldLogger) (*Device, error) {
	d := &Device{
		instance: instance,
		logger:   logger.WithField("component", "vkr"),
	}

	var found bool
	for _, pd := range instance.AvailableDevices() {
		graphics, present, ok := queueFamilies(pd, surface)
		if !ok {
			continue
		}
		d.physical = pd
		d.graphicsQueueIndex = graphics
		d.presentQueueIndex = present
		found = true
		break
	}
	if !found {
		return nil, errors.New("vulkan error: could not find a suitable queue family for the target Vulkan mode")
	}

	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: d.graphicsQueueIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1},
	}}
	if d.presentQueueIndex != d.graphicsQueueIndex {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: d.presentQueueIndex,
			QueueCount:       1,
			PQueuePriorities: []float32{1},
		})
	}

	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}
	if err := vk.Error(vk.CreateDevice(d.physical, &dci, nil, &d.logical)); err != nil {
		return nil, errors.New("vk.CreateDevice(): " + err.Error())
	}

	vk.GetDeviceQueue(d.logical, d.graphicsQueueIndex, 0, &d.graphicsQueue)
	vk.GetDeviceQueue(d.logical, d.presentQueueIndex, 0, &d.presentQueue)

	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.graphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if err := vk.Error(vk.CreateCommandPool(d.logical, &cpci, nil, &d.commandPool)); err != nil {
		vk.DestroyDevice(d.logical, nil)
		return nil, errors.New("vk.CreateCommandPool(): " + err.Error())
	}

	pcci := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}
	if err := vk.Error(vk.CreatePipelineCache(d.logical, &pcci, nil, &d.pipelineCache)); err != nil {
		vk.DestroyCommandPool(d.logical, d.commandPool, nil)
		vk.DestroyDevice(d.logical, nil)
		return nil, errors.New("vk.CreatePipelineCache(): " + err.Error())
	}

	d.allocator = NewMemoryAllocator(d.logical, d.physical)

	d.logger.WithFields(log.Fields{
		"graphics_queue": d.graphicsQueueIndex,
		"present_queue":  d.presentQueueIndex,
	}).Info("logical device created")
	return d, nil
}

// queueFamilies looks for a graphics queue family, preferring one that can
// also present, and falls back to a separate present family.
func queueFamilies(pd vk.PhysicalDevice, surface vk.Surface) (graphics, present uint32, ok bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	if count == 0 {
		return 0, 0, false
	}
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, families)

	var graphicsFound, presentFound bool
	for i := uint32(0); i < count; i++ {
		families[i].Deref()
		var supportsPresent vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(pd, i, surface, &supportsPresent)

		isGraphics := families[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0
		if isGraphics && supportsPresent.B() {
			return i, i, true
		}
		if isGraphics && !graphicsFound {
			graphics, graphicsFound = i, true
		}
		if supportsPresent.B() && !presentFound {
			present, presentFound = i, true
		}
	}
	return graphics, present, graphicsFound && presentFound
}

// Handle returns the internal vk.Device.
func (d *Device) Handle() vk.Device {
	return d.logical
}

func (d *Device) surface(s gfx.Surface) (vk.Surface, error) {
	surface, ok := s.(vk.Surface)
	if !ok {
		return vk.NullSurface, fmt.Errorf("%w: surface of type %T", gfx.ErrUnsupported, s)
	}
	return surface, nil
}

// SurfaceSupport implements gfx.Device.
func (d *Device) SurfaceSupport(s gfx.Surface) (gfx.SurfaceSupport, error) {
	surface, err := d.surface(s)
	if err != nil {
		return gfx.SurfaceSupport{}, err
	}

	var caps vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(d.physical, surface, &caps); res != vk.Success {
		if res == vk.ErrorSurfaceLost {
			return gfx.SurfaceSupport{}, gfx.ErrSurfaceLost
		}
		return gfx.SurfaceSupport{}, errors.New("vk.GetPhysicalDeviceSurfaceCapabilities(): " + vk.Error(res).Error())
	}
	caps.Deref()

	var formatCount uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(d.physical, surface, &formatCount, nil)); err != nil {
		return gfx.SurfaceSupport{}, errors.New("vk.GetPhysicalDeviceSurfaceFormats(): " + err.Error())
	}
	raw := make([]vk.SurfaceFormat, formatCount)
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(d.physical, surface, &formatCount, raw)); err != nil {
		return gfx.SurfaceSupport{}, errors.New("vk.GetPhysicalDeviceSurfaceFormats(): " + err.Error())
	}
	d.formats = convertSurfaceFormats(raw)

	var modeCount uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(d.physical, surface, &modeCount, nil)); err != nil {
		return gfx.SurfaceSupport{}, errors.New("vk.GetPhysicalDeviceSurfacePresentModes(): " + err.Error())
	}
	modes := make([]vk.PresentMode, modeCount)
	if err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(d.physical, surface, &modeCount, modes)); err != nil {
		return gfx.SurfaceSupport{}, errors.New("vk.GetPhysicalDeviceSurfacePresentModes(): " + err.Error())
	}

	return gfx.SurfaceSupport{
		Capabilities: gfx.SurfaceCapabilities{
			MinImageCount:  caps.MinImageCount,
			MaxImageCount:  caps.MaxImageCount,
			CurrentExtent:  fromVkExtent(caps.CurrentExtent),
			MinImageExtent: fromVkExtent(caps.MinImageExtent),
			MaxImageExtent: fromVkExtent(caps.MaxImageExtent),
		},
		Formats:      d.formats.known,
		PresentModes: fromVkPresentModes(modes),
	}, nil
}

// NewSwapchain implements gfx.Device.
func (d *Device) NewSwapchain(info gfx.SwapchainInfo) (gfx.Swapchain, error) {
	surface, err := d.surface(info.Surface)
	if err != nil {
		return nil, err
	}

	format, ok := d.formats.lookup(info.Format)
	if !ok {
		format = vk.SurfaceFormat{
			Format:     toVkFormat(info.Format.Format),
			ColorSpace: vk.ColorSpaceSrgbNonlinear,
		}
	}

	var caps vk.SurfaceCapabilities
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(d.physical, surface, &caps)); err != nil {
		return nil, errors.New("vk.GetPhysicalDeviceSurfaceCapabilities(): " + err.Error())
	}
	caps.Deref()

	preTransform := caps.CurrentTransform
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&vk.SurfaceTransformIdentityBit != 0 {
		preTransform = vk.SurfaceTransformIdentityBit
	}

	compositeAlpha := vk.CompositeAlphaOpaqueBit
	compositeAlphaFlags := []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	}
	for _, flag := range compositeAlphaFlags {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(flag) != 0 {
			compositeAlpha = flag
			break
		}
	}

	oldSwapchain := vk.NullSwapchain
	if info.Old != nil {
		oldSwapchain = info.Old.(*swapchain).handle
	}

	scci := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    info.MinImageCount,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      toVkExtent(info.Extent),
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     preTransform,
		CompositeAlpha:   compositeAlpha,
		PresentMode:      toVkPresentMode(info.PresentMode),
		Clipped:          vk.True,
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		OldSwapchain:     oldSwapchain,
	}
	if d.graphicsQueueIndex != d.presentQueueIndex {
		scci.ImageSharingMode = vk.SharingModeConcurrent
		scci.QueueFamilyIndexCount = 2
		scci.PQueueFamilyIndices = []uint32{d.graphicsQueueIndex, d.presentQueueIndex}
	}

	var handle vk.Swapchain
	if err := vk.Error(vk.CreateSwapchain(d.logical, &scci, nil, &handle)); err != nil {
		return nil, errors.New("vk.CreateSwapchain(): " + err.Error())
	}

	var numImages uint32
	if err := vk.Error(vk.GetSwapchainImages(d.logical, handle, &numImages, nil)); err != nil {
		vk.DestroySwapchain(d.logical, handle, nil)
		return nil, errors.New("vk.GetSwapchainImages(num): " + err.Error())
	}
	images := make([]vk.Image, numImages)
	if err := vk.Error(vk.GetSwapchainImages(d.logical, handle, &numImages, images)); err != nil {
		vk.DestroySwapchain(d.logical, handle, nil)
		return nil, errors.New("vk.GetSwapchainImages(images): " + err.Error())
	}

	sc := &swapchain{device: d.logical, handle: handle}
	for _, img := range images {
		sc.images = append(sc.images, &image{device: d.logical, handle: img})
	}
	return sc, nil
}

// NewImage implements gfx.Device.
func (d *Device) NewImage(info gfx.ImageInfo) (gfx.Image, error) {
	usage := vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageSampledBit)
	if info.Depth {
		usage = vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)
	}

	ici := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    toVkFormat(info.Format),
		Extent: vk.Extent3D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}

	var handle vk.Image
	if err := vk.Error(vk.CreateImage(d.logical, &ici, nil, &handle)); err != nil {
		return nil, fmt.Errorf("vk.CreateImage(): %w", err)
	}
	return &image{device: d.logical, handle: handle, owned: true}, nil
}

// AllocateImageMemory implements gfx.Device.
func (d *Device) AllocateImageMemory(img gfx.Image) (gfx.Memory, error) {
	handle := img.(*image).handle

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.logical, handle, &req)
	req.Deref()

	mem, err := d.allocator.Malloc(req, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return nil, err
	}
	if err := vk.Error(vk.BindImageMemory(d.logical, handle, mem.Get(), 0)); err != nil {
		mem.Release()
		return nil, fmt.Errorf("vk.BindImageMemory(): %w", err)
	}
	return mem, nil
}

// NewBuffer implements gfx.Device.
func (d *Device) NewBuffer(usage gfx.BufferUsage, data []byte) (gfx.Buffer, error) {
	if len(data) == 0 {
		return nil, gfx.ErrEmptyBuffer
	}
	bci := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(len(data)),
		Usage:       toVkBufferUsage(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if err := vk.Error(vk.CreateBuffer(d.logical, &bci, nil, &handle)); err != nil {
		return nil, fmt.Errorf("vk.CreateBuffer(): %w", err)
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.logical, handle, &req)
	req.Deref()

	mem, err := d.allocator.Malloc(req, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		vk.DestroyBuffer(d.logical, handle, nil)
		return nil, err
	}
	b := &buffer{device: d.logical, handle: handle, memory: mem}
	if err := vk.Error(vk.BindBufferMemory(d.logical, handle, mem.Get(), 0)); err != nil {
		b.Release()
		return nil, fmt.Errorf("vk.BindBufferMemory(): %w", err)
	}
	if err := mem.Write(data); err != nil {
		b.Release()
		return nil, err
	}
	return b, nil
}

// NewImageView implements gfx.Device.
func (d *Device) NewImageView(img gfx.Image, format gfx.Format, aspect gfx.Aspect) (gfx.ImageView, error) {
	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.(*image).handle,
		ViewType: vk.ImageViewType2d,
		Format:   toVkFormat(format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: toVkAspect(aspect, format),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	if ivci.Format == vk.FormatUndefined && aspect == gfx.AspectColor {
		// a surface format unknown to gfx, use what the swapchain was created with
		if len(d.formats.raw) > 0 {
			ivci.Format = d.formats.raw[0].Format
		}
	}

	var handle vk.ImageView
	if err := vk.Error(vk.CreateImageView(d.logical, &ivci, nil, &handle)); err != nil {
		return nil, errors.New("vk.CreateImageView(): " + err.Error())
	}
	return &imageView{device: d.logical, handle: handle}, nil
}

// DepthFormat implements gfx.Device.
func (d *Device) DepthFormat(candidates []gfx.Format) (gfx.Format, error) {
	for _, f := range candidates {
		var props vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(d.physical, toVkFormat(f), &props)
		props.Deref()
		if props.OptimalTilingFeatures&vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit) != 0 {
			return f, nil
		}
	}
	return gfx.FormatUndefined, fmt.Errorf("%w: none of %v usable as depth attachment", gfx.ErrUnsupported, candidates)
}

// NewRenderPass implements gfx.Device.
func (d *Device) NewRenderPass(desc gfx.RenderPassDesc) (gfx.RenderPass, error) {
	colorFormat := toVkFormat(desc.Color.Format)
	if colorFormat == vk.FormatUndefined && len(d.formats.raw) > 0 {
		colorFormat = d.formats.raw[0].Format
	}

	attachments := []vk.AttachmentDescription{
		{
			Format:         colorFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         toVkLoadOp(desc.Color.Load),
			StoreOp:        toVkStoreOp(desc.Color.Store),
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    toVkLayout(desc.Color.FinalLayout),
		},
		{
			Format:         toVkFormat(desc.Depth.Format),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         toVkLoadOp(desc.Depth.Load),
			StoreOp:        toVkStoreOp(desc.Depth.Store),
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    toVkLayout(desc.Depth.FinalLayout),
		},
	}

	colorAttachmentRef := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}
	depthAttachmentRef := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	subpassDependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorAttachmentRef)),
		PColorAttachments:       colorAttachmentRef,
		PDepthStencilAttachment: &depthAttachmentRef,
	}

	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{subpassDependency},
	}

	var handle vk.RenderPass
	if err := vk.Error(vk.CreateRenderPass(d.logical, &rpci, nil, &handle)); err != nil {
		return nil, errors.New("vk.CreateRenderPass(): " + err.Error())
	}
	return &renderPass{device: d.logical, handle: handle, desc: desc}, nil
}

// NewFramebuffer implements gfx.Device.
func (d *Device) NewFramebuffer(rp gfx.RenderPass, attachments []gfx.ImageView, extent gfx.Extent2D) (gfx.Framebuffer, error) {
	views := make([]vk.ImageView, 0, len(attachments))
	for _, a := range attachments {
		views = append(views, a.(*imageView).handle)
	}

	fci := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp.(*renderPass).handle,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}

	var handle vk.Framebuffer
	if err := vk.Error(vk.CreateFramebuffer(d.logical, &fci, nil, &handle)); err != nil {
		return nil, errors.New("vk.CreateFramebuffer(): " + err.Error())
	}
	return &framebuffer{device: d.logical, handle: handle}, nil
}

// NewFence implements gfx.Device.
func (d *Device) NewFence(signaled bool) (gfx.Fence, error) {
	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fci.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var handle vk.Fence
	if err := vk.Error(vk.CreateFence(d.logical, &fci, nil, &handle)); err != nil {
		return nil, errors.New("vk.CreateFence(): " + err.Error())
	}
	return &fence{device: d.logical, handle: handle}, nil
}

// NewSemaphore implements gfx.Device.
func (d *Device) NewSemaphore() (gfx.Semaphore, error) {
	sci := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}

	var handle vk.Semaphore
	if err := vk.Error(vk.CreateSemaphore(d.logical, &sci, nil, &handle)); err != nil {
		return nil, errors.New("vk.CreateSemaphore(): " + err.Error())
	}
	return &semaphore{device: d.logical, handle: handle}, nil
}

// WaitForFences implements gfx.Device.
func (d *Device) WaitForFences(fences ...gfx.Fence) error {
	if len(fences) == 0 {
		return nil
	}
	handles := fenceHandles(fences)
	res := vk.WaitForFences(d.logical, uint32(len(handles)), handles, vk.True, math.MaxUint64)
	return fatal("vk.WaitForFences()", res)
}

// ResetFences implements gfx.Device.
func (d *Device) ResetFences(fences ...gfx.Fence) error {
	if len(fences) == 0 {
		return nil
	}
	handles := fenceHandles(fences)
	return fatal("vk.ResetFences()", vk.ResetFences(d.logical, uint32(len(handles)), handles))
}

// AcquireNextImage implements gfx.Device.
func (d *Device) AcquireNextImage(sc gfx.Swapchain, signal gfx.Semaphore) (uint32, gfx.Result, error) {
	var idx uint32
	res := vk.AcquireNextImage(d.logical, sc.(*swapchain).handle, math.MaxUint64, semaphoreHandle(signal), vk.NullFence, &idx)
	result, err := toResult(res)
	if err != nil {
		return 0, result, fmt.Errorf("vk.AcquireNextImage(): %w", err)
	}
	return idx, result, nil
}

// Submit implements gfx.Device.
func (d *Device) Submit(cb gfx.CmdBuffer, wait, signal gfx.Semaphore, f gfx.Fence) error {
	submit := []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{semaphoreHandle(wait)},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb.(*cmdBuffer).handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{semaphoreHandle(signal)},
	}}

	fenceHandle := vk.NullFence
	if f != nil {
		fenceHandle = f.(*fence).handle
	}
	return fatal("vk.QueueSubmit()", vk.QueueSubmit(d.graphicsQueue, 1, submit, fenceHandle))
}

// Present implements gfx.Device.
func (d *Device) Present(sc gfx.Swapchain, index uint32, wait gfx.Semaphore) (gfx.Result, error) {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{semaphoreHandle(wait)},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.(*swapchain).handle},
		PImageIndices:      []uint32{index},
	}

	result, err := toResult(vk.QueuePresent(d.presentQueue, &presentInfo))
	if err != nil {
		return result, fmt.Errorf("vk.QueuePresent(): %w", err)
	}
	return result, nil
}

// AllocateCmdBuffers implements gfx.Device.
func (d *Device) AllocateCmdBuffers(count int) ([]gfx.CmdBuffer, error) {
	if count == 0 {
		return nil, nil
	}
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}

	handles := make([]vk.CommandBuffer, count)
	if err := vk.Error(vk.AllocateCommandBuffers(d.logical, &cbai, handles)); err != nil {
		return nil, errors.New("vk.AllocateCommandBuffers(): " + err.Error())
	}

	cbs := make([]gfx.CmdBuffer, 0, count)
	for _, h := range handles {
		cbs = append(cbs, &cmdBuffer{handle: h})
	}
	return cbs, nil
}

// FreeCmdBuffers implements gfx.Device.
func (d *Device) FreeCmdBuffers(cbs []gfx.CmdBuffer) {
	if len(cbs) == 0 {
		return
	}
	handles := make([]vk.CommandBuffer, 0, len(cbs))
	for _, cb := range cbs {
		handles = append(handles, cb.(*cmdBuffer).handle)
	}
	vk.FreeCommandBuffers(d.logical, d.commandPool, uint32(len(handles)), handles)
}

// WaitIdle implements gfx.Device.
func (d *Device) WaitIdle() error {
	return fatal("vk.DeviceWaitIdle()", vk.DeviceWaitIdle(d.logical))
}

// Release destroys the pipeline cache, the command pool and the device.
// Everything created from the device has to be released before.
func (d *Device) Release() {
	vk.DestroyPipelineCache(d.logical, d.pipelineCache, nil)
	vk.DestroyCommandPool(d.logical, d.commandPool, nil)
	vk.DestroyDevice(d.logical, nil)
	d.logger.Debug("logical device destroyed")
}

// fatal maps a result of a call that has no recoverable outcome.
func fatal(call string, res vk.Result) error {
	switch res {
	case vk.Success:
		return nil
	case vk.ErrorDeviceLost:
		return fmt.Errorf("%s: %w", call, gfx.ErrDeviceLost)
	}
	return errors.New(call + ": " + vk.Error(res).Error())
}
