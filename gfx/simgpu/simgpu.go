// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package simgpu is a gfx.Device that executes nothing. Submitted work stays
// pending until the CPU waits for it, which completes it in submission order.
// The device records every synchronization hazard it observes, so frame
// pacing can be verified without a GPU.
package simgpu

import (
	"errors"
	"fmt"

	"github.com/devblok/koru/gfx"
)

// ErrDeadlock is returned when waiting for a fence nothing will ever signal.
var ErrDeadlock = errors.New("simgpu: wait on fence that is never signaled")

// Surface is a surface of the simulated device.
type Surface struct {
	Name string
}

// DefaultSupport is what a surface supports unless the device is told otherwise.
func DefaultSupport() gfx.SurfaceSupport {
	return gfx.SurfaceSupport{
		Capabilities: gfx.SurfaceCapabilities{
			MinImageCount:  2,
			MaxImageCount:  8,
			CurrentExtent:  gfx.Extent2D{Width: gfx.UndefinedExtent, Height: gfx.UndefinedExtent},
			MinImageExtent: gfx.Extent2D{Width: 1, Height: 1},
			MaxImageExtent: gfx.Extent2D{Width: 4096, Height: 4096},
		},
		Formats: []gfx.SurfaceFormat{
			{Format: gfx.FormatB8G8R8A8Unorm, ColorSpace: gfx.ColorSpaceSrgbNonlinear},
			{Format: gfx.FormatB8G8R8A8Srgb, ColorSpace: gfx.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []gfx.PresentMode{
			gfx.PresentModeFifo,
			gfx.PresentModeMailbox,
		},
	}
}

type submission struct {
	cb    *cmdBuffer
	fence *fence
	image *image
}

type failure struct {
	after int
	err   error
}

// Device is the simulated gfx.Device.
type Device struct {

	// Support is returned for every surface.
	Support gfx.SurfaceSupport

	// DepthFormats are the formats usable as depth attachments.
	DepthFormats []gfx.Format

	// NextImage picks the image index returned by the n-th acquisition
	// from a swapchain of count images. Defaults to round robin.
	NextImage func(n, count int) uint32

	// Swapchains records the info of every created swapchain.
	Swapchains []gfx.SwapchainInfo

	// Presented records image indices in presentation order.
	Presented []uint32

	// Violations records every hazard observed.
	Violations []string

	// MaxUnsignaled is the highest number of unsignaled fences seen at submission.
	MaxUnsignaled int

	// MaxDrained is the highest number of submissions a single fence wait completed.
	MaxDrained int

	// Waits counts fence waits that had to complete pending work.
	Waits int

	// WaitIdles counts device idle waits.
	WaitIdles int

	// Submits counts submissions.
	Submits int

	acquireResults []gfx.Result
	presentResults []gfx.Result

	pending  []submission
	fences   map[*fence]struct{}
	live     map[string]int
	calls    map[string]int
	failures map[string]failure
	nextID   int
}

// New returns a device with DefaultSupport and all depth formats supported.
func New() *Device {
	return &Device{
		Support: DefaultSupport(),
		DepthFormats: []gfx.Format{
			gfx.FormatD32Sfloat,
			gfx.FormatD32SfloatS8Uint,
			gfx.FormatD24UnormS8Uint,
		},
		fences:   make(map[*fence]struct{}),
		live:     make(map[string]int),
		calls:    make(map[string]int),
		failures: make(map[string]failure),
	}
}

// FailAfter makes call op fail with err once it succeeded after times.
func (d *Device) FailAfter(op string, after int, err error) {
	d.failures[op] = failure{after: after, err: err}
}

// QueueAcquireResults queues results returned by the next acquisitions.
// Acquisitions succeed once the queue is empty.
func (d *Device) QueueAcquireResults(results ...gfx.Result) {
	d.acquireResults = append(d.acquireResults, results...)
}

// QueuePresentResults queues results returned by the next presentations.
func (d *Device) QueuePresentResults(results ...gfx.Result) {
	d.presentResults = append(d.presentResults, results...)
}

// Live returns the number of objects of kind not yet released.
// Kinds are swapchain, image, memory, view, renderpass, framebuffer,
// fence, semaphore, pipeline, buffer and cmdbuffer.
func (d *Device) Live(kind string) int {
	return d.live[kind]
}

// LiveTotal returns the number of objects not yet released.
func (d *Device) LiveTotal() int {
	total := 0
	for _, n := range d.live {
		total += n
	}
	return total
}

// Calls returns how many times op was called.
func (d *Device) Calls(op string) int {
	return d.calls[op]
}

// Pending returns the number of submissions not yet completed.
func (d *Device) Pending() int {
	return len(d.pending)
}

func (d *Device) call(op string) error {
	n := d.calls[op]
	d.calls[op] = n + 1
	if f, ok := d.failures[op]; ok && n >= f.after {
		return f.err
	}
	return nil
}

func (d *Device) violation(format string, args ...interface{}) {
	d.Violations = append(d.Violations, fmt.Sprintf(format, args...))
}

func (d *Device) id() int {
	d.nextID++
	return d.nextID
}

// SurfaceSupport implements gfx.Device.
func (d *Device) SurfaceSupport(s gfx.Surface) (gfx.SurfaceSupport, error) {
	if err := d.call("SurfaceSupport"); err != nil {
		return gfx.SurfaceSupport{}, err
	}
	if _, ok := s.(*Surface); !ok {
		return gfx.SurfaceSupport{}, gfx.ErrSurfaceLost
	}
	return d.Support, nil
}

// NewSwapchain implements gfx.Device.
func (d *Device) NewSwapchain(info gfx.SwapchainInfo) (gfx.Swapchain, error) {
	if err := d.call("NewSwapchain"); err != nil {
		return nil, err
	}
	if info.Extent.Degenerate() {
		d.violation("swapchain created with extent %dx%d", info.Extent.Width, info.Extent.Height)
	}
	if info.Old != nil {
		old := info.Old.(*swapchain)
		if old.released {
			d.violation("released swapchain %d handed over", old.id)
		}
		old.retired = true
	}
	d.Swapchains = append(d.Swapchains, info)

	sc := &swapchain{
		object: d.newObject("swapchain"),
		info:   info,
	}
	for i := 0; i < int(info.MinImageCount); i++ {
		sc.images = append(sc.images, &image{
			object:    object{device: d, kind: "image", id: d.id()},
			swapchain: sc,
			index:     i,
			extent:    info.Extent,
		})
	}
	return sc, nil
}

// NewImage implements gfx.Device.
func (d *Device) NewImage(info gfx.ImageInfo) (gfx.Image, error) {
	if err := d.call("NewImage"); err != nil {
		return nil, err
	}
	return &image{
		object: d.newObject("image"),
		index:  -1,
		extent: info.Extent,
	}, nil
}

// AllocateImageMemory implements gfx.Device.
func (d *Device) AllocateImageMemory(img gfx.Image) (gfx.Memory, error) {
	if err := d.call("AllocateImageMemory"); err != nil {
		return nil, err
	}
	i := img.(*image)
	if i.bound {
		d.violation("image %d bound to memory twice", i.id)
	}
	i.bound = true
	m := d.newObject("memory")
	return &m, nil
}

// NewImageView implements gfx.Device.
func (d *Device) NewImageView(img gfx.Image, format gfx.Format, aspect gfx.Aspect) (gfx.ImageView, error) {
	if err := d.call("NewImageView"); err != nil {
		return nil, err
	}
	i := img.(*image)
	if i.swapchain == nil && !i.bound {
		d.violation("view of image %d without memory", i.id)
	}
	return &imageView{
		object: d.newObject("view"),
		image:  i,
		format: format,
		aspect: aspect,
	}, nil
}

// DepthFormat implements gfx.Device.
func (d *Device) DepthFormat(candidates []gfx.Format) (gfx.Format, error) {
	if err := d.call("DepthFormat"); err != nil {
		return gfx.FormatUndefined, err
	}
	for _, c := range candidates {
		for _, f := range d.DepthFormats {
			if c == f {
				return c, nil
			}
		}
	}
	return gfx.FormatUndefined, gfx.ErrUnsupported
}

// NewRenderPass implements gfx.Device.
func (d *Device) NewRenderPass(desc gfx.RenderPassDesc) (gfx.RenderPass, error) {
	if err := d.call("NewRenderPass"); err != nil {
		return nil, err
	}
	return &renderPass{
		object: d.newObject("renderpass"),
		desc:   desc,
	}, nil
}

// NewFramebuffer implements gfx.Device.
func (d *Device) NewFramebuffer(rp gfx.RenderPass, attachments []gfx.ImageView, extent gfx.Extent2D) (gfx.Framebuffer, error) {
	if err := d.call("NewFramebuffer"); err != nil {
		return nil, err
	}
	if len(attachments) != 2 {
		return nil, fmt.Errorf("simgpu: framebuffer needs 2 attachments, got %d", len(attachments))
	}
	desc := rp.Desc()
	color := attachments[0].(*imageView)
	depth := attachments[1].(*imageView)
	if color.format != desc.Color.Format || depth.format != desc.Depth.Format {
		d.violation("framebuffer attachments %s/%s incompatible with render pass %s/%s",
			color.format, depth.format, desc.Color.Format, desc.Depth.Format)
	}
	if color.image.extent != extent || depth.image.extent != extent {
		d.violation("framebuffer extent %v does not match attachments", extent)
	}
	return &framebuffer{
		object:     d.newObject("framebuffer"),
		renderPass: rp.(*renderPass),
		image:      color.image,
		extent:     extent,
	}, nil
}

// NewBuffer implements gfx.Device.
func (d *Device) NewBuffer(usage gfx.BufferUsage, data []byte) (gfx.Buffer, error) {
	if err := d.call("NewBuffer"); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("simgpu: %w", gfx.ErrEmptyBuffer)
	}
	return &buffer{
		object: d.newObject("buffer"),
		usage:  usage,
		data:   append([]byte(nil), data...),
	}, nil
}

// NewFence implements gfx.Device.
func (d *Device) NewFence(signaled bool) (gfx.Fence, error) {
	if err := d.call("NewFence"); err != nil {
		return nil, err
	}
	f := &fence{
		object:   d.newObject("fence"),
		signaled: signaled,
	}
	d.fences[f] = struct{}{}
	return f, nil
}

// NewSemaphore implements gfx.Device.
func (d *Device) NewSemaphore() (gfx.Semaphore, error) {
	if err := d.call("NewSemaphore"); err != nil {
		return nil, err
	}
	return &semaphore{object: d.newObject("semaphore")}, nil
}

// WaitForFences implements gfx.Device. It completes pending submissions in
// order until every fence is signaled.
func (d *Device) WaitForFences(fences ...gfx.Fence) error {
	if err := d.call("WaitForFences"); err != nil {
		return err
	}
	drained := 0
	for _, f := range fences {
		target := f.(*fence)
		if target.released {
			d.violation("wait on released fence %d", target.id)
		}
		for !target.signaled {
			if len(d.pending) == 0 {
				return ErrDeadlock
			}
			d.complete()
			drained++
		}
	}
	if drained > 0 {
		d.Waits++
	}
	if drained > d.MaxDrained {
		d.MaxDrained = drained
	}
	return nil
}

// ResetFences implements gfx.Device.
func (d *Device) ResetFences(fences ...gfx.Fence) error {
	if err := d.call("ResetFences"); err != nil {
		return err
	}
	for _, f := range fences {
		target := f.(*fence)
		if d.isPending(target) {
			d.violation("reset of fence %d still in flight", target.id)
		}
		target.signaled = false
	}
	return nil
}

// AcquireNextImage implements gfx.Device.
func (d *Device) AcquireNextImage(s gfx.Swapchain, signal gfx.Semaphore) (uint32, gfx.Result, error) {
	if err := d.call("AcquireNextImage"); err != nil {
		return 0, gfx.OutOfDate, err
	}
	sc := s.(*swapchain)
	if sc.retired {
		return 0, gfx.OutOfDate, nil
	}

	result := gfx.Success
	if len(d.acquireResults) > 0 {
		result = d.acquireResults[0]
		d.acquireResults = d.acquireResults[1:]
	}
	if result == gfx.OutOfDate {
		return 0, result, nil
	}

	var index uint32
	if d.NextImage != nil {
		index = d.NextImage(sc.acquired, len(sc.images))
	} else {
		index = uint32(sc.acquired % len(sc.images))
	}
	sc.acquired++

	sem := signal.(*semaphore)
	if sem.signaled {
		d.violation("acquire signals semaphore %d already signaled", sem.id)
	}
	sem.signaled = true
	return index, result, nil
}

// Submit implements gfx.Device.
func (d *Device) Submit(c gfx.CmdBuffer, wait, signal gfx.Semaphore, f gfx.Fence) error {
	if err := d.call("Submit"); err != nil {
		return err
	}
	cb := c.(*cmdBuffer)
	if cb.recording {
		d.violation("submission of command buffer %d still recording", cb.id)
	}
	w := wait.(*semaphore)
	if !w.signaled {
		d.violation("submission waits on unsignaled semaphore %d", w.id)
	}
	w.signaled = false

	target := f.(*fence)
	if target.signaled {
		d.violation("submission with signaled fence %d", target.id)
	}
	unsignaled := 0
	for other := range d.fences {
		if !other.signaled {
			unsignaled++
		}
	}
	if unsignaled > d.MaxUnsignaled {
		d.MaxUnsignaled = unsignaled
	}

	sig := signal.(*semaphore)
	sig.signaled = true

	d.pending = append(d.pending, submission{
		cb:    cb,
		fence: target,
		image: cb.image,
	})
	d.Submits++
	return nil
}

// Present implements gfx.Device.
func (d *Device) Present(s gfx.Swapchain, index uint32, wait gfx.Semaphore) (gfx.Result, error) {
	if err := d.call("Present"); err != nil {
		return gfx.OutOfDate, err
	}
	sc := s.(*swapchain)
	if int(index) >= len(sc.images) {
		return gfx.OutOfDate, fmt.Errorf("simgpu: present of image %d out of %d", index, len(sc.images))
	}
	w := wait.(*semaphore)
	if !w.signaled {
		d.violation("present waits on unsignaled semaphore %d", w.id)
	}
	w.signaled = false
	d.Presented = append(d.Presented, index)

	result := gfx.Success
	if len(d.presentResults) > 0 {
		result = d.presentResults[0]
		d.presentResults = d.presentResults[1:]
	}
	return result, nil
}

// AllocateCmdBuffers implements gfx.Device.
func (d *Device) AllocateCmdBuffers(count int) ([]gfx.CmdBuffer, error) {
	if err := d.call("AllocateCmdBuffers"); err != nil {
		return nil, err
	}
	cbs := make([]gfx.CmdBuffer, count)
	for i := range cbs {
		d.live["cmdbuffer"]++
		cbs[i] = &cmdBuffer{id: d.id(), device: d}
	}
	return cbs, nil
}

// FreeCmdBuffers implements gfx.Device.
func (d *Device) FreeCmdBuffers(cbs []gfx.CmdBuffer) {
	d.calls["FreeCmdBuffers"]++
	for _, c := range cbs {
		cb := c.(*cmdBuffer)
		if cb.freed {
			d.violation("command buffer %d freed twice", cb.id)
			continue
		}
		if d.cmdPending(cb) {
			d.violation("command buffer %d freed while in flight", cb.id)
		}
		cb.freed = true
		d.live["cmdbuffer"]--
	}
}

// WaitIdle implements gfx.Device.
func (d *Device) WaitIdle() error {
	if err := d.call("WaitIdle"); err != nil {
		return err
	}
	d.WaitIdles++
	for len(d.pending) > 0 {
		d.complete()
	}
	return nil
}

// NewPipeline builds a pipeline for rp. It satisfies core.PipelineFactory
// through core.PipelineFactoryFunc.
func (d *Device) NewPipeline(rp gfx.RenderPass, extent gfx.Extent2D) (gfx.Pipeline, error) {
	if err := d.call("NewPipeline"); err != nil {
		return nil, err
	}
	return &Pipeline{
		object:     d.newObject("pipeline"),
		RenderPass: rp,
		Extent:     extent,
	}, nil
}

func (d *Device) complete() {
	s := d.pending[0]
	d.pending = d.pending[1:]
	s.fence.signaled = true
}

func (d *Device) isPending(f *fence) bool {
	for _, s := range d.pending {
		if s.fence == f {
			return true
		}
	}
	return false
}

func (d *Device) cmdPending(cb *cmdBuffer) bool {
	for _, s := range d.pending {
		if s.cb == cb {
			return true
		}
	}
	return false
}

func (d *Device) bufferPending(b *buffer) bool {
	for _, s := range d.pending {
		for _, bound := range s.cb.buffers {
			if bound == b {
				return true
			}
		}
	}
	return false
}

func (d *Device) imagePending(img *image) bool {
	for _, s := range d.pending {
		if s.image == img {
			return true
		}
	}
	return false
}
