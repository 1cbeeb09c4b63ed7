// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"

	"github.com/devblok/koru/gfx"
)

// FrameSlot holds the synchronization primitives of one frame in flight.
type FrameSlot struct {
	index          int
	inFlight       gfx.Fence
	imageAvailable gfx.Semaphore
	renderFinished gfx.Semaphore
}

// Index returns the position of the slot in the ring.
func (s *FrameSlot) Index() int {
	return s.index
}

// InFlight returns the fence signaled when the slot's frame finished rendering.
func (s *FrameSlot) InFlight() gfx.Fence {
	return s.inFlight
}

// ImageAvailable returns the semaphore signaled when the acquired image can be written.
func (s *FrameSlot) ImageAvailable() gfx.Semaphore {
	return s.imageAvailable
}

// RenderFinished returns the semaphore signaled when rendering finished.
func (s *FrameSlot) RenderFinished() gfx.Semaphore {
	return s.renderFinished
}

// FrameSync is a ring of frame slots bounding how many frames may be in
// flight, plus a record of which slot fence last rendered to each image.
// Acquired image indices are chosen by the driver, so the two are tracked
// independently.
type FrameSync struct {
	device gfx.Device
	slots  []*FrameSlot
	images []gfx.Fence

	cursor    int
	submitted uint64

	resources releaser
}

// NewFrameSync creates slots frame slots, with their fences signaled so the
// first use of every slot does not block, and an empty record for images.
func NewFrameSync(device gfx.Device, slots, images int) (fs *FrameSync, err error) {
	if slots < 1 {
		return nil, fmt.Errorf("%w: frames in flight must be at least 1, got %d", ErrInvalidConfiguration, slots)
	}

	built := &FrameSync{
		device: device,
		slots:  make([]*FrameSlot, 0, slots),
		images: make([]gfx.Fence, images),
	}
	defer func() {
		if err != nil {
			built.resources.release()
			fs = nil
		}
	}()
	fs = built

	for i := 0; i < slots; i++ {
		slot := &FrameSlot{index: i}

		if slot.inFlight, err = device.NewFence(true); err != nil {
			return nil, fmt.Errorf("creating fence of frame slot %d: %w", i, err)
		}
		fs.resources.push(slot.inFlight)

		if slot.imageAvailable, err = device.NewSemaphore(); err != nil {
			return nil, fmt.Errorf("creating image semaphore of frame slot %d: %w", i, err)
		}
		fs.resources.push(slot.imageAvailable)

		if slot.renderFinished, err = device.NewSemaphore(); err != nil {
			return nil, fmt.Errorf("creating render semaphore of frame slot %d: %w", i, err)
		}
		fs.resources.push(slot.renderFinished)

		fs.slots = append(fs.slots, slot)
	}
	return fs, nil
}

// Current returns the slot the next frame uses.
func (fs *FrameSync) Current() *FrameSlot {
	return fs.slots[fs.cursor]
}

// Cursor returns the index of the current slot.
func (fs *FrameSync) Cursor() int {
	return fs.cursor
}

// SlotCount returns the number of slots in the ring.
func (fs *FrameSync) SlotCount() int {
	return len(fs.slots)
}

// ImageCount returns the size of the image record.
func (fs *FrameSync) ImageCount() int {
	return len(fs.images)
}

// Submitted returns how many times the cursor advanced.
func (fs *FrameSync) Submitted() uint64 {
	return fs.submitted
}

// ImageFence returns the fence of the frame last submitted against image
// index, or nil when no frame rendered to it since the last reset.
func (fs *FrameSync) ImageFence(index uint32) gfx.Fence {
	if int(index) >= len(fs.images) {
		return nil
	}
	return fs.images[index]
}

// WaitImage blocks until no earlier frame is still rendering to image index.
func (fs *FrameSync) WaitImage(index uint32) error {
	if int(index) >= len(fs.images) {
		return fmt.Errorf("image %d outside of record of %d images", index, len(fs.images))
	}
	fence := fs.images[index]
	if fence == nil {
		return nil
	}
	if err := fs.device.WaitForFences(fence); err != nil {
		return fmt.Errorf("waiting for image %d: %w", index, err)
	}
	return nil
}

// Claim records slot as the frame rendering to image index. It is called
// once the frame was submitted, index must be within the record.
func (fs *FrameSync) Claim(index uint32, slot *FrameSlot) {
	fs.images[index] = slot.inFlight
}

// Advance moves the cursor to the next slot. It is called once per
// successfully submitted frame.
func (fs *FrameSync) Advance() {
	fs.cursor = (fs.cursor + 1) % len(fs.slots)
	fs.submitted++
}

// ResetImages forgets every image record and resizes it to images.
// Image identities change when the swapchain is rebuilt.
func (fs *FrameSync) ResetImages(images int) {
	fs.images = make([]gfx.Fence, images)
}

// Release destroys all slots. The caller has to make sure the device is idle.
func (fs *FrameSync) Release() {
	if fs == nil {
		return
	}
	fs.resources.release()
	fs.slots = nil
	fs.images = nil
}
