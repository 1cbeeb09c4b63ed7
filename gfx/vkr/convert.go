// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/devblok/koru/gfx"
	vk "github.com/devblok/vulkan"
)

var formats = map[gfx.Format]vk.Format{
	gfx.FormatUndefined:       vk.FormatUndefined,
	gfx.FormatB8G8R8A8Srgb:    vk.FormatB8g8r8a8Srgb,
	gfx.FormatB8G8R8A8Unorm:   vk.FormatB8g8r8a8Unorm,
	gfx.FormatR8G8B8A8Srgb:    vk.FormatR8g8b8a8Srgb,
	gfx.FormatR8G8B8A8Unorm:   vk.FormatR8g8b8a8Unorm,
	gfx.FormatD16Unorm:        vk.FormatD16Unorm,
	gfx.FormatD32Sfloat:       vk.FormatD32Sfloat,
	gfx.FormatD32SfloatS8Uint: vk.FormatD32SfloatS8Uint,
	gfx.FormatD24UnormS8Uint:  vk.FormatD24UnormS8Uint,
	gfx.FormatR32G32Sfloat:    vk.FormatR32g32Sfloat,
	gfx.FormatR32G32B32Sfloat: vk.FormatR32g32b32Sfloat,
}

func toVkBufferUsage(u gfx.BufferUsage) vk.BufferUsageFlags {
	switch u {
	case gfx.BufferUsageVertex:
		return vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	}
	return 0
}

// vertexInput describes layout as a single per-vertex binding.
func vertexInput(layout gfx.VertexLayout) ([]vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription) {
	if layout.Stride == 0 {
		return nil, nil
	}
	bindings := []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    layout.Stride,
		InputRate: vk.VertexInputRateVertex,
	}}
	attributes := make([]vk.VertexInputAttributeDescription, len(layout.Attributes))
	for i, a := range layout.Attributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   toVkFormat(a.Format),
			Offset:   a.Offset,
		}
	}
	return bindings, attributes
}

func toVkFormat(f gfx.Format) vk.Format {
	if v, ok := formats[f]; ok {
		return v
	}
	return vk.FormatUndefined
}

func fromVkFormat(f vk.Format) gfx.Format {
	for k, v := range formats {
		if v == f {
			return k
		}
	}
	return gfx.FormatUndefined
}

// surfaceFormats keeps the raw vulkan value of every reported format, so
// formats unknown to gfx can still be handed back to the driver.
type surfaceFormats struct {
	known []gfx.SurfaceFormat
	raw   []vk.SurfaceFormat
}

func convertSurfaceFormats(raw []vk.SurfaceFormat) surfaceFormats {
	sf := surfaceFormats{raw: raw}
	for i := range raw {
		raw[i].Deref()
		f := raw[i]
		cs := gfx.ColorSpaceOther
		if f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			cs = gfx.ColorSpaceSrgbNonlinear
		}
		sf.known = append(sf.known, gfx.SurfaceFormat{
			Format:     fromVkFormat(f.Format),
			ColorSpace: cs,
		})
	}
	return sf
}

// lookup returns the raw format matching f.
func (sf surfaceFormats) lookup(f gfx.SurfaceFormat) (vk.SurfaceFormat, bool) {
	for i, k := range sf.known {
		if k == f {
			return sf.raw[i], true
		}
	}
	return vk.SurfaceFormat{}, false
}

func toVkPresentMode(p gfx.PresentMode) vk.PresentMode {
	switch p {
	case gfx.PresentModeImmediate:
		return vk.PresentModeImmediate
	case gfx.PresentModeMailbox:
		return vk.PresentModeMailbox
	case gfx.PresentModeFifoRelaxed:
		return vk.PresentModeFifoRelaxed
	}
	return vk.PresentModeFifo
}

func fromVkPresentModes(modes []vk.PresentMode) []gfx.PresentMode {
	var out []gfx.PresentMode
	for _, m := range modes {
		switch m {
		case vk.PresentModeImmediate:
			out = append(out, gfx.PresentModeImmediate)
		case vk.PresentModeMailbox:
			out = append(out, gfx.PresentModeMailbox)
		case vk.PresentModeFifo:
			out = append(out, gfx.PresentModeFifo)
		case vk.PresentModeFifoRelaxed:
			out = append(out, gfx.PresentModeFifoRelaxed)
		}
	}
	return out
}

func toVkExtent(e gfx.Extent2D) vk.Extent2D {
	return vk.Extent2D{Width: e.Width, Height: e.Height}
}

func fromVkExtent(e vk.Extent2D) gfx.Extent2D {
	e.Deref()
	return gfx.Extent2D{Width: e.Width, Height: e.Height}
}

func toVkLoadOp(op gfx.LoadOp) vk.AttachmentLoadOp {
	switch op {
	case gfx.LoadOpClear:
		return vk.AttachmentLoadOpClear
	case gfx.LoadOpLoad:
		return vk.AttachmentLoadOpLoad
	}
	return vk.AttachmentLoadOpDontCare
}

func toVkStoreOp(op gfx.StoreOp) vk.AttachmentStoreOp {
	if op == gfx.StoreOpStore {
		return vk.AttachmentStoreOpStore
	}
	return vk.AttachmentStoreOpDontCare
}

func toVkLayout(l gfx.Layout) vk.ImageLayout {
	switch l {
	case gfx.LayoutColorAttachment:
		return vk.ImageLayoutColorAttachmentOptimal
	case gfx.LayoutDepthStencilAttachment:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case gfx.LayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	}
	return vk.ImageLayoutUndefined
}

func toVkAspect(a gfx.Aspect, f gfx.Format) vk.ImageAspectFlags {
	if a == gfx.AspectDepth {
		flags := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
		if f.HasStencil() {
			flags |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
		}
		return flags
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

// toResult maps the non-fatal outcomes of acquire and present.
func toResult(res vk.Result) (gfx.Result, error) {
	switch res {
	case vk.Success:
		return gfx.Success, nil
	case vk.Suboptimal:
		return gfx.Suboptimal, nil
	case vk.ErrorOutOfDate:
		return gfx.OutOfDate, nil
	case vk.ErrorDeviceLost:
		return gfx.OutOfDate, gfx.ErrDeviceLost
	case vk.ErrorSurfaceLost:
		return gfx.OutOfDate, gfx.ErrSurfaceLost
	}
	return gfx.OutOfDate, vk.Error(res)
}
