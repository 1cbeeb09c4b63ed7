// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

// Format is a pixel format.
type Format int

// Pixel formats the presentation core cares about, followed by
// vertex attribute formats.
const (
	FormatUndefined Format = iota
	FormatB8G8R8A8Srgb
	FormatB8G8R8A8Unorm
	FormatR8G8B8A8Srgb
	FormatR8G8B8A8Unorm
	FormatD16Unorm
	FormatD32Sfloat
	FormatD32SfloatS8Uint
	FormatD24UnormS8Uint
	FormatR32G32Sfloat
	FormatR32G32B32Sfloat
)

// HasStencil reports whether the depth format also carries stencil.
func (f Format) HasStencil() bool {
	return f == FormatD32SfloatS8Uint || f == FormatD24UnormS8Uint
}

func (f Format) String() string {
	switch f {
	case FormatB8G8R8A8Srgb:
		return "B8G8R8A8_SRGB"
	case FormatB8G8R8A8Unorm:
		return "B8G8R8A8_UNORM"
	case FormatR8G8B8A8Srgb:
		return "R8G8B8A8_SRGB"
	case FormatR8G8B8A8Unorm:
		return "R8G8B8A8_UNORM"
	case FormatD16Unorm:
		return "D16_UNORM"
	case FormatD32Sfloat:
		return "D32_SFLOAT"
	case FormatD32SfloatS8Uint:
		return "D32_SFLOAT_S8_UINT"
	case FormatD24UnormS8Uint:
		return "D24_UNORM_S8_UINT"
	case FormatR32G32Sfloat:
		return "R32G32_SFLOAT"
	case FormatR32G32B32Sfloat:
		return "R32G32B32_SFLOAT"
	}
	return "UNDEFINED"
}

// DepthFormatCandidates are tried in order when picking a depth format.
var DepthFormatCandidates = []Format{
	FormatD32Sfloat,
	FormatD32SfloatS8Uint,
	FormatD24UnormS8Uint,
}

// ColorSpace is the color space a surface format is presented in.
type ColorSpace int

// Color spaces.
const (
	ColorSpaceSrgbNonlinear ColorSpace = iota
	ColorSpaceOther
)

// SurfaceFormat pairs a format with its color space.
type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

// PresentMode decides how presented images reach the display.
type PresentMode int

// Present modes.
const (
	PresentModeImmediate PresentMode = iota
	PresentModeMailbox
	PresentModeFifo
	PresentModeFifoRelaxed
)

func (p PresentMode) String() string {
	switch p {
	case PresentModeImmediate:
		return "immediate"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeFifo:
		return "fifo"
	case PresentModeFifoRelaxed:
		return "fifo relaxed"
	}
	return "unknown"
}

// SurfaceCapabilities are the limits a surface imposes on a swapchain.
// MaxImageCount of zero means there is no upper limit.
type SurfaceCapabilities struct {
	MinImageCount  uint32
	MaxImageCount  uint32
	CurrentExtent  Extent2D
	MinImageExtent Extent2D
	MaxImageExtent Extent2D
}

// SurfaceSupport is everything a driver reports about presenting to a surface.
type SurfaceSupport struct {
	Capabilities SurfaceCapabilities
	Formats      []SurfaceFormat
	PresentModes []PresentMode
}

// Aspect selects the aspect of an image a view covers.
type Aspect int

// Image aspects.
const (
	AspectColor Aspect = iota
	AspectDepth
)

// LoadOp tells what happens to an attachment at the start of a render pass.
type LoadOp int

// Load operations.
const (
	LoadOpDontCare LoadOp = iota
	LoadOpClear
	LoadOpLoad
)

// StoreOp tells what happens to an attachment at the end of a render pass.
type StoreOp int

// Store operations.
const (
	StoreOpDontCare StoreOp = iota
	StoreOpStore
)

// Layout is an image layout.
type Layout int

// Image layouts used by render targets.
const (
	LayoutUndefined Layout = iota
	LayoutColorAttachment
	LayoutDepthStencilAttachment
	LayoutPresentSrc
)

// Attachment describes one render target of a render pass.
type Attachment struct {
	Format      Format
	Load        LoadOp
	Store       StoreOp
	FinalLayout Layout
}

// RenderPassDesc describes a single-subpass render pass with one color
// and one depth attachment, in that order.
type RenderPassDesc struct {
	Color Attachment
	Depth Attachment
}

// PresentRenderPass returns the description used for presentable images:
// color is cleared and stored for presentation, depth is cleared and discarded.
func PresentRenderPass(color, depth Format) RenderPassDesc {
	return RenderPassDesc{
		Color: Attachment{
			Format:      color,
			Load:        LoadOpClear,
			Store:       StoreOpStore,
			FinalLayout: LayoutPresentSrc,
		},
		Depth: Attachment{
			Format:      depth,
			Load:        LoadOpClear,
			Store:       StoreOpDontCare,
			FinalLayout: LayoutDepthStencilAttachment,
		},
	}
}

// VertexAttribute is one shader input read from each vertex.
type VertexAttribute struct {
	Location uint32
	Format   Format
	Offset   uint32
}

// VertexLayout describes interleaved vertices of Stride bytes read from
// the vertex buffer bound first. A zero layout means the vertex shader
// takes no input.
type VertexLayout struct {
	Stride     uint32
	Attributes []VertexAttribute
}
