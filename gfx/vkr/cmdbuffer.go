// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/devblok/koru/gfx"
	vk "github.com/devblok/vulkan"
)

type cmdBuffer struct {
	handle vk.CommandBuffer
}

func (c *cmdBuffer) Begin() error {
	if err := vk.Error(vk.ResetCommandBuffer(c.handle, vk.CommandBufferResetFlags(vk.CommandBufferResetReleaseResourcesBit))); err != nil {
		return fmt.Errorf("vk.ResetCommandBuffer(): %w", err)
	}

	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := vk.Error(vk.BeginCommandBuffer(c.handle, &cbbi)); err != nil {
		return errors.New("vk.BeginCommandBuffer(): " + err.Error())
	}
	return nil
}

func (c *cmdBuffer) BeginRenderPass(rp gfx.RenderPass, fb gfx.Framebuffer, area gfx.Extent2D, clear gfx.ClearValues) {
	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor(clear.Color[:])
	clearValues[1].SetDepthStencil(clear.Depth, clear.Stencil)

	rpbi := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  rp.(*renderPass).handle,
		Framebuffer: fb.(*framebuffer).handle,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: toVkExtent(area),
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(c.handle, &rpbi, vk.SubpassContentsInline)
}

func (c *cmdBuffer) SetViewport(vp gfx.Viewport) {
	vk.CmdSetViewport(c.handle, 0, 1, []vk.Viewport{{
		X:        vp.X,
		Y:        vp.Y,
		Width:    vp.Width,
		Height:   vp.Height,
		MinDepth: vp.MinDepth,
		MaxDepth: vp.MaxDepth,
	}})
}

func (c *cmdBuffer) SetScissor(area gfx.Extent2D) {
	vk.CmdSetScissor(c.handle, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: toVkExtent(area),
	}})
}

func (c *cmdBuffer) BindPipeline(p gfx.Pipeline) {
	vk.CmdBindPipeline(c.handle, vk.PipelineBindPointGraphics, p.(*Pipeline).handle)
}

func (c *cmdBuffer) BindVertexBuffers(first uint32, buffers ...gfx.Buffer) {
	if len(buffers) == 0 {
		return
	}
	handles := make([]vk.Buffer, len(buffers))
	offsets := make([]vk.DeviceSize, len(buffers))
	for i, b := range buffers {
		handles[i] = b.(*buffer).handle
	}
	vk.CmdBindVertexBuffers(c.handle, first, uint32(len(handles)), handles, offsets)
}

func (c *cmdBuffer) PushConstants(p gfx.Pipeline, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	pl := p.(*Pipeline)
	vk.CmdPushConstants(c.handle, pl.layout, pl.pcStages, offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (c *cmdBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(c.handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (c *cmdBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(c.handle)
}

func (c *cmdBuffer) End() error {
	if err := vk.Error(vk.EndCommandBuffer(c.handle)); err != nil {
		return errors.New("vk.EndCommandBuffer(): " + err.Error())
	}
	return nil
}
