// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/devblok/koru/gfx"
	"github.com/devblok/koru/utility/kar"
	vk "github.com/devblok/vulkan"
	qt "github.com/frankban/quicktest"
	"github.com/gobuffalo/packr"
)

func TestFormatConversion(t *testing.T) {
	c := qt.New(t)
	for _, f := range []gfx.Format{
		gfx.FormatB8G8R8A8Srgb,
		gfx.FormatB8G8R8A8Unorm,
		gfx.FormatD32Sfloat,
		gfx.FormatD32SfloatS8Uint,
		gfx.FormatD24UnormS8Uint,
		gfx.FormatR32G32Sfloat,
		gfx.FormatR32G32B32Sfloat,
	} {
		c.Assert(fromVkFormat(toVkFormat(f)), qt.Equals, f)
	}
	c.Assert(fromVkFormat(vk.FormatR16g16b16a16Sfloat), qt.Equals, gfx.FormatUndefined)
}

func TestVertexInput(t *testing.T) {
	c := qt.New(t)
	bindings, attributes := vertexInput(gfx.VertexLayout{})
	c.Assert(bindings, qt.HasLen, 0)
	c.Assert(attributes, qt.HasLen, 0)

	bindings, attributes = vertexInput(gfx.VertexLayout{
		Stride: 20,
		Attributes: []gfx.VertexAttribute{
			{Location: 0, Format: gfx.FormatR32G32Sfloat, Offset: 0},
			{Location: 1, Format: gfx.FormatR32G32B32Sfloat, Offset: 8},
		},
	})
	c.Assert(bindings, qt.HasLen, 1)
	c.Assert(bindings[0].Stride, qt.Equals, uint32(20))
	c.Assert(bindings[0].InputRate, qt.Equals, vk.VertexInputRateVertex)
	c.Assert(attributes, qt.HasLen, 2)
	c.Assert(attributes[0].Format, qt.Equals, vk.FormatR32g32Sfloat)
	c.Assert(attributes[1].Format, qt.Equals, vk.FormatR32g32b32Sfloat)
	c.Assert(attributes[1].Offset, qt.Equals, uint32(8))
	c.Assert(attributes[1].Location, qt.Equals, uint32(1))

	c.Assert(toVkBufferUsage(gfx.BufferUsageVertex), qt.Equals, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
}

func TestPresentModeConversion(t *testing.T) {
	c := qt.New(t)
	modes := fromVkPresentModes([]vk.PresentMode{
		vk.PresentModeFifo,
		vk.PresentModeMailbox,
		vk.PresentModeImmediate,
	})
	c.Assert(modes, qt.DeepEquals, []gfx.PresentMode{
		gfx.PresentModeFifo,
		gfx.PresentModeMailbox,
		gfx.PresentModeImmediate,
	})
	for _, m := range modes {
		c.Assert(fromVkPresentModes([]vk.PresentMode{toVkPresentMode(m)}), qt.DeepEquals, []gfx.PresentMode{m})
	}
}

func TestToResult(t *testing.T) {
	c := qt.New(t)
	tests := []struct {
		res    vk.Result
		result gfx.Result
		err    error
	}{
		{vk.Success, gfx.Success, nil},
		{vk.Suboptimal, gfx.Suboptimal, nil},
		{vk.ErrorOutOfDate, gfx.OutOfDate, nil},
		{vk.ErrorDeviceLost, gfx.OutOfDate, gfx.ErrDeviceLost},
		{vk.ErrorSurfaceLost, gfx.OutOfDate, gfx.ErrSurfaceLost},
	}
	for _, test := range tests {
		result, err := toResult(test.res)
		c.Assert(result, qt.Equals, test.result)
		if test.err == nil {
			c.Assert(err, qt.IsNil)
		} else {
			c.Assert(errors.Is(err, test.err), qt.IsTrue)
		}
	}

	_, err := toResult(vk.ErrorOutOfHostMemory)
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestDepthAspect(t *testing.T) {
	c := qt.New(t)
	c.Assert(toVkAspect(gfx.AspectColor, gfx.FormatB8G8R8A8Srgb), qt.Equals, vk.ImageAspectFlags(vk.ImageAspectColorBit))
	c.Assert(toVkAspect(gfx.AspectDepth, gfx.FormatD32Sfloat), qt.Equals, vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	c.Assert(toVkAspect(gfx.AspectDepth, gfx.FormatD24UnormS8Uint), qt.Equals,
		vk.ImageAspectFlags(vk.ImageAspectDepthBit)|vk.ImageAspectFlags(vk.ImageAspectStencilBit))
}

func TestParseShaderName(t *testing.T) {
	c := qt.New(t)
	tests := []struct {
		file  string
		name  string
		stage ShaderStage
		ok    bool
	}{
		{"quad.vert.spv", "quad", VertexStage, true},
		{"shaders/quad.frag.spv", "quad", FragmentStage, true},
		{"quad.geom.spv", "", 0, false},
		{"quad.vert", "", 0, false},
		{"a.b.vert.spv", "", 0, false},
		{".vert.spv", "", 0, false},
	}
	for _, test := range tests {
		name, stage, ok := ParseShaderName(test.file)
		c.Assert(ok, qt.Equals, test.ok, qt.Commentf("%s", test.file))
		c.Assert(name, qt.Equals, test.name)
		c.Assert(stage, qt.Equals, test.stage)
	}
}

func checkTestShaders(c *qt.C, shaders []ShaderCode) {
	c.Assert(shaders, qt.HasLen, 3)
	c.Assert(shaders[0].Name, qt.Equals, "other")
	c.Assert(shaders[1].Name, qt.Equals, "quad")
	c.Assert(shaders[1].Stage, qt.Equals, VertexStage)
	c.Assert(shaders[2].Stage, qt.Equals, FragmentStage)

	quad, err := SelectShaders(shaders, "quad")
	c.Assert(err, qt.IsNil)
	c.Assert(quad, qt.HasLen, 2)

	_, err = SelectShaders(shaders, "missing")
	c.Assert(err, qt.ErrorMatches, "shader missing: no vertex stage")
}

func TestShadersFromDirectory(t *testing.T) {
	c := qt.New(t)
	shaders, err := ShadersFromDirectory("testdata/shaders")
	c.Assert(err, qt.IsNil)
	checkTestShaders(c, shaders)

	_, err = ShadersFromDirectory("testdata/broken")
	c.Assert(err, qt.ErrorIs, ErrInvalidShader)
}

func TestShadersFromBox(t *testing.T) {
	c := qt.New(t)
	shaders, err := ShadersFromBox(packr.NewBox("./testdata/shaders"))
	c.Assert(err, qt.IsNil)
	checkTestShaders(c, shaders)
}

func TestShadersFromArchive(t *testing.T) {
	c := qt.New(t)
	builder := kar.NewBuilder(kar.Header{Author: "test"})
	for _, name := range []string{"quad.vert.spv", "quad.frag.spv", "other.vert.spv", "notes.txt"} {
		data, err := os.ReadFile(filepath.Join("testdata/shaders", name))
		c.Assert(err, qt.IsNil)
		c.Assert(builder.Add(name, data), qt.IsNil)
	}
	var buf bytes.Buffer
	_, err := builder.WriteTo(&buf)
	c.Assert(err, qt.IsNil)

	ar, err := kar.Open(bytes.NewReader(buf.Bytes()))
	c.Assert(err, qt.IsNil)
	shaders, err := ShadersFromArchive(ar)
	c.Assert(err, qt.IsNil)
	checkTestShaders(c, shaders)
}

func TestSliceUint32(t *testing.T) {
	c := qt.New(t)
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[4:], spirvMagic)
	words := SliceUint32(data)
	c.Assert(words, qt.HasLen, 3)
	c.Assert(words[1], qt.Equals, uint32(spirvMagic))
	c.Assert(SliceUint32(nil), qt.HasLen, 0)
}

func TestSafeStrings(t *testing.T) {
	c := qt.New(t)
	c.Assert(safeStrings([]string{"VK_KHR_swapchain"}), qt.DeepEquals, []string{"VK_KHR_swapchain\x00"})
}

func benchmarkSliceUint32(size int, b *testing.B) {
	data := make([]byte, size)
	rand.Read(data)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SliceUint32(data)
	}
}

func BenchmarkSliceUint32Small(b *testing.B) {
	benchmarkSliceUint32(1<<10, b)
}

func BenchmarkSliceUint32Medium(b *testing.B) {
	benchmarkSliceUint32(1<<16, b)
}

func BenchmarkSliceUint32Big(b *testing.B) {
	benchmarkSliceUint32(1<<22, b)
}
