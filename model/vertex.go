// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/devblok/koru/gfx"
	glm "github.com/go-gl/mathgl/mgl32"
)

// VertexSize is the size of an encoded Vertex.
const VertexSize = 20

// ErrTooFewVertices is returned for models that are not even a triangle.
var ErrTooFewVertices = errors.New("model needs at least 3 vertices")

// Vertex is a corner of a model.
type Vertex struct {
	Position glm.Vec2
	Color    glm.Vec3
}

// VertexLayout is how the vertex shader reads encoded vertices:
// position at location 0, color at location 1.
func VertexLayout() gfx.VertexLayout {
	return gfx.VertexLayout{
		Stride: VertexSize,
		Attributes: []gfx.VertexAttribute{
			{Location: 0, Format: gfx.FormatR32G32Sfloat, Offset: 0},
			{Location: 1, Format: gfx.FormatR32G32B32Sfloat, Offset: 8},
		},
	}
}

// EncodeVertices packs vertices tightly, in the layout of VertexLayout.
func EncodeVertices(vertices []Vertex) []byte {
	buf := make([]byte, 0, len(vertices)*VertexSize)
	for _, v := range vertices {
		for _, f := range [5]float32{v.Position[0], v.Position[1], v.Color[0], v.Color[1], v.Color[2]} {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	}
	return buf
}

// BufferDevice creates GPU buffers, gfx.Device is one.
type BufferDevice interface {
	NewBuffer(usage gfx.BufferUsage, data []byte) (gfx.Buffer, error)
}

// Model is a list of vertices uploaded into a vertex buffer, drawn as
// a triangle list.
type Model struct {
	buffer      gfx.Buffer
	vertexCount uint32
}

// NewModel uploads vertices into a new vertex buffer of device.
func NewModel(device BufferDevice, vertices []Vertex) (*Model, error) {
	if len(vertices) < 3 {
		return nil, fmt.Errorf("%w, got %d", ErrTooFewVertices, len(vertices))
	}
	buffer, err := device.NewBuffer(gfx.BufferUsageVertex, EncodeVertices(vertices))
	if err != nil {
		return nil, fmt.Errorf("creating vertex buffer: %w", err)
	}
	return &Model{
		buffer:      buffer,
		vertexCount: uint32(len(vertices)),
	}, nil
}

// VertexCount returns how many vertices the model draws.
func (m *Model) VertexCount() uint32 {
	return m.vertexCount
}

// Bind binds the vertex buffer at binding 0.
func (m *Model) Bind(cb gfx.CmdBuffer) {
	cb.BindVertexBuffers(0, m.buffer)
}

// Draw draws the bound model once.
func (m *Model) Draw(cb gfx.CmdBuffer) {
	cb.Draw(m.vertexCount, 1, 0, 0)
}

// Release destroys the vertex buffer.
func (m *Model) Release() {
	m.buffer.Release()
}

// Sierpinski returns the triangles of a Sierpinski triangle of the given
// depth between the three corners, 3^depth triangles in total.
func Sierpinski(depth int, left, right, top glm.Vec2) []Vertex {
	var vertices []Vertex
	sierpinski(&vertices, depth, left, right, top)
	return vertices
}

func sierpinski(vertices *[]Vertex, depth int, left, right, top glm.Vec2) {
	if depth <= 0 {
		*vertices = append(*vertices,
			Vertex{Position: top, Color: glm.Vec3{1, 0, 0}},
			Vertex{Position: right, Color: glm.Vec3{0, 1, 0}},
			Vertex{Position: left, Color: glm.Vec3{0, 0, 1}})
		return
	}
	leftTop := left.Add(top).Mul(0.5)
	rightTop := right.Add(top).Mul(0.5)
	leftRight := left.Add(right).Mul(0.5)
	sierpinski(vertices, depth-1, left, leftRight, leftTop)
	sierpinski(vertices, depth-1, leftRight, right, rightTop)
	sierpinski(vertices, depth-1, leftTop, rightTop, top)
}
