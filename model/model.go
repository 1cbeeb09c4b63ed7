// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package model holds the objects of the demo scene koru draws.
package model

import (
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/devblok/koru/gfx"
	glm "github.com/go-gl/mathgl/mgl32"
)

// PushConstantSize is the size of the push constant block every object
// is drawn with.
const PushConstantSize = 48

// Transform2D places an object on screen: scaled first, then rotated
// (in radians), then moved by Translation.
type Transform2D struct {
	Translation glm.Vec2
	Scale       glm.Vec2
	Rotation    float32
}

// Mat2 returns the rotation and scale part of the transform.
func (t Transform2D) Mat2() glm.Mat2 {
	scale := glm.Mat2{t.Scale[0], 0, 0, t.Scale[1]}
	return glm.Rotate2D(t.Rotation).Mul2(scale)
}

var lastID uint32

// GameObject is a colored object of the scene. Objects without a model
// are not drawn.
type GameObject struct {
	id        uint32
	Model     *Model
	Color     glm.Vec3
	Transform Transform2D
}

// NewGameObject creates an object with a unique id and an identity transform.
func NewGameObject() *GameObject {
	return &GameObject{
		id: atomic.AddUint32(&lastID, 1) - 1,
		Transform: Transform2D{
			Scale: glm.Vec2{1, 1},
		},
	}
}

// ID returns the id of the object.
func (o *GameObject) ID() uint32 {
	return o.id
}

// PushConstant is laid out as the shaders expect it:
// mat2 transform, vec2 offset, then a 16 byte aligned vec3 color.
type PushConstant struct {
	Transform glm.Mat2
	Offset    glm.Vec2
	Color     glm.Vec3
}

// Bytes encodes the push constant into its std430 memory layout.
func (pc PushConstant) Bytes() []byte {
	buf := make([]byte, PushConstantSize)
	put := func(offset int, values ...float32) {
		for i, v := range values {
			binary.LittleEndian.PutUint32(buf[offset+4*i:], math.Float32bits(v))
		}
	}
	put(0, pc.Transform[:]...)
	put(16, pc.Offset[:]...)
	put(32, pc.Color[:]...)
	return buf
}

// PushConstant returns what the object is drawn with.
func (o *GameObject) PushConstant() PushConstant {
	return PushConstant{
		Transform: o.Transform.Mat2(),
		Offset:    o.Transform.Translation,
		Color:     o.Color,
	}
}

// Scene is a list of objects that spin a little on every update.
type Scene struct {
	Objects []*GameObject
}

// DefaultScene is a single green triangle, stretched and turned a quarter.
// With depth above zero the triangle is a Sierpinski triangle of that depth.
func DefaultScene(device BufferDevice, depth int) (*Scene, error) {
	top, right, left := glm.Vec2{0, -0.5}, glm.Vec2{0.5, 0.5}, glm.Vec2{-0.5, 0.5}
	vertices := []Vertex{
		{Position: top, Color: glm.Vec3{1, 0, 0}},
		{Position: right, Color: glm.Vec3{0, 1, 0}},
		{Position: left, Color: glm.Vec3{0, 0, 1}},
	}
	if depth > 0 {
		vertices = Sierpinski(depth, left, right, top)
	}
	m, err := NewModel(device, vertices)
	if err != nil {
		return nil, err
	}

	triangle := NewGameObject()
	triangle.Model = m
	triangle.Color = glm.Vec3{0, 0.8, 0.1}
	triangle.Transform.Translation[0] = 0.2
	triangle.Transform.Scale = glm.Vec2{2, 0.5}
	triangle.Transform.Rotation = 0.25 * 2 * math.Pi
	return &Scene{Objects: []*GameObject{triangle}}, nil
}

// Update advances the rotation of every object, later objects spin faster.
func (s *Scene) Update() {
	for i, o := range s.Objects {
		rotation := o.Transform.Rotation + 0.001*float32(i+1)
		o.Transform.Rotation = float32(math.Mod(float64(rotation), 2*math.Pi))
	}
}

// Draw records every object. It has the signature of core.DrawFunc.
func (s *Scene) Draw(cb gfx.CmdBuffer, p gfx.Pipeline, extent gfx.Extent2D) {
	for _, o := range s.Objects {
		if o.Model == nil {
			continue
		}
		cb.PushConstants(p, 0, o.PushConstant().Bytes())
		o.Model.Bind(cb)
		o.Model.Draw(cb)
	}
}

// Release releases the models of every object. The device must be done
// with every frame drawing them.
func (s *Scene) Release() {
	for _, o := range s.Objects {
		if o.Model != nil {
			o.Model.Release()
			o.Model = nil
		}
	}
}
