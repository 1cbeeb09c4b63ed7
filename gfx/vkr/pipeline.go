// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"errors"
	"fmt"

	"github.com/devblok/koru/gfx"
	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"
)

type shaderModule struct {
	name   string
	stage  vk.ShaderStageFlagBits
	handle vk.ShaderModule
}

// PipelineBuilder creates graphics pipelines from a fixed set of shaders.
// Vertices are read as described by the vertex layout. Viewport and scissor
// are dynamic, so pipelines only depend on the render pass they are built for.
type PipelineBuilder struct {
	device   *Device
	logger   log.FieldLogger
	modules  []shaderModule
	layout   gfx.VertexLayout
	pcSize   uint32
	pcStages vk.ShaderStageFlags
}

// NewPipelineBuilder creates shader modules for shaders. pushConstantSize
// bytes of push constants are made available to every stage.
func NewPipelineBuilder(device *Device, shaders []ShaderCode, layout gfx.VertexLayout, pushConstantSize uint32, logger log.FieldLogger) (*PipelineBuilder, error) {
	if len(shaders) == 0 {
		return nil, errors.New("vkr.NewPipelineBuilder(): no shaders")
	}

	b := &PipelineBuilder{
		device: device,
		logger: logger.WithField("component", "pipeline"),
		layout: layout,
		pcSize: pushConstantSize,
	}
	for _, s := range shaders {
		stage := vk.ShaderStageVertexBit
		if s.Stage == FragmentStage {
			stage = vk.ShaderStageFragmentBit
		}

		smci := vk.ShaderModuleCreateInfo{
			SType:    vk.StructureTypeShaderModuleCreateInfo,
			CodeSize: uint(len(s.Code)),
			PCode:    SliceUint32(s.Code),
		}
		var handle vk.ShaderModule
		if err := vk.Error(vk.CreateShaderModule(device.logical, &smci, nil, &handle)); err != nil {
			b.Release()
			return nil, fmt.Errorf("vk.CreateShaderModule(%s.%s): %w", s.Name, s.Stage, err)
		}
		b.modules = append(b.modules, shaderModule{name: s.Name, stage: stage, handle: handle})
		b.pcStages |= vk.ShaderStageFlags(stage)
	}
	return b, nil
}

// NewPipeline builds a pipeline compatible with rp.
func (b *PipelineBuilder) NewPipeline(rp gfx.RenderPass, extent gfx.Extent2D) (gfx.Pipeline, error) {
	var ranges []vk.PushConstantRange
	if b.pcSize > 0 {
		ranges = append(ranges, vk.PushConstantRange{
			Offset:     0,
			Size:       b.pcSize,
			StageFlags: b.pcStages,
		})
	}
	plci := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}
	var layout vk.PipelineLayout
	if err := vk.Error(vk.CreatePipelineLayout(b.device.logical, &plci, nil, &layout)); err != nil {
		return nil, errors.New("vk.CreatePipelineLayout(): " + err.Error())
	}

	stages := make([]vk.PipelineShaderStageCreateInfo, 0, len(b.modules))
	for _, m := range b.modules {
		stages = append(stages, vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  m.stage,
			Module: m.handle,
			PName:  safeString("main"),
		})
	}

	bindings, attributes := vertexInput(b.layout)

	gpci := []vk.GraphicsPipelineCreateInfo{{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: uint32(len(stages)),
		PStages:    stages,
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
			VertexBindingDescriptionCount:   uint32(len(bindings)),
			PVertexBindingDescriptions:      bindings,
			VertexAttributeDescriptionCount: uint32(len(attributes)),
			PVertexAttributeDescriptions:    attributes,
		},
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: vk.PrimitiveTopologyTriangleList,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			CullMode:    vk.CullModeFlags(vk.CullModeNone),
			FrontFace:   vk.FrontFaceClockwise,
			LineWidth:   1.0,
		},
		PDepthStencilState: &vk.PipelineDepthStencilStateCreateInfo{
			SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:  vk.True,
			DepthWriteEnable: vk.True,
			DepthCompareOp:   vk.CompareOpLess,
			Back: vk.StencilOpState{
				FailOp:    vk.StencilOpKeep,
				PassOp:    vk.StencilOpKeep,
				CompareOp: vk.CompareOpAlways,
			},
			Front: vk.StencilOpState{
				FailOp:    vk.StencilOpKeep,
				PassOp:    vk.StencilOpKeep,
				CompareOp: vk.CompareOpAlways,
			},
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: 1,
			PAttachments: []vk.PipelineColorBlendAttachmentState{{
				ColorWriteMask: 0xF,
				BlendEnable:    vk.False,
			}},
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: 2,
			PDynamicStates: []vk.DynamicState{
				vk.DynamicStateScissor,
				vk.DynamicStateViewport,
			},
		},
		Layout:     layout,
		RenderPass: rp.(*renderPass).handle,
	}}

	pipelines := make([]vk.Pipeline, len(gpci))
	if err := vk.Error(vk.CreateGraphicsPipelines(b.device.logical, b.device.pipelineCache, uint32(len(gpci)), gpci, nil, pipelines)); err != nil {
		vk.DestroyPipelineLayout(b.device.logical, layout, nil)
		return nil, errors.New("vk.CreateGraphicsPipelines(): " + err.Error())
	}

	b.logger.WithFields(log.Fields{
		"shader": b.modules[0].name,
		"width":  extent.Width,
		"height": extent.Height,
	}).Debug("pipeline created")

	return &Pipeline{
		device:   b.device.logical,
		handle:   pipelines[0],
		layout:   layout,
		pcStages: b.pcStages,
	}, nil
}

// Release destroys the shader modules. Pipelines built stay valid.
func (b *PipelineBuilder) Release() {
	for _, m := range b.modules {
		vk.DestroyShaderModule(b.device.logical, m.handle, nil)
	}
	b.modules = nil
}
