// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unsafe"

	"github.com/devblok/koru/utility/kar"
	"github.com/gobuffalo/packd"
	"github.com/gobuffalo/packr"
)

const (
	shaderSuffix = ".spv"
	spirvMagic   = 0x07230203
)

// ErrInvalidShader is returned for shader code that is not SPIR-V.
var ErrInvalidShader = errors.New("not a SPIR-V module")

// ShaderStage is the pipeline stage a shader runs in.
type ShaderStage int

// Supported shader stages.
const (
	VertexStage ShaderStage = iota
	FragmentStage
)

func (s ShaderStage) String() string {
	if s == FragmentStage {
		return "frag"
	}
	return "vert"
}

// ShaderCode is a compiled shader.
type ShaderCode struct {
	Name  string
	Stage ShaderStage
	Code  []byte
}

// ParseShaderName splits a compiled shader file name. The name must consist
// of exactly three dot separated parts: the shader name, the stage (vert or
// frag) and the spv extension.
func ParseShaderName(file string) (name string, stage ShaderStage, ok bool) {
	file = filepath.Base(file)
	if !strings.HasSuffix(file, shaderSuffix) {
		return "", 0, false
	}
	nodes := strings.Split(strings.TrimSuffix(file, shaderSuffix), ".")
	if len(nodes) != 2 || nodes[0] == "" {
		return "", 0, false
	}
	switch nodes[1] {
	case "vert":
		return nodes[0], VertexStage, true
	case "frag":
		return nodes[0], FragmentStage, true
	}
	return "", 0, false
}

func validateSPIRV(code []byte) error {
	if len(code) < 20 || len(code)%4 != 0 {
		return ErrInvalidShader
	}
	if binary.LittleEndian.Uint32(code) != spirvMagic {
		return ErrInvalidShader
	}
	return nil
}

// collectShaders builds shader code from named blobs, skipping files
// that are not compiled shaders.
func collectShaders(names []string, read func(string) ([]byte, error)) ([]ShaderCode, error) {
	var shaders []ShaderCode
	for _, file := range names {
		name, stage, ok := ParseShaderName(file)
		if !ok {
			continue
		}
		code, err := read(file)
		if err != nil {
			return nil, err
		}
		if err := validateSPIRV(code); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		shaders = append(shaders, ShaderCode{Name: name, Stage: stage, Code: code})
	}
	sort.SliceStable(shaders, func(i, j int) bool {
		if shaders[i].Name != shaders[j].Name {
			return shaders[i].Name < shaders[j].Name
		}
		return shaders[i].Stage < shaders[j].Stage
	})
	return shaders, nil
}

// ShadersFromDirectory loads all compiled shaders found under dir.
func ShadersFromDirectory(dir string) ([]ShaderCode, error) {
	var files []string
	if err := filepath.Walk(dir, func(path string, f os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !f.IsDir() {
			files = append(files, path)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return collectShaders(files, ioutil.ReadFile)
}

// ShadersFromBox loads all compiled shaders packed into box.
func ShadersFromBox(box packr.Box) ([]ShaderCode, error) {
	var files []string
	if err := box.Walk(func(path string, _ packd.File) error {
		files = append(files, path)
		return nil
	}); err != nil {
		return nil, err
	}
	return collectShaders(files, box.Find)
}

// ShadersFromArchive loads all compiled shaders stored in a kar archive.
func ShadersFromArchive(ar *kar.Archive) ([]ShaderCode, error) {
	return collectShaders(ar.Names(), ar.ReadAll)
}

// SelectShaders picks the stages of the shader with the given name.
// A vertex stage is required.
func SelectShaders(shaders []ShaderCode, name string) ([]ShaderCode, error) {
	var (
		selected  []ShaderCode
		hasVertex bool
	)
	for _, s := range shaders {
		if s.Name != name {
			continue
		}
		if s.Stage == VertexStage {
			hasVertex = true
		}
		selected = append(selected, s)
	}
	if !hasVertex {
		return nil, fmt.Errorf("shader %s: no vertex stage", name)
	}
	return selected, nil
}

// SliceUint32 reslices bytes into a uint32, that is used
// to submit vulkan shaders for processing
func SliceUint32(data []byte) []uint32 {
	if len(data) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}
