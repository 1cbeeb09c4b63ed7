// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gobuffalo/envy"
)

// DefaultFramesInFlight is how many frames may be queued on the GPU at once.
const DefaultFramesInFlight = 2

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time     TimeConfiguration
	Renderer RendererConfiguration
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int

	// EventPollDelay is the window event polling interval in milliseconds
	EventPollDelay int
}

// RendererConfiguration is used to configure the renderer
type RendererConfiguration struct {
	ScreenWidth  uint32
	ScreenHeight uint32

	// FramesInFlight bounds how many submitted frames may be
	// unfinished on the GPU at any time.
	FramesInFlight int

	// ResizeSettleFrames is how many frames without a new resize
	// signal the window has to report before the swapchain is rebuilt.
	// Zero rebuilds right after the frame the resize was reported in.
	ResizeSettleFrames int

	// EnableDiagnostics turns on validation layers and debug logging.
	EnableDiagnostics bool

	DeviceExtensions []string
	ShaderDirectory  string
	ClearColor       [4]float32
}

// DefaultConfiguration returns the configuration koru starts with.
func DefaultConfiguration() Configuration {
	return Configuration{
		Time: TimeConfiguration{
			FramesPerSecond: 60,
			EventPollDelay:  50,
		},
		Renderer: RendererConfiguration{
			ScreenWidth:        800,
			ScreenHeight:       600,
			FramesInFlight:     DefaultFramesInFlight,
			ResizeSettleFrames: 1,
			DeviceExtensions: []string{
				"VK_KHR_swapchain",
			},
			ShaderDirectory: "./shaders",
			ClearColor:      [4]float32{0.01, 0.01, 0.01, 1},
		},
	}
}

// ErrInvalidConfiguration is returned by Validate.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Validate checks the configuration for values the engine cannot run with.
func (c Configuration) Validate() error {
	return c.Renderer.Validate()
}

// Validate checks the renderer configuration.
func (r RendererConfiguration) Validate() error {
	switch {
	case r.FramesInFlight < 1:
		return fmt.Errorf("%w: frames in flight must be at least 1, got %d", ErrInvalidConfiguration, r.FramesInFlight)
	case r.ResizeSettleFrames < 0:
		return fmt.Errorf("%w: negative resize settle frames %d", ErrInvalidConfiguration, r.ResizeSettleFrames)
	case r.ScreenWidth == 0 || r.ScreenHeight == 0:
		return fmt.Errorf("%w: screen size %dx%d", ErrInvalidConfiguration, r.ScreenWidth, r.ScreenHeight)
	}
	return nil
}

// Environment variables read by ConfigurationFromEnv.
const (
	EnvScreenWidth        = "KORU_WIDTH"
	EnvScreenHeight       = "KORU_HEIGHT"
	EnvFramesInFlight     = "KORU_FRAMES_IN_FLIGHT"
	EnvResizeSettleFrames = "KORU_RESIZE_SETTLE"
	EnvDiagnostics        = "KORU_DIAGNOSTICS"
	EnvFramesPerSecond    = "KORU_FPS"
	EnvShaderDirectory    = "KORU_SHADERS"
)

// ConfigurationFromEnv overrides fields of base with values found in the
// environment. Unset variables leave the base value untouched.
func ConfigurationFromEnv(base Configuration) (Configuration, error) {
	cfg := base
	cfg.Renderer.DeviceExtensions = append([]string(nil), base.Renderer.DeviceExtensions...)

	if err := envUint32(EnvScreenWidth, &cfg.Renderer.ScreenWidth); err != nil {
		return base, err
	}
	if err := envUint32(EnvScreenHeight, &cfg.Renderer.ScreenHeight); err != nil {
		return base, err
	}
	if err := envInt(EnvFramesInFlight, &cfg.Renderer.FramesInFlight); err != nil {
		return base, err
	}
	if err := envInt(EnvResizeSettleFrames, &cfg.Renderer.ResizeSettleFrames); err != nil {
		return base, err
	}
	if err := envInt(EnvFramesPerSecond, &cfg.Time.FramesPerSecond); err != nil {
		return base, err
	}
	if v := envy.Get(EnvDiagnostics, ""); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return base, fmt.Errorf("%s: %w", EnvDiagnostics, err)
		}
		cfg.Renderer.EnableDiagnostics = b
	}
	cfg.Renderer.ShaderDirectory = envy.Get(EnvShaderDirectory, cfg.Renderer.ShaderDirectory)

	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}

func envInt(key string, dst *int) error {
	v := envy.Get(key, "")
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envUint32(key string, dst *uint32) error {
	v := envy.Get(key, "")
	if v == "" {
		return nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = uint32(n)
	return nil
}
