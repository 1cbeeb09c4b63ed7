// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

//go:generate glslangValidator -V -o ../../shaders/triangle.vert.spv ../../shaders/triangle.vert
//go:generate glslangValidator -V -o ../../shaders/triangle.frag.spv ../../shaders/triangle.frag

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"sync"
	"sync/atomic"
	"time"

	"github.com/devblok/koru/core"
	"github.com/devblok/koru/gfx/vkr"
	"github.com/devblok/koru/model"
	"github.com/devblok/koru/utility/kar"
	"github.com/devblok/koru/window"
	"github.com/gobuffalo/packr"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
)

func init() {
	runtime.LockOSThread()
}

var frameCounter int64

// Profiling
var (
	cpuProfile   = flag.String("cpuprof", "", "Profile CPU usage to file")
	memProfile   = flag.String("memprof", "", "Profile memory usage into a file")
	traceProfile = flag.String("trace", "", "Trace output for profiling")
	debug        = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
)

var (
	envFile     = flag.String("env", "", "Load environment variables from a file")
	archivePath = flag.String("shaders", "", "Load shaders from a kar archive instead of the shader directory")
	shaderName  = flag.String("shader", "triangle", "Name of the shader to draw with")
	sierpinski  = flag.Int("sierpinski", 0, "Draw a Sierpinski triangle of this depth")
)

func main() {
	flag.Parse()

	logger := log.New()
	if err := run(logger); err != nil {
		logger.WithError(err).Fatal("koru exited")
	}
}

func run(logger *log.Logger) error {
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			return err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	if *traceProfile != "" {
		f, err := os.Create(*traceProfile)
		if err != nil {
			return err
		}
		if err := trace.Start(f); err != nil {
			return err
		}
		defer trace.Stop()
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			return err
		}
	}
	configuration, err := core.ConfigurationFromEnv(core.DefaultConfiguration())
	if err != nil {
		return err
	}
	if *debug {
		configuration.Renderer.EnableDiagnostics = true
	}
	if configuration.Renderer.EnableDiagnostics {
		logger.SetLevel(log.DebugLevel)
	}

	quit, err := window.Init()
	if err != nil {
		return err
	}
	defer quit()

	win, err := window.New("Koru3D",
		configuration.Renderer.ScreenWidth,
		configuration.Renderer.ScreenHeight,
		logger)
	if err != nil {
		return err
	}

	instance, err := vkr.NewInstance(vkr.DefaultApplicationInfo, sdl.VulkanGetVkGetInstanceProcAddr(), vkr.InstanceConfiguration{
		Diagnostics: configuration.Renderer.EnableDiagnostics,
		Extensions:  win.InstanceExtensions(),
	})
	if err != nil {
		return err
	}
	defer instance.Release()
	defer win.Destroy(instance)

	surface, err := win.CreateSurface(instance)
	if err != nil {
		return err
	}

	device, err := vkr.NewDevice(instance, surface, configuration.Renderer.DeviceExtensions, logger)
	if err != nil {
		return err
	}
	defer device.Release()

	shaders, err := loadShaders(configuration.Renderer.ShaderDirectory)
	if err != nil {
		return err
	}
	selected, err := vkr.SelectShaders(shaders, *shaderName)
	if err != nil {
		return err
	}
	pipelines, err := vkr.NewPipelineBuilder(device, selected, model.VertexLayout(), model.PushConstantSize, logger)
	if err != nil {
		return err
	}
	defer pipelines.Release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scene, err := model.DefaultScene(device, *sierpinski)
	if err != nil {
		return err
	}
	defer scene.Release()

	engine, err := core.NewEngine(ctx, device, win, pipelines, scene.Draw, configuration.Renderer, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Destroy(); err != nil {
			logger.WithError(err).Error("destroying engine")
		}
	}()

	timeService := core.NewTime(configuration.Time)
	defer timeService.Stop()

	var programSync sync.WaitGroup

	/* Frame counter loop */
	programSync.Add(1)
	go func() {
		defer programSync.Done()
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// 200 ms * 5 = 1s
				count := atomic.SwapInt64(&frameCounter, 0)
				fmt.Printf("\r\033[2KFrame count: %d\tCGO calls: %d", count*5, runtime.NumCgoCall())
			}
		}
	}()

	/* Event and draw loop, both need the window thread */
	err = engine.Run(ctx, timeService.FpsTicker().C, func() error {
		select {
		case <-timeService.EventTicker().C:
			win.PollEvents()
			if win.ShouldClose() {
				cancel()
			}
		default:
		}
		scene.Update()
		atomic.AddInt64(&frameCounter, 1)
		return nil
	})
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	cancel()
	programSync.Wait()
	fmt.Println()

	stats := engine.Stats()
	logger.WithFields(log.Fields{
		"presented": stats.Presented,
		"rebuilds":  stats.Rebuilds,
		"outOfDate": stats.OutOfDate,
	}).Info("event loop exited")

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return err
		}
	}
	return err
}

// loadShaders prefers a kar archive given on the command line, then the
// shaders packed into the binary, then the shader directory on disk.
func loadShaders(dir string) ([]vkr.ShaderCode, error) {
	if *archivePath != "" {
		ar, err := kar.OpenFile(*archivePath)
		if err != nil {
			return nil, err
		}
		defer ar.Close()
		return vkr.ShadersFromArchive(ar)
	}

	box := packr.NewBox("../../shaders")
	if shaders, err := vkr.ShadersFromBox(box); err == nil && len(shaders) > 0 {
		return shaders, nil
	}
	return vkr.ShadersFromDirectory(dir)
}
