package engine

import (
	"fmt"
	"image"

	"github.com/spaghettifunk/array/engine/assets"
	"github.com/spaghettifunk/array/engine/config"
	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/math"
	"github.com/spaghettifunk/array/engine/platform"
	"github.com/spaghettifunk/array/engine/renderer"
	"github.com/spaghettifunk/array/engine/renderer/headless"
	"github.com/spaghettifunk/array/engine/renderer/vulkan"
	"github.com/spaghettifunk/array/engine/tracking"
)

// Application is what the game sees of the running engine.
type Application struct {
	Config   *config.Config
	Assets   *assets.AssetManager
	Renderer *renderer.Renderer
	Session  tracking.Session
	Metrics  *core.Metrics
}

// backend pairs the renderer backend with the way its surface is resized.
type backend struct {
	*renderer.Backend
	resize func(width, height uint32)
}

func newBackend(cfg *config.Config, p *platform.Platform, shaders *assets.AssetManager, width, height uint32) (*backend, error) {
	switch cfg.BackendType() {
	case renderer.Vulkan:
		if p == nil || p.Window == nil {
			return nil, fmt.Errorf("vulkan backend needs a window: %w", core.ErrInvalidConfig)
		}
		dev, err := vulkan.New(p.Window, vulkan.Options{
			ApplicationName: cfg.Application.Name,
			Width:           width,
			Height:          height,
			VSync:           cfg.Renderer.VSync,
			Debug:           cfg.Renderer.Debug,
			PreferDiscrete:  cfg.Renderer.PreferDiscrete,
			Shaders:         shaders,
		})
		if err != nil {
			return nil, err
		}
		dest := dev.Destination()
		return &backend{
			Backend: &renderer.Backend{Type: renderer.Vulkan, Device: dev, Destination: dest},
			resize:  dest.Resize,
		}, nil

	case renderer.Headless:
		size := math.NewVec2(float32(width), float32(height))
		// Pipelines are not compiled without a GPU, so stages are not required on disk.
		dev := headless.NewDevice(headless.Options{
			Name:         "headless",
			DrawableSize: size,
		})
		dest := headless.NewDestination(size)
		return &backend{
			Backend: &renderer.Backend{Type: renderer.Headless, Device: dev, Destination: dest},
			resize: func(width, height uint32) {
				dest.SetDrawableAvailable(width > 0 && height > 0)
				dest.SetDrawableSize(math.NewVec2(float32(width), float32(height)))
			},
		}, nil

	default:
		return nil, fmt.Errorf("renderer backend %s: %w", cfg.Renderer.Backend, core.ErrInvalidConfig)
	}
}

func newSession(cfg *config.Config, am *assets.AssetManager) *tracking.SimulatedSession {
	sc := tracking.DefaultSimulatedConfig()
	sc.Rate = cfg.Tracking.Rate
	sc.ImageResolution = image.Pt(cfg.Tracking.Width, cfg.Tracking.Height)
	sc.Jitter = cfg.Tracking.Jitter
	sc.Seed = cfg.Tracking.Seed

	if cfg.Tracking.Background != "" {
		// twice as wide as the camera image so the pan has room
		bg, err := am.Image(cfg.Tracking.Background, image.Pt(2*cfg.Tracking.Width, cfg.Tracking.Height))
		if err != nil {
			core.LogWarn("tracking background %s: %s, using a checkerboard", cfg.Tracking.Background, err)
		} else {
			sc.Background = bg
		}
	}
	return tracking.NewSimulatedSession(sc)
}
