package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/renderer"
)

type ApplicationConfig struct {
	// The application name used in windowing.
	Name string `toml:"name"`
	// Window starting position.
	PosX uint32 `toml:"pos_x"`
	PosY uint32 `toml:"pos_y"`
	// Window starting size.
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
	// MaxFrames stops the run loop after that many frames, zero runs until quit.
	MaxFrames uint64 `toml:"max_frames"`
	// TargetFPS caps the loop when presentation does not, zero leaves it uncapped.
	TargetFPS float64 `toml:"target_fps"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type RendererConfig struct {
	// Backend is "vulkan" or "headless".
	Backend        string `toml:"backend"`
	FramesInFlight int    `toml:"frames_in_flight"`
	VSync          bool   `toml:"vsync"`
	// Debug turns on the Vulkan validation layer.
	Debug          bool   `toml:"debug"`
	PreferDiscrete bool   `toml:"prefer_discrete"`
	DisplayMode    string `toml:"display_mode"`
}

type TrackingConfig struct {
	// Rate is the number of tracking frames per second.
	Rate float64 `toml:"rate"`
	// Background is an image under the asset directory, empty for a checkerboard.
	Background string  `toml:"background"`
	Width      int     `toml:"width"`
	Height     int     `toml:"height"`
	Jitter     float32 `toml:"jitter"`
	Seed       uint64  `toml:"seed"`
}

type AssetsConfig struct {
	Dir string `toml:"dir"`
	// Watch reloads shaders when their binaries change on disk.
	Watch bool `toml:"watch"`
}

type Config struct {
	Application ApplicationConfig `toml:"application"`
	Log         LogConfig         `toml:"log"`
	Renderer    RendererConfig    `toml:"renderer"`
	Tracking    TrackingConfig    `toml:"tracking"`
	Assets      AssetsConfig      `toml:"assets"`

	// path the config was loaded from, empty for defaults
	path string
}

func Default() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name:      "ARRay",
			PosX:      100,
			PosY:      100,
			Width:     1280,
			Height:    720,
			TargetFPS: 60,
		},
		Log: LogConfig{Level: "info"},
		Renderer: RendererConfig{
			Backend:        "vulkan",
			FramesInFlight: renderer.MaxBuffersInFlight,
			VSync:          true,
			DisplayMode:    "cubes",
		},
		Tracking: TrackingConfig{
			Rate:   30,
			Width:  640,
			Height: 360,
			Jitter: 0.004,
			Seed:   1,
		},
		Assets: AssetsConfig{Dir: "assets", Watch: true},
	}
}

// Load reads a TOML file on top of the defaults. A missing file yields the
// defaults, unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		core.LogWarn("config file %s not found, using defaults", path)
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := Decode(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode strictly unmarshals data into cfg and validates the result.
func Decode(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("%s: %w", strict.String(), core.ErrInvalidConfig)
		}
		return fmt.Errorf("%s: %w", err, core.ErrInvalidConfig)
	}
	return cfg.Validate()
}

func (c *Config) Validate() error {
	switch {
	case c.Application.Width == 0 || c.Application.Height == 0:
		return fmt.Errorf("window size %dx%d: %w", c.Application.Width, c.Application.Height, core.ErrInvalidConfig)
	case c.Application.TargetFPS < 0:
		return fmt.Errorf("target_fps %.2f: %w", c.Application.TargetFPS, core.ErrInvalidConfig)
	case c.Renderer.FramesInFlight < 1:
		return fmt.Errorf("frames_in_flight %d: %w", c.Renderer.FramesInFlight, core.ErrInvalidConfig)
	case c.Tracking.Rate <= 0:
		return fmt.Errorf("tracking rate %.2f: %w", c.Tracking.Rate, core.ErrInvalidConfig)
	case c.Tracking.Width <= 0 || c.Tracking.Height <= 0:
		return fmt.Errorf("tracking image %dx%d: %w", c.Tracking.Width, c.Tracking.Height, core.ErrInvalidConfig)
	case c.Assets.Dir == "":
		return fmt.Errorf("empty asset directory: %w", core.ErrInvalidConfig)
	}
	if _, err := renderer.ParseBackendType(c.Renderer.Backend); err != nil {
		return err
	}
	if _, err := renderer.ParseDisplayMode(c.Renderer.DisplayMode); err != nil {
		return err
	}
	return nil
}

func (c *Config) LogLevel() core.LogLevel {
	return core.ParseLogLevel(c.Log.Level)
}

// BackendType and DisplayMode are only valid on a validated config.
func (c *Config) BackendType() renderer.BackendType {
	b, _ := renderer.ParseBackendType(c.Renderer.Backend)
	return b
}

func (c *Config) DisplayMode() renderer.DisplayMode {
	m, _ := renderer.ParseDisplayMode(c.Renderer.DisplayMode)
	return m
}

// Path is the file the config came from.
func (c *Config) Path() string {
	return c.path
}

// AssetPath joins name onto the asset directory.
func (c *Config) AssetPath(name string) string {
	return filepath.Join(c.Assets.Dir, name)
}

// Encode writes c back as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
