package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, renderer.Vulkan, cfg.BackendType())
	assert.Equal(t, renderer.DisplayCubes, cfg.DisplayMode())
	assert.Equal(t, renderer.MaxBuffersInFlight, cfg.Renderer.FramesInFlight)
	assert.Equal(t, core.InfoLevel, cfg.LogLevel())
}

func TestDecodeOverridesDefaults(t *testing.T) {
	cfg := Default()
	err := Decode([]byte(`
[log]
level = "debug"

[renderer]
backend = "headless"
display_mode = "both"
frames_in_flight = 2
`), cfg)
	require.NoError(t, err)

	assert.Equal(t, core.DebugLevel, cfg.LogLevel())
	assert.Equal(t, renderer.Headless, cfg.BackendType())
	assert.Equal(t, renderer.DisplayBoth, cfg.DisplayMode())
	assert.Equal(t, 2, cfg.Renderer.FramesInFlight)
	// untouched keys keep their defaults
	assert.Equal(t, uint32(1280), cfg.Application.Width)
	assert.Equal(t, 30.0, cfg.Tracking.Rate)
}

func TestDecodeRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":      "[renderer]\nframes = 3\n",
		"zero frames":      "[renderer]\nframes_in_flight = 0\n",
		"bad backend":      "[renderer]\nbackend = \"metal\"\n",
		"bad display mode": "[renderer]\ndisplay_mode = \"wireframe\"\n",
		"zero width":       "[application]\nwidth = 0\n",
		"zero rate":        "[tracking]\nrate = 0.0\n",
		"syntax":           "[renderer\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			err := Decode([]byte(doc), Default())
			assert.ErrorIs(t, err, core.ErrInvalidConfig)
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Application, cfg.Application)
}

func TestLoadRepositoryConfig(t *testing.T) {
	cfg, err := Load("../../config.toml")
	require.NoError(t, err)
	assert.Equal(t, "ARRay", cfg.Application.Name)
	assert.Equal(t, filepath.Join("assets", "textures", "background.png"), cfg.AssetPath(cfg.Tracking.Background))
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Renderer.DisplayMode = "points"
	data, err := cfg.Encode()
	require.NoError(t, err)

	decoded := Default()
	require.NoError(t, Decode(data, decoded))
	assert.Equal(t, renderer.DisplayPoints, decoded.DisplayMode())
}

func TestWatcherFiresReload(t *testing.T) {
	core.EventSystemInitialize()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"info\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	w, err := Watch(cfg)
	require.NoError(t, err)
	defer w.Close()

	var got atomic.Pointer[Config]
	core.EventRegister(core.EVENT_CODE_CONFIG_RELOADED, func(ctx core.EventContext) bool {
		got.Store(ctx.Data.(*Config))
		return true
	})
	defer core.EventUnregisterAll(core.EVENT_CODE_CONFIG_RELOADED)

	// a broken file is ignored
	require.NoError(t, os.WriteFile(path, []byte("[log\n"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("[renderer]\ndisplay_mode = \"points\"\n"), 0o644))

	assert.Eventually(t, func() bool {
		core.EventDispatch()
		c := got.Load()
		return c != nil && c.DisplayMode() == renderer.DisplayPoints
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, renderer.DisplayPoints, w.Current().DisplayMode())
}

func TestWatchNeedsAFile(t *testing.T) {
	_, err := Watch(Default())
	assert.Error(t, err)
}
