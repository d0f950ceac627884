package testbed

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/array/engine"
	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/math"
	"github.com/spaghettifunk/array/engine/renderer"
	"github.com/spaghettifunk/array/engine/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHeadless(t *testing.T) (*TestGame, *tracking.SimulatedSession) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	path := filepath.Join(dir, "config.toml")
	doc := fmt.Sprintf(`
[application]
width = 640
height = 360

[renderer]
backend = "headless"

[tracking]
width = 64
height = 36

[assets]
dir = '%s'
watch = false
`, filepath.Join(dir, "assets"))
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	g := NewTestGame(path)
	e, err := engine.New(g.Game)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	t.Cleanup(func() { _ = e.Shutdown() })

	session, ok := g.App.Session.(*tracking.SimulatedSession)
	require.True(t, ok)
	return g, session
}

func TestTapWithoutFrame(t *testing.T) {
	g, _ := startHeadless(t)
	assert.False(t, g.Tap(math.NewVec2(320, 180)))
}

func TestTapPlacesAnchorAndPoint(t *testing.T) {
	g, session := startHeadless(t)
	require.NoError(t, session.Step(0))

	require.True(t, g.Tap(math.NewVec2(320, 180)))
	require.NoError(t, session.Step(0))

	current := session.CurrentFrame()
	require.Len(t, current.Anchors, 1)

	// the tap through the centre lands on the camera axis, 0.2 in front of it
	camera := current.Camera
	want := camera.Transform.TransformPoint(math.NewVec3(0, 0, -0.2))
	assert.True(t, g.App.Renderer.ObjectPosition().Compare(want, 1e-3), "%v != %v", g.App.Renderer.ObjectPosition(), want)
	assert.True(t, current.Anchors[0].Transform.Translation().Compare(want, 1e-4))
}

func TestTapRejectedWhileInterrupted(t *testing.T) {
	g, session := startHeadless(t)
	require.NoError(t, session.Step(0))

	session.Interrupt()
	assert.False(t, g.Tap(math.NewVec2(10, 10)))
	session.EndInterruption()
	assert.True(t, g.Tap(math.NewVec2(10, 10)))
}

func TestKeysDriveDisplayModeAndSession(t *testing.T) {
	g, session := startHeadless(t)

	press := func(key core.KeyCode) {
		core.EventFire(core.EventContext{Type: core.EVENT_CODE_KEY_PRESSED, Data: &core.KeyEvent{KeyCode: key}})
		// key handler, then the display mode listener
		core.EventDispatch()
		core.EventDispatch()
	}

	press(core.KEY_2)
	assert.Equal(t, renderer.DisplayPoints, g.App.Renderer.DisplayMode())
	press(core.KEY_3)
	assert.Equal(t, renderer.DisplayBoth, g.App.Renderer.DisplayMode())
	press(core.KEY_SPACE)
	assert.Equal(t, renderer.DisplayCubes, g.App.Renderer.DisplayMode())
	press(core.KEY_1)
	assert.Equal(t, renderer.DisplayCubes, g.App.Renderer.DisplayMode())

	press(core.KEY_P)
	assert.True(t, session.Interrupted())
	press(core.KEY_P)
	assert.False(t, session.Interrupted())

	g.App.Renderer.SetObjectPosition(math.NewVec3(1, 2, 3))
	press(core.KEY_R)
	assert.Equal(t, math.NewVec3Zero(), g.App.Renderer.ObjectPosition())
}

func TestLeftClickTaps(t *testing.T) {
	g, session := startHeadless(t)
	require.NoError(t, session.Step(0))

	core.EventFire(core.EventContext{Type: core.EVENT_CODE_BUTTON_PRESSED, Data: &core.MouseEvent{Button: core.BUTTON_RIGHT, PosX: 1, PosY: 1}})
	core.EventFire(core.EventContext{Type: core.EVENT_CODE_BUTTON_PRESSED, Data: &core.MouseEvent{Button: core.BUTTON_LEFT, PosX: 320, PosY: 180}})
	core.EventDispatch()

	state := g.State.(*gameState)
	assert.Equal(t, 1, state.taps)
	assert.Equal(t, 1, state.anchors)
}
