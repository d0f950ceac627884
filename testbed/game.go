package testbed

import (
	"github.com/spaghettifunk/array/engine"
	"github.com/spaghettifunk/array/engine/config"
	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/math"
	"github.com/spaghettifunk/array/engine/renderer"
	"github.com/spaghettifunk/array/engine/renderer/components"
	"github.com/spaghettifunk/array/engine/tracking"
)

// Taps leave a red point where they hit the plane in front of the camera.
var tapColor = math.NewVec4(1, 0, 0, 1)

// interrupter is implemented by sessions that can simulate losing the camera.
type interrupter interface {
	Interrupt()
	EndInterruption()
	Interrupted() bool
}

type TestGame struct {
	*engine.Game
}

type gameState struct {
	width  uint32
	height uint32

	taps    int
	anchors int
}

func NewTestGame(configPath string) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ConfigPath: configPath,
			State:      &gameState{},
		},
	}

	tg.FnBoot = tg.Boot
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) Boot(cfg *config.Config) error {
	core.LogInfo("booting testbed with the %s backend...", cfg.Renderer.Backend)
	return nil
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, g.gameOnKey)
	core.EventRegister(core.EVENT_CODE_BUTTON_PRESSED, g.gameOnTap)

	core.LogInfo("tap to place an anchor, 1/2/3 or space switch the display mode, P toggles a tracking interruption")
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.State.(*gameState)
	core.LogInfo("testbed placed %d anchors from %d taps", state.anchors, state.taps)
	return nil
}

func (g *TestGame) viewport() math.Vec2 {
	state := g.State.(*gameState)
	return math.NewVec2(float32(state.width), float32(state.height))
}

// Tap places an anchor on the plane in front of the camera, then drops a red
// point where the tap ray hits that plane and moves the distance field object
// there.
func (g *TestGame) Tap(point math.Vec2) bool {
	state := g.State.(*gameState)
	state.taps++

	app := g.App
	current := app.Session.CurrentFrame()
	if current == nil {
		core.LogDebug("tap ignored, no tracking frame yet")
		return false
	}
	camera := current.Camera

	transform := camera.Transform.Mul(math.NewMat4Translation(math.NewVec3(0, 0, -components.RayPlaneDistance)))
	if _, err := app.Session.AddAnchor(transform); err != nil {
		core.LogWarn("tap ignored: %s", err)
		return false
	}
	state.anchors++

	plane := transform.Mul(math.NewMat4RotationX(math.K_HALF_PI))
	hit, ok := camera.UnprojectPoint(point, plane, tracking.OrientationLandscapeRight, g.viewport())
	if !ok {
		core.LogDebug("tap at %.0f,%.0f missed the placement plane", point.X, point.Y)
		return true
	}
	app.Renderer.AddPoint(hit, tapColor)
	app.Renderer.SetObjectPosition(hit)
	core.LogDebug("anchor %d placed, point at [%.3f, %.3f, %.3f]", state.anchors, hit.X, hit.Y, hit.Z)
	return true
}

func (g *TestGame) gameOnTap(context core.EventContext) bool {
	me, ok := context.Data.(*core.MouseEvent)
	if !ok || me.Button != core.BUTTON_LEFT {
		return false
	}
	g.Tap(math.NewVec2(me.PosX, me.PosY))
	return true
}

func (g *TestGame) setDisplayMode(mode renderer.DisplayMode) {
	core.EventFire(core.EventContext{
		Type: core.EVENT_CODE_DISPLAY_MODE_CHANGED,
		Data: mode,
	})
}

func (g *TestGame) gameOnKey(context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		return false
	}
	app := g.App

	switch ke.KeyCode {
	case core.KEY_1:
		g.setDisplayMode(renderer.DisplayCubes)
	case core.KEY_2:
		g.setDisplayMode(renderer.DisplayPoints)
	case core.KEY_3:
		g.setDisplayMode(renderer.DisplayBoth)
	case core.KEY_SPACE:
		g.setDisplayMode((app.Renderer.DisplayMode() + 1) % (renderer.DisplayBoth + 1))
	case core.KEY_P:
		session, ok := app.Session.(interrupter)
		if !ok {
			core.LogWarn("the tracking session cannot be interrupted")
			return true
		}
		if session.Interrupted() {
			session.EndInterruption()
		} else {
			session.Interrupt()
		}
	case core.KEY_R:
		app.Renderer.SetObjectPosition(math.NewVec3Zero())
		core.LogDebug("object position reset")
	case core.KEY_C:
		if current := app.Session.CurrentFrame(); current != nil {
			pos := current.Camera.Position()
			core.LogInfo("Camera Pos: [%.3f, %.3f, %.3f]", pos.X, pos.Y, pos.Z)
		}
	default:
		core.LogDebug("'%c' key pressed in window.", rune(ke.KeyCode))
		return false
	}
	return true
}
