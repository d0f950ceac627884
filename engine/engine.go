package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spaghettifunk/array/engine/assets"
	"github.com/spaghettifunk/array/engine/config"
	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/math"
	"github.com/spaghettifunk/array/engine/platform"
	"github.com/spaghettifunk/array/engine/renderer"
	"github.com/spaghettifunk/array/engine/tracking"
)

const defaultConfigPath = "config.toml"

// How long Shutdown waits for frames in flight before leaking their resources.
const shutdownTimeout = 5 * time.Second

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    bool
	isSuspended  bool

	cfg           *config.Config
	watcher       *config.Watcher
	platform      *platform.Platform
	assetManager  *assets.AssetManager
	backend       *backend
	renderer      *renderer.Renderer
	session       *tracking.SimulatedSession
	sessionCancel context.CancelFunc
	sessionDone   chan error

	width    uint32
	height   uint32
	clock    *core.Clock
	metrics  *core.Metrics
	lastTime float64
	frames   uint64
}

// New loads the configuration and boots the game. Subsystems are started by
// Initialize.
func New(g *Game) (*Engine, error) {
	e := &Engine{
		currentStage: EngineStageBooting,
		gameInstance: g,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
	}

	path := g.ConfigPath
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	if g.FnBoot != nil {
		if err := g.FnBoot(cfg); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	core.SetLogLevel(cfg.LogLevel())

	am, err := assets.NewAssetManager()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	e.cfg = cfg
	e.assetManager = am
	e.width = cfg.Application.Width
	e.height = cfg.Application.Height
	e.currentStage = EngineStageBootComplete
	return e, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	cfg := e.cfg

	// initialize input
	if err := core.InputInitialize(); err != nil {
		return err
	}

	// initialize events
	if !core.EventSystemInitialize() {
		core.LogDebug("event system already initialized")
	}

	// register some events
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e.onEvent)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e.onKey)
	core.EventRegister(core.EVENT_CODE_RESIZED, e.onResized)
	core.EventRegister(core.EVENT_CODE_DISPLAY_MODE_CHANGED, e.onDisplayMode)
	core.EventRegister(core.EVENT_CODE_CONFIG_RELOADED, e.onConfigReloaded)
	core.EventRegister(core.EVENT_CODE_SHADER_CHANGED, e.onShaderChanged)
	core.EventRegister(core.EVENT_CODE_TRACKING_INTERRUPTED, e.onTracking)
	core.EventRegister(core.EVENT_CODE_TRACKING_INTERRUPT_ENDED, e.onTracking)
	core.EventRegister(core.EVENT_CODE_TRACKING_FAILED, e.onTracking)

	if cfg.BackendType() == renderer.Vulkan {
		e.platform = platform.New()
		if err := e.platform.Startup(cfg.Application.Name,
			cfg.Application.PosX,
			cfg.Application.PosY,
			cfg.Application.Width,
			cfg.Application.Height); err != nil {
			return err
		}
		// High density displays hand out more pixels than the window size.
		e.width, e.height = e.platform.FramebufferSize()
	}

	// initialize subsystems
	if err := e.assetManager.Initialize(cfg.Assets.Dir, cfg.Assets.Watch); err != nil {
		return err
	}

	b, err := newBackend(cfg, e.platform, e.assetManager, e.width, e.height)
	if err != nil {
		return err
	}
	e.backend = b

	e.session = newSession(cfg, e.assetManager)
	e.session.SetDelegate(e)

	r, err := renderer.New(b.Device, b.Destination, e.session, renderer.Options{
		MaxBuffersInFlight: cfg.Renderer.FramesInFlight,
		DisplayMode:        cfg.DisplayMode(),
	})
	if err != nil {
		return err
	}
	e.renderer = r

	if cfg.Path() != "" {
		w, err := config.Watch(cfg)
		if err != nil {
			core.LogWarn("config hot reload disabled: %s", err)
		} else {
			e.watcher = w
		}
	}

	e.gameInstance.App = &Application{
		Config:   cfg,
		Assets:   e.assetManager,
		Renderer: r,
		Session:  e.session,
		Metrics:  e.metrics,
	}
	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.isRunning = true
	e.currentStage = EngineStageInitialized
	return nil
}

// Run drives the frame loop until the application quits, ctx is done or the
// configured frame count is reached.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine run in stage %d", e.currentStage)
	}
	e.currentStage = EngineStageRunning

	sessionCtx, cancel := context.WithCancel(ctx)
	e.sessionCancel = cancel
	e.sessionDone = make(chan error, 1)
	go func() {
		e.sessionDone <- e.session.Run(sessionCtx)
	}()

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var targetFrameSeconds float64
	if fps := e.cfg.Application.TargetFPS; fps > 0 {
		targetFrameSeconds = 1.0 / fps
	}
	// Presentation paces the window backend, the headless one has nothing to wait on.
	limitFrames := e.backend.Type == renderer.Headless || !e.cfg.Renderer.VSync
	var lastReport float64

	for e.isRunning {
		if ctx.Err() != nil {
			break
		}
		if e.platform != nil && !e.platform.PumpMessages() {
			e.isRunning = false
			break
		}
		core.EventDispatch()
		if !e.isRunning {
			break
		}

		if e.isSuspended {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStart := time.Now()

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("Game update failed, shutting down: %s", err)
				e.isRunning = false
				break
			}
		}

		if err := e.renderer.Draw(); err != nil {
			switch {
			case renderer.IsSkipped(err):
				core.LogDebug("frame skipped: %s", err)
			case errors.Is(err, core.ErrClosed):
				e.isRunning = false
			default:
				core.LogError("draw: %s", err)
			}
		}
		e.frames++

		// Figure out how long the frame took and, if below the target, give the rest back to the OS.
		frameElapsed := time.Since(frameStart).Seconds()
		if remaining := targetFrameSeconds - frameElapsed; limitFrames && remaining > 0 {
			time.Sleep(time.Duration(remaining * float64(time.Second)))
		}
		e.metrics.Update(frameElapsed)

		if currentTime-lastReport >= 1 {
			fps, ms := e.metrics.Frame()
			core.LogDebug("%.0f fps, %.2f ms/frame, %d/%d frames in flight", fps, ms, e.renderer.Outstanding(), e.renderer.MaxBuffersInFlight())
			lastReport = currentTime
		}

		// NOTE: Input update/state copying should always be handled
		// after any input should be recorded; I.E. before this line.
		// As a safety, input is the last thing to be updated before
		// this frame ends.
		core.InputUpdate(delta)

		// Update last time
		e.lastTime = currentTime

		if limit := e.cfg.Application.MaxFrames; limit > 0 && e.frames >= limit {
			core.LogInfo("reached %d frames, stopping", limit)
			e.isRunning = false
		}
	}
	e.clock.Stop()
	return nil
}

// Frames is the number of frames drawn so far.
func (e *Engine) Frames() uint64 {
	return e.frames
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	var errs []error

	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.sessionCancel != nil {
		e.sessionCancel()
		if err := <-e.sessionDone; err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.renderer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := e.renderer.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}
	if e.backend != nil {
		e.backend.Release()
	}
	if err := e.assetManager.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	if e.platform != nil {
		if err := e.platform.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := core.EventSystemShutdown(); err != nil {
		errs = append(errs, err)
	}
	if err := core.InputShutdown(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ApplicationGetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(context core.EventContext) bool {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onKey(context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	if ke.KeyCode == core.KEY_ESCAPE {
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		core.EventFire(core.EventContext{
			Type: core.EVENT_CODE_APPLICATION_QUIT,
		})
		// Block anything else from processing this.
		return true
	}
	return false
}

func (e *Engine) onResized(context core.EventContext) bool {
	se, ok := context.Data.(*core.SystemEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}

	width := se.WindowWidth
	height := se.WindowHeight

	// Check if different. If so, trigger a resize event.
	if width == e.width && height == e.height {
		return false
	}
	e.width = width
	e.height = height
	core.LogDebug("Window resize: %d, %d", width, height)

	e.backend.resize(width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return false
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	e.renderer.Resize(math.NewVec2(float32(width), float32(height)))
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError(err.Error())
		}
	}
	return false
}

func (e *Engine) onDisplayMode(context core.EventContext) bool {
	mode, ok := context.Data.(renderer.DisplayMode)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	e.renderer.SetDisplayMode(mode)
	return false
}

// onConfigReloaded applies the settings that can change at runtime. The
// rest take effect on the next start.
func (e *Engine) onConfigReloaded(context core.EventContext) bool {
	cfg, ok := context.Data.(*config.Config)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	if cfg.LogLevel() != e.cfg.LogLevel() {
		core.SetLogLevel(cfg.LogLevel())
		core.LogInfo("log level set to %s", cfg.LogLevel())
	}
	if cfg.DisplayMode() != e.cfg.DisplayMode() {
		core.EventFire(core.EventContext{
			Type: core.EVENT_CODE_DISPLAY_MODE_CHANGED,
			Data: cfg.DisplayMode(),
		})
	}
	if cfg.Renderer.Backend != e.cfg.Renderer.Backend || cfg.Renderer.FramesInFlight != e.cfg.Renderer.FramesInFlight {
		core.LogWarn("renderer settings changed, restart to apply them")
	}
	e.cfg = cfg
	if e.gameInstance.App != nil {
		e.gameInstance.App.Config = cfg
	}
	return false
}

// onShaderChanged reports a recompiled stage. Pipelines are built once, so the
// new stage takes effect on the next start.
func (e *Engine) onShaderChanged(context core.EventContext) bool {
	name, ok := context.Data.(string)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	core.LogWarn("shader %s changed, restart to apply it", name)
	return false
}

func (e *Engine) onTracking(context core.EventContext) bool {
	switch context.Type {
	case core.EVENT_CODE_TRACKING_INTERRUPTED:
		core.LogWarn("tracking session interrupted, anchors are not accepted until it resumes")
	case core.EVENT_CODE_TRACKING_INTERRUPT_ENDED:
		core.LogInfo("tracking session resumed")
	case core.EVENT_CODE_TRACKING_FAILED:
		core.LogError("tracking session failed: %v", context.Data)
	}
	return false
}

// The session delegate runs on the session goroutine, every callback is
// turned into an event for the frame loop.

func (e *Engine) SessionWasInterrupted(s tracking.Session) {
	core.EventFire(core.EventContext{Type: core.EVENT_CODE_TRACKING_INTERRUPTED})
}

func (e *Engine) SessionInterruptionEnded(s tracking.Session) {
	core.EventFire(core.EventContext{Type: core.EVENT_CODE_TRACKING_INTERRUPT_ENDED})
}

func (e *Engine) SessionDidFail(s tracking.Session, err error) {
	core.EventFire(core.EventContext{Type: core.EVENT_CODE_TRACKING_FAILED, Data: err})
}
