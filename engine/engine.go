package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/ember-engine/ember/engine/assets"
	"github.com/ember-engine/ember/engine/config"
	"github.com/ember-engine/ember/engine/core"
	"github.com/ember-engine/ember/engine/platform"
	"github.com/ember-engine/ember/engine/renderer"
	"github.com/ember-engine/ember/engine/renderer/metadata"
)

// Seconds between periodic FPS/frame-time log lines.
const metricsLogInterval = 5.0

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
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
	config       *config.Config
	isRunning    bool
	platform     *platform.Platform
	renderer     *renderer.Renderer
	geometry     *metadata.Geometry
	width        uint32
	height       uint32
	clock        *core.Clock
	lastTime     float64
	// Elapsed time of the last periodic metrics report.
	lastMetricsTime float64

	shaderWatcher *assets.ShaderWatcher
	// Set from the watcher goroutine, consumed between frames.
	shadersDirty atomic.Bool
}

func New(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("engine requires a configuration")
	}
	p := platform.New()

	return &Engine{
		currentStage: EngineStageUninitialized,
		config:       cfg,
		clock:        core.NewClock(),
		platform:     p,
		renderer:     renderer.New(p, &cfg.Renderer),
		geometry:     metadata.NewQuadGeometry(),
		isRunning:    true,
		width:        cfg.Application.StartWidth,
		height:       cfg.Application.StartHeight,
		lastTime:     0,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	if !core.EventSystemInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}
	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e.onEvent)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e.onKey)
	core.EventRegister(core.EVENT_CODE_RESIZED, e.onResized)
	core.EventRegister(core.EVENT_CODE_SHADERS_RELOADED, e.onShadersReloaded)

	if err := e.platform.Startup(e.config.Application.Name,
		e.config.Application.StartPosX,
		e.config.Application.StartPosY,
		e.config.Application.StartWidth,
		e.config.Application.StartHeight); err != nil {
		return err
	}

	shaders, err := assets.LoadShaderSet(e.config.Renderer.VertexShader, e.config.Renderer.FragmentShader)
	if err != nil {
		return err
	}
	if err := e.renderer.Initialize(e.config.Application.Name, shaders); err != nil {
		return err
	}

	if e.config.Renderer.WatchShaders {
		watcher, err := assets.NewShaderWatcher(e.config.Renderer.VertexShader, e.config.Renderer.FragmentShader)
		if err != nil {
			return err
		}
		e.shaderWatcher = watcher
	}

	core.LogInfo("Session %s initialized.", core.SessionID())
	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()
	e.lastMetricsTime = e.lastTime

	for e.isRunning {
		if !e.platform.PumpMessages() {
			e.isRunning = false
			break
		}

		// While minimized there is nothing to render; block until the window
		// system has something new to say.
		if e.renderer.Minimized() {
			e.platform.WaitMessages()
			continue
		}

		if e.shadersDirty.Swap(false) {
			e.reloadShaders()
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := platform.GetAbsoluteTime()

		packet := &metadata.RenderPacket{
			DeltaTime: delta,
			Geometry:  e.geometry,
		}
		if err := e.renderer.DrawFrame(packet); err != nil {
			core.LogError("Frame %d failed: %s, shutting down.", e.renderer.FrameNumber(), err.Error())
			e.isRunning = false
			break
		}

		frameElapsedTime := platform.GetAbsoluteTime() - frameStartTime
		core.MetricsUpdate(frameElapsedTime)
		if currentTime-e.lastMetricsTime >= metricsLogInterval {
			fps, frameTime := core.MetricsFrame()
			core.LogDebug("Frame %d: %.0f FPS, %.2fms frame time.", e.renderer.FrameNumber(), fps, frameTime)
			e.lastMetricsTime = currentTime
		}

		e.lastTime = currentTime
	}

	return e.Shutdown()
}

// Shutdown tears everything down in the opposite order of creation:
// renderer first, then resources, then the windowing framework.
func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false

	if e.shaderWatcher != nil {
		if err := e.shaderWatcher.Close(); err != nil {
			core.LogWarn("failed to close shader watcher: %s", err)
		}
		e.shaderWatcher = nil
	}
	if err := e.renderer.Shutdown(); err != nil {
		return err
	}
	if err := core.EventSystemShutdown(); err != nil {
		return err
	}
	if err := e.platform.Shutdown(); err != nil {
		return err
	}
	core.LogInfo("Engine shut down after %d frames.", e.renderer.FrameNumber())
	return nil
}

// GetFramebufferSize returns the width and height (in this order) of the
// application framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) reloadShaders() {
	shaders, err := assets.LoadShaderSet(e.config.Renderer.VertexShader, e.config.Renderer.FragmentShader)
	if err != nil {
		// A half-written binary; keep the current pipeline.
		core.LogWarn("skipping shader reload: %s", err)
		return
	}
	if err := e.renderer.ReloadShaders(shaders); err != nil {
		core.LogError("failed to reload shaders: %s", err)
	}
}

func (e *Engine) onEvent(context core.EventContext) {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
	}
}

func (e *Engine) onKey(context core.EventContext) {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return
	}
	core.LogDebug("'%c' key pressed in window.", ke.KeyCode)
}

func (e *Engine) onResized(context core.EventContext) {
	se, ok := context.Data.(*core.SystemEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return
	}

	width := se.WindowWidth
	height := se.WindowHeight

	if width == e.width && height == e.height {
		return
	}
	e.width = width
	e.height = height

	core.LogDebug("Window resize: %d, %d", width, height)
	if err := e.renderer.OnResize(width, height); err != nil {
		core.LogError("resize failed: %s", err)
		e.isRunning = false
	}
}

func (e *Engine) onShadersReloaded(context core.EventContext) {
	e.shadersDirty.Store(true)
}
