package renderer

import (
	"fmt"

	"github.com/ember-engine/ember/engine/assets"
	"github.com/ember-engine/ember/engine/config"
	"github.com/ember-engine/ember/engine/platform"
	"github.com/ember-engine/ember/engine/renderer/metadata"
	"github.com/ember-engine/ember/engine/renderer/vulkan"
)

// RendererBackend is the contract between the engine and a rendering API.
type RendererBackend interface {
	Initialize(appName string, shaders *assets.ShaderSet) error
	Resized(width, height uint32) error
	DrawFrame(packet *metadata.RenderPacket) error
	Minimized() bool
	FrameNumber() uint64
	ReloadShaders(shaders *assets.ShaderSet) error
	Shutdown() error
}

// Renderer is the engine-facing frontend over the active backend.
type Renderer struct {
	backend RendererBackend
}

func New(p *platform.Platform, cfg *config.RendererConfig) *Renderer {
	return &Renderer{
		backend: vulkan.New(p, cfg),
	}
}

func (r *Renderer) Initialize(appName string, shaders *assets.ShaderSet) error {
	if err := r.backend.Initialize(appName, shaders); err != nil {
		return fmt.Errorf("failed to initialize renderer backend: %w", err)
	}
	return nil
}

func (r *Renderer) OnResize(width, height uint32) error {
	return r.backend.Resized(width, height)
}

// DrawFrame renders one frame; a minimized surface skips the frame without
// error.
func (r *Renderer) DrawFrame(packet *metadata.RenderPacket) error {
	return r.backend.DrawFrame(packet)
}

func (r *Renderer) Minimized() bool {
	return r.backend.Minimized()
}

func (r *Renderer) FrameNumber() uint64 {
	return r.backend.FrameNumber()
}

func (r *Renderer) ReloadShaders(shaders *assets.ShaderSet) error {
	return r.backend.ReloadShaders(shaders)
}

func (r *Renderer) Shutdown() error {
	return r.backend.Shutdown()
}
