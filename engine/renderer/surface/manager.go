package surface

import (
	"fmt"

	"github.com/ember-engine/ember/engine/core"
	"github.com/ember-engine/ember/engine/math"
)

// State is the validity of the presentation surface.
type State uint8

const (
	StateUninitialized State = iota
	// The swapchain matches the surface and may be acquired from.
	StateValid
	// The swapchain no longer matches the surface; it must be replaced
	// before the next acquisition.
	StateOutOfDate
	// The drawable extent is zero; rendering is suspended.
	StateMinimized
	// The surface has been released. Terminal.
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateValid:
		return "valid"
	case StateOutOfDate:
		return "out_of_date"
	case StateMinimized:
		return "minimized"
	case StateDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// Manager owns the swapchain and its image views and is their single writer.
// Every other component reads swapchain-derived state only between a
// successful acquisition and the following recreation.
type Manager struct {
	device    Device
	state     State
	swapchain *Swapchain
	config    SwapchainConfig

	// Per image index: acquired but presentation not yet queued. Guards
	// against the device handing out an image that is still in flight.
	inFlight []bool
}

// NewManager negotiates format, present mode and image count against the
// device's reported support and creates the initial swapchain. The window
// must have a nonzero drawable extent at this point.
func NewManager(device Device, preferredMode PresentMode) (*Manager, error) {
	support, err := device.QuerySupport()
	if err != nil {
		return nil, fmt.Errorf("failed to query surface support: %w", err)
	}

	format, err := chooseSurfaceFormat(support.Formats)
	if err != nil {
		return nil, err
	}
	mode := choosePresentMode(support.PresentModes, preferredMode)
	imageCount := chooseImageCount(support.Capabilities)

	extent := device.DrawableExtent()
	if extent.IsZero() {
		return nil, fmt.Errorf("cannot create swapchain with zero drawable extent")
	}

	m := &Manager{
		device: device,
		state:  StateUninitialized,
		config: SwapchainConfig{
			Format:      format,
			PresentMode: mode,
			ImageCount:  imageCount,
			Extent:      extent,
		},
	}

	sc, err := device.CreateSwapchain(m.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create swapchain: %w", err)
	}
	m.swapchain = sc
	m.inFlight = make([]bool, len(sc.Views))
	m.state = StateValid

	core.LogInfo("Swapchain created: %dx%d, %d images, present mode %d.",
		sc.Extent.Width, sc.Extent.Height, sc.ImageCount, sc.PresentMode)

	return m, nil
}

func (m *Manager) State() State {
	return m.state
}

// Swapchain returns the current swapchain snapshot. The reference is valid
// for at most one frame.
func (m *Manager) Swapchain() *Swapchain {
	return m.swapchain
}

// AcquireNextImage claims the next presentable image, blocking without
// timeout. A (nil, nil) return means the swapchain is suboptimal or out of
// date: the caller should Recreate and retry once. Any returned error is
// unrecoverable.
func (m *Manager) AcquireNextImage() (*FrameToken, error) {
	switch m.state {
	case StateDestroyed:
		return nil, core.ErrSurfaceDestroyed
	case StateUninitialized:
		return nil, fmt.Errorf("acquire before swapchain creation")
	case StateMinimized:
		return nil, core.ErrSurfaceMinimized
	case StateOutOfDate:
		// A resize was observed since the last frame; force the caller
		// through recreation before handing out an image.
		return nil, nil
	}

	imageIndex, result, ready, err := m.device.AcquireNextImage(m.swapchain)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire swapchain image: %w", err)
	}
	if result != AcquireSuccess {
		m.state = StateOutOfDate
		return nil, nil
	}

	if int(imageIndex) >= len(m.inFlight) {
		return nil, fmt.Errorf("device returned image index %d beyond image count %d",
			imageIndex, len(m.inFlight))
	}
	if m.inFlight[imageIndex] {
		return nil, fmt.Errorf("image %d acquired while its previous presentation was never queued", imageIndex)
	}
	m.inFlight[imageIndex] = true

	return &FrameToken{ImageIndex: imageIndex, Ready: ready}, nil
}

// Invalidate marks a valid swapchain out of date. Called when a resize event
// is observed outside of acquisition.
func (m *Manager) Invalidate() {
	if m.state == StateValid {
		m.state = StateOutOfDate
	}
}

// Recreate replaces the swapchain using the current drawable extent,
// preserving all other creation parameters, and regenerates the image views.
// A zero extent returns ErrSurfaceMinimized and leaves the old swapchain
// untouched; repeating the call while minimized is harmless.
func (m *Manager) Recreate() error {
	switch m.state {
	case StateDestroyed:
		return core.ErrSurfaceDestroyed
	case StateUninitialized:
		return fmt.Errorf("recreate before swapchain creation")
	}

	extent := m.device.DrawableExtent()
	if extent.IsZero() {
		m.state = StateMinimized
		return core.ErrSurfaceMinimized
	}

	// Destroy the old and create a new one.
	m.device.DestroySwapchain(m.swapchain)
	m.config.Extent = extent
	sc, err := m.device.CreateSwapchain(m.config)
	if err != nil {
		return fmt.Errorf("failed to recreate swapchain: %w", err)
	}
	m.swapchain = sc
	m.inFlight = make([]bool, len(sc.Views))
	m.state = StateValid

	core.LogInfo("Swapchain recreated: %dx%d.", extent.Width, extent.Height)
	return nil
}

// ExecuteCommandBuffer submits recorded commands to the graphics queue,
// gated on waitOn (the acquisition signal), and returns the
// execution-complete signal.
func (m *Manager) ExecuteCommandBuffer(waitOn Signal, commands CommandBuffer) (Signal, error) {
	if m.state == StateDestroyed {
		return nil, core.ErrSurfaceDestroyed
	}
	rendered, err := m.device.SubmitCommands(waitOn, commands)
	if err != nil {
		return nil, fmt.Errorf("failed to submit command buffer: %w", err)
	}
	return rendered, nil
}

// PresentImage enqueues presentation of the token's image, gated on waitOn
// (the execution-complete signal), retires the token and returns the
// presentation-complete signal. A suboptimal presentation flips the manager
// out of date but is not an error.
func (m *Manager) PresentImage(waitOn Signal, token *FrameToken) (Signal, error) {
	if m.state == StateDestroyed {
		return nil, core.ErrSurfaceDestroyed
	}
	if token == nil {
		return nil, fmt.Errorf("present without an acquired frame token")
	}
	if token.retired {
		return nil, fmt.Errorf("frame token for image %d reused after presentation", token.ImageIndex)
	}

	result, presented, err := m.device.PresentImage(m.swapchain, waitOn, token.ImageIndex)
	token.retired = true
	if int(token.ImageIndex) < len(m.inFlight) {
		m.inFlight[token.ImageIndex] = false
	}
	if err != nil {
		return nil, fmt.Errorf("failed to present swapchain image: %w", err)
	}
	if result != PresentSuccess {
		// The frame is on screen (or as close as it gets); only the next
		// acquisition needs a fresh swapchain.
		m.state = StateOutOfDate
	}
	return presented, nil
}

// Wait blocks until the given signal has fired. The frame driver calls this
// exactly once per frame, on the presentation-complete signal.
func (m *Manager) Wait(signal Signal) error {
	return m.device.Wait(signal)
}

// Destroy releases the swapchain, its image views and the surface, in that
// order. Idempotent.
func (m *Manager) Destroy() {
	if m.state == StateDestroyed {
		return
	}
	if m.swapchain != nil {
		m.device.DestroySwapchain(m.swapchain)
		m.swapchain = nil
	}
	m.device.DestroySurface()
	m.state = StateDestroyed
}

// chooseSurfaceFormat prefers a standard 8-bit sRGB color format and falls
// back to the first supported one.
func chooseSurfaceFormat(formats []SurfaceFormat) (SurfaceFormat, error) {
	if len(formats) == 0 {
		return SurfaceFormat{}, fmt.Errorf("surface reports no supported formats")
	}
	for _, format := range formats {
		if format.Format == FormatB8G8R8A8Srgb && format.ColorSpace == ColorSpaceSrgbNonlinear {
			return format, nil
		}
	}
	return formats[0], nil
}

// choosePresentMode honors the preference when supported, otherwise falls
// back to FIFO (vsync), which every conformant device provides.
func choosePresentMode(modes []PresentMode, preferred PresentMode) PresentMode {
	for _, mode := range modes {
		if mode == preferred {
			return mode
		}
	}
	for _, mode := range modes {
		if mode == PresentModeFifo {
			return mode
		}
	}
	if len(modes) > 0 {
		return modes[0]
	}
	return PresentModeFifo
}

// chooseImageCount asks for max(caps.Max, caps.Min+1), clamped to the
// capability bounds: at least double-buffering, never past the device limit.
// A zero MaxImageCount means unbounded.
func chooseImageCount(caps Capabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 {
		count = math.Max(caps.MaxImageCount, count)
		count = math.Clamp(count, caps.MinImageCount, caps.MaxImageCount)
	}
	return count
}
