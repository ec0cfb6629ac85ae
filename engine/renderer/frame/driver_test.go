package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ember-engine/ember/engine/renderer/metadata"
	"github.com/ember-engine/ember/engine/renderer/surface"
)

// pipelineDevice is a full fake presentation device driving a real Manager.
type pipelineDevice struct {
	extent surface.Extent
	calls  []string

	// Consumed one per acquire; empty means success.
	acquireResults []surface.AcquireResult
}

func newPipelineDevice() *pipelineDevice {
	return &pipelineDevice{extent: surface.Extent{Width: 800, Height: 600}}
}

func (d *pipelineDevice) QuerySupport() (*surface.SupportInfo, error) {
	return &surface.SupportInfo{
		Capabilities: surface.Capabilities{
			MinImageCount: 2,
			MaxImageCount: 3,
			CurrentExtent: d.extent,
		},
		Formats: []surface.SurfaceFormat{
			{Format: surface.FormatB8G8R8A8Srgb, ColorSpace: surface.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []surface.PresentMode{surface.PresentModeFifo},
	}, nil
}

func (d *pipelineDevice) DrawableExtent() surface.Extent {
	return d.extent
}

func (d *pipelineDevice) CreateSwapchain(cfg surface.SwapchainConfig) (*surface.Swapchain, error) {
	d.calls = append(d.calls, "create_swapchain")
	views := make([]surface.ImageView, cfg.ImageCount)
	for i := range views {
		views[i] = &recordedView{extent: cfg.Extent}
	}
	return &surface.Swapchain{
		Handle:      "swapchain",
		Format:      cfg.Format,
		PresentMode: cfg.PresentMode,
		Extent:      cfg.Extent,
		ImageCount:  cfg.ImageCount,
		Views:       views,
	}, nil
}

func (d *pipelineDevice) DestroySwapchain(sc *surface.Swapchain) {
	d.calls = append(d.calls, "destroy_swapchain")
}

func (d *pipelineDevice) DestroySurface() {
	d.calls = append(d.calls, "destroy_surface")
}

func (d *pipelineDevice) AcquireNextImage(sc *surface.Swapchain) (uint32, surface.AcquireResult, surface.Signal, error) {
	d.calls = append(d.calls, "acquire")
	if len(d.acquireResults) > 0 {
		result := d.acquireResults[0]
		d.acquireResults = d.acquireResults[1:]
		if result != surface.AcquireSuccess {
			return 0, result, nil, nil
		}
	}
	return 0, surface.AcquireSuccess, "acquired", nil
}

func (d *pipelineDevice) SubmitCommands(waitOn surface.Signal, commands surface.CommandBuffer) (surface.Signal, error) {
	d.calls = append(d.calls, "submit")
	return "rendered", nil
}

func (d *pipelineDevice) PresentImage(sc *surface.Swapchain, waitOn surface.Signal, imageIndex uint32) (surface.PresentResult, surface.Signal, error) {
	d.calls = append(d.calls, "present")
	return surface.PresentSuccess, "presented", nil
}

func (d *pipelineDevice) Wait(signal surface.Signal) error {
	d.calls = append(d.calls, "wait")
	return nil
}

func (d *pipelineDevice) WaitIdle() error {
	return nil
}

// encoderSource hands out fresh recording encoders and remembers the last.
type encoderSource struct {
	last *recordingEncoder
}

func (s *encoderSource) NewCommandContext(queueFamily uint32, usage CommandUsage) (CommandEncoder, error) {
	s.last = &recordingEncoder{}
	return s.last, nil
}

func newTestDriver(t *testing.T, device *pipelineDevice) (*Driver, *encoderSource) {
	t.Helper()
	manager, err := surface.NewManager(device, surface.PresentModeFifo)
	require.NoError(t, err)

	source := &encoderSource{}
	allocator := NewAllocator(newByteBacking(4096), newByteBacking(4096), source)
	recorder := NewRecorder("pipeline", [4]float32{1, 0, 0, 0})
	return NewDriver(manager, allocator, recorder, 0), source
}

func quadPacket() *metadata.RenderPacket {
	return &metadata.RenderPacket{
		DeltaTime: 1.0 / 60.0,
		Geometry:  metadata.NewQuadGeometry(),
	}
}

func TestDriverDrawFrameOrdering(t *testing.T) {
	device := newPipelineDevice()
	driver, source := newTestDriver(t, device)
	device.calls = nil

	require.NoError(t, driver.DrawFrame(quadPacket()))
	assert.Equal(t, uint64(1), driver.FrameNumber())

	// acquire → submit → present → wait, the wait being the sole block.
	assert.Equal(t, []string{"acquire", "submit", "present", "wait"}, device.calls)

	require.NotNil(t, source.last)
	assert.Contains(t, source.last.ops, "draw_indexed 6 1 0 0 0")
	assert.Contains(t, source.last.ops, "set_viewport 800x600")
}

func TestDriverSkipsWhileMinimized(t *testing.T) {
	device := newPipelineDevice()
	driver, _ := newTestDriver(t, device)

	require.NoError(t, driver.Resized(0, 0))
	assert.True(t, driver.Minimized())

	device.calls = nil
	require.NoError(t, driver.DrawFrame(quadPacket()))
	// No device traffic at all for a skipped frame.
	assert.Empty(t, device.calls)
	assert.Equal(t, uint64(0), driver.FrameNumber())
}

func TestDriverResumesAfterRestore(t *testing.T) {
	device := newPipelineDevice()
	driver, _ := newTestDriver(t, device)

	device.extent = surface.Extent{}
	require.NoError(t, driver.Resized(0, 0))
	require.True(t, driver.Minimized())

	device.extent = surface.Extent{Width: 1024, Height: 768}
	require.NoError(t, driver.Resized(1024, 768))
	assert.False(t, driver.Minimized())

	device.calls = nil
	require.NoError(t, driver.DrawFrame(quadPacket()))
	assert.Equal(t, []string{"acquire", "submit", "present", "wait"}, device.calls)
}

func TestDriverResizeRecreatesSwapchain(t *testing.T) {
	device := newPipelineDevice()
	driver, _ := newTestDriver(t, device)
	device.calls = nil

	device.extent = surface.Extent{Width: 400, Height: 300}
	require.NoError(t, driver.Resized(400, 300))
	assert.Equal(t, []string{"destroy_swapchain", "create_swapchain"}, device.calls)
}

func TestDriverRetriesAcquireOnceAfterRecreation(t *testing.T) {
	device := newPipelineDevice()
	driver, _ := newTestDriver(t, device)
	device.calls = nil

	device.acquireResults = []surface.AcquireResult{surface.AcquireOutOfDate}
	require.NoError(t, driver.DrawFrame(quadPacket()))
	assert.Equal(t, uint64(1), driver.FrameNumber())
	assert.Equal(t, []string{
		"acquire",
		"destroy_swapchain", "create_swapchain",
		"acquire",
		"submit", "present", "wait",
	}, device.calls)
}

func TestDriverSkipsFrameWhenRetryAcquireIsStale(t *testing.T) {
	device := newPipelineDevice()
	driver, _ := newTestDriver(t, device)
	device.calls = nil

	// Both the first acquire and the post-recreation retry come back stale
	// while the drawable stays renderable. The frame is skipped without
	// parking the driver; the next redraw recovers on its own.
	device.acquireResults = []surface.AcquireResult{surface.AcquireOutOfDate, surface.AcquireOutOfDate}
	require.NoError(t, driver.DrawFrame(quadPacket()))
	assert.False(t, driver.Minimized())
	assert.Equal(t, uint64(0), driver.FrameNumber())

	device.calls = nil
	require.NoError(t, driver.DrawFrame(quadPacket()))
	assert.Equal(t, uint64(1), driver.FrameNumber())
	assert.Equal(t, []string{
		"destroy_swapchain", "create_swapchain",
		"acquire",
		"submit", "present", "wait",
	}, device.calls)
}

func TestDriverSuspendsWhenRecreationFindsZeroExtent(t *testing.T) {
	device := newPipelineDevice()
	driver, _ := newTestDriver(t, device)
	device.calls = nil

	// The window shrank to nothing between the stale acquire and recreation.
	device.acquireResults = []surface.AcquireResult{surface.AcquireOutOfDate}
	device.extent = surface.Extent{}
	require.NoError(t, driver.DrawFrame(quadPacket()))
	assert.True(t, driver.Minimized())
	assert.Equal(t, uint64(0), driver.FrameNumber())
	assert.Equal(t, []string{"acquire"}, device.calls)
}
