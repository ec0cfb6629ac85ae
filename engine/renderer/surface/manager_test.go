package surface

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ember-engine/ember/engine/core"
)

type fakeView struct {
	extent Extent
}

func (v *fakeView) Extent() Extent { return v.extent }
func (v *fakeView) Layers() uint32 { return 1 }

// fakeDevice records every call so tests can assert ordering and arguments.
type fakeDevice struct {
	support SupportInfo
	extent  Extent

	calls          []string
	createdConfigs []SwapchainConfig

	nextAcquireResult AcquireResult
	nextAcquireIndex  uint32
	nextPresentResult PresentResult

	destroyedSwapchains int
	surfaceDestroyed    bool
}

func defaultSupport() SupportInfo {
	return SupportInfo{
		Capabilities: Capabilities{
			MinImageCount: 2,
			MaxImageCount: 8,
			CurrentExtent: Extent{Width: 800, Height: 600},
		},
		Formats: []SurfaceFormat{
			{Format: FormatR8G8B8A8Unorm, ColorSpace: ColorSpaceSrgbNonlinear},
			{Format: FormatB8G8R8A8Srgb, ColorSpace: ColorSpaceSrgbNonlinear},
		},
		PresentModes: []PresentMode{PresentModeFifo, PresentModeMailbox},
	}
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		support: defaultSupport(),
		extent:  Extent{Width: 800, Height: 600},
	}
}

func (d *fakeDevice) QuerySupport() (*SupportInfo, error) {
	d.calls = append(d.calls, "query_support")
	support := d.support
	return &support, nil
}

func (d *fakeDevice) DrawableExtent() Extent {
	return d.extent
}

func (d *fakeDevice) CreateSwapchain(cfg SwapchainConfig) (*Swapchain, error) {
	d.calls = append(d.calls, "create_swapchain")
	d.createdConfigs = append(d.createdConfigs, cfg)

	views := make([]ImageView, cfg.ImageCount)
	for i := range views {
		views[i] = &fakeView{extent: cfg.Extent}
	}
	return &Swapchain{
		Handle:      "swapchain",
		Format:      cfg.Format,
		PresentMode: cfg.PresentMode,
		Extent:      cfg.Extent,
		ImageCount:  cfg.ImageCount,
		Views:       views,
	}, nil
}

func (d *fakeDevice) DestroySwapchain(sc *Swapchain) {
	d.calls = append(d.calls, "destroy_swapchain")
	d.destroyedSwapchains++
}

func (d *fakeDevice) DestroySurface() {
	d.calls = append(d.calls, "destroy_surface")
	d.surfaceDestroyed = true
}

func (d *fakeDevice) AcquireNextImage(sc *Swapchain) (uint32, AcquireResult, Signal, error) {
	d.calls = append(d.calls, "acquire")
	if d.nextAcquireResult != AcquireSuccess {
		return 0, d.nextAcquireResult, nil, nil
	}
	return d.nextAcquireIndex, AcquireSuccess, "acquired", nil
}

func (d *fakeDevice) SubmitCommands(waitOn Signal, commands CommandBuffer) (Signal, error) {
	d.calls = append(d.calls, "submit")
	return "rendered", nil
}

func (d *fakeDevice) PresentImage(sc *Swapchain, waitOn Signal, imageIndex uint32) (PresentResult, Signal, error) {
	d.calls = append(d.calls, "present")
	return d.nextPresentResult, "presented", nil
}

func (d *fakeDevice) Wait(signal Signal) error {
	d.calls = append(d.calls, "wait")
	return nil
}

func (d *fakeDevice) WaitIdle() error {
	d.calls = append(d.calls, "wait_idle")
	return nil
}

func TestNewManagerNegotiation(t *testing.T) {
	device := newFakeDevice()

	m, err := NewManager(device, PresentModeMailbox)
	require.NoError(t, err)
	require.Equal(t, StateValid, m.State())

	require.Len(t, device.createdConfigs, 1)
	cfg := device.createdConfigs[0]

	// Prefers B8G8R8A8 sRGB over the first listed format.
	assert.Equal(t, FormatB8G8R8A8Srgb, cfg.Format.Format)
	assert.Equal(t, ColorSpaceSrgbNonlinear, cfg.Format.ColorSpace)
	// Honors the mailbox preference when supported.
	assert.Equal(t, PresentModeMailbox, cfg.PresentMode)
	// max(MaxImageCount, MinImageCount+1) clamped to [2, 8].
	assert.Equal(t, uint32(8), cfg.ImageCount)
	assert.Equal(t, Extent{Width: 800, Height: 600}, cfg.Extent)
}

func TestNewManagerFallsBackToFirstFormat(t *testing.T) {
	device := newFakeDevice()
	device.support.Formats = []SurfaceFormat{
		{Format: FormatR8G8B8A8Unorm, ColorSpace: ColorSpaceSrgbNonlinear},
	}

	m, err := NewManager(device, PresentModeFifo)
	require.NoError(t, err)
	assert.Equal(t, FormatR8G8B8A8Unorm, m.Swapchain().Format.Format)
}

func TestNewManagerNoFormats(t *testing.T) {
	device := newFakeDevice()
	device.support.Formats = nil

	_, err := NewManager(device, PresentModeFifo)
	require.Error(t, err)
}

func TestNewManagerUnsupportedModeFallsBackToFifo(t *testing.T) {
	device := newFakeDevice()
	device.support.PresentModes = []PresentMode{PresentModeFifo}

	m, err := NewManager(device, PresentModeMailbox)
	require.NoError(t, err)
	assert.Equal(t, PresentModeFifo, m.Swapchain().PresentMode)
}

func TestChooseImageCount(t *testing.T) {
	// Bounded: request the device maximum.
	assert.Equal(t, uint32(8), chooseImageCount(Capabilities{MinImageCount: 2, MaxImageCount: 8}))
	// Unbounded: min+1 keeps latency down.
	assert.Equal(t, uint32(3), chooseImageCount(Capabilities{MinImageCount: 2, MaxImageCount: 0}))
	// Tight bound: clamped to the maximum.
	assert.Equal(t, uint32(2), chooseImageCount(Capabilities{MinImageCount: 2, MaxImageCount: 2}))
}

func TestAcquirePresentRoundTrip(t *testing.T) {
	device := newFakeDevice()
	device.nextAcquireIndex = 1

	m, err := NewManager(device, PresentModeFifo)
	require.NoError(t, err)

	token, err := m.AcquireNextImage()
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, uint32(1), token.ImageIndex)
	assert.False(t, token.Retired())

	rendered, err := m.ExecuteCommandBuffer(token.Ready, "commands")
	require.NoError(t, err)

	presented, err := m.PresentImage(rendered, token)
	require.NoError(t, err)
	require.NotNil(t, presented)
	assert.True(t, token.Retired())
	assert.Equal(t, StateValid, m.State())

	require.NoError(t, m.Wait(presented))
}

func TestAcquireRejectsImageStillInFlight(t *testing.T) {
	device := newFakeDevice()
	device.nextAcquireIndex = 2

	m, err := NewManager(device, PresentModeFifo)
	require.NoError(t, err)

	first, err := m.AcquireNextImage()
	require.NoError(t, err)
	require.NotNil(t, first)

	// The device hands out the same image again before its presentation
	// was ever queued.
	_, err = m.AcquireNextImage()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "never queued")

	// Presenting the first token clears the guard.
	_, err = m.PresentImage("rendered", first)
	require.NoError(t, err)
	token, err := m.AcquireNextImage()
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, uint32(2), token.ImageIndex)
}

func TestPresentRejectsReusedToken(t *testing.T) {
	device := newFakeDevice()
	m, err := NewManager(device, PresentModeFifo)
	require.NoError(t, err)

	token, err := m.AcquireNextImage()
	require.NoError(t, err)

	_, err = m.PresentImage("rendered", token)
	require.NoError(t, err)

	_, err = m.PresentImage("rendered", token)
	require.Error(t, err)
}

func TestAcquireOutOfDateReturnsNilToken(t *testing.T) {
	device := newFakeDevice()
	m, err := NewManager(device, PresentModeFifo)
	require.NoError(t, err)

	device.nextAcquireResult = AcquireOutOfDate
	token, err := m.AcquireNextImage()
	require.NoError(t, err)
	assert.Nil(t, token)
	assert.Equal(t, StateOutOfDate, m.State())

	// While out of date no device acquisition happens until recreation.
	before := len(device.calls)
	token, err = m.AcquireNextImage()
	require.NoError(t, err)
	assert.Nil(t, token)
	assert.Equal(t, before, len(device.calls))
}

func TestSuboptimalPresentFlipsOutOfDate(t *testing.T) {
	device := newFakeDevice()
	m, err := NewManager(device, PresentModeFifo)
	require.NoError(t, err)

	token, err := m.AcquireNextImage()
	require.NoError(t, err)

	device.nextPresentResult = PresentSuboptimal
	presented, err := m.PresentImage("rendered", token)
	require.NoError(t, err)
	require.NotNil(t, presented)
	assert.Equal(t, StateOutOfDate, m.State())
}

func TestRecreatePreservesConfig(t *testing.T) {
	device := newFakeDevice()
	m, err := NewManager(device, PresentModeMailbox)
	require.NoError(t, err)
	original := device.createdConfigs[0]

	device.extent = Extent{Width: 1024, Height: 768}
	m.Invalidate()
	require.NoError(t, m.Recreate())
	require.Equal(t, StateValid, m.State())

	require.Len(t, device.createdConfigs, 2)
	recreated := device.createdConfigs[1]
	assert.Equal(t, original.Format, recreated.Format)
	assert.Equal(t, original.PresentMode, recreated.PresentMode)
	assert.Equal(t, original.ImageCount, recreated.ImageCount)
	assert.Equal(t, Extent{Width: 1024, Height: 768}, recreated.Extent)

	// The old swapchain was destroyed before the new one was created.
	assert.Equal(t, 1, device.destroyedSwapchains)
}

func TestRecreateWhileMinimized(t *testing.T) {
	device := newFakeDevice()
	m, err := NewManager(device, PresentModeFifo)
	require.NoError(t, err)

	device.extent = Extent{}
	err = m.Recreate()
	require.ErrorIs(t, err, core.ErrSurfaceMinimized)
	assert.Equal(t, StateMinimized, m.State())
	// The old swapchain is left untouched.
	assert.Equal(t, 0, device.destroyedSwapchains)

	// Repeating the call while minimized is harmless.
	err = m.Recreate()
	require.ErrorIs(t, err, core.ErrSurfaceMinimized)

	_, err = m.AcquireNextImage()
	require.ErrorIs(t, err, core.ErrSurfaceMinimized)

	// A restored drawable recreates normally.
	device.extent = Extent{Width: 800, Height: 600}
	require.NoError(t, m.Recreate())
	assert.Equal(t, StateValid, m.State())
}

func TestDestroyIsIdempotentAndOrdered(t *testing.T) {
	device := newFakeDevice()
	m, err := NewManager(device, PresentModeFifo)
	require.NoError(t, err)

	m.Destroy()
	assert.True(t, device.surfaceDestroyed)
	require.GreaterOrEqual(t, len(device.calls), 2)
	// Swapchain teardown strictly precedes surface teardown.
	assert.Equal(t, []string{"destroy_swapchain", "destroy_surface"}, device.calls[len(device.calls)-2:])

	calls := len(device.calls)
	m.Destroy()
	assert.Equal(t, calls, len(device.calls))

	_, err = m.AcquireNextImage()
	require.ErrorIs(t, err, core.ErrSurfaceDestroyed)
	require.ErrorIs(t, m.Recreate(), core.ErrSurfaceDestroyed)
}
