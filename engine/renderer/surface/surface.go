package surface

// Extent is a drawable size in pixels.
type Extent struct {
	Width  uint32
	Height uint32
}

func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

// PixelFormat identifies a presentable color format. Values mirror the
// formats the negotiation policy cares about; the device maps them to its
// native enumeration.
type PixelFormat uint32

const (
	FormatUndefined PixelFormat = iota
	FormatB8G8R8A8Srgb
	FormatB8G8R8A8Unorm
	FormatR8G8B8A8Srgb
	FormatR8G8B8A8Unorm
)

type ColorSpace uint32

const (
	ColorSpaceSrgbNonlinear ColorSpace = iota
	ColorSpaceOther
)

type SurfaceFormat struct {
	Format     PixelFormat
	ColorSpace ColorSpace
}

type PresentMode uint8

const (
	PresentModeFifo PresentMode = iota
	PresentModeMailbox
	PresentModeImmediate
)

// Capabilities is the surface capability snapshot the device reports.
// MaxImageCount of zero means the device imposes no upper bound.
type Capabilities struct {
	MinImageCount uint32
	MaxImageCount uint32
	CurrentExtent Extent
}

// SupportInfo is everything format/mode negotiation needs, queried once
// at construction.
type SupportInfo struct {
	Capabilities Capabilities
	Formats      []SurfaceFormat
	PresentModes []PresentMode
}

// SwapchainConfig holds the creation parameters of a swapchain. Recreation
// preserves every field except Extent, which is re-read from the drawable.
type SwapchainConfig struct {
	Format      SurfaceFormat
	PresentMode PresentMode
	ImageCount  uint32
	Extent      Extent
}

// ImageView is one presentable image of the swapchain, exposed read-only to
// the command recorder. Views are regenerated whenever the swapchain is
// replaced and are never valid across a recreation.
type ImageView interface {
	Extent() Extent
	Layers() uint32
}

// Swapchain is the manager's snapshot of one created swapchain. It is
// replaced wholesale on recreation, never mutated.
type Swapchain struct {
	Handle      interface{}
	Format      SurfaceFormat
	PresentMode PresentMode
	Extent      Extent
	ImageCount  uint32
	Views       []ImageView
}

// Signal is an opaque GPU synchronization token. The device produces one per
// acquire, submit and present; chaining them is the only ordering mechanism
// the frame pipeline uses.
type Signal interface{}

// CommandBuffer is a finished, submittable command sequence.
type CommandBuffer interface{}

type AcquireResult uint8

const (
	AcquireSuccess AcquireResult = iota
	// The image was acquired but the swapchain no longer matches the surface.
	AcquireSuboptimal
	// No image could be acquired; the swapchain must be replaced.
	AcquireOutOfDate
)

type PresentResult uint8

const (
	PresentSuccess PresentResult = iota
	PresentSuboptimal
	PresentOutOfDate
)

// Device is the low-level presentation device the Manager drives. The Vulkan
// backend implements it against a real surface; tests implement it with a
// call-recording fake.
type Device interface {
	// QuerySupport reports formats, present modes and the capability snapshot.
	QuerySupport() (*SupportInfo, error)
	// DrawableExtent reads the current drawable size of the window.
	DrawableExtent() Extent
	// CreateSwapchain builds a swapchain and its image views from cfg.
	CreateSwapchain(cfg SwapchainConfig) (*Swapchain, error)
	// DestroySwapchain releases the views, then the swapchain. It must block
	// until the device is done with both and retire any synchronization
	// state left over from discarded acquisitions.
	DestroySwapchain(sc *Swapchain)
	// DestroySurface releases the surface itself. Called exactly once, after
	// the last swapchain is gone.
	DestroySurface()
	// AcquireNextImage blocks without timeout until an image is available.
	AcquireNextImage(sc *Swapchain) (imageIndex uint32, result AcquireResult, ready Signal, err error)
	// SubmitCommands submits to the graphics queue, gated on waitOn, and
	// returns the execution-complete signal.
	SubmitCommands(waitOn Signal, commands CommandBuffer) (Signal, error)
	// PresentImage enqueues presentation on the present queue, gated on
	// waitOn, and returns the presentation-complete signal.
	PresentImage(sc *Swapchain, waitOn Signal, imageIndex uint32) (PresentResult, Signal, error)
	// Wait blocks until the given signal has fired.
	Wait(signal Signal) error
	// WaitIdle blocks until the device has finished all submitted work.
	WaitIdle() error
}

// FrameToken is the result of one successful acquisition: the image index to
// render into and the signal that fires when the image is actually ready.
// A token is valid for exactly one frame; presenting it retires it.
type FrameToken struct {
	ImageIndex uint32
	Ready      Signal

	retired bool
}

// Retired reports whether this token has already been presented.
func (t *FrameToken) Retired() bool {
	return t.retired
}
