package core

import (
	"errors"
)

var (
	// The surface reported suboptimal or out-of-date; the swapchain must be
	// replaced before the next frame.
	ErrSwapchainOutOfDate = errors.New("swapchain out of date, recreation required")
	// The drawable extent is zero in at least one dimension. Rendering must be
	// suspended until a nonzero resize arrives.
	ErrSurfaceMinimized = errors.New("surface minimized, rendering suspended")
	// The surface has been torn down; every operation on it is invalid.
	ErrSurfaceDestroyed = errors.New("surface destroyed")
	ErrUnknown          = errors.New("unknown")
)
