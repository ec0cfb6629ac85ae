package frame

import (
	"errors"
	"fmt"

	"github.com/ember-engine/ember/engine/core"
	"github.com/ember-engine/ember/engine/renderer/metadata"
	"github.com/ember-engine/ember/engine/renderer/surface"
)

// Driver runs one acquire→record→submit→present iteration per redraw
// request. It owns the minimized flag and the retry-once recreation policy;
// everything GPU-ordered flows through the signal chain
// acquire → execute → present, with a single blocking wait at the end of
// the frame.
type Driver struct {
	surface   *surface.Manager
	allocator *Allocator
	recorder  *Recorder

	graphicsQueueFamily uint32
	minimized           bool
	frameNumber         uint64
}

func NewDriver(m *surface.Manager, allocator *Allocator, recorder *Recorder, graphicsQueueFamily uint32) *Driver {
	return &Driver{
		surface:             m,
		allocator:           allocator,
		recorder:            recorder,
		graphicsQueueFamily: graphicsQueueFamily,
	}
}

// Minimized reports whether redraw requests are currently skipped.
func (d *Driver) Minimized() bool {
	return d.minimized
}

func (d *Driver) FrameNumber() uint64 {
	return d.frameNumber
}

// Resized reacts to a window size event. A zero dimension suspends rendering;
// a nonzero one forces swapchain recreation and resumes.
func (d *Driver) Resized(width, height uint32) error {
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending rendering.")
		d.minimized = true
		return nil
	}

	d.surface.Invalidate()
	if err := d.surface.Recreate(); err != nil {
		if errors.Is(err, core.ErrSurfaceMinimized) {
			d.minimized = true
			return nil
		}
		return err
	}
	if d.minimized {
		core.LogInfo("Window restored, resuming rendering.")
	}
	d.minimized = false
	return nil
}

// DrawFrame renders one frame. It returns nil both on success and when the
// frame was deliberately skipped (minimized, or a surface that went stale
// mid-resize); any returned error is unrecoverable.
func (d *Driver) DrawFrame(packet *metadata.RenderPacket) error {
	if d.minimized {
		return nil
	}

	token, err := d.acquire()
	if err != nil {
		return err
	}
	if token == nil {
		if d.surface.State() == surface.StateMinimized {
			// Zero drawable extent; suspend until the next nonzero
			// resize event.
			d.minimized = true
			return nil
		}
		// Still stale after one recreation; skip this frame and retry on
		// the next redraw request.
		return nil
	}

	geometry := packet.Geometry
	d.allocator.BeginFrame()

	vertexBuffer, err := d.allocator.AllocateVertexBuffer(geometry.Vertices)
	if err != nil {
		return err
	}
	indexBuffer, err := d.allocator.AllocateIndexBuffer(geometry.Indices)
	if err != nil {
		return err
	}
	encoder, err := d.allocator.AllocateCommandContext(d.graphicsQueueFamily, CommandUsageOneTimeSubmit)
	if err != nil {
		return err
	}

	views := d.surface.Swapchain().Views
	if int(token.ImageIndex) >= len(views) {
		return fmt.Errorf("acquired image index %d beyond view count %d", token.ImageIndex, len(views))
	}

	commands, err := d.recorder.Record(encoder, views[token.ImageIndex], vertexBuffer, indexBuffer, indexBuffer.Count)
	if err != nil {
		return err
	}

	// Chain execution after acquisition and presentation after execution.
	rendered, err := d.surface.ExecuteCommandBuffer(token.Ready, commands)
	if err != nil {
		return err
	}
	presented, err := d.surface.PresentImage(rendered, token)
	if err != nil {
		return err
	}

	// The sole blocking point: bounds CPU/GPU skew to one frame and lets the
	// arenas wrap without fences.
	if err := d.surface.Wait(presented); err != nil {
		return fmt.Errorf("failed to wait for presentation: %w", err)
	}

	d.frameNumber++
	return nil
}

// acquire claims the next image, attempting one recreation and one retry when
// the swapchain is stale. A nil token with nil error means the frame should
// be skipped.
func (d *Driver) acquire() (*surface.FrameToken, error) {
	token, err := d.surface.AcquireNextImage()
	if err != nil {
		return nil, err
	}
	if token != nil {
		return token, nil
	}

	if err := d.surface.Recreate(); err != nil {
		if errors.Is(err, core.ErrSurfaceMinimized) {
			return nil, nil
		}
		return nil, err
	}
	return d.surface.AcquireNextImage()
}
