package frame

import (
	"fmt"

	"github.com/ember-engine/ember/engine/renderer/surface"
)

// Pipeline is an opaque compiled graphics pipeline. It is built once per
// color format and survives resizes because its viewport is dynamic.
type Pipeline interface{}

// CommandEncoder records one submittable command sequence. The Vulkan
// implementation builds the transient framebuffer for the target view inside
// BeginRenderPass; the recorder only dictates the order of operations.
type CommandEncoder interface {
	BeginRenderPass(target surface.ImageView, clearColor [4]float32) error
	BindPipeline(pipeline Pipeline) error
	// SetViewport sets the dynamic viewport (and scissor) to the full extent.
	SetViewport(extent surface.Extent) error
	BindVertexBuffer(binding uint32, allocation Allocation) error
	BindIndexBuffer(allocation Allocation) error
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) error
	EndRenderPass() error
	// Finish ends recording and returns the submittable sequence.
	Finish() (surface.CommandBuffer, error)
}

// Recorder translates a target view, the pipeline and this frame's geometry
// buffers into one finished command sequence. Every failure here is
// structural (an incompatible layout, a broken encoder), so errors abort the
// frame and are never retried.
type Recorder struct {
	pipeline   Pipeline
	clearColor [4]float32
}

func NewRecorder(pipeline Pipeline, clearColor [4]float32) *Recorder {
	return &Recorder{
		pipeline:   pipeline,
		clearColor: clearColor,
	}
}

// SetPipeline swaps the bound pipeline. Only called between frames, after a
// shader reload rebuilt it.
func (r *Recorder) SetPipeline(pipeline Pipeline) {
	r.pipeline = pipeline
}

// Record produces the command sequence for one frame: begin pass over the
// full target extent, bind pipeline, set the dynamic viewport, bind the
// geometry buffers, one indexed draw, end pass.
func (r *Recorder) Record(
	encoder CommandEncoder,
	target surface.ImageView,
	vertexBuffer, indexBuffer Allocation,
	indexCount uint32,
) (surface.CommandBuffer, error) {
	extent := target.Extent()

	if err := encoder.BeginRenderPass(target, r.clearColor); err != nil {
		return nil, fmt.Errorf("failed to begin render pass: %w", err)
	}
	if err := encoder.BindPipeline(r.pipeline); err != nil {
		return nil, fmt.Errorf("failed to bind graphics pipeline: %w", err)
	}
	if err := encoder.SetViewport(extent); err != nil {
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}
	if err := encoder.BindVertexBuffer(0, vertexBuffer); err != nil {
		return nil, fmt.Errorf("failed to bind vertex buffer: %w", err)
	}
	if err := encoder.BindIndexBuffer(indexBuffer); err != nil {
		return nil, fmt.Errorf("failed to bind index buffer: %w", err)
	}
	if err := encoder.DrawIndexed(indexCount, 1, 0, 0, 0); err != nil {
		return nil, fmt.Errorf("failed to record draw: %w", err)
	}
	if err := encoder.EndRenderPass(); err != nil {
		return nil, fmt.Errorf("failed to end render pass: %w", err)
	}

	commands, err := encoder.Finish()
	if err != nil {
		return nil, fmt.Errorf("failed to finish command buffer: %w", err)
	}
	return commands, nil
}
