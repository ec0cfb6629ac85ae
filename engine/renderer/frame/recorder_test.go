package frame

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ember-engine/ember/engine/renderer/surface"
)

type recordedView struct {
	extent surface.Extent
}

func (v *recordedView) Extent() surface.Extent { return v.extent }
func (v *recordedView) Layers() uint32         { return 1 }

// recordingEncoder captures the operation sequence as strings.
type recordingEncoder struct {
	ops     []string
	failOn  string
	viewErr error
}

func (e *recordingEncoder) record(op string) error {
	if op == e.failOn {
		return fmt.Errorf("forced failure at %s", op)
	}
	e.ops = append(e.ops, op)
	return nil
}

func (e *recordingEncoder) BeginRenderPass(target surface.ImageView, clearColor [4]float32) error {
	return e.record(fmt.Sprintf("begin_pass %dx%d clear=%v", target.Extent().Width, target.Extent().Height, clearColor))
}

func (e *recordingEncoder) BindPipeline(pipeline Pipeline) error {
	return e.record("bind_pipeline")
}

func (e *recordingEncoder) SetViewport(extent surface.Extent) error {
	return e.record(fmt.Sprintf("set_viewport %dx%d", extent.Width, extent.Height))
}

func (e *recordingEncoder) BindVertexBuffer(binding uint32, allocation Allocation) error {
	return e.record(fmt.Sprintf("bind_vertex binding=%d offset=%d", binding, allocation.Offset))
}

func (e *recordingEncoder) BindIndexBuffer(allocation Allocation) error {
	return e.record(fmt.Sprintf("bind_index offset=%d", allocation.Offset))
}

func (e *recordingEncoder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) error {
	return e.record(fmt.Sprintf("draw_indexed %d %d %d %d %d", indexCount, instanceCount, firstIndex, vertexOffset, firstInstance))
}

func (e *recordingEncoder) EndRenderPass() error {
	return e.record("end_pass")
}

func (e *recordingEncoder) Finish() (surface.CommandBuffer, error) {
	if err := e.record("finish"); err != nil {
		return nil, err
	}
	return "finished", nil
}

func TestRecorderOperationOrder(t *testing.T) {
	encoder := &recordingEncoder{}
	recorder := NewRecorder("pipeline", [4]float32{1, 0, 0, 0})
	view := &recordedView{extent: surface.Extent{Width: 800, Height: 600}}

	commands, err := recorder.Record(
		encoder,
		view,
		Allocation{Offset: 0},
		Allocation{Offset: 64},
		6,
	)
	require.NoError(t, err)
	assert.Equal(t, "finished", commands)

	assert.Equal(t, []string{
		"begin_pass 800x600 clear=[1 0 0 0]",
		"bind_pipeline",
		"set_viewport 800x600",
		"bind_vertex binding=0 offset=0",
		"bind_index offset=64",
		"draw_indexed 6 1 0 0 0",
		"end_pass",
		"finish",
	}, encoder.ops)
}

func TestRecorderAbortsOnFailure(t *testing.T) {
	encoder := &recordingEncoder{failOn: "bind_pipeline"}
	recorder := NewRecorder("pipeline", [4]float32{})
	view := &recordedView{extent: surface.Extent{Width: 640, Height: 480}}

	_, err := recorder.Record(encoder, view, Allocation{}, Allocation{}, 6)
	require.Error(t, err)
	// Nothing past the failing operation was recorded.
	assert.Equal(t, []string{"begin_pass 640x480 clear=[0 0 0 0]"}, encoder.ops)
}

func TestRecorderSetPipeline(t *testing.T) {
	recorder := NewRecorder("old", [4]float32{})
	recorder.SetPipeline("new")
	assert.Equal(t, "new", recorder.pipeline)
}
