package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsAccounting(t *testing.T) {
	require.NoError(t, MetricsInitialize())

	// One full averaging window at a steady 16.6ms per frame.
	for i := uint8(0); i < AVG_COUNT; i++ {
		MetricsUpdate(0.0166)
	}
	assert.InDelta(t, 16.6, MetricsFrameTime(), 0.01)

	// Push the accumulated frame time past one second so the FPS counter
	// rolls over.
	for i := 0; i < 60; i++ {
		MetricsUpdate(0.0166)
	}
	fps, frameTime := MetricsFrame()
	assert.Equal(t, float64(60), fps)
	assert.Equal(t, MetricsFPS(), fps)
	assert.InDelta(t, 16.6, frameTime, 0.01)
}
