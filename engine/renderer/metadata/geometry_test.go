package metadata

import (
	"encoding/binary"
	stdmath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ember-engine/ember/engine/math"
)

func TestPackColorVertices(t *testing.T) {
	vertices := []ColorVertex{
		NewColorVertex(math.NewVec3(-0.5, 0.25, 1.0), math.NewVec3(1.0, 0.0, 0.5)),
		NewColorVertex(math.NewVec3(0.0, 0.0, 0.0), math.NewVec3(0.0, 1.0, 0.0)),
	}

	packed := PackColorVertices(vertices)
	require.Len(t, packed, int(2*ColorVertexSize))

	// The second vertex starts one stride in; color follows position.
	at := func(offset int) float32 {
		return stdmath.Float32frombits(binary.LittleEndian.Uint32(packed[offset:]))
	}
	assert.Equal(t, float32(-0.5), at(0))
	assert.Equal(t, float32(0.5), at(20))
	assert.Equal(t, float32(1.0), at(int(ColorVertexSize)+16))
}

func TestPackIndices(t *testing.T) {
	packed := PackIndices([]uint32{0, 1, 2, 2, 3, 0})
	require.Len(t, packed, int(6*IndexSize))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(packed[16:]))
}

func TestNewQuadGeometry(t *testing.T) {
	quad := NewQuadGeometry()
	assert.Len(t, quad.Vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 2, 3, 0}, quad.Indices)
}
