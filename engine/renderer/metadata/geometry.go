package metadata

import (
	"encoding/binary"
	stdmath "math"

	"github.com/ember-engine/ember/engine/math"
)

// ColorVertex is the fixed vertex layout drawn by the builtin pipeline:
// position and color, both tightly packed 32-bit floats.
type ColorVertex struct {
	Position math.Vec3
	Color    math.Vec3
}

// ColorVertexSize is the stride of one packed ColorVertex in bytes.
const ColorVertexSize uint64 = 24

// IndexSize is the size of one packed index in bytes (32-bit indices).
const IndexSize uint64 = 4

func NewColorVertex(position, color math.Vec3) ColorVertex {
	return ColorVertex{Position: position, Color: color}
}

// PackColorVertices serializes vertices into the little-endian layout the
// vertex input binding declares.
func PackColorVertices(vertices []ColorVertex) []byte {
	out := make([]byte, uint64(len(vertices))*ColorVertexSize)
	offset := 0
	put := func(f float32) {
		binary.LittleEndian.PutUint32(out[offset:], stdmath.Float32bits(f))
		offset += 4
	}
	for _, v := range vertices {
		put(v.Position.X)
		put(v.Position.Y)
		put(v.Position.Z)
		put(v.Color.X)
		put(v.Color.Y)
		put(v.Color.Z)
	}
	return out
}

// PackIndices serializes indices as little-endian uint32.
func PackIndices(indices []uint32) []byte {
	out := make([]byte, uint64(len(indices))*IndexSize)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(out[i*4:], idx)
	}
	return out
}

// Geometry is one CPU-side mesh: ordered vertices plus a triangle-list index
// sequence over them.
type Geometry struct {
	Vertices []ColorVertex
	Indices  []uint32
}

// NewQuadGeometry returns the builtin two-triangle quad: 4 vertices, 6 indices.
func NewQuadGeometry() *Geometry {
	return &Geometry{
		Vertices: []ColorVertex{
			NewColorVertex(math.NewVec3(-0.5, -0.5, 0.0), math.NewVec3(1.0, 0.0, 0.0)),
			NewColorVertex(math.NewVec3(0.5, -0.5, 0.0), math.NewVec3(0.0, 1.0, 0.0)),
			NewColorVertex(math.NewVec3(0.5, 0.5, 0.0), math.NewVec3(0.0, 0.0, 1.0)),
			NewColorVertex(math.NewVec3(-0.5, 0.5, 0.0), math.NewVec3(1.0, 1.0, 1.0)),
		},
		Indices: []uint32{0, 1, 2, 2, 3, 0},
	}
}

// RenderPacket is what the application hands the renderer for one frame.
type RenderPacket struct {
	DeltaTime float64
	Geometry  *Geometry
}
