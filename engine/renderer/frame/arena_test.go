package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ember-engine/ember/engine/renderer/metadata"
)

// byteBacking is a plain in-memory Backing.
type byteBacking struct {
	data  []byte
	grows int
}

func newByteBacking(capacity uint64) *byteBacking {
	return &byteBacking{data: make([]byte, capacity)}
}

func (b *byteBacking) Capacity() uint64 {
	return uint64(len(b.data))
}

func (b *byteBacking) Grow(capacity uint64) error {
	if capacity <= uint64(len(b.data)) {
		return nil
	}
	grown := make([]byte, capacity)
	copy(grown, b.data)
	b.data = grown
	b.grows++
	return nil
}

func (b *byteBacking) Write(offset uint64, data []byte) error {
	copy(b.data[offset:], data)
	return nil
}

func bytesOf(n int, fill byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = fill
	}
	return out
}

func TestArenaAllocatesSequentially(t *testing.T) {
	backing := newByteBacking(64)
	arena := NewArena(backing, 4)

	arena.BeginFrame()
	first, err := arena.Allocate(bytesOf(10, 0xAA))
	require.NoError(t, err)
	second, err := arena.Allocate(bytesOf(10, 0xBB))
	require.NoError(t, err)

	assert.Equal(t, uint64(0), first.Offset)
	// Aligned up from 10 to the next multiple of 4.
	assert.Equal(t, uint64(12), second.Offset)
	assert.Equal(t, bytesOf(10, 0xAA), backing.data[0:10])
	assert.Equal(t, bytesOf(10, 0xBB), backing.data[12:22])
}

func TestArenaRejectsZeroSize(t *testing.T) {
	arena := NewArena(newByteBacking(64), 1)
	arena.BeginFrame()
	_, err := arena.Allocate(nil)
	require.Error(t, err)
}

func TestArenaWrapsOverRetiredFrames(t *testing.T) {
	backing := newByteBacking(64)
	arena := NewArena(backing, 1)

	// First frame fills most of the ring.
	arena.BeginFrame()
	_, err := arena.Allocate(bytesOf(48, 0x01))
	require.NoError(t, err)

	// Second frame: 48 bytes no longer fit ahead, but the first frame is
	// retired so the head wraps to zero without growing.
	arena.BeginFrame()
	allocation, err := arena.Allocate(bytesOf(40, 0x02))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), allocation.Offset)
	assert.Equal(t, 0, backing.grows)
}

func TestArenaNeverWrapsOverOwnFrame(t *testing.T) {
	backing := newByteBacking(64)
	arena := NewArena(backing, 1)

	arena.BeginFrame()
	_, err := arena.Allocate(bytesOf(48, 0x01))
	require.NoError(t, err)

	arena.BeginFrame()
	first, err := arena.Allocate(bytesOf(40, 0x02))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), first.Offset)

	// 30 more bytes cannot wrap again (the frame's own data sits at the
	// start) and cannot fit before the frame mark, so the backing grows.
	second, err := arena.Allocate(bytesOf(30, 0x03))
	require.NoError(t, err)
	assert.Equal(t, 1, backing.grows)
	assert.GreaterOrEqual(t, second.Offset, uint64(40))
	assert.Equal(t, bytesOf(40, 0x02), backing.data[0:40])
}

func TestArenaGrowsWhenFrameExceedsCapacity(t *testing.T) {
	backing := newByteBacking(16)
	arena := NewArena(backing, 1)

	arena.BeginFrame()
	allocation, err := arena.Allocate(bytesOf(40, 0x07))
	require.NoError(t, err)
	assert.Equal(t, 1, backing.grows)
	assert.GreaterOrEqual(t, backing.Capacity(), uint64(40))
	assert.Equal(t, bytesOf(40, 0x07), backing.data[allocation.Offset:allocation.Offset+40])
}

func TestAllocatorCountsElements(t *testing.T) {
	allocator := NewAllocator(newByteBacking(1024), newByteBacking(1024), nil)
	allocator.BeginFrame()

	geometry := metadata.NewQuadGeometry()
	vertexBuffer, err := allocator.AllocateVertexBuffer(geometry.Vertices)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), vertexBuffer.Count)
	assert.Equal(t, uint64(4*metadata.ColorVertexSize), vertexBuffer.Size)

	indexBuffer, err := allocator.AllocateIndexBuffer(geometry.Indices)
	require.NoError(t, err)
	assert.Equal(t, uint32(6), indexBuffer.Count)
	assert.Equal(t, uint64(6*metadata.IndexSize), indexBuffer.Size)
}
