package frame

import (
	"fmt"

	"github.com/ember-engine/ember/engine/math"
	"github.com/ember-engine/ember/engine/renderer/metadata"
)

// Backing is the GPU-visible memory an Arena carves allocations from.
// The Vulkan backend implements it with a persistently mapped host-visible
// buffer; tests implement it with a plain byte slice.
type Backing interface {
	Capacity() uint64
	// Grow resizes the backing to at least capacity, preserving contents.
	Grow(capacity uint64) error
	// Write copies data into the backing at offset.
	Write(offset uint64, data []byte) error
}

// Allocation is one transient region handed out for a single frame. It stays
// readable by the GPU until the frame driver's end-of-frame wait retires the
// frame; the caller never frees it.
type Allocation struct {
	Backing Backing
	Offset  uint64
	Size    uint64
	// Number of elements packed into the region.
	Count uint32
}

// Arena is a growable ring allocator. There is no per-allocation free and no
// internal fencing: the head may wrap over a prior frame's region because the
// frame driver waits for presentation before starting the next frame, so
// anything before the current frame mark is no longer in flight.
type Arena struct {
	backing   Backing
	alignment uint64

	head      uint64
	frameMark uint64
	wrapped   bool
}

func NewArena(backing Backing, alignment uint64) *Arena {
	if alignment == 0 {
		alignment = 1
	}
	return &Arena{
		backing:   backing,
		alignment: alignment,
	}
}

// BeginFrame marks the start of a frame's allocations. Everything allocated
// before this point is considered retired.
func (a *Arena) BeginFrame() {
	a.frameMark = a.head
	a.wrapped = false
}

// Allocate reserves size bytes and copies data into them. Only a true
// out-of-memory condition fails.
func (a *Arena) Allocate(data []byte) (Allocation, error) {
	size := uint64(len(data))
	if size == 0 {
		return Allocation{}, fmt.Errorf("arena: zero-size allocation")
	}

	offset, err := a.reserve(size)
	if err != nil {
		return Allocation{}, err
	}
	if err := a.backing.Write(offset, data); err != nil {
		return Allocation{}, fmt.Errorf("arena: failed to write allocation: %w", err)
	}
	return Allocation{
		Backing: a.backing,
		Offset:  offset,
		Size:    size,
	}, nil
}

func (a *Arena) reserve(size uint64) (uint64, error) {
	capacity := a.backing.Capacity()
	offset := math.AlignUp(a.head, a.alignment)

	// Straight ahead, without running past the end or into this frame's own
	// region after a wrap.
	if offset+size <= capacity && (!a.wrapped || offset+size <= a.frameMark) {
		a.head = offset + size
		return offset, nil
	}

	// Wrap to the start of the ring. Valid only when the region before the
	// frame mark is large enough: everything there belongs to retired frames.
	if !a.wrapped && size <= a.frameMark {
		a.wrapped = true
		a.head = size
		return 0, nil
	}

	// The ring cannot hold this frame. Grow the backing and place the
	// allocation in the fresh tail; wrapping is disabled for the remainder
	// of the frame so nothing live is overwritten.
	grown := math.Max(capacity*2, offset+size)
	if a.wrapped {
		grown = math.Max(capacity*2, capacity+size)
		offset = math.AlignUp(capacity, a.alignment)
		grown = math.Max(grown, offset+size)
	}
	if err := a.backing.Grow(grown); err != nil {
		return 0, fmt.Errorf("arena: out of memory growing to %d bytes: %w", grown, err)
	}
	a.wrapped = false
	a.frameMark = 0
	a.head = offset + size
	return offset, nil
}

// CommandUsage is the submission intent of a command context.
type CommandUsage uint8

const (
	// Recorded once, submitted once, then discarded.
	CommandUsageOneTimeSubmit CommandUsage = iota
	CommandUsageReusable
)

// CommandContextSource produces fresh recordable command sequences.
type CommandContextSource interface {
	NewCommandContext(queueFamily uint32, usage CommandUsage) (CommandEncoder, error)
}

// Allocator is the per-frame resource source: transient vertex and index
// buffers from two ring arenas, and command-recording contexts. Callers never
// manage the memory directly.
type Allocator struct {
	vertices *Arena
	indices  *Arena
	commands CommandContextSource
}

func NewAllocator(vertexBacking, indexBacking Backing, commands CommandContextSource) *Allocator {
	return &Allocator{
		vertices: NewArena(vertexBacking, metadata.ColorVertexSize),
		indices:  NewArena(indexBacking, metadata.IndexSize),
		commands: commands,
	}
}

// BeginFrame retires the previous frame's allocations in both arenas.
func (alc *Allocator) BeginFrame() {
	alc.vertices.BeginFrame()
	alc.indices.BeginFrame()
}

// AllocateVertexBuffer stages the vertices into a fresh GPU-visible region
// sized to exactly len(vertices) elements.
func (alc *Allocator) AllocateVertexBuffer(vertices []metadata.ColorVertex) (Allocation, error) {
	allocation, err := alc.vertices.Allocate(metadata.PackColorVertices(vertices))
	if err != nil {
		return Allocation{}, fmt.Errorf("failed to allocate vertex buffer: %w", err)
	}
	allocation.Count = uint32(len(vertices))
	return allocation, nil
}

// AllocateIndexBuffer stages the indices into a fresh GPU-visible region
// sized to exactly len(indices) elements.
func (alc *Allocator) AllocateIndexBuffer(indices []uint32) (Allocation, error) {
	allocation, err := alc.indices.Allocate(metadata.PackIndices(indices))
	if err != nil {
		return Allocation{}, fmt.Errorf("failed to allocate index buffer: %w", err)
	}
	allocation.Count = uint32(len(indices))
	return allocation, nil
}

// AllocateCommandContext produces a fresh recordable command sequence scoped
// to one queue family and usage intent.
func (alc *Allocator) AllocateCommandContext(queueFamily uint32, usage CommandUsage) (CommandEncoder, error) {
	encoder, err := alc.commands.NewCommandContext(queueFamily, usage)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate command context: %w", err)
	}
	return encoder, nil
}
