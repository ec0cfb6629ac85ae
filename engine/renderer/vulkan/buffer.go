package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/ember-engine/ember/engine/core"
)

// VulkanBuffer is a host-visible, persistently mapped buffer. Writes land
// in coherent memory, so no explicit flush is required before submission.
type VulkanBuffer struct {
	context   *VulkanContext
	Handle    vk.Buffer
	Memory    vk.DeviceMemory
	TotalSize uint64
	Usage     vk.BufferUsageFlags
	mapped    []byte
}

func NewBuffer(context *VulkanContext, size uint64, usage vk.BufferUsageFlags) (*VulkanBuffer, error) {
	buffer := &VulkanBuffer{
		context: context,
		Usage:   usage,
	}
	if err := buffer.create(size); err != nil {
		return nil, err
	}
	return buffer, nil
}

func (vb *VulkanBuffer) create(size uint64) error {
	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vb.Usage,
		SharingMode: vk.SharingModeExclusive,
	}

	var pBuffer vk.Buffer
	if res := vk.CreateBuffer(vb.context.Device.LogicalDevice, &bufferCreateInfo, vb.context.Allocator, &pBuffer); res != vk.Success {
		err := fmt.Errorf("failed to create buffer: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(vb.context.Device.LogicalDevice, pBuffer, &memoryRequirements)
	memoryRequirements.Deref()

	memoryIndex := vb.context.FindMemoryIndex(
		memoryRequirements.MemoryTypeBits,
		uint32(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if memoryIndex == -1 {
		vk.DestroyBuffer(vb.context.Device.LogicalDevice, pBuffer, vb.context.Allocator)
		err := fmt.Errorf("unable to create buffer because the required memory type index was not found")
		core.LogError(err.Error())
		return err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}

	var pMemory vk.DeviceMemory
	if res := vk.AllocateMemory(vb.context.Device.LogicalDevice, &allocateInfo, vb.context.Allocator, &pMemory); res != vk.Success {
		vk.DestroyBuffer(vb.context.Device.LogicalDevice, pBuffer, vb.context.Allocator)
		err := fmt.Errorf("unable to allocate buffer memory: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}

	if res := vk.BindBufferMemory(vb.context.Device.LogicalDevice, pBuffer, pMemory, 0); res != vk.Success {
		vk.FreeMemory(vb.context.Device.LogicalDevice, pMemory, vb.context.Allocator)
		vk.DestroyBuffer(vb.context.Device.LogicalDevice, pBuffer, vb.context.Allocator)
		err := fmt.Errorf("unable to bind buffer memory: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}

	var pData unsafe.Pointer
	if res := vk.MapMemory(vb.context.Device.LogicalDevice, pMemory, 0, vk.DeviceSize(size), 0, &pData); res != vk.Success {
		vk.FreeMemory(vb.context.Device.LogicalDevice, pMemory, vb.context.Allocator)
		vk.DestroyBuffer(vb.context.Device.LogicalDevice, pBuffer, vb.context.Allocator)
		err := fmt.Errorf("unable to map buffer memory: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}

	vb.Handle = pBuffer
	vb.Memory = pMemory
	vb.TotalSize = size
	vb.mapped = unsafe.Slice((*byte)(pData), size)
	return nil
}

func (vb *VulkanBuffer) Capacity() uint64 {
	return vb.TotalSize
}

// Grow replaces the underlying buffer with a larger one, preserving the
// bytes written so far. The caller must guarantee the device has finished
// reading the old buffer.
func (vb *VulkanBuffer) Grow(newCapacity uint64) error {
	if newCapacity <= vb.TotalSize {
		return nil
	}

	oldHandle := vb.Handle
	oldMemory := vb.Memory
	oldMapped := vb.mapped

	if err := vb.create(newCapacity); err != nil {
		vb.Handle = oldHandle
		vb.Memory = oldMemory
		vb.mapped = oldMapped
		return err
	}
	copy(vb.mapped, oldMapped)

	vk.UnmapMemory(vb.context.Device.LogicalDevice, oldMemory)
	vk.DestroyBuffer(vb.context.Device.LogicalDevice, oldHandle, vb.context.Allocator)
	vk.FreeMemory(vb.context.Device.LogicalDevice, oldMemory, vb.context.Allocator)
	return nil
}

func (vb *VulkanBuffer) Write(offset uint64, data []byte) error {
	if offset+uint64(len(data)) > vb.TotalSize {
		err := fmt.Errorf("buffer write of %d bytes at offset %d exceeds capacity %d", len(data), offset, vb.TotalSize)
		core.LogError(err.Error())
		return err
	}
	copy(vb.mapped[offset:], data)
	return nil
}

func (vb *VulkanBuffer) Destroy() {
	if vb.Memory != nil {
		vk.UnmapMemory(vb.context.Device.LogicalDevice, vb.Memory)
	}
	if vb.Handle != nil {
		vk.DestroyBuffer(vb.context.Device.LogicalDevice, vb.Handle, vb.context.Allocator)
		vb.Handle = nil
	}
	if vb.Memory != nil {
		vk.FreeMemory(vb.context.Device.LogicalDevice, vb.Memory, vb.context.Allocator)
		vb.Memory = nil
	}
	vb.mapped = nil
	vb.TotalSize = 0
}
