package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/ember-engine/ember/engine/core"
	"github.com/ember-engine/ember/engine/renderer/frame"
	"github.com/ember-engine/ember/engine/renderer/surface"
)

// VulkanCommandList is a finished, submittable command buffer.
type VulkanCommandList struct {
	Handle vk.CommandBuffer
}

// VulkanCommandEncoder records one frame's commands into a primary command
// buffer allocated from the graphics pool. Recording starts at allocation
// and ends in Finish.
type VulkanCommandEncoder struct {
	context *VulkanContext
	Handle  vk.CommandBuffer

	renderpass *VulkanRenderpass
	extent     vk.Extent2D
	inPass     bool
	finished   bool
}

func NewVulkanCommandEncoder(context *VulkanContext, pool vk.CommandPool, renderpass *VulkanRenderpass, singleUse bool) (*VulkanCommandEncoder, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}

	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles); res != vk.Success {
		err := fmt.Errorf("failed to allocate command buffer: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if singleUse {
		beginInfo.Flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if res := vk.BeginCommandBuffer(handles[0], &beginInfo); res != vk.Success {
		vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, handles)
		err := fmt.Errorf("failed to begin command buffer: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}

	return &VulkanCommandEncoder{
		context:    context,
		Handle:     handles[0],
		renderpass: renderpass,
	}, nil
}

func (e *VulkanCommandEncoder) BeginRenderPass(target surface.ImageView, clearColor [4]float32) error {
	view, ok := target.(*VulkanImageView)
	if !ok {
		return fmt.Errorf("unexpected image view type %T", target)
	}
	if e.inPass {
		return fmt.Errorf("render pass already begun")
	}

	e.extent = vk.Extent2D{
		Width:  view.extent.Width,
		Height: view.extent.Height,
	}
	e.renderpass.RenderpassBegin(e.Handle, view.framebuffer.Handle, e.extent, clearColor)
	e.inPass = true
	return nil
}

func (e *VulkanCommandEncoder) BindPipeline(pipeline frame.Pipeline) error {
	vp, ok := pipeline.(*VulkanPipeline)
	if !ok {
		return fmt.Errorf("unexpected pipeline type %T", pipeline)
	}
	vp.Bind(e.Handle, vk.PipelineBindPointGraphics)
	return nil
}

func (e *VulkanCommandEncoder) SetViewport(extent surface.Extent) error {
	viewport := vk.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	vk.CmdSetViewport(e.Handle, 0, 1, []vk.Viewport{viewport})

	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
	}
	vk.CmdSetScissor(e.Handle, 0, 1, []vk.Rect2D{scissor})
	return nil
}

func (e *VulkanCommandEncoder) BindVertexBuffer(binding uint32, allocation frame.Allocation) error {
	buffer, ok := allocation.Backing.(*VulkanBuffer)
	if !ok {
		return fmt.Errorf("unexpected vertex backing type %T", allocation.Backing)
	}
	vk.CmdBindVertexBuffers(e.Handle, binding, 1, []vk.Buffer{buffer.Handle}, []vk.DeviceSize{vk.DeviceSize(allocation.Offset)})
	return nil
}

func (e *VulkanCommandEncoder) BindIndexBuffer(allocation frame.Allocation) error {
	buffer, ok := allocation.Backing.(*VulkanBuffer)
	if !ok {
		return fmt.Errorf("unexpected index backing type %T", allocation.Backing)
	}
	vk.CmdBindIndexBuffer(e.Handle, buffer.Handle, vk.DeviceSize(allocation.Offset), vk.IndexTypeUint32)
	return nil
}

func (e *VulkanCommandEncoder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) error {
	vk.CmdDrawIndexed(e.Handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
	return nil
}

func (e *VulkanCommandEncoder) EndRenderPass() error {
	if !e.inPass {
		return fmt.Errorf("no render pass to end")
	}
	e.renderpass.RenderpassEnd(e.Handle)
	e.inPass = false
	return nil
}

func (e *VulkanCommandEncoder) Finish() (surface.CommandBuffer, error) {
	if e.finished {
		return nil, fmt.Errorf("command buffer already finished")
	}
	if e.inPass {
		return nil, fmt.Errorf("render pass still open")
	}
	if res := vk.EndCommandBuffer(e.Handle); res != vk.Success {
		err := fmt.Errorf("failed to end command buffer: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	e.finished = true
	return &VulkanCommandList{Handle: e.Handle}, nil
}
