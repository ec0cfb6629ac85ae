package vulkan

import (
	"fmt"
	stdmath "math"

	vk "github.com/goki/vulkan"

	"github.com/ember-engine/ember/engine/core"
	"github.com/ember-engine/ember/engine/math"
	"github.com/ember-engine/ember/engine/platform"
	"github.com/ember-engine/ember/engine/renderer/frame"
	"github.com/ember-engine/ember/engine/renderer/surface"
)

// VulkanImageView is one presentable swapchain image with its view and the
// framebuffer targeting it. All three die with the swapchain that owns them.
type VulkanImageView struct {
	Image       vk.Image
	Handle      vk.ImageView
	framebuffer *VulkanFramebuffer
	extent      surface.Extent
}

func (v *VulkanImageView) Extent() surface.Extent {
	return v.extent
}

func (v *VulkanImageView) Layers() uint32 {
	return 1
}

// vulkanSignal is the opaque synchronization token handed through the frame
// pipeline. Acquisition and execution signals carry a semaphore; the
// presentation signal carries the frame fence, the sole blocking point.
type vulkanSignal struct {
	semaphore vk.Semaphore
	fence     *VulkanFence
}

// VulkanSwapchainDevice drives the presentation surface: swapchain creation
// and teardown, image acquisition, queue submission and presentation. One
// frame is in flight at a time, so a single semaphore pair and fence suffice.
type VulkanSwapchainDevice struct {
	context  *VulkanContext
	platform *platform.Platform

	Renderpass *VulkanRenderpass

	imageAvailable vk.Semaphore
	queueComplete  vk.Semaphore
	inFlight       *VulkanFence

	// One-time-submit buffers retired by the next fence wait.
	pendingFree []vk.CommandBuffer
}

func NewSwapchainDevice(context *VulkanContext, p *platform.Platform) (*VulkanSwapchainDevice, error) {
	device := &VulkanSwapchainDevice{
		context:  context,
		platform: p,
	}

	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	if res := vk.CreateSemaphore(context.Device.LogicalDevice, &semaphoreCreateInfo, context.Allocator, &device.imageAvailable); res != vk.Success {
		err := fmt.Errorf("failed to create image available semaphore: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	if res := vk.CreateSemaphore(context.Device.LogicalDevice, &semaphoreCreateInfo, context.Allocator, &device.queueComplete); res != vk.Success {
		err := fmt.Errorf("failed to create queue complete semaphore: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}

	// Created signaled so the first frame does not block on it.
	fence, err := NewFence(context, true)
	if err != nil {
		return nil, err
	}
	device.inFlight = fence

	return device, nil
}

func pixelFormatFromVulkan(format vk.Format) surface.PixelFormat {
	switch format {
	case vk.FormatB8g8r8a8Srgb:
		return surface.FormatB8G8R8A8Srgb
	case vk.FormatB8g8r8a8Unorm:
		return surface.FormatB8G8R8A8Unorm
	case vk.FormatR8g8b8a8Srgb:
		return surface.FormatR8G8B8A8Srgb
	case vk.FormatR8g8b8a8Unorm:
		return surface.FormatR8G8B8A8Unorm
	default:
		return surface.FormatUndefined
	}
}

func pixelFormatToVulkan(format surface.PixelFormat) (vk.Format, error) {
	switch format {
	case surface.FormatB8G8R8A8Srgb:
		return vk.FormatB8g8r8a8Srgb, nil
	case surface.FormatB8G8R8A8Unorm:
		return vk.FormatB8g8r8a8Unorm, nil
	case surface.FormatR8G8B8A8Srgb:
		return vk.FormatR8g8b8a8Srgb, nil
	case surface.FormatR8G8B8A8Unorm:
		return vk.FormatR8g8b8a8Unorm, nil
	default:
		return vk.FormatUndefined, fmt.Errorf("unsupported pixel format %d", format)
	}
}

func presentModeFromVulkan(mode vk.PresentMode) (surface.PresentMode, bool) {
	switch mode {
	case vk.PresentModeFifo:
		return surface.PresentModeFifo, true
	case vk.PresentModeMailbox:
		return surface.PresentModeMailbox, true
	case vk.PresentModeImmediate:
		return surface.PresentModeImmediate, true
	default:
		return 0, false
	}
}

func presentModeToVulkan(mode surface.PresentMode) vk.PresentMode {
	switch mode {
	case surface.PresentModeMailbox:
		return vk.PresentModeMailbox
	case surface.PresentModeImmediate:
		return vk.PresentModeImmediate
	default:
		return vk.PresentModeFifo
	}
}

func (d *VulkanSwapchainDevice) QuerySupport() (*surface.SupportInfo, error) {
	support := &d.context.Device.SwapchainSupport
	if err := DeviceQuerySwapchainSupport(d.context.Device.PhysicalDevice, d.context.Surface, support); err != nil {
		return nil, err
	}

	info := &surface.SupportInfo{
		Capabilities: surface.Capabilities{
			MinImageCount: support.Capabilities.MinImageCount,
			MaxImageCount: support.Capabilities.MaxImageCount,
			CurrentExtent: surface.Extent{
				Width:  support.Capabilities.CurrentExtent.Width,
				Height: support.Capabilities.CurrentExtent.Height,
			},
		},
	}
	// A current extent of MaxUint32 means the window manager lets the
	// swapchain decide; report the drawable size instead.
	if support.Capabilities.CurrentExtent.Width == stdmath.MaxUint32 {
		info.Capabilities.CurrentExtent = d.DrawableExtent()
	}

	for _, format := range support.Formats {
		pixelFormat := pixelFormatFromVulkan(format.Format)
		if pixelFormat == surface.FormatUndefined {
			continue
		}
		colorSpace := surface.ColorSpaceOther
		if format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			colorSpace = surface.ColorSpaceSrgbNonlinear
		}
		info.Formats = append(info.Formats, surface.SurfaceFormat{
			Format:     pixelFormat,
			ColorSpace: colorSpace,
		})
	}
	for _, mode := range support.PresentModes {
		if converted, ok := presentModeFromVulkan(mode); ok {
			info.PresentModes = append(info.PresentModes, converted)
		}
	}
	return info, nil
}

func (d *VulkanSwapchainDevice) DrawableExtent() surface.Extent {
	width, height := d.platform.GetFramebufferSize()
	return surface.Extent{Width: width, Height: height}
}

func (d *VulkanSwapchainDevice) CreateSwapchain(cfg surface.SwapchainConfig) (*surface.Swapchain, error) {
	format, err := pixelFormatToVulkan(cfg.Format.Format)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	colorSpace := vk.ColorSpaceSrgbNonlinear

	support := &d.context.Device.SwapchainSupport

	// Clamp to the value allowed by the GPU.
	swapchainExtent := vk.Extent2D{
		Width:  math.Clamp(cfg.Extent.Width, support.Capabilities.MinImageExtent.Width, support.Capabilities.MaxImageExtent.Width),
		Height: math.Clamp(cfg.Extent.Height, support.Capabilities.MinImageExtent.Height, support.Capabilities.MaxImageExtent.Height),
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.context.Surface,
		MinImageCount:    cfg.ImageCount,
		ImageFormat:      format,
		ImageColorSpace:  colorSpace,
		ImageExtent:      swapchainExtent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
	}

	if d.context.Device.GraphicsQueueIndex != d.context.Device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(d.context.Device.GraphicsQueueIndex),
			uint32(d.context.Device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	swapchainCreateInfo.PreTransform = support.Capabilities.CurrentTransform
	swapchainCreateInfo.CompositeAlpha = vk.CompositeAlphaOpaqueBit
	swapchainCreateInfo.PresentMode = presentModeToVulkan(cfg.PresentMode)
	swapchainCreateInfo.Clipped = vk.True
	swapchainCreateInfo.OldSwapchain = vk.NullSwapchain

	var swapchainHandle vk.Swapchain
	if res := vk.CreateSwapchain(d.context.Device.LogicalDevice, &swapchainCreateInfo, d.context.Allocator, &swapchainHandle); res != vk.Success {
		err := fmt.Errorf("failed to create swapchain: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}

	// Images
	var imageCount uint32
	if res := vk.GetSwapchainImages(d.context.Device.LogicalDevice, swapchainHandle, &imageCount, nil); res != vk.Success {
		err := fmt.Errorf("failed to get swapchain images: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	images := make([]vk.Image, imageCount)
	if res := vk.GetSwapchainImages(d.context.Device.LogicalDevice, swapchainHandle, &imageCount, images); res != vk.Success {
		err := fmt.Errorf("failed to get swapchain images: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}

	// The render pass outlives individual swapchains; the format never
	// changes across recreation.
	if d.Renderpass == nil {
		renderpass, err := RenderpassCreate(d.context, format)
		if err != nil {
			return nil, err
		}
		d.Renderpass = renderpass
	}

	extent := surface.Extent{Width: swapchainExtent.Width, Height: swapchainExtent.Height}
	views := make([]surface.ImageView, imageCount)
	for i := 0; i < int(imageCount); i++ {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    images[i],
			ViewType: vk.ImageViewType2d,
			Format:   format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		}

		var viewHandle vk.ImageView
		if res := vk.CreateImageView(d.context.Device.LogicalDevice, &viewInfo, d.context.Allocator, &viewHandle); res != vk.Success {
			err := fmt.Errorf("failed to create image view: %s", VulkanResultString(res, true))
			core.LogError(err.Error())
			return nil, err
		}

		framebuffer, err := FramebufferCreate(d.context, d.Renderpass, extent.Width, extent.Height, viewHandle)
		if err != nil {
			return nil, err
		}

		views[i] = &VulkanImageView{
			Image:       images[i],
			Handle:      viewHandle,
			framebuffer: framebuffer,
			extent:      extent,
		}
	}

	d.context.FramebufferWidth = extent.Width
	d.context.FramebufferHeight = extent.Height

	core.LogInfo("Swapchain created successfully.")
	return &surface.Swapchain{
		Handle:      swapchainHandle,
		Format:      cfg.Format,
		PresentMode: cfg.PresentMode,
		Extent:      extent,
		ImageCount:  imageCount,
		Views:       views,
	}, nil
}

func (d *VulkanSwapchainDevice) DestroySwapchain(sc *surface.Swapchain) {
	vk.DeviceWaitIdle(d.context.Device.LogicalDevice)

	// Only destroy the views, not the images, since those are owned by the
	// swapchain and die with it.
	for _, view := range sc.Views {
		if vulkanView, ok := view.(*VulkanImageView); ok {
			vulkanView.framebuffer.Destroy(d.context)
			vk.DestroyImageView(d.context.Device.LogicalDevice, vulkanView.Handle, d.context.Allocator)
			vulkanView.Handle = nil
		}
	}
	if handle, ok := sc.Handle.(vk.Swapchain); ok {
		vk.DestroySwapchain(d.context.Device.LogicalDevice, handle, d.context.Allocator)
	}

	// A suboptimal acquisition followed by recreation leaves imageAvailable
	// signaled with nothing waiting on it; a fresh pair cannot be reused
	// while still pending.
	if err := d.recycleSemaphores(); err != nil {
		core.LogError(err.Error())
	}
}

func (d *VulkanSwapchainDevice) recycleSemaphores() error {
	vk.DestroySemaphore(d.context.Device.LogicalDevice, d.imageAvailable, d.context.Allocator)
	vk.DestroySemaphore(d.context.Device.LogicalDevice, d.queueComplete, d.context.Allocator)
	d.imageAvailable = nil
	d.queueComplete = nil

	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	if res := vk.CreateSemaphore(d.context.Device.LogicalDevice, &semaphoreCreateInfo, d.context.Allocator, &d.imageAvailable); res != vk.Success {
		return fmt.Errorf("failed to recreate image available semaphore: %s", VulkanResultString(res, true))
	}
	if res := vk.CreateSemaphore(d.context.Device.LogicalDevice, &semaphoreCreateInfo, d.context.Allocator, &d.queueComplete); res != vk.Success {
		return fmt.Errorf("failed to recreate queue complete semaphore: %s", VulkanResultString(res, true))
	}
	return nil
}

func (d *VulkanSwapchainDevice) DestroySurface() {
	if d.Renderpass != nil {
		d.Renderpass.RenderpassDestroy(d.context)
		d.Renderpass = nil
	}
	if d.imageAvailable != nil {
		vk.DestroySemaphore(d.context.Device.LogicalDevice, d.imageAvailable, d.context.Allocator)
		d.imageAvailable = nil
	}
	if d.queueComplete != nil {
		vk.DestroySemaphore(d.context.Device.LogicalDevice, d.queueComplete, d.context.Allocator)
		d.queueComplete = nil
	}
	if d.inFlight != nil {
		d.inFlight.FenceDestroy(d.context)
		d.inFlight = nil
	}
	if d.context.Surface != vk.NullSurface {
		vk.DestroySurface(d.context.Instance, d.context.Surface, d.context.Allocator)
		d.context.Surface = vk.NullSurface
	}
}

func (d *VulkanSwapchainDevice) AcquireNextImage(sc *surface.Swapchain) (uint32, surface.AcquireResult, surface.Signal, error) {
	handle, ok := sc.Handle.(vk.Swapchain)
	if !ok {
		return 0, surface.AcquireOutOfDate, nil, fmt.Errorf("unexpected swapchain handle type %T", sc.Handle)
	}

	var imageIndex uint32
	result := vk.AcquireNextImage(
		d.context.Device.LogicalDevice,
		handle,
		stdmath.MaxUint64,
		d.imageAvailable,
		vk.NullFence,
		&imageIndex)

	switch result {
	case vk.Success:
		return imageIndex, surface.AcquireSuccess, &vulkanSignal{semaphore: d.imageAvailable}, nil
	case vk.Suboptimal:
		return imageIndex, surface.AcquireSuboptimal, &vulkanSignal{semaphore: d.imageAvailable}, nil
	case vk.ErrorOutOfDate:
		return 0, surface.AcquireOutOfDate, nil, nil
	default:
		err := fmt.Errorf("failed to acquire swapchain image: %s", VulkanResultString(result, true))
		core.LogError(err.Error())
		return 0, surface.AcquireOutOfDate, nil, err
	}
}

func (d *VulkanSwapchainDevice) SubmitCommands(waitOn surface.Signal, commands surface.CommandBuffer) (surface.Signal, error) {
	commandList, ok := commands.(*VulkanCommandList)
	if !ok {
		return nil, fmt.Errorf("unexpected command buffer type %T", commands)
	}

	if err := d.inFlight.FenceReset(d.context); err != nil {
		return nil, err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{commandList.Handle},
		// The execution-complete signal, fired once the commands are done.
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{d.queueComplete},
	}
	if signal, ok := waitOn.(*vulkanSignal); ok && signal.semaphore != nil {
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{signal.semaphore}
		// Color attachment writes must not begin until the image is ready.
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		}
	}

	if res := vk.QueueSubmit(d.context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, d.inFlight.Handle); res != vk.Success {
		err := fmt.Errorf("failed to submit to graphics queue: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	d.pendingFree = append(d.pendingFree, commandList.Handle)

	return &vulkanSignal{semaphore: d.queueComplete, fence: d.inFlight}, nil
}

func (d *VulkanSwapchainDevice) PresentImage(sc *surface.Swapchain, waitOn surface.Signal, imageIndex uint32) (surface.PresentResult, surface.Signal, error) {
	handle, ok := sc.Handle.(vk.Swapchain)
	if !ok {
		return surface.PresentOutOfDate, nil, fmt.Errorf("unexpected swapchain handle type %T", sc.Handle)
	}

	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{handle},
		PImageIndices:  []uint32{imageIndex},
		PResults:       nil,
	}
	if signal, ok := waitOn.(*vulkanSignal); ok && signal.semaphore != nil {
		presentInfo.WaitSemaphoreCount = 1
		presentInfo.PWaitSemaphores = []vk.Semaphore{signal.semaphore}
	}

	// Presentation completes on screen; the frame fence from the preceding
	// submit is the signal the caller blocks on.
	presented := &vulkanSignal{fence: d.inFlight}

	result := vk.QueuePresent(d.context.Device.PresentQueue, &presentInfo)
	switch result {
	case vk.Success:
		return surface.PresentSuccess, presented, nil
	case vk.Suboptimal:
		return surface.PresentSuboptimal, presented, nil
	case vk.ErrorOutOfDate:
		return surface.PresentOutOfDate, presented, nil
	default:
		err := fmt.Errorf("failed to present swapchain image: %s", VulkanResultString(result, true))
		core.LogError(err.Error())
		return surface.PresentOutOfDate, nil, err
	}
}

func (d *VulkanSwapchainDevice) Wait(signal surface.Signal) error {
	vulkanSig, ok := signal.(*vulkanSignal)
	if !ok || vulkanSig.fence == nil {
		return fmt.Errorf("signal is not waitable")
	}
	if err := vulkanSig.fence.FenceWait(d.context, stdmath.MaxUint64); err != nil {
		return err
	}
	d.freeRetiredCommandBuffers()
	return nil
}

func (d *VulkanSwapchainDevice) WaitIdle() error {
	if res := vk.DeviceWaitIdle(d.context.Device.LogicalDevice); res != vk.Success {
		err := fmt.Errorf("device wait idle failed: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	d.freeRetiredCommandBuffers()
	return nil
}

// NewCommandContext makes the device the command source of the frame
// allocator. Only the graphics family is served.
func (d *VulkanSwapchainDevice) NewCommandContext(queueFamily uint32, usage frame.CommandUsage) (frame.CommandEncoder, error) {
	if queueFamily != uint32(d.context.Device.GraphicsQueueIndex) {
		return nil, fmt.Errorf("no command pool for queue family %d", queueFamily)
	}
	return NewVulkanCommandEncoder(
		d.context,
		d.context.Device.GraphicsCommandPool,
		d.Renderpass,
		usage == frame.CommandUsageOneTimeSubmit)
}

func (d *VulkanSwapchainDevice) freeRetiredCommandBuffers() {
	if len(d.pendingFree) == 0 {
		return
	}
	vk.FreeCommandBuffers(
		d.context.Device.LogicalDevice,
		d.context.Device.GraphicsCommandPool,
		uint32(len(d.pendingFree)),
		d.pendingFree)
	d.pendingFree = d.pendingFree[:0]
}
