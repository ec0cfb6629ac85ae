package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/ember-engine/ember/engine/assets"
	"github.com/ember-engine/ember/engine/config"
	"github.com/ember-engine/ember/engine/core"
	"github.com/ember-engine/ember/engine/platform"
	"github.com/ember-engine/ember/engine/renderer/frame"
	"github.com/ember-engine/ember/engine/renderer/metadata"
	"github.com/ember-engine/ember/engine/renderer/surface"
)

const (
	initialVertexArenaSize = 64 * 1024
	initialIndexArenaSize  = 64 * 1024
)

// The clear color of the main render pass.
var clearColor = [4]float32{1.0, 0.0, 0.0, 0.0}

// VulkanRenderer owns the whole Vulkan stack: instance, device, presentation
// surface, pipeline and the per-frame allocator. It satisfies the renderer
// backend contract.
type VulkanRenderer struct {
	platform *platform.Platform
	context  *VulkanContext
	config   *config.RendererConfig

	device        *VulkanSwapchainDevice
	surface       *surface.Manager
	pipeline      *VulkanPipeline
	vertexBacking *VulkanBuffer
	indexBacking  *VulkanBuffer
	recorder      *frame.Recorder
	driver        *frame.Driver

	debug bool
}

func New(p *platform.Platform, cfg *config.RendererConfig) *VulkanRenderer {
	return &VulkanRenderer{
		platform: p,
		config:   cfg,
		context: &VulkanContext{
			Allocator: nil,
		},
		debug: cfg.Debug,
	}
}

func (vr *VulkanRenderer) Initialize(appName string, shaders *assets.ShaderSet) error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		err := fmt.Errorf("GetInstanceProcAddress is nil")
		core.LogError(err.Error())
		return err
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return err
	}

	if err := vr.createInstance(appName); err != nil {
		return err
	}

	// Surface
	core.LogDebug("Creating Vulkan surface...")
	if err := CreateVulkanSurface(vr.platform, vr.context); err != nil {
		return err
	}
	core.LogDebug("Vulkan surface created.")

	// Device
	vr.context.Device = &VulkanDevice{
		GraphicsQueueIndex: -1,
		PresentQueueIndex:  -1,
	}
	if err := DeviceCreate(vr.context); err != nil {
		core.LogError("Failed to create device!")
		return err
	}

	// Presentation device and surface lifecycle manager.
	device, err := NewSwapchainDevice(vr.context, vr.platform)
	if err != nil {
		return err
	}
	vr.device = device

	manager, err := surface.NewManager(device, presentModeFromConfig(vr.config.PresentMode))
	if err != nil {
		return err
	}
	vr.surface = manager

	// Pipeline
	pipeline, err := vr.buildPipeline(shaders)
	if err != nil {
		return err
	}
	vr.pipeline = pipeline

	// Per-frame geometry arenas backed by persistently mapped buffers.
	vertexBacking, err := NewBuffer(vr.context, initialVertexArenaSize, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	if err != nil {
		return err
	}
	vr.vertexBacking = vertexBacking

	indexBacking, err := NewBuffer(vr.context, initialIndexArenaSize, vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit))
	if err != nil {
		return err
	}
	vr.indexBacking = indexBacking

	allocator := frame.NewAllocator(vertexBacking, indexBacking, device)
	vr.recorder = frame.NewRecorder(pipeline, clearColor)
	vr.driver = frame.NewDriver(manager, allocator, vr.recorder, uint32(vr.context.Device.GraphicsQueueIndex))

	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func (vr *VulkanRenderer) createInstance(appName string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Ember Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// Obtain a list of required extensions
	requiredExtensions := []string{"VK_KHR_surface"}
	requiredExtensions = append(requiredExtensions, vr.platform.GetRequiredExtensionNames()...)

	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1
	}

	if vr.debug {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		core.LogInfo("Required extensions:")
		for i := 0; i < len(requiredExtensions); i++ {
			core.LogInfo(requiredExtensions[i])
		}
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	// Validation layers should only be enabled on non-release builds.
	requiredValidationLayerNames := []string{}
	if vr.debug {
		core.LogInfo("Validation layers enabled. Enumerating...")
		requiredValidationLayerNames = []string{"VK_LAYER_KHRONOS_validation"}

		var availableLayerCount uint32
		if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, nil); res != vk.Success {
			err := fmt.Errorf("failed to enumerate instance layer properties: %s", VulkanResultString(res, true))
			core.LogError(err.Error())
			return err
		}
		availableLayers := make([]vk.LayerProperties, availableLayerCount)
		if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, availableLayers); res != vk.Success {
			err := fmt.Errorf("failed to enumerate instance layer properties: %s", VulkanResultString(res, true))
			core.LogError(err.Error())
			return err
		}

		// Verify all required layers are available.
		for i := range requiredValidationLayerNames {
			found := false
			for j := range availableLayers {
				availableLayers[j].Deref()
				if requiredValidationLayerNames[i] == vk.ToString(availableLayers[j].LayerName[:]) {
					found = true
					break
				}
			}
			if !found {
				err := fmt.Errorf("required validation layer is missing: %s", requiredValidationLayerNames[i])
				core.LogError(err.Error())
				return err
			}
		}
		core.LogInfo("All required validation layers are present.")
	}

	createInfo.EnabledLayerCount = uint32(len(requiredValidationLayerNames))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredValidationLayerNames)

	if res := vk.CreateInstance(&createInfo, vr.context.Allocator, &vr.context.Instance); res != vk.Success {
		err := fmt.Errorf("failed in creating the Vulkan Instance with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(vr.context.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if vr.debug {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit),
			PfnCallback: dbgCallbackFunc,
			PNext:       nil,
		}

		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogError("vk.CreateDebugReportCallback failed with %s", err)
			return err
		}
		vr.context.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}

	return nil
}

func (vr *VulkanRenderer) buildPipeline(shaders *assets.ShaderSet) (*VulkanPipeline, error) {
	vertexStage, err := NewShaderStage(vr.context, shaders.Vertex, vk.ShaderStageVertexBit)
	if err != nil {
		return nil, err
	}
	defer vertexStage.Destroy(vr.context)

	fragmentStage, err := NewShaderStage(vr.context, shaders.Fragment, vk.ShaderStageFragmentBit)
	if err != nil {
		return nil, err
	}
	defer fragmentStage.Destroy(vr.context)

	return NewColorPipeline(vr.context, vr.device.Renderpass, vertexStage, fragmentStage)
}

func presentModeFromConfig(mode string) surface.PresentMode {
	switch mode {
	case "mailbox":
		return surface.PresentModeMailbox
	case "immediate":
		return surface.PresentModeImmediate
	default:
		return surface.PresentModeFifo
	}
}

// Resized reacts to a framebuffer size event from the window system.
func (vr *VulkanRenderer) Resized(width, height uint32) error {
	vr.context.FramebufferWidth = width
	vr.context.FramebufferHeight = height
	return vr.driver.Resized(width, height)
}

// DrawFrame renders one frame from the packet.
func (vr *VulkanRenderer) DrawFrame(packet *metadata.RenderPacket) error {
	return vr.driver.DrawFrame(packet)
}

// Minimized reports whether rendering is currently suspended.
func (vr *VulkanRenderer) Minimized() bool {
	return vr.driver.Minimized()
}

// FrameNumber reports the number of frames presented so far.
func (vr *VulkanRenderer) FrameNumber() uint64 {
	return vr.driver.FrameNumber()
}

// ReloadShaders rebuilds the pipeline from freshly compiled shaders and swaps
// it in between frames.
func (vr *VulkanRenderer) ReloadShaders(shaders *assets.ShaderSet) error {
	if err := vr.device.WaitIdle(); err != nil {
		return err
	}

	pipeline, err := vr.buildPipeline(shaders)
	if err != nil {
		return err
	}

	vr.pipeline.Destroy(vr.context)
	vr.pipeline = pipeline
	vr.recorder.SetPipeline(pipeline)
	core.LogInfo("Graphics pipeline rebuilt from reloaded shaders.")
	return nil
}

// Shutdown tears the stack down in the opposite order of creation.
func (vr *VulkanRenderer) Shutdown() error {
	if vr.context.Device != nil && vr.context.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)
	}

	if vr.pipeline != nil {
		vr.pipeline.Destroy(vr.context)
		vr.pipeline = nil
	}
	if vr.vertexBacking != nil {
		vr.vertexBacking.Destroy()
		vr.vertexBacking = nil
	}
	if vr.indexBacking != nil {
		vr.indexBacking.Destroy()
		vr.indexBacking = nil
	}
	if vr.surface != nil {
		vr.surface.Destroy()
		vr.surface = nil
	}
	if vr.context.Device != nil && vr.context.Device.LogicalDevice != nil {
		DeviceDestroy(vr.context)
	}
	if vr.context.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(vr.context.Instance, vr.context.debugMessenger, nil)
		vr.context.debugMessenger = vk.NullDebugReportCallback
	}
	if vr.context.Instance != nil {
		vk.DestroyInstance(vr.context.Instance, vr.context.Allocator)
		vr.context.Instance = nil
	}

	core.LogInfo("Vulkan renderer shut down.")
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
