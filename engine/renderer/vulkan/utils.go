package vulkan

import (
	vk "github.com/goki/vulkan"
)

// VulkanResultString returns the string representation of result.
// getExtended indicates whether to also return an extended result.
func VulkanResultString(result vk.Result, getExtended bool) string {
	switch result {
	case vk.Success:
		return "VK_SUCCESS" + ConditionalOperator(!getExtended, "", " Command successfully completed")
	case vk.NotReady:
		return "VK_NOT_READY" + ConditionalOperator(!getExtended, "", " A fence or query has not yet completed")
	case vk.Timeout:
		return "VK_TIMEOUT" + ConditionalOperator(!getExtended, "", " A wait operation has not completed in the specified time")
	case vk.EventSet:
		return "VK_EVENT_SET" + ConditionalOperator(!getExtended, "", " An event is signaled")
	case vk.EventReset:
		return "VK_EVENT_RESET" + ConditionalOperator(!getExtended, "", " An event is unsignaled")
	case vk.Incomplete:
		return "VK_INCOMPLETE" + ConditionalOperator(!getExtended, "", " A return array was too small for the result")
	case vk.Suboptimal:
		return "VK_SUBOPTIMAL_KHR" + ConditionalOperator(!getExtended, "", " A swapchain no longer matches the surface properties exactly, but can still be used to present to the surface successfully.")
	case vk.ErrorOutOfHostMemory:
		return "VK_ERROR_OUT_OF_HOST_MEMORY" + ConditionalOperator(!getExtended, "", " A host memory allocation has failed.")
	case vk.ErrorOutOfDeviceMemory:
		return "VK_ERROR_OUT_OF_DEVICE_MEMORY" + ConditionalOperator(!getExtended, "", " A device memory allocation has failed.")
	case vk.ErrorInitializationFailed:
		return "VK_ERROR_INITIALIZATION_FAILED" + ConditionalOperator(!getExtended, "", " Initialization of an object could not be completed for implementation-specific reasons.")
	case vk.ErrorDeviceLost:
		return "VK_ERROR_DEVICE_LOST" + ConditionalOperator(!getExtended, "", " The logical or physical device has been lost.")
	case vk.ErrorSurfaceLost:
		return "VK_ERROR_SURFACE_LOST_KHR" + ConditionalOperator(!getExtended, "", " A surface is no longer available.")
	case vk.ErrorOutOfDate:
		return "VK_ERROR_OUT_OF_DATE_KHR" + ConditionalOperator(!getExtended, "", " A surface has changed in such a way that it is no longer compatible with the swapchain, and further presentation requests using the swapchain will fail.")
	case vk.ErrorLayerNotPresent:
		return "VK_ERROR_LAYER_NOT_PRESENT" + ConditionalOperator(!getExtended, "", " A requested layer is not present or could not be loaded.")
	case vk.ErrorExtensionNotPresent:
		return "VK_ERROR_EXTENSION_NOT_PRESENT" + ConditionalOperator(!getExtended, "", " A requested extension is not supported.")
	case vk.ErrorFeatureNotPresent:
		return "VK_ERROR_FEATURE_NOT_PRESENT" + ConditionalOperator(!getExtended, "", " A requested feature is not supported.")
	default:
		return "unhandled VkResult" + ConditionalOperator(!getExtended, "", " An unhandled result was returned.")
	}
}

// VulkanResultIsSuccess indicates if result is a success or an error
// as defined by the Vulkan specification.
func VulkanResultIsSuccess(result vk.Result) bool {
	switch result {
	case vk.Success, vk.NotReady, vk.Timeout, vk.EventSet, vk.EventReset, vk.Incomplete,
		vk.Suboptimal, vk.ThreadIdle, vk.ThreadDone, vk.OperationDeferred, vk.OperationNotDeferred,
		vk.PipelineCompileRequired:
		return true
	default:
		return false
	}
}

func ConditionalOperator[T any](condition bool, trueBranch T, falseBranch T) T {
	if condition {
		return trueBranch
	}
	return falseBranch
}

// VulkanSafeString null-terminates s for use in Vulkan create infos.
func VulkanSafeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != '\x00' {
		return s + "\x00"
	}
	return s
}

func VulkanSafeStrings(l []string) []string {
	out := make([]string, len(l))
	for i, s := range l {
		out[i] = VulkanSafeString(s)
	}
	return out
}
