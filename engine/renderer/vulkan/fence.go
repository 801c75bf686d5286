package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/atlas/engine/core"
)

type VulkanFence struct {
	Handle     Fence
	IsSignaled bool
}

func NewFence(device Device, createSignaled bool) (*VulkanFence, error) {
	handle, res := device.CreateFence(createSignaled)
	if err := checkResult("vkCreateFence", res); err != nil {
		return nil, err
	}
	return &VulkanFence{
		Handle: handle,
		// Make sure to signal the fence if required.
		IsSignaled: createSignaled,
	}, nil
}

func (vf *VulkanFence) Destroy(device Device) {
	if vf.Handle != NullHandle {
		device.DestroyFence(vf.Handle)
		vf.Handle = NullHandle
	}
	vf.IsSignaled = false
}

// Wait blocks until the fence signals or timeoutNs elapses. A timeout is
// reported with core.ErrFenceTimeout, a lost device with core.ErrDeviceLost.
func (vf *VulkanFence) Wait(device Device, timeoutNs uint64) error {
	if vf.IsSignaled {
		// If already signaled, do not wait.
		return nil
	}
	result := device.WaitForFence(vf.Handle, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
		return errors.Wrapf(core.ErrFenceTimeout, "fence %#x after %dns", uint64(vf.Handle), timeoutNs)
	case vk.ErrorDeviceLost:
		core.LogError("vk_fence_wait - VK_ERROR_DEVICE_LOST.")
		return errors.Mark(&ResultError{Op: "vkWaitForFences", Result: result}, core.ErrDeviceLost)
	case vk.ErrorOutOfHostMemory:
		core.LogError("vk_fence_wait - VK_ERROR_OUT_OF_HOST_MEMORY.")
	case vk.ErrorOutOfDeviceMemory:
		core.LogError("vk_fence_wait - VK_ERROR_OUT_OF_DEVICE_MEMORY.")
	default:
		core.LogError("vk_fence_wait - An unknown error has occurred.")
	}
	return errors.WithStack(&ResultError{Op: "vkWaitForFences", Result: result})
}

func (vf *VulkanFence) Reset(device Device) error {
	if vf.IsSignaled {
		if err := checkResult("vkResetFences", device.ResetFence(vf.Handle)); err != nil {
			return err
		}
		vf.IsSignaled = false
	}
	return nil
}
