package vulkan

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

type CommandBufferState int

const (
	CommandBufferStateNotAllocated CommandBufferState = iota
	CommandBufferStateReady
	CommandBufferStateRecording
	CommandBufferStateRecordingEnded
	CommandBufferStateSubmitted
)

var commandBufferStateNames = [...]string{
	CommandBufferStateNotAllocated:   "not allocated",
	CommandBufferStateReady:          "ready",
	CommandBufferStateRecording:      "recording",
	CommandBufferStateRecordingEnded: "recording ended",
	CommandBufferStateSubmitted:      "submitted",
}

func (s CommandBufferState) String() string {
	if s >= 0 && int(s) < len(commandBufferStateNames) {
		return commandBufferStateNames[s]
	}
	return fmt.Sprintf("CommandBufferState(%d)", int(s))
}

// VulkanCommandBuffer tracks the recording state of a primary command buffer.
// Transitions out of order are reported as errors instead of reaching the
// driver.
type VulkanCommandBuffer struct {
	Handle CommandBuffer
	// Command buffer state.
	State CommandBufferState
}

func NewVulkanCommandBuffer(device Device, pool CommandPool) (*VulkanCommandBuffer, error) {
	handle, res := device.AllocateCommandBuffer(pool)
	if err := checkResult("vkAllocateCommandBuffers", res); err != nil {
		return nil, err
	}
	return &VulkanCommandBuffer{
		Handle: handle,
		State:  CommandBufferStateReady,
	}, nil
}

func (v *VulkanCommandBuffer) expect(op string, state CommandBufferState) error {
	if v.State != state {
		return errors.AssertionFailedf("%s: command buffer is %s, expected %s", op, v.State, state)
	}
	return nil
}

func (v *VulkanCommandBuffer) Begin(device Device, isSingleUse bool) error {
	if err := v.expect("begin", CommandBufferStateReady); err != nil {
		return err
	}
	if err := checkResult("vkBeginCommandBuffer", device.BeginCommandBuffer(v.Handle, isSingleUse)); err != nil {
		return err
	}
	v.State = CommandBufferStateRecording
	return nil
}

func (v *VulkanCommandBuffer) End(device Device) error {
	if err := v.expect("end", CommandBufferStateRecording); err != nil {
		return err
	}
	if err := checkResult("vkEndCommandBuffer", device.EndCommandBuffer(v.Handle)); err != nil {
		return err
	}
	v.State = CommandBufferStateRecordingEnded
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = CommandBufferStateSubmitted
}

// Reset marks the buffer ready again. The owning pool must have been reset.
func (v *VulkanCommandBuffer) Reset() {
	v.State = CommandBufferStateReady
}
