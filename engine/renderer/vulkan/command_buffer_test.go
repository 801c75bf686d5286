package vulkan

import (
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/atlas/engine/core"
)

func TestCommandBufferStateMachine(t *testing.T) {
	dev := newFakeDevice()
	cmd, err := NewVulkanCommandBuffer(dev, 1)
	if err != nil {
		t.Fatal(err)
	}
	if cmd.State != CommandBufferStateReady {
		t.Fatalf("new buffer is %s", cmd.State)
	}
	if err := cmd.End(dev); !errors.IsAssertionFailure(err) {
		t.Errorf("End before Begin = %v", err)
	}
	if err := cmd.Begin(dev, true); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Begin(dev, true); !errors.IsAssertionFailure(err) {
		t.Errorf("Begin while recording = %v", err)
	}
	if err := cmd.End(dev); err != nil {
		t.Fatal(err)
	}
	cmd.UpdateSubmitted()
	if cmd.State.String() != "submitted" {
		t.Errorf("state = %q", cmd.State)
	}
	cmd.Reset()
	if cmd.State != CommandBufferStateReady {
		t.Errorf("state after reset = %s", cmd.State)
	}
	if s := CommandBufferState(42).String(); s != "CommandBufferState(42)" {
		t.Errorf("unknown state = %q", s)
	}
}

func TestFenceWaitResults(t *testing.T) {
	tests := []struct {
		result vk.Result
		target error
	}{
		{vk.Success, nil},
		{vk.Timeout, core.ErrFenceTimeout},
		{vk.ErrorDeviceLost, core.ErrDeviceLost},
		{vk.ErrorOutOfDeviceMemory, nil},
	}
	for _, tt := range tests {
		t.Run(ResultString(tt.result), func(t *testing.T) {
			dev := newFakeDevice()
			dev.waitResult = tt.result
			f, err := NewFence(dev, false)
			if err != nil {
				t.Fatal(err)
			}
			err = f.Wait(dev, 10)
			switch {
			case tt.result == vk.Success:
				if err != nil || !f.IsSignaled {
					t.Errorf("Wait() = %v, signaled %v", err, f.IsSignaled)
				}
			case tt.target != nil:
				if !errors.Is(err, tt.target) {
					t.Errorf("Wait() = %v, want %v", err, tt.target)
				}
			default:
				if res, ok := ResultOf(err); !ok || res != tt.result {
					t.Errorf("Wait() = %v, want result %s", err, ResultString(tt.result))
				}
			}
		})
	}
}

func TestSignaledFenceSkipsWait(t *testing.T) {
	dev := newFakeDevice()
	f, err := NewFence(dev, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Wait(dev, 0); err != nil {
		t.Fatal(err)
	}
	if dev.calls["WaitForFence"] != 0 {
		t.Error("signaled fence waited on the device")
	}
	if err := f.Reset(dev); err != nil || f.IsSignaled {
		t.Errorf("Reset() = %v, signaled %v", err, f.IsSignaled)
	}
	f.Destroy(dev)
	if f.Handle != NullHandle || dev.calls["DestroyFence"] != 1 {
		t.Error("fence not destroyed")
	}
	f.Destroy(dev)
	if dev.calls["DestroyFence"] != 1 {
		t.Error("fence destroyed twice")
	}
}
