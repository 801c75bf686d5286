package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/atlas/engine/core"
)

// CreateBuffer creates a buffer of size bytes with its own memory allocation.
func (m *VulkanManager) CreateBuffer(size uint64, usage vk.BufferUsageFlags, memoryFlags vk.MemoryPropertyFlags) (AllocatedBuffer, error) {
	device, err := m.Device()
	if err != nil {
		return AllocatedBuffer{}, err
	}
	buffer, memory, res := device.CreateBuffer(size, usage, memoryFlags)
	if err := checkResult("vkCreateBuffer", res); err != nil {
		return AllocatedBuffer{}, err
	}
	return AllocatedBuffer{
		Buffer: buffer,
		Memory: memory,
		Size:   size,
		Usage:  usage,
	}, nil
}

// DestroyBuffer releases the buffer and its memory and zeroes b.
func (m *VulkanManager) DestroyBuffer(b *AllocatedBuffer) {
	if m.device == nil || b == nil {
		return
	}
	destroyBuffer(m.device, b)
}

// MapMemory copies data to the start of a host visible buffer.
func (m *VulkanManager) MapMemory(b AllocatedBuffer, data []byte) error {
	device, err := m.Device()
	if err != nil {
		return err
	}
	if uint64(len(data)) > b.Size {
		return errors.Newf("mapping %d bytes into a buffer of %d bytes", len(data), b.Size)
	}
	if len(data) == 0 {
		return nil
	}
	return checkResult("vkMapMemory", device.WriteMemory(b.Memory, data))
}

// deferDestroy hands a buffer to the deletion queue. Used when the GPU may
// still be reading from it.
func (m *VulkanManager) deferDestroy(b AllocatedBuffer) {
	if b.Buffer == NullHandle {
		return
	}
	core.LogWarn("buffer %#x may still be in use, deferring its destruction", uint64(b.Buffer))
	m.deletionQueue.Push(DeletionRecord{Kind: DeleteBuffer, Handle: uint64(b.Buffer), Memory: b.Memory})
}
