package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/loov/hrtime"

	"github.com/spaghettifunk/atlas/engine/core"
)

// UploadContext is the command pool, command buffer and fence reserved for
// immediate submits. There is one per manager and only one submit may use it
// at a time.
type UploadContext struct {
	CommandPool   CommandPool
	CommandBuffer *VulkanCommandBuffer
	Fence         *VulkanFence
}

// InitCommands creates the upload command pool and its command buffer on the
// given queue family. The pool is destroyed by Cleanup.
func (m *VulkanManager) InitCommands(queue Queue, queueFamilyIndex uint32) error {
	device, err := m.Device()
	if err != nil {
		return err
	}
	m.queue = queue
	m.queueFamilyIndex = queueFamilyIndex

	pool, res := device.CreateCommandPool(queueFamilyIndex)
	if err := checkResult("vkCreateCommandPool", res); err != nil {
		return err
	}
	m.deletionQueue.Push(DeletionRecord{Kind: DeleteCommandPool, Handle: uint64(pool)})

	cmd, err := NewVulkanCommandBuffer(device, pool)
	if err != nil {
		return err
	}
	m.upload.CommandPool = pool
	m.upload.CommandBuffer = cmd
	return nil
}

// InitSyncStructures creates the upload fence. The fence is destroyed by
// Cleanup.
func (m *VulkanManager) InitSyncStructures() error {
	device, err := m.Device()
	if err != nil {
		return err
	}
	fence, err := NewFence(device, false)
	if err != nil {
		return err
	}
	m.deletionQueue.Push(DeletionRecord{Kind: DeleteFence, Handle: uint64(fence.Handle)})
	m.upload.Fence = fence
	return nil
}

/**
 * @brief Records a one-shot command buffer with record, submits it and blocks
 * until the GPU has executed it.
 *
 * Only one immediate submit may be in flight; an overlapping call returns
 * core.ErrTransferInFlight without touching the upload command buffer.
 *
 * When the fence wait times out the submit stays outstanding. The next call
 * waits on the fence again before recording and keeps returning
 * core.ErrFenceTimeout until the GPU has finished the earlier work.
 */
func (m *VulkanManager) ImmediateSubmit(record func(cmd CommandBuffer) error) error {
	if err := core.AssertInitialized(m.queue != NullHandle, "Queue not initialized"); err != nil {
		return err
	}
	if err := core.AssertInitialized(m.upload.CommandBuffer != nil && m.upload.Fence != nil, "upload context not initialized"); err != nil {
		return err
	}
	if !m.uploadGuard.TryAcquire(1) {
		return errors.WithStack(core.ErrTransferInFlight)
	}
	defer m.uploadGuard.Release(1)

	device := m.device
	cmd := m.upload.CommandBuffer

	if cmd.State == CommandBufferStateSubmitted {
		if err := m.upload.Fence.Wait(device, m.fenceTimeout); err != nil {
			return errors.Wrap(err, "previous immediate submit still pending")
		}
		if err := m.finishSubmit(); err != nil {
			return err
		}
	}

	start := hrtime.Now()
	if err := cmd.Begin(device, true); err != nil {
		return err
	}
	if err := record(cmd.Handle); err != nil {
		m.abandonUpload()
		return errors.Wrap(err, "recording immediate submit")
	}
	if err := cmd.End(device); err != nil {
		m.abandonUpload()
		return err
	}

	if err := checkResult("vkQueueSubmit", device.QueueSubmit(m.queue, cmd.Handle, m.upload.Fence.Handle)); err != nil {
		m.abandonUpload()
		return err
	}
	cmd.UpdateSubmitted()

	if err := m.upload.Fence.Wait(device, m.fenceTimeout); err != nil {
		// still submitted, retried by the next call
		return err
	}
	if err := m.finishSubmit(); err != nil {
		return err
	}

	m.metrics.RecordSubmit(hrtime.Since(start))
	return nil
}

// finishSubmit makes the upload context recordable again once its fence has
// signaled.
func (m *VulkanManager) finishSubmit() error {
	if err := m.upload.Fence.Reset(m.device); err != nil {
		return err
	}
	if err := checkResult("vkResetCommandPool", m.device.ResetCommandPool(m.upload.CommandPool)); err != nil {
		return err
	}
	m.upload.CommandBuffer.Reset()
	return nil
}

// abandonUpload drops whatever was recorded so the upload context can be used
// again.
func (m *VulkanManager) abandonUpload() {
	cmd := m.upload.CommandBuffer
	if cmd.State == CommandBufferStateRecording {
		m.device.EndCommandBuffer(cmd.Handle)
	}
	if res := m.device.ResetCommandPool(m.upload.CommandPool); res != vk.Success {
		core.LogWarn("resetting upload command pool: %s", ResultString(res))
	}
	cmd.Reset()
}

/**
 * @brief Copies data into a new device local buffer through a host visible
 * staging buffer.
 *
 * An empty payload returns an empty buffer without touching the GPU.
 */
func (m *VulkanManager) UploadToGPU(data []byte, usage vk.BufferUsageFlags) (AllocatedBuffer, error) {
	if _, err := m.Device(); err != nil {
		return AllocatedBuffer{}, err
	}
	size := uint64(len(data))
	if size == 0 {
		core.LogDebug("empty upload, no buffer created")
		return AllocatedBuffer{Usage: usage}, nil
	}

	staging, err := m.CreateBuffer(size,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return AllocatedBuffer{}, err
	}
	inFlight := false
	defer func() {
		if inFlight {
			m.deferDestroy(staging)
			return
		}
		m.DestroyBuffer(&staging)
	}()

	if err := m.MapMemory(staging, data); err != nil {
		return AllocatedBuffer{}, err
	}

	buffer, err := m.CreateBuffer(size,
		usage|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return AllocatedBuffer{}, err
	}

	err = m.ImmediateSubmit(func(cmd CommandBuffer) error {
		m.device.CmdCopyBuffer(cmd, staging.Buffer, buffer.Buffer, size)
		return nil
	})
	if err != nil {
		if errors.Is(err, core.ErrFenceTimeout) {
			inFlight = true
			m.deferDestroy(buffer)
		} else {
			m.DestroyBuffer(&buffer)
		}
		return AllocatedBuffer{}, err
	}

	m.metrics.Uploads.Add(1)
	m.metrics.UploadedBytes.Add(size)
	return buffer, nil
}

/**
 * @brief Uploads tightly packed pixels into a new sampled image and creates
 * a view for it. The texture is left in the shader read only layout. The
 * sampler is left to the caller.
 */
func (m *VulkanManager) UploadImage(pixels []byte, extent Extent, format vk.Format) (Texture, error) {
	device, err := m.Device()
	if err != nil {
		return Texture{}, err
	}
	if extent.Depth == 0 {
		extent.Depth = 1
	}
	if len(pixels) == 0 || extent.Width == 0 || extent.Height == 0 {
		return Texture{}, errors.Newf("cannot upload an empty image (%dx%d, %d bytes)", extent.Width, extent.Height, len(pixels))
	}
	size := uint64(len(pixels))

	staging, err := m.CreateBuffer(size,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return Texture{}, err
	}
	inFlight := false
	defer func() {
		if inFlight {
			m.deferDestroy(staging)
			return
		}
		m.DestroyBuffer(&staging)
	}()

	if err := m.MapMemory(staging, pixels); err != nil {
		return Texture{}, err
	}

	image, memory, res := device.CreateImage(ImageInfo{
		Format:     format,
		Extent:     extent,
		Usage:      vk.ImageUsageFlags(vk.ImageUsageSampledBit | vk.ImageUsageTransferDstBit),
		Properties: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
	})
	if err := checkResult("vkCreateImage", res); err != nil {
		return Texture{}, err
	}

	err = m.ImmediateSubmit(func(cmd CommandBuffer) error {
		device.CmdTransitionImage(cmd, image, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
		device.CmdCopyBufferToImage(cmd, staging.Buffer, image, extent)
		device.CmdTransitionImage(cmd, image, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
		return nil
	})
	if err != nil {
		if errors.Is(err, core.ErrFenceTimeout) {
			inFlight = true
			m.deletionQueue.Push(DeletionRecord{Kind: DeleteImage, Handle: uint64(image), Memory: memory})
		} else {
			device.DestroyImage(image, memory)
		}
		return Texture{}, err
	}

	view, res := device.CreateImageView(image, format)
	if err := checkResult("vkCreateImageView", res); err != nil {
		device.DestroyImage(image, memory)
		return Texture{}, err
	}

	m.metrics.Uploads.Add(1)
	m.metrics.UploadedBytes.Add(size)
	return Texture{
		Image:  image,
		Memory: memory,
		View:   view,
		Format: format,
		Extent: extent,
	}, nil
}
