package vulkan

import (
	"golang.org/x/sync/semaphore"

	"github.com/spaghettifunk/atlas/engine/config"
	"github.com/spaghettifunk/atlas/engine/core"
)

/**
 * @brief Owns the device level resources shared by the renderer: the
 * descriptor allocator and layout caches, the upload context and the
 * deletion queue that tears them down.
 *
 * A manager is built with NewVulkanManager, bound to a device with Init and
 * released with Cleanup. It is driven from a single goroutine.
 */
type VulkanManager struct {
	cfg *config.RendererConfig

	device           Device
	queue            Queue
	queueFamilyIndex uint32

	upload       UploadContext
	uploadGuard  *semaphore.Weighted
	fenceTimeout uint64

	deletionQueue       DeletionQueue
	descriptorAllocator *DescriptorAllocator
	layoutCache         *DescriptorLayoutCache
	pipelineLayoutCache *PipelineLayoutCache

	metrics *core.ResourceMetrics
}

func NewVulkanManager(cfg *config.RendererConfig) *VulkanManager {
	if cfg == nil {
		cfg = config.Default()
	}
	return &VulkanManager{
		cfg:          cfg,
		uploadGuard:  semaphore.NewWeighted(1),
		fenceTimeout: InfiniteFenceTimeout,
		metrics:      &core.ResourceMetrics{},
	}
}

// Init binds the manager to device and creates the descriptor allocator and
// the layout caches.
func (m *VulkanManager) Init(device Device) error {
	if err := core.AssertInitialized(device != nil, "VulkanManager.Init called without a device"); err != nil {
		return err
	}
	if err := m.cfg.Validate(); err != nil {
		return err
	}
	sizes, err := PoolSizesFromConfig(m.cfg.PoolSizes)
	if err != nil {
		return err
	}
	timeout, err := m.cfg.FenceTimeoutDuration()
	if err != nil {
		return err
	}

	m.device = device
	m.fenceTimeout = fenceTimeoutNs(timeout)

	m.descriptorAllocator = NewDescriptorAllocator(device, sizes)
	m.descriptorAllocator.SetSetsPerPool(m.cfg.SetsPerPool)
	m.descriptorAllocator.metrics = m.metrics

	m.layoutCache = NewDescriptorLayoutCache(device)
	m.layoutCache.metrics = m.metrics

	m.pipelineLayoutCache = NewPipelineLayoutCache(device)

	core.LogInfo("Vulkan resource manager initialized (%d sets per pool, %d pool sizes)", m.descriptorAllocator.SetsPerPool(), len(sizes))
	return nil
}

func (m *VulkanManager) Device() (Device, error) {
	if err := core.AssertInitialized(m.device != nil, "ResourceManager not initialized"); err != nil {
		return nil, err
	}
	return m.device, nil
}

func (m *VulkanManager) DescriptorAllocator() (*DescriptorAllocator, error) {
	if err := core.AssertInitialized(m.device != nil, "ResourceManager not initialized"); err != nil {
		return nil, err
	}
	return m.descriptorAllocator, nil
}

func (m *VulkanManager) DescriptorLayoutCache() (*DescriptorLayoutCache, error) {
	if err := core.AssertInitialized(m.device != nil, "ResourceManager not initialized"); err != nil {
		return nil, err
	}
	return m.layoutCache, nil
}

func (m *VulkanManager) PipelineLayoutCache() (*PipelineLayoutCache, error) {
	if err := core.AssertInitialized(m.device != nil, "ResourceManager not initialized"); err != nil {
		return nil, err
	}
	return m.pipelineLayoutCache, nil
}

// NewDescriptorBuilder starts a builder on the manager's cache and allocator.
func (m *VulkanManager) NewDescriptorBuilder() *DescriptorBuilder {
	return Begin(m.layoutCache, m.descriptorAllocator)
}

// DeleteFunc defers the destruction of a resource created outside the
// manager until Cleanup.
func (m *VulkanManager) DeleteFunc(record DeletionRecord) {
	m.deletionQueue.Push(record)
}

// PendingDeletions returns the deferred records in registration order.
func (m *VulkanManager) PendingDeletions() []DeletionRecord {
	return m.deletionQueue.Records()
}

func (m *VulkanManager) Stats() core.MetricsSnapshot {
	return m.metrics.Snapshot()
}

// Cleanup waits for the device to go idle, flushes the deletion queue and
// destroys the caches and the descriptor pools.
func (m *VulkanManager) Cleanup() error {
	if err := core.AssertInitialized(m.device != nil, "ResourceManager not initialized"); err != nil {
		return err
	}
	if err := checkResult("vkDeviceWaitIdle", m.device.WaitIdle()); err != nil {
		core.LogWarn("cleaning up without an idle device")
	}

	m.deletionQueue.Flush(m.device)
	m.upload = UploadContext{}
	m.queue = NullHandle

	if err := m.layoutCache.Cleanup(); err != nil {
		return err
	}
	if err := m.descriptorAllocator.Cleanup(); err != nil {
		return err
	}
	if err := m.pipelineLayoutCache.Cleanup(); err != nil {
		return err
	}
	core.LogInfo("Vulkan resource manager cleaned up")
	return nil
}
