package vulkan

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/atlas/engine/config"
	"github.com/spaghettifunk/atlas/engine/core"
)

// PoolSize reserves Multiplier descriptors of Type for every set a pool can
// hold.
type PoolSize struct {
	Type       vk.DescriptorType
	Multiplier float32
}

type PoolSizes []PoolSize

// DefaultPoolSizes is the general purpose distribution used by the renderer.
func DefaultPoolSizes() PoolSizes {
	return PoolSizes{
		{Type: vk.DescriptorTypeSampler, Multiplier: 0.5},
		{Type: vk.DescriptorTypeCombinedImageSampler, Multiplier: 4},
		{Type: vk.DescriptorTypeSampledImage, Multiplier: 4},
		{Type: vk.DescriptorTypeStorageImage, Multiplier: 1},
		{Type: vk.DescriptorTypeUniformTexelBuffer, Multiplier: 1},
		{Type: vk.DescriptorTypeStorageTexelBuffer, Multiplier: 1},
		{Type: vk.DescriptorTypeUniformBuffer, Multiplier: 2},
		{Type: vk.DescriptorTypeStorageBuffer, Multiplier: 2},
		{Type: vk.DescriptorTypeUniformBufferDynamic, Multiplier: 1},
		{Type: vk.DescriptorTypeStorageBufferDynamic, Multiplier: 1},
		{Type: vk.DescriptorTypeInputAttachment, Multiplier: 0.5},
	}
}

var descriptorTypeNames = map[string]vk.DescriptorType{
	"sampler":                vk.DescriptorTypeSampler,
	"combined_image_sampler": vk.DescriptorTypeCombinedImageSampler,
	"sampled_image":          vk.DescriptorTypeSampledImage,
	"storage_image":          vk.DescriptorTypeStorageImage,
	"uniform_texel_buffer":   vk.DescriptorTypeUniformTexelBuffer,
	"storage_texel_buffer":   vk.DescriptorTypeStorageTexelBuffer,
	"uniform_buffer":         vk.DescriptorTypeUniformBuffer,
	"storage_buffer":         vk.DescriptorTypeStorageBuffer,
	"uniform_buffer_dynamic": vk.DescriptorTypeUniformBufferDynamic,
	"storage_buffer_dynamic": vk.DescriptorTypeStorageBufferDynamic,
	"input_attachment":       vk.DescriptorTypeInputAttachment,
}

// ParseDescriptorType maps a config name such as "uniform_buffer" to its
// descriptor type.
func ParseDescriptorType(name string) (vk.DescriptorType, error) {
	t, ok := descriptorTypeNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, errors.Newf("unknown descriptor type %q", name)
	}
	return t, nil
}

// PoolSizesFromConfig converts the config distribution.
func PoolSizesFromConfig(sizes []config.PoolSize) (PoolSizes, error) {
	if len(sizes) == 0 {
		return DefaultPoolSizes(), nil
	}
	out := make(PoolSizes, 0, len(sizes))
	for _, s := range sizes {
		t, err := ParseDescriptorType(s.Type)
		if err != nil {
			return nil, err
		}
		out = append(out, PoolSize{Type: t, Multiplier: s.Multiplier})
	}
	return out, nil
}

// DescriptorAllocator hands out descriptor sets from a growing list of fixed
// size pools. Pools are recycled with ResetPools and only destroyed by
// Cleanup.
type DescriptorAllocator struct {
	device      Device
	sizes       PoolSizes
	setsPerPool uint32
	metrics     *core.ResourceMetrics

	currentPool DescriptorPool
	usedPools   []DescriptorPool
	freePools   []DescriptorPool
}

func NewDescriptorAllocator(device Device, sizes PoolSizes) *DescriptorAllocator {
	if len(sizes) == 0 {
		sizes = DefaultPoolSizes()
	}
	return &DescriptorAllocator{
		device:      device,
		sizes:       sizes,
		setsPerPool: DefaultSetsPerPool,
		metrics:     &core.ResourceMetrics{},
	}
}

// SetSetsPerPool changes the capacity of pools created from now on.
func (a *DescriptorAllocator) SetSetsPerPool(n uint32) {
	if n == 0 {
		n = DefaultSetsPerPool
	}
	a.setsPerPool = n
}

func (a *DescriptorAllocator) SetsPerPool() uint32 {
	return a.setsPerPool
}

func (a *DescriptorAllocator) createPool() (DescriptorPool, error) {
	sizes := make([]vk.DescriptorPoolSize, 0, len(a.sizes))
	for _, sz := range a.sizes {
		sizes = append(sizes, vk.DescriptorPoolSize{
			Type:            sz.Type,
			DescriptorCount: uint32(sz.Multiplier * float32(a.setsPerPool)),
		})
	}
	pool, res := a.device.CreateDescriptorPool(a.setsPerPool, sizes)
	if err := checkResult("vkCreateDescriptorPool", res); err != nil {
		return NullHandle, err
	}
	a.metrics.PoolsCreated.Add(1)
	core.LogDebug("created descriptor pool %#x (max sets %d)", uint64(pool), a.setsPerPool)
	return pool, nil
}

// grabPool reuses the most recently freed pool, or creates a new one.
func (a *DescriptorAllocator) grabPool() (DescriptorPool, error) {
	if n := len(a.freePools); n > 0 {
		pool := a.freePools[n-1]
		a.freePools = a.freePools[:n-1]
		return pool, nil
	}
	return a.createPool()
}

/**
 * @brief Allocates one descriptor set of the given layout.
 *
 * An exhausted or fragmented pool is replaced by a fresh one and the
 * allocation is retried exactly once. Any other driver error fails
 * immediately.
 */
func (a *DescriptorAllocator) Allocate(layout DescriptorSetLayout) (DescriptorSet, bool) {
	if err := core.AssertInitialized(a.device != nil, "DescriptorAllocator is not initialized"); err != nil {
		return NullHandle, false
	}

	if a.currentPool == NullHandle {
		pool, err := a.grabPool()
		if err != nil {
			a.metrics.AllocFailures.Add(1)
			return NullHandle, false
		}
		a.currentPool = pool
		a.usedPools = append(a.usedPools, pool)
	}

	set, res := a.device.AllocateDescriptorSet(a.currentPool, layout)
	switch res {
	case vk.Success:
		return set, true
	case vk.ErrorFragmentedPool, vk.ErrorOutOfPoolMemory:
		// pool is full, move on to a fresh one
	default:
		a.allocationFailed(res, layout)
		return NullHandle, false
	}

	a.metrics.AllocRetries.Add(1)
	pool, err := a.grabPool()
	if err != nil {
		a.metrics.AllocFailures.Add(1)
		return NullHandle, false
	}
	a.currentPool = pool
	a.usedPools = append(a.usedPools, pool)

	set, res = a.device.AllocateDescriptorSet(a.currentPool, layout)
	if res == vk.Success {
		return set, true
	}
	a.allocationFailed(res, layout)
	return NullHandle, false
}

func (a *DescriptorAllocator) allocationFailed(res vk.Result, layout DescriptorSetLayout) {
	a.metrics.AllocFailures.Add(1)
	core.LogWarn("ERROR: %s", ResultString(res))
	core.LogWarn("Could not allocate descriptor set with layout: %#x", uint64(layout))
}

// ResetPools returns every used pool to the free list. Descriptor sets
// allocated before the reset are invalid afterwards.
func (a *DescriptorAllocator) ResetPools() {
	for _, p := range a.usedPools {
		if res := a.device.ResetDescriptorPool(p); res != vk.Success {
			core.LogWarn("resetting descriptor pool %#x: %s", uint64(p), ResultString(res))
		}
		a.freePools = append(a.freePools, p)
		a.metrics.PoolsReset.Add(1)
	}
	a.usedPools = a.usedPools[:0]
	a.currentPool = NullHandle
}

// Cleanup destroys every pool the allocator ever created.
func (a *DescriptorAllocator) Cleanup() error {
	if err := core.AssertInitialized(a.device != nil, "DescriptorAllocator is not initialized"); err != nil {
		return err
	}
	for _, p := range a.freePools {
		a.device.DestroyDescriptorPool(p)
		a.metrics.PoolsDestroyed.Add(1)
	}
	for _, p := range a.usedPools {
		a.device.DestroyDescriptorPool(p)
		a.metrics.PoolsDestroyed.Add(1)
	}
	a.freePools = nil
	a.usedPools = nil
	a.currentPool = NullHandle
	return nil
}

func (a *DescriptorAllocator) UsedPoolCount() int {
	return len(a.usedPools)
}

func (a *DescriptorAllocator) FreePoolCount() int {
	return len(a.freePools)
}

func (a *DescriptorAllocator) String() string {
	return fmt.Sprintf("DescriptorAllocator{used: %d, free: %d, current: %#x}", len(a.usedPools), len(a.freePools), uint64(a.currentPool))
}
