package vulkan

import (
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/atlas/engine/core"
)

// DescriptorLayoutInfo is the canonical shape of a descriptor set layout:
// its bindings ordered by binding index.
type DescriptorLayoutInfo struct {
	Bindings []LayoutBinding
}

// NewDescriptorLayoutInfo copies bindings and sorts the copy by binding index
// when they do not already arrive in strictly increasing order.
func NewDescriptorLayoutInfo(bindings []LayoutBinding) DescriptorLayoutInfo {
	info := DescriptorLayoutInfo{Bindings: slices.Clone(bindings)}

	sorted := true
	last := int64(-1)
	for _, b := range info.Bindings {
		if int64(b.Binding) > last {
			last = int64(b.Binding)
		} else {
			sorted = false
		}
	}
	if !sorted {
		slices.SortStableFunc(info.Bindings, func(a, b LayoutBinding) int {
			return int(a.Binding) - int(b.Binding)
		})
	}
	return info
}

func (i DescriptorLayoutInfo) Equal(other DescriptorLayoutInfo) bool {
	return slices.Equal(i.Bindings, other.Bindings)
}

// Hash folds every binding into a single value. Equal infos hash equally;
// the fold is order sensitive so it must only be applied to canonical infos.
func (i DescriptorLayoutInfo) Hash() uint64 {
	h := uint64(len(i.Bindings))
	for _, b := range i.Bindings {
		v := uint64(b.Binding) | uint64(b.DescriptorType)<<8 | uint64(b.Count)<<16 | uint64(b.StageFlags)<<24
		h ^= v + 0x9e3779b97f4a7c15 + (h << 6) + (h >> 2)
	}
	return h
}

type layoutCacheEntry struct {
	info   DescriptorLayoutInfo
	layout DescriptorSetLayout
}

// DescriptorLayoutCache keeps at most one driver layout per distinct
// binding shape.
type DescriptorLayoutCache struct {
	device  Device
	metrics *core.ResourceMetrics
	cache   map[uint64][]layoutCacheEntry
	count   int
}

func NewDescriptorLayoutCache(device Device) *DescriptorLayoutCache {
	return &DescriptorLayoutCache{
		device:  device,
		metrics: &core.ResourceMetrics{},
		cache:   make(map[uint64][]layoutCacheEntry),
	}
}

// CreateDescriptorLayout returns the cached layout for bindings, creating it
// on first use. Declaration order of the bindings does not matter.
func (c *DescriptorLayoutCache) CreateDescriptorLayout(bindings []LayoutBinding) (DescriptorSetLayout, error) {
	if err := core.AssertInitialized(c.device != nil, "DescriptorLayoutCache is not initialized"); err != nil {
		return NullHandle, err
	}

	info := NewDescriptorLayoutInfo(bindings)
	h := info.Hash()
	for _, e := range c.cache[h] {
		if e.info.Equal(info) {
			c.metrics.LayoutCacheHits.Add(1)
			return e.layout, nil
		}
	}

	layout, res := c.device.CreateDescriptorSetLayout(info.Bindings)
	if err := checkResult("vkCreateDescriptorSetLayout", res); err != nil {
		return NullHandle, err
	}
	c.cache[h] = append(c.cache[h], layoutCacheEntry{info: info, layout: layout})
	c.count++
	c.metrics.LayoutCacheMiss.Add(1)
	core.LogDebug("cached descriptor set layout %#x (%d bindings)", uint64(layout), len(info.Bindings))
	return layout, nil
}

// Len returns the number of distinct cached layouts.
func (c *DescriptorLayoutCache) Len() int {
	return c.count
}

// Cleanup destroys every cached layout.
func (c *DescriptorLayoutCache) Cleanup() error {
	if err := core.AssertInitialized(c.device != nil, "DescriptorLayoutCache is not initialized"); err != nil {
		return err
	}
	for _, bucket := range c.cache {
		for _, e := range bucket {
			c.device.DestroyDescriptorSetLayout(e.layout)
		}
	}
	clear(c.cache)
	c.count = 0
	return nil
}
