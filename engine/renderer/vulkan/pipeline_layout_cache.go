package vulkan

import (
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/atlas/engine/core"
)

// PipelineLayoutInfo is the shape of a pipeline layout. Set layout order is
// significant.
type PipelineLayoutInfo struct {
	SetLayouts    []DescriptorSetLayout
	PushConstants []PushConstantRange
}

func (i PipelineLayoutInfo) Equal(other PipelineLayoutInfo) bool {
	return slices.Equal(i.SetLayouts, other.SetLayouts) && slices.Equal(i.PushConstants, other.PushConstants)
}

func (i PipelineLayoutInfo) Hash() uint64 {
	h := uint64(len(i.SetLayouts))<<32 | uint64(len(i.PushConstants))
	mix := func(v uint64) {
		h ^= v + 0x9e3779b97f4a7c15 + (h << 6) + (h >> 2)
	}
	for _, l := range i.SetLayouts {
		mix(uint64(l))
	}
	for _, pc := range i.PushConstants {
		mix(uint64(pc.StageFlags) | uint64(pc.Offset)<<16 | uint64(pc.Size)<<40)
	}
	return h
}

type pipelineLayoutEntry struct {
	info   PipelineLayoutInfo
	layout PipelineLayout
}

// PipelineLayoutCache deduplicates pipeline layouts the same way the
// descriptor layout cache deduplicates set layouts.
type PipelineLayoutCache struct {
	device Device
	cache  map[uint64][]pipelineLayoutEntry
	count  int
}

func NewPipelineLayoutCache(device Device) *PipelineLayoutCache {
	return &PipelineLayoutCache{
		device: device,
		cache:  make(map[uint64][]pipelineLayoutEntry),
	}
}

func (c *PipelineLayoutCache) CreatePipelineLayout(setLayouts []DescriptorSetLayout, pushConstants []PushConstantRange) (PipelineLayout, error) {
	if err := core.AssertInitialized(c.device != nil, "PipelineLayoutCache is not initialized"); err != nil {
		return NullHandle, err
	}

	info := PipelineLayoutInfo{
		SetLayouts:    slices.Clone(setLayouts),
		PushConstants: slices.Clone(pushConstants),
	}
	h := info.Hash()
	for _, e := range c.cache[h] {
		if e.info.Equal(info) {
			return e.layout, nil
		}
	}

	layout, res := c.device.CreatePipelineLayout(info.SetLayouts, info.PushConstants)
	if err := checkResult("vkCreatePipelineLayout", res); err != nil {
		return NullHandle, err
	}
	c.cache[h] = append(c.cache[h], pipelineLayoutEntry{info: info, layout: layout})
	c.count++
	return layout, nil
}

func (c *PipelineLayoutCache) Len() int {
	return c.count
}

func (c *PipelineLayoutCache) Cleanup() error {
	if err := core.AssertInitialized(c.device != nil, "PipelineLayoutCache is not initialized"); err != nil {
		return err
	}
	for _, bucket := range c.cache {
		for _, e := range bucket {
			c.device.DestroyPipelineLayout(e.layout)
		}
	}
	clear(c.cache)
	c.count = 0
	return nil
}
