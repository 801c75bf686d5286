package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/atlas/engine/core"
)

// DescriptorBuilder accumulates bindings and their writes, then resolves the
// layout through the cache and allocates one set for it.
//
//	set, layout, err := vulkan.Begin(cache, alloc).
//		BindBuffer(0, &camera, vk.DescriptorTypeUniformBuffer, vertexStage).
//		BindBuffer(1, &objects, vk.DescriptorTypeStorageBuffer, vertexStage).
//		Build()
type DescriptorBuilder struct {
	cache    *DescriptorLayoutCache
	alloc    *DescriptorAllocator
	bindings []LayoutBinding
	writes   []DescriptorWrite
	built    bool
}

func Begin(cache *DescriptorLayoutCache, alloc *DescriptorAllocator) *DescriptorBuilder {
	return &DescriptorBuilder{
		cache: cache,
		alloc: alloc,
	}
}

// BindBuffer adds a single buffer descriptor at binding.
func (b *DescriptorBuilder) BindBuffer(binding uint32, info *DescriptorBufferInfo, descriptorType vk.DescriptorType, stageFlags vk.ShaderStageFlags) *DescriptorBuilder {
	b.bindings = append(b.bindings, LayoutBinding{
		Binding:        binding,
		DescriptorType: descriptorType,
		Count:          1,
		StageFlags:     stageFlags,
	})
	b.writes = append(b.writes, DescriptorWrite{
		DstBinding:     binding,
		DescriptorType: descriptorType,
		BufferInfo:     info,
	})
	return b
}

// BindImage adds a single image descriptor at binding.
func (b *DescriptorBuilder) BindImage(binding uint32, info *DescriptorImageInfo, descriptorType vk.DescriptorType, stageFlags vk.ShaderStageFlags) *DescriptorBuilder {
	b.bindings = append(b.bindings, LayoutBinding{
		Binding:        binding,
		DescriptorType: descriptorType,
		Count:          1,
		StageFlags:     stageFlags,
	})
	b.writes = append(b.writes, DescriptorWrite{
		DstBinding:     binding,
		DescriptorType: descriptorType,
		ImageInfo:      info,
	})
	return b
}

// BuildLayout resolves the layout of the accumulated bindings without
// allocating a set.
func (b *DescriptorBuilder) BuildLayout() (DescriptorSetLayout, error) {
	if err := core.AssertInitialized(b.cache != nil, "DescriptorBuilder has no layout cache"); err != nil {
		return NullHandle, err
	}
	return b.cache.CreateDescriptorLayout(b.bindings)
}

/**
 * @brief Resolves the layout, allocates a set and writes every accumulated
 * descriptor into it with a single update call.
 *
 * When the set cannot be allocated nothing is written and the returned error
 * is marked with core.ErrDescriptorAllocation. The pending writes are
 * discarded either way, so a builder builds exactly once.
 */
func (b *DescriptorBuilder) Build() (DescriptorSet, DescriptorSetLayout, error) {
	if b.built {
		return NullHandle, NullHandle, errors.AssertionFailedf("DescriptorBuilder already built")
	}
	b.built = true
	writes := b.writes
	b.writes = nil

	if err := core.AssertInitialized(b.alloc != nil, "DescriptorBuilder has no allocator"); err != nil {
		return NullHandle, NullHandle, err
	}
	layout, err := b.BuildLayout()
	if err != nil {
		return NullHandle, NullHandle, err
	}

	set, ok := b.alloc.Allocate(layout)
	if !ok {
		err := errors.Mark(errors.Newf("no descriptor set for layout %#x", uint64(layout)), core.ErrDescriptorAllocation)
		return NullHandle, layout, err
	}

	for i := range writes {
		writes[i].DstSet = set
	}
	b.alloc.device.UpdateDescriptorSets(writes)

	return set, layout, nil
}
