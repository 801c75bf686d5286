package vulkan

import (
	"math/rand"
	"testing"

	vk "github.com/goki/vulkan"
)

var (
	vertexStage   = vk.ShaderStageFlags(vk.ShaderStageVertexBit)
	fragmentStage = vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
)

func sampleBindings() []LayoutBinding {
	return []LayoutBinding{
		{Binding: 0, DescriptorType: vk.DescriptorTypeUniformBuffer, Count: 1, StageFlags: vertexStage},
		{Binding: 1, DescriptorType: vk.DescriptorTypeStorageBuffer, Count: 1, StageFlags: vertexStage},
		{Binding: 2, DescriptorType: vk.DescriptorTypeCombinedImageSampler, Count: 4, StageFlags: fragmentStage},
		{Binding: 5, DescriptorType: vk.DescriptorTypeUniformBufferDynamic, Count: 1, StageFlags: vertexStage | fragmentStage},
	}
}

func TestLayoutInfoCanonicalization(t *testing.T) {
	in := []LayoutBinding{
		{Binding: 3, DescriptorType: vk.DescriptorTypeSampler, Count: 1},
		{Binding: 1, DescriptorType: vk.DescriptorTypeUniformBuffer, Count: 1},
		{Binding: 2, DescriptorType: vk.DescriptorTypeStorageBuffer, Count: 1},
	}
	info := NewDescriptorLayoutInfo(in)
	for i, want := range []uint32{1, 2, 3} {
		if info.Bindings[i].Binding != want {
			t.Fatalf("binding %d = %d, want %d", i, info.Bindings[i].Binding, want)
		}
	}
	// the caller's slice is left alone
	if in[0].Binding != 3 {
		t.Error("input bindings were reordered in place")
	}
}

func TestLayoutCachePermutationsShareLayout(t *testing.T) {
	dev := newFakeDevice()
	cache := NewDescriptorLayoutCache(dev)

	first, err := cache.CreateDescriptorLayout(sampleBindings())
	if err != nil {
		t.Fatal(err)
	}

	r := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		perm := sampleBindings()
		r.Shuffle(len(perm), func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })

		got, err := cache.CreateDescriptorLayout(perm)
		if err != nil {
			t.Fatal(err)
		}
		if got != first {
			t.Fatalf("permutation %v got layout %#x, want %#x", perm, uint64(got), uint64(first))
		}
	}
	if got := dev.calls["CreateDescriptorSetLayout"]; got != 1 {
		t.Errorf("driver layouts created = %d, want 1", got)
	}
	if cache.Len() != 1 {
		t.Errorf("cache holds %d layouts, want 1", cache.Len())
	}
	// the driver sees the canonical order
	for i, b := range dev.layouts[first] {
		if b != sampleBindings()[i] {
			t.Errorf("driver binding %d = %+v, want %+v", i, b, sampleBindings()[i])
		}
	}
}

func TestLayoutCacheSingleFieldDifference(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *LayoutBinding)
	}{
		{"type", func(b *LayoutBinding) { b.DescriptorType = vk.DescriptorTypeStorageImage }},
		{"count", func(b *LayoutBinding) { b.Count = 2 }},
		{"stage flags", func(b *LayoutBinding) { b.StageFlags |= vk.ShaderStageFlags(vk.ShaderStageComputeBit) }},
		{"binding", func(b *LayoutBinding) { b.Binding = 9 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewDescriptorLayoutCache(newFakeDevice())
			base, err := cache.CreateDescriptorLayout(sampleBindings())
			if err != nil {
				t.Fatal(err)
			}
			for i := range sampleBindings() {
				changed := sampleBindings()
				tt.mutate(&changed[i])
				got, err := cache.CreateDescriptorLayout(changed)
				if err != nil {
					t.Fatal(err)
				}
				if got == base {
					t.Errorf("binding %d with a different %s reused layout %#x", i, tt.name, uint64(base))
				}
			}
		})
	}
}

func TestLayoutCacheHashCollisionsCompareFully(t *testing.T) {
	cache := NewDescriptorLayoutCache(newFakeDevice())
	a := []LayoutBinding{{Binding: 0, DescriptorType: vk.DescriptorTypeUniformBuffer, Count: 1}}
	b := []LayoutBinding{{Binding: 0, DescriptorType: vk.DescriptorTypeStorageBuffer, Count: 1}}

	// plant a's shape in b's bucket
	h := NewDescriptorLayoutInfo(b).Hash()
	cache.cache[h] = []layoutCacheEntry{{info: NewDescriptorLayoutInfo(a), layout: DescriptorSetLayout(999)}}

	got, err := cache.CreateDescriptorLayout(b)
	if err != nil {
		t.Fatal(err)
	}
	if got == DescriptorSetLayout(999) {
		t.Error("layout of a different shape returned on hash match")
	}
	if len(cache.cache[h]) != 2 {
		t.Errorf("bucket holds %d entries, want 2", len(cache.cache[h]))
	}
}

func TestLayoutCacheCleanup(t *testing.T) {
	dev := newFakeDevice()
	cache := NewDescriptorLayoutCache(dev)
	cache.CreateDescriptorLayout(sampleBindings())
	cache.CreateDescriptorLayout(sampleBindings()[:1])
	cache.CreateDescriptorLayout(nil)

	if err := cache.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if got := dev.calls["DestroyDescriptorSetLayout"]; got != 3 {
		t.Errorf("layouts destroyed = %d, want 3", got)
	}
	if cache.Len() != 0 {
		t.Errorf("cache still holds %d layouts", cache.Len())
	}
}

func TestPipelineLayoutCache(t *testing.T) {
	dev := newFakeDevice()
	cache := NewPipelineLayoutCache(dev)
	push := []PushConstantRange{{StageFlags: vertexStage, Offset: 0, Size: 64}}

	a, err := cache.CreatePipelineLayout([]DescriptorSetLayout{1, 2}, push)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := cache.CreatePipelineLayout([]DescriptorSetLayout{1, 2}, push)
	if a != b {
		t.Errorf("identical pipeline layouts differ: %#x, %#x", uint64(a), uint64(b))
	}
	c, _ := cache.CreatePipelineLayout([]DescriptorSetLayout{2, 1}, push)
	if c == a {
		t.Error("set layout order must be significant")
	}
	d, _ := cache.CreatePipelineLayout([]DescriptorSetLayout{1, 2}, []PushConstantRange{{StageFlags: vertexStage, Size: 128}})
	if d == a {
		t.Error("push constant size must be significant")
	}
	if cache.Len() != 3 {
		t.Errorf("cache holds %d layouts, want 3", cache.Len())
	}

	if err := cache.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if n := dev.liveCount("PipelineLayout"); n != 0 {
		t.Errorf("%d pipeline layouts still alive", n)
	}
}
