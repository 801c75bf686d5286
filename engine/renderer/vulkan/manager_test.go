package vulkan

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/atlas/engine/config"
	"github.com/spaghettifunk/atlas/engine/core"
)

func TestAccessorsBeforeInit(t *testing.T) {
	m := NewVulkanManager(nil)

	checks := map[string]func() error{
		"Device": func() error { _, err := m.Device(); return err },
		"DescriptorAllocator": func() error {
			_, err := m.DescriptorAllocator()
			return err
		},
		"DescriptorLayoutCache": func() error {
			_, err := m.DescriptorLayoutCache()
			return err
		},
		"PipelineLayoutCache": func() error {
			_, err := m.PipelineLayoutCache()
			return err
		},
		"Cleanup":            m.Cleanup,
		"InitCommands":       func() error { return m.InitCommands(testQueue, 0) },
		"InitSyncStructures": m.InitSyncStructures,
		"UploadToGPU": func() error {
			_, err := m.UploadToGPU([]byte{1}, 0)
			return err
		},
	}
	for name, call := range checks {
		t.Run(name, func(t *testing.T) {
			err := call()
			if !errors.IsAssertionFailure(err) {
				t.Fatalf("got %v, want an assertion failure", err)
			}
			if !errors.Is(err, core.ErrNotInitialized) {
				t.Errorf("got %v, want ErrNotInitialized", err)
			}
		})
	}
}

func TestInitRejectsNilDevice(t *testing.T) {
	m := NewVulkanManager(nil)
	if err := m.Init(nil); !errors.Is(err, core.ErrNotInitialized) {
		t.Errorf("Init(nil) = %v", err)
	}
}

func TestInitRejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.PoolSizes = []config.PoolSize{{Type: "not_a_descriptor", Multiplier: 1}}
	if err := NewVulkanManager(cfg).Init(newFakeDevice()); err == nil {
		t.Error("unknown descriptor type accepted")
	}

	cfg = config.Default()
	cfg.FenceTimeout = "soon"
	if err := NewVulkanManager(cfg).Init(newFakeDevice()); err == nil {
		t.Error("bad fence timeout accepted")
	}
}

func TestInitAppliesConfig(t *testing.T) {
	cfg := config.Default()
	cfg.SetsPerPool = 8
	cfg.PoolSizes = []config.PoolSize{{Type: "uniform_buffer", Multiplier: 2}}
	cfg.FenceTimeout = "250ms"

	m := NewVulkanManager(cfg)
	if err := m.Init(newFakeDevice()); err != nil {
		t.Fatal(err)
	}
	if m.fenceTimeout != 250_000_000 {
		t.Errorf("fence timeout = %d", m.fenceTimeout)
	}
	alloc, err := m.DescriptorAllocator()
	if err != nil {
		t.Fatal(err)
	}
	if alloc.SetsPerPool() != 8 {
		t.Errorf("sets per pool = %d, want 8", alloc.SetsPerPool())
	}
}

func TestDefaultFenceTimeoutIsInfinite(t *testing.T) {
	m, _ := newTestManager(t)
	if m.fenceTimeout != InfiniteFenceTimeout {
		t.Errorf("fence timeout = %d, want infinite", m.fenceTimeout)
	}
}

func TestCleanupReleasesEverything(t *testing.T) {
	m, dev := newUploadManager(t, nil)

	ubo := LayoutBinding{Binding: 0, DescriptorType: vk.DescriptorTypeUniformBuffer, Count: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit)}
	tex := LayoutBinding{Binding: 1, DescriptorType: vk.DescriptorTypeCombinedImageSampler, Count: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageFragmentBit)}

	cache, _ := m.DescriptorLayoutCache()
	layout, err := cache.CreateDescriptorLayout([]LayoutBinding{ubo, tex})
	if err != nil {
		t.Fatal(err)
	}
	plc, _ := m.PipelineLayoutCache()
	if _, err := plc.CreatePipelineLayout([]DescriptorSetLayout{layout}, nil); err != nil {
		t.Fatal(err)
	}
	alloc, _ := m.DescriptorAllocator()
	if _, ok := alloc.Allocate(layout); !ok {
		t.Fatal("allocation failed")
	}
	buf, err := m.UploadToGPU([]byte{1, 2, 3}, 0)
	if err != nil {
		t.Fatal(err)
	}
	m.DeleteFunc(DeletionRecord{Kind: DeleteBuffer, Handle: uint64(buf.Buffer), Memory: buf.Memory})

	if err := m.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if dev.calls["WaitIdle"] != 1 {
		t.Error("Cleanup did not wait for the device")
	}
	for _, kind := range []string{"DescriptorPool", "DescriptorSetLayout", "PipelineLayout", "Buffer", "DeviceMemory", "Fence", "CommandPool"} {
		if n := dev.liveCount(kind); n != 0 {
			t.Errorf("%d %s objects still alive", n, kind)
		}
	}
	// the deferred buffer goes before the upload context
	first := dev.destroyed[0]
	if first != "Buffer "+hex(uint64(buf.Buffer)) {
		t.Errorf("first destroyed = %s, destroyed = %v", first, dev.destroyed)
	}
	if len(m.PendingDeletions()) != 0 {
		t.Error("deletion queue not empty after Cleanup")
	}
	if alloc.UsedPoolCount() != 0 || alloc.FreePoolCount() != 0 {
		t.Error("allocator still owns pools")
	}
}

func TestNewDescriptorBuilderUsesManagerState(t *testing.T) {
	m, dev := newTestManager(t)
	info := DescriptorBufferInfo{Buffer: 1, Range: 16}

	set, layout, err := m.NewDescriptorBuilder().
		BindBuffer(0, &info, vk.DescriptorTypeUniformBuffer, vk.ShaderStageFlags(vk.ShaderStageVertexBit)).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	if set == NullHandle || layout == NullHandle {
		t.Fatalf("Build() = %#x, %#x", set, layout)
	}
	cache, _ := m.DescriptorLayoutCache()
	if cache.Len() != 1 {
		t.Errorf("layout cache holds %d layouts, want 1", cache.Len())
	}
	if len(dev.updates) != 1 {
		t.Errorf("descriptor updates = %d, want 1", len(dev.updates))
	}
	s := m.Stats()
	if s.LayoutCacheMiss != 1 || s.PoolsCreated != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func hex(v uint64) string {
	return fmt.Sprintf("%#x", v)
}
