package vulkan

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func newTestManager(t *testing.T) (*VulkanManager, *fakeDevice) {
	t.Helper()
	dev := newFakeDevice()
	m := NewVulkanManager(nil)
	if err := m.Init(dev); err != nil {
		t.Fatal(err)
	}
	return m, dev
}

func TestQueueDestroyBufferMovesOnce(t *testing.T) {
	m, dev := newTestManager(t)
	am := NewAssetManager()

	ref := am.RegisterBuffer(AllocatedBuffer{Buffer: 10, Memory: 11, Size: 64})
	if c := am.Counts(); c.LiveBuffers != 1 || c.PendingBuffers != 0 {
		t.Fatalf("after register: %+v", c)
	}

	if !am.QueueDestroyBuffer(ref) {
		t.Fatal("first QueueDestroyBuffer failed")
	}
	if c := am.Counts(); c.LiveBuffers != 0 || c.PendingBuffers != 1 {
		t.Fatalf("after queue: %+v", c)
	}

	if am.QueueDestroyBuffer(ref) {
		t.Error("second QueueDestroyBuffer reported success")
	}
	if c := am.Counts(); c.LiveBuffers != 0 || c.PendingBuffers != 1 {
		t.Fatalf("after second queue: %+v", c)
	}

	// still resolvable until destroyed
	if b, ok := am.Buffer(ref); !ok || b.Buffer != 10 {
		t.Errorf("pending buffer resolved to %v, %v", b, ok)
	}

	if err := am.DestroyQueued(m); err != nil {
		t.Fatal(err)
	}
	if got := dev.calls["DestroyBuffer"]; got != 1 {
		t.Errorf("buffers destroyed = %d, want 1", got)
	}
	if _, ok := am.Buffer(ref); ok {
		t.Error("destroyed buffer still resolves")
	}
	if c := am.Counts(); c != (AssetCounts{}) {
		t.Errorf("after destroy: %+v", c)
	}
}

func TestDeregisterKeepsGPUObject(t *testing.T) {
	m, dev := newTestManager(t)
	am := NewAssetManager()

	ref := am.RegisterTexture(Texture{Image: 1, Memory: 2, View: 3, Sampler: 4})
	if !am.DeregisterTexture(ref) {
		t.Fatal("DeregisterTexture failed")
	}
	if am.DeregisterTexture(ref) {
		t.Error("second DeregisterTexture reported success")
	}
	if am.QueueDestroyTexture(ref) {
		t.Error("deregistered texture could be queued")
	}
	if err := am.Cleanup(m); err != nil {
		t.Fatal(err)
	}
	if len(dev.destroyed) != 0 {
		t.Errorf("deregistered texture was destroyed: %v", dev.destroyed)
	}
}

func TestDeregisterPendingAssetFails(t *testing.T) {
	am := NewAssetManager()
	ref := am.RegisterShader(Shader{Pipeline: 1})
	am.QueueDestroyShader(ref)
	if am.DeregisterShader(ref) {
		t.Error("pending shader was deregistered")
	}
	if c := am.Counts(); c.PendingShaders != 1 {
		t.Errorf("counts = %+v", c)
	}
}

func TestUnknownRefsAreIgnored(t *testing.T) {
	am := NewAssetManager()
	if am.QueueDestroyShader(ShaderRef{}) || am.QueueDestroyTexture(TextureRef{}) || am.QueueDestroyBuffer(BufferRef{}) {
		t.Error("zero ref queued for destruction")
	}
	if am.DeregisterShader(ShaderRef{}) || am.DeregisterTexture(TextureRef{}) || am.DeregisterBuffer(BufferRef{}) {
		t.Error("zero ref deregistered")
	}
	if _, ok := am.Shader(ShaderRef{}); ok {
		t.Error("zero ref resolved")
	}
}

func TestDestroyQueuedKeepsQueueOrder(t *testing.T) {
	m, dev := newTestManager(t)
	am := NewAssetManager()

	a := am.RegisterBuffer(AllocatedBuffer{Buffer: 1})
	b := am.RegisterBuffer(AllocatedBuffer{Buffer: 2})
	c := am.RegisterBuffer(AllocatedBuffer{Buffer: 3})
	am.QueueDestroyBuffer(c)
	am.QueueDestroyBuffer(a)
	am.QueueDestroyBuffer(b)

	if err := am.DestroyQueued(m); err != nil {
		t.Fatal(err)
	}
	want := []string{"Buffer 0x3", "Buffer 0x1", "Buffer 0x2"}
	for i, w := range want {
		if dev.destroyed[i] != w {
			t.Fatalf("destroyed = %v, want %v", dev.destroyed, want)
		}
	}
}

func TestAssetCleanupDestroysEverything(t *testing.T) {
	m, dev := newTestManager(t)
	am := NewAssetManager()

	am.RegisterShader(Shader{Module: 1, Pipeline: 2, Layout: 3})
	tex := am.RegisterTexture(Texture{Image: 4, Memory: 5, View: 6, Sampler: 7})
	am.RegisterBuffer(AllocatedBuffer{Buffer: 8, Memory: 9})
	am.QueueDestroyTexture(tex)

	if err := am.Cleanup(m); err != nil {
		t.Fatal(err)
	}
	for _, call := range []string{"DestroyPipeline", "DestroyShaderModule", "DestroySampler", "DestroyImageView", "DestroyImage", "DestroyBuffer"} {
		if dev.calls[call] != 1 {
			t.Errorf("%s called %d times, want 1", call, dev.calls[call])
		}
	}
	// pipeline layouts belong to the pipeline layout cache
	if dev.calls["DestroyPipelineLayout"] != 0 {
		t.Error("shader cleanup destroyed its pipeline layout")
	}
	if c := am.Counts(); c != (AssetCounts{}) {
		t.Errorf("after cleanup: %+v", c)
	}
	if got := m.Stats().AssetsDestroyed; got != 3 {
		t.Errorf("assets destroyed = %d, want 3", got)
	}
}

func TestAssetManagerNeedsInitializedManager(t *testing.T) {
	am := NewAssetManager()
	am.RegisterBuffer(AllocatedBuffer{Buffer: 1})
	err := am.Cleanup(NewVulkanManager(nil))
	if !errors.IsAssertionFailure(err) {
		t.Errorf("Cleanup() = %v, want an assertion failure", err)
	}
	if c := am.Counts(); c.LiveBuffers != 1 {
		t.Error("assets dropped by a failed cleanup")
	}
}
