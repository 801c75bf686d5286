package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

type fakePool struct {
	maxSets uint32
	used    uint32
	resets  int
}

type fakeCopy struct {
	src, dst Buffer
	size     uint64
}

// fakeDevice is an in-memory Device. Every handle it hands out is unique, it
// records destroy calls in order and pools fail with ErrorOutOfPoolMemory
// once maxSets sets were allocated from them.
type fakeDevice struct {
	next  uint64
	calls map[string]int
	// destroy calls in the order they happened, e.g. "fence 0x3"
	destroyed []string
	live      map[uint64]string

	pools        map[DescriptorPool]*fakePool
	poolSizes    []vk.DescriptorPoolSize
	allocResults []vk.Result // consumed before the pool simulation
	layouts      map[DescriptorSetLayout][]LayoutBinding
	updates      [][]DescriptorWrite

	memory   map[DeviceMemory][]byte
	buffers  map[Buffer]uint64
	copies   []fakeCopy
	commands []string

	waitResult  vk.Result
	beforeWait  func()
	submitCount int
}

var _ Device = (*fakeDevice)(nil)

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		calls:      make(map[string]int),
		live:       make(map[uint64]string),
		pools:      make(map[DescriptorPool]*fakePool),
		layouts:    make(map[DescriptorSetLayout][]LayoutBinding),
		memory:     make(map[DeviceMemory][]byte),
		buffers:    make(map[Buffer]uint64),
		waitResult: vk.Success,
	}
}

func (f *fakeDevice) handle(kind string) uint64 {
	f.next++
	f.live[f.next] = kind
	return f.next
}

func (f *fakeDevice) destroy(kind string, h uint64) {
	f.calls["Destroy"+kind]++
	if h == NullHandle {
		return
	}
	f.destroyed = append(f.destroyed, fmt.Sprintf("%s %#x", kind, h))
	delete(f.live, h)
}

func (f *fakeDevice) liveCount(kind string) int {
	n := 0
	for _, k := range f.live {
		if k == kind {
			n++
		}
	}
	return n
}

func (f *fakeDevice) CreateDescriptorPool(maxSets uint32, sizes []vk.DescriptorPoolSize) (DescriptorPool, vk.Result) {
	f.calls["CreateDescriptorPool"]++
	p := DescriptorPool(f.handle("DescriptorPool"))
	f.pools[p] = &fakePool{maxSets: maxSets}
	f.poolSizes = sizes
	return p, vk.Success
}

func (f *fakeDevice) ResetDescriptorPool(pool DescriptorPool) vk.Result {
	f.calls["ResetDescriptorPool"]++
	if p, ok := f.pools[pool]; ok {
		p.used = 0
		p.resets++
	}
	return vk.Success
}

func (f *fakeDevice) DestroyDescriptorPool(pool DescriptorPool) {
	f.destroy("DescriptorPool", uint64(pool))
	delete(f.pools, pool)
}

func (f *fakeDevice) AllocateDescriptorSet(pool DescriptorPool, layout DescriptorSetLayout) (DescriptorSet, vk.Result) {
	f.calls["AllocateDescriptorSet"]++
	if len(f.allocResults) > 0 {
		res := f.allocResults[0]
		f.allocResults = f.allocResults[1:]
		if res != vk.Success {
			return NullHandle, res
		}
	}
	p, ok := f.pools[pool]
	if !ok {
		return NullHandle, vk.ErrorUnknown
	}
	if p.used >= p.maxSets {
		return NullHandle, vk.ErrorOutOfPoolMemory
	}
	p.used++
	return DescriptorSet(f.handle("DescriptorSet")), vk.Success
}

func (f *fakeDevice) UpdateDescriptorSets(writes []DescriptorWrite) {
	f.calls["UpdateDescriptorSets"]++
	f.updates = append(f.updates, append([]DescriptorWrite(nil), writes...))
}

func (f *fakeDevice) CreateDescriptorSetLayout(bindings []LayoutBinding) (DescriptorSetLayout, vk.Result) {
	f.calls["CreateDescriptorSetLayout"]++
	l := DescriptorSetLayout(f.handle("DescriptorSetLayout"))
	f.layouts[l] = append([]LayoutBinding(nil), bindings...)
	return l, vk.Success
}

func (f *fakeDevice) DestroyDescriptorSetLayout(layout DescriptorSetLayout) {
	f.destroy("DescriptorSetLayout", uint64(layout))
}

func (f *fakeDevice) CreatePipelineLayout(setLayouts []DescriptorSetLayout, pushConstants []PushConstantRange) (PipelineLayout, vk.Result) {
	f.calls["CreatePipelineLayout"]++
	return PipelineLayout(f.handle("PipelineLayout")), vk.Success
}

func (f *fakeDevice) DestroyPipelineLayout(layout PipelineLayout) {
	f.destroy("PipelineLayout", uint64(layout))
}

func (f *fakeDevice) DestroyPipeline(pipeline Pipeline) {
	f.destroy("Pipeline", uint64(pipeline))
}

func (f *fakeDevice) DestroyShaderModule(module ShaderModule) {
	f.destroy("ShaderModule", uint64(module))
}

func (f *fakeDevice) CreateCommandPool(queueFamilyIndex uint32) (CommandPool, vk.Result) {
	f.calls["CreateCommandPool"]++
	return CommandPool(f.handle("CommandPool")), vk.Success
}

func (f *fakeDevice) ResetCommandPool(pool CommandPool) vk.Result {
	f.calls["ResetCommandPool"]++
	return vk.Success
}

func (f *fakeDevice) DestroyCommandPool(pool CommandPool) {
	f.destroy("CommandPool", uint64(pool))
}

func (f *fakeDevice) AllocateCommandBuffer(pool CommandPool) (CommandBuffer, vk.Result) {
	f.calls["AllocateCommandBuffer"]++
	h := f.handle("CommandBuffer")
	// freed together with the pool
	delete(f.live, h)
	return CommandBuffer(h), vk.Success
}

func (f *fakeDevice) BeginCommandBuffer(cmd CommandBuffer, oneTimeSubmit bool) vk.Result {
	f.calls["BeginCommandBuffer"]++
	f.commands = nil
	return vk.Success
}

func (f *fakeDevice) EndCommandBuffer(cmd CommandBuffer) vk.Result {
	f.calls["EndCommandBuffer"]++
	return vk.Success
}

func (f *fakeDevice) CmdCopyBuffer(cmd CommandBuffer, src, dst Buffer, size uint64) {
	f.calls["CmdCopyBuffer"]++
	f.commands = append(f.commands, "copy buffer")
	f.copies = append(f.copies, fakeCopy{src: src, dst: dst, size: size})
}

func (f *fakeDevice) CmdCopyBufferToImage(cmd CommandBuffer, src Buffer, dst Image, extent Extent) {
	f.calls["CmdCopyBufferToImage"]++
	f.commands = append(f.commands, "copy buffer to image")
}

func (f *fakeDevice) CmdTransitionImage(cmd CommandBuffer, image Image, from, to vk.ImageLayout) {
	f.calls["CmdTransitionImage"]++
	f.commands = append(f.commands, fmt.Sprintf("transition %d->%d", from, to))
}

func (f *fakeDevice) QueueSubmit(queue Queue, cmd CommandBuffer, fence Fence) vk.Result {
	f.calls["QueueSubmit"]++
	f.submitCount++
	// the GPU runs the copies right away
	for _, c := range f.copies {
		if src, ok := f.memory[DeviceMemory(f.buffers[c.src])]; ok {
			f.memory[DeviceMemory(f.buffers[c.dst])] = append([]byte(nil), src[:c.size]...)
		}
	}
	f.copies = nil
	return vk.Success
}

func (f *fakeDevice) CreateFence(signaled bool) (Fence, vk.Result) {
	f.calls["CreateFence"]++
	return Fence(f.handle("Fence")), vk.Success
}

func (f *fakeDevice) WaitForFence(fence Fence, timeoutNs uint64) vk.Result {
	f.calls["WaitForFence"]++
	if f.beforeWait != nil {
		f.beforeWait()
	}
	return f.waitResult
}

func (f *fakeDevice) ResetFence(fence Fence) vk.Result {
	f.calls["ResetFence"]++
	return vk.Success
}

func (f *fakeDevice) DestroyFence(fence Fence) {
	f.destroy("Fence", uint64(fence))
}

func (f *fakeDevice) CreateBuffer(size uint64, usage vk.BufferUsageFlags, properties vk.MemoryPropertyFlags) (Buffer, DeviceMemory, vk.Result) {
	f.calls["CreateBuffer"]++
	b := Buffer(f.handle("Buffer"))
	m := DeviceMemory(f.handle("DeviceMemory"))
	f.buffers[b] = uint64(m)
	f.memory[m] = make([]byte, size)
	return b, m, vk.Success
}

func (f *fakeDevice) WriteMemory(memory DeviceMemory, data []byte) vk.Result {
	f.calls["WriteMemory"]++
	copy(f.memory[memory], data)
	return vk.Success
}

func (f *fakeDevice) DestroyBuffer(buffer Buffer, memory DeviceMemory) {
	f.destroy("Buffer", uint64(buffer))
	f.destroy("DeviceMemory", uint64(memory))
}

func (f *fakeDevice) CreateImage(info ImageInfo) (Image, DeviceMemory, vk.Result) {
	f.calls["CreateImage"]++
	return Image(f.handle("Image")), DeviceMemory(f.handle("DeviceMemory")), vk.Success
}

func (f *fakeDevice) CreateImageView(image Image, format vk.Format) (ImageView, vk.Result) {
	f.calls["CreateImageView"]++
	return ImageView(f.handle("ImageView")), vk.Success
}

func (f *fakeDevice) DestroyImageView(view ImageView) {
	f.destroy("ImageView", uint64(view))
}

func (f *fakeDevice) DestroyImage(image Image, memory DeviceMemory) {
	f.destroy("Image", uint64(image))
	f.destroy("DeviceMemory", uint64(memory))
}

func (f *fakeDevice) DestroySampler(sampler Sampler) {
	f.destroy("Sampler", uint64(sampler))
}

func (f *fakeDevice) WaitIdle() vk.Result {
	f.calls["WaitIdle"]++
	return vk.Success
}
