package vulkan

import (
	vk "github.com/goki/vulkan"
)

// Device is the set of driver entry points the resource layer needs. The
// native package implements it on top of goki/vulkan; tests use a fake.
//
// Methods mirror the Vulkan calls of the same name and return the raw
// vk.Result so callers can react to specific codes.
type Device interface {
	CreateDescriptorPool(maxSets uint32, sizes []vk.DescriptorPoolSize) (DescriptorPool, vk.Result)
	ResetDescriptorPool(pool DescriptorPool) vk.Result
	DestroyDescriptorPool(pool DescriptorPool)
	AllocateDescriptorSet(pool DescriptorPool, layout DescriptorSetLayout) (DescriptorSet, vk.Result)
	UpdateDescriptorSets(writes []DescriptorWrite)

	CreateDescriptorSetLayout(bindings []LayoutBinding) (DescriptorSetLayout, vk.Result)
	DestroyDescriptorSetLayout(layout DescriptorSetLayout)

	CreatePipelineLayout(setLayouts []DescriptorSetLayout, pushConstants []PushConstantRange) (PipelineLayout, vk.Result)
	DestroyPipelineLayout(layout PipelineLayout)
	DestroyPipeline(pipeline Pipeline)
	DestroyShaderModule(module ShaderModule)

	CreateCommandPool(queueFamilyIndex uint32) (CommandPool, vk.Result)
	ResetCommandPool(pool CommandPool) vk.Result
	DestroyCommandPool(pool CommandPool)
	AllocateCommandBuffer(pool CommandPool) (CommandBuffer, vk.Result)
	BeginCommandBuffer(cmd CommandBuffer, oneTimeSubmit bool) vk.Result
	EndCommandBuffer(cmd CommandBuffer) vk.Result
	CmdCopyBuffer(cmd CommandBuffer, src, dst Buffer, size uint64)
	CmdCopyBufferToImage(cmd CommandBuffer, src Buffer, dst Image, extent Extent)
	CmdTransitionImage(cmd CommandBuffer, image Image, from, to vk.ImageLayout)
	QueueSubmit(queue Queue, cmd CommandBuffer, fence Fence) vk.Result

	CreateFence(signaled bool) (Fence, vk.Result)
	WaitForFence(fence Fence, timeoutNs uint64) vk.Result
	ResetFence(fence Fence) vk.Result
	DestroyFence(fence Fence)

	CreateBuffer(size uint64, usage vk.BufferUsageFlags, properties vk.MemoryPropertyFlags) (Buffer, DeviceMemory, vk.Result)
	WriteMemory(memory DeviceMemory, data []byte) vk.Result
	DestroyBuffer(buffer Buffer, memory DeviceMemory)

	CreateImage(info ImageInfo) (Image, DeviceMemory, vk.Result)
	CreateImageView(image Image, format vk.Format) (ImageView, vk.Result)
	DestroyImageView(view ImageView)
	DestroyImage(image Image, memory DeviceMemory)
	DestroySampler(sampler Sampler)

	WaitIdle() vk.Result
}

// LayoutBinding is one slot of a descriptor set layout.
type LayoutBinding struct {
	Binding        uint32
	DescriptorType vk.DescriptorType
	Count          uint32
	StageFlags     vk.ShaderStageFlags
}

// DescriptorBufferInfo points a descriptor at a range of a buffer.
type DescriptorBufferInfo struct {
	Buffer Buffer
	Offset uint64
	Range  uint64
}

// DescriptorImageInfo points a descriptor at an image view and sampler.
type DescriptorImageInfo struct {
	Sampler     Sampler
	ImageView   ImageView
	ImageLayout vk.ImageLayout
}

// DescriptorWrite is one pending descriptor update. Exactly one of BufferInfo
// and ImageInfo is set.
type DescriptorWrite struct {
	DstSet         DescriptorSet
	DstBinding     uint32
	DescriptorType vk.DescriptorType
	BufferInfo     *DescriptorBufferInfo
	ImageInfo      *DescriptorImageInfo
}

type PushConstantRange struct {
	StageFlags vk.ShaderStageFlags
	Offset     uint32
	Size       uint32
}

type Extent struct {
	Width  uint32
	Height uint32
	Depth  uint32
}

type ImageInfo struct {
	Format vk.Format
	Extent Extent
	Usage  vk.ImageUsageFlags
	// Memory properties of the backing allocation.
	Properties vk.MemoryPropertyFlags
}
