package native

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/atlas/engine/core"
	"github.com/spaghettifunk/atlas/engine/renderer/vulkan"
)

type queueEntry struct {
	handle vk.Queue
	family uint32
}

// Device implements vulkan.Device on a goki/vulkan logical device. Driver
// objects are kept in identifier tables and handed out as vulkan handles.
type Device struct {
	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device
	Allocator      *vk.AllocationCallbacks
	Memory         vk.PhysicalDeviceMemoryProperties

	locks *LockPool

	queues          *core.IdentifierTable[queueEntry]
	pools           *core.IdentifierTable[vk.DescriptorPool]
	setLayouts      *core.IdentifierTable[vk.DescriptorSetLayout]
	sets            *core.IdentifierTable[vk.DescriptorSet]
	pipelineLayouts *core.IdentifierTable[vk.PipelineLayout]
	pipelines       *core.IdentifierTable[vk.Pipeline]
	shaderModules   *core.IdentifierTable[vk.ShaderModule]
	commandPools    *core.IdentifierTable[vk.CommandPool]
	commandBuffers  *core.IdentifierTable[vk.CommandBuffer]
	fences          *core.IdentifierTable[vk.Fence]
	buffers         *core.IdentifierTable[vk.Buffer]
	memories        *core.IdentifierTable[vk.DeviceMemory]
	images          *core.IdentifierTable[vk.Image]
	imageViews      *core.IdentifierTable[vk.ImageView]
	samplers        *core.IdentifierTable[vk.Sampler]

	// sets and command buffers die with the pool they came from
	poolSets    map[vulkan.DescriptorPool][]vulkan.DescriptorSet
	poolBuffers map[vulkan.CommandPool][]vulkan.CommandBuffer
}

var _ vulkan.Device = (*Device)(nil)

func NewDevice(physical vk.PhysicalDevice, logical vk.Device) *Device {
	d := &Device{
		PhysicalDevice: physical,
		LogicalDevice:  logical,
		locks:          NewLockPool(),

		queues:          core.NewIdentifierTable[queueEntry](4),
		pools:           core.NewIdentifierTable[vk.DescriptorPool](16),
		setLayouts:      core.NewIdentifierTable[vk.DescriptorSetLayout](64),
		sets:            core.NewIdentifierTable[vk.DescriptorSet](1024),
		pipelineLayouts: core.NewIdentifierTable[vk.PipelineLayout](32),
		pipelines:       core.NewIdentifierTable[vk.Pipeline](32),
		shaderModules:   core.NewIdentifierTable[vk.ShaderModule](32),
		commandPools:    core.NewIdentifierTable[vk.CommandPool](4),
		commandBuffers:  core.NewIdentifierTable[vk.CommandBuffer](8),
		fences:          core.NewIdentifierTable[vk.Fence](8),
		buffers:         core.NewIdentifierTable[vk.Buffer](256),
		memories:        core.NewIdentifierTable[vk.DeviceMemory](256),
		images:          core.NewIdentifierTable[vk.Image](64),
		imageViews:      core.NewIdentifierTable[vk.ImageView](64),
		samplers:        core.NewIdentifierTable[vk.Sampler](16),

		poolSets:    make(map[vulkan.DescriptorPool][]vulkan.DescriptorSet),
		poolBuffers: make(map[vulkan.CommandPool][]vulkan.CommandBuffer),
	}
	if physical != nil {
		vk.GetPhysicalDeviceMemoryProperties(physical, &d.Memory)
		d.Memory.Deref()
	}
	return d
}

// RegisterQueue makes a device queue usable by the resource layer.
func (d *Device) RegisterQueue(queue vk.Queue, family uint32) vulkan.Queue {
	d.locks.SetQueueFamily(family)
	return vulkan.Queue(d.queues.Acquire(queueEntry{handle: queue, family: family}))
}

// RegisterPipeline hands a pipeline created elsewhere to the resource layer,
// typically to store it in a vulkan.Shader.
func (d *Device) RegisterPipeline(pipeline vk.Pipeline) vulkan.Pipeline {
	return vulkan.Pipeline(d.pipelines.Acquire(pipeline))
}

// PipelineLayoutHandle returns the driver object behind a cached pipeline
// layout, for pipeline creation.
func (d *Device) PipelineLayoutHandle(layout vulkan.PipelineLayout) (vk.PipelineLayout, bool) {
	return d.pipelineLayouts.Get(uint64(layout))
}

func (d *Device) DescriptorSetHandle(set vulkan.DescriptorSet) (vk.DescriptorSet, bool) {
	return d.sets.Get(uint64(set))
}

func (d *Device) CommandBufferHandle(cmd vulkan.CommandBuffer) (vk.CommandBuffer, bool) {
	return d.commandBuffers.Get(uint64(cmd))
}

func get[T any](table *core.IdentifierTable[T], id uint64) T {
	v, _ := table.Get(id)
	return v
}

func release[T any](table *core.IdentifierTable[T], id uint64) (T, bool) {
	v, err := table.Release(id)
	if err != nil {
		core.LogDebug("%s", err)
		return v, false
	}
	return v, true
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that has
// every flag in propertyFlags, or -1.
func (d *Device) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) int32 {
	for i := uint32(0); i < d.Memory.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		d.Memory.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (d.Memory.MemoryTypes[i].PropertyFlags&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

func (d *Device) allocateMemory(reqs vk.MemoryRequirements, properties vk.MemoryPropertyFlags) (vk.DeviceMemory, vk.Result) {
	index := d.FindMemoryIndex(reqs.MemoryTypeBits, properties)
	if index < 0 {
		return nil, vk.ErrorOutOfDeviceMemory
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: uint32(index),
	}
	var memory vk.DeviceMemory
	res := vk.AllocateMemory(d.LogicalDevice, &allocInfo, d.Allocator, &memory)
	return memory, res
}

// Descriptors

func (d *Device) CreateDescriptorPool(maxSets uint32, sizes []vk.DescriptorPoolSize) (vulkan.DescriptorPool, vk.Result) {
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(d.LogicalDevice, &poolInfo, d.Allocator, &pool); res != vk.Success {
		return vulkan.NullHandle, res
	}
	return vulkan.DescriptorPool(d.pools.Acquire(pool)), vk.Success
}

func (d *Device) releasePoolSets(pool vulkan.DescriptorPool) {
	for _, set := range d.poolSets[pool] {
		release(d.sets, uint64(set))
	}
	delete(d.poolSets, pool)
}

func (d *Device) ResetDescriptorPool(pool vulkan.DescriptorPool) vk.Result {
	res := vk.Success
	d.locks.SafeCall(DescriptorManagement, func() {
		res = vk.ResetDescriptorPool(d.LogicalDevice, get(d.pools, uint64(pool)), 0)
		d.releasePoolSets(pool)
	})
	return res
}

func (d *Device) DestroyDescriptorPool(pool vulkan.DescriptorPool) {
	d.locks.SafeCall(DescriptorManagement, func() {
		if p, ok := release(d.pools, uint64(pool)); ok {
			vk.DestroyDescriptorPool(d.LogicalDevice, p, d.Allocator)
		}
		d.releasePoolSets(pool)
	})
}

func (d *Device) AllocateDescriptorSet(pool vulkan.DescriptorPool, layout vulkan.DescriptorSetLayout) (vulkan.DescriptorSet, vk.Result) {
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     get(d.pools, uint64(pool)),
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{get(d.setLayouts, uint64(layout))},
	}

	var set vulkan.DescriptorSet
	res := vk.Success
	d.locks.SafeCall(DescriptorManagement, func() {
		var handle vk.DescriptorSet
		res = vk.AllocateDescriptorSets(d.LogicalDevice, &allocInfo, &handle)
		if res != vk.Success {
			return
		}
		set = vulkan.DescriptorSet(d.sets.Acquire(handle))
		d.poolSets[pool] = append(d.poolSets[pool], set)
	})
	return set, res
}

func (d *Device) UpdateDescriptorSets(writes []vulkan.DescriptorWrite) {
	vkWrites := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          get(d.sets, uint64(w.DstSet)),
			DstBinding:      w.DstBinding,
			DescriptorCount: 1,
			DescriptorType:  w.DescriptorType,
		}
		if w.BufferInfo != nil {
			write.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: get(d.buffers, uint64(w.BufferInfo.Buffer)),
				Offset: vk.DeviceSize(w.BufferInfo.Offset),
				Range:  vk.DeviceSize(w.BufferInfo.Range),
			}}
		}
		if w.ImageInfo != nil {
			write.PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     get(d.samplers, uint64(w.ImageInfo.Sampler)),
				ImageView:   get(d.imageViews, uint64(w.ImageInfo.ImageView)),
				ImageLayout: w.ImageInfo.ImageLayout,
			}}
		}
		vkWrites = append(vkWrites, write)
	}
	vk.UpdateDescriptorSets(d.LogicalDevice, uint32(len(vkWrites)), vkWrites, 0, nil)
}

func (d *Device) CreateDescriptorSetLayout(bindings []vulkan.LayoutBinding) (vulkan.DescriptorSetLayout, vk.Result) {
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  b.DescriptorType,
			DescriptorCount: b.Count,
			StageFlags:      b.StageFlags,
		}
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(d.LogicalDevice, &layoutInfo, d.Allocator, &layout); res != vk.Success {
		return vulkan.NullHandle, res
	}
	return vulkan.DescriptorSetLayout(d.setLayouts.Acquire(layout)), vk.Success
}

func (d *Device) DestroyDescriptorSetLayout(layout vulkan.DescriptorSetLayout) {
	if l, ok := release(d.setLayouts, uint64(layout)); ok {
		vk.DestroyDescriptorSetLayout(d.LogicalDevice, l, d.Allocator)
	}
}

// Pipelines

func (d *Device) CreatePipelineLayout(setLayouts []vulkan.DescriptorSetLayout, pushConstants []vulkan.PushConstantRange) (vulkan.PipelineLayout, vk.Result) {
	vkSetLayouts := make([]vk.DescriptorSetLayout, len(setLayouts))
	for i, l := range setLayouts {
		vkSetLayouts[i] = get(d.setLayouts, uint64(l))
	}
	vkRanges := make([]vk.PushConstantRange, len(pushConstants))
	for i, pc := range pushConstants {
		vkRanges[i] = vk.PushConstantRange{
			StageFlags: pc.StageFlags,
			Offset:     pc.Offset,
			Size:       pc.Size,
		}
	}
	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(vkSetLayouts)),
		PSetLayouts:            vkSetLayouts,
		PushConstantRangeCount: uint32(len(vkRanges)),
		PPushConstantRanges:    vkRanges,
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(d.LogicalDevice, &layoutInfo, d.Allocator, &layout); res != vk.Success {
		return vulkan.NullHandle, res
	}
	return vulkan.PipelineLayout(d.pipelineLayouts.Acquire(layout)), vk.Success
}

func (d *Device) DestroyPipelineLayout(layout vulkan.PipelineLayout) {
	if l, ok := release(d.pipelineLayouts, uint64(layout)); ok {
		vk.DestroyPipelineLayout(d.LogicalDevice, l, d.Allocator)
	}
}

func (d *Device) DestroyPipeline(pipeline vulkan.Pipeline) {
	if p, ok := release(d.pipelines, uint64(pipeline)); ok {
		vk.DestroyPipeline(d.LogicalDevice, p, d.Allocator)
	}
}

// CreateShaderModule wraps SPIR-V words in a shader module.
func (d *Device) CreateShaderModule(code []uint32) (vulkan.ShaderModule, vk.Result) {
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code) * 4),
		PCode:    code,
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(d.LogicalDevice, &createInfo, d.Allocator, &module); res != vk.Success {
		return vulkan.NullHandle, res
	}
	return vulkan.ShaderModule(d.shaderModules.Acquire(module)), vk.Success
}

func (d *Device) ShaderModuleHandle(module vulkan.ShaderModule) (vk.ShaderModule, bool) {
	return d.shaderModules.Get(uint64(module))
}

func (d *Device) DestroyShaderModule(module vulkan.ShaderModule) {
	if m, ok := release(d.shaderModules, uint64(module)); ok {
		vk.DestroyShaderModule(d.LogicalDevice, m, d.Allocator)
	}
}

// Commands

func (d *Device) CreateCommandPool(queueFamilyIndex uint32) (vulkan.CommandPool, vk.Result) {
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: queueFamilyIndex,
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(d.LogicalDevice, &poolCreateInfo, d.Allocator, &pool); res != vk.Success {
		return vulkan.NullHandle, res
	}
	return vulkan.CommandPool(d.commandPools.Acquire(pool)), vk.Success
}

func (d *Device) ResetCommandPool(pool vulkan.CommandPool) vk.Result {
	res := vk.Success
	d.locks.SafeCall(CommandPoolManagement, func() {
		res = vk.ResetCommandPool(d.LogicalDevice, get(d.commandPools, uint64(pool)), 0)
	})
	return res
}

func (d *Device) DestroyCommandPool(pool vulkan.CommandPool) {
	d.locks.SafeCall(CommandPoolManagement, func() {
		if p, ok := release(d.commandPools, uint64(pool)); ok {
			vk.DestroyCommandPool(d.LogicalDevice, p, d.Allocator)
		}
		for _, cmd := range d.poolBuffers[pool] {
			release(d.commandBuffers, uint64(cmd))
		}
		delete(d.poolBuffers, pool)
	})
}

func (d *Device) AllocateCommandBuffer(pool vulkan.CommandPool) (vulkan.CommandBuffer, vk.Result) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        get(d.commandPools, uint64(pool)),
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	var cmd vulkan.CommandBuffer
	res := vk.Success
	d.locks.SafeCall(CommandPoolManagement, func() {
		handles := make([]vk.CommandBuffer, 1)
		res = vk.AllocateCommandBuffers(d.LogicalDevice, &allocateInfo, handles)
		if res != vk.Success {
			return
		}
		cmd = vulkan.CommandBuffer(d.commandBuffers.Acquire(handles[0]))
		d.poolBuffers[pool] = append(d.poolBuffers[pool], cmd)
	})
	return cmd, res
}

func (d *Device) BeginCommandBuffer(cmd vulkan.CommandBuffer, oneTimeSubmit bool) vk.Result {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if oneTimeSubmit {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	return vk.BeginCommandBuffer(get(d.commandBuffers, uint64(cmd)), &beginInfo)
}

func (d *Device) EndCommandBuffer(cmd vulkan.CommandBuffer) vk.Result {
	return vk.EndCommandBuffer(get(d.commandBuffers, uint64(cmd)))
}

func (d *Device) CmdCopyBuffer(cmd vulkan.CommandBuffer, src, dst vulkan.Buffer, size uint64) {
	region := vk.BufferCopy{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      vk.DeviceSize(size),
	}
	vk.CmdCopyBuffer(get(d.commandBuffers, uint64(cmd)), get(d.buffers, uint64(src)), get(d.buffers, uint64(dst)), 1, []vk.BufferCopy{region})
}

func (d *Device) CmdCopyBufferToImage(cmd vulkan.CommandBuffer, src vulkan.Buffer, dst vulkan.Image, extent vulkan.Extent) {
	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageExtent: vk.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  extent.Depth,
		},
	}
	vk.CmdCopyBufferToImage(
		get(d.commandBuffers, uint64(cmd)),
		get(d.buffers, uint64(src)),
		get(d.images, uint64(dst)),
		vk.ImageLayoutTransferDstOptimal,
		1,
		[]vk.BufferImageCopy{region})
}

func (d *Device) CmdTransitionImage(cmd vulkan.CommandBuffer, image vulkan.Image, from, to vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               get(d.images, uint64(image)),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var srcStage, dstStage vk.PipelineStageFlagBits
	switch {
	case from == vk.ImageLayoutUndefined && to == vk.ImageLayoutTransferDstOptimal:
		barrier.SrcAccessMask = 0
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		srcStage = vk.PipelineStageTopOfPipeBit
		dstStage = vk.PipelineStageTransferBit
	case from == vk.ImageLayoutTransferDstOptimal && to == vk.ImageLayoutShaderReadOnlyOptimal:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		srcStage = vk.PipelineStageTransferBit
		dstStage = vk.PipelineStageFragmentShaderBit
	default:
		core.LogWarn("unsupported layout transition %d -> %d, using a full barrier", from, to)
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessMemoryWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit)
		srcStage = vk.PipelineStageAllCommandsBit
		dstStage = vk.PipelineStageAllCommandsBit
	}

	vk.CmdPipelineBarrier(
		get(d.commandBuffers, uint64(cmd)),
		vk.PipelineStageFlags(srcStage),
		vk.PipelineStageFlags(dstStage),
		0,
		0, nil,
		0, nil,
		1, []vk.ImageMemoryBarrier{barrier})
}

func (d *Device) QueueSubmit(queue vulkan.Queue, cmd vulkan.CommandBuffer, fence vulkan.Fence) vk.Result {
	q, ok := d.queues.Get(uint64(queue))
	if !ok {
		return vk.ErrorInitializationFailed
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{get(d.commandBuffers, uint64(cmd))},
	}
	res := vk.Success
	d.locks.SafeQueueCall(q.family, func() {
		res = vk.QueueSubmit(q.handle, 1, []vk.SubmitInfo{submitInfo}, get(d.fences, uint64(fence)))
	})
	return res
}

// Synchronization

func (d *Device) CreateFence(signaled bool) (vulkan.Fence, vk.Result) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if res := vk.CreateFence(d.LogicalDevice, &fenceCreateInfo, d.Allocator, &fence); res != vk.Success {
		return vulkan.NullHandle, res
	}
	return vulkan.Fence(d.fences.Acquire(fence)), vk.Success
}

func (d *Device) WaitForFence(fence vulkan.Fence, timeoutNs uint64) vk.Result {
	return vk.WaitForFences(d.LogicalDevice, 1, []vk.Fence{get(d.fences, uint64(fence))}, vk.True, timeoutNs)
}

func (d *Device) ResetFence(fence vulkan.Fence) vk.Result {
	return vk.ResetFences(d.LogicalDevice, 1, []vk.Fence{get(d.fences, uint64(fence))})
}

func (d *Device) DestroyFence(fence vulkan.Fence) {
	if f, ok := release(d.fences, uint64(fence)); ok {
		vk.DestroyFence(d.LogicalDevice, f, d.Allocator)
	}
}

// Memory

func (d *Device) CreateBuffer(size uint64, usage vk.BufferUsageFlags, properties vk.MemoryPropertyFlags) (vulkan.Buffer, vulkan.DeviceMemory, vk.Result) {
	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if res := vk.CreateBuffer(d.LogicalDevice, &bufferInfo, d.Allocator, &buffer); res != vk.Success {
		return vulkan.NullHandle, vulkan.NullHandle, res
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.LogicalDevice, buffer, &reqs)
	reqs.Deref()

	var memory vk.DeviceMemory
	res := vk.Success
	d.locks.SafeCall(MemoryManagement, func() {
		memory, res = d.allocateMemory(reqs, properties)
	})
	if res != vk.Success {
		vk.DestroyBuffer(d.LogicalDevice, buffer, d.Allocator)
		return vulkan.NullHandle, vulkan.NullHandle, res
	}
	if res := vk.BindBufferMemory(d.LogicalDevice, buffer, memory, 0); res != vk.Success {
		vk.FreeMemory(d.LogicalDevice, memory, d.Allocator)
		vk.DestroyBuffer(d.LogicalDevice, buffer, d.Allocator)
		return vulkan.NullHandle, vulkan.NullHandle, res
	}
	return vulkan.Buffer(d.buffers.Acquire(buffer)), vulkan.DeviceMemory(d.memories.Acquire(memory)), vk.Success
}

func (d *Device) WriteMemory(memory vulkan.DeviceMemory, data []byte) vk.Result {
	mem := get(d.memories, uint64(memory))
	var ptr unsafe.Pointer
	if res := vk.MapMemory(d.LogicalDevice, mem, 0, vk.DeviceSize(len(data)), 0, &ptr); res != vk.Success {
		return res
	}
	vk.Memcopy(ptr, data)
	vk.UnmapMemory(d.LogicalDevice, mem)
	return vk.Success
}

func (d *Device) freeMemory(memory vulkan.DeviceMemory) {
	if m, ok := release(d.memories, uint64(memory)); ok {
		d.locks.SafeCall(MemoryManagement, func() {
			vk.FreeMemory(d.LogicalDevice, m, d.Allocator)
		})
	}
}

func (d *Device) DestroyBuffer(buffer vulkan.Buffer, memory vulkan.DeviceMemory) {
	if b, ok := release(d.buffers, uint64(buffer)); ok {
		vk.DestroyBuffer(d.LogicalDevice, b, d.Allocator)
	}
	d.freeMemory(memory)
}

// Images

func (d *Device) CreateImage(info vulkan.ImageInfo) (vulkan.Image, vulkan.DeviceMemory, vk.Result) {
	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    info.Format,
		Extent: vk.Extent3D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
			Depth:  info.Extent.Depth,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         info.Usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var image vk.Image
	if res := vk.CreateImage(d.LogicalDevice, &imageCreateInfo, d.Allocator, &image); res != vk.Success {
		return vulkan.NullHandle, vulkan.NullHandle, res
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.LogicalDevice, image, &reqs)
	reqs.Deref()

	var memory vk.DeviceMemory
	res := vk.Success
	d.locks.SafeCall(MemoryManagement, func() {
		memory, res = d.allocateMemory(reqs, info.Properties)
	})
	if res != vk.Success {
		vk.DestroyImage(d.LogicalDevice, image, d.Allocator)
		return vulkan.NullHandle, vulkan.NullHandle, res
	}
	if res := vk.BindImageMemory(d.LogicalDevice, image, memory, 0); res != vk.Success {
		vk.FreeMemory(d.LogicalDevice, memory, d.Allocator)
		vk.DestroyImage(d.LogicalDevice, image, d.Allocator)
		return vulkan.NullHandle, vulkan.NullHandle, res
	}
	return vulkan.Image(d.images.Acquire(image)), vulkan.DeviceMemory(d.memories.Acquire(memory)), vk.Success
}

func (d *Device) CreateImageView(image vulkan.Image, format vk.Format) (vulkan.ImageView, vk.Result) {
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    get(d.images, uint64(image)),
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(d.LogicalDevice, &viewCreateInfo, d.Allocator, &view); res != vk.Success {
		return vulkan.NullHandle, res
	}
	return vulkan.ImageView(d.imageViews.Acquire(view)), vk.Success
}

func (d *Device) DestroyImageView(view vulkan.ImageView) {
	if v, ok := release(d.imageViews, uint64(view)); ok {
		vk.DestroyImageView(d.LogicalDevice, v, d.Allocator)
	}
}

func (d *Device) DestroyImage(image vulkan.Image, memory vulkan.DeviceMemory) {
	if i, ok := release(d.images, uint64(image)); ok {
		vk.DestroyImage(d.LogicalDevice, i, d.Allocator)
	}
	d.freeMemory(memory)
}

// CreateSampler creates a linear, repeating sampler for textures.
func (d *Device) CreateSampler() (vulkan.Sampler, vk.Result) {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}
	var sampler vk.Sampler
	if res := vk.CreateSampler(d.LogicalDevice, &samplerInfo, d.Allocator, &sampler); res != vk.Success {
		return vulkan.NullHandle, res
	}
	return vulkan.Sampler(d.samplers.Acquire(sampler)), vk.Success
}

func (d *Device) DestroySampler(sampler vulkan.Sampler) {
	if s, ok := release(d.samplers, uint64(sampler)); ok {
		vk.DestroySampler(d.LogicalDevice, s, d.Allocator)
	}
}

func (d *Device) WaitIdle() vk.Result {
	res := vk.Success
	d.locks.SafeCall(DeviceManagement, func() {
		res = vk.DeviceWaitIdle(d.LogicalDevice)
	})
	return res
}

// Live reports how many driver objects of each kind are still alive. Useful
// to spot leaks at shutdown.
func (d *Device) Live() map[string]int {
	return map[string]int{
		"descriptor pool":       d.pools.Len(),
		"descriptor set layout": d.setLayouts.Len(),
		"descriptor set":        d.sets.Len(),
		"pipeline layout":       d.pipelineLayouts.Len(),
		"pipeline":              d.pipelines.Len(),
		"shader module":         d.shaderModules.Len(),
		"command pool":          d.commandPools.Len(),
		"fence":                 d.fences.Len(),
		"buffer":                d.buffers.Len(),
		"device memory":         d.memories.Len(),
		"image":                 d.images.Len(),
		"image view":            d.imageViews.Len(),
		"sampler":               d.samplers.Len(),
	}
}
