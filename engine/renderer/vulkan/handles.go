package vulkan

// Opaque driver handles. The zero value of every handle is the null handle.
type (
	DescriptorPool      uint64
	DescriptorSetLayout uint64
	DescriptorSet       uint64
	PipelineLayout      uint64
	Pipeline            uint64
	ShaderModule        uint64
	Buffer              uint64
	DeviceMemory        uint64
	Image               uint64
	ImageView           uint64
	Sampler             uint64
	CommandPool         uint64
	CommandBuffer       uint64
	Fence               uint64
	Queue               uint64
)

const NullHandle = 0
