package vulkan

import (
	vk "github.com/goki/vulkan"
)

// Shader is a compiled pipeline together with the module it was built from.
// The pipeline layout belongs to the PipelineLayoutCache and is not destroyed
// with the shader.
type Shader struct {
	Module   ShaderModule
	Pipeline Pipeline
	Layout   PipelineLayout
}

// Texture is a device local image with its view and sampler.
type Texture struct {
	Image   Image
	Memory  DeviceMemory
	View    ImageView
	Sampler Sampler
	Format  vk.Format
	Extent  Extent
}

// AllocatedBuffer is a buffer and the memory bound to it.
type AllocatedBuffer struct {
	Buffer Buffer
	Memory DeviceMemory
	Size   uint64
	Usage  vk.BufferUsageFlags
}

func destroyShader(device Device, s *Shader) {
	if s.Pipeline != NullHandle {
		device.DestroyPipeline(s.Pipeline)
	}
	if s.Module != NullHandle {
		device.DestroyShaderModule(s.Module)
	}
	s.Pipeline = NullHandle
	s.Module = NullHandle
}

func destroyTexture(device Device, t *Texture) {
	if t.Sampler != NullHandle {
		device.DestroySampler(t.Sampler)
	}
	if t.View != NullHandle {
		device.DestroyImageView(t.View)
	}
	if t.Image != NullHandle {
		device.DestroyImage(t.Image, t.Memory)
	}
	*t = Texture{}
}

func destroyBuffer(device Device, b *AllocatedBuffer) {
	if b.Buffer != NullHandle {
		device.DestroyBuffer(b.Buffer, b.Memory)
	}
	b.Buffer = NullHandle
	b.Memory = NullHandle
	b.Size = 0
}
