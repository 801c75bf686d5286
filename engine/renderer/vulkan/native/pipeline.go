package native

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/atlas/engine/core"
	"github.com/spaghettifunk/atlas/engine/renderer/vulkan"
)

const shaderEntryPoint = "main"

// shaderStage describes one stage of a pipeline built from module.
func (d *Device) shaderStage(module vulkan.ShaderModule, stage vk.ShaderStageFlagBits) (vk.PipelineShaderStageCreateInfo, bool) {
	handle, ok := d.shaderModules.Get(uint64(module))
	if !ok {
		return vk.PipelineShaderStageCreateInfo{}, false
	}
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: handle,
		PName:  VulkanSafeString(shaderEntryPoint),
	}, true
}

/**
 * @brief Builds a compute pipeline from a shader module and a pipeline
 * layout, both created on this device. The result is meant to be stored in
 * a vulkan.Shader together with the module.
 */
func (d *Device) CreateComputePipeline(module vulkan.ShaderModule, layout vulkan.PipelineLayout) (vulkan.Pipeline, vk.Result) {
	stage, ok := d.shaderStage(module, vk.ShaderStageComputeBit)
	if !ok {
		core.LogError("compute pipeline: unknown shader module %#x", uint64(module))
		return vulkan.NullHandle, vk.ErrorInitializationFailed
	}
	vkLayout, ok := d.pipelineLayouts.Get(uint64(layout))
	if !ok {
		core.LogError("compute pipeline: unknown pipeline layout %#x", uint64(layout))
		return vulkan.NullHandle, vk.ErrorInitializationFailed
	}

	pipelineCreateInfo := []vk.ComputePipelineCreateInfo{{
		SType:  vk.StructureTypeComputePipelineCreateInfo,
		Stage:  stage,
		Layout: vkLayout,
	}}
	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateComputePipelines(d.LogicalDevice, vk.NullPipelineCache, 1, pipelineCreateInfo, d.Allocator, pipelines); res != vk.Success {
		core.LogError("vkCreateComputePipelines failed with %s.", vulkan.ResultString(res))
		return vulkan.NullHandle, res
	}
	core.LogDebug("Compute pipeline created!")
	return d.RegisterPipeline(pipelines[0]), vk.Success
}
