package engine

import (
	"github.com/spaghettifunk/atlas/engine/assets"
	"github.com/spaghettifunk/atlas/engine/renderer/vulkan"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	// Set by the engine during Initialize.
	Manager *vulkan.VulkanManager
	Assets  *vulkan.AssetManager
	Shaders *assets.ShaderLibrary
	State   interface{}

	FnInitialize    Initialize
	FnUpdate        Update
	FnShaderChanged ShaderChanged
	FnShutdown      Shutdown
}

type Initialize func() error
type Update func(deltaTime float64) error
type ShaderChanged func(event assets.ShaderEvent) error
type Shutdown func() error
