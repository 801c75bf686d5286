package platform

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/atlas/engine/core"
)

func init() {
	// GLFW must be driven from the main OS thread
	runtime.LockOSThread()
}

// Platform loads the Vulkan loader through GLFW. No window is created; the
// resource layer only needs instance level entry points.
type Platform struct {
	started bool
}

func New() *Platform {
	return &Platform{}
}

func (p *Platform) Startup() error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return errors.Wrap(err, "glfw init")
	}
	p.started = true
	if !glfw.VulkanSupported() {
		p.Shutdown()
		return errors.New("no Vulkan loader found")
	}
	return nil
}

// InstanceProcAddress returns vkGetInstanceProcAddr as resolved by GLFW.
func (p *Platform) InstanceProcAddress() (unsafe.Pointer, error) {
	if !p.started {
		return nil, errors.AssertionFailedf("platform not started")
	}
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return nil, errors.New("GetInstanceProcAddress is nil")
	}
	return procAddr, nil
}

func (p *Platform) Shutdown() {
	if p.started {
		glfw.Terminate()
		p.started = false
	}
}
