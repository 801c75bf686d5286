package engine

import (
	"github.com/spaghettifunk/atlas/engine/config"
)

type ApplicationConfig struct {
	// The application name reported to the driver.
	Name string
	// Target frame time for Run. 0 runs frames back to back.
	TargetFrameSeconds float64
	// Stop after this many frames. 0 runs until Stop or cancellation.
	MaxFrames uint64
	Renderer  *config.RendererConfig
}
