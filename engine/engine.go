package engine

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/atlas/engine/assets"
	"github.com/spaghettifunk/atlas/engine/config"
	"github.com/spaghettifunk/atlas/engine/core"
	"github.com/spaghettifunk/atlas/engine/renderer/vulkan"
	"github.com/spaghettifunk/atlas/engine/renderer/vulkan/native"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released every resource
	EngineStageShutdown
)

// Backend is the device the engine drives and the queue it uploads on.
type Backend struct {
	Device           vulkan.Device
	Queue            vulkan.Queue
	QueueFamilyIndex uint32
	// Destroy releases the device. Called last during Shutdown.
	Destroy func()
}

type BackendFactory func(app *ApplicationConfig) (*Backend, error)

// NativeBackend bootstraps a real Vulkan device.
func NativeBackend(app *ApplicationConfig) (*Backend, error) {
	ctx, err := native.Bootstrap(native.BootstrapConfig{
		ApplicationName: app.Name,
		Debug:           app.Renderer.Debug,
	})
	if err != nil {
		return nil, err
	}
	return &Backend{
		Device:           ctx.Device,
		Queue:            ctx.Queue,
		QueueFamilyIndex: ctx.QueueFamilyIndex,
		Destroy:          ctx.Destroy,
	}, nil
}

type Option func(*Engine)

func WithBackendFactory(f BackendFactory) Option {
	return func(e *Engine) {
		e.newBackend = f
	}
}

type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    bool

	newBackend BackendFactory
	backend    *Backend
	manager    *vulkan.VulkanManager
	assets     *vulkan.AssetManager
	shaders    *assets.ShaderLibrary

	clock      *core.Clock
	lastTime   time.Duration
	frameCount uint64
}

func New(g *Game, opts ...Option) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, errors.New("game without an application config")
	}
	if g.ApplicationConfig.Renderer == nil {
		g.ApplicationConfig.Renderer = config.Default()
	}
	if err := g.ApplicationConfig.Renderer.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		newBackend:   NativeBackend,
		clock:        core.NewClock(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Manager() *vulkan.VulkanManager {
	return e.manager
}

func (e *Engine) Assets() *vulkan.AssetManager {
	return e.assets
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return errors.AssertionFailedf("engine initialized twice")
	}
	e.currentStage = EngineStageInitializing

	app := e.gameInstance.ApplicationConfig
	cfg := app.Renderer
	core.SetLogLevel(core.ParseLogLevel(cfg.LogLevel))

	backend, err := e.newBackend(app)
	if err != nil {
		e.currentStage = EngineStageUninitialized
		return errors.Wrap(err, "creating backend")
	}
	e.backend = backend

	e.manager = vulkan.NewVulkanManager(cfg)
	if err := e.manager.Init(backend.Device); err != nil {
		return err
	}
	if err := e.manager.InitCommands(backend.Queue, backend.QueueFamilyIndex); err != nil {
		return err
	}
	if err := e.manager.InitSyncStructures(); err != nil {
		return err
	}
	e.assets = vulkan.NewAssetManager()

	if cfg.ShaderDir != "" {
		e.shaders = assets.NewShaderLibrary(cfg.ShaderDir)
		if err := e.shaders.Scan(); err != nil {
			core.LogWarn("shader directory %s not indexed: %s", cfg.ShaderDir, err)
		} else if cfg.WatchShaders {
			if err := e.shaders.Watch(); err != nil {
				core.LogWarn("not watching %s: %s", cfg.ShaderDir, err)
			}
		}
	}

	g := e.gameInstance
	g.Manager = e.manager
	g.Assets = e.assets
	g.Shaders = e.shaders
	if g.FnInitialize != nil {
		if err := g.FnInitialize(); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	core.LogInfo("%s initialized", app.Name)
	return nil
}

// BeginFrame destroys the assets queued during the previous frame and
// recycles the descriptor pools. Descriptor sets from earlier frames are
// invalid afterwards.
func (e *Engine) BeginFrame() error {
	if err := e.assets.DestroyQueued(e.manager); err != nil {
		return err
	}
	alloc, err := e.manager.DescriptorAllocator()
	if err != nil {
		return err
	}
	alloc.ResetPools()
	e.frameCount++
	return nil
}

// Stop ends Run after the current frame.
func (e *Engine) Stop() {
	e.isRunning = false
}

func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return errors.AssertionFailedf("engine not initialized")
	}
	e.currentStage = EngineStageRunning
	defer func() { e.currentStage = EngineStageInitialized }()

	app := e.gameInstance.ApplicationConfig
	target := time.Duration(app.TargetFrameSeconds * float64(time.Second))

	e.clock.Start()
	e.lastTime = 0
	e.isRunning = true
	for e.isRunning {
		if ctx.Err() != nil {
			break
		}
		frameStart := e.clock.Elapsed()

		if err := e.BeginFrame(); err != nil {
			return err
		}
		e.dispatchShaderEvents()

		e.clock.Update()
		current := e.clock.Elapsed()
		delta := (current - e.lastTime).Seconds()
		if fn := e.gameInstance.FnUpdate; fn != nil {
			if err := fn(delta); err != nil {
				core.LogError("Game update failed, shutting down: %s", err)
				return err
			}
		}
		e.lastTime = current

		if app.MaxFrames > 0 && e.frameCount >= app.MaxFrames {
			break
		}
		e.clock.Update()
		if remaining := target - (e.clock.Elapsed() - frameStart); remaining > 0 {
			select {
			case <-time.After(remaining):
			case <-ctx.Done():
			}
		}
	}
	core.LogDebug("run loop ended after %d frames", e.frameCount)
	return nil
}

func (e *Engine) dispatchShaderEvents() {
	if e.shaders == nil {
		return
	}
	for {
		select {
		case ev, ok := <-e.shaders.Events():
			if !ok {
				return
			}
			core.LogInfo("shader %s %s", ev.Name, ev.Op)
			if fn := e.gameInstance.FnShaderChanged; fn != nil {
				if err := fn(ev); err != nil {
					core.LogError("reloading shader %s: %s", ev.Name, err)
				}
			}
		default:
			return
		}
	}
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShutdown || e.currentStage == EngineStageUninitialized {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false

	var errs error
	if fn := e.gameInstance.FnShutdown; fn != nil {
		errs = errors.CombineErrors(errs, fn())
	}
	if e.shaders != nil {
		errs = errors.CombineErrors(errs, e.shaders.Close())
	}
	if e.manager != nil {
		if e.assets != nil {
			errs = errors.CombineErrors(errs, e.assets.Cleanup(e.manager))
		}
		errs = errors.CombineErrors(errs, e.manager.Cleanup())
		s := e.manager.Stats()
		core.LogInfo("uploads: %d (%d bytes), submits: %d (avg %.3fms), pools created: %d, layout cache hits/misses: %d/%d",
			s.Uploads, s.UploadedBytes, s.Submits, s.AverageSubmitMS, s.PoolsCreated, s.LayoutCacheHits, s.LayoutCacheMiss)
	}
	if e.backend != nil && e.backend.Destroy != nil {
		e.backend.Destroy()
	}
	e.currentStage = EngineStageShutdown
	return errs
}
