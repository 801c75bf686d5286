package testbed

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"strings"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/atlas/engine"
	"github.com/spaghettifunk/atlas/engine/assets"
	"github.com/spaghettifunk/atlas/engine/assets/loaders"
	"github.com/spaghettifunk/atlas/engine/config"
	"github.com/spaghettifunk/atlas/engine/core"
	"github.com/spaghettifunk/atlas/engine/renderer/vulkan"
)

// Devices that can build samplers and shader modules. The native device
// does; test devices may not.
type samplerFactory interface {
	CreateSampler() (vulkan.Sampler, vk.Result)
}

type shaderModuleFactory interface {
	CreateShaderModule(code []uint32) (vulkan.ShaderModule, vk.Result)
}

type computePipelineFactory interface {
	CreateComputePipeline(module vulkan.ShaderModule, layout vulkan.PipelineLayout) (vulkan.Pipeline, vk.Result)
}

type TestGame struct {
	*engine.Game
}

type gameState struct {
	frame uint64

	texture    vulkan.TextureRef
	vertices   vulkan.BufferRef
	shaders    map[string]vulkan.ShaderRef
	uniformBuf vulkan.BufferRef
}

func NewTestGame(cfg *config.RendererConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				Name:               "Atlas testbed",
				TargetFrameSeconds: 1.0 / 60.0,
				MaxFrames:          120,
				Renderer:           cfg,
			},
			State: &gameState{
				shaders: make(map[string]vulkan.ShaderRef),
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnShaderChanged = tg.ShaderChanged
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize() error {
	core.LogInfo("initializing testbed...")
	st := g.state()

	vertices, err := g.uploadTriangle()
	if err != nil {
		return err
	}
	st.vertices = g.Assets.RegisterBuffer(vertices)

	ubo, err := g.Manager.UploadToGPU(make([]byte, 64), vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit))
	if err != nil {
		return err
	}
	st.uniformBuf = g.Assets.RegisterBuffer(ubo)

	tex, err := g.uploadChecker()
	if err != nil {
		return err
	}
	st.texture = g.Assets.RegisterTexture(tex)

	if g.Shaders != nil {
		for _, name := range g.Shaders.Names() {
			if err := g.loadShader(name); err != nil {
				core.LogWarn("skipping shader %s: %s", name, err)
			}
		}
	}
	return nil
}

func (g *TestGame) uploadTriangle() (vulkan.AllocatedBuffer, error) {
	vertices := []float32{
		0.0, -0.5, 1, 0, 0,
		0.5, 0.5, 0, 1, 0,
		-0.5, 0.5, 0, 0, 1,
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, vertices); err != nil {
		return vulkan.AllocatedBuffer{}, err
	}
	return g.Manager.UploadToGPU(buf.Bytes(), vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
}

// uploadChecker runs a generated checkerboard through the regular image
// decoding path.
func (g *TestGame) uploadChecker() (vulkan.Texture, error) {
	const size = 16
	src := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := color.NRGBA{R: 255, B: 255, A: 255}
			if (x/4+y/4)%2 == 0 {
				c = color.NRGBA{A: 255}
			}
			src.Set(x, y, c)
		}
	}
	var encoded bytes.Buffer
	if err := png.Encode(&encoded, src); err != nil {
		return vulkan.Texture{}, err
	}
	img, err := loaders.DecodeImage(&encoded, loaders.ImageOptions{})
	if err != nil {
		return vulkan.Texture{}, err
	}

	tex, err := g.Manager.UploadImage(img.Pixels, vulkan.Extent{Width: img.Width, Height: img.Height}, vk.FormatR8g8b8a8Unorm)
	if err != nil {
		return vulkan.Texture{}, err
	}
	device, err := g.Manager.Device()
	if err != nil {
		return vulkan.Texture{}, err
	}
	if f, ok := device.(samplerFactory); ok {
		sampler, res := f.CreateSampler()
		if res != vk.Success {
			return vulkan.Texture{}, errors.Newf("creating sampler: %s", vulkan.ResultString(res))
		}
		tex.Sampler = sampler
	}
	return tex, nil
}

func (g *TestGame) loadShader(name string) error {
	device, err := g.Manager.Device()
	if err != nil {
		return err
	}
	f, ok := device.(shaderModuleFactory)
	if !ok {
		return errors.New("device cannot create shader modules")
	}
	code, err := g.Shaders.Load(name)
	if err != nil {
		return err
	}
	module, res := f.CreateShaderModule(code)
	if res != vk.Success {
		return errors.Newf("vkCreateShaderModule: %s", vulkan.ResultString(res))
	}
	shader := vulkan.Shader{Module: module}

	if strings.HasSuffix(name, ".comp") {
		if err := g.buildComputePipeline(device, &shader); err != nil {
			device.DestroyShaderModule(module)
			return err
		}
	}

	st := g.state()
	if old, ok := st.shaders[name]; ok {
		g.Assets.QueueDestroyShader(old)
	}
	st.shaders[name] = g.Assets.RegisterShader(shader)
	core.LogDebug("loaded shader %s", name)
	return nil
}

// buildComputePipeline assumes compute shaders read one storage buffer at
// binding 0 and take a 16 byte push constant block.
func (g *TestGame) buildComputePipeline(device vulkan.Device, shader *vulkan.Shader) error {
	f, ok := device.(computePipelineFactory)
	if !ok {
		return errors.New("device cannot create compute pipelines")
	}
	setLayout, err := g.Manager.NewDescriptorBuilder().
		BindBuffer(0, &vulkan.DescriptorBufferInfo{}, vk.DescriptorTypeStorageBuffer, vk.ShaderStageFlags(vk.ShaderStageComputeBit)).
		BuildLayout()
	if err != nil {
		return err
	}
	cache, err := g.Manager.PipelineLayoutCache()
	if err != nil {
		return err
	}
	layout, err := cache.CreatePipelineLayout([]vulkan.DescriptorSetLayout{setLayout}, []vulkan.PushConstantRange{
		{StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit), Size: 16},
	})
	if err != nil {
		return err
	}
	pipeline, res := f.CreateComputePipeline(shader.Module, layout)
	if res != vk.Success {
		return errors.Newf("creating compute pipeline: %s", vulkan.ResultString(res))
	}
	shader.Pipeline = pipeline
	shader.Layout = layout
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	st := g.state()
	st.frame++

	ubo, ok := g.Assets.Buffer(st.uniformBuf)
	if !ok {
		return errors.New("uniform buffer lost")
	}
	tex, ok := g.Assets.Texture(st.texture)
	if !ok {
		return errors.New("texture lost")
	}

	// descriptor pools are reset every frame, so the set is rebuilt too
	_, _, err := g.Manager.NewDescriptorBuilder().
		BindBuffer(0, &vulkan.DescriptorBufferInfo{Buffer: ubo.Buffer, Range: ubo.Size},
			vk.DescriptorTypeUniformBuffer, vk.ShaderStageFlags(vk.ShaderStageVertexBit)).
		BindImage(1, &vulkan.DescriptorImageInfo{Sampler: tex.Sampler, ImageView: tex.View, ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal},
			vk.DescriptorTypeCombinedImageSampler, vk.ShaderStageFlags(vk.ShaderStageFragmentBit)).
		Build()
	if err != nil {
		return err
	}

	// every second frame replace the vertex buffer, the old one goes at the
	// start of the next frame
	if st.frame%2 == 0 {
		vertices, err := g.uploadTriangle()
		if err != nil {
			return err
		}
		g.Assets.QueueDestroyBuffer(st.vertices)
		st.vertices = g.Assets.RegisterBuffer(vertices)
	}

	if st.frame%60 == 0 {
		c := g.Assets.Counts()
		s := g.Manager.Stats()
		core.LogInfo("frame %d (%.2fms): %d buffers, %d textures, %d shaders live; %d uploads, %d layout cache hits",
			st.frame, deltaTime*1000, c.LiveBuffers, c.LiveTextures, c.LiveShaders, s.Uploads, s.LayoutCacheHits)
	}
	return nil
}

func (g *TestGame) ShaderChanged(event assets.ShaderEvent) error {
	switch event.Op {
	case assets.ShaderAdded, assets.ShaderChanged:
		return g.loadShader(event.Name)
	case assets.ShaderRemoved:
		st := g.state()
		if ref, ok := st.shaders[event.Name]; ok {
			g.Assets.QueueDestroyShader(ref)
			delete(st.shaders, event.Name)
		}
	}
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("testbed ran %d frames", g.state().frame)
	return nil
}
