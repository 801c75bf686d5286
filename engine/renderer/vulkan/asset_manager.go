package vulkan

import (
	"sync"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/atlas/engine/core"
)

// AssetID identifies one registered asset.
type AssetID uuid.UUID

func (id AssetID) String() string {
	return uuid.UUID(id).String()
}

// Refs do not keep their asset alive. Resolve them through the AssetManager
// every time; a ref to a destroyed asset no longer resolves.
type (
	ShaderRef  struct{ ID AssetID }
	TextureRef struct{ ID AssetID }
	BufferRef  struct{ ID AssetID }
)

type assetState int

const (
	assetLive assetState = iota
	assetPending
)

type assetEntry[T any] struct {
	value *T
	seq   uint64
	state assetState
}

// assetSet tracks one kind of asset. An asset is either live, pending
// destruction, or gone from the set.
type assetSet[T any] struct {
	kind    string
	entries map[AssetID]*assetEntry[T]
	pending []AssetID
	seq     uint64
	destroy func(Device, *T)
}

func newAssetSet[T any](kind string, destroy func(Device, *T)) *assetSet[T] {
	return &assetSet[T]{
		kind:    kind,
		entries: make(map[AssetID]*assetEntry[T]),
		destroy: destroy,
	}
}

func (s *assetSet[T]) register(value T) AssetID {
	id := AssetID(uuid.New())
	s.seq++
	s.entries[id] = &assetEntry[T]{value: &value, seq: s.seq, state: assetLive}
	return id
}

func (s *assetSet[T]) get(id AssetID) (*T, bool) {
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return e.value, true
}

func (s *assetSet[T]) queueDestroy(id AssetID) bool {
	e, ok := s.entries[id]
	if !ok || e.state != assetLive {
		core.LogWarn("%s was never registered: %s", s.kind, id)
		return false
	}
	e.state = assetPending
	s.pending = append(s.pending, id)
	return true
}

func (s *assetSet[T]) deregister(id AssetID) bool {
	e, ok := s.entries[id]
	if !ok || e.state != assetLive {
		core.LogWarn("%s was never registered: %s", s.kind, id)
		return false
	}
	delete(s.entries, id)
	return true
}

func (s *assetSet[T]) destroyQueued(device Device) int {
	for _, id := range s.pending {
		e := s.entries[id]
		s.destroy(device, e.value)
		delete(s.entries, id)
	}
	n := len(s.pending)
	s.pending = s.pending[:0]
	return n
}

// destroyLive destroys the remaining live assets in registration order.
func (s *assetSet[T]) destroyLive(device Device) int {
	live := make([]*assetEntry[T], 0, len(s.entries))
	for _, e := range s.entries {
		if e.state == assetLive {
			live = append(live, e)
		}
	}
	slices.SortFunc(live, func(a, b *assetEntry[T]) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	for _, e := range live {
		s.destroy(device, e.value)
	}
	clear(s.entries)
	return len(live)
}

func (s *assetSet[T]) counts() (live, pending int) {
	return len(s.entries) - len(s.pending), len(s.pending)
}

// AssetCounts reports live and pending assets per kind.
type AssetCounts struct {
	LiveShaders     int
	PendingShaders  int
	LiveTextures    int
	PendingTextures int
	LiveBuffers     int
	PendingBuffers  int
}

/**
 * @brief Registry of the GPU assets created by the renderer.
 *
 * Assets are destroyed either in batches with DestroyQueued after they were
 * queued with QueueDestroy*, or all at once by Cleanup at shutdown.
 */
type AssetManager struct {
	mu       sync.Mutex
	shaders  *assetSet[Shader]
	textures *assetSet[Texture]
	buffers  *assetSet[AllocatedBuffer]
}

func NewAssetManager() *AssetManager {
	return &AssetManager{
		shaders:  newAssetSet("Shader", destroyShader),
		textures: newAssetSet("Texture", destroyTexture),
		buffers:  newAssetSet("Buffer", destroyBuffer),
	}
}

func (am *AssetManager) RegisterShader(shader Shader) ShaderRef {
	am.mu.Lock()
	defer am.mu.Unlock()
	return ShaderRef{ID: am.shaders.register(shader)}
}

func (am *AssetManager) RegisterTexture(texture Texture) TextureRef {
	am.mu.Lock()
	defer am.mu.Unlock()
	return TextureRef{ID: am.textures.register(texture)}
}

func (am *AssetManager) RegisterBuffer(buffer AllocatedBuffer) BufferRef {
	am.mu.Lock()
	defer am.mu.Unlock()
	return BufferRef{ID: am.buffers.register(buffer)}
}

func (am *AssetManager) Shader(ref ShaderRef) (*Shader, bool) {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.shaders.get(ref.ID)
}

func (am *AssetManager) Texture(ref TextureRef) (*Texture, bool) {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.textures.get(ref.ID)
}

func (am *AssetManager) Buffer(ref BufferRef) (*AllocatedBuffer, bool) {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.buffers.get(ref.ID)
}

// QueueDestroyShader moves a live shader to the pending list. It returns false
// and logs a warning when the shader is not live.
func (am *AssetManager) QueueDestroyShader(ref ShaderRef) bool {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.shaders.queueDestroy(ref.ID)
}

func (am *AssetManager) QueueDestroyTexture(ref TextureRef) bool {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.textures.queueDestroy(ref.ID)
}

func (am *AssetManager) QueueDestroyBuffer(ref BufferRef) bool {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.buffers.queueDestroy(ref.ID)
}

// DeregisterShader forgets a live shader without destroying it. The caller
// takes over its lifetime.
func (am *AssetManager) DeregisterShader(ref ShaderRef) bool {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.shaders.deregister(ref.ID)
}

func (am *AssetManager) DeregisterTexture(ref TextureRef) bool {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.textures.deregister(ref.ID)
}

func (am *AssetManager) DeregisterBuffer(ref BufferRef) bool {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.buffers.deregister(ref.ID)
}

// DestroyQueued destroys every pending asset, shaders first, then textures,
// then buffers. Within a kind assets go in the order they were queued.
func (am *AssetManager) DestroyQueued(m *VulkanManager) error {
	device, err := m.Device()
	if err != nil {
		return err
	}
	am.mu.Lock()
	defer am.mu.Unlock()
	am.destroyQueued(device, m.metrics)
	return nil
}

func (am *AssetManager) destroyQueued(device Device, metrics *core.ResourceMetrics) {
	n := am.shaders.destroyQueued(device)
	n += am.textures.destroyQueued(device)
	n += am.buffers.destroyQueued(device)
	if n > 0 {
		metrics.AssetsDestroyed.Add(uint64(n))
		core.LogDebug("destroyed %d queued assets", n)
	}
}

// Cleanup destroys pending assets and then every live one. Only for shutdown.
func (am *AssetManager) Cleanup(m *VulkanManager) error {
	device, err := m.Device()
	if err != nil {
		return err
	}
	am.mu.Lock()
	defer am.mu.Unlock()

	am.destroyQueued(device, m.metrics)
	n := am.shaders.destroyLive(device)
	n += am.textures.destroyLive(device)
	n += am.buffers.destroyLive(device)
	m.metrics.AssetsDestroyed.Add(uint64(n))
	core.LogDebug("asset manager cleanup destroyed %d live assets", n)
	return nil
}

func (am *AssetManager) Counts() AssetCounts {
	am.mu.Lock()
	defer am.mu.Unlock()

	var c AssetCounts
	c.LiveShaders, c.PendingShaders = am.shaders.counts()
	c.LiveTextures, c.PendingTextures = am.textures.counts()
	c.LiveBuffers, c.PendingBuffers = am.buffers.counts()
	return c
}
