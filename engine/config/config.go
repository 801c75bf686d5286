package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultSetsPerPool uint32 = 1000
)

// PoolSize is the number of descriptors of one type reserved per set in a
// descriptor pool. The type uses the snake case Vulkan name without prefix,
// e.g. "uniform_buffer" or "combined_image_sampler".
type PoolSize struct {
	Type       string  `toml:"type"`
	Multiplier float32 `toml:"multiplier"`
}

type RendererConfig struct {
	// Log level: debug, info, warn, error.
	LogLevel string `toml:"log_level"`
	// Enables validation layers when the native device is bootstrapped.
	Debug bool `toml:"debug"`
	// Maximum number of descriptor sets carved from one pool.
	SetsPerPool uint32 `toml:"sets_per_pool"`
	// Per-type descriptor distribution, scaled by SetsPerPool.
	PoolSizes []PoolSize `toml:"pool_sizes"`
	// Upper bound for fence waits, e.g. "5s". Empty waits forever.
	FenceTimeout string `toml:"fence_timeout"`
	// Directory holding compiled SPIR-V modules.
	ShaderDir string `toml:"shader_dir"`
	// Watch ShaderDir for changes.
	WatchShaders bool `toml:"watch_shaders"`
}

// DefaultPoolSizes is the descriptor distribution used when a config does not
// name one.
func DefaultPoolSizes() []PoolSize {
	return []PoolSize{
		{Type: "sampler", Multiplier: 0.5},
		{Type: "combined_image_sampler", Multiplier: 4},
		{Type: "sampled_image", Multiplier: 4},
		{Type: "storage_image", Multiplier: 1},
		{Type: "uniform_texel_buffer", Multiplier: 1},
		{Type: "storage_texel_buffer", Multiplier: 1},
		{Type: "uniform_buffer", Multiplier: 2},
		{Type: "storage_buffer", Multiplier: 2},
		{Type: "uniform_buffer_dynamic", Multiplier: 1},
		{Type: "storage_buffer_dynamic", Multiplier: 1},
		{Type: "input_attachment", Multiplier: 0.5},
	}
}

func Default() *RendererConfig {
	return &RendererConfig{
		LogLevel:    "info",
		SetsPerPool: DefaultSetsPerPool,
		PoolSizes:   DefaultPoolSizes(),
		ShaderDir:   "assets/shaders",
	}
}

// Load reads a TOML file. Missing keys keep their default value.
func Load(path string) (*RendererConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading renderer config %q", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "renderer config %q", path)
	}
	return cfg, nil
}

func Parse(data []byte) (*RendererConfig, error) {
	cfg := Default()
	// a file that names pool sizes replaces the whole default list
	cfg.PoolSizes = nil
	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, errors.Wrapf(err, "line %d column %d", row, col)
		}
		return nil, err
	}
	if len(cfg.PoolSizes) == 0 {
		cfg.PoolSizes = DefaultPoolSizes()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *RendererConfig) Validate() error {
	if c.SetsPerPool == 0 {
		return errors.New("sets_per_pool must be > 0")
	}
	seen := make(map[string]bool, len(c.PoolSizes))
	for _, ps := range c.PoolSizes {
		if ps.Type == "" {
			return errors.New("pool_sizes entry without a type")
		}
		if ps.Multiplier <= 0 {
			return errors.Newf("pool size %q: multiplier must be > 0, got %v", ps.Type, ps.Multiplier)
		}
		if seen[ps.Type] {
			return errors.Newf("pool size %q listed twice", ps.Type)
		}
		seen[ps.Type] = true
	}
	if _, err := c.FenceTimeoutDuration(); err != nil {
		return err
	}
	return nil
}

// FenceTimeoutDuration returns the parsed fence timeout; 0 means no timeout.
func (c *RendererConfig) FenceTimeoutDuration() (time.Duration, error) {
	if c.FenceTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.FenceTimeout)
	if err != nil {
		return 0, errors.Wrapf(err, "fence_timeout %q", c.FenceTimeout)
	}
	if d < 0 {
		return 0, errors.Newf("fence_timeout must not be negative, got %s", d)
	}
	return d, nil
}

// Encode renders the config back to TOML.
func (c *RendererConfig) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
