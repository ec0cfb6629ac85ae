package config

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// ApplicationConfig describes the window the application opens.
// Every field is explicit; there is no silent defaulting of anything that
// reaches the swapchain.
type ApplicationConfig struct {
	Name        string `toml:"name"`
	StartPosX   uint32 `toml:"pos_x"`
	StartPosY   uint32 `toml:"pos_y"`
	StartWidth  uint32 `toml:"width"`
	StartHeight uint32 `toml:"height"`
}

// RendererConfig carries the presentation and pipeline settings.
type RendererConfig struct {
	// Enables the validation layer and the debug messenger.
	Debug bool `toml:"debug"`
	// Preferred present mode: "fifo", "mailbox" or "immediate". FIFO is
	// always available and is the fallback when the preference is unsupported.
	PresentMode string `toml:"present_mode"`
	// Paths to the compiled SPIR-V shader binaries.
	VertexShader   string `toml:"vertex_shader"`
	FragmentShader string `toml:"fragment_shader"`
	// Rebuild the pipeline when a shader binary changes on disk.
	WatchShaders bool `toml:"watch_shaders"`
}

type Config struct {
	Application ApplicationConfig `toml:"application"`
	Renderer    RendererConfig    `toml:"renderer"`
}

// New builds a configuration from the fields that have no sensible default.
func New(name string, width, height uint32, vertexShader, fragmentShader string) (*Config, error) {
	c := &Config{
		Application: ApplicationConfig{
			Name:        name,
			StartWidth:  width,
			StartHeight: height,
		},
		Renderer: RendererConfig{
			PresentMode:    "fifo",
			VertexShader:   vertexShader,
			FragmentShader: fragmentShader,
		},
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads a TOML configuration file and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	c := &Config{}
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if c.Renderer.PresentMode == "" {
		c.Renderer.PresentMode = "fifo"
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.Application.Name == "" {
		return fmt.Errorf("config: application name is required")
	}
	if c.Application.StartWidth == 0 || c.Application.StartHeight == 0 {
		return fmt.Errorf("config: window size must be nonzero, got %dx%d",
			c.Application.StartWidth, c.Application.StartHeight)
	}
	switch c.Renderer.PresentMode {
	case "fifo", "mailbox", "immediate":
	default:
		return fmt.Errorf("config: unknown present mode %q", c.Renderer.PresentMode)
	}
	if c.Renderer.VertexShader == "" || c.Renderer.FragmentShader == "" {
		return fmt.Errorf("config: vertex and fragment shader paths are required")
	}
	return nil
}
