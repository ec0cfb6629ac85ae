package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ember.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[application]
name = "Ember"
pos_x = 100
pos_y = 100
width = 800
height = 600

[renderer]
debug = true
present_mode = "mailbox"
vertex_shader = "shaders/vert.spv"
fragment_shader = "shaders/frag.spv"
watch_shaders = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Ember", cfg.Application.Name)
	assert.Equal(t, uint32(800), cfg.Application.StartWidth)
	assert.Equal(t, uint32(600), cfg.Application.StartHeight)
	assert.True(t, cfg.Renderer.Debug)
	assert.Equal(t, "mailbox", cfg.Renderer.PresentMode)
	assert.True(t, cfg.Renderer.WatchShaders)
}

func TestLoadDefaultsPresentMode(t *testing.T) {
	path := writeConfig(t, `
[application]
name = "Ember"
width = 800
height = 600

[renderer]
vertex_shader = "shaders/vert.spv"
fragment_shader = "shaders/frag.spv"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fifo", cfg.Renderer.PresentMode)
}

func TestLoadRejectsZeroWindow(t *testing.T) {
	path := writeConfig(t, `
[application]
name = "Ember"
width = 0
height = 600

[renderer]
vertex_shader = "shaders/vert.spv"
fragment_shader = "shaders/frag.spv"
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsUnknownPresentMode(t *testing.T) {
	path := writeConfig(t, `
[application]
name = "Ember"
width = 800
height = 600

[renderer]
present_mode = "vsync"
vertex_shader = "shaders/vert.spv"
fragment_shader = "shaders/frag.spv"
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestNewRequiresShaders(t *testing.T) {
	_, err := New("Ember", 800, 600, "", "")
	require.Error(t, err)

	cfg, err := New("Ember", 800, 600, "v.spv", "f.spv")
	require.NoError(t, err)
	assert.Equal(t, "fifo", cfg.Renderer.PresentMode)
}
