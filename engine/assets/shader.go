package assets

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/ember-engine/ember/engine/core"
)

// SPIR-V modules start with this magic word and are a whole number of
// 32-bit words. The contents are otherwise opaque to the engine.
const spirvMagic uint32 = 0x07230203

// LoadSPIRV reads a compiled shader binary and sanity-checks it. Anything
// beyond the magic and word alignment is left to the driver to validate.
func LoadSPIRV(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read shader binary %s: %w", path, err)
	}
	if len(data) < 4 || len(data)%4 != 0 {
		return nil, fmt.Errorf("shader binary %s is not a whole number of SPIR-V words (%d bytes)", path, len(data))
	}
	if binary.LittleEndian.Uint32(data) != spirvMagic {
		return nil, fmt.Errorf("shader binary %s has no SPIR-V magic word", path)
	}
	return data, nil
}

// ShaderSet is the pair of compiled stages the builtin pipeline consumes.
type ShaderSet struct {
	Vertex   []byte
	Fragment []byte
}

func LoadShaderSet(vertexPath, fragmentPath string) (*ShaderSet, error) {
	vertex, err := LoadSPIRV(vertexPath)
	if err != nil {
		return nil, err
	}
	fragment, err := LoadSPIRV(fragmentPath)
	if err != nil {
		return nil, err
	}
	return &ShaderSet{Vertex: vertex, Fragment: fragment}, nil
}

// ShaderWatcher fires a shaders-reloaded event when a watched binary changes
// on disk. The event is consumed by the engine loop between frames; the
// pipeline is never rebuilt mid-frame.
type ShaderWatcher struct {
	fsnotify *fsnotify.Watcher
	watched  map[string]bool
	done     chan struct{}
}

func NewShaderWatcher(paths ...string) (*ShaderWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	sw := &ShaderWatcher{
		fsnotify: fsWatch,
		watched:  make(map[string]bool),
		done:     make(chan struct{}),
	}

	// Watch the containing directories: editors and compilers replace files
	// rather than rewriting them in place.
	dirs := make(map[string]bool)
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			fsWatch.Close()
			return nil, err
		}
		sw.watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsWatch.Add(dir); err != nil {
			fsWatch.Close()
			return nil, fmt.Errorf("failed to watch shader directory %s: %w", dir, err)
		}
	}

	go sw.start()
	return sw, nil
}

func (sw *ShaderWatcher) start() {
	for {
		select {
		case <-sw.done:
			return
		case event, ok := <-sw.fsnotify.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !sw.watched[abs] {
				continue
			}
			core.LogInfo("Shader binary changed on disk: %s", abs)
			core.EventFire(core.EventContext{
				Type: core.EVENT_CODE_SHADERS_RELOADED,
				Data: abs,
			})
		case err, ok := <-sw.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogWarn("shader watcher error: %s", err)
		}
	}
}

func (sw *ShaderWatcher) Close() error {
	close(sw.done)
	return sw.fsnotify.Close()
}
