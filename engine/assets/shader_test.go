package assets

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeShader(t *testing.T, name string, words []uint32) string {
	t.Helper()
	data := make([]byte, 0, len(words)*4)
	for _, w := range words {
		data = binary.LittleEndian.AppendUint32(data, w)
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadSPIRV(t *testing.T) {
	path := writeShader(t, "vert.spv", []uint32{spirvMagic, 0x00010000, 0, 1, 0})

	data, err := LoadSPIRV(path)
	require.NoError(t, err)
	assert.Len(t, data, 20)
	assert.Equal(t, spirvMagic, binary.LittleEndian.Uint32(data))
}

func TestLoadSPIRVRejectsBadMagic(t *testing.T) {
	path := writeShader(t, "vert.spv", []uint32{0xdeadbeef, 0x00010000})

	_, err := LoadSPIRV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "magic")
}

func TestLoadSPIRVRejectsTruncatedWords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vert.spv")
	data := binary.LittleEndian.AppendUint32(nil, spirvMagic)
	require.NoError(t, os.WriteFile(path, append(data, 0x01), 0o644))

	_, err := LoadSPIRV(path)
	require.Error(t, err)
}

func TestLoadSPIRVMissingFile(t *testing.T) {
	_, err := LoadSPIRV(filepath.Join(t.TempDir(), "missing.spv"))
	require.Error(t, err)
}

func TestLoadShaderSet(t *testing.T) {
	vert := writeShader(t, "vert.spv", []uint32{spirvMagic, 1})
	frag := writeShader(t, "frag.spv", []uint32{spirvMagic, 2})

	set, err := LoadShaderSet(vert, frag)
	require.NoError(t, err)
	assert.NotEmpty(t, set.Vertex)
	assert.NotEmpty(t, set.Fragment)

	_, err = LoadShaderSet(vert, filepath.Join(t.TempDir(), "missing.spv"))
	require.Error(t, err)
}
