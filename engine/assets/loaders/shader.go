package loaders

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/array/engine/renderer/metadata"
)

// SpirvMagic is the first word of every SPIR-V module.
const SpirvMagic uint32 = 0x07230203

type ShaderLoader struct{}

// Load reads a compiled SPIR-V stage and checks its header.
func (sl *ShaderLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 4 || len(data)%4 != 0 {
		return nil, fmt.Errorf("shader %s: %d bytes is not a whole number of words", path, len(data))
	}
	if magic := binary.LittleEndian.Uint32(data); magic != SpirvMagic {
		return nil, fmt.Errorf("shader %s: bad SPIR-V magic 0x%08x", path, magic)
	}
	return &metadata.Resource{
		Name:         StageName(path),
		FullPath:     path,
		ResourceType: metadata.ResourceTypeShader,
		DataSize:     uint64(len(data)),
		Data:         data,
	}, nil
}

func (sl *ShaderLoader) Unload(*metadata.Resource) error {
	return nil
}

// StageName maps "shaders/sdf.frag.spv" to "sdf.frag".
func StageName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".spv")
}
