package loaders

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spaghettifunk/array/engine/renderer/metadata"
)

// BinaryLoader hands back the raw file contents.
type BinaryLoader struct {
	Type metadata.ResourceType
}

func (bl *BinaryLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	return &metadata.Resource{
		Name:         filepath.Base(path),
		FullPath:     path,
		ResourceType: bl.Type,
		DataSize:     uint64(len(buf)),
		Data:         buf,
	}, nil
}

func (bl *BinaryLoader) Unload(*metadata.Resource) error {
	return nil
}
