package loaders

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	// decoders registered with image.Decode
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	"github.com/spaghettifunk/array/engine/renderer/metadata"
)

type ImageParams struct {
	// Size scales the decoded image, zero keeps the original size.
	Size  image.Point
	FlipY bool
}

type ImageLoader struct{}

func (il *ImageLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	var p ImageParams
	switch typed := params.(type) {
	case nil:
	case *ImageParams:
		p = *typed
	case ImageParams:
		p = typed
	default:
		return nil, fmt.Errorf("image loader: unexpected params %T", params)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	bounds := img.Bounds()
	size := bounds.Size()
	if p.Size.X > 0 && p.Size.Y > 0 {
		size = p.Size
	}
	rgba := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	if size == bounds.Size() {
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(rgba, rgba.Bounds(), img, bounds, draw.Src, nil)
	}
	if p.FlipY {
		flipRows(rgba)
	}

	return &metadata.Resource{
		Name:         strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + "." + format,
		FullPath:     path,
		ResourceType: metadata.ResourceTypeImage,
		DataSize:     uint64(len(rgba.Pix)),
		Data:         rgba,
	}, nil
}

func (il *ImageLoader) Unload(*metadata.Resource) error {
	return nil
}

func flipRows(img *image.RGBA) {
	h := img.Bounds().Dy()
	row := make([]byte, img.Stride)
	for y := 0; y < h/2; y++ {
		top := img.Pix[y*img.Stride : (y+1)*img.Stride]
		bottom := img.Pix[(h-1-y)*img.Stride : (h-y)*img.Stride]
		copy(row, top)
		copy(top, bottom)
		copy(bottom, row)
	}
}
