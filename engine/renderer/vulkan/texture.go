package vulkan

import (
	"fmt"
	"slices"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
)

var textureFormats = map[metadata.PixelFormat]vk.Format{
	metadata.PixelFormatR8Unorm:        vk.FormatR8Unorm,
	metadata.PixelFormatRG8Unorm:       vk.FormatR8g8Unorm,
	metadata.PixelFormatRGBA8Unorm:     vk.FormatR8g8b8a8Unorm,
	metadata.PixelFormatBGRA8Unorm:     vk.FormatB8g8r8a8Unorm,
	metadata.PixelFormatBGRA8UnormSRGB: vk.FormatB8g8r8a8Srgb,
}

// Texture is a sampled device local image. Replace stages the pixels in a
// mapped buffer and the copy is recorded into the next submission.
type Texture struct {
	desc    metadata.TextureDescriptor
	context *VulkanContext
	uploads *uploadQueue

	image   *VulkanImage
	staging *Buffer

	mu       sync.Mutex
	released bool
}

func TextureCreate(context *VulkanContext, uploads *uploadQueue, desc metadata.TextureDescriptor) (*Texture, error) {
	format, ok := textureFormats[desc.Format]
	bpp := desc.Format.BytesPerPixel()
	if !ok || bpp == 0 || desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("texture %s: %dx%d %s not supported", desc.Label, desc.Width, desc.Height, desc.Format)
	}

	image, err := ImageCreate(
		context,
		uint32(desc.Width),
		uint32(desc.Height),
		format,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)|vk.ImageUsageFlags(vk.ImageUsageSampledBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true,
		vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", desc.Label, err)
	}

	staging, err := bufferCreate(context, desc.Label+" staging", desc.Width*desc.Height*bpp, metadata.BufferUsageVertex,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit))
	if err != nil {
		image.Destroy(context)
		return nil, fmt.Errorf("texture %s: %w", desc.Label, err)
	}

	return &Texture{
		desc:    desc,
		context: context,
		uploads: uploads,
		image:   image,
		staging: staging,
	}, nil
}

func (t *Texture) Label() string                { return t.desc.Label }
func (t *Texture) Width() int                   { return t.desc.Width }
func (t *Texture) Height() int                  { return t.desc.Height }
func (t *Texture) Format() metadata.PixelFormat { return t.desc.Format }

func (t *Texture) Replace(data []byte, bytesPerRow int) error {
	rowBytes := t.desc.Width * t.desc.Format.BytesPerPixel()
	if bytesPerRow < rowBytes || len(data) < bytesPerRow*(t.desc.Height-1)+rowBytes {
		return fmt.Errorf("texture %s: %d bytes at %d per row: %w", t.desc.Label, len(data), bytesPerRow, core.ErrOutOfBounds)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return fmt.Errorf("texture %s: %w", t.desc.Label, core.ErrClosed)
	}
	if bytesPerRow == rowBytes {
		if err := t.staging.Write(0, data[:rowBytes*t.desc.Height]); err != nil {
			return err
		}
	} else {
		for y := 0; y < t.desc.Height; y++ {
			if err := t.staging.Write(y*rowBytes, data[y*bytesPerRow:y*bytesPerRow+rowBytes]); err != nil {
				return err
			}
		}
	}
	t.uploads.add(t)
	return nil
}

// recordUpload copies the staging buffer into the image and leaves it ready
// for sampling.
func (t *Texture) recordUpload(cmd vk.CommandBuffer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return
	}
	t.image.TransitionLayout(cmd, vk.ImageLayoutTransferDstOptimal)
	t.image.CopyFromBuffer(cmd, t.staging.Handle)
	t.image.TransitionLayout(cmd, vk.ImageLayoutShaderReadOnlyOptimal)
}

func (t *Texture) Release() {
	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		return
	}
	t.released = true
	t.mu.Unlock()

	t.uploads.remove(t)
	t.staging.Release()
	t.image.Destroy(t.context)
}

// uploadQueue collects textures replaced since the last submission.
type uploadQueue struct {
	mu      sync.Mutex
	pending []*Texture
}

func (u *uploadQueue) add(t *Texture) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !slices.Contains(u.pending, t) {
		u.pending = append(u.pending, t)
	}
}

func (u *uploadQueue) remove(t *Texture) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pending = slices.DeleteFunc(u.pending, func(p *Texture) bool { return p == t })
}

// record drains the queue into cmd. It must run outside a render pass.
func (u *uploadQueue) record(cmd vk.CommandBuffer) int {
	u.mu.Lock()
	pending := u.pending
	u.pending = nil
	u.mu.Unlock()
	for _, t := range pending {
		t.recordUpload(cmd)
	}
	return len(pending)
}
