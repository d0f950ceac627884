package components

import (
	"fmt"
	"image"
	"sync"

	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/math"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
)

// Quad corners in strip order, each position followed by its unrotated
// texture coordinate.
var imagePlaneVertices = [16]float32{
	-1, -1, 0, 1,
	1, -1, 1, 1,
	-1, 1, 0, 0,
	1, 1, 1, 0,
}

// imageSlot is one Y + CbCr texture pair. A slot is in use from the Update
// that fills it until the frame that sampled it completes.
type imageSlot struct {
	mu      sync.Mutex
	y       metadata.Texture
	cbcr    metadata.Texture
	inUse   bool
	retired bool
}

func (s *imageSlot) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inUse || s.retired {
		return false
	}
	s.inUse = true
	return true
}

// Release hands the slot back once the GPU is done with it.
func (s *imageSlot) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inUse = false
	if s.retired {
		s.destroy()
	}
}

// retire frees the textures now, or on completion if a frame still samples them.
func (s *imageSlot) retire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retired = true
	if !s.inUse {
		s.destroy()
	}
}

func (s *imageSlot) destroy() {
	if s.y != nil {
		s.y.Release()
		s.y = nil
	}
	if s.cbcr != nil {
		s.cbcr.Release()
		s.cbcr = nil
	}
}

// CapturedImage draws the camera image behind everything else. The shader
// converts YCbCr to RGB.
type CapturedImage struct {
	setup    Setup
	pipeline metadata.Pipeline
	vertices metadata.Buffer

	slots     []*imageSlot
	next      int
	current   *imageSlot
	imageSize image.Point
	viewport  math.Vec2
	// texcoordsDirty is set by Resize and applied on the next Update, where a
	// frame bundle exists to keep the old vertex buffer alive.
	texcoordsDirty bool
	scratch        []byte
}

func NewCapturedImage(setup Setup) (*CapturedImage, error) {
	desc := setup.pipeline("CapturedImagePipeline", "captured_image.vert", "captured_image.frag",
		metadata.NewPackedVertexLayout(metadata.VertexFormatFloat2, metadata.VertexFormatFloat2))
	desc.Topology = metadata.PrimitiveTypeTriangleStrip
	desc.CullMode = metadata.FaceCullModeNone
	desc.DepthCompare = metadata.CompareFunctionAlways
	desc.DepthWriteEnabled = false

	pipeline, err := setup.Device.NewRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("captured image: %w", err)
	}
	vertices, err := setup.Device.NewBufferWithBytes("CapturedImageVertices", packFloats(nil, imagePlaneVertices[:]...), metadata.BufferUsageVertex)
	if err != nil {
		pipeline.Release()
		return nil, fmt.Errorf("captured image: %w", err)
	}
	return &CapturedImage{
		setup:    setup,
		pipeline: pipeline,
		vertices: vertices,
		viewport: setup.Destination.DrawableSize(),
	}, nil
}

func (c *CapturedImage) Name() string {
	return "CapturedImage"
}

func (c *CapturedImage) Resize(size math.Vec2) {
	c.viewport = size
	c.texcoordsDirty = true
}

func (c *CapturedImage) Update(ctx FrameContext) error {
	c.current = nil
	img := ctx.Frame.CapturedImage
	if img == nil || img.Rect.Empty() {
		return nil
	}

	size := img.Rect.Size()
	if size != c.imageSize || c.slots == nil {
		if err := c.resizeTextures(size, chromaSize(img)); err != nil {
			return err
		}
		c.texcoordsDirty = true
	}
	if c.texcoordsDirty {
		if err := c.updateTexcoords(ctx); err != nil {
			return err
		}
	}

	slot := c.freeSlot()
	if slot == nil {
		core.LogDebug("captured image: all %d texture slots busy, image skipped", len(c.slots))
		return nil
	}
	ctx.Resources.Retain(slot)

	y0 := img.YOffset(img.Rect.Min.X, img.Rect.Min.Y)
	if err := slot.y.Replace(img.Y[y0:], img.YStride); err != nil {
		return fmt.Errorf("captured image: luma: %w", err)
	}
	c.scratch = interleaveCbCr(c.scratch, img, slot.cbcr.Width(), slot.cbcr.Height())
	if err := slot.cbcr.Replace(c.scratch, slot.cbcr.Width()*2); err != nil {
		return fmt.Errorf("captured image: chroma: %w", err)
	}
	c.current = slot
	return nil
}

func (c *CapturedImage) Draw(enc metadata.RenderCommandEncoder, ctx FrameContext) {
	if c.current == nil {
		return
	}
	enc.PushDebugGroup("DrawCapturedImage")
	enc.SetRenderPipeline(c.pipeline)
	enc.SetVertexBuffer(c.vertices, 0, 0)
	enc.SetFragmentTexture(c.current.y, metadata.BindingTextureY)
	enc.SetFragmentTexture(c.current.cbcr, metadata.BindingTextureCbCr)
	enc.Draw(0, 4, 1)
	enc.PopDebugGroup()
}

func (c *CapturedImage) Release() {
	retireSlots(c.slots)
	c.slots = nil
	c.vertices.Release()
	c.pipeline.Release()
}

func (c *CapturedImage) freeSlot() *imageSlot {
	for i := range c.slots {
		idx := (c.next + i) % len(c.slots)
		if c.slots[idx].acquire() {
			c.next = (idx + 1) % len(c.slots)
			return c.slots[idx]
		}
	}
	return nil
}

func (c *CapturedImage) resizeTextures(luma, chroma image.Point) error {
	for _, s := range c.slots {
		s.retire()
	}
	c.slots = nil

	count := c.setup.InFlight
	if count < 1 {
		count = 1
	}
	slots := make([]*imageSlot, 0, count)
	for i := 0; i < count; i++ {
		y, err := c.setup.Device.NewTexture(metadata.TextureDescriptor{
			Label:  fmt.Sprintf("CapturedImageY%d", i),
			Format: metadata.PixelFormatR8Unorm,
			Width:  luma.X,
			Height: luma.Y,
		})
		if err != nil {
			retireSlots(slots)
			return fmt.Errorf("captured image: %w", err)
		}
		cbcr, err := c.setup.Device.NewTexture(metadata.TextureDescriptor{
			Label:  fmt.Sprintf("CapturedImageCbCr%d", i),
			Format: metadata.PixelFormatRG8Unorm,
			Width:  chroma.X,
			Height: chroma.Y,
		})
		if err != nil {
			y.Release()
			retireSlots(slots)
			return fmt.Errorf("captured image: %w", err)
		}
		slots = append(slots, &imageSlot{y: y, cbcr: cbcr})
	}
	c.slots = slots
	c.next = 0
	c.imageSize = luma
	core.LogDebug("captured image textures sized %dx%d (chroma %dx%d)", luma.X, luma.Y, chroma.X, chroma.Y)
	return nil
}

func retireSlots(slots []*imageSlot) {
	for _, s := range slots {
		s.retire()
	}
}

func (c *CapturedImage) updateTexcoords(ctx FrameContext) error {
	if c.imageSize.X == 0 || c.imageSize.Y == 0 {
		return nil
	}
	viewport := c.viewport
	if viewport.X == 0 || viewport.Y == 0 {
		viewport = ctx.DrawableSize
	}
	quad := AspectFillTexcoords(imagePlaneVertices, math.NewVec2(float32(c.imageSize.X), float32(c.imageSize.Y)), viewport)
	data := packFloats(nil, quad[:]...)
	vertices, err := c.setup.Device.NewBufferWithBytes("CapturedImageVertices", data, metadata.BufferUsageVertex)
	if err != nil {
		return fmt.Errorf("captured image: %w", err)
	}
	ctx.Resources.Retain(c.vertices)
	c.vertices = vertices
	c.texcoordsDirty = false
	return nil
}

// AspectFillTexcoords crops the texture coordinates of quad so an image of
// imageSize covers viewport without distortion.
func AspectFillTexcoords(quad [16]float32, imageSize, viewport math.Vec2) [16]float32 {
	if imageSize.Y == 0 || viewport.Y == 0 {
		return quad
	}
	imageAspect := imageSize.X / imageSize.Y
	viewAspect := viewport.X / viewport.Y

	scaleU, scaleV := float32(1), float32(1)
	if viewAspect > imageAspect {
		scaleV = imageAspect / viewAspect
	} else {
		scaleU = viewAspect / imageAspect
	}
	out := quad
	for i := 0; i < 4; i++ {
		u, v := &out[i*4+2], &out[i*4+3]
		*u = 0.5 + (*u-0.5)*scaleU
		*v = 0.5 + (*v-0.5)*scaleV
	}
	return out
}

func chromaSize(img *image.YCbCr) image.Point {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	switch img.SubsampleRatio {
	case image.YCbCrSubsampleRatio422:
		return image.Pt((w+1)/2, h)
	case image.YCbCrSubsampleRatio420:
		return image.Pt((w+1)/2, (h+1)/2)
	case image.YCbCrSubsampleRatio440:
		return image.Pt(w, (h+1)/2)
	case image.YCbCrSubsampleRatio411:
		return image.Pt((w+3)/4, h)
	case image.YCbCrSubsampleRatio410:
		return image.Pt((w+3)/4, (h+1)/2)
	default:
		return image.Pt(w, h)
	}
}

// interleaveCbCr packs the two chroma planes into CbCr pairs, w*h of them.
func interleaveCbCr(dst []byte, img *image.YCbCr, w, h int) []byte {
	dst = dst[:0]
	base := img.COffset(img.Rect.Min.X, img.Rect.Min.Y)
	for y := 0; y < h; y++ {
		row := base + y*img.CStride
		for x := 0; x < w; x++ {
			dst = append(dst, img.Cb[row+x], img.Cr[row+x])
		}
	}
	return dst
}
