package headless

import (
	"sync"

	"github.com/spaghettifunk/array/engine/math"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
)

type Drawable struct {
	ID   int
	size math.Vec2
	dest *Destination
}

func (d *Drawable) Size() math.Vec2 {
	return d.size
}

// Destination hands out an in-memory drawable per frame. Withholding drawables
// simulates a surface that is not ready.
type Destination struct {
	mu        sync.Mutex
	size      math.Vec2
	available bool
	withheld  bool
	current   *Drawable
	next      int
}

func NewDestination(size math.Vec2) *Destination {
	return &Destination{size: size, available: true}
}

func (d *Destination) ColorPixelFormat() metadata.PixelFormat {
	return metadata.PixelFormatBGRA8Unorm
}

func (d *Destination) DepthStencilPixelFormat() metadata.PixelFormat {
	return metadata.PixelFormatDepth32FloatStencil8
}

func (d *Destination) SampleCount() int {
	return 1
}

func (d *Destination) DrawableSize() math.Vec2 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size
}

func (d *Destination) SetDrawableSize(size math.Vec2) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.size = size
}

func (d *Destination) SetDrawableAvailable(available bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.available = available
	if !available {
		d.current = nil
	}
}

// SetDrawableWithheld keeps handing out render passes while CurrentDrawable
// returns nil, the way a surface can lose its image between the two calls.
func (d *Destination) SetDrawableWithheld(withheld bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.withheld = withheld
}

func (d *Destination) CurrentRenderPass() *metadata.RenderPassDescriptor {
	drawable := d.acquire()
	if drawable == nil {
		return nil
	}
	return &metadata.RenderPassDescriptor{
		Drawable:    drawable,
		ClearColour: math.NewVec4(0, 0, 0, 1),
		ClearDepth:  1,
	}
}

func (d *Destination) CurrentDrawable() metadata.Drawable {
	d.mu.Lock()
	withheld := d.withheld
	d.mu.Unlock()
	if withheld {
		return nil
	}
	drawable := d.acquire()
	if drawable == nil {
		return nil
	}
	return drawable
}

func (d *Destination) acquire() *Drawable {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.available {
		return nil
	}
	if d.current == nil {
		d.current = &Drawable{ID: d.next, size: d.size, dest: d}
		d.next++
	}
	return d.current
}

// retire drops the current drawable once presented, the next request gets a new one.
func (d *Destination) retire(drawable *Drawable) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if drawable == d.current {
		d.current = nil
	}
}
