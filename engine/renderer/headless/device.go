// Package headless is a CPU implementation of the renderer metadata interfaces.
// It records every encoded command instead of executing it, which makes it
// usable on machines without a GPU and in tests.
package headless

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/math"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
)

type CompletionMode int

const (
	// CompletionAuto completes committed buffers on a worker goroutine.
	CompletionAuto CompletionMode = iota
	// CompletionManual waits for CompleteNext.
	CompletionManual
)

type Options struct {
	Name                string
	DrawableSize        math.Vec2
	MinUniformAlignment int
	Completion          CompletionMode
	// Latency delays every automatic completion.
	Latency time.Duration
	// MaxPending bounds committed but not completed buffers.
	MaxPending int
	// Shaders, when set, must resolve every pipeline function.
	Shaders metadata.ShaderLibrary
}

func (o *Options) defaults() {
	if o.Name == "" {
		o.Name = "headless"
	}
	if o.DrawableSize.X == 0 || o.DrawableSize.Y == 0 {
		o.DrawableSize = math.NewVec2(1280, 720)
	}
	if o.MinUniformAlignment == 0 {
		o.MinUniformAlignment = 256
	}
	if o.MaxPending == 0 {
		o.MaxPending = 64
	}
}

type Device struct {
	opts  Options
	queue *CommandQueue

	mu       sync.Mutex
	buffers  int
	textures int
	released atomic.Bool
}

func NewDevice(opts Options) *Device {
	opts.defaults()
	d := &Device{opts: opts}
	d.queue = newCommandQueue(opts)
	core.LogDebug("headless device %s created (completion=%d, latency=%s)", opts.Name, opts.Completion, opts.Latency)
	return d
}

func (d *Device) Name() string {
	return d.opts.Name
}

func (d *Device) NewBuffer(label string, size int, usage metadata.BufferUsage) (metadata.Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("buffer %s: size %d: %w", label, size, core.ErrOutOfBounds)
	}
	d.mu.Lock()
	d.buffers++
	d.mu.Unlock()
	return &Buffer{label: label, usage: usage, data: make([]byte, size)}, nil
}

func (d *Device) NewBufferWithBytes(label string, data []byte, usage metadata.BufferUsage) (metadata.Buffer, error) {
	buf, err := d.NewBuffer(label, len(data), usage)
	if err != nil {
		return nil, err
	}
	if err := buf.Write(0, data); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *Device) NewTexture(desc metadata.TextureDescriptor) (metadata.Texture, error) {
	bpp := desc.Format.BytesPerPixel()
	if bpp == 0 || desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("texture %s: %dx%d %s not supported", desc.Label, desc.Width, desc.Height, desc.Format)
	}
	d.mu.Lock()
	d.textures++
	d.mu.Unlock()
	return &Texture{desc: desc, data: make([]byte, desc.Width*desc.Height*bpp)}, nil
}

func (d *Device) NewRenderPipeline(desc *metadata.PipelineDescriptor) (metadata.Pipeline, error) {
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrPipelineCreation, err)
	}
	if d.opts.Shaders != nil {
		for _, fn := range []string{desc.VertexFunction, desc.FragmentFunction} {
			if _, err := d.opts.Shaders.Shader(fn); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", core.ErrPipelineCreation, desc.Label, err)
			}
		}
	}
	cp := *desc
	return &Pipeline{desc: cp}, nil
}

func (d *Device) CommandQueue() metadata.CommandQueue {
	return d.queue
}

// Queue exposes the concrete queue for completion control.
func (d *Device) Queue() *CommandQueue {
	return d.queue
}

func (d *Device) MinUniformBufferOffsetAlignment() int {
	return d.opts.MinUniformAlignment
}

// WaitIdle blocks until every committed buffer completed. In manual mode it
// completes them itself.
func (d *Device) WaitIdle() error {
	if d.opts.Completion == CompletionManual {
		d.queue.CompleteAll()
		return nil
	}
	d.queue.waitIdle()
	return nil
}

func (d *Device) Release() {
	if d.released.Swap(true) {
		return
	}
	_ = d.WaitIdle()
	d.queue.close()
}

type Buffer struct {
	label    string
	usage    metadata.BufferUsage
	mu       sync.Mutex
	data     []byte
	writes   int
	released bool
}

func (b *Buffer) Label() string { return b.label }
func (b *Buffer) Size() int     { return len(b.data) }

func (b *Buffer) Write(offset int, data []byte) error {
	if offset < 0 || offset+len(data) > len(b.data) {
		return fmt.Errorf("buffer %s: [%d, %d) of %d: %w", b.label, offset, offset+len(data), len(b.data), core.ErrOutOfBounds)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	copy(b.data[offset:], data)
	b.writes++
	return nil
}

// Bytes returns a copy of the region.
func (b *Buffer) Bytes(offset, size int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, size)
	copy(out, b.data[offset:offset+size])
	return out
}

func (b *Buffer) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

func (b *Buffer) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

func (b *Buffer) Release() {
	b.mu.Lock()
	b.released = true
	b.mu.Unlock()
}

type Texture struct {
	desc     metadata.TextureDescriptor
	mu       sync.Mutex
	data     []byte
	replaced int
	released bool
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
	for y := 0; y < t.desc.Height; y++ {
		copy(t.data[y*rowBytes:(y+1)*rowBytes], data[y*bytesPerRow:y*bytesPerRow+rowBytes])
	}
	t.replaced++
	return nil
}

func (t *Texture) Replaced() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.replaced
}

// Pixels returns a copy of the tightly packed contents.
func (t *Texture) Pixels() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.data...)
}

func (t *Texture) Released() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}

func (t *Texture) Release() {
	t.mu.Lock()
	t.released = true
	t.mu.Unlock()
}

type Pipeline struct {
	desc metadata.PipelineDescriptor
}

func (p *Pipeline) Label() string { return p.desc.Label }
func (p *Pipeline) Release()      {}

func (p *Pipeline) Descriptor() metadata.PipelineDescriptor {
	return p.desc
}
