package renderer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/math"
	"github.com/spaghettifunk/array/engine/renderer/components"
	"github.com/spaghettifunk/array/engine/renderer/frame"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
	"github.com/spaghettifunk/array/engine/renderer/uniforms"
	"github.com/spaghettifunk/array/engine/tracking"
)

// MaxBuffersInFlight is the default number of frames the CPU may run ahead
// of the GPU.
const MaxBuffersInFlight = 3

type DisplayMode int32

const (
	DisplayCubes DisplayMode = iota
	DisplayPoints
	DisplayBoth
)

func (m DisplayMode) String() string {
	switch m {
	case DisplayCubes:
		return "cubes"
	case DisplayPoints:
		return "points"
	case DisplayBoth:
		return "both"
	default:
		return fmt.Sprintf("DisplayMode(%d)", m)
	}
}

func ParseDisplayMode(s string) (DisplayMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cubes", "anchors", "":
		return DisplayCubes, nil
	case "points":
		return DisplayPoints, nil
	case "both":
		return DisplayBoth, nil
	default:
		return 0, fmt.Errorf("display mode %q: %w", s, core.ErrInvalidConfig)
	}
}

type layer int

const (
	layerCapturedImage layer = iota
	layerAnchors
	layerPoints
	layerSDF
)

// drawOrder lists, per display mode, the layers encoded into a frame. The
// camera image is always first and the SDF always last.
var drawOrder = map[DisplayMode][]layer{
	DisplayCubes:  {layerCapturedImage, layerAnchors, layerSDF},
	DisplayPoints: {layerCapturedImage, layerPoints, layerSDF},
	DisplayBoth:   {layerCapturedImage, layerAnchors, layerPoints, layerSDF},
}

// FrameSource hands out the latest tracking frame, nil when there is none.
type FrameSource interface {
	CurrentFrame() *tracking.Frame
}

type Options struct {
	// MaxBuffersInFlight sizes both the admission gate and every uniform ring.
	MaxBuffersInFlight int
	DisplayMode        DisplayMode
}

// Renderer encodes one frame per Draw call. Draw, Resize and Close must be
// called from the same goroutine, the remaining setters are safe anywhere.
type Renderer struct {
	device      metadata.Device
	destination metadata.RenderDestination
	source      FrameSource
	queue       metadata.CommandQueue

	gate   *frame.Gate
	shared *frame.Ring[uniforms.SharedFrameUniforms]

	layers     map[layer]components.Component
	components []components.Component
	points     *components.Points

	mode           atomic.Int32
	mu             sync.Mutex
	objectPosition math.Vec3

	drawableSize math.Vec2
	frameIndex   uint64
	closed       bool
}

func New(device metadata.Device, destination metadata.RenderDestination, source FrameSource, opts Options) (*Renderer, error) {
	inFlight := opts.MaxBuffersInFlight
	if inFlight == 0 {
		inFlight = MaxBuffersInFlight
	}
	if inFlight < 1 {
		return nil, fmt.Errorf("max buffers in flight %d: %w", inFlight, core.ErrInvalidConfig)
	}
	if _, ok := drawOrder[opts.DisplayMode]; !ok {
		return nil, fmt.Errorf("display mode %s: %w", opts.DisplayMode, core.ErrInvalidConfig)
	}

	shared, err := frame.NewRing[uniforms.SharedFrameUniforms](device, "SharedUniforms", inFlight, metadata.BufferUsageUniform)
	if err != nil {
		return nil, err
	}
	r := &Renderer{
		device:       device,
		destination:  destination,
		source:       source,
		queue:        device.CommandQueue(),
		gate:         frame.NewGate(inFlight),
		shared:       shared,
		layers:       make(map[layer]components.Component),
		drawableSize: destination.DrawableSize(),
	}
	r.mode.Store(int32(opts.DisplayMode))

	setup := components.Setup{Device: device, Destination: destination, InFlight: inFlight}
	image, err := components.NewCapturedImage(setup)
	if err != nil {
		r.release()
		return nil, err
	}
	r.add(layerCapturedImage, image)

	anchors, err := components.NewAnchors(setup)
	if err != nil {
		r.release()
		return nil, err
	}
	r.add(layerAnchors, anchors)

	points, err := components.NewPoints(setup)
	if err != nil {
		r.release()
		return nil, err
	}
	r.add(layerPoints, points)
	r.points = points

	sdf, err := components.NewSDF(setup)
	if err != nil {
		r.release()
		return nil, err
	}
	r.add(layerSDF, sdf)

	core.LogInfo("renderer ready on %s: %d frames in flight, display mode %s", device.Name(), inFlight, opts.DisplayMode)
	return r, nil
}

func (r *Renderer) add(l layer, c components.Component) {
	r.layers[l] = c
	r.components = append(r.components, c)
}

// Draw encodes and commits one frame. It blocks while the GPU is
// MaxBuffersInFlight frames behind. When a frame is skipped the command buffer
// is still committed and the skip reason is returned.
func (r *Renderer) Draw() error {
	if r.closed {
		return core.ErrClosed
	}
	r.gate.Acquire()

	cmd, err := r.queue.CommandBuffer(fmt.Sprintf("Frame%d", r.frameIndex))
	if err != nil {
		r.gate.Release()
		return fmt.Errorf("frame %d: %w", r.frameIndex, err)
	}
	resources := frame.NewBundle()
	done := sync.OnceFunc(func() {
		resources.Release()
		r.gate.Release()
	})
	cmd.AddCompletedHandler(func(metadata.CommandBuffer) { done() })

	slot := r.shared.Next()
	index := r.frameIndex
	r.frameIndex++

	current := r.source.CurrentFrame()
	if current == nil {
		return r.skip(cmd, done, core.ErrNoCurrentFrame)
	}

	shared := uniforms.ComputeShared(current.Camera, current.LightEstimate, r.drawableSize, r.ObjectPosition())
	if err := slot.Write(shared); err != nil {
		return r.skip(cmd, done, err)
	}
	ctx := components.FrameContext{
		Index:        index,
		Frame:        current,
		DrawableSize: r.drawableSize,
		Shared:       shared,
		SharedSlot:   slot,
		Resources:    resources,
	}
	for _, c := range r.components {
		if err := c.Update(ctx); err != nil {
			core.LogDebug("frame %d: %s update: %s", index, c.Name(), err)
		}
	}

	pass := r.destination.CurrentRenderPass()
	if pass == nil {
		return r.skip(cmd, done, core.ErrNoRenderPass)
	}
	drawable := r.destination.CurrentDrawable()
	if drawable == nil {
		return r.skip(cmd, done, core.ErrNoDrawable)
	}
	enc, err := cmd.RenderCommandEncoder(pass)
	if err != nil {
		return r.skip(cmd, done, err)
	}

	for _, l := range drawOrder[r.DisplayMode()] {
		r.layers[l].Draw(enc, ctx)
	}
	enc.EndEncoding()

	cmd.Present(drawable)
	if err := cmd.Commit(); err != nil {
		done()
		return fmt.Errorf("frame %d: %w", index, err)
	}
	return nil
}

// skip commits cmd without any work so its completion still opens the gate.
func (r *Renderer) skip(cmd metadata.CommandBuffer, done func(), reason error) error {
	if err := cmd.Commit(); err != nil {
		done()
		return errors.Join(reason, err)
	}
	return reason
}

// IsSkipped reports whether err only means the frame had nothing to show.
func IsSkipped(err error) bool {
	return errors.Is(err, core.ErrNoCurrentFrame) ||
		errors.Is(err, core.ErrNoRenderPass) ||
		errors.Is(err, core.ErrNoDrawable)
}

// Resize forwards a new drawable size to viewport dependent components.
func (r *Renderer) Resize(size math.Vec2) {
	if size.X <= 0 || size.Y <= 0 {
		return
	}
	r.drawableSize = size
	for _, c := range r.components {
		if rs, ok := c.(components.Resizer); ok {
			rs.Resize(size)
		}
	}
	core.LogDebug("renderer resized to %.0fx%.0f", size.X, size.Y)
}

func (r *Renderer) DrawableSize() math.Vec2 {
	return r.drawableSize
}

func (r *Renderer) SetDisplayMode(mode DisplayMode) {
	if _, ok := drawOrder[mode]; !ok {
		core.LogWarn("ignoring unknown display mode %d", mode)
		return
	}
	if DisplayMode(r.mode.Swap(int32(mode))) != mode {
		core.LogInfo("display mode set to %s", mode)
	}
}

func (r *Renderer) DisplayMode() DisplayMode {
	return DisplayMode(r.mode.Load())
}

func (r *Renderer) SetObjectPosition(position math.Vec3) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objectPosition = position
}

func (r *Renderer) ObjectPosition() math.Vec3 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.objectPosition
}

func (r *Renderer) AddPoint(position math.Vec3, color math.Vec4) {
	r.points.Add(position, color)
}

// Outstanding is the number of frames the GPU has not completed yet.
func (r *Renderer) Outstanding() int {
	return r.gate.Outstanding()
}

func (r *Renderer) MaxBuffersInFlight() int {
	return r.gate.Capacity()
}

// Close waits for every frame in flight and frees the GPU resources. When ctx
// ends first the resources are leaked rather than freed under the GPU.
func (r *Renderer) Close(ctx context.Context) error {
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.gate.Drain(ctx); err != nil {
		return fmt.Errorf("renderer close: %w", err)
	}
	r.release()
	return nil
}

func (r *Renderer) release() {
	for i := len(r.components) - 1; i >= 0; i-- {
		r.components[i].Release()
	}
	r.components = nil
	r.shared.Release()
}
