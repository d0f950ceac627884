package components

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/spaghettifunk/array/engine/math"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
)

const pointVertexSize = 28

type PointVertex struct {
	Position math.Vec3
	Color    math.Vec4
}

// SortPointsByDepth orders points far to near from eye so alpha blending
// composites correctly. Equal distances keep their order.
func SortPointsByDepth(points []PointVertex, eye math.Vec3) {
	slices.SortStableFunc(points, func(a, b PointVertex) int {
		return cmp.Compare(b.Position.DistanceSquared(eye), a.Position.DistanceSquared(eye))
	})
}

// Points draws user placed points. Each frame in flight owns a vertex buffer.
// Add invalidates all of them, they are reallocated at their next use.
type Points struct {
	device   metadata.Device
	pipeline metadata.Pipeline

	mu         sync.Mutex
	points     []PointVertex
	generation uint64

	buffers     []metadata.Buffer
	generations []uint64
	frames      uint64

	current metadata.Buffer
	count   int
	scratch []byte
}

func NewPoints(setup Setup) (*Points, error) {
	desc := setup.pipeline("PointPipeline", "point.vert", "point.frag",
		metadata.NewPackedVertexLayout(metadata.VertexFormatFloat3, metadata.VertexFormatFloat4))
	desc.Topology = metadata.PrimitiveTypePoint
	desc.CullMode = metadata.FaceCullModeNone
	desc.DepthCompare = metadata.CompareFunctionLessEqual
	desc.DepthWriteEnabled = true
	desc.Blending = metadata.AlphaBlending

	pipeline, err := setup.Device.NewRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("points: %w", err)
	}
	inFlight := setup.InFlight
	if inFlight < 1 {
		inFlight = 1
	}
	return &Points{
		device:      setup.Device,
		pipeline:    pipeline,
		buffers:     make([]metadata.Buffer, inFlight),
		generations: make([]uint64, inFlight),
	}, nil
}

func (p *Points) Name() string {
	return "Points"
}

// Add appends a point. Safe to call from any goroutine.
func (p *Points) Add(position math.Vec3, color math.Vec4) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.points = append(p.points, PointVertex{Position: position, Color: color})
	p.generation++
}

func (p *Points) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.points)
}

// Snapshot returns the points in their current draw order.
func (p *Points) Snapshot() []PointVertex {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.points)
}

func (p *Points) Update(ctx FrameContext) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := int(p.frames % uint64(len(p.buffers)))
	p.frames++
	p.current = nil
	p.count = 0
	if len(p.points) == 0 {
		return nil
	}

	SortPointsByDepth(p.points, ctx.Frame.Camera.Position())

	if p.buffers[idx] == nil || p.generations[idx] != p.generation {
		buf, err := p.device.NewBuffer(fmt.Sprintf("PointVertices%d", idx), len(p.points)*pointVertexSize, metadata.BufferUsageVertex)
		if err != nil {
			return fmt.Errorf("points: %w", err)
		}
		if old := p.buffers[idx]; old != nil {
			ctx.Resources.Retain(old)
		}
		p.buffers[idx] = buf
		p.generations[idx] = p.generation
	}

	p.scratch = p.scratch[:0]
	for _, v := range p.points {
		p.scratch = packFloats(p.scratch, v.Position.X, v.Position.Y, v.Position.Z, v.Color.X, v.Color.Y, v.Color.Z, v.Color.W)
	}
	if err := p.buffers[idx].Write(0, p.scratch); err != nil {
		return fmt.Errorf("points: %w", err)
	}
	p.current = p.buffers[idx]
	p.count = len(p.points)
	return nil
}

func (p *Points) Draw(enc metadata.RenderCommandEncoder, ctx FrameContext) {
	if p.count == 0 {
		return
	}
	enc.PushDebugGroup("DrawPoints")
	enc.SetRenderPipeline(p.pipeline)
	enc.SetVertexBuffer(p.current, 0, 0)
	ctx.BindShared(enc)
	enc.Draw(0, p.count, 1)
	enc.PopDebugGroup()
}

func (p *Points) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, b := range p.buffers {
		if b != nil {
			b.Release()
			p.buffers[i] = nil
		}
	}
	p.pipeline.Release()
}
