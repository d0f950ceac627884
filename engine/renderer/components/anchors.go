package components

import (
	"fmt"

	"github.com/spaghettifunk/array/engine/math"
	"github.com/spaghettifunk/array/engine/renderer/frame"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
	"github.com/spaghettifunk/array/engine/renderer/uniforms"
	"github.com/spaghettifunk/array/engine/tracking"
)

const AnchorMeshExtent float32 = 0.05

// flipZ converts anchor transforms from the right handed tracking convention
// to the left handed one of the geometry pipeline.
var flipZ = math.NewMat4Scale(math.NewVec3(1, 1, -1))

// SelectAnchors returns the newest max anchors, keeping their order.
func SelectAnchors(anchors []tracking.Anchor, max int) []tracking.Anchor {
	if max < 0 {
		max = 0
	}
	offset := len(anchors) - max
	if offset < 0 {
		offset = 0
	}
	return anchors[offset:]
}

// Anchors draws every tracked anchor as an instance of one icosahedron.
type Anchors struct {
	pipeline   metadata.Pipeline
	vertices   metadata.Buffer
	indices    metadata.Buffer
	indexCount int
	instances  *frame.Ring[uniforms.InstanceBlock]

	slot  frame.Slot[uniforms.InstanceBlock]
	count int
}

func NewAnchors(setup Setup) (*Anchors, error) {
	desc := setup.pipeline("AnchorPipeline", "anchor.vert", "anchor.frag",
		metadata.NewPackedVertexLayout(metadata.VertexFormatFloat3, metadata.VertexFormatFloat3))
	desc.Topology = metadata.PrimitiveTypeTriangle
	desc.CullMode = metadata.FaceCullModeBack
	desc.DepthCompare = metadata.CompareFunctionLess
	desc.DepthWriteEnabled = true

	pipeline, err := setup.Device.NewRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("anchors: %w", err)
	}

	verts, idx := math.GeometryGenerateIcosahedron(AnchorMeshExtent, true)
	data := make([]byte, 0, len(verts)*24)
	for _, v := range verts {
		data = packFloats(data, v.Position.X, v.Position.Y, v.Position.Z, v.Normal.X, v.Normal.Y, v.Normal.Z)
	}
	vertices, err := setup.Device.NewBufferWithBytes("AnchorVertices", data, metadata.BufferUsageVertex)
	if err != nil {
		pipeline.Release()
		return nil, fmt.Errorf("anchors: %w", err)
	}
	indexData := make([]byte, 0, len(idx)*2)
	for _, i := range idx {
		indexData = append(indexData, byte(i), byte(i>>8))
	}
	indices, err := setup.Device.NewBufferWithBytes("AnchorIndices", indexData, metadata.BufferUsageIndex)
	if err != nil {
		vertices.Release()
		pipeline.Release()
		return nil, fmt.Errorf("anchors: %w", err)
	}

	instances, err := frame.NewRing[uniforms.InstanceBlock](setup.Device, "AnchorInstanceUniforms", setup.InFlight, metadata.BufferUsageUniform)
	if err != nil {
		indices.Release()
		vertices.Release()
		pipeline.Release()
		return nil, fmt.Errorf("anchors: %w", err)
	}

	return &Anchors{
		pipeline:   pipeline,
		vertices:   vertices,
		indices:    indices,
		indexCount: len(idx),
		instances:  instances,
	}, nil
}

func (a *Anchors) Name() string {
	return "Anchors"
}

// Count is the number of instances the last Update wrote.
func (a *Anchors) Count() int {
	return a.count
}

func (a *Anchors) Update(ctx FrameContext) error {
	a.slot = a.instances.Next()
	selected := SelectAnchors(ctx.Frame.Anchors, uniforms.MaxAnchorInstanceCount)

	var block uniforms.InstanceBlock
	for i, anchor := range selected {
		block.Instances[i].ModelMatrix = anchor.Transform.Mul(flipZ)
	}
	block.Count = len(selected)
	a.count = len(selected)
	if err := a.slot.Write(block); err != nil {
		a.count = 0
		return fmt.Errorf("anchors: %w", err)
	}
	return nil
}

func (a *Anchors) Draw(enc metadata.RenderCommandEncoder, ctx FrameContext) {
	if a.count == 0 {
		return
	}
	enc.PushDebugGroup("DrawAnchors")
	enc.SetRenderPipeline(a.pipeline)
	enc.SetVertexBuffer(a.vertices, 0, 0)
	enc.SetUniformBuffer(a.slot.Buffer(), a.slot.Offset, metadata.BindingInstanceUniforms)
	ctx.BindShared(enc)
	enc.DrawIndexed(a.indexCount, metadata.IndexTypeUInt16, a.indices, 0, a.count)
	enc.PopDebugGroup()
}

func (a *Anchors) Release() {
	a.instances.Release()
	a.indices.Release()
	a.vertices.Release()
	a.pipeline.Release()
}
