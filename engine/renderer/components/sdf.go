package components

import (
	"fmt"

	"github.com/spaghettifunk/array/engine/math"
	"github.com/spaghettifunk/array/engine/renderer/frame"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
	"github.com/spaghettifunk/array/engine/tracking"
)

// RayPlaneDistance is how far in front of the camera the ray plane sits.
const RayPlaneDistance float32 = 0.2

const rayPlaneVertexSize = 20

// RayPlaneVertex is one corner of the full screen quad the distance field is
// marched through. RayNormal is the view ray through that corner.
type RayPlaneVertex struct {
	Position  math.Vec2
	RayNormal math.Vec3
}

type RayPlane [4]RayPlaneVertex

func (RayPlane) Size() int { return 4 * rayPlaneVertexSize }

func (r RayPlane) Encode(dst []byte) {
	dst = dst[:0]
	for _, v := range r {
		dst = packFloats(dst, v.Position.X, v.Position.Y, v.RayNormal.X, v.RayNormal.Y, v.RayNormal.Z)
	}
}

var (
	rayPlaneCorners = [4]math.Vec2{
		math.NewVec2(-1, -1),
		math.NewVec2(1, -1),
		math.NewVec2(-1, 1),
		math.NewVec2(1, 1),
	}
	rayPlaneRotation = math.NewMat4RotationX(math.K_HALF_PI)
)

// RayPlaneTransform is the plane the screen corners are unprojected onto, a
// plane facing the camera RayPlaneDistance in front of it.
func RayPlaneTransform(camera tracking.Camera) math.Mat4 {
	return camera.Transform.
		Mul(math.NewMat4Translation(math.NewVec3(0, 0, -RayPlaneDistance))).
		Mul(rayPlaneRotation)
}

// RayPlaneVertices unprojects the viewport corners. It reports false when any
// corner misses the plane.
func RayPlaneVertices(camera tracking.Camera, viewport math.Vec2) (RayPlane, bool) {
	var out RayPlane
	plane := RayPlaneTransform(camera)
	eye := camera.Position()
	screen := [4]math.Vec2{
		math.NewVec2(0, viewport.Y),
		math.NewVec2(viewport.X, viewport.Y),
		math.NewVec2(0, 0),
		math.NewVec2(viewport.X, 0),
	}
	for i, p := range screen {
		hit, ok := camera.UnprojectPoint(p, plane, tracking.OrientationLandscapeRight, viewport)
		if !ok {
			return RayPlane{}, false
		}
		out[i] = RayPlaneVertex{
			Position:  rayPlaneCorners[i],
			RayNormal: hit.Sub(eye).Normalized(),
		}
	}
	return out, true
}

// SDF ray-marches a distance field object placed at the shared object position.
type SDF struct {
	pipeline metadata.Pipeline
	vertices *frame.Ring[RayPlane]
	viewport math.Vec2

	last  RayPlane
	valid bool
	slot  frame.Slot[RayPlane]
}

func NewSDF(setup Setup) (*SDF, error) {
	desc := setup.pipeline("SDFPipeline", "sdf.vert", "sdf.frag",
		metadata.NewPackedVertexLayout(metadata.VertexFormatFloat2, metadata.VertexFormatFloat3))
	desc.Topology = metadata.PrimitiveTypeTriangleStrip
	desc.CullMode = metadata.FaceCullModeNone
	desc.DepthCompare = metadata.CompareFunctionAlways
	desc.DepthWriteEnabled = false
	desc.Blending = metadata.AlphaBlending

	pipeline, err := setup.Device.NewRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("sdf: %w", err)
	}
	vertices, err := frame.NewRing[RayPlane](setup.Device, "SDFRayPlaneVertices", setup.InFlight, metadata.BufferUsageVertex)
	if err != nil {
		pipeline.Release()
		return nil, fmt.Errorf("sdf: %w", err)
	}
	return &SDF{
		pipeline: pipeline,
		vertices: vertices,
		viewport: setup.Destination.DrawableSize(),
	}, nil
}

func (s *SDF) Name() string {
	return "SDF"
}

func (s *SDF) Resize(size math.Vec2) {
	s.viewport = size
}

// Vertices returns the ray plane the last Update wrote.
func (s *SDF) Vertices() (RayPlane, bool) {
	return s.last, s.valid
}

func (s *SDF) Update(ctx FrameContext) error {
	viewport := s.viewport
	if viewport.X == 0 || viewport.Y == 0 {
		viewport = ctx.DrawableSize
	}
	if verts, ok := RayPlaneVertices(ctx.Frame.Camera, viewport); ok {
		s.last = verts
		s.valid = true
	}
	if !s.valid {
		return nil
	}
	s.slot = s.vertices.Next()
	if err := s.slot.Write(s.last); err != nil {
		s.valid = false
		return fmt.Errorf("sdf: %w", err)
	}
	return nil
}

func (s *SDF) Draw(enc metadata.RenderCommandEncoder, ctx FrameContext) {
	if !s.valid {
		return
	}
	enc.PushDebugGroup("DrawSDF")
	enc.SetRenderPipeline(s.pipeline)
	enc.SetVertexBuffer(s.slot.Buffer(), s.slot.Offset, 0)
	ctx.BindShared(enc)
	enc.Draw(0, 4, 1)
	enc.PopDebugGroup()
}

func (s *SDF) Release() {
	s.vertices.Release()
	s.pipeline.Release()
}
