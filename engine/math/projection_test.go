package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScreenToNDC(t *testing.T) {
	vp := NewVec2(200, 100)
	assert.Equal(t, NewVec2(-1, 1), ScreenToNDC(NewVec2(0, 0), vp))
	assert.Equal(t, NewVec2(1, -1), ScreenToNDC(NewVec2(200, 100), vp))
	assert.Equal(t, NewVec2(0, 0), ScreenToNDC(NewVec2(100, 50), vp))
}

func TestUnprojectCentreLooksForward(t *testing.T) {
	camera := NewMat4LookAt(NewVec3(1, 2, 3), NewVec3(1, 2, 0), NewVec3Up())
	view, ok := camera.Inverse()
	require.True(t, ok)
	proj := NewMat4Perspective(DegToRad(60), 2, 0.001, 1000)

	ray, ok := UnprojectRay(NewVec2(100, 50), NewVec2(200, 100), proj.Mul(view))
	require.True(t, ok)
	assert.True(t, ray.Direction.Compare(NewVec3(0, 0, -1), tolerance), "got %v", ray.Direction)
	assert.InDelta(t, 0, ray.Origin.Sub(NewVec3(1, 2, 3)).Cross(ray.Direction).Length(), 1e-3)
}

func TestUnprojectEmptyViewport(t *testing.T) {
	_, ok := UnprojectRay(NewVec2(0, 0), NewVec2(0, 10), NewMat4Identity())
	assert.False(t, ok)
}

func TestRayIntersectPlane(t *testing.T) {
	ray := Ray{Origin: NewVec3(0, 0, 0), Direction: NewVec3(0, 0, -1)}

	hit, ok := ray.IntersectPlane(NewVec3(0, 0, -2), NewVec3(0, 0, 1))
	require.True(t, ok)
	assert.True(t, hit.Compare(NewVec3(0, 0, -2), tolerance))

	_, ok = ray.IntersectPlane(NewVec3(0, 0, 2), NewVec3(0, 0, 1))
	assert.False(t, ok, "plane behind the ray")

	_, ok = ray.IntersectPlane(NewVec3(0, 1, 0), NewVec3(0, 1, 0))
	assert.False(t, ok, "parallel plane")
}

func TestIcosahedron(t *testing.T) {
	vertices, indices := GeometryGenerateIcosahedron(0.05, false)
	require.Len(t, vertices, 60)
	require.Len(t, indices, 60)

	for _, v := range vertices {
		assert.InDelta(t, 0.05, v.Position.Length(), 1e-5)
		assert.Greater(t, v.Normal.Dot(v.Position), float32(0), "outward normal")
	}

	inward, _ := GeometryGenerateIcosahedron(0.05, true)
	for _, v := range inward {
		assert.Less(t, v.Normal.Dot(v.Position), float32(0), "inward normal")
	}
}
