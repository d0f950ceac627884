package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-4

func TestMat4MulAppliesRightOperandFirst(t *testing.T) {
	translate := NewMat4Translation(NewVec3(1, 2, 3))
	rotate := NewMat4RotationZ(K_HALF_PI)

	// rotate (1,0,0) to (0,1,0), then translate
	p := translate.Mul(rotate).TransformPoint(NewVec3(1, 0, 0))
	assert.True(t, p.Compare(NewVec3(1, 3, 3), tolerance), "got %v", p)

	// translate first, then rotate
	p = rotate.Mul(translate).TransformPoint(NewVec3(1, 0, 0))
	assert.True(t, p.Compare(NewVec3(-2, 2, 3), tolerance), "got %v", p)
}

func TestMat4Inverse(t *testing.T) {
	m := NewMat4Translation(NewVec3(0.5, -2, 7)).
		Mul(NewMat4RotationX(0.3)).
		Mul(NewMat4RotationY(-1.1)).
		Mul(NewMat4Scale(NewVec3(2, 3, 4)))

	inv, ok := m.Inverse()
	require.True(t, ok)
	assert.True(t, m.Mul(inv).Compare(NewMat4Identity(), tolerance))
	assert.True(t, inv.Mul(m).Compare(NewMat4Identity(), tolerance))

	proj := NewMat4Perspective(DegToRad(60), 16.0/9.0, 0.001, 1000)
	pinv, ok := proj.Inverse()
	require.True(t, ok)
	assert.True(t, proj.Mul(pinv).Compare(NewMat4Identity(), tolerance))
}

func TestMat4InverseSingular(t *testing.T) {
	_, ok := NewMat4Scale(NewVec3(1, 0, 1)).Inverse()
	assert.False(t, ok)
}

func TestRotationXMapsYToZ(t *testing.T) {
	v := NewMat4RotationX(K_HALF_PI).TransformDirection(NewVec3(0, 1, 0))
	assert.True(t, v.Compare(NewVec3(0, 0, 1), tolerance), "got %v", v)
}

func TestPerspectiveDepthRange(t *testing.T) {
	proj := NewMat4Perspective(DegToRad(60), 1, 0.1, 100)

	near := proj.MulVec4(NewVec4(0, 0, -0.1, 1)).PerspectiveDivide()
	far := proj.MulVec4(NewVec4(0, 0, -100, 1)).PerspectiveDivide()
	assert.InDelta(t, 0, near.Z, tolerance)
	assert.InDelta(t, 1, far.Z, tolerance)
}

func TestLookAt(t *testing.T) {
	m := NewMat4LookAt(NewVec3(0, 0, 5), NewVec3Zero(), NewVec3Up())
	assert.True(t, m.Forward().Compare(NewVec3(0, 0, -1), tolerance))
	assert.True(t, m.Translation().Compare(NewVec3(0, 0, 5), tolerance))
}

func TestQuaternionToMat4MatchesAxisRotation(t *testing.T) {
	q := NewQuatFromAxisAngle(NewVec3(0, 1, 0), 0.7)
	assert.True(t, q.ToMat4().Compare(NewMat4RotationY(0.7), tolerance))

	composed := NewQuatFromAxisAngle(NewVec3(1, 0, 0), 0.4).Mul(q)
	assert.True(t, composed.ToMat4().Compare(NewMat4RotationX(0.4).Mul(NewMat4RotationY(0.7)), tolerance))
}
