package tracking

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/math"
)

func testCamera() Camera {
	return Camera{
		Transform:       math.NewMat4LookAt(math.NewVec3(0, 0, 1), math.NewVec3Zero(), math.NewVec3Up()),
		ImageResolution: math.NewVec2(1920, 1080),
		FieldOfView:     math.DegToRad(50),
		TrackingState:   TrackingStateNormal,
	}
}

func TestUnprojectCentreOntoPlaneInFront(t *testing.T) {
	cam := testCamera()
	viewport := math.NewVec2(1920, 1080)

	plane := cam.Transform.Mul(math.NewMat4Translation(math.NewVec3(0, 0, -0.2))).Mul(math.NewMat4RotationX(math.K_HALF_PI))
	p, ok := cam.UnprojectPoint(math.NewVec2(960, 540), plane, OrientationLandscapeRight, viewport)
	require.True(t, ok)
	assert.True(t, p.Compare(math.NewVec3(0, 0, 0.8), 1e-3), "got %v", p)
}

func TestUnprojectCornersAreSymmetric(t *testing.T) {
	cam := testCamera()
	viewport := math.NewVec2(800, 600)
	plane := cam.Transform.Mul(math.NewMat4Translation(math.NewVec3(0, 0, -0.2))).Mul(math.NewMat4RotationX(math.K_HALF_PI))

	topLeft, ok := cam.UnprojectPoint(math.NewVec2(0, 0), plane, OrientationLandscapeRight, viewport)
	require.True(t, ok)
	bottomRight, ok := cam.UnprojectPoint(math.NewVec2(800, 600), plane, OrientationLandscapeRight, viewport)
	require.True(t, ok)

	assert.Less(t, topLeft.X, float32(0))
	assert.Greater(t, topLeft.Y, float32(0))
	assert.InDelta(t, -topLeft.X, bottomRight.X, 1e-4)
	assert.InDelta(t, -topLeft.Y, bottomRight.Y, 1e-4)
	assert.InDelta(t, 0.8, topLeft.Z, 1e-4)
}

func TestProjectionFillsWiderViewport(t *testing.T) {
	cam := testCamera()
	// a viewport wider than the image crops vertically, so y is scaled up
	wide := cam.ProjectionMatrix(OrientationLandscapeRight, math.NewVec2(3000, 1000), 0.001, 1000)
	native := cam.ProjectionMatrix(OrientationLandscapeRight, math.NewVec2(1920, 1080), 0.001, 1000)
	assert.Greater(t, wide.Data[5], native.Data[5])
}

type recordingDelegate struct {
	interrupted, ended int
	failure         error
}

func (d *recordingDelegate) SessionWasInterrupted(Session)     { d.interrupted++ }
func (d *recordingDelegate) SessionInterruptionEnded(Session)  { d.ended++ }
func (d *recordingDelegate) SessionDidFail(_ Session, e error) { d.failure = e }

func TestSimulatedSessionPublishesFrames(t *testing.T) {
	cfg := DefaultSimulatedConfig()
	cfg.ImageResolution = image.Pt(64, 36)
	s := NewSimulatedSession(cfg)
	assert.Nil(t, s.CurrentFrame())

	require.NoError(t, s.Step(0))
	first := s.CurrentFrame()
	require.NotNil(t, first)
	require.NotNil(t, first.CapturedImage)
	assert.Equal(t, image.Rect(0, 0, 64, 36), first.CapturedImage.Rect)
	require.NotNil(t, first.LightEstimate)

	anchor, err := s.AddAnchor(math.NewMat4Translation(math.NewVec3(0, 0, -1)))
	require.NoError(t, err)
	assert.Empty(t, first.Anchors, "published frames are immutable")

	require.NoError(t, s.Step(100*time.Millisecond))
	second := s.CurrentFrame()
	require.Len(t, second.Anchors, 1)
	assert.Equal(t, anchor.ID, second.Anchors[0].ID)
	assert.Equal(t, 100*time.Millisecond, second.Timestamp)
}

func TestSimulatedSessionInterruption(t *testing.T) {
	cfg := DefaultSimulatedConfig()
	cfg.ImageResolution = image.Pt(16, 16)
	s := NewSimulatedSession(cfg)
	d := &recordingDelegate{}
	s.SetDelegate(d)
	require.NoError(t, s.Step(0))

	s.Interrupt()
	s.Interrupt()
	assert.Equal(t, 1, d.interrupted)

	last := s.CurrentFrame()
	require.NoError(t, s.Step(time.Second))
	assert.Same(t, last, s.CurrentFrame(), "no new frames while interrupted")

	_, err := s.AddAnchor(math.NewMat4Identity())
	assert.ErrorIs(t, err, core.ErrSessionNotActive)

	s.EndInterruption()
	assert.Equal(t, 1, d.ended)
	require.NoError(t, s.Step(time.Second))
	assert.NotSame(t, last, s.CurrentFrame())
}

func TestSimulatedSessionFailure(t *testing.T) {
	s := NewSimulatedSession(DefaultSimulatedConfig())
	d := &recordingDelegate{}
	s.SetDelegate(d)

	s.Fail(errors.New("camera unplugged"))
	assert.ErrorIs(t, d.failure, core.ErrSessionFailed)
	assert.ErrorIs(t, s.Step(0), core.ErrSessionFailed)
}

func TestSimulatedSessionNoLightEstimate(t *testing.T) {
	cfg := DefaultSimulatedConfig()
	cfg.ImageResolution = image.Pt(8, 8)
	cfg.LightIntensity = 0
	s := NewSimulatedSession(cfg)
	require.NoError(t, s.Step(0))
	assert.Nil(t, s.CurrentFrame().LightEstimate)
}
