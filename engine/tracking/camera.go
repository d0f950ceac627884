package tracking

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/array/engine/math"
)

// Orientation of the display relative to the camera sensor.
type Orientation int

const (
	OrientationLandscapeRight Orientation = iota
	OrientationPortrait
	OrientationLandscapeLeft
	OrientationPortraitUpsideDown
)

func (o Orientation) angle() float32 {
	switch o {
	case OrientationPortrait:
		return math.K_HALF_PI
	case OrientationLandscapeLeft:
		return math.K_PI
	case OrientationPortraitUpsideDown:
		return -math.K_HALF_PI
	default:
		return 0
	}
}

func (o Orientation) isPortrait() bool {
	return o == OrientationPortrait || o == OrientationPortraitUpsideDown
}

type TrackingState int

const (
	TrackingStateNotAvailable TrackingState = iota
	TrackingStateLimited
	TrackingStateNormal
)

// Camera is the pose and optics of the device camera for one frame.
// Transform maps camera space to world space, the camera looks down -Z.
type Camera struct {
	Transform math.Mat4
	// ImageResolution of the sensor in landscape-right orientation.
	ImageResolution math.Vec2
	// FieldOfView is the vertical field of view of the sensor image in radians.
	FieldOfView   float32
	TrackingState TrackingState
}

// Position is the translation column of the pose.
func (c Camera) Position() math.Vec3 {
	return c.Transform.Translation()
}

func (c Camera) ViewMatrix(orientation Orientation) math.Mat4 {
	view, ok := c.Transform.Inverse()
	if !ok {
		view = math.NewMat4Identity()
	}
	return math.NewMat4RotationZ(orientation.angle()).Mul(view)
}

// ProjectionMatrix fills the viewport with the camera image, cropping whichever
// axis overflows, so rendered geometry lines up with the captured image.
func (c Camera) ProjectionMatrix(orientation Orientation, viewport math.Vec2, zNear, zFar float32) math.Mat4 {
	imageAspect := c.ImageResolution.X / c.ImageResolution.Y
	if c.ImageResolution.Y == 0 {
		imageAspect = 1
	}
	halfV := math32.Tan(c.FieldOfView * 0.5)
	halfH := halfV * imageAspect
	if orientation.isPortrait() {
		halfV, halfH = halfH, halfV
		imageAspect = 1 / imageAspect
	}

	viewAspect := float32(1)
	if viewport.Y > 0 {
		viewAspect = viewport.X / viewport.Y
	}
	if viewAspect > imageAspect {
		halfV = halfH / viewAspect
	}
	return math.NewMat4Perspective(2*math32.Atan(halfV), viewAspect, zNear, zFar)
}

// UnprojectPoint casts a ray through a viewport point and intersects it with
// the x-z plane of planeTransform. It returns false when the ray misses.
func (c Camera) UnprojectPoint(point math.Vec2, planeTransform math.Mat4, orientation Orientation, viewport math.Vec2) (math.Vec3, bool) {
	viewProjection := c.ProjectionMatrix(orientation, viewport, 0.001, 1000).Mul(c.ViewMatrix(orientation))
	ray, ok := math.UnprojectRay(point, viewport, viewProjection)
	if !ok {
		return math.Vec3{}, false
	}
	normal := planeTransform.Col(1).ToVec3().Normalized()
	return ray.IntersectPlane(planeTransform.Translation(), normal)
}
