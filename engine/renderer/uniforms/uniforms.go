// Package uniforms holds the CPU side of the uniform blocks every shader reads.
package uniforms

import (
	"github.com/spaghettifunk/array/engine/math"
	"github.com/spaghettifunk/array/engine/tracking"
)

const (
	MaxAnchorInstanceCount = 64

	ZNear             float32 = 0.001
	ZFar              float32 = 1000
	MaterialShininess float32 = 30
)

var (
	ambientBase     = math.NewVec3(0.5, 0.5, 0.5)
	directionalBase = math.NewVec3(0.6, 0.6, 0.6)
)

// SharedFrameUniforms mirrors the std140 SharedUniforms block at binding 0.
type SharedFrameUniforms struct {
	ProjectionMatrix          math.Mat4 // offset 0
	ViewMatrix                math.Mat4 // offset 64
	AmbientLightColor         math.Vec3 // offset 128
	DirectionalLightDirection math.Vec3 // offset 144
	DirectionalLightColor     math.Vec3 // offset 160
	MaterialShininess         float32   // offset 172
	PixelSize                 math.Vec2 // offset 176
	ObjectPosition            math.Vec3 // offset 192
}

func (SharedFrameUniforms) Size() int { return 208 }

func (u SharedFrameUniforms) Encode(dst []byte) {
	w := writer(dst)
	w.mat4(0, u.ProjectionMatrix)
	w.mat4(64, u.ViewMatrix)
	w.vec3(128, u.AmbientLightColor)
	w.vec3(144, u.DirectionalLightDirection)
	w.vec3(160, u.DirectionalLightColor)
	w.float(172, u.MaterialShininess)
	w.vec2(176, u.PixelSize)
	w.vec3(192, u.ObjectPosition)
}

// AmbientIntensity converts a light estimate to a colour scale, 1 without one.
func AmbientIntensity(light *tracking.LightEstimate) float32 {
	if light == nil {
		return 1.0
	}
	return light.AmbientIntensity / 1000.0
}

// ComputeShared derives the per-frame block from the frame inputs alone.
func ComputeShared(camera tracking.Camera, light *tracking.LightEstimate, drawableSize math.Vec2, objectPosition math.Vec3) SharedFrameUniforms {
	intensity := AmbientIntensity(light)
	return SharedFrameUniforms{
		ViewMatrix:                camera.ViewMatrix(tracking.OrientationLandscapeRight),
		ProjectionMatrix:          camera.ProjectionMatrix(tracking.OrientationLandscapeRight, drawableSize, ZNear, ZFar),
		AmbientLightColor:         ambientBase.MulScalar(intensity),
		DirectionalLightDirection: math.NewVec3(0, 0, -1).Normalized(),
		DirectionalLightColor:     directionalBase.MulScalar(intensity),
		MaterialShininess:         MaterialShininess,
		PixelSize:                 drawableSize,
		ObjectPosition:            objectPosition,
	}
}

// InstanceUniforms is one element of the InstanceUniforms array at binding 1.
type InstanceUniforms struct {
	ModelMatrix math.Mat4
}

// InstanceBlock is the fixed capacity instance array. Entries past Count are
// left as they were.
type InstanceBlock struct {
	Instances [MaxAnchorInstanceCount]InstanceUniforms
	Count     int
}

func (InstanceBlock) Size() int { return MaxAnchorInstanceCount * 64 }

func (b InstanceBlock) Encode(dst []byte) {
	w := writer(dst)
	for i := 0; i < b.Count && i < MaxAnchorInstanceCount; i++ {
		w.mat4(i*64, b.Instances[i].ModelMatrix)
	}
}
