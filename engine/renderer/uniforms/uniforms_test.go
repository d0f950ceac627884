package uniforms

import (
	"encoding/binary"
	gomath "math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/array/engine/math"
	"github.com/spaghettifunk/array/engine/tracking"
)

func camera() tracking.Camera {
	return tracking.Camera{
		Transform:       math.NewMat4Translation(math.NewVec3(0, 0, 1)),
		ImageResolution: math.NewVec2(1280, 720),
		FieldOfView:     math.DegToRad(60),
	}
}

func TestLightScaling(t *testing.T) {
	size := math.NewVec2(1280, 720)

	u := ComputeShared(camera(), nil, size, math.Vec3{})
	assert.Equal(t, math.NewVec3(0.5, 0.5, 0.5), u.AmbientLightColor)
	assert.Equal(t, math.NewVec3(0.6, 0.6, 0.6), u.DirectionalLightColor)

	u = ComputeShared(camera(), &tracking.LightEstimate{AmbientIntensity: 500}, size, math.Vec3{})
	assert.True(t, u.AmbientLightColor.Compare(math.NewVec3(0.25, 0.25, 0.25), 1e-6))
	assert.True(t, u.DirectionalLightColor.Compare(math.NewVec3(0.3, 0.3, 0.3), 1e-6))
}

func TestSharedConstants(t *testing.T) {
	obj := math.NewVec3(1, 2, 3)
	u := ComputeShared(camera(), nil, math.NewVec2(640, 480), obj)
	assert.Equal(t, float32(30), u.MaterialShininess)
	assert.Equal(t, math.NewVec3(0, 0, -1), u.DirectionalLightDirection)
	assert.Equal(t, math.NewVec2(640, 480), u.PixelSize)
	assert.Equal(t, obj, u.ObjectPosition)

	want, _ := camera().Transform.Inverse()
	assert.True(t, u.ViewMatrix.Compare(want, 1e-6))
}

func TestComputeSharedIsPure(t *testing.T) {
	light := &tracking.LightEstimate{AmbientIntensity: 800}
	a := ComputeShared(camera(), light, math.NewVec2(100, 100), math.Vec3{})
	b := ComputeShared(camera(), light, math.NewVec2(100, 100), math.Vec3{})
	assert.Equal(t, a, b)
}

func TestSharedEncodeLayout(t *testing.T) {
	u := SharedFrameUniforms{
		MaterialShininess: 30,
		PixelSize:         math.NewVec2(1280, 720),
		ObjectPosition:    math.NewVec3(7, 8, 9),
	}
	dst := make([]byte, u.Size())
	u.Encode(dst)

	f := func(off int) float32 { return gomath.Float32frombits(binary.LittleEndian.Uint32(dst[off:])) }
	assert.Equal(t, float32(30), f(172))
	assert.Equal(t, float32(1280), f(176))
	assert.Equal(t, float32(720), f(180))
	assert.Equal(t, float32(9), f(200))
}

func TestInstanceBlockEncode(t *testing.T) {
	var b InstanceBlock
	b.Instances[1].ModelMatrix = math.NewMat4Translation(math.NewVec3(4, 5, 6))
	b.Count = 2
	dst := make([]byte, b.Size())
	b.Encode(dst)
	assert.Equal(t, float32(4), gomath.Float32frombits(binary.LittleEndian.Uint32(dst[64+48:])))
}
