package tracking

import (
	"image"
	"time"

	"github.com/google/uuid"

	"github.com/spaghettifunk/array/engine/math"
)

type LightEstimate struct {
	// AmbientIntensity in lumen, 1000 is neutral.
	AmbientIntensity float32
	// AmbientColorTemperature in kelvin, 6500 is neutral.
	AmbientColorTemperature float32
}

type Anchor struct {
	ID        uuid.UUID
	Transform math.Mat4
}

// Frame is an immutable snapshot published by a session. Consumers must not
// modify it.
type Frame struct {
	Timestamp     time.Duration
	Camera        Camera
	Anchors       []Anchor
	LightEstimate *LightEstimate
	CapturedImage *image.YCbCr
}
