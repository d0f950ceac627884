package metadata

import (
	"errors"
	"fmt"
)

type VertexAttribute struct {
	Location uint32
	Format   VertexFormat
	Offset   uint32
}

type VertexLayout struct {
	Stride     uint32
	Attributes []VertexAttribute
}

// NewPackedVertexLayout lays the formats out back to back at locations 0..n-1.
func NewPackedVertexLayout(formats ...VertexFormat) VertexLayout {
	layout := VertexLayout{}
	for i, f := range formats {
		layout.Attributes = append(layout.Attributes, VertexAttribute{
			Location: uint32(i),
			Format:   f,
			Offset:   layout.Stride,
		})
		layout.Stride += f.Size()
	}
	return layout
}

type BlendState struct {
	SourceRGBBlendFactor        BlendFactor
	DestinationRGBBlendFactor   BlendFactor
	SourceAlphaBlendFactor      BlendFactor
	DestinationAlphaBlendFactor BlendFactor
}

// AlphaBlending is classic source-over compositing.
var AlphaBlending = &BlendState{
	SourceRGBBlendFactor:        BlendFactorSourceAlpha,
	DestinationRGBBlendFactor:   BlendFactorOneMinusSourceAlpha,
	SourceAlphaBlendFactor:      BlendFactorSourceAlpha,
	DestinationAlphaBlendFactor: BlendFactorOneMinusSourceAlpha,
}

// PipelineDescriptor carries all fixed function state. Nothing about a pipeline
// changes after creation.
type PipelineDescriptor struct {
	Label              string
	VertexFunction     string
	FragmentFunction   string
	VertexLayout       VertexLayout
	Topology           PrimitiveType
	CullMode           FaceCullMode
	DepthCompare       CompareFunction
	DepthWriteEnabled  bool
	Blending           *BlendState
	ColorFormat        PixelFormat
	DepthStencilFormat PixelFormat
	SampleCount        int
}

var ErrInvalidPipelineDescriptor = errors.New("invalid pipeline descriptor")

func (d *PipelineDescriptor) Validate() error {
	switch {
	case d.VertexFunction == "":
		return fmt.Errorf("%w: %s has no vertex function", ErrInvalidPipelineDescriptor, d.Label)
	case d.FragmentFunction == "":
		return fmt.Errorf("%w: %s has no fragment function", ErrInvalidPipelineDescriptor, d.Label)
	case d.VertexLayout.Stride == 0 || len(d.VertexLayout.Attributes) == 0:
		return fmt.Errorf("%w: %s has no vertex layout", ErrInvalidPipelineDescriptor, d.Label)
	case d.ColorFormat == PixelFormatInvalid:
		return fmt.Errorf("%w: %s has no colour format", ErrInvalidPipelineDescriptor, d.Label)
	case d.SampleCount < 1:
		return fmt.Errorf("%w: %s sample count %d", ErrInvalidPipelineDescriptor, d.Label, d.SampleCount)
	}
	return nil
}
