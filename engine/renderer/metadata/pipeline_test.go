package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackedVertexLayout(t *testing.T) {
	layout := NewPackedVertexLayout(VertexFormatFloat2, VertexFormatFloat3)
	assert.Equal(t, uint32(20), layout.Stride)
	assert.Equal(t, []VertexAttribute{
		{Location: 0, Format: VertexFormatFloat2, Offset: 0},
		{Location: 1, Format: VertexFormatFloat3, Offset: 8},
	}, layout.Attributes)
}

func TestPipelineDescriptorValidate(t *testing.T) {
	d := &PipelineDescriptor{
		Label:            "points",
		VertexFunction:   "point.vert",
		FragmentFunction: "point.frag",
		VertexLayout:     NewPackedVertexLayout(VertexFormatFloat3, VertexFormatFloat4),
		ColorFormat:      PixelFormatBGRA8Unorm,
		SampleCount:      1,
	}
	assert.NoError(t, d.Validate())

	d.FragmentFunction = ""
	assert.ErrorIs(t, d.Validate(), ErrInvalidPipelineDescriptor)
}

func TestGetAligned(t *testing.T) {
	assert.Equal(t, uint64(256), GetAligned(208, 256))
	assert.Equal(t, uint64(256), GetAligned(256, 256))
	assert.Equal(t, uint64(4096), GetAligned(4096, 256))
	assert.Equal(t, uint64(0), GetAligned(0, 256))
}
