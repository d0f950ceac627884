package metadata

/** @brief Determines face culling mode during rendering. */
type FaceCullMode int

const (
	/** @brief No faces are culled. */
	FaceCullModeNone FaceCullMode = 0x0
	/** @brief Only front faces are culled. */
	FaceCullModeFront FaceCullMode = 0x1
	/** @brief Only back faces are culled. */
	FaceCullModeBack FaceCullMode = 0x2
	/** @brief Both front and back faces are culled. */
	FaceCullModeFrontAndBack FaceCullMode = 0x3
)

type PrimitiveType int

const (
	PrimitiveTypePoint PrimitiveType = iota
	PrimitiveTypeLine
	PrimitiveTypeTriangle
	PrimitiveTypeTriangleStrip
)

type CompareFunction int

const (
	CompareFunctionNever CompareFunction = iota
	CompareFunctionLess
	CompareFunctionEqual
	CompareFunctionLessEqual
	CompareFunctionGreater
	CompareFunctionNotEqual
	CompareFunctionGreaterEqual
	CompareFunctionAlways
)

type BlendFactor int

const (
	BlendFactorZero BlendFactor = iota
	BlendFactorOne
	BlendFactorSourceAlpha
	BlendFactorOneMinusSourceAlpha
)

type PixelFormat int

const (
	PixelFormatInvalid PixelFormat = iota
	PixelFormatR8Unorm
	PixelFormatRG8Unorm
	PixelFormatRGBA8Unorm
	PixelFormatBGRA8Unorm
	PixelFormatBGRA8UnormSRGB
	PixelFormatDepth32Float
	PixelFormatDepth32FloatStencil8
	PixelFormatDepth24UnormStencil8
)

// BytesPerPixel is zero for formats that cannot be uploaded from the CPU.
func (p PixelFormat) BytesPerPixel() int {
	switch p {
	case PixelFormatR8Unorm:
		return 1
	case PixelFormatRG8Unorm:
		return 2
	case PixelFormatRGBA8Unorm, PixelFormatBGRA8Unorm, PixelFormatBGRA8UnormSRGB:
		return 4
	default:
		return 0
	}
}

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatR8Unorm:
		return "r8Unorm"
	case PixelFormatRG8Unorm:
		return "rg8Unorm"
	case PixelFormatRGBA8Unorm:
		return "rgba8Unorm"
	case PixelFormatBGRA8Unorm:
		return "bgra8Unorm"
	case PixelFormatBGRA8UnormSRGB:
		return "bgra8Unorm_srgb"
	case PixelFormatDepth32Float:
		return "depth32Float"
	case PixelFormatDepth32FloatStencil8:
		return "depth32Float_stencil8"
	case PixelFormatDepth24UnormStencil8:
		return "depth24Unorm_stencil8"
	default:
		return "invalid"
	}
}

type VertexFormat int

const (
	VertexFormatFloat2 VertexFormat = iota
	VertexFormatFloat3
	VertexFormatFloat4
)

func (f VertexFormat) Size() uint32 {
	switch f {
	case VertexFormatFloat2:
		return 8
	case VertexFormatFloat3:
		return 12
	default:
		return 16
	}
}

type IndexType int

const (
	IndexTypeUInt16 IndexType = iota
	IndexTypeUInt32
)

type BufferUsage int

const (
	BufferUsageVertex BufferUsage = iota
	BufferUsageIndex
	BufferUsageUniform
)

// Fixed resource slots shared by every pipeline.
type UniformBinding uint32

const (
	BindingSharedUniforms   UniformBinding = 0
	BindingInstanceUniforms UniformBinding = 1
)

type TextureBinding uint32

const (
	BindingTextureY    TextureBinding = 2
	BindingTextureCbCr TextureBinding = 3
)
