package math

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector
type Vec4 struct {
	X, Y, Z, W float32
}

/** @brief A quaternion, used to represent rotational orientation. */
type Quaternion Vec4

/**
 * @brief a 4x4 matrix stored column-major: Data[col*4+row].
 * Translation lives in Data[12], Data[13], Data[14]. Vectors are columns,
 * so A.Mul(B) applies B first.
 */
type Mat4 struct {
	Data [16]float32
}

// Ray is a half line starting at Origin.
type Ray struct {
	Origin    Vec3
	Direction Vec3
}

/**
 * @brief Represents a single vertex of a lit mesh.
 */
type Vertex3D struct {
	Position Vec3
	Normal   Vec3
}
