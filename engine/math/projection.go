package math

import "github.com/chewxy/math32"

// ScreenToNDC maps a point in viewport coordinates (origin top-left, y down)
// to normalized device coordinates (y up).
func ScreenToNDC(point, viewport Vec2) Vec2 {
	return Vec2{
		X: 2*point.X/viewport.X - 1,
		Y: 1 - 2*point.Y/viewport.Y,
	}
}

/**
 * @brief Builds the world space ray through a viewport point.
 *
 * @param point The point in viewport coordinates.
 * @param viewport The viewport size.
 * @param viewProjection projection * view.
 * @return The ray and false when viewProjection is singular or the viewport is empty.
 */
func UnprojectRay(point, viewport Vec2, viewProjection Mat4) (Ray, bool) {
	if viewport.X <= 0 || viewport.Y <= 0 {
		return Ray{}, false
	}
	inv, ok := viewProjection.Inverse()
	if !ok {
		return Ray{}, false
	}
	ndc := ScreenToNDC(point, viewport)
	near := inv.MulVec4(Vec4{ndc.X, ndc.Y, 0, 1}).PerspectiveDivide()
	far := inv.MulVec4(Vec4{ndc.X, ndc.Y, 1, 1}).PerspectiveDivide()
	dir := far.Sub(near)
	if dir.LengthSquared() == 0 {
		return Ray{}, false
	}
	return Ray{Origin: near, Direction: dir.Normalized()}, true
}

/**
 * @brief Intersects the ray with the plane through origin with the given normal.
 * Returns false when the ray is parallel to the plane or the hit lies behind the origin.
 */
func (r Ray) IntersectPlane(origin, normal Vec3) (Vec3, bool) {
	denom := normal.Dot(r.Direction)
	if math32.Abs(denom) < 1e-6 {
		return Vec3{}, false
	}
	t := origin.Sub(r.Origin).Dot(normal) / denom
	if t < 0 {
		return Vec3{}, false
	}
	return r.Origin.Add(r.Direction.MulScalar(t)), true
}

// PointAt returns Origin + t*Direction.
func (r Ray) PointAt(t float32) Vec3 {
	return r.Origin.Add(r.Direction.MulScalar(t))
}
