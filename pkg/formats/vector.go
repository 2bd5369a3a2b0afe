package formats

import "github.com/Faultbox/railrush/pkg/math"

// Float2 is a serialized 2-component vector.
type Float2 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Float3 is a serialized 3-component vector.
type Float3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Float4 is a serialized 4-component vector, also used for colors and
// quaternions (x, y, z, w).
type Float4 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
	W float32 `json:"w"`
}

// UInt2 is a serialized pair of unsigned integers.
type UInt2 struct {
	X uint32 `json:"x"`
	Y uint32 `json:"y"`
}

// UInt4 holds four joint indices.
type UInt4 struct {
	X uint16 `json:"x"`
	Y uint16 `json:"y"`
	Z uint16 `json:"z"`
	W uint16 `json:"w"`
}

// Float4x4 is a serialized matrix. Each mRC group with the same R is one
// column: m00..m03 is column 0.
type Float4x4 struct {
	M00 float32 `json:"m00"`
	M01 float32 `json:"m01"`
	M02 float32 `json:"m02"`
	M03 float32 `json:"m03"`

	M10 float32 `json:"m10"`
	M11 float32 `json:"m11"`
	M12 float32 `json:"m12"`
	M13 float32 `json:"m13"`

	M20 float32 `json:"m20"`
	M21 float32 `json:"m21"`
	M22 float32 `json:"m22"`
	M23 float32 `json:"m23"`

	M30 float32 `json:"m30"`
	M31 float32 `json:"m31"`
	M32 float32 `json:"m32"`
	M33 float32 `json:"m33"`
}

// Vec2 converts to the runtime vector.
func (f Float2) Vec2() math.Vec2 { return math.Vec2{X: f.X, Y: f.Y} }

// Vec3 converts to the runtime vector.
func (f Float3) Vec3() math.Vec3 { return math.Vec3{X: f.X, Y: f.Y, Z: f.Z} }

// Vec4 converts to the runtime vector.
func (f Float4) Vec4() math.Vec4 { return math.Vec4{f.X, f.Y, f.Z, f.W} }

// Quat interprets the vector as a rotation quaternion.
func (f Float4) Quat() math.Quat { return math.Quat{X: f.X, Y: f.Y, Z: f.Z, W: f.W} }

// Array returns the indices in x, y, z, w order.
func (u UInt4) Array() [4]uint16 { return [4]uint16{u.X, u.Y, u.Z, u.W} }

// Mat4 converts to the runtime column-major matrix.
func (f Float4x4) Mat4() math.Mat4 {
	return math.FromColumns(
		math.Vec4{f.M00, f.M01, f.M02, f.M03},
		math.Vec4{f.M10, f.M11, f.M12, f.M13},
		math.Vec4{f.M20, f.M21, f.M22, f.M23},
		math.Vec4{f.M30, f.M31, f.M32, f.M33},
	)
}

// FromMat4 is the inverse of Float4x4.Mat4.
func FromMat4(m math.Mat4) Float4x4 {
	return Float4x4{
		m[0], m[1], m[2], m[3],
		m[4], m[5], m[6], m[7],
		m[8], m[9], m[10], m[11],
		m[12], m[13], m[14], m[15],
	}
}

// IdentityFloat4x4 returns the serialized identity matrix.
func IdentityFloat4x4() Float4x4 {
	return FromMat4(math.Identity())
}
