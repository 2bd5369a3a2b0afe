package math

import "github.com/chewxy/math32"

// Quat represents a quaternion for 3D rotations.
// Components are stored as X, Y, Z, W where W is the scalar part.
type Quat struct {
	X, Y, Z, W float32
}

// QuatIdentity returns an identity quaternion (no rotation).
func QuatIdentity() Quat {
	return Quat{W: 1}
}

// QuatFromAxisAngle creates a quaternion from axis-angle rotation.
// axis should be normalized, angle is in radians.
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	s, c := math32.Sincos(angle / 2)
	return Quat{X: axis.X * s, Y: axis.Y * s, Z: axis.Z * s, W: c}
}

// QuatFromMat4 extracts the rotation of a matrix whose upper 3x3 block is
// orthonormal.
func QuatFromMat4(m Mat4) Quat {
	m00, m11, m22 := m[0], m[5], m[10]
	m01, m02 := m[4], m[8]
	m10, m12 := m[1], m[9]
	m20, m21 := m[2], m[6]

	var q Quat
	switch trace := m00 + m11 + m22; {
	case trace > 0:
		s := math32.Sqrt(trace+1) * 2
		q = Quat{X: (m21 - m12) / s, Y: (m02 - m20) / s, Z: (m10 - m01) / s, W: s / 4}
	case m00 > m11 && m00 > m22:
		s := math32.Sqrt(1+m00-m11-m22) * 2
		q = Quat{X: s / 4, Y: (m01 + m10) / s, Z: (m02 + m20) / s, W: (m21 - m12) / s}
	case m11 > m22:
		s := math32.Sqrt(1+m11-m00-m22) * 2
		q = Quat{X: (m01 + m10) / s, Y: s / 4, Z: (m12 + m21) / s, W: (m02 - m20) / s}
	default:
		s := math32.Sqrt(1+m22-m00-m11) * 2
		q = Quat{X: (m02 + m20) / s, Y: (m12 + m21) / s, Z: s / 4, W: (m10 - m01) / s}
	}
	return q.Normalize()
}

// Normalize returns a normalized quaternion.
func (q Quat) Normalize() Quat {
	length := math32.Sqrt(q.Dot(q))
	if length < 0.0001 {
		return QuatIdentity()
	}
	inv := 1 / length
	return Quat{X: q.X * inv, Y: q.Y * inv, Z: q.Z * inv, W: q.W * inv}
}

// Dot returns the dot product of two quaternions.
func (q Quat) Dot(other Quat) float32 {
	return q.X*other.X + q.Y*other.Y + q.Z*other.Z + q.W*other.W
}

// Slerp performs spherical linear interpolation between two quaternions.
// t should be in range [0, 1].
func (q Quat) Slerp(other Quat, t float32) Quat {
	dot := q.Dot(other)

	// Take the shorter arc.
	if dot < 0 {
		other = Quat{X: -other.X, Y: -other.Y, Z: -other.Z, W: -other.W}
		dot = -dot
	}

	if dot > 0.9995 {
		return q.Lerp(other, t)
	}

	theta0 := math32.Acos(dot)
	sinTheta := math32.Sin(theta0 * t)
	sinTheta0 := math32.Sin(theta0)

	s0 := math32.Cos(theta0*t) - dot*sinTheta/sinTheta0
	s1 := sinTheta / sinTheta0

	return Quat{
		X: q.X*s0 + other.X*s1,
		Y: q.Y*s0 + other.Y*s1,
		Z: q.Z*s0 + other.Z*s1,
		W: q.W*s0 + other.W*s1,
	}
}

// Lerp performs normalized linear interpolation between two quaternions.
func (q Quat) Lerp(other Quat, t float32) Quat {
	return Quat{
		X: q.X + t*(other.X-q.X),
		Y: q.Y + t*(other.Y-q.Y),
		Z: q.Z + t*(other.Z-q.Z),
		W: q.W + t*(other.W-q.W),
	}.Normalize()
}

// ToMat4 converts the quaternion to a 4x4 rotation matrix.
func (q Quat) ToMat4() Mat4 {
	q = q.Normalize()

	xx, xy, xz, xw := q.X*q.X, q.X*q.Y, q.X*q.Z, q.X*q.W
	yy, yz, yw := q.Y*q.Y, q.Y*q.Z, q.Y*q.W
	zz, zw := q.Z*q.Z, q.Z*q.W

	return Mat4{
		1 - 2*(yy+zz), 2 * (xy + zw), 2 * (xz - yw), 0,
		2 * (xy - zw), 1 - 2*(xx+zz), 2 * (yz + xw), 0,
		2 * (xz + yw), 2 * (yz - xw), 1 - 2*(xx+yy), 0,
		0, 0, 0, 1,
	}
}

// Mul multiplies two quaternions (combines rotations).
func (q Quat) Mul(other Quat) Quat {
	return Quat{
		X: q.W*other.X + q.X*other.W + q.Y*other.Z - q.Z*other.Y,
		Y: q.W*other.Y - q.X*other.Z + q.Y*other.W + q.Z*other.X,
		Z: q.W*other.Z + q.X*other.Y - q.Y*other.X + q.Z*other.W,
		W: q.W*other.W - q.X*other.X - q.Y*other.Y - q.Z*other.Z,
	}
}

// SameRotation reports whether q and other describe the same rotation
// within eps, treating q and -q as equal.
func (q Quat) SameRotation(other Quat, eps float32) bool {
	return math32.Abs(math32.Abs(q.Normalize().Dot(other.Normalize()))-1) <= eps
}
