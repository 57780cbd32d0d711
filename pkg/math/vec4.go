package math

import "github.com/chewxy/math32"

// Vec4 is a 4-component vector. As a rotation it is a quaternion with
// X, Y, Z as the vector part and W as the scalar part.
type Vec4 struct {
	X, Y, Z, W float32
}

// QuatIdentity returns the identity rotation (0, 0, 0, 1).
func QuatIdentity() Vec4 {
	return Vec4{W: 1}
}

// QuatFromAxisAngle creates a quaternion from axis-angle rotation.
// axis should be normalized, angle is in radians.
func QuatFromAxisAngle(axis Vec3, angle float32) Vec4 {
	s, c := math32.Sincos(angle / 2)
	return Vec4{axis.X * s, axis.Y * s, axis.Z * s, c}
}

// Add returns the component-wise sum.
func (q Vec4) Add(other Vec4) Vec4 {
	return Vec4{q.X + other.X, q.Y + other.Y, q.Z + other.Z, q.W + other.W}
}

// Neg returns -q.
func (q Vec4) Neg() Vec4 {
	return Vec4{-q.X, -q.Y, -q.Z, -q.W}
}

// Length returns the magnitude.
func (q Vec4) Length() float32 {
	return math32.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

// Normalize returns a unit quaternion. Near-zero input yields identity.
func (q Vec4) Normalize() Vec4 {
	length := q.Length()
	if length < 0.0001 {
		return QuatIdentity()
	}
	inv := 1 / length
	return Vec4{q.X * inv, q.Y * inv, q.Z * inv, q.W * inv}
}

// Mul multiplies two quaternions (q applied after other).
func (q Vec4) Mul(other Vec4) Vec4 {
	return Vec4{
		X: q.W*other.X + q.X*other.W + q.Y*other.Z - q.Z*other.Y,
		Y: q.W*other.Y - q.X*other.Z + q.Y*other.W + q.Z*other.X,
		Z: q.W*other.Z + q.X*other.Y - q.Y*other.X + q.Z*other.W,
		W: q.W*other.W - q.X*other.X - q.Y*other.Y - q.Z*other.Z,
	}
}

// ToMat4 converts the quaternion to a 4x4 rotation matrix.
func (q Vec4) ToMat4() Mat4 {
	q = q.Normalize()

	xx := q.X * q.X
	xy := q.X * q.Y
	xz := q.X * q.Z
	xw := q.X * q.W
	yy := q.Y * q.Y
	yz := q.Y * q.Z
	yw := q.Y * q.W
	zz := q.Z * q.Z
	zw := q.Z * q.W

	return Mat4{
		1 - 2*(yy+zz), 2 * (xy + zw), 2 * (xz - yw), 0,
		2 * (xy - zw), 1 - 2*(xx+zz), 2 * (yz + xw), 0,
		2 * (xz + yw), 2 * (yz - xw), 1 - 2*(xx+yy), 0,
		0, 0, 0, 1,
	}
}

// WithComponent returns a copy of q with the i-th component replaced.
func (q Vec4) WithComponent(i int, value float32) Vec4 {
	switch i {
	case 0:
		q.X = value
	case 1:
		q.Y = value
	case 2:
		q.Z = value
	case 3:
		q.W = value
	}
	return q
}

// ApproxEqual reports whether every component differs by at most eps.
func (q Vec4) ApproxEqual(other Vec4, eps float32) bool {
	return math32.Abs(q.X-other.X) <= eps &&
		math32.Abs(q.Y-other.Y) <= eps &&
		math32.Abs(q.Z-other.Z) <= eps &&
		math32.Abs(q.W-other.W) <= eps
}
