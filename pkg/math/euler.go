package math

import "github.com/chewxy/math32"

// FromEuler builds a quaternion from XYZ Euler angles in radians
// (roll about X, then pitch about Y, then yaw about Z).
func FromEuler(e Vec3) Vec4 {
	sx, cx := math32.Sincos(e.X * 0.5)
	sy, cy := math32.Sincos(e.Y * 0.5)
	sz, cz := math32.Sincos(e.Z * 0.5)

	return Vec4{
		X: sx*cy*cz - cx*sy*sz,
		Y: cx*sy*cz + sx*cy*sz,
		Z: cx*cy*sz - sx*sy*cz,
		W: cx*cy*cz + sx*sy*sz,
	}
}

// ToEuler converts the quaternion to XYZ Euler angles in radians.
// It is the inverse of FromEuler; pitch is clamped at the poles.
func (q Vec4) ToEuler() Vec3 {
	q = q.Normalize()

	sinrCosp := 2 * (q.W*q.X + q.Y*q.Z)
	cosrCosp := 1 - 2*(q.X*q.X+q.Y*q.Y)
	roll := math32.Atan2(sinrCosp, cosrCosp)

	sinp := 2 * (q.W*q.Y - q.Z*q.X)
	var pitch float32
	if math32.Abs(sinp) >= 1 {
		pitch = math32.Copysign(math32.Pi/2, sinp)
	} else {
		pitch = math32.Asin(sinp)
	}

	sinyCosp := 2 * (q.W*q.Z + q.X*q.Y)
	cosyCosp := 1 - 2*(q.Y*q.Y+q.Z*q.Z)
	yaw := math32.Atan2(sinyCosp, cosyCosp)

	return Vec3{roll, pitch, yaw}
}

// RenormalizeEuler round-trips q through Euler angles. The result describes
// the same rotation with a canonical sign.
func (q Vec4) RenormalizeEuler() Vec4 {
	return FromEuler(q.ToEuler())
}
