// Package ahrs recovers 3D orientation from 9-DOF sensor streams.
//
// Two attitude filters are provided: Madgwick's gradient-descent filter
// and Mahony's explicit complementary filter. Both integrate gyroscope
// rates and correct drift against the accelerometer's gravity vector and
// the magnetometer's field direction.
package ahrs

import "math"

// Quaternion is a rotation as (w, x, y, z). Filter outputs are unit-norm
// within floating tolerance.
type Quaternion struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Identity is the no-rotation quaternion.
var Identity = Quaternion{W: 1}

// Normalize returns q scaled to unit norm. A zero quaternion comes back
// as the identity rather than NaN; it represents a transient degenerate
// state, not a structural error.
func (q Quaternion) Normalize() Quaternion {
	n := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if n == 0 || math.IsNaN(n) {
		return Identity
	}
	return Quaternion{q.W / n, q.X / n, q.Y / n, q.Z / n}
}

// Conjugate returns the inverse rotation for unit quaternions.
func (q Quaternion) Conjugate() Quaternion {
	return Quaternion{q.W, -q.X, -q.Y, -q.Z}
}

// Mul returns the Hamilton product q*r (apply r, then q).
func (q Quaternion) Mul(r Quaternion) Quaternion {
	return Quaternion{
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
	}
}

// Canonical flips the sign so the scalar part is non-negative. q and -q
// describe the same physical rotation; canonicalizing before comparisons
// avoids spurious angle jumps near the ±180° boundary.
func (q Quaternion) Canonical() Quaternion {
	if q.W < 0 {
		return Quaternion{-q.W, -q.X, -q.Y, -q.Z}
	}
	return q
}

// Euler holds roll/pitch/yaw in radians.
type Euler struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// ToEuler converts the quaternion to roll/pitch/yaw. The pitch asin
// argument is clamped so gimbal-lock inputs produce ±90° instead of NaN.
func (q Quaternion) ToEuler() Euler {
	sinp := 2 * (q.W*q.Y - q.Z*q.X)
	if sinp > 1 {
		sinp = 1
	} else if sinp < -1 {
		sinp = -1
	}
	return Euler{
		Roll:  math.Atan2(2*(q.W*q.X+q.Y*q.Z), 1-2*(q.X*q.X+q.Y*q.Y)),
		Pitch: math.Asin(sinp),
		Yaw:   math.Atan2(2*(q.W*q.Z+q.X*q.Y), 1-2*(q.Y*q.Y+q.Z*q.Z)),
	}
}

// RotationMatrix returns the 3x3 rotation matrix for the quaternion,
// row-major.
func (q Quaternion) RotationMatrix() [3][3]float64 {
	w, x, y, z := q.W, q.X, q.Y, q.Z
	return [3][3]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
}

// RelativeAngle returns the rotation angle in degrees between two
// orientations. Both are canonicalized first so q and -q compare equal.
// Degenerate zero-magnitude inputs normalize to the identity and yield a
// zero angle.
func RelativeAngle(a, b Quaternion) float64 {
	a = a.Normalize().Canonical()
	b = b.Normalize().Canonical()
	rel := b.Mul(a.Conjugate()).Canonical()
	w := rel.W
	if w > 1 {
		w = 1
	} else if w < -1 {
		w = -1
	}
	return 2 * math.Acos(w) * 180 / math.Pi
}
