package pose

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Euler holds intrinsic rotation angles in radians.
// X is pitch, Y is yaw and Z is roll.
type Euler struct {
	X, Y, Z float64
}

// gimbalLimit is where the YXZ decomposition switches to the locked branch.
const gimbalLimit = 0.9999999

// EulerYXZ decomposes a unit quaternion into Y-then-X-then-Z intrinsic angles:
// yaw about world up, pitch about the resulting right axis, then roll.
func EulerYXZ(q quat.Number) Euler {
	x, y, z, w := q.Imag, q.Jmag, q.Kmag, q.Real

	// Rotation matrix elements needed for the YXZ order.
	m11 := 1 - 2*(y*y+z*z)
	m13 := 2 * (x*z + w*y)
	m21 := 2 * (x*y + w*z)
	m22 := 1 - 2*(x*x+z*z)
	m23 := 2 * (y*z - w*x)
	m31 := 2 * (x*z - w*y)
	m33 := 1 - 2*(x*x+y*y)

	var e Euler
	e.X = math.Asin(-clamp(m23, -1, 1))
	if math.Abs(m23) < gimbalLimit {
		e.Y = math.Atan2(m13, m33)
		e.Z = math.Atan2(m21, m22)
	} else {
		e.Y = math.Atan2(-m31, m11)
		e.Z = 0
	}
	return e
}

// FromEulerYXZ builds the unit quaternion for the given YXZ angles.
func FromEulerYXZ(e Euler) quat.Number {
	c1, s1 := math.Cos(e.X/2), math.Sin(e.X/2)
	c2, s2 := math.Cos(e.Y/2), math.Sin(e.Y/2)
	c3, s3 := math.Cos(e.Z/2), math.Sin(e.Z/2)

	return quat.Number{
		Imag: s1*c2*c3 + c1*s2*s3,
		Jmag: c1*s2*c3 - s1*c2*s3,
		Kmag: c1*c2*s3 - s1*s2*c3,
		Real: c1*c2*c3 + s1*s2*s3,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
