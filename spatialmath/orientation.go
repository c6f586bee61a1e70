package spatialmath

import (
	"gonum.org/v1/gonum/num/quat"
)

// Orientation is a rotation that can be read back as a matrix, a unit quaternion, an axis angle
// or z-y-x Euler angles.
type Orientation interface {
	RotationMatrix() *RotationMatrix
	Quaternion() quat.Number
	AxisAngles() *R4AA
	EulerAngles() *EulerAngles
}

// OrientationBetween returns the rotation o2·o1⁻¹.
func OrientationBetween(o1, o2 Orientation) Orientation {
	q := quaternion(quat.Mul(o2.Quaternion(), quat.Conj(o1.Quaternion())))
	return &q
}

// AngleBetween returns the angle in radians of the smallest rotation taking o1 to o2.
func AngleBetween(o1, o2 Orientation) float64 {
	return OrientationBetween(o1, o2).AxisAngles().Theta
}
