package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Below this angle the closed forms of Exp, Log and the right Jacobian are replaced by their
// Taylor expansions.
const smallAngle = 1e-8

// Skew returns the 3x3 cross-product matrix [v]× such that [v]×u = v×u.
func Skew(v r3.Vector) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -v.Z, v.Y,
		v.Z, 0, -v.X,
		-v.Y, v.X, 0,
	})
}

// ExpMap maps a rotation vector to SO(3) with the Rodrigues formula.
func ExpMap(w r3.Vector) *RotationMatrix {
	theta2 := w.Norm2()
	theta := math.Sqrt(theta2)
	var a, b float64
	if theta < smallAngle {
		a = 1 - theta2/6
		b = 0.5 - theta2/24
	} else {
		a = math.Sin(theta) / theta
		b = (1 - math.Cos(theta)) / theta2
	}
	x, y, z := w.X, w.Y, w.Z
	// I + a[w]x + b[w]x^2
	return &RotationMatrix{[9]float64{
		1 - b*(y*y+z*z), -a*z + b*x*y, a*y + b*x*z,
		a*z + b*x*y, 1 - b*(x*x+z*z), -a*x + b*y*z,
		-a*y + b*x*z, a*x + b*y*z, 1 - b*(x*x+y*y),
	}}
}

// LogMap is the inverse of ExpMap. The returned vector has norm in [0, π].
func LogMap(rm *RotationMatrix) r3.Vector {
	m := rm.mat
	tr := m[0] + m[4] + m[8]
	// Vee of R - Rᵀ, equal to 2 sin(θ) axis.
	vee := r3.Vector{X: m[7] - m[5], Y: m[2] - m[6], Z: m[3] - m[1]}

	cosTheta := math.Max(-1, math.Min(1, (tr-1)/2))
	switch {
	case cosTheta > 1-1e-10:
		// θ ≈ 0: θ/(2 sin θ) ≈ 1/2 + θ²/12
		return vee.Mul(0.5 + (3-tr)/12)
	case cosTheta < -1+1e-6:
		// θ ≈ π: the antisymmetric part vanishes, recover the axis from the symmetric part.
		var axis r3.Vector
		switch {
		case m[8] > m[4] && m[8] > m[0]:
			axis = r3.Vector{X: m[2], Y: m[5], Z: 1 + m[8]}.Mul(1 / math.Sqrt(2*(1+m[8])))
		case m[4] > m[0]:
			axis = r3.Vector{X: m[1], Y: 1 + m[4], Z: m[7]}.Mul(1 / math.Sqrt(2*(1+m[4])))
		default:
			axis = r3.Vector{X: 1 + m[0], Y: m[3], Z: m[6]}.Mul(1 / math.Sqrt(2*(1+m[0])))
		}
		axis = axis.Normalize()
		if axis.Dot(vee) < 0 {
			axis = axis.Mul(-1)
		}
		return axis.Mul(math.Acos(cosTheta))
	default:
		theta := math.Acos(cosTheta)
		return vee.Mul(theta / (2 * math.Sin(theta)))
	}
}

// RightJacobian returns Jr(w) such that Exp(w + dw) ≈ Exp(w)·Exp(Jr(w)·dw).
func RightJacobian(w r3.Vector) *mat.Dense {
	theta2 := w.Norm2()
	theta := math.Sqrt(theta2)
	var a, b float64
	if theta < smallAngle {
		a = 0.5 - theta2/24
		b = 1.0/6 - theta2/120
	} else {
		a = (1 - math.Cos(theta)) / theta2
		b = (theta - math.Sin(theta)) / (theta2 * theta)
	}
	skew := Skew(w)
	var skew2 mat.Dense
	skew2.Mul(skew, skew)

	jr := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	skew.Scale(-a, skew)
	skew2.Scale(b, &skew2)
	jr.Add(jr, skew)
	jr.Add(jr, &skew2)
	return jr
}

// RotX returns a rotation of angle radians about the x axis.
func RotX(angle float64) *RotationMatrix {
	c, s := math.Cos(angle), math.Sin(angle)
	return &RotationMatrix{[9]float64{
		1, 0, 0,
		0, c, -s,
		0, s, c,
	}}
}

// RotY returns a rotation of angle radians about the y axis.
func RotY(angle float64) *RotationMatrix {
	c, s := math.Cos(angle), math.Sin(angle)
	return &RotationMatrix{[9]float64{
		c, 0, s,
		0, 1, 0,
		-s, 0, c,
	}}
}

// RotZ returns a rotation of angle radians about the z axis.
func RotZ(angle float64) *RotationMatrix {
	c, s := math.Cos(angle), math.Sin(angle)
	return &RotationMatrix{[9]float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	}}
}

// RotationMatrixFromRPY composes roll phi, pitch theta and yaw psi as Rx(phi)·Ry(theta)·Rz(psi).
// This is the convention of the external state stream, and it differs from EulerAngles.
func RotationMatrixFromRPY(phi, theta, psi float64) *RotationMatrix {
	return RotX(phi).Mul(RotY(theta)).Mul(RotZ(psi))
}
