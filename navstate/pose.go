// Package navstate defines the estimated quantities: rigid poses, navigation states and IMU biases.
package navstate

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/onurbagoren/UW-SLAM/spatialmath"
)

// OrthonormalTolerance bounds |det(R)-1| and the entries of RᵀR-I for a rotation to be accepted.
const OrthonormalTolerance = 1e-6

// ErrNotOrthonormal is raised when a rotation is not a member of SO(3).
var ErrNotOrthonormal = errors.New("rotation matrix is not orthonormal")

// PoseDim is the tangent space dimension of a Pose.
const PoseDim = 6

// Pose is a rigid body transform from body to navigation frame.
type Pose struct {
	Rotation *spatialmath.RotationMatrix
	Position r3.Vector
}

// NewPose builds a pose from a rotation and a position. A rotation that is not orthonormal is a
// modelling error and panics with ErrNotOrthonormal.
func NewPose(rotation *spatialmath.RotationMatrix, position r3.Vector) Pose {
	if !rotation.IsOrthonormal(OrthonormalTolerance) {
		panic(errors.Wrapf(ErrNotOrthonormal, "%v", rotation))
	}
	return Pose{Rotation: rotation, Position: position}
}

// NewZeroPose returns the identity transform.
func NewZeroPose() Pose {
	return Pose{Rotation: spatialmath.NewIdentityRotationMatrix()}
}

// Compose returns p·other.
func (p Pose) Compose(other Pose) Pose {
	return Pose{
		Rotation: p.Rotation.Mul(other.Rotation),
		Position: p.Position.Add(p.Rotation.MulVec(other.Position)),
	}
}

// Inverse returns the inverse transform.
func (p Pose) Inverse() Pose {
	rt := p.Rotation.Transpose()
	return Pose{Rotation: rt, Position: rt.MulVec(p.Position).Mul(-1)}
}

// Between returns p⁻¹·other.
func (p Pose) Between(other Pose) Pose {
	return p.Inverse().Compose(other)
}

// Retract moves the pose along the tangent vector xi = [ω, v], rotation first:
// R' = R·Exp(ω) and p' = p + R·v.
func (p Pose) Retract(xi [PoseDim]float64) Pose {
	omega := r3.Vector{X: xi[0], Y: xi[1], Z: xi[2]}
	v := r3.Vector{X: xi[3], Y: xi[4], Z: xi[5]}
	return Pose{
		Rotation: p.Rotation.Mul(spatialmath.ExpMap(omega)),
		Position: p.Position.Add(p.Rotation.MulVec(v)),
	}
}

// LocalCoordinates is the inverse of Retract: p.Retract(p.LocalCoordinates(q)) == q.
func (p Pose) LocalCoordinates(other Pose) [PoseDim]float64 {
	rt := p.Rotation.Transpose()
	omega := spatialmath.LogMap(rt.Mul(other.Rotation))
	v := rt.MulVec(other.Position.Sub(p.Position))
	return [PoseDim]float64{omega.X, omega.Y, omega.Z, v.X, v.Y, v.Z}
}

// AlmostEqual compares rotation and position element-wise.
func (p Pose) AlmostEqual(other Pose, tol float64) bool {
	return spatialmath.RotationMatrixAlmostEqual(p.Rotation, other.Rotation, tol) &&
		p.Position.Sub(other.Position).Norm() <= tol
}

func (p Pose) String() string {
	return fmt.Sprintf("Pose{R: %v, t: (%.6f, %.6f, %.6f)}", p.Rotation, p.Position.X, p.Position.Y, p.Position.Z)
}
