package navstate

import (
	"github.com/golang/geo/r3"

	"github.com/onurbagoren/UW-SLAM/spatialmath"
)

// NavStateDim is the tangent space dimension of a NavState, ordered [rotation, position, velocity].
const NavStateDim = 9

// NavState is a pose plus a navigation frame velocity.
type NavState struct {
	Pose
	Velocity r3.Vector
}

// NewNavState builds a NavState. See NewPose for the orthonormality requirement.
func NewNavState(rotation *spatialmath.RotationMatrix, position, velocity r3.Vector) NavState {
	return NavState{Pose: NewPose(rotation, position), Velocity: velocity}
}

// Retract applies the pose retraction to the first six components and adds the last three to the
// velocity.
func (s NavState) Retract(xi [NavStateDim]float64) NavState {
	var poseXi [PoseDim]float64
	copy(poseXi[:], xi[:PoseDim])
	return NavState{
		Pose:     s.Pose.Retract(poseXi),
		Velocity: s.Velocity.Add(r3.Vector{X: xi[6], Y: xi[7], Z: xi[8]}),
	}
}

// LocalCoordinates is the inverse of Retract.
func (s NavState) LocalCoordinates(other NavState) [NavStateDim]float64 {
	var out [NavStateDim]float64
	poseXi := s.Pose.LocalCoordinates(other.Pose)
	copy(out[:PoseDim], poseXi[:])
	dv := other.Velocity.Sub(s.Velocity)
	out[6], out[7], out[8] = dv.X, dv.Y, dv.Z
	return out
}

// BodyVelocity returns the velocity expressed in the body frame.
func (s NavState) BodyVelocity() r3.Vector {
	return s.Rotation.Transpose().MulVec(s.Velocity)
}
