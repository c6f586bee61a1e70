package spatialmath

import (
	"fmt"
	"math"
)

// EulerAngles are Tait-Bryan angles applied in the z-y′-x″ sequence, so R = Rz(Yaw)·Ry(Pitch)·Rx(Roll).
// The external state stream composes its angles the other way round, see RotationMatrixFromRPY.
type EulerAngles struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// RotationMatrix returns Rz(Yaw)·Ry(Pitch)·Rx(Roll).
func (ea *EulerAngles) RotationMatrix() *RotationMatrix {
	return RotZ(ea.Yaw).Mul(RotY(ea.Pitch)).Mul(RotX(ea.Roll))
}

// String prints the angles in degrees.
func (ea *EulerAngles) String() string {
	deg := func(rad float64) float64 { return rad * 180 / math.Pi }
	return fmt.Sprintf("roll %.2f° pitch %.2f° yaw %.2f°", deg(ea.Roll), deg(ea.Pitch), deg(ea.Yaw))
}
