package spatialmath

import (
	"github.com/golang/geo/r3"
)

// AngularVelocity is a body rate in rad/s.
type AngularVelocity r3.Vector

// R3 returns the rate as an r3 vector.
func (av AngularVelocity) R3() r3.Vector {
	return r3.Vector(av)
}

// OrientationToAngularVel returns the constant body rate that turns through o in dt seconds.
func OrientationToAngularVel(o Orientation, dt float64) AngularVelocity {
	return AngularVelocity(LogMap(o.RotationMatrix()).Mul(1 / dt))
}
