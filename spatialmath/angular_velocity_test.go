package spatialmath

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestOrientationToAngularVel(t *testing.T) {
	dt := 2.0

	for _, rate := range []struct {
		TestName    string
		AngularRate r3.Vector
	}{
		{"unitary roll", r3.Vector{X: 1, Y: 0, Z: 0}},
		{"unitary pitch", r3.Vector{X: 0, Y: 1, Z: 0}},
		{"unitary yaw", r3.Vector{X: 0, Y: 0, Z: 1}},
		{"combined", r3.Vector{X: 0.2, Y: -0.3, Z: 0.5}},
	} {
		t.Run(rate.TestName, func(t *testing.T) {
			rot := ExpMap(rate.AngularRate.Mul(dt))
			av := OrientationToAngularVel(rot, dt)
			test.That(t, av.X, test.ShouldAlmostEqual, rate.AngularRate.X)
			test.That(t, av.Y, test.ShouldAlmostEqual, rate.AngularRate.Y)
			test.That(t, av.Z, test.ShouldAlmostEqual, rate.AngularRate.Z)
			test.That(t, av.R3(), test.ShouldResemble, r3.Vector(av))
		})
	}
}
