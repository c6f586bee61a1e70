package navstate

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/onurbagoren/UW-SLAM/spatialmath"
)

func TestPoseRetractLocalRoundTrip(t *testing.T) {
	p := NewPose(spatialmath.RotationMatrixFromRPY(0.1, -0.2, 0.7), r3.Vector{X: 1, Y: 2, Z: -3})
	xi := [PoseDim]float64{0.05, -0.02, 0.3, 0.4, -0.1, 2}
	q := p.Retract(xi)
	back := p.LocalCoordinates(q)
	for i := range xi {
		test.That(t, back[i], test.ShouldAlmostEqual, xi[i], 1e-9)
	}
	test.That(t, q.Rotation.IsOrthonormal(1e-9), test.ShouldBeTrue)

	// Rotation is applied first: the translation is expressed in the starting body frame.
	yaw := NewPose(spatialmath.RotZ(1.5707963267948966), r3.Vector{})
	moved := yaw.Retract([PoseDim]float64{0, 0, 0, 1, 0, 0})
	test.That(t, moved.Position.X, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, moved.Position.Y, test.ShouldAlmostEqual, 1, 1e-12)
}

func TestPoseAlgebra(t *testing.T) {
	a := NewPose(spatialmath.RotX(0.3), r3.Vector{X: 1})
	b := NewPose(spatialmath.RotZ(-0.8), r3.Vector{Y: 2, Z: 1})
	test.That(t, a.Compose(a.Inverse()).AlmostEqual(NewZeroPose(), 1e-12), test.ShouldBeTrue)
	test.That(t, a.Compose(a.Between(b)).AlmostEqual(b, 1e-12), test.ShouldBeTrue)
}

func TestNewPoseRejectsNonOrthonormal(t *testing.T) {
	skewed, err := spatialmath.NewRotationMatrix([]float64{1, 0.1, 0, 0, 1, 0, 0, 0, 1})
	test.That(t, err, test.ShouldBeNil)

	var recovered interface{}
	func() {
		defer func() { recovered = recover() }()
		NewPose(skewed, r3.Vector{})
	}()
	test.That(t, recovered, test.ShouldNotBeNil)
	recErr, ok := recovered.(error)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, errors.Is(recErr, ErrNotOrthonormal), test.ShouldBeTrue)
}

func TestNavStateRetract(t *testing.T) {
	s := NewNavState(spatialmath.RotY(0.2), r3.Vector{X: 5}, r3.Vector{X: 1, Y: 0.5})
	xi := [NavStateDim]float64{0.01, 0.02, -0.03, 0.1, 0.2, 0.3, -1, 0, 2}
	moved := s.Retract(xi)
	test.That(t, moved.Velocity, test.ShouldResemble, r3.Vector{X: 0, Y: 0.5, Z: 2})
	back := s.LocalCoordinates(moved)
	for i := range xi {
		test.That(t, back[i], test.ShouldAlmostEqual, xi[i], 1e-9)
	}
	body := NewNavState(spatialmath.RotZ(1.5707963267948966), r3.Vector{}, r3.Vector{Y: 1}).BodyVelocity()
	test.That(t, body.X, test.ShouldAlmostEqual, 1, 1e-12)
}

func TestBias(t *testing.T) {
	b := Bias{
		Accelerometer: r3.Vector{X: 0.067, Y: 0.115, Z: 0.320},
		Gyroscope:     r3.Vector{X: 0.067, Y: 0.115, Z: 0.320},
	}
	corrected := b.CorrectAccelerometer(r3.Vector{X: 1, Y: 1, Z: 1})
	test.That(t, corrected.X, test.ShouldAlmostEqual, 0.933)
	test.That(t, corrected.Z, test.ShouldAlmostEqual, 0.68)
	test.That(t, b.CorrectGyroscope(b.Gyroscope), test.ShouldResemble, r3.Vector{})

	xi := [BiasDim]float64{1, 2, 3, 4, 5, 6}
	test.That(t, b.LocalCoordinates(b.Retract(xi))[5], test.ShouldAlmostEqual, 6)
	test.That(t, b.Vector()[2], test.ShouldEqual, 0.320)
}
