package imu

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/onurbagoren/UW-SLAM/navstate"
	"github.com/onurbagoren/UW-SLAM/spatialmath"
)

var testBias = navstate.Bias{
	Accelerometer: r3.Vector{X: 0.067, Y: 0.115, Z: 0.320},
	Gyroscope:     r3.Vector{X: 0.067, Y: 0.115, Z: 0.320},
}

func TestEmptyPreintegrationIsIdentity(t *testing.T) {
	pim := NewPreintegrator(MakeParamsU(9.81), testBias)
	delta := pim.Delta()
	test.That(t, delta.IsIdentity(), test.ShouldBeTrue)
	test.That(t, delta.Count, test.ShouldEqual, 0)
	test.That(t, delta.DeltaT, test.ShouldEqual, 0)

	w, err := delta.SqrtInformation(DefaultMinDeltaSigma)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, w.At(0, 0), test.ShouldAlmostEqual, 1/DefaultMinDeltaSigma, 1e-3)
	test.That(t, w.At(4, 2), test.ShouldEqual, 0)
}

func TestNonPositiveDtIsCountedNotIntegrated(t *testing.T) {
	pim := NewPreintegrator(MakeParamsU(9.81), navstate.Bias{})
	pim.Integrate(r3.Vector{X: 3}, r3.Vector{Z: 1}, 0)
	pim.Integrate(r3.Vector{X: 3}, r3.Vector{Z: 1}, -0.1)
	test.That(t, pim.Count(), test.ShouldEqual, 2)
	test.That(t, pim.Delta().IsIdentity(), test.ShouldBeTrue)
}

func TestPreintegrationIsDeterministic(t *testing.T) {
	samples := []Sample{
		{Time: 0.00, AngularVelocity: r3.Vector{X: 0.1, Y: -0.2, Z: 0.3}, SpecificForce: r3.Vector{X: 0.5, Z: 9.8}},
		{Time: 0.01, AngularVelocity: r3.Vector{X: 0.2, Y: -0.1, Z: 0.3}, SpecificForce: r3.Vector{X: 0.4, Y: 0.1, Z: 9.7}},
		{Time: 0.03, AngularVelocity: r3.Vector{X: 0.0, Y: 0.0, Z: 0.5}, SpecificForce: r3.Vector{X: 0.1, Y: 0.2, Z: 9.9}},
		{Time: 0.04, AngularVelocity: r3.Vector{X: -0.3, Y: 0.2, Z: 0.1}, SpecificForce: r3.Vector{Y: -0.3, Z: 9.81}},
	}
	run := func() Delta {
		pim := NewPreintegrator(MakeParamsU(9.81), testBias)
		prev := 0.0
		for _, s := range samples {
			pim.IntegrateSample(s, s.Time-prev+0.01)
			prev = s.Time
		}
		return pim.Delta()
	}
	first := run()
	second := run()
	test.That(t, first.DeltaR.Data(), test.ShouldResemble, second.DeltaR.Data())
	test.That(t, first.DeltaV, test.ShouldResemble, second.DeltaV)
	test.That(t, first.DeltaP, test.ShouldResemble, second.DeltaP)
	test.That(t, first.Covariance.RawSymmetric().Data, test.ShouldResemble, second.Covariance.RawSymmetric().Data)
	test.That(t, first.DeltaR.IsOrthonormal(1e-9), test.ShouldBeTrue)
	test.That(t, first.Count, test.ShouldEqual, len(samples))
}

func TestConstantRotation(t *testing.T) {
	omega := r3.Vector{Z: 0.5}
	pim := NewPreintegrator(MakeParamsU(9.81), navstate.Bias{})
	for i := 0; i < 10; i++ {
		pim.Integrate(r3.Vector{}, omega, 0.1)
	}
	delta := pim.Delta()
	test.That(t, delta.DeltaT, test.ShouldAlmostEqual, 1.0)
	expected := spatialmath.ExpMap(omega)
	test.That(t, spatialmath.RotationMatrixAlmostEqual(delta.DeltaR, expected, 1e-12), test.ShouldBeTrue)
	test.That(t, delta.DeltaV, test.ShouldResemble, r3.Vector{})

	// Rotation uncertainty grows with integration time.
	test.That(t, delta.Covariance.At(2, 2), test.ShouldAlmostEqual, pim.Params().GyroscopeCovariance*1.0, 1e-9)
}

func TestConstantAcceleration(t *testing.T) {
	pim := NewPreintegrator(MakeParamsU(9.81), navstate.Bias{Accelerometer: r3.Vector{Z: 0.5}})
	for i := 0; i < 10; i++ {
		pim.Integrate(r3.Vector{X: 2, Z: 0.5}, r3.Vector{}, 0.1)
	}
	delta := pim.Delta()
	test.That(t, delta.DeltaV.X, test.ShouldAlmostEqual, 2.0)
	test.That(t, delta.DeltaV.Z, test.ShouldAlmostEqual, 0)
	test.That(t, delta.DeltaP.X, test.ShouldAlmostEqual, 1.0)

	for i := 0; i < navstate.NavStateDim; i++ {
		test.That(t, delta.Covariance.At(i, i), test.ShouldBeGreaterThan, 0)
	}
	_, err := delta.SqrtInformation(0)
	test.That(t, err, test.ShouldBeNil)
}

func TestPredict(t *testing.T) {
	params := MakeParamsU(9.81)
	pim := NewPreintegrator(params, navstate.Bias{})
	// A stationary, level sensor measures the reaction to gravity.
	for i := 0; i < 20; i++ {
		pim.Integrate(r3.Vector{Z: 9.81}, r3.Vector{}, 0.05)
	}
	start := navstate.NewNavState(spatialmath.NewIdentityRotationMatrix(), r3.Vector{X: 1, Y: 2, Z: 3}, r3.Vector{X: 0.5})
	end := pim.Delta().Predict(start, params.Gravity)
	test.That(t, end.Position.X, test.ShouldAlmostEqual, 1.5, 1e-9)
	test.That(t, end.Position.Y, test.ShouldAlmostEqual, 2, 1e-9)
	test.That(t, end.Position.Z, test.ShouldAlmostEqual, 3, 1e-9)
	test.That(t, end.Velocity.X, test.ShouldAlmostEqual, 0.5, 1e-9)
	test.That(t, math.Abs(end.Velocity.Z), test.ShouldBeLessThan, 1e-9)
}

func TestReset(t *testing.T) {
	pim := NewPreintegrator(MakeParamsU(9.81), navstate.Bias{})
	pim.Integrate(r3.Vector{X: 1}, r3.Vector{Y: 1}, 0.1)
	test.That(t, pim.Delta().IsIdentity(), test.ShouldBeFalse)
	pim.Reset(testBias)
	test.That(t, pim.Delta().IsIdentity(), test.ShouldBeTrue)
	test.That(t, pim.Bias(), test.ShouldResemble, testBias)
	test.That(t, pim.DeltaT(), test.ShouldEqual, 0)
}
