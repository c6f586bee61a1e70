package spatialmath

import (
	"math"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"
)

// a 45 degree rotation about x in each representation
var (
	th    = math.Pi / 4.
	q45x  = quat.Number{Real: math.Cos(th / 2.), Imag: math.Sin(th / 2.)}
	aa45x = &R4AA{th, 1., 0., 0.}
	ea45x = &EulerAngles{Roll: th, Pitch: 0, Yaw: 0}
	rm45x = RotX(th)
)

func testOrientationRepresentations(t *testing.T, o Orientation) {
	t.Helper()
	test.That(t, o.Quaternion().Real, test.ShouldAlmostEqual, q45x.Real)
	test.That(t, o.Quaternion().Imag, test.ShouldAlmostEqual, q45x.Imag)
	test.That(t, o.Quaternion().Jmag, test.ShouldAlmostEqual, q45x.Jmag)
	test.That(t, o.Quaternion().Kmag, test.ShouldAlmostEqual, q45x.Kmag)
	test.That(t, o.AxisAngles().Theta, test.ShouldAlmostEqual, aa45x.Theta)
	test.That(t, o.AxisAngles().RX, test.ShouldAlmostEqual, aa45x.RX)
	test.That(t, o.AxisAngles().RY, test.ShouldAlmostEqual, aa45x.RY)
	test.That(t, o.AxisAngles().RZ, test.ShouldAlmostEqual, aa45x.RZ)
	test.That(t, o.EulerAngles().Roll, test.ShouldAlmostEqual, ea45x.Roll)
	test.That(t, o.EulerAngles().Pitch, test.ShouldAlmostEqual, ea45x.Pitch)
	test.That(t, o.EulerAngles().Yaw, test.ShouldAlmostEqual, ea45x.Yaw)
	test.That(t, RotationMatrixAlmostEqual(o.RotationMatrix(), rm45x, 1e-9), test.ShouldBeTrue)
}

func TestOrientationRepresentations(t *testing.T) {
	qq45x := quaternion(q45x)
	t.Run("quaternion", func(t *testing.T) { testOrientationRepresentations(t, &qq45x) })
	t.Run("rotation matrix", func(t *testing.T) { testOrientationRepresentations(t, rm45x) })
	t.Run("euler angles", func(t *testing.T) {
		test.That(t, RotationMatrixAlmostEqual(ea45x.RotationMatrix(), rm45x, 1e-12), test.ShouldBeTrue)
	})
	t.Run("identity", func(t *testing.T) {
		id := NewIdentityRotationMatrix()
		test.That(t, id.AxisAngles(), test.ShouldResemble, NewR4AA())
		test.That(t, id.Quaternion(), test.ShouldResemble, quat.Number{Real: 1})
		test.That(t, id.EulerAngles(), test.ShouldResemble, &EulerAngles{})
	})
}

func TestOrientationBetween(t *testing.T) {
	o1 := RotZ(0.3)
	o2 := RotZ(1.0)
	between := OrientationBetween(o1, o2)
	test.That(t, between.AxisAngles().Theta, test.ShouldAlmostEqual, 0.7)
	test.That(t, between.AxisAngles().RZ, test.ShouldAlmostEqual, 1)
	test.That(t, RotationMatrixAlmostEqual(between.RotationMatrix().Mul(o1), o2, 1e-12), test.ShouldBeTrue)

	test.That(t, AngleBetween(o1, o2), test.ShouldAlmostEqual, 0.7)
	test.That(t, AngleBetween(o2, o1), test.ShouldAlmostEqual, 0.7)
	test.That(t, AngleBetween(o2, o2), test.ShouldAlmostEqual, 0)

	// The angle is the shortest way round.
	test.That(t, AngleBetween(RotX(-3), RotX(3)), test.ShouldAlmostEqual, 2*math.Pi-6, 1e-9)
}

func TestEulerAnglesString(t *testing.T) {
	ea := &EulerAngles{Roll: math.Pi / 2, Pitch: -math.Pi / 4, Yaw: math.Pi}
	test.That(t, ea.String(), test.ShouldEqual, "roll 90.00° pitch -45.00° yaw 180.00°")

	back := RotationMatrixFromRPY(0, 0, 0.4).EulerAngles()
	test.That(t, back.Yaw, test.ShouldAlmostEqual, 0.4)
}

func TestRotationMatrix(t *testing.T) {
	_, err := NewRotationMatrix([]float64{1, 0, 0})
	test.That(t, err, test.ShouldNotBeNil)

	rm, err := NewRotationMatrix([]float64{0, -1, 0, 1, 0, 0, 0, 0, 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rm.IsOrthonormal(1e-9), test.ShouldBeTrue)
	test.That(t, rm.Det(), test.ShouldAlmostEqual, 1)
	test.That(t, RotationMatrixAlmostEqual(rm, RotZ(math.Pi/2), 1e-12), test.ShouldBeTrue)
	test.That(t, RotationMatrixAlmostEqual(rm.Mul(rm.Transpose()), NewIdentityRotationMatrix(), 1e-12), test.ShouldBeTrue)

	v := rm.MulVec(r3Vec(1, 0, 0))
	test.That(t, v.X, test.ShouldAlmostEqual, 0)
	test.That(t, v.Y, test.ShouldAlmostEqual, 1)

	scaled, err := NewRotationMatrix([]float64{1.01, 0, 0, 0, 1, 0.02, 0, 0, 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, scaled.IsOrthonormal(1e-6), test.ShouldBeFalse)
	test.That(t, scaled.Normalize().IsOrthonormal(1e-9), test.ShouldBeTrue)

	reflection, err := NewRotationMatrix([]float64{1, 0, 0, 0, 1, 0, 0, 0, -1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reflection.IsOrthonormal(1e-6), test.ShouldBeFalse)
}
