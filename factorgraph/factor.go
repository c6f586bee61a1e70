package factorgraph

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/onurbagoren/UW-SLAM/imu"
	"github.com/onurbagoren/UW-SLAM/navstate"
	"github.com/onurbagoren/UW-SLAM/spatialmath"
)

// Factor is a constraint over a fixed set of variables. Its whitened error is
// SqrtInformation()·Error(values).
type Factor interface {
	Keys() []Key
	Dim() int
	Error(values *Values) ([]float64, error)
	SqrtInformation() *mat.Dense
}

func isotropic(dim int, sigma float64) *mat.Dense {
	w := mat.NewDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		w.Set(i, i, 1/sigma)
	}
	return w
}

// PriorPoseFactor anchors a pose to a measured value with isotropic noise.
type PriorPoseFactor struct {
	key   Key
	prior navstate.Pose
	sqrtW *mat.Dense
}

// NewPriorPoseFactor returns a prior on key with standard deviation sigma on every tangent component.
func NewPriorPoseFactor(key Key, prior navstate.Pose, sigma float64) (*PriorPoseFactor, error) {
	if key.Role != RolePose {
		return nil, errors.Wrapf(ErrWrongType, "pose prior on %s", key)
	}
	if sigma <= 0 {
		return nil, errors.Errorf("pose prior sigma must be positive, got %v", sigma)
	}
	return &PriorPoseFactor{key: key, prior: prior, sqrtW: isotropic(navstate.PoseDim, sigma)}, nil
}

// Keys returns the constrained pose key.
func (f *PriorPoseFactor) Keys() []Key { return []Key{f.key} }

// Dim is the residual dimension.
func (f *PriorPoseFactor) Dim() int { return navstate.PoseDim }

// SqrtInformation returns the whitening matrix.
func (f *PriorPoseFactor) SqrtInformation() *mat.Dense { return f.sqrtW }

// Prior returns the anchored pose.
func (f *PriorPoseFactor) Prior() navstate.Pose { return f.prior }

// Error returns the tangent vector from the prior to the current pose.
func (f *PriorPoseFactor) Error(values *Values) ([]float64, error) {
	p, err := values.Pose(f.key)
	if err != nil {
		return nil, err
	}
	xi := f.prior.LocalCoordinates(p)
	return xi[:], nil
}

// PriorVelocityFactor anchors a velocity to a measured value with isotropic noise.
type PriorVelocityFactor struct {
	key   Key
	prior r3.Vector
	sqrtW *mat.Dense
}

// NewPriorVelocityFactor returns a prior on key with standard deviation sigma on every component.
func NewPriorVelocityFactor(key Key, prior r3.Vector, sigma float64) (*PriorVelocityFactor, error) {
	if key.Role != RoleVelocity {
		return nil, errors.Wrapf(ErrWrongType, "velocity prior on %s", key)
	}
	if sigma <= 0 {
		return nil, errors.Errorf("velocity prior sigma must be positive, got %v", sigma)
	}
	return &PriorVelocityFactor{key: key, prior: prior, sqrtW: isotropic(3, sigma)}, nil
}

// Keys returns the constrained velocity key.
func (f *PriorVelocityFactor) Keys() []Key { return []Key{f.key} }

// Dim is the residual dimension.
func (f *PriorVelocityFactor) Dim() int { return 3 }

// SqrtInformation returns the whitening matrix.
func (f *PriorVelocityFactor) SqrtInformation() *mat.Dense { return f.sqrtW }

// Error returns v - prior.
func (f *PriorVelocityFactor) Error(values *Values) ([]float64, error) {
	v, err := values.Velocity(f.key)
	if err != nil {
		return nil, err
	}
	d := v.Sub(f.prior)
	return []float64{d.X, d.Y, d.Z}, nil
}

// ImuFactor links the pose and velocity of two epochs through a preintegrated delta. The delta
// was computed with the value of the bias key, which is held constant, so the residual does not
// depend on it. Residuals are ordered [rotation, position, velocity].
type ImuFactor struct {
	keys    [5]Key
	delta   imu.Delta
	gravity r3.Vector
	sqrtW   *mat.Dense
}

// NewImuFactor builds the constraint between (xi, vi) and (xj, vj) under gravity. minSigma
// regularizes the preintegrated covariance before it is inverted.
func NewImuFactor(xi, vi, xj, vj, b Key, delta imu.Delta, gravity r3.Vector, minSigma float64) (*ImuFactor, error) {
	for _, k := range []struct {
		key  Key
		role Role
	}{{xi, RolePose}, {vi, RoleVelocity}, {xj, RolePose}, {vj, RoleVelocity}, {b, RoleBias}} {
		if k.key.Role != k.role {
			return nil, errors.Wrapf(ErrWrongType, "imu factor given %s in place of a %c key", k.key, k.role)
		}
	}
	sqrtW, err := delta.SqrtInformation(minSigma)
	if err != nil {
		return nil, err
	}
	return &ImuFactor{keys: [5]Key{xi, vi, xj, vj, b}, delta: delta, gravity: gravity, sqrtW: sqrtW}, nil
}

// Keys returns [xi, vi, xj, vj, b].
func (f *ImuFactor) Keys() []Key { return f.keys[:] }

// Dim is the residual dimension.
func (f *ImuFactor) Dim() int { return navstate.NavStateDim }

// SqrtInformation returns the whitening matrix.
func (f *ImuFactor) SqrtInformation() *mat.Dense { return f.sqrtW }

// Delta returns the preintegrated measurement.
func (f *ImuFactor) Delta() imu.Delta { return f.delta }

// Error compares the relative motion between the two epochs with the preintegrated delta:
//
//	rθ = Log(ΔRᵀ·Riᵀ·Rj)
//	rp = Riᵀ·(pj - pi - vi·Δt - ½·g·Δt²) - ΔP
//	rv = Riᵀ·(vj - vi - g·Δt) - ΔV
func (f *ImuFactor) Error(values *Values) ([]float64, error) {
	poseI, err := values.Pose(f.keys[0])
	if err != nil {
		return nil, err
	}
	velI, err := values.Velocity(f.keys[1])
	if err != nil {
		return nil, err
	}
	poseJ, err := values.Pose(f.keys[2])
	if err != nil {
		return nil, err
	}
	velJ, err := values.Velocity(f.keys[3])
	if err != nil {
		return nil, err
	}

	dt := f.delta.DeltaT
	riT := poseI.Rotation.Transpose()
	rTheta := spatialmath.LogMap(f.delta.DeltaR.Transpose().Mul(riT).Mul(poseJ.Rotation))
	rP := riT.MulVec(poseJ.Position.
		Sub(poseI.Position).
		Sub(velI.Mul(dt)).
		Sub(f.gravity.Mul(0.5 * dt * dt))).Sub(f.delta.DeltaP)
	rV := riT.MulVec(velJ.Sub(velI).Sub(f.gravity.Mul(dt))).Sub(f.delta.DeltaV)

	return []float64{rTheta.X, rTheta.Y, rTheta.Z, rP.X, rP.Y, rP.Z, rV.X, rV.Y, rV.Z}, nil
}
