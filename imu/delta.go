package imu

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/onurbagoren/UW-SLAM/navstate"
	"github.com/onurbagoren/UW-SLAM/spatialmath"
)

// ErrCovarianceNotPositiveDefinite is returned when the preintegrated covariance cannot be factorized.
var ErrCovarianceNotPositiveDefinite = errors.New("preintegrated covariance is not positive definite")

// Delta is the relative motion between two epochs summarized from the samples between them,
// expressed in the body frame of the first epoch. Covariance is ordered [θ, p, v].
type Delta struct {
	DeltaR     *spatialmath.RotationMatrix
	DeltaV     r3.Vector
	DeltaP     r3.Vector
	DeltaT     float64
	Count      int
	Covariance *mat.SymDense
	Bias       navstate.Bias
}

// IsIdentity reports whether the delta carries no motion.
func (d Delta) IsIdentity() bool {
	return d.DeltaT == 0 &&
		d.DeltaV == (r3.Vector{}) &&
		d.DeltaP == (r3.Vector{}) &&
		spatialmath.RotationMatrixAlmostEqual(d.DeltaR, spatialmath.NewIdentityRotationMatrix(), 0)
}

// Predict propagates state to the end of the interval under gravity g.
func (d Delta) Predict(state navstate.NavState, gravity r3.Vector) navstate.NavState {
	dt := d.DeltaT
	ri := state.Rotation
	return navstate.NavState{
		Pose: navstate.Pose{
			Rotation: ri.Mul(d.DeltaR),
			Position: state.Position.
				Add(state.Velocity.Mul(dt)).
				Add(gravity.Mul(0.5 * dt * dt)).
				Add(ri.MulVec(d.DeltaP)),
		},
		Velocity: state.Velocity.Add(gravity.Mul(dt)).Add(ri.MulVec(d.DeltaV)),
	}
}

// SqrtInformation returns W with WᵀW = (Σ + σ²I)⁻¹, where σ is minSigma. Whitened residuals are W·r.
func (d Delta) SqrtInformation(minSigma float64) (*mat.Dense, error) {
	const n = navstate.NavStateDim
	cov := mat.NewSymDense(n, nil)
	if d.Covariance != nil {
		cov.CopySym(d.Covariance)
	}
	for i := 0; i < n; i++ {
		cov.SetSym(i, i, cov.At(i, i)+minSigma*minSigma)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return nil, ErrCovarianceNotPositiveDefinite
	}
	var l mat.TriDense
	chol.LTo(&l)
	var lInv mat.TriDense
	if err := lInv.InverseTri(&l); err != nil {
		return nil, errors.Wrap(ErrCovarianceNotPositiveDefinite, err.Error())
	}
	return mat.DenseCopyOf(&lInv), nil
}
