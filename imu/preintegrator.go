package imu

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/onurbagoren/UW-SLAM/navstate"
	"github.com/onurbagoren/UW-SLAM/spatialmath"
)

// Preintegrator accumulates bias-corrected samples into a Delta. It is rebuilt for every epoch
// transition with Reset and is not safe for concurrent use.
type Preintegrator struct {
	params Params
	bias   navstate.Bias

	deltaR *spatialmath.RotationMatrix
	deltaV r3.Vector
	deltaP r3.Vector
	deltaT float64
	count  int

	cov *mat.SymDense
}

// NewPreintegrator returns an empty preintegrator for the given bias.
func NewPreintegrator(params Params, bias navstate.Bias) *Preintegrator {
	pim := &Preintegrator{params: params}
	pim.Reset(bias)
	return pim
}

// Reset clears the accumulated delta and sets the bias used for the next interval.
func (pim *Preintegrator) Reset(bias navstate.Bias) {
	pim.bias = bias
	pim.deltaR = spatialmath.NewIdentityRotationMatrix()
	pim.deltaV = r3.Vector{}
	pim.deltaP = r3.Vector{}
	pim.deltaT = 0
	pim.count = 0
	pim.cov = mat.NewSymDense(navstate.NavStateDim, nil)
}

// Params returns the noise model.
func (pim *Preintegrator) Params() Params {
	return pim.params
}

// Bias returns the bias the current interval is corrected with.
func (pim *Preintegrator) Bias() navstate.Bias {
	return pim.bias
}

// Count returns the number of samples handed to Integrate since the last Reset, including ignored ones.
func (pim *Preintegrator) Count() int {
	return pim.count
}

// DeltaT returns the integrated time in seconds.
func (pim *Preintegrator) DeltaT() float64 {
	return pim.deltaT
}

// IntegrateSample integrates s over dt seconds.
func (pim *Preintegrator) IntegrateSample(s Sample, dt float64) {
	pim.Integrate(s.SpecificForce, s.AngularVelocity, dt)
}

// Integrate applies one raw measurement held for dt seconds. A non-positive dt is counted but
// contributes no motion.
func (pim *Preintegrator) Integrate(measuredAcc, measuredOmega r3.Vector, dt float64) {
	pim.count++
	if dt <= 0 {
		return
	}
	acc := pim.bias.CorrectAccelerometer(measuredAcc)
	omega := pim.bias.CorrectGyroscope(measuredOmega)

	pim.propagateCovariance(acc, omega, dt)

	rotatedAcc := pim.deltaR.MulVec(acc)
	pim.deltaP = pim.deltaP.Add(pim.deltaV.Mul(dt)).Add(rotatedAcc.Mul(0.5 * dt * dt))
	pim.deltaV = pim.deltaV.Add(rotatedAcc.Mul(dt))
	pim.deltaR = pim.deltaR.Mul(spatialmath.ExpMap(omega.Mul(dt)))
	pim.deltaT += dt
}

// propagateCovariance applies Σ' = AΣAᵀ + B·Qa·Bᵀ + C·Qg·Cᵀ + Qi with the state ordered
// [θ, p, v]. It must run before the mean is updated since A and B use the current ΔR.
func (pim *Preintegrator) propagateCovariance(acc, omega r3.Vector, dt float64) {
	const n = navstate.NavStateDim
	dR := pim.deltaR.Dense()
	incR := spatialmath.ExpMap(omega.Mul(dt))

	var rSkewA mat.Dense
	rSkewA.Mul(dR, spatialmath.Skew(acc))

	a := identity(n)
	setBlock(a, 0, 0, incR.Transpose().Dense(), 1)
	setBlock(a, 3, 0, &rSkewA, -0.5*dt*dt)
	setBlock(a, 3, 6, identity(3), dt)
	setBlock(a, 6, 0, &rSkewA, -dt)

	b := mat.NewDense(n, 3, nil)
	setBlock(b, 3, 0, dR, 0.5*dt*dt)
	setBlock(b, 6, 0, dR, dt)

	c := mat.NewDense(n, 3, nil)
	setBlock(c, 0, 0, spatialmath.RightJacobian(omega.Mul(dt)), dt)

	var next, tmp mat.Dense
	next.Mul(a, pim.cov)
	next.Mul(&next, a.T())

	tmp.Mul(b, b.T())
	tmp.Scale(pim.params.AccelerometerCovariance/dt, &tmp)
	next.Add(&next, &tmp)

	tmp.Mul(c, c.T())
	tmp.Scale(pim.params.GyroscopeCovariance/dt, &tmp)
	next.Add(&next, &tmp)

	for i := 3; i < 6; i++ {
		next.Set(i, i, next.At(i, i)+pim.params.IntegrationCovariance*dt)
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			// Symmetrize to stop round-off from accumulating.
			pim.cov.SetSym(i, j, 0.5*(next.At(i, j)+next.At(j, i)))
		}
	}
}

// Delta returns a snapshot of the accumulated motion.
func (pim *Preintegrator) Delta() Delta {
	cov := mat.NewSymDense(navstate.NavStateDim, nil)
	cov.CopySym(pim.cov)
	return Delta{
		DeltaR:     pim.deltaR,
		DeltaV:     pim.deltaV,
		DeltaP:     pim.deltaP,
		DeltaT:     pim.deltaT,
		Count:      pim.count,
		Covariance: cov,
		Bias:       pim.bias,
	}
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// setBlock writes scale·src into dst starting at (row, col).
func setBlock(dst *mat.Dense, row, col int, src mat.Matrix, scale float64) {
	r, c := src.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(row+i, col+j, scale*src.At(i, j))
		}
	}
}
