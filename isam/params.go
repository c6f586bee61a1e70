// Package isam is an incremental square-root information smoother. New constraints are folded into
// the existing factorization with Givens rotations. The linearization point of a variable is
// refreshed only when its update grows past a threshold, and only the factors around it are
// refactored.
package isam

import "github.com/pkg/errors"

// Params control relinearization and the numerical checks of the solver.
type Params struct {
	// RelinearizeThreshold marks a variable for relinearization when its update exceeds it in the
	// infinity norm.
	RelinearizeThreshold float64 `json:"relinearize_threshold"`
	// RelinearizeSkip checks the threshold only every this many updates. Zero and one check on
	// every update.
	RelinearizeSkip int `json:"relinearize_skip"`
	// MaxIterations bounds the Gauss-Newton iterations of a relinearization.
	MaxIterations int `json:"max_iterations"`
	// ConvergenceTolerance stops Gauss-Newton once the update is smaller in the infinity norm.
	ConvergenceTolerance float64 `json:"convergence_tolerance"`
	// MinDiagonal is the smallest accepted magnitude of a diagonal entry of the factor R.
	MinDiagonal float64 `json:"min_diagonal"`
}

// DefaultParams returns the parameters used by the estimator unless configured otherwise.
func DefaultParams() Params {
	return Params{
		RelinearizeThreshold: 0.1,
		RelinearizeSkip:      1,
		MaxIterations:        10,
		ConvergenceTolerance: 1e-9,
		MinDiagonal:          1e-9,
	}
}

// Validate returns an error for parameters the solver cannot run with.
func (p Params) Validate() error {
	if p.RelinearizeThreshold <= 0 {
		return errors.Errorf("relinearize threshold must be positive, got %v", p.RelinearizeThreshold)
	}
	if p.RelinearizeSkip < 0 {
		return errors.Errorf("relinearize skip must not be negative, got %d", p.RelinearizeSkip)
	}
	if p.MaxIterations < 1 {
		return errors.Errorf("max iterations must be at least 1, got %d", p.MaxIterations)
	}
	if p.ConvergenceTolerance <= 0 || p.MinDiagonal <= 0 {
		return errors.New("convergence tolerance and min diagonal must be positive")
	}
	return nil
}
