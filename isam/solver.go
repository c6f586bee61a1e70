package isam

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	fg "github.com/onurbagoren/UW-SLAM/factorgraph"
	"github.com/onurbagoren/UW-SLAM/logging"
)

// ErrIndeterminantSystem is returned when the constraints do not determine every variable.
var ErrIndeterminantSystem = errors.New("indeterminant linear system")

// Stats describes the state of a Solver.
type Stats struct {
	Updates          int
	Relinearizations int
	Variables        int
	Constants        int
	Factors          int
	Dim              int
}

// Solver maintains the square-root information factorization of a growing factor graph. Bias
// variables are held constant at their inserted value and never enter the factorization.
//
// A failed Update leaves the solver exactly as it was before the call.
type Solver struct {
	params Params
	logger logging.Logger
	sys    *system
}

// NewSolver returns an empty solver.
func NewSolver(params Params, logger logging.Logger) (*Solver, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Solver{params: params, logger: logger, sys: newSystem()}, nil
}

func isConstant(key fg.Key) bool {
	return key.Role == fg.RoleBias
}

// Update inserts the new variables at their initial estimates, folds the new factors into the
// factorization and returns the current estimate of every variable, constants included.
func (s *Solver) Update(newFactors []fg.Factor, newValues *fg.Values) (*fg.Values, error) {
	work := s.sys.clone()

	if newValues != nil {
		for _, key := range newValues.Keys() {
			if work.linPoint.Exists(key) {
				return nil, errors.Wrap(fg.ErrKeyExists, key.String())
			}
			value, err := newValues.At(key)
			if err != nil {
				return nil, err
			}
			if err := work.linPoint.Insert(key, value); err != nil {
				return nil, err
			}
			if !isConstant(key) {
				work.addVariable(key)
			}
		}
	}

	for _, f := range newFactors {
		for _, key := range f.Keys() {
			if !work.linPoint.Exists(key) {
				return nil, errors.Wrap(fg.ErrUnsetKey, key.String())
			}
		}
		if err := work.foldFactor(f, isConstant); err != nil {
			return nil, err
		}
		work.factors = append(work.factors, f)
	}

	if err := work.checkDiagonal(s.params.MinDiagonal); err != nil {
		return nil, err
	}
	work.backSubstitute()
	work.updates++

	if work.dim > 0 && (s.params.RelinearizeSkip <= 1 || work.updates%s.params.RelinearizeSkip == 0) {
		if over := work.keysAbove(s.params.RelinearizeThreshold); len(over) > 0 {
			if err := s.relinearize(work, over); err != nil {
				return nil, err
			}
		}
	}

	estimate, err := work.estimate()
	if err != nil {
		return nil, err
	}
	s.sys = work
	return estimate, nil
}

// relinearize iterates Gauss-Newton on the variables in over and their neighbors. Each
// iteration refolds only the factors on those variables. Variables further away keep their
// linearization point.
func (s *Solver) relinearize(sys *system, over []fg.Key) error {
	marked := sys.neighborhood(over, isConstant)
	s.logger.Debugw("relinearizing",
		"update", sys.updates,
		"variables", len(over),
		"marked", len(marked))

	for iter := 0; iter < s.params.MaxIterations; iter++ {
		ok, err := sys.relinearizeKeys(marked, isConstant)
		if err != nil {
			return err
		}
		if !ok {
			s.logger.Warnw("partial relinearization lost positive definiteness, relinearizing every variable",
				"update", sys.updates)
			return s.relinearizeAll(sys)
		}
		if err := sys.checkDiagonal(s.params.MinDiagonal); err != nil {
			return err
		}
		sys.backSubstitute()

		largest := 0.0
		for key := range marked {
			largest = math.Max(largest, sys.keyDelta(key))
		}
		if largest < s.params.ConvergenceTolerance {
			break
		}
	}
	sys.relinearizations++
	return nil
}

// relinearizeAll runs Gauss-Newton over every factor from the current estimate, moves the
// whole linearization point to the result and refactors R from scratch. It is the fallback
// when the local update cannot be factored.
func (s *Solver) relinearizeAll(sys *system) error {
	if sys.dim == 0 {
		return nil
	}
	values, err := sys.estimate()
	if err != nil {
		return err
	}
	for iter := 0; iter < s.params.MaxIterations; iter++ {
		a, b, err := sys.stack(values, isConstant)
		if err != nil {
			return err
		}
		var qr mat.QR
		qr.Factorize(a)
		var r mat.Dense
		qr.RTo(&r)
		for i := 0; i < sys.dim; i++ {
			if math.Abs(r.At(i, i)) < s.params.MinDiagonal {
				return errors.Wrapf(ErrIndeterminantSystem, "variable %s during relinearization", sys.keyAt(i))
			}
		}
		var dx mat.VecDense
		if err := qr.SolveVecTo(&dx, false, b); err != nil {
			return errors.Wrap(ErrIndeterminantSystem, err.Error())
		}
		step := dx.RawVector().Data
		if values, err = sys.retract(values, step); err != nil {
			return err
		}
		if floats.Norm(step, math.Inf(1)) < s.params.ConvergenceTolerance {
			break
		}
	}

	sys.linPoint = values
	sys.reset()
	for _, f := range sys.factors {
		if err := sys.foldFactor(f, isConstant); err != nil {
			return err
		}
	}
	if err := sys.checkDiagonal(s.params.MinDiagonal); err != nil {
		return err
	}
	sys.backSubstitute()
	sys.relinearizations++
	return nil
}

// CalculateEstimate returns the current estimate of every variable.
func (s *Solver) CalculateEstimate() (*fg.Values, error) {
	return s.sys.estimate()
}

// Estimate returns the current estimate of one variable.
func (s *Solver) Estimate(key fg.Key) (interface{}, error) {
	if !s.sys.linPoint.Exists(key) {
		return nil, errors.Wrap(fg.ErrKeyNotFound, key.String())
	}
	off, ok := s.sys.ordering[key]
	if !ok {
		return s.sys.linPoint.At(key)
	}
	return s.sys.linPoint.Retract(key, s.sys.delta[off:off+key.Dim()])
}

// Constants returns the keys held fixed at their inserted value.
func (s *Solver) Constants() []fg.Key {
	var out []fg.Key
	for _, key := range s.sys.linPoint.Keys() {
		if isConstant(key) {
			out = append(out, key)
		}
	}
	return out
}

// Stats returns counters describing the solver.
func (s *Solver) Stats() Stats {
	constants := len(s.Constants())
	return Stats{
		Updates:          s.sys.updates,
		Relinearizations: s.sys.relinearizations,
		Variables:        len(s.sys.keys),
		Constants:        constants,
		Factors:          len(s.sys.factors),
		Dim:              s.sys.dim,
	}
}
