package factorgraph

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// LinearFactor is a whitened Gaussian factor Σ_k A_k·δ_k ≈ b over the non-constant keys of a
// nonlinear factor.
type LinearFactor struct {
	Keys      []Key
	Jacobians []*mat.Dense
	B         *mat.VecDense
}

// Rows is the number of equations.
func (lf *LinearFactor) Rows() int {
	return lf.B.Len()
}

// Linearize computes the whitened Jacobians of f at values with central differences over each
// key's retraction and returns b = -W·r. Keys for which constant reports true are left out.
func Linearize(f Factor, values *Values, constant func(Key) bool) (*LinearFactor, error) {
	r, err := f.Error(values)
	if err != nil {
		return nil, err
	}
	m := f.Dim()
	if len(r) != m {
		return nil, errors.Errorf("factor on %v returned %d residuals, expected %d", f.Keys(), len(r), m)
	}
	w := f.SqrtInformation()

	lf := &LinearFactor{}
	for _, key := range f.Keys() {
		if constant != nil && constant(key) {
			continue
		}
		jac, err := numericalJacobian(f, values, key)
		if err != nil {
			return nil, err
		}
		var whitened mat.Dense
		whitened.Mul(w, jac)
		lf.Keys = append(lf.Keys, key)
		lf.Jacobians = append(lf.Jacobians, &whitened)
	}

	b := mat.NewVecDense(m, nil)
	b.MulVec(w, mat.NewVecDense(m, r))
	b.ScaleVec(-1, b)
	lf.B = b
	return lf, nil
}

// WhitenedError returns the squared norm of W·r, the contribution of f to the objective.
func WhitenedError(f Factor, values *Values) (float64, error) {
	r, err := f.Error(values)
	if err != nil {
		return 0, err
	}
	var wr mat.VecDense
	wr.MulVec(f.SqrtInformation(), mat.NewVecDense(len(r), r))
	return mat.Dot(&wr, &wr), nil
}

func numericalJacobian(f Factor, values *Values, key Key) (*mat.Dense, error) {
	n := key.Dim()
	perturbed := values.Clone()
	var evalErr error
	fn := func(y, x []float64) {
		if evalErr != nil {
			return
		}
		moved, err := values.Retract(key, x)
		if err != nil {
			evalErr = err
			return
		}
		if err := perturbed.Update(key, moved); err != nil {
			evalErr = err
			return
		}
		r, err := f.Error(perturbed)
		if err != nil {
			evalErr = err
			return
		}
		copy(y, r)
	}

	jac := mat.NewDense(f.Dim(), n, nil)
	fd.Jacobian(jac, fn, make([]float64, n), &fd.JacobianSettings{
		Formula: fd.Central,
	})
	if evalErr != nil {
		return nil, errors.Wrapf(evalErr, "linearizing around %s", key)
	}
	return jac, nil
}
