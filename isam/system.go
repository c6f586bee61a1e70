package isam

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	fg "github.com/onurbagoren/UW-SLAM/factorgraph"
)

// system is the square-root information form R·δ = d of every factor linearized at linPoint.
// R is upper triangular over the columns in ordering.
//
// Row k of R is stored from its diagonal onwards as rows[k][j-k]; entries past the end of the
// slice are zero. Rows are shared between a system and its clones until one of them writes.
type system struct {
	ordering map[fg.Key]int
	keys     []fg.Key
	dim      int

	rows  [][]float64
	owned []bool
	d     []float64
	delta []float64

	linPoint *fg.Values
	factors  []fg.Factor

	updates          int
	relinearizations int
}

func newSystem() *system {
	return &system{
		ordering: map[fg.Key]int{},
		linPoint: fg.NewValues(),
	}
}

// clone returns a copy that shares the rows of R until they are written.
func (sys *system) clone() *system {
	out := &system{
		ordering:         make(map[fg.Key]int, len(sys.ordering)),
		keys:             append([]fg.Key(nil), sys.keys...),
		dim:              sys.dim,
		rows:             append([][]float64(nil), sys.rows...),
		owned:            make([]bool, len(sys.rows)),
		d:                append([]float64(nil), sys.d...),
		delta:            append([]float64(nil), sys.delta...),
		linPoint:         sys.linPoint.Clone(),
		factors:          append([]fg.Factor(nil), sys.factors...),
		updates:          sys.updates,
		relinearizations: sys.relinearizations,
	}
	for k, v := range sys.ordering {
		out.ordering[k] = v
	}
	return out
}

// writableRow returns row k, copied if it is still shared and grown to at least n entries.
func (sys *system) writableRow(k, n int) []float64 {
	row := sys.rows[k]
	if !sys.owned[k] {
		size := len(row)
		if n > size {
			size = n
		}
		fresh := make([]float64, size)
		copy(fresh, row)
		row = fresh
		sys.owned[k] = true
	} else if len(row) < n {
		row = append(row, make([]float64, n-len(row))...)
	}
	sys.rows[k] = row
	return row
}

// diag returns R_kk.
func (sys *system) diag(k int) float64 {
	if len(sys.rows[k]) == 0 {
		return 0
	}
	return sys.rows[k][0]
}

// addVariable appends key to the ordering with zero rows and columns in R.
func (sys *system) addVariable(key fg.Key) {
	sys.ordering[key] = sys.dim
	sys.keys = append(sys.keys, key)
	for i := 0; i < key.Dim(); i++ {
		sys.rows = append(sys.rows, nil)
		sys.owned = append(sys.owned, true)
	}
	sys.d = append(sys.d, make([]float64, key.Dim())...)
	sys.delta = append(sys.delta, make([]float64, key.Dim())...)
	sys.dim += key.Dim()
}

// foldFactor linearizes f at the linearization point and rotates its rows into [R | d].
func (sys *system) foldFactor(f fg.Factor, constant func(fg.Key) bool) error {
	lf, err := fg.Linearize(f, sys.linPoint, constant)
	if err != nil {
		return err
	}
	sys.foldLinear(lf)
	return nil
}

func (sys *system) foldLinear(lf *fg.LinearFactor) {
	first := sys.dim
	for _, key := range lf.Keys {
		if off := sys.ordering[key]; off < first {
			first = off
		}
	}
	row := make([]float64, sys.dim)
	for i := 0; i < lf.Rows(); i++ {
		for j := range row {
			row[j] = 0
		}
		for k, key := range lf.Keys {
			off := sys.ordering[key]
			jac := lf.Jacobians[k]
			for c := 0; c < key.Dim(); c++ {
				row[off+c] = jac.At(i, c)
			}
		}
		sys.givens(row, lf.B.AtVec(i), first)
	}
}

// givens zeroes row against R starting at column first. Whatever is left of the row is the part
// of the residual no choice of δ can explain, and is dropped.
func (sys *system) givens(row []float64, rhs float64, first int) {
	end := first
	for j := sys.dim - 1; j >= first; j-- {
		if row[j] != 0 {
			end = j + 1
			break
		}
	}
	for k := first; k < end; k++ {
		if row[k] == 0 {
			continue
		}
		rk := sys.writableRow(k, end-k)
		if k+len(rk) > end {
			end = k + len(rk)
		}
		h := math.Hypot(rk[0], row[k])
		c, s := rk[0]/h, row[k]/h
		for idx := range rk {
			j := k + idx
			rkj, aj := rk[idx], row[j]
			rk[idx] = c*rkj + s*aj
			row[j] = -s*rkj + c*aj
		}
		dk := sys.d[k]
		sys.d[k] = c*dk + s*rhs
		rhs = -s*dk + c*rhs
	}
}

// keyAt returns the variable owning column col.
func (sys *system) keyAt(col int) fg.Key {
	for _, key := range sys.keys {
		off := sys.ordering[key]
		if col >= off && col < off+key.Dim() {
			return key
		}
	}
	return fg.Key{}
}

// checkDiagonal fails if any pivot of R is too small to divide by.
func (sys *system) checkDiagonal(minDiagonal float64) error {
	for i := 0; i < sys.dim; i++ {
		if math.Abs(sys.diag(i)) < minDiagonal {
			return errors.Wrapf(ErrIndeterminantSystem, "variable %s (column %d, |R_ii| = %g)", sys.keyAt(i), i, math.Abs(sys.diag(i)))
		}
	}
	return nil
}

// backSubstitute solves R·δ = d.
func (sys *system) backSubstitute() {
	for i := sys.dim - 1; i >= 0; i-- {
		ri := sys.rows[i]
		sum := sys.d[i]
		for idx := 1; idx < len(ri); idx++ {
			sum -= ri[idx] * sys.delta[i+idx]
		}
		sys.delta[i] = sum / ri[0]
	}
}

// retract returns values moved by the tangent vector dx laid out per ordering.
func (sys *system) retract(values *fg.Values, dx []float64) (*fg.Values, error) {
	out := values.Clone()
	for _, key := range sys.keys {
		off := sys.ordering[key]
		moved, err := values.Retract(key, dx[off:off+key.Dim()])
		if err != nil {
			return nil, err
		}
		if err := out.Update(key, moved); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// estimate returns linPoint ⊕ δ.
func (sys *system) estimate() (*fg.Values, error) {
	return sys.retract(sys.linPoint, sys.delta)
}

// keyDelta returns the infinity norm of the update of key.
func (sys *system) keyDelta(key fg.Key) float64 {
	off := sys.ordering[key]
	largest := 0.0
	for _, v := range sys.delta[off : off+key.Dim()] {
		largest = math.Max(largest, math.Abs(v))
	}
	return largest
}

// keysAbove returns the variables whose update exceeds threshold in the infinity norm.
func (sys *system) keysAbove(threshold float64) []fg.Key {
	var out []fg.Key
	for _, key := range sys.keys {
		if sys.keyDelta(key) > threshold {
			out = append(out, key)
		}
	}
	return out
}

// neighborhood returns seed and every variable that shares a factor with one of its keys.
func (sys *system) neighborhood(seed []fg.Key, constant func(fg.Key) bool) map[fg.Key]bool {
	out := make(map[fg.Key]bool, len(seed))
	for _, key := range seed {
		out[key] = true
	}
	for _, f := range sys.factors {
		if !touches(f, seed) {
			continue
		}
		for _, key := range f.Keys() {
			if !constant(key) {
				out[key] = true
			}
		}
	}
	return out
}

func touches(f fg.Factor, keys []fg.Key) bool {
	for _, fk := range f.Keys() {
		for _, key := range keys {
			if fk == key {
				return true
			}
		}
	}
	return false
}

// relinearizeKeys moves the linearization point of keys to their current estimate and refactors
// only the trailing block of R that the factors on those keys reach. The block is rebuilt from
// its own information with the old linearizations of those factors removed and the new ones
// added. It reports false when the downdated block is no longer positive definite.
func (sys *system) relinearizeKeys(keys map[fg.Key]bool, constant func(fg.Key) bool) (bool, error) {
	moved := make([]fg.Key, 0, len(keys))
	for _, key := range sys.keys {
		if keys[key] {
			moved = append(moved, key)
		}
	}
	var affected []fg.Factor
	first := sys.dim
	for _, key := range moved {
		first = min(first, sys.ordering[key])
	}
	for _, f := range sys.factors {
		if !touches(f, moved) {
			continue
		}
		affected = append(affected, f)
		for _, key := range f.Keys() {
			if !constant(key) {
				first = min(first, sys.ordering[key])
			}
		}
	}

	// Express the system in deltas about the new linearization point.
	shift := make([]float64, sys.dim)
	for _, key := range moved {
		off := sys.ordering[key]
		copy(shift[off:off+key.Dim()], sys.delta[off:off+key.Dim()])
	}
	for k, rk := range sys.rows {
		for idx, v := range rk {
			if s := shift[k+idx]; s != 0 {
				sys.d[k] -= v * s
			}
		}
	}

	n := sys.dim - first
	info := mat.NewSymDense(n+1, nil)
	vec := mat.NewVecDense(n+1, nil)
	for k := first; k < sys.dim; k++ {
		vec.Zero()
		for idx, v := range sys.rows[k] {
			vec.SetVec(k+idx-first, v)
		}
		vec.SetVec(n, sys.d[k])
		info.SymRankOne(info, 1, vec)
	}

	addLinear := func(lf *fg.LinearFactor, alpha float64, shifted bool) {
		for i := 0; i < lf.Rows(); i++ {
			vec.Zero()
			rhs := lf.B.AtVec(i)
			for k, key := range lf.Keys {
				off := sys.ordering[key]
				for c := 0; c < key.Dim(); c++ {
					a := lf.Jacobians[k].At(i, c)
					vec.SetVec(off+c-first, a)
					if shifted {
						rhs -= a * shift[off+c]
					}
				}
			}
			vec.SetVec(n, rhs)
			info.SymRankOne(info, alpha, vec)
		}
	}
	for _, f := range affected {
		lf, err := fg.Linearize(f, sys.linPoint, constant)
		if err != nil {
			return false, err
		}
		addLinear(lf, -1, true)
	}

	for _, key := range moved {
		off := sys.ordering[key]
		value, err := sys.linPoint.Retract(key, sys.delta[off:off+key.Dim()])
		if err != nil {
			return false, err
		}
		if err := sys.linPoint.Update(key, value); err != nil {
			return false, err
		}
	}
	for _, f := range affected {
		lf, err := fg.Linearize(f, sys.linPoint, constant)
		if err != nil {
			return false, err
		}
		addLinear(lf, 1, false)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(info.SliceSym(0, n)); !ok {
		return false, nil
	}
	var u mat.TriDense
	chol.UTo(&u)

	// Uᵀ·d = g, where g is the information of the right hand side.
	rhs := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := info.At(i, n)
		for j := 0; j < i; j++ {
			sum -= u.At(j, i) * rhs[j]
		}
		rhs[i] = sum / u.At(i, i)
	}
	for i := 0; i < n; i++ {
		end := n
		for end > i+1 && u.At(i, end-1) == 0 {
			end--
		}
		row := make([]float64, end-i)
		for j := i; j < end; j++ {
			row[j-i] = u.At(i, j)
		}
		sys.rows[first+i] = row
		sys.owned[first+i] = true
		sys.d[first+i] = rhs[i]
	}
	return true, nil
}

// reset clears R, d and δ.
func (sys *system) reset() {
	for k := range sys.rows {
		sys.rows[k] = nil
		sys.owned[k] = true
		sys.d[k] = 0
		sys.delta[k] = 0
	}
}

// stack linearizes every factor at values into a dense least squares problem A·dx = b.
func (sys *system) stack(values *fg.Values, constant func(fg.Key) bool) (*mat.Dense, *mat.VecDense, error) {
	rows := 0
	linear := make([]*fg.LinearFactor, 0, len(sys.factors))
	for _, f := range sys.factors {
		lf, err := fg.Linearize(f, values, constant)
		if err != nil {
			return nil, nil, err
		}
		linear = append(linear, lf)
		rows += lf.Rows()
	}
	if rows < sys.dim {
		return nil, nil, errors.Wrapf(ErrIndeterminantSystem, "%d equations for %d unknowns", rows, sys.dim)
	}

	a := mat.NewDense(rows, sys.dim, nil)
	b := mat.NewVecDense(rows, nil)
	row := 0
	for _, lf := range linear {
		for k, key := range lf.Keys {
			off := sys.ordering[key]
			jac := lf.Jacobians[k]
			for i := 0; i < lf.Rows(); i++ {
				for c := 0; c < key.Dim(); c++ {
					a.Set(row+i, off+c, jac.At(i, c))
				}
			}
		}
		for i := 0; i < lf.Rows(); i++ {
			b.SetVec(row+i, lf.B.AtVec(i))
		}
		row += lf.Rows()
	}
	return a, b, nil
}
