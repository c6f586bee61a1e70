package factorgraph

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/onurbagoren/UW-SLAM/imu"
	"github.com/onurbagoren/UW-SLAM/navstate"
)

// ErrUnsetKey is returned when a constraint references a variable with no initial estimate.
var ErrUnsetKey = errors.New("constraint references a key with no initial estimate")

// Updater absorbs new constraints and variables and returns the best estimate of every variable
// seen so far. The incremental solver implements it.
type Updater interface {
	Update(newFactors []Factor, newValues *Values) (*Values, error)
}

// Graph is the append-only union of variables and constraints. It is the single owner of both:
// a solver only reads what was added since the last flush and hands back estimates.
type Graph struct {
	factors  []Factor
	estimate *Values

	newFactors int
	newValues  *Values
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		estimate:  NewValues(),
		newValues: NewValues(),
	}
}

// SetInitialEstimate inserts the starting value of a new variable.
func (g *Graph) SetInitialEstimate(key Key, value interface{}) error {
	if err := g.estimate.Insert(key, value); err != nil {
		return err
	}
	return g.newValues.Insert(key, value)
}

// AddFactor appends a constraint after checking every key it references has an estimate.
func (g *Graph) AddFactor(f Factor) error {
	for _, key := range f.Keys() {
		if !g.estimate.Exists(key) {
			return errors.Wrap(ErrUnsetKey, key.String())
		}
	}
	g.factors = append(g.factors, f)
	g.newFactors++
	return nil
}

// AddPriorPose anchors the pose at key.
func (g *Graph) AddPriorPose(key Key, pose navstate.Pose, sigma float64) error {
	f, err := NewPriorPoseFactor(key, pose, sigma)
	if err != nil {
		return err
	}
	return g.AddFactor(f)
}

// AddPriorVelocity anchors the velocity at key.
func (g *Graph) AddPriorVelocity(key Key, velocity r3.Vector, sigma float64) error {
	f, err := NewPriorVelocityFactor(key, velocity, sigma)
	if err != nil {
		return err
	}
	return g.AddFactor(f)
}

// AddPreintegrationConstraint links (xi, vi) to (xj, vj) with a preintegrated delta computed at
// the bias stored under b.
func (g *Graph) AddPreintegrationConstraint(xi, vi, xj, vj, b Key, delta imu.Delta, params imu.Params) error {
	f, err := NewImuFactor(xi, vi, xj, vj, b, delta, params.Gravity, params.MinDeltaSigma)
	if err != nil {
		return err
	}
	return g.AddFactor(f)
}

// CurrentEstimate returns the latest value of key.
func (g *Graph) CurrentEstimate(key Key) (interface{}, error) {
	return g.estimate.At(key)
}

// CurrentPose returns the latest pose estimate at key.
func (g *Graph) CurrentPose(key Key) (navstate.Pose, error) {
	return g.estimate.Pose(key)
}

// CurrentVelocity returns the latest velocity estimate at key.
func (g *Graph) CurrentVelocity(key Key) (r3.Vector, error) {
	return g.estimate.Velocity(key)
}

// CurrentBias returns the bias estimate at key.
func (g *Graph) CurrentBias(key Key) (navstate.Bias, error) {
	return g.estimate.Bias(key)
}

// Estimate returns a copy of every variable's latest value.
func (g *Graph) Estimate() *Values {
	return g.estimate.Clone()
}

// Factors returns every constraint in insertion order.
func (g *Graph) Factors() []Factor {
	return g.factors
}

// NewFactors returns the constraints added since the last flush.
func (g *Graph) NewFactors() []Factor {
	return g.factors[len(g.factors)-g.newFactors:]
}

// PendingValues returns the variables inserted since the last flush.
func (g *Graph) PendingValues() *Values {
	return g.newValues.Clone()
}

// MarkFlushed records that the pending constraints and variables were handed to a solver.
func (g *Graph) MarkFlushed() {
	g.newFactors = 0
	g.newValues = NewValues()
}

// Variables returns every key in SortKeys order.
func (g *Graph) Variables() []Key {
	return g.estimate.Keys()
}

// NumVariables counts the variables with the given role.
func (g *Graph) NumVariables(role Role) int {
	count := 0
	for _, k := range g.estimate.Keys() {
		if k.Role == role {
			count++
		}
	}
	return count
}

// Flush hands the pending constraints and variables to u and writes the returned estimates back.
// On error the graph is left untouched and the pending work stays pending.
func (g *Graph) Flush(u Updater) error {
	estimate, err := u.Update(g.NewFactors(), g.PendingValues())
	if err != nil {
		return err
	}
	for _, key := range estimate.Keys() {
		if !g.estimate.Exists(key) {
			return errors.Wrapf(ErrUnsetKey, "solver returned unknown %s", key)
		}
	}
	g.estimate.Merge(estimate)
	g.MarkFlushed()
	return nil
}
