package factorgraph

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/onurbagoren/UW-SLAM/navstate"
)

var (
	// ErrKeyExists is returned when inserting a key that already has a value.
	ErrKeyExists = errors.New("key already has a value")
	// ErrKeyNotFound is returned when reading or updating a key that has no value.
	ErrKeyNotFound = errors.New("key has no value")
	// ErrWrongType is returned when a value does not match the role of its key.
	ErrWrongType = errors.New("value type does not match key role")
)

// Values maps variable keys to their estimates. Poses are navstate.Pose, velocities r3.Vector
// and biases navstate.Bias.
type Values struct {
	poses      map[Key]navstate.Pose
	velocities map[Key]r3.Vector
	biases     map[Key]navstate.Bias
}

// NewValues returns an empty set of values.
func NewValues() *Values {
	return &Values{
		poses:      map[Key]navstate.Pose{},
		velocities: map[Key]r3.Vector{},
		biases:     map[Key]navstate.Bias{},
	}
}

// Insert adds a value for a new key.
func (vs *Values) Insert(key Key, value interface{}) error {
	if vs.Exists(key) {
		return errors.Wrap(ErrKeyExists, key.String())
	}
	return vs.set(key, value)
}

// Update replaces the value of an existing key.
func (vs *Values) Update(key Key, value interface{}) error {
	if !vs.Exists(key) {
		return errors.Wrap(ErrKeyNotFound, key.String())
	}
	return vs.set(key, value)
}

func (vs *Values) set(key Key, value interface{}) error {
	switch v := value.(type) {
	case navstate.Pose:
		if key.Role != RolePose {
			return errors.Wrapf(ErrWrongType, "%s given a pose", key)
		}
		vs.poses[key] = v
	case r3.Vector:
		if key.Role != RoleVelocity {
			return errors.Wrapf(ErrWrongType, "%s given a velocity", key)
		}
		vs.velocities[key] = v
	case navstate.Bias:
		if key.Role != RoleBias {
			return errors.Wrapf(ErrWrongType, "%s given a bias", key)
		}
		vs.biases[key] = v
	default:
		return errors.Wrapf(ErrWrongType, "%s given %T", key, value)
	}
	return nil
}

// Exists reports whether key has a value.
func (vs *Values) Exists(key Key) bool {
	switch key.Role {
	case RolePose:
		_, ok := vs.poses[key]
		return ok
	case RoleVelocity:
		_, ok := vs.velocities[key]
		return ok
	case RoleBias:
		_, ok := vs.biases[key]
		return ok
	default:
		return false
	}
}

// At returns the value of key with its concrete type.
func (vs *Values) At(key Key) (interface{}, error) {
	switch key.Role {
	case RolePose:
		return vs.Pose(key)
	case RoleVelocity:
		return vs.Velocity(key)
	case RoleBias:
		return vs.Bias(key)
	default:
		return nil, errors.Wrap(ErrKeyNotFound, key.String())
	}
}

// Pose returns the pose stored at key.
func (vs *Values) Pose(key Key) (navstate.Pose, error) {
	p, ok := vs.poses[key]
	if !ok {
		return navstate.Pose{}, errors.Wrap(ErrKeyNotFound, key.String())
	}
	return p, nil
}

// Velocity returns the velocity stored at key.
func (vs *Values) Velocity(key Key) (r3.Vector, error) {
	v, ok := vs.velocities[key]
	if !ok {
		return r3.Vector{}, errors.Wrap(ErrKeyNotFound, key.String())
	}
	return v, nil
}

// Bias returns the bias stored at key.
func (vs *Values) Bias(key Key) (navstate.Bias, error) {
	b, ok := vs.biases[key]
	if !ok {
		return navstate.Bias{}, errors.Wrap(ErrKeyNotFound, key.String())
	}
	return b, nil
}

// Keys returns every key in SortKeys order.
func (vs *Values) Keys() []Key {
	keys := make([]Key, 0, vs.Len())
	for k := range vs.poses {
		keys = append(keys, k)
	}
	for k := range vs.velocities {
		keys = append(keys, k)
	}
	for k := range vs.biases {
		keys = append(keys, k)
	}
	SortKeys(keys)
	return keys
}

// Len returns the number of variables.
func (vs *Values) Len() int {
	return len(vs.poses) + len(vs.velocities) + len(vs.biases)
}

// Clone returns a copy that can be mutated independently.
func (vs *Values) Clone() *Values {
	out := NewValues()
	out.Merge(vs)
	return out
}

// Merge copies every value of other into vs, overwriting existing keys.
func (vs *Values) Merge(other *Values) {
	for k, v := range other.poses {
		vs.poses[k] = v
	}
	for k, v := range other.velocities {
		vs.velocities[k] = v
	}
	for k, v := range other.biases {
		vs.biases[k] = v
	}
}

// Retract returns the value at key moved along the tangent vector xi, which must have key.Dim()
// entries.
func (vs *Values) Retract(key Key, xi []float64) (interface{}, error) {
	if len(xi) != key.Dim() {
		return nil, errors.Errorf("tangent vector for %s has %d entries, expected %d", key, len(xi), key.Dim())
	}
	switch key.Role {
	case RolePose:
		p, err := vs.Pose(key)
		if err != nil {
			return nil, err
		}
		var v [navstate.PoseDim]float64
		copy(v[:], xi)
		return p.Retract(v), nil
	case RoleVelocity:
		v, err := vs.Velocity(key)
		if err != nil {
			return nil, err
		}
		return v.Add(r3.Vector{X: xi[0], Y: xi[1], Z: xi[2]}), nil
	case RoleBias:
		b, err := vs.Bias(key)
		if err != nil {
			return nil, err
		}
		var v [navstate.BiasDim]float64
		copy(v[:], xi)
		return b.Retract(v), nil
	default:
		return nil, errors.Wrap(ErrKeyNotFound, key.String())
	}
}

// LocalCoordinates returns the tangent vector taking the value of key in vs to its value in other.
func (vs *Values) LocalCoordinates(key Key, other *Values) ([]float64, error) {
	switch key.Role {
	case RolePose:
		a, err := vs.Pose(key)
		if err != nil {
			return nil, err
		}
		b, err := other.Pose(key)
		if err != nil {
			return nil, err
		}
		xi := a.LocalCoordinates(b)
		return xi[:], nil
	case RoleVelocity:
		a, err := vs.Velocity(key)
		if err != nil {
			return nil, err
		}
		b, err := other.Velocity(key)
		if err != nil {
			return nil, err
		}
		d := b.Sub(a)
		return []float64{d.X, d.Y, d.Z}, nil
	case RoleBias:
		a, err := vs.Bias(key)
		if err != nil {
			return nil, err
		}
		b, err := other.Bias(key)
		if err != nil {
			return nil, err
		}
		xi := a.LocalCoordinates(b)
		return xi[:], nil
	default:
		return nil, errors.Wrap(ErrKeyNotFound, key.String())
	}
}
