// Package factorgraph holds the append-only estimation graph: keyed variables, their current
// estimates and the constraints between them.
package factorgraph

import (
	"fmt"
	"sort"

	"github.com/onurbagoren/UW-SLAM/navstate"
)

// Role identifies the kind of quantity a variable represents.
type Role rune

// The three variable roles.
const (
	RolePose     Role = 'x'
	RoleVelocity Role = 'v'
	RoleBias     Role = 'b'
)

// Key uniquely names a variable by role and epoch index.
type Key struct {
	Role  Role
	Index int
}

// X returns the pose key at epoch i.
func X(i int) Key { return Key{RolePose, i} }

// V returns the velocity key at epoch i.
func V(i int) Key { return Key{RoleVelocity, i} }

// B returns the bias key. A run has exactly one, B(0).
func B(i int) Key { return Key{RoleBias, i} }

func (k Key) String() string {
	return fmt.Sprintf("%c%d", k.Role, k.Index)
}

// Dim is the tangent space dimension of the variable.
func (k Key) Dim() int {
	switch k.Role {
	case RolePose:
		return navstate.PoseDim
	case RoleVelocity:
		return 3
	case RoleBias:
		return navstate.BiasDim
	default:
		return 0
	}
}

func roleRank(r Role) int {
	switch r {
	case RolePose:
		return 0
	case RoleVelocity:
		return 1
	default:
		return 2
	}
}

// SortKeys orders keys by epoch index, then pose before velocity before bias.
func SortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Index != keys[j].Index {
			return keys[i].Index < keys[j].Index
		}
		return roleRank(keys[i].Role) < roleRank(keys[j].Role)
	})
}
