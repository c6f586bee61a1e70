// Package frontend drives an estimator run: it turns external estimator rows into navigation
// states, aligns the IMU stream to epochs and steps the incremental solver one epoch at a time.
package frontend

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/onurbagoren/UW-SLAM/navstate"
	"github.com/onurbagoren/UW-SLAM/spatialmath"
)

// ErrEpochOutOfRange is the panic value when an adapter is asked for an epoch it does not hold.
var ErrEpochOutOfRange = errors.New("epoch index out of range")

// StateRow is one row of the external estimator output.
type StateRow struct {
	X, Y, Z    float64
	U, V, R    float64
	Phi, Theta float64
	Psi        float64
}

// Position returns (X, Y, Z).
func (row StateRow) Position() r3.Vector {
	return r3.Vector{X: row.X, Y: row.Y, Z: row.Z}
}

// Velocity returns (U, V, R).
func (row StateRow) Velocity() r3.Vector {
	return r3.Vector{X: row.U, Y: row.V, Z: row.R}
}

// StateSeries is the external estimator output with one raw timestamp per row.
type StateSeries struct {
	Rows  []StateRow
	Times []float64
}

// Len returns the number of epochs.
func (s StateSeries) Len() int {
	return len(s.Rows)
}

// StateAdapter converts external estimator rows into navigation states.
type StateAdapter struct {
	series StateSeries
}

// NewStateAdapter returns an adapter over series.
func NewStateAdapter(series StateSeries) *StateAdapter {
	return &StateAdapter{series: series}
}

// Len returns the number of epochs the adapter holds.
func (sa *StateAdapter) Len() int {
	return sa.series.Len()
}

// Time returns the raw timestamp of epoch i.
func (sa *StateAdapter) Time(i int) float64 {
	sa.checkIndex(i)
	return sa.series.Times[i]
}

// Row returns the raw row of epoch i.
func (sa *StateAdapter) Row(i int) StateRow {
	sa.checkIndex(i)
	return sa.series.Rows[i]
}

// NavState returns the state recorded at epoch i. The orientation is Rx(phi)·Ry(theta)·Rz(psi).
// An out of range index panics.
func (sa *StateAdapter) NavState(i int) navstate.NavState {
	row := sa.Row(i)
	rot := spatialmath.RotationMatrixFromRPY(row.Phi, row.Theta, row.Psi)
	return navstate.NewNavState(rot, row.Position(), row.Velocity())
}

func (sa *StateAdapter) checkIndex(i int) {
	if i < 0 || i >= len(sa.series.Rows) || i >= len(sa.series.Times) {
		panic(errors.Wrapf(ErrEpochOutOfRange, "epoch %d of %d", i, len(sa.series.Rows)))
	}
}
