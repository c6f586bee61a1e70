package frontend

import (
	"fmt"
)

// Category classifies a failed run.
type Category int

const (
	// CategoryPrecondition is a programming or integration error such as an unset key or an
	// out of range epoch.
	CategoryPrecondition Category = iota
	// CategorySolver is a numerical failure of the incremental solver.
	CategorySolver
	// CategoryData is input that cannot be used at all, for example an empty state series.
	CategoryData
	// CategoryCanceled means the run context was done between epochs.
	CategoryCanceled
)

func (c Category) String() string {
	switch c {
	case CategoryPrecondition:
		return "precondition"
	case CategorySolver:
		return "solver"
	case CategoryData:
		return "data"
	case CategoryCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// RunError is returned by Driver.Run when a run stops before completing. LastSolvedEpoch is -1
// when not even epoch 0 was solved.
type RunError struct {
	Category        Category
	Epoch           int
	LastSolvedEpoch int
	Err             error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s failure at epoch %d (last solved epoch %d): %v",
		e.Category, e.Epoch, e.LastSolvedEpoch, e.Err)
}

// Unwrap returns the cause.
func (e *RunError) Unwrap() error {
	return e.Err
}
