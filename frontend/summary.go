package frontend

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"

	"github.com/onurbagoren/UW-SLAM/spatialmath"
)

// Summary aggregates a run.
type Summary struct {
	RunID     string
	Visited   int
	Processed int
	Skipped   int

	MeanSolve time.Duration
	P95Solve  time.Duration
	MaxSolve  time.Duration

	MeanSamples      float64
	TotalSamples     int
	Relinearizations int

	// Position errors are in meters and attitude errors in radians, solved against external.
	MeanPositionError float64
	MaxPositionError  float64
	MeanAttitudeError float64
	MaxAttitudeError  float64
	// FinalAttitude is the solved attitude of the last processed epoch.
	FinalAttitude *spatialmath.EulerAngles
}

// summarize fills the timing and sample statistics. Empty inputs leave the zero values.
func summarize(s *Summary, solveTimes []time.Duration, samples []int) {
	solves := make(stats.Float64Data, 0, len(solveTimes))
	for _, d := range solveTimes {
		solves = append(solves, float64(d))
	}
	if mean, err := solves.Mean(); err == nil {
		s.MeanSolve = time.Duration(mean)
	}
	if p95, err := solves.Percentile(95); err == nil {
		s.P95Solve = time.Duration(p95)
	}
	if maxSolve, err := solves.Max(); err == nil {
		s.MaxSolve = time.Duration(maxSolve)
	}

	counts := stats.LoadRawData(samples)
	if mean, err := counts.Mean(); err == nil {
		s.MeanSamples = mean
	}
	if sum, err := counts.Sum(); err == nil {
		s.TotalSamples = int(sum)
	}
}

// compare fills the error statistics of the solved trajectory against the external states.
func compare(s *Summary, trajectory []TrajectoryPoint) {
	if len(trajectory) == 0 {
		return
	}
	position := make(stats.Float64Data, 0, len(trajectory))
	attitude := make(stats.Float64Data, 0, len(trajectory))
	for _, pt := range trajectory {
		position = append(position, pt.State.Position.Sub(pt.Reference.Position).Norm())
		attitude = append(attitude, spatialmath.AngleBetween(pt.Reference.Rotation, pt.State.Rotation))
	}
	s.MeanPositionError, _ = position.Mean()
	s.MaxPositionError, _ = position.Max()
	s.MeanAttitudeError, _ = attitude.Mean()
	s.MaxAttitudeError, _ = attitude.Max()
	s.FinalAttitude = trajectory[len(trajectory)-1].State.Rotation.EulerAngles()
}

// String renders the summary as a table.
func (s Summary) String() string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("run %s", s.RunID))
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"epochs visited", s.Visited},
		{"epochs processed", s.Processed},
		{"epochs skipped", s.Skipped},
		{"imu samples", s.TotalSamples},
		{"samples / epoch (mean)", fmt.Sprintf("%.2f", s.MeanSamples)},
		{"solve time (mean)", s.MeanSolve},
		{"solve time (p95)", s.P95Solve},
		{"solve time (max)", s.MaxSolve},
		{"relinearizations", s.Relinearizations},
		{"position error (mean)", fmt.Sprintf("%.4f m", s.MeanPositionError)},
		{"position error (max)", fmt.Sprintf("%.4f m", s.MaxPositionError)},
		{"attitude error (mean)", fmt.Sprintf("%.4f rad", s.MeanAttitudeError)},
		{"attitude error (max)", fmt.Sprintf("%.4f rad", s.MaxAttitudeError)},
	})
	if s.FinalAttitude != nil {
		t.AppendRow(table.Row{"final attitude (zyx)", s.FinalAttitude.String()})
	}
	return t.Render()
}
