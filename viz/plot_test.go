package viz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/onurbagoren/UW-SLAM/frontend"
	"github.com/onurbagoren/UW-SLAM/navstate"
	"github.com/onurbagoren/UW-SLAM/spatialmath"
)

func trajectory() []frontend.TrajectoryPoint {
	var out []frontend.TrajectoryPoint
	for i := 0; i < 5; i++ {
		pos := r3.Vector{X: float64(i), Y: 0.5 * float64(i*i)}
		state := navstate.NewNavState(spatialmath.RotZ(0.1*float64(i)), pos, r3.Vector{X: 1})
		out = append(out, frontend.TrajectoryPoint{
			Index:     i,
			Time:      float64(i),
			State:     state,
			Reference: navstate.NewNavState(state.Rotation, pos.Add(r3.Vector{Y: 0.1}), r3.Vector{X: 1}),
		})
	}
	return out
}

func TestPlotTrajectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"traj.png", "traj.svg"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			test.That(t, PlotTrajectory(trajectory(), nil, path), test.ShouldBeNil)
			info, err := os.Stat(path)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)
		})
	}

	t.Run("explicit reference", func(t *testing.T) {
		path := filepath.Join(dir, "ref.png")
		ref := []r3.Vector{{}, {X: 1, Y: 1}}
		test.That(t, PlotTrajectory(trajectory(), ref, path), test.ShouldBeNil)
	})

	test.That(t, PlotTrajectory(nil, nil, filepath.Join(dir, "empty.png")), test.ShouldEqual, ErrNoPoints)
	test.That(t, PlotTrajectory(trajectory(), nil, filepath.Join(dir, "traj.unknown")), test.ShouldNotBeNil)
}
