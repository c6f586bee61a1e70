// Package viz renders estimated trajectories.
package viz

import (
	"image/color"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/onurbagoren/UW-SLAM/frontend"
)

// ErrNoPoints is returned when there is nothing to plot.
var ErrNoPoints = errors.New("no trajectory points")

var (
	solvedColor    = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	referenceColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// PlotTrajectory writes a top down x-y plot of the solved trajectory. When reference is nil the
// external estimate stored in each point is drawn instead. The format follows the extension of
// path, for example .png or .svg.
func PlotTrajectory(points []frontend.TrajectoryPoint, reference []r3.Vector, path string) error {
	if len(points) == 0 {
		return ErrNoPoints
	}
	if reference == nil {
		reference = lo.Map(points, func(pt frontend.TrajectoryPoint, _ int) r3.Vector {
			return pt.Reference.Position
		})
	}

	solved := plotter.XYs(lo.Map(points, func(pt frontend.TrajectoryPoint, _ int) plotter.XY {
		return topDown(pt.State.Position)
	}))
	external := plotter.XYs(lo.Map(reference, func(v r3.Vector, _ int) plotter.XY {
		return topDown(v)
	}))

	p := plot.New()
	p.Title.Text = "Trajectory"
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	p.Add(plotter.NewGrid())

	solvedLine, solvedPoints, err := plotter.NewLinePoints(solved)
	if err != nil {
		return errors.Wrap(err, "solved trajectory")
	}
	solvedLine.Color = solvedColor
	solvedLine.Width = vg.Points(1.5)
	solvedPoints.Color = solvedColor
	solvedPoints.Shape = draw.CircleGlyph{}
	p.Add(solvedLine, solvedPoints)
	p.Legend.Add("solved", solvedLine, solvedPoints)

	if len(external) > 0 {
		externalLine, err := plotter.NewLine(external)
		if err != nil {
			return errors.Wrap(err, "reference trajectory")
		}
		externalLine.Color = referenceColor
		externalLine.Width = vg.Points(1)
		externalLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(externalLine)
		p.Legend.Add("external", externalLine)
	}
	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save plot to %s", path)
	}
	return nil
}

func topDown(v r3.Vector) plotter.XY {
	return plotter.XY{X: v.X, Y: v.Y}
}
