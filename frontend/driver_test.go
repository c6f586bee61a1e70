package frontend

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/onurbagoren/UW-SLAM/config"
	fg "github.com/onurbagoren/UW-SLAM/factorgraph"
	"github.com/onurbagoren/UW-SLAM/imu"
	"github.com/onurbagoren/UW-SLAM/isam"
	"github.com/onurbagoren/UW-SLAM/logging"
	"github.com/onurbagoren/UW-SLAM/spatialmath"
)

func testConfig(runLength int) *config.RunConfig {
	cfg := config.DefaultRunConfig()
	cfg.RunLength = runLength
	return &cfg
}

func constantSeries(n int, times ...float64) StateSeries {
	row := StateRow{X: 1, Y: -2, Z: 0.5, U: 0.3, Phi: 0.05, Theta: -0.1, Psi: 0.7}
	rows := make([]StateRow, n)
	for i := range rows {
		rows[i] = row
	}
	return StateSeries{Rows: rows, Times: times}
}

func TestDuplicateTimestampIsSkipped(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	recorder := &EventRecorder{}
	series := constantSeries(3, 0, 10, 10)

	driver, err := NewDriver(testConfig(3), series, nil, logger, WithObserver(recorder))
	test.That(t, err, test.ShouldBeNil)
	result, err := driver.Run(context.Background())
	test.That(t, err, test.ShouldBeNil)

	test.That(t, result.Processed, test.ShouldResemble, []int{0, 1})
	test.That(t, result.Skipped, test.ShouldResemble, []int{2})
	test.That(t, result.LastSolvedEpoch, test.ShouldEqual, 1)
	if diff := cmp.Diff([]fg.Key{fg.X(0), fg.V(0), fg.B(0), fg.X(1), fg.V(1)}, result.Values.Keys()); diff != "" {
		t.Errorf("unexpected variables (-want +got):\n%s", diff)
	}
	test.That(t, driver.Graph().NumVariables(fg.RolePose), test.ShouldEqual, 2)
	test.That(t, driver.Graph().NumVariables(fg.RoleVelocity), test.ShouldEqual, 2)
	test.That(t, driver.Graph().NumVariables(fg.RoleBias), test.ShouldEqual, 1)

	stats := driver.solver.(*isam.Solver).Stats()
	test.That(t, stats.Updates, test.ShouldEqual, 2)

	test.That(t, recorder.Outcomes(OutcomeProcessed), test.ShouldResemble, []int{0, 1})
	test.That(t, recorder.Outcomes(OutcomeSkipped), test.ShouldResemble, []int{2})
	for _, ev := range recorder.Events() {
		test.That(t, ev.RunID, test.ShouldEqual, driver.RunID())
	}

	skipped := logs.FilterMessage("epoch skipped").All()
	test.That(t, len(skipped), test.ShouldEqual, 1)
	test.That(t, skipped[0].ContextMap()["epoch"], test.ShouldEqual, int64(2))

	reference := NewStateAdapter(series).NavState(0)
	for _, point := range result.Trajectory {
		test.That(t, point.State.Pose.AlmostEqual(reference.Pose, 1e-6), test.ShouldBeTrue)
		test.That(t, point.State.Velocity.Sub(reference.Velocity).Norm(), test.ShouldBeLessThan, 1e-6)
	}

	test.That(t, result.Summary.Visited, test.ShouldEqual, 3)
	test.That(t, result.Summary.Skipped, test.ShouldEqual, 1)
	test.That(t, result.Summary.String(), test.ShouldContainSubstring, "epochs skipped")
}

func TestNoSamplesGivesIdentityConstraint(t *testing.T) {
	recorder := &EventRecorder{}
	samples := samplesAt(5, 6)
	driver, err := NewDriver(testConfig(2), constantSeries(2, 0, 1e9), samples, logging.NewTestLogger(t),
		WithObserver(recorder))
	test.That(t, err, test.ShouldBeNil)
	_, err = driver.Run(context.Background())
	test.That(t, err, test.ShouldBeNil)

	factors := driver.Graph().Factors()
	test.That(t, len(factors), test.ShouldEqual, 3)
	imuFactor, ok := factors[2].(*fg.ImuFactor)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, imuFactor.Delta().IsIdentity(), test.ShouldBeTrue)
	test.That(t, imuFactor.Keys(), test.ShouldResemble, []fg.Key{fg.X(0), fg.V(0), fg.X(1), fg.V(1), fg.B(0)})

	events := recorder.Events()
	test.That(t, events[1].SamplesIntegrated, test.ShouldEqual, 0)
	test.That(t, events[1].DT, test.ShouldAlmostEqual, 1.0)
	test.That(t, driver.Cursor().Position(), test.ShouldEqual, 0)
}

func TestConstantAngularVelocityMatchesClosedForm(t *testing.T) {
	const rate = 0.6
	cfg := testConfig(2)
	cfg.TimestampScale = 1
	cfg.InitialBias = config.BiasConfig{}

	const span = 1.05
	series := StateSeries{
		Rows:  []StateRow{{}, {Psi: rate * span}},
		Times: []float64{0, span},
	}
	var samples []imu.Sample
	for k := 1; k <= 10; k++ {
		samples = append(samples, imu.Sample{
			Time:            0.1 * float64(k),
			AngularVelocity: r3.Vector{Z: rate},
			SpecificForce:   r3.Vector{Z: cfg.Gravity},
		})
	}

	recorder := &EventRecorder{}
	driver, err := NewDriver(cfg, series, samples, logging.NewTestLogger(t), WithObserver(recorder))
	test.That(t, err, test.ShouldBeNil)
	result, err := driver.Run(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.Processed, test.ShouldResemble, []int{0, 1})

	events := recorder.Events()
	test.That(t, events[0].AngularRate, test.ShouldResemble, spatialmath.AngularVelocity{})
	test.That(t, events[1].AngularRate.Z, test.ShouldAlmostEqual, rate, 1e-9)
	test.That(t, events[1].AngularRate.X, test.ShouldAlmostEqual, 0, 1e-9)

	final := result.Trajectory[1]
	// The first sample also covers [0, 0.1) and the last one is held until the epoch at 1.05 s.
	expected := spatialmath.ExpMap(r3.Vector{Z: rate * span})
	test.That(t, spatialmath.RotationMatrixAlmostEqual(final.State.Rotation, expected, 1e-6), test.ShouldBeTrue)
	test.That(t, spatialmath.RotationMatrixAlmostEqual(final.State.Rotation, final.Reference.Rotation, 1e-6),
		test.ShouldBeTrue)
	test.That(t, final.State.Position.Norm(), test.ShouldBeLessThan, 1e-6)
	test.That(t, final.State.Velocity.Norm(), test.ShouldBeLessThan, 1e-6)
	test.That(t, driver.Cursor().Exhausted(), test.ShouldBeTrue)

	test.That(t, result.Summary.MaxAttitudeError, test.ShouldBeLessThan, 1e-6)
	test.That(t, result.Summary.FinalAttitude.Yaw, test.ShouldAlmostEqual, rate*span, 1e-6)
	test.That(t, result.Summary.String(), test.ShouldContainSubstring, "final attitude (zyx)")
}

func TestConstantVelocityTracksExternalStates(t *testing.T) {
	const (
		epochs  = 10
		spacing = 0.1
		speed   = 1.0
	)
	cfg := testConfig(epochs)
	cfg.TimestampScale = 1
	cfg.InitialBias = config.BiasConfig{}

	var series StateSeries
	for i := 0; i < epochs; i++ {
		tm := spacing * float64(i)
		series.Rows = append(series.Rows, StateRow{X: speed * tm, U: speed})
		series.Times = append(series.Times, tm)
	}
	var samples []imu.Sample
	for k := 0; k < 100; k++ {
		samples = append(samples, imu.Sample{
			Time:          0.01 * float64(k),
			SpecificForce: r3.Vector{Z: cfg.Gravity},
		})
	}

	driver, err := NewDriver(cfg, series, samples, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	result, err := driver.Run(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(result.Trajectory), test.ShouldEqual, epochs)

	for _, f := range driver.Graph().Factors() {
		imuFactor, ok := f.(*fg.ImuFactor)
		if !ok {
			continue
		}
		test.That(t, imuFactor.Delta().Count, test.ShouldBeGreaterThan, 0)
		test.That(t, imuFactor.Delta().DeltaT, test.ShouldAlmostEqual, spacing, 1e-9)
	}
	for _, point := range result.Trajectory {
		test.That(t, point.State.Position.X, test.ShouldAlmostEqual, point.Reference.Position.X, 1e-6)
		test.That(t, point.State.Velocity.X, test.ShouldAlmostEqual, speed, 1e-6)
	}
	test.That(t, result.Trajectory[epochs-1].State.Position.X, test.ShouldAlmostEqual, 0.9, 1e-6)
	test.That(t, result.Summary.MaxPositionError, test.ShouldBeLessThan, 1e-6)
	test.That(t, result.Summary.MeanPositionError, test.ShouldBeLessThan, 1e-6)
	test.That(t, result.Summary.MaxAttitudeError, test.ShouldBeLessThan, 1e-6)
}

// clockedSolver advances a mock clock on every update.
type clockedSolver struct {
	inner  fg.Updater
	mock   *clock.Mock
	step   time.Duration
	failAt int
	calls  int
}

func (cs *clockedSolver) Update(newFactors []fg.Factor, newValues *fg.Values) (*fg.Values, error) {
	cs.calls++
	cs.mock.Add(cs.step)
	if cs.calls == cs.failAt {
		return nil, errors.Wrap(isam.ErrIndeterminantSystem, "forced")
	}
	return cs.inner.Update(newFactors, newValues)
}

func newClockedSolver(t *testing.T, failAt int) *clockedSolver {
	t.Helper()
	inner, err := isam.NewSolver(isam.DefaultParams(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return &clockedSolver{inner: inner, mock: clock.NewMock(), step: 5 * time.Millisecond, failAt: failAt}
}

func TestSolveDurationsUseClock(t *testing.T) {
	solver := newClockedSolver(t, 0)
	recorder := &EventRecorder{}
	driver, err := NewDriver(testConfig(4), constantSeries(4, 0, 1e8, 2e8, 3e8), nil, logging.NewTestLogger(t),
		WithSolver(solver), WithClock(solver.mock), WithObserver(recorder))
	test.That(t, err, test.ShouldBeNil)
	result, err := driver.Run(context.Background())
	test.That(t, err, test.ShouldBeNil)

	for _, ev := range recorder.Events() {
		test.That(t, ev.SolveDuration, test.ShouldEqual, 5*time.Millisecond)
	}
	test.That(t, result.Summary.MeanSolve, test.ShouldEqual, 5*time.Millisecond)
	test.That(t, result.Summary.P95Solve, test.ShouldEqual, 5*time.Millisecond)
	test.That(t, result.Summary.Processed, test.ShouldEqual, 4)
}

func TestRunErrors(t *testing.T) {
	t.Run("solver failure reports the last solved epoch", func(t *testing.T) {
		solver := newClockedSolver(t, 3)
		recorder := &EventRecorder{}
		driver, err := NewDriver(testConfig(5), constantSeries(5, 0, 1, 2, 3, 4), nil, logging.NewTestLogger(t),
			WithSolver(solver), WithClock(solver.mock), WithObserver(recorder))
		test.That(t, err, test.ShouldBeNil)
		_, err = driver.Run(context.Background())

		var runErr *RunError
		test.That(t, errors.As(err, &runErr), test.ShouldBeTrue)
		test.That(t, runErr.Category, test.ShouldEqual, CategorySolver)
		test.That(t, runErr.Epoch, test.ShouldEqual, 2)
		test.That(t, runErr.LastSolvedEpoch, test.ShouldEqual, 1)
		test.That(t, errors.Is(err, isam.ErrIndeterminantSystem), test.ShouldBeTrue)
		test.That(t, recorder.Outcomes(OutcomeFailed), test.ShouldResemble, []int{2})
		test.That(t, recorder.Outcomes(OutcomeSkipped), test.ShouldBeEmpty)

		// The failed epoch stays pending and the solved part of the graph is kept.
		test.That(t, driver.Graph().PendingValues().Len(), test.ShouldEqual, 2)
		test.That(t, len(driver.Graph().NewFactors()), test.ShouldEqual, 1)
		_, err = driver.Graph().CurrentPose(fg.X(1))
		test.That(t, err, test.ShouldBeNil)
	})

	t.Run("running past the series is a precondition violation", func(t *testing.T) {
		driver, err := NewDriver(testConfig(10), constantSeries(3, 0, 1, 2), nil, logging.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)
		_, err = driver.Run(context.Background())
		var runErr *RunError
		test.That(t, errors.As(err, &runErr), test.ShouldBeTrue)
		test.That(t, runErr.Category, test.ShouldEqual, CategoryPrecondition)
		test.That(t, runErr.Epoch, test.ShouldEqual, 3)
		test.That(t, runErr.LastSolvedEpoch, test.ShouldEqual, 2)
		test.That(t, errors.Is(err, ErrEpochOutOfRange), test.ShouldBeTrue)
	})

	t.Run("until exhausted stops at the end of the series", func(t *testing.T) {
		cfg := testConfig(10)
		cfg.UntilExhausted = true
		driver, err := NewDriver(cfg, constantSeries(3, 0, 1, 2), nil, logging.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)
		result, err := driver.Run(context.Background())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, result.Processed, test.ShouldResemble, []int{0, 1, 2})
	})

	t.Run("empty series", func(t *testing.T) {
		driver, err := NewDriver(testConfig(10), StateSeries{}, nil, logging.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)
		_, err = driver.Run(context.Background())
		var runErr *RunError
		test.That(t, errors.As(err, &runErr), test.ShouldBeTrue)
		test.That(t, runErr.Category, test.ShouldEqual, CategoryData)
		test.That(t, runErr.LastSolvedEpoch, test.ShouldEqual, -1)
	})

	t.Run("canceled between epochs", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		driver, err := NewDriver(testConfig(3), constantSeries(3, 0, 1, 2), nil, logging.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)
		_, err = driver.Run(ctx)
		var runErr *RunError
		test.That(t, errors.As(err, &runErr), test.ShouldBeTrue)
		test.That(t, runErr.Category, test.ShouldEqual, CategoryCanceled)
		test.That(t, runErr.LastSolvedEpoch, test.ShouldEqual, 0)
		test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)

		_, err = driver.Run(context.Background())
		test.That(t, err, test.ShouldEqual, ErrAlreadyRun)
	})

	t.Run("bad config", func(t *testing.T) {
		_, err := NewDriver(testConfig(0), constantSeries(1, 0), nil, logging.NewTestLogger(t))
		test.That(t, err, test.ShouldNotBeNil)
	})
}
