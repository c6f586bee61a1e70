package frontend

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"github.com/onurbagoren/UW-SLAM/config"
	fg "github.com/onurbagoren/UW-SLAM/factorgraph"
	"github.com/onurbagoren/UW-SLAM/imu"
	"github.com/onurbagoren/UW-SLAM/isam"
	"github.com/onurbagoren/UW-SLAM/logging"
	"github.com/onurbagoren/UW-SLAM/navstate"
	"github.com/onurbagoren/UW-SLAM/spatialmath"
)

// ErrAlreadyRun is returned when Run is called a second time on the same Driver.
var ErrAlreadyRun = errors.New("driver has already run")

// biasKey is the single bias variable of a run.
var biasKey = fg.B(0)

// TrajectoryPoint is the solved state of one processed epoch next to the external estimate.
type TrajectoryPoint struct {
	Index     int
	Time      float64
	State     navstate.NavState
	Reference navstate.NavState
}

// Result is the outcome of a completed run.
type Result struct {
	RunID           string
	Processed       []int
	Skipped         []int
	Values          *fg.Values
	Trajectory      []TrajectoryPoint
	LastSolvedEpoch int
	Summary         Summary
}

// driverOpts are set by the DriverOption values passed to NewDriver.
type driverOpts struct {
	clock     clock.Clock
	observers []Observer
	solver    fg.Updater
}

// DriverOption configures a Driver.
type DriverOption interface {
	apply(*driverOpts)
}

type funcDriverOption struct {
	f func(*driverOpts)
}

func (fdo *funcDriverOption) apply(do *driverOpts) {
	fdo.f(do)
}

func newFuncDriverOption(f func(*driverOpts)) *funcDriverOption {
	return &funcDriverOption{f: f}
}

// WithClock returns a DriverOption that times solver updates with c.
func WithClock(c clock.Clock) DriverOption {
	return newFuncDriverOption(func(o *driverOpts) {
		o.clock = c
	})
}

// WithObserver returns a DriverOption that adds an epoch observer. The logging observer is
// always installed.
func WithObserver(observer Observer) DriverOption {
	return newFuncDriverOption(func(o *driverOpts) {
		o.observers = append(o.observers, observer)
	})
}

// WithSolver returns a DriverOption that replaces the incremental solver.
func WithSolver(solver fg.Updater) DriverOption {
	return newFuncDriverOption(func(o *driverOpts) {
		o.solver = solver
	})
}

// Driver steps a run epoch by epoch: INIT at epoch 0, then STEPPING until the run length is
// reached. A Driver runs once and is not safe for concurrent use.
type Driver struct {
	cfg    config.RunConfig
	logger logging.Logger
	runID  string

	adapter  *StateAdapter
	cursor   *IMUCursor
	pim      *imu.Preintegrator
	params   imu.Params
	bias     navstate.Bias
	graph    *fg.Graph
	solver   fg.Updater
	clock    clock.Clock
	observer Observer

	ran        bool
	lastSolved int
	processed  []int
	skipped    []int
	solveTimes []time.Duration
	samples    []int
}

// NewDriver returns a driver over an in-memory state series and IMU stream. Sample times must
// already be in seconds; state times are raw and converted with cfg.TimestampScale.
func NewDriver(
	cfg *config.RunConfig,
	states StateSeries,
	samples []imu.Sample,
	logger logging.Logger,
	opts ...DriverOption,
) (*Driver, error) {
	if cfg.RunLength < 1 {
		return nil, errors.Errorf("run length must be at least 1, got %d", cfg.RunLength)
	}
	if cfg.TimestampScale <= 0 {
		return nil, errors.Errorf("timestamp scale must be positive, got %v", cfg.TimestampScale)
	}

	var do driverOpts
	for _, opt := range opts {
		opt.apply(&do)
	}
	if do.clock == nil {
		do.clock = clock.New()
	}
	if do.solver == nil {
		solver, err := isam.NewSolver(cfg.Solver, logger.Sublogger("isam"))
		if err != nil {
			return nil, err
		}
		do.solver = solver
	}

	params := cfg.IMUParams()
	bias := cfg.Bias()
	return &Driver{
		cfg:        *cfg,
		logger:     logger,
		runID:      uuid.NewString(),
		adapter:    NewStateAdapter(states),
		cursor:     NewIMUCursor(samples),
		pim:        imu.NewPreintegrator(params, bias),
		params:     params,
		bias:       bias,
		graph:      fg.NewGraph(),
		solver:     do.solver,
		clock:      do.clock,
		observer:   append(multiObserver{NewLoggingObserver(logger)}, do.observers...),
		lastSolved: -1,
	}, nil
}

// RunID identifies this run in events and logs.
func (d *Driver) RunID() string {
	return d.runID
}

// Graph returns the graph built so far. After a failed run it holds the last good estimate.
func (d *Driver) Graph() *fg.Graph {
	return d.graph
}

// Cursor returns the IMU cursor.
func (d *Driver) Cursor() *IMUCursor {
	return d.cursor
}

// Run steps epochs while the index is below the run length. The context is only checked between
// epochs; an epoch is never interrupted. Any returned error is a *RunError.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	if d.ran {
		return nil, ErrAlreadyRun
	}
	d.ran = true

	ctx, span := trace.StartSpan(ctx, "frontend::Driver::Run")
	defer span.End()
	span.AddAttributes(trace.StringAttribute("run", d.runID))

	d.logger.Infow("run started",
		"run", d.runID,
		"epochs", d.adapter.Len(),
		"imu_samples", d.cursor.Len(),
		"run_length", d.cfg.RunLength)

	if d.adapter.Len() == 0 {
		return nil, d.fail(0, CategoryData, errors.New("state series is empty"))
	}
	if len(d.adapter.series.Times) != d.adapter.Len() {
		return nil, d.fail(0, CategoryData, errors.Errorf(
			"state series has %d rows and %d timestamps", d.adapter.Len(), len(d.adapter.series.Times)))
	}

	if err := d.initialize(ctx); err != nil {
		return nil, err
	}

	for i := 1; i < d.cfg.RunLength; i++ {
		if err := ctx.Err(); err != nil {
			return nil, d.fail(i, CategoryCanceled, err)
		}
		if i >= d.adapter.Len() {
			if d.cfg.UntilExhausted {
				d.logger.Debugw("state series exhausted", "run", d.runID, "epoch", i)
				break
			}
			return nil, d.fail(i, CategoryPrecondition,
				errors.Wrapf(ErrEpochOutOfRange, "epoch %d of %d", i, d.adapter.Len()))
		}
		if err := d.step(ctx, i); err != nil {
			return nil, err
		}
	}

	result, err := d.result()
	if err != nil {
		return nil, d.fail(d.lastSolved, CategoryPrecondition, err)
	}
	d.logger.Infow("run finished",
		"run", d.runID,
		"processed", len(d.processed),
		"skipped", len(d.skipped),
		"last_solved_epoch", d.lastSolved)
	return result, nil
}

// initialize anchors epoch 0 to the external estimate and solves once.
func (d *Driver) initialize(ctx context.Context) error {
	_, span := trace.StartSpan(ctx, "frontend::Driver::initialize")
	defer span.End()

	state := d.adapter.NavState(0)
	insert := func() error {
		if err := d.graph.SetInitialEstimate(fg.X(0), state.Pose); err != nil {
			return err
		}
		if err := d.graph.SetInitialEstimate(fg.V(0), state.Velocity); err != nil {
			return err
		}
		if err := d.graph.SetInitialEstimate(biasKey, d.bias); err != nil {
			return err
		}
		if err := d.graph.AddPriorPose(fg.X(0), state.Pose, d.cfg.PriorPoseSigma); err != nil {
			return err
		}
		return d.graph.AddPriorVelocity(fg.V(0), state.Velocity, d.cfg.PriorVelocitySigma)
	}
	if err := insert(); err != nil {
		return d.fail(0, CategoryPrecondition, err)
	}

	elapsed, err := d.solve()
	if err != nil {
		return d.fail(0, CategorySolver, err)
	}
	d.processedEpoch(0, 0, Alignment{}, imu.Delta{}, elapsed)
	return nil
}

// step runs one STEPPING transition from the last processed epoch to epoch i.
func (d *Driver) step(ctx context.Context, i int) error {
	_, span := trace.StartSpan(ctx, "frontend::Driver::step")
	defer span.End()
	span.AddAttributes(trace.Int64Attribute("epoch", int64(i)))

	scale := d.cfg.TimestampScale
	tPrev := d.adapter.Time(d.lastSolved) * scale
	tNext := d.adapter.Time(i) * scale
	dt := tNext - tPrev
	if dt <= 0 {
		d.skipped = append(d.skipped, i)
		d.observer.OnEpoch(EpochEvent{
			RunID:   d.runID,
			Index:   i,
			Time:    d.adapter.Time(i),
			Outcome: OutcomeSkipped,
			DT:      dt,
		})
		return nil
	}

	d.pim.Reset(d.bias)
	alignment := d.cursor.Advance(tPrev, tNext, d.pim)
	delta := d.pim.Delta()

	prev := d.lastSolved
	insert := func() error {
		pose, err := d.graph.CurrentPose(fg.X(prev))
		if err != nil {
			return err
		}
		velocity, err := d.graph.CurrentVelocity(fg.V(prev))
		if err != nil {
			return err
		}
		if err := d.graph.SetInitialEstimate(fg.X(i), pose); err != nil {
			return err
		}
		if err := d.graph.SetInitialEstimate(fg.V(i), velocity); err != nil {
			return err
		}
		return d.graph.AddPreintegrationConstraint(fg.X(prev), fg.V(prev), fg.X(i), fg.V(i), biasKey, delta, d.params)
	}
	if err := insert(); err != nil {
		category := CategoryPrecondition
		if errors.Is(err, imu.ErrCovarianceNotPositiveDefinite) {
			category = CategorySolver
		}
		return d.fail(i, category, err)
	}

	elapsed, err := d.solve()
	if err != nil {
		return d.fail(i, CategorySolver, err)
	}
	d.processedEpoch(i, dt, alignment, delta, elapsed)
	return nil
}

func (d *Driver) solve() (time.Duration, error) {
	start := d.clock.Now()
	err := d.graph.Flush(d.solver)
	return d.clock.Since(start), err
}

func (d *Driver) processedEpoch(i int, dt float64, alignment Alignment, delta imu.Delta, elapsed time.Duration) {
	d.lastSolved = i
	d.processed = append(d.processed, i)
	d.solveTimes = append(d.solveTimes, elapsed)
	if i > 0 {
		d.samples = append(d.samples, alignment.Integrated)
	}
	event := EpochEvent{
		RunID:             d.runID,
		Index:             i,
		Time:              d.adapter.Time(i),
		Outcome:           OutcomeProcessed,
		DT:                dt,
		SamplesIntegrated: alignment.Integrated,
		IMUExhausted:      alignment.Exhausted,
		SolveDuration:     elapsed,
	}
	if delta.DeltaT > 0 {
		event.AngularRate = spatialmath.OrientationToAngularVel(delta.DeltaR, delta.DeltaT)
	}
	d.observer.OnEpoch(event)
}

// fail emits the failure event and builds the RunError.
func (d *Driver) fail(i int, category Category, err error) *RunError {
	runErr := &RunError{Category: category, Epoch: i, LastSolvedEpoch: d.lastSolved, Err: err}
	var t float64
	if i >= 0 && i < d.adapter.Len() && i < len(d.adapter.series.Times) {
		t = d.adapter.Time(i)
	}
	d.observer.OnEpoch(EpochEvent{RunID: d.runID, Index: i, Time: t, Outcome: OutcomeFailed, Err: err})
	return runErr
}

func (d *Driver) result() (*Result, error) {
	values := d.graph.Estimate()
	trajectory := make([]TrajectoryPoint, 0, len(d.processed))
	for _, i := range d.processed {
		pose, err := values.Pose(fg.X(i))
		if err != nil {
			return nil, err
		}
		velocity, err := values.Velocity(fg.V(i))
		if err != nil {
			return nil, err
		}
		trajectory = append(trajectory, TrajectoryPoint{
			Index:     i,
			Time:      d.adapter.Time(i),
			State:     navstate.NavState{Pose: pose, Velocity: velocity},
			Reference: d.adapter.NavState(i),
		})
	}

	summary := Summary{
		RunID:     d.runID,
		Visited:   len(d.processed) + len(d.skipped),
		Processed: len(d.processed),
		Skipped:   len(d.skipped),
	}
	summarize(&summary, d.solveTimes, d.samples)
	compare(&summary, trajectory)
	if s, ok := d.solver.(interface{ Stats() isam.Stats }); ok {
		summary.Relinearizations = s.Stats().Relinearizations
	}

	return &Result{
		RunID:           d.runID,
		Processed:       d.processed,
		Skipped:         d.skipped,
		Values:          values,
		Trajectory:      trajectory,
		LastSolvedEpoch: d.lastSolved,
		Summary:         summary,
	}, nil
}
