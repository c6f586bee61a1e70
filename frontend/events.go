package frontend

import (
	"sync"
	"time"

	"github.com/onurbagoren/UW-SLAM/logging"
	"github.com/onurbagoren/UW-SLAM/spatialmath"
)

// Outcome is what happened to an epoch.
type Outcome int

const (
	// OutcomeProcessed means the epoch was added to the graph and solved.
	OutcomeProcessed Outcome = iota
	// OutcomeSkipped means the epoch had a non-positive dt and was discarded.
	OutcomeSkipped
	// OutcomeFailed means the epoch ended the run.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProcessed:
		return "processed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EpochEvent is emitted once per visited epoch.
type EpochEvent struct {
	RunID   string
	Index   int
	Time    float64
	Outcome Outcome

	// DT is the elapsed time in seconds since the last processed epoch. It is zero at epoch 0.
	DT                float64
	SamplesIntegrated int
	IMUExhausted      bool
	// AngularRate is the mean body rate over the window, zero when nothing was integrated.
	AngularRate   spatialmath.AngularVelocity
	SolveDuration time.Duration
	Err           error
}

// Observer receives epoch events. Calls are made from the goroutine running the driver.
type Observer interface {
	OnEpoch(event EpochEvent)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(event EpochEvent)

// OnEpoch calls f.
func (f ObserverFunc) OnEpoch(event EpochEvent) {
	f(event)
}

// LoggingObserver writes one log line per event.
type LoggingObserver struct {
	logger logging.Logger
}

// NewLoggingObserver returns an observer that logs through logger.
func NewLoggingObserver(logger logging.Logger) *LoggingObserver {
	return &LoggingObserver{logger: logger}
}

// OnEpoch logs processed epochs at debug, skips at warn and failures at error.
func (lo *LoggingObserver) OnEpoch(event EpochEvent) {
	keysAndValues := []interface{}{
		"run", event.RunID,
		"epoch", event.Index,
		"time", event.Time,
		"outcome", event.Outcome.String(),
	}
	switch event.Outcome {
	case OutcomeProcessed:
		lo.logger.Debugw("epoch processed", append(keysAndValues,
			"dt", event.DT,
			"samples", event.SamplesIntegrated,
			"imu_exhausted", event.IMUExhausted,
			"angular_rate", event.AngularRate.R3(),
			"solve_duration", event.SolveDuration)...)
	case OutcomeSkipped:
		lo.logger.Warnw("epoch skipped", append(keysAndValues, "dt", event.DT)...)
	case OutcomeFailed:
		lo.logger.Errorw("epoch failed", append(keysAndValues, "error", event.Err)...)
	}
}

// EventRecorder keeps every event it sees.
type EventRecorder struct {
	mu     sync.Mutex
	events []EpochEvent
}

// OnEpoch records event.
func (er *EventRecorder) OnEpoch(event EpochEvent) {
	er.mu.Lock()
	defer er.mu.Unlock()
	er.events = append(er.events, event)
}

// Events returns a copy of the recorded events.
func (er *EventRecorder) Events() []EpochEvent {
	er.mu.Lock()
	defer er.mu.Unlock()
	out := make([]EpochEvent, len(er.events))
	copy(out, er.events)
	return out
}

// Outcomes returns the epoch indices that ended with outcome, in order.
func (er *EventRecorder) Outcomes(outcome Outcome) []int {
	var out []int
	for _, ev := range er.Events() {
		if ev.Outcome == outcome {
			out = append(out, ev.Index)
		}
	}
	return out
}

type multiObserver []Observer

func (mo multiObserver) OnEpoch(event EpochEvent) {
	for _, o := range mo {
		o.OnEpoch(event)
	}
}
