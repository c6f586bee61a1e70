// Package dataset loads the external estimator output and the sensor logs of a run.
package dataset

import (
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/onurbagoren/UW-SLAM/config"
	"github.com/onurbagoren/UW-SLAM/frontend"
	"github.com/onurbagoren/UW-SLAM/imu"
	"github.com/onurbagoren/UW-SLAM/logging"
	"github.com/onurbagoren/UW-SLAM/ros"
)

var (
	// ErrLengthMismatch is returned when the state series and its timestamps differ in length.
	ErrLengthMismatch = errors.New("state series and timestamps differ in length")
	// ErrNonMonotonic is returned when IMU timestamps decrease.
	ErrNonMonotonic = errors.New("imu timestamps are not monotonic")
)

// Dataset is every input series of a run, materialized in memory.
//
// Every timestamp is relative to Origin, the raw stamp of the first epoch, so the state times
// start at zero and the sample times are in seconds since that epoch.
type Dataset struct {
	States frontend.StateSeries
	IMU    []imu.Sample
	Depth  DepthSeries
	Origin int64
}

// bagOrigin expresses a raw stamp as a ROS stamp.
func bagOrigin(origin int64, scale float64) ros.Stamp {
	if scale == 1e-9 {
		return ros.Stamp{Secs: int(origin / 1e9), Nsecs: int(origin % 1e9)}
	}
	secs := float64(origin) * scale
	whole := math.Floor(secs)
	return ros.Stamp{Secs: int(whole), Nsecs: int(math.Round((secs - whole) * 1e9))}
}

// readFile opens path and hands it to read.
func readFile(path string, read func(io.Reader) error) error {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "cannot open %s", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)
	return errors.Wrap(read(f), path)
}

// Load reads the files named by cfg.Data. IMU samples come from the bag when one is configured,
// from the IMU csv otherwise. Every unreadable file is reported.
func Load(cfg *config.RunConfig, logger logging.Logger) (*Dataset, error) {
	var (
		ds   Dataset
		errs error
	)

	errs = multierr.Append(errs, readFile(cfg.Data.States, func(r io.Reader) error {
		rows, err := ReadStates(r)
		ds.States.Rows = rows
		return err
	}))
	errs = multierr.Append(errs, readFile(cfg.Data.StateTimes, func(r io.Reader) error {
		times, origin, err := ReadStateTimes(r)
		ds.States.Times = times
		ds.Origin = origin
		return err
	}))

	if cfg.Data.Bag != "" {
		rb, err := ros.ReadBag(cfg.Data.Bag)
		if err == nil {
			ds.IMU, err = ros.IMUSamplesFromBag(rb, cfg.Data.BagIMUTopic, bagOrigin(ds.Origin, cfg.TimestampScale))
		}
		errs = multierr.Append(errs, err)
	} else {
		errs = multierr.Append(errs, readFile(cfg.Data.IMU, func(r io.Reader) error {
			samples, err := ReadIMU(r, cfg.TimestampScale, ds.Origin)
			ds.IMU = samples
			return err
		}))
	}

	if cfg.Data.Depth != "" {
		errs = multierr.Append(errs, readFile(cfg.Data.Depth, func(r io.Reader) error {
			depth, err := ReadDepth(r, cfg.TimestampScale, ds.Origin)
			ds.Depth = depth
			return err
		}))
	}
	if errs != nil {
		return nil, errs
	}

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	logger.Infow("dataset loaded",
		"origin", ds.Origin,
		"epochs", ds.States.Len(),
		"imu_samples", len(ds.IMU),
		"depth_readings", ds.Depth.Len())
	return &ds, nil
}

// Validate checks the series line up and the IMU stream never goes back in time.
func (ds *Dataset) Validate() error {
	if len(ds.States.Rows) != len(ds.States.Times) {
		return errors.Wrapf(ErrLengthMismatch, "%d rows, %d timestamps", len(ds.States.Rows), len(ds.States.Times))
	}
	for i := 1; i < len(ds.IMU); i++ {
		if ds.IMU[i].Time < ds.IMU[i-1].Time {
			return errors.Wrapf(ErrNonMonotonic, "sample %d at %v follows %v", i, ds.IMU[i].Time, ds.IMU[i-1].Time)
		}
	}
	return nil
}
