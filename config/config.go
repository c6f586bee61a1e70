// Package config defines the structures to configure an estimator run.
package config

import (
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/onurbagoren/UW-SLAM/imu"
	"github.com/onurbagoren/UW-SLAM/isam"
	"github.com/onurbagoren/UW-SLAM/navstate"
)

// Defaults of the reference run.
const (
	DefaultPriorSigma     = 0.1
	DefaultGravity        = 9.81
	DefaultRunLength      = 100
	DefaultTimestampScale = 1e-9
	DefaultBagIMUTopic    = "/imu/data"
)

// defaultBiasComponents is used for both the accelerometer and the gyroscope.
var defaultBiasComponents = [3]float64{0.067, 0.115, 0.320}

// RunConfig describes a single estimator run.
type RunConfig struct {
	PriorPoseSigma     float64 `json:"prior_pose_sigma"`
	PriorVelocitySigma float64 `json:"prior_velocity_sigma"`

	InitialBias BiasConfig `json:"initial_bias"`
	// Gravity is the magnitude of nominal gravity. The navigation frame is z-up.
	Gravity float64 `json:"gravity"`

	// RunLength is a hard upper bound on the number of epochs visited.
	RunLength int `json:"run_length"`
	// UntilExhausted stops the run early at the end of the state series.
	UntilExhausted bool `json:"until_exhausted"`
	// TimestampScale converts raw timestamps to seconds.
	TimestampScale float64 `json:"timestamp_scale"`

	IMUNoise NoiseConfig `json:"imu_noise"`
	Solver   isam.Params `json:"solver"`
	Data     DataConfig  `json:"data"`

	LogLevel string `json:"log_level"`
}

// BiasConfig is the fixed IMU bias used for the whole run.
type BiasConfig struct {
	Accelerometer [3]float64 `json:"accelerometer"`
	Gyroscope     [3]float64 `json:"gyroscope"`
}

// NoiseConfig holds continuous-time IMU noise standard deviations.
type NoiseConfig struct {
	GyroSigma        float64 `json:"gyro_sigma"`
	AccelSigma       float64 `json:"accel_sigma"`
	IntegrationSigma float64 `json:"integration_sigma"`
	MinDeltaSigma    float64 `json:"min_delta_sigma"`
}

// DataConfig locates the input series. Relative paths are resolved against the config file.
type DataConfig struct {
	States      string `json:"states"`
	StateTimes  string `json:"state_times"`
	IMU         string `json:"imu"`
	Depth       string `json:"depth,omitempty"`
	Bag         string `json:"bag,omitempty"`
	BagIMUTopic string `json:"bag_imu_topic,omitempty"`
}

// DefaultRunConfig returns the configuration of the reference run with no data paths.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		PriorPoseSigma:     DefaultPriorSigma,
		PriorVelocitySigma: DefaultPriorSigma,
		InitialBias: BiasConfig{
			Accelerometer: defaultBiasComponents,
			Gyroscope:     defaultBiasComponents,
		},
		Gravity:        DefaultGravity,
		RunLength:      DefaultRunLength,
		TimestampScale: DefaultTimestampScale,
		IMUNoise: NoiseConfig{
			GyroSigma:        imu.DefaultGyroscopeSigma,
			AccelSigma:       imu.DefaultAccelerometerSigma,
			IntegrationSigma: imu.DefaultIntegrationSigma,
			MinDeltaSigma:    imu.DefaultMinDeltaSigma,
		},
		Solver:   isam.DefaultParams(),
		Data:     DataConfig{BagIMUTopic: DefaultBagIMUTopic},
		LogLevel: "info",
	}
}

// Bias returns the configured initial bias.
func (cfg *RunConfig) Bias() navstate.Bias {
	a, g := cfg.InitialBias.Accelerometer, cfg.InitialBias.Gyroscope
	return navstate.Bias{
		Accelerometer: r3.Vector{X: a[0], Y: a[1], Z: a[2]},
		Gyroscope:     r3.Vector{X: g[0], Y: g[1], Z: g[2]},
	}
}

// IMUParams returns the preintegration parameters for a z-up frame.
func (cfg *RunConfig) IMUParams() imu.Params {
	params := imu.MakeParamsU(cfg.Gravity)
	params.GyroscopeCovariance = cfg.IMUNoise.GyroSigma * cfg.IMUNoise.GyroSigma
	params.AccelerometerCovariance = cfg.IMUNoise.AccelSigma * cfg.IMUNoise.AccelSigma
	params.IntegrationCovariance = cfg.IMUNoise.IntegrationSigma * cfg.IMUNoise.IntegrationSigma
	params.MinDeltaSigma = cfg.IMUNoise.MinDeltaSigma
	return params
}

// ResolvePaths makes every relative data path relative to dir.
func (cfg *RunConfig) ResolvePaths(dir string) {
	for _, p := range []*string{
		&cfg.Data.States, &cfg.Data.StateTimes, &cfg.Data.IMU, &cfg.Data.Depth, &cfg.Data.Bag,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// Validate ensures all parts of the config are valid. Every problem found is reported.
func (cfg *RunConfig) Validate(path string) error {
	var errs error
	positive := func(field string, v float64) {
		if v <= 0 {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.Errorf("%s must be positive, got %v", field, v)))
		}
	}
	positive("prior_pose_sigma", cfg.PriorPoseSigma)
	positive("prior_velocity_sigma", cfg.PriorVelocitySigma)
	positive("timestamp_scale", cfg.TimestampScale)
	positive("imu_noise.gyro_sigma", cfg.IMUNoise.GyroSigma)
	positive("imu_noise.accel_sigma", cfg.IMUNoise.AccelSigma)
	positive("imu_noise.integration_sigma", cfg.IMUNoise.IntegrationSigma)
	positive("imu_noise.min_delta_sigma", cfg.IMUNoise.MinDeltaSigma)

	if cfg.Gravity < 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.Errorf("gravity must not be negative, got %v", cfg.Gravity)))
	}
	if cfg.RunLength < 1 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.Errorf("run_length must be at least 1, got %d", cfg.RunLength)))
	}
	if err := cfg.Solver.Validate(); err != nil {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path+".solver", err))
	}
	if cfg.LogLevel != "" {
		if _, err := levelFromConfig(cfg.LogLevel); err != nil {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path, err))
		}
	}
	return multierr.Append(errs, cfg.Data.Validate(path+".data"))
}

// Validate ensures the required inputs are named.
func (dc *DataConfig) Validate(path string) error {
	if dc.States == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "states")
	}
	if dc.StateTimes == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "state_times")
	}
	if dc.IMU == "" && dc.Bag == "" {
		return utils.NewConfigValidationError(path, errors.New("one of imu or bag is required"))
	}
	if dc.Bag != "" && dc.BagIMUTopic == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "bag_imu_topic")
	}
	return nil
}
