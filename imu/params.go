// Package imu preintegrates inertial samples into relative motion constraints between epochs.
package imu

import (
	"github.com/golang/geo/r3"
)

// Sample is a single inertial measurement. Time is in seconds.
type Sample struct {
	Time            float64
	AngularVelocity r3.Vector
	SpecificForce   r3.Vector
}

// Params are the preintegration noise model and the nominal gravity vector in the navigation frame.
// Covariances are continuous-time and isotropic.
type Params struct {
	Gravity                 r3.Vector
	GyroscopeCovariance     float64
	AccelerometerCovariance float64
	IntegrationCovariance   float64
	// MinDeltaSigma is added to every standard deviation of the preintegrated covariance before
	// it is inverted. It keeps an identity delta built from zero samples invertible.
	MinDeltaSigma float64
}

// Default continuous-time noise densities.
const (
	DefaultGyroscopeSigma     = 1e-3
	DefaultAccelerometerSigma = 1e-2
	DefaultIntegrationSigma   = 1e-4
	DefaultMinDeltaSigma      = 1e-6
)

// MakeParamsU returns parameters for a z-up navigation frame, where gravity points along -z with
// magnitude g.
func MakeParamsU(g float64) Params {
	return Params{
		Gravity:                 r3.Vector{X: 0, Y: 0, Z: -g},
		GyroscopeCovariance:     DefaultGyroscopeSigma * DefaultGyroscopeSigma,
		AccelerometerCovariance: DefaultAccelerometerSigma * DefaultAccelerometerSigma,
		IntegrationCovariance:   DefaultIntegrationSigma * DefaultIntegrationSigma,
		MinDeltaSigma:           DefaultMinDeltaSigma,
	}
}
