package navstate

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// BiasDim is the tangent space dimension of a Bias, ordered [accelerometer, gyroscope].
const BiasDim = 6

// Bias is a constant additive IMU sensor bias.
type Bias struct {
	Accelerometer r3.Vector `json:"accelerometer"`
	Gyroscope     r3.Vector `json:"gyroscope"`
}

// CorrectAccelerometer removes the accelerometer bias from a raw specific force measurement.
func (b Bias) CorrectAccelerometer(measured r3.Vector) r3.Vector {
	return measured.Sub(b.Accelerometer)
}

// CorrectGyroscope removes the gyroscope bias from a raw angular rate measurement.
func (b Bias) CorrectGyroscope(measured r3.Vector) r3.Vector {
	return measured.Sub(b.Gyroscope)
}

// Vector returns the bias as [ax, ay, az, gx, gy, gz].
func (b Bias) Vector() [BiasDim]float64 {
	return [BiasDim]float64{
		b.Accelerometer.X, b.Accelerometer.Y, b.Accelerometer.Z,
		b.Gyroscope.X, b.Gyroscope.Y, b.Gyroscope.Z,
	}
}

// Retract adds the tangent vector to the bias.
func (b Bias) Retract(xi [BiasDim]float64) Bias {
	return Bias{
		Accelerometer: b.Accelerometer.Add(r3.Vector{X: xi[0], Y: xi[1], Z: xi[2]}),
		Gyroscope:     b.Gyroscope.Add(r3.Vector{X: xi[3], Y: xi[4], Z: xi[5]}),
	}
}

// LocalCoordinates is the inverse of Retract.
func (b Bias) LocalCoordinates(other Bias) [BiasDim]float64 {
	da := other.Accelerometer.Sub(b.Accelerometer)
	dg := other.Gyroscope.Sub(b.Gyroscope)
	return [BiasDim]float64{da.X, da.Y, da.Z, dg.X, dg.Y, dg.Z}
}

func (b Bias) String() string {
	return fmt.Sprintf("acc = (%g, %g, %g) gyro = (%g, %g, %g)",
		b.Accelerometer.X, b.Accelerometer.Y, b.Accelerometer.Z, b.Gyroscope.X, b.Gyroscope.Y, b.Gyroscope.Z)
}
