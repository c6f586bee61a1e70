package ros

// Stamp is a ROS time.
type Stamp struct {
	Secs  int
	Nsecs int
}

// Since returns s - origin in seconds. Seconds and nanoseconds are subtracted separately so
// stamps keep their nanoseconds.
func (s Stamp) Since(origin Stamp) float64 {
	return float64(s.Secs-origin.Secs) + float64(s.Nsecs-origin.Nsecs)*1e-9
}

// Vector3 is a geometry_msgs/Vector3.
type Vector3 struct {
	X float64
	Y float64
	Z float64
}

// ImuMessage is a sensor_msgs/Imu as gobag renders it to JSON.
type ImuMessage struct {
	Meta Stamp
	Data struct {
		Header struct {
			Seq     int
			Stamp   Stamp
			FrameID string `json:"frame_id"`
		}
		Orientation struct {
			X float64
			Y float64
			Z float64
			W float64
		}
		OrientationCovariance        [9]float64 `json:"orientation_covariance"`
		AngularVelocity              Vector3    `json:"angular_velocity"`
		AngularVelocityCovariance    [9]float64 `json:"angular_velocity_covariance"`
		LinearAcceleration           Vector3    `json:"linear_acceleration"`
		LinearAccelerationCovariance [9]float64 `json:"linear_acceleration_covariance"`
	}
}

// Stamp returns the header stamp, falling back to the bag record time when the header is unset.
func (m *ImuMessage) Stamp() Stamp {
	if m.Data.Header.Stamp == (Stamp{}) {
		return m.Meta
	}
	return m.Data.Header.Stamp
}
