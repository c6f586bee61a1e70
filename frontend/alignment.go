package frontend

import (
	"github.com/onurbagoren/UW-SLAM/imu"
)

// Alignment describes what one call to IMUCursor.Advance did.
type Alignment struct {
	// First and Last are the indices of the first and last consumed samples. Both are -1 when
	// nothing was consumed.
	First, Last int
	Consumed    int
	Integrated  int
	// Exhausted is set when the stream ended before the upper epoch bound was reached.
	Exhausted bool
}

// IMUCursor walks a time ordered IMU stream. It is never rewound.
//
// A window [tPrev, tNext) owns every sample with tPrev <= t < tNext. A sample exactly at tNext
// belongs to the next window. Each owned sample is held until the next owned sample, the last
// one until tNext, and the first one also covers [tPrev, t). A window that owns any sample
// therefore integrates exactly tNext - tPrev.
type IMUCursor struct {
	samples []imu.Sample
	pos     int
}

// NewIMUCursor returns a cursor positioned at the first sample.
func NewIMUCursor(samples []imu.Sample) *IMUCursor {
	return &IMUCursor{samples: samples}
}

// Position returns the index of the next sample to be consumed.
func (c *IMUCursor) Position() int {
	return c.pos
}

// Len returns the number of samples in the stream.
func (c *IMUCursor) Len() int {
	return len(c.samples)
}

// Exhausted reports whether every sample has been consumed.
func (c *IMUCursor) Exhausted() bool {
	return c.pos >= len(c.samples)
}

// Advance consumes every sample with t < tNext and integrates the ones with t >= tPrev into pim.
// Samples before tPrev are consumed without being integrated.
func (c *IMUCursor) Advance(tPrev, tNext float64, pim *imu.Preintegrator) Alignment {
	out := Alignment{First: -1, Last: -1}
	var (
		held    imu.Sample
		holding bool
		from    = tPrev
	)
	for c.pos < len(c.samples) && c.samples[c.pos].Time < tNext {
		s := c.samples[c.pos]
		if out.First < 0 {
			out.First = c.pos
		}
		out.Last = c.pos
		out.Consumed++
		c.pos++
		if s.Time < tPrev {
			continue
		}
		if holding {
			pim.IntegrateSample(held, s.Time-from)
			from = s.Time
		}
		held, holding = s, true
		out.Integrated++
	}
	if holding {
		pim.IntegrateSample(held, tNext-from)
	}
	out.Exhausted = c.pos >= len(c.samples)
	return out
}
