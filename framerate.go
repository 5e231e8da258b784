package pff

import (
	"fmt"
	"math"
)

// FramerateTolerance is the relative tolerance for comparing frame durations.
var FramerateTolerance = 1e-9

// Framerate derives the frame rate of evenly spaced timestamps, in frames per second.
// Timestamps must be strictly increasing.
func Framerate(timestamps []float64) (float64, error) {
	if len(timestamps) < 2 {
		return 0, ErrNoFrameRate
	}

	delta := timestamps[1] - timestamps[0]
	if delta <= 0 {
		return 0, fmt.Errorf("%w: frame 1 at %gs does not follow frame 0 at %gs", ErrNonConstantFrameRate, timestamps[1], timestamps[0])
	}

	for i := 2; i < len(timestamps); i++ {
		d := timestamps[i] - timestamps[i-1]
		if !isClose(d, delta, FramerateTolerance) {
			return 0, fmt.Errorf("%w: frame %d lasts %gs, frame 0 lasts %gs", ErrNonConstantFrameRate, i-1, d, delta)
		}
	}

	return 1 / delta, nil
}

func isClose(a, b, tolerance float64) bool {
	if a == b {
		return true
	}

	return math.Abs(a-b) <= tolerance*math.Max(math.Abs(a), math.Abs(b))
}
