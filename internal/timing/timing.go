// Package timing converts between scripted seconds, recorded milliseconds
// and video frames. Every duration conversion in scenecaster goes through here.
package timing

import "math"

// SecondsToFrames returns round(s * fps). Halves are rounded away from zero.
func SecondsToFrames(s float64, fps int) int {
	return int(math.Round(s * float64(fps)))
}

// MsToFrames returns round(ms/1000 * fps).
func MsToFrames(ms int64, fps int) int {
	return int(math.Round(float64(ms) / 1000 * float64(fps)))
}

// FramesToSeconds returns f / fps.
func FramesToSeconds(f int, fps int) float64 {
	return float64(f) / float64(fps)
}
