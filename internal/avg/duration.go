package avg

import "time"

// SlidingDurationAvg wraps a SlidingAvg and converts its statistic to
// time.Duration, keeping everything in the underlying fixed-point layer in
// milliseconds, for callers such as round-trip-time tracking that want a
// Duration rather than a bare int64. No other package in this module calls it.
type SlidingDurationAvg struct {
	avg *SlidingAvg
}

// NewDuration returns a SlidingDurationAvg whose gain asymptotes at
// 1/invertedGain.
func NewDuration(invertedGain int64) *SlidingDurationAvg {
	return &SlidingDurationAvg{avg: New(invertedGain)}
}

// NewDefaultDuration returns a SlidingDurationAvg with an inverted gain of 20.
func NewDefaultDuration() *SlidingDurationAvg {
	return &SlidingDurationAvg{avg: NewDefault()}
}

// Update folds sample into the running mean and deviation, in milliseconds.
func (a *SlidingDurationAvg) Update(sample time.Duration) {
	a.avg.Update(sample.Milliseconds())
}

// Mean returns the current running mean as a Duration.
func (a *SlidingDurationAvg) Mean() time.Duration {
	return time.Duration(a.avg.Mean()) * time.Millisecond
}

// Deviation returns the current mean-absolute-deviation as a Duration.
func (a *SlidingDurationAvg) Deviation() time.Duration {
	return time.Duration(a.avg.Deviation()) * time.Millisecond
}
