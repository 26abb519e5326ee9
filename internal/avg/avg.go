// Package avg implements a bias-corrected exponentially-weighted moving
// average, used to smooth per-peer throughput and latency samples.
//
// Ported from libtorrent's running-average algorithm: the first sample
// fully determines the mean (a gain of 1), the second sample has a gain of
// 1/2, and so on until the gain asymptotes at 1/invertedGain. Without this
// correction an average seeded at zero would be biased low for its first
// invertedGain samples.
package avg

// SlidingAvg is a fixed-point mean and mean-absolute-deviation accumulator.
// Samples are scaled by 64 before being folded in so that the running
// division never truncates away the sample's low bits; the public Mean and
// Deviation accessors undo the scaling with round-to-nearest.
type SlidingAvg struct {
	mean         int64
	deviation    int64
	sampleCount  int64
	invertedGain int64
}

// New returns a SlidingAvg whose gain asymptotes at 1/invertedGain.
func New(invertedGain int64) *SlidingAvg {
	return &SlidingAvg{invertedGain: invertedGain}
}

// NewDefault returns a SlidingAvg with an inverted gain of 20.
func NewDefault() *SlidingAvg {
	return New(20)
}

// Update folds sample into the running mean and deviation.
func (a *SlidingAvg) Update(sample int64) {
	sample *= 64

	var deviation int64
	if a.sampleCount > 0 {
		deviation = abs64(a.mean - sample)
	}

	if a.sampleCount < a.invertedGain {
		a.sampleCount++
	}

	a.mean += (sample - a.mean) / a.sampleCount

	if a.sampleCount > 1 {
		a.deviation += (deviation - a.deviation) / (a.sampleCount - 1)
	}
}

// Mean returns the current running mean, or 0 if no sample has been
// recorded yet.
func (a *SlidingAvg) Mean() int64 {
	if a.sampleCount == 0 {
		return 0
	}
	return (a.mean + 32) / 64
}

// Deviation returns the current mean-absolute-deviation, or 0 until the
// second sample has been recorded.
func (a *SlidingAvg) Deviation() int64 {
	if a.sampleCount == 0 {
		return 0
	}
	return (a.deviation + 32) / 64
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
