package analysis

import (
	"math"

	"github.com/ivanzxc/go-realtime-vitals/internal/dsp"
)

// detectPeaks returns indices of local maxima in the min-max normalised
// trace that exceed threshold and dominate two neighbours on each side.
func detectPeaks(signal []float64, threshold float64) []int {
	lo, hi, ok := dsp.MinMax(signal)
	if !ok || hi == lo {
		return nil
	}
	span := hi - lo
	norm := func(i int) float64 { return (signal[i] - lo) / span }

	var peaks []int
	for i := 2; i < len(signal)-2; i++ {
		v := norm(i)
		if v > threshold &&
			v > norm(i-1) && v > norm(i+1) &&
			v > norm(i-2) && v > norm(i+2) {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

// hrv derives R-R interval statistics from beats in the heart-band trace.
func (e *Extractor) hrv(filtered []float64) *HRVMetrics {
	peaks := detectPeaks(filtered, e.cfg.PeakThreshold)
	if len(peaks) < 3 {
		return nil
	}

	var intervals []float64
	for i := 1; i < len(peaks); i++ {
		ms := float64(peaks[i]-peaks[i-1]) / e.cfg.SampleRate * 1000
		if e.cfg.RRRange.Contains(ms) {
			intervals = append(intervals, ms)
		}
	}
	if len(intervals) < 2 {
		return nil
	}

	m := ComputeHRV(intervals)
	return &m
}

// ComputeHRV returns SDNN, RMSSD, pNN50 and mean R-R for a series of R-R
// intervals in milliseconds. Values are rounded to 0.1 (mean R-R to 1 ms).
func ComputeHRV(intervals []float64) HRVMetrics {
	meanRR, variance := dsp.MeanVariance(intervals)
	sdnn := math.Sqrt(variance)

	var sumSq float64
	var over50, diffs int
	for i := 1; i < len(intervals); i++ {
		d := math.Abs(intervals[i] - intervals[i-1])
		sumSq += d * d
		diffs++
		if d > 50 {
			over50++
		}
	}

	var rmssd, pnn50 float64
	if diffs > 0 {
		rmssd = math.Sqrt(sumSq / float64(diffs))
		pnn50 = float64(over50) / float64(diffs) * 100
	}

	return HRVMetrics{
		RMSSD:  roundTenth(rmssd),
		SDNN:   roundTenth(sdnn),
		PNN50:  roundTenth(pnn50),
		MeanRR: math.Round(meanRR),
	}
}

// StressIndex scores HRV on a 0-100 scale where lower variability means more
// stress: RMSSD up to 40 points, SDNN up to 40, pNN50 up to 20.
func StressIndex(h HRVMetrics) (StressLevel, int) {
	score := 0

	switch {
	case h.RMSSD < 15:
		score += 40
	case h.RMSSD < 25:
		score += 30
	case h.RMSSD < 40:
		score += 15
	default:
		score += 5
	}

	switch {
	case h.SDNN < 30:
		score += 40
	case h.SDNN < 50:
		score += 30
	case h.SDNN < 80:
		score += 15
	default:
		score += 5
	}

	switch {
	case h.PNN50 < 3:
		score += 20
	case h.PNN50 < 10:
		score += 15
	case h.PNN50 < 25:
		score += 8
	default:
		score += 2
	}

	switch {
	case score < 35:
		return StressLow, score
	case score < 65:
		return StressModerate, score
	default:
		return StressHigh, score
	}
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
