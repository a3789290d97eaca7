package analysis

import (
	"math"

	"github.com/ivanzxc/go-realtime-vitals/internal/dsp"
)

// signalQuality grades the raw trace from its overall variance and the
// coefficient of variation of the last QualitySeconds.
func (e *Extractor) signalQuality(signal []float64) SignalQuality {
	if len(signal) < int(e.cfg.SampleRate) {
		return QualityPoor
	}

	variance := dsp.Variance(signal)

	recent := signal[max(0, len(signal)-int(e.cfg.SampleRate*e.cfg.QualitySeconds)):]
	mean, recentVar := dsp.MeanVariance(recent)
	cv := 100.0
	if mean > 0 {
		cv = math.Sqrt(recentVar) / mean * 100
	}

	switch {
	case variance < 0.01 || cv > 10:
		return QualityPoor
	case variance < 0.1 || cv > 5:
		return QualityFair
	case variance < 1 || cv > 2:
		return QualityGood
	default:
		return QualityExcellent
	}
}

// waveform returns the detrended last WaveformSeconds of the trace scaled
// to [-1, 1] for display.
func (e *Extractor) waveform(signal []float64) []float64 {
	if len(signal) < int(e.cfg.SampleRate) {
		return []float64{}
	}

	window := min(int(e.cfg.SampleRate*e.cfg.WaveformSeconds), len(signal))
	out := dsp.Detrend(signal[len(signal)-window:])

	var peak float64
	for _, v := range out {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak == 0 {
		return out
	}
	for i := range out {
		out[i] /= peak
	}
	return out
}
