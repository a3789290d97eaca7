package analysis

import (
	"math"
	"slices"

	"github.com/ivanzxc/go-realtime-vitals/internal/dsp"
)

type spectralPeak struct {
	index     int
	freq      float64
	magnitude float64
}

// heartRate estimates BPM from the heart-band filtered trace.
func (e *Extractor) heartRate(filtered []float64) *int {
	if v := dsp.Variance(filtered); v < e.cfg.MinFilteredVariance {
		e.logger.Debug("hr rejected: filtered signal flat", "variance", v)
		return nil
	}

	spec := dsp.MagnitudeSpectrum(filtered, e.cfg.SampleRate)
	peak, snr, ok := e.dominantPeak(spec, e.cfg.HeartRateBand)
	if !ok {
		e.logger.Debug("hr rejected: no usable peak", "snr", snr)
		return nil
	}

	bpm := peak.freq * 60
	if !e.cfg.HeartRateRange.Contains(bpm) {
		e.logger.Debug("hr rejected: out of range", "bpm", bpm)
		return nil
	}

	if bpm < e.cfg.SubharmonicCheckBelow {
		if spec.MagnitudeAt(peak.freq*2) >= peak.magnitude*e.cfg.SubharmonicRatio {
			e.logger.Debug("hr rejected: subharmonic", "bpm", bpm, "double_bpm", bpm*2)
			return nil
		}
	}

	e.logger.Debug("hr estimated", "freq_hz", peak.freq, "bpm", bpm, "snr", snr)
	rate := int(math.Round(bpm))
	return &rate
}

// respiratoryRate estimates breaths per minute from the raw trace.
func (e *Extractor) respiratoryRate(signal []float64) *int {
	band := e.cfg.RespiratoryBand
	filtered := dsp.BandPass(signal, band.Low, band.High, e.cfg.SampleRate)
	if dsp.Variance(filtered) < e.cfg.MinFilteredVariance {
		return nil
	}

	spec := dsp.MagnitudeSpectrum(filtered, e.cfg.SampleRate)
	peak, _, ok := e.dominantPeak(spec, band)
	if !ok {
		return nil
	}

	brpm := peak.freq * 60
	if !e.cfg.RespiratoryRange.Contains(brpm) {
		return nil
	}
	rate := int(math.Round(brpm))
	return &rate
}

// dominantPeak returns the strongest in-band peak, preferring a fundamental
// over its first harmonic, and its SNR.
func (e *Extractor) dominantPeak(spec dsp.Spectrum, band Band) (spectralPeak, float64, bool) {
	var peaks []spectralPeak
	for i := 1; i < spec.Len()-1; i++ {
		f := spec.Frequencies[i]
		if !band.Contains(f) {
			continue
		}
		m := spec.Magnitudes[i]
		if m > spec.Magnitudes[i-1] && m > spec.Magnitudes[i+1] {
			peaks = append(peaks, spectralPeak{index: i, freq: f, magnitude: m})
		}
	}
	if len(peaks) == 0 {
		return spectralPeak{}, 0, false
	}

	slices.SortFunc(peaks, func(a, b spectralPeak) int {
		switch {
		case a.magnitude > b.magnitude:
			return -1
		case a.magnitude < b.magnitude:
			return 1
		}
		return 0
	})

	best := peaks[0]
	for _, c := range peaks[:min(e.cfg.HarmonicCandidates, len(peaks))] {
		harmonic := spec.MagnitudeAt(c.freq * 2)
		if harmonic > c.magnitude*e.cfg.HarmonicRatio &&
			c.magnitude >= harmonic*e.cfg.FundamentalRatio {
			best = c
			break
		}
	}

	snr := peakSNR(spec, best.index)
	if snr < e.cfg.MinSNR {
		return spectralPeak{}, snr, false
	}
	return best, snr, true
}

// peakSNR is the peak magnitude over the mean magnitude of all bins outside
// a window of 10% of the spectrum centred on the peak.
func peakSNR(spec dsp.Spectrum, peak int) float64 {
	window := max(3, int(math.Floor(float64(spec.Len())*0.1)))
	half := float64(window) / 2

	var sum float64
	var count int
	for i, m := range spec.Magnitudes {
		if math.Abs(float64(i-peak)) > half {
			sum += m
			count++
		}
	}

	noise := 1.0
	if count > 0 {
		noise = sum / float64(count)
	}
	if noise <= 0 {
		return 0
	}
	return spec.Magnitudes[peak] / noise
}
