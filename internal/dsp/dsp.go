// Package dsp holds the filtering and spectral primitives used by the rPPG
// extractor. All functions are pure: inputs are never modified.
package dsp

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// epsilon is the RMS below which a filtered trace is numerically flat.
const epsilon = 1e-9

// MeanVariance returns the mean and population variance of x.
// Fewer than two samples have zero variance.
func MeanVariance(x []float64) (mean, variance float64) {
	switch len(x) {
	case 0:
		return 0, 0
	case 1:
		return x[0], 0
	}
	return stat.PopMeanVariance(x, nil)
}

// Variance returns the population variance of x.
func Variance(x []float64) float64 {
	_, v := MeanVariance(x)
	return v
}

// StdDev returns the population standard deviation of x.
func StdDev(x []float64) float64 {
	return math.Sqrt(Variance(x))
}

// MinMax returns the extrema of x. It reports false for an empty slice.
func MinMax(x []float64) (lo, hi float64, ok bool) {
	if len(x) == 0 {
		return 0, 0, false
	}
	return floats.Min(x), floats.Max(x), true
}

// Detrend removes the least-squares linear fit from x.
func Detrend(x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) < 2 {
		copy(out, x)
		return out
	}

	idx := make([]float64, len(x))
	for i := range idx {
		idx[i] = float64(i)
	}
	intercept, slope := stat.LinearRegression(idx, x, nil, false)

	for i, v := range x {
		out[i] = v - (slope*float64(i) + intercept)
	}
	return out
}

// BandPass detrends x, removes its mean, then applies a first-order IIR
// high-pass at low Hz followed by a centred moving-average low-pass sized for
// high Hz. The result is scaled to unit RMS unless it is flat.
func BandPass(x []float64, low, high, sampleRate float64) []float64 {
	if len(x) < 3 {
		out := make([]float64, len(x))
		copy(out, x)
		return out
	}

	filtered := Detrend(x)
	mean := floats.Sum(filtered) / float64(len(filtered))
	floats.AddConst(-mean, filtered)

	// y[n] = alpha * (y[n-1] + x[n] - x[n-1])
	rc := 1 / (2 * math.Pi * low)
	dt := 1 / sampleRate
	alpha := rc / (rc + dt)
	highPassed := make([]float64, len(filtered))
	highPassed[0] = filtered[0]
	for i := 1; i < len(filtered); i++ {
		highPassed[i] = alpha * (highPassed[i-1] + filtered[i] - filtered[i-1])
	}

	window := int(math.Floor(sampleRate / (2 * high)))
	if window < 1 {
		window = 1
	}
	half := window / 2
	smoothed := make([]float64, len(highPassed))
	for i := range highPassed {
		lo := max(0, i-half)
		hi := min(len(highPassed)-1, i+half)
		smoothed[i] = floats.Sum(highPassed[lo:hi+1]) / float64(hi-lo+1)
	}

	rms := math.Sqrt(floats.Dot(smoothed, smoothed) / float64(len(smoothed)))
	if rms <= epsilon {
		clear(smoothed)
		return smoothed
	}
	floats.Scale(1/rms, smoothed)
	return smoothed
}

// Spectrum is a one-sided magnitude spectrum.
type Spectrum struct {
	Magnitudes  []float64
	Frequencies []float64
	Resolution  float64 // Hz per bin
}

// Len returns the number of bins.
func (s Spectrum) Len() int { return len(s.Magnitudes) }

// Bin returns the index of the bin nearest to freq, or -1 when freq falls
// outside the spectrum.
func (s Spectrum) Bin(freq float64) int {
	if s.Resolution <= 0 {
		return -1
	}
	i := int(math.Round(freq / s.Resolution))
	if i < 0 || i >= len(s.Magnitudes) {
		return -1
	}
	return i
}

// MagnitudeAt returns the magnitude of the bin nearest to freq, or 0.
func (s Spectrum) MagnitudeAt(freq float64) float64 {
	if i := s.Bin(freq); i >= 0 {
		return s.Magnitudes[i]
	}
	return 0
}

// NextPow2 returns the smallest power of two >= n (1 for n <= 1).
func NextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// MagnitudeSpectrum zero-pads x to a power of two and returns the magnitudes
// of the first size/2 FFT bins.
func MagnitudeSpectrum(x []float64, sampleRate float64) Spectrum {
	if len(x) == 0 {
		return Spectrum{}
	}

	size := NextPow2(len(x))
	padded := make([]float64, size)
	copy(padded, x)

	coeffs := fourier.NewFFT(size).Coefficients(nil, padded)

	bins := size / 2
	spec := Spectrum{
		Magnitudes:  make([]float64, bins),
		Frequencies: make([]float64, bins),
		Resolution:  sampleRate / float64(size),
	}
	for k := 0; k < bins; k++ {
		spec.Magnitudes[k] = cmplx.Abs(coeffs[k])
		spec.Frequencies[k] = float64(k) * spec.Resolution
	}
	return spec
}
