package analysis

import (
	"math"

	"github.com/ivanzxc/go-realtime-vitals/internal/dsp"
)

// SpO2Estimator maps red and blue channel traces to an oxygen saturation
// estimate. Implementations report false when the estimate is unusable.
type SpO2Estimator interface {
	Estimate(red, blue []float64) (int, bool)
}

// RatioOfRatios is the linear ratio-of-ratios model
// SpO2 = Intercept - Slope*R with R = (AC_red/DC_red)/(AC_blue/DC_blue),
// AC being the standard deviation and DC the mean of each trace. It has no
// clinical validity.
type RatioOfRatios struct {
	Intercept float64
	Slope     float64
	Clamp     Band // Output is clamped to this range
	Accept    Band // Clamped values outside this range are treated as noise
}

// DefaultSpO2Estimator returns SpO2 = 110 - 25R, clamped to [85,100] and
// accepted only within [90,100].
func DefaultSpO2Estimator() RatioOfRatios {
	return RatioOfRatios{
		Intercept: 110,
		Slope:     25,
		Clamp:     Band{Low: 85, High: 100},
		Accept:    Band{Low: 90, High: 100},
	}
}

// Estimate implements SpO2Estimator.
func (m RatioOfRatios) Estimate(red, blue []float64) (int, bool) {
	redDC, redVar := dsp.MeanVariance(red)
	blueDC, blueVar := dsp.MeanVariance(blue)
	redAC, blueAC := math.Sqrt(redVar), math.Sqrt(blueVar)

	if redDC == 0 || blueDC == 0 || redAC == 0 || blueAC == 0 {
		return 0, false
	}

	r := (redAC / redDC) / (blueAC / blueDC)
	spo2 := m.Intercept - m.Slope*r
	spo2 = math.Max(m.Clamp.Low, math.Min(m.Clamp.High, spo2))

	if !m.Accept.Contains(spo2) {
		return 0, false
	}
	return int(math.Round(spo2)), true
}
