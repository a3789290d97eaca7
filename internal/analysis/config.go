package analysis

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by Validate for unusable tuning values.
var ErrInvalidConfig = errors.New("invalid analysis config")

// Band is a closed frequency (or value) interval.
type Band struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// Contains reports whether v lies in [Low, High].
func (b Band) Contains(v float64) bool {
	return v >= b.Low && v <= b.High
}

// Config holds the tunable parameters of the rPPG extractor.
type Config struct {
	// Sampling
	SampleRate      float64       `yaml:"sample_rate"`      // Frames per second
	MinSamples      int           `yaml:"min_samples"`      // Samples before analysis starts
	RefreshInterval time.Duration `yaml:"refresh_interval"` // How often callers should re-run Process
	BufferSeconds   float64       `yaml:"buffer_seconds"`   // Rolling window length

	// Passbands (Hz)
	HeartRateBand   Band `yaml:"heart_rate_band"`
	RespiratoryBand Band `yaml:"respiratory_band"`

	// Acceptance ranges (per minute)
	HeartRateRange   Band `yaml:"heart_rate_range"`
	RespiratoryRange Band `yaml:"respiratory_range"`

	// Rejection gates
	MinFilteredVariance float64 `yaml:"min_filtered_variance"` // Band-passed trace flatter than this is rejected
	MinSNR              float64 `yaml:"min_snr"`

	// Harmonic disambiguation
	HarmonicCandidates    int     `yaml:"harmonic_candidates"`     // Strongest peaks examined
	HarmonicRatio         float64 `yaml:"harmonic_ratio"`          // 2f must exceed f by this factor
	FundamentalRatio      float64 `yaml:"fundamental_ratio"`       // f must keep this share of 2f
	SubharmonicRatio      float64 `yaml:"subharmonic_ratio"`       // Reject low rates when 2f holds this share
	SubharmonicCheckBelow float64 `yaml:"subharmonic_check_below"` // BPM under which the subharmonic check runs

	// HRV
	PeakThreshold float64 `yaml:"peak_threshold"` // Normalized height a beat must exceed
	RRRange       Band    `yaml:"rr_range"`       // Accepted R-R intervals (ms)

	// Display
	QualitySeconds  float64 `yaml:"quality_seconds"`
	WaveformSeconds float64 `yaml:"waveform_seconds"`
}

// DefaultConfig returns the recommended configuration for a 30 fps webcam.
func DefaultConfig() Config {
	return Config{
		SampleRate:      30,
		MinSamples:      450, // 15 s for usable frequency resolution
		RefreshInterval: 2500 * time.Millisecond,
		BufferSeconds:   20,

		HeartRateBand:   Band{Low: 1.0, High: 3.5}, // 60-210 BPM
		RespiratoryBand: Band{Low: 0.1, High: 0.5}, // 6-30 breaths/min

		HeartRateRange:   Band{Low: 50, High: 200},
		RespiratoryRange: Band{Low: 6, High: 40},

		MinFilteredVariance: 0.01,
		MinSNR:              1.5,

		HarmonicCandidates:    5,
		HarmonicRatio:         1.2,
		FundamentalRatio:      0.5,
		SubharmonicRatio:      0.8,
		SubharmonicCheckBelow: 60,

		PeakThreshold: 0.3,
		RRRange:       Band{Low: 300, High: 1500}, // 40-200 BPM

		QualitySeconds:  3,
		WaveformSeconds: 5,
	}
}

// BufferCapacity returns the number of samples kept in the rolling window.
func (c Config) BufferCapacity() int {
	return int(c.SampleRate * c.BufferSeconds)
}

// Validate checks that the configuration can drive the extractor.
func (c Config) Validate() error {
	nyquist := c.SampleRate / 2
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample_rate must be positive", ErrInvalidConfig)
	case c.MinSamples <= 0:
		return fmt.Errorf("%w: min_samples must be positive", ErrInvalidConfig)
	case c.BufferCapacity() < c.MinSamples:
		return fmt.Errorf("%w: buffer of %d samples cannot reach min_samples %d",
			ErrInvalidConfig, c.BufferCapacity(), c.MinSamples)
	case c.HeartRateBand.Low <= 0 || c.HeartRateBand.Low >= c.HeartRateBand.High || c.HeartRateBand.High > nyquist:
		return fmt.Errorf("%w: heart_rate_band %v outside (0, %v]", ErrInvalidConfig, c.HeartRateBand, nyquist)
	case c.RespiratoryBand.Low <= 0 || c.RespiratoryBand.Low >= c.RespiratoryBand.High || c.RespiratoryBand.High > nyquist:
		return fmt.Errorf("%w: respiratory_band %v outside (0, %v]", ErrInvalidConfig, c.RespiratoryBand, nyquist)
	case c.HarmonicCandidates < 1:
		return fmt.Errorf("%w: harmonic_candidates must be at least 1", ErrInvalidConfig)
	case c.RRRange.Low <= 0 || c.RRRange.Low >= c.RRRange.High:
		return fmt.Errorf("%w: rr_range %v", ErrInvalidConfig, c.RRRange)
	}
	return nil
}
