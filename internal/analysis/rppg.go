// Package analysis turns rPPG colour traces and facial metrics into vital
// signs and a fatigue assessment. Neither engine locks.
package analysis

import (
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/ivanzxc/go-realtime-vitals/internal/dsp"
	"github.com/ivanzxc/go-realtime-vitals/internal/log"
	"github.com/ivanzxc/go-realtime-vitals/internal/ring"
)

// HRVMetrics are time-domain heart-rate-variability measures.
type HRVMetrics struct {
	RMSSD  float64 `json:"rmssd"`  // ms
	SDNN   float64 `json:"sdnn"`   // ms
	PNN50  float64 `json:"pnn50"`  // %
	MeanRR float64 `json:"meanRR"` // ms
}

// RPPGResult is an immutable snapshot produced by Extractor.Process.
// Nil fields mean the estimate was rejected or not yet available.
type RPPGResult struct {
	HeartRate        *int          `json:"heartRate"`
	PulseRate        *int          `json:"pulseRate"`
	RespiratoryRate  *int          `json:"respiratoryRate"`
	HRV              *HRVMetrics   `json:"hrv"`
	StressLevel      *StressLevel  `json:"stressLevel"`
	StressIndex      *int          `json:"stressIndex"`
	SpO2             *int          `json:"spO2"`
	SignalQuality    SignalQuality `json:"signalQuality"`
	Waveform         []float64     `json:"waveform"`
	Status           Status        `json:"status"`
	SamplesCollected int           `json:"samplesCollected"`
}

// SignalStats summarises the raw green-channel buffer.
type SignalStats struct {
	Mean     float64 `json:"mean"`
	Std      float64 `json:"std"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Variance float64 `json:"variance"`
}

// Extractor is the rPPG signal engine. It keeps the last BufferSeconds of
// green, red and blue channel means and derives vitals on demand.
type Extractor struct {
	cfg    Config
	logger *slog.Logger

	green      *ring.Buffer[float64]
	timestamps *ring.Buffer[float64]
	red        *ring.Buffer[float64]
	blue       *ring.Buffer[float64]

	roi  ROISampler
	spo2 SpO2Estimator
}

// NewExtractor creates an extractor. Use DefaultConfig for a 30 fps source.
func NewExtractor(cfg Config) *Extractor {
	capacity := cfg.BufferCapacity()
	return &Extractor{
		cfg:        cfg,
		logger:     log.With("component", "rppg"),
		green:      ring.New[float64](capacity),
		timestamps: ring.New[float64](capacity),
		red:        ring.New[float64](capacity),
		blue:       ring.New[float64](capacity),
		spo2:       DefaultSpO2Estimator(),
	}
}

// SetSpO2Estimator replaces the SpO2 model.
func (e *Extractor) SetSpO2Estimator(est SpO2Estimator) {
	if est != nil {
		e.spo2 = est
	}
}

// InitializeROI positions the ROI from a detected face box.
func (e *Extractor) InitializeROI(faceWidth, faceHeight, faceX, faceY float64) {
	e.roi.InitializeROI(faceWidth, faceHeight, faceX, faceY)
}

// InitializeSimpleROI positions a fixed ROI for frames without a face.
func (e *Extractor) InitializeSimpleROI(videoWidth, videoHeight float64) {
	e.roi.InitializeSimpleROI(videoWidth, videoHeight)
}

// ROI returns the current region of interest.
func (e *Extractor) ROI() (ROI, bool) { return e.roi.ROI() }

// ROIStable reports whether the last face update kept the ROI in place.
func (e *Extractor) ROIStable() bool { return e.roi.Stable() }

// ExtractChannelIntensity returns the green mean of the ROI in img and
// buffers its red and blue means.
func (e *Extractor) ExtractChannelIntensity(img *image.RGBA) (float64, bool) {
	means, ok := e.roi.Sample(img)
	if !ok {
		return 0, false
	}
	e.red.Push(means.R)
	e.blue.Push(means.B)
	return means.G, true
}

// AddSample appends a green-channel sample taken at timestamp (ms).
func (e *Extractor) AddSample(intensity, timestamp float64) {
	e.green.Push(intensity)
	e.timestamps.Push(timestamp)
}

// AddChannelMeans appends the channel means of one frame.
func (e *Extractor) AddChannelMeans(m ChannelMeans, timestamp float64) {
	e.red.Push(m.R)
	e.blue.Push(m.B)
	e.AddSample(m.G, timestamp)
}

// SampleCount returns the number of buffered green samples.
func (e *Extractor) SampleCount() int { return e.green.Len() }

// Reset clears all buffers and the ROI.
func (e *Extractor) Reset() {
	e.green.Reset()
	e.timestamps.Reset()
	e.red.Reset()
	e.blue.Reset()
	e.roi.Reset()
}

// SignalStats returns statistics of the raw buffer, or nil when empty.
func (e *Extractor) SignalStats() *SignalStats {
	signal := e.green.Values()
	lo, hi, ok := dsp.MinMax(signal)
	if !ok {
		return nil
	}
	mean, variance := dsp.MeanVariance(signal)
	return &SignalStats{
		Mean:     mean,
		Std:      math.Sqrt(variance),
		Min:      lo,
		Max:      hi,
		Variance: variance,
	}
}

// Process derives the current vitals. It never modifies the buffers.
func (e *Extractor) Process() RPPGResult {
	signal := e.green.Values()
	n := len(signal)

	res := RPPGResult{
		Status:           e.status(n),
		SamplesCollected: n,
	}

	if res.Status == StatusRunning {
		if err := e.estimate(signal, &res); err != nil {
			e.logger.Error("signal processing failed", "error", err, "samples", n)
			res = RPPGResult{Status: StatusError, SamplesCollected: n}
		}
	}

	res.SignalQuality = e.signalQuality(signal)
	res.Waveform = e.waveform(signal)
	return res
}

func (e *Extractor) status(n int) Status {
	switch {
	case n == 0:
		return StatusInitializing
	case n < e.cfg.MinSamples:
		return StatusCollecting
	default:
		return StatusRunning
	}
}

// estimate fills the vital-sign fields of res, turning panics into errors.
func (e *Extractor) estimate(signal []float64, res *RPPGResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rppg: %v", r)
		}
	}()

	hrBand := dsp.BandPass(signal, e.cfg.HeartRateBand.Low, e.cfg.HeartRateBand.High, e.cfg.SampleRate)

	res.HeartRate = e.heartRate(hrBand)
	res.PulseRate = res.HeartRate
	res.RespiratoryRate = e.respiratoryRate(signal)

	if hrv := e.hrv(hrBand); hrv != nil {
		level, index := StressIndex(*hrv)
		res.HRV = hrv
		res.StressLevel = &level
		res.StressIndex = &index
	}

	if e.red.Len() >= e.cfg.MinSamples && e.blue.Len() >= e.cfg.MinSamples {
		if spo2, ok := e.spo2.Estimate(e.red.Values(), e.blue.Values()); ok {
			res.SpO2 = &spo2
		}
	}
	return nil
}
