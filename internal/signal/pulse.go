package signal

import "math"

// Oscillator tracks a cycle phase in [0,1) at sample rate fs. The rate may
// change every sample, which keeps the waveform continuous when the heart
// rate drifts.
type Oscillator struct {
	fs    float64
	phase float64
}

// NewOscillator creates an oscillator sampled at fs Hz.
func NewOscillator(fs float64) *Oscillator {
	return &Oscillator{fs: fs}
}

// Advance moves the phase forward one sample at hz cycles per second and
// returns the new phase.
func (o *Oscillator) Advance(hz float64) float64 {
	o.phase += hz / o.fs
	o.phase -= math.Floor(o.phase)
	return o.phase
}

// Reset rewinds the phase to zero.
func (o *Oscillator) Reset() { o.phase = 0 }

// pulseShape is a blood-volume pulse over one cardiac cycle (t in [0,1)):
// a systolic wave plus a smaller dicrotic wave, peaking near 1.
func pulseShape(t float64) float64 {
	systolic := gauss(t, 0.25, 0.09)
	dicrotic := 0.35 * gauss(t, 0.55, 0.07)
	return systolic + dicrotic
}

func gauss(x, mu, sigma float64) float64 {
	z := (x - mu) / sigma
	return math.Exp(-0.5 * z * z)
}

func fract(x float64) float64 { return x - math.Floor(x) }

// noise is cheap deterministic noise in [-1,1).
func noise(x float64) float64 {
	return 2*fract(math.Sin(x*12.9898)*43758.5453) - 1
}
