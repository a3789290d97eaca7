// Package signal synthesises a webcam subject for demos and tests: a face
// whose skin colour carries a pulse and respiration, plus face-mesh
// landmarks that blink, yawn and nod off on a schedule.
package signal

import (
	"image"
	"image/color"
	"math"
	"time"

	"github.com/ivanzxc/go-realtime-vitals/internal/facial"
)

// MeshPoints is the landmark count of a full face mesh.
const MeshPoints = 468

// SubjectConfig describes the simulated person and camera.
type SubjectConfig struct {
	Width, Height int
	FPS           float64

	HeartRate        float64 // BPM
	Arrhythmia       float64 // Fractional heart rate swing with each breath
	RespiratoryRate  float64 // Breaths per minute
	RespiratoryDepth float64 // Respiration amplitude relative to the pulse
	PulseAmplitude   float64 // Green swing in 8-bit levels
	Noise            float64 // Per-frame flicker in 8-bit levels

	OpenEAR float64
	RestMAR float64

	BlinkEvery      time.Duration // 0 disables
	YawnEvery       time.Duration
	MicroSleepEvery time.Duration
}

// DefaultSubject is a rested subject at 72 BPM and 15 breaths per minute.
func DefaultSubject() SubjectConfig {
	return SubjectConfig{
		Width:  320,
		Height: 240,
		FPS:    30,

		HeartRate:        72,
		Arrhythmia:       0.03,
		RespiratoryRate:  15,
		RespiratoryDepth: 0.5,
		PulseAmplitude:   2,
		Noise:            0.1,

		OpenEAR: 0.3,
		RestMAR: 0.15,

		BlinkEvery: 4 * time.Second,
	}
}

// DrowsySubject blinks more, yawns and has micro-sleeps.
func DrowsySubject() SubjectConfig {
	cfg := DefaultSubject()
	cfg.HeartRate = 62
	cfg.OpenEAR = 0.24
	cfg.BlinkEvery = 2 * time.Second
	cfg.YawnEvery = 40 * time.Second
	cfg.MicroSleepEvery = 25 * time.Second
	return cfg
}

const (
	blinkLength      = 150 * time.Millisecond
	yawnLength       = 3 * time.Second
	microSleepLength = 1200 * time.Millisecond

	shutEAR = 0.08
	yawnMAR = 0.85
)

var (
	skin       = [3]float64{170, 125, 120}
	background = [3]float64{55, 60, 70}
	// Per-channel share of the pulse. Red over blue keeps the
	// ratio-of-ratios near 96%.
	pulseGain = [3]float64{0.4, 1, 0.5}
)

// Frame is one rendered capture.
type Frame struct {
	Image     *image.RGBA
	Face      image.Rectangle
	Landmarks []facial.Point
	Timestamp time.Duration // Since the first frame
}

// Subject renders consecutive frames. It is deterministic: two subjects
// with the same config produce identical frames.
type Subject struct {
	cfg   SubjectConfig
	heart *Oscillator
	face  image.Rectangle
	frame int
}

// NewSubject creates a subject.
func NewSubject(cfg SubjectConfig) *Subject {
	w, h := cfg.Width, cfg.Height
	fw, fh := w*2/5, h*3/5
	return &Subject{
		cfg:   cfg,
		heart: NewOscillator(cfg.FPS),
		face:  image.Rect((w-fw)/2, (h-fh)/3, (w-fw)/2+fw, (h-fh)/3+fh),
	}
}

// Config returns the subject configuration.
func (s *Subject) Config() SubjectConfig { return s.cfg }

// Elapsed returns the timestamp of the next frame.
func (s *Subject) Elapsed() time.Duration {
	return time.Duration(float64(s.frame) / s.cfg.FPS * float64(time.Second))
}

// Next renders the next frame.
func (s *Subject) Next() Frame {
	at := s.Elapsed()
	t := at.Seconds()

	resp := math.Sin(2 * math.Pi * s.cfg.RespiratoryRate / 60 * t)
	phase := s.heart.Advance(s.cfg.HeartRate * (1 + s.cfg.Arrhythmia*resp) / 60)
	wave := pulseShape(phase) + s.cfg.RespiratoryDepth*resp
	flicker := s.cfg.Noise * noise(float64(s.frame)+0.5)

	f := Frame{
		Image:     s.render(wave*s.cfg.PulseAmplitude, flicker),
		Face:      s.face,
		Landmarks: s.landmarks(at),
		Timestamp: at,
	}
	s.frame++
	return f
}

// render paints the background and a skin rectangle modulated by pulse,
// adding per-pixel dither so the ROI mean resolves sub-level changes.
func (s *Subject) render(pulse, flicker float64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, s.cfg.Width, s.cfg.Height))
	seed := float64(s.frame%997) * 0.731
	for y := 0; y < s.cfg.Height; y++ {
		for x := 0; x < s.cfg.Width; x++ {
			base, gain := background, [3]float64{}
			if (image.Point{X: x, Y: y}).In(s.face) {
				base, gain = skin, pulseGain
			}
			dither := 0.5 * noise(float64(y*s.cfg.Width+x)*0.013+seed)

			var c [3]uint8
			for ch := range c {
				v := base[ch] + gain[ch]*pulse + flicker + dither
				c[ch] = uint8(math.Max(0, math.Min(255, math.Round(v))))
			}
			img.SetRGBA(x, y, color.RGBA{R: c[0], G: c[1], B: c[2], A: 255})
		}
	}
	return img
}

// within reports whether t falls in the first length of a period that has
// already elapsed at least once.
func within(t, period, length time.Duration) bool {
	return period > 0 && t >= period && t%period < length
}

func (s *Subject) landmarks(at time.Duration) []facial.Point {
	ear, mar := s.cfg.OpenEAR, s.cfg.RestMAR
	if within(at, s.cfg.BlinkEvery, blinkLength) || within(at, s.cfg.MicroSleepEvery, microSleepLength) {
		ear = shutEAR
	}
	if within(at, s.cfg.YawnEvery, yawnLength) {
		mar = yawnMAR
	}

	pts := make([]facial.Point, MeshPoints)
	fx, fy := float64(s.face.Min.X), float64(s.face.Min.Y)
	fw, fh := float64(s.face.Dx()), float64(s.face.Dy())
	for i := range pts {
		// Spread the remaining points over the face box.
		pts[i] = facial.Point{
			X: fx + fw*fract(float64(i)*0.618),
			Y: fy + fh*fract(float64(i)*0.382),
		}
	}

	eyeW := fw * 0.2
	eye := func(idx [6]int, x0 float64) {
		y0 := fy + fh*0.4
		open := ear * eyeW / 2
		pts[idx[0]] = facial.Point{X: x0, Y: y0}
		pts[idx[3]] = facial.Point{X: x0 + eyeW, Y: y0}
		pts[idx[1]] = facial.Point{X: x0 + eyeW/3, Y: y0 - open}
		pts[idx[2]] = facial.Point{X: x0 + eyeW*2/3, Y: y0 - open}
		pts[idx[4]] = facial.Point{X: x0 + eyeW*2/3, Y: y0 + open}
		pts[idx[5]] = facial.Point{X: x0 + eyeW/3, Y: y0 + open}
	}
	eye(facial.LeftEye, fx+fw*0.2)
	eye(facial.RightEye, fx+fw*0.6)

	mouthW := fw * 0.4
	mx, my := fx+fw*0.3, fy+fh*0.75
	open := mar * mouthW / 2
	pts[facial.Mouth[0]] = facial.Point{X: mx, Y: my}
	pts[facial.Mouth[1]] = facial.Point{X: mx + mouthW, Y: my}
	pts[facial.Mouth[2]] = facial.Point{X: mx + mouthW/2, Y: my - open}
	pts[facial.Mouth[3]] = facial.Point{X: mx + mouthW/2, Y: my + open}
	return pts
}
