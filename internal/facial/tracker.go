package facial

import (
	"fmt"
	"time"

	"github.com/ivanzxc/go-realtime-vitals/internal/analysis"
)

// Config holds blink and yawn detection thresholds.
type Config struct {
	EARThreshold float64       `yaml:"ear_threshold"` // Eye counts as shut below this
	BlinkFrames  int           `yaml:"blink_frames"`  // Consecutive shut frames for a blink
	MARThreshold float64       `yaml:"mar_threshold"` // Mouth counts as yawning above this
	YawnFrames   int           `yaml:"yawn_frames"`   // Consecutive open frames for a yawn
	RateWindow   time.Duration `yaml:"rate_window"`   // Window for blink and yawn rates
}

// DefaultConfig returns thresholds tuned for a 30 fps face mesh.
func DefaultConfig() Config {
	return Config{
		EARThreshold: 0.23,
		BlinkFrames:  2,
		MARThreshold: 0.7,
		YawnFrames:   15,
		RateWindow:   time.Minute,
	}
}

// Validate checks that the thresholds are usable.
func (c Config) Validate() error {
	switch {
	case c.EARThreshold <= 0 || c.MARThreshold <= 0:
		return fmt.Errorf("%w: facial thresholds must be positive", analysis.ErrInvalidConfig)
	case c.BlinkFrames < 1 || c.YawnFrames < 1:
		return fmt.Errorf("%w: facial frame counts must be at least 1", analysis.ErrInvalidConfig)
	case c.RateWindow <= 0:
		return fmt.Errorf("%w: rate_window must be positive", analysis.ErrInvalidConfig)
	}
	return nil
}

// Event reports what completed on the frame passed to Tracker.Update.
type Event struct {
	Blink         bool
	BlinkDuration time.Duration
	Yawn          bool
	YawnDuration  time.Duration
}

// State is the accumulated view of a tracked face.
type State struct {
	EAR           float64 `json:"ear"`
	MAR           float64 `json:"mar"`
	BlinkCount    int     `json:"blinkCount"`
	BlinkDuration float64 `json:"blinkDuration"` // seconds
	YawnCount     int     `json:"yawnCount"`
	YawnDuration  float64 `json:"yawnDuration"` // seconds
	BlinkRate     int     `json:"blinkRate"`    // blinks in the rate window
	YawnRate      int     `json:"yawnRate"`     // yawns in the rate window
}

// Tracker counts blinks and yawns from per-frame metrics. A blink is
// counted when the eye reopens after at least BlinkFrames shut frames, a
// yawn when the mouth closes after at least YawnFrames open frames.
type Tracker struct {
	cfg   Config
	state State

	shutFrames int
	shutSince  time.Time
	openFrames int
	openSince  time.Time

	blinks []time.Time
	yawns  []time.Time
}

// NewTracker creates a tracker.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{cfg: cfg}
}

// Update ingests the metrics of a frame captured at at.
func (t *Tracker) Update(m Metrics, at time.Time) Event {
	var ev Event
	t.state.EAR, t.state.MAR = m.EAR, m.MAR

	if m.EAR < t.cfg.EARThreshold {
		if t.shutFrames == 0 {
			t.shutSince = at
		}
		t.shutFrames++
	} else {
		if t.shutFrames >= t.cfg.BlinkFrames {
			ev.Blink = true
			ev.BlinkDuration = at.Sub(t.shutSince)
			t.state.BlinkCount++
			t.state.BlinkDuration = ev.BlinkDuration.Seconds()
			t.blinks = append(t.blinks, at)
		}
		t.shutFrames = 0
	}

	if m.MAR > t.cfg.MARThreshold {
		if t.openFrames == 0 {
			t.openSince = at
		}
		t.openFrames++
	} else {
		if t.openFrames >= t.cfg.YawnFrames {
			ev.Yawn = true
			ev.YawnDuration = at.Sub(t.openSince)
			t.state.YawnCount++
			t.state.YawnDuration = ev.YawnDuration.Seconds()
			t.yawns = append(t.yawns, at)
		}
		t.openFrames = 0
	}

	cutoff := at.Add(-t.cfg.RateWindow)
	t.blinks = prune(t.blinks, cutoff)
	t.yawns = prune(t.yawns, cutoff)
	t.state.BlinkRate = len(t.blinks)
	t.state.YawnRate = len(t.yawns)
	return ev
}

func prune(events []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(events) && events[i].Before(cutoff) {
		i++
	}
	return events[i:]
}

// State returns the accumulated counts and rates.
func (t *Tracker) State() State { return t.state }

// FatigueInput maps the tracker state onto the fusion engine input. A nil
// drowsiness falls back to EstimateDrowsiness.
func (t *Tracker) FatigueInput(drowsiness *float64) analysis.FatigueInput {
	score := EstimateDrowsiness(t.state.EAR, t.state.MAR)
	if drowsiness != nil {
		score = *drowsiness
	}
	return analysis.FatigueInput{
		EAR:             t.state.EAR,
		MAR:             t.state.MAR,
		BlinkCount:      t.state.BlinkCount,
		BlinkDuration:   t.state.BlinkDuration,
		YawnCount:       t.state.YawnCount,
		DrowsinessScore: score,
	}
}

// Reset clears counts, rates and in-progress events.
func (t *Tracker) Reset() {
	*t = Tracker{cfg: t.cfg}
}
