package analysis

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ivanzxc/go-realtime-vitals/internal/log"
	"github.com/ivanzxc/go-realtime-vitals/internal/ring"
)

// FatigueConfig holds the thresholds and windows of the fusion engine.
type FatigueConfig struct {
	// Micro-sleep
	EARClosedThreshold  float64       `yaml:"ear_closed_threshold"`  // Eyes count as closed below this EAR
	MicroSleepMin       time.Duration `yaml:"micro_sleep_min"`       // Shortest closure counted as micro-sleep
	MicroSleepMax       time.Duration `yaml:"micro_sleep_max"`       // Longest closure counted as micro-sleep
	MicroSleepRetention time.Duration `yaml:"micro_sleep_retention"` // Event log horizon
	RecentWindow        time.Duration `yaml:"recent_window"`         // Window for risk and break rules
	DetectedWindow      time.Duration `yaml:"detected_window"`       // How long a new event stays flagged

	// Breaks
	BreakInterval time.Duration `yaml:"break_interval"`

	// Baselines
	OpenEAR           float64 `yaml:"open_ear"`            // EAR of a fully open eye
	DroopyEAR         float64 `yaml:"droopy_ear"`          // Risk factor below this EAR
	BaselineBlinkRate float64 `yaml:"baseline_blink_rate"` // Blinks per minute at rest
	FocusedBlinkRate  float64 `yaml:"focused_blink_rate"`  // Blink rate under which load rises
	BaselineHeartRate float64 `yaml:"baseline_heart_rate"`
	HeartRateSpan     float64 `yaml:"heart_rate_span"` // BPM above baseline for full load
	YawnSaturation    float64 `yaml:"yawn_saturation"`

	// History
	EARHistory     int     `yaml:"ear_history"`
	ScoreHistory   int     `yaml:"score_history"`
	TrendWindow    int     `yaml:"trend_window"`
	TrendThreshold float64 `yaml:"trend_threshold"`
}

// DefaultFatigueConfig returns the standard thresholds.
func DefaultFatigueConfig() FatigueConfig {
	return FatigueConfig{
		EARClosedThreshold:  0.2,
		MicroSleepMin:       500 * time.Millisecond,
		MicroSleepMax:       3 * time.Second,
		MicroSleepRetention: 10 * time.Minute,
		RecentWindow:        5 * time.Minute,
		DetectedWindow:      5 * time.Second,

		BreakInterval: 45 * time.Minute,

		OpenEAR:           0.3,
		DroopyEAR:         0.25,
		BaselineBlinkRate: 15,
		FocusedBlinkRate:  20,
		BaselineHeartRate: 70,
		HeartRateSpan:     50,
		YawnSaturation:    5,

		EARHistory:     300,
		ScoreHistory:   30,
		TrendWindow:    5,
		TrendThreshold: 5,
	}
}

// Validate checks that the configuration can drive the engine.
func (c FatigueConfig) Validate() error {
	switch {
	case c.EARClosedThreshold <= 0 || c.OpenEAR <= 0:
		return fmt.Errorf("%w: ear thresholds must be positive", ErrInvalidConfig)
	case c.MicroSleepMin < 0 || c.MicroSleepMax < c.MicroSleepMin:
		return fmt.Errorf("%w: micro-sleep window [%v, %v]", ErrInvalidConfig, c.MicroSleepMin, c.MicroSleepMax)
	case c.BreakInterval <= 0:
		return fmt.Errorf("%w: break_interval must be positive", ErrInvalidConfig)
	case c.BaselineBlinkRate <= 0 || c.FocusedBlinkRate <= 0 || c.HeartRateSpan <= 0 || c.YawnSaturation <= 0:
		return fmt.Errorf("%w: baselines must be positive", ErrInvalidConfig)
	case c.EARHistory < 1 || c.ScoreHistory < 1 || c.TrendWindow < 1:
		return fmt.Errorf("%w: history sizes must be positive", ErrInvalidConfig)
	}
	return nil
}

// FatigueInput is one monitoring tick of facial metrics plus the latest
// rPPG vitals.
type FatigueInput struct {
	EAR             float64 `json:"ear"`
	MAR             float64 `json:"mar"`
	BlinkCount      int     `json:"blinkCount"`
	BlinkDuration   float64 `json:"blinkDuration"` // seconds, last blink
	YawnCount       int     `json:"yawnCount"`
	DrowsinessScore float64 `json:"drowsinessScore"` // 0-1

	HeartRate       *int         `json:"heartRate"`
	RespiratoryRate *int         `json:"respiratoryRate"`
	StressLevel     *StressLevel `json:"stressLevel"`
	StressIndex     *int         `json:"stressIndex"`
	HRV             *HRVMetrics  `json:"hrv"`
}

// WithVitals returns a copy of in carrying the vitals from r.
func (in FatigueInput) WithVitals(r RPPGResult) FatigueInput {
	in.HeartRate = r.HeartRate
	in.RespiratoryRate = r.RespiratoryRate
	in.StressLevel = r.StressLevel
	in.StressIndex = r.StressIndex
	in.HRV = r.HRV
	return in
}

// FatigueResult is the fused assessment returned by FusionEngine.Analyze.
type FatigueResult struct {
	FatigueScore int          `json:"fatigueScore"`
	FatigueLevel FatigueLevel `json:"fatigueLevel"`
	FatigueTrend Trend        `json:"fatigueTrend"`

	MicroSleepDetected   bool       `json:"microSleepDetected"`
	MicroSleepCount      int        `json:"microSleepCount"`
	MicroSleepDurationMs int64      `json:"microSleepDuration"`
	LastMicroSleepTime   *time.Time `json:"lastMicroSleepTime"`

	CognitiveLoad      CognitiveLoad `json:"cognitiveLoad"`
	CognitiveLoadScore int           `json:"cognitiveLoadScore"`

	RiskLevel   RiskLevel `json:"riskLevel"`
	RiskScore   int       `json:"riskScore"`
	RiskFactors []string  `json:"riskFactors"`

	WellnessScore  int            `json:"wellnessScore"`
	WellnessStatus WellnessStatus `json:"wellnessStatus"`

	BreakRecommended         bool         `json:"breakRecommended"`
	BreakUrgency             BreakUrgency `json:"breakUrgency"`
	TimeSinceLastBreak       float64      `json:"timeSinceLastBreak"`       // seconds
	RecommendedBreakDuration int          `json:"recommendedBreakDuration"` // minutes

	SessionDuration  float64   `json:"sessionDuration"` // seconds
	AlertnessPattern []float64 `json:"alertnessPattern"`
}

// MicroSleepEvent is a single logged eye closure.
type MicroSleepEvent struct {
	Time     time.Time     `json:"time"`
	Duration time.Duration `json:"duration"`
}

// MicroSleepStats summarises the retained micro-sleep log.
type MicroSleepStats struct {
	Count   int           `json:"count"`
	Total   time.Duration `json:"total"`
	Average time.Duration `json:"average"`
}

// FusionOption configures a FusionEngine.
type FusionOption func(*FusionEngine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) FusionOption {
	return func(e *FusionEngine) { e.now = now }
}

// FusionEngine fuses facial metrics and vitals into a fatigue assessment.
// It owns its rolling histories; a single caller must drive it.
type FusionEngine struct {
	cfg    FatigueConfig
	now    func() time.Time
	logger *slog.Logger

	sessionStart time.Time
	lastBreak    time.Time

	microSleeps []MicroSleepEvent
	earHistory  *ring.Buffer[float64]
	alertness   *ring.Buffer[float64]
	scores      *ring.Buffer[float64]

	eyeClosed      bool
	eyeClosedStart time.Time
}

// NewFusionEngine creates an engine whose session starts now.
func NewFusionEngine(cfg FatigueConfig, opts ...FusionOption) *FusionEngine {
	e := &FusionEngine{
		cfg:        cfg,
		now:        time.Now,
		logger:     log.With("component", "fatigue"),
		earHistory: ring.New[float64](cfg.EARHistory),
		alertness:  ring.New[float64](cfg.ScoreHistory),
		scores:     ring.New[float64](cfg.ScoreHistory),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.Reset()
	return e
}

// Reset clears all histories and restarts the session and break timers.
func (e *FusionEngine) Reset() {
	now := e.now()
	e.sessionStart = now
	e.lastBreak = now
	e.microSleeps = nil
	e.earHistory.Reset()
	e.alertness.Reset()
	e.scores.Reset()
	e.eyeClosed = false
	e.eyeClosedStart = time.Time{}
}

// RecordBreak restarts the break timer.
func (e *FusionEngine) RecordBreak() {
	e.lastBreak = e.now()
}

// SessionStart returns when the current session began.
func (e *FusionEngine) SessionStart() time.Time { return e.sessionStart }

// MicroSleepStats summarises the retained micro-sleep events.
func (e *FusionEngine) MicroSleepStats() MicroSleepStats {
	var s MicroSleepStats
	for _, ev := range e.microSleeps {
		s.Count++
		s.Total += ev.Duration
	}
	if s.Count > 0 {
		s.Average = s.Total / time.Duration(s.Count)
	}
	return s
}

// MicroSleeps returns a copy of the retained micro-sleep log, oldest first.
func (e *FusionEngine) MicroSleeps() []MicroSleepEvent {
	return append([]MicroSleepEvent(nil), e.microSleeps...)
}

// Analyze ingests one tick and returns the fused assessment.
func (e *FusionEngine) Analyze(in FatigueInput) FatigueResult {
	now := e.now()

	e.earHistory.Push(in.EAR)
	e.detectMicroSleep(in.EAR, now)

	score := e.fatigueScore(in)
	trend := e.trend()
	recent := e.recentMicroSleeps(now)
	sinceBreak := now.Sub(e.lastBreak)
	session := now.Sub(e.sessionStart)

	loadLevel, loadScore := e.cognitiveLoad(in)
	riskLevel, riskScore, factors := e.risk(in, score, recent, session)
	wellScore, wellStatus := wellness(in, score)
	urgency, breakMinutes := e.breakRecommendation(score, recent, sinceBreak)

	e.alertness.Push(float64(100 - score))
	e.scores.Push(float64(score))

	res := FatigueResult{
		FatigueScore: score,
		FatigueLevel: fatigueLevel(score),
		FatigueTrend: trend,

		MicroSleepCount: len(e.microSleeps),

		CognitiveLoad:      loadLevel,
		CognitiveLoadScore: loadScore,

		RiskLevel:   riskLevel,
		RiskScore:   riskScore,
		RiskFactors: factors,

		WellnessScore:  wellScore,
		WellnessStatus: wellStatus,

		BreakRecommended:         urgency != BreakNone,
		BreakUrgency:             urgency,
		TimeSinceLastBreak:       sinceBreak.Seconds(),
		RecommendedBreakDuration: breakMinutes,

		SessionDuration:  session.Seconds(),
		AlertnessPattern: e.alertness.Values(),
	}

	for _, ev := range e.microSleeps {
		res.MicroSleepDurationMs += ev.Duration.Milliseconds()
	}
	if n := len(e.microSleeps); n > 0 {
		last := e.microSleeps[n-1].Time
		res.LastMicroSleepTime = &last
		res.MicroSleepDetected = now.Sub(last) < e.cfg.DetectedWindow
	}
	return res
}

// detectMicroSleep tracks closed/open transitions and logs closures whose
// length falls inside the micro-sleep window.
func (e *FusionEngine) detectMicroSleep(ear float64, now time.Time) {
	if ear < e.cfg.EARClosedThreshold {
		if !e.eyeClosed {
			e.eyeClosed = true
			e.eyeClosedStart = now
		}
	} else if e.eyeClosed {
		closed := now.Sub(e.eyeClosedStart)
		if closed >= e.cfg.MicroSleepMin && closed <= e.cfg.MicroSleepMax {
			e.microSleeps = append(e.microSleeps, MicroSleepEvent{Time: now, Duration: closed})
			e.logger.Warn("micro-sleep detected", "duration_ms", closed.Milliseconds())
		}
		e.eyeClosed = false
	}

	cutoff := now.Add(-e.cfg.MicroSleepRetention)
	kept := e.microSleeps[:0]
	for _, ev := range e.microSleeps {
		if ev.Time.After(cutoff) {
			kept = append(kept, ev)
		}
	}
	e.microSleeps = kept
}

func (e *FusionEngine) recentMicroSleeps(now time.Time) int {
	n := 0
	for _, ev := range e.microSleeps {
		if now.Sub(ev.Time) < e.cfg.RecentWindow {
			n++
		}
	}
	return n
}

// trend compares the mean of the last TrendWindow scores with the mean of
// everything before them.
func (e *FusionEngine) trend() Trend {
	history := e.scores.Values()
	if len(history) < e.cfg.TrendWindow {
		return TrendStable
	}

	recent := e.scores.Tail(e.cfg.TrendWindow)
	older := history[:len(history)-len(recent)]
	switch diff := mean(recent) - mean(older); {
	case diff > e.cfg.TrendThreshold:
		return TrendWorsening
	case diff < -e.cfg.TrendThreshold:
		return TrendImproving
	default:
		return TrendStable
	}
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}
