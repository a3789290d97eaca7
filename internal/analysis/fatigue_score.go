package analysis

import (
	"fmt"
	"math"
	"time"
)

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func clampScore(v float64) int {
	return int(math.Max(0, math.Min(100, math.Round(v))))
}

// fatigueScore is the weighted 0-100 sum of drowsiness (40), EAR deficit
// (20), blink deviation (15), yawns (15) and HRV or stress (10).
func (e *FusionEngine) fatigueScore(in FatigueInput) int {
	var score float64

	score += clamp01(in.DrowsinessScore) * 40

	if in.EAR > 0 {
		score += clamp01(1-in.EAR/e.cfg.OpenEAR) * 20
	}

	deviation := math.Abs(float64(in.BlinkCount)-e.cfg.BaselineBlinkRate) / e.cfg.BaselineBlinkRate
	score += math.Min(1, deviation) * 15

	score += clamp01(float64(in.YawnCount)/e.cfg.YawnSaturation) * 15

	switch {
	case in.HRV != nil:
		switch {
		case in.HRV.RMSSD < 20:
			score += 10
		case in.HRV.RMSSD < 40:
			score += 5
		}
	case in.StressIndex != nil:
		score += clamp01(float64(*in.StressIndex)/100) * 10
	}

	return clampScore(score)
}

func fatigueLevel(score int) FatigueLevel {
	switch {
	case score < 20:
		return FatigueAlert
	case score < 40:
		return FatigueMild
	case score < 60:
		return FatigueModerate
	case score < 80:
		return FatigueSevere
	default:
		return FatigueCritical
	}
}

var stressLoad = map[StressLevel]float64{
	StressLow:      10,
	StressModerate: 25,
	StressHigh:     40,
}

// cognitiveLoad weighs stress (40), heart rate elevation (30) and blink
// suppression (30).
func (e *FusionEngine) cognitiveLoad(in FatigueInput) (CognitiveLoad, int) {
	var score float64

	switch {
	case in.StressIndex != nil:
		score += clamp01(float64(*in.StressIndex)/100) * 40
	case in.StressLevel != nil:
		score += stressLoad[*in.StressLevel]
	}

	if in.HeartRate != nil {
		elevation := (float64(*in.HeartRate) - e.cfg.BaselineHeartRate) / e.cfg.HeartRateSpan
		score += clamp01(elevation) * 30
	}

	score += clamp01(1-float64(in.BlinkCount)/e.cfg.FocusedBlinkRate) * 30

	s := clampScore(score)
	switch {
	case s < 25:
		return LoadLow, s
	case s < 50:
		return LoadModerate, s
	case s < 75:
		return LoadHigh, s
	default:
		return LoadOverload, s
	}
}

// risk combines fatigue, recent micro-sleeps, eye closure and session length
// into a score with a readable factor per contribution.
func (e *FusionEngine) risk(in FatigueInput, fatigue, recentMicroSleeps int, session time.Duration) (RiskLevel, int, []string) {
	factors := []string{}
	score := float64(fatigue) * 0.4
	if fatigue > 60 {
		factors = append(factors, "High fatigue level")
	}

	if recentMicroSleeps > 0 {
		score += math.Min(30, float64(recentMicroSleeps*10))
		factors = append(factors, fmt.Sprintf("%d micro-sleep(s) in last %d min",
			recentMicroSleeps, int(e.cfg.RecentWindow.Minutes())))
	}

	switch {
	case in.EAR < e.cfg.EARClosedThreshold:
		score += 20
		factors = append(factors, "Eyes closing")
	case in.EAR < e.cfg.DroopyEAR:
		score += 10
		factors = append(factors, "Droopy eyelids")
	}

	switch {
	case session > 2*time.Hour:
		score += 10
		factors = append(factors, "Extended session (>2 hours)")
	case session > time.Hour:
		score += 5
		factors = append(factors, "Long session (>1 hour)")
	}

	s := clampScore(score)
	switch {
	case s < 20:
		return RiskSafe, s, factors
	case s < 40:
		return RiskCaution, s, factors
	case s < 60:
		return RiskWarning, s, factors
	case s < 80:
		return RiskDanger, s, factors
	default:
		return RiskCritical, s, factors
	}
}

func wellness(in FatigueInput, fatigue int) (int, WellnessStatus) {
	score := float64(100 - fatigue)

	if in.StressLevel != nil {
		switch *in.StressLevel {
		case StressHigh:
			score -= 15
		case StressModerate:
			score -= 5
		case StressLow:
			score += 5
		}
	}

	if in.HeartRate != nil {
		switch hr := *in.HeartRate; {
		case hr >= 60 && hr <= 80:
			score += 5
		case hr > 100:
			score -= 10
		}
	}

	if in.HRV != nil && in.HRV.RMSSD > 40 {
		score += 5
	}

	s := clampScore(score)
	switch {
	case s >= 80:
		return s, WellnessExcellent
	case s >= 60:
		return s, WellnessGood
	case s >= 40:
		return s, WellnessFair
	case s >= 20:
		return s, WellnessPoor
	default:
		return s, WellnessCritical
	}
}

// breakRecommendation returns the urgency and suggested break in minutes.
func (e *FusionEngine) breakRecommendation(fatigue, recentMicroSleeps int, sinceBreak time.Duration) (BreakUrgency, int) {
	interval := e.cfg.BreakInterval
	switch {
	case recentMicroSleeps >= 2:
		return BreakImmediate, 15
	case fatigue > 70 || recentMicroSleeps >= 1:
		return BreakUrgent, 10
	case fatigue > 50 || sinceBreak > interval:
		return BreakRecommended, 5
	case fatigue > 30 || sinceBreak > interval*3/4:
		return BreakSuggested, 3
	default:
		return BreakNone, 0
	}
}
