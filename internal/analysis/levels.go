package analysis

// Status is the lifecycle state reported by Extractor.Process.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusCollecting   Status = "collecting"
	StatusRunning      Status = "running"
	StatusError        Status = "error"
)

// StressLevel is the HRV-derived stress classification.
type StressLevel string

const (
	StressLow      StressLevel = "low"
	StressModerate StressLevel = "moderate"
	StressHigh     StressLevel = "high"
)

// SignalQuality grades the raw rPPG trace.
type SignalQuality string

const (
	QualityPoor      SignalQuality = "poor"
	QualityFair      SignalQuality = "fair"
	QualityGood      SignalQuality = "good"
	QualityExcellent SignalQuality = "excellent"
)

// FatigueLevel buckets the fatigue score.
type FatigueLevel string

const (
	FatigueAlert    FatigueLevel = "alert"
	FatigueMild     FatigueLevel = "mild"
	FatigueModerate FatigueLevel = "moderate"
	FatigueSevere   FatigueLevel = "severe"
	FatigueCritical FatigueLevel = "critical"
)

// Trend is the direction of the fatigue score over recent history.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendWorsening Trend = "worsening"
)

// CognitiveLoad buckets the cognitive load score.
type CognitiveLoad string

const (
	LoadLow      CognitiveLoad = "low"
	LoadModerate CognitiveLoad = "moderate"
	LoadHigh     CognitiveLoad = "high"
	LoadOverload CognitiveLoad = "overload"
)

// RiskLevel buckets the risk score.
type RiskLevel string

const (
	RiskSafe     RiskLevel = "safe"
	RiskCaution  RiskLevel = "caution"
	RiskWarning  RiskLevel = "warning"
	RiskDanger   RiskLevel = "danger"
	RiskCritical RiskLevel = "critical"
)

// Severity orders risk levels from safe (0) to critical (4).
func (r RiskLevel) Severity() int {
	switch r {
	case RiskCaution:
		return 1
	case RiskWarning:
		return 2
	case RiskDanger:
		return 3
	case RiskCritical:
		return 4
	default:
		return 0
	}
}

// WellnessStatus buckets the wellness score.
type WellnessStatus string

const (
	WellnessExcellent WellnessStatus = "excellent"
	WellnessGood      WellnessStatus = "good"
	WellnessFair      WellnessStatus = "fair"
	WellnessPoor      WellnessStatus = "poor"
	WellnessCritical  WellnessStatus = "critical"
)

// BreakUrgency escalates from none to immediate.
type BreakUrgency string

const (
	BreakNone        BreakUrgency = "none"
	BreakSuggested   BreakUrgency = "suggested"
	BreakRecommended BreakUrgency = "recommended"
	BreakUrgent      BreakUrgency = "urgent"
	BreakImmediate   BreakUrgency = "immediate"
)
