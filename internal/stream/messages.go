package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ivanzxc/go-realtime-vitals/internal/analysis"
	"github.com/ivanzxc/go-realtime-vitals/internal/facial"
)

// ErrUnknownAction is returned for control messages with an unsupported
// action.
var ErrUnknownAction = errors.New("unknown control action")

// Frame is one captured video frame reduced to what the processor needs.
type Frame struct {
	Timestamp  int64                 `msgpack:"ts"` // ms since the session started
	Means      analysis.ChannelMeans `msgpack:"rgb"`
	ROI        analysis.ROI          `msgpack:"roi"`
	ROIStable  bool                  `msgpack:"roi_stable"`
	Facial     *facial.Metrics       `msgpack:"facial,omitempty"`     // nil when no face mesh ran
	Drowsiness *float64              `msgpack:"drowsiness,omitempty"` // external 0-1 assessment
}

// FrameBatch groups consecutive frames of one session.
type FrameBatch struct {
	Session string  `msgpack:"session"`
	Seq     uint64  `msgpack:"seq"`
	FPS     float64 `msgpack:"fps"`
	Frames  []Frame `msgpack:"frames"`
}

// EncodeBatch serialises a batch with msgpack.
func EncodeBatch(b FrameBatch) ([]byte, error) {
	data, err := msgpack.Marshal(&b)
	if err != nil {
		return nil, fmt.Errorf("encode batch %s/%d: %w", b.Session, b.Seq, err)
	}
	return data, nil
}

// DecodeBatch parses a msgpack batch.
func DecodeBatch(data []byte) (FrameBatch, error) {
	var b FrameBatch
	if err := msgpack.Unmarshal(data, &b); err != nil {
		return FrameBatch{}, fmt.Errorf("decode batch: %w", err)
	}
	return b, nil
}

// Snapshot is the periodic state of a session sent to dashboards.
type Snapshot struct {
	Session   string                  `json:"session"`
	Timestamp time.Time               `json:"timestamp"`
	Vitals    analysis.RPPGResult     `json:"vitals"`
	Fatigue   *analysis.FatigueResult `json:"fatigue,omitempty"`
	Facial    *facial.State           `json:"facial,omitempty"`
	Signal    *analysis.SignalStats   `json:"signal,omitempty"`
	ROI       analysis.ROI            `json:"roi"`
	ROIStable bool                    `json:"roiStable"`
}

// Action is a session control command.
type Action string

const (
	ActionBreak Action = "break" // User took a break
	ActionReset Action = "reset" // Restart the session in place
	ActionEnd   Action = "end"   // Publish the summary and drop the session
)

// Control is the body of a control message.
type Control struct {
	Action Action `json:"action"`
}

// ParseControl decodes a control message and checks its action.
func ParseControl(data []byte) (Control, error) {
	var c Control
	if err := json.Unmarshal(data, &c); err != nil {
		return Control{}, fmt.Errorf("decode control: %w", err)
	}
	switch c.Action {
	case ActionBreak, ActionReset, ActionEnd:
		return c, nil
	}
	return Control{}, fmt.Errorf("%w: %q", ErrUnknownAction, c.Action)
}

// AlertEvent marks the start or stop of a session alert.
type AlertEvent struct {
	Session   string                `json:"session"`
	Active    bool                  `json:"active"`
	Reasons   []string              `json:"reasons"`
	Urgency   analysis.BreakUrgency `json:"urgency"`
	Risk      analysis.RiskLevel    `json:"risk"`
	Timestamp time.Time             `json:"timestamp"`
}

// Summary closes a session.
type Summary struct {
	Session           string              `json:"session"`
	Start             time.Time           `json:"start"`
	End               time.Time           `json:"end"`
	Duration          float64             `json:"duration"` // seconds
	Frames            int                 `json:"frames"`
	Blinks            int                 `json:"blinks"`
	Yawns             int                 `json:"yawns"`
	MicroSleeps       int                 `json:"microSleeps"`
	MicroSleepTotalMs int64               `json:"microSleepTotalMs"`
	AverageFatigue    float64             `json:"averageFatigue"`
	PeakFatigue       int                 `json:"peakFatigue"`
	Alerts            int                 `json:"alerts"`
	Breaks            int                 `json:"breaks"`
	LastVitals        analysis.RPPGResult `json:"lastVitals"`
}
