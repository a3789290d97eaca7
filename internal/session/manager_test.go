package session

import (
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ivanzxc/go-realtime-vitals/internal/analysis"
	"github.com/ivanzxc/go-realtime-vitals/internal/facial"
	"github.com/ivanzxc/go-realtime-vitals/internal/stream"
)

type recorder struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func (r *recorder) Publish(subject string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.messages == nil {
		r.messages = make(map[string][][]byte)
	}
	r.messages[subject] = append(r.messages[subject], data)
	return nil
}

func (r *recorder) count(subject string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages[subject])
}

func (r *recorder) decode(t *testing.T, subject string, i int, v any) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 {
		i += len(r.messages[subject])
	}
	if err := json.Unmarshal(r.messages[subject][i], v); err != nil {
		t.Fatal(err)
	}
}

type sinkRecorder struct {
	starts, stops []stream.AlertEvent
}

func (s *sinkRecorder) Start(ev stream.AlertEvent) error {
	s.starts = append(s.starts, ev)
	return nil
}

func (s *sinkRecorder) Stop(ev stream.AlertEvent) error {
	s.stops = append(s.stops, ev)
	return nil
}

var subjects = stream.NewSubjects("test")

func newTestManager() (*Manager, *recorder, *sinkRecorder, *time.Time) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	pub := &recorder{}
	sink := &sinkRecorder{}
	m := NewManager(DefaultConfig(), DefaultEngines(), pub, subjects, sink,
		WithClock(func() time.Time { return now }))
	return m, pub, sink, &now
}

// feed sends frames [from, to) in batches of 30, eyes shut while shut(ts)
// holds.
func feed(t *testing.T, m *Manager, id string, from, to int, shut func(ms int64) bool) {
	t.Helper()
	for start := from; start < to; start += 30 {
		b := stream.FrameBatch{Session: id, FPS: 30}
		for i := start; i < min(start+30, to); i++ {
			ts := int64(i * 1000 / 30)
			pulse := math.Sin(2 * math.Pi * 1.2 * float64(i) / 30)
			ear := 0.3
			if shut != nil && shut(ts) {
				ear = 0.1
			}
			b.Frames = append(b.Frames, stream.Frame{
				Timestamp: ts,
				Means:     analysis.ChannelMeans{R: 150 + 0.5*pulse, G: 120 + pulse, B: 100 + 0.6*pulse},
				ROI:       analysis.ROI{X: 10, Y: 10, Width: 40, Height: 30},
				ROIStable: true,
				Facial:    &facial.Metrics{EAR: ear, MAR: 0.1},
			})
		}
		if err := m.HandleBatch(b); err != nil {
			t.Fatal(err)
		}
	}
}

func TestManager_PublishesSnapshots(t *testing.T) {
	m, pub, _, _ := newTestManager()
	feed(t, m, "s1", 0, 600, nil)

	subject := subjects.For(stream.KindSnapshots, "s1")
	if n := pub.count(subject); n != 7 {
		t.Fatalf("snapshots = %d, want 7", n)
	}

	var first, last stream.Snapshot
	pub.decode(t, subject, 0, &first)
	pub.decode(t, subject, -1, &last)

	if first.Vitals.Status != analysis.StatusCollecting || first.Vitals.SamplesCollected != 76 {
		t.Errorf("first snapshot vitals = %s/%d", first.Vitals.Status, first.Vitals.SamplesCollected)
	}
	if last.Vitals.Status != analysis.StatusRunning || last.Vitals.HeartRate == nil {
		t.Fatalf("last snapshot vitals = %+v", last.Vitals)
	}
	if d := *last.Vitals.HeartRate - 72; d < -3 || d > 3 {
		t.Errorf("heart rate = %d, want 72±3", *last.Vitals.HeartRate)
	}
	if last.Fatigue == nil || last.Facial == nil || !last.ROIStable || last.Signal == nil {
		t.Errorf("snapshot missing parts: %+v", last)
	}
	if got := m.Sessions(); len(got) != 1 || got[0] != "s1" {
		t.Errorf("sessions = %v", got)
	}
}

func TestManager_MicroSleepAlert(t *testing.T) {
	m, pub, sink, _ := newTestManager()
	feed(t, m, "s1", 0, 300, func(ms int64) bool { return ms >= 1000 && ms < 2000 })

	if len(sink.starts) != 1 || len(sink.stops) != 1 {
		t.Fatalf("starts=%d stops=%d, want 1 and 1", len(sink.starts), len(sink.stops))
	}
	start, stop := sink.starts[0], sink.stops[0]
	if start.Session != "s1" || len(start.Reasons) == 0 {
		t.Errorf("start event = %+v", start)
	}
	if got := stop.Timestamp.Sub(start.Timestamp); got != 5*time.Second {
		t.Errorf("alert lasted %v, want 5s", got)
	}

	if err := m.Control("s1", stream.Control{Action: stream.ActionEnd}); err != nil {
		t.Fatal(err)
	}
	var sum stream.Summary
	pub.decode(t, subjects.For(stream.KindSummary, "s1"), 0, &sum)
	if sum.MicroSleeps != 1 || sum.MicroSleepTotalMs != 1000 || sum.Alerts != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Frames != 300 || sum.Blinks != 1 || sum.PeakFatigue == 0 {
		t.Errorf("summary counts = %+v", sum)
	}
	if len(m.Sessions()) != 0 {
		t.Error("ended session still live")
	}
}

func TestManager_Controls(t *testing.T) {
	m, pub, _, _ := newTestManager()
	feed(t, m, "s1", 0, 90, nil)

	if err := m.Control("nope", stream.Control{Action: stream.ActionBreak}); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("err = %v, want ErrUnknownSession", err)
	}
	if err := m.Control("s1", stream.Control{Action: "dance"}); !errors.Is(err, stream.ErrUnknownAction) {
		t.Errorf("err = %v, want ErrUnknownAction", err)
	}
	if err := m.Control("s1", stream.Control{Action: stream.ActionBreak}); err != nil {
		t.Fatal(err)
	}
	if err := m.Control("s1", stream.Control{Action: stream.ActionReset}); err != nil {
		t.Fatal(err)
	}
	feed(t, m, "s1", 90, 120, nil)
	if err := m.Control("s1", stream.Control{Action: stream.ActionEnd}); err != nil {
		t.Fatal(err)
	}

	var sum stream.Summary
	pub.decode(t, subjects.For(stream.KindSummary, "s1"), 0, &sum)
	if sum.Frames != 30 || sum.Breaks != 0 {
		t.Errorf("reset did not clear counters: %+v", sum)
	}
	if sum.Duration != 1 {
		t.Errorf("duration after reset = %v, want 1s", sum.Duration)
	}
}

func TestManager_SweepEndsIdleSessions(t *testing.T) {
	m, pub, _, now := newTestManager()
	feed(t, m, "idle", 0, 30, nil)

	*now = now.Add(10 * time.Second)
	feed(t, m, "busy", 0, 30, nil)

	*now = now.Add(25 * time.Second)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("Sweep ended %d sessions, want 1", n)
	}
	if got := m.Sessions(); len(got) != 1 || got[0] != "busy" {
		t.Errorf("sessions = %v", got)
	}
	if pub.count(subjects.For(stream.KindSummary, "idle")) != 1 {
		t.Error("idle session summary not published")
	}

	m.Close()
	if len(m.Sessions()) != 0 || pub.count(subjects.For(stream.KindSummary, "busy")) != 1 {
		t.Error("Close left sessions behind")
	}
}

func TestManager_BatchAfterSweepOpensNewSession(t *testing.T) {
	m, pub, _, now := newTestManager()
	feed(t, m, "s1", 0, 30, nil)

	// Hold the pipeline the way HandleBatch does between lookup and ingest.
	m.mu.Lock()
	stale := m.pipelines["s1"]
	m.mu.Unlock()

	*now = now.Add(time.Minute)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("Sweep ended %d sessions, want 1", n)
	}

	late := stream.FrameBatch{Session: "s1", FPS: 30, Frames: []stream.Frame{{Timestamp: 1000}}}
	if stale.ingest(late, *now) {
		t.Error("ended pipeline accepted a batch")
	}
	if _, ok := stale.end(); ok {
		t.Error("second end published again")
	}
	summary := subjects.For(stream.KindSummary, "s1")
	if n := pub.count(summary); n != 1 {
		t.Fatalf("summaries = %d, want 1", n)
	}

	if err := m.HandleBatch(late); err != nil {
		t.Fatal(err)
	}
	if got := m.Sessions(); len(got) != 1 || got[0] != "s1" {
		t.Fatalf("sessions = %v", got)
	}
	m.Close()

	var sum stream.Summary
	pub.decode(t, summary, -1, &sum)
	if sum.Frames != 1 {
		t.Errorf("new session frames = %d, want 1", sum.Frames)
	}
}

func TestManager_RejectsAnonymousBatch(t *testing.T) {
	m, _, _, _ := newTestManager()
	if err := m.HandleBatch(stream.FrameBatch{}); err == nil {
		t.Error("batch without session accepted")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}
	if err := (Config{}).Validate(); !errors.Is(err, analysis.ErrInvalidConfig) {
		t.Errorf("err = %v", err)
	}
}
