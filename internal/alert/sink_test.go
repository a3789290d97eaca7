package alert

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ivanzxc/go-realtime-vitals/internal/analysis"
	"github.com/ivanzxc/go-realtime-vitals/internal/stream"
)

type recorder struct {
	subjects []string
	events   []stream.AlertEvent
}

func (r *recorder) Publish(subject string, data []byte) error {
	var ev stream.AlertEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	r.subjects = append(r.subjects, subject)
	r.events = append(r.events, ev)
	return nil
}

func TestNATSSink(t *testing.T) {
	var r recorder
	s := NewNATSSink(&r, stream.NewSubjects("test"))
	ev := stream.AlertEvent{Session: "s1", Urgency: analysis.BreakImmediate, Reasons: []string{"2 micro-sleeps"}}

	if err := s.Start(ev); err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(ev); err != nil {
		t.Fatal(err)
	}

	if len(r.events) != 2 || !r.events[0].Active || r.events[1].Active {
		t.Fatalf("events = %+v", r.events)
	}
	if r.subjects[0] != "test.alerts.s1" {
		t.Errorf("subject = %q", r.subjects[0])
	}
	if r.events[0].Urgency != analysis.BreakImmediate {
		t.Errorf("urgency = %s", r.events[0].Urgency)
	}
}

type failing struct{ err error }

func (f failing) Start(stream.AlertEvent) error { return f.err }
func (f failing) Stop(stream.AlertEvent) error  { return f.err }

func TestFanout(t *testing.T) {
	boom := errors.New("boom")
	var r recorder
	f := Fanout{failing{boom}, NewLogSink(), NewNATSSink(&r, stream.NewSubjects(""))}

	if err := f.Start(stream.AlertEvent{Session: "s1"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if len(r.events) != 1 {
		t.Error("a failing sink stopped delivery to the others")
	}
	if err := (Fanout{NewLogSink()}).Stop(stream.AlertEvent{}); err != nil {
		t.Errorf("Stop = %v", err)
	}
}
