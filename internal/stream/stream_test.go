package stream

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/ivanzxc/go-realtime-vitals/internal/analysis"
	"github.com/ivanzxc/go-realtime-vitals/internal/facial"
)

func TestSubjects(t *testing.T) {
	s := NewSubjects("")
	if got := s.For(KindFrames, "abc"); got != "vitals.frames.abc" {
		t.Errorf("For = %q", got)
	}
	if got := s.All(KindControl); got != "vitals.control.*" {
		t.Errorf("All = %q", got)
	}

	kind, session, err := s.Parse("vitals.snapshots.abc-123")
	if err != nil || kind != KindSnapshots || session != "abc-123" {
		t.Errorf("Parse = %q %q %v", kind, session, err)
	}

	for _, bad := range []string{
		"other.frames.abc",
		"vitals.frames",
		"vitals.frames.",
		"vitals.unknown.abc",
		"vitals.frames.a.b",
	} {
		if _, _, err := s.Parse(bad); !errors.Is(err, ErrBadSubject) {
			t.Errorf("Parse(%q) err = %v, want ErrBadSubject", bad, err)
		}
	}
}

func TestBatchRoundTrip(t *testing.T) {
	drowsy := 0.4
	in := FrameBatch{
		Session: "s1",
		Seq:     7,
		FPS:     30,
		Frames: []Frame{
			{
				Timestamp: 33,
				Means:     analysis.ChannelMeans{R: 170.5, G: 125.25, B: 120},
				ROI:       analysis.ROI{X: 10, Y: 20, Width: 30, Height: 40},
				ROIStable: true,
				Facial:    &facial.Metrics{EAR: 0.28, MAR: 0.1},
			},
			{Timestamp: 66, Drowsiness: &drowsy},
		},
	}

	data, err := EncodeBatch(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := DecodeBatch(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch:\n in: %+v\nout: %+v", in, out)
	}

	if _, err := DecodeBatch([]byte{0xc1}); err == nil {
		t.Error("garbage decoded without error")
	}
}

func TestParseControl(t *testing.T) {
	c, err := ParseControl([]byte(`{"action":"break"}`))
	if err != nil || c.Action != ActionBreak {
		t.Errorf("ParseControl = %+v, %v", c, err)
	}

	if _, err := ParseControl([]byte(`{"action":"dance"}`)); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("err = %v, want ErrUnknownAction", err)
	}
	if _, err := ParseControl([]byte(`{`)); err == nil {
		t.Error("malformed JSON accepted")
	}
}

type recorder struct {
	subjects []string
	payloads [][]byte
}

func (r *recorder) Publish(subject string, data []byte) error {
	r.subjects = append(r.subjects, subject)
	r.payloads = append(r.payloads, data)
	return nil
}

func TestPublishHelpers(t *testing.T) {
	var r recorder
	if err := PublishJSON(&r, "vitals.control.s1", Control{Action: ActionEnd}); err != nil {
		t.Fatal(err)
	}
	var c Control
	if err := json.Unmarshal(r.payloads[0], &c); err != nil || c.Action != ActionEnd {
		t.Errorf("published %s", r.payloads[0])
	}

	if err := PublishBatch(&r, "vitals.frames.s1", FrameBatch{Session: "s1"}); err != nil {
		t.Fatal(err)
	}
	b, err := DecodeBatch(r.payloads[1])
	if err != nil || b.Session != "s1" {
		t.Errorf("batch = %+v, %v", b, err)
	}
}

func TestBatcher(t *testing.T) {
	b := NewBatcher("s1", 30, 3)
	var got []FrameBatch
	for i := 0; i < 7; i++ {
		if batch, ok := b.Add(Frame{Timestamp: int64(i)}); ok {
			got = append(got, batch)
		}
	}
	if batch, ok := b.Flush(); ok {
		got = append(got, batch)
	}
	if _, ok := b.Flush(); ok {
		t.Error("second flush returned a batch")
	}

	if len(got) != 3 {
		t.Fatalf("batches = %d, want 3", len(got))
	}
	for i, batch := range got {
		if batch.Seq != uint64(i) || batch.Session != "s1" || batch.FPS != 30 {
			t.Errorf("batch %d header = %+v", i, batch)
		}
	}
	if len(got[2].Frames) != 1 || got[2].Frames[0].Timestamp != 6 {
		t.Errorf("last batch = %+v", got[2].Frames)
	}
	if got[0].Frames[2].Timestamp != 2 {
		t.Error("first batch overwritten by later frames")
	}
}
