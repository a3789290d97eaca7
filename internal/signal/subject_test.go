package signal

import (
	"math"
	"testing"
	"time"

	"github.com/ivanzxc/go-realtime-vitals/internal/analysis"
	"github.com/ivanzxc/go-realtime-vitals/internal/facial"
)

func smallSubject(cfg SubjectConfig) *Subject {
	cfg.Width, cfg.Height = 160, 120
	return NewSubject(cfg)
}

func TestOscillator_Wraps(t *testing.T) {
	o := NewOscillator(10)
	var phase float64
	for i := 0; i < 25; i++ {
		phase = o.Advance(1)
		if phase < 0 || phase >= 1 {
			t.Fatalf("phase %v outside [0,1)", phase)
		}
	}
	if math.Abs(phase-0.5) > 1e-9 {
		t.Errorf("phase after 2.5 cycles = %v, want 0.5", phase)
	}
}

func TestSubject_Deterministic(t *testing.T) {
	a, b := smallSubject(DefaultSubject()), smallSubject(DefaultSubject())
	for i := 0; i < 5; i++ {
		fa, fb := a.Next(), b.Next()
		if string(fa.Image.Pix) != string(fb.Image.Pix) {
			t.Fatalf("frame %d differs", i)
		}
	}
}

func TestSubject_Frame(t *testing.T) {
	s := smallSubject(DefaultSubject())
	s.Next()
	f := s.Next()

	if b := f.Image.Bounds(); b.Dx() != 160 || b.Dy() != 120 {
		t.Errorf("image bounds = %v", b)
	}
	if !f.Face.In(f.Image.Bounds()) || f.Face.Empty() {
		t.Errorf("face %v not inside frame", f.Face)
	}
	if f.Timestamp != time.Second/30 {
		t.Errorf("timestamp = %v", f.Timestamp)
	}
	if len(f.Landmarks) != MeshPoints {
		t.Fatalf("landmarks = %d", len(f.Landmarks))
	}

	m, err := facial.FromLandmarks(f.Landmarks)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(m.EAR-0.3) > 1e-9 || math.Abs(m.MAR-0.15) > 1e-9 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestSubject_VitalsRecovered(t *testing.T) {
	s := smallSubject(DefaultSubject())
	e := analysis.NewExtractor(analysis.DefaultConfig())

	for i := 0; i < 600; i++ {
		f := s.Next()
		face := f.Face
		e.InitializeROI(float64(face.Dx()), float64(face.Dy()), float64(face.Min.X), float64(face.Min.Y))
		g, ok := e.ExtractChannelIntensity(f.Image)
		if !ok {
			t.Fatal("empty ROI")
		}
		e.AddSample(g, float64(f.Timestamp.Milliseconds()))
	}

	if !e.ROIStable() {
		t.Error("static face moved the ROI")
	}

	res := e.Process()
	if res.HeartRate == nil {
		t.Fatal("heart rate is nil")
	}
	if d := *res.HeartRate - 72; d < -3 || d > 3 {
		t.Errorf("heart rate = %d, want 72±3", *res.HeartRate)
	}
	if res.RespiratoryRate == nil {
		t.Fatal("respiratory rate is nil")
	}
	if d := *res.RespiratoryRate - 15; d < -3 || d > 3 {
		t.Errorf("respiratory rate = %d, want 15±3", *res.RespiratoryRate)
	}
	if res.SpO2 != nil && (*res.SpO2 < 90 || *res.SpO2 > 100) {
		t.Errorf("SpO2 = %d", *res.SpO2)
	}
}

func TestSubject_Blinks(t *testing.T) {
	s := smallSubject(DefaultSubject())
	tr := facial.NewTracker(facial.DefaultConfig())
	start := time.Unix(0, 0)

	for s.Elapsed() < 10*time.Second {
		f := s.Next()
		m, err := facial.FromLandmarks(f.Landmarks)
		if err != nil {
			t.Fatal(err)
		}
		tr.Update(m, start.Add(f.Timestamp))
	}

	if got := tr.State().BlinkCount; got != 2 {
		t.Errorf("blinks in 10s = %d, want 2", got)
	}
}

func TestSubject_DrowsyEvents(t *testing.T) {
	s := smallSubject(DrowsySubject())
	at := func(d time.Duration) facial.Metrics {
		m, err := facial.FromLandmarks(s.landmarks(d))
		if err != nil {
			t.Fatal(err)
		}
		return m
	}

	if m := at(25*time.Second + 600*time.Millisecond); m.EAR > 0.1 {
		t.Errorf("EAR during micro-sleep = %v", m.EAR)
	}
	if m := at(41 * time.Second); m.MAR < 0.7 {
		t.Errorf("MAR during yawn = %v", m.MAR)
	}
	if m := at(11 * time.Second); math.Abs(m.EAR-0.24) > 1e-9 {
		t.Errorf("EAR between events = %v", m.EAR)
	}
}
