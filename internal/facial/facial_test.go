package facial

import (
	"errors"
	"math"
	"testing"
	"time"
)

// mesh builds a landmark set with the given eye opening and mouth opening,
// both relative to a unit-width eye and mouth.
func mesh(eyeOpen, mouthOpen float64) []Point {
	pts := make([]Point, MeshSize)
	setEye := func(idx [6]int, x0 float64) {
		pts[idx[0]] = Point{X: x0, Y: 0}
		pts[idx[3]] = Point{X: x0 + 1, Y: 0}
		pts[idx[1]] = Point{X: x0 + 0.33, Y: -eyeOpen / 2}
		pts[idx[2]] = Point{X: x0 + 0.66, Y: -eyeOpen / 2}
		pts[idx[4]] = Point{X: x0 + 0.66, Y: eyeOpen / 2}
		pts[idx[5]] = Point{X: x0 + 0.33, Y: eyeOpen / 2}
	}
	setEye(LeftEye, 0)
	setEye(RightEye, 2)

	pts[Mouth[0]] = Point{X: 0, Y: 3}
	pts[Mouth[1]] = Point{X: 1, Y: 3}
	pts[Mouth[2]] = Point{X: 0.5, Y: 3 - mouthOpen/2}
	pts[Mouth[3]] = Point{X: 0.5, Y: 3 + mouthOpen/2}
	return pts
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestFromLandmarks(t *testing.T) {
	m, err := FromLandmarks(mesh(0.3, 0.2))
	if err != nil {
		t.Fatal(err)
	}
	if !near(m.EAR, 0.3) || !near(m.MAR, 0.2) {
		t.Errorf("metrics = %+v, want EAR 0.3 MAR 0.2", m)
	}

	_, err = FromLandmarks(make([]Point, 100))
	if !errors.Is(err, ErrTooFewLandmarks) {
		t.Errorf("err = %v, want ErrTooFewLandmarks", err)
	}
}

func TestDegenerateGeometry(t *testing.T) {
	if got := EAR([6]Point{}); got != 0 {
		t.Errorf("EAR of collapsed eye = %v", got)
	}
	if got := MAR([4]Point{}); got != 0 {
		t.Errorf("MAR of collapsed mouth = %v", got)
	}
}

func TestEstimateDrowsiness(t *testing.T) {
	tests := []struct {
		ear, mar, want float64
	}{
		{0.3, 0.1, 0.35},
		{0.3, 0.6, 0.65},
		{0, 0.9, 0.8},
		{-2, 0.9, 1},
		{1.5, 0, 0},
	}
	for _, tt := range tests {
		if got := EstimateDrowsiness(tt.ear, tt.mar); !near(got, tt.want) {
			t.Errorf("EstimateDrowsiness(%v, %v) = %v, want %v", tt.ear, tt.mar, got, tt.want)
		}
	}
}

type frames struct {
	tr *Tracker
	at time.Time
}

func (f *frames) run(n int, m Metrics) Event {
	var last Event
	for i := 0; i < n; i++ {
		f.at = f.at.Add(time.Second / 30)
		ev := f.tr.Update(m, f.at)
		if ev.Blink || ev.Yawn {
			last = ev
		}
	}
	return last
}

func TestTracker_Blinks(t *testing.T) {
	f := &frames{tr: NewTracker(DefaultConfig()), at: time.Unix(0, 0)}
	open := Metrics{EAR: 0.3}
	shut := Metrics{EAR: 0.1}

	f.run(5, open)
	f.run(1, shut)
	if ev := f.run(1, open); ev.Blink {
		t.Error("single shut frame counted as blink")
	}

	f.run(6, shut)
	ev := f.run(1, open)
	if !ev.Blink {
		t.Fatal("blink not detected")
	}
	if ev.BlinkDuration != 6*(time.Second/30) {
		t.Errorf("blink duration = %v, want 200ms", ev.BlinkDuration)
	}

	st := f.tr.State()
	if st.BlinkCount != 1 || st.BlinkRate != 1 || !near(st.BlinkDuration, 0.2) {
		t.Errorf("state = %+v", st)
	}
}

func TestTracker_YawnsAndRateWindow(t *testing.T) {
	f := &frames{tr: NewTracker(DefaultConfig()), at: time.Unix(0, 0)}
	closed := Metrics{EAR: 0.3, MAR: 0.2}
	yawning := Metrics{EAR: 0.3, MAR: 0.9}

	f.run(10, yawning)
	if ev := f.run(1, closed); ev.Yawn {
		t.Error("short mouth opening counted as yawn")
	}
	f.run(30, yawning)
	if ev := f.run(1, closed); !ev.Yawn || ev.YawnDuration != 30*(time.Second/30) {
		t.Errorf("yawn event = %+v", ev)
	}

	f.run(61*30, closed)
	st := f.tr.State()
	if st.YawnCount != 1 || st.YawnRate != 0 {
		t.Errorf("after a minute: count=%d rate=%d, want 1 and 0", st.YawnCount, st.YawnRate)
	}
}

func TestTracker_FatigueInputAndReset(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.Update(Metrics{EAR: 0.3, MAR: 0.1}, time.Unix(0, 0))

	in := tr.FatigueInput(nil)
	if !near(in.DrowsinessScore, 0.35) || in.EAR != 0.3 {
		t.Errorf("fallback input = %+v", in)
	}
	external := 0.9
	if in := tr.FatigueInput(&external); in.DrowsinessScore != 0.9 {
		t.Errorf("external drowsiness ignored: %v", in.DrowsinessScore)
	}

	tr.Reset()
	if st := tr.State(); st != (State{}) {
		t.Errorf("state after reset = %+v", st)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.BlinkFrames = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero blink frames accepted")
	}
}
