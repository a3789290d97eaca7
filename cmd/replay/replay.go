package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/ivanzxc/go-realtime-vitals/internal/alert"
	"github.com/ivanzxc/go-realtime-vitals/internal/capture"
	"github.com/ivanzxc/go-realtime-vitals/internal/config"
	"github.com/ivanzxc/go-realtime-vitals/internal/session"
	sim "github.com/ivanzxc/go-realtime-vitals/internal/signal"
	"github.com/ivanzxc/go-realtime-vitals/internal/stream"
)

type options struct {
	tuning   string
	session  string
	duration time.Duration
	drowsy   bool
	heart    float64
	width    int
	height   int
	batch    int
}

// report is what a replay prints.
type report struct {
	Summary   stream.Summary      `json:"summary"`
	Snapshots int                 `json:"snapshots"`
	Alerts    []stream.AlertEvent `json:"alerts"`
}

// collector stands in for NATS, keeping what the session manager publishes.
type collector struct {
	subjects stream.Subjects

	mu  sync.Mutex
	rep report
	err error
}

func (c *collector) Publish(subject string, data []byte) error {
	kind, _, err := c.subjects.Parse(subject)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch kind {
	case stream.KindSnapshots:
		c.rep.Snapshots++
	case stream.KindAlerts:
		var ev stream.AlertEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		c.rep.Alerts = append(c.rep.Alerts, ev)
	case stream.KindSummary:
		if err := json.Unmarshal(data, &c.rep.Summary); err != nil {
			c.err = err
			return err
		}
	}
	return nil
}

func replay(ctx context.Context, opts options, progress io.Writer) (report, error) {
	tuning, err := config.LoadTuning(opts.tuning)
	if err != nil {
		return report{}, err
	}

	subject := sim.DefaultSubject()
	if opts.drowsy {
		subject = sim.DrowsySubject()
	}
	subject.HeartRate = opts.heart
	subject.Width, subject.Height = opts.width, opts.height

	id := opts.session
	if id == "" {
		id = uuid.NewString()
	}

	subjects := stream.NewSubjects("")
	out := &collector{subjects: subjects}
	sink := alert.Fanout{alert.NewLogSink(), alert.NewNATSSink(out, subjects)}
	manager := session.NewManager(tuning.Session, tuning.Engines(), out, subjects, sink)

	src := capture.NewSim(subject, capture.Limit(opts.duration))
	defer src.Close()

	total := int(opts.duration.Seconds() * subject.FPS)
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("replaying "+id[:min(8, len(id))]),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)

	var (
		framer  capture.Framer
		batcher = stream.NewBatcher(id, subject.FPS, opts.batch)
	)
	for {
		c, err := src.Read(ctx)
		if errors.Is(err, capture.ErrSourceClosed) {
			break
		}
		if err != nil {
			return report{}, err
		}
		if f, ok := framer.Frame(c); ok {
			if b, ok := batcher.Add(f); ok {
				if err := manager.HandleBatch(b); err != nil {
					return report{}, err
				}
			}
		}
		_ = bar.Add(1)
	}
	if b, ok := batcher.Flush(); ok {
		if err := manager.HandleBatch(b); err != nil {
			return report{}, err
		}
	}
	_ = bar.Finish()
	fmt.Fprintln(progress)

	if err := manager.Control(id, stream.Control{Action: stream.ActionEnd}); err != nil {
		return report{}, err
	}

	out.mu.Lock()
	defer out.mu.Unlock()
	if out.err != nil {
		return report{}, fmt.Errorf("decode summary: %w", out.err)
	}
	return out.rep, nil
}

func optInt(v *int, unit string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d %s", *v, unit)
}

func (r report) print(w io.Writer) {
	s := r.Summary
	v := s.LastVitals

	fmt.Fprintf(w, "session          %s\n", s.Session)
	fmt.Fprintf(w, "duration         %.1f s (%d frames, %d snapshots)\n", s.Duration, s.Frames, r.Snapshots)
	fmt.Fprintf(w, "heart rate       %s\n", optInt(v.HeartRate, "BPM"))
	fmt.Fprintf(w, "respiratory rate %s\n", optInt(v.RespiratoryRate, "/min"))
	fmt.Fprintf(w, "spo2             %s\n", optInt(v.SpO2, "%"))
	if v.HRV != nil {
		fmt.Fprintf(w, "hrv              rmssd %.1f ms, sdnn %.1f ms, pnn50 %.1f%%\n", v.HRV.RMSSD, v.HRV.SDNN, v.HRV.PNN50)
	}
	if v.StressLevel != nil {
		fmt.Fprintf(w, "stress           %s (%s)\n", *v.StressLevel, optInt(v.StressIndex, "/100"))
	}
	fmt.Fprintf(w, "signal quality   %s\n", v.SignalQuality)
	fmt.Fprintf(w, "blinks / yawns   %d / %d\n", s.Blinks, s.Yawns)
	fmt.Fprintf(w, "micro-sleeps     %d (%d ms total)\n", s.MicroSleeps, s.MicroSleepTotalMs)
	fmt.Fprintf(w, "fatigue          avg %.1f, peak %d\n", s.AverageFatigue, s.PeakFatigue)
	fmt.Fprintf(w, "alerts           %d\n", s.Alerts)
	for _, a := range r.Alerts {
		if a.Active {
			fmt.Fprintf(w, "  %s  %v\n", a.Timestamp.Sub(s.Start).Truncate(time.Millisecond), a.Reasons)
		}
	}
}
