package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ivanzxc/go-realtime-vitals/internal/alert"
	"github.com/ivanzxc/go-realtime-vitals/internal/analysis"
	"github.com/ivanzxc/go-realtime-vitals/internal/facial"
	"github.com/ivanzxc/go-realtime-vitals/internal/stream"
)

// Pipeline runs the engines of one monitoring session. Frame timestamps
// drive every engine clock, so a replayed session behaves like a live one.
type Pipeline struct {
	mu sync.Mutex

	id       string
	cfg      Config
	pub      stream.Publisher
	subjects stream.Subjects
	sink     alert.Sink
	logger   *slog.Logger

	extractor *analysis.Extractor
	tracker   *facial.Tracker
	fusion    *analysis.FusionEngine

	origin      time.Time // wall time frame timestamps are relative to
	start       time.Time // session start, moved by reset
	at          time.Time // capture time of the current frame
	lastPublish time.Time
	lastSeen    time.Time // wall time of the last batch

	vitals     analysis.RPPGResult
	fatigue    *analysis.FatigueResult
	facialSeen bool
	drowsiness *float64
	roi        analysis.ROI
	roiStable  bool
	alerting   bool
	ended      bool

	frames        int
	alerts        int
	breaks        int
	fatigueSum    float64
	fatigueTicks  int
	peakFatigue   int
	microSleeps   int
	microSleepMs  int64
	lastMicroTime time.Time
}

func newPipeline(id string, m *Manager, now time.Time) *Pipeline {
	p := &Pipeline{
		id:       id,
		cfg:      m.cfg,
		pub:      m.pub,
		subjects: m.subjects,
		sink:     m.sink,
		logger:   m.logger.With("session", id),

		extractor: analysis.NewExtractor(m.engines.RPPG),
		tracker:   facial.NewTracker(m.engines.Facial),

		origin:      now,
		start:       now,
		at:          now,
		lastPublish: now,
		lastSeen:    now,
	}
	p.fusion = analysis.NewFusionEngine(m.engines.Fatigue, analysis.WithClock(p.clock))
	return p
}

func (p *Pipeline) clock() time.Time { return p.at }

// ingest processes a batch and reports false if the pipeline has already
// ended. Publishing errors are logged, not returned, so one lost snapshot
// does not drop the remaining frames.
func (p *Pipeline) ingest(b stream.FrameBatch, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ended {
		return false
	}
	p.lastSeen = now
	for _, f := range b.Frames {
		p.frame(f)
	}
	return true
}

func (p *Pipeline) frame(f stream.Frame) {
	p.at = p.origin.Add(time.Duration(f.Timestamp) * time.Millisecond)
	p.frames++

	p.extractor.AddChannelMeans(f.Means, float64(f.Timestamp))
	p.roi, p.roiStable = f.ROI, f.ROIStable
	if f.Drowsiness != nil {
		d := *f.Drowsiness
		p.drowsiness = &d
	}

	if f.Facial != nil {
		p.facialSeen = true
		p.tracker.Update(*f.Facial, p.at)
		res := p.fusion.Analyze(p.tracker.FatigueInput(p.drowsiness).WithVitals(p.vitals))
		p.fatigue = &res
		p.record(res)
		p.evaluateAlert(res)
	}

	if p.at.Sub(p.lastPublish) >= p.cfg.PublishInterval {
		p.lastPublish = p.at
		p.vitals = p.extractor.Process()
		if err := stream.PublishJSON(p.pub, p.subjects.For(stream.KindSnapshots, p.id), p.snapshot()); err != nil {
			p.logger.Warn("snapshot publish failed", "error", err)
		}
		p.logger.Debug("snapshot",
			"status", p.vitals.Status,
			"samples", p.vitals.SamplesCollected,
			"quality", p.vitals.SignalQuality,
		)
	}
}

func (p *Pipeline) record(res analysis.FatigueResult) {
	p.fatigueSum += float64(res.FatigueScore)
	p.fatigueTicks++
	p.peakFatigue = max(p.peakFatigue, res.FatigueScore)

	if res.LastMicroSleepTime != nil && res.LastMicroSleepTime.After(p.lastMicroTime) {
		p.lastMicroTime = *res.LastMicroSleepTime
		if events := p.fusion.MicroSleeps(); len(events) > 0 {
			p.microSleeps++
			p.microSleepMs += events[len(events)-1].Duration.Milliseconds()
		}
	}
}

// alertReasons lists why res warrants a continuous alert.
func alertReasons(res analysis.FatigueResult) []string {
	var reasons []string
	if res.BreakUrgency == analysis.BreakImmediate {
		reasons = append(reasons, "immediate break needed")
	}
	if res.RiskLevel.Severity() >= analysis.RiskDanger.Severity() {
		reasons = append(reasons, fmt.Sprintf("risk %s", res.RiskLevel))
	}
	if res.MicroSleepDetected {
		reasons = append(reasons, "micro-sleep detected")
	}
	return reasons
}

func (p *Pipeline) evaluateAlert(res analysis.FatigueResult) {
	reasons := alertReasons(res)
	active := len(reasons) > 0
	if active == p.alerting {
		return
	}
	p.alerting = active

	ev := stream.AlertEvent{
		Session:   p.id,
		Active:    active,
		Reasons:   reasons,
		Urgency:   res.BreakUrgency,
		Risk:      res.RiskLevel,
		Timestamp: p.at,
	}
	var err error
	if active {
		p.alerts++
		err = p.sink.Start(ev)
	} else {
		err = p.sink.Stop(ev)
	}
	if err != nil {
		p.logger.Warn("alert sink failed", "active", active, "error", err)
	}
}

func (p *Pipeline) stopAlert() {
	if !p.alerting {
		return
	}
	p.alerting = false
	if err := p.sink.Stop(stream.AlertEvent{Session: p.id, Timestamp: p.at}); err != nil {
		p.logger.Warn("alert sink failed", "active", false, "error", err)
	}
}

func (p *Pipeline) snapshot() stream.Snapshot {
	s := stream.Snapshot{
		Session:   p.id,
		Timestamp: p.at,
		Vitals:    p.vitals,
		Fatigue:   p.fatigue,
		Signal:    p.extractor.SignalStats(),
		ROI:       p.roi,
		ROIStable: p.roiStable,
	}
	if p.facialSeen {
		st := p.tracker.State()
		s.Facial = &st
	}
	return s
}

func (p *Pipeline) recordBreak() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fusion.RecordBreak()
	p.breaks++
}

// reset restarts the session in place: engines, counters and alerts.
func (p *Pipeline) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}

func (p *Pipeline) resetLocked() {
	p.stopAlert()
	p.extractor.Reset()
	p.tracker.Reset()
	p.fusion.Reset()

	p.start = p.at
	p.lastPublish = p.at
	p.vitals = analysis.RPPGResult{}
	p.fatigue = nil
	p.facialSeen = false
	p.drowsiness = nil
	p.frames, p.alerts, p.breaks = 0, 0, 0
	p.fatigueSum, p.fatigueTicks, p.peakFatigue = 0, 0, 0
	p.microSleeps, p.microSleepMs = 0, 0
	p.lastMicroTime = time.Time{}
}

// end publishes the summary and resets the engines. Only the first call
// publishes; later calls report false.
func (p *Pipeline) end() (stream.Summary, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ended {
		return stream.Summary{}, false
	}
	p.ended = true

	sum := p.summary()
	if err := stream.PublishJSON(p.pub, p.subjects.For(stream.KindSummary, p.id), sum); err != nil {
		p.logger.Warn("summary publish failed", "error", err)
	}
	p.logger.Info("session ended",
		"duration_s", sum.Duration,
		"frames", sum.Frames,
		"micro_sleeps", sum.MicroSleeps,
		"peak_fatigue", sum.PeakFatigue,
	)
	p.resetLocked()
	return sum, true
}

func (p *Pipeline) summary() stream.Summary {
	state := p.tracker.State()
	sum := stream.Summary{
		Session:           p.id,
		Start:             p.start,
		End:               p.at,
		Duration:          p.at.Sub(p.start).Seconds(),
		Frames:            p.frames,
		Blinks:            state.BlinkCount,
		Yawns:             state.YawnCount,
		MicroSleeps:       p.microSleeps,
		MicroSleepTotalMs: p.microSleepMs,
		PeakFatigue:       p.peakFatigue,
		Alerts:            p.alerts,
		Breaks:            p.breaks,
		LastVitals:        p.vitals,
	}
	if p.fatigueTicks > 0 {
		sum.AverageFatigue = p.fatigueSum / float64(p.fatigueTicks)
	}
	return sum
}

func (p *Pipeline) idle(now time.Time) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return now.Sub(p.lastSeen)
}
