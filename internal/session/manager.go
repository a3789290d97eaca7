// Package session runs one analysis pipeline per monitored subject and
// publishes their snapshots, alerts and summaries.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ivanzxc/go-realtime-vitals/internal/alert"
	"github.com/ivanzxc/go-realtime-vitals/internal/analysis"
	"github.com/ivanzxc/go-realtime-vitals/internal/facial"
	"github.com/ivanzxc/go-realtime-vitals/internal/log"
	"github.com/ivanzxc/go-realtime-vitals/internal/stream"
)

// ErrUnknownSession is returned for controls addressed to no live session.
var ErrUnknownSession = errors.New("unknown session")

// Config holds session timing.
type Config struct {
	PublishInterval   time.Duration `yaml:"publish_interval"`   // Snapshot cadence in capture time
	InactivityTimeout time.Duration `yaml:"inactivity_timeout"` // Idle sessions are ended after this
	SweepInterval     time.Duration `yaml:"sweep_interval"`
}

// DefaultConfig publishes at the rPPG refresh interval and ends sessions
// idle for 30 seconds.
func DefaultConfig() Config {
	return Config{
		PublishInterval:   analysis.DefaultConfig().RefreshInterval,
		InactivityTimeout: 30 * time.Second,
		SweepInterval:     5 * time.Second,
	}
}

// Validate checks the timing values.
func (c Config) Validate() error {
	if c.PublishInterval <= 0 || c.InactivityTimeout <= 0 || c.SweepInterval <= 0 {
		return fmt.Errorf("%w: session intervals must be positive", analysis.ErrInvalidConfig)
	}
	return nil
}

// Engines configures the engines of every new pipeline.
type Engines struct {
	RPPG    analysis.Config
	Fatigue analysis.FatigueConfig
	Facial  facial.Config
}

// DefaultEngines returns the default engine configuration.
func DefaultEngines() Engines {
	return Engines{
		RPPG:    analysis.DefaultConfig(),
		Fatigue: analysis.DefaultFatigueConfig(),
		Facial:  facial.DefaultConfig(),
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock used for session start and inactivity.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns the live pipelines, keyed by session ID.
type Manager struct {
	cfg      Config
	engines  Engines
	pub      stream.Publisher
	subjects stream.Subjects
	sink     alert.Sink
	now      func() time.Time
	logger   *slog.Logger

	mu        sync.Mutex
	pipelines map[string]*Pipeline
}

// NewManager creates a manager that publishes through pub and signals
// alerts to sink.
func NewManager(cfg Config, engines Engines, pub stream.Publisher, subjects stream.Subjects, sink alert.Sink, opts ...Option) *Manager {
	m := &Manager{
		cfg:       cfg,
		engines:   engines,
		pub:       pub,
		subjects:  subjects,
		sink:      sink,
		now:       time.Now,
		logger:    log.With("component", "session"),
		pipelines: make(map[string]*Pipeline),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// HandleBatch feeds a frame batch to its session, creating the session on
// its first batch.
func (m *Manager) HandleBatch(b stream.FrameBatch) error {
	if b.Session == "" {
		return fmt.Errorf("batch %d: missing session id", b.Seq)
	}
	now := m.now()

	// A sweep or end control may retire the pipeline between lookup and
	// ingest; the batch then opens a fresh session.
	for {
		if m.pipeline(b, now).ingest(b, now) {
			return nil
		}
	}
}

func (m *Manager) pipeline(b stream.FrameBatch, now time.Time) *Pipeline {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pipelines[b.Session]
	if !ok {
		p = newPipeline(b.Session, m, now)
		m.pipelines[b.Session] = p
		m.logger.Info("session started", "session", b.Session, "fps", b.FPS)
	}
	return p
}

// Control applies a break, reset or end to a live session.
func (m *Manager) Control(session string, c stream.Control) error {
	m.mu.Lock()
	p, ok := m.pipelines[session]
	if ok && c.Action == stream.ActionEnd {
		delete(m.pipelines, session)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, session)
	}

	switch c.Action {
	case stream.ActionBreak:
		p.recordBreak()
	case stream.ActionReset:
		p.reset()
	case stream.ActionEnd:
		p.end()
	default:
		return fmt.Errorf("%w: %q", stream.ErrUnknownAction, c.Action)
	}
	m.logger.Info("control applied", "session", session, "action", c.Action)
	return nil
}

// Sweep ends sessions idle for longer than InactivityTimeout and returns
// how many were ended.
func (m *Manager) Sweep() int {
	now := m.now()

	m.mu.Lock()
	var idle []*Pipeline
	for id, p := range m.pipelines {
		if p.idle(now) > m.cfg.InactivityTimeout {
			idle = append(idle, p)
			delete(m.pipelines, id)
		}
	}
	m.mu.Unlock()

	for _, p := range idle {
		m.logger.Info("session inactive", "session", p.id)
		p.end()
	}
	return len(idle)
}

// Run sweeps idle sessions until ctx is done, then ends every session.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Close()
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Close ends every live session.
func (m *Manager) Close() {
	m.mu.Lock()
	live := make([]*Pipeline, 0, len(m.pipelines))
	for id, p := range m.pipelines {
		live = append(live, p)
		delete(m.pipelines, id)
	}
	m.mu.Unlock()

	for _, p := range live {
		p.end()
	}
}

// Sessions returns the IDs of live sessions, sorted.
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.pipelines))
	for id := range m.pipelines {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
