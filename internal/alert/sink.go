// Package alert delivers session alerts. A sink is started when a session
// becomes dangerous and stopped when it recovers, like a continuous alarm.
package alert

import (
	"errors"
	"log/slog"

	"github.com/ivanzxc/go-realtime-vitals/internal/log"
	"github.com/ivanzxc/go-realtime-vitals/internal/stream"
)

// Sink receives alert transitions. Start and Stop are only called on
// transitions, never twice in a row for the same session.
type Sink interface {
	Start(ev stream.AlertEvent) error
	Stop(ev stream.AlertEvent) error
}

// LogSink writes transitions to the structured log.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink() *LogSink {
	return &LogSink{logger: log.With("component", "alert")}
}

func (s *LogSink) Start(ev stream.AlertEvent) error {
	s.logger.Warn("alert started",
		"session", ev.Session,
		"urgency", ev.Urgency,
		"risk", ev.Risk,
		"reasons", ev.Reasons,
	)
	return nil
}

func (s *LogSink) Stop(ev stream.AlertEvent) error {
	s.logger.Info("alert stopped", "session", ev.Session)
	return nil
}

// NATSSink publishes transitions on the session's alerts subject.
type NATSSink struct {
	pub      stream.Publisher
	subjects stream.Subjects
}

// NewNATSSink creates a NATSSink.
func NewNATSSink(pub stream.Publisher, subjects stream.Subjects) *NATSSink {
	return &NATSSink{pub: pub, subjects: subjects}
}

func (s *NATSSink) Start(ev stream.AlertEvent) error {
	ev.Active = true
	return stream.PublishJSON(s.pub, s.subjects.For(stream.KindAlerts, ev.Session), ev)
}

func (s *NATSSink) Stop(ev stream.AlertEvent) error {
	ev.Active = false
	return stream.PublishJSON(s.pub, s.subjects.For(stream.KindAlerts, ev.Session), ev)
}

// Fanout forwards every transition to all sinks.
type Fanout []Sink

func (f Fanout) Start(ev stream.AlertEvent) error {
	var errs []error
	for _, s := range f {
		errs = append(errs, s.Start(ev))
	}
	return errors.Join(errs...)
}

func (f Fanout) Stop(ev stream.AlertEvent) error {
	var errs []error
	for _, s := range f {
		errs = append(errs, s.Stop(ev))
	}
	return errors.Join(errs...)
}
