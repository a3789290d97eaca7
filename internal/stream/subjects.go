package stream

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultPrefix is the subject root used when none is configured.
const DefaultPrefix = "vitals"

// ErrBadSubject is returned by Subjects.Parse for foreign subjects.
var ErrBadSubject = errors.New("malformed subject")

// Kind is the message family carried on a subject.
type Kind string

const (
	KindFrames    Kind = "frames"    // msgpack FrameBatch
	KindSnapshots Kind = "snapshots" // JSON Snapshot
	KindAlerts    Kind = "alerts"    // JSON AlertEvent
	KindControl   Kind = "control"   // JSON Control
	KindSummary   Kind = "summary"   // JSON Summary
)

func (k Kind) valid() bool {
	switch k {
	case KindFrames, KindSnapshots, KindAlerts, KindControl, KindSummary:
		return true
	}
	return false
}

// Subjects builds and parses <prefix>.<kind>.<session> subjects.
type Subjects struct {
	Prefix string
}

// NewSubjects returns a builder for prefix, or DefaultPrefix when empty.
func NewSubjects(prefix string) Subjects {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Subjects{Prefix: prefix}
}

// For returns the subject of kind for one session.
func (s Subjects) For(kind Kind, session string) string {
	return s.Prefix + "." + string(kind) + "." + session
}

// All returns a wildcard subject matching kind for every session.
func (s Subjects) All(kind Kind) string {
	return s.For(kind, "*")
}

// Parse splits subject into its kind and session.
func (s Subjects) Parse(subject string) (Kind, string, error) {
	rest, ok := strings.CutPrefix(subject, s.Prefix+".")
	if !ok {
		return "", "", fmt.Errorf("%w: %q lacks prefix %q", ErrBadSubject, subject, s.Prefix)
	}
	kind, session, ok := strings.Cut(rest, ".")
	if !ok || session == "" || strings.Contains(session, ".") || !Kind(kind).valid() {
		return "", "", fmt.Errorf("%w: %q", ErrBadSubject, subject)
	}
	return Kind(kind), session, nil
}
