// Package capture supplies video frames to the producer, from the
// synthetic subject or from a webcam.
package capture

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/ivanzxc/go-realtime-vitals/internal/facial"
	"github.com/ivanzxc/go-realtime-vitals/internal/signal"
)

var (
	// ErrSourceClosed is returned by Read once a source is exhausted or closed.
	ErrSourceClosed = errors.New("capture source closed")
	// ErrWebcamUnavailable is returned when the binary was built without gocv.
	ErrWebcamUnavailable = errors.New("webcam capture not available: build with -tags gocv")
)

// Capture is one video frame with whatever the source could detect in it.
type Capture struct {
	Image     *image.RGBA
	Face      *image.Rectangle // nil when no face was found
	Landmarks []facial.Point   // nil when the source has no landmark model
	Timestamp time.Duration    // since the first frame
}

// Source produces frames until it is closed or exhausted.
type Source interface {
	Read(ctx context.Context) (Capture, error)
	FPS() float64
	Close() error
}

// SimOption configures a Sim.
type SimOption func(*Sim)

// Realtime paces Read to the subject's frame rate.
func Realtime() SimOption {
	return func(s *Sim) { s.paced = true }
}

// Limit ends the source after d of footage.
func Limit(d time.Duration) SimOption {
	return func(s *Sim) { s.limit = d }
}

// Sim reads frames from a synthetic subject.
type Sim struct {
	subject *signal.Subject
	paced   bool
	limit   time.Duration
	start   time.Time
	closed  bool
}

// NewSim creates a simulated source.
func NewSim(cfg signal.SubjectConfig, opts ...SimOption) *Sim {
	s := &Sim{subject: signal.NewSubject(cfg)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FPS returns the subject frame rate.
func (s *Sim) FPS() float64 { return s.subject.Config().FPS }

// Read renders the next frame, waiting for its capture time when paced.
func (s *Sim) Read(ctx context.Context) (Capture, error) {
	if s.closed {
		return Capture{}, ErrSourceClosed
	}
	if s.limit > 0 && s.subject.Elapsed() >= s.limit {
		return Capture{}, ErrSourceClosed
	}
	if err := ctx.Err(); err != nil {
		return Capture{}, err
	}

	if s.paced {
		if s.start.IsZero() {
			s.start = time.Now()
		}
		if wait := time.Until(s.start.Add(s.subject.Elapsed())); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return Capture{}, ctx.Err()
			case <-timer.C:
			}
		}
	}

	f := s.subject.Next()
	face := f.Face
	return Capture{
		Image:     f.Image,
		Face:      &face,
		Landmarks: f.Landmarks,
		Timestamp: f.Timestamp,
	}, nil
}

// Close ends the source.
func (s *Sim) Close() error {
	s.closed = true
	return nil
}
