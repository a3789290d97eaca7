package capture

import (
	"github.com/ivanzxc/go-realtime-vitals/internal/analysis"
	"github.com/ivanzxc/go-realtime-vitals/internal/facial"
	"github.com/ivanzxc/go-realtime-vitals/internal/stream"
)

// Framer reduces captures to wire frames: ROI channel means plus facial
// metrics when landmarks are present.
type Framer struct {
	roi analysis.ROISampler
}

// Frame converts c. It reports false when the ROI covers no pixels.
func (f *Framer) Frame(c Capture) (stream.Frame, bool) {
	if c.Face != nil && !c.Face.Empty() {
		r := *c.Face
		f.roi.InitializeROI(float64(r.Dx()), float64(r.Dy()), float64(r.Min.X), float64(r.Min.Y))
	}
	means, ok := f.roi.Sample(c.Image)
	if !ok {
		return stream.Frame{}, false
	}
	roi, _ := f.roi.ROI()

	out := stream.Frame{
		Timestamp: c.Timestamp.Milliseconds(),
		Means:     means,
		ROI:       roi,
		ROIStable: f.roi.Stable(),
	}
	if len(c.Landmarks) > 0 {
		if m, err := facial.FromLandmarks(c.Landmarks); err == nil {
			out.Facial = &m
		}
	}
	return out, true
}

// Reset forgets the ROI.
func (f *Framer) Reset() {
	f.roi.Reset()
}
