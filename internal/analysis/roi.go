package analysis

import (
	"image"
	"math"
)

// ROI is a pixel-space rectangle sampled for colour intensity.
type ROI struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect returns the integer pixel rectangle covered by the ROI.
func (r ROI) Rect() image.Rectangle {
	return image.Rect(
		int(math.Floor(r.X)),
		int(math.Floor(r.Y)),
		int(math.Floor(r.X+r.Width)),
		int(math.Floor(r.Y+r.Height)),
	)
}

// ChannelMeans are the mean red, green and blue values over an ROI.
type ChannelMeans struct {
	R float64 `msgpack:"r" json:"r"`
	G float64 `msgpack:"g" json:"g"`
	B float64 `msgpack:"b" json:"b"`
}

// ROISampler tracks the region of interest and averages pixels inside it.
// A face-derived ROI moves only when the face shifts by more than 10% of
// its size.
type ROISampler struct {
	roi         ROI
	initialized bool
	stable      bool
}

// InitializeROI places the ROI over the forehead and upper cheeks: the
// upper 40% of the face box, centred, 60% of its width.
func (s *ROISampler) InitializeROI(faceWidth, faceHeight, faceX, faceY float64) {
	x := faceX + (faceWidth-faceWidth*0.6)/2
	y := faceY + faceHeight*0.1

	if !s.initialized ||
		math.Abs(x-s.roi.X) > faceWidth*0.1 ||
		math.Abs(y-s.roi.Y) > faceHeight*0.1 {
		s.roi = ROI{X: x, Y: y, Width: faceWidth * 0.6, Height: faceHeight * 0.4}
		s.initialized = true
		s.stable = false
		return
	}
	s.stable = true
}

// InitializeSimpleROI is used when no face is available: a centred square
// of 30% of the shorter frame side, starting 15% down the frame.
func (s *ROISampler) InitializeSimpleROI(videoWidth, videoHeight float64) {
	size := math.Min(videoWidth, videoHeight) * 0.3
	s.roi = ROI{
		X:      (videoWidth - size) / 2,
		Y:      videoHeight * 0.15,
		Width:  size,
		Height: size,
	}
	s.initialized = true
}

// ROI returns the current region and whether one has been set.
func (s *ROISampler) ROI() (ROI, bool) { return s.roi, s.initialized }

// Stable reports whether the last face update left the ROI in place.
func (s *ROISampler) Stable() bool { return s.stable }

// Reset forgets the ROI.
func (s *ROISampler) Reset() {
	*s = ROISampler{}
}

// Sample averages img inside the ROI, clipped to the image bounds. It
// reports false when the clipped region is empty.
func (s *ROISampler) Sample(img *image.RGBA) (ChannelMeans, bool) {
	if img == nil {
		return ChannelMeans{}, false
	}
	bounds := img.Bounds()
	if !s.initialized {
		s.InitializeSimpleROI(float64(bounds.Dx()), float64(bounds.Dy()))
	}

	area := s.roi.Rect().Add(bounds.Min).Intersect(bounds)
	if area.Empty() {
		return ChannelMeans{}, false
	}

	var r, g, b float64
	for y := area.Min.Y; y < area.Max.Y; y++ {
		row := img.PixOffset(area.Min.X, y)
		for x := 0; x < area.Dx(); x++ {
			px := img.Pix[row+x*4 : row+x*4+3]
			r += float64(px[0])
			g += float64(px[1])
			b += float64(px[2])
		}
	}

	n := float64(area.Dx() * area.Dy())
	return ChannelMeans{R: r / n, G: g / n, B: b / n}, true
}
