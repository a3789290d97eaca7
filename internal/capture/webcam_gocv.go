//go:build gocv

package capture

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"time"

	"gocv.io/x/gocv"
)

// WebcamConfig selects the camera and face detector model.
type WebcamConfig struct {
	Device      string // Index ("0") or URL
	CascadePath string // Haar cascade XML; empty disables face detection
	FPS         float64
}

// Webcam reads frames through OpenCV and finds the face with a Haar cascade.
// It has no landmark model, so captures carry no landmarks.
type Webcam struct {
	capture    *gocv.VideoCapture
	classifier *gocv.CascadeClassifier
	mat        gocv.Mat
	fps        float64
	start      time.Time
}

// OpenWebcam opens the device and loads the cascade.
func OpenWebcam(cfg WebcamConfig) (Source, error) {
	vc, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("open video capture %s: %w", cfg.Device, err)
	}

	w := &Webcam{capture: vc, mat: gocv.NewMat(), fps: cfg.FPS}
	if w.fps <= 0 {
		w.fps = vc.Get(gocv.VideoCaptureFPS)
	}
	if w.fps <= 0 {
		w.fps = 30
	}

	if cfg.CascadePath != "" {
		classifier := gocv.NewCascadeClassifier()
		if !classifier.Load(cfg.CascadePath) {
			classifier.Close()
			w.Close()
			return nil, fmt.Errorf("load cascade classifier from %s", cfg.CascadePath)
		}
		w.classifier = &classifier
	}
	return w, nil
}

// FPS returns the configured or reported frame rate.
func (w *Webcam) FPS() float64 { return w.fps }

// Read grabs the next frame.
func (w *Webcam) Read(ctx context.Context) (Capture, error) {
	if err := ctx.Err(); err != nil {
		return Capture{}, err
	}
	if ok := w.capture.Read(&w.mat); !ok || w.mat.Empty() {
		return Capture{}, ErrSourceClosed
	}
	if w.start.IsZero() {
		w.start = time.Now()
	}

	img, err := w.mat.ToImage()
	if err != nil {
		return Capture{}, fmt.Errorf("convert frame: %w", err)
	}
	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(img.Bounds())
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	}

	return Capture{
		Image:     rgba,
		Face:      w.detectFace(),
		Timestamp: time.Since(w.start),
	}, nil
}

// detectFace returns the largest face in the current frame.
func (w *Webcam) detectFace() *image.Rectangle {
	if w.classifier == nil {
		return nil
	}
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(w.mat, &gray, gocv.ColorBGRToGray)
	gocv.EqualizeHist(gray, &gray)

	faces := w.classifier.DetectMultiScaleWithParams(gray, 1.15, 6, 0, image.Pt(60, 60), image.Pt(0, 0))
	var best *image.Rectangle
	for i := range faces {
		if best == nil || faces[i].Dx()*faces[i].Dy() > best.Dx()*best.Dy() {
			best = &faces[i]
		}
	}
	return best
}

// Close releases the device and model.
func (w *Webcam) Close() error {
	if w.classifier != nil {
		w.classifier.Close()
	}
	w.mat.Close()
	return w.capture.Close()
}
