//go:build !gocv

package capture

// WebcamConfig selects the camera and face detector model.
type WebcamConfig struct {
	Device      string
	CascadePath string
	FPS         float64
}

// OpenWebcam reports ErrWebcamUnavailable in builds without gocv.
func OpenWebcam(cfg WebcamConfig) (Source, error) {
	return nil, ErrWebcamUnavailable
}
