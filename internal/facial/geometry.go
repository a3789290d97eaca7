// Package facial turns face-mesh landmarks into eye and mouth aspect ratios
// and counts blinks and yawns from their time series.
package facial

import (
	"errors"
	"fmt"
	"math"
)

// ErrTooFewLandmarks is returned when a landmark set does not cover the
// eye and mouth indices.
var ErrTooFewLandmarks = errors.New("too few landmarks")

// Point is a normalised landmark coordinate.
type Point struct {
	X float64 `msgpack:"x" json:"x"`
	Y float64 `msgpack:"y" json:"y"`
	Z float64 `msgpack:"z" json:"z"`
}

// Face-mesh indices: eye corners, upper lid pair, lower lid pair.
var (
	LeftEye  = [6]int{33, 160, 158, 133, 153, 144}
	RightEye = [6]int{362, 385, 387, 263, 373, 380}
	// Left corner, right corner, top lip, bottom lip.
	Mouth = [4]int{61, 291, 0, 17}
)

// MeshSize is the minimum landmark count FromLandmarks accepts.
const MeshSize = 388

// Metrics are the per-frame aspect ratios.
type Metrics struct {
	EAR float64 `msgpack:"ear" json:"ear"`
	MAR float64 `msgpack:"mar" json:"mar"`
}

func dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// EAR is (|p2-p6| + |p3-p5|) / (2|p1-p4|); zero for a degenerate eye.
func EAR(eye [6]Point) float64 {
	horizontal := dist(eye[0], eye[3])
	if horizontal == 0 {
		return 0
	}
	return (dist(eye[1], eye[5]) + dist(eye[2], eye[4])) / (2 * horizontal)
}

// MAR is the lip opening over the mouth width; zero for a degenerate mouth.
func MAR(mouth [4]Point) float64 {
	horizontal := dist(mouth[0], mouth[1])
	if horizontal == 0 {
		return 0
	}
	return dist(mouth[2], mouth[3]) / horizontal
}

// FromLandmarks computes the mean EAR of both eyes and the MAR from a
// face-mesh landmark set.
func FromLandmarks(landmarks []Point) (Metrics, error) {
	if len(landmarks) < MeshSize {
		return Metrics{}, fmt.Errorf("%w: got %d, need %d", ErrTooFewLandmarks, len(landmarks), MeshSize)
	}

	var left, right [6]Point
	for i := range LeftEye {
		left[i] = landmarks[LeftEye[i]]
		right[i] = landmarks[RightEye[i]]
	}
	var mouth [4]Point
	for i, idx := range Mouth {
		mouth[i] = landmarks[idx]
	}

	return Metrics{
		EAR: (EAR(left) + EAR(right)) / 2,
		MAR: MAR(mouth),
	}, nil
}

// EstimateDrowsiness is a local 0-1 drowsiness estimate for when no external
// assessment is available.
func EstimateDrowsiness(ear, mar float64) float64 {
	score := (1 - ear) * 0.5
	if mar > 0.5 {
		score += 0.3
	}
	return math.Max(0, math.Min(1, score))
}
