// Package detector provides hand detection interfaces and landmark types.
package detector

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Finger pairs a fingertip with its own PIP joint.
type Finger struct {
	Name string
	Tip  int
	PIP  int
}

// Fingers lists the four non-thumb fingers used by fold detection.
var Fingers = [4]Finger{
	{Name: "index", Tip: IndexTip, PIP: IndexPIP},
	{Name: "middle", Tip: MiddleTip, PIP: MiddlePIP},
	{Name: "ring", Tip: RingTip, PIP: RingPIP},
	{Name: "pinky", Tip: PinkyTip, PIP: PinkyPIP},
}

// Point3D represents a landmark position. X and Y are normalized to the camera
// frame ([0,1] from the top-left corner); Z is relative depth as reported by
// the landmark model and is not used for pointer control.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks is one frame's worth of landmarks for a single hand.
// It is treated as immutable once produced by a Detector.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Point returns landmark i projected onto the frame plane.
func (h *HandLandmarks) Point(i int) r2.Vec {
	p := h.Points[i]
	return r2.Vec{X: p.X, Y: p.Y}
}

// Validate reports landmarks that are not finite numbers. Detectors occasionally
// emit NaN for occluded joints and such frames must not reach the mapper.
func (h *HandLandmarks) Validate() error {
	if h == nil {
		return fmt.Errorf("nil landmarks")
	}
	for i, p := range h.Points {
		if !finite(p.X) || !finite(p.Y) {
			return fmt.Errorf("landmark %d is not finite: (%v, %v)", i, p.X, p.Y)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
