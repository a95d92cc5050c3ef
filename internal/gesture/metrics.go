package gesture

import (
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/geometry"
)

// All gesture metrics are measured in aspect-corrected normalized frame units:
// distances are fractions of the frame height, with horizontal offsets scaled
// by the frame aspect ratio (width / height). A threshold given in camera
// pixels converts with PixelsToUnits.

// PixelsToUnits converts a pixel distance on a frame of the given height into
// gesture metric units.
func PixelsToUnits(px float64, frameHeight int) float64 {
	if frameHeight <= 0 {
		return 0
	}
	return px / float64(frameHeight)
}

// UnitsToPixels is the inverse of PixelsToUnits.
func UnitsToPixels(units float64, frameHeight int) float64 {
	return units * float64(frameHeight)
}

// PinchDistance returns the distance between the thumb tip and the index tip.
func PinchDistance(h *detector.HandLandmarks, aspect float64) float64 {
	return geometry.AspectDistance(h.Point(detector.ThumbTip), h.Point(detector.IndexTip), aspect)
}

// FoldedFingers counts the non-thumb fingers whose tip is closer than
// threshold to the finger's own PIP joint.
func FoldedFingers(h *detector.HandLandmarks, aspect, threshold float64) int {
	n := 0
	for _, f := range detector.Fingers {
		if geometry.AspectDistance(h.Point(f.Tip), h.Point(f.PIP), aspect) < threshold {
			n++
		}
	}
	return n
}
