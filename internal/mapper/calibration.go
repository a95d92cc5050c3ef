package mapper

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// MinCalibrationExtent is the smallest rectangle side, in normalized frame
// units, a calibration may span. Narrower anchor rectangles are widened to it.
const MinCalibrationExtent = 1e-3

// ErrDegenerateCalibration is returned when two calibration anchors are too
// close together on an axis. The calibration is still recorded; the mapping
// uses the epsilon-bounded rectangle.
var ErrDegenerateCalibration = errors.New("degenerate calibration")

// Calibration holds zero, one or two recorded anchors in normalized frame
// space. Once two anchors exist the calibrated mapping is used until Reset.
type Calibration struct {
	anchors []r2.Vec
}

// NewCalibration returns an empty calibration.
func NewCalibration() *Calibration {
	return &Calibration{anchors: make([]r2.Vec, 0, 2)}
}

// Add records an anchor. Adding to a complete calibration is a no-op and
// returns false. The error is non-nil only for ErrDegenerateCalibration.
func (c *Calibration) Add(p r2.Vec) (bool, error) {
	if c.Complete() {
		return false, nil
	}
	c.anchors = append(c.anchors, p)
	if !c.Complete() {
		return true, nil
	}
	return true, c.check()
}

// Set replaces the anchors with a and b, for example from a stored profile.
func (c *Calibration) Set(a, b r2.Vec) error {
	c.anchors = append(c.anchors[:0], a, b)
	return c.check()
}

// Reset discards all anchors.
func (c *Calibration) Reset() {
	c.anchors = c.anchors[:0]
}

// Len returns the number of recorded anchors.
func (c *Calibration) Len() int {
	if c == nil {
		return 0
	}
	return len(c.anchors)
}

// Complete reports whether both anchors have been recorded.
func (c *Calibration) Complete() bool {
	return c.Len() == 2
}

// Anchors returns a copy of the recorded anchors.
func (c *Calibration) Anchors() []r2.Vec {
	if c == nil {
		return nil
	}
	out := make([]r2.Vec, len(c.anchors))
	copy(out, c.anchors)
	return out
}

func (c *Calibration) check() error {
	a, b := c.anchors[0], c.anchors[1]
	var axes []string
	if math.Abs(a.X-b.X) < MinCalibrationExtent {
		axes = append(axes, "x")
	}
	if math.Abs(a.Y-b.Y) < MinCalibrationExtent {
		axes = append(axes, "y")
	}
	if len(axes) == 0 {
		return nil
	}
	return fmt.Errorf("%w: anchors %v and %v collapse on %v", ErrDegenerateCalibration, a, b, axes)
}
