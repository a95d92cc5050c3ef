// Package mapper converts normalized landmark positions into absolute screen
// coordinates, optionally through a two-point user calibration.
package mapper

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ayusman/mudra/internal/geometry"
)

// Margins shrink the active region of the camera frame so the user can reach
// the screen edges without moving to the extreme edge of the frame.
type Margins struct {
	// Edge is trimmed from every side, as a fraction of the frame.
	Edge float64
	// Upper is trimmed additionally from the top and bottom.
	Upper float64
}

// Validate checks that the margins leave a non-empty active region.
func (m Margins) Validate() error {
	if m.Edge < 0 || m.Upper < 0 {
		return fmt.Errorf("margins must be non-negative: edge=%v upper=%v", m.Edge, m.Upper)
	}
	if 1-2*m.Edge <= 0 {
		return fmt.Errorf("edge margin %v leaves no horizontal range", m.Edge)
	}
	if 1-2*(m.Edge+m.Upper) <= 0 {
		return fmt.Errorf("edge margin %v and upper margin %v leave no vertical range", m.Edge, m.Upper)
	}
	return nil
}

// Mapper maps normalized frame positions onto a fixed screen.
type Mapper struct {
	screen  geometry.Size
	margins Margins
}

// New creates a Mapper for a screen of the given size.
func New(screen geometry.Size, margins Margins) (*Mapper, error) {
	if screen.Width <= 0 || screen.Height <= 0 {
		return nil, fmt.Errorf("invalid screen size %dx%d", screen.Width, screen.Height)
	}
	if err := margins.Validate(); err != nil {
		return nil, err
	}
	return &Mapper{screen: screen, margins: margins}, nil
}

// Screen returns the screen size the mapper targets.
func (m *Mapper) Screen() geometry.Size {
	return m.screen
}

// Map converts p to a screen position. When cal is complete, p is first
// normalized into the anchors' bounding rectangle.
func (m *Mapper) Map(p r2.Vec, cal *Calibration) geometry.ScreenPoint {
	if cal.Complete() {
		p = normalizeInto(p, cal.anchors[0], cal.anchors[1])
	}
	return geometry.ToScreen(m.applyMargins(p), m.screen)
}

// applyMargins rescales [edge, 1-edge] x [edge+upper, 1-edge-upper] onto the
// unit square.
func (m *Mapper) applyMargins(p r2.Vec) r2.Vec {
	e, u := m.margins.Edge, m.margins.Upper
	return r2.Vec{
		X: geometry.Rescale(p.X, e, 1-e, MinCalibrationExtent),
		Y: geometry.Rescale(p.Y, e+u, 1-e-u, MinCalibrationExtent),
	}
}

// normalizeInto expresses p relative to the rectangle spanned by a and b,
// clamped to the unit square.
func normalizeInto(p, a, b r2.Vec) r2.Vec {
	box, _ := geometry.BoundingBox(a, b, MinCalibrationExtent)
	return r2.Vec{
		X: geometry.Rescale(p.X, box.Min.X, box.Max.X, MinCalibrationExtent),
		Y: geometry.Rescale(p.Y, box.Min.Y, box.Max.Y, MinCalibrationExtent),
	}
}
