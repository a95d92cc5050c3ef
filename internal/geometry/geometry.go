// Package geometry provides the distance and coordinate-mapping primitives
// shared by the mapper, filter and gesture packages.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// ScreenPoint is an absolute screen position in pixels.
type ScreenPoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is a screen or frame size in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Vec returns the point as a float vector.
func (p ScreenPoint) Vec() r2.Vec {
	return r2.Vec{X: float64(p.X), Y: float64(p.Y)}
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b r2.Vec) float64 {
	return r2.Norm(r2.Sub(a, b))
}

// AspectDistance returns the distance between two normalized frame points with
// the X difference scaled by aspect (frame width / frame height). The result is
// expressed in fractions of the frame height, which keeps the metric isotropic
// on non-square frames.
func AspectDistance(a, b r2.Vec, aspect float64) float64 {
	if aspect <= 0 {
		aspect = 1
	}
	d := r2.Sub(a, b)
	d.X *= aspect
	return r2.Norm(d)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 bounds v to [0, 1].
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Lerp linearly interpolates from a to b by t.
func Lerp(a, b r2.Vec, t float64) r2.Vec {
	return r2.Add(a, r2.Scale(t, r2.Sub(b, a)))
}

// Rescale maps v from [lo, hi] onto [0, 1] and clamps the result.
// A span narrower than eps is widened to eps.
func Rescale(v, lo, hi, eps float64) float64 {
	span := hi - lo
	if span < eps {
		span = eps
	}
	return Clamp01((v - lo) / span)
}

// BoundingBox returns the axis-aligned box spanned by a and b. Each axis is
// widened symmetrically so its extent is at least eps. The second return value
// reports whether any axis had to be widened.
func BoundingBox(a, b r2.Vec, eps float64) (r2.Box, bool) {
	box := r2.Box{
		Min: r2.Vec{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y)},
		Max: r2.Vec{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y)},
	}

	degenerate := false
	if w := box.Max.X - box.Min.X; w < eps {
		pad := (eps - w) / 2
		box.Min.X -= pad
		box.Max.X += pad
		degenerate = true
	}
	if h := box.Max.Y - box.Min.Y; h < eps {
		pad := (eps - h) / 2
		box.Min.Y -= pad
		box.Max.Y += pad
		degenerate = true
	}
	return box, degenerate
}

// ToScreen converts a unit-square position to a pixel position on a screen of
// the given size, clamped to [0, size-1] on each axis.
func ToScreen(u r2.Vec, size Size) ScreenPoint {
	return ScreenPoint{
		X: toPixels(u.X, size.Width),
		Y: toPixels(u.Y, size.Height),
	}
}

// ClampPoint rounds a float screen position and clamps it to the screen.
func ClampPoint(v r2.Vec, size Size) ScreenPoint {
	return ScreenPoint{
		X: clampInt(int(math.Round(v.X)), size.Width),
		Y: clampInt(int(math.Round(v.Y)), size.Height),
	}
}

func toPixels(norm float64, span int) int {
	if span <= 1 {
		return 0
	}
	return int(math.Round(Clamp01(norm) * float64(span-1)))
}

func clampInt(v, span int) int {
	if v < 0 || span <= 0 {
		return 0
	}
	if v > span-1 {
		return span - 1
	}
	return v
}
