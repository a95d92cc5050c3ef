package mapper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ayusman/mudra/internal/geometry"
)

var testScreen = geometry.Size{Width: 1920, Height: 1080}

func newTestMapper(t *testing.T, margins Margins) *Mapper {
	t.Helper()
	m, err := New(testScreen, margins)
	require.NoError(t, err)
	return m
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		screen  geometry.Size
		margins Margins
		wantErr bool
	}{
		{"valid", testScreen, Margins{Edge: 0.1, Upper: 0.05}, false},
		{"zero margins", testScreen, Margins{}, false},
		{"empty screen", geometry.Size{}, Margins{}, true},
		{"negative edge", testScreen, Margins{Edge: -0.1}, true},
		{"edge consumes frame", testScreen, Margins{Edge: 0.5}, true},
		{"upper consumes frame", testScreen, Margins{Edge: 0.2, Upper: 0.3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.screen, tt.margins)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMap_Uncalibrated(t *testing.T) {
	m := newTestMapper(t, Margins{Edge: 0.1, Upper: 0.05})
	cal := NewCalibration()

	// Active region corners hit the screen corners.
	assert.Equal(t, geometry.ScreenPoint{X: 0, Y: 0}, m.Map(r2.Vec{X: 0.1, Y: 0.15}, cal))
	assert.Equal(t, geometry.ScreenPoint{X: 1919, Y: 1079}, m.Map(r2.Vec{X: 0.9, Y: 0.85}, cal))

	// Points outside the active region clamp to the screen.
	assert.Equal(t, geometry.ScreenPoint{X: 0, Y: 1079}, m.Map(r2.Vec{X: 0.01, Y: 0.99}, cal))

	// Center maps to the screen center.
	center := m.Map(r2.Vec{X: 0.5, Y: 0.5}, cal)
	assert.InDelta(t, 959.5, center.X, 0.5)
	assert.InDelta(t, 539.5, center.Y, 0.5)
}

func TestMap_BoundsAndMonotonic(t *testing.T) {
	margins := Margins{Edge: 0.1, Upper: 0.05}
	m := newTestMapper(t, margins)
	cal := NewCalibration()

	const steps = 40
	lo := r2.Vec{X: margins.Edge, Y: margins.Edge + margins.Upper}
	hi := r2.Vec{X: 1 - margins.Edge, Y: 1 - margins.Edge - margins.Upper}

	for _, fixed := range []float64{0, 0.3, 0.7, 1} {
		prevX, prevY := -1, -1
		for i := 0; i <= steps; i++ {
			f := float64(i) / steps
			x := lo.X + (hi.X-lo.X)*f
			y := lo.Y + (hi.Y-lo.Y)*f

			px := m.Map(r2.Vec{X: x, Y: lo.Y + (hi.Y-lo.Y)*fixed}, cal)
			py := m.Map(r2.Vec{X: lo.X + (hi.X-lo.X)*fixed, Y: y}, cal)

			for _, p := range []geometry.ScreenPoint{px, py} {
				assert.GreaterOrEqual(t, p.X, 0)
				assert.GreaterOrEqual(t, p.Y, 0)
				assert.Less(t, p.X, testScreen.Width)
				assert.Less(t, p.Y, testScreen.Height)
			}

			assert.GreaterOrEqual(t, px.X, prevX, "x must be monotonic")
			assert.GreaterOrEqual(t, py.Y, prevY, "y must be monotonic")
			prevX, prevY = px.X, py.Y
		}
	}
}

func TestMap_CalibrationRoundTrip(t *testing.T) {
	m := newTestMapper(t, Margins{Edge: 0.1, Upper: 0.05})
	cal := NewCalibration()

	added, err := cal.Add(r2.Vec{X: 0.2, Y: 0.2})
	require.NoError(t, err)
	require.True(t, added)
	added, err = cal.Add(r2.Vec{X: 0.8, Y: 0.8})
	require.NoError(t, err)
	require.True(t, added)
	require.True(t, cal.Complete())

	got := m.Map(r2.Vec{X: 0.5, Y: 0.5}, cal)
	assert.InDelta(t, (testScreen.Width-1)/2.0, float64(got.X), 1)
	assert.InDelta(t, (testScreen.Height-1)/2.0, float64(got.Y), 1)
}

func TestMap_CalibrationAnchorOrderDoesNotMatter(t *testing.T) {
	m := newTestMapper(t, Margins{})

	a := NewCalibration()
	require.NoError(t, a.Set(r2.Vec{X: 0.3, Y: 0.7}, r2.Vec{X: 0.6, Y: 0.2}))
	b := NewCalibration()
	require.NoError(t, b.Set(r2.Vec{X: 0.6, Y: 0.2}, r2.Vec{X: 0.3, Y: 0.7}))

	for _, p := range []r2.Vec{{X: 0.3, Y: 0.2}, {X: 0.45, Y: 0.5}, {X: 0.9, Y: 0.9}} {
		assert.Equal(t, a.Len(), b.Len())
		assert.Equal(t, m.Map(p, a), m.Map(p, b))
	}

	// The anchor rectangle spans the full screen.
	assert.Equal(t, geometry.ScreenPoint{X: 0, Y: 0}, m.Map(r2.Vec{X: 0.3, Y: 0.2}, a))
	assert.Equal(t, geometry.ScreenPoint{X: 1919, Y: 1079}, m.Map(r2.Vec{X: 0.6, Y: 0.7}, a))
}

func TestCalibration_Degenerate(t *testing.T) {
	m := newTestMapper(t, Margins{Edge: 0.1, Upper: 0.05})
	cal := NewCalibration()

	_, err := cal.Add(r2.Vec{X: 0.5, Y: 0.5})
	require.NoError(t, err)
	_, err = cal.Add(r2.Vec{X: 0.5, Y: 0.5})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDegenerateCalibration))
	assert.True(t, cal.Complete(), "degenerate calibration is still recorded")

	// Mapping stays finite and on screen.
	for _, p := range []r2.Vec{{X: 0, Y: 0}, {X: 0.5, Y: 0.5}, {X: 1, Y: 1}} {
		got := m.Map(p, cal)
		assert.GreaterOrEqual(t, got.X, 0)
		assert.Less(t, got.X, testScreen.Width)
		assert.GreaterOrEqual(t, got.Y, 0)
		assert.Less(t, got.Y, testScreen.Height)
	}
}

func TestCalibration_Lifecycle(t *testing.T) {
	cal := NewCalibration()
	assert.Equal(t, 0, cal.Len())
	assert.False(t, cal.Complete())

	_, _ = cal.Add(r2.Vec{X: 0.1, Y: 0.1})
	assert.Equal(t, 1, cal.Len())
	assert.False(t, cal.Complete())

	_, _ = cal.Add(r2.Vec{X: 0.9, Y: 0.9})
	assert.True(t, cal.Complete())

	added, err := cal.Add(r2.Vec{X: 0.4, Y: 0.4})
	assert.NoError(t, err)
	assert.False(t, added, "third anchor must be ignored")
	assert.Equal(t, []r2.Vec{{X: 0.1, Y: 0.1}, {X: 0.9, Y: 0.9}}, cal.Anchors())

	cal.Reset()
	assert.Equal(t, 0, cal.Len())

	var nilCal *Calibration
	assert.False(t, nilCal.Complete())
	assert.Nil(t, nilCal.Anchors())
}
