package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ayusman/mudra/internal/geometry"
)

func newSmoother(t *testing.T, p Params) *Smoother {
	t.Helper()
	s, err := New(p)
	require.NoError(t, err)
	return s
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Params)
		wantErr bool
	}{
		{"defaults", func(p *Params) {}, false},
		{"fixed ok", func(p *Params) { p.Policy = PolicyFixed; p.Factor = 0 }, false},
		{"fixed factor one", func(p *Params) { p.Policy = PolicyFixed; p.Factor = 1 }, true},
		{"fixed factor negative", func(p *Params) { p.Policy = PolicyFixed; p.Factor = -0.1 }, true},
		{"adaptive base below one", func(p *Params) { p.Base = 0.5 }, true},
		{"adaptive zero saturation", func(p *Params) { p.Saturation = 0 }, true},
		{"zero steps", func(p *Params) { p.Steps = 0 }, true},
		{"unknown policy", func(p *Params) { p.Policy = "kalman" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSmooth_FirstFrameAdoptsTarget(t *testing.T) {
	s := newSmoother(t, DefaultParams())

	target := r2.Vec{X: 800, Y: 450}
	got, steps := s.Smooth(target)

	assert.Equal(t, target, got)
	assert.Equal(t, []r2.Vec{target}, steps)

	pos, ok := s.Position()
	assert.True(t, ok)
	assert.Equal(t, target, pos)
}

func TestSmooth_Fixed(t *testing.T) {
	p := DefaultParams()
	p.Policy = PolicyFixed
	p.Factor = 0.75
	p.Steps = 1
	s := newSmoother(t, p)

	s.Smooth(r2.Vec{X: 0, Y: 0})
	got, _ := s.Smooth(r2.Vec{X: 100, Y: 40})

	assert.InDelta(t, 25, got.X, 1e-9)
	assert.InDelta(t, 10, got.Y, 1e-9)
}

func TestSmooth_FixedZeroFactorIsInstant(t *testing.T) {
	p := DefaultParams()
	p.Policy = PolicyFixed
	p.Factor = 0
	s := newSmoother(t, p)

	s.Smooth(r2.Vec{X: 10, Y: 10})
	got, _ := s.Smooth(r2.Vec{X: 300, Y: 200})
	assert.Equal(t, r2.Vec{X: 300, Y: 200}, got)
}

func TestAlpha_Adaptive(t *testing.T) {
	s := newSmoother(t, DefaultParams()) // base 6, saturation 400

	assert.InDelta(t, 1.0/6, s.Alpha(0), 1e-12)
	assert.InDelta(t, 1.0/6+0.5*(5.0/6), s.Alpha(200), 1e-12)
	assert.InDelta(t, 1.0, s.Alpha(400), 1e-12)
	assert.InDelta(t, 1.0, s.Alpha(5000), 1e-12)

	// Alpha grows with distance.
	prev := 0.0
	for d := 0.0; d <= 500; d += 25 {
		a := s.Alpha(d)
		assert.GreaterOrEqual(t, a, prev)
		prev = a
	}
}

func TestSmooth_AdaptiveLargeJumpIsInstant(t *testing.T) {
	p := DefaultParams()
	p.Steps = 1
	s := newSmoother(t, p)

	s.Smooth(r2.Vec{X: 0, Y: 0})
	got, _ := s.Smooth(r2.Vec{X: 1200, Y: 0})
	assert.Equal(t, r2.Vec{X: 1200, Y: 0}, got)
}

func TestSmooth_ConvergesToFixedPoint(t *testing.T) {
	screen := geometry.Size{Width: 1920, Height: 1080}
	for _, policy := range []Policy{PolicyFixed, PolicyAdaptive} {
		t.Run(string(policy), func(t *testing.T) {
			p := DefaultParams()
			p.Policy = policy
			s := newSmoother(t, p)

			s.Smooth(r2.Vec{X: 100, Y: 100})
			target := r2.Vec{X: 130, Y: 90}

			var last geometry.ScreenPoint
			for i := 0; i < 200; i++ {
				got, _ := s.Smooth(target)
				last = geometry.ClampPoint(got, screen)
			}
			assert.Equal(t, geometry.ScreenPoint{X: 130, Y: 90}, last)

			// Once converged the reported position stays put.
			for i := 0; i < 10; i++ {
				got, _ := s.Smooth(target)
				assert.Equal(t, last, geometry.ClampPoint(got, screen))
			}

			// An exact fixed point does not drift at all.
			s.Reset()
			s.Smooth(target)
			for i := 0; i < 10; i++ {
				got, steps := s.Smooth(target)
				assert.Equal(t, target, got)
				for _, st := range steps {
					assert.Equal(t, target, st)
				}
			}
		})
	}
}

func TestSmooth_SubStepContinuity(t *testing.T) {
	p := DefaultParams()
	p.Steps = 4
	s := newSmoother(t, p)

	from := r2.Vec{X: 100, Y: 100}
	s.Smooth(from)

	target := r2.Vec{X: 1500, Y: 900}
	next, steps := s.Smooth(target)
	require.Len(t, steps, 4)
	assert.Equal(t, next, steps[len(steps)-1])

	total := geometry.Distance(from, next)
	require.Greater(t, total, 0.0)

	// No sub-step jumps further than total / steps.
	prev := from
	for _, st := range steps {
		d := geometry.Distance(prev, st)
		assert.LessOrEqual(t, d, total/4+1e-9)
		prev = st
	}

	// The smoothed displacement is bounded by alpha.
	alpha := s.Alpha(geometry.Distance(from, target))
	assert.InDelta(t, alpha*geometry.Distance(from, target), total, 1e-6)
}

func TestReset_ClearsState(t *testing.T) {
	s := newSmoother(t, DefaultParams())

	s.Smooth(r2.Vec{X: 10, Y: 10})
	s.Smooth(r2.Vec{X: 20, Y: 20})
	s.Reset()

	_, ok := s.Position()
	assert.False(t, ok)

	// After a gap the new position is adopted without smoothing from the stale one.
	got, steps := s.Smooth(r2.Vec{X: 1000, Y: 700})
	assert.Equal(t, r2.Vec{X: 1000, Y: 700}, got)
	assert.Len(t, steps, 1)
	assert.False(t, math.IsNaN(got.X))
}
