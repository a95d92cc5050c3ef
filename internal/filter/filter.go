// Package filter smooths the mapped cursor position to suppress tracking
// jitter without adding noticeable lag on fast movements.
package filter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ayusman/mudra/internal/geometry"
)

// Policy selects the smoothing algorithm.
type Policy string

const (
	// PolicyFixed blends toward the target by a constant factor every frame.
	PolicyFixed Policy = "fixed"
	// PolicyAdaptive speeds up as the target moves further away.
	PolicyAdaptive Policy = "adaptive"
)

// Params configures a Smoother.
type Params struct {
	Policy Policy

	// Factor is the fixed-policy smoothing factor in [0,1).
	// 0 follows the target instantly; values near 1 lag heavily.
	Factor float64

	// Base is the adaptive-policy base constant; the resting responsiveness is 1/Base.
	Base float64

	// Saturation is the distance in pixels at which the adaptive policy
	// jumps straight to the target.
	Saturation float64

	// Steps is the number of intermediate positions emitted per frame (>= 1).
	Steps int
}

// DefaultParams returns adaptive smoothing with three sub-steps per frame.
func DefaultParams() Params {
	return Params{
		Policy:     PolicyAdaptive,
		Factor:     0.7,
		Base:       6,
		Saturation: 400,
		Steps:      3,
	}
}

// Validate checks the parameters for the selected policy.
func (p Params) Validate() error {
	switch p.Policy {
	case PolicyFixed:
		if p.Factor < 0 || p.Factor >= 1 {
			return fmt.Errorf("smoothing factor must be in [0,1), got %v", p.Factor)
		}
	case PolicyAdaptive:
		if p.Base < 1 {
			return fmt.Errorf("adaptive base must be >= 1, got %v", p.Base)
		}
		if p.Saturation <= 0 {
			return fmt.Errorf("adaptive saturation must be positive, got %v", p.Saturation)
		}
	default:
		return fmt.Errorf("unknown smoothing policy %q", p.Policy)
	}
	if p.Steps < 1 {
		return fmt.Errorf("steps must be >= 1, got %d", p.Steps)
	}
	return nil
}

// Smoother holds the filter state: the last emitted smoothed position.
type Smoother struct {
	params Params
	prev   r2.Vec
	valid  bool
}

// New creates a Smoother.
func New(params Params) (*Smoother, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Smoother{params: params}, nil
}

// Smooth advances the filter toward target. It returns the new smoothed
// position and the intermediate positions to emit this frame; the last step
// always equals the new position. The first call after New or Reset adopts
// target exactly.
func (s *Smoother) Smooth(target r2.Vec) (r2.Vec, []r2.Vec) {
	if !s.valid {
		s.prev = target
		s.valid = true
		return target, []r2.Vec{target}
	}

	from := s.prev
	next := geometry.Lerp(from, target, s.Alpha(geometry.Distance(from, target)))

	steps := make([]r2.Vec, s.params.Steps)
	for i := 1; i <= s.params.Steps; i++ {
		steps[i-1] = geometry.Lerp(from, next, float64(i)/float64(s.params.Steps))
	}
	steps[len(steps)-1] = next

	s.prev = next
	return next, steps
}

// Alpha returns the fraction of the remaining distance covered in one frame
// for a target dist pixels away.
func (s *Smoother) Alpha(dist float64) float64 {
	switch s.params.Policy {
	case PolicyFixed:
		return 1 - s.params.Factor
	default:
		alpha := 1 / s.params.Base
		boost := math.Min(1, dist/s.params.Saturation)
		return math.Min(1, alpha+boost*(1-alpha))
	}
}

// Reset clears the filter state so the next frame is adopted unsmoothed.
func (s *Smoother) Reset() {
	s.valid = false
	s.prev = r2.Vec{}
}

// Position returns the last smoothed position, if any.
func (s *Smoother) Position() (r2.Vec, bool) {
	return s.prev, s.valid
}

// Params returns the smoother configuration.
func (s *Smoother) Params() Params {
	return s.params
}
