// Package gesture classifies hand landmarks into the discrete gesture levels
// that drive pointer actions.
package gesture

import (
	"fmt"
	"strings"
	"time"

	"github.com/ayusman/mudra/internal/detector"
)

// Level is the gesture reported for a frame.
type Level int

const (
	// Open means no click gesture is held.
	Open Level = iota
	// Pinching means the thumb and index tips are touching.
	Pinching
	// Fisted means enough fingers are curled.
	Fisted
)

func (l Level) String() string {
	switch l {
	case Open:
		return "open"
	case Pinching:
		return "pinching"
	case Fisted:
		return "fisted"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Mode selects which gesture produces clicks.
type Mode string

const (
	// ModePinch clicks on a thumb-index pinch.
	ModePinch Mode = "pinch"
	// ModeFist clicks on a closed fist.
	ModeFist Mode = "fist"
)

// ParseMode parses a click mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePinch:
		return ModePinch, nil
	case ModeFist:
		return ModeFist, nil
	default:
		return "", fmt.Errorf("unknown click mode %q (want pinch or fist)", s)
	}
}

// Toggle returns the other click mode.
func (m Mode) Toggle() Mode {
	if m == ModeFist {
		return ModePinch
	}
	return ModeFist
}

// ClickLevel returns the level that counts as the click gesture in this mode.
func (m Mode) ClickLevel() Level {
	if m == ModeFist {
		return Fisted
	}
	return Pinching
}

// Thresholds configures the classifier. Distances are in metric units (see
// PixelsToUnits).
type Thresholds struct {
	// Pinch is the thumb-index distance below which the hand is pinching.
	Pinch float64
	// Fold is the tip-PIP distance below which a finger counts as folded.
	Fold float64
	// FoldMin is how many folded fingers make a fist (1-4).
	FoldMin int
	// Debounce is the number of extra consecutive frames a new gesture must
	// hold before it is reported. Releases are reported immediately.
	Debounce int
	// FoldDrag reports Fisted in pinch mode so a fist can drag.
	FoldDrag bool
	// Aspect is the camera frame width divided by its height.
	Aspect float64

	// PinchPx and FoldPx, when positive, give the thresholds in camera
	// pixels. They replace Pinch and Fold once the frame size is known.
	PinchPx float64
	FoldPx  float64
}

// ForFrame returns the thresholds resolved for frames of width x height
// pixels: the aspect follows the frame and pixel thresholds are converted
// to metric units. A non-positive size leaves t unchanged.
func (t Thresholds) ForFrame(width, height int) Thresholds {
	if width <= 0 || height <= 0 {
		return t
	}
	t.Aspect = float64(width) / float64(height)
	if t.PinchPx > 0 {
		t.Pinch = PixelsToUnits(t.PinchPx, height)
	}
	if t.FoldPx > 0 {
		t.Fold = PixelsToUnits(t.FoldPx, height)
	}
	return t
}

// DefaultThresholds returns thresholds tuned for a 640x480 camera.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Pinch:    0.05,
		Fold:     0.06,
		FoldMin:  4,
		Debounce: 1,
		Aspect:   4.0 / 3.0,
	}
}

// Validate checks the thresholds.
func (t Thresholds) Validate() error {
	if t.Pinch <= 0 {
		return fmt.Errorf("pinch threshold must be positive, got %v", t.Pinch)
	}
	if t.Fold <= 0 {
		return fmt.Errorf("fold threshold must be positive, got %v", t.Fold)
	}
	if t.FoldMin < 1 || t.FoldMin > len(detector.Fingers) {
		return fmt.Errorf("fold minimum must be in [1,%d], got %d", len(detector.Fingers), t.FoldMin)
	}
	if t.Debounce < 0 {
		return fmt.Errorf("debounce frames must be >= 0, got %d", t.Debounce)
	}
	if t.Aspect <= 0 {
		return fmt.Errorf("aspect must be positive, got %v", t.Aspect)
	}
	if t.PinchPx < 0 || t.FoldPx < 0 {
		return fmt.Errorf("pixel thresholds must not be negative, got %v and %v", t.PinchPx, t.FoldPx)
	}
	return nil
}

// Reading is the classifier output for one frame.
type Reading struct {
	// Level is the debounced gesture level.
	Level Level `json:"level"`
	// Since is when Level was first reported.
	Since time.Time `json:"since"`
	// Candidate is the raw, undebounced level for this frame.
	Candidate Level `json:"candidate"`
	// PinchDistance is the thumb-index distance in metric units.
	PinchDistance float64 `json:"pinch_distance"`
	// Folded is the number of folded fingers.
	Folded int `json:"folded"`
}

// Classifier turns landmark frames into debounced gesture levels. It keeps
// the gesture state between frames and must be used from a single goroutine.
type Classifier struct {
	thresholds Thresholds
	mode       Mode

	level   Level
	since   time.Time
	pending Level
	seen    int
}

// NewClassifier creates a Classifier in the given click mode.
func NewClassifier(t Thresholds, mode Mode) (*Classifier, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	return &Classifier{thresholds: t, mode: mode}, nil
}

// Mode returns the active click mode.
func (c *Classifier) Mode() Mode {
	return c.mode
}

// SetMode switches the click mode and drops any held gesture.
func (c *Classifier) SetMode(m Mode) {
	c.mode = m
	c.Reset()
}

// Thresholds returns the active thresholds.
func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// SetFrameSize resolves the thresholds for the size of the frames the camera
// actually delivers. The gesture state is kept.
func (c *Classifier) SetFrameSize(width, height int) {
	c.thresholds = c.thresholds.ForFrame(width, height)
}

// Reset returns the classifier to Open, for example after tracking is lost.
func (c *Classifier) Reset() {
	c.level = Open
	c.since = time.Time{}
	c.pending = Open
	c.seen = 0
}

// Level returns the last reported level.
func (c *Classifier) Level() Level {
	return c.level
}

// Classify evaluates one frame.
func (c *Classifier) Classify(h *detector.HandLandmarks, now time.Time) Reading {
	r := Reading{Folded: FoldedFingers(h, c.thresholds.Aspect, c.thresholds.Fold)}
	fisted := r.Folded >= c.thresholds.FoldMin

	switch c.mode {
	case ModeFist:
		if fisted {
			r.Candidate = Fisted
		}
	default:
		r.PinchDistance = PinchDistance(h, c.thresholds.Aspect)
		switch {
		case r.PinchDistance < c.thresholds.Pinch:
			r.Candidate = Pinching
		case c.thresholds.FoldDrag && fisted:
			r.Candidate = Fisted
		}
	}

	c.advance(r.Candidate, now)
	r.Level = c.level
	r.Since = c.since
	return r
}

// advance applies the debounce rule: a held gesture ends as soon as its
// metric crosses back, a new gesture is accepted only after it has been the
// candidate for Debounce+1 consecutive frames.
func (c *Classifier) advance(candidate Level, now time.Time) {
	if candidate == c.level {
		c.pending, c.seen = candidate, 0
		return
	}

	if c.level != Open {
		c.level = Open
		c.since = now
	}
	if candidate == Open {
		c.pending, c.seen = Open, 0
		return
	}

	if c.pending != candidate {
		c.pending, c.seen = candidate, 0
	}
	c.seen++
	if c.seen > c.thresholds.Debounce {
		c.level = candidate
		c.since = now
		c.pending, c.seen = candidate, 0
	}
}
