package pointer

import (
	"fmt"
	"time"

	"github.com/ayusman/mudra/internal/geometry"
	"github.com/ayusman/mudra/internal/gesture"
)

// State is the pointer session state.
type State int

const (
	Idle State = iota
	// PinchHeld means the click gesture is held and the hold timer is running.
	PinchHeld
	Dragging
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PinchHeld:
		return "pinch_held"
	case Dragging:
		return "dragging"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Params holds the timing discipline of a session.
type Params struct {
	// Mode decides which gesture level clicks. Any other non-open level is
	// treated as a drag-only gesture.
	Mode gesture.Mode

	ClickCooldown   time.Duration
	TapMaxDuration  time.Duration
	DoubleClickTime time.Duration
	HoldTime        time.Duration

	// TapMaxMove is the largest cursor displacement in pixels that still
	// counts as a tap.
	TapMaxMove float64

	// Drag enables pinch-and-hold dragging.
	Drag bool
}

// DefaultParams returns the default pointer timings.
func DefaultParams() Params {
	return Params{
		Mode:            gesture.ModePinch,
		ClickCooldown:   350 * time.Millisecond,
		TapMaxDuration:  200 * time.Millisecond,
		DoubleClickTime: 400 * time.Millisecond,
		HoldTime:        500 * time.Millisecond,
		TapMaxMove:      8,
		Drag:            true,
	}
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if _, err := gesture.ParseMode(string(p.Mode)); err != nil {
		return err
	}
	for name, d := range map[string]time.Duration{
		"click cooldown":    p.ClickCooldown,
		"tap max duration":  p.TapMaxDuration,
		"double click time": p.DoubleClickTime,
		"hold time":         p.HoldTime,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %v", name, d)
		}
	}
	if p.TapMaxMove < 0 {
		return fmt.Errorf("tap max move must not be negative, got %v", p.TapMaxMove)
	}
	return nil
}

// Observation is the per-frame input to a Session.
type Observation struct {
	Time time.Time
	// Tracked is false when no hand was detected this frame.
	Tracked bool
	// Position is the filtered cursor position.
	Position geometry.ScreenPoint
	Level    gesture.Level
}

// Session is the pointer action state machine. It is owned by the frame
// loop and is not safe for concurrent use.
type Session struct {
	params Params
	state  State

	held       gesture.Level
	pinchStart time.Time
	startPos   geometry.ScreenPoint
	lastPos    geometry.ScreenPoint

	clicked   bool
	lastClick time.Time
	lastKind  Kind
}

// NewSession creates an idle session.
func NewSession(p Params) (*Session, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Session{params: p}, nil
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Dragging reports whether the primary button is held down.
func (s *Session) Dragging() bool {
	return s.state == Dragging
}

// Mode returns the click mode.
func (s *Session) Mode() gesture.Mode {
	return s.params.Mode
}

// SetMode switches the click mode. Any held gesture is abandoned and an
// open drag is ended at the last known position.
func (s *Session) SetMode(m gesture.Mode, now time.Time) []Intent {
	out := s.Abort(now)
	s.params.Mode = m
	return out
}

// Update advances the machine by one frame and returns the intents it emits.
func (s *Session) Update(obs Observation) []Intent {
	if !obs.Tracked {
		return s.Abort(obs.Time)
	}

	now, pos := obs.Time, obs.Position
	defer func() { s.lastPos = pos }()

	switch s.state {
	case Idle:
		return s.onset(obs)

	case PinchHeld:
		if obs.Level == s.held {
			if s.params.Drag && now.Sub(s.pinchStart) >= s.params.HoldTime {
				s.state = Dragging
				return []Intent{{Kind: DragStart, Position: pos}}
			}
			return nil
		}
		s.state = Idle
		if !s.isTap(now, pos) {
			return nil
		}
		return s.click(now, pos)

	case Dragging:
		if obs.Level == s.held {
			return []Intent{{Kind: DragMove, Position: pos}}
		}
		s.state = Idle
		return []Intent{{Kind: DragEnd, Position: pos}}
	}
	return nil
}

// Abort returns the session to Idle, ending an open drag at the last known
// position. It is used when tracking is lost or the injector fails.
func (s *Session) Abort(now time.Time) []Intent {
	prev := s.state
	s.state = Idle
	s.held = gesture.Open
	if prev == Dragging {
		return []Intent{{Kind: DragEnd, Position: s.lastPos}}
	}
	return nil
}

// Close ends the session. It must be called before teardown so an open drag
// never leaves the button down.
func (s *Session) Close(now time.Time) []Intent {
	return s.Abort(now)
}

func (s *Session) onset(obs Observation) []Intent {
	switch {
	case obs.Level == gesture.Open:
		return nil
	case obs.Level == s.params.Mode.ClickLevel():
		s.state = PinchHeld
		s.held = obs.Level
		s.pinchStart = obs.Time
		s.startPos = obs.Position
		return nil
	case s.params.Drag:
		// Drag-only gesture (fold drag in pinch mode) grabs immediately.
		s.state = Dragging
		s.held = obs.Level
		s.pinchStart = obs.Time
		s.startPos = obs.Position
		return []Intent{{Kind: DragStart, Position: obs.Position}}
	}
	return nil
}

func (s *Session) isTap(now time.Time, pos geometry.ScreenPoint) bool {
	held := now.Sub(s.pinchStart)
	if held >= s.params.HoldTime || held > s.params.TapMaxDuration {
		return false
	}
	return geometry.Distance(s.startPos.Vec(), pos.Vec()) < s.params.TapMaxMove
}

func (s *Session) click(now time.Time, pos geometry.ScreenPoint) []Intent {
	since := now.Sub(s.lastClick)
	if s.clicked && since <= s.params.ClickCooldown {
		return nil
	}

	kind := Click
	if s.clicked && s.lastKind == Click && since <= s.params.DoubleClickTime {
		kind = DoubleClick
	}
	s.clicked = true
	s.lastClick = now
	s.lastKind = kind
	return []Intent{{Kind: kind, Position: pos}}
}
