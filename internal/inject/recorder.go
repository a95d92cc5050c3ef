package inject

import (
	"fmt"
	"sync"
)

// Call is one action seen by a Recorder.
type Call struct {
	Action string
	X, Y   int
}

func (c Call) String() string {
	if c.Action == "move" {
		return fmt.Sprintf("move(%d,%d)", c.X, c.Y)
	}
	return c.Action
}

// Recorder is an Injector that records calls, for tests and dry runs. It can
// be told to refuse actions to simulate missing permissions.
type Recorder struct {
	mu     sync.Mutex
	calls  []Call
	deny   map[string]bool
	closed bool
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{deny: make(map[string]bool)}
}

// Deny makes the given actions ("move", "click", "double_click",
// "mouse_down", "mouse_up") fail with ErrInjectionDenied.
func (r *Recorder) Deny(actions ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range actions {
		r.deny[a] = true
	}
}

// Allow clears all denials.
func (r *Recorder) Allow() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deny = make(map[string]bool)
}

// Calls returns a copy of the accepted calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Actions returns the non-move actions in order.
func (r *Recorder) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.calls {
		if c.Action != "move" {
			out = append(out, c.Action)
		}
	}
	return out
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Recorder) record(action string, x, y int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deny[action] {
		return fmt.Errorf("%w: %s refused", ErrInjectionDenied, action)
	}
	r.calls = append(r.calls, Call{Action: action, X: x, Y: y})
	return nil
}

func (r *Recorder) Move(x, y int) error { return r.record("move", x, y) }
func (r *Recorder) Click() error        { return r.record("click", 0, 0) }
func (r *Recorder) DoubleClick() error  { return r.record("double_click", 0, 0) }
func (r *Recorder) MouseDown() error    { return r.record("mouse_down", 0, 0) }
func (r *Recorder) MouseUp() error      { return r.record("mouse_up", 0, 0) }

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
