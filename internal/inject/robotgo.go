package inject

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/go-vgo/robotgo"

	"github.com/ayusman/mudra/internal/geometry"
)

const button = "left"

// RobotInjector drives the system pointer through robotgo.
type RobotInjector struct {
	mu   sync.Mutex
	down bool
}

// NewRobotInjector creates a robotgo-backed Injector.
func NewRobotInjector() *RobotInjector {
	return &RobotInjector{}
}

// ScreenSize reports the main display size in pixels.
func ScreenSize() (geometry.Size, error) {
	w, h := robotgo.GetScreenSize()
	if w <= 0 || h <= 0 {
		return geometry.Size{}, fmt.Errorf("%w: screen size unavailable (%dx%d)", ErrInjectionDenied, w, h)
	}
	return geometry.Size{Width: w, Height: h}, nil
}

func (r *RobotInjector) Move(x, y int) error {
	robotgo.Move(x, y)
	return nil
}

func (r *RobotInjector) Click() error {
	robotgo.Click(button)
	return nil
}

// DoubleClick sends the second click of a pair as a single press. macOS
// only reports a double-click when the event carries a click count of two,
// which robotgo sets for its double flag; X11 and Windows pair presses by
// timing, so a plain click completes the pair there.
func (r *RobotInjector) DoubleClick() error {
	if tagsClickCount(runtime.GOOS) {
		robotgo.Click(button, true)
	} else {
		robotgo.Click(button)
	}
	return nil
}

// tagsClickCount reports whether the OS needs the click count on the event.
// robotgo's double flag only sets the count on darwin; elsewhere it sends
// two presses.
func tagsClickCount(goos string) bool {
	return goos == "darwin"
}

func (r *RobotInjector) MouseDown() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := robotgo.MouseDown(button); err != nil {
		return fmt.Errorf("%w: %v", ErrInjectionDenied, err)
	}
	r.down = true
	return nil
}

func (r *RobotInjector) MouseUp() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := robotgo.MouseUp(button); err != nil {
		return fmt.Errorf("%w: %v", ErrInjectionDenied, err)
	}
	r.down = false
	return nil
}

// Close releases the button if a drag was left open.
func (r *RobotInjector) Close() error {
	r.mu.Lock()
	down := r.down
	r.mu.Unlock()
	if down {
		return r.MouseUp()
	}
	return nil
}
