// Package inject delivers pointer intents to the operating system.
package inject

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ayusman/mudra/internal/pointer"
)

// ErrInjectionDenied is returned when the OS refuses a pointer action,
// typically because the process lacks accessibility permission.
var ErrInjectionDenied = errors.New("pointer injection denied")

// Injector performs primitive pointer actions. Every call may fail; callers
// must treat failures as non-fatal.
//
// DoubleClick sends exactly one press that the OS counts as the second click
// of a pair. The first press has already been sent by Click.
type Injector interface {
	Move(x, y int) error
	Click() error
	DoubleClick() error
	MouseDown() error
	MouseUp() error
	Close() error
}

// Backend names accepted by New.
const (
	BackendRobotgo = "robotgo"
	BackendPlugin  = "plugin"
	BackendNone    = "none"
)

// Result is the outcome of delivering one intent.
type Result struct {
	Intent pointer.Intent
	Err    error
}

// Denied reports whether the OS refused the action.
func (r Result) Denied() bool {
	return errors.Is(r.Err, ErrInjectionDenied)
}

// Dispatch delivers intents in order and returns one Result per intent.
// A failing intent does not stop the remaining ones.
func Dispatch(inj Injector, intents []pointer.Intent) []Result {
	results := make([]Result, 0, len(intents))
	for _, in := range intents {
		results = append(results, Result{Intent: in, Err: deliver(inj, in)})
	}
	return results
}

// Failures returns the failed results.
func Failures(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

func deliver(inj Injector, in pointer.Intent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s panicked: %v", ErrInjectionDenied, in.Kind, r)
		}
	}()

	switch in.Kind {
	case pointer.Move, pointer.DragMove:
		err = inj.Move(in.Position.X, in.Position.Y)
	case pointer.Click:
		err = inj.Click()
	case pointer.DoubleClick:
		err = inj.DoubleClick()
	case pointer.DragStart:
		err = inj.MouseDown()
	case pointer.DragEnd:
		err = inj.MouseUp()
	default:
		err = fmt.Errorf("unsupported intent %s", in.Kind)
	}
	if err != nil {
		err = fmt.Errorf("%s at (%d,%d): %w", in.Kind, in.Position.X, in.Position.Y, err)
	}
	return err
}

// logInjector only logs intents. It backs the "none" backend used for
// dry runs and headless servers.
type logInjector struct {
	logger *slog.Logger
}

// NewLogInjector returns an Injector that logs every action at debug level.
func NewLogInjector(logger *slog.Logger) Injector {
	return &logInjector{logger: logger.With(slog.String("component", "inject"))}
}

func (l *logInjector) Move(x, y int) error {
	l.logger.Debug("move", "x", x, "y", y)
	return nil
}

func (l *logInjector) Click() error {
	l.logger.Debug("click")
	return nil
}

func (l *logInjector) DoubleClick() error {
	l.logger.Debug("double click")
	return nil
}

func (l *logInjector) MouseDown() error {
	l.logger.Debug("mouse down")
	return nil
}

func (l *logInjector) MouseUp() error {
	l.logger.Debug("mouse up")
	return nil
}

func (l *logInjector) Close() error { return nil }
