// Package engine runs the per-frame pointer pipeline: landmarks are mapped to
// the screen, smoothed and classified, and the pointer session turns the
// result into intents.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/filter"
	"github.com/ayusman/mudra/internal/geometry"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/mapper"
	"github.com/ayusman/mudra/internal/pointer"
)

// Config is the immutable engine configuration.
type Config struct {
	// Landmark is the landmark index that drives the cursor.
	Landmark int
	Margins  mapper.Margins
	// Calibrate enables two-point calibration capture.
	Calibrate bool
	Filter    filter.Params
	Gesture   gesture.Thresholds
	Pointer   pointer.Params
}

// DefaultConfig returns the engine defaults: index tip cursor, pinch clicks.
func DefaultConfig() Config {
	return Config{
		Landmark: detector.IndexTip,
		Margins:  mapper.Margins{Edge: 0.1, Upper: 0.05},
		Filter:   filter.DefaultParams(),
		Gesture:  gesture.DefaultThresholds(),
		Pointer:  pointer.DefaultParams(),
	}
}

// Validate checks every component configuration.
func (c Config) Validate() error {
	if c.Landmark < 0 || c.Landmark >= detector.NumLandmarks {
		return fmt.Errorf("landmark index %d out of range", c.Landmark)
	}
	if err := c.Margins.Validate(); err != nil {
		return err
	}
	if err := c.Filter.Validate(); err != nil {
		return err
	}
	if err := c.Gesture.Validate(); err != nil {
		return err
	}
	return c.Pointer.Validate()
}

// Result is the outcome of one processed frame.
type Result struct {
	Time    time.Time
	Tracked bool
	// Intents are in dispatch order: sub-stepped moves first, then the
	// session's click and drag intents.
	Intents []pointer.Intent
	Reading gesture.Reading
	Cursor  geometry.ScreenPoint
	// Calibrating is true while calibration anchors are still being captured.
	Calibrating bool
	// Anchor is set when this frame recorded a calibration anchor.
	Anchor *r2.Vec
	// Warnings are non-fatal problems found while processing the frame.
	Warnings []error
}

// Snapshot is a read-only view of the engine state.
type Snapshot struct {
	Mode        gesture.Mode         `json:"mode"`
	State       pointer.State        `json:"state"`
	Level       gesture.Level        `json:"level"`
	Tracked     bool                 `json:"tracked"`
	Cursor      geometry.ScreenPoint `json:"cursor"`
	Calibrating bool                 `json:"calibrating"`
	Anchors     []r2.Vec             `json:"anchors,omitempty"`
	Screen      geometry.Size        `json:"screen"`
	// Frame is the camera frame size the gesture thresholds are resolved
	// for. It is zero until the first frame arrives.
	Frame geometry.Size `json:"frame"`
}

// Engine owns the filter, gesture, calibration and pointer session state.
// It is driven by a single frame loop and is not safe for concurrent use.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	mapper     *mapper.Mapper
	cal        *mapper.Calibration
	smoother   *filter.Smoother
	classifier *gesture.Classifier
	session    *pointer.Session

	// capture is true while click gestures record calibration anchors.
	capture bool
	// settle holds the session idle until the hand opens after a
	// calibration capture, so the capture gesture never clicks.
	settle    bool
	prevLevel gesture.Level
	tracked   bool
	cursor    geometry.ScreenPoint
	frame     geometry.Size

	onCalibrated func(a, b r2.Vec)
}

// New creates an Engine for a screen of the given size.
func New(cfg Config, screen geometry.Size, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	m, err := mapper.New(screen, cfg.Margins)
	if err != nil {
		return nil, err
	}
	smoother, err := filter.New(cfg.Filter)
	if err != nil {
		return nil, err
	}
	classifier, err := gesture.NewClassifier(cfg.Gesture, cfg.Pointer.Mode)
	if err != nil {
		return nil, err
	}
	session, err := pointer.NewSession(cfg.Pointer)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:        cfg,
		logger:     logging.Component(logger, "engine"),
		mapper:     m,
		cal:        mapper.NewCalibration(),
		smoother:   smoother,
		classifier: classifier,
		session:    session,
		capture:    cfg.Calibrate,
	}, nil
}

// OnCalibrated registers a callback invoked when the second anchor is
// captured.
func (e *Engine) OnCalibrated(fn func(a, b r2.Vec)) {
	e.onCalibrated = fn
}

// Process runs one frame. A nil frame means no hand was detected.
func (e *Engine) Process(frame *detector.HandLandmarks, now time.Time) Result {
	res := Result{Time: now, Calibrating: e.calibrating()}

	if frame == nil {
		return e.lose(res)
	}
	if err := frame.Validate(); err != nil {
		res.Warnings = append(res.Warnings, err)
		return e.lose(res)
	}

	raw := frame.Point(e.cfg.Landmark)
	reading := e.classifier.Classify(frame, now)
	res.Reading = reading
	res.Tracked = true

	target := e.mapper.Map(raw, e.cal)
	next, steps := e.smoother.Smooth(target.Vec())
	screen := e.mapper.Screen()
	for _, st := range steps {
		res.Intents = append(res.Intents, pointer.Intent{Kind: pointer.Move, Position: geometry.ClampPoint(st, screen)})
	}
	res.Cursor = geometry.ClampPoint(next, screen)

	level := reading.Level
	if res.Calibrating {
		if e.captureEdge(level) {
			anchor := raw
			res.Anchor = &anchor
			if err := e.addAnchor(raw); err != nil {
				res.Warnings = append(res.Warnings, err)
			}
			res.Calibrating = e.calibrating()
		}
		level = gesture.Open
	} else if e.settle {
		if level == gesture.Open {
			e.settle = false
		} else {
			level = gesture.Open
		}
	}

	res.Intents = append(res.Intents, e.session.Update(pointer.Observation{
		Time:     now,
		Tracked:  true,
		Position: res.Cursor,
		Level:    level,
	})...)

	e.prevLevel = reading.Level
	e.tracked = true
	e.cursor = res.Cursor
	return res
}

func (e *Engine) lose(res Result) Result {
	if e.tracked {
		e.logger.Debug("tracking lost")
	}
	e.smoother.Reset()
	e.classifier.Reset()
	e.prevLevel = gesture.Open
	e.tracked = false
	res.Intents = e.session.Update(pointer.Observation{Time: res.Time})
	res.Cursor = e.cursor
	return res
}

func (e *Engine) calibrating() bool {
	return e.capture && !e.cal.Complete()
}

func (e *Engine) captureEdge(level gesture.Level) bool {
	click := e.classifier.Mode().ClickLevel()
	return level == click && e.prevLevel != click
}

func (e *Engine) addAnchor(p r2.Vec) error {
	_, err := e.cal.Add(p)
	e.logger.Info("calibration anchor recorded", "anchor", e.cal.Len(), "x", p.X, "y", p.Y)
	if err != nil {
		e.logger.Warn("calibration anchors too close, using minimum extent", "error", err)
	}
	if e.cal.Complete() {
		e.settle = true
		e.smoother.Reset()
		anchors := e.cal.Anchors()
		if e.onCalibrated != nil {
			e.onCalibrated(anchors[0], anchors[1])
		}
	}
	return err
}

// Close ends the session, returning a drag-end if a drag is open.
func (e *Engine) Close(now time.Time) []pointer.Intent {
	return e.session.Close(now)
}

// Abort forces the session idle, for example after the injector refused an
// action.
func (e *Engine) Abort(now time.Time) []pointer.Intent {
	return e.session.Abort(now)
}

// SetClickMode switches between pinch and fist clicks.
func (e *Engine) SetClickMode(m gesture.Mode, now time.Time) []pointer.Intent {
	if m == e.classifier.Mode() {
		return nil
	}
	e.logger.Info("click mode changed", "mode", m)
	e.classifier.SetMode(m)
	e.prevLevel = gesture.Open
	return e.session.SetMode(m, now)
}

// SetFrameSize resolves the gesture thresholds for the delivered camera
// frame size and returns them. Calls with an unchanged size are cheap.
func (e *Engine) SetFrameSize(size geometry.Size) gesture.Thresholds {
	if size != e.frame && size.Width > 0 && size.Height > 0 {
		e.frame = size
		e.classifier.SetFrameSize(size.Width, size.Height)
	}
	return e.classifier.Thresholds()
}

// Dragging reports whether a drag is open.
func (e *Engine) Dragging() bool {
	return e.session.Dragging()
}

// Mode returns the active click mode.
func (e *Engine) Mode() gesture.Mode {
	return e.classifier.Mode()
}

// Recalibrate discards the calibration so the next two click gestures
// capture new anchors, even when calibration was disabled at startup.
func (e *Engine) Recalibrate(now time.Time) []pointer.Intent {
	e.cal.Reset()
	e.capture = true
	e.settle = false
	e.smoother.Reset()
	e.logger.Info("calibration reset, waiting for two anchors")
	return e.session.Abort(now)
}

// LoadCalibration installs a stored two-point calibration.
func (e *Engine) LoadCalibration(a, b r2.Vec) error {
	err := e.cal.Set(a, b)
	e.smoother.Reset()
	return err
}

// Calibration returns the recorded anchors.
func (e *Engine) Calibration() []r2.Vec {
	return e.cal.Anchors()
}

// Snapshot returns the current engine state.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Mode:        e.classifier.Mode(),
		State:       e.session.State(),
		Level:       e.classifier.Level(),
		Tracked:     e.tracked,
		Cursor:      e.cursor,
		Calibrating: e.calibrating(),
		Anchors:     e.cal.Anchors(),
		Screen:      e.mapper.Screen(),
		Frame:       e.frame,
	}
}
