package config

import (
	"fmt"
	"strings"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/filter"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/inject"
)

// ValidationError is a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid field.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Fields returns the names of the invalid fields.
func (e ValidationErrors) Fields() []string {
	out := make([]string, 0, len(e))
	for _, err := range e {
		out = append(out, err.Field)
	}
	return out
}

type validator struct {
	errs ValidationErrors
}

func (v *validator) check(ok bool, field, format string, args ...any) {
	if !ok {
		v.errs = append(v.errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}
}

func inUnit(x float64) bool { return x >= 0 && x <= 1 }

// ValidateConfig checks every section and returns ValidationErrors listing
// all invalid fields, or nil.
func ValidateConfig(c *Config) error {
	var v validator

	cam := c.Camera
	v.check(cam.Device >= 0, "camera.device", "must not be negative, got %d", cam.Device)
	v.check(cam.Width > 0, "camera.width", "must be positive, got %d", cam.Width)
	v.check(cam.Height > 0, "camera.height", "must be positive, got %d", cam.Height)
	v.check(cam.FPS > 0 && cam.FPS <= 240, "camera.fps", "must be in 1..240, got %d", cam.FPS)
	v.check(cam.IdleFPS > 0 && cam.IdleFPS <= cam.FPS, "camera.idle_fps", "must be in 1..fps, got %d", cam.IdleFPS)
	v.check(cam.IdleTimeout >= 0, "camera.idle_timeout", "must not be negative, got %s", cam.IdleTimeout)
	v.check(inUnit(cam.MotionThreshold), "camera.motion_threshold", "must be in [0,1], got %v", cam.MotionThreshold)

	det := c.Detector
	v.check(det.MaxHands >= 1, "detector.max_hands", "must be at least 1, got %d", det.MaxHands)
	v.check(inUnit(det.MinConfidence), "detector.min_confidence", "must be in [0,1], got %v", det.MinConfidence)
	v.check(inUnit(det.MinTrackingConfidence), "detector.min_tracking_confidence", "must be in [0,1], got %v", det.MinTrackingConfidence)
	v.check(det.IdleSuspend >= 0, "detector.idle_suspend", "must not be negative, got %s", det.IdleSuspend)

	m := c.Mapping
	v.check(m.Landmark >= 0 && m.Landmark < detector.NumLandmarks, "mapping.landmark",
		"must be in 0..%d, got %d", detector.NumLandmarks-1, m.Landmark)
	v.check(m.EdgeMargin >= 0 && m.EdgeMargin < 0.5, "mapping.edge_margin", "must be in [0,0.5), got %v", m.EdgeMargin)
	v.check(m.UpperMargin >= 0 && m.UpperMargin < 0.5, "mapping.upper_margin", "must be in [0,0.5), got %v", m.UpperMargin)

	s := c.Smoothing
	switch filter.Policy(s.Policy) {
	case filter.PolicyFixed:
		v.check(s.Factor >= 0 && s.Factor < 1, "smoothing.factor", "must be in [0,1), got %v", s.Factor)
	case filter.PolicyAdaptive:
		v.check(s.Base >= 1, "smoothing.base", "must be at least 1, got %v", s.Base)
		v.check(s.Saturation > 0, "smoothing.saturation", "must be positive, got %v", s.Saturation)
	default:
		v.check(false, "smoothing.policy", "must be fixed or adaptive, got %q", s.Policy)
	}
	v.check(s.Steps >= 1, "smoothing.steps", "must be at least 1, got %d", s.Steps)

	g := c.Gesture
	_, err := gesture.ParseMode(g.ClickMode)
	v.check(err == nil, "gesture.click_mode", "must be pinch or fist, got %q", g.ClickMode)
	v.check(g.PinchThreshold > 0, "gesture.pinch_threshold", "must be positive, got %v", g.PinchThreshold)
	v.check(g.FoldThreshold > 0, "gesture.fold_threshold", "must be positive, got %v", g.FoldThreshold)
	v.check(g.FoldMin >= 1 && g.FoldMin <= len(detector.Fingers), "gesture.fold_min",
		"must be in 1..%d, got %d", len(detector.Fingers), g.FoldMin)
	v.check(g.PinchThresholdPx >= 0, "gesture.pinch_threshold_px", "must not be negative, got %v", g.PinchThresholdPx)
	v.check(g.FoldThresholdPx >= 0, "gesture.fold_threshold_px", "must not be negative, got %v", g.FoldThresholdPx)
	v.check(g.DebounceFrames >= 0, "gesture.debounce_frames", "must not be negative, got %d", g.DebounceFrames)

	p := c.Pointer
	v.check(p.ClickCooldown >= 0, "pointer.click_cooldown", "must not be negative, got %s", p.ClickCooldown)
	v.check(p.TapMaxDuration >= 0, "pointer.tap_max_duration", "must not be negative, got %s", p.TapMaxDuration)
	v.check(p.TapMaxMove >= 0, "pointer.tap_max_move", "must not be negative, got %v", p.TapMaxMove)
	v.check(p.DoubleClickTime >= 0, "pointer.double_click_time", "must not be negative, got %s", p.DoubleClickTime)
	v.check(p.HoldTime >= 0, "pointer.hold_time", "must not be negative, got %s", p.HoldTime)

	in := c.Inject
	switch in.Backend {
	case inject.BackendRobotgo, inject.BackendNone:
	case inject.BackendPlugin:
		v.check(in.Plugin != "", "inject.plugin", "required for the plugin backend")
		v.check(in.PluginDir != "", "inject.plugin_dir", "required for the plugin backend")
	default:
		v.check(false, "inject.backend", "must be robotgo, plugin or none, got %q", in.Backend)
	}
	v.check(in.Timeout > 0, "inject.timeout", "must be positive, got %s", in.Timeout)

	v.check(!c.Server.Enabled || c.Server.Addr != "", "server.addr", "required when the server is enabled")
	v.check(c.Storage.Path != "", "storage.path", "required")

	if err := c.Logging.Validate(); err != nil {
		v.check(false, "logging", "%v", err)
	}

	if len(v.errs) > 0 {
		return v.errs
	}
	return nil
}
