// Package config handles configuration loading, validation and reloading for
// mudra.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/engine"
	"github.com/ayusman/mudra/internal/filter"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/inject"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/mapper"
	"github.com/ayusman/mudra/internal/pointer"
)

// Config holds the complete application configuration. It is treated as an
// immutable value once loaded.
type Config struct {
	Camera    CameraConfig    `toml:"camera" json:"camera" yaml:"camera"`
	Detector  DetectorConfig  `toml:"detector" json:"detector" yaml:"detector"`
	Mapping   MappingConfig   `toml:"mapping" json:"mapping" yaml:"mapping"`
	Smoothing SmoothingConfig `toml:"smoothing" json:"smoothing" yaml:"smoothing"`
	Gesture   GestureConfig   `toml:"gesture" json:"gesture" yaml:"gesture"`
	Pointer   PointerConfig   `toml:"pointer" json:"pointer" yaml:"pointer"`
	Inject    InjectConfig    `toml:"inject" json:"inject" yaml:"inject"`
	Server    ServerConfig    `toml:"server" json:"server" yaml:"server"`
	Storage   StorageConfig   `toml:"storage" json:"storage" yaml:"storage"`
	Logging   logging.Config  `toml:"logging" json:"logging" yaml:"logging"`

	// pinned holds the keys set by an explicit override (environment or
	// command line) rather than the file.
	pinned map[string]bool
}

// KeyClickMode names the click mode setting.
const KeyClickMode = "gesture.click_mode"

// Pin marks key as explicitly overridden for this run.
func (c *Config) Pin(key string) {
	if c.pinned == nil {
		c.pinned = make(map[string]bool)
	}
	c.pinned[key] = true
}

// Pinned reports whether key was explicitly overridden.
func (c *Config) Pinned(key string) bool {
	return c.pinned[key]
}

// CameraConfig configures frame capture and idle gating.
type CameraConfig struct {
	Device int `toml:"device" json:"device" yaml:"device"`
	Width  int `toml:"width" json:"width" yaml:"width"`
	Height int `toml:"height" json:"height" yaml:"height"`
	FPS    int `toml:"fps" json:"fps" yaml:"fps"`

	// IdleFPS is the frame rate used after IdleTimeout without a hand.
	IdleFPS     int      `toml:"idle_fps" json:"idle_fps" yaml:"idle_fps"`
	IdleTimeout Duration `toml:"idle_timeout" json:"idle_timeout" yaml:"idle_timeout"`

	// Mirror flips frames horizontally so the cursor follows the hand like a
	// mirror image.
	Mirror bool `toml:"mirror" json:"mirror" yaml:"mirror"`

	// MotionThreshold is the changed-pixel ratio that wakes the detector
	// while idle.
	MotionThreshold float64 `toml:"motion_threshold" json:"motion_threshold" yaml:"motion_threshold"`
}

// DetectorConfig configures the hand landmark detector.
type DetectorConfig struct {
	MaxHands              int     `toml:"max_hands" json:"max_hands" yaml:"max_hands"`
	MinConfidence         float64 `toml:"min_confidence" json:"min_confidence" yaml:"min_confidence"`
	MinTrackingConfidence float64 `toml:"min_tracking_confidence" json:"min_tracking_confidence" yaml:"min_tracking_confidence"`
	Script                string  `toml:"script" json:"script" yaml:"script"`
	Python                string  `toml:"python" json:"python" yaml:"python"`

	// IdleSuspend stops the detector service after this long without a hand.
	// Zero keeps it running.
	IdleSuspend Duration `toml:"idle_suspend" json:"idle_suspend" yaml:"idle_suspend"`
}

// MappingConfig configures the camera to screen mapping.
type MappingConfig struct {
	// Landmark is the landmark index that drives the cursor (8 = index tip).
	Landmark    int     `toml:"landmark" json:"landmark" yaml:"landmark"`
	EdgeMargin  float64 `toml:"edge_margin" json:"edge_margin" yaml:"edge_margin"`
	UpperMargin float64 `toml:"upper_margin" json:"upper_margin" yaml:"upper_margin"`

	// Calibration enables two-point calibration capture at startup.
	Calibration bool `toml:"calibration" json:"calibration" yaml:"calibration"`

	// ReuseCalibration loads the active stored profile instead of capturing.
	ReuseCalibration bool `toml:"reuse_calibration" json:"reuse_calibration" yaml:"reuse_calibration"`
}

// SmoothingConfig configures the temporal filter.
type SmoothingConfig struct {
	Policy     string  `toml:"policy" json:"policy" yaml:"policy"`
	Factor     float64 `toml:"factor" json:"factor" yaml:"factor"`
	Base       float64 `toml:"base" json:"base" yaml:"base"`
	Saturation float64 `toml:"saturation" json:"saturation" yaml:"saturation"`
	Steps      int     `toml:"steps" json:"steps" yaml:"steps"`
}

// GestureConfig configures the gesture classifier. Thresholds are fractions of
// the frame height.
type GestureConfig struct {
	ClickMode      string  `toml:"click_mode" json:"click_mode" yaml:"click_mode"`
	PinchThreshold float64 `toml:"pinch_threshold" json:"pinch_threshold" yaml:"pinch_threshold"`
	FoldThreshold  float64 `toml:"fold_threshold" json:"fold_threshold" yaml:"fold_threshold"`
	FoldMin        int     `toml:"fold_min" json:"fold_min" yaml:"fold_min"`
	DebounceFrames int     `toml:"debounce_frames" json:"debounce_frames" yaml:"debounce_frames"`
	FoldDrag       bool    `toml:"fold_drag" json:"fold_drag" yaml:"fold_drag"`

	// PinchThresholdPx and FoldThresholdPx give the thresholds in camera
	// pixels instead. When positive they win over the fractional values.
	PinchThresholdPx float64 `toml:"pinch_threshold_px" json:"pinch_threshold_px" yaml:"pinch_threshold_px"`
	FoldThresholdPx  float64 `toml:"fold_threshold_px" json:"fold_threshold_px" yaml:"fold_threshold_px"`
}

// PointerConfig configures click and drag timing.
type PointerConfig struct {
	ClickCooldown   Duration `toml:"click_cooldown" json:"click_cooldown" yaml:"click_cooldown"`
	TapMaxDuration  Duration `toml:"tap_max_duration" json:"tap_max_duration" yaml:"tap_max_duration"`
	TapMaxMove      float64  `toml:"tap_max_move" json:"tap_max_move" yaml:"tap_max_move"`
	DoubleClickTime Duration `toml:"double_click_time" json:"double_click_time" yaml:"double_click_time"`
	HoldTime        Duration `toml:"hold_time" json:"hold_time" yaml:"hold_time"`
	Drag            bool     `toml:"drag" json:"drag" yaml:"drag"`
}

// InjectConfig selects the pointer injection backend.
type InjectConfig struct {
	Backend   string   `toml:"backend" json:"backend" yaml:"backend"`
	Plugin    string   `toml:"plugin" json:"plugin" yaml:"plugin"`
	PluginDir string   `toml:"plugin_dir" json:"plugin_dir" yaml:"plugin_dir"`
	Timeout   Duration `toml:"timeout" json:"timeout" yaml:"timeout"`
}

// ServerConfig configures the local HTTP control surface.
type ServerConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Addr    string `toml:"addr" json:"addr" yaml:"addr"`
}

// StorageConfig configures the SQLite database.
type StorageConfig struct {
	Path string `toml:"path" json:"path" yaml:"path"`
}

// Duration is a time.Duration that reads and writes Go duration strings.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	dc := detector.DefaultConfig()
	fp := filter.DefaultParams()
	gt := gesture.DefaultThresholds()
	pp := pointer.DefaultParams()

	return &Config{
		Camera: CameraConfig{
			Width:           640,
			Height:          480,
			FPS:             30,
			IdleFPS:         5,
			IdleTimeout:     Duration(2 * time.Second),
			Mirror:          true,
			MotionThreshold: 0.02,
		},
		Detector: DetectorConfig{
			MaxHands:              dc.MaxHands,
			MinConfidence:         dc.MinConfidence,
			MinTrackingConfidence: dc.MinTrackingConf,
			IdleSuspend:           Duration(30 * time.Second),
		},
		Mapping: MappingConfig{
			Landmark:    detector.IndexTip,
			EdgeMargin:  0.1,
			UpperMargin: 0.05,
			Calibration: false,
		},
		Smoothing: SmoothingConfig{
			Policy:     string(fp.Policy),
			Factor:     fp.Factor,
			Base:       fp.Base,
			Saturation: fp.Saturation,
			Steps:      fp.Steps,
		},
		Gesture: GestureConfig{
			ClickMode:      string(gesture.ModePinch),
			PinchThreshold: gt.Pinch,
			FoldThreshold:  gt.Fold,
			FoldMin:        gt.FoldMin,
			DebounceFrames: gt.Debounce,
			FoldDrag:       gt.FoldDrag,
		},
		Pointer: PointerConfig{
			ClickCooldown:   Duration(pp.ClickCooldown),
			TapMaxDuration:  Duration(pp.TapMaxDuration),
			TapMaxMove:      pp.TapMaxMove,
			DoubleClickTime: Duration(pp.DoubleClickTime),
			HoldTime:        Duration(pp.HoldTime),
			Drag:            pp.Drag,
		},
		Inject: InjectConfig{
			Backend:   inject.BackendRobotgo,
			PluginDir: filepath.Join(DataDir(), "plugins"),
			Timeout:   Duration(2 * time.Second),
		},
		Server: ServerConfig{
			Enabled: true,
			Addr:    "127.0.0.1:8766",
		},
		Storage: StorageConfig{
			Path: filepath.Join(DataDir(), "mudra.db"),
		},
		Logging: logging.DefaultConfig(),
	}
}

// DataDir returns the base directory for mudra's data files. MUDRA_DATA_DIR
// overrides the default ~/.mudra.
func DataDir() string {
	if dir := os.Getenv("MUDRA_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mudra"
	}
	return filepath.Join(home, ".mudra")
}

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	cp := *c
	cp.pinned = nil
	for k := range c.pinned {
		cp.Pin(k)
	}
	return &cp
}

// Engine converts the configuration into engine parameters.
func (c *Config) Engine() engine.Config {
	return engine.Config{
		Landmark:  c.Mapping.Landmark,
		Margins:   mapper.Margins{Edge: c.Mapping.EdgeMargin, Upper: c.Mapping.UpperMargin},
		Calibrate: c.Mapping.Calibration,
		Filter: filter.Params{
			Policy:     filter.Policy(c.Smoothing.Policy),
			Factor:     c.Smoothing.Factor,
			Base:       c.Smoothing.Base,
			Saturation: c.Smoothing.Saturation,
			Steps:      c.Smoothing.Steps,
		},
		// The requested capture size is a first estimate; the app resolves
		// the thresholds again from the first delivered frame.
		Gesture: gesture.Thresholds{
			Pinch:    c.Gesture.PinchThreshold,
			Fold:     c.Gesture.FoldThreshold,
			FoldMin:  c.Gesture.FoldMin,
			Debounce: c.Gesture.DebounceFrames,
			FoldDrag: c.Gesture.FoldDrag,
			Aspect:   gesture.DefaultThresholds().Aspect,
			PinchPx:  c.Gesture.PinchThresholdPx,
			FoldPx:   c.Gesture.FoldThresholdPx,
		}.ForFrame(c.Camera.Width, c.Camera.Height),
		Pointer: pointer.Params{
			Mode:            gesture.Mode(c.Gesture.ClickMode),
			ClickCooldown:   c.Pointer.ClickCooldown.Std(),
			TapMaxDuration:  c.Pointer.TapMaxDuration.Std(),
			DoubleClickTime: c.Pointer.DoubleClickTime.Std(),
			HoldTime:        c.Pointer.HoldTime.Std(),
			TapMaxMove:      c.Pointer.TapMaxMove,
			Drag:            c.Pointer.Drag,
		},
	}
}

// DetectorOptions converts the detector section into detector options.
func (c *Config) DetectorOptions() detector.Config {
	return detector.Config{
		MaxHands:        c.Detector.MaxHands,
		MinConfidence:   c.Detector.MinConfidence,
		MinTrackingConf: c.Detector.MinTrackingConfidence,
		ScriptPath:      c.Detector.Script,
		PythonPath:      c.Detector.Python,
	}
}

// InjectOptions converts the inject section into backend options.
func (c *Config) InjectOptions() inject.Options {
	return inject.Options{
		Backend:       c.Inject.Backend,
		Plugin:        c.Inject.Plugin,
		PluginDir:     c.Inject.PluginDir,
		PluginTimeout: c.Inject.Timeout.Std(),
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}
