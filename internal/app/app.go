// Package app runs the mudra frame loop: camera frames go through the hand
// detector and the pointer engine, and the resulting intents are injected.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/engine"
	"github.com/ayusman/mudra/internal/geometry"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/inject"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/pointer"
	"github.com/ayusman/mudra/internal/store"
)

// commandTimeout bounds how long a control call waits for the frame loop.
const commandTimeout = 2 * time.Second

// ErrAlreadyRunning is returned by Run when the loop is already running.
var ErrAlreadyRunning = errors.New("frame loop already running")

// Options configures an App. Camera, Detector and Injector are created from
// Config when nil.
type Options struct {
	Config   *config.Config
	Store    *store.Store
	Camera   capture.Camera
	Detector detector.Detector
	Injector inject.Injector
	// Screen defaults to the main display size.
	Screen geometry.Size
	Logger *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Status is a point-in-time view of the app for the tray and HTTP API.
type Status struct {
	engine.Snapshot
	Enabled bool        `json:"enabled"`
	Running bool        `json:"running"`
	Idle    bool        `json:"idle"`
	Backend string      `json:"backend"`
	Session string      `json:"session,omitempty"`
	Stats   store.Stats `json:"stats"`
}

// App owns the frame loop. Control methods may be called from any
// goroutine; they are executed by the loop between frames.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	now    func() time.Time

	camera   capture.Camera
	detector detector.Detector
	injector inject.Injector
	motion   *capture.MotionDetector
	frames   *capture.FrameBuffer
	screen   geometry.Size

	// ownsInjector is set when Run created the injector and must close it.
	ownsInjector bool

	// engMu serializes engine access between the loop and direct command
	// execution while the loop is stopped.
	engMu    sync.Mutex
	engine   *engine.Engine
	enabled  bool
	idle     bool
	lastSeen time.Time
	session  *store.Session
	stats    store.Stats
	calID    string

	// frameSize is the size of the frames the camera actually delivers.
	frameSize geometry.Size
	// lastDetect is when the detector last ran; suspended is set once it
	// was told to release its model.
	lastDetect time.Time
	suspended  bool

	commands chan command
	running  atomic.Bool

	statusMu sync.RWMutex
	status   Status

	intentHooks []func(pointer.Intent)
}

type command struct {
	fn   func(now time.Time) error
	done chan error
}

// New creates an App. The engine is built immediately so configuration
// errors surface before Run.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	screen := opts.Screen
	if screen.Width <= 0 || screen.Height <= 0 {
		size, err := inject.ScreenSize()
		if err != nil {
			return nil, err
		}
		screen = size
	}

	a := &App{
		cfg:      cfg,
		logger:   logging.Component(logger, "app"),
		store:    opts.Store,
		now:      now,
		camera:   opts.Camera,
		detector: opts.Detector,
		injector: opts.Injector,
		frames:   capture.NewFrameBuffer(),
		screen:   screen,
		enabled:  true,
		commands: make(chan command, 16),
	}

	a.restoreEnabled()
	eng, err := a.newEngine(cfg, a.startMode(cfg))
	if err != nil {
		return nil, err
	}
	a.engine = eng
	a.publish()
	return a, nil
}

func (a *App) newEngine(cfg *config.Config, mode gesture.Mode) (*engine.Engine, error) {
	ecfg := cfg.Engine()
	ecfg.Pointer.Mode = mode
	if cfg.Mapping.ReuseCalibration && a.activeCalibration() != nil {
		ecfg.Calibrate = false
	}
	eng, err := engine.New(ecfg, a.screen, a.logger)
	if err != nil {
		return nil, err
	}
	eng.OnCalibrated(a.saveCalibration)

	if cfg.Mapping.ReuseCalibration {
		if c := a.activeCalibration(); c != nil {
			if err := eng.LoadCalibration(c.A, c.B); err != nil {
				a.logger.Warn("stored calibration is degenerate", "calibration", c.Name, "error", err)
			}
			a.calID = c.ID
			a.logger.Info("loaded calibration", "calibration", c.Name)
		}
	}
	return eng, nil
}

func (a *App) activeCalibration() *store.Calibration {
	if a.store == nil {
		return nil
	}
	c, err := a.store.Calibrations().Active()
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			a.logger.Warn("failed to read active calibration", "error", err)
		}
		return nil
	}
	return c
}

// startMode picks the click mode at startup: an explicit override wins, then
// the mode saved by the last runtime toggle, then the file.
func (a *App) startMode(cfg *config.Config) gesture.Mode {
	mode := gesture.Mode(cfg.Gesture.ClickMode)
	if a.store == nil {
		return mode
	}
	if cfg.Pinned(config.KeyClickMode) {
		a.logger.Debug("click mode set explicitly, ignoring saved mode", "mode", mode)
		return mode
	}
	v, err := a.store.Settings().Get(store.SettingClickMode)
	if err != nil {
		return mode
	}
	saved, err := gesture.ParseMode(v)
	if err != nil {
		a.logger.Warn("ignoring invalid saved click mode", "value", v)
		return mode
	}
	return saved
}

// restoreEnabled applies the persisted enabled flag.
func (a *App) restoreEnabled() {
	if a.store == nil {
		return
	}
	if v, err := a.store.Settings().Get(store.SettingEnabled); err == nil {
		a.enabled = v != "false"
	}
}

func (a *App) saveCalibration(p, q r2.Vec) {
	a.logger.Info("calibration complete", "ax", p.X, "ay", p.Y, "bx", q.X, "by", q.Y)
	if a.store == nil {
		return
	}
	c := &store.Calibration{
		Name: "calibration " + a.now().Format("2006-01-02 15:04:05.000"),
		A:    p,
		B:    q,
	}
	repo := a.store.Calibrations()
	if err := repo.Create(c); err != nil {
		a.logger.Warn("failed to save calibration", "error", err)
		return
	}
	if err := repo.Activate(c.ID); err != nil {
		a.logger.Warn("failed to activate calibration", "error", err)
		return
	}
	a.calID = c.ID
}

// OnIntent registers a hook called with every successfully injected intent.
// Hooks run on the frame loop and must not block. Register before Run.
func (a *App) OnIntent(fn func(pointer.Intent)) {
	a.intentHooks = append(a.intentHooks, fn)
}

// Frames returns the preview frame buffer.
func (a *App) Frames() *capture.FrameBuffer {
	return a.frames
}

// Status returns the latest published status.
func (a *App) Status() Status {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	s := a.status
	s.Anchors = append([]r2.Vec(nil), s.Anchors...)
	return s
}

// publish copies the loop state into the shared status. Callers hold engMu
// or own the loop.
func (a *App) publish() {
	s := Status{
		Snapshot: a.engine.Snapshot(),
		Enabled:  a.enabled,
		Running:  a.running.Load(),
		Idle:     a.idle,
		Backend:  a.cfg.Inject.Backend,
		Stats:    a.stats,
	}
	if a.session != nil {
		s.Session = a.session.ID
	}
	a.statusMu.Lock()
	a.status = s
	a.statusMu.Unlock()
}

// do executes fn on the frame loop, or directly when the loop is not
// running, and waits for it.
func (a *App) do(fn func(now time.Time) error) error {
	if !a.running.Load() {
		a.engMu.Lock()
		defer a.engMu.Unlock()
		err := fn(a.now())
		a.publish()
		return err
	}

	cmd := command{fn: fn, done: make(chan error, 1)}
	timer := time.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case a.commands <- cmd:
	case <-timer.C:
		return fmt.Errorf("frame loop busy")
	}
	select {
	case err := <-cmd.done:
		return err
	case <-timer.C:
		return fmt.Errorf("frame loop did not answer")
	}
}

// ToggleClickMode switches between pinch and fist clicks and returns the
// new mode. Any open drag is ended first.
func (a *App) ToggleClickMode() (gesture.Mode, error) {
	var mode gesture.Mode
	err := a.do(func(now time.Time) error {
		mode = a.engine.Mode().Toggle()
		return a.setClickMode(mode, now)
	})
	return mode, err
}

// SetClickMode selects the click gesture.
func (a *App) SetClickMode(m gesture.Mode) error {
	if _, err := gesture.ParseMode(string(m)); err != nil {
		return err
	}
	return a.do(func(now time.Time) error {
		return a.setClickMode(m, now)
	})
}

func (a *App) setClickMode(m gesture.Mode, now time.Time) error {
	a.deliver(a.engine.SetClickMode(m, now), now)
	a.logger.Info("click mode", "mode", m)
	return a.saveSetting(store.SettingClickMode, string(m))
}

// SetEnabled pauses or resumes pointer control. Pausing ends any open drag.
func (a *App) SetEnabled(enabled bool) error {
	return a.do(func(now time.Time) error {
		if a.enabled == enabled {
			return nil
		}
		if !enabled {
			a.deliver(a.engine.Close(now), now)
		}
		a.enabled = enabled
		a.logger.Info("pointer control", "enabled", enabled)
		return a.saveSetting(store.SettingEnabled, fmt.Sprint(enabled))
	})
}

// Enabled reports whether pointer control is active.
func (a *App) Enabled() bool {
	return a.Status().Enabled
}

// Recalibrate discards the calibration and captures two new anchors.
func (a *App) Recalibrate() error {
	return a.do(func(now time.Time) error {
		a.deliver(a.engine.Recalibrate(now), now)
		a.calID = ""
		return nil
	})
}

// ActivateCalibration loads a stored calibration profile and marks it active.
func (a *App) ActivateCalibration(id string) error {
	if a.store == nil {
		return fmt.Errorf("no store configured")
	}
	return a.do(func(now time.Time) error {
		repo := a.store.Calibrations()
		c, err := repo.Get(id)
		if err != nil {
			return err
		}
		if err := repo.Activate(id); err != nil {
			return err
		}
		a.deliver(a.engine.Abort(now), now)
		if err := a.engine.LoadCalibration(c.A, c.B); err != nil {
			a.logger.Warn("calibration is degenerate", "calibration", c.Name, "error", err)
		}
		a.calID = c.ID
		a.logger.Info("calibration activated", "calibration", c.Name)
		return nil
	})
}

// Reconfigure applies a reloaded configuration between frames. Any open
// drag is ended and the engine is rebuilt; a completed calibration carries
// over. The runtime click mode is kept unless the configured click mode
// itself changed, in which case the new mode is applied and saved.
func (a *App) Reconfigure(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return a.do(func(now time.Time) error {
		mode := a.engine.Mode()
		modeChanged := cfg.Gesture.ClickMode != a.cfg.Gesture.ClickMode
		if modeChanged {
			mode = gesture.Mode(cfg.Gesture.ClickMode)
		}
		eng, err := a.newEngine(cfg, mode)
		if err != nil {
			return err
		}
		eng.SetFrameSize(a.frameSize)
		a.deliver(a.engine.Close(now), now)
		if anchors := a.engine.Calibration(); len(anchors) == 2 {
			if err := eng.LoadCalibration(anchors[0], anchors[1]); err != nil {
				a.logger.Warn("calibration is degenerate", "error", err)
			}
		}
		a.engine = eng
		a.cfg = cfg
		if a.motion != nil {
			a.motion.SetRatio(cfg.Camera.MotionThreshold)
		}
		a.logger.Info("configuration reloaded", "click_mode", mode)
		if modeChanged {
			return a.saveSetting(store.SettingClickMode, string(mode))
		}
		return nil
	})
}

func (a *App) saveSetting(key, value string) error {
	if a.store == nil {
		return nil
	}
	if err := a.store.Settings().Set(key, value); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// deliver injects intents and handles failures. A refused action aborts an
// open drag so the OS button state cannot stay pressed.
func (a *App) deliver(intents []pointer.Intent, now time.Time) {
	if len(intents) == 0 || a.injector == nil {
		return
	}
	results := inject.Dispatch(a.injector, intents)
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		a.count(r.Intent)
		for _, hook := range a.intentHooks {
			hook(r.Intent)
		}
	}

	denied := false
	for _, r := range inject.Failures(results) {
		if r.Denied() {
			denied = true
			a.stats.Denied++
		}
		a.logger.Warn("pointer injection failed", "intent", r.Intent.Kind, "error", r.Err)
	}

	if denied && a.engine.Dragging() {
		for _, r := range inject.Dispatch(a.injector, a.engine.Abort(now)) {
			if r.Err != nil {
				a.logger.Debug("drag end after denial failed", "error", r.Err)
				continue
			}
			for _, hook := range a.intentHooks {
				hook(r.Intent)
			}
		}
	}
}

func (a *App) count(in pointer.Intent) {
	switch in.Kind {
	case pointer.Click:
		a.stats.Clicks++
	case pointer.DoubleClick:
		a.stats.DoubleClicks++
	case pointer.DragStart:
		a.stats.Drags++
	}
}

// Run acquires the camera, detector and injector and runs the frame loop
// until ctx is cancelled. It returns capture.ErrCaptureUnavailable when the
// camera cannot be opened.
func (a *App) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer a.running.Store(false)

	if err := a.acquire(ctx); err != nil {
		return err
	}
	defer a.release()

	a.engMu.Lock()
	a.startSession()
	a.publish()
	a.engMu.Unlock()

	defer func() {
		a.engMu.Lock()
		defer a.engMu.Unlock()
		now := a.now()
		a.deliver(a.engine.Close(now), now)
		a.finishSession()
		a.running.Store(false)
		a.publish()
	}()

	return a.loop(ctx)
}

func (a *App) acquire(ctx context.Context) error {
	cam := a.cfg.Camera
	if a.camera == nil {
		a.camera = capture.NewCamera(capture.Options{
			Device: cam.Device,
			Width:  cam.Width,
			Height: cam.Height,
			FPS:    cam.FPS,
			Mirror: cam.Mirror,
		})
	}
	if err := a.camera.Open(); err != nil {
		return err
	}

	if a.detector == nil {
		d, err := detector.NewMediaPipeDetector(a.cfg.DetectorOptions(), a.logger)
		if err != nil {
			a.camera.Close()
			return err
		}
		a.detector = d
	}

	if a.injector == nil {
		inj, err := inject.New(ctx, a.cfg.InjectOptions(), a.logger)
		if err != nil {
			a.camera.Close()
			a.detector.Close()
			return fmt.Errorf("pointer injection unavailable: %w", err)
		}
		a.injector = inj
		a.ownsInjector = true
	}

	a.motion = capture.NewMotionDetector(cam.MotionThreshold)
	a.logger.Info("frame loop starting",
		"device", cam.Device, "fps", cam.FPS, "backend", a.cfg.Inject.Backend, "mode", a.engine.Mode())
	return nil
}

func (a *App) release() {
	if err := a.camera.Close(); err != nil {
		a.logger.Warn("failed to close camera", "error", err)
	}
	if err := a.detector.Close(); err != nil {
		a.logger.Warn("failed to close detector", "error", err)
	}
	if a.ownsInjector {
		if err := a.injector.Close(); err != nil {
			a.logger.Warn("failed to close injector", "error", err)
		}
		a.injector = nil
		a.ownsInjector = false
	}
	a.motion.Close()
	a.frames.Close()
	a.logger.Info("frame loop stopped")
}

func (a *App) startSession() {
	a.stats = store.Stats{}
	a.idle = false
	a.lastSeen = a.now()
	a.lastDetect = a.lastSeen
	if a.store == nil {
		return
	}
	sess, err := a.store.Sessions().Start(string(a.engine.Mode()), a.calID)
	if err != nil {
		a.logger.Warn("failed to start session journal", "error", err)
		return
	}
	a.session = sess
}

func (a *App) finishSession() {
	if a.store == nil || a.session == nil {
		return
	}
	if err := a.store.Sessions().Finish(a.session.ID, a.stats); err != nil {
		a.logger.Warn("failed to finish session journal", "error", err)
	}
	a.logger.Info("session finished",
		"frames", a.stats.Frames, "clicks", a.stats.Clicks, "double_clicks", a.stats.DoubleClicks,
		"drags", a.stats.Drags, "denied", a.stats.Denied)
	a.session = nil
}
