// Package tray provides the system tray menu for mudra.
package tray

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/gesture"
)

// refreshInterval is how often the menu titles follow the app status.
const refreshInterval = 500 * time.Millisecond

// Controller is the part of the app the tray drives.
type Controller interface {
	Status() app.Status
	ToggleClickMode() (gesture.Mode, error)
	SetEnabled(enabled bool) error
	Recalibrate() error
}

// Tray represents the system tray application.
type Tray struct {
	ctl    Controller
	logger *slog.Logger
	onQuit func()
	mu     sync.RWMutex

	// Menu items stored for later updates
	menuState     *systray.MenuItem
	menuToggle    *systray.MenuItem
	menuMode      *systray.MenuItem
	menuCalibrate *systray.MenuItem
}

// New creates a Tray driving ctl.
func New(ctl Controller, logger *slog.Logger) *Tray {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tray{ctl: ctl, logger: logger}
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray. It blocks until Quit is chosen or ctx is
// cancelled, and must be called from the main goroutine.
func (t *Tray) Run(ctx context.Context) {
	systray.Run(func() { t.onReady(ctx) }, func() {})
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady(ctx context.Context) {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra hand pointer")

	t.menuState = systray.AddMenuItem("Starting", "Pointer state")
	t.menuState.Disable()
	systray.AddSeparator()

	t.menuToggle = systray.AddMenuItem("● Enabled", "Pause or resume pointer control")
	t.menuMode = systray.AddMenuItem("Click: pinch", "Switch between pinch and fist clicks")
	t.menuCalibrate = systray.AddMenuItem("Recalibrate", "Capture two new calibration anchors")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")

	t.refresh()

	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-t.menuMode.ClickedCh:
				t.handleMode()
			case <-t.menuCalibrate.ClickedCh:
				t.handleCalibrate()
			case <-ticker.C:
				t.refresh()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			case <-ctx.Done():
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) handleToggle() {
	enabled := !t.ctl.Status().Enabled
	if err := t.ctl.SetEnabled(enabled); err != nil {
		t.logger.Warn("failed to change enabled state", "error", err)
	}
	t.refresh()
}

func (t *Tray) handleMode() {
	if _, err := t.ctl.ToggleClickMode(); err != nil {
		t.logger.Warn("failed to toggle click mode", "error", err)
	}
	t.refresh()
}

func (t *Tray) handleCalibrate() {
	if err := t.ctl.Recalibrate(); err != nil {
		t.logger.Warn("failed to start calibration", "error", err)
	}
	t.refresh()
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
	systray.Quit()
}

// refresh updates the menu titles from the app status.
func (t *Tray) refresh() {
	labels := Labels(t.ctl.Status())
	t.menuState.SetTitle(labels.State)
	t.menuToggle.SetTitle(labels.Toggle)
	t.menuMode.SetTitle(labels.Mode)
}

// MenuLabels are the dynamic menu titles.
type MenuLabels struct {
	State  string
	Toggle string
	Mode   string
}

// Labels renders the menu titles for s.
func Labels(s app.Status) MenuLabels {
	l := MenuLabels{
		Toggle: "● Enabled",
		Mode:   fmt.Sprintf("Click: %s", s.Mode),
	}
	if !s.Enabled {
		l.Toggle = "○ Disabled"
	}

	switch {
	case !s.Running:
		l.State = "Camera stopped"
	case !s.Enabled:
		l.State = "Paused"
	case s.Calibrating:
		l.State = fmt.Sprintf("Calibrating: %d of 2 anchors", len(s.Anchors))
	case s.Idle:
		l.State = "Idle, waiting for a hand"
	case !s.Tracked:
		l.State = "No hand in view"
	default:
		l.State = fmt.Sprintf("%s (%d,%d)", s.State, s.Cursor.X, s.Cursor.Y)
	}
	return l
}
