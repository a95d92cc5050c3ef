package app

import (
	"context"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/engine"
	"github.com/ayusman/mudra/internal/geometry"
	"github.com/ayusman/mudra/internal/gesture"
)

// loop is the frame loop. Frames are read at the active rate while a hand is
// in view; after the idle timeout without a hand the camera drops to the
// idle rate and the detector only runs when the motion gate opens.
//
// Control commands run between frames, so the engine only ever sees one
// caller.
func (a *App) loop(ctx context.Context) error {
	ticker := time.NewTicker(interval(a.cfg.Camera.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case cmd := <-a.commands:
			a.engMu.Lock()
			err := cmd.fn(a.now())
			if a.idle {
				ticker.Reset(interval(a.cfg.Camera.IdleFPS))
			} else {
				ticker.Reset(interval(a.cfg.Camera.FPS))
			}
			a.publish()
			a.engMu.Unlock()
			cmd.done <- err

		case <-ticker.C:
			a.engMu.Lock()
			if fps, changed := a.tick(); changed {
				ticker.Reset(interval(fps))
			}
			a.publish()
			a.engMu.Unlock()
		}
	}
}

func interval(fps int) time.Duration {
	if fps <= 0 {
		fps = 1
	}
	return time.Second / time.Duration(fps)
}

// tick processes one frame. It returns the new frame rate when the loop
// switched between idle and active.
func (a *App) tick() (fps int, changed bool) {
	if !a.enabled {
		return 0, false
	}

	frame, err := a.camera.ReadFrame()
	if err != nil {
		a.stats.ReadErrors++
		a.logger.Warn("frame read failed", "error", err)
		return 0, false
	}
	defer frame.Close()

	now := a.now()
	a.stats.Frames++
	a.observeFrame(frame)

	if err := a.frames.Publish(frame); err != nil {
		a.logger.Debug("preview encode failed", "error", err)
	}

	if a.idle {
		a.suspendDetector(now)
		moved, ratio := a.motion.Detect(frame)
		if !moved {
			return 0, false
		}
		a.logger.Debug("motion while idle", "ratio", ratio)
	}

	hands, err := a.detector.Detect(frame)
	a.lastDetect, a.suspended = now, false
	if err != nil {
		a.stats.DetectErrors++
		a.logger.Warn("hand detection failed", "error", err)
		hands = nil
	}

	res := a.engine.Process(detector.Primary(hands), now)
	a.report(res)
	a.deliver(res.Intents, now)

	switch {
	case res.Tracked:
		a.lastSeen = now
		if a.idle {
			a.idle = false
			a.camera.SetFPS(a.cfg.Camera.FPS)
			a.logger.Info("hand in view, switching to active rate", "fps", a.cfg.Camera.FPS)
			return a.cfg.Camera.FPS, true
		}
	case !a.idle && now.Sub(a.lastSeen) > a.cfg.Camera.IdleTimeout.Std():
		a.idle = true
		a.motion.Reset()
		a.camera.SetFPS(a.cfg.Camera.IdleFPS)
		a.logger.Info("no hand in view, switching to idle rate", "fps", a.cfg.Camera.IdleFPS)
		return a.cfg.Camera.IdleFPS, true
	}
	return 0, false
}

// observeFrame resolves the gesture thresholds for the frame size the camera
// really delivers, which may differ from the requested one.
func (a *App) observeFrame(frame *gocv.Mat) {
	size := geometry.Size{Width: frame.Cols(), Height: frame.Rows()}
	if size == a.frameSize || size.Width <= 0 || size.Height <= 0 {
		return
	}
	a.frameSize = size
	th := a.engine.SetFrameSize(size)
	a.logger.Info("camera frame size",
		"width", size.Width, "height", size.Height,
		"pinch_px", gesture.UnitsToPixels(th.Pinch, size.Height),
		"fold_px", gesture.UnitsToPixels(th.Fold, size.Height))
}

// suspendDetector lets the detector release its model once the motion gate
// has kept it unused for the configured time. Detect resumes it.
func (a *App) suspendDetector(now time.Time) {
	after := a.cfg.Detector.IdleSuspend.Std()
	if a.suspended || after <= 0 || now.Sub(a.lastDetect) < after {
		return
	}
	s, ok := a.detector.(detector.Suspender)
	if !ok {
		return
	}
	a.suspended = true
	if err := s.Suspend(); err != nil {
		a.logger.Warn("failed to suspend detector", "error", err)
		return
	}
	a.logger.Info("detector suspended", "unused_for", now.Sub(a.lastDetect))
}

func (a *App) report(res engine.Result) {
	for _, w := range res.Warnings {
		a.logger.Warn("frame skipped", "error", w)
	}
	if res.Anchor != nil {
		a.logger.Info("anchor captured", "x", res.Anchor.X, "y", res.Anchor.Y, "calibrating", res.Calibrating)
	}
}
