package detector

import (
	"errors"

	"gocv.io/x/gocv"
)

var (
	// ErrServiceUnavailable means the detector cannot be set up at all.
	ErrServiceUnavailable = errors.New("hand detector unavailable")
	// ErrDetection marks a failure on a single frame. The frame is skipped.
	ErrDetection = errors.New("hand detection failed")
)

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Suspender is implemented by detectors that can release their model while no
// hand is expected. The next Detect resumes them.
type Suspender interface {
	Suspend() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 1).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// ScriptPath overrides the location of mediapipe_service.py.
	ScriptPath string

	// PythonPath overrides the interpreter used to run the service.
	PythonPath string
}

// DefaultConfig returns a Config with sensible default values.
// Pointer control follows a single hand.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.7,
		MinTrackingConf: 0.6,
	}
}

// Primary returns the hand that drives the pointer, or nil when no hand was
// detected. The highest-scoring hand wins; on a tie the earlier hand is kept.
func Primary(hands []HandLandmarks) *HandLandmarks {
	if len(hands) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(hands); i++ {
		if hands[i].Score > hands[best].Score {
			best = i
		}
	}
	return &hands[best]
}
