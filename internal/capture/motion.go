package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

const (
	motionBlurSize = 21
	// motionPixelDelta is the grey-level change that counts a pixel as moved.
	motionPixelDelta = 25
)

// MotionDetector reports whether consecutive frames differ enough to be
// worth running the hand detector on. It compares blurred greyscale frames.
type MotionDetector struct {
	mu       sync.Mutex
	ratio    float64
	prev     gocv.Mat
	hasPrev  bool
	lastSeen float64
}

// NewMotionDetector creates a detector that fires when more than ratio
// (0..1) of the pixels changed.
func NewMotionDetector(ratio float64) *MotionDetector {
	return &MotionDetector{ratio: ratio, prev: gocv.NewMat()}
}

// Detect compares frame with the previous one and returns whether motion
// was seen and the changed-pixel ratio. The first frame only primes the
// baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: motionBlurSize, Y: motionBlurSize}, 0, 0, gocv.BorderDefault)

	if !m.hasPrev || m.prev.Rows() != blurred.Rows() || m.prev.Cols() != blurred.Cols() {
		blurred.CopyTo(&m.prev)
		m.hasPrev = true
		m.lastSeen = 0
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prev, &diff)
	gocv.Threshold(diff, &diff, motionPixelDelta, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(diff)) / float64(diff.Rows()*diff.Cols())
	blurred.CopyTo(&m.prev)
	m.lastSeen = changed

	return changed > m.ratio, changed
}

// Last returns the changed-pixel ratio of the most recent comparison.
func (m *MotionDetector) Last() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSeen
}

// Reset forgets the baseline frame.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hasPrev = false
	m.lastSeen = 0
}

// SetRatio changes the firing ratio. Values outside (0,1] are ignored.
func (m *MotionDetector) SetRatio(ratio float64) {
	if ratio <= 0 || ratio > 1 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratio = ratio
}

// Close releases the baseline frame.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.prev.Empty() {
		m.prev.Close()
	}
	m.prev = gocv.NewMat()
	m.hasPrev = false
}
