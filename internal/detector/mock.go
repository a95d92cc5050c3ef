package detector

import (
	"sync"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/spatial/r2"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu       sync.Mutex
	hands    []HandLandmarks
	sequence [][]HandLandmarks
	err      error
	calls    int
	suspends int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by every Detect call.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
	m.sequence = nil
}

// SetSequence queues one result per Detect call. Once the queue is drained
// Detect reports no hands. A nil entry means "no hand detected".
func (m *MockDetector) SetSequence(seq [][]HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = seq
	m.hands = nil
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.sequence != nil {
		if len(m.sequence) == 0 {
			return nil, nil
		}
		next := m.sequence[0]
		m.sequence = m.sequence[1:]
		return next, nil
	}
	return m.hands, nil
}

// Suspend records the call.
func (m *MockDetector) Suspend() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspends++
	return nil
}

// Suspends returns how many times Suspend has been invoked.
func (m *MockDetector) Suspends() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suspends
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Pose describes a synthetic hand used by tests and demos.
type Pose struct {
	// Index is the index fingertip position in normalized frame coordinates.
	Index r2.Vec
	// PinchGap is the vertical distance from the index tip down to the thumb tip.
	PinchGap float64
	// Folded is how many fingers are curled, counted from the pinky toward the index.
	Folded int
}

// Open fingers keep their tip this far above the PIP joint; folded fingers
// bring the tip down to curledTipGap.
const (
	openTipGap   = 0.12
	curledTipGap = 0.02
)

// SyntheticHand builds a right hand matching pose. All inter-landmark
// offsets are vertical or horizontal so the result is independent of the frame
// aspect ratio used by the gesture metrics.
func SyntheticHand(pose Pose) HandLandmarks {
	h := HandLandmarks{Handedness: "Right", Score: 0.95}

	base := pose.Index
	set := func(i int, dx, dy float64) {
		h.Points[i] = Point3D{X: base.X + dx, Y: base.Y + dy}
	}

	set(Wrist, -0.05, 0.35)

	// Thumb hangs below the index tip by PinchGap.
	set(ThumbCMC, 0.04, 0.28)
	set(ThumbMCP, 0.05, 0.20)
	set(ThumbIP, 0.03, pose.PinchGap+0.06)
	set(ThumbTip, 0, pose.PinchGap)

	offsets := [4]float64{0, -0.04, -0.08, -0.11}
	for i, f := range Fingers {
		// Fingers fold from the pinky (i=3) toward the index (i=0).
		folded := 3-i < pose.Folded
		gap := openTipGap
		if folded {
			gap = curledTipGap
		}
		dx := offsets[i]
		set(f.Tip, dx, 0)
		set(f.PIP, dx, gap)
		set(f.PIP+1, dx, gap/2)    // DIP
		set(f.PIP-1, dx, gap+0.06) // MCP
	}

	return h
}

// OpenHandAt returns a relaxed open hand with the index tip at (x, y).
func OpenHandAt(x, y float64) HandLandmarks {
	return SyntheticHand(Pose{Index: r2.Vec{X: x, Y: y}, PinchGap: 0.15})
}

// PinchAt returns a hand with thumb and index tips gap apart.
func PinchAt(x, y, gap float64) HandLandmarks {
	return SyntheticHand(Pose{Index: r2.Vec{X: x, Y: y}, PinchGap: gap})
}

// FistAt returns a hand with all four fingers curled.
func FistAt(x, y float64) HandLandmarks {
	return SyntheticHand(Pose{Index: r2.Vec{X: x, Y: y}, PinchGap: 0.15, Folded: 4})
}
