package capture

import (
	"testing"

	"gocv.io/x/gocv"
)

func blackAndWhite(t *testing.T) (gocv.Mat, gocv.Mat) {
	t.Helper()
	black := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 120, 160, gocv.MatTypeCV8UC3)
	white := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	white.SetTo(gocv.NewScalar(255, 255, 255, 0))
	t.Cleanup(func() {
		black.Close()
		white.Close()
	})
	return black, white
}

func TestMotionDetector_FirstFrameOnlyPrimes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(0.01)
	defer md.Close()
	black, _ := blackAndWhite(t)

	detected, ratio := md.Detect(&black)
	if detected || ratio != 0 {
		t.Errorf("first frame: detected=%v ratio=%f, want false 0", detected, ratio)
	}

	detected, ratio = md.Detect(&black)
	if detected {
		t.Errorf("identical frames should not detect motion, ratio = %f", ratio)
	}
}

func TestMotionDetector_WithMotion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(0.01)
	defer md.Close()
	black, white := blackAndWhite(t)

	md.Detect(&black)
	detected, ratio := md.Detect(&white)
	if !detected {
		t.Errorf("black to white should detect motion, ratio = %f", ratio)
	}
	if ratio < 0.5 || ratio > 1 {
		t.Errorf("ratio = %f, want in [0.5,1] for a full-frame change", ratio)
	}
	if md.Last() != ratio {
		t.Errorf("Last() = %f, want %f", md.Last(), ratio)
	}
}

func TestMotionDetector_Reset(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(0.01)
	defer md.Close()
	black, white := blackAndWhite(t)

	md.Detect(&black)
	md.Reset()

	// After a reset the next frame is a new baseline, not motion.
	if detected, _ := md.Detect(&white); detected {
		t.Error("first frame after Reset should not detect motion")
	}
}

func TestMotionDetector_SizeChangeRebaselines(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(0.01)
	defer md.Close()
	black, _ := blackAndWhite(t)
	big := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer big.Close()
	big.SetTo(gocv.NewScalar(255, 255, 255, 0))

	md.Detect(&black)
	if detected, _ := md.Detect(&big); detected {
		t.Error("a frame of a different size should start a new baseline")
	}
}

func TestMotionDetector_SetRatio(t *testing.T) {
	md := NewMotionDetector(0.02)
	defer md.Close()

	tests := []struct {
		in   float64
		want float64
	}{
		{in: 0.5, want: 0.5},
		{in: 0, want: 0.5},
		{in: -1, want: 0.5},
		{in: 1.5, want: 0.5},
		{in: 1, want: 1},
	}
	for _, tt := range tests {
		md.SetRatio(tt.in)
		if md.ratio != tt.want {
			t.Errorf("SetRatio(%v): ratio = %v, want %v", tt.in, md.ratio, tt.want)
		}
	}
}

func TestMotionDetector_Close_Multiple(t *testing.T) {
	md := NewMotionDetector(0.02)
	md.Close()
	md.Close()
}

func TestMotionDetector_EmptyFrame(t *testing.T) {
	md := NewMotionDetector(0.02)
	defer md.Close()

	if detected, _ := md.Detect(nil); detected {
		t.Error("nil frame should not detect motion")
	}
	empty := gocv.NewMat()
	defer empty.Close()
	if detected, _ := md.Detect(&empty); detected {
		t.Error("empty frame should not detect motion")
	}
}
