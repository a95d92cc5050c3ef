package detector

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

const epsilon = 1e-9

func dist(a, b r2.Vec) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func TestHandLandmarks_Validate(t *testing.T) {
	t.Run("finite landmarks are valid", func(t *testing.T) {
		hand := OpenHandAt(0.5, 0.5)
		if err := hand.Validate(); err != nil {
			t.Errorf("expected valid landmarks, got %v", err)
		}
	})

	t.Run("NaN landmark is rejected", func(t *testing.T) {
		hand := OpenHandAt(0.5, 0.5)
		hand.Points[IndexTip].X = math.NaN()
		if err := hand.Validate(); err == nil {
			t.Error("expected error for NaN landmark")
		}
	})

	t.Run("infinite landmark is rejected", func(t *testing.T) {
		hand := OpenHandAt(0.5, 0.5)
		hand.Points[Wrist].Y = math.Inf(1)
		if err := hand.Validate(); err == nil {
			t.Error("expected error for infinite landmark")
		}
	})

	t.Run("nil hand is rejected", func(t *testing.T) {
		var hand *HandLandmarks
		if err := hand.Validate(); err == nil {
			t.Error("expected error for nil hand")
		}
	})
}

func TestHandLandmarks_Point(t *testing.T) {
	hand := HandLandmarks{}
	hand.Points[IndexTip] = Point3D{X: 0.25, Y: 0.75, Z: -0.3}

	got := hand.Point(IndexTip)
	if got.X != 0.25 || got.Y != 0.75 {
		t.Errorf("Point(IndexTip) = %v, want (0.25, 0.75)", got)
	}
}

func TestPrimary(t *testing.T) {
	t.Run("no hands", func(t *testing.T) {
		if Primary(nil) != nil {
			t.Error("expected nil for no hands")
		}
	})

	t.Run("highest score wins", func(t *testing.T) {
		a := OpenHandAt(0.2, 0.2)
		a.Score = 0.6
		b := OpenHandAt(0.7, 0.7)
		b.Score = 0.9

		got := Primary([]HandLandmarks{a, b})
		if got == nil || got.Points[IndexTip].X != 0.7 {
			t.Errorf("expected the second hand, got %+v", got)
		}
	})
}

func TestSyntheticHand(t *testing.T) {
	t.Run("index tip at requested position", func(t *testing.T) {
		hand := OpenHandAt(0.4, 0.3)
		p := hand.Point(IndexTip)
		if math.Abs(p.X-0.4) > epsilon || math.Abs(p.Y-0.3) > epsilon {
			t.Errorf("index tip = %v, want (0.4, 0.3)", p)
		}
	})

	t.Run("pinch gap is thumb to index distance", func(t *testing.T) {
		hand := PinchAt(0.5, 0.5, 0.03)
		d := dist(hand.Point(ThumbTip), hand.Point(IndexTip))
		if math.Abs(d-0.03) > epsilon {
			t.Errorf("pinch distance = %f, want 0.03", d)
		}
	})

	t.Run("open hand has extended fingers", func(t *testing.T) {
		hand := OpenHandAt(0.5, 0.5)
		for _, f := range Fingers {
			d := dist(hand.Point(f.Tip), hand.Point(f.PIP))
			if math.Abs(d-openTipGap) > epsilon {
				t.Errorf("%s tip-PIP = %f, want %f", f.Name, d, openTipGap)
			}
		}
	})

	t.Run("fist curls all fingers", func(t *testing.T) {
		hand := FistAt(0.5, 0.5)
		for _, f := range Fingers {
			d := dist(hand.Point(f.Tip), hand.Point(f.PIP))
			if math.Abs(d-curledTipGap) > epsilon {
				t.Errorf("%s tip-PIP = %f, want %f", f.Name, d, curledTipGap)
			}
		}
	})

	t.Run("partial fold starts from the pinky", func(t *testing.T) {
		hand := SyntheticHand(Pose{Index: r2.Vec{X: 0.5, Y: 0.5}, PinchGap: 0.15, Folded: 2})
		want := map[string]float64{
			"index":  openTipGap,
			"middle": openTipGap,
			"ring":   curledTipGap,
			"pinky":  curledTipGap,
		}
		for _, f := range Fingers {
			d := dist(hand.Point(f.Tip), hand.Point(f.PIP))
			if math.Abs(d-want[f.Name]) > epsilon {
				t.Errorf("%s tip-PIP = %f, want %f", f.Name, d, want[f.Name])
			}
		}
	})
}

func TestMockDetector(t *testing.T) {
	t.Run("returns empty hands by default", func(t *testing.T) {
		mock := NewMockDetector()

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if hands != nil {
			t.Errorf("expected nil hands, got %v", hands)
		}
	})

	t.Run("returns configured hands", func(t *testing.T) {
		mock := NewMockDetector()

		mock.SetHands([]HandLandmarks{OpenHandAt(0.5, 0.5), FistAt(0.2, 0.2)})

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if len(hands) != 2 {
			t.Errorf("expected 2 hands, got %d", len(hands))
		}
	})

	t.Run("plays back a sequence then reports no hands", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetSequence([][]HandLandmarks{
			{OpenHandAt(0.1, 0.1)},
			nil,
			{OpenHandAt(0.3, 0.3)},
		})

		wantCounts := []int{1, 0, 1, 0, 0}
		for i, want := range wantCounts {
			hands, err := mock.Detect(nil)
			if err != nil {
				t.Fatalf("call %d: unexpected error: %v", i, err)
			}
			if len(hands) != want {
				t.Errorf("call %d: expected %d hands, got %d", i, want, len(hands))
			}
		}
		if mock.Calls() != len(wantCounts) {
			t.Errorf("Calls() = %d, want %d", mock.Calls(), len(wantCounts))
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()

		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		hands, err := mock.Detect(nil)

		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if hands != nil {
			t.Errorf("expected nil hands when error is set, got %v", hands)
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
	})
}

func TestJSONHand_ToHandLandmarks(t *testing.T) {
	h := jsonHand{
		Handedness: "Left",
		Score:      0.8,
		Points:     make([]jsonPoint, NumLandmarks+3),
	}
	h.Points[IndexTip] = jsonPoint{X: 0.1, Y: 0.2, Z: 0.3}

	lm := h.toHandLandmarks()
	if lm.Handedness != "Left" || lm.Score != 0.8 {
		t.Errorf("metadata not preserved: %+v", lm)
	}
	if lm.Points[IndexTip] != (Point3D{X: 0.1, Y: 0.2, Z: 0.3}) {
		t.Errorf("IndexTip = %+v", lm.Points[IndexTip])
	}

	short := jsonHand{Points: []jsonPoint{{X: 1, Y: 1}}}
	lm = short.toHandLandmarks()
	if lm.Points[Wrist] != (Point3D{X: 1, Y: 1}) || lm.Points[ThumbCMC] != (Point3D{}) {
		t.Errorf("short point list not handled: %+v", lm.Points[:2])
	}
}
