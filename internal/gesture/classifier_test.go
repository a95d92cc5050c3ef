package gesture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ayusman/mudra/internal/detector"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func frameAt(i int) time.Time {
	return t0.Add(time.Duration(i) * time.Second / 30)
}

func newClassifier(t *testing.T, mode Mode, mutate func(*Thresholds)) *Classifier {
	t.Helper()
	th := DefaultThresholds()
	if mutate != nil {
		mutate(&th)
	}
	c, err := NewClassifier(th, mode)
	require.NoError(t, err)
	return c
}

func pinch(gap float64) *detector.HandLandmarks {
	h := detector.PinchAt(0.5, 0.4, gap)
	return &h
}

func fist() *detector.HandLandmarks {
	h := detector.FistAt(0.5, 0.4)
	return &h
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"pinch", ModePinch, false},
		{"FIST", ModeFist, false},
		{" Pinch ", ModePinch, false},
		{"palm", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, ModeFist, ModePinch.Toggle())
	assert.Equal(t, ModePinch, ModeFist.Toggle())
	assert.Equal(t, Pinching, ModePinch.ClickLevel())
	assert.Equal(t, Fisted, ModeFist.ClickLevel())
}

func TestThresholds_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Thresholds)
	}{
		{"zero pinch", func(th *Thresholds) { th.Pinch = 0 }},
		{"negative fold", func(th *Thresholds) { th.Fold = -1 }},
		{"fold min zero", func(th *Thresholds) { th.FoldMin = 0 }},
		{"fold min five", func(th *Thresholds) { th.FoldMin = 5 }},
		{"negative debounce", func(th *Thresholds) { th.Debounce = -1 }},
		{"zero aspect", func(th *Thresholds) { th.Aspect = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := DefaultThresholds()
			tt.mutate(&th)
			assert.Error(t, th.Validate())
		})
	}
	assert.NoError(t, DefaultThresholds().Validate())
}

func TestMetrics(t *testing.T) {
	h := detector.PinchAt(0.3, 0.3, 0.04)
	assert.InDelta(t, 0.04, PinchDistance(&h, 4.0/3.0), 1e-9)
	assert.Equal(t, 0, FoldedFingers(&h, 4.0/3.0, 0.06))

	f := detector.FistAt(0.3, 0.3)
	assert.Equal(t, 4, FoldedFingers(&f, 4.0/3.0, 0.06))

	partial := detector.SyntheticHand(detector.Pose{Index: r2.Vec{X: 0.3, Y: 0.3}, PinchGap: 0.2, Folded: 2})
	assert.Equal(t, 2, FoldedFingers(&partial, 4.0/3.0, 0.06))

	// Horizontal offsets are stretched by the aspect ratio.
	var wide detector.HandLandmarks
	wide.Points[detector.ThumbTip] = detector.Point3D{X: 0.5, Y: 0.5}
	wide.Points[detector.IndexTip] = detector.Point3D{X: 0.53, Y: 0.5}
	assert.InDelta(t, 0.04, PinchDistance(&wide, 4.0/3.0), 1e-9)

	assert.InDelta(t, 0.05, PixelsToUnits(24, 480), 1e-12)
	assert.InDelta(t, 24, UnitsToPixels(0.05, 480), 1e-12)
	assert.Zero(t, PixelsToUnits(10, 0))
}

func TestClassify_ScenarioDebounce(t *testing.T) {
	c := newClassifier(t, ModePinch, nil)

	gaps := []float64{0.09, 0.03, 0.03, 0.09}
	want := []Level{Open, Open, Pinching, Open}
	for i, gap := range gaps {
		r := c.Classify(pinch(gap), frameAt(i))
		assert.Equal(t, want[i], r.Level, "frame %d", i)
		assert.InDelta(t, gap, r.PinchDistance, 1e-9)
	}
}

func TestClassify_HysteresisSingleFrameNoise(t *testing.T) {
	const threshold = 0.05
	above := threshold * 1.01
	below := threshold * 0.99

	t.Run("single dip below does not engage", func(t *testing.T) {
		c := newClassifier(t, ModePinch, nil)
		for i := 0; i < 20; i++ {
			gap := above
			if i%2 == 1 {
				gap = below
			}
			r := c.Classify(pinch(gap), frameAt(i))
			assert.Equal(t, Open, r.Level, "frame %d", i)
		}
	})

	t.Run("at most one toggle within the debounce window", func(t *testing.T) {
		c := newClassifier(t, ModePinch, nil)
		c.Classify(pinch(below), frameAt(0))
		require.Equal(t, Pinching, c.Classify(pinch(below), frameAt(1)).Level)

		// One noisy frame above the threshold followed by a return below it.
		levels := []Level{
			c.Classify(pinch(above), frameAt(2)).Level,
			c.Classify(pinch(below), frameAt(3)).Level,
		}
		toggles := 0
		prev := Pinching
		for _, l := range levels {
			if l != prev {
				toggles++
			}
			prev = l
		}
		assert.LessOrEqual(t, toggles, 1)
	})
}

func TestClassify_ZeroDebounceIsImmediate(t *testing.T) {
	c := newClassifier(t, ModePinch, func(th *Thresholds) { th.Debounce = 0 })
	r := c.Classify(pinch(0.01), frameAt(0))
	assert.Equal(t, Pinching, r.Level)
	assert.Equal(t, frameAt(0), r.Since)
}

func TestClassify_SinceTracksOnset(t *testing.T) {
	c := newClassifier(t, ModePinch, nil)
	c.Classify(pinch(0.01), frameAt(0))
	c.Classify(pinch(0.01), frameAt(1))
	r := c.Classify(pinch(0.01), frameAt(5))
	assert.Equal(t, Pinching, r.Level)
	assert.Equal(t, frameAt(1), r.Since)
}

func TestClassify_ModePrecedence(t *testing.T) {
	// A fist whose thumb rests on the index tip satisfies both metrics.
	both := detector.SyntheticHand(detector.Pose{Index: r2.Vec{X: 0.5, Y: 0.5}, PinchGap: 0.01, Folded: 4})

	tests := []struct {
		name     string
		mode     Mode
		foldDrag bool
		hand     detector.HandLandmarks
		want     Level
	}{
		{"pinch mode prefers pinch", ModePinch, true, both, Pinching},
		{"fist mode ignores pinch", ModeFist, false, both, Fisted},
		{"fist mode open pinch", ModeFist, false, detector.PinchAt(0.5, 0.5, 0.01), Open},
		{"pinch mode fist without fold drag", ModePinch, false, detector.FistAt(0.5, 0.5), Open},
		{"pinch mode fist with fold drag", ModePinch, true, detector.FistAt(0.5, 0.5), Fisted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClassifier(t, tt.mode, func(th *Thresholds) { th.FoldDrag = tt.foldDrag })
			h := tt.hand
			c.Classify(&h, frameAt(0))
			r := c.Classify(&h, frameAt(1))
			assert.Equal(t, tt.want, r.Level)
		})
	}
}

func TestClassify_SwitchingGestureReleasesFirst(t *testing.T) {
	c := newClassifier(t, ModePinch, func(th *Thresholds) { th.FoldDrag = true })
	c.Classify(pinch(0.01), frameAt(0))
	require.Equal(t, Pinching, c.Classify(pinch(0.01), frameAt(1)).Level)

	assert.Equal(t, Open, c.Classify(fist(), frameAt(2)).Level)
	assert.Equal(t, Fisted, c.Classify(fist(), frameAt(3)).Level)
}

func TestClassifier_ResetAndSetMode(t *testing.T) {
	c := newClassifier(t, ModeFist, nil)
	c.Classify(fist(), frameAt(0))
	require.Equal(t, Fisted, c.Classify(fist(), frameAt(1)).Level)

	c.Reset()
	assert.Equal(t, Open, c.Level())
	// After a reset the onset is debounced again.
	assert.Equal(t, Open, c.Classify(fist(), frameAt(2)).Level)
	assert.Equal(t, Fisted, c.Classify(fist(), frameAt(3)).Level)

	c.SetMode(ModePinch)
	assert.Equal(t, ModePinch, c.Mode())
	assert.Equal(t, Open, c.Level())
	assert.Equal(t, Open, c.Classify(fist(), frameAt(4)).Level)
}

func TestNewClassifier_InvalidMode(t *testing.T) {
	_, err := NewClassifier(DefaultThresholds(), Mode("wave"))
	assert.Error(t, err)
}

func TestThresholds_ForFrame(t *testing.T) {
	th := DefaultThresholds()
	th.PinchPx = 36

	got := th.ForFrame(1280, 720)
	assert.InDelta(t, 16.0/9.0, got.Aspect, 1e-12)
	assert.InDelta(t, 0.05, got.Pinch, 1e-12)
	assert.Equal(t, th.Fold, got.Fold, "fold stays in units without FoldPx")

	assert.Equal(t, th, th.ForFrame(0, 0))

	th.FoldPx = -1
	assert.Error(t, th.Validate())
}

func TestClassifier_SetFrameSize(t *testing.T) {
	c := newClassifier(t, ModePinch, func(th *Thresholds) {
		th.Debounce = 0
		th.PinchPx = 24
	})

	// 24px is 0.05 of a 480 line frame: a 0.07 gap is open.
	c.SetFrameSize(640, 480)
	assert.Equal(t, Open, c.Classify(pinch(0.07), frameAt(0)).Level)

	// On a 240 line frame the same 24px is 0.1, so the gap pinches.
	c.SetFrameSize(320, 240)
	assert.InDelta(t, 0.1, c.Thresholds().Pinch, 1e-12)
	assert.Equal(t, Pinching, c.Classify(pinch(0.07), frameAt(1)).Level)
}
