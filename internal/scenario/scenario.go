// Package scenario loads scripted hand-pose sequences used to exercise the
// full pointer pipeline without a camera.
package scenario

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
)

//go:embed testdata/*.yaml
var scenarioFS embed.FS

// Poses understood in scenario steps.
const (
	PoseOpen  = "open"
	PosePinch = "pinch"
	PoseFist  = "fist"
	PoseNone  = "none"
)

// Step holds one pose for a number of frames. When To is set the index tip
// moves linearly from At to To over the step.
type Step struct {
	Pose   string      `yaml:"pose"`
	At     [2]float64  `yaml:"at"`
	To     *[2]float64 `yaml:"to,omitempty"`
	Gap    float64     `yaml:"gap,omitempty"`
	Frames int         `yaml:"frames"`
}

// Scenario is a scripted gesture sequence and the actions it must inject.
type Scenario struct {
	Name      string       `yaml:"name"`
	Mode      gesture.Mode `yaml:"mode"`
	Calibrate bool         `yaml:"calibrate"`
	Steps     []Step       `yaml:"steps"`
	// Expect lists the injected non-move actions in order.
	Expect []string `yaml:"expect"`
	// Anchors is the number of calibration anchors expected at the end.
	Anchors int `yaml:"anchors"`
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if s.Mode == "" {
		s.Mode = gesture.ModePinch
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the scenario for errors.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario has no name")
	}
	if _, err := gesture.ParseMode(string(s.Mode)); err != nil {
		return fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", s.Name)
	}
	for i, st := range s.Steps {
		switch st.Pose {
		case PoseOpen, PosePinch, PoseFist, PoseNone:
		default:
			return fmt.Errorf("scenario %q step %d: unknown pose %q", s.Name, i, st.Pose)
		}
		if st.Frames <= 0 {
			return fmt.Errorf("scenario %q step %d: frames must be positive", s.Name, i)
		}
	}
	return nil
}

// Load reads a bundled scenario by name (without extension).
func Load(name string) (*Scenario, error) {
	data, err := scenarioFS.ReadFile(path.Join("testdata", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", name, err)
	}
	return Parse(data)
}

// All returns every bundled scenario sorted by file name.
func All() ([]*Scenario, error) {
	names, err := fs.Glob(scenarioFS, "testdata/*.yaml")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	out := make([]*Scenario, 0, len(names))
	for _, n := range names {
		data, err := scenarioFS.ReadFile(n)
		if err != nil {
			return nil, err
		}
		s, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// Frames expands the steps into one detector result per frame. A frame
// with no hand is nil.
func (s *Scenario) Frames() [][]detector.HandLandmarks {
	var out [][]detector.HandLandmarks
	for _, st := range s.Steps {
		from := r2.Vec{X: st.At[0], Y: st.At[1]}
		to := from
		if st.To != nil {
			to = r2.Vec{X: st.To[0], Y: st.To[1]}
		}
		for i := 0; i < st.Frames; i++ {
			if st.Pose == PoseNone {
				out = append(out, nil)
				continue
			}
			t := 0.0
			if st.Frames > 1 {
				t = float64(i) / float64(st.Frames-1)
			}
			at := r2.Add(from, r2.Scale(t, r2.Sub(to, from)))
			out = append(out, []detector.HandLandmarks{hand(st, at)})
		}
	}
	return out
}

func hand(st Step, at r2.Vec) detector.HandLandmarks {
	switch st.Pose {
	case PosePinch:
		gap := st.Gap
		if gap == 0 {
			gap = 0.01
		}
		return detector.PinchAt(at.X, at.Y, gap)
	case PoseFist:
		return detector.FistAt(at.X, at.Y)
	default:
		return detector.OpenHandAt(at.X, at.Y)
	}
}
