// Package pointer turns per-frame gesture levels and cursor positions into
// discrete pointer intents.
package pointer

import (
	"fmt"

	"github.com/ayusman/mudra/internal/geometry"
)

// Kind identifies a pointer intent.
type Kind int

const (
	Move Kind = iota
	Click
	// DoubleClick is the second click of a pair. The first was emitted as
	// Click, so injectors send one more press, not two.
	DoubleClick
	DragStart
	DragMove
	DragEnd
)

var kindNames = [...]string{
	Move:        "move",
	Click:       "click",
	DoubleClick: "double_click",
	DragStart:   "drag_start",
	DragMove:    "drag_move",
	DragEnd:     "drag_end",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown intent kind %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Intent is a single pointer action for the injection layer.
type Intent struct {
	Kind     Kind                 `json:"kind"`
	Position geometry.ScreenPoint `json:"position"`
}

func (i Intent) String() string {
	return fmt.Sprintf("%s(%d,%d)", i.Kind, i.Position.X, i.Position.Y)
}
