// Package plugin discovers out-of-process pointer plugins and talks to them
// over a line-delimited JSON protocol on stdin/stdout.
package plugin

// Pointer actions a plugin may implement.
const (
	ActionMove        = "move"
	ActionClick       = "click"
	ActionDoubleClick = "double_click"
	ActionMouseDown   = "mouse_down"
	ActionMouseUp     = "mouse_up"
)

// ErrorKindDenied marks a response refused by the operating system, usually
// for lack of accessibility permission.
const ErrorKindDenied = "denied"

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Executable  string   `json:"executable"`
	Actions     []string `json:"actions"`
	// Platforms lists the GOOS values the plugin runs on. Empty means any.
	Platforms []string `json:"platforms,omitempty"`
}

// Supports reports whether the manifest lists action.
func (m Manifest) Supports(action string) bool {
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Request is one line sent to a plugin.
type Request struct {
	ID     uint64 `json:"id"`
	Action string `json:"action"`
	X      int    `json:"x,omitempty"`
	Y      int    `json:"y,omitempty"`
}

// Response is one line read back from a plugin.
type Response struct {
	ID        uint64 `json:"id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
