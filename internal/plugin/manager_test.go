package plugin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/ayusman/mudra/internal/logging"
)

func writeManifest(t *testing.T, root, dir string, data []byte) {
	t.Helper()
	pluginDir := filepath.Join(root, dir)
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), data, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	return b
}

func TestManager_Discover(t *testing.T) {
	tmpDir := t.TempDir()

	writeManifest(t, tmpDir, "pointer-test", mustJSON(t, Manifest{
		Name:        "pointer-test",
		Version:     "1.0.0",
		Description: "A test plugin",
		Executable:  "pointer-test",
		Actions:     []string{ActionMove, ActionClick},
	}))

	manager := NewManager(tmpDir, logging.Discard())
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}

	plugin := plugins[0]
	if plugin.Manifest.Name != "pointer-test" {
		t.Errorf("expected plugin name 'pointer-test', got %q", plugin.Manifest.Name)
	}
	if plugin.Manifest.Description != "A test plugin" {
		t.Errorf("expected description 'A test plugin', got %q", plugin.Manifest.Description)
	}
	if !plugin.Manifest.Supports(ActionClick) || plugin.Manifest.Supports(ActionMouseDown) {
		t.Errorf("unexpected supported actions %v", plugin.Manifest.Actions)
	}
	if plugin.Path != filepath.Join(tmpDir, "pointer-test") {
		t.Errorf("unexpected path %q", plugin.Path)
	}
	if plugin.Executable != filepath.Join(tmpDir, "pointer-test", "pointer-test") {
		t.Errorf("unexpected executable %q", plugin.Executable)
	}
}

func TestManager_Discover_SkipsInvalid(t *testing.T) {
	tmpDir := t.TempDir()

	valid := Manifest{Name: "good", Version: "1.0.0", Executable: "good", Actions: []string{ActionMove}}
	writeManifest(t, tmpDir, "good", mustJSON(t, valid))

	cases := map[string][]byte{
		"not-json":       []byte("not valid json"),
		"no-actions":     []byte(`{"name":"no-actions","version":"1.0.0","executable":"x","actions":[]}`),
		"unknown-action": []byte(`{"name":"gesture","version":"1.0.0","executable":"x","actions":["volume-up"]}`),
		"bad-version":    []byte(`{"name":"bad-version","version":"one","executable":"x","actions":["move"]}`),
		"extra-field":    []byte(`{"name":"extra","version":"1.0.0","executable":"x","actions":["move"],"configSchema":{}}`),
		"missing-exec":   []byte(`{"name":"missing","version":"1.0.0","actions":["move"]}`),
	}
	for dir, data := range cases {
		writeManifest(t, tmpDir, dir, data)
	}

	// A directory without a manifest is ignored.
	if err := os.MkdirAll(filepath.Join(tmpDir, "empty"), 0755); err != nil {
		t.Fatal(err)
	}

	manager := NewManager(tmpDir, logging.Discard())
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed unexpectedly: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 || plugins[0].Manifest.Name != "good" {
		names := make([]string, 0, len(plugins))
		for _, p := range plugins {
			names = append(names, p.Manifest.Name)
		}
		t.Fatalf("expected only 'good', got %v", names)
	}
}

func TestManager_Discover_Platforms(t *testing.T) {
	tmpDir := t.TempDir()

	other := "windows"
	if runtime.GOOS == "windows" {
		other = "linux"
	}
	writeManifest(t, tmpDir, "native", mustJSON(t, Manifest{
		Name: "native", Version: "1.0.0", Executable: "native",
		Actions: []string{ActionMove}, Platforms: []string{runtime.GOOS},
	}))
	writeManifest(t, tmpDir, "foreign", mustJSON(t, Manifest{
		Name: "foreign", Version: "1.0.0", Executable: "foreign",
		Actions: []string{ActionMove}, Platforms: []string{other},
	}))

	manager := NewManager(tmpDir, logging.Discard())
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	if _, err := manager.Get("native"); err != nil {
		t.Errorf("Get(native) error = %v", err)
	}
	if _, err := manager.Get("foreign"); err != ErrPluginNotFound {
		t.Errorf("Get(foreign) = %v, want ErrPluginNotFound", err)
	}
}

func TestManager_List_Sorted(t *testing.T) {
	tmpDir := t.TempDir()
	for _, name := range []string{"pointer-b", "pointer-a", "pointer-c"} {
		writeManifest(t, tmpDir, name, mustJSON(t, Manifest{
			Name: name, Version: "1.0.0", Executable: name, Actions: []string{ActionMove},
		}))
	}

	manager := NewManager(tmpDir, logging.Discard())
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 3 {
		t.Fatalf("expected 3 plugins, got %d", len(plugins))
	}
	for i, want := range []string{"pointer-a", "pointer-b", "pointer-c"} {
		if plugins[i].Manifest.Name != want {
			t.Errorf("plugins[%d] = %q, want %q", i, plugins[i].Manifest.Name, want)
		}
	}
}

func TestManager_Get_NotFound(t *testing.T) {
	manager := NewManager(t.TempDir(), logging.Discard())

	_, err := manager.Get("nonexistent-plugin")
	if err != ErrPluginNotFound {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
}

func TestManager_Discover_NonExistentDir(t *testing.T) {
	manager := NewManager("/path/that/does/not/exist", nil)

	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed on non-existent dir: %v", err)
	}
	if len(manager.List()) != 0 {
		t.Fatalf("expected 0 plugins, got %d", len(manager.List()))
	}
	if manager.PluginDir() != "/path/that/does/not/exist" {
		t.Errorf("unexpected plugin dir %q", manager.PluginDir())
	}
}

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(`{
		"name": "pointer-xdotool",
		"version": "0.2.0",
		"executable": "pointer-xdotool",
		"actions": ["move", "click", "double_click", "mouse_down", "mouse_up"],
		"platforms": ["linux", "freebsd"]
	}`))
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}
	if len(m.Actions) != 5 || len(m.Platforms) != 2 {
		t.Errorf("unexpected manifest %+v", m)
	}

	if _, err := ParseManifest([]byte(`{"name":"Bad Name","version":"1.0.0","executable":"x","actions":["move"]}`)); err == nil {
		t.Error("expected schema error for invalid name")
	}
}
