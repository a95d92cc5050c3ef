package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Load reads the configuration file at path, applies environment overrides
// and then adjust, and validates the result. A missing file yields the
// defaults.
func Load(path string, adjust ...func(*Config) error) (*Config, error) {
	cfg, err := loadFromFile(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	for _, fn := range adjust {
		if err := fn(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile reads and parses a config file based on its extension.
func loadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	return cfg, nil
}

// ApplyEnvOverrides applies MUDRA_* environment variable overrides.
func (c *Config) ApplyEnvOverrides() error {
	if v := os.Getenv("MUDRA_CLICK_MODE"); v != "" {
		c.Gesture.ClickMode = strings.ToLower(v)
		c.Pin(KeyClickMode)
	}
	if v := os.Getenv("MUDRA_CAMERA"); v != "" {
		device, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MUDRA_CAMERA: %w", err)
		}
		c.Camera.Device = device
	}
	if v := os.Getenv("MUDRA_INJECT_BACKEND"); v != "" {
		c.Inject.Backend = v
	}
	if v := os.Getenv("MUDRA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MUDRA_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	return nil
}
