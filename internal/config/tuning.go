// Package config loads viewer tuning parameters from JSON. Fields are
// pointers so partial configs leave the built-in defaults intact.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TuningConfig represents the tunable parameters of the track sanitiser and
// the playback engine. The same JSON schema is used for startup
// configuration and for test fixtures.
type TuningConfig struct {
	// Sanitiser params
	MaxJumpMeters *float64 `json:"max_jump_meters,omitempty"`

	// Playback params
	TickInterval *string  `json:"tick_interval,omitempty"` // duration string like "150ms"
	SkipFraction *float64 `json:"skip_fraction,omitempty"`

	// Display params
	Units *string `json:"units,omitempty"` // kph, mph, or mps
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must
// have a .json extension and be under the max file size. Fields omitted
// from the JSON retain their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.MaxJumpMeters != nil && *c.MaxJumpMeters <= 0 {
		return fmt.Errorf("max_jump_meters must be positive, got %f", *c.MaxJumpMeters)
	}

	if c.TickInterval != nil && *c.TickInterval != "" {
		d, err := time.ParseDuration(*c.TickInterval)
		if err != nil {
			return fmt.Errorf("invalid tick_interval '%s': %w", *c.TickInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("tick_interval must be positive, got %s", d)
		}
	}

	if c.SkipFraction != nil {
		if *c.SkipFraction <= 0 || *c.SkipFraction >= 1 {
			return fmt.Errorf("skip_fraction must be between 0 and 1, got %f", *c.SkipFraction)
		}
	}

	if c.Units != nil && *c.Units != "" {
		switch *c.Units {
		case "kph", "mph", "mps":
		default:
			return fmt.Errorf("invalid units %q (valid: kph, mph, mps)", *c.Units)
		}
	}
	return nil
}

// GetMaxJumpMeters returns the max_jump_meters value or the default.
func (c *TuningConfig) GetMaxJumpMeters() float64 {
	if c.MaxJumpMeters == nil {
		return 500.0
	}
	return *c.MaxJumpMeters
}

// GetTickInterval parses and returns the TickInterval as a time.Duration.
func (c *TuningConfig) GetTickInterval() time.Duration {
	if c.TickInterval == nil || *c.TickInterval == "" {
		return 150 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.TickInterval)
	if err != nil {
		return 150 * time.Millisecond
	}
	return d
}

// GetSkipFraction returns the skip_fraction value or the default.
func (c *TuningConfig) GetSkipFraction() float64 {
	if c.SkipFraction == nil {
		return 0.1
	}
	return *c.SkipFraction
}

// GetUnits returns the units value or the default.
func (c *TuningConfig) GetUnits() string {
	if c.Units == nil || *c.Units == "" {
		return "kph"
	}
	return *c.Units
}
