package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/motion.report/internal/units"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for the fusion pipeline.
// The schema matches the /api/config endpoint so the same JSON can be used
// for both startup configuration and runtime inspection.
type TuningConfig struct {
	// Attitude estimator params
	Algorithm *string  `json:"algorithm,omitempty"` // "madgwick" or "mahony"
	Beta      *float64 `json:"beta,omitempty"`      // Madgwick gradient step gain
	MahonyKp  *float64 `json:"mahony_kp,omitempty"` // Mahony proportional gain
	MahonyKi  *float64 `json:"mahony_ki,omitempty"` // Mahony integral gain

	// Display filter params
	SmoothingWindow  *int     `json:"smoothing_window,omitempty"`   // moving-average window
	LowPassCutoffHz  *float64 `json:"low_pass_cutoff_hz,omitempty"`
	HighPassCutoffHz *float64 `json:"high_pass_cutoff_hz,omitempty"`
	MaxChartPoints   *int     `json:"max_chart_points,omitempty"`

	// Orchestrator params
	BackgroundPrecompute *bool `json:"background_precompute,omitempty"`

	// Output params
	AngleUnits *string `json:"angle_units,omitempty"` // "degrees" or "radians"
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
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

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.Algorithm != nil {
		if *c.Algorithm != "madgwick" && *c.Algorithm != "mahony" {
			return fmt.Errorf("algorithm must be madgwick or mahony, got %q", *c.Algorithm)
		}
	}

	if c.Beta != nil {
		if *c.Beta <= 0 || *c.Beta > 1 {
			return fmt.Errorf("beta must be in (0, 1], got %f", *c.Beta)
		}
	}

	if c.SmoothingWindow != nil {
		if *c.SmoothingWindow < 1 {
			return fmt.Errorf("smoothing_window must be at least 1, got %d", *c.SmoothingWindow)
		}
	}

	if c.LowPassCutoffHz != nil && *c.LowPassCutoffHz <= 0 {
		return fmt.Errorf("low_pass_cutoff_hz must be positive, got %f", *c.LowPassCutoffHz)
	}

	if c.HighPassCutoffHz != nil && *c.HighPassCutoffHz <= 0 {
		return fmt.Errorf("high_pass_cutoff_hz must be positive, got %f", *c.HighPassCutoffHz)
	}

	if c.MaxChartPoints != nil && *c.MaxChartPoints < 100 {
		return fmt.Errorf("max_chart_points must be at least 100, got %d", *c.MaxChartPoints)
	}

	if c.AngleUnits != nil && !units.IsValid(*c.AngleUnits) {
		return fmt.Errorf("angle_units must be one of %s, got %q", units.GetValidUnitsString(), *c.AngleUnits)
	}

	return nil
}

// GetAlgorithm returns the algorithm value or the default.
func (c *TuningConfig) GetAlgorithm() string {
	if c.Algorithm == nil {
		return "madgwick"
	}
	return *c.Algorithm
}

// GetBeta returns the beta value or the default.
func (c *TuningConfig) GetBeta() float64 {
	if c.Beta == nil {
		return 0.1
	}
	return *c.Beta
}

// GetMahonyKp returns the mahony_kp value or the default.
func (c *TuningConfig) GetMahonyKp() float64 {
	if c.MahonyKp == nil {
		return 0.5
	}
	return *c.MahonyKp
}

// GetMahonyKi returns the mahony_ki value or the default.
func (c *TuningConfig) GetMahonyKi() float64 {
	if c.MahonyKi == nil {
		return 0.0
	}
	return *c.MahonyKi
}

// GetSmoothingWindow returns the smoothing_window value or the default.
func (c *TuningConfig) GetSmoothingWindow() int {
	if c.SmoothingWindow == nil {
		return 5
	}
	return *c.SmoothingWindow
}

// GetLowPassCutoffHz returns the low_pass_cutoff_hz value or the default.
func (c *TuningConfig) GetLowPassCutoffHz() float64 {
	if c.LowPassCutoffHz == nil {
		return 10.0
	}
	return *c.LowPassCutoffHz
}

// GetHighPassCutoffHz returns the high_pass_cutoff_hz value or the default.
func (c *TuningConfig) GetHighPassCutoffHz() float64 {
	if c.HighPassCutoffHz == nil {
		return 0.5
	}
	return *c.HighPassCutoffHz
}

// GetMaxChartPoints returns the max_chart_points value or the default.
func (c *TuningConfig) GetMaxChartPoints() int {
	if c.MaxChartPoints == nil {
		return 4000
	}
	return *c.MaxChartPoints
}

// GetBackgroundPrecompute returns the background_precompute value or the default.
func (c *TuningConfig) GetBackgroundPrecompute() bool {
	if c.BackgroundPrecompute == nil {
		return true
	}
	return *c.BackgroundPrecompute
}

// GetAngleUnits returns the angle_units value or the default.
func (c *TuningConfig) GetAngleUnits() string {
	if c.AngleUnits == nil {
		return units.Degrees
	}
	return *c.AngleUnits
}
