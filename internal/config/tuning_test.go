package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if got := cfg.GetAlgorithm(); got != "madgwick" {
		t.Errorf("GetAlgorithm() = %q, want madgwick", got)
	}
	if got := cfg.GetBeta(); got != 0.1 {
		t.Errorf("GetBeta() = %v, want 0.1", got)
	}
	if got := cfg.GetSmoothingWindow(); got != 5 {
		t.Errorf("GetSmoothingWindow() = %d, want 5", got)
	}
	if got := cfg.GetLowPassCutoffHz(); got != 10.0 {
		t.Errorf("GetLowPassCutoffHz() = %v, want 10", got)
	}
	if got := cfg.GetHighPassCutoffHz(); got != 0.5 {
		t.Errorf("GetHighPassCutoffHz() = %v, want 0.5", got)
	}
	if !cfg.GetBackgroundPrecompute() {
		t.Error("GetBackgroundPrecompute() = false, want true")
	}
	if got := cfg.GetAngleUnits(); got != "degrees" {
		t.Errorf("GetAngleUnits() = %q, want degrees", got)
	}
}

func TestLoadTuningConfigPartial(t *testing.T) {
	path := writeTempConfig(t, "tuning.json", `{"algorithm":"mahony","beta":0.05}`)

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("LoadTuningConfig: %v", err)
	}
	if got := cfg.GetAlgorithm(); got != "mahony" {
		t.Errorf("GetAlgorithm() = %q, want mahony", got)
	}
	if got := cfg.GetBeta(); got != 0.05 {
		t.Errorf("GetBeta() = %v, want 0.05", got)
	}
	// Unset fields fall back to defaults.
	if got := cfg.GetMaxChartPoints(); got != 4000 {
		t.Errorf("GetMaxChartPoints() = %d, want 4000", got)
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	path := writeTempConfig(t, "tuning.yaml", "algorithm: mahony")
	if _, err := LoadTuningConfig(path); err == nil {
		t.Fatal("expected error for non-.json extension")
	}
}

func TestValidate(t *testing.T) {
	bad := func(mutate func(*TuningConfig)) *TuningConfig {
		cfg := EmptyTuningConfig()
		mutate(cfg)
		return cfg
	}

	badAlgo := "ekf"
	badBeta := -0.5
	badWindow := 0
	badCutoff := 0.0
	badPoints := 10
	badUnits := "gradians"

	tests := []struct {
		name string
		cfg  *TuningConfig
	}{
		{"unknown algorithm", bad(func(c *TuningConfig) { c.Algorithm = &badAlgo })},
		{"negative beta", bad(func(c *TuningConfig) { c.Beta = &badBeta })},
		{"zero window", bad(func(c *TuningConfig) { c.SmoothingWindow = &badWindow })},
		{"zero cutoff", bad(func(c *TuningConfig) { c.LowPassCutoffHz = &badCutoff })},
		{"tiny chart cap", bad(func(c *TuningConfig) { c.MaxChartPoints = &badPoints })},
		{"bad units", bad(func(c *TuningConfig) { c.AngleUnits = &badUnits })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if err := EmptyTuningConfig().Validate(); err != nil {
		t.Errorf("empty config should validate, got %v", err)
	}
}
