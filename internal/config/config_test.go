package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coach.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
student_id = "s042"

[endpoints]
inference = "http://inference.local:5000"
execution = "http://sandbox.local:5000"
persistence = "http://scores.local:5000"

[telemetry]
tick_interval_ms = 500
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StudentID != "s042" {
		t.Errorf("StudentID = %q", cfg.StudentID)
	}
	if cfg.Endpoints.Execution != "http://sandbox.local:5000" {
		t.Errorf("Execution = %q", cfg.Endpoints.Execution)
	}
	if cfg.Telemetry.TickIntervalMs != 500 {
		t.Errorf("TickIntervalMs = %d", cfg.Telemetry.TickIntervalMs)
	}
	// Untouched sections keep their defaults.
	if cfg.Retry.MaxRetries != 2 || cfg.Timeouts.RequestTimeoutMs != 60000 {
		t.Errorf("defaults lost: %+v %+v", cfg.Retry, cfg.Timeouts)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad toml", "student_id = "},
		{"empty endpoint", "[endpoints]\ninference = \"\""},
		{"zero tick", "[telemetry]\ntick_interval_ms = 0"},
		{"negative timeout", "[timeouts]\nrequest_timeout_ms = -5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("Load accepted invalid config")
			}
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default() invalid: %v", err)
	}
}
