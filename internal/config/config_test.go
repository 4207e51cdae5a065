package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setupHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(home); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return home
}

func TestLoad_Defaults(t *testing.T) {
	home := setupHome(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected port 8080, got %q", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected log level info, got %q", cfg.LogLevel)
	}
	if cfg.MockLatency != 500*time.Millisecond {
		t.Errorf("expected 500ms mock latency, got %v", cfg.MockLatency)
	}
	if !cfg.MockSeed {
		t.Errorf("expected mock seed to default to true")
	}
	want := filepath.Join(home, ".config", "todo-sync", "session.toml")
	if cfg.SessionFile != want {
		t.Errorf("expected session file %q, got %q", want, cfg.SessionFile)
	}
	if !cfg.UseMock() {
		t.Errorf("expected mock mode without backend parameters")
	}
}

func TestLoad_Env(t *testing.T) {
	setupHome(t)
	t.Setenv("TODO_BACKEND_PROJECT", "my-project")
	t.Setenv("TODO_BACKEND_API_KEY", "AIza-key")
	t.Setenv("TODO_MOCK_LATENCY", "25ms")
	t.Setenv("TODO_PORT", "9090")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.UseMock() {
		t.Errorf("expected real backend with both parameters set")
	}
	if cfg.MockLatency != 25*time.Millisecond {
		t.Errorf("expected 25ms, got %v", cfg.MockLatency)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %q", cfg.Port)
	}
}

func TestLoad_File(t *testing.T) {
	home := setupHome(t)
	path := filepath.Join(home, "custom.toml")
	content := "backend_project = \"file-project\"\nbackend_api_key = \"file-key\"\nline_user_id = \"U123\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.BackendProject != "file-project" {
		t.Errorf("expected backend project from file, got %q", cfg.BackendProject)
	}
	if cfg.LineUserID != "U123" {
		t.Errorf("expected line user id from file, got %q", cfg.LineUserID)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	home := setupHome(t)

	if _, err := Load(filepath.Join(home, "missing.toml")); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestUseMock(t *testing.T) {
	tests := []struct {
		name    string
		project string
		key     string
		want    bool
	}{
		{"both set", "my-project", "key", false},
		{"missing key", "my-project", "", true},
		{"missing project", "", "key", true},
		{"placeholder project", "placeholder-project", "key", true},
		{"placeholder key", "my-project", "placeholder-key", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{BackendProject: tt.project, BackendAPIKey: tt.key}
			if got := cfg.UseMock(); got != tt.want {
				t.Errorf("expected UseMock() = %v, got %v", tt.want, got)
			}
		})
	}
}
