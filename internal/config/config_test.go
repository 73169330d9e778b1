package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("APP_BACKEND_HOST")
	os.Unsetenv("APP_BACKEND_PORT")

	cfg := Load()

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Host = %s, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 5123 {
		t.Errorf("Port = %d, want 5123", cfg.Server.Port)
	}
	if cfg.Defaults.JobOptions.Thumb.Width != 320 {
		t.Errorf("Thumb.Width = %d, want 320", cfg.Defaults.JobOptions.Thumb.Width)
	}
	if cfg.Defaults.JobOptions.Embed.ModelText != "text-embedding-3-large" {
		t.Errorf("Embed.ModelText = %s, want text-embedding-3-large", cfg.Defaults.JobOptions.Embed.ModelText)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_BACKEND_HOST", "0.0.0.0")
	t.Setenv("APP_BACKEND_PORT", "9000")

	cfg := Load()

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Host = %s, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
}

func TestEnvInt_InvalidFallsBackToDefault(t *testing.T) {
	t.Setenv("APP_BACKEND_PORT", "not-a-number")

	if got := envInt("APP_BACKEND_PORT", 5123); got != 5123 {
		t.Errorf("envInt() = %d, want 5123", got)
	}
}
