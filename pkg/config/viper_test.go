package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadReadsYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	content := []byte("server:\n  port: 9000\n  host: 127.0.0.1\n")
	if err := os.WriteFile(filepath.Join(dir, "app.yaml"), content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TESTAPP_SERVER_HOST", "0.0.0.0")

	v, err := Load(dir, "app", WithEnvPrefix("TESTAPP"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := v.GetInt("server.port"); got != 9000 {
		t.Errorf("server.port = %d, want 9000", got)
	}
	if got := v.GetString("server.host"); got != "0.0.0.0" {
		t.Errorf("server.host = %q, want env override 0.0.0.0", got)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	v, err := Load(t.TempDir(), "does-not-exist")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	v.SetDefault("log.level", "info")
	if got := v.GetString("log.level"); got != "info" {
		t.Errorf("log.level = %q, want info", got)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("WES_POLLS_TEST_KEY", "set")
	if got := GetEnv("WES_POLLS_TEST_KEY", "fallback"); got != "set" {
		t.Errorf("GetEnv() = %q, want set", got)
	}
	if got := GetEnv("WES_POLLS_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("GetEnv() = %q, want fallback", got)
	}
}
