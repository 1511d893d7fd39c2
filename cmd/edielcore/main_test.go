package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("EDIELCORE_CONFIG")
	defer os.Setenv("EDIELCORE_CONFIG", originalEnv)

	os.Setenv("EDIELCORE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails when validation rejects
// the config.
func TestRun_MissingDatabasePath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
service:
  id: test-service

import:
  directory: ` + tmpDir + `
  poll_interval: 60

database:
  path: ""
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: info
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 8080
  timeouts:
    read: 30
    write: 60
    idle: 120
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("EDIELCORE_CONFIG")
	defer os.Setenv("EDIELCORE_CONFIG", originalEnv)
	os.Setenv("EDIELCORE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("EDIELCORE_CONFIG")
	defer os.Setenv("EDIELCORE_CONFIG", originalEnv)

	os.Unsetenv("EDIELCORE_CONFIG")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("EDIELCORE_CONFIG")
	defer os.Setenv("EDIELCORE_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("EDIELCORE_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestRun_FullStartupShutdown runs the service with brokers disabled and
// verifies a clean shutdown on context cancellation.
func TestRun_FullStartupShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	inbox := filepath.Join(tmpDir, "inbox")
	if err := os.MkdirAll(inbox, 0o750); err != nil {
		t.Fatalf("creating inbox: %v", err)
	}

	configContent := `
service:
  id: test-service

import:
  directory: ` + inbox + `
  poll_interval: 60

database:
  path: ` + filepath.Join(tmpDir, "service.db") + `
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 18099
  timeouts:
    read: 30
    write: 60
    idle: 120
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("EDIELCORE_CONFIG")
	defer os.Setenv("EDIELCORE_CONFIG", originalEnv)
	os.Setenv("EDIELCORE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v, want clean shutdown", err)
	}
}
