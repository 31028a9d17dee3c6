package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.ListenAddress != defaultListenAddress {
		t.Fatalf("expected default listen address %s, got %s", defaultListenAddress, cfg.ListenAddress)
	}
	if cfg.AdminAddress != defaultAdminAddress {
		t.Fatalf("expected default admin address %s, got %s", defaultAdminAddress, cfg.AdminAddress)
	}
	if cfg.LogLevel != defaultLogLevel {
		t.Fatalf("expected default log level %s, got %s", defaultLogLevel, cfg.LogLevel)
	}
	if cfg.ShutdownGracePeriod != defaultShutdownGracePeriod {
		t.Fatalf("expected default grace %s, got %s", defaultShutdownGracePeriod, cfg.ShutdownGracePeriod)
	}
	if cfg.Router.SendBuffer != defaultSendBuffer {
		t.Fatalf("expected default send buffer %d, got %d", defaultSendBuffer, cfg.Router.SendBuffer)
	}
	if cfg.Router.MaxFrameBytes != defaultMaxFrameBytes {
		t.Fatalf("expected default max frame bytes %d, got %d", defaultMaxFrameBytes, cfg.Router.MaxFrameBytes)
	}
}

func TestLoadWithFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(`
listen_address: "127.0.0.1:7001"
log_level: "debug"
shutdown_grace_period: "5s"
router:
  send_buffer: 8
  max_frame_bytes: 1024
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("IRIS_LISTEN_ADDRESS", ":6000")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.ListenAddress != ":6000" {
		t.Fatalf("expected env override for listen address, got %s", cfg.ListenAddress)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log level debug, got %s", cfg.LogLevel)
	}
	if cfg.ShutdownGracePeriod != 5*time.Second {
		t.Fatalf("expected grace 5s, got %s", cfg.ShutdownGracePeriod)
	}
	if cfg.Router.SendBuffer != 8 {
		t.Fatalf("expected send buffer 8, got %d", cfg.Router.SendBuffer)
	}
	if cfg.Router.MaxFrameBytes != 1024 {
		t.Fatalf("expected max frame bytes 1024, got %d", cfg.Router.MaxFrameBytes)
	}
}

func TestLoadRejectsBadGracePeriod(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("shutdown_grace_period: \"soon\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("expected error for unparseable shutdown_grace_period")
	}
}
