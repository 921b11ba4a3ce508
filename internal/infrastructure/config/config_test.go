package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestLoad_DefaultsApplyWithNoFiles(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.Log.Level)
	}
	if cfg.Probe.ChannelBuffer != 4096 {
		t.Fatalf("expected default probe channel buffer 4096, got %d", cfg.Probe.ChannelBuffer)
	}
	if len(cfg.Sinks) != 1 || cfg.Sinks[0].Type != "stdout" {
		t.Fatalf("expected one default stdout sink, got %+v", cfg.Sinks)
	}
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OISP_LOG_LEVEL", "debug")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected env override to win, got %q", cfg.Log.Level)
	}
}

func TestBootstrap_WritesDefaultsOnce(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if err := Bootstrap(zap.NewNop()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	policyPath := filepath.Join(HomeDir(), "policy.yaml")
	if _, err := os.Stat(policyPath); err != nil {
		t.Fatalf("expected default policy.yaml to be created: %v", err)
	}

	if err := os.WriteFile(policyPath, []byte("# edited by user\n"), 0o644); err != nil {
		t.Fatalf("simulate user edit: %v", err)
	}
	if err := Bootstrap(zap.NewNop()); err != nil {
		t.Fatalf("second Bootstrap: %v", err)
	}
	data, err := os.ReadFile(policyPath)
	if err != nil {
		t.Fatalf("read policy.yaml: %v", err)
	}
	if string(data) != "# edited by user\n" {
		t.Fatalf("expected Bootstrap to never overwrite an existing file, got %q", string(data))
	}
}
