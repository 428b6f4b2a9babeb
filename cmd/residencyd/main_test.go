package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"residencyd/internal/catalog"
	"residencyd/internal/config"
)

func serveCmd(t *testing.T, opts *options, args ...string) *cobra.Command {
	t.Helper()
	root := newRootCmdWith(opts)
	cmd, _, err := root.Find([]string{"serve"})
	if err != nil {
		t.Fatalf("find serve: %v", err)
	}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return cmd
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "residencyd.yaml")
	body := "addr: \":7000\"\nghost_threshold_mb: 900\nhigh_severity_mb: 1800\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(config.EnvPrefix+"GHOST_THRESHOLD_MB", "1000")
	t.Setenv(config.EnvPrefix+"ADDR", ":7100")

	opts := &options{}
	cmd := serveCmd(t, opts, "--config", path, "--addr", ":7200", "--zombie-killer")
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Addr != ":7200" {
		t.Fatalf("flag should win, got addr %q", cfg.Addr)
	}
	if cfg.GhostThresholdMB != 1000 {
		t.Fatalf("env should override file, got %v", cfg.GhostThresholdMB)
	}
	if cfg.HighSeverityMB != 1800 || cfg.LogLevel != "debug" {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if !cfg.ZombieKillerEnabled {
		t.Fatalf("zombie flag not applied")
	}
	if cfg.PollIntervalSeconds != config.DefaultPollSeconds {
		t.Fatalf("defaults not applied: %d", cfg.PollIntervalSeconds)
	}
}

func TestLoadConfig_UnsetFlagsKeepFileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "residencyd.toml")
	if err := os.WriteFile(path, []byte("addr = \":7300\"\ndevice_index = 2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	opts := &options{}
	cfg, err := loadConfig(serveCmd(t, opts, "--config", path), opts)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Addr != ":7300" || cfg.DeviceIndex != 2 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv(config.EnvPrefix+"LOG_FORMAT", "xml")
	opts := &options{}
	if _, err := loadConfig(serveCmd(t, opts), opts); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := newLogger(&buf, "warn", "json")
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"service":"residencyd"`) {
		t.Fatalf("unexpected output: %q", out)
	}
	if _, err := newLogger(&buf, "loud", "json"); err == nil {
		t.Fatalf("expected error for bad level")
	}
}

func TestBuildLoaders(t *testing.T) {
	cfg := config.Config{Backends: map[string]string{
		"tagger":    "http://127.0.0.1:9002",
		"diffusion": "http://127.0.0.1:9001",
	}}.WithDefaults()
	set, err := buildLoaders(cfg)
	if err != nil {
		t.Fatalf("buildLoaders: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("expected 2 loaders, got %d", set.Len())
	}
	l, err := set.For(catalog.FamilyDiffusion)
	if err != nil || l.Name() != "diffusion" {
		t.Fatalf("diffusion loader: %v %v", l, err)
	}

	cfg.Backends["painter"] = "http://x"
	if _, err := buildLoaders(cfg); err == nil {
		t.Fatalf("expected error for unknown family")
	}
}
