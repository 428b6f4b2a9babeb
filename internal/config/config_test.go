package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"residencyd/internal/catalog"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\nghost_threshold_mb: 1200\nfootprints:\n  sdxl: 6500\nbackends:\n  diffusion: http://127.0.0.1:7001\nzombie_killer_enabled: true\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.GhostThresholdMB != 1200 || cfg.Footprints["sdxl"] != 6500 || !cfg.ZombieKillerEnabled {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Backends["diffusion"] != "http://127.0.0.1:7001" {
		t.Fatalf("backends not parsed: %+v", cfg.Backends)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","high_severity_mb":2500,"device_index":1,"cors_allowed_origins":["*"]}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.HighSeverityMB != 2500 || cfg.DeviceIndex != 1 || len(cfg.CORSAllowedOrigins) != 1 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nzombie_killer_interval_seconds=45\n\n[footprints]\nflux = 12000.0\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.ZombieKillerIntervalSeconds != 45 || cfg.Footprints["flux"] != 12000 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	if _, err := Load(writeTempFile(t, d, "cfg.txt", "not supported")); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	if _, err := Load("/definitely/not/a/real/file-12345.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
	if _, err := Load(writeTempFile(t, d, "bad.yaml", "addr: :8080\n: broken\n")); err == nil {
		t.Fatalf("expected YAML unmarshal error")
	}
	if _, err := Load(writeTempFile(t, d, "bad.json", `{ "addr": ":8080", "ghost_threshold_mb": }`)); err == nil {
		t.Fatalf("expected JSON unmarshal error")
	}
	if _, err := Load(writeTempFile(t, d, "bad.toml", "addr=:8080\nregistry_file\n")); err == nil {
		t.Fatalf("expected TOML unmarshal error")
	}
}

func TestWithDefaults(t *testing.T) {
	cfg := Config{}.WithDefaults()
	if cfg.Addr != DefaultAddr || cfg.GhostThresholdMB != 1500 || cfg.HighSeverityMB != 2000 || cfg.DefaultFootprintMB != 2000 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ZombieKillerIntervalSeconds != 30 || cfg.PollIntervalSeconds != 10 || cfg.SettleDelayMS != 1000 {
		t.Fatalf("unexpected loop defaults: %+v", cfg)
	}
	if cfg.ZombieKillerEnabled {
		t.Fatalf("zombie killer must default to disabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	kept := Config{Addr: ":1", GhostThresholdMB: 10}.WithDefaults()
	if kept.Addr != ":1" || kept.GhostThresholdMB != 10 {
		t.Fatalf("explicit values overwritten: %+v", kept)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		cfg  Config
		want string
	}{
		{Config{GhostThresholdMB: -1}, "ghost_threshold_mb"},
		{Config{GhostThresholdMB: 3000, HighSeverityMB: 2000}, "high_severity_mb"},
		{Config{DeviceIndex: -2}, "device_index"},
		{Config{Footprints: map[string]float64{"x": -5}}, "footprint"},
		{Config{Backends: map[string]string{"llm": "http://x"}}, "backends"},
		{Config{Backends: map[string]string{"tagger": " "}}, "empty url"},
		{Config{LogFormat: "xml"}, "log_format"},
	}
	for _, tc := range cases {
		err := tc.cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("cfg %+v: expected %q, got %v", tc.cfg, tc.want, err)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"RESIDENCYD_ADDR":                  ":9000",
		"RESIDENCYD_GHOST_THRESHOLD_MB":    "1750.5",
		"RESIDENCYD_ZOMBIE_KILLER_ENABLED": "true",
		"RESIDENCYD_FOOTPRINTS":            "sdxl=6100, flux=12000",
		"RESIDENCYD_BACKENDS":              "diffusion=http://127.0.0.1:7001",
		"RESIDENCYD_CORS_ALLOWED_ORIGINS":  "http://a, http://b",
		"RESIDENCYD_LOG_LEVEL":             "  ",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }
	cfg, err := Config{LogLevel: "warn", Footprints: map[string]float64{"keep": 1}}.applyEnv(lookup)
	if err != nil {
		t.Fatalf("env: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.GhostThresholdMB != 1750.5 || !cfg.ZombieKillerEnabled {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Footprints["sdxl"] != 6100 || cfg.Footprints["flux"] != 12000 || cfg.Footprints["keep"] != 1 {
		t.Fatalf("footprints: %+v", cfg.Footprints)
	}
	if cfg.Backends["diffusion"] != "http://127.0.0.1:7001" || len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("unexpected lists: %+v", cfg)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("blank env must not override: %q", cfg.LogLevel)
	}
}

func TestApplyEnvErrors(t *testing.T) {
	for k, v := range map[string]string{
		"RESIDENCYD_DEVICE_INDEX":          "one",
		"RESIDENCYD_ZOMBIE_KILLER_ENABLED": "maybe",
		"RESIDENCYD_FOOTPRINTS":            "sdxl",
		"RESIDENCYD_HIGH_SEVERITY_MB":      "lots",
	} {
		lookup := func(key string) (string, bool) {
			if key == k {
				return v, true
			}
			return "", false
		}
		if _, err := (Config{}).applyEnv(lookup); err == nil || !strings.Contains(err.Error(), k) {
			t.Fatalf("%s=%s: expected error naming the key, got %v", k, v, err)
		}
	}
}

func TestCatalogPrecedence(t *testing.T) {
	cfg := Config{DefaultFootprintMB: 2500, Footprints: map[string]float64{"sdxl": 6400}}
	reg := []catalog.Descriptor{{ID: "sdxl", ExpectedVRAMMB: 6000}, {ID: "blip", ExpectedVRAMMB: 900}}
	cat := cfg.Catalog(reg)
	if cat.Expected("sdxl") != 6400 || cat.Expected("blip") != 900 || cat.Expected("other") != 2500 {
		t.Fatalf("unexpected catalog entries %+v", cat.Entries())
	}
}

func TestSplitCSV(t *testing.T) {
	got := SplitCSV(" a, ,b,c ")
	if strings.Join(got, "|") != "a|b|c" {
		t.Fatalf("got %v", got)
	}
	if SplitCSV("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}
