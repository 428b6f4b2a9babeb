package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RESIDENCYD_"

// FromEnv applies RESIDENCYD_* overrides from the process environment.
func (c Config) FromEnv() (Config, error) { return c.applyEnv(os.LookupEnv) }

func (c Config) applyEnv(lookup func(string) (string, bool)) (Config, error) {
	var firstErr error
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}
	fail := func(key string, err error) {
		if firstErr == nil {
			firstErr = fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
	}
	str := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}
	f64 := func(key string, dst *float64) {
		if v, ok := get(key); ok {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				fail(key, err)
				return
			}
			*dst = n
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				fail(key, err)
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := get(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				fail(key, err)
				return
			}
			*dst = b
		}
	}

	str("ADDR", &c.Addr)
	str("REGISTRY_FILE", &c.RegistryFile)
	f64("GHOST_THRESHOLD_MB", &c.GhostThresholdMB)
	f64("HIGH_SEVERITY_MB", &c.HighSeverityMB)
	f64("DEFAULT_FOOTPRINT_MB", &c.DefaultFootprintMB)
	boolean("ZOMBIE_KILLER_ENABLED", &c.ZombieKillerEnabled)
	integer("ZOMBIE_KILLER_INTERVAL_SECONDS", &c.ZombieKillerIntervalSeconds)
	integer("POLL_INTERVAL_SECONDS", &c.PollIntervalSeconds)
	integer("SETTLE_DELAY_MS", &c.SettleDelayMS)
	integer("DEVICE_INDEX", &c.DeviceIndex)
	boolean("CORS_ENABLED", &c.CORSEnabled)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	// RESIDENCYD_FOOTPRINTS="sdxl=6000,flux=12000"
	if v, ok := get("FOOTPRINTS"); ok {
		pairs, err := parsePairs(v)
		if err != nil {
			fail("FOOTPRINTS", err)
		} else {
			if c.Footprints == nil {
				c.Footprints = make(map[string]float64, len(pairs))
			}
			for k, s := range pairs {
				n, err := strconv.ParseFloat(s, 64)
				if err != nil {
					fail("FOOTPRINTS", err)
					break
				}
				c.Footprints[k] = n
			}
		}
	}
	// RESIDENCYD_BACKENDS="diffusion=http://127.0.0.1:7001,captioner=http://127.0.0.1:7002"
	if v, ok := get("BACKENDS"); ok {
		pairs, err := parsePairs(v)
		if err != nil {
			fail("BACKENDS", err)
		} else {
			if c.Backends == nil {
				c.Backends = make(map[string]string, len(pairs))
			}
			for k, u := range pairs {
				c.Backends[k] = u
			}
		}
	}
	if v, ok := get("CORS_ALLOWED_ORIGINS"); ok {
		c.CORSAllowedOrigins = SplitCSV(v)
	}
	return c, firstErr
}

// SplitCSV splits a comma-separated list, trimming blanks.
func SplitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parsePairs(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, item := range SplitCSV(s) {
		k, v, ok := strings.Cut(item, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			return nil, fmt.Errorf("malformed pair %q", item)
		}
		out[k] = v
	}
	return out, nil
}
